package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Message represents a message posted to a channel.
type Message struct {
	ID          int              `db:"id" json:"id"`
	ChannelID   int              `db:"channel_id" json:"channel_id"`
	TeamID      int              `db:"team_id" json:"team_id"`
	SenderID    int              `db:"sender_id" json:"sender_id"`
	Sender      string           `db:"sender_username" json:"sender"`
	Content     string           `db:"content" json:"content"`
	ReplyToID   *int             `db:"reply_to_id" json:"reply_to,omitempty"`
	Reactions   Reactions        `db:"reactions" json:"reactions"`
	LinkPreview *LinkPreview     `db:"link_preview" json:"link_preview,omitempty"`
	IsForwarded bool             `db:"is_forwarded" json:"is_forwarded"`
	IsPinned    bool             `db:"is_pinned" json:"is_pinned"`
	IsEdited    bool             `db:"is_edited" json:"is_edited"`
	EditedAt    *time.Time       `db:"edited_at" json:"edited_at,omitempty"`
	EditHistory EditHistory      `db:"edit_history" json:"edit_history,omitempty"`
	Files       []FileAttachment `db:"-" json:"files,omitempty"`
	CreatedAt   time.Time        `db:"created_at" json:"timestamp"`
}

// NewMessage carries the fields needed to create a message.
type NewMessage struct {
	ChannelID   int
	SenderID    int
	Content     string
	ReplyToID   *int
	FileIDs     []int
	LinkPreview *LinkPreview
	IsForwarded bool
}

// FileAttachment is metadata for an uploaded file. Upload itself happens elsewhere.
type FileAttachment struct {
	ID               int       `db:"id" json:"id"`
	FilePath         string    `db:"file_path" json:"file"`
	OriginalFilename string    `db:"original_filename" json:"original_filename"`
	ContentType      string    `db:"content_type" json:"content_type"`
	Size             int64     `db:"size" json:"size"`
	UploadedBy       int       `db:"uploaded_by" json:"uploaded_by"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// LinkPreview is scraped page metadata attached by the client.
type LinkPreview struct {
	URL         string  `json:"url" validate:"required,url"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Image       *string `json:"image"`
	SiteName    string  `json:"site_name"`
}

// EditRecord is one prior version of a message's content.
type EditRecord struct {
	Content  string    `json:"content"`
	EditedAt time.Time `json:"edited_at"`
}

// Reactions maps a username to the reaction that user left.
type Reactions map[string]string

// EditHistory is the append-only list of replaced contents, oldest first.
type EditHistory []EditRecord

// Value implements driver.Valuer.
func (r Reactions) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	return json.Marshal(r)
}

// Scan implements sql.Scanner.
func (r *Reactions) Scan(src any) error {
	return scanJSON(src, r)
}

// Value implements driver.Valuer.
func (h EditHistory) Value() (driver.Value, error) {
	if h == nil {
		return nil, nil
	}
	return json.Marshal(h)
}

// Scan implements sql.Scanner.
func (h *EditHistory) Scan(src any) error {
	return scanJSON(src, h)
}

// Value implements driver.Valuer.
func (p *LinkPreview) Value() (driver.Value, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}

// Scan implements sql.Scanner.
func (p *LinkPreview) Scan(src any) error {
	return scanJSON(src, p)
}

func scanJSON(src any, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dst)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported json column type %T", src)
	}
}

// Clone returns a copy that shares no mutable state with m.
func (m Message) Clone() Message {
	out := m
	if m.Reactions != nil {
		out.Reactions = make(Reactions, len(m.Reactions))
		for k, v := range m.Reactions {
			out.Reactions[k] = v
		}
	}
	if m.EditHistory != nil {
		out.EditHistory = append(EditHistory(nil), m.EditHistory...)
	}
	if m.Files != nil {
		out.Files = append([]FileAttachment(nil), m.Files...)
	}
	if m.ReplyToID != nil {
		id := *m.ReplyToID
		out.ReplyToID = &id
	}
	if m.EditedAt != nil {
		at := *m.EditedAt
		out.EditedAt = &at
	}
	if m.LinkPreview != nil {
		lp := *m.LinkPreview
		out.LinkPreview = &lp
	}
	return out
}
