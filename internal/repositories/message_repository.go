package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"teamchat-service/internal/models"
)

const messageSelect = `SELECT m.id, m.channel_id, c.team_id, m.sender_id, u.username AS sender_username, m.content,
        m.reply_to_id, m.reactions, m.link_preview, m.is_forwarded, m.is_pinned, m.is_edited, m.edited_at,
        m.edit_history, m.created_at
    FROM messages m
    INNER JOIN channels c ON c.id = m.channel_id
    INNER JOIN users u ON u.id = m.sender_id`

const attachmentColumns = `f.id, f.file_path, f.original_filename, f.content_type, f.size, f.uploaded_by, f.created_at`

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage stores a message and links its attachments. Not idempotent.
func (r *MessageRepo) CreateMessage(ctx context.Context, in models.NewMessage) (models.Message, error) {
	var id int
	err := func() (err error) {
		tx, err := r.db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() {
			if err != nil {
				_ = tx.Rollback()
			}
		}()

		if err = tx.QueryRowxContext(ctx, `INSERT INTO messages (channel_id, sender_id, content, reply_to_id, link_preview, is_forwarded, reactions)
            VALUES ($1, $2, $3, $4, $5, $6, '{}'::jsonb) RETURNING id`,
			in.ChannelID, in.SenderID, in.Content, in.ReplyToID, in.LinkPreview, in.IsForwarded).Scan(&id); err != nil {
			return err
		}
		for _, fileID := range in.FileIDs {
			if _, err = tx.ExecContext(ctx, `INSERT INTO message_files (message_id, file_id) VALUES ($1, $2)
                ON CONFLICT DO NOTHING`, id, fileID); err != nil {
				return err
			}
		}
		return tx.Commit()
	}()
	if err != nil {
		return models.Message{}, err
	}
	return r.GetMessage(ctx, id)
}

// GetMessage retrieves a single message with its attachments.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, messageSelect+` WHERE m.id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	if err != nil {
		return models.Message{}, err
	}
	msgs := []models.Message{msg}
	if err := r.attachFiles(ctx, msgs); err != nil {
		return models.Message{}, err
	}
	return msgs[0], nil
}

// ListChannelMessages returns the latest messages of a channel, oldest first.
func (r *MessageRepo) ListChannelMessages(ctx context.Context, channelID int, limit int) ([]models.Message, error) {
	var msgs []models.Message
	var err error
	if limit > 0 {
		err = r.db.SelectContext(ctx, &msgs, `SELECT * FROM (`+messageSelect+`
            WHERE m.channel_id=$1 ORDER BY m.created_at DESC, m.id DESC LIMIT $2) latest
            ORDER BY created_at ASC, id ASC`, channelID, limit)
	} else {
		err = r.db.SelectContext(ctx, &msgs, messageSelect+` WHERE m.channel_id=$1 ORDER BY m.created_at ASC, m.id ASC`, channelID)
	}
	if err != nil {
		return nil, err
	}
	if err := r.attachFiles(ctx, msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// EditMessage appends the current content to the edit history and replaces it.
func (r *MessageRepo) EditMessage(ctx context.Context, messageID int, senderID int, content string) (models.Message, error) {
	err := func() (err error) {
		tx, err := r.db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() {
			if err != nil {
				_ = tx.Rollback()
			}
		}()

		var current struct {
			SenderID    int                `db:"sender_id"`
			Content     string             `db:"content"`
			EditHistory models.EditHistory `db:"edit_history"`
		}
		err = tx.GetContext(ctx, &current, `SELECT sender_id, content, edit_history FROM messages WHERE id=$1 FOR UPDATE`, messageID)
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrMessageNotFound
			return err
		}
		if err != nil {
			return err
		}
		if current.SenderID != senderID {
			err = ErrNotMessageSender
			return err
		}

		now := time.Now().UTC()
		history := append(current.EditHistory, models.EditRecord{Content: current.Content, EditedAt: now})
		if _, err = tx.ExecContext(ctx, `UPDATE messages SET content=$2, is_edited=TRUE, edited_at=$3, edit_history=$4 WHERE id=$1`,
			messageID, content, now, history); err != nil {
			return err
		}
		return tx.Commit()
	}()
	if err != nil {
		return models.Message{}, err
	}
	return r.GetMessage(ctx, messageID)
}

// DeleteMessage removes a message owned by senderID.
func (r *MessageRepo) DeleteMessage(ctx context.Context, messageID int, senderID int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE id=$1 AND sender_id=$2`, messageID, senderID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// SetReaction upserts username's reaction in place.
func (r *MessageRepo) SetReaction(ctx context.Context, messageID int, username string, reaction string) (models.Message, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE messages
        SET reactions = COALESCE(reactions, '{}'::jsonb) || jsonb_build_object($2::text, $3::text)
        WHERE id=$1`, messageID, username, reaction)
	if err != nil {
		return models.Message{}, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return models.Message{}, err
	}
	if count == 0 {
		return models.Message{}, ErrMessageNotFound
	}
	return r.GetMessage(ctx, messageID)
}

// PinMessage clears the channel's current pin and pins messageID in one transaction.
func (r *MessageRepo) PinMessage(ctx context.Context, messageID int) (models.Message, error) {
	err := func() (err error) {
		tx, err := r.db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() {
			if err != nil {
				_ = tx.Rollback()
			}
		}()

		var channelID int
		err = tx.GetContext(ctx, &channelID, `SELECT channel_id FROM messages WHERE id=$1 FOR UPDATE`, messageID)
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrMessageNotFound
			return err
		}
		if err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx, `UPDATE messages SET is_pinned=FALSE WHERE channel_id=$1 AND is_pinned AND id<>$2`, channelID, messageID); err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx, `UPDATE messages SET is_pinned=TRUE WHERE id=$1`, messageID); err != nil {
			return err
		}
		return tx.Commit()
	}()
	if err != nil {
		return models.Message{}, err
	}
	return r.GetMessage(ctx, messageID)
}

// UnpinMessage clears the pin flag of a message.
func (r *MessageRepo) UnpinMessage(ctx context.Context, messageID int) (models.Message, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET is_pinned=FALSE WHERE id=$1`, messageID)
	if err != nil {
		return models.Message{}, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return models.Message{}, err
	}
	if count == 0 {
		return models.Message{}, ErrMessageNotFound
	}
	return r.GetMessage(ctx, messageID)
}

// GetAttachments looks up file metadata by id. Unknown ids are skipped.
func (r *MessageRepo) GetAttachments(ctx context.Context, fileIDs []int) ([]models.FileAttachment, error) {
	if len(fileIDs) == 0 {
		return []models.FileAttachment{}, nil
	}
	var files []models.FileAttachment
	err := r.db.SelectContext(ctx, &files, `SELECT `+attachmentColumns+` FROM file_attachments f
        WHERE f.id = ANY($1) ORDER BY f.id`, pq.Array(fileIDs))
	return files, err
}

func (r *MessageRepo) attachFiles(ctx context.Context, msgs []models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	ids := make([]int, 0, len(msgs))
	index := make(map[int]int, len(msgs))
	for i, m := range msgs {
		ids = append(ids, m.ID)
		index[m.ID] = i
	}

	var rows []struct {
		MessageID int `db:"message_id"`
		models.FileAttachment
	}
	if err := r.db.SelectContext(ctx, &rows, `SELECT mf.message_id, `+attachmentColumns+` FROM message_files mf
        INNER JOIN file_attachments f ON f.id = mf.file_id
        WHERE mf.message_id = ANY($1) ORDER BY f.id`, pq.Array(ids)); err != nil {
		return err
	}
	for _, row := range rows {
		i := index[row.MessageID]
		msgs[i].Files = append(msgs[i].Files, row.FileAttachment)
	}
	return nil
}
