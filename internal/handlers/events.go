package handlers

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"teamchat-service/internal/models"
)

var (
	ErrMalformedEvent = errors.New("malformed event")
	ErrUnknownEvent   = errors.New("unknown message_type")
)

var validate = validator.New()

// Event is one inbound client frame. The set of implementations is closed.
type Event interface {
	isEvent()
}

type SendChannelMessage struct {
	ChannelID   int                 `json:"channel_id" validate:"required,gt=0"`
	Content     string              `json:"content" validate:"required,max=10000"`
	ReplyTo     *int                `json:"reply_to" validate:"omitempty,gt=0"`
	Attachments []int               `json:"attachments" validate:"omitempty,max=10,dive,gt=0"`
	LinkPreview *models.LinkPreview `json:"link_preview" validate:"omitempty"`
}

type SendDirectMessage struct {
	ChannelID   int    `json:"channel_id" validate:"required,gt=0"`
	RecipientID int    `json:"recipient_id" validate:"required,gt=0"`
	Content     string `json:"content" validate:"required,max=10000"`
}

type ForwardMessage struct {
	ChannelIDs []int  `json:"channel_ids" validate:"required,min=1,max=20,dive,gt=0"`
	Content    string `json:"content" validate:"required,max=10000"`
}

type EditMessage struct {
	MessageID int    `json:"message_id" validate:"required,gt=0"`
	Content   string `json:"content" validate:"required,max=10000"`
}

type DeleteMessage struct {
	MessageID int `json:"message_id" validate:"required,gt=0"`
}

type React struct {
	MessageID int    `json:"message_id" validate:"required,gt=0"`
	Reaction  string `json:"reaction" validate:"required,max=32"`
}

type PinMessage struct {
	MessageID int `json:"message_id" validate:"required,gt=0"`
}

type UnpinMessage struct {
	MessageID int `json:"message_id" validate:"required,gt=0"`
}

type CreateChannel struct {
	TeamID      int    `json:"team_id" validate:"required,gt=0"`
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=1000"`
}

type AddTeamMember struct {
	TeamID int `json:"team_id" validate:"required,gt=0"`
	UserID int `json:"user_id" validate:"required,gt=0"`
}

type TeamNotification struct {
	TeamID           int    `json:"team_id" validate:"required,gt=0"`
	NotificationType string `json:"notification_type" validate:"required,max=64"`
}

type CreateOrGetDMChannel struct {
	TeamID int `json:"team_id" validate:"required,gt=0"`
	UserID int `json:"user_id" validate:"required,gt=0"`
}

type JoinTeam struct {
	TeamID int `json:"team_id" validate:"required,gt=0"`
}

type LeaveTeam struct {
	TeamID int `json:"team_id" validate:"required,gt=0"`
}

type GetChannelMessages struct {
	ChannelID int `json:"channel_id" validate:"required,gt=0"`
	Limit     int `json:"limit" validate:"omitempty,gt=0"`
}

type GetTeamMembers struct {
	TeamID int `json:"team_id" validate:"required,gt=0"`
}

type GetTeamChannels struct {
	TeamID int `json:"team_id" validate:"required,gt=0"`
}

type GetUserPresences struct {
	TeamID int `json:"team_id" validate:"required,gt=0"`
}

type GetInteractedUsers struct{}

func (*SendChannelMessage) isEvent()   {}
func (*SendDirectMessage) isEvent()    {}
func (*ForwardMessage) isEvent()       {}
func (*EditMessage) isEvent()          {}
func (*DeleteMessage) isEvent()        {}
func (*React) isEvent()                {}
func (*PinMessage) isEvent()           {}
func (*UnpinMessage) isEvent()         {}
func (*CreateChannel) isEvent()        {}
func (*AddTeamMember) isEvent()        {}
func (*TeamNotification) isEvent()     {}
func (*CreateOrGetDMChannel) isEvent() {}
func (*JoinTeam) isEvent()             {}
func (*LeaveTeam) isEvent()            {}
func (*GetChannelMessages) isEvent()   {}
func (*GetTeamMembers) isEvent()       {}
func (*GetTeamChannels) isEvent()      {}
func (*GetUserPresences) isEvent()     {}
func (*GetInteractedUsers) isEvent()   {}

func newEvent(messageType string) Event {
	switch messageType {
	case "send_channel_message":
		return &SendChannelMessage{}
	case "send_direct_message":
		return &SendDirectMessage{}
	case "forward_message":
		return &ForwardMessage{}
	case "edit_message":
		return &EditMessage{}
	case "delete_message":
		return &DeleteMessage{}
	case "react":
		return &React{}
	case "pin_message":
		return &PinMessage{}
	case "unpin_message":
		return &UnpinMessage{}
	case "create_channel":
		return &CreateChannel{}
	case "add_team_member":
		return &AddTeamMember{}
	case "team_notification":
		return &TeamNotification{}
	case "create_or_get_dm_channel":
		return &CreateOrGetDMChannel{}
	case "join_team":
		return &JoinTeam{}
	case "leave_team":
		return &LeaveTeam{}
	case "get_channel_messages":
		return &GetChannelMessages{}
	case "get_team_members":
		return &GetTeamMembers{}
	case "get_team_channels":
		return &GetTeamChannels{}
	case "get_user_presences":
		return &GetUserPresences{}
	case "get_interacted_users":
		return &GetInteractedUsers{}
	default:
		return nil
	}
}

// DecodeEvent reads the message_type discriminator, decodes the matching
// event and validates it. The discriminator is returned even on failure.
func DecodeEvent(raw []byte) (string, Event, error) {
	var head struct {
		MessageType string `json:"message_type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	event := newEvent(head.MessageType)
	if event == nil {
		return head.MessageType, nil, ErrUnknownEvent
	}
	if err := json.Unmarshal(raw, event); err != nil {
		return head.MessageType, nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if err := validate.Struct(event); err != nil {
		return head.MessageType, nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return head.MessageType, event, nil
}
