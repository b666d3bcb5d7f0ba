package handlers

import (
	"context"

	"github.com/samber/lo"

	"teamchat-service/internal/executor"
	"teamchat-service/internal/groups"
	"teamchat-service/internal/models"
)

// channelForMember returns the channel when userID currently belongs to it.
func (r *Router) channelForMember(ctx context.Context, channelID, userID int) (models.Channel, error) {
	channel, err := executor.Run(ctx, r.pool, func(ctx context.Context) (models.Channel, error) {
		return r.repos.Channels.GetChannel(ctx, channelID)
	})
	if err != nil {
		return models.Channel{}, err
	}
	if err := r.requireChannelMember(ctx, channelID, userID); err != nil {
		return models.Channel{}, err
	}
	return channel, nil
}

func (r *Router) requireChannelMember(ctx context.Context, channelID, userID int) error {
	ok, err := executor.Run(ctx, r.pool, func(ctx context.Context) (bool, error) {
		return r.repos.Channels.IsMember(ctx, channelID, userID)
	})
	if err != nil {
		return err
	}
	if !ok {
		return errDenied
	}
	return nil
}

func (r *Router) getMessage(ctx context.Context, messageID int) (models.Message, error) {
	return executor.Run(ctx, r.pool, func(ctx context.Context) (models.Message, error) {
		return r.repos.Messages.GetMessage(ctx, messageID)
	})
}

func (r *Router) createMessage(ctx context.Context, in models.NewMessage) (models.Message, error) {
	return executor.Run(ctx, r.pool, func(ctx context.Context) (models.Message, error) {
		return r.repos.Messages.CreateMessage(ctx, in)
	})
}

func (r *Router) broadcastChannel(channelID int, eventType models.EventType, payload any) int {
	return r.hub.Broadcast(groups.ChannelKey(channelID), models.Envelope{Type: eventType, Payload: payload})
}

func (r *Router) sendChannelMessage(ctx context.Context, s session, ev *SendChannelMessage) error {
	channel, err := r.channelForMember(ctx, ev.ChannelID, s.userID)
	if err != nil {
		return err
	}

	in := models.NewMessage{
		ChannelID:   channel.ID,
		SenderID:    s.userID,
		Content:     ev.Content,
		LinkPreview: ev.LinkPreview,
	}
	if ev.ReplyTo != nil {
		parent, err := r.getMessage(ctx, *ev.ReplyTo)
		if err == nil && parent.ChannelID == channel.ID {
			in.ReplyToID = &parent.ID
		} else {
			s.log.Debug("reply target dropped", "reply_to", *ev.ReplyTo)
		}
	}
	if len(ev.Attachments) > 0 {
		files, err := executor.Run(ctx, r.pool, func(ctx context.Context) ([]models.FileAttachment, error) {
			return r.repos.Messages.GetAttachments(ctx, ev.Attachments)
		})
		if err != nil {
			return err
		}
		in.FileIDs = lo.FilterMap(files, func(f models.FileAttachment, _ int) (int, bool) {
			return f.ID, f.UploadedBy == s.userID
		})
	}

	msg, err := r.createMessage(ctx, in)
	if err != nil {
		return err
	}
	r.broadcastChannel(channel.ID, models.EventChatMessage, msg)
	return nil
}

func (r *Router) sendDirectMessage(ctx context.Context, s session, ev *SendDirectMessage) error {
	if ev.RecipientID == s.userID {
		return errInvalid
	}
	channel, err := r.channelForMember(ctx, ev.ChannelID, s.userID)
	if err != nil {
		return err
	}
	if !channel.IsDirectMessage {
		return errInvalid
	}
	if err := r.requireChannelMember(ctx, channel.ID, ev.RecipientID); err != nil {
		return err
	}

	msg, err := r.createMessage(ctx, models.NewMessage{ChannelID: channel.ID, SenderID: s.userID, Content: ev.Content})
	if err != nil {
		return err
	}
	r.broadcastChannel(channel.ID, models.EventChatMessage, msg)
	return nil
}

// forwardMessage posts to every target the sender may write to and skips the rest.
func (r *Router) forwardMessage(ctx context.Context, s session, ev *ForwardMessage) error {
	forwarded := 0
	for _, channelID := range lo.Uniq(ev.ChannelIDs) {
		channel, err := r.channelForMember(ctx, channelID, s.userID)
		if err != nil {
			s.log.Debug("forward target skipped", "channel_id", channelID, "error", err)
			continue
		}
		msg, err := r.createMessage(ctx, models.NewMessage{
			ChannelID:   channel.ID,
			SenderID:    s.userID,
			Content:     ev.Content,
			IsForwarded: true,
		})
		if err != nil {
			return err
		}
		r.broadcastChannel(channel.ID, models.EventChatMessage, msg)
		forwarded++
	}
	if forwarded == 0 {
		return errDenied
	}
	return nil
}

func (r *Router) editMessage(ctx context.Context, s session, ev *EditMessage) error {
	current, err := r.getMessage(ctx, ev.MessageID)
	if err != nil {
		return err
	}
	if current.SenderID != s.userID {
		return errDenied
	}

	edited, err := executor.Run(ctx, r.pool, func(ctx context.Context) (models.Message, error) {
		return r.repos.Messages.EditMessage(ctx, ev.MessageID, s.userID, ev.Content)
	})
	if err != nil {
		return err
	}
	r.broadcastChannel(edited.ChannelID, models.EventMessageEdited, edited)
	return nil
}

// deleteMessage resolves the channel before the row disappears.
func (r *Router) deleteMessage(ctx context.Context, s session, ev *DeleteMessage) error {
	current, err := r.getMessage(ctx, ev.MessageID)
	if err != nil {
		return err
	}
	if current.SenderID != s.userID {
		return errDenied
	}

	if err := r.pool.Do(ctx, func(ctx context.Context) error {
		return r.repos.Messages.DeleteMessage(ctx, ev.MessageID, s.userID)
	}); err != nil {
		return err
	}
	r.broadcastChannel(current.ChannelID, models.EventMessageDeleted, models.MessageRef{
		MessageID: current.ID,
		ChannelID: current.ChannelID,
		TeamID:    current.TeamID,
	})
	return nil
}

func (r *Router) react(ctx context.Context, s session, ev *React) error {
	current, err := r.getMessage(ctx, ev.MessageID)
	if err != nil {
		return err
	}
	if err := r.requireChannelMember(ctx, current.ChannelID, s.userID); err != nil {
		return err
	}

	updated, err := executor.Run(ctx, r.pool, func(ctx context.Context) (models.Message, error) {
		return r.repos.Messages.SetReaction(ctx, ev.MessageID, s.username, ev.Reaction)
	})
	if err != nil {
		return err
	}
	r.broadcastChannel(updated.ChannelID, models.EventReactionUpdate, models.ReactionUpdate{
		MessageRef: models.MessageRef{MessageID: updated.ID, ChannelID: updated.ChannelID, TeamID: updated.TeamID},
		Username:   s.username,
		Reaction:   ev.Reaction,
		Reactions:  updated.Reactions,
	})
	return nil
}

func (r *Router) setPin(ctx context.Context, s session, messageID int, pinned bool) error {
	current, err := r.getMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if err := r.requireChannelMember(ctx, current.ChannelID, s.userID); err != nil {
		return err
	}

	eventType := models.EventMessagePinned
	op := r.repos.Messages.PinMessage
	if !pinned {
		eventType = models.EventMessageUnpinned
		op = r.repos.Messages.UnpinMessage
	}
	updated, err := executor.Run(ctx, r.pool, func(ctx context.Context) (models.Message, error) {
		return op(ctx, messageID)
	})
	if err != nil {
		return err
	}
	r.broadcastChannel(updated.ChannelID, eventType, updated)
	return nil
}
