package handlers

import (
	"context"

	"teamchat-service/internal/executor"
	"teamchat-service/internal/models"
)

// Queries answer on the requesting connection only and never touch the registry.

func (r *Router) getChannelMessages(ctx context.Context, s session, ev *GetChannelMessages) error {
	channel, err := r.channelForMember(ctx, ev.ChannelID, s.userID)
	if err != nil {
		return err
	}
	limit := r.historyLimit
	if ev.Limit > 0 && ev.Limit < limit {
		limit = ev.Limit
	}

	msgs, err := executor.Run(ctx, r.pool, func(ctx context.Context) ([]models.Message, error) {
		return r.repos.Messages.ListChannelMessages(ctx, channel.ID, limit)
	})
	if err != nil {
		return err
	}
	s.reply(models.Envelope{Type: models.EventChannelMessages, Payload: models.ChannelMessages{
		ChannelID: channel.ID,
		Messages:  orEmpty(msgs),
	}})
	return nil
}

func (r *Router) getTeamMembers(ctx context.Context, s session, ev *GetTeamMembers) error {
	if err := r.requireTeamMember(ctx, ev.TeamID, s.userID); err != nil {
		return err
	}
	members, err := executor.Run(ctx, r.pool, func(ctx context.Context) ([]models.User, error) {
		return r.repos.Teams.ListMembers(ctx, ev.TeamID)
	})
	if err != nil {
		return err
	}
	s.reply(models.Envelope{Type: models.EventTeamMembers, Payload: models.TeamMembers{TeamID: ev.TeamID, Members: orEmpty(members)}})
	return nil
}

func (r *Router) getTeamChannels(ctx context.Context, s session, ev *GetTeamChannels) error {
	if err := r.requireTeamMember(ctx, ev.TeamID, s.userID); err != nil {
		return err
	}
	channels, err := r.teamChannels(ctx, ev.TeamID, s.userID)
	if err != nil {
		return err
	}
	s.reply(models.Envelope{Type: models.EventTeamChannels, Payload: models.TeamChannels{TeamID: ev.TeamID, Channels: orEmpty(channels)}})
	return nil
}

func (r *Router) getUserPresences(ctx context.Context, s session, ev *GetUserPresences) error {
	if err := r.requireTeamMember(ctx, ev.TeamID, s.userID); err != nil {
		return err
	}
	presences, err := r.presence.Snapshot(ctx, ev.TeamID)
	if err != nil {
		return err
	}
	s.reply(models.Envelope{Type: models.EventUserPresences, Payload: models.UserPresences{TeamID: ev.TeamID, Presences: orEmpty(presences)}})
	return nil
}

func (r *Router) getInteractedUsers(ctx context.Context, s session) error {
	users, err := executor.Run(ctx, r.pool, func(ctx context.Context) ([]models.User, error) {
		return r.repos.Channels.ListInteractedUsers(ctx, s.userID)
	})
	if err != nil {
		return err
	}
	s.reply(models.Envelope{Type: models.EventInteractedUsers, Payload: models.InteractedUsers{Users: orEmpty(users)}})
	return nil
}
