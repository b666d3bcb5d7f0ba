package handlers

import (
	"context"
	"time"

	"teamchat-service/internal/auth"
	"teamchat-service/internal/executor"
	"teamchat-service/internal/groups"
	"teamchat-service/internal/models"
	"teamchat-service/internal/telemetry"
)

func (r *Router) requireTeamMember(ctx context.Context, teamID, userID int) error {
	ok, err := r.isTeamMember(ctx, teamID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return errDenied
	}
	return nil
}

func (r *Router) isTeamMember(ctx context.Context, teamID, userID int) (bool, error) {
	return executor.Run(ctx, r.pool, func(ctx context.Context) (bool, error) {
		return r.repos.Teams.IsMember(ctx, teamID, userID)
	})
}

func (r *Router) teamChannels(ctx context.Context, teamID, userID int) ([]models.Channel, error) {
	return executor.Run(ctx, r.pool, func(ctx context.Context) ([]models.Channel, error) {
		return r.repos.Channels.ListTeamChannels(ctx, teamID, userID)
	})
}

func (r *Router) broadcastTeam(teamID int, eventType models.EventType, payload any) int {
	return r.hub.Broadcast(groups.TeamKey(teamID), models.Envelope{Type: eventType, Payload: payload})
}

// createChannel also moves every live session of the team into the new
// channel group, since channel membership is the team roster.
func (r *Router) createChannel(ctx context.Context, s session, ev *CreateChannel) error {
	if err := r.requireTeamMember(ctx, ev.TeamID, s.userID); err != nil {
		return err
	}

	channel, err := executor.Run(ctx, r.pool, func(ctx context.Context) (models.Channel, error) {
		return r.repos.Channels.CreateChannel(ctx, ev.TeamID, ev.Name, ev.Description)
	})
	if err != nil {
		return err
	}

	followed := r.hub.Follow(groups.TeamKey(ev.TeamID), groups.ChannelKey(channel.ID))
	s.log.Debug("channel created", "channel_id", channel.ID, "kind", channel.ChannelType(), "followed", followed)
	r.broadcastTeam(ev.TeamID, models.EventChannelCreated, models.ChannelCreated{Channel: channel, CreatedBy: s.userID})
	r.audit.Record(ctx, telemetry.ActionChannelCreated, r.requestID(s), s.userID, map[string]any{
		"team_id":    ev.TeamID,
		"channel_id": channel.ID,
		"name":       channel.Name,
	})
	return nil
}

func (r *Router) addTeamMember(ctx context.Context, s session, ev *AddTeamMember) error {
	if err := r.requireTeamMember(ctx, ev.TeamID, s.userID); err != nil {
		return err
	}
	user, err := executor.Run(ctx, r.pool, func(ctx context.Context) (models.User, error) {
		return r.repos.Users.GetUser(ctx, ev.UserID)
	})
	if err != nil {
		return err
	}
	already, err := r.isTeamMember(ctx, ev.TeamID, user.ID)
	if err != nil {
		return err
	}
	if already {
		s.log.Debug("user already in team", "team_id", ev.TeamID, "member_id", user.ID)
		return nil
	}

	if err := r.pool.Do(ctx, func(ctx context.Context) error {
		return r.repos.Teams.AddMember(ctx, ev.TeamID, user.ID)
	}); err != nil {
		return err
	}

	// Live sessions of the new member join the team and its group channels.
	userKey := groups.UserKey(user.ID)
	r.hub.Follow(userKey, groups.TeamKey(ev.TeamID))
	channels, err := r.teamChannels(ctx, ev.TeamID, user.ID)
	if err != nil {
		s.log.Warn("list channels for new member failed", "team_id", ev.TeamID, "error", err)
	}
	for _, channel := range channels {
		if !channel.IsDirectMessage {
			r.hub.Follow(userKey, groups.ChannelKey(channel.ID))
		}
	}

	r.broadcastTeam(ev.TeamID, models.EventMemberAdded, models.MemberAdded{TeamID: ev.TeamID, User: user, AddedBy: s.userID})
	if r.presence != nil && r.hub.Count(userKey) > 0 {
		r.presence.Connected(ctx, auth.Principal{UserID: user.ID, Username: user.Username}, []int{ev.TeamID})
	}
	r.audit.Record(ctx, telemetry.ActionMemberAdded, r.requestID(s), s.userID, map[string]any{
		"team_id":   ev.TeamID,
		"member_id": user.ID,
	})
	return nil
}

// teamNotification is ephemeral: nothing is persisted.
func (r *Router) teamNotification(ctx context.Context, s session, ev *TeamNotification) error {
	if err := r.requireTeamMember(ctx, ev.TeamID, s.userID); err != nil {
		return err
	}
	r.broadcastTeam(ev.TeamID, models.EventTeamNotification, models.TeamNotification{
		Type:      ev.NotificationType,
		TeamID:    ev.TeamID,
		Sender:    s.username,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
	return nil
}

// createOrGetDMChannel replies to the requester only. Both participants'
// live sessions are subscribed to the channel group.
func (r *Router) createOrGetDMChannel(ctx context.Context, s session, ev *CreateOrGetDMChannel) error {
	if ev.UserID == s.userID {
		return errInvalid
	}
	if err := r.requireTeamMember(ctx, ev.TeamID, s.userID); err != nil {
		return err
	}
	if err := r.requireTeamMember(ctx, ev.TeamID, ev.UserID); err != nil {
		return err
	}

	var created bool
	channel, err := executor.Run(ctx, r.pool, func(ctx context.Context) (models.Channel, error) {
		ch, isNew, err := r.repos.Channels.CreateOrGetDirectChannel(ctx, ev.TeamID, s.userID, ev.UserID)
		created = isNew
		return ch, err
	})
	if err != nil {
		return err
	}

	channelKey := groups.ChannelKey(channel.ID)
	r.hub.Follow(groups.UserKey(s.userID), channelKey)
	r.hub.Follow(groups.UserKey(ev.UserID), channelKey)

	user1, user2 := min(s.userID, ev.UserID), max(s.userID, ev.UserID)
	s.reply(models.Envelope{Type: models.EventDMChannel, Payload: models.DirectChannel{
		Channel:      channel,
		Participants: models.DirectMessageChannel{ChannelID: channel.ID, TeamID: ev.TeamID, User1ID: user1, User2ID: user2},
		Created:      created,
	}})
	if created {
		r.audit.Record(ctx, telemetry.ActionDirectChannelCreated, r.requestID(s), s.userID, map[string]any{
			"team_id":    ev.TeamID,
			"channel_id": channel.ID,
			"peer_id":    ev.UserID,
		})
	}
	return nil
}

// joinTeam re-subscribes this connection to a team and its channels, for
// sessions that predate a membership change.
func (r *Router) joinTeam(ctx context.Context, s session, ev *JoinTeam) error {
	if err := r.requireTeamMember(ctx, ev.TeamID, s.userID); err != nil {
		return err
	}
	channels, err := r.teamChannels(ctx, ev.TeamID, s.userID)
	if err != nil {
		return err
	}
	r.hub.Subscribe(groups.TeamKey(ev.TeamID), s.client)
	for _, channel := range channels {
		r.hub.Subscribe(groups.ChannelKey(channel.ID), s.client)
	}
	return nil
}

// leaveTeam only affects this connection's subscriptions, not membership.
func (r *Router) leaveTeam(ctx context.Context, s session, ev *LeaveTeam) error {
	channels, err := r.teamChannels(ctx, ev.TeamID, s.userID)
	if err != nil {
		return err
	}
	r.hub.Unsubscribe(groups.TeamKey(ev.TeamID), s.client)
	for _, channel := range channels {
		r.hub.Unsubscribe(groups.ChannelKey(channel.ID), s.client)
	}
	return nil
}
