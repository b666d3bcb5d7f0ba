package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"teamchat-service/internal/models"
	"teamchat-service/internal/repositories"
)

func TestPinKeepsSinglePinPerChannel(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	// Given a channel with two messages
	store := New()
	alice := store.AddUser("alice")
	team := store.AddTeam("core", alice.ID)
	repos := store.Set()
	ch, err := repos.Channels.CreateChannel(ctx, team.ID, "general", "")
	req.NoError(err)
	a, err := repos.Messages.CreateMessage(ctx, models.NewMessage{ChannelID: ch.ID, SenderID: alice.ID, Content: "a"})
	req.NoError(err)
	b, err := repos.Messages.CreateMessage(ctx, models.NewMessage{ChannelID: ch.ID, SenderID: alice.ID, Content: "b"})
	req.NoError(err)

	// When both are pinned in order
	_, err = repos.Messages.PinMessage(ctx, a.ID)
	req.NoError(err)
	_, err = repos.Messages.PinMessage(ctx, b.ID)
	req.NoError(err)

	// Then only the last one stays pinned
	msgs, err := repos.Messages.ListChannelMessages(ctx, ch.ID, 0)
	req.NoError(err)
	req.Len(msgs, 2)
	req.False(msgs[0].IsPinned)
	req.True(msgs[1].IsPinned)
}

func TestEditRecordsHistoryAndChecksSender(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	store := New()
	alice := store.AddUser("alice")
	bob := store.AddUser("bob")
	team := store.AddTeam("core", alice.ID, bob.ID)
	repos := store.Set()
	ch, err := repos.Channels.CreateChannel(ctx, team.ID, "general", "")
	req.NoError(err)
	msg, err := repos.Messages.CreateMessage(ctx, models.NewMessage{ChannelID: ch.ID, SenderID: alice.ID, Content: "v1"})
	req.NoError(err)

	_, err = repos.Messages.EditMessage(ctx, msg.ID, bob.ID, "hijack")
	req.ErrorIs(err, repositories.ErrNotMessageSender)

	edited, err := repos.Messages.EditMessage(ctx, msg.ID, alice.ID, "v2")
	req.NoError(err)
	req.Equal("v2", edited.Content)
	req.True(edited.IsEdited)
	req.NotNil(edited.EditedAt)
	req.Len(edited.EditHistory, 1)
	req.Equal("v1", edited.EditHistory[0].Content)
}

func TestDirectChannelIsIdempotent(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	store := New()
	alice := store.AddUser("alice")
	bob := store.AddUser("bob")
	team := store.AddTeam("core", alice.ID, bob.ID)
	repos := store.Set()

	first, created, err := repos.Channels.CreateOrGetDirectChannel(ctx, team.ID, alice.ID, bob.ID)
	req.NoError(err)
	req.True(created)
	req.True(first.IsDirectMessage)

	second, created, err := repos.Channels.CreateOrGetDirectChannel(ctx, team.ID, bob.ID, alice.ID)
	req.NoError(err)
	req.False(created)
	req.Equal(first.ID, second.ID)
	req.Equal(1, store.DirectChannelCount())

	_, _, err = repos.Channels.CreateOrGetDirectChannel(ctx, team.ID, alice.ID, alice.ID)
	req.ErrorIs(err, repositories.ErrSelfDirectChat)

	users, err := repos.Channels.ListInteractedUsers(ctx, alice.ID)
	req.NoError(err)
	req.Equal([]models.User{bob}, users)
}

func TestAddMemberJoinsGroupChannelsOnly(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	store := New()
	alice := store.AddUser("alice")
	bob := store.AddUser("bob")
	carol := store.AddUser("carol")
	team := store.AddTeam("core", alice.ID, bob.ID)
	repos := store.Set()
	general, err := repos.Channels.CreateChannel(ctx, team.ID, "general", "")
	req.NoError(err)
	dm, _, err := repos.Channels.CreateOrGetDirectChannel(ctx, team.ID, alice.ID, bob.ID)
	req.NoError(err)

	req.NoError(repos.Teams.AddMember(ctx, team.ID, carol.ID))

	ok, err := repos.Channels.IsMember(ctx, general.ID, carol.ID)
	req.NoError(err)
	req.True(ok)
	ok, err = repos.Channels.IsMember(ctx, dm.ID, carol.ID)
	req.NoError(err)
	req.False(ok)

	req.ErrorIs(repos.Teams.AddMember(ctx, 999, carol.ID), repositories.ErrTeamNotFound)
}

func TestReplyCleared(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	store := New()
	alice := store.AddUser("alice")
	team := store.AddTeam("core", alice.ID)
	repos := store.Set()
	ch, err := repos.Channels.CreateChannel(ctx, team.ID, "general", "")
	req.NoError(err)
	parent, err := repos.Messages.CreateMessage(ctx, models.NewMessage{ChannelID: ch.ID, SenderID: alice.ID, Content: "q"})
	req.NoError(err)
	reply, err := repos.Messages.CreateMessage(ctx, models.NewMessage{ChannelID: ch.ID, SenderID: alice.ID, Content: "a", ReplyToID: &parent.ID})
	req.NoError(err)

	req.NoError(repos.Messages.DeleteMessage(ctx, parent.ID, alice.ID))

	got, err := repos.Messages.GetMessage(ctx, reply.ID)
	req.NoError(err)
	req.Nil(got.ReplyToID)
}

func TestPresenceSnapshotDefaultsOffline(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	store := New()
	alice := store.AddUser("alice")
	bob := store.AddUser("bob")
	team := store.AddTeam("core", alice.ID, bob.ID)
	repos := store.Set()

	_, err := repos.Presences.SetPresence(ctx, alice.ID, team.ID, true)
	req.NoError(err)

	snapshot, err := repos.Presences.ListTeamPresences(ctx, team.ID)
	req.NoError(err)
	req.Len(snapshot, 2)
	req.True(snapshot[0].Online)
	req.Equal("alice", snapshot[0].Username)
	req.False(snapshot[1].Online)
	req.Equal(bob.ID, snapshot[1].UserID)
}

func TestReactionReplacesPreviousOne(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	store := New()
	alice := store.AddUser("alice")
	team := store.AddTeam("core", alice.ID)
	repos := store.Set()
	ch, err := repos.Channels.CreateChannel(ctx, team.ID, "general", "")
	req.NoError(err)
	msg, err := repos.Messages.CreateMessage(ctx, models.NewMessage{ChannelID: ch.ID, SenderID: alice.ID, Content: "hi"})
	req.NoError(err)

	_, err = repos.Messages.SetReaction(ctx, msg.ID, "alice", "👍")
	req.NoError(err)
	updated, err := repos.Messages.SetReaction(ctx, msg.ID, "alice", "🎉")
	req.NoError(err)
	req.Equal(models.Reactions{"alice": "🎉"}, updated.Reactions)
}
