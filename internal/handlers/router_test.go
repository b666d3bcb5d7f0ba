package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"teamchat-service/internal/executor"
	"teamchat-service/internal/groups"
	"teamchat-service/internal/membership"
	"teamchat-service/internal/mocks"
	"teamchat-service/internal/models"
	"teamchat-service/internal/observability"
	"teamchat-service/internal/presence"
	"teamchat-service/internal/repositories"
	"teamchat-service/internal/repositories/memory"
	"teamchat-service/internal/telemetry"
	"teamchat-service/internal/ws"
)

type harness struct {
	t        *testing.T
	store    *memory.Store
	repos    repositories.Set
	hub      *ws.Hub
	router   *Router
	resolver *membership.Resolver
}

func newHarness(t *testing.T) *harness {
	return newHarnessWithAudit(t, nil)
}

func newHarnessWithAudit(t *testing.T, audit *telemetry.AuditEmitter) *harness {
	t.Helper()
	log := observability.DiscardLogger()
	store := memory.New()
	repos := store.Set()
	pool := executor.NewPool(4)
	hub := ws.NewHub(log)
	tracker := presence.NewTracker(repos.Presences, hub, pool, log)
	return &harness{
		t:        t,
		store:    store,
		repos:    repos,
		hub:      hub,
		router:   NewRouter(repos, hub, tracker, pool, audit, 50, log),
		resolver: membership.NewResolver(repos.Teams, repos.Channels, pool, log),
	}
}

// connect registers a session the same way the websocket handler does.
func (h *harness) connect(user models.User) *ws.Client {
	c := ws.NewClient(nil, ws.ConnInfo{ConnID: uuid.NewString(), UserID: user.ID, Username: user.Username}, 64, observability.DiscardLogger())
	c.Advance(ws.StateAuthenticated)
	for _, key := range h.resolver.Resolve(context.Background(), user.ID).Keys(user.ID) {
		h.hub.Subscribe(key, c)
	}
	c.Advance(ws.StateActive)
	return c
}

func (h *harness) send(c *ws.Client, messageType string, fields map[string]any) {
	h.t.Helper()
	if fields == nil {
		fields = map[string]any{}
	}
	fields["message_type"] = messageType
	raw, err := json.Marshal(fields)
	require.NoError(h.t, err)
	h.router.Dispatch(context.Background(), c, raw)
}

func (h *harness) channel(teamID int, name string) models.Channel {
	h.t.Helper()
	ch, err := h.repos.Channels.CreateChannel(context.Background(), teamID, name, "")
	require.NoError(h.t, err)
	return ch
}

type frame struct {
	Type    models.EventType `json:"type"`
	Payload json.RawMessage  `json:"payload"`
}

func frames(t *testing.T, c *ws.Client) []frame {
	t.Helper()
	var out []frame
	for {
		select {
		case raw := <-c.Outbound():
			var f frame
			require.NoError(t, json.Unmarshal(raw, &f))
			out = append(out, f)
		default:
			return out
		}
	}
}

func onlyFrame(t *testing.T, c *ws.Client, want models.EventType, into any) {
	t.Helper()
	got := frames(t, c)
	require.Len(t, got, 1)
	require.Equal(t, want, got[0].Type)
	if into != nil {
		require.NoError(t, json.Unmarshal(got[0].Payload, into))
	}
}

func frameTypes(got []frame) []models.EventType {
	return lo.Map(got, func(f frame, _ int) models.EventType { return f.Type })
}

func TestConnectSubscribesUserTeamsAndChannels(t *testing.T) {
	h := newHarness(t)
	alice := h.store.AddUser("alice")
	t1 := h.store.AddTeam("one", alice.ID)
	t2 := h.store.AddTeam("two", alice.ID)
	h.channel(t1.ID, "general")
	h.channel(t1.ID, "random")
	h.channel(t2.ID, "general")

	c := h.connect(alice)

	require.Len(t, h.hub.Subscriptions(c), 6)
	require.Contains(t, h.hub.Subscriptions(c), groups.UserKey(alice.ID))
	require.Contains(t, h.hub.Subscriptions(c), groups.TeamKey(t2.ID))

	h.hub.Remove(c)
	for _, key := range []string{groups.UserKey(alice.ID), groups.TeamKey(t1.ID), groups.TeamKey(t2.ID)} {
		require.Equal(t, 0, h.hub.Broadcast(key, models.Envelope{Type: models.EventUserPresence}))
	}
}

func TestSendChannelMessageBroadcastsToMembers(t *testing.T) {
	h := newHarness(t)
	alice := h.store.AddUser("alice")
	bob := h.store.AddUser("bob")
	team := h.store.AddTeam("core", alice.ID, bob.ID)
	general := h.channel(team.ID, "general")
	other := h.channel(team.ID, "other")
	a, b := h.connect(alice), h.connect(bob)

	elsewhere, err := h.repos.Messages.CreateMessage(context.Background(), models.NewMessage{ChannelID: other.ID, SenderID: bob.ID, Content: "x"})
	require.NoError(t, err)
	mine := h.store.AddAttachment(alice.ID, "a.png", "image/png", 10)
	theirs := h.store.AddAttachment(bob.ID, "b.png", "image/png", 10)

	h.send(a, "send_channel_message", map[string]any{
		"channel_id":  general.ID,
		"content":     "hello",
		"reply_to":    elsewhere.ID,
		"attachments": []int{mine.ID, theirs.ID},
	})

	var msg models.Message
	onlyFrame(t, b, models.EventChatMessage, &msg)
	require.Equal(t, "hello", msg.Content)
	require.Equal(t, "alice", msg.Sender)
	require.Equal(t, team.ID, msg.TeamID)
	require.Nil(t, msg.ReplyToID, "reply target in another channel is dropped")
	require.Len(t, msg.Files, 1)
	require.Equal(t, mine.ID, msg.Files[0].ID)
	require.Len(t, frames(t, a), 1, "sender receives its own message through the channel group")
}

func TestSendChannelMessageAsNonMemberIsNoop(t *testing.T) {
	h := newHarness(t)
	alice := h.store.AddUser("alice")
	mallory := h.store.AddUser("mallory")
	team := h.store.AddTeam("core", alice.ID)
	h.store.AddTeam("elsewhere", mallory.ID)
	general := h.channel(team.ID, "general")
	a, m := h.connect(alice), h.connect(mallory)

	h.send(m, "send_channel_message", map[string]any{"channel_id": general.ID, "content": "spam"})

	require.Equal(t, 0, h.store.MessageCount(general.ID))
	require.Empty(t, frames(t, a))
	require.Empty(t, frames(t, m), "no error reply")
}

func TestEditByNonSenderFailsSilently(t *testing.T) {
	h := newHarness(t)
	alice := h.store.AddUser("alice")
	bob := h.store.AddUser("bob")
	team := h.store.AddTeam("core", alice.ID, bob.ID)
	general := h.channel(team.ID, "general")
	a, b := h.connect(alice), h.connect(bob)
	msg, err := h.repos.Messages.CreateMessage(context.Background(), models.NewMessage{ChannelID: general.ID, SenderID: alice.ID, Content: "original"})
	require.NoError(t, err)

	h.send(b, "edit_message", map[string]any{"message_id": msg.ID, "content": "hijacked"})

	got, err := h.repos.Messages.GetMessage(context.Background(), msg.ID)
	require.NoError(t, err)
	require.Equal(t, "original", got.Content)
	require.False(t, got.IsEdited)
	require.Empty(t, frames(t, a))
	require.Empty(t, frames(t, b))

	h.send(a, "edit_message", map[string]any{"message_id": msg.ID, "content": "fixed"})
	var edited models.Message
	onlyFrame(t, b, models.EventMessageEdited, &edited)
	require.Equal(t, "fixed", edited.Content)
	require.Len(t, edited.EditHistory, 1)
}

func TestDeleteResolvesChannelBeforeDelete(t *testing.T) {
	h := newHarness(t)
	alice := h.store.AddUser("alice")
	bob := h.store.AddUser("bob")
	team := h.store.AddTeam("core", alice.ID, bob.ID)
	general := h.channel(team.ID, "general")
	a, b := h.connect(alice), h.connect(bob)
	msg, err := h.repos.Messages.CreateMessage(context.Background(), models.NewMessage{ChannelID: general.ID, SenderID: alice.ID, Content: "oops"})
	require.NoError(t, err)

	h.send(b, "delete_message", map[string]any{"message_id": msg.ID})
	require.Equal(t, 1, h.store.MessageCount(general.ID))
	require.Empty(t, frames(t, a))

	h.send(a, "delete_message", map[string]any{"message_id": msg.ID})
	var ref models.MessageRef
	onlyFrame(t, b, models.EventMessageDeleted, &ref)
	require.Equal(t, models.MessageRef{MessageID: msg.ID, ChannelID: general.ID, TeamID: team.ID}, ref)
	require.Equal(t, 0, h.store.MessageCount(general.ID))
}

func TestPinBReplacesPinA(t *testing.T) {
	h := newHarness(t)
	alice := h.store.AddUser("alice")
	team := h.store.AddTeam("core", alice.ID)
	general := h.channel(team.ID, "general")
	a := h.connect(alice)
	msgA, err := h.repos.Messages.CreateMessage(context.Background(), models.NewMessage{ChannelID: general.ID, SenderID: alice.ID, Content: "A"})
	require.NoError(t, err)
	msgB, err := h.repos.Messages.CreateMessage(context.Background(), models.NewMessage{ChannelID: general.ID, SenderID: alice.ID, Content: "B"})
	require.NoError(t, err)

	h.send(a, "pin_message", map[string]any{"message_id": msgA.ID})
	h.send(a, "pin_message", map[string]any{"message_id": msgB.ID})

	msgs, err := h.repos.Messages.ListChannelMessages(context.Background(), general.ID, 0)
	require.NoError(t, err)
	pinned := 0
	for _, m := range msgs {
		if m.IsPinned {
			pinned++
			require.Equal(t, msgB.ID, m.ID)
		}
	}
	require.Equal(t, 1, pinned)

	got := frames(t, a)
	require.Len(t, got, 2)
	require.Equal(t, models.EventMessagePinned, got[1].Type)

	h.send(a, "unpin_message", map[string]any{"message_id": msgB.ID})
	onlyFrame(t, a, models.EventMessageUnpinned, nil)
}

func TestReactThenFetchRoundTrip(t *testing.T) {
	h := newHarness(t)
	alice := h.store.AddUser("alice")
	bob := h.store.AddUser("bob")
	team := h.store.AddTeam("core", alice.ID, bob.ID)
	general := h.channel(team.ID, "general")
	a, b := h.connect(alice), h.connect(bob)
	msg, err := h.repos.Messages.CreateMessage(context.Background(), models.NewMessage{ChannelID: general.ID, SenderID: bob.ID, Content: "ship it"})
	require.NoError(t, err)

	h.send(a, "react", map[string]any{"message_id": msg.ID, "reaction": "👍"})

	var update models.ReactionUpdate
	onlyFrame(t, b, models.EventReactionUpdate, &update)
	require.Equal(t, models.Reactions{"alice": "👍"}, update.Reactions)
	require.Equal(t, general.ID, update.ChannelID)
	frames(t, a)

	h.send(a, "get_channel_messages", map[string]any{"channel_id": general.ID})

	var history models.ChannelMessages
	onlyFrame(t, a, models.EventChannelMessages, &history)
	require.Len(t, history.Messages, 1)
	require.Equal(t, "👍", history.Messages[0].Reactions["alice"])
	require.Empty(t, frames(t, b), "queries are never broadcast")
}

func TestForwardSkipsUnauthorizedTargets(t *testing.T) {
	h := newHarness(t)
	alice := h.store.AddUser("alice")
	bob := h.store.AddUser("bob")
	team := h.store.AddTeam("core", alice.ID)
	foreign := h.store.AddTeam("foreign", bob.ID)
	one := h.channel(team.ID, "one")
	two := h.channel(team.ID, "two")
	closed := h.channel(foreign.ID, "closed")
	a := h.connect(alice)

	h.send(a, "forward_message", map[string]any{"channel_ids": []int{one.ID, closed.ID, two.ID}, "content": "fwd"})

	require.Equal(t, 1, h.store.MessageCount(one.ID))
	require.Equal(t, 1, h.store.MessageCount(two.ID))
	require.Equal(t, 0, h.store.MessageCount(closed.ID))
	got := frames(t, a)
	require.Len(t, got, 2)
	var msg models.Message
	require.NoError(t, json.Unmarshal(got[0].Payload, &msg))
	require.True(t, msg.IsForwarded)
}

func TestSendDirectMessage(t *testing.T) {
	h := newHarness(t)
	alice := h.store.AddUser("alice")
	bob := h.store.AddUser("bob")
	carol := h.store.AddUser("carol")
	team := h.store.AddTeam("core", alice.ID, bob.ID, carol.ID)
	general := h.channel(team.ID, "general")
	dm, _, err := h.repos.Channels.CreateOrGetDirectChannel(context.Background(), team.ID, alice.ID, bob.ID)
	require.NoError(t, err)
	a, b, c := h.connect(alice), h.connect(bob), h.connect(carol)

	h.send(a, "send_direct_message", map[string]any{"channel_id": dm.ID, "recipient_id": bob.ID, "content": "psst"})
	onlyFrame(t, b, models.EventChatMessage, nil)
	require.Empty(t, frames(t, c))
	frames(t, a)

	h.send(a, "send_direct_message", map[string]any{"channel_id": dm.ID, "recipient_id": carol.ID, "content": "wrong"})
	h.send(a, "send_direct_message", map[string]any{"channel_id": general.ID, "recipient_id": bob.ID, "content": "not a dm"})
	require.Equal(t, 1, h.store.MessageCount(dm.ID))
	require.Equal(t, 0, h.store.MessageCount(general.ID))
	require.Empty(t, frames(t, b))
}

func TestUnknownAndMalformedEventsAreIgnored(t *testing.T) {
	h := newHarness(t)
	alice := h.store.AddUser("alice")
	team := h.store.AddTeam("core", alice.ID)
	general := h.channel(team.ID, "general")
	a := h.connect(alice)

	h.send(a, "launch_rockets", map[string]any{"channel_id": general.ID})
	h.send(a, "send_channel_message", map[string]any{"channel_id": general.ID})
	h.router.Dispatch(context.Background(), a, []byte("{not json"))

	require.Empty(t, frames(t, a))
	require.Equal(t, 0, h.store.MessageCount(general.ID))
	require.Equal(t, ws.StateActive, a.State(), "connection stays open")

	h.send(a, "send_channel_message", map[string]any{"channel_id": general.ID, "content": "still here"})
	onlyFrame(t, a, models.EventChatMessage, nil)
}

func TestEventsOutsideActiveStateAreDropped(t *testing.T) {
	h := newHarness(t)
	alice := h.store.AddUser("alice")
	team := h.store.AddTeam("core", alice.ID)
	general := h.channel(team.ID, "general")

	c := ws.NewClient(nil, ws.ConnInfo{UserID: alice.ID, Username: "alice"}, 8, observability.DiscardLogger())
	c.Advance(ws.StateSubscribed)
	h.hub.Subscribe(groups.ChannelKey(general.ID), c)

	h.send(c, "send_channel_message", map[string]any{"channel_id": general.ID, "content": "early"})
	require.Equal(t, 0, h.store.MessageCount(general.ID))

	c.Close()
	h.send(c, "send_channel_message", map[string]any{"channel_id": general.ID, "content": "late"})
	require.Equal(t, 0, h.store.MessageCount(general.ID))
}

func TestHandlerPanicIsRecovered(t *testing.T) {
	channels := new(mocks.ChannelRepositoryMock)
	log := observability.DiscardLogger()
	hub := ws.NewHub(log)
	router := NewRouter(repositories.Set{Channels: channels}, hub, nil, executor.NewPool(1), nil, 10, log)

	channels.On("GetChannel", mock.Anything, 7).Panic("boom").Once()
	channels.On("GetChannel", mock.Anything, 8).Return(nil, repositories.ErrChannelNotFound).Once()

	c := ws.NewClient(nil, ws.ConnInfo{UserID: 1}, 8, log)
	c.Advance(ws.StateActive)

	require.NotPanics(t, func() {
		router.Dispatch(context.Background(), c, []byte(`{"message_type":"send_channel_message","channel_id":7,"content":"x"}`))
	})
	router.Dispatch(context.Background(), c, []byte(`{"message_type":"send_channel_message","channel_id":8,"content":"x"}`))

	assert.False(t, c.Closed())
	channels.AssertExpectations(t)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, observability.OutcomeOK, classify(nil))
	assert.Equal(t, observability.OutcomeDenied, classify(errDenied))
	assert.Equal(t, observability.OutcomeDenied, classify(repositories.ErrNotMessageSender))
	assert.Equal(t, observability.OutcomeNotFound, classify(repositories.ErrMessageNotFound))
	assert.Equal(t, observability.OutcomeInvalid, classify(repositories.ErrSelfDirectChat))
	assert.Equal(t, observability.OutcomePanic, classify(panicError{value: "x"}))
	assert.Equal(t, observability.OutcomeFailed, classify(assert.AnError))
}
