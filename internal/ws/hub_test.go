package ws

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamchat-service/internal/models"
	"teamchat-service/internal/observability"
)

func newTestClient(userID, buffer int) *Client {
	return NewClient(nil, ConnInfo{ConnID: newConnID(), UserID: userID}, buffer, observability.DiscardLogger())
}

func drain(c *Client) []models.EventType {
	var types []models.EventType
	for {
		select {
		case payload := <-c.Outbound():
			var env struct {
				Type models.EventType `json:"type"`
			}
			if err := json.Unmarshal(payload, &env); err == nil {
				types = append(types, env.Type)
			}
		default:
			return types
		}
	}
}

func TestHubSubscribeAndBroadcast(t *testing.T) {
	hub := NewHub(observability.DiscardLogger())
	a := newTestClient(1, 8)
	b := newTestClient(2, 8)

	require.True(t, hub.Subscribe("channel:1", a))
	require.True(t, hub.Subscribe("channel:1", b))
	require.True(t, hub.Subscribe("channel:2", b))

	n := hub.Broadcast("channel:1", models.Envelope{Type: models.EventChatMessage, Payload: map[string]int{"id": 1}})
	require.Equal(t, 2, n)
	require.Equal(t, []models.EventType{models.EventChatMessage}, drain(a))
	require.Equal(t, []models.EventType{models.EventChatMessage}, drain(b))

	require.Equal(t, 0, hub.Broadcast("channel:9", models.Envelope{Type: models.EventChatMessage}))
}

func TestHubUnsubscribeUnknownIsNoop(t *testing.T) {
	hub := NewHub(observability.DiscardLogger())
	c := newTestClient(1, 1)

	require.NotPanics(t, func() { hub.Unsubscribe("team:4", c) })
	require.Equal(t, 0, hub.Count("team:4"))

	hub.Subscribe("team:4", c)
	hub.Unsubscribe("team:4", c)
	require.Equal(t, 0, hub.Count("team:4"))
	require.Empty(t, c.Subscriptions())
}

func TestHubRemoveLeavesNoReferences(t *testing.T) {
	hub := NewHub(observability.DiscardLogger())
	c := newTestClient(1, 8)
	keys := []string{"user:1", "team:1", "team:2", "channel:1", "channel:2", "channel:3"}
	for _, key := range keys {
		hub.Subscribe(key, c)
	}
	require.Len(t, hub.Subscriptions(c), 6)

	removed := hub.Remove(c)
	require.ElementsMatch(t, keys, removed)
	require.True(t, c.Closed())
	for _, key := range keys {
		assert.Equal(t, 0, hub.Broadcast(key, models.Envelope{Type: models.EventUserPresence}), key)
	}
	require.Equal(t, HubStats{}, hub.Stats())

	require.False(t, hub.Subscribe("channel:1", c), "closed clients cannot rejoin")
	require.Equal(t, 0, hub.Count("channel:1"))
}

func TestClosedClientNeverReceives(t *testing.T) {
	hub := NewHub(observability.DiscardLogger())
	c := newTestClient(1, 8)
	hub.Subscribe("channel:1", c)
	c.Close()

	require.Equal(t, 0, hub.Broadcast("channel:1", models.Envelope{Type: models.EventChatMessage}))
	require.Empty(t, drain(c))
	require.Equal(t, 0, hub.Count("channel:1"), "closed client pruned by the broadcast")
}

func TestSlowConsumerIsClosedAndPruned(t *testing.T) {
	hub := NewHub(observability.DiscardLogger())
	slow := newTestClient(1, 1)
	fast := newTestClient(2, 8)
	hub.Subscribe("channel:1", slow)
	hub.Subscribe("channel:1", fast)

	require.Equal(t, 2, hub.Broadcast("channel:1", models.Envelope{Type: models.EventChatMessage}))
	require.Equal(t, 1, hub.Broadcast("channel:1", models.Envelope{Type: models.EventMessageEdited}))

	require.True(t, slow.Closed())
	require.Equal(t, StateClosed, slow.State())
	require.Equal(t, 1, hub.Count("channel:1"))
	require.Len(t, drain(fast), 2)
}

func TestFollowSubscribesLiveConnections(t *testing.T) {
	hub := NewHub(observability.DiscardLogger())
	a1 := newTestClient(1, 8)
	a2 := newTestClient(1, 8)
	hub.Subscribe("team:1", a1)
	hub.Subscribe("team:1", a2)

	require.Equal(t, 2, hub.Follow("team:1", "channel:5"))
	require.Equal(t, 2, hub.Count("channel:5"))
	require.Contains(t, a1.Subscriptions(), "channel:5")
}

func TestClientTeamsSurviveUnsubscribeAndRemove(t *testing.T) {
	hub := NewHub(observability.DiscardLogger())
	c := newTestClient(1, 8)
	hub.Subscribe("user:1", c)
	hub.Subscribe("team:3", c)
	hub.Subscribe("channel:9", c)
	hub.Follow("user:1", "team:7")

	hub.Unsubscribe("team:3", c)
	require.Equal(t, []string{"channel:9", "team:7", "user:1"}, c.Subscriptions())
	require.Equal(t, []int{3, 7}, c.Teams())

	hub.Remove(c)
	require.Empty(t, c.Subscriptions())
	require.Equal(t, []int{3, 7}, c.Teams())
}

func TestHubConcurrentSubscribeRemove(t *testing.T) {
	hub := NewHub(observability.DiscardLogger())
	var wg sync.WaitGroup
	clients := make([]*Client, 50)
	for i := range clients {
		clients[i] = newTestClient(i+1, 4)
	}

	for _, c := range clients {
		wg.Add(2)
		go func(c *Client) {
			defer wg.Done()
			for k := 0; k < 20; k++ {
				hub.Subscribe(fmt.Sprintf("channel:%d", k), c)
			}
		}(c)
		go func(c *Client) {
			defer wg.Done()
			hub.Broadcast("channel:0", models.Envelope{Type: models.EventChatMessage})
		}(c)
	}
	wg.Wait()

	for _, c := range clients {
		hub.Remove(c)
	}
	require.Equal(t, HubStats{}, hub.Stats())
}

func TestStateOnlyMovesForward(t *testing.T) {
	c := newTestClient(1, 1)
	require.Equal(t, StateConnecting, c.State())
	require.True(t, c.Advance(StateSubscribed))
	require.False(t, c.Advance(StateAuthenticated))
	require.True(t, c.Advance(StateActive))
	c.Close()
	require.False(t, c.Advance(StateActive))
	require.Equal(t, "closed", c.State().String())
}
