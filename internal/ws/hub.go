package ws

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/cespare/xxhash/v2"

	"teamchat-service/internal/models"
	"teamchat-service/internal/observability"
)

const shardCount = 32

type shard struct {
	mu     sync.RWMutex
	groups map[string]map[*Client]struct{}
}

// Hub maps group keys to the live connections subscribed to them.
// Keys are spread over independently locked shards.
type Hub struct {
	shards [shardCount]*shard
	log    *slog.Logger
}

// HubStats is a point-in-time view of the registry.
type HubStats struct {
	Groups        int `json:"groups"`
	Subscriptions int `json:"subscriptions"`
	Clients       int `json:"clients"`
}

// NewHub creates an empty hub.
func NewHub(log *slog.Logger) *Hub {
	h := &Hub{log: log}
	for i := range h.shards {
		h.shards[i] = &shard{groups: make(map[string]map[*Client]struct{})}
	}
	return h
}

func (h *Hub) shard(key string) *shard {
	return h.shards[xxhash.Sum64String(key)%shardCount]
}

// Subscribe adds c to key. It reports false when c is already closed, in
// which case nothing stays registered.
func (h *Hub) Subscribe(key string, c *Client) bool {
	if c.Closed() {
		return false
	}
	sh := h.shard(key)
	sh.mu.Lock()
	members, ok := sh.groups[key]
	if !ok {
		members = make(map[*Client]struct{})
		sh.groups[key] = members
	}
	members[c] = struct{}{}
	sh.mu.Unlock()
	c.addSub(key)

	// A concurrent Remove may have drained c before addSub ran.
	if c.Closed() {
		h.Unsubscribe(key, c)
		return false
	}
	return true
}

// Unsubscribe removes c from key. Unknown pairs are ignored.
func (h *Hub) Unsubscribe(key string, c *Client) {
	h.detach(key, c)
	c.removeSub(key)
}

func (h *Hub) detach(key string, c *Client) {
	sh := h.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if members, ok := sh.groups[key]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(sh.groups, key)
		}
	}
}

// Remove closes c and detaches it from every group it joined, returning those keys.
func (h *Hub) Remove(c *Client) []string {
	c.Close()
	keys := c.drainSubs()
	for _, key := range keys {
		h.detach(key, c)
	}
	return keys
}

// Subscriptions lists the keys c is subscribed to.
func (h *Hub) Subscriptions(c *Client) []string {
	return c.Subscriptions()
}

func (h *Hub) members(key string) []*Client {
	sh := h.shard(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	members := sh.groups[key]
	out := make([]*Client, 0, len(members))
	for c := range members {
		out = append(out, c)
	}
	return out
}

// Count returns the number of connections subscribed to key.
func (h *Hub) Count(key string) int {
	sh := h.shard(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return len(sh.groups[key])
}

// Broadcast delivers env once to every open connection subscribed to key
// and returns how many accepted it. The envelope is encoded once.
func (h *Hub) Broadcast(key string, env models.Envelope) int {
	payload, err := json.Marshal(env)
	if err != nil {
		h.log.Error("marshal envelope failed", "group", key, "type", env.Type, "error", err)
		return 0
	}

	delivered := 0
	var dropped []*Client
	for _, c := range h.members(key) {
		if c.Send(payload) {
			delivered++
			continue
		}
		dropped = append(dropped, c)
	}
	for _, c := range dropped {
		h.Remove(c)
	}
	observability.ObserveBroadcast(delivered)
	h.log.Debug("broadcast", "group", key, "type", env.Type, "delivered", delivered)
	return delivered
}

// Follow subscribes every connection of source to target. It is used when a
// membership mutation gives existing sessions access to a new group.
func (h *Hub) Follow(source, target string) int {
	n := 0
	for _, c := range h.members(source) {
		if h.Subscribe(target, c) {
			n++
		}
	}
	return n
}

// CloseAll closes every registered connection with code and text.
func (h *Hub) CloseAll(code int, text string) int {
	clients := make(map[*Client]struct{})
	for _, sh := range h.shards {
		sh.mu.RLock()
		for _, members := range sh.groups {
			for c := range members {
				clients[c] = struct{}{}
			}
		}
		sh.mu.RUnlock()
	}
	for c := range clients {
		c.CloseWith(code, text)
	}
	return len(clients)
}

// Stats walks every shard.
func (h *Hub) Stats() HubStats {
	var stats HubStats
	clients := make(map[*Client]struct{})
	for _, sh := range h.shards {
		sh.mu.RLock()
		stats.Groups += len(sh.groups)
		for _, members := range sh.groups {
			stats.Subscriptions += len(members)
			for c := range members {
				clients[c] = struct{}{}
			}
		}
		sh.mu.RUnlock()
	}
	stats.Clients = len(clients)
	return stats
}
