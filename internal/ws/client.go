package ws

import (
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"teamchat-service/internal/groups"
	"teamchat-service/internal/models"
	"teamchat-service/internal/observability"
)

const writeWait = 10 * time.Second

// Client is one live connection. Outbound frames go through a bounded
// buffer drained by the write pump; a full buffer closes the client.
type Client struct {
	info ConnInfo
	conn *websocket.Conn
	log  *slog.Logger

	send chan []byte
	done chan struct{}

	state     atomic.Int32
	closeOnce sync.Once
	closeCode int
	closeText string

	mu   sync.Mutex
	subs map[string]struct{}
	// teams outlives subs: leave_team and pruning drop subscriptions but
	// presence still has to go offline for every team the session joined.
	teams map[int]struct{}
}

// NewClient wraps conn. conn may be nil for connections that are never pumped.
func NewClient(conn *websocket.Conn, info ConnInfo, bufferSize int, log *slog.Logger) *Client {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Client{
		info: info,
		conn: conn,
		log: log.With(
			"conn_id", info.ConnID,
			"user_id", info.UserID,
			"request_id", info.RequestID,
			"trace_id", info.TraceID,
		),
		send: make(chan []byte, bufferSize),
		done: make(chan struct{}),
		subs:  make(map[string]struct{}),
		teams: make(map[int]struct{}),
	}
}

func (c *Client) Info() ConnInfo {
	return c.info
}

func (c *Client) UserID() int {
	return c.info.UserID
}

func (c *Client) Logger() *slog.Logger {
	return c.log
}

func (c *Client) State() State {
	return State(c.state.Load())
}

// Advance moves the session to next if that is a forward transition.
func (c *Client) Advance(next State) bool {
	for {
		cur := c.state.Load()
		if State(cur) >= next {
			return false
		}
		if c.state.CompareAndSwap(cur, int32(next)) {
			return true
		}
	}
}

// Done is closed when the client is closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Close marks the client closed with a normal closure.
func (c *Client) Close() {
	c.CloseWith(websocket.CloseNormalClosure, "")
}

// CloseWith marks the client closed. The write pump sends a close frame
// carrying code and text, then tears the transport down.
func (c *Client) CloseWith(code int, text string) {
	c.closeOnce.Do(func() {
		c.closeCode = code
		c.closeText = text
		c.state.Store(int32(StateClosed))
		close(c.done)
	})
}

// Send queues payload. It never blocks and is a no-op on a closed client.
func (c *Client) Send(payload []byte) bool {
	if c.Closed() {
		return false
	}
	select {
	case c.send <- payload:
		return true
	case <-c.done:
		return false
	default:
		observability.IncSlowConsumer()
		c.log.Warn("send buffer full, closing slow consumer")
		c.CloseWith(websocket.ClosePolicyViolation, "slow consumer")
		return false
	}
}

// SendEnvelope writes a reply to this connection only.
func (c *Client) SendEnvelope(env models.Envelope) bool {
	payload, err := json.Marshal(env)
	if err != nil {
		c.log.Error("marshal envelope failed", "type", env.Type, "error", err)
		return false
	}
	return c.Send(payload)
}

// Outbound exposes queued frames. Only the write pump, or a test standing in
// for it, may read from it.
func (c *Client) Outbound() <-chan []byte {
	return c.send
}

// Subscriptions returns the group keys recorded on the client, sorted.
func (c *Client) Subscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.subs))
	for key := range c.subs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Teams returns every team the session has been subscribed to, sorted.
func (c *Client) Teams() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]int, 0, len(c.teams))
	for id := range c.teams {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (c *Client) addSub(key string) {
	c.mu.Lock()
	c.subs[key] = struct{}{}
	if id, ok := groups.ParseTeamKey(key); ok {
		c.teams[id] = struct{}{}
	}
	c.mu.Unlock()
}

func (c *Client) removeSub(key string) {
	c.mu.Lock()
	delete(c.subs, key)
	c.mu.Unlock()
}

func (c *Client) drainSubs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.subs))
	for key := range c.subs {
		keys = append(keys, key)
	}
	c.subs = make(map[string]struct{})
	sort.Strings(keys)
	return keys
}

// writePump drains the send buffer to the socket and keeps the peer alive
// with pings. It owns every write on the connection.
func (c *Client) writePump(pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.writeClose()
			return
		case payload := <-c.send:
			if c.Closed() {
				c.writeClose()
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.log.Debug("websocket write failed", "error", err)
				c.CloseWith(websocket.CloseAbnormalClosure, err.Error())
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.log.Debug("websocket ping failed", "error", err)
				c.CloseWith(websocket.CloseAbnormalClosure, err.Error())
				return
			}
		}
	}
}

func (c *Client) writeClose() {
	if c.closeCode == websocket.CloseAbnormalClosure {
		return
	}
	msg := websocket.FormatCloseMessage(c.closeCode, c.closeText)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
