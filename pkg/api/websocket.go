package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/bgforge/gnubgcore/pkg/engine"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins - configure properly in production
	},
}

// WSMessage is a client message on the rollout socket.
type WSMessage struct {
	Type    string          `json:"type"`              // "rollout", "cancel" or "ping"
	ID      string          `json:"id"`                // Request ID for correlating responses
	Payload json.RawMessage `json:"payload,omitempty"` // RolloutRequest for "rollout"
}

// WSResponse is a server message on the rollout socket.
type WSResponse struct {
	Type    string `json:"type"`              // "progress", "result", "error", "pong"
	ID      string `json:"id,omitempty"`      // Request ID
	Payload any    `json:"payload,omitempty"` // Response data
	Error   string `json:"error,omitempty"`   // Error message if any
}

// wsClient is one connection. Only writePump writes to the socket, only
// readPump reads. At most one rollout runs per connection.
type wsClient struct {
	conn *websocket.Conn
	h    *Handlers
	send chan WSResponse
	done chan struct{}

	mu      sync.Mutex
	cancel  context.CancelFunc
	running sync.WaitGroup
}

// RolloutWebSocket handles GET /api/rollout/ws. A client sends
// {"type":"rollout","payload":{...}} and receives "progress" messages
// followed by one "result"; "cancel" stops the running rollout, which
// then reports a stopped result.
func (h *Handlers) RolloutWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil {
		writeError(w, http.StatusServiceUnavailable, "engine not loaded", "NOT_READY")
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	c := &wsClient{
		conn: conn,
		h:    h,
		send: make(chan WSResponse, 256),
		done: make(chan struct{}),
	}
	go c.writePump()
	c.readPump(r.Context())
}

// post queues a message unless the connection is gone. Progress
// messages are dropped while the send buffer is full so a slow reader
// never holds up the rollout workers.
func (c *wsClient) post(msg WSResponse) {
	if msg.Type == "progress" {
		select {
		case c.send <- msg:
		case <-c.done:
		default:
		}
		return
	}
	select {
	case c.send <- msg:
	case <-c.done:
	}
}

func (c *wsClient) writePump() {
	for {
		select {
		case msg := <-c.send:
			if err := c.conn.WriteJSON(msg); err != nil {
				c.conn.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *wsClient) readPump(ctx context.Context) {
	defer func() {
		close(c.done)
		c.stop()
		c.running.Wait()
		c.conn.Close()
	}()
	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case "rollout":
			c.startRollout(ctx, msg)
		case "cancel":
			c.stop()
		case "ping":
			c.post(WSResponse{Type: "pong", ID: msg.ID})
		default:
			c.post(WSResponse{Type: "error", ID: msg.ID, Error: "unknown message type"})
		}
	}
}

func (c *wsClient) stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *wsClient) startRollout(ctx context.Context, msg WSMessage) {
	var req RolloutRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		c.post(WSResponse{Type: "error", ID: msg.ID, Error: "invalid payload"})
		return
	}
	b, err := parseBoard(req.Position)
	if err != nil {
		c.post(WSResponse{Type: "error", ID: msg.ID, Error: err.Error()})
		return
	}
	ci, err := cubeInfo(req.GameParams)
	if err != nil {
		c.post(WSResponse{Type: "error", ID: msg.ID, Error: err.Error()})
		return
	}
	rc, err := c.h.rolloutContext(&req)
	if err != nil {
		c.post(WSResponse{Type: "error", ID: msg.ID, Error: err.Error()})
		return
	}

	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		c.post(WSResponse{Type: "error", ID: msg.ID, Error: "a rollout is already running"})
		return
	}
	rctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	c.running.Add(1)
	go func() {
		defer c.running.Done()
		defer func() {
			c.mu.Lock()
			c.cancel = nil
			c.mu.Unlock()
			cancel()
		}()

		if pool := c.h.pool; pool != nil {
			release, err := pool.Acquire(rctx, KindRollout, 0)
			if err != nil {
				c.post(WSResponse{Type: "error", ID: msg.ID, Error: "server busy"})
				return
			}
			defer release()
		}

		progress := func(p engine.RolloutProgress) {
			c.post(WSResponse{Type: "progress", ID: msg.ID, Payload: p})
		}
		res, err := c.h.engine.Rollout(rctx, b, ci, rc, progress)
		if err != nil {
			c.post(WSResponse{Type: "error", ID: msg.ID, Error: err.Error()})
			return
		}
		c.post(WSResponse{Type: "result", ID: msg.ID, Payload: rolloutResponse(req.Position, res)})
	}()
}
