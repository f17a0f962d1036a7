package sync

import (
	"encoding/base64"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Frame kinds on the sync channel. Update and awareness share one
// connection as two logical streams.
const (
	FrameSync          = "sync"
	FrameUpdate        = "update"
	FrameAwareness     = "awareness"
	FrameAwarenessGone = "awareness_gone"
)

// Frame is the wire envelope for both streams.
type Frame struct {
	Type string `json:"type"`
	// Data carries the base64 CRDT payload for sync/update frames.
	Data string `json:"data,omitempty"`
	// ConnID identifies whose presence a frame describes.
	ConnID   uint64    `json:"conn_id,omitempty"`
	Presence *Presence `json:"presence,omitempty"`
}

// Presence is the ephemeral per-connection awareness state. It lives
// exactly as long as the socket, last write wins per connection.
type Presence struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Color       string `json:"color"`
}

func encodeFramePayload(raw []byte) string {
	return base64.StdEncoding.EncodeToString(raw)
}

func decodeFramePayload(data string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(data)
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
)

// client is one websocket connection joined to a room.
type client struct {
	id     uint64
	userID string
	// role is fixed at connect time; a revocation mid-session takes
	// effect on reconnect only
	role     string
	readOnly bool
	room     *room
	conn     *websocket.Conn

	// sendMu guards send against close: broadcasters snapshot their
	// targets before enqueueing, so a departing client can still be
	// enqueued to after it left the room
	sendMu     sync.Mutex
	sendClosed bool
	send       chan []byte
}

// readPump relays inbound frames to the room until the socket dies.
func (c *client) readPump() {
	defer func() {
		c.room.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			continue // malformed frames are dropped, never broadcast
		}
		c.room.handleFrame(c, frame)
	}
}

// writePump drains the send channel onto the socket and keeps the
// connection alive with pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case raw, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// enqueue queues a presence frame. A client that can't keep up misses
// it and self-heals on the next presence frame, so a full buffer drops.
func (c *client) enqueue(raw []byte) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendClosed {
		return
	}
	select {
	case c.send <- raw:
	default:
	}
}

// enqueueOrDisconnect queues a document frame. A replica that misses an
// update can never converge again, so instead of dropping the frame the
// client is cut off and re-bootstraps from the sync frame on reconnect.
func (c *client) enqueueOrDisconnect(raw []byte) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendClosed {
		return
	}
	select {
	case c.send <- raw:
	default:
		c.sendClosed = true
		close(c.send)
	}
}

// closeSend shuts the outbound channel exactly once, no matter how many
// paths race to it.
func (c *client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendClosed {
		return
	}
	c.sendClosed = true
	close(c.send)
}
