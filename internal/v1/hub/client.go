package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Preon1/lrcom/internal/v1/logging"
	"github.com/Preon1/lrcom/internal/v1/metrics"
)

const (
	writeWait      = 10 * time.Second
	maxFrameBytes  = 32 * 1024
	sendBufferSize = 16
)

// Client is one live duplex channel: a session's view onto its websocket
// connection. It implements presence.Channel. Frames are delivered through
// a buffered channel and a single writer goroutine, so Send never blocks
// the caller on socket I/O and delivery order per target is preserved
// without holding any lock across I/O.
type Client struct {
	id        string
	conn      *websocket.Conn
	outbox    chan any
	closeCh   chan struct{}
	closeOnce sync.Once
	onClose   func()
}

// NewClient wraps conn for session id. onClose is invoked exactly once,
// from whichever of the read pump or Hub.Shutdown tears the client down
// first.
func NewClient(id string, conn *websocket.Conn, onClose func()) *Client {
	return &Client{
		id:      id,
		conn:    conn,
		outbox:  make(chan any, sendBufferSize),
		closeCh: make(chan struct{}),
		onClose: onClose,
	}
}

// Send enqueues frame for delivery. Implements presence.Channel. Never
// blocks: if the outbox is full the connection is considered unhealthy and
// the frame is dropped rather than stalling the hub's single dispatch path.
func (c *Client) Send(frame any) {
	select {
	case c.outbox <- frame:
	case <-c.closeCh:
	default:
		logging.Warn(context.Background(), "client outbox full, dropping frame",
			zap.String("session_id", c.id))
	}
}

// Ready implements presence.Channel.
func (c *Client) Ready() bool {
	select {
	case <-c.closeCh:
		return false
	default:
		return true
	}
}

// RemoteAddr returns the underlying connection's remote address string,
// used once at accept time to derive clientIp and the TURN loopback
// warning.
func (c *Client) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// ReadPump decodes inbound frames and hands each one to dispatch. It
// blocks until a read from the connection fails (close or transport
// error), then runs onClose exactly once and tears down the write pump.
func (c *Client) ReadPump(ctx context.Context, dispatch func(raw []byte)) {
	defer c.teardown()

	c.conn.SetReadLimit(maxFrameBytes)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		dispatch(data)
	}
}

// WritePump drains the outbox to the socket, one frame per write, in
// enqueue order: outbound frames to a single target are always delivered
// in the order they were enqueued.
func (c *Client) WritePump() {
	for {
		select {
		case frame, ok := <-c.outbox:
			if !ok {
				return
			}
			c.writeJSON(frame)
		case <-c.closeCh:
			return
		}
	}
}

func (c *Client) writeJSON(frame any) {
	b, err := json.Marshal(frame)
	if err != nil {
		logging.Error(context.Background(), "marshal outbound frame failed", zap.Error(err))
		return
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		return
	}
}

// teardown closes the connection and runs onClose. Safe to call from both
// the read pump and Shutdown; only the first call has any effect.
func (c *Client) teardown() {
	c.closeOnce.Do(func() {
		close(c.closeCh)
		c.conn.Close()
		metrics.DecConnection()
		if c.onClose != nil {
			c.onClose()
		}
	})
}
