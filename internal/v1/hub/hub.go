package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Preon1/lrcom/internal/v1/bus"
	"github.com/Preon1/lrcom/internal/v1/logging"
	"github.com/Preon1/lrcom/internal/v1/metrics"
	"github.com/Preon1/lrcom/internal/v1/presence"
	"github.com/Preon1/lrcom/internal/v1/push"
	"github.com/Preon1/lrcom/internal/v1/room"
	"github.com/Preon1/lrcom/internal/v1/signaling"
	"github.com/Preon1/lrcom/internal/v1/turn"
)

// Hub is the supervisor: it owns every shared table behind one coarse
// mutex, accepts connections, and drives each one's read/write pumps —
// accept, construct session, spawn pumps, remove on close.
type Hub struct {
	mu sync.Mutex

	presence *presence.Registry
	rooms    *room.Registry
	push     *push.Store
	sink     push.Sink

	turnCfg turn.Config
	https   bool

	bus *bus.Service

	shutdownOnce sync.Once
	done         chan struct{}
}

// New constructs a Hub. busService may be nil: cross-process fan-out is
// then skipped, since Redis is optional.
func New(turnCfg turn.Config, https bool, sink push.Sink, busService *bus.Service) *Hub {
	presenceReg := presence.NewRegistry()
	h := &Hub{
		presence: presenceReg,
		rooms:    room.NewRegistry(presenceReg),
		push:     push.NewStore(),
		sink:     sink,
		turnCfg:  turnCfg,
		https:    https,
		bus:      busService,
		done:     make(chan struct{}),
	}
	return h
}

// Accept generates an id, constructs the session, inserts it, sends
// hello, and spawns the pumps. It blocks until the connection closes.
func (h *Hub) Accept(ctx context.Context, conn *websocket.Conn, clientAddr string) {
	id := signaling.NewID()
	metrics.IncConnection()

	h.mu.Lock()
	sess := &presence.Session{ID: id}
	client := NewClient(id, conn, func() { h.handleDisconnect(id) })
	sess.Channel = client
	h.presence.Attach(sess)
	h.mu.Unlock()

	h.sendHello(sess, clientAddr)

	go client.WritePump()
	client.ReadPump(ctx, func(raw []byte) {
		h.dispatch(id, raw)
	})
}

func (h *Hub) sendHello(sess *presence.Session, clientAddr string) {
	ice := turn.BuildIceConfig(h.turnCfg, time.Now())
	warning := ""
	if turn.NeedsWarning(h.turnCfg.URLs, clientAddr) {
		warning = turn.Warning
	}

	h.mu.Lock()
	voice := turn.ComputeVoiceStats(h.turnCfg, h.rooms.Sizes(), h.rooms.RoomsWithAtLeast(2))
	h.mu.Unlock()

	sess.Channel.Send(helloFrame{
		Type:        "hello",
		ID:          sess.ID,
		Turn:        ice,
		HTTPS:       h.https,
		ClientIP:    turn.FormatClientIP(clientAddr),
		TurnWarning: warning,
		Voice:       voice,
	})
}

// Shutdown closes every live connection and stops accepting new frames.
// Called once, from the server's graceful-shutdown path. Each teardown runs
// its onClose callback (handleDisconnect), which re-acquires h.mu itself, so
// the client list is collected and the lock released before any of them
// run — the shared-state lock is never held across a suspension point,
// and onClose is exactly that from Shutdown's point of view.
func (h *Hub) Shutdown() {
	h.shutdownOnce.Do(func() {
		close(h.done)

		h.mu.Lock()
		clients := make([]*Client, 0, h.presence.Count())
		h.presence.Each(func(s *presence.Session) {
			if c, ok := s.Channel.(*Client); ok {
				clients = append(clients, c)
			}
		})
		h.mu.Unlock()

		for _, c := range clients {
			c.teardown()
		}
	})
}

// broadcastPresence sends every named session the current presence
// snapshot. Must be called with h.mu held, after the triggering mutation
// is committed.
func (h *Hub) broadcastPresence() {
	snapshot := h.presence.Snapshot()
	users := make([]presenceUser, len(snapshot))
	for i, e := range snapshot {
		users[i] = presenceUser{ID: e.ID, Name: e.Name, Busy: e.Busy}
	}
	voice := turn.ComputeVoiceStats(h.turnCfg, h.rooms.Sizes(), h.rooms.RoomsWithAtLeast(2))
	frame := presenceFrame{Type: "presence", Users: users, Voice: voice}

	metrics.NamedSessions.Set(float64(len(users)))
	metrics.ActiveRooms.Set(float64(h.rooms.Count()))

	h.presence.Each(func(s *presence.Session) {
		if s.Name != "" {
			s.Channel.Send(frame)
		}
	})
}

// broadcastSystemChat sends a public System-authored chat line to every
// named session (used for join/leave announcements).
func (h *Hub) broadcastSystemChat(text string) {
	frame := chatFrame{
		Type:     "chat",
		AtISO:    time.Now().UTC().Format(time.RFC3339),
		From:     "system",
		FromName: "System",
		Text:     text,
		Private:  false,
	}
	h.presence.Each(func(s *presence.Session) {
		if s.Name != "" {
			s.Channel.Send(frame)
		}
	})
}

// notifyPush delivers payload through the push sink for sessionID, if a
// subscription and an enabled sink both exist. Callers always hold h.mu
// (notifyPush is only ever invoked from within dispatch's frame handlers);
// the subscription blob is read here under that lock, and the network call
// happens in a spawned goroutine after the caller releases it — the
// shared-state lock must never be held across a push sink call.
func (h *Hub) notifyPush(sessionID string, payload any) {
	if h.sink == nil || !h.sink.Enabled() {
		return
	}
	sub, ok := h.push.Get(sessionID)
	if !ok {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.sink.Send(ctx, sub, payload); err == push.ErrGone {
			h.mu.Lock()
			h.push.Remove(sessionID)
			h.mu.Unlock()
		}
	}()
}

// publishBusEvent fans an event out to other processes, if a bus is
// configured. Always called from within dispatch while h.mu is held; the
// actual network call is deferred to a spawned goroutine so the lock is
// never held across it, matching notifyPush's shape. Best effort:
// failures are logged by bus.Service and never surfaced to the client.
func (h *Hub) publishBusEvent(event string, payload any, senderID, roomID, targetID string) {
	if h.bus == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.bus.Publish(ctx, event, payload, senderID, roomID, targetID); err != nil {
			logging.Warn(ctx, "bus publish failed", zap.String("event", event), zap.Error(err))
		}
	}()
}

// RunBusSubscriber wires inbound cross-process events back into local
// clients. Only meaningful when a bus.Service is configured; otherwise a
// no-op. It returns immediately; the subscription runs in a background
// goroutine until ctx is cancelled.
func (h *Hub) RunBusSubscriber(ctx context.Context, wg *sync.WaitGroup) {
	if h.bus == nil {
		return
	}
	h.bus.Subscribe(ctx, wg, func(p bus.PubSubPayload) {
		h.mu.Lock()
		defer h.mu.Unlock()
		target, ok := h.presence.Get(p.TargetID)
		if !ok || !target.Channel.Ready() {
			return
		}
		var raw json.RawMessage = p.Payload
		target.Channel.Send(raw)
	})
}
