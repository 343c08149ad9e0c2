// Package bus provides an optional cross-process fan-out for hub events.
//
// The presence and room tables are process-wide; when REDIS_ADDR is
// configured, this package relays frames addressed to a single session
// between hub processes so the frame reaches that session wherever it is
// connected. The tables themselves are not shared. With no address configured,
// Service is nil and every method degrades to a no-op, so the hub runs
// single-process with no behavior change.
package bus

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/Preon1/lrcom/internal/v1/logging"
	"github.com/Preon1/lrcom/internal/v1/metrics"
)

// PubSubPayload is the envelope published to Redis for one hub event.
type PubSubPayload struct {
	Event      string          `json:"event"`   // "signal", "chat", "roomPeerJoined", ...
	Payload    json.RawMessage `json:"payload"` // the outbound frame, verbatim
	SenderID   string          `json:"senderId"`
	RoomID     string          `json:"roomId,omitempty"`
	TargetID   string          `json:"targetId,omitempty"` // the session this frame is addressed to
	ProcessID  string          `json:"processId"`          // originating process, for echo suppression
}

// Service wraps a Redis pub/sub connection behind a circuit breaker so a
// degraded Redis never blocks or panics the signaling hot path.
type Service struct {
	client    *redis.Client
	cb        *gobreaker.CircuitBreaker
	processID string
}

// NewService dials Redis, verifies connectivity once, and wires a circuit
// breaker around every subsequent call.
func NewService(addr, password string) (*Service, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	st := gobreaker.Settings{
		Name:        "redis",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     15 * time.Second,
		OnStateChange: func(name string, from, to gobreaker.State) {
			var stateVal float64
			switch to {
			case gobreaker.StateClosed:
				stateVal = 0
			case gobreaker.StateOpen:
				stateVal = 1
			case gobreaker.StateHalfOpen:
				stateVal = 2
			}
			metrics.CircuitBreakerState.WithLabelValues("redis").Set(stateVal)
		},
	}

	logging.Info(nil, "connected to redis pub/sub", zap.String("addr", addr))
	return &Service{client: rdb, cb: gobreaker.NewCircuitBreaker(st), processID: newProcessID()}, nil
}

func newProcessID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(b)
}

func (s *Service) channel() string { return "signalhub:events" }

// Client exposes the underlying redis.Client for callers (tests, health
// checks) that need to act on the connection directly.
func (s *Service) Client() *redis.Client { return s.client }

// Publish republishes a hub-produced frame so sibling processes can relay
// it to any locally-connected session. Echo prevention uses the envelope's
// ProcessID: Subscribe drops messages this same process published.
func (s *Service) Publish(ctx context.Context, event string, payload any, senderID, roomID, targetID string) error {
	if s == nil || s.client == nil {
		return nil
	}

	_, err := s.cb.Execute(func() (interface{}, error) {
		inner, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		msg := PubSubPayload{Event: event, Payload: inner, SenderID: senderID, RoomID: roomID, TargetID: targetID, ProcessID: s.processID}
		data, err := json.Marshal(msg)
		if err != nil {
			return nil, fmt.Errorf("marshal envelope: %w", err)
		}
		return nil, s.client.Publish(ctx, s.channel(), data).Err()
	})

	if err != nil {
		if err == gobreaker.ErrOpenState {
			metrics.CircuitBreakerFailures.WithLabelValues("redis").Inc()
			metrics.RedisOperationsTotal.WithLabelValues("publish", "breaker_open").Inc()
			logging.Warn(ctx, "redis circuit breaker open: dropping publish", zap.String("event", event))
			return nil
		}
		metrics.RedisOperationsTotal.WithLabelValues("publish", "error").Inc()
		logging.Error(ctx, "redis publish failed", zap.String("event", event), zap.Error(err))
		return err
	}
	metrics.RedisOperationsTotal.WithLabelValues("publish", "ok").Inc()
	return nil
}

// Subscribe starts a background goroutine forwarding every message received
// on the shared events channel to handler, until ctx is cancelled.
func (s *Service) Subscribe(ctx context.Context, wg *sync.WaitGroup, handler func(PubSubPayload)) {
	if s == nil || s.client == nil {
		return
	}

	pubsub := s.client.Subscribe(ctx, s.channel())
	if wg != nil {
		wg.Add(1)
	}
	go func() {
		defer pubsub.Close()
		if wg != nil {
			defer wg.Done()
		}

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var payload PubSubPayload
				if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
					logging.Error(ctx, "failed to unmarshal redis message", zap.Error(err))
					continue
				}
				if payload.ProcessID == s.processID {
					// Redis fans a publish back out to its own publisher;
					// this process already delivered the frame locally.
					continue
				}
				handler(payload)
			}
		}
	}()
}

// Ping verifies Redis connectivity for health checks.
func (s *Service) Ping(ctx context.Context) error {
	if s == nil || s.client == nil {
		return nil
	}
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.client.Ping(ctx).Err()
	})
	if err != nil && err == gobreaker.ErrOpenState {
		metrics.CircuitBreakerFailures.WithLabelValues("redis").Inc()
	}
	return err
}

// Close shuts down the underlying Redis connection.
func (s *Service) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
