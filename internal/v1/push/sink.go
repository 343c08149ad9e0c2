package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/Preon1/lrcom/internal/v1/logging"
	"github.com/Preon1/lrcom/internal/v1/metrics"
)

// Sink abstracts the external push gateway: the production implementation
// talks to a Web Push gateway, tests use the no-op sink or an httptest
// server. No Web Push /
// VAPID client library appears anywhere in the source corpus this module
// was grounded on (see DESIGN.md), so the gateway call itself is built on
// net/http; the resilience wrapper around it (circuit breaker, metrics)
// follows the same pattern as the bus package's Redis client.
type Sink interface {
	// Enabled reports whether the sink is configured at all.
	Enabled() bool
	// Send delivers payload to the gateway endpoint described by
	// subscription. A Gone error (HTTP 404/410) means the subscription
	// should be dropped; the caller ignores any other error.
	Send(ctx context.Context, subscription []byte, payload any) error
}

// ErrGone indicates the push gateway reported the subscription as
// permanently invalid (404 or 410).
var ErrGone = fmt.Errorf("push: subscription gone")

// noopSink is used whenever VAPID keys are not configured.
type noopSink struct{}

func (noopSink) Enabled() bool { return false }
func (noopSink) Send(context.Context, []byte, any) error {
	return nil
}

// NewNoop returns a Sink that does nothing, for when push is disabled.
func NewNoop() Sink { return noopSink{} }

// HTTPSink posts a JSON payload to a configured Web Push gateway URL,
// wrapped in a circuit breaker so a persistently failing gateway degrades
// (stops being hammered) instead of adding latency to every chat/call
// event. Sink calls must happen off the shared-state lock; this type is
// only ever invoked after the lock is released.
type HTTPSink struct {
	gatewayURL string
	client     *http.Client
	cb         *gobreaker.CircuitBreaker
}

// NewHTTPSink builds a Sink that posts to gatewayURL, the push gateway's
// ingestion endpoint. The request carries only the JSON envelope and a
// Content-Type header; no VAPID key material is sent to the gateway.
func NewHTTPSink(gatewayURL string) *HTTPSink {
	st := gobreaker.Settings{
		Name:        "push_sink",
		MaxRequests: 3,
		Interval:    1 * time.Minute,
		Timeout:     30 * time.Second,
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
			metrics.CircuitBreakerState.WithLabelValues("push_sink").Set(stateVal)
		},
	}

	return &HTTPSink{
		gatewayURL: gatewayURL,
		client:     &http.Client{Timeout: 5 * time.Second},
		cb:         gobreaker.NewCircuitBreaker(st),
	}
}

func (s *HTTPSink) Enabled() bool { return s.gatewayURL != "" }

func (s *HTTPSink) Send(ctx context.Context, subscription []byte, payload any) error {
	start := time.Now()
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.deliver(ctx, subscription, payload)
	})
	duration := time.Since(start).Seconds()

	switch {
	case err == nil:
		metrics.PushDeliveries.WithLabelValues("ok").Inc()
		metrics.PushDeliveryDuration.WithLabelValues("ok").Observe(duration)
		return nil
	case err == gobreaker.ErrOpenState, err == gobreaker.ErrTooManyRequests:
		metrics.CircuitBreakerFailures.WithLabelValues("push_sink").Inc()
		metrics.PushDeliveries.WithLabelValues("breaker_open").Inc()
		logging.Warn(ctx, "push sink circuit breaker open: dropping delivery")
		return nil
	case err == ErrGone:
		metrics.PushDeliveries.WithLabelValues("gone").Inc()
		return ErrGone
	default:
		metrics.PushDeliveries.WithLabelValues("error").Inc()
		logging.Error(ctx, "push sink delivery failed", zap.Error(err))
		return nil
	}
}

func (s *HTTPSink) deliver(ctx context.Context, subscription []byte, payload any) error {
	body := bytes.NewBuffer(nil)
	if err := writeDeliveryEnvelope(body, subscription, payload); err != nil {
		return fmt.Errorf("encode push envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.gatewayURL, body)
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("push gateway request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return ErrGone
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("push gateway returned status %d", resp.StatusCode)
	}
	return nil
}

// deliveryEnvelope is the body posted to the gateway: the raw subscription
// blob the client handed us at pushSubscribe time, plus the notification
// payload to deliver through it.
type deliveryEnvelope struct {
	Subscription json.RawMessage `json:"subscription"`
	Payload      any             `json:"payload"`
}

func writeDeliveryEnvelope(w io.Writer, subscription []byte, payload any) error {
	return json.NewEncoder(w).Encode(deliveryEnvelope{
		Subscription: subscription,
		Payload:      payload,
	})
}
