package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestIncDecConnection_TracksActiveConnections(t *testing.T) {
	before := testutil.ToFloat64(ActiveConnections)
	IncConnection()
	IncConnection()
	DecConnection()
	assert.Equal(t, before+1, testutil.ToFloat64(ActiveConnections))
}

func TestFramesProcessed_IncrementsPerLabelCombination(t *testing.T) {
	before := testutil.ToFloat64(FramesProcessed.WithLabelValues("chatSend", "ok"))
	FramesProcessed.WithLabelValues("chatSend", "ok").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(FramesProcessed.WithLabelValues("chatSend", "ok")))
}

func TestFrameProcessingDuration_ObserveDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		FrameProcessingDuration.WithLabelValues("callStart").Observe(0.002)
	})
}

func TestCircuitBreakerState_SetsPerService(t *testing.T) {
	CircuitBreakerState.WithLabelValues("redis").Set(1)
	assert.Equal(t, float64(1), testutil.ToFloat64(CircuitBreakerState.WithLabelValues("redis")))

	CircuitBreakerState.WithLabelValues("redis").Set(0)
	assert.Equal(t, float64(0), testutil.ToFloat64(CircuitBreakerState.WithLabelValues("redis")))
}

func TestCircuitBreakerFailures_IncrementsPerService(t *testing.T) {
	before := testutil.ToFloat64(CircuitBreakerFailures.WithLabelValues("push_sink"))
	CircuitBreakerFailures.WithLabelValues("push_sink").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(CircuitBreakerFailures.WithLabelValues("push_sink")))
}

func TestRateLimitExceeded_IncrementsPerScope(t *testing.T) {
	before := testutil.ToFloat64(RateLimitExceeded.WithLabelValues("ws_connect"))
	RateLimitExceeded.WithLabelValues("ws_connect").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(RateLimitExceeded.WithLabelValues("ws_connect")))
}

func TestPushDeliveries_IncrementsPerStatus(t *testing.T) {
	before := testutil.ToFloat64(PushDeliveries.WithLabelValues("gone"))
	PushDeliveries.WithLabelValues("gone").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(PushDeliveries.WithLabelValues("gone")))
}

func TestPushDeliveryDuration_ObserveDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		PushDeliveryDuration.WithLabelValues("ok").Observe(0.05)
	})
}

func TestRedisOperationsTotal_IncrementsPerOperationAndStatus(t *testing.T) {
	before := testutil.ToFloat64(RedisOperationsTotal.WithLabelValues("publish", "ok"))
	RedisOperationsTotal.WithLabelValues("publish", "ok").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(RedisOperationsTotal.WithLabelValues("publish", "ok")))
}
