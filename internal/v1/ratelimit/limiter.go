// Package ratelimit implements the two distinct rate-limiting concerns this
// hub needs: an HTTP/connection-layer limiter guarding the auxiliary
// endpoints and the `/ws` upgrade (this file, backed by ulule/limiter/v3),
// and the per-session in-protocol fixed-window frame counter (session.go).
package ratelimit

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"

	"github.com/Preon1/lrcom/internal/v1/logging"
	"github.com/Preon1/lrcom/internal/v1/metrics"
)

// Limiter gates connection attempts by client IP before a session (and thus
// the per-session fixed-window counter) even exists.
type Limiter struct {
	connect *limiter.Limiter
	http    *limiter.Limiter
}

// New builds a Limiter. connectRate/httpRate use ulule/limiter's formatted
// rate syntax, e.g. "20-M" (20 per minute). redisClient may be nil, in which
// case an in-memory store is used — correct for a single hub process.
func New(connectRate, httpRate string, redisClient *redis.Client) (*Limiter, error) {
	connect, err := limiter.NewRateFromFormatted(connectRate)
	if err != nil {
		return nil, fmt.Errorf("invalid connect rate %q: %w", connectRate, err)
	}
	httpR, err := limiter.NewRateFromFormatted(httpRate)
	if err != nil {
		return nil, fmt.Errorf("invalid http rate %q: %w", httpRate, err)
	}

	var store limiter.Store
	if redisClient != nil {
		s, err := sredis.NewStoreWithOptions(redisClient, limiter.StoreOptions{Prefix: "signalhub:ratelimit:"})
		if err != nil {
			return nil, fmt.Errorf("create redis limiter store: %w", err)
		}
		store = s
		logging.Info(nil, "rate limiter using redis store")
	} else {
		store = memory.NewStore()
		logging.Info(nil, "rate limiter using in-memory store")
	}

	return &Limiter{
		connect: limiter.New(store, connect),
		http:    limiter.New(store, httpR),
	}, nil
}

// ConnectMiddleware gates `/ws` upgrade attempts by client IP.
func (l *Limiter) ConnectMiddleware() gin.HandlerFunc {
	return l.middleware(l.connect, "ws_connect")
}

// HTTPMiddleware gates the auxiliary HTTP endpoints by client IP.
func (l *Limiter) HTTPMiddleware() gin.HandlerFunc {
	return l.middleware(l.http, "http")
}

func (l *Limiter) middleware(lim *limiter.Limiter, scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := c.ClientIP()

		result, err := lim.Get(ctx, key)
		if err != nil {
			logging.Error(ctx, "rate limiter store failed, failing open", zap.Error(err), zap.String("scope", scope))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.Reset, 10))

		if result.Reached {
			metrics.RateLimitExceeded.WithLabelValues(scope).Inc()
			c.Header("Retry-After", strconv.FormatInt(result.Reset-time.Now().Unix(), 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}

		c.Next()
	}
}
