package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, connectRate, httpRate string) (*Limiter, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	l, err := New(connectRate, httpRate, rc)
	require.NoError(t, err)

	return l, mr
}

func TestNew_InMemoryFallbackWhenNoRedisClient(t *testing.T) {
	l, err := New("5-M", "5-M", nil)
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestNew_RejectsInvalidRateFormat(t *testing.T) {
	_, err := New("not-a-rate", "5-M", nil)
	assert.Error(t, err)

	_, err = New("5-M", "not-a-rate", nil)
	assert.Error(t, err)
}

func TestConnectMiddleware_AllowsUpToLimitThenRejects(t *testing.T) {
	l, mr := newTestLimiter(t, "3-M", "100-M")
	defer mr.Close()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(l.ConnectMiddleware())
	r.GET("/ws", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		req, _ := http.NewRequest("GET", "/ws", nil)
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		assert.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, "3", resp.Header().Get("X-RateLimit-Limit"))
	}

	req, _ := http.NewRequest("GET", "/ws", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.NotEmpty(t, resp.Header().Get("Retry-After"))
}

func TestHTTPMiddleware_IndependentFromConnectLimit(t *testing.T) {
	l, mr := newTestLimiter(t, "1-M", "3-M")
	defer mr.Close()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(l.HTTPMiddleware())
	r.GET("/turn-credentials", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		req, _ := http.NewRequest("GET", "/turn-credentials", nil)
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		assert.Equal(t, http.StatusOK, resp.Code)
	}

	req, _ := http.NewRequest("GET", "/turn-credentials", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
}

func TestMiddleware_FailsOpenWhenStoreIsDown(t *testing.T) {
	l, mr := newTestLimiter(t, "1-M", "1-M")
	mr.Close()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(l.ConnectMiddleware())
	r.GET("/ws", func(c *gin.Context) { c.Status(http.StatusOK) })

	req, _ := http.NewRequest("GET", "/ws", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusOK, resp.Code)
}
