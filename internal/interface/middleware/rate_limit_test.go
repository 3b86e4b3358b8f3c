package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newLimitedRouter(t *testing.T, max int, window time.Duration, allow AllowFunc) (*gin.Engine, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	r := gin.New()
	r.Use(RateLimit(rdb, max, window, KeyByIP(), allow))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.OPTIONS("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r, mr
}

func doGet(r *gin.Engine, method string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, "/ping", nil)
	req.RemoteAddr = "203.0.113.7:4242"
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimitBlocksAfterMax(t *testing.T) {
	r, _ := newLimitedRouter(t, 2, time.Minute, nil)

	assert.Equal(t, http.StatusOK, doGet(r, http.MethodGet).Code)
	assert.Equal(t, http.StatusOK, doGet(r, http.MethodGet).Code)

	w := doGet(r, http.MethodGet)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestRateLimitWindowResets(t *testing.T) {
	r, mr := newLimitedRouter(t, 1, time.Minute, nil)

	assert.Equal(t, http.StatusOK, doGet(r, http.MethodGet).Code)
	assert.Equal(t, http.StatusTooManyRequests, doGet(r, http.MethodGet).Code)

	mr.FastForward(2 * time.Minute)
	assert.Equal(t, http.StatusOK, doGet(r, http.MethodGet).Code)
}

func TestRateLimitSkipsOptions(t *testing.T) {
	r, _ := newLimitedRouter(t, 1, time.Minute, nil)

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusNoContent, doGet(r, http.MethodOptions).Code)
	}
}

func TestRateLimitAllowBypass(t *testing.T) {
	r, _ := newLimitedRouter(t, 1, time.Minute, func(*gin.Context) bool { return true })

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, doGet(r, http.MethodGet).Code)
	}
}

func TestRateLimitFailsOpenWhenRedisDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	r := gin.New()
	r.Use(RateLimit(rdb, 1, time.Minute, KeyByIP(), nil))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	mr.Close()
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, doGet(r, http.MethodGet).Code)
	}
}

func TestRateLimitDisabledWithoutRedis(t *testing.T) {
	r := gin.New()
	r.Use(RateLimit(nil, 1, time.Minute, KeyByIP(), nil))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, doGet(r, http.MethodGet).Code)
	}
}
