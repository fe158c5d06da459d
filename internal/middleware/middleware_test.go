package middleware

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type staticTokens map[string]string

func (s staticTokens) Resolve(token string) (string, error) {
	if addr, ok := s[token]; ok {
		return addr, nil
	}
	return "", errors.New("unknown token")
}

type countingLimiter struct {
	max  int
	seen map[string]int
	err  error
}

func (l *countingLimiter) Allow(_ context.Context, key string) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	l.seen[key]++
	return l.seen[key] <= l.max, nil
}

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(ErrorHandler())
	r.Use(mw...)
	r.GET("/x", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"address": c.GetString(ContextAddressKey)})
	})
	return r
}

func serve(r http.Handler, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestBearerAuth(t *testing.T) {
	r := newRouter(BearerAuth(staticTokens{"good": "0xabc"}))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	w, body := serve(r, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "missing bearer token", body["message"])
	assert.Equal(t, "AUTH_FAILED", body["code"])

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Basic good")
	w, body = serve(r, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "missing bearer token", body["message"])

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer bad")
	w, body = serve(r, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid token", body["message"])

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer good")
	w, body = serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0xabc", body["address"])
}

func TestRateLimit(t *testing.T) {
	limiter := &countingLimiter{max: 2, seen: map[string]int{}}
	r := newRouter(RateLimit(limiter))

	for range 2 {
		w, _ := serve(r, httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
	w, body := serve(r, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "RATE_LIMITED", body["code"])
	require.Len(t, limiter.seen, 1)
	for key := range limiter.seen {
		assert.Equal(t, "192.0.2.1/x", key)
	}
}

func TestRateLimitFailsOpen(t *testing.T) {
	r := newRouter(RateLimit(&countingLimiter{err: errors.New("redis down")}))
	w, _ := serve(r, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireHTTPS(t *testing.T) {
	r := newRouter(RequireHTTPS(true))

	w, body := serve(r, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "HTTPS required", body["message"])

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	w, _ = serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.TLS = &tls.ConnectionState{}
	w, _ = serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = serve(newRouter(RequireHTTPS(false)), httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminMiddleware(t *testing.T) {
	w, _ := serve(newRouter(AdminMiddleware("")), httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)

	r := newRouter(AdminMiddleware("s3cret"))
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderAdminKey, "wrong")
	w, _ = serve(r, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderAdminKey, "s3cret")
	w, _ = serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestErrorHandlerHidesUnknownErrors(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/boom", func(c *gin.Context) {
		_ = c.Error(errors.New("pq: connection refused"))
	})
	w, body := serve(r, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal error", body["message"])
	assert.NotContains(t, w.Body.String(), "connection refused")
}

func TestRequestLoggerSetsRequestID(t *testing.T) {
	r := newRouter(RequestLogger())
	w, _ := serve(r, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	w, _ = serve(r, req)
	assert.Equal(t, "abc-123", w.Header().Get(HeaderRequestID))
}
