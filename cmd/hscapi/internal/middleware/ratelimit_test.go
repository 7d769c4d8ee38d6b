package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIPRateLimiter_Middleware(t *testing.T) {
	limiter := NewIPRateLimiter(0.001, 2)
	now := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	handler := limiter.Middleware(ok200)

	post := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.Header.Set("X-Forwarded-For", ip)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, post("198.51.100.1"))
	assert.Equal(t, http.StatusOK, post("198.51.100.1"))
	assert.Equal(t, http.StatusTooManyRequests, post("198.51.100.1"))
	// Buckets are per IP.
	assert.Equal(t, http.StatusOK, post("198.51.100.2"))
}

func TestIPRateLimiter_Sweep(t *testing.T) {
	limiter := NewIPRateLimiter(1, 1)
	now := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	limiter.Allow("a")
	now = now.Add(limiterTTL / 2)
	limiter.Allow("b")
	assert.Equal(t, 2, limiter.Sweep())

	now = now.Add(limiterTTL/2 + time.Second)
	assert.Equal(t, 1, limiter.Sweep())

	// A swept IP starts with a full bucket again.
	assert.True(t, limiter.Allow("a"))
}
