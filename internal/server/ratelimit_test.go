package server

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiterBurstAndRefill(t *testing.T) {
	rl := NewRateLimiter(100, 3, false)
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		if !rl.Allow("198.51.100.7") {
			t.Fatalf("request %d should be within burst", i+1)
		}
	}
	if rl.Allow("198.51.100.7") {
		t.Error("request past burst should be denied")
	}

	// 100 tokens per second means one new token every 10ms.
	time.Sleep(25 * time.Millisecond)
	if !rl.Allow("198.51.100.7") {
		t.Error("request should be allowed after refill")
	}
}

func TestRateLimiterIsolatesClients(t *testing.T) {
	rl := NewRateLimiter(1, 2, false)
	defer rl.Stop()

	for i := 0; i < 2; i++ {
		if !rl.Allow("198.51.100.1") {
			t.Fatalf("first client request %d should be allowed", i+1)
		}
	}
	if rl.Allow("198.51.100.1") {
		t.Error("first client should be limited")
	}

	if !rl.Allow("198.51.100.2") {
		t.Error("second client should have its own bucket")
	}
}

func TestRateLimiterEvictIdle(t *testing.T) {
	rl := NewRateLimiter(1, 1, false)
	defer rl.Stop()

	rl.Allow("198.51.100.1")
	rl.Allow("198.51.100.2")

	rl.evictIdle(0)

	rl.mu.Lock()
	remaining := len(rl.buckets)
	rl.mu.Unlock()
	if remaining != 0 {
		t.Errorf("evictIdle(0) left %d buckets, want 0", remaining)
	}
}

func TestRateLimiterStopIdempotent(t *testing.T) {
	rl := NewRateLimiter(1, 1, false)
	rl.Stop()
	rl.Stop()
}

func TestRateLimitMiddlewareRejectsOverLimit(t *testing.T) {
	handler, err := CreateOAuthHandler(OAuthConfig{
		BaseURL:        "https://mcp.example.com",
		RateLimitRate:  1,
		RateLimitBurst: 2,
	})
	if err != nil {
		t.Fatalf("CreateOAuthHandler: %v", err)
	}
	defer handler.Stop()

	wrapped := handler.RateLimitMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
		req.RemoteAddr = "198.51.100.9:4321"
		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := do(); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, rec.Code)
		}
	}

	rec := do()
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Errorf("Retry-After = %q, want \"1\"", rec.Header().Get("Retry-After"))
	}
}

func TestRateLimitMiddlewareDisabled(t *testing.T) {
	handler, err := CreateOAuthHandler(OAuthConfig{
		BaseURL:       "https://mcp.example.com",
		RateLimitRate: 0,
	})
	if err != nil {
		t.Fatalf("CreateOAuthHandler: %v", err)
	}
	defer handler.Stop()

	wrapped := handler.RateLimitMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
		req.RemoteAddr = fmt.Sprintf("198.51.100.9:%d", 1000+i)
		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, rec.Code)
		}
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		realIP     string
		trustProxy bool
		want       string
	}{
		{
			name:       "remote addr, proxy not trusted",
			remoteAddr: "198.51.100.1:1234",
			want:       "198.51.100.1",
		},
		{
			name:       "ipv6 remote addr",
			remoteAddr: "[::1]:1234",
			want:       "::1",
		},
		{
			name:       "remote addr without port",
			remoteAddr: "198.51.100.1",
			want:       "198.51.100.1",
		},
		{
			name:       "forwarded header honored when trusted",
			remoteAddr: "10.0.0.1:1234",
			forwarded:  "203.0.113.1",
			trustProxy: true,
			want:       "203.0.113.1",
		},
		{
			name:       "forwarded header ignored when untrusted",
			remoteAddr: "10.0.0.1:1234",
			forwarded:  "203.0.113.1",
			want:       "10.0.0.1",
		},
		{
			name:       "last forwarded entry wins",
			remoteAddr: "10.0.0.1:1234",
			forwarded:  "203.0.113.1, 198.51.100.1, 10.0.0.2",
			trustProxy: true,
			want:       "10.0.0.2",
		},
		{
			name:       "real ip honored when trusted",
			remoteAddr: "10.0.0.1:1234",
			realIP:     "203.0.113.1",
			trustProxy: true,
			want:       "203.0.113.1",
		},
		{
			name:       "forwarded beats real ip",
			remoteAddr: "10.0.0.1:1234",
			forwarded:  "203.0.113.1",
			realIP:     "198.51.100.1",
			trustProxy: true,
			want:       "203.0.113.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}

			if got := clientIP(req, tt.trustProxy); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
