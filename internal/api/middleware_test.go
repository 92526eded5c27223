package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func echoPath() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.URL.Path))
	})
}

func TestStripPrefix(t *testing.T) {
	t.Parallel()

	handler := stripPrefix("/dlob", echoPath())

	tests := []struct {
		path string
		want string
	}{
		{"/dlob/l2", "/l2"},
		{"/dlob", "/"},
		{"/l2", "/l2"},  // unprefixed paths pass through
		{"/dlobx", "x"}, // prefix is a plain string cut, same as the gateway does
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if got := rec.Body.String(); got != tt.want {
			t.Errorf("path %q rewrote to %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestRateLimiterThrottles(t *testing.T) {
	t.Parallel()

	rl := newRateLimiter(1, false, discard())
	handler := rl.Middleware(echoPath())

	// Burst is callsPerSecond*2, so the third immediate request from the
	// same IP is throttled.
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/l2", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 200 429]", codes)
	}

	// A different client keeps its own bucket.
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/l2", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("fresh client = %d, want 200", rec.Code)
	}
}

func TestRateLimiterLoadTestBypass(t *testing.T) {
	t.Parallel()

	rl := newRateLimiter(1, true, discard())
	handler := rl.Middleware(echoPath())

	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/l2", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		req.Header.Set("User-Agent", loadTestUserAgent)
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("load-test request %d = %d, want 200", i, rec.Code)
		}
	}
}

func TestRateLimiterBypassDisabled(t *testing.T) {
	t.Parallel()

	rl := newRateLimiter(1, false, discard())
	handler := rl.Middleware(echoPath())

	throttled := false
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/l2", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		req.Header.Set("User-Agent", loadTestUserAgent)
		handler.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			throttled = true
		}
	}
	if !throttled {
		t.Error("load-test agent must be throttled when the bypass is off")
	}
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "127.0.0.1:9999"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := clientIP(req); got != "203.0.113.7" {
		t.Errorf("clientIP = %q, want first forwarded hop", got)
	}

	req.Header.Del("X-Forwarded-For")
	if got := clientIP(req); got != "127.0.0.1" {
		t.Errorf("clientIP = %q, want socket peer host", got)
	}
}
