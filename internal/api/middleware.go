// middleware.go carries the request plumbing in front of the handlers:
// deployment prefix stripping and per-client rate limiting.
package api

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// loadTestUserAgent bypasses the rate limiter when the deployment allows
// it, so load generators are not throttled like clients.
const loadTestUserAgent = "dlob-load-test"

// visitorTTL evicts limiter state for clients that have gone quiet.
const visitorTTL = 10 * time.Minute

// stripPrefix removes the deployment path prefix (e.g. "/dlob" behind the
// shared gateway) before routing. Stripping the whole path leaves "/".
func stripPrefix(prefix string, next http.Handler) http.Handler {
	if prefix == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, ok := strings.CutPrefix(r.URL.Path, prefix); ok {
			if p == "" {
				p = "/"
			}
			r.URL.Path = p
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimiter enforces a per-client-IP request budget. Each IP gets its own
// token bucket; idle buckets are evicted in the background.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor

	limit         rate.Limit
	burst         int
	allowLoadTest bool
	logger        *slog.Logger
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newRateLimiter(callsPerSecond int, allowLoadTest bool, logger *slog.Logger) *rateLimiter {
	rl := &rateLimiter{
		visitors:      make(map[string]*visitor),
		limit:         rate.Limit(callsPerSecond),
		burst:         callsPerSecond * 2,
		allowLoadTest: allowLoadTest,
		logger:        logger.With("component", "ratelimit"),
	}
	go rl.evictLoop()
	return rl
}

// Middleware wraps next with the rate check. Throttled requests get 429.
func (rl *rateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.allowLoadTest && r.UserAgent() == loadTestUserAgent {
			next.ServeHTTP(w, r)
			return
		}

		ip := clientIP(r)
		if !rl.allow(ip) {
			rl.logger.Debug("throttled", "ip", ip, "path", r.URL.Path)
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	return v.limiter.Allow()
}

func (rl *rateLimiter) evictLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		for ip, v := range rl.visitors {
			if time.Since(v.lastSeen) > visitorTTL {
				delete(rl.visitors, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// clientIP prefers the forwarding header set by the gateway, falling back
// to the socket peer.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		// First hop is the client.
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
