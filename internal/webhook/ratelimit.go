package webhook

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type rateClient struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipLimiter applies a token bucket per client address. Idle clients are
// dropped during lookups instead of by a background goroutine.
type ipLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	idle      time.Duration
	clients   map[string]*rateClient
	lastSweep time.Time
	now       func() time.Time
}

func newIPLimiter(requests int, window time.Duration) *ipLimiter {
	idle := 3 * window
	if idle < 3*time.Minute {
		idle = 3 * time.Minute
	}
	return &ipLimiter{
		limit:   rate.Limit(float64(requests) / window.Seconds()),
		burst:   requests,
		idle:    idle,
		clients: make(map[string]*rateClient),
		now:     time.Now,
	}
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	now := l.now()
	if now.Sub(l.lastSweep) > l.idle {
		for key, c := range l.clients {
			if now.Sub(c.lastSeen) > l.idle {
				delete(l.clients, key)
			}
		}
		l.lastSweep = now
	}
	c, ok := l.clients[ip]
	if !ok {
		c = &rateClient{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[ip] = c
	}
	c.lastSeen = now
	l.mu.Unlock()

	return c.limiter.AllowN(now, 1)
}

func (l *ipLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

func (l *ipLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(peerAddress(r)) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"` + msgRateLimited + `"}` + "\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

type peerKey struct{}

// PeerAddress records the connection's remote address before
// middleware.RealIP rewrites it from forwarding headers. Install it ahead of
// RealIP so rate limiting keys on the TCP peer, which a caller cannot spoof.
func PeerAddress(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), peerKey{}, r.RemoteAddr)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// peerAddress returns the host recorded by PeerAddress, falling back to
// RemoteAddr when the middleware is not installed.
func peerAddress(r *http.Request) string {
	addr, ok := r.Context().Value(peerKey{}).(string)
	if !ok || addr == "" {
		return clientAddress(r)
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
