package api

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ipThrottle caps ingestion requests per client address over a fixed
// window. Entries for idle addresses are dropped by a background sweep.
type ipThrottle struct {
	mu      sync.Mutex
	clients map[string]*windowCount
	limit   int
	window  time.Duration
}

type windowCount struct {
	count int
	start time.Time
}

func newIPThrottle(limit int, window time.Duration) *ipThrottle {
	t := &ipThrottle{
		clients: make(map[string]*windowCount),
		limit:   limit,
		window:  window,
	}
	go t.sweep()
	return t
}

// take records one request for addr. When the address is over its limit it
// returns false along with the time until the window resets.
func (t *ipThrottle) take(addr string) (bool, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	c, ok := t.clients[addr]
	if !ok || now.Sub(c.start) > t.window {
		t.clients[addr] = &windowCount{count: 1, start: now}
		return true, 0
	}

	c.count++
	if c.count > t.limit {
		return false, c.start.Add(t.window).Sub(now)
	}
	return true, 0
}

func (t *ipThrottle) sweep() {
	ticker := time.NewTicker(5 * time.Minute)
	for range ticker.C {
		t.mu.Lock()
		now := time.Now()
		for addr, c := range t.clients {
			if now.Sub(c.start) > t.window*2 {
				delete(t.clients, addr)
			}
		}
		t.mu.Unlock()
	}
}

// RateLimit returns middleware that throttles requests per client IP.
// Rejected requests get a 429 with a Retry-After hint for the tracker's
// retry logic.
func RateLimit(limit int, window time.Duration, log *zap.Logger) func(http.Handler) http.Handler {
	throttle := newIPThrottle(limit, window)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, retryAfter := throttle.take(r.RemoteAddr)
			if !ok {
				log.Warn("rate limit exceeded",
					zap.String("remote_addr", r.RemoteAddr),
					zap.Int("limit", limit))
				w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
				writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
