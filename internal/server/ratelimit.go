// -------------------------------------------------------------------------------
// HTTP Server - Rate Limiting Middleware
//
// Project: Streamlo
//
// Per-client token buckets keyed by IP. Each client holds two buckets: a wide
// one for reads and a tight one for writes, since a write runs a multi-step
// transaction plus blob traffic while a read is usually a single document
// fetch. Stale clients are evicted in the background.
// -------------------------------------------------------------------------------

package server

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/dunguyenn/StreamloWebservice/internal/config"
)

// Eviction cadence for idle clients.
const (
	clientSweepInterval = 3 * time.Minute
	clientMaxIdle       = 10 * time.Minute
)

// -------------------------------------------------------------------------
// LIMITER
// -------------------------------------------------------------------------

// RateLimiter enforces per-client read and write budgets.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientBuckets

	readRate   rate.Limit
	readBurst  int
	writeRate  rate.Limit
	writeBurst int
}

// clientBuckets holds one client's read and write token buckets.
type clientBuckets struct {
	read     *rate.Limiter
	write    *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a rate limiter from configuration and starts its
// idle-client sweeper.
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	writeRate := cfg.WriteRequestsPerSec
	writeBurst := cfg.WriteBurst
	if writeRate == 0 {
		// No separate write budget configured; writes share the read rate.
		writeRate = cfg.RequestsPerSec
		writeBurst = cfg.Burst
	}

	rl := &RateLimiter{
		clients:    make(map[string]*clientBuckets),
		readRate:   rate.Limit(cfg.RequestsPerSec),
		readBurst:  cfg.Burst,
		writeRate:  rate.Limit(writeRate),
		writeBurst: writeBurst,
	}

	go func() {
		for {
			time.Sleep(clientSweepInterval)
			rl.sweep(clientMaxIdle)
		}
	}()

	return rl
}

// Allow reports whether one request from the client may proceed, drawing a
// token from the bucket matching the request method.
func (rl *RateLimiter) Allow(client, method string) bool {
	rl.mu.Lock()
	c, ok := rl.clients[client]
	if !ok {
		c = &clientBuckets{
			read:  rate.NewLimiter(rl.readRate, rl.readBurst),
			write: rate.NewLimiter(rl.writeRate, rl.writeBurst),
		}
		rl.clients[client] = c
	}
	c.lastSeen = time.Now()
	rl.mu.Unlock()

	if isWriteMethod(method) {
		return c.write.Allow()
	}
	return c.read.Allow()
}

// isWriteMethod classifies methods that mutate state.
func isWriteMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

// sweep removes clients idle longer than maxIdle.
func (rl *RateLimiter) sweep(maxIdle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := time.Now().Add(-maxIdle)
	for client, c := range rl.clients {
		if c.lastSeen.Before(cutoff) {
			delete(rl.clients, client)
		}
	}
}

// -------------------------------------------------------------------------
// MIDDLEWARE
// -------------------------------------------------------------------------

// Middleware wraps an http.Handler with per-client rate limiting.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(extractIP(r), r.Method) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// extractIP gets the client IP from the request, stripping the port. The
// X-Forwarded-For header wins when present; it is trusted because the service
// deploys behind a reverse proxy.
func extractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for i, c := range xff {
			if c == ',' {
				return xff[:i]
			}
		}
		return xff
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
