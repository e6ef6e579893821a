package httpapi

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/John-Robertt/clash-override/internal/model"
	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL   = 30 * time.Minute
	limiterSweepEach = 2 * time.Minute
)

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// clientLimiter hands out one token bucket per client IP. Idle buckets are
// swept lazily on access.
type clientLimiter struct {
	limit rate.Limit
	burst int

	mu        sync.Mutex
	clients   map[string]*limiterEntry
	lastSweep time.Time
}

func newClientLimiter(limit rate.Limit, burst int) *clientLimiter {
	return &clientLimiter{
		limit:   limit,
		burst:   burst,
		clients: make(map[string]*limiterEntry),
	}
}

func (c *clientLimiter) allow(ip string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if now.Sub(c.lastSweep) > limiterSweepEach {
		for k, e := range c.clients {
			if now.Sub(e.lastSeen) > limiterIdleTTL {
				delete(c.clients, k)
			}
		}
		c.lastSweep = now
	}

	e, ok := c.clients[ip]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(c.limit, c.burst)}
		c.clients[ip] = e
	}
	e.lastSeen = now
	return e.lim.AllowN(now, 1)
}

func (c *clientLimiter) wrap(next http.HandlerFunc) http.HandlerFunc {
	if c.limit == rate.Inf {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if !c.allow(clientIP(r), time.Now()) {
			w.Header().Set("Retry-After", "1")
			WriteError(w, http.StatusTooManyRequests, model.AppError{
				Code:    "RATE_LIMITED",
				Message: "请求过于频繁，请稍后再试",
				Stage:   "validate_request",
			})
			return
		}
		next(w, r)
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
