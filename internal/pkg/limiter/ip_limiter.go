/*
Package limiter provides rate limiting keyed by client IP address.

It uses the token bucket algorithm (rate.Limiter) to bound how fast a single
address may send protocol units or hit the status endpoints, and runs a
cleanup goroutine that removes idle limiters so the map does not grow without
bound.
*/
package limiter

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"dischat/internal/pkg/logx"
)

// IPRateLimiter implements a rate limiter keyed by client IP address.
type IPRateLimiter struct {
	// mu protects concurrent access to the limits map.
	mu *sync.RWMutex

	// limits maps client IP address to its *rate.Limiter instance.
	limits map[string]*rate.Limiter

	// r is the sustained rate, in events per second.
	r rate.Limit

	// b is the burst size of the token bucket.
	b int
}

// NewIPRateLimiter creates an IPRateLimiter with sustained rate r and burst
// capacity b, and starts a background goroutine that periodically removes
// inactive limiters.
func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	i := &IPRateLimiter{
		mu:     &sync.RWMutex{},
		limits: make(map[string]*rate.Limiter),
		r:      r,
		b:      b,
	}

	go i.cleanUpVisitors()

	return i
}

// GetLimiter returns the rate limiter for the given IP address, creating one
// on first sight. Double-checked locking keeps creation concurrent-safe
// without serializing the common read path.
func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	i.mu.RLock()
	limiter, exists := i.limits[ip]
	i.mu.RUnlock()

	if !exists {
		i.mu.Lock()
		limiter, exists = i.limits[ip]
		if !exists {
			limiter = rate.NewLimiter(i.r, i.b)
			i.limits[ip] = limiter
		}
		i.mu.Unlock()
	}

	return limiter
}

// Allow reports whether one event from addr may proceed now. The addr may be
// a bare IP or a host:port as returned by net.Conn.RemoteAddr.
func (i *IPRateLimiter) Allow(addr string) bool {
	ip, _, err := net.SplitHostPort(addr)
	if err != nil {
		ip = addr
	}
	if ip == "" {
		ip = "unknown_ip"
	}

	return i.GetLimiter(ip).Allow()
}

// cleanUpVisitors periodically removes limiters whose token bucket is full,
// meaning the address has been idle long enough to refill completely.
func (i *IPRateLimiter) cleanUpVisitors() {
	ticker := time.NewTicker(3 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		i.mu.Lock()
		count := 0
		for ip, limiter := range i.limits {
			if limiter.TokensAt(time.Now()) >= float64(limiter.Burst()) {
				delete(i.limits, ip)
				count++
			}
		}
		remaining := len(i.limits)
		i.mu.Unlock()

		if count > 0 {
			logx.Debug("Rate limiter cleanup finished",
				"removed", count,
				"remaining", remaining,
			)
		}
	}
}

// Middleware returns an HTTP middleware enforcing the limit on incoming
// requests, responding 429 Too Many Requests when exceeded.
func (i *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !i.Allow(r.RemoteAddr) {
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}
