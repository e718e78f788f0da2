package middleware

import (
	"encoding/json"
	"fmt"
	"math"
	"net"
	"net/http"
	"sync"
	"time"

	"moodtunes-api-go/logcolors"
	"moodtunes-api-go/stats"

	log "github.com/sirupsen/logrus"
)

// RateLimitExceededCode is the machine-readable code of a 429 response body.
const RateLimitExceededCode = "RATE_LIMIT_EXCEEDED"

// pruneThreshold is the number of tracked IPs above which ended windows are
// swept before a new one is added.
const pruneThreshold = 1024

// window is one caller's budget for the current period.
type window struct {
	count   int
	resetAt time.Time
}

// IPRateLimiter allows a fixed number of requests per IP in each window.
// The window starts at the caller's first request and does not slide.
type IPRateLimiter struct {
	ips    map[string]*window
	mu     *sync.Mutex
	max    int
	window time.Duration
	now    func() time.Time
}

// NewWindowLimiter allows max requests per window per IP.
func NewWindowLimiter(max int, period time.Duration) *IPRateLimiter {
	return &IPRateLimiter{
		ips:    make(map[string]*window),
		mu:     &sync.Mutex{},
		max:    max,
		window: period,
		now:    time.Now,
	}
}

// GetLimit returns the per-window budget
func (i *IPRateLimiter) GetLimit() int {
	return i.max
}

// current returns ip's window, starting a fresh one when the old has ended.
// Callers hold i.mu.
func (i *IPRateLimiter) current(ip string, now time.Time) *window {
	w, ok := i.ips[ip]
	if !ok && len(i.ips) >= pruneThreshold {
		i.pruneLocked(now)
	}
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(i.window)}
		i.ips[ip] = w
	}
	return w
}

// Allow counts a request from ip, rejected ones included. It reports whether
// the request fits the budget, how many requests remain and the whole seconds
// (at least 1) until the window resets.
func (i *IPRateLimiter) Allow(ip string) (ok bool, remaining, resetIn int) {
	i.mu.Lock()
	defer i.mu.Unlock()

	now := i.now()
	w := i.current(ip, now)
	w.count++

	remaining = i.max - w.count
	if remaining < 0 {
		remaining = 0
	}
	resetIn = int(math.Ceil(w.resetAt.Sub(now).Seconds()))
	if resetIn < 1 {
		resetIn = 1
	}
	return w.count <= i.max, remaining, resetIn
}

// pruneLocked drops windows that have ended.
func (i *IPRateLimiter) pruneLocked(now time.Time) {
	for ip, w := range i.ips {
		if !now.Before(w.resetAt) {
			delete(i.ips, ip)
		}
	}
}

// ClientIP returns the request's remote address without the port.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimitMiddleware rejects requests beyond the per-IP budget with 429 and
// a JSON body carrying RATE_LIMIT_EXCEEDED and message.
func RateLimitMiddleware(limiter *IPRateLimiter, message string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			allowed, remaining, reset := limiter.Allow(ip)

			w.Header().Set("RateLimit-Limit", fmt.Sprintf("%d", limiter.GetLimit()))
			w.Header().Set("RateLimit-Remaining", fmt.Sprintf("%d", remaining))
			w.Header().Set("RateLimit-Reset", fmt.Sprintf("%d", reset))

			if allowed {
				stats.Get().RecordRateLimit(true)
				next.ServeHTTP(w, r)
				return
			}

			stats.Get().RecordRateLimit(false)
			log.Warnf("%s IP %s exceeded limit on %s", logcolors.LogRateLimit, ip, r.URL.Path)
			w.Header().Set("Retry-After", fmt.Sprintf("%d", reset))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]string{
				"status":  "error",
				"code":    RateLimitExceededCode,
				"message": message,
			})
		})
	}
}
