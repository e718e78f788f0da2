package stats

import (
	"sync/atomic"
	"time"
)

// Stats holds all server statistics with atomic counters
type Stats struct {
	// Server info
	StartTime time.Time

	// Request counters
	TotalRequests    atomic.Int64
	RegisterRequests atomic.Int64
	LoginRequests    atomic.Int64
	MeRequests       atomic.Int64
	StatsRequests    atomic.Int64
	HealthRequests   atomic.Int64
	OtherRequests    atomic.Int64

	// Auth outcomes
	Registrations      atomic.Int64
	DuplicateSignups   atomic.Int64
	ValidationFailures atomic.Int64
	LoginSuccesses     atomic.Int64
	LoginFailures      atomic.Int64
	TokenRejections    atomic.Int64

	// Rate limiting
	RateLimitAllowed  atomic.Int64
	RateLimitExceeded atomic.Int64 // Requests rejected (429)

	// Response status codes
	Status2xx atomic.Int64
	Status4xx atomic.Int64
	Status5xx atomic.Int64

	// Response time tracking (in microseconds for precision)
	totalResponseTime atomic.Int64
	responseCount     atomic.Int64
	minResponseTime   atomic.Int64
	maxResponseTime   atomic.Int64

	// Auth endpoint response times (microseconds); bcrypt dominates these
	authResponseTime  atomic.Int64
	authResponseCount atomic.Int64
}

const noMin = int64(^uint64(0) >> 1)

// Global stats instance
var global = New()

// New returns a zeroed Stats with its clock started now.
func New() *Stats {
	s := &Stats{StartTime: time.Now()}
	s.minResponseTime.Store(noMin)
	return s
}

// Get returns the global stats instance
func Get() *Stats {
	return global
}

func isAuthEndpoint(endpoint string) bool {
	return endpoint == "/api/auth/register" || endpoint == "/api/auth/login"
}

// RecordRequest records a request to a specific endpoint
func (s *Stats) RecordRequest(endpoint string) {
	s.TotalRequests.Add(1)
	switch endpoint {
	case "/api/auth/register":
		s.RegisterRequests.Add(1)
	case "/api/auth/login":
		s.LoginRequests.Add(1)
	case "/api/auth/me":
		s.MeRequests.Add(1)
	case "/stats":
		s.StatsRequests.Add(1)
	case "/health":
		s.HealthRequests.Add(1)
	default:
		s.OtherRequests.Add(1)
	}
}

// RecordAuthOutcome records the result of a register or login attempt.
func (s *Stats) RecordAuthOutcome(outcome string) {
	switch outcome {
	case "registered":
		s.Registrations.Add(1)
	case "duplicate":
		s.DuplicateSignups.Add(1)
	case "invalid":
		s.ValidationFailures.Add(1)
	case "login":
		s.LoginSuccesses.Add(1)
	case "login_failed":
		s.LoginFailures.Add(1)
	case "token_rejected":
		s.TokenRejections.Add(1)
	}
}

// RecordRateLimit records whether a rate-limited request was let through
func (s *Stats) RecordRateLimit(allowed bool) {
	if allowed {
		s.RateLimitAllowed.Add(1)
		return
	}
	s.RateLimitExceeded.Add(1)
}

// RecordStatusCode records a response status code
func (s *Stats) RecordStatusCode(code int) {
	switch {
	case code >= 200 && code < 300:
		s.Status2xx.Add(1)
	case code >= 400 && code < 500:
		s.Status4xx.Add(1)
	case code >= 500:
		s.Status5xx.Add(1)
	}
}

// RecordResponseTime records a response time
func (s *Stats) RecordResponseTime(duration time.Duration, endpoint string) {
	us := duration.Microseconds()

	s.totalResponseTime.Add(us)
	s.responseCount.Add(1)

	for {
		current := s.minResponseTime.Load()
		if us >= current || s.minResponseTime.CompareAndSwap(current, us) {
			break
		}
	}
	for {
		current := s.maxResponseTime.Load()
		if us <= current || s.maxResponseTime.CompareAndSwap(current, us) {
			break
		}
	}

	if isAuthEndpoint(endpoint) {
		s.authResponseTime.Add(us)
		s.authResponseCount.Add(1)
	}
}

// Uptime returns the server uptime
func (s *Stats) Uptime() time.Duration {
	return time.Since(s.StartTime)
}

// LoginSuccessRate returns successful logins as a percentage of attempts
func (s *Stats) LoginSuccessRate() float64 {
	ok := s.LoginSuccesses.Load()
	failed := s.LoginFailures.Load()
	total := ok + failed
	if total == 0 {
		return 0
	}
	return float64(ok) / float64(total) * 100
}

// AvgResponseTime returns the average response time
func (s *Stats) AvgResponseTime() time.Duration {
	count := s.responseCount.Load()
	if count == 0 {
		return 0
	}
	return time.Duration(s.totalResponseTime.Load()/count) * time.Microsecond
}

// MinResponseTime returns the minimum response time
func (s *Stats) MinResponseTime() time.Duration {
	min := s.minResponseTime.Load()
	if min == noMin {
		return 0
	}
	return time.Duration(min) * time.Microsecond
}

// MaxResponseTime returns the maximum response time
func (s *Stats) MaxResponseTime() time.Duration {
	return time.Duration(s.maxResponseTime.Load()) * time.Microsecond
}

// AvgAuthResponseTime returns the average response time for register/login
func (s *Stats) AvgAuthResponseTime() time.Duration {
	count := s.authResponseCount.Load()
	if count == 0 {
		return 0
	}
	return time.Duration(s.authResponseTime.Load()/count) * time.Microsecond
}

// Snapshot returns a point-in-time snapshot of all stats
func (s *Stats) Snapshot() map[string]interface{} {
	uptime := s.Uptime()

	return map[string]interface{}{
		"server": map[string]interface{}{
			"start_time":     s.StartTime.Format(time.RFC3339),
			"uptime":         uptime.String(),
			"uptime_seconds": int64(uptime.Seconds()),
		},
		"requests": map[string]interface{}{
			"total":    s.TotalRequests.Load(),
			"register": s.RegisterRequests.Load(),
			"login":    s.LoginRequests.Load(),
			"me":       s.MeRequests.Load(),
			"stats":    s.StatsRequests.Load(),
			"health":   s.HealthRequests.Load(),
			"other":    s.OtherRequests.Load(),
		},
		"auth": map[string]interface{}{
			"registrations":       s.Registrations.Load(),
			"duplicate_signups":   s.DuplicateSignups.Load(),
			"validation_failures": s.ValidationFailures.Load(),
			"login_successes":     s.LoginSuccesses.Load(),
			"login_failures":      s.LoginFailures.Load(),
			"login_success_rate":  s.LoginSuccessRate(),
			"token_rejections":    s.TokenRejections.Load(),
		},
		"rate_limiting": map[string]interface{}{
			"allowed":  s.RateLimitAllowed.Load(),
			"exceeded": s.RateLimitExceeded.Load(),
		},
		"responses": map[string]interface{}{
			"2xx": s.Status2xx.Load(),
			"4xx": s.Status4xx.Load(),
			"5xx": s.Status5xx.Load(),
		},
		"response_times": map[string]interface{}{
			"avg":      s.AvgResponseTime().String(),
			"min":      s.MinResponseTime().String(),
			"max":      s.MaxResponseTime().String(),
			"avg_auth": s.AvgAuthResponseTime().String(),
		},
	}
}
