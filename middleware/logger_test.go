package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"moodtunes-api-go/stats"

	"github.com/gorilla/mux"
)

func TestGetStatusColor(t *testing.T) {
	tests := []struct {
		statusCode int
		expected   string
	}{
		{http.StatusOK, "\033[32m"},
		{http.StatusCreated, "\033[32m"},
		{http.StatusFound, "\033[36m"},
		{http.StatusBadRequest, "\033[33m"},
		{http.StatusUnauthorized, "\033[33m"},
		{http.StatusConflict, "\033[33m"},
		{http.StatusTooManyRequests, "\033[33m"},
		{http.StatusInternalServerError, "\033[31m"},
		{http.StatusBadGateway, "\033[31m"},
		{100, "\033[0m"},
	}

	for _, tt := range tests {
		if got := getStatusColor(tt.statusCode); got != tt.expected {
			t.Errorf("getStatusColor(%d) = %q, want %q", tt.statusCode, got, tt.expected)
		}
	}
}

func TestResponseRecorder(t *testing.T) {
	w := httptest.NewRecorder()
	rec := NewResponseRecorder(w)
	if rec.StatusCode != http.StatusOK {
		t.Errorf("Expected default status 200, got %d", rec.StatusCode)
	}

	rec.WriteHeader(http.StatusCreated)
	rec.Write([]byte(`{"status":"success",`))
	rec.Write([]byte(`"message":"User registered successfully."}`))

	if rec.StatusCode != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", rec.StatusCode)
	}
	if w.Code != http.StatusCreated {
		t.Errorf("Expected underlying writer status 201, got %d", w.Code)
	}
	if rec.BodySize != w.Body.Len() {
		t.Errorf("Expected body size %d, got %d", w.Body.Len(), rec.BodySize)
	}
}

// authRouter mimics the server's routes with canned responses.
func authRouter() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/api/auth/register", func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.RawQuery, "dup") {
			w.WriteHeader(http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}).Methods("POST")
	r.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.RawQuery, "boom") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"token":"t"}`))
	}).Methods("POST")
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")
	r.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}).Methods("GET")
	return LoggingMiddleware(r)
}

func TestLoggingMiddlewareRecordsStats(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		target   string
		status   int
		endpoint func(*stats.Stats) *atomic.Int64
		class    func(*stats.Stats) *atomic.Int64
	}{
		{
			name: "register created", method: "POST", target: "/api/auth/register", status: http.StatusCreated,
			endpoint: func(s *stats.Stats) *atomic.Int64 { return &s.RegisterRequests },
			class:    func(s *stats.Stats) *atomic.Int64 { return &s.Status2xx },
		},
		{
			name: "register duplicate", method: "POST", target: "/api/auth/register?dup=1", status: http.StatusConflict,
			endpoint: func(s *stats.Stats) *atomic.Int64 { return &s.RegisterRequests },
			class:    func(s *stats.Stats) *atomic.Int64 { return &s.Status4xx },
		},
		{
			name: "login ok", method: "POST", target: "/api/auth/login", status: http.StatusOK,
			endpoint: func(s *stats.Stats) *atomic.Int64 { return &s.LoginRequests },
			class:    func(s *stats.Stats) *atomic.Int64 { return &s.Status2xx },
		},
		{
			name: "login failure", method: "POST", target: "/api/auth/login?boom=1", status: http.StatusInternalServerError,
			endpoint: func(s *stats.Stats) *atomic.Int64 { return &s.LoginRequests },
			class:    func(s *stats.Stats) *atomic.Int64 { return &s.Status5xx },
		},
		{
			name: "health", method: "GET", target: "/health", status: http.StatusOK,
			endpoint: func(s *stats.Stats) *atomic.Int64 { return &s.HealthRequests },
			class:    func(s *stats.Stats) *atomic.Int64 { return &s.Status2xx },
		},
		{
			name: "stats without token", method: "GET", target: "/stats", status: http.StatusUnauthorized,
			endpoint: func(s *stats.Stats) *atomic.Int64 { return &s.StatsRequests },
			class:    func(s *stats.Stats) *atomic.Int64 { return &s.Status4xx },
		},
		{
			name: "wrong method", method: "GET", target: "/api/auth/login", status: http.StatusMethodNotAllowed,
			endpoint: func(s *stats.Stats) *atomic.Int64 { return &s.LoginRequests },
			class:    func(s *stats.Stats) *atomic.Int64 { return &s.Status4xx },
		},
		{
			name: "unknown route", method: "GET", target: "/api/songs", status: http.StatusNotFound,
			endpoint: func(s *stats.Stats) *atomic.Int64 { return &s.OtherRequests },
			class:    func(s *stats.Stats) *atomic.Int64 { return &s.Status4xx },
		},
	}

	handler := authRouter()
	st := stats.Get()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total := st.TotalRequests.Load()
			endpoint := tt.endpoint(st).Load()
			class := tt.class(st).Load()

			req := httptest.NewRequest(tt.method, tt.target, nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Fatalf("Expected status %d, got %d", tt.status, w.Code)
			}
			if got := st.TotalRequests.Load() - total; got != 1 {
				t.Errorf("Expected TotalRequests +1, got +%d", got)
			}
			if got := tt.endpoint(st).Load() - endpoint; got != 1 {
				t.Errorf("Expected endpoint counter +1, got +%d", got)
			}
			if got := tt.class(st).Load() - class; got != 1 {
				t.Errorf("Expected status class counter +1, got +%d", got)
			}
		})
	}
}
