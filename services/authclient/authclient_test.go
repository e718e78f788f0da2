package authclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func backend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/register", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		switch body["email"] {
		case "taken@example.com":
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte(`{"status":"error","message":"User already exists."}`))
		case "weak@example.com":
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"status":"error","errors":[{"field":"password","message":"Must contain uppercase"}]}`))
		default:
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"status":"success","data":{"id":"user-1","username":"` + body["username"] + `","message":"Registration successful. Please login."}}`))
		}
	})
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Expected JSON content type, got %q", r.Header.Get("Content-Type"))
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		switch body["password"] {
		case "Password1":
			w.Write([]byte(`{"status":"success","data":{"token":"tok","username":"ana","email":"` + body["email"] + `"}}`))
		case "limited":
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"status":"error","code":"RATE_LIMIT_EXCEEDED","message":"Too many attempts, please try again after 15 minutes."}`))
		case "html":
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`<html>bad gateway</html>`))
		default:
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"status":"error","message":"Invalid credentials."}`))
		}
	})
	mux.HandleFunc("/api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"status":"error","message":"Invalid or expired token."}`))
			return
		}
		w.Write([]byte(`{"status":"success","data":{"id":"user-1","username":"ana"}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRegister(t *testing.T) {
	c := New(backend(t).URL, nil)

	reg, err := c.Register(context.Background(), "ana@example.com", "Password1", "ana")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if reg.ID != "user-1" || reg.Username != "ana" || reg.Message == "" {
		t.Errorf("Unexpected registration %+v", reg)
	}
}

func TestRegisterErrors(t *testing.T) {
	c := New(backend(t).URL, nil)

	tests := []struct {
		name        string
		email       string
		status      int
		message     string
		detailField string
	}{
		{"conflict", "taken@example.com", http.StatusConflict, "User already exists.", ""},
		{"validation", "weak@example.com", http.StatusBadRequest, "Request failed", "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Register(context.Background(), tt.email, "x", "ana")
			var apiErr *Error
			if !errors.As(err, &apiErr) {
				t.Fatalf("Expected *Error, got %v", err)
			}
			if apiErr.Status != tt.status || apiErr.Message != tt.message {
				t.Errorf("Expected %d %q, got %d %q", tt.status, tt.message, apiErr.Status, apiErr.Message)
			}
			if apiErr.Details == nil {
				t.Error("Expected details to be a non-nil slice")
			}
			if tt.detailField != "" && (len(apiErr.Details) != 1 || apiErr.Details[0].Field != tt.detailField) {
				t.Errorf("Expected a %s detail, got %+v", tt.detailField, apiErr.Details)
			}
		})
	}
}

func TestLogin(t *testing.T) {
	c := New(backend(t).URL+"/", nil)

	sess, err := c.Login(context.Background(), "ana@example.com", "Password1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if sess.Token != "tok" || sess.Email != "ana@example.com" {
		t.Errorf("Unexpected session %+v", sess)
	}

	id, err := c.Me(context.Background(), sess.Token)
	if err != nil {
		t.Fatalf("Me failed: %v", err)
	}
	if id.ID != "user-1" || id.Username != "ana" {
		t.Errorf("Unexpected identity %+v", id)
	}
}

func TestLoginErrors(t *testing.T) {
	c := New(backend(t).URL, nil)

	tests := []struct {
		password    string
		status      int
		rateLimited bool
	}{
		{"wrong", http.StatusUnauthorized, false},
		{"limited", http.StatusTooManyRequests, true},
		{"html", http.StatusBadGateway, false},
	}

	for _, tt := range tests {
		_, err := c.Login(context.Background(), "ana@example.com", tt.password)
		var apiErr *Error
		if !errors.As(err, &apiErr) {
			t.Fatalf("%s: expected *Error, got %v", tt.password, err)
		}
		if apiErr.Status != tt.status || apiErr.RateLimited() != tt.rateLimited {
			t.Errorf("%s: expected status %d rateLimited=%v, got %d %v", tt.password, tt.status, tt.rateLimited, apiErr.Status, apiErr.RateLimited())
		}
	}
}

func TestErrorMessageIncludesDetails(t *testing.T) {
	err := &Error{Message: "Validation failed", Details: []FieldError{{Field: "email", Message: "Invalid email"}}}
	if got := err.Error(); got != "Validation failed (email: Invalid email)" {
		t.Errorf("Unexpected message %q", got)
	}
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url, nil).Login(context.Background(), "a@b.co", "x")
	var apiErr *Error
	if err == nil || errors.As(err, &apiErr) {
		t.Errorf("Expected a transport error, got %v", err)
	}
}
