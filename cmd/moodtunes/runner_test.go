package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"moodtunes-api-go/config"
	"moodtunes-api-go/services/authclient"
	"moodtunes-api-go/services/catalog"

	"github.com/urfave/cli/v3"
)

const hurt = `{"resultCount":1,"results":[{"trackId":7,"trackName":"Hurt","artistName":"Johnny Cash","primaryGenreName":"Country"}]}`

func newCatalogServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch term := r.URL.Query().Get("term"); term {
		case "hurt", "Johnny Cash":
			w.Write([]byte(hurt))
		case "many":
			var rows []string
			for i := 1; i <= 15; i++ {
				rows = append(rows, fmt.Sprintf(`{"trackId":%d,"trackName":"Track %02d","artistName":"Band","primaryGenreName":"Pop"}`, i, i))
			}
			fmt.Fprintf(w, `{"resultCount":15,"results":[%s]}`, strings.Join(rows, ","))
		default:
			w.Write([]byte(`{"resultCount":0,"results":[]}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newAuthServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/auth/register":
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			if body["password"] == "weak" {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"status":"error","message":"Validation failed.","errors":[{"field":"password","message":"Must be at least 8 characters"}]}`))
				return
			}
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"status":"success","data":{"id":"user-1","username":"` + body["username"] + `","message":"Registration successful. Please login."}}`))
		case "/api/auth/login":
			w.Write([]byte(`{"status":"success","data":{"token":"tok-123","username":"ana","email":"ana@example.com"}}`))
		case "/api/auth/me":
			if r.Header.Get("Authorization") != "Bearer tok-123" {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"status":"error","message":"Invalid or expired token."}`))
				return
			}
			w.Write([]byte(`{"status":"success","data":{"id":"user-1","username":"ana"}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestRunner(t *testing.T) (*Runner, *bytes.Buffer) {
	t.Helper()
	conf := config.Get()
	conf.Configuration.CatalogBaseURL = newCatalogServer(t).URL
	conf.Configuration.AuthServerURL = newAuthServer(t).URL
	conf.Configuration.ClientDBPath = filepath.Join(t.TempDir(), "client.db")
	conf.Configuration.ItemsPerPage = 12
	conf.Configuration.MaxQueryLength = 100

	out := &bytes.Buffer{}
	return NewRunner(RunnerOpts{Config: &conf, Output: out}), out
}

func run(r *Runner, args ...string) error {
	app := &cli.Command{Name: "moodtunes", Commands: r.register()}
	return app.Run(context.Background(), append([]string{"moodtunes"}, args...))
}

func TestNewRunner(t *testing.T) {
	t.Run("with nil config uses defaults", func(t *testing.T) {
		r := NewRunner(RunnerOpts{})
		if r.catalog == nil || r.auth == nil {
			t.Error("Expected clients to be built")
		}
		if r.output == nil {
			t.Error("Expected default output")
		}
	})

	t.Run("registers every command", func(t *testing.T) {
		r := NewRunner(RunnerOpts{})
		names := map[string]bool{}
		for _, c := range r.register() {
			names[c.Name] = true
		}
		for _, want := range []string{"search", "register", "login", "logout", "me", "tui"} {
			if !names[want] {
				t.Errorf("Expected command %q", want)
			}
		}
	})
}

func TestSearchCommand(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		contains []string
		wantErr  bool
	}{
		{"query", []string{"search", "hurt"}, []string{"Hurt", "Johnny Cash", "[Country]"}, false},
		{"artist", []string{"search", "--artist", "Johnny Cash"}, []string{"Hurt"}, false},
		{"no results", []string{"search", "nothing"}, []string{"No results found."}, false},
		{"second page", []string{"search", "--page", "2", "many"}, []string{"Track 13", "Page 2 of 2"}, false},
		{"missing query", []string{"search"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, out := newTestRunner(t)
			err := run(r, tt.args...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error %v, got %v", tt.wantErr, err)
			}
			for _, want := range tt.contains {
				if !strings.Contains(out.String(), want) {
					t.Errorf("Expected output to contain %q, got %q", want, out.String())
				}
			}
		})
	}
}

func TestSearchCommandJSON(t *testing.T) {
	r, out := newTestRunner(t)
	if err := run(r, "search", "--json", "hurt"); err != nil {
		t.Fatalf("search failed: %v", err)
	}

	var songs []catalog.Song
	if err := json.Unmarshal(out.Bytes(), &songs); err != nil {
		t.Fatalf("Expected JSON output: %v", err)
	}
	if len(songs) != 1 || songs[0].ID != 7 {
		t.Errorf("Expected Hurt, got %+v", songs)
	}
}

func TestRegisterCommand(t *testing.T) {
	r, out := newTestRunner(t)
	if err := run(r, "register", "--email", "ana@example.com", "--password", "Str0ng!pass", "--username", "ana"); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if !strings.Contains(out.String(), "Registration successful") {
		t.Errorf("Expected success message, got %q", out.String())
	}
}

func TestRegisterCommandShowsFieldErrors(t *testing.T) {
	r, out := newTestRunner(t)
	err := run(r, "register", "--email", "ana@example.com", "--password", "weak", "--username", "ana")

	var apiErr *authclient.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *authclient.Error, got %v", err)
	}
	if apiErr.Status != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", apiErr.Status)
	}
	if !strings.Contains(out.String(), "password: Must be at least 8 characters") {
		t.Errorf("Expected field error in output, got %q", out.String())
	}
}

func TestLoginThenMe(t *testing.T) {
	r, out := newTestRunner(t)

	if err := run(r, "me"); !errors.Is(err, errNotLoggedIn) {
		t.Fatalf("Expected errNotLoggedIn before login, got %v", err)
	}

	if err := run(r, "login", "--email", "ana@example.com", "--password", "Str0ng!pass"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if !strings.Contains(out.String(), "Logged in as ana") {
		t.Errorf("Expected login confirmation, got %q", out.String())
	}

	out.Reset()
	if err := run(r, "me"); err != nil {
		t.Fatalf("me failed: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "ana (user-1)" {
		t.Errorf("Expected %q, got %q", "ana (user-1)", got)
	}
}

func TestLogout(t *testing.T) {
	r, out := newTestRunner(t)

	if err := run(r, "login", "--email", "ana@example.com", "--password", "Str0ng!pass"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	out.Reset()
	if err := run(r, "logout"); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if !strings.Contains(out.String(), "Logged out") {
		t.Errorf("Expected logout confirmation, got %q", out.String())
	}
	if err := run(r, "me"); !errors.Is(err, errNotLoggedIn) {
		t.Errorf("Expected errNotLoggedIn after logout, got %v", err)
	}

	if err := run(r, "logout"); err != nil {
		t.Errorf("Expected a second logout to succeed, got %v", err)
	}
}
