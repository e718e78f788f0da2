// Package authclient talks to the auth backend on behalf of the terminal client.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"moodtunes-api-go/logcolors"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultBaseURL = "http://localhost:3001"
	defaultMessage = "Request failed"
)

// FieldError is one entry of a validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is a non-2xx reply from the backend. Details carries the field errors
// of a validation failure.
type Error struct {
	Status  int
	Code    string
	Message string
	Details []FieldError
}

func (e *Error) Error() string {
	if len(e.Details) == 0 {
		return e.Message
	}
	parts := make([]string, len(e.Details))
	for i, d := range e.Details {
		parts[i] = d.Field + ": " + d.Message
	}
	return e.Message + " (" + strings.Join(parts, "; ") + ")"
}

// RateLimited reports whether the backend refused the attempt for rate limiting.
func (e *Error) RateLimited() bool {
	return e.Status == http.StatusTooManyRequests
}

type Registration struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Message  string `json:"message"`
}

type Session struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type envelope struct {
	Status  string          `json:"status"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Errors  []FieldError    `json:"errors"`
	Data    json.RawMessage `json:"data"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New returns a client for baseURL. A nil httpClient gets a 10s timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Errorf("%s %s %s failed: %v", logcolors.LogAuthClient, method, path, err)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{Status: resp.StatusCode, Code: env.Code, Message: env.Message, Details: env.Errors}
		if apiErr.Message == "" {
			apiErr.Message = defaultMessage
		}
		if apiErr.Details == nil {
			apiErr.Details = []FieldError{}
		}
		log.Warnf("%s %s %s -> %d: %v", logcolors.LogAuthClient, method, path, resp.StatusCode, apiErr)
		return apiErr
	}
	if decodeErr != nil {
		return fmt.Errorf("decoding %s response: %w", path, decodeErr)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decoding %s data: %w", path, err)
		}
	}
	return nil
}

// Register creates an account. The returned message asks the user to log in.
func (c *Client) Register(ctx context.Context, email, password, username string) (*Registration, error) {
	body := map[string]string{"email": email, "password": password, "username": username}
	var out Registration
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", "", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	body := map[string]string{"email": email, "password": password}
	var out Session
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", "", body, &out); err != nil {
		return nil, err
	}
	log.Infof("%s Logged in as %s", logcolors.LogAuthClient, logcolors.User(out.Username))
	return &out, nil
}

// Me returns the identity behind token.
func (c *Client) Me(ctx context.Context, token string) (*Identity, error) {
	var out Identity
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
