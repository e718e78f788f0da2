package main

import (
	"encoding/json"
	"net/http"
	"strings"

	"moodtunes-api-go/logcolors"
	"moodtunes-api-go/services/auth"

	log "github.com/sirupsen/logrus"
)

// APIResponse handles consistent header setting and JSON responses.
type APIResponse struct {
	w http.ResponseWriter
	r *http.Request
}

// Respond creates a response helper for the request
func Respond(w http.ResponseWriter, r *http.Request) *APIResponse {
	return &APIResponse{w: w, r: r}
}

func (a *APIResponse) writeHeaders() {
	a.w.Header().Set("Content-Type", "application/json")
	// tokens and account data must not be cached by intermediaries
	if strings.HasPrefix(a.r.URL.Path, "/api/auth/") {
		a.w.Header().Set("Cache-Control", "no-store")
	}
}

// Status writes headers, the status code and body as JSON
func (a *APIResponse) Status(statusCode int, body interface{}) error {
	a.writeHeaders()
	a.w.WriteHeader(statusCode)
	return json.NewEncoder(a.w).Encode(body)
}

// JSON encodes data with 200 OK
func (a *APIResponse) JSON(data interface{}) error {
	return a.Status(http.StatusOK, data)
}

// Success wraps data in the success envelope
func (a *APIResponse) Success(statusCode int, data interface{}) error {
	return a.Status(statusCode, successResponse{Status: "success", Data: data})
}

// Fail writes an error envelope with message
func (a *APIResponse) Fail(statusCode int, message string) error {
	return a.Status(statusCode, errorResponse{Status: "error", Message: message})
}

// Invalid writes a 400 listing the offending fields
func (a *APIResponse) Invalid(fields []auth.FieldError) error {
	return a.Status(http.StatusBadRequest, errorResponse{Status: "error", Message: msgValidation, Errors: fields})
}

// Internal logs err and writes a generic 500.
func (a *APIResponse) Internal(err error) error {
	log.Errorf("%s %s %s: %v", logcolors.LogInternal, a.r.Method, a.r.URL.Path, err)
	return a.Fail(http.StatusInternalServerError, msgInternal)
}
