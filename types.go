package main

import "moodtunes-api-go/services/auth"

const (
	msgRegistered      = "Registration successful. Please login."
	msgUserExists      = "User already exists."
	msgValidation      = "Validation failed."
	msgInvalidFormat   = "Invalid format."
	msgInvalidCreds    = "Invalid credentials."
	msgMalformedJSON   = "Malformed JSON body."
	msgInternal        = "Internal server error."
	msgUnauthorized    = "Unauthorized"
	msgTooManyAttempts = "Too many attempts, please try again after 15 minutes."
)

// maxBodyBytes caps auth request bodies.
const maxBodyBytes = 1 << 20

// successResponse wraps a payload as {"status":"success","data":...}
type successResponse struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data"`
}

// errorResponse is the body of every failed API call
type errorResponse struct {
	Status  string            `json:"status"`
	Code    string            `json:"code,omitempty"`
	Message string            `json:"message,omitempty"`
	Errors  []auth.FieldError `json:"errors,omitempty"`
}

type registerResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Message  string `json:"message"`
}

type identityResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}
