package main

import (
	"net/http"

	"moodtunes-api-go/middleware"

	"github.com/gorilla/mux"
)

// setupRoutes configures all HTTP routes for the API
func setupRoutes(router *mux.Router) {
	// register and login share one per-IP budget
	limiter := middleware.NewWindowLimiter(conf.Configuration.AuthRateLimitMax, conf.AuthRateWindow())
	limited := middleware.RateLimitMiddleware(limiter, msgTooManyAttempts)

	api := router.PathPrefix("/api/auth").Subrouter()
	api.Handle("/register", limited(http.HandlerFunc(registerHandler))).Methods(http.MethodPost)
	api.Handle("/login", limited(http.HandlerFunc(loginHandler))).Methods(http.MethodPost)
	api.Handle("/me", middleware.BearerMiddleware(authService)(http.HandlerFunc(meHandler))).Methods(http.MethodGet)

	// Health and stats endpoints
	router.HandleFunc("/health", getHealthStatus).Methods(http.MethodGet)
	router.HandleFunc("/stats", getStats).Methods(http.MethodGet)

	router.HandleFunc("/", helpHandler)
}

// newHandler builds the router and wraps it in the middleware chain.
func newHandler() http.Handler {
	router := mux.NewRouter()
	setupRoutes(router)

	handler := middleware.SecurityHeaders(middleware.DefaultCSP)(router)
	handler = corsMiddleware(handler)
	return middleware.LoggingMiddleware(handler)
}
