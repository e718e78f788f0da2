package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"moodtunes-api-go/logcolors"
	"moodtunes-api-go/middleware"
	"moodtunes-api-go/services/auth"
	"moodtunes-api-go/stats"

	log "github.com/sirupsen/logrus"
)

// decodeBody reads a JSON body into v. Unknown fields are ignored.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		log.Debugf("%s Rejected body on %s: %v", logcolors.LogAuth, r.URL.Path, err)
		Respond(w, r).Fail(http.StatusBadRequest, msgMalformedJSON)
		return false
	}
	return true
}

func registerHandler(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if !decodeBody(w, r, &req) {
		stats.Get().RecordAuthOutcome("invalid")
		return
	}

	user, err := authService.Register(r.Context(), req)
	var verr *auth.ValidationError
	switch {
	case errors.As(err, &verr):
		stats.Get().RecordAuthOutcome("invalid")
		Respond(w, r).Invalid(verr.Fields)
	case errors.Is(err, auth.ErrUserExists):
		stats.Get().RecordAuthOutcome("duplicate")
		log.Infof("%s Duplicate signup for %s", logcolors.LogAuth, logcolors.User(req.Email))
		Respond(w, r).Fail(http.StatusConflict, msgUserExists)
	case err != nil:
		Respond(w, r).Internal(err)
	default:
		stats.Get().RecordAuthOutcome("registered")
		Respond(w, r).Success(http.StatusCreated, registerResponse{
			ID:       user.ID,
			Username: user.Username,
			Message:  msgRegistered,
		})
	}
}

func loginHandler(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if !decodeBody(w, r, &req) {
		stats.Get().RecordAuthOutcome("invalid")
		return
	}

	session, err := authService.Login(r.Context(), req)
	var verr *auth.ValidationError
	switch {
	case errors.As(err, &verr):
		stats.Get().RecordAuthOutcome("invalid")
		Respond(w, r).Fail(http.StatusBadRequest, msgInvalidFormat)
	case errors.Is(err, auth.ErrInvalidCredentials):
		stats.Get().RecordAuthOutcome("login_failed")
		Respond(w, r).Fail(http.StatusUnauthorized, msgInvalidCreds)
	case err != nil:
		Respond(w, r).Internal(err)
	default:
		stats.Get().RecordAuthOutcome("login")
		Respond(w, r).Success(http.StatusOK, session)
	}
}

func meHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		Respond(w, r).Fail(http.StatusUnauthorized, "Authentication required.")
		return
	}
	Respond(w, r).Success(http.StatusOK, identityResponse{ID: claims.UserID, Username: claims.Username})
}

func getHealthStatus(w http.ResponseWriter, r *http.Request) {
	Respond(w, r).JSON(healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func getStats(w http.ResponseWriter, r *http.Request) {
	token := conf.Configuration.StatsAccessToken
	if token == "" || r.Header.Get("Authorization") != token {
		Respond(w, r).Fail(http.StatusUnauthorized, msgUnauthorized)
		return
	}

	snapshot := stats.Get().Snapshot()

	if usersKV != nil {
		numKeys, sizeInKB := usersKV.Stats()
		snapshot["user_storage"] = map[string]interface{}{
			"backend": "bbolt",
			"keys":    numKeys,
			"size_kb": sizeInKB,
		}
	} else {
		snapshot["user_storage"] = map[string]interface{}{"backend": "postgres"}
	}

	Respond(w, r).JSON(snapshot)
}

func helpHandler(w http.ResponseWriter, r *http.Request) {
	Respond(w, r).JSON(map[string]interface{}{
		"name": "moodtunes auth API",
		"endpoints": map[string]string{
			"POST /api/auth/register": "Create an account. Body: {email, password, username}",
			"POST /api/auth/login":    "Exchange credentials for a token. Body: {email, password}",
			"GET /api/auth/me":        "Identity behind the Authorization: Bearer <token> header",
			"GET /health":             "Liveness check",
			"GET /stats":              "Server statistics (Authorization: STATS_ACCESS_TOKEN)",
		},
	})
}
