package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"moodtunes-api-go/logcolors"
	"moodtunes-api-go/services/auth"
	"moodtunes-api-go/stats"

	log "github.com/sirupsen/logrus"
)

type claimsKey struct{}

// TokenVerifier validates a bearer token and returns its claims.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// ClaimsFromContext returns the claims stored by BearerMiddleware.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*auth.Claims)
	return c, ok
}

// BearerMiddleware requires a valid "Authorization: Bearer <token>" header and
// stores the token claims in the request context.
func BearerMiddleware(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, found := strings.CutPrefix(header, "Bearer ")
			token = strings.TrimSpace(token)

			if !found || token == "" {
				log.Warnf("%s Missing bearer token from %s for %s", logcolors.LogBearer, ClientIP(r), r.URL.Path)
				writeUnauthorized(w, "Authentication required.")
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				stats.Get().RecordAuthOutcome("token_rejected")
				log.Warnf("%s Rejected token from %s: %v", logcolors.LogBearer, ClientIP(r), err)
				writeUnauthorized(w, "Invalid or expired token.")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type unauthorizedBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="moodtunes"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(unauthorizedBody{Status: "error", Message: message})
}
