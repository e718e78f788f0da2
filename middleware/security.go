package middleware

import (
	"net/http"
	"strings"
)

// CSPDirective is one Content-Security-Policy directive and its sources.
type CSPDirective struct {
	Name    string
	Sources []string
}

// DefaultCSP allows the app's own origin plus the catalog artwork/preview
// hosts, Google Fonts and the chat agent widget.
var DefaultCSP = []CSPDirective{
	{"default-src", []string{"'self'"}},
	{"script-src", []string{"'self'", "'unsafe-inline'", "https://*.voiceflow.com", "https://cdn.voiceflow.com"}},
	{"style-src", []string{"'self'", "'unsafe-inline'", "https://fonts.googleapis.com", "https://cdn.voiceflow.com"}},
	{"font-src", []string{"'self'", "https://fonts.gstatic.com", "https://cdn.voiceflow.com"}},
	{"img-src", []string{"'self'", "data:", "https://is1-ssl.mzstatic.com", "https://cdn.voiceflow.com", "https://*.voiceflow.com"}},
	{"connect-src", []string{"'self'", "https://itunes.apple.com", "https://*.voiceflow.com"}},
	{"media-src", []string{"'self'", "https://*.voiceflow.com"}},
}

// BuildCSP renders directives into a header value.
func BuildCSP(directives []CSPDirective) string {
	parts := make([]string, 0, len(directives))
	for _, d := range directives {
		parts = append(parts, d.Name+" "+strings.Join(d.Sources, " "))
	}
	return strings.Join(parts, "; ")
}

// SecurityHeaders sets the hardening headers on every response.
func SecurityHeaders(directives []CSPDirective) func(http.Handler) http.Handler {
	csp := BuildCSP(directives)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Content-Security-Policy", csp)
			h.Set("Cross-Origin-Resource-Policy", "cross-origin")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "SAMEORIGIN")
			h.Set("X-DNS-Prefetch-Control", "off")
			h.Set("Strict-Transport-Security", "max-age=15552000; includeSubDomains")
			next.ServeHTTP(w, r)
		})
	}
}
