package server

import (
	"net/http"
	"strings"

	"github.com/tjfontaine/api-explainer/internal/auth"
)

var corsMethods = strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodOptions}, ", ")

// CORSMiddleware allows browser calls from the listed origins. "*" allows
// any origin. Requests without an Origin header pass through untouched.
// authHeader is the shared-secret header browsers must be allowed to send;
// empty means auth.DefaultHeader.
func CORSMiddleware(allowedOrigins []string, authHeader string) func(http.Handler) http.Handler {
	if authHeader == "" {
		authHeader = auth.DefaultHeader
	}
	corsHeaders := strings.Join([]string{"Content-Type", "Authorization", authHeader, "X-Request-ID"}, ", ")

	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[strings.TrimSuffix(origin, "/")] = true
	}
	allowAll := allowed["*"]

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Add("Vary", "Origin")
			if allowAll || allowed[origin] {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Methods", corsMethods)
				h.Set("Access-Control-Allow-Headers", corsHeaders)
				h.Set("Access-Control-Expose-Headers", "X-Request-ID, Retry-After, x-ratelimit-limit-requests, x-ratelimit-remaining-requests, x-ratelimit-reset-requests")
				h.Set("Access-Control-Max-Age", "600")
			}

			// Preflight never reaches handlers; a disallowed origin gets no
			// CORS headers and the browser blocks it.
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
