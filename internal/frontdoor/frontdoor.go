// Package frontdoor mounts HTTP front doors onto the server router.
package frontdoor

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// HandlerRegistration represents a registered HTTP handler.
type HandlerRegistration struct {
	Path    string
	Method  string
	Handler func(http.ResponseWriter, *http.Request)
	// RateLimited routes report the caller's window in response headers.
	RateLimited bool
}

// Mount registers each handler on r. Rate-limited routes are wrapped with
// the given middleware.
func Mount(r chi.Router, regs []HandlerRegistration, rateLimitMW func(http.Handler) http.Handler) {
	for _, reg := range regs {
		var h http.Handler = http.HandlerFunc(reg.Handler)
		if reg.RateLimited && rateLimitMW != nil {
			h = rateLimitMW(h)
		}
		r.Method(reg.Method, reg.Path, h)
	}
}
