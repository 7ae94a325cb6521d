package server

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/tjfontaine/api-explainer/internal/ratelimit"
)

// rateLimitContextKey is the context key for rate limit info
type rateLimitContextKey struct{}

// RateLimitInfo holds the per-client window reported on the response.
type RateLimitInfo struct {
	RequestsLimit     int
	RequestsRemaining int
	// RequestsReset is how long until the window frees a slot.
	RequestsReset time.Duration
}

// SetRateLimits records the limiter decision for the current request so
// RateLimitHeadersMiddleware can emit it. No-op if the middleware isn't present.
func SetRateLimits(ctx context.Context, d ratelimit.Decision) {
	rl, ok := ctx.Value(rateLimitContextKey{}).(*RateLimitInfo)
	if !ok || d.Limit <= 0 {
		return
	}
	rl.RequestsLimit = d.Limit
	rl.RequestsRemaining = d.Remaining
	if !d.ResetAt.IsZero() {
		rl.RequestsReset = time.Until(d.ResetAt)
	}
}

// RateLimitHeadersMiddleware writes x-ratelimit-*-requests headers from the
// decision the handler recorded with SetRateLimits.
func RateLimitHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := &RateLimitInfo{}
		ctx := context.WithValue(r.Context(), rateLimitContextKey{}, info)

		wrapped := &rateLimitResponseWriter{
			ResponseWriter: w,
			info:           info,
		}
		next.ServeHTTP(wrapped, r.WithContext(ctx))
	})
}

// rateLimitResponseWriter wraps ResponseWriter to write rate limit headers.
type rateLimitResponseWriter struct {
	http.ResponseWriter
	info         *RateLimitInfo
	wroteHeaders bool
}

func (rw *rateLimitResponseWriter) WriteHeader(code int) {
	if !rw.wroteHeaders {
		rw.writeRateLimitHeaders()
		rw.wroteHeaders = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *rateLimitResponseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeaders {
		rw.writeRateLimitHeaders()
		rw.wroteHeaders = true
	}
	return rw.ResponseWriter.Write(b)
}

func (rw *rateLimitResponseWriter) writeRateLimitHeaders() {
	rl := rw.info
	if rl == nil || rl.RequestsLimit <= 0 {
		return
	}

	h := rw.Header()
	h.Set("x-ratelimit-limit-requests", strconv.Itoa(rl.RequestsLimit))
	h.Set("x-ratelimit-remaining-requests", strconv.Itoa(rl.RequestsRemaining))
	if rl.RequestsReset > 0 {
		secs := int(math.Ceil(rl.RequestsReset.Seconds()))
		h.Set("x-ratelimit-reset-requests", strconv.Itoa(secs)+"s")
	}
}

// Flush forwards Flush to the underlying ResponseWriter if it supports http.Flusher.
func (rw *rateLimitResponseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
