package frontdoor

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestMount(t *testing.T) {
	r := chi.NewRouter()
	wrapped := 0
	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped++
			next.ServeHTTP(w, r)
		})
	}

	ok := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }
	Mount(r, []HandlerRegistration{
		{Method: http.MethodPost, Path: "/limited", Handler: ok, RateLimited: true},
		{Method: http.MethodGet, Path: "/open", Handler: ok},
	}, mw)

	for _, tc := range []struct {
		method, path string
		status       int
	}{
		{http.MethodPost, "/limited", http.StatusOK},
		{http.MethodGet, "/open", http.StatusOK},
		{http.MethodGet, "/limited", http.StatusMethodNotAllowed},
	} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		if rec.Code != tc.status {
			t.Errorf("%s %s: status = %d, want %d", tc.method, tc.path, rec.Code, tc.status)
		}
	}

	if wrapped != 1 {
		t.Errorf("middleware ran %d times, want 1", wrapped)
	}
}
