// Package explain is the HTTP front door for the explanation pipeline:
// POST /api/explain and GET /health.
package explain

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/httprate"

	"github.com/tjfontaine/api-explainer/internal/auth"
	"github.com/tjfontaine/api-explainer/internal/domain"
	explainsvc "github.com/tjfontaine/api-explainer/internal/explain"
	"github.com/tjfontaine/api-explainer/internal/frontdoor"
	"github.com/tjfontaine/api-explainer/internal/server"
)

// DefaultMaxBodyBytes bounds the request body.
const DefaultMaxBodyBytes = 1 << 20

type Handler struct {
	svc     *explainsvc.Service
	gate    *auth.SharedSecret
	maxBody int64
	logger  *slog.Logger
}

func NewHandler(svc *explainsvc.Service, gate *auth.SharedSecret, maxBody int64, logger *slog.Logger) *Handler {
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		svc:     svc,
		gate:    gate,
		maxBody: maxBody,
		logger:  logger,
	}
}

// Registrations lists the routes served by this front door.
func (h *Handler) Registrations() []frontdoor.HandlerRegistration {
	return []frontdoor.HandlerRegistration{
		{Method: http.MethodPost, Path: "/api/explain", Handler: h.HandleExplain, RateLimited: true},
		{Method: http.MethodGet, Path: "/health", Handler: h.HandleHealth},
	}
}

// HandleExplain answers POST /api/explain.
func (h *Handler) HandleExplain(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			server.AddError(ctx, err)
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]any{
				"error":  "Payload too large",
				"detail": "request body exceeds " + strconv.FormatInt(tooLarge.Limit, 10) + " bytes",
			})
			return
		}
		writeError(w, domain.ErrInvalidPayload([]domain.Issue{{
			Path:    "",
			Code:    domain.IssueInvalidJSON,
			Message: "Could not read request body",
		}}).WithCause(err))
		return
	}

	clientID, err := httprate.KeyByIP(r)
	if err != nil {
		clientID = r.RemoteAddr
	}

	out, err := h.svc.Explain(ctx, explainsvc.Call{
		Body:     body,
		ClientID: clientID,
		Secret:   h.gate.Extract(r),
	})

	server.SetRateLimits(ctx, out.Decision)
	server.AddLogField(ctx, "explain_path", string(out.Path))
	server.AddLogField(ctx, "model", out.Model)
	if out.FellBack {
		server.AddLogField(ctx, "fell_back", "true")
	}
	if out.PromptTokens > 0 {
		server.AddLogField(ctx, "prompt_tokens", strconv.Itoa(out.PromptTokens))
	}

	if err != nil {
		server.AddError(ctx, err)
		writeError(w, err)
		return
	}

	if out.Degraded {
		server.AddLogField(ctx, "degraded", "true")
	}
	writeJSON(w, http.StatusOK, out.Result)
}

// HandleHealth answers GET /health.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"demo": h.svc.DemoMode(),
	})
}

// writeError maps a pipeline error onto its HTTP response.
func writeError(w http.ResponseWriter, err error) {
	var derr *domain.Error
	if !errors.As(err, &derr) {
		derr = domain.ErrInternal("Server failure").WithDetail(err.Error())
	}

	status := derr.HTTPStatusCode()
	switch derr.Type {
	case domain.ErrorTypeInvalidPayload:
		issues := derr.Issues
		if issues == nil {
			issues = []domain.Issue{}
		}
		writeJSON(w, status, map[string]any{"error": derr.Message, "issues": issues})
	case domain.ErrorTypeUnauthorized:
		writeJSON(w, status, map[string]any{"error": derr.Message})
	case domain.ErrorTypeRateLimited:
		secs := int(math.Ceil(derr.RetryAfter.Seconds()))
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		writeJSON(w, status, map[string]any{"error": "rate_limit_exceeded", "detail": derr.Message})
	default:
		writeJSON(w, status, map[string]any{"error": derr.Message, "detail": derr.Detail})
	}
}

// writeJSON encodes v before committing the status so an unencodable value
// becomes a 500 instead of an empty success.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		data, _ = json.Marshal(map[string]string{
			"error":  "Server failure",
			"detail": "failed to encode response: " + err.Error(),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(data, '\n'))
}
