// Package explain turns an API interaction into a plain-language explanation.
//
// A call is rate limited, validated and then answered either locally by the
// DemoExplainer or by the configured model, whose output is validated and
// replaced with a safe fallback when it does not conform.
package explain

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/api-explainer/internal/auth"
	"github.com/tjfontaine/api-explainer/internal/domain"
	"github.com/tjfontaine/api-explainer/internal/metrics"
	"github.com/tjfontaine/api-explainer/internal/provider/anthropic"
	"github.com/tjfontaine/api-explainer/internal/ratelimit"
	"github.com/tjfontaine/api-explainer/internal/tokens"
)

// Path is the branch an explain call took.
type Path string

const (
	PathDemo Path = "demo"
	PathLive Path = "live"
)

// ModelClient completes a prompt against the provider.
type ModelClient interface {
	Complete(ctx context.Context, p anthropic.Prompt) (*anthropic.Completion, error)
}

// Call is one inbound explain request.
type Call struct {
	// Body is the raw JSON request body.
	Body []byte
	// ClientID identifies the caller for rate limiting.
	ClientID string
	// Secret is the value of the shared-secret header, if any.
	Secret string
}

// Outcome describes a finished call. It is populated as far as the call
// progressed, including when Explain returns an error.
type Outcome struct {
	Result       domain.ExplainResult
	Degraded     bool
	Path         Path
	Model        string
	FellBack     bool
	PromptTokens int
	Decision     ratelimit.Decision
}

// Option configures a Service.
type Option func(*Service)

// WithDemoMode answers every call locally.
func WithDemoMode(enabled bool) Option {
	return func(s *Service) { s.demoMode = enabled }
}

// WithSharedSecret gates live calls.
func WithSharedSecret(gate *auth.SharedSecret) Option {
	return func(s *Service) { s.gate = gate }
}

// WithIDSource sets the id generator used by demo explanations.
func WithIDSource(ids IDSource) Option {
	return func(s *Service) { s.demo = NewDemoExplainer(ids) }
}

// WithEstimator sets the prompt token estimator.
func WithEstimator(e *tokens.Estimator) Option {
	return func(s *Service) {
		if e != nil {
			s.estimator = e
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Service orchestrates explain calls.
type Service struct {
	model     ModelClient
	limiter   ratelimit.Limiter
	gate      *auth.SharedSecret
	demo      *DemoExplainer
	estimator *tokens.Estimator
	demoMode  bool
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewService creates the orchestrator. model may be nil in demo mode.
func NewService(model ModelClient, limiter ratelimit.Limiter, opts ...Option) *Service {
	s := &Service{
		model:     model,
		limiter:   limiter,
		demo:      NewDemoExplainer(nil),
		estimator: tokens.NewEstimator(),
		logger:    slog.Default(),
		tracer:    otel.Tracer("github.com/tjfontaine/api-explainer/internal/explain"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DemoMode reports whether calls are answered locally.
func (s *Service) DemoMode() bool {
	return s.demoMode
}

// Explain runs one call to completion. Errors are always *domain.Error.
func (s *Service) Explain(ctx context.Context, call Call) (Outcome, error) {
	out := Outcome{Path: PathLive}
	if s.demoMode {
		out.Path = PathDemo
	}

	ctx, span := s.tracer.Start(ctx, "explain",
		trace.WithAttributes(attribute.String("explain.path", string(out.Path))),
	)
	defer span.End()

	out, err := s.explain(ctx, call, out)

	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = outcomeFor(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	} else if out.Degraded {
		outcome = metrics.OutcomeDegraded
	}
	span.SetAttributes(attribute.String("explain.outcome", outcome))
	metrics.IncExplain(string(out.Path), outcome)

	return out, err
}

func (s *Service) explain(ctx context.Context, call Call, out Outcome) (Outcome, error) {
	if s.limiter != nil {
		d, err := s.limiter.Allow(ctx, call.ClientID)
		if err != nil {
			// Store outages must not take the endpoint down.
			s.logger.WarnContext(ctx, "rate limit store unavailable, allowing call",
				slog.String("client_id", call.ClientID),
				slog.String("error", err.Error()),
			)
			d.Allowed = true
		}
		out.Decision = d
		if !d.Allowed {
			return out, domain.ErrRateLimited(d.RetryAfter)
		}
	}

	req, verr := ParseRequest(call.Body)

	if s.demoMode {
		if verr != nil {
			s.logger.DebugContext(ctx, "demo payload invalid, using empty context",
				slog.String("error", verr.Error()),
			)
			req = EmptyRequest()
		}
		out.Result = s.demo.Explain(req)
		return out, nil
	}

	if verr != nil {
		s.logger.WarnContext(ctx, "invalid explain payload", slog.String("error", verr.Error()))
		return out, verr
	}

	if !s.gate.Check(call.Secret) {
		return out, domain.ErrUnauthorized(s.gate.UnauthorizedMessage())
	}

	if s.model == nil {
		return out, domain.ErrInternal("Server failure").WithDetail("no model client configured")
	}

	prompt := BuildPrompt(req)
	out.PromptTokens = s.estimator.CountPrompt(prompt.System, prompt.User)
	metrics.ObservePromptTokens(out.PromptTokens)

	completion, err := s.model.Complete(ctx, prompt)
	if err != nil {
		var derr *domain.Error
		if errors.As(err, &derr) {
			return out, derr
		}
		return out, domain.ErrProvider("Server failure", err.Error()).WithCause(err)
	}
	out.Model = completion.Model
	out.FellBack = completion.FellBack

	result, degraded, reason := ValidateOutput(completion.Body)
	if degraded {
		s.logger.WarnContext(ctx, "model output did not match explanation shape, returning fallback",
			slog.String("model", completion.Model),
			slog.String("error", reason.Error()),
		)
	}
	out.Result = result
	out.Degraded = degraded
	return out, nil
}

func outcomeFor(err error) string {
	var derr *domain.Error
	if !errors.As(err, &derr) {
		return metrics.OutcomeProviderError
	}
	switch derr.Type {
	case domain.ErrorTypeInvalidPayload:
		return metrics.OutcomeInvalidPayload
	case domain.ErrorTypeUnauthorized:
		return metrics.OutcomeUnauthorized
	case domain.ErrorTypeRateLimited:
		return metrics.OutcomeRateLimited
	default:
		return metrics.OutcomeProviderError
	}
}
