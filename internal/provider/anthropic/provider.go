// Package anthropic implements the model client that asks Anthropic for an
// explanation, retrying once against a fallback model when the configured
// model is unknown to the provider.
package anthropic

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	anthropicapi "github.com/tjfontaine/api-explainer/internal/api/anthropic"
	"github.com/tjfontaine/api-explainer/internal/domain"
	"github.com/tjfontaine/api-explainer/internal/metrics"
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = "claude-3-5-haiku-latest"
	// DefaultFallbackModel is the known-good model retried on model-not-found.
	DefaultFallbackModel = "claude-3-5-haiku-latest"

	defaultMaxTokens   = 600
	defaultTemperature = 0.2
)

// Transport sends one Messages API request and returns the raw success body.
// Non-200 answers must be reported as *anthropicapi.StatusError.
type Transport interface {
	CreateMessageRaw(ctx context.Context, req *anthropicapi.MessagesRequest) ([]byte, error)
}

// Prompt is the single-turn input to the model.
type Prompt struct {
	System string
	User   string
}

// Completion is a successful provider answer.
type Completion struct {
	// Body is the raw provider success payload.
	Body []byte
	// Model is the model identifier that produced Body.
	Model string
	// FellBack is true when the fallback model answered.
	FellBack bool
}

// attempt is the retry state of a single Complete call.
type attempt int

const (
	attemptPrimary attempt = iota
	attemptFallback
	attemptFailed
)

func (a attempt) String() string {
	switch a {
	case attemptPrimary:
		return "primary"
	case attemptFallback:
		return "fallback"
	default:
		return "failed"
	}
}

// Option configures the ModelClient.
type Option func(*ModelClient)

// WithModel sets the primary model identifier.
func WithModel(model string) Option {
	return func(m *ModelClient) {
		if model != "" {
			m.model = model
		}
	}
}

// WithFallbackModel sets the model retried on model-not-found.
func WithFallbackModel(model string) Option {
	return func(m *ModelClient) {
		if model != "" {
			m.fallbackModel = model
		}
	}
}

// WithMaxTokens bounds the output length.
func WithMaxTokens(n int) Option {
	return func(m *ModelClient) {
		if n > 0 {
			m.maxTokens = n
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(m *ModelClient) {
		m.temperature = float32(t)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *ModelClient) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// ModelClient performs the outbound provider call.
type ModelClient struct {
	transport     Transport
	model         string
	fallbackModel string
	maxTokens     int
	temperature   float32
	logger        *slog.Logger
	tracer        trace.Tracer
}

// New creates a ModelClient over the given transport.
func New(transport Transport, opts ...Option) *ModelClient {
	m := &ModelClient{
		transport:     transport,
		model:         DefaultModel,
		fallbackModel: DefaultFallbackModel,
		maxTokens:     defaultMaxTokens,
		temperature:   defaultTemperature,
		logger:        slog.Default(),
		tracer:        otel.Tracer("github.com/tjfontaine/api-explainer/internal/provider/anthropic"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Model returns the primary model identifier.
func (m *ModelClient) Model() string {
	return m.model
}

// Complete sends the prompt to the primary model. When the provider reports
// that the model does not exist, it retries exactly once with the fallback
// model. Every other failure is returned as a provider *domain.Error whose
// Detail is the raw provider body.
func (m *ModelClient) Complete(ctx context.Context, p Prompt) (*Completion, error) {
	state := attemptPrimary
	model := m.model

	for {
		body, err := m.send(ctx, state, model, p)
		if err == nil {
			return &Completion{Body: body, Model: model, FellBack: state == attemptFallback}, nil
		}

		next := m.next(state, err)
		if next == attemptFallback {
			m.logger.WarnContext(ctx, "model not found, retrying with fallback model",
				slog.String("model", model),
				slog.String("fallback_model", m.fallbackModel),
			)
			state, model = next, m.fallbackModel
			continue
		}

		m.logger.ErrorContext(ctx, "provider call failed",
			slog.String("model", model),
			slog.String("attempt", state.String()),
			slog.String("error", err.Error()),
		)
		return nil, toDomainError(err)
	}
}

// next decides the state after a failed attempt.
func (m *ModelClient) next(state attempt, err error) attempt {
	if state != attemptPrimary || m.fallbackModel == m.model {
		return attemptFailed
	}
	if isModelNotFound(err) {
		return attemptFallback
	}
	return attemptFailed
}

func (m *ModelClient) send(ctx context.Context, state attempt, model string, p Prompt) ([]byte, error) {
	ctx, span := m.tracer.Start(ctx, "anthropic.messages",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("llm.model", model),
			attribute.String("llm.attempt", state.String()),
		),
	)
	defer span.End()

	temperature := m.temperature
	req := &anthropicapi.MessagesRequest{
		Model:       model,
		MaxTokens:   m.maxTokens,
		System:      p.System,
		Temperature: &temperature,
		Messages:    []anthropicapi.Message{anthropicapi.TextMessage("user", p.User)},
	}

	start := time.Now()
	body, err := m.transport.CreateMessageRaw(ctx, req)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		metrics.ObserveProviderCall(model, metrics.ProviderOK, elapsed)
	case isModelNotFound(err):
		metrics.ObserveProviderCall(model, metrics.ProviderModelNotFound, elapsed)
	default:
		metrics.ObserveProviderCall(model, metrics.ProviderError, elapsed)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider call failed")
	}
	return body, err
}

func isModelNotFound(err error) bool {
	var statusErr *anthropicapi.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.API.IsModelNotFound()
	}
	return false
}

func toDomainError(err error) *domain.Error {
	var statusErr *anthropicapi.StatusError
	if errors.As(err, &statusErr) {
		return domain.ErrProvider("Anthropic error", string(statusErr.Body)).WithCause(err)
	}
	return domain.ErrProvider("Server failure", err.Error()).WithCause(err)
}
