package anthropic

import (
	"log/slog"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	anthropicapi "github.com/tjfontaine/api-explainer/internal/api/anthropic"
	"github.com/tjfontaine/api-explainer/internal/config"
)

// NewFromConfig builds a ModelClient talking to the Anthropic API with a
// bounded, instrumented HTTP client.
func NewFromConfig(cfg config.AnthropicConfig, logger *slog.Logger) *ModelClient {
	httpClient := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	api := anthropicapi.NewClient(cfg.APIKey,
		anthropicapi.WithBaseURL(cfg.BaseURL),
		anthropicapi.WithVersion(cfg.Version),
		anthropicapi.WithHTTPClient(httpClient),
	)

	return New(api,
		WithModel(cfg.Model),
		WithFallbackModel(cfg.FallbackModel),
		WithMaxTokens(cfg.MaxTokens),
		WithTemperature(cfg.Temperature),
		WithLogger(logger),
	)
}
