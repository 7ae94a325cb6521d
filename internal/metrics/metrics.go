// Package metrics provides Prometheus metrics for the explain pipeline.
// Labels stay low-cardinality: no client ids or request ids.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Explain outcomes.
const (
	OutcomeSuccess        = "success"
	OutcomeDegraded       = "degraded"
	OutcomeInvalidPayload = "invalid_payload"
	OutcomeUnauthorized   = "unauthorized"
	OutcomeRateLimited    = "rate_limited"
	OutcomeProviderError  = "provider_error"
)

// Provider call results.
const (
	ProviderOK            = "ok"
	ProviderModelNotFound = "model_not_found"
	ProviderError         = "error"
)

var (
	explainRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "explainer",
		Name:      "requests_total",
		Help:      "Total explain calls, by path (demo/live) and outcome.",
	}, []string{"path", "outcome"})

	providerCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "explainer",
		Name:      "provider_calls_total",
		Help:      "Total outbound provider calls, by model and result.",
	}, []string{"model", "result"})

	providerCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "explainer",
		Name:      "provider_call_duration_seconds",
		Help:      "Latency of outbound provider calls.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15},
	}, []string{"model"})

	promptTokens = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "explainer",
		Name:      "prompt_tokens",
		Help:      "Estimated token size of the user message sent to the provider.",
		Buckets:   prometheus.ExponentialBuckets(64, 2, 8),
	})

	rateLimitStoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "explainer",
		Name:      "ratelimit_store_errors_total",
		Help:      "Rate limit store failures, by backend. Calls are allowed when the store fails.",
	}, []string{"backend"})
)

// IncExplain records the outcome of one explain call.
func IncExplain(path, outcome string) {
	if path == "" {
		path = "unknown"
	}
	explainRequestsTotal.WithLabelValues(path, outcome).Inc()
}

// ObserveProviderCall records one outbound provider call.
func ObserveProviderCall(model, result string, d time.Duration) {
	providerCallsTotal.WithLabelValues(model, result).Inc()
	providerCallDuration.WithLabelValues(model).Observe(d.Seconds())
}

// ObservePromptTokens records the estimated prompt size.
func ObservePromptTokens(n int) {
	if n <= 0 {
		return
	}
	promptTokens.Observe(float64(n))
}

// IncRateLimitStoreError records a failed rate limit store call.
func IncRateLimitStoreError(backend string) {
	rateLimitStoreErrors.WithLabelValues(backend).Inc()
}
