package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/tjfontaine/api-explainer/internal/auth"
	"github.com/tjfontaine/api-explainer/internal/config"
	"github.com/tjfontaine/api-explainer/internal/explain"
	"github.com/tjfontaine/api-explainer/internal/frontdoor"
	explainfd "github.com/tjfontaine/api-explainer/internal/frontdoor/explain"
	"github.com/tjfontaine/api-explainer/internal/provider/anthropic"
	"github.com/tjfontaine/api-explainer/internal/ratelimit"
	"github.com/tjfontaine/api-explainer/internal/server"
	"github.com/tjfontaine/api-explainer/internal/telemetry"
	"github.com/tjfontaine/api-explainer/internal/tokens"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg, err := config.Load(config.PathFromEnv())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel(),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("explainer exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}

	shutdownTracer, err := telemetry.InitTracer(cfg.Telemetry, logger)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	limiter, closeLimiter, err := newLimiter(ctx, cfg.RateLimit, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeLimiter.Close(); err != nil {
			logger.Warn("failed to close rate limit store", slog.String("error", err.Error()))
		}
	}()

	gate := auth.NewSharedSecret(cfg.Auth.Secret, cfg.Auth.Header)

	var model explain.ModelClient
	modelName := "none"
	if !cfg.Demo.Enabled {
		client := anthropic.NewFromConfig(cfg.Anthropic, logger)
		modelName = client.Model()
		model = client
	}

	svc := explain.NewService(model, limiter,
		explain.WithDemoMode(cfg.Demo.Enabled),
		explain.WithSharedSecret(gate),
		explain.WithEstimator(tokens.NewEstimator()),
		explain.WithLogger(logger),
	)

	srv := server.New(cfg.Server, gate, logger)
	handler := explainfd.NewHandler(svc, gate, cfg.Server.MaxBodyBytes, logger)
	frontdoor.Mount(srv.Router, handler.Registrations(), server.RateLimitHeadersMiddleware)

	logger.Info("explainer configured",
		slog.Bool("demo", cfg.Demo.Enabled),
		slog.String("model", modelName),
		slog.String("fallback_model", cfg.Anthropic.FallbackModel),
		slog.String("ratelimit_backend", cfg.RateLimit.Backend),
		slog.Bool("auth_gate", gate.Enabled()),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("explainer shutdown complete")
	return nil
}

// newLimiter builds the configured rate limit store and the closer that
// releases it.
func newLimiter(ctx context.Context, cfg config.RateLimitConfig, logger *slog.Logger) (ratelimit.Limiter, io.Closer, error) {
	switch cfg.Backend {
	case "redis":
		limiter, client, err := ratelimit.NewRedisFromConfig(ctx, cfg, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("rate limit store: %w", err)
		}
		return limiter, client, nil
	default:
		m := ratelimit.NewMemory(cfg.Limit, cfg.Window)
		return m, m, nil
	}
}
