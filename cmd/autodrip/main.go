// Command autodrip serves the AutoDrip web app.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mhpenta/autodrip"
	"github.com/mhpenta/autodrip/credentials"
	"github.com/mhpenta/autodrip/internal/config"
	"github.com/mhpenta/autodrip/provider/gemini"
	"github.com/mhpenta/autodrip/ratelimiter"
	"github.com/mhpenta/autodrip/session"
	"github.com/mhpenta/autodrip/storage"
	"github.com/mhpenta/autodrip/web"
)

func main() {
	if err := run(); err != nil {
		slog.Error("autodrip stopped", "error", err.Error())
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	limiter, err := sharedLimiter(ctx, cfg)
	if err != nil {
		return err
	}

	var store autodrip.Storage
	if cfg.ExportDir != "" {
		local, err := storage.NewLocal(cfg.ExportDir)
		if err != nil {
			return fmt.Errorf("opening export dir: %w", err)
		}
		store = local
		logger.Info("exporting finished images", "dir", cfg.ExportDir)
	}

	factory := func(ctx context.Context, id string) (*web.Session, error) {
		keys := credentials.NewStore(credentials.WithKey(cfg.GeminiAPIKey))

		renderer, err := gemini.New(ctx, &gemini.Config{Keys: keys, Model: cfg.GeminiModel})
		if err != nil {
			return nil, fmt.Errorf("creating renderer: %w", err)
		}

		sessionLogger := logger.With("session_id", id)
		opts := []autodrip.ClientOption{
			autodrip.WithLogger(sessionLogger),
			autodrip.WithImageSize(cfg.ImageSize),
			autodrip.WithRateLimiter(limiter),
		}
		if store != nil {
			opts = append(opts, autodrip.WithStorage(store))
		}
		client := autodrip.NewClient(renderer, opts...)

		return &web.Session{
			Controller: session.New(ctx, client, keys, session.WithLogger(sessionLogger)),
			Keys:       keys,
		}, nil
	}

	handler, err := web.NewServer(factory, web.Options{
		SessionTTL:     cfg.SessionTTL,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr, "model", cfg.GeminiModel, "image_size", cfg.ImageSize)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// sharedLimiter returns one budget for every session. Explicit limits from
// the config win; otherwise the model's published limits apply.
func sharedLimiter(ctx context.Context, cfg *config.Config) (*ratelimiter.RateLimiter, error) {
	if cfg.RequestsPerMinute > 0 || cfg.TokensPerMinute > 0 {
		return ratelimiter.New(cfg.TokensPerMinute, cfg.RequestsPerMinute), nil
	}

	probe, err := gemini.New(ctx, &gemini.Config{Model: cfg.GeminiModel})
	if err != nil {
		return nil, fmt.Errorf("creating renderer: %w", err)
	}
	limits := probe.Models()[0].RateLimits
	return ratelimiter.New(limits.TokensPerMinute, limits.RequestsPerMinute), nil
}
