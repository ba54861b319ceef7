// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/lightnote/internal/api"
	"github.com/starford/lightnote/internal/factory"
	"github.com/starford/lightnote/internal/provider"
	"github.com/starford/lightnote/internal/reload"
	"github.com/starford/lightnote/internal/sse"
	pkgconfig "github.com/starford/lightnote/pkg/config"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("provider_kind", string(cfg.Database.Kind)),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Build the storage provider through the factory.
	f := factory.New(logger)
	defer f.Close()

	if _, err := f.CreateProvider(ctx, cfg.Database); err != nil {
		return fmt.Errorf("init provider: %w", err)
	}

	// SSE broker, fed by the active provider's change events. The
	// bridge re-attaches after every provider switch.
	broker := sse.NewBroker()
	defer broker.Close()

	var bridgeMu sync.Mutex
	var detach func()
	attach := func(p provider.Provider) {
		bridgeMu.Lock()
		defer bridgeMu.Unlock()
		if detach != nil {
			detach()
		}
		unsub, err := p.SubscribeChanges(broker.Publish)
		if err != nil {
			logger.Warn("change subscription failed", slog.String("error", err.Error()))
			detach = nil
			return
		}
		detach = unsub
	}
	attach(f.Current())

	// Build API router.
	apiRouter := api.NewRouter(f, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		p := f.Current()
		if p == nil || p.Ping(req.Context()) != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Watch the config file and hot-swap the provider on change.
	if app.configPath != "" {
		loadDB := func() (provider.Config, error) {
			next := NewDefaultConfig()
			if err := pkgconfig.Load(app.configPath, next); err != nil {
				return provider.Config{}, err
			}
			return next.Database, nil
		}
		applyDB := func(ctx context.Context, dbCfg provider.Config) error {
			p, err := f.SwitchProvider(ctx, dbCfg)
			if err != nil {
				return err
			}
			attach(p)
			return nil
		}
		g.Go(func() error {
			return reload.Watch(gCtx, app.configPath, logger, loadDB, applyDB)
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
