package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oakmont/insights-api/config"
	httpx "github.com/oakmont/insights-api/internal/http"
)

// RuntimeConfig groups everything needed to serve requests.
type RuntimeConfig struct {
	Config   *config.AppConfig
	Services *ServiceContainer
	Logger   *slog.Logger
}

// Run serves HTTP and drives the cache background loop until ctx is
// canceled or a signal arrives, then shuts the server down gracefully.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if cfg.Config == nil || cfg.Services == nil {
		return errors.New("config and services are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := httpx.NewRouter(httpx.RouterServices{
		Auth:         cfg.Services.Auth,
		Google:       cfg.Services.Google,
		Dashboard:    cfg.Services.Dashboard,
		Deletion:     cfg.Services.Deletion,
		CookieDomain: cfg.Config.HTTP.CookieDomain,
		Logger:       logger,
	})
	handler := httpx.Logging(logger)(httpx.Recover(logger)(router))

	addr := cfg.Config.HTTP.Addr
	if addr == "" {
		addr = ":8080"
	}
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		if err := cfg.Services.Cache.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("HTTP server stopped")
	return nil
}
