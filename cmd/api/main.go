package main

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

	_ "github.com/joho/godotenv/autoload"

	"github.com/atharv2608/backend-for-video-streaming-platform/internal/app"
	"github.com/atharv2608/backend-for-video-streaming-platform/internal/sdk/config"
	"github.com/atharv2608/backend-for-video-streaming-platform/internal/sdk/sqldb"
	"github.com/atharv2608/backend-for-video-streaming-platform/internal/services/media"
	"github.com/atharv2608/backend-for-video-streaming-platform/internal/services/sentry"
	"github.com/atharv2608/backend-for-video-streaming-platform/internal/services/tokens"
)

var build string

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("application startup failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	sqlService, err := sqldb.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer sqlService.Close()

	sentryService := sentry.NewSentryService()
	defer sentryService.Close()

	tokenService := tokens.NewTokenService(cfg.Tokens)

	mediaClient, err := media.NewClient(ctx, cfg.Media)
	if err != nil {
		return fmt.Errorf("initializing media store: %w", err)
	}

	accountsApp := app.NewApp(
		sqlService,
		sentryService,
		tokenService,
		mediaClient,
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      accountsApp.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("server starting", "addr", srv.Addr, "build", build)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listen and serve", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	wg.Wait()
	logger.Info("shutdown complete")
	return nil
}
