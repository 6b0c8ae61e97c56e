// The lending server exposes the library lending operations over HTTP on
// top of a PostgreSQL store.
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

	"github.com/libraryops/lending-core-go/cmd/lending-server/config"
	"github.com/libraryops/lending-core-go/cmd/lending-server/database"
	"github.com/libraryops/lending-core-go/lending"
	"github.com/libraryops/lending-core-go/lending/httpapi"
	"github.com/libraryops/lending-core-go/lending/postgresengine"
)

func main() {
	if err := run(); err != nil {
		slog.Error("lending server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := config.SetupLogger(cfg)
	logger.Info("starting lending server",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := database.Migrate(cfg, logger); err != nil {
		return err
	}

	store, err := postgresengine.NewLendingStoreFromPGXPool(pool, postgresengine.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("building lending store: %w", err)
	}

	service, err := lending.NewService(store, store, store,
		lending.WithLoanPeriodDays(cfg.LoanPeriodDays),
		lending.WithRetryOptions(
			lending.WithMaxAttempts(cfg.RetryMaxAttempts),
			lending.WithBaseDelay(cfg.RetryBaseDelay),
		),
		lending.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("building lending service: %w", err)
	}

	if cfg.SanctionSweepInterval > 0 {
		go runSanctionSweep(ctx, service, cfg.SanctionSweepInterval, logger)
	}

	handler := httpapi.NewHandler(service, logger)
	health := httpapi.NewHealthHandler(pool)
	router := httpapi.NewRouter(handler, health, logger)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	serverErrors := make(chan error, 1)

	go func() {
		logger.Info("http server listening", slog.String("addr", httpServer.Addr))
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
	}

	logger.Info("lending server stopped")

	return nil
}

// runSanctionSweep periodically deactivates expired sanctions. The sweep is
// an optimization for reporting; InEffect checks expiry lazily either way.
func runSanctionSweep(ctx context.Context, service *lending.Service, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := service.SweepExpiredSanctions(ctx); err != nil {
				logger.Warn("sanction sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}
