// Command swapgate launches the swap quote service.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc"

	"github.com/coachpo/swapgate/internal/book"
	"github.com/coachpo/swapgate/internal/exchange/currencycom"
	"github.com/coachpo/swapgate/internal/infra/config"
	"github.com/coachpo/swapgate/internal/infra/persistence/migrations"
	"github.com/coachpo/swapgate/internal/infra/persistence/postgres"
	httpserver "github.com/coachpo/swapgate/internal/infra/server/http"
	"github.com/coachpo/swapgate/internal/infra/telemetry"
	"github.com/coachpo/swapgate/internal/quote"
)

const (
	defaultConfigPath     = "config/app.yaml"
	defaultMigrationsPath = "db/migrations"
	loggerPrefix          = "swapgate "

	shutdownTimeout          = 30 * time.Second
	apiServerShutdownTimeout = 5 * time.Second
	lifecycleShutdownTimeout = 10 * time.Second
	telemetryShutdownTimeout = 5 * time.Second
	readHeaderTimeout        = 5 * time.Second
)

func main() {
	cfgPathFlag := parseFlags()
	ctx, cancel := newSignalContext()
	defer cancel()

	logger := log.New(os.Stdout, loggerPrefix, log.LstdFlags|log.Lmicroseconds)

	configPath := resolveConfigPath(cfgPathFlag)
	appCfg, err := config.Load(ctx, configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	logger.Printf("configuration initialised: env=%s, pairs=%d", appCfg.Environment, len(appCfg.Quotes.Pairs))

	telemetryProvider, err := initTelemetry(ctx, logger, appCfg.Environment, appCfg.Telemetry)
	if err != nil {
		logger.Fatalf("initialize telemetry: %v", err)
	}

	if appCfg.Database.RunMigrations {
		if err := migrations.Apply(ctx, appCfg.Database.DSN, defaultMigrationsPath, logger); err != nil {
			logger.Fatalf("apply migrations: %v", err)
		}
	}

	pool, err := newPgxPool(ctx, appCfg.Database)
	if err != nil {
		logger.Fatalf("initialise database pool: %v", err)
	}
	store := postgres.NewQuoteStore(pool)

	gateway := currencycom.New(currencycom.Options{
		BaseURL:           appCfg.Exchange.BaseURL,
		APIKey:            appCfg.Exchange.APIKey,
		APISecret:         appCfg.Exchange.APISecret,
		HTTPTimeout:       appCfg.Exchange.HTTPTimeout,
		RecvWindow:        appCfg.Exchange.RecvWindow,
		DepthLimit:        appCfg.Exchange.DepthLimit,
		FetchAttempts:     appCfg.Exchange.FetchAttempts,
		RequestsPerSecond: appCfg.Exchange.RequestsPerSecond,
	}, currencycom.WithLogger(logger))

	metrics, err := telemetry.NewQuoteMetrics(telemetryProvider.Meter("quote"))
	if err != nil {
		logger.Fatalf("initialise quote metrics: %v", err)
	}

	settings := quote.Settings{
		FeePercent: map[book.Side]decimal.Decimal{
			book.SideBuy:  appCfg.Quotes.BuyFee(),
			book.SideSell: appCfg.Quotes.SellFee(),
		},
		ValidityWindow: appCfg.Quotes.ValidityWindow,
	}
	service := quote.NewService(gateway, store, settings,
		quote.WithLogger(logger),
		quote.WithMetrics(metrics),
	)

	var lifecycle conc.WaitGroup

	apiServer := buildAPIServer(appCfg.APIServer, service, settings)
	startAPIServer(&lifecycle, logger, apiServer)
	logger.Printf("quote API listening on %s", apiServer.Addr)

	logger.Print("swapgate started; awaiting shutdown signal")
	<-ctx.Done()
	logger.Print("shutdown signal received, initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	shutdownStart := time.Now()
	performGracefulShutdown(shutdownCtx, logger, gracefulShutdownConfig{
		server:     apiServer,
		mainCancel: cancel,
		lifecycle:  &lifecycle,
		pool:       pool,
		telemetry:  telemetryProvider,
	})

	logger.Printf("shutdown completed in %v", time.Since(shutdownStart))
}

func parseFlags() string {
	cfgPath := flag.String("config", "", fmt.Sprintf("Path to application configuration file (default: %s)", defaultConfigPath))
	flag.Parse()
	return *cfgPath
}

func newSignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func initTelemetry(ctx context.Context, logger *log.Logger, env config.Environment, cfg config.TelemetryConfig) (*telemetry.Provider, error) {
	telemetryCfg := telemetry.DefaultConfig()
	if cfg.OTLPEndpoint != "" {
		telemetryCfg.OTLPEndpoint = cfg.OTLPEndpoint
	}
	if cfg.ServiceName != "" {
		telemetryCfg.ServiceName = cfg.ServiceName
	}
	telemetryCfg.Environment = string(env)
	telemetryCfg.OTLPInsecure = cfg.OTLPInsecure
	telemetryCfg.Enabled = cfg.EnableMetrics

	provider, err := telemetry.NewProvider(ctx, telemetryCfg)
	if err != nil {
		return nil, fmt.Errorf("initialize telemetry provider: %w", err)
	}

	if telemetryCfg.Enabled {
		logger.Printf("telemetry initialized: endpoint=%s, service=%s", telemetryCfg.OTLPEndpoint, telemetryCfg.ServiceName)
	} else {
		logger.Printf("telemetry disabled")
	}
	return provider, nil
}

func newPgxPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func buildAPIServer(cfg config.APIServerConfig, service *quote.Service, settings quote.Settings) *http.Server {
	handler := httpserver.NewHandler(service, settings)

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

func startAPIServer(lifecycle *conc.WaitGroup, logger *log.Logger, server *http.Server) {
	lifecycle.Go(func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("quote server: %v", err)
		}
	})
}

type gracefulShutdownConfig struct {
	server     *http.Server
	mainCancel context.CancelFunc
	lifecycle  *conc.WaitGroup
	pool       *pgxpool.Pool
	telemetry  *telemetry.Provider
}

func performGracefulShutdown(ctx context.Context, logger *log.Logger, cfg gracefulShutdownConfig) {
	shutdownStep := func(name string, timeout time.Duration, fn func(context.Context) error) {
		stepCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		logger.Printf("shutdown: %s...", name)
		if err := fn(stepCtx); err != nil {
			logger.Printf("shutdown: %s failed: %v", name, err)
		} else {
			logger.Printf("shutdown: %s completed", name)
		}
	}

	if cfg.server != nil {
		shutdownStep("stopping quote server", apiServerShutdownTimeout, func(stepCtx context.Context) error {
			return cfg.server.Shutdown(stepCtx)
		})
	}

	logger.Print("shutdown: cancelling main context")
	if cfg.mainCancel != nil {
		cfg.mainCancel()
	}

	if cfg.lifecycle != nil {
		shutdownStep("waiting for lifecycle goroutines", lifecycleShutdownTimeout, func(stepCtx context.Context) error {
			done := make(chan struct{})
			go func() {
				cfg.lifecycle.Wait()
				close(done)
			}()
			select {
			case <-done:
				return nil
			case <-stepCtx.Done():
				return fmt.Errorf("timeout waiting for goroutines: %w", stepCtx.Err())
			}
		})
	}

	if cfg.pool != nil {
		logger.Print("shutdown: closing database pool")
		cfg.pool.Close()
	}

	if cfg.telemetry != nil {
		shutdownStep("shutting down telemetry", telemetryShutdownTimeout, func(stepCtx context.Context) error {
			return cfg.telemetry.Shutdown(stepCtx)
		})
	}
}

func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return filepath.Clean(defaultConfigPath)
}
