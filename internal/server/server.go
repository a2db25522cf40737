// Package server orchestrates all components: COMMS client, journal DB,
// correlation, permissions, launcher, view events and HTTP health.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/morezero/rootbridge/internal/config"
	"github.com/morezero/rootbridge/pkg/commsutil"
	"github.com/morezero/rootbridge/pkg/db"
	"github.com/morezero/rootbridge/pkg/dispatcher"
	"github.com/morezero/rootbridge/pkg/launcher"
	"github.com/morezero/rootbridge/pkg/metrics"
	"github.com/morezero/rootbridge/pkg/observable"
	"github.com/morezero/rootbridge/pkg/rules"
)

const logPrefix = "server:server"

// SetupLogging installs a text slog handler at level.
func SetupLogging(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

// Run starts the bridge, blocks until shutdown signal, then cleans up.
func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	SetupLogging(cfg.LogLevel)
	if err := cfg.ValidateForServe(); err != nil {
		return err
	}

	slog.Info(fmt.Sprintf("%s - Starting rootbridge (user=%d platform=%q)", logPrefix, cfg.UserID, cfg.PlatformVersion))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Step 1: Connectivity signal, driven by the COMMS connection
	connected := observable.New(false)
	nc, err := commsutil.Connect(cfg.COMMSURL, cfg.COMMSName, &commsutil.ConnectOpts{
		OnDisconnect: func(error) { connected.Set(false) },
		OnReconnect:  func() { connected.Set(true) },
	})
	if err != nil {
		return fmt.Errorf("%s - failed to connect to COMMS: %w", logPrefix, err)
	}

	// Step 2: Optional launch journal
	var journal launcher.Journal = launcher.NoOpJournal{}
	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		pool, err = openJournal(ctx, cfg)
		if err != nil {
			nc.Close()
			return err
		}
		journal = db.NewRepository(pool)
	} else {
		slog.Info(fmt.Sprintf("%s - DATABASE_URL not set, launch journal disabled", logPrefix))
	}
	closePool := func() {
		if pool != nil {
			pool.Close()
		}
	}

	// Step 3: Permission rules
	ruleSet, err := rules.LoadRuleSet(cfg.RulesFile)
	if err != nil {
		closePool()
		nc.Close()
		return fmt.Errorf("%s - failed to load rules: %w", logPrefix, err)
	}

	// Step 4: Bridge
	collector := metrics.NewCollector()
	bridge, err := NewBridge(BridgeOpts{
		Config:    cfg,
		Conn:      nc,
		Connected: connected,
		Journal:   journal,
		Rules:     ruleSet,
		Metrics:   collector,
	})
	if err != nil {
		closePool()
		nc.Close()
		return err
	}
	if err := bridge.Start(ctx); err != nil {
		closePool()
		nc.Close()
		return err
	}
	connected.Set(nc.IsConnected())

	// Step 5: HTTP health server
	httpAddr := fmt.Sprintf(":%d", cfg.HTTPPort)
	httpServer := &http.Server{Addr: httpAddr, Handler: newMux(bridge, collector.Handler(), cfg.HealthCheckTimeout)}
	go func() {
		slog.Info(fmt.Sprintf("%s - HTTP health server listening on %s", logPrefix, httpAddr))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error(fmt.Sprintf("%s - HTTP server error: %v", logPrefix, err))
		}
	}()

	slog.Info(fmt.Sprintf("%s - rootbridge is ready", logPrefix))

	sig := waitForSignal()
	slog.Info(fmt.Sprintf("%s - Received signal %s, shutting down", logPrefix, sig))

	// Graceful shutdown
	_ = httpServer.Shutdown(ctx)
	bridge.Close()
	_ = nc.Drain()
	closePool()

	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
	return nil
}

// RunHelper starts the privileged helper, blocks until shutdown signal, then cleans up.
func RunHelper() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	SetupLogging(cfg.LogLevel)
	if err := cfg.ValidateForHelper(); err != nil {
		return err
	}

	slog.Info(fmt.Sprintf("%s - Starting rootbridge helper (shell=%s)", logPrefix, cfg.HelperShell))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	nc, err := commsutil.Connect(cfg.COMMSURL, cfg.COMMSName+"-helper", nil)
	if err != nil {
		return fmt.Errorf("%s - failed to connect to COMMS: %w", logPrefix, err)
	}

	helper := NewHelper(cfg, nc, dispatcher.NewShellExecutor(cfg.HelperShell))
	if err := helper.Start(ctx); err != nil {
		nc.Close()
		return err
	}

	sig := waitForSignal()
	slog.Info(fmt.Sprintf("%s - Received signal %s, shutting down", logPrefix, sig))

	helper.Close()
	_ = nc.Drain()
	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
	return nil
}

// openJournal connects to the database and applies migrations when enabled.
func openJournal(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to connect to database: %w", logPrefix, err)
	}
	if cfg.RunMigrations {
		migrations, err := db.LoadMigrationFiles(cfg.MigrationPath)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("%s - failed to load migrations: %w", logPrefix, err)
		}
		if err := db.RunMigrations(ctx, pool, migrations); err != nil {
			pool.Close()
			return nil, fmt.Errorf("%s - failed to run migrations: %w", logPrefix, err)
		}
	}
	return pool, nil
}

func waitForSignal() os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	return <-sigCh
}
