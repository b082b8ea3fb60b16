package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sglre6355/dispatchbot/internal/app"
	"github.com/sglre6355/dispatchbot/internal/bot"
	"github.com/sglre6355/dispatchbot/internal/health"
	"github.com/sglre6355/dispatchbot/internal/metrics"
	"github.com/sglre6355/dispatchbot/internal/storage"
)

// version is set at build time via ldflags:
// go build -ldflags "-X main.version=1.0.0" ./cmd/dispatchbot
var version = "dev"

const shutdownTimeout = 30 * time.Second

var rootCmd = &cobra.Command{
	Use:           "dispatchbot",
	Short:         "Run the Discord bot",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runBot,
}

func main() {
	// A missing .env file is fine; the environment may already be set
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// setup loads the configuration and installs the JSON logger.
func setup() (*bot.Config, error) {
	cfg, err := bot.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})))
	return cfg, nil
}

// openDatabase connects and migrates when a database is configured.
// It returns nil when none is.
func openDatabase(ctx context.Context, cfg *bot.Config) (*sql.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, nil
	}

	db, err := storage.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := storage.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func runBot(cmd *cobra.Command, _ []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	slog.Info("starting dispatchbot", "version", version)

	ctx := cmd.Context()
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	m := metrics.New()
	b := bot.NewBot(cfg, app.Definitions(), app.Modules()...)
	b.SetMetrics(m)
	if db != nil {
		b.SetDatabase(db)
	}

	if err := b.Start(); err != nil {
		return fmt.Errorf("failed to start bot: %w", err)
	}

	var server *health.Server
	if cfg.HealthCheckEnabled {
		var pinger health.Pinger
		if db != nil {
			pinger = db
		}
		checker := health.NewChecker(health.SessionGateway(b.Session()), pinger)
		server = health.NewServer(cfg.HealthCheckAddr, checker, m.Handler())
		if err := server.Start(); err != nil {
			slog.Error("failed to start health server", "error", err)
			server = nil
		}
	}

	// Wait for shutdown signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	slog.Info("received termination signal, shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("failed to shut down health server", "error", err)
		}
	}
	if err := b.Stop(shutdownCtx); err != nil {
		slog.Error("failed to shutdown", "error", err)
	}

	slog.Info("completed bot shutdown")
	return nil
}
