package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	slacklib "github.com/slack-go/slack"

	"github.com/pathcanary/rollback-go/internal/auth"
	"github.com/pathcanary/rollback-go/internal/config"
	"github.com/pathcanary/rollback-go/internal/domain"
	"github.com/pathcanary/rollback-go/internal/notify"
	"github.com/pathcanary/rollback-go/internal/server"
	"github.com/pathcanary/rollback-go/internal/store/memory"
	"github.com/pathcanary/rollback-go/internal/store/postgres"
	redisstore "github.com/pathcanary/rollback-go/internal/store/redis"
	"github.com/pathcanary/rollback-go/internal/toggle"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}

func run() error {
	// Initialize structured logging from environment.
	logLevel := os.Getenv("PATHCANARY_LOG_LEVEL")
	level, parseErr := zerolog.ParseLevel(logLevel)
	if parseErr != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	logFormat := os.Getenv("PATHCANARY_LOG_FORMAT")
	if logFormat == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	ctx := context.Background()

	// Load configuration from environment.
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Select the persistence backend.
	var store server.DataStore
	switch cfg.Store.Backend {
	case config.StorePostgres:
		if cfg.Database.MaxConns < 0 || cfg.Database.MaxConns > math.MaxInt32 {
			return fmt.Errorf("database max_conns %d out of int32 range", cfg.Database.MaxConns)
		}

		pg, pgErr := postgres.New(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns)) //nolint:gosec // bounds checked above
		if pgErr != nil {
			return pgErr
		}
		defer pg.Close()
		store = pg
	default:
		mem := memory.New(cfg.Audit.Capacity)
		defer mem.Close()
		store = mem

		if cfg.Seed.Demo {
			tenant, seedErr := mem.SeedDemo(ctx, cfg.Seed.DemoAPIKey)
			if seedErr != nil {
				return seedErr
			}
			// The raw demo key is intentionally logged: it exists only for
			// local testing and is set by the operator.
			log.Info().
				Str("tenant", tenant.Slug).
				Str("api_key", cfg.Seed.DemoAPIKey).
				Msg("demo tenant seeded")
		}
	}

	// Select the event broker.
	var broker domain.EventBroker
	switch cfg.Events.Backend {
	case config.EventsRedis:
		rb, rbErr := redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if rbErr != nil {
			return rbErr
		}
		defer rb.Close()
		broker = rb
	default:
		broker = memory.NewBroker()
	}

	// Optional Slack rollback notifications.
	var notifier toggle.Notifier
	if cfg.Slack.BotToken != "" {
		notifier = notify.NewSlackNotifier(slacklib.New(cfg.Slack.BotToken), cfg.Slack.Channel)
		log.Info().Str("channel", cfg.Slack.Channel).Msg("slack notifications enabled")
	}

	authSvc := auth.NewService(store.Tenants())
	toggles := toggle.NewService(store.Flags(), store.Audit(), broker, notifier)

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Create HTTP server with all routes wired.
	srv := server.New(ctx, cfg, store, broker, authSvc, toggles)

	// Start server in background goroutine.
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("starting server")
		if startErr := srv.Start(ctx); startErr != nil {
			log.Error().Err(startErr).Msg("server error")
		}
	}()

	// Block until shutdown signal.
	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		return shutdownErr
	}

	log.Info().Msg("stopped")
	return nil
}
