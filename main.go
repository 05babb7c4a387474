// Package main is the entry point for the receipt ledger Telegram bot.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gitlab.com/yelinaung/ledger-bot/internal/attachment"
	"gitlab.com/yelinaung/ledger-bot/internal/bot"
	"gitlab.com/yelinaung/ledger-bot/internal/config"
	"gitlab.com/yelinaung/ledger-bot/internal/database"
	"gitlab.com/yelinaung/ledger-bot/internal/flow"
	"gitlab.com/yelinaung/ledger-bot/internal/gemini"
	"gitlab.com/yelinaung/ledger-bot/internal/logger"
	"gitlab.com/yelinaung/ledger-bot/internal/repository"
	"gitlab.com/yelinaung/ledger-bot/internal/session"
	"gitlab.com/yelinaung/ledger-bot/internal/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// sweepInterval is how often idle sessions are dropped.
const sweepInterval = time.Minute

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("ledger-bot %s (commit: %s, built: %s)\n", version, commit, date)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to load config")
	}

	logger.Configure(cfg.LogLevel, cfg.LogFormat)
	logger.InitHashSalt(cfg.LogHashSalt)

	shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.Config{
		Exporter:       cfg.OTelExporter,
		ServiceName:    cfg.OTelServiceName,
		ServiceVersion: version,
	})
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to start telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Log.Warn().Err(err).Msg("Failed to flush telemetry")
		}
	}()

	if err := run(ctx, cfg); err != nil {
		logger.Log.Error().Err(err).Msg("Bot exited with error")
		return
	}
	logger.Log.Info().Msg("Shutdown complete")
}

func run(ctx context.Context, cfg *config.Config) error {
	ledger, closeLedger, err := openLedger(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLedger()

	var attachments flow.AttachmentStore
	store, err := attachment.New(ctx, attachment.Config{
		Bucket:          cfg.S3.Bucket,
		Region:          cfg.S3.Region,
		Endpoint:        cfg.S3.Endpoint,
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
		PublicBaseURL:   cfg.S3.PublicBaseURL,
		KeyPrefix:       cfg.S3.KeyPrefix,
	})
	switch {
	case errors.Is(err, attachment.ErrNotConfigured):
		logger.Log.Warn().Msg("S3_BUCKET not set, receipt images will be recorded as failed uploads")
	case err != nil:
		return fmt.Errorf("failed to configure attachment storage: %w", err)
	default:
		attachments = store
	}

	var suggester flow.Suggester
	if cfg.GeminiAPIKey != "" {
		client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		})
		if err != nil {
			return fmt.Errorf("failed to create Gemini client: %w", err)
		}
		suggester = client
		logger.Log.Info().Str("model", gemini.ModelName).Msg("Category suggestions enabled")
	}

	telegramBot, err := bot.New(cfg.TelegramBotToken)
	if err != nil {
		return err
	}

	sessions := session.NewStore(cfg.SessionTTL, flow.NewSession)
	machine, err := flow.New(flow.Deps{
		Ledger:      ledger,
		Attachments: attachments,
		Images:      telegramBot.Images(),
		Suggester:   suggester,
		Sessions:    sessions,
		Location:    cfg.Location,
		CallTimeout: cfg.ExternalCallTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to build conversation flow: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return telegramBot.Start(gctx, machine)
	})
	g.Go(func() error {
		return sessions.Run(gctx, sweepInterval)
	})

	err = g.Wait()
	logger.Log.Info().Msg("Shutting down...")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// openLedger connects to PostgreSQL, or keeps the ledger in memory when no
// database is configured.
func openLedger(ctx context.Context, cfg *config.Config) (flow.LedgerStore, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Log.Warn().Msg("DATABASE_URL not set, keeping the ledger in memory")
		return repository.NewMemoryLedger(), func() {}, nil
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := database.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Log.Info().Msg("Database initialized successfully")
	return repository.NewLedgerRepository(pool), pool.Close, nil
}
