package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	soupbot "github.com/graffic/soup/internal/bot"
	"github.com/graffic/soup/internal/bot/middleware"
	"github.com/graffic/soup/internal/cache"
	"github.com/graffic/soup/internal/config"
	"github.com/graffic/soup/internal/quotes"
	"github.com/graffic/soup/internal/storage"
	"github.com/graffic/soup/internal/telegram"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/gorm/logger"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	env := os.Getenv("ENV")
	if env == "" {
		env = "development"
	}

	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := newLogger(cfg.Log)
	slog.SetDefault(log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	gormLevel := logger.Silent
	if cfg.Environment == "development" {
		gormLevel = logger.Warn
	}
	db, err := storage.NewWithLogger(&cfg.Database, gormLevel)
	if err != nil {
		return err
	}
	defer db.Close()

	// "server" skips migrations, "migrate" and "rollback" only touch the schema
	switch parseCommand() {
	case "server":
	case "migrate":
		return migrate(ctx, db, log)
	case "rollback":
		return rollback(ctx, db, log)
	default:
		if err := migrate(ctx, db, log); err != nil {
			return err
		}
	}

	return runServer(ctx, cfg, db, log)
}

func parseCommand() string {
	if len(os.Args) < 2 {
		return "default"
	}
	return os.Args[1]
}

// newLogger writes text logs to stderr and, when configured, to a rotated file
func newLogger(cfg config.LogConfig) *slog.Logger {
	var out io.Writer = os.Stderr
	if cfg.File != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		})
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
}

func migrate(ctx context.Context, db *storage.DB, log *slog.Logger) error {
	migrator, err := storage.NewMigrator(ctx, db.DB)
	if err != nil {
		return err
	}
	defer migrator.Close()

	if err := migrator.Up(); err != nil {
		return err
	}
	version, dirty, err := migrator.Version()
	if err != nil {
		return err
	}
	log.Info("database migrated", "version", version, "dirty", dirty)
	return nil
}

func rollback(ctx context.Context, db *storage.DB, log *slog.Logger) error {
	migrator, err := storage.NewMigrator(ctx, db.DB)
	if err != nil {
		return err
	}
	defer migrator.Close()

	if err := migrator.Down(); err != nil {
		return err
	}
	log.Info("database rolled back")
	return nil
}

func runServer(ctx context.Context, cfg *config.Config, db *storage.DB, log *slog.Logger) error {
	log.Info("starting soup", "environment", cfg.Environment)

	loc, err := cfg.Quotes.Location()
	if err != nil {
		return err
	}

	store := quotes.NewStore(db.DB)
	b, err := bot.New(cfg.Telegram.Token,
		bot.WithMiddlewares(
			middleware.ChatFilter(cfg.AllowedChatIDs, cfg.AutoLeaveUnauthorized, log),
			middleware.Observe(store, log),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	me, err := b.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify bot: %w", err)
	}
	username := cfg.Telegram.Username
	if username == "" {
		username = me.Username
	}

	messenger := telegram.NewBotMessenger(b)
	sessions := cache.NewSessions(cfg.Session.TTL, cfg.Session.CleanupInterval)
	handlers := soupbot.NewHandlers(db.DB, messenger, sessions, soupbot.Options{
		BotUsername:     username,
		DeleteThreshold: cfg.Quotes.DeleteThreshold,
		StatsLimit:      cfg.Quotes.StatsLimit,
		Location:        loc,
		Logger:          log,
	})

	registry := soupbot.NewRegistry()
	handlers.Register(registry)
	dispatcher := soupbot.NewDispatcher(registry, handlers, log)
	b.RegisterHandlerMatchFunc(func(*models.Update) bool { return true }, dispatcher.HandleUpdate)

	if err := messenger.SetCommands(ctx, registry.Descriptions()); err != nil {
		log.Warn("failed to publish command list", "error", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting bot polling", "username", username, "commands", len(registry.List()))
		b.Start(ctx)
		return ctx.Err()
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("component error: %w", err)
	}

	log.Info("application stopped")
	return nil
}
