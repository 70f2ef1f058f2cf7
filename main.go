package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vladimiradmaev/pill-reminder/internal/bot"
	"github.com/vladimiradmaev/pill-reminder/internal/bot/handlers"
	"github.com/vladimiradmaev/pill-reminder/internal/bot/state"
	"github.com/vladimiradmaev/pill-reminder/internal/config"
	"github.com/vladimiradmaev/pill-reminder/internal/database"
	"github.com/vladimiradmaev/pill-reminder/internal/escalation"
	"github.com/vladimiradmaev/pill-reminder/internal/logger"
	"github.com/vladimiradmaev/pill-reminder/internal/metrics"
	"github.com/vladimiradmaev/pill-reminder/internal/recovery"
	"github.com/vladimiradmaev/pill-reminder/internal/repository"
	"github.com/vladimiradmaev/pill-reminder/internal/scheduler"
	"github.com/vladimiradmaev/pill-reminder/internal/services"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		envFile string
		debug   bool
	)

	cmd := &cobra.Command{
		Use:          "pill-reminder",
		Short:        "Telegram bot that reminds you to take your medicines",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), envFile, debug)
		},
	}
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	cmd.Flags().BoolVar(&debug, "debug", false, "wipe all stored data on shutdown (development only)")
	return cmd
}

func run(ctx context.Context, envFile string, debug bool) error {
	if err := godotenv.Load(envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %s not loaded: %v\n", envFile, err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if debug {
		cfg.Debug = true
	}

	log, err := logger.InitWithConfig(logger.Config{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	log.Info("Starting pill reminder bot", "debug", cfg.Debug)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.DB, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(db); err != nil {
			log.Error("Failed to close database", "error", err)
		}
	}()

	ledger := repository.NewLedger(db, cfg.DB.Timeout)
	m := metrics.InitPrometheusMetrics(metrics.Namespace)

	loc, err := cfg.Scheduler.Location()
	if err != nil {
		return err
	}
	manager, err := scheduler.NewManager(ledger, log, m, scheduler.Config{
		Location: loc,
		Workers:  cfg.Scheduler.Workers,
	})
	if err != nil {
		return err
	}

	api, err := bot.NewAPI(cfg.TelegramToken, cfg.Logger.Level == logger.LevelDebug)
	if err != nil {
		return err
	}
	log.Info("Bot authorized", "account", api.Self.UserName)

	senderAPI, err := bot.NewSenderAPI(cfg.TelegramToken, cfg.Sender.Timeout)
	if err != nil {
		return err
	}
	notifier := bot.NewNotifier(senderAPI, cfg.Sender, log)
	machine := escalation.NewMachine(manager, ledger, notifier, log, m, escalation.Config{
		Interval:    cfg.Scheduler.EscalationInterval,
		SendTimeout: cfg.Sender.Timeout,
	})
	reminderSvc := services.NewReminderService(ledger, manager, machine, log, nil)

	if _, err := recovery.NewOrchestrator(ledger, reminderSvc, log, m).Run(ctx); err != nil {
		return fmt.Errorf("failed to restore schedules: %w", err)
	}
	manager.Start()
	defer func() {
		if err := manager.Shutdown(); err != nil {
			log.Error("Failed to stop scheduler", "error", err)
		}
		if cfg.Debug {
			wipe(ledger, log)
		}
	}()

	stateManager, closeState, err := newStateManager(ctx, cfg.Redis, log)
	if err != nil {
		return err
	}
	defer closeState()

	telegramBot := bot.NewBot(api, handlers.Dependencies{ReminderSvc: reminderSvc, Logger: log}, stateManager)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return telegramBot.Start(gctx)
	})
	if cfg.Metrics.Addr != "" {
		g.Go(func() error {
			return m.Serve(gctx, cfg.Metrics.Addr, log)
		})
	}

	log.Info("Bot is running. Press Ctrl+C to stop.")
	if err := g.Wait(); err != nil {
		log.Error("Stopped with error", "error", err)
		return err
	}
	log.Info("Shutting down")
	return nil
}

// newStateManager keeps dialogs in Redis when REDIS_ADDR is set, in memory otherwise.
func newStateManager(ctx context.Context, cfg config.RedisConfig, log *slog.Logger) (state.StateManager, func(), error) {
	if cfg.Addr == "" {
		return state.NewManager(), func() {}, nil
	}
	rm, err := state.NewRedisManager(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	log.Info("Dialog state stored in Redis", "addr", cfg.Addr)
	return rm, func() { _ = rm.Close() }, nil
}

func wipe(ledger *repository.Ledger, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ledger.WipeAll(ctx); err != nil {
		log.Error("Failed to wipe data", "error", err)
		return
	}
	log.Warn("Debug mode: all stored data wiped")
}
