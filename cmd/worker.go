package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/nextlevelbuilder/autoreply/internal/config"
	"github.com/nextlevelbuilder/autoreply/internal/dispatch"
	"github.com/nextlevelbuilder/autoreply/internal/dispatch/discord"
	"github.com/nextlevelbuilder/autoreply/internal/dispatch/httpapi"
	"github.com/nextlevelbuilder/autoreply/internal/dispatch/telegram"
	"github.com/nextlevelbuilder/autoreply/internal/dispatch/whatsapp"
	"github.com/nextlevelbuilder/autoreply/internal/inference"
	"github.com/nextlevelbuilder/autoreply/internal/job"
	"github.com/nextlevelbuilder/autoreply/internal/lock"
	lockpg "github.com/nextlevelbuilder/autoreply/internal/lock/pg"
	locksqlite "github.com/nextlevelbuilder/autoreply/internal/lock/sqlite"
	"github.com/nextlevelbuilder/autoreply/internal/model"
	"github.com/nextlevelbuilder/autoreply/internal/queue"
	"github.com/nextlevelbuilder/autoreply/internal/store"
	storepg "github.com/nextlevelbuilder/autoreply/internal/store/pg"
	storesqlite "github.com/nextlevelbuilder/autoreply/internal/store/sqlite"
	"github.com/nextlevelbuilder/autoreply/internal/telemetry"
)

// runWorker starts the job worker pool and blocks until SIGINT/SIGTERM.
func runWorker(ctx context.Context) error {
	setupLogging()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Setup(ctx, "autoreply-worker", cfg.OtelEndpoint)
	if err != nil {
		slog.Warn("telemetry setup failed, continuing without tracing", "error", err)
	} else {
		defer shutdown(context.Background())
	}

	db, stores, locks, err := openBackends(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	jobs := queue.New(cfg.QueueSize)
	client := inference.NewClient(cfg.BackendURL, cfg.APIToken, cfg.HTTPTimeout)
	dispatcher := dispatch.New(jobs, cfg.SendRate, cfg.SendBurst)
	registerSenders(cfg, dispatcher)

	runner := job.NewRunner(locks, stores, client, dispatcher, cfg.RunLockTTL, cfg.HistoryLimit)
	jobs.Handle(queue.KindInferReply, runner.Handle)
	jobs.Handle(queue.KindSendReply, dispatcher.SendReplyHandler(stores.Messages, stores.Conversations))

	if sweepable, ok := locks.(lock.Sweepable); ok {
		go lock.NewSweeper(sweepable, cfg.LockSweepCron).Run(ctx)
	}

	slog.Info("worker started",
		"mode", cfg.StoreMode, "workers", cfg.Workers, "backend", cfg.BackendURL)
	return jobs.Run(ctx, cfg.Workers)
}

// openBackends selects the persistence stack for the configured mode.
func openBackends(cfg *config.Config) (*sql.DB, *store.Stores, lock.Locker, error) {
	switch cfg.StoreMode {
	case config.ModeManaged:
		db, err := storepg.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, nil, err
		}
		return db, storepg.NewStores(db), lockpg.New(db), nil
	case config.ModeStandalone:
		db, err := storesqlite.OpenDB(cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		return db, storesqlite.NewStores(db), locksqlite.New(db), nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown store mode %q", cfg.StoreMode)
	}
}

// registerSenders wires every channel whose credentials are configured.
// Channels without a sender stay fail-open: the dispatcher warns and the
// reply remains persisted.
func registerSenders(cfg *config.Config, d *dispatch.Dispatcher) {
	if cfg.TelegramToken != "" {
		if s, err := telegram.New(cfg.TelegramToken); err != nil {
			slog.Error("telegram sender init failed", "error", err)
		} else {
			d.Register(model.ChannelTelegramBot, s)
		}
	}
	if cfg.WhatsAppBridgeURL != "" {
		if s, err := whatsapp.New(cfg.WhatsAppBridgeURL); err != nil {
			slog.Error("whatsapp sender init failed", "error", err)
		} else {
			d.Register(model.ChannelWhatsApp, s)
		}
	}
	if cfg.DiscordToken != "" {
		if s, err := discord.New(cfg.DiscordToken); err != nil {
			slog.Error("discord sender init failed", "error", err)
		} else {
			d.Register(model.ChannelDiscord, s)
		}
	}
	if cfg.LineGatewayURL != "" {
		if s, err := httpapi.New(cfg.LineGatewayURL, cfg.LineToken, cfg.HTTPTimeout); err != nil {
			slog.Error("line sender init failed", "error", err)
		} else {
			d.Register(model.ChannelLine, s)
		}
	}
	if cfg.SmsGatewayURL != "" {
		if s, err := httpapi.New(cfg.SmsGatewayURL, cfg.SmsToken, cfg.HTTPTimeout); err != nil {
			slog.Error("sms sender init failed", "error", err)
		} else {
			d.Register(model.ChannelSms, s)
		}
	}
}
