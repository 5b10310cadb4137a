package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"callrelay/internal/api"
	"callrelay/internal/config"
	"callrelay/internal/notify"
	"callrelay/internal/processor"
	"callrelay/internal/scheduler"
	"callrelay/internal/storage"
	"callrelay/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	tg, err := transport.NewTelegram(cfg.TelegramBotToken, log)
	if err != nil {
		log.Error("create transport", "error", err)
		os.Exit(1)
	}

	settings := processor.NewSettings(cfg.Sender, cfg.Recipients, cfg.Triggers)
	settings.SetMarkReadOnSend(cfg.MarkReadOnSend)
	settings.SetNotifySuccess(cfg.NotifySuccess)

	presenter := notify.NewDedup(&notify.LogPresenter{Log: log})
	locator := &processor.StoreLocator{Store: store}
	proc := processor.New(store, tg, locator, presenter, settings, log)

	sched := scheduler.New(proc, log)
	sched.SetTickInterval(time.Duration(cfg.SweepMinutes) * time.Minute)

	srv := api.New(store, settings, proc, cfg.Acceptor, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("starting callrelay", "addr", cfg.HTTPAddr, "acceptor", cfg.Acceptor)

	go sched.Run(ctx)

	if err := srv.Run(ctx, cfg.HTTPAddr); err != nil {
		log.Error("http server", "error", err)
		os.Exit(1)
	}

	log.Info("callrelay stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
