// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"callrelay/internal/model"
)

// Config holds the application configuration.
type Config struct {
	TelegramBotToken string
	DatabasePath     string
	LogLevel         string
	HTTPAddr         string

	Acceptor       string
	Sender         string
	Recipients     []string
	Triggers       []model.Trigger
	SweepMinutes   int
	MarkReadOnSend bool
	NotifySuccess  bool
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	cfg := &Config{
		TelegramBotToken: token,
		DatabasePath:     envOrDefault("DATABASE_PATH", "./data/callrelay.db"),
		LogLevel:         envOrDefault("LOG_LEVEL", "info"),
		HTTPAddr:         envOrDefault("HTTP_ADDR", ":8080"),
		Acceptor:         envOrDefault("ACCEPTOR", "callrelay"),
		Sender:           os.Getenv("RELAY_SENDER"),
	}

	cfg.Recipients = splitList(os.Getenv("RELAY_RECIPIENTS"))

	triggers, err := parseTriggers(envOrDefault("RELAY_TRIGGERS", "incoming_sms,missed_call"))
	if err != nil {
		return nil, err
	}
	cfg.Triggers = triggers

	cfg.SweepMinutes = 15
	if raw := os.Getenv("SWEEP_INTERVAL_MINUTES"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid SWEEP_INTERVAL_MINUTES %q", raw)
		}
		cfg.SweepMinutes = n
	}

	if cfg.MarkReadOnSend, err = envBool("MARK_READ_ON_SEND"); err != nil {
		return nil, err
	}
	if cfg.NotifySuccess, err = envBool("NOTIFY_SUCCESS"); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseTriggers(raw string) ([]model.Trigger, error) {
	var triggers []model.Trigger
	for _, s := range splitList(raw) {
		t, err := model.ParseTrigger(s)
		if err != nil {
			return nil, fmt.Errorf("RELAY_TRIGGERS: %w", err)
		}
		triggers = append(triggers, t)
	}
	return triggers, nil
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

func envBool(key string) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q", key, raw)
	}
	return v, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
