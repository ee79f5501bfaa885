// Package config loads service configuration from the environment.
// Secrets (DSNs, tokens) are env-only and never read from files.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store modes.
const (
	ModeStandalone = "standalone" // single node, SQLite
	ModeManaged    = "managed"    // multi worker, Postgres
)

// Config is the full runtime configuration, sourced from AUTOREPLY_* env vars.
type Config struct {
	// Inference backend.
	BackendURL  string        `env:"BACKEND_URL"`
	APIToken    string        `env:"API_TOKEN"`
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"60s"`

	// Persistence.
	StoreMode   string `env:"STORE_MODE" envDefault:"standalone"`
	PostgresDSN string `env:"POSTGRES_DSN"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"autoreply.db"`

	// Pipeline tuning.
	Workers        int           `env:"WORKERS" envDefault:"4"`
	QueueSize      int           `env:"QUEUE_SIZE" envDefault:"256"`
	HistoryLimit   int           `env:"HISTORY_LIMIT" envDefault:"10"`
	TriggerLockTTL time.Duration `env:"TRIGGER_LOCK_TTL" envDefault:"1h"`
	RunLockTTL     time.Duration `env:"RUN_LOCK_TTL" envDefault:"5m"`
	LockSweepCron  string        `env:"LOCK_SWEEP_CRON" envDefault:"*/5 * * * *"`

	// Outbound send rate limiting, per channel kind.
	SendRate  float64 `env:"SEND_RATE" envDefault:"1"`
	SendBurst int     `env:"SEND_BURST" envDefault:"5"`

	// Channel sender credentials. A sender is registered only when its
	// credentials are present.
	TelegramToken     string `env:"TELEGRAM_TOKEN"`
	WhatsAppBridgeURL string `env:"WHATSAPP_BRIDGE_URL"`
	DiscordToken      string `env:"DISCORD_TOKEN"`
	LineGatewayURL    string `env:"LINE_GATEWAY_URL"`
	LineToken         string `env:"LINE_TOKEN"`
	SmsGatewayURL     string `env:"SMS_GATEWAY_URL"`
	SmsToken          string `env:"SMS_TOKEN"`

	// Telemetry. Empty endpoint disables tracing.
	OtelEndpoint string `env:"OTEL_ENDPOINT"`
}

// MissingFieldError reports required configuration that is absent.
type MissingFieldError struct {
	Fields []string
}

func (e *MissingFieldError) Error() string {
	return "missing required configuration: " + strings.Join(e.Fields, ", ")
}

// Load parses the environment into a Config.
func Load() (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "AUTOREPLY_"}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

// Validate checks the fields the worker cannot start without. Per-job
// requirements (agent key, clerk id) are validated at job time instead,
// since they live on the agent rows.
func (c *Config) Validate() error {
	var missing []string
	if c.BackendURL == "" {
		missing = append(missing, "AUTOREPLY_BACKEND_URL")
	}
	if c.APIToken == "" {
		missing = append(missing, "AUTOREPLY_API_TOKEN")
	}
	if c.StoreMode == ModeManaged && c.PostgresDSN == "" {
		missing = append(missing, "AUTOREPLY_POSTGRES_DSN")
	}
	if c.StoreMode != ModeManaged && c.StoreMode != ModeStandalone {
		return fmt.Errorf("unknown store mode %q", c.StoreMode)
	}
	if len(missing) > 0 {
		return &MissingFieldError{Fields: missing}
	}
	return nil
}
