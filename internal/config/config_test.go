package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.StoreMode != ModeStandalone {
		t.Errorf("StoreMode = %q, want %q", cfg.StoreMode, ModeStandalone)
	}
	if cfg.HTTPTimeout != 60*time.Second {
		t.Errorf("HTTPTimeout = %v, want 60s", cfg.HTTPTimeout)
	}
	if cfg.TriggerLockTTL != time.Hour {
		t.Errorf("TriggerLockTTL = %v, want 1h", cfg.TriggerLockTTL)
	}
	if cfg.RunLockTTL != 5*time.Minute {
		t.Errorf("RunLockTTL = %v, want 5m", cfg.RunLockTTL)
	}
	if cfg.Workers != 4 || cfg.QueueSize != 256 || cfg.HistoryLimit != 10 {
		t.Errorf("pipeline defaults = %d/%d/%d, want 4/256/10",
			cfg.Workers, cfg.QueueSize, cfg.HistoryLimit)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("AUTOREPLY_BACKEND_URL", "https://backend.test")
	t.Setenv("AUTOREPLY_API_TOKEN", "tok")
	t.Setenv("AUTOREPLY_STORE_MODE", "managed")
	t.Setenv("AUTOREPLY_POSTGRES_DSN", "postgres://localhost/autoreply")
	t.Setenv("AUTOREPLY_RUN_LOCK_TTL", "90s")
	t.Setenv("AUTOREPLY_WORKERS", "8")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.BackendURL != "https://backend.test" {
		t.Errorf("BackendURL = %q", cfg.BackendURL)
	}
	if cfg.StoreMode != ModeManaged {
		t.Errorf("StoreMode = %q, want managed", cfg.StoreMode)
	}
	if cfg.RunLockTTL != 90*time.Second {
		t.Errorf("RunLockTTL = %v, want 90s", cfg.RunLockTTL)
	}
	if cfg.Workers != 8 {
		t.Errorf("Workers = %d, want 8", cfg.Workers)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
}

func TestValidateMissingFields(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want []string
	}{
		{
			name: "everything missing",
			cfg:  Config{StoreMode: ModeStandalone},
			want: []string{"AUTOREPLY_BACKEND_URL", "AUTOREPLY_API_TOKEN"},
		},
		{
			name: "managed requires dsn",
			cfg:  Config{BackendURL: "https://b", APIToken: "t", StoreMode: ModeManaged},
			want: []string{"AUTOREPLY_POSTGRES_DSN"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			var missing *MissingFieldError
			if !errors.As(err, &missing) {
				t.Fatalf("expected MissingFieldError, got %v", err)
			}
			if len(missing.Fields) != len(tt.want) {
				t.Fatalf("Fields = %v, want %v", missing.Fields, tt.want)
			}
			for i, f := range tt.want {
				if missing.Fields[i] != f {
					t.Errorf("Fields[%d] = %q, want %q", i, missing.Fields[i], f)
				}
			}
			if !strings.Contains(err.Error(), tt.want[0]) {
				t.Errorf("error message %q does not name %q", err.Error(), tt.want[0])
			}
		})
	}
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := Config{BackendURL: "https://b", APIToken: "t", StoreMode: "clustered"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown store mode")
	}
}
