package config

import (
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("VPSBOT_TOKEN", "tok-123")
	t.Setenv("VPSBOT_DEPLOY_CHANNEL", "chan-1")
	t.Setenv("VPSBOT_ADMIN_ID", "admin-1")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BotToken != "tok-123" || cfg.DeployChannel != "chan-1" || cfg.AdminID != "admin-1" {
		t.Fatalf("required values not carried: %+v", cfg)
	}
	if cfg.HTTPAddr != ":8080" || cfg.DataDir != "./data/badger" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.RebootDelay != 5*time.Second {
		t.Fatalf("expected 5s reboot delay, got %s", cfg.RebootDelay)
	}
	if cfg.NATSURL != "" {
		t.Fatalf("nats should default to disabled, got %q", cfg.NATSURL)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	cases := []struct {
		unset string
	}{
		{"VPSBOT_TOKEN"},
		{"VPSBOT_DEPLOY_CHANNEL"},
		{"VPSBOT_ADMIN_ID"},
	}
	for _, tc := range cases {
		t.Run(tc.unset, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tc.unset, "")

			_, err := Load()
			if err == nil {
				t.Fatalf("expected error with %s unset", tc.unset)
			}
			if !strings.Contains(err.Error(), tc.unset) {
				t.Fatalf("error should name the missing var: %v", err)
			}
		})
	}
}

func TestLoadRebootDelay(t *testing.T) {
	setRequired(t)
	t.Setenv("VPSBOT_REBOOT_DELAY", "250ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RebootDelay != 250*time.Millisecond {
		t.Fatalf("expected 250ms, got %s", cfg.RebootDelay)
	}

	t.Setenv("VPSBOT_REBOOT_DELAY", "soon")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for bad duration")
	}
}
