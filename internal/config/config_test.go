package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("MILA_ANON_KEY", "anon-key")
	t.Setenv("MILA_JWT_SECRET", "a-very-long-test-secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Auth.AccessTokenTTL != time.Hour {
		t.Errorf("access ttl = %v, want 1h", cfg.Auth.AccessTokenTTL)
	}
	if cfg.Auth.AnonKey != "anon-key" {
		t.Errorf("anon key = %q", cfg.Auth.AnonKey)
	}
	if cfg.Server.Address() != "0.0.0.0:8080" {
		t.Errorf("address = %q", cfg.Server.Address())
	}
	if cfg.IsProduction() {
		t.Error("default environment should not be production")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("MILA_PORT", "9090")
	t.Setenv("MILA_LOG_FORMAT", "json")
	t.Setenv("MILA_ACCESS_TOKEN_TTL", "15m")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("log format = %q, want json", cfg.Log.Format)
	}
	if cfg.Auth.AccessTokenTTL != 15*time.Minute {
		t.Errorf("access ttl = %v, want 15m", cfg.Auth.AccessTokenTTL)
	}
}

func TestLoadFile(t *testing.T) {
	setRequired(t)
	path := filepath.Join(t.TempDir(), "mila.yaml")
	data := "server:\n  port: 7070\ndatabase:\n  path: /tmp/test.db\nlog:\n  level: debug\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("db path = %q", cfg.Database.Path)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("MILA_ANON_KEY", "")
	t.Setenv("MILA_JWT_SECRET", "")

	_, err := Load("")
	if err == nil {
		t.Fatal("expected error without anon key and jwt secret")
	}
	if !strings.Contains(err.Error(), "AnonKey") || !strings.Contains(err.Error(), "JWTSecret") {
		t.Errorf("error should name both fields: %v", err)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	setRequired(t)
	t.Setenv("MILA_LOG_LEVEL", "verbose")

	if _, err := Load(""); err == nil {
		t.Error("expected error for unknown log level")
	}
}

func TestLoadShortSecret(t *testing.T) {
	t.Setenv("MILA_ANON_KEY", "anon-key")
	t.Setenv("MILA_JWT_SECRET", "short")

	if _, err := Load(""); err == nil {
		t.Error("expected error for short jwt secret")
	}
}

func TestLoadMissingFile(t *testing.T) {
	setRequired(t)
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoadBillingRequiresWebhookSecret(t *testing.T) {
	setRequired(t)
	t.Setenv("MILA_STRIPE_SECRET_KEY", "sk_test_123")

	_, err := Load("")
	if err == nil {
		t.Fatal("expected error for stripe key without webhook secret")
	}
	if !strings.Contains(err.Error(), "StripeWebhookSecret") {
		t.Errorf("error = %v, want mention of StripeWebhookSecret", err)
	}

	t.Setenv("MILA_STRIPE_WEBHOOK_SECRET", "whsec_123")
	t.Setenv("MILA_STRIPE_PRICE_ID", "price_123")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Billing.Enabled() {
		t.Error("billing should be enabled")
	}
}

func TestLoadBackup(t *testing.T) {
	setRequired(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backup.Interval != 24*time.Hour {
		t.Errorf("backup interval = %v, want 24h", cfg.Backup.Interval)
	}
	if cfg.Backup.Prefix != "backups/" {
		t.Errorf("backup prefix = %q", cfg.Backup.Prefix)
	}

	t.Setenv("MILA_BACKUP_PASSPHRASE", "short")
	if _, err := Load(""); err == nil {
		t.Error("expected error for short backup passphrase")
	}
}
