package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	App       AppConfig       `koanf:"app"`
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Auth      AuthConfig      `koanf:"auth"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Email     EmailConfig     `koanf:"email"`
	Log       LogConfig       `koanf:"log"`
	Cleanup   CleanupConfig   `koanf:"cleanup"`
	Billing   BillingConfig   `koanf:"billing"`
	Backup    BackupConfig    `koanf:"backup"`
}

type AppConfig struct {
	Name        string `koanf:"name" validate:"required"`
	Environment string `koanf:"environment" validate:"oneof=development production test"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	IdleTimeout     time.Duration `koanf:"idle_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

type DatabaseConfig struct {
	Path string `koanf:"path" validate:"required"`
}

type AuthConfig struct {
	AnonKey         string        `koanf:"anon_key" validate:"required"`
	JWTSecret       string        `koanf:"jwt_secret" validate:"required,min=16"`
	AccessTokenTTL  time.Duration `koanf:"access_token_ttl" validate:"gt=0"`
	RefreshTokenTTL time.Duration `koanf:"refresh_token_ttl" validate:"gtfield=AccessTokenTTL"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64       `koanf:"requests_per_second" validate:"gt=0"`
	Burst             int           `koanf:"burst" validate:"min=1"`
	IdleTTL           time.Duration `koanf:"idle_ttl" validate:"gt=0"`
}

type EmailConfig struct {
	PostmarkToken string `koanf:"postmark_token"`
	From          string `koanf:"from" validate:"omitempty,email"`
	APIURL        string `koanf:"api_url" validate:"omitempty,url"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

type CleanupConfig struct {
	Interval time.Duration `koanf:"interval" validate:"gt=0"`
}

// BillingConfig enables premium upgrades through Stripe. Billing routes
// answer 503 while the secret key is empty.
type BillingConfig struct {
	StripeSecretKey     string `koanf:"stripe_secret_key"`
	StripeWebhookSecret string `koanf:"stripe_webhook_secret" validate:"required_with=StripeSecretKey"`
	PriceID             string `koanf:"price_id" validate:"required_with=StripeSecretKey"`
	SuccessURL          string `koanf:"success_url" validate:"omitempty,url"`
	CancelURL           string `koanf:"cancel_url" validate:"omitempty,url"`
	PortalReturnURL     string `koanf:"portal_return_url" validate:"omitempty,url"`
}

func (b *BillingConfig) Enabled() bool {
	return b.StripeSecretKey != ""
}

// BackupConfig uploads encrypted database snapshots to S3-compatible
// storage. Backups are off until bucket, credentials and passphrase are set.
type BackupConfig struct {
	Bucket     string        `koanf:"bucket"`
	Endpoint   string        `koanf:"endpoint" validate:"omitempty,url"`
	Region     string        `koanf:"region"`
	AccessKey  string        `koanf:"access_key"`
	SecretKey  string        `koanf:"secret_key"`
	Prefix     string        `koanf:"prefix"`
	Passphrase string        `koanf:"passphrase" validate:"omitempty,min=12"`
	Interval   time.Duration `koanf:"interval" validate:"gt=0"`
	Retention  time.Duration `koanf:"retention" validate:"gte=0"`
}

// Load builds the configuration from defaults, an optional YAML file, and
// MILA_* environment variables, in that order of precedence.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("MILA_", ".", envKeyReplacer), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":        "mila",
		"app.environment": "development",

		"server.host":             "0.0.0.0",
		"server.port":             8080,
		"server.read_timeout":     "15s",
		"server.write_timeout":    "15s",
		"server.idle_timeout":     "60s",
		"server.shutdown_timeout": "10s",

		"database.path": "mila.db",

		"auth.access_token_ttl":  "1h",
		"auth.refresh_token_ttl": "720h",

		"rate_limit.requests_per_second": 1.0,
		"rate_limit.burst":               10,
		"rate_limit.idle_ttl":            "10m",

		"email.from": "noreply@mila.app",

		"log.level":  "info",
		"log.format": "text",

		"cleanup.interval": "1h",

		"billing.success_url":       "http://localhost:8080/billing/success",
		"billing.cancel_url":        "http://localhost:8080/billing/cancel",
		"billing.portal_return_url": "http://localhost:8080/",

		"backup.region":    "us-east-1",
		"backup.prefix":    "backups/",
		"backup.interval":  "24h",
		"backup.retention": "720h",
	}

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

var envKeyMap = map[string]string{
	"MILA_ENVIRONMENT":       "app.environment",
	"MILA_HOST":              "server.host",
	"MILA_PORT":              "server.port",
	"MILA_DB_PATH":           "database.path",
	"MILA_ANON_KEY":          "auth.anon_key",
	"MILA_JWT_SECRET":        "auth.jwt_secret",
	"MILA_ACCESS_TOKEN_TTL":  "auth.access_token_ttl",
	"MILA_REFRESH_TOKEN_TTL": "auth.refresh_token_ttl",
	"MILA_RATE_LIMIT_RPS":    "rate_limit.requests_per_second",
	"MILA_RATE_LIMIT_BURST":  "rate_limit.burst",
	"MILA_POSTMARK_TOKEN":    "email.postmark_token",
	"MILA_EMAIL_FROM":        "email.from",
	"MILA_POSTMARK_API_URL":  "email.api_url",
	"MILA_LOG_LEVEL":         "log.level",
	"MILA_LOG_FORMAT":        "log.format",
	"MILA_CLEANUP_INTERVAL":  "cleanup.interval",

	"MILA_STRIPE_SECRET_KEY":     "billing.stripe_secret_key",
	"MILA_STRIPE_WEBHOOK_SECRET": "billing.stripe_webhook_secret",
	"MILA_STRIPE_PRICE_ID":       "billing.price_id",
	"MILA_BILLING_SUCCESS_URL":   "billing.success_url",
	"MILA_BILLING_CANCEL_URL":    "billing.cancel_url",
	"MILA_BILLING_RETURN_URL":    "billing.portal_return_url",

	"MILA_BACKUP_BUCKET":     "backup.bucket",
	"MILA_BACKUP_ENDPOINT":   "backup.endpoint",
	"MILA_BACKUP_REGION":     "backup.region",
	"MILA_BACKUP_ACCESS_KEY": "backup.access_key",
	"MILA_BACKUP_SECRET_KEY": "backup.secret_key",
	"MILA_BACKUP_PREFIX":     "backup.prefix",
	"MILA_BACKUP_PASSPHRASE": "backup.passphrase",
	"MILA_BACKUP_INTERVAL":   "backup.interval",
	"MILA_BACKUP_RETENTION":  "backup.retention",
}

func envKeyReplacer(s string) string {
	if mapped, ok := envKeyMap[s]; ok {
		return mapped
	}
	return ""
}

var validate = newValidator()

func newValidator() func(*Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	return func(c *Config) error {
		err := v.Struct(c)
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
		}
		return errors.New(strings.Join(msgs, "; "))
	}
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
