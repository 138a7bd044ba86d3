package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	BaseURL     string `env:"BASE_URL" envDefault:"http://localhost:3000"`
	Database    Database

	Stripe    Stripe    `envPrefix:"STRIPE_"`
	Supabase  Supabase  `envPrefix:"SUPABASE_"`
	Mail      Mail      `envPrefix:"MAIL_"`
	Storage   Storage   `envPrefix:"STORAGE_"`
	RateLimit RateLimit `envPrefix:"RATE_LIMIT_"`
	OTel      OTel      `envPrefix:"OTEL_"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host           string   `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port           string   `env:"HTTP_PORT" envDefault:"8080"`
	AllowedOrigins []string `env:"HTTP_ALLOWED_ORIGINS" envDefault:"http://localhost:3000"`
	TrustedProxies []string `env:"HTTP_TRUSTED_PROXIES"`
}

type Database struct {
	Driver string `env:"DATABASE_DRIVER" envDefault:"sqlite"`
	URL    string `env:"DATABASE_URL" envDefault:"file:playbook.db?_foreign_keys=on"`
}

type Stripe struct {
	SecretKey         string  `env:"SECRET_KEY"`
	WebhookSecret     string  `env:"WEBHOOK_SECRET"`
	MembershipPriceID string  `env:"MEMBERSHIP_PRICE_ID"`
	PlaybookPrice     int64   `env:"PLAYBOOK_PRICE_CENTS" envDefault:"1900"`
	Currency          string  `env:"CURRENCY" envDefault:"usd"`
	SupportTiers      []int64 `env:"SUPPORT_TIERS_CENTS" envDefault:"500,1000,2500,5000,10000"`
}

type Supabase struct {
	URL       string `env:"URL"`
	JWTSecret string `env:"JWT_SECRET"`
}

type Mail struct {
	BaseURL    string `env:"BASE_URL" envDefault:"https://api.resend.com"`
	APIKey     string `env:"API_KEY"`
	From       string `env:"FROM" envDefault:"Creator Playbook <hello@creatorplaybook.co>"`
	NotifyTo   string `env:"NOTIFY_TO"`
	AudienceID string `env:"AUDIENCE_ID"`
	// RatePerSecond caps outbound calls to the mail API. Zero disables it.
	RatePerSecond float64 `env:"RATE_PER_SECOND" envDefault:"2"`
}

type Storage struct {
	Driver         string `env:"DRIVER" envDefault:"local"`
	LocalPath      string `env:"LOCAL_PATH" envDefault:"./data/files"`
	MinioEndpoint  string `env:"MINIO_ENDPOINT"`
	MinioAccessKey string `env:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `env:"MINIO_SECRET_KEY"`
	MinioBucket    string `env:"MINIO_BUCKET" envDefault:"playbook"`
	MinioUseSSL    bool   `env:"MINIO_USE_SSL" envDefault:"true"`
}

type RateLimit struct {
	RedisAddr             string `env:"REDIS_ADDR"`
	RedisPassword         string `env:"REDIS_PASSWORD"`
	RedisPrefix           string `env:"REDIS_PREFIX" envDefault:"playbook:ratelimit"`
	RegistrationPerMinute int    `env:"REGISTRATION_PER_MINUTE" envDefault:"3"`
	UnlockPerMinute       int    `env:"UNLOCK_PER_MINUTE" envDefault:"10"`
}

type OTel struct {
	Endpoint    string `env:"EXPORTER_ENDPOINT"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"creator-playbook"`
}

// Load parses the process environment into a Config and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "mysql", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	switch c.Storage.Driver {
	case "local", "minio":
	default:
		return fmt.Errorf("unsupported storage driver %q", c.Storage.Driver)
	}

	if len(c.Stripe.SupportTiers) == 0 {
		return fmt.Errorf("at least one support tier is required")
	}
	for _, tier := range c.Stripe.SupportTiers {
		if tier <= 0 {
			return fmt.Errorf("support tier must be positive, got %d", tier)
		}
	}

	if c.RateLimit.RegistrationPerMinute <= 0 {
		return fmt.Errorf("registration rate limit must be positive")
	}
	if c.RateLimit.UnlockPerMinute <= 0 {
		return fmt.Errorf("unlock rate limit must be positive")
	}

	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment.Name == "development"
}
