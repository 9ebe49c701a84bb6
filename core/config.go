package core

import (
	"fmt"
	"strings"
)

const (
	StoreDriverSQLite   = "sqlite3"
	StoreDriverPostgres = "postgres"

	NotificationDriverResend = "resend"
	NotificationDriverLog    = "log"
)

type StripeConfig struct {
	WebhookSecret            string `koanf:"webhook_secret" mapstructure:"webhook_secret"`
	ToleranceSeconds         int    `koanf:"tolerance_seconds" mapstructure:"tolerance_seconds"`
	IgnoreAPIVersionMismatch bool   `koanf:"ignore_api_version_mismatch" mapstructure:"ignore_api_version_mismatch"`
}

type NotificationConfig struct {
	Driver      string `koanf:"driver" mapstructure:"driver"`
	APIKey      string `koanf:"api_key" mapstructure:"api_key"`
	From        string `koanf:"from" mapstructure:"from"`
	Subject     string `koanf:"subject" mapstructure:"subject"`
	FailOnError bool   `koanf:"fail_on_error" mapstructure:"fail_on_error"`
}

type StoreConfig struct {
	Driver string `koanf:"driver" mapstructure:"driver"`
	DSN    string `koanf:"dsn" mapstructure:"dsn"`
	Debug  bool   `koanf:"debug" mapstructure:"debug"`
}

type RateLimitConfig struct {
	Enabled       bool  `koanf:"enabled" mapstructure:"enabled"`
	Limit         int64 `koanf:"limit" mapstructure:"limit"`
	PeriodSeconds int   `koanf:"period_seconds" mapstructure:"period_seconds"`
}

type HTTPConfig struct {
	Address      string          `koanf:"address" mapstructure:"address"`
	Path         string          `koanf:"path" mapstructure:"path"`
	MaxBodyBytes int64           `koanf:"max_body_bytes" mapstructure:"max_body_bytes"`
	RateLimit    RateLimitConfig `koanf:"rate_limit" mapstructure:"rate_limit"`

	// TrustProxyHeaders lets X-Forwarded-For and X-Real-IP replace the socket
	// address. Enable it only behind a proxy that overwrites those headers.
	TrustProxyHeaders bool `koanf:"trust_proxy_headers" mapstructure:"trust_proxy_headers"`
}

type Config struct {
	ServiceName  string             `koanf:"service_name" mapstructure:"service_name"`
	Stripe       StripeConfig       `koanf:"stripe" mapstructure:"stripe"`
	Notification NotificationConfig `koanf:"notification" mapstructure:"notification"`
	Store        StoreConfig        `koanf:"store" mapstructure:"store"`
	HTTP         HTTPConfig         `koanf:"http" mapstructure:"http"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "checkout",
		Stripe: StripeConfig{
			ToleranceSeconds:         300,
			IgnoreAPIVersionMismatch: true,
		},
		Notification: NotificationConfig{
			Driver:  NotificationDriverResend,
			From:    "Checkout <no-reply@example.com>",
			Subject: "Thanks for your order!",
		},
		Store: StoreConfig{
			Driver: StoreDriverSQLite,
			DSN:    "file:checkout.db?cache=shared&_foreign_keys=on",
		},
		HTTP: HTTPConfig{
			Address:      ":8080",
			Path:         "/api/webhooks",
			MaxBodyBytes: 1 << 20,
			RateLimit: RateLimitConfig{
				Limit:         100,
				PeriodSeconds: 60,
			},
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	switch strings.TrimSpace(c.Store.Driver) {
	case "", StoreDriverSQLite, StoreDriverPostgres:
	default:
		return fmt.Errorf("core: unsupported store driver %q", c.Store.Driver)
	}
	switch strings.TrimSpace(c.Notification.Driver) {
	case "", NotificationDriverResend, NotificationDriverLog:
	default:
		return fmt.Errorf("core: unsupported notification driver %q", c.Notification.Driver)
	}
	if c.Stripe.ToleranceSeconds < 0 {
		return fmt.Errorf("core: stripe.tolerance_seconds must not be negative")
	}
	return nil
}

// ValidateForServe enforces the settings a running webhook endpoint cannot
// start without.
func (c Config) ValidateForServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Stripe.WebhookSecret) == "" {
		return fmt.Errorf("core: stripe.webhook_secret is required")
	}
	if strings.TrimSpace(c.Notification.From) == "" {
		return fmt.Errorf("core: notification.from is required")
	}
	driver := strings.TrimSpace(c.Notification.Driver)
	if (driver == "" || driver == NotificationDriverResend) && strings.TrimSpace(c.Notification.APIKey) == "" {
		return fmt.Errorf("core: notification.api_key is required")
	}
	if strings.TrimSpace(c.Store.DSN) == "" {
		return fmt.Errorf("core: store.dsn is required")
	}
	return nil
}
