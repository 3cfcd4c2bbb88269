package config

import "time"

const (
	DefaultListen              = ":8000"
	DefaultDatabaseURL         = "sqlite:///data/app.db"
	DefaultLogLevel            = "INFO"
	DefaultSignatureHeader     = "X-Signature"
	DefaultMaxBodySize         = "1MB"
	DefaultValidationProfile   = "e164"
	DefaultMaintenanceInterval = 6 * time.Hour
)

// Config is the complete runtime configuration for hookbox.
type Config struct {
	Listen              string         `mapstructure:"listen" yaml:"listen" validate:"required"`
	DatabaseURL         string         `mapstructure:"database_url" yaml:"database_url" validate:"required,dburl"`
	LogLevel            string         `mapstructure:"log_level" yaml:"log_level" validate:"oneof=DEBUG INFO WARN ERROR"`
	WebhookSecret       string         `mapstructure:"webhook_secret" yaml:"webhook_secret"`
	SignatureHeader     string         `mapstructure:"signature_header" yaml:"signature_header" validate:"required"`
	MaxBodySize         string         `mapstructure:"max_body_size" yaml:"max_body_size" validate:"required,bytesize"`
	ValidationProfile   string         `mapstructure:"validation_profile" yaml:"validation_profile" validate:"oneof=e164 in"`
	MaintenanceInterval time.Duration  `mapstructure:"maintenance_interval" yaml:"maintenance_interval" validate:"gte=0"`
	ReadAuth            ReadAuthConfig `mapstructure:"read_auth" yaml:"read_auth"`
}

// ReadAuthConfig guards the read endpoints. Both fields empty means reads are open.
type ReadAuthConfig struct {
	JWTSecret string   `mapstructure:"jwt_secret" yaml:"jwt_secret,omitempty"`
	Tokens    []string `mapstructure:"tokens" yaml:"tokens,omitempty"`
}

// Enabled reports whether any read credential is configured.
func (r ReadAuthConfig) Enabled() bool {
	return r.JWTSecret != "" || len(r.Tokens) > 0
}

// Ready reports whether the service can accept signed webhooks.
func (c *Config) Ready() bool {
	return c.WebhookSecret != ""
}

// MaxBodyBytes returns the parsed body limit. Load has already validated it.
func (c *Config) MaxBodyBytes() int64 {
	n, err := parseByteSize(c.MaxBodySize)
	if err != nil {
		return 0
	}
	return n
}

const redactedValue = "********"

// Redacted returns a copy with secrets masked, suitable for display.
func (c *Config) Redacted() Config {
	out := *c
	if out.WebhookSecret != "" {
		out.WebhookSecret = redactedValue
	}
	if out.ReadAuth.JWTSecret != "" {
		out.ReadAuth.JWTSecret = redactedValue
	}
	if len(out.ReadAuth.Tokens) > 0 {
		masked := make([]string, len(out.ReadAuth.Tokens))
		for i := range masked {
			masked[i] = redactedValue
		}
		out.ReadAuth.Tokens = masked
	}
	return out
}
