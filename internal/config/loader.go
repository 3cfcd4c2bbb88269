package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ErrConfiguration wraps every error returned by Load.
var ErrConfiguration = errors.New("configuration error")

// envBindings maps config keys to the environment variables that override them.
var envBindings = map[string]string{
	"listen":               "LISTEN_ADDR",
	"database_url":         "DATABASE_URL",
	"log_level":            "LOG_LEVEL",
	"webhook_secret":       "WEBHOOK_SECRET",
	"signature_header":     "SIGNATURE_HEADER",
	"max_body_size":        "MAX_BODY_SIZE",
	"validation_profile":   "VALIDATION_PROFILE",
	"maintenance_interval": "MAINTENANCE_INTERVAL",
	"read_auth.jwt_secret": "READ_JWT_SECRET",
	"read_auth.tokens":     "READ_TOKENS",
}

// Load builds the configuration from, in increasing precedence:
// 1. defaults
// 2. the YAML file at path (optional; empty path skips it)
// 3. environment variables
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("%w: bind %s: %v", ErrConfiguration, env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: failed to read config file %q: %v", ErrConfiguration, path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrConfiguration, err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", DefaultListen)
	v.SetDefault("database_url", DefaultDatabaseURL)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("webhook_secret", "")
	v.SetDefault("signature_header", DefaultSignatureHeader)
	v.SetDefault("max_body_size", DefaultMaxBodySize)
	v.SetDefault("validation_profile", DefaultValidationProfile)
	v.SetDefault("maintenance_interval", DefaultMaintenanceInterval)
	v.SetDefault("read_auth.jwt_secret", "")
	v.SetDefault("read_auth.tokens", []string{})
}

func (c *Config) normalize() {
	c.LogLevel = strings.ToUpper(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "WARNING" {
		c.LogLevel = "WARN"
	}
	c.ValidationProfile = strings.ToLower(strings.TrimSpace(c.ValidationProfile))
	c.SignatureHeader = strings.TrimSpace(c.SignatureHeader)

	tokens := c.ReadAuth.Tokens[:0]
	for _, tok := range c.ReadAuth.Tokens {
		if tok = strings.TrimSpace(tok); tok != "" {
			tokens = append(tokens, tok)
		}
	}
	c.ReadAuth.Tokens = tokens
}

// YAML renders the redacted configuration.
func (c *Config) YAML() ([]byte, error) {
	r := c.Redacted()
	return yaml.Marshal(&r)
}
