// Package doctor validates hookbox configuration before the server starts.
package doctor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mattjoyce/hookbox/internal/config"
	"github.com/mattjoyce/hookbox/internal/storage"
	"github.com/mattjoyce/hookbox/internal/webhook"
)

const (
	minJWTSecretLen   = 32
	minStaticTokenLen = 16
	maxSaneBodySize   = 16 << 20
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Pinger checks that a database target is reachable.
type Pinger func(ctx context.Context, t storage.Target) error

// Doctor validates a loaded configuration.
type Doctor struct {
	cfg   *config.Config
	ping  Pinger
	fs    func(path string) error
}

// New creates a Doctor. A nil pinger skips the connectivity check.
func New(cfg *config.Config, ping Pinger) *Doctor {
	return &Doctor{cfg: cfg, ping: ping, fs: storage.ValidateSQLiteFilesystem}
}

// PingDatabase opens and pings postgres targets. SQLite targets only need
// a local filesystem, which is checked separately.
func PingDatabase(ctx context.Context, t storage.Target) error {
	if t.Backend != storage.BackendPostgres {
		return nil
	}
	db, err := storage.OpenPostgres(ctx, t.DSN)
	if err != nil {
		return err
	}
	return db.Close()
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate(ctx context.Context) *Result {
	r := &Result{Valid: true}

	d.validateServer(r)
	d.validateWebhook(r)
	d.validateDatabase(ctx, r)
	d.validateReadAuth(r)
	d.warnMaintenance(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) validateServer(r *Result) {
	if strings.TrimSpace(d.cfg.Listen) == "" {
		d.addError(r, "server", "listen", "listen address is required")
	}
	switch strings.ToUpper(d.cfg.LogLevel) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		d.addError(r, "server", "log_level", fmt.Sprintf("unknown log level %q", d.cfg.LogLevel))
	}
}

func (d *Doctor) validateWebhook(r *Result) {
	if d.cfg.WebhookSecret == "" {
		d.addWarning(r, "webhook", "webhook_secret",
			"WEBHOOK_SECRET is not set; only the demo signature is accepted and /health/ready reports 503")
	}
	if strings.TrimSpace(d.cfg.SignatureHeader) == "" {
		d.addError(r, "webhook", "signature_header", "signature header name is required")
	}
	if _, err := webhook.ProfileByName(d.cfg.ValidationProfile); err != nil {
		d.addError(r, "webhook", "validation_profile",
			fmt.Sprintf("%v (known: %s)", err, strings.Join(webhook.ProfileNames(), ", ")))
	}

	size := d.cfg.MaxBodyBytes()
	switch {
	case size <= 0:
		d.addError(r, "webhook", "max_body_size", fmt.Sprintf("invalid body size %q", d.cfg.MaxBodySize))
	case size > maxSaneBodySize:
		d.addWarning(r, "webhook", "max_body_size",
			fmt.Sprintf("body limit %s is unusually large for text messages", d.cfg.MaxBodySize))
	}
}

func (d *Doctor) validateDatabase(ctx context.Context, r *Result) {
	target, err := storage.ParseDatabaseURL(d.cfg.DatabaseURL)
	if err != nil {
		d.addError(r, "database", "database_url", err.Error())
		return
	}

	if target.Backend == storage.BackendSQLite {
		if target.Path == storage.MemoryPath {
			d.addWarning(r, "database", "database_url", "in-memory database; messages are lost on restart")
		} else if err := d.fs(target.Path); err != nil {
			d.addError(r, "database", "database_url", err.Error())
		}
	}

	if d.ping == nil {
		return
	}
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := d.ping(pctx, target); err != nil {
		d.addError(r, "database", "database_url", fmt.Sprintf("%s unreachable: %v", target, err))
	}
}

func (d *Doctor) validateReadAuth(r *Result) {
	ra := d.cfg.ReadAuth
	if !ra.Enabled() {
		d.addWarning(r, "read_auth", "read_auth", "read endpoints are open; set READ_TOKENS or READ_JWT_SECRET to protect them")
		return
	}
	if ra.JWTSecret != "" && len(ra.JWTSecret) < minJWTSecretLen {
		d.addWarning(r, "read_auth", "read_auth.jwt_secret",
			fmt.Sprintf("JWT secret is shorter than %d bytes", minJWTSecretLen))
	}
	for i, tok := range ra.Tokens {
		if len(tok) < minStaticTokenLen {
			d.addWarning(r, "read_auth", fmt.Sprintf("read_auth.tokens[%d]", i),
				fmt.Sprintf("static token is shorter than %d characters", minStaticTokenLen))
		}
	}
}

func (d *Doctor) warnMaintenance(r *Result) {
	switch iv := d.cfg.MaintenanceInterval; {
	case iv == 0:
		d.addWarning(r, "maintenance", "maintenance_interval", "periodic maintenance is disabled")
	case iv < time.Minute:
		d.addWarning(r, "maintenance", "maintenance_interval",
			fmt.Sprintf("maintenance interval %s is very short (< 1m)", iv))
	}
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	if r.Valid && len(r.Warnings) == 0 {
		b.WriteString("Configuration valid.\n")
		return b.String()
	}

	if r.Valid {
		fmt.Fprintf(&b, "Configuration valid (%d warning(s))\n", len(r.Warnings))
	} else {
		fmt.Fprintf(&b, "Configuration invalid (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		writeIssue(&b, "ERROR", e)
	}
	for _, w := range r.Warnings {
		writeIssue(&b, "WARN ", w)
	}
	return b.String()
}

func writeIssue(b *strings.Builder, label string, is Issue) {
	if is.Field != "" {
		fmt.Fprintf(b, "  %s [%s] %s: %s\n", label, is.Category, is.Field, is.Message)
		return
	}
	fmt.Fprintf(b, "  %s [%s] %s\n", label, is.Category, is.Message)
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
