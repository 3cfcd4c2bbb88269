package doctor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mattjoyce/hookbox/internal/config"
	"github.com/mattjoyce/hookbox/internal/storage"
)

func validConfig() *config.Config {
	return &config.Config{
		Listen:              ":8000",
		DatabaseURL:         "sqlite:///data/app.db",
		LogLevel:            "INFO",
		WebhookSecret:       "testsecret",
		SignatureHeader:     "X-Signature",
		MaxBodySize:         "1MB",
		ValidationProfile:   "e164",
		MaintenanceInterval: 6 * time.Hour,
		ReadAuth: config.ReadAuthConfig{
			JWTSecret: strings.Repeat("k", 32),
			Tokens:    []string{"0123456789abcdef"},
		},
	}
}

func newDoctor(cfg *config.Config, ping Pinger) *Doctor {
	d := New(cfg, ping)
	d.fs = func(string) error { return nil }
	return d
}

func hasIssue(issues []Issue, field string) bool {
	for _, is := range issues {
		if is.Field == field {
			return true
		}
	}
	return false
}

func TestValidate_ValidConfig(t *testing.T) {
	t.Parallel()
	r := newDoctor(validConfig(), nil).Validate(context.Background())
	if !r.Valid {
		t.Fatalf("expected valid, got errors: %v", r.Errors)
	}
	if len(r.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", r.Warnings)
	}
	if got := FormatHuman(r); got != "Configuration valid.\n" {
		t.Fatalf("FormatHuman = %q", got)
	}
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(c *config.Config)
		field  string
	}{
		{name: "no listen", mutate: func(c *config.Config) { c.Listen = "" }, field: "listen"},
		{name: "bad level", mutate: func(c *config.Config) { c.LogLevel = "TRACE" }, field: "log_level"},
		{name: "no header", mutate: func(c *config.Config) { c.SignatureHeader = " " }, field: "signature_header"},
		{name: "unknown profile", mutate: func(c *config.Config) { c.ValidationProfile = "uk" }, field: "validation_profile"},
		{name: "bad body size", mutate: func(c *config.Config) { c.MaxBodySize = "lots" }, field: "max_body_size"},
		{name: "bad db url", mutate: func(c *config.Config) { c.DatabaseURL = "mysql://x" }, field: "database_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			r := newDoctor(cfg, nil).Validate(context.Background())
			if r.Valid {
				t.Fatal("expected invalid result")
			}
			if !hasIssue(r.Errors, tt.field) {
				t.Fatalf("expected error on %s, got %v", tt.field, r.Errors)
			}
		})
	}
}

func TestValidate_Warnings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(c *config.Config)
		field  string
	}{
		{name: "no secret", mutate: func(c *config.Config) { c.WebhookSecret = "" }, field: "webhook_secret"},
		{name: "huge body", mutate: func(c *config.Config) { c.MaxBodySize = "64MB" }, field: "max_body_size"},
		{name: "memory db", mutate: func(c *config.Config) { c.DatabaseURL = "sqlite://:memory:" }, field: "database_url"},
		{name: "open reads", mutate: func(c *config.Config) { c.ReadAuth = config.ReadAuthConfig{} }, field: "read_auth"},
		{name: "short jwt", mutate: func(c *config.Config) { c.ReadAuth.JWTSecret = "short" }, field: "read_auth.jwt_secret"},
		{name: "short token", mutate: func(c *config.Config) { c.ReadAuth.Tokens = []string{"abc"} }, field: "read_auth.tokens[0]"},
		{name: "maintenance off", mutate: func(c *config.Config) { c.MaintenanceInterval = 0 }, field: "maintenance_interval"},
		{name: "maintenance fast", mutate: func(c *config.Config) { c.MaintenanceInterval = time.Second }, field: "maintenance_interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			r := newDoctor(cfg, nil).Validate(context.Background())
			if !r.Valid {
				t.Fatalf("warnings must not invalidate: %v", r.Errors)
			}
			if !hasIssue(r.Warnings, tt.field) {
				t.Fatalf("expected warning on %s, got %v", tt.field, r.Warnings)
			}
		})
	}
}

func TestValidate_NetworkFilesystem(t *testing.T) {
	t.Parallel()
	d := New(validConfig(), nil)
	d.fs = func(string) error { return errors.New("database path is on network filesystem \"nfs\"") }

	r := d.Validate(context.Background())
	if r.Valid || !hasIssue(r.Errors, "database_url") {
		t.Fatalf("expected database error, got %+v", r)
	}
}

func TestValidate_Ping(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.DatabaseURL = "postgres://user:pw@db.internal:5432/hookbox"

	var pinged storage.Target
	ok := newDoctor(cfg, func(ctx context.Context, tg storage.Target) error {
		pinged = tg
		return nil
	}).Validate(context.Background())
	if !ok.Valid {
		t.Fatalf("expected valid, got %v", ok.Errors)
	}
	if pinged.Backend != storage.BackendPostgres {
		t.Fatalf("ping saw %+v", pinged)
	}

	bad := newDoctor(cfg, func(context.Context, storage.Target) error {
		return errors.New("connection refused")
	}).Validate(context.Background())
	if bad.Valid {
		t.Fatal("expected unreachable database to be an error")
	}
	msg := bad.Errors[0].Message
	if !strings.Contains(msg, "connection refused") || strings.Contains(msg, "pw") {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestPingDatabase_SQLiteIsNoop(t *testing.T) {
	t.Parallel()
	if err := PingDatabase(context.Background(), storage.Target{Backend: storage.BackendSQLite, Path: "x.db"}); err != nil {
		t.Fatalf("PingDatabase: %v", err)
	}
}

func TestFormatHuman(t *testing.T) {
	t.Parallel()
	r := &Result{
		Valid:    false,
		Errors:   []Issue{{Category: "webhook", Field: "validation_profile", Message: "unknown"}},
		Warnings: []Issue{{Category: "maintenance", Message: "disabled"}},
	}
	out := FormatHuman(r)
	for _, want := range []string{
		"Configuration invalid (1 error(s), 1 warning(s))",
		"ERROR [webhook] validation_profile: unknown",
		"WARN  [maintenance] disabled",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestFormatJSON(t *testing.T) {
	t.Parallel()
	out, err := FormatJSON(&Result{Valid: true})
	if err != nil {
		t.Fatalf("FormatJSON: %v", err)
	}
	if !strings.Contains(out, `"valid": true`) {
		t.Fatalf("unexpected JSON %s", out)
	}
}
