package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledgerd.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
tls:
  allow_insecure: true
auth:
  hmac_secret: "  0123456789abcdef  "
ledger:
  operators: ["  plend1abc ", ""]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != ":8085" {
		t.Fatalf("listen = %q", cfg.ListenAddress)
	}
	if cfg.Auth.HMACSecret != "0123456789abcdef" || cfg.Auth.ClockSkew != 2*time.Minute {
		t.Fatalf("auth not normalized: %+v", cfg.Auth)
	}
	if cfg.RateLimit.RequestsPerMinute != 120 || cfg.RateLimit.Burst != 20 {
		t.Fatalf("rate limit defaults: %+v", cfg.RateLimit)
	}
	if cfg.Idempotency.Path != ":memory:" || cfg.Idempotency.TTL != 24*time.Hour {
		t.Fatalf("idempotency defaults: %+v", cfg.Idempotency)
	}
	if cfg.Ledger.ConfigPath != "ledger.toml" {
		t.Fatalf("ledger config = %q", cfg.Ledger.ConfigPath)
	}
	if len(cfg.Ledger.Operators) != 1 || cfg.Ledger.Operators[0] != "plend1abc" {
		t.Fatalf("operators = %v", cfg.Ledger.Operators)
	}
}

func TestLoadReadsSecretFromEnv(t *testing.T) {
	t.Setenv("LEDGERD_TEST_SECRET", "fedcba9876543210")
	path := writeConfig(t, `
tls:
  allow_insecure: true
auth:
  hmac_secret_env: LEDGERD_TEST_SECRET
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Auth.HMACSecret != "fedcba9876543210" {
		t.Fatalf("secret = %q", cfg.Auth.HMACSecret)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := map[string]string{
		"missing tls":    "auth:\n  hmac_secret: 0123456789abcdef\n",
		"half tls":       "tls:\n  cert: server.crt\nauth:\n  hmac_secret: 0123456789abcdef\n",
		"missing secret": "tls:\n  allow_insecure: true\n",
		"short secret":   "tls:\n  allow_insecure: true\nauth:\n  hmac_secret: short\n",
		"unknown field":  "tls:\n  allow_insecure: true\nauth:\n  hmac_secret: 0123456789abcdef\nbogus: 1\n",
	}
	for name, contents := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, contents)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestLogLevel(t *testing.T) {
	path := writeConfig(t, `
tls:
  allow_insecure: true
auth:
  hmac_secret: 0123456789abcdef
log:
  level: WARN
  file: " /tmp/ledgerd.log "
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	level, err := cfg.Log.SlogLevel()
	if err != nil || level != slog.LevelWarn {
		t.Fatalf("level = %v, %v", level, err)
	}
	if cfg.Log.File != "/tmp/ledgerd.log" {
		t.Fatalf("file = %q", cfg.Log.File)
	}

	bad := writeConfig(t, "tls:\n  allow_insecure: true\nauth:\n  hmac_secret: 0123456789abcdef\nlog:\n  level: loud\n")
	if _, err := Load(bad); err == nil {
		t.Fatalf("expected unknown level to fail")
	}
}
