package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != "127.0.0.1:8545" {
		t.Fatalf("unexpected rpc address %q", cfg.RPCAddress)
	}
	if cfg.JournalPath != filepath.Join(cfg.DataDir, "journal.db") {
		t.Fatalf("journal path not derived: %q", cfg.JournalPath)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not persisted: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.RPC.RateLimitBurst != cfg.RPC.RateLimitBurst || reloaded.Logging.Level != "info" {
		t.Fatalf("reloaded config differs: %+v", reloaded)
	}
}

func TestLoadParsesSections(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `RPCAddress = "0.0.0.0:9000"
DataDir = "/var/lib/launchpad"
GenesisFile = "mainnet.json"
Environment = "prod"

[rpc]
ReadTimeout = 30
MaxBodyBytes = 4096
RateLimitPerSec = 5.5
RateLimitBurst = 10
AllowedOrigins = ["https://app.example"]

[logging]
Level = "debug"
File = "/var/log/launchpad.log"

[telemetry]
Endpoint = "otel:4318"
Traces = true
Headers = "x-tenant=launch"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != "0.0.0.0:9000" || cfg.GenesisFile != "mainnet.json" || cfg.Environment != "prod" {
		t.Fatalf("unexpected top-level values: %+v", cfg)
	}
	if cfg.RPC.ReadTimeoutDuration().Seconds() != 30 || cfg.RPC.MaxBodyBytes != 4096 {
		t.Fatalf("unexpected rpc section: %+v", cfg.RPC)
	}
	// Values absent from the file keep their defaults.
	if cfg.RPC.IdleTimeout != 60 {
		t.Fatalf("expected default idle timeout, got %d", cfg.RPC.IdleTimeout)
	}
	if cfg.RPC.RateLimitPerSec != 5.5 || len(cfg.RPC.AllowedOrigins) != 1 {
		t.Fatalf("unexpected rate limit settings: %+v", cfg.RPC)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.File != "/var/log/launchpad.log" {
		t.Fatalf("unexpected logging section: %+v", cfg.Logging)
	}
	if !cfg.Telemetry.Traces || cfg.Telemetry.Endpoint != "otel:4318" {
		t.Fatalf("unexpected telemetry section: %+v", cfg.Telemetry)
	}
	if cfg.StateDir() != filepath.Join("/var/lib/launchpad", "state") {
		t.Fatalf("unexpected state dir %q", cfg.StateDir())
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("ValidatorKey = \"abc\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "ValidatorKey") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad address", func(c *Config) { c.RPCAddress = "localhost" }, "rpc address"},
		{"no genesis", func(c *Config) { c.GenesisFile = " " }, "genesis"},
		{"body limit", func(c *Config) { c.RPC.MaxBodyBytes = 0 }, "MaxBodyBytes"},
		{"burst", func(c *Config) { c.RPC.RateLimitBurst = 0 }, "RateLimitBurst"},
		{"jwt secret", func(c *Config) { c.RPC.JWT.Enable = true; c.RPC.JWT.SecretEnv = "" }, "SecretEnv"},
		{"rotation", func(c *Config) { c.Logging.MaxBackups = -1 }, "rotation"},
		{"telemetry", func(c *Config) { c.Telemetry.Metrics = true; c.Telemetry.Endpoint = "" }, "endpoint"},
		{"sample ratio", func(c *Config) { c.Telemetry.SampleRatio = 1.5 }, "SampleRatio"},
	}
	if err := Validate(Default()); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	for _, tc := range cases {
		cfg := Default()
		tc.mutate(cfg)
		err := Validate(cfg)
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: expected error containing %q, got %v", tc.name, tc.want, err)
		}
	}
}

func TestJournalSource(t *testing.T) {
	cfg := Default()
	cfg.JournalPath = filepath.Join(t.TempDir(), "journal.db")
	dsn, err := cfg.JournalSource()
	if err != nil {
		t.Fatalf("journal source: %v", err)
	}
	if !strings.HasPrefix(dsn, "file:") || !strings.Contains(dsn, "journal.db") {
		t.Fatalf("unexpected sqlite dsn %q", dsn)
	}

	cfg.JournalDSN = " postgres://journal@db/launchpad "
	dsn, err = cfg.JournalSource()
	if err != nil || dsn != "postgres://journal@db/launchpad" {
		t.Fatalf("expected explicit dsn, got %q (%v)", dsn, err)
	}
}
