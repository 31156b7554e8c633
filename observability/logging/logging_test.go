package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestSetupEmitsStructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("launchpadd", "test", Options{Level: "debug", Output: &buf})
	logger.Debug("applied", slog.String("tx_type", "buy"), slog.String("keystore_passphrase", "hunter2"), slog.String("jwt_secret_env", ""))

	var line map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("decode log line: %v (%q)", err, buf.String())
	}
	if line["service"] != "launchpadd" || line["env"] != "test" {
		t.Fatalf("missing service attrs: %v", line)
	}
	if line["severity"] != "DEBUG" || line["message"] != "applied" {
		t.Fatalf("unexpected envelope: %v", line)
	}
	if line["tx_type"] != "buy" {
		t.Fatalf("ordinary key redacted: %v", line)
	}
	if line["keystore_passphrase"] != RedactedValue {
		t.Fatalf("sensitive key leaked: %v", line)
	}
	if line["jwt_secret_env"] != "" {
		t.Fatalf("empty sensitive values stay empty: %v", line)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("launchpadd", "", Options{Level: "warn", Output: &buf})
	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info line should be filtered: %q", buf.String())
	}
	logger.Warn("kept")
	if buf.Len() == 0 {
		t.Fatalf("warn line missing")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestIsSensitive(t *testing.T) {
	for _, key := range []string{"Authorization", "rpc_jwt_secret", "private_key", "access_token"} {
		if !IsSensitive(key) {
			t.Fatalf("expected %q to be sensitive", key)
		}
	}
	for _, key := range []string{"tx_hash", "module", "height", "asset"} {
		if IsSensitive(key) {
			t.Fatalf("expected %q to pass through", key)
		}
	}
}
