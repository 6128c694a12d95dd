package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestNewLoggerRedactsSecretsAndTagsService(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "api", "debug")

	logger.Debug("config_loaded", "token", "abc", "draft_id", "d-1", "postgres_dsn", "postgres://u:p@db/claims")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["service"] != "api" || entry["msg"] != "config_loaded" {
		t.Fatalf("unexpected entry %v", entry)
	}
	if entry["token"] != redacted || entry["postgres_dsn"] != redacted {
		t.Fatalf("secrets not redacted: %v", entry)
	}
	if entry["draft_id"] != "d-1" {
		t.Fatalf("draft_id = %v", entry["draft_id"])
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":         slog.LevelInfo,
		"DEBUG":    slog.LevelDebug,
		" warning": slog.LevelWarn,
		"error":    slog.LevelError,
		"verbose":  slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLoggerHonoursLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "worker", "warn")
	logger.Info("notice_received")
	if buf.Len() != 0 {
		t.Fatalf("info line written at warn level: %s", buf.String())
	}
}
