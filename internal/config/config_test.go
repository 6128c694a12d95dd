package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(ConfigFileEnv, "")
	t.Setenv("PREDICT_MAX_ATTEMPTS", "")
	t.Setenv("PREDICT_RETRY_DELAY_MS", "")
	t.Setenv("INCIDENT_DATE_DEFAULT_TODAY", "")
	t.Setenv("DRAFT_STORE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.PredictMaxAttempts != 3 {
		t.Fatalf("expected 3 prediction attempts, got %d", cfg.PredictMaxAttempts)
	}
	if cfg.PredictRetryDelay() != time.Second {
		t.Fatalf("expected 1s retry delay, got %s", cfg.PredictRetryDelay())
	}
	if cfg.IncidentDateDefaultToday {
		t.Fatalf("today fallback must be off by default")
	}
	if cfg.DraftStore != "memory" {
		t.Fatalf("expected memory draft store, got %q", cfg.DraftStore)
	}
	if cfg.DefaultConfidence != 0.85 {
		t.Fatalf("expected default confidence 0.85, got %v", cfg.DefaultConfidence)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv(ConfigFileEnv, "")
	t.Setenv("PREDICT_MAX_ATTEMPTS", "5")
	t.Setenv("PREDICT_TIMEOUT_SECONDS", "10")
	t.Setenv("DRAFT_STORE", "Redis")
	t.Setenv("INCIDENT_DATE_DEFAULT_TODAY", "true")
	t.Setenv("SUBMIT_MAX_ATTEMPTS", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.PredictMaxAttempts != 5 {
		t.Fatalf("expected 5 attempts, got %d", cfg.PredictMaxAttempts)
	}
	if cfg.PredictTimeout() != 10*time.Second {
		t.Fatalf("expected 10s timeout, got %s", cfg.PredictTimeout())
	}
	if cfg.DraftStore != "redis" {
		t.Fatalf("expected redis draft store, got %q", cfg.DraftStore)
	}
	if !cfg.IncidentDateDefaultToday {
		t.Fatalf("expected today fallback enabled")
	}
	if cfg.SubmitMaxAttempts != 2 {
		t.Fatalf("expected malformed value to fall back to 2, got %d", cfg.SubmitMaxAttempts)
	}
}

func TestLoadReadsConfigFileUnderEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "claims.yaml")
	content := "claims_api_url: https://claims.example.test/api\npredict_max_attempts: 4\napi_port: \"9000\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigFileEnv, path)
	t.Setenv("CLAIMS_API_URL", "")
	t.Setenv("PREDICT_MAX_ATTEMPTS", "")
	t.Setenv("API_PORT", "7000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ClaimsAPIURL != "https://claims.example.test/api" {
		t.Fatalf("expected file value, got %q", cfg.ClaimsAPIURL)
	}
	if cfg.PredictMaxAttempts != 4 {
		t.Fatalf("expected 4 attempts from file, got %d", cfg.PredictMaxAttempts)
	}
	if cfg.APIPort != "7000" {
		t.Fatalf("expected env to win over file, got %q", cfg.APIPort)
	}
}

func TestLoadFailsOnMissingConfigFile(t *testing.T) {
	t.Setenv(ConfigFileEnv, filepath.Join(t.TempDir(), "absent.yaml"))
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestRedactedHidesSecrets(t *testing.T) {
	cfg := Config{ClaimsAPIToken: "tok", PostgresDSN: "postgres://u:p@h/db"}.Redacted()
	if cfg.ClaimsAPIToken != "***" || cfg.PostgresDSN != "***" {
		t.Fatalf("expected secrets redacted, got %+v", cfg)
	}
}
