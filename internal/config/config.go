package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ConfigFileEnv names an optional YAML file. Environment variables win over it.
const ConfigFileEnv = "CLAIMS_CONFIG_FILE"

type Config struct {
	APIPort  string `yaml:"api_port"`
	LogLevel string `yaml:"log_level"`

	ClaimsAPIURL   string `yaml:"claims_api_url"`
	ClaimsAPIToken string `yaml:"claims_api_token"`
	PredictPath    string `yaml:"predict_path"`
	SubmitPath     string `yaml:"submit_path"`

	PredictTimeoutSeconds int     `yaml:"predict_timeout_seconds"`
	PredictMaxAttempts    int     `yaml:"predict_max_attempts"`
	PredictRetryDelayMS   int     `yaml:"predict_retry_delay_ms"`
	SubmitTimeoutSeconds  int     `yaml:"submit_timeout_seconds"`
	SubmitMaxAttempts     int     `yaml:"submit_max_attempts"`
	BreakerEnabled        bool    `yaml:"breaker_enabled"`
	DefaultConfidence     float64 `yaml:"default_confidence"`

	IncidentDateDefaultToday bool `yaml:"incident_date_default_today"`

	DraftStore      string `yaml:"draft_store"`
	DraftTTLMinutes int    `yaml:"draft_ttl_minutes"`
	RedisAddr       string `yaml:"redis_addr"`
	RedisPassword   string `yaml:"redis_password"`
	RedisDB         int    `yaml:"redis_db"`

	PostgresDSN string `yaml:"postgres_dsn"`

	NATSURL           string `yaml:"nats_url"`
	NATSNoticeSubject string `yaml:"nats_notice_subject"`

	RateLimitRPS   float64 `yaml:"api_rate_limit_rps"`
	RateLimitBurst int     `yaml:"api_rate_limit_burst"`

	WorkerMetricsPort         string `yaml:"worker_metrics_port"`
	DraftPurgeIntervalMinutes int    `yaml:"draft_purge_interval_minutes"`

	ConfigFile string `yaml:"-"`
}

var defaults = map[string]any{
	"API_PORT":  "8080",
	"LOG_LEVEL": "info",

	"CLAIMS_API_URL":   "http://localhost:8000/api",
	"CLAIMS_API_TOKEN": "",
	"PREDICT_PATH":     "/claims/predict",
	"SUBMIT_PATH":      "/claims/",

	"PREDICT_TIMEOUT_SECONDS": 30,
	"PREDICT_MAX_ATTEMPTS":    3,
	"PREDICT_RETRY_DELAY_MS":  1000,
	"SUBMIT_TIMEOUT_SECONDS":  30,
	"SUBMIT_MAX_ATTEMPTS":     2,
	"BREAKER_ENABLED":         true,
	"DEFAULT_CONFIDENCE":      0.85,

	"INCIDENT_DATE_DEFAULT_TODAY": false,

	"DRAFT_STORE":       "memory",
	"DRAFT_TTL_MINUTES": 1440,
	"REDIS_ADDR":        "localhost:6379",
	"REDIS_PASSWORD":    "",
	"REDIS_DB":          0,

	"POSTGRES_DSN": "",

	"NATS_URL":            "",
	"NATS_NOTICE_SUBJECT": "claims.notices",

	"API_RATE_LIMIT_RPS":   20.0,
	"API_RATE_LIMIT_BURST": 40,

	"WORKER_METRICS_PORT":          "9090",
	"DRAFT_PURGE_INTERVAL_MINUTES": 15,
}

func Load() (Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	file := strings.TrimSpace(os.Getenv(ConfigFileEnv))
	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	cfg := Config{
		APIPort:  v.GetString("API_PORT"),
		LogLevel: v.GetString("LOG_LEVEL"),

		ClaimsAPIURL:   v.GetString("CLAIMS_API_URL"),
		ClaimsAPIToken: v.GetString("CLAIMS_API_TOKEN"),
		PredictPath:    v.GetString("PREDICT_PATH"),
		SubmitPath:     v.GetString("SUBMIT_PATH"),

		PredictTimeoutSeconds: positiveInt(v, "PREDICT_TIMEOUT_SECONDS"),
		PredictMaxAttempts:    positiveInt(v, "PREDICT_MAX_ATTEMPTS"),
		PredictRetryDelayMS:   nonNegativeInt(v, "PREDICT_RETRY_DELAY_MS"),
		SubmitTimeoutSeconds:  positiveInt(v, "SUBMIT_TIMEOUT_SECONDS"),
		SubmitMaxAttempts:     positiveInt(v, "SUBMIT_MAX_ATTEMPTS"),
		BreakerEnabled:        v.GetBool("BREAKER_ENABLED"),
		DefaultConfidence:     v.GetFloat64("DEFAULT_CONFIDENCE"),

		IncidentDateDefaultToday: v.GetBool("INCIDENT_DATE_DEFAULT_TODAY"),

		DraftStore:      strings.ToLower(strings.TrimSpace(v.GetString("DRAFT_STORE"))),
		DraftTTLMinutes: nonNegativeInt(v, "DRAFT_TTL_MINUTES"),
		RedisAddr:       v.GetString("REDIS_ADDR"),
		RedisPassword:   v.GetString("REDIS_PASSWORD"),
		RedisDB:         nonNegativeInt(v, "REDIS_DB"),

		PostgresDSN: v.GetString("POSTGRES_DSN"),

		NATSURL:           v.GetString("NATS_URL"),
		NATSNoticeSubject: v.GetString("NATS_NOTICE_SUBJECT"),

		RateLimitRPS:   v.GetFloat64("API_RATE_LIMIT_RPS"),
		RateLimitBurst: nonNegativeInt(v, "API_RATE_LIMIT_BURST"),

		WorkerMetricsPort:         v.GetString("WORKER_METRICS_PORT"),
		DraftPurgeIntervalMinutes: positiveInt(v, "DRAFT_PURGE_INTERVAL_MINUTES"),

		ConfigFile: file,
	}
	if cfg.DefaultConfidence <= 0 || cfg.DefaultConfidence > 1 {
		cfg.DefaultConfidence = defaults["DEFAULT_CONFIDENCE"].(float64)
	}
	return cfg, nil
}

func (c Config) PredictTimeout() time.Duration {
	return time.Duration(c.PredictTimeoutSeconds) * time.Second
}

func (c Config) PredictRetryDelay() time.Duration {
	return time.Duration(c.PredictRetryDelayMS) * time.Millisecond
}

func (c Config) SubmitTimeout() time.Duration {
	return time.Duration(c.SubmitTimeoutSeconds) * time.Second
}

func (c Config) DraftTTL() time.Duration {
	return time.Duration(c.DraftTTLMinutes) * time.Minute
}

func (c Config) DraftPurgeInterval() time.Duration {
	return time.Duration(c.DraftPurgeIntervalMinutes) * time.Minute
}

// Redacted hides secrets for display.
func (c Config) Redacted() Config {
	out := c
	if out.ClaimsAPIToken != "" {
		out.ClaimsAPIToken = "***"
	}
	if out.RedisPassword != "" {
		out.RedisPassword = "***"
	}
	if out.PostgresDSN != "" {
		out.PostgresDSN = "***"
	}
	return out
}

// Malformed numbers fall back to the default, as unset ones do.
func positiveInt(v *viper.Viper, key string) int {
	n := v.GetInt(key)
	if n <= 0 {
		return defaults[key].(int)
	}
	return n
}

func nonNegativeInt(v *viper.Viper, key string) int {
	n := v.GetInt(key)
	if n < 0 {
		return defaults[key].(int)
	}
	return n
}
