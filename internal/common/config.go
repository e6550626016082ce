// -----------------------------------------------------------------------
// Package common provides shared configuration for the jobforge binary.
// -----------------------------------------------------------------------

package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the root configuration for jobforge, loaded in layered order:
// defaults -> file(s) -> environment -> CLI flags.
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Queue       QueueConfig     `toml:"queue"`
	RateLimit   RateLimitConfig `toml:"ratelimit"`
	Gemini      GeminiConfig    `toml:"gemini"`
	Backup      BackupConfig    `toml:"backup"`
	Browser     BrowserConfig   `toml:"browser"`
	Logging     LoggingConfig   `toml:"logging"`
}

// ServerConfig controls the (out-of-scope) HTTP surface placeholder; kept so
// operators can still point a reverse proxy health check somewhere.
type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

// StorageConfig groups the embedded persistence layer.
type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig configures the Badger/badgerhold-backed KV store that plays
// the role of Redis + Postgres for this module.
type BadgerConfig struct {
	Path           string `toml:"path"`
	ResetOnStartup bool   `toml:"reset_on_startup"`
	SweepInterval  string `toml:"sweep_interval"` // TTL sweep cadence, e.g. "30s"
}

// QueueConfig controls the priority job queue and worker pool (C13).
type QueueConfig struct {
	WorkerCount           int    `toml:"worker_count"`
	PollInterval          string `toml:"poll_interval"`
	MaxConcurrentPerUser  int    `toml:"max_concurrent_per_user"`
	DefaultTimeout        string `toml:"default_timeout"`
	ResumeTailoringTimeout string `toml:"resume_tailoring_timeout"`
	JobApplicationTimeout string `toml:"job_application_timeout"`
	JobSearchTimeout      string `toml:"job_search_timeout"`
}

// RateLimitConfig seeds the predefined per-scope limits described in spec §6.
// Entries keyed by limit name, e.g. "resume_tailoring_per_user_per_day".
type RateLimitConfig struct {
	Limits map[string]RateLimitEntry `toml:"limits"`
}

// RateLimitEntry is one row of the rate-limit table.
type RateLimitEntry struct {
	Scope  string `toml:"scope"`  // "user", "global", "concurrent"
	Max    int    `toml:"max"`
	Window string `toml:"window"` // duration string, e.g. "24h"; empty for concurrent scope
}

// GeminiConfig configures the quota-gated Gemini client (C2, C10).
type GeminiConfig struct {
	APIKey            string  `toml:"api_key"`
	Model             string  `toml:"model"`
	BatchModel        string  `toml:"batch_model"`
	Temperature       float32 `toml:"temperature"`
	Timeout           string  `toml:"timeout"`
	MaxPerMinute      int     `toml:"max_per_minute"`
	MaxPerDay         int     `toml:"max_per_day"`
	MaxConcurrent     int     `toml:"max_concurrent"`
	MaxRetries        int     `toml:"max_retries"`
	InitialBackoff    string  `toml:"initial_backoff"`
	MaxBackoff        string  `toml:"max_backoff"`
	BackoffMultiplier float64 `toml:"backoff_multiplier"`
}

// BackupConfig configures the cron-scheduled backup manager (C3).
type BackupConfig struct {
	Dir              string `toml:"dir"`
	DatabaseSchedule string `toml:"database_schedule"` // default "0 2 * * *"
	FilesSchedule    string `toml:"files_schedule"`    // default "0 3 * * *"
	LogsSchedule     string `toml:"logs_schedule"`     // default "0 4 * * 0"
	RetentionSchedule string `toml:"retention_schedule"` // default "0 5 * * *"
	RetentionDays    int    `toml:"retention_days"`
	FilesDir         string `toml:"files_dir"`
	LogsDir          string `toml:"logs_dir"`
}

// BrowserConfig configures the chromedp allocator used by C8/C9.
type BrowserConfig struct {
	Headless       bool   `toml:"headless"`
	NavigateTimeout string `toml:"navigate_timeout"`
	ActionTimeout   string `toml:"action_timeout"`
	UserAgent       string `toml:"user_agent"`
}

// LoggingConfig matches the teacher's arbor wiring.
type LoggingConfig struct {
	Level      string   `toml:"level"`
	Output     []string `toml:"output"`
	TimeFormat string   `toml:"time_format"`
}

// NewDefaultConfig returns the baseline configuration before any file,
// environment, or CLI overrides are applied.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8090,
			Host: "0.0.0.0",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path:          "./data/jobforge.badger",
				SweepInterval: "30s",
			},
		},
		Queue: QueueConfig{
			WorkerCount:            5,
			PollInterval:           "1s",
			MaxConcurrentPerUser:   2,
			DefaultTimeout:         "10m",
			ResumeTailoringTimeout: "10m",
			JobApplicationTimeout:  "30m",
			JobSearchTimeout:       "5m",
		},
		RateLimit: RateLimitConfig{
			// Exact names and defaults per spec §6's rate-limit table.
			Limits: map[string]RateLimitEntry{
				"resume_tailoring_per_user_per_day": {Scope: "user", Max: 5, Window: "24h"},
				"job_applications_per_user_per_day": {Scope: "user", Max: 20, Window: "24h"},
				"concurrent_job_applications":        {Scope: "concurrent", Max: 2},
				"job_search_per_user_per_day":        {Scope: "user", Max: 30, Window: "24h"},
				"gemini_requests_per_minute":          {Scope: "global", Max: 60, Window: "1m"},
				"gemini_requests_per_day":             {Scope: "global", Max: 2000, Window: "24h"},
			},
		},
		Gemini: GeminiConfig{
			Model:             "gemini-2.0-flash",
			BatchModel:        "gemini-2.0-flash",
			Temperature:       0.2,
			Timeout:           "60s",
			MaxPerMinute:      60,
			MaxPerDay:         2000,
			MaxConcurrent:     3,
			MaxRetries:        5,
			InitialBackoff:    "45s",
			MaxBackoff:        "90s",
			BackoffMultiplier: 1.5,
		},
		Backup: BackupConfig{
			Dir:               "./data/backups",
			DatabaseSchedule:  "0 2 * * *",
			FilesSchedule:     "0 3 * * *",
			LogsSchedule:      "0 4 * * 0",
			RetentionSchedule: "0 5 * * *",
			RetentionDays:     14,
			FilesDir:          "./data/uploads",
			LogsDir:           "./logs",
		},
		Browser: BrowserConfig{
			Headless:        true,
			NavigateTimeout: "30s",
			ActionTimeout:   "10s",
			UserAgent:       "",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05.000",
		},
	}
}

// LoadFromFiles loads configuration from zero or more TOML files, each
// overlaying the previous, then applies environment variable overrides.
// Priority: CLI flags > environment variables > last file > ... > first file > defaults.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)
	return config, nil
}

// applyEnvOverrides applies JOBFORGE_* environment variable overrides.
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("JOBFORGE_ENV"); env != "" {
		config.Environment = env
	}
	if port := os.Getenv("JOBFORGE_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("JOBFORGE_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if path := os.Getenv("JOBFORGE_BADGER_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}
	if level := os.Getenv("JOBFORGE_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("JOBFORGE_LOG_OUTPUT"); output != "" {
		config.Logging.Output = strings.Split(output, ",")
	}
	if key := os.Getenv("JOBFORGE_GEMINI_API_KEY"); key != "" {
		config.Gemini.APIKey = key
	}
	if workers := os.Getenv("JOBFORGE_QUEUE_WORKERS"); workers != "" {
		if w, err := strconv.Atoi(workers); err == nil {
			config.Queue.WorkerCount = w
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides; flags always win.
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// ResolveAPIKey resolves the Gemini API key with priority:
// environment variable -> config value -> error.
func ResolveAPIKey(configValue string) (string, error) {
	if key := os.Getenv("JOBFORGE_GEMINI_API_KEY"); key != "" {
		return key, nil
	}
	if configValue != "" {
		return configValue, nil
	}
	return "", fmt.Errorf("gemini API key not found in JOBFORGE_GEMINI_API_KEY or config gemini.api_key")
}

// IsProduction reports whether the configured environment is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// ParseDurationOr parses a duration string, falling back to a default on
// parse failure instead of erroring — used for config fields with sane
// fallbacks where a malformed value shouldn't be fatal.
func ParseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
