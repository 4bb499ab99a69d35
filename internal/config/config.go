package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the outreach engine.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Gateway    GatewayConfig    `yaml:"gateway"`
	Engine     EngineConfig     `yaml:"engine"`
	Dedup      DedupConfig      `yaml:"dedup"`
	Retarget   RetargetConfig   `yaml:"retarget"`
	Dispatch   DispatchConfig   `yaml:"dispatch"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with container detection.
func (c ServerConfig) GetHost() string {
	// In a container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds Redis settings for dedup, cooldowns, and locks.
type RedisConfig struct {
	URL     string `yaml:"url"`
	Enabled bool   `yaml:"enabled"`
}

// ClassifierConfig holds the external classification service settings.
type ClassifierConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Enabled        bool   `yaml:"enabled"`
}

// Timeout returns the configured classifier timeout as a duration.
func (c ClassifierConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// GatewayConfig holds the outbound messaging gateway settings.
type GatewayConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	Instance       string `yaml:"instance"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured gateway timeout as a duration.
func (c GatewayConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// EngineConfig holds decision engine tunables.
type EngineConfig struct {
	DropThresholdPct      float64 `yaml:"drop_threshold_pct"`
	SnapshotStalenessMins int     `yaml:"snapshot_staleness_mins"`
	CooldownMinutes       int     `yaml:"cooldown_minutes"`
}

// SnapshotStaleness returns the market snapshot staleness horizon.
func (c EngineConfig) SnapshotStaleness() time.Duration {
	return time.Duration(c.SnapshotStalenessMins) * time.Minute
}

// Cooldown returns the default per-customer dispatch cooldown.
func (c EngineConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownMinutes) * time.Minute
}

// DedupConfig holds the event deduplicator settings.
type DedupConfig struct {
	WindowMinutes int `yaml:"window_minutes"`
}

// Window returns the dedup window as a duration.
func (c DedupConfig) Window() time.Duration {
	return time.Duration(c.WindowMinutes) * time.Minute
}

// RetargetConfig holds the retargeting scheduler settings.
type RetargetConfig struct {
	Schedule        string `yaml:"schedule"`
	GraceHours      int    `yaml:"grace_hours"`
	RelevanceDays   int    `yaml:"relevance_days"`
	BatchSize       int    `yaml:"batch_size"`
	Enabled         bool   `yaml:"enabled"`
	LockTTLMinutes  int    `yaml:"lock_ttl_minutes"`
}

// Grace returns the minimum age before an inquired lead becomes a ghost.
func (c RetargetConfig) Grace() time.Duration {
	return time.Duration(c.GraceHours) * time.Hour
}

// Relevance returns the maximum age after which a lead is marked lost.
func (c RetargetConfig) Relevance() time.Duration {
	return time.Duration(c.RelevanceDays) * 24 * time.Hour
}

// LockTTL returns the sweep lock TTL.
func (c RetargetConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLMinutes) * time.Minute
}

// DispatchConfig holds the dispatch retry worker settings.
type DispatchConfig struct {
	MaxAttempts         int `yaml:"max_attempts"`
	BaseBackoffSeconds  int `yaml:"base_backoff_seconds"`
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`
}

// BaseBackoff returns the initial retry backoff.
func (c DispatchConfig) BaseBackoff() time.Duration {
	return time.Duration(c.BaseBackoffSeconds) * time.Second
}

// PollInterval returns how often the dispatch worker scans for work.
func (c DispatchConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// Load reads and parses the configuration file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Classifier.TimeoutSeconds == 0 {
		cfg.Classifier.TimeoutSeconds = 10
	}
	if cfg.Classifier.Model == "" {
		cfg.Classifier.Model = "llama-3.1-70b-versatile"
	}
	if cfg.Classifier.BaseURL == "" {
		cfg.Classifier.BaseURL = "https://api.groq.com/openai/v1"
	}
	if cfg.Gateway.TimeoutSeconds == 0 {
		cfg.Gateway.TimeoutSeconds = 30
	}
	if cfg.Gateway.Instance == "" {
		cfg.Gateway.Instance = "outreach_v1"
	}
	if cfg.Engine.DropThresholdPct == 0 {
		cfg.Engine.DropThresholdPct = 5.0
	}
	if cfg.Engine.SnapshotStalenessMins == 0 {
		cfg.Engine.SnapshotStalenessMins = 6 * 60
	}
	if cfg.Engine.CooldownMinutes == 0 {
		cfg.Engine.CooldownMinutes = 24 * 60
	}
	if cfg.Dedup.WindowMinutes == 0 {
		cfg.Dedup.WindowMinutes = 10
	}
	if cfg.Retarget.Schedule == "" {
		cfg.Retarget.Schedule = "@every 2h"
	}
	if cfg.Retarget.GraceHours == 0 {
		cfg.Retarget.GraceHours = 24
	}
	if cfg.Retarget.RelevanceDays == 0 {
		cfg.Retarget.RelevanceDays = 7
	}
	if cfg.Retarget.BatchSize == 0 {
		cfg.Retarget.BatchSize = 200
	}
	if cfg.Retarget.LockTTLMinutes == 0 {
		cfg.Retarget.LockTTLMinutes = 30
	}
	if cfg.Dispatch.MaxAttempts == 0 {
		cfg.Dispatch.MaxAttempts = 5
	}
	if cfg.Dispatch.BaseBackoffSeconds == 0 {
		cfg.Dispatch.BaseBackoffSeconds = 30
	}
	if cfg.Dispatch.PollIntervalSeconds == 0 {
		cfg.Dispatch.PollIntervalSeconds = 15
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It loads a .env file (if present) before reading env vars, so secrets can
// live in .env locally and in real env vars in deployment.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("CLASSIFIER_API_KEY"); v != "" {
		cfg.Classifier.APIKey = v
		cfg.Classifier.Enabled = true
	}
	if v := os.Getenv("CLASSIFIER_BASE_URL"); v != "" {
		cfg.Classifier.BaseURL = v
	}
	if v := os.Getenv("CLASSIFIER_MODEL"); v != "" {
		cfg.Classifier.Model = v
	}
	if v := os.Getenv("GATEWAY_BASE_URL"); v != "" {
		cfg.Gateway.BaseURL = v
	}
	if v := os.Getenv("GATEWAY_API_KEY"); v != "" {
		cfg.Gateway.APIKey = v
	}
	if v := os.Getenv("GATEWAY_INSTANCE"); v != "" {
		cfg.Gateway.Instance = v
	}
	if v := os.Getenv("RETARGET_SCHEDULE"); v != "" {
		cfg.Retarget.Schedule = v
	}
	if v := os.Getenv("RETARGET_GRACE_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Retarget.GraceHours = n
		}
	}
	if v := os.Getenv("RETARGET_RELEVANCE_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Retarget.RelevanceDays = n
		}
	}

	return cfg, nil
}
