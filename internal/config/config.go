package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Email    EmailConfig    `yaml:"email"`
	Research ResearchConfig `yaml:"research"`
	Auth     AuthConfig     `yaml:"auth"`
	Logs     LogsConfig     `yaml:"logs"`
	Leadgen  LeadgenConfig  `yaml:"leadgen"`
	Cleanup  CleanupConfig  `yaml:"cleanup"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with container detection
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

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	URL                    string `yaml:"url"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// ConnMaxLifetime returns the connection recycle interval as a duration
func (c DatabaseConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetimeMinutes) * time.Minute
}

// RedisConfig holds the optional Redis connection settings
type RedisConfig struct {
	URL string `yaml:"url"`
}

// EmailConfig holds outreach sending configuration (AWS SES)
type EmailConfig struct {
	Region          string `yaml:"region"`
	AccessKey       string `yaml:"access_key"`
	SecretKey       string `yaml:"secret_key"`
	FromName        string `yaml:"from_name"`
	FromAddress     string `yaml:"from_address"`
	TrackingBaseURL string `yaml:"tracking_base_url"`
	TrackingSecret  string `yaml:"tracking_secret"`
	Enabled         bool   `yaml:"enabled"`
}

// ResearchConfig holds the LLM provider settings for company research
type ResearchConfig struct {
	Provider       string `yaml:"provider"` // "openai" or "anthropic"
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxSteps       int    `yaml:"max_steps"`
	Enabled        bool   `yaml:"enabled"`
}

// Timeout returns the configured timeout as a duration
func (c ResearchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// AuthConfig holds Google OAuth authentication configuration
type AuthConfig struct {
	Enabled            bool   `yaml:"enabled"`
	GoogleClientID     string `yaml:"google_client_id"`
	GoogleClientSecret string `yaml:"google_client_secret"`
	AllowedDomain      string `yaml:"allowed_domain"`
	SessionSecret      string `yaml:"session_secret"`
	CookieName         string `yaml:"cookie_name"`
	CookieMaxAge       int    `yaml:"cookie_max_age"`
}

// LogsConfig holds application log file settings
type LogsConfig struct {
	Dir        string `yaml:"dir"`
	FilePrefix string `yaml:"file_prefix"`
}

// LeadgenConfig holds job-board scraping settings
type LeadgenConfig struct {
	Enabled              bool     `yaml:"enabled"`
	FetchIntervalMinutes int      `yaml:"fetch_interval_minutes"`
	Boards               []string `yaml:"boards"`
}

// FetchInterval returns the scraping interval as a duration
func (c LeadgenConfig) FetchInterval() time.Duration {
	return time.Duration(c.FetchIntervalMinutes) * time.Minute
}

// CleanupConfig holds retention settings for the cleanup worker
type CleanupConfig struct {
	IntervalHours         int `yaml:"interval_hours"`
	TrackingRetentionDays int `yaml:"tracking_retention_days"`
	HistoryRetentionDays  int `yaml:"history_retention_days"`
}

// Interval returns the cleanup cycle interval as a duration
func (c CleanupConfig) Interval() time.Duration {
	return time.Duration(c.IntervalHours) * time.Hour
}

// Load reads and parses the configuration file
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
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 3
	}
	if cfg.Database.ConnMaxLifetimeMinutes == 0 {
		cfg.Database.ConnMaxLifetimeMinutes = 5
	}
	if cfg.Email.Region == "" {
		cfg.Email.Region = "us-east-1"
	}
	if cfg.Research.Provider == "" {
		cfg.Research.Provider = "openai"
	}
	if cfg.Research.Model == "" {
		cfg.Research.Model = "gpt-4o"
	}
	if cfg.Research.TimeoutSeconds == 0 {
		cfg.Research.TimeoutSeconds = 120
	}
	if cfg.Research.MaxSteps == 0 {
		cfg.Research.MaxSteps = 3
	}
	if cfg.Auth.CookieName == "" {
		cfg.Auth.CookieName = "salesbot_session"
	}
	if cfg.Auth.CookieMaxAge == 0 {
		cfg.Auth.CookieMaxAge = 86400
	}
	if cfg.Logs.Dir == "" {
		cfg.Logs.Dir = "logs"
	}
	if cfg.Logs.FilePrefix == "" {
		cfg.Logs.FilePrefix = "salesbot"
	}
	if cfg.Leadgen.FetchIntervalMinutes == 0 {
		cfg.Leadgen.FetchIntervalMinutes = 360
	}
	if cfg.Cleanup.IntervalHours == 0 {
		cfg.Cleanup.IntervalHours = 24
	}
	if cfg.Cleanup.TrackingRetentionDays == 0 {
		cfg.Cleanup.TrackingRetentionDays = 90
	}
	if cfg.Cleanup.HistoryRetentionDays == 0 {
		cfg.Cleanup.HistoryRetentionDays = 365
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in production.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables if present
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cfg.Redis.URL = redisURL
	}
	if v := os.Getenv("AWS_SES_ACCESS_KEY"); v != "" {
		cfg.Email.AccessKey = v
	}
	if v := os.Getenv("AWS_SES_SECRET_KEY"); v != "" {
		cfg.Email.SecretKey = v
	}
	if v := os.Getenv("AWS_SES_REGION"); v != "" {
		cfg.Email.Region = v
	}
	if v := os.Getenv("TRACKING_BASE_URL"); v != "" {
		cfg.Email.TrackingBaseURL = v
	}
	if v := os.Getenv("TRACKING_SECRET"); v != "" {
		cfg.Email.TrackingSecret = v
	}
	if v := os.Getenv("RESEARCH_API_KEY"); v != "" {
		cfg.Research.APIKey = v
		cfg.Research.Enabled = true
	}
	if v := os.Getenv("RESEARCH_MODEL"); v != "" {
		cfg.Research.Model = v
	}
	if v := os.Getenv("GOOGLE_CLIENT_ID"); v != "" {
		cfg.Auth.GoogleClientID = v
	}
	if v := os.Getenv("GOOGLE_CLIENT_SECRET"); v != "" {
		cfg.Auth.GoogleClientSecret = v
	}
	if v := os.Getenv("SESSION_SECRET"); v != "" {
		cfg.Auth.SessionSecret = v
	}
	if v := os.Getenv("AUTH_ALLOWED_DOMAIN"); v != "" {
		cfg.Auth.AllowedDomain = v
	}
	if v := os.Getenv("LOG_DIR"); v != "" {
		cfg.Logs.Dir = v
	}

	return cfg, nil
}
