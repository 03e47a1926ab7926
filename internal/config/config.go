// Package config provides centralized configuration management.
//
// Configuration can be loaded from:
//  1. YAML file (config.yaml), with ${VAR} expansion
//  2. Environment variables (fallback)
//
// A .env file next to the binary is loaded into the environment first.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the entire application configuration
type Config struct {
	SevDesk  SevDeskConfig  `yaml:"sevdesk"`
	Actual   ActualConfig   `yaml:"actual"`
	Sync     SyncConfig     `yaml:"sync"`
	Storage  StorageConfig  `yaml:"storage"`
	Server   ServerConfig   `yaml:"server"`
	Schedule ScheduleConfig `yaml:"schedule"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// SevDeskConfig holds sevDesk API settings
type SevDeskConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// ActualConfig holds Actual Budget server settings
type ActualConfig struct {
	URL         string `yaml:"url"`
	Password    string `yaml:"password"`
	BudgetID    string `yaml:"budget_id"`
	AccountName string `yaml:"account_name"`
}

// SyncConfig holds sync behavior settings
type SyncConfig struct {
	LookbackDays      int      `yaml:"lookback_days"`
	MaxVouchers       int      `yaml:"max_vouchers"`
	PaidStatusCode    string   `yaml:"paid_status_code"`
	TransferTypeCodes []string `yaml:"transfer_type_codes"`
	ReportPath        string   `yaml:"report_path"`
}

// StorageConfig holds database configuration
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	Port int `yaml:"port"`
}

// ScheduleConfig holds the cron schedule for periodic sync
type ScheduleConfig struct {
	Cron string `yaml:"cron"`
}

// SMTPConfig holds email notification settings. Notifications are
// disabled unless Host is set.
type SMTPConfig struct {
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and parses the config file
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${SEVDESK_API_KEY})
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// LoadFromEnv loads configuration from environment variables only
func LoadFromEnv() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		SevDesk: SevDeskConfig{
			APIKey:  os.Getenv("SEVDESK_API_KEY"),
			BaseURL: os.Getenv("SEVDESK_BASE_URL"),
		},
		Actual: ActualConfig{
			URL:         os.Getenv("ACTUAL_URL"),
			Password:    os.Getenv("ACTUAL_PASSWORD"),
			BudgetID:    os.Getenv("ACTUAL_BUDGET_ID"),
			AccountName: getEnv("ACTUAL_ACCOUNT_NAME", "sevDesk"),
		},
		Sync: SyncConfig{
			LookbackDays: getEnvInt("SYNC_LOOKBACK_DAYS", 30),
			MaxVouchers:  getEnvInt("SYNC_MAX_VOUCHERS", 0),
		},
		Storage: StorageConfig{
			DatabasePath: getEnv("SEVACTUAL_DB_PATH", "sevactual.db"),
		},
		Server: ServerConfig{
			Port: getEnvInt("SERVER_PORT", 8080),
		},
		Schedule: ScheduleConfig{
			Cron: getEnv("SYNC_CRON", "0 6 * * *"),
		},
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getEnvInt("SMTP_PORT", 587),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     os.Getenv("SMTP_FROM"),
			To:       splitList(os.Getenv("SMTP_TO")),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}

	cfg.applyDefaults()
	return cfg
}

// LoadOrEnv tries to load from the given path, falls back to environment
// variables when the file does not exist
func LoadOrEnv(path string) (*Config, error) {
	if path == "" {
		path = "config.yaml"
	}
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}
	return LoadFromEnv(), nil
}

func (c *Config) applyDefaults() {
	if c.Actual.AccountName == "" {
		c.Actual.AccountName = "sevDesk"
	}
	if c.Sync.LookbackDays <= 0 {
		c.Sync.LookbackDays = 30
	}
	if c.Sync.PaidStatusCode == "" {
		c.Sync.PaidStatusCode = "1000"
	}
	if c.Sync.ReportPath == "" {
		c.Sync.ReportPath = "invalid_vouchers.md"
	}
	if c.Storage.DatabasePath == "" {
		c.Storage.DatabasePath = "sevactual.db"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Schedule.Cron == "" {
		c.Schedule.Cron = "0 6 * * *"
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks that the credentials required for a sync run are present
func (c *Config) Validate() error {
	var missing []string
	if c.SevDesk.APIKey == "" {
		missing = append(missing, "sevdesk.api_key")
	}
	if c.Actual.URL == "" {
		missing = append(missing, "actual.url")
	}
	if c.Actual.Password == "" {
		missing = append(missing, "actual.password")
	}
	if c.Actual.BudgetID == "" {
		missing = append(missing, "actual.budget_id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	return nil
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable with a fallback default
func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var result int
		if _, err := fmt.Sscanf(val, "%d", &result); err == nil {
			return result
		}
	}
	return fallback
}

func splitList(val string) []string {
	if val == "" {
		return nil
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
