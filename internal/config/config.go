// Package config provides configuration management for the stock alert application.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	apperrors "stock-alert/internal/errors"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "STOCKALERT"

// Provider pacing floors: 5 requests per minute, one minute after a rate limit.
const (
	MinRequestInterval   = 12 * time.Second
	MinRateLimitCooldown = 60 * time.Second
)

// Config holds all application configuration.
type Config struct {
	Provider    ProviderConfig `mapstructure:"provider"`
	Email       EmailConfig    `mapstructure:"email"`
	Storage     StorageConfig  `mapstructure:"storage"`
	Audit       AuditConfig    `mapstructure:"audit"`
	Logging     LoggingConfig  `mapstructure:"logging"`
	Watch       WatchConfig    `mapstructure:"watch"`
	Credentials Credentials    `mapstructure:"-"` // Loaded separately
	Dir         string         `mapstructure:"-"`
}

// ProviderConfig holds market data provider configuration.
type ProviderConfig struct {
	Name              string        `mapstructure:"name"` // alphavantage, yahoo
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MinInterval       time.Duration `mapstructure:"min_interval"`
	RateLimitCooldown time.Duration `mapstructure:"rate_limit_cooldown"`
}

// EmailConfig holds SMTP delivery configuration.
type EmailConfig struct {
	SMTPServer string `mapstructure:"smtp_server"`
	SMTPPort   int    `mapstructure:"smtp_port"`
	To         string `mapstructure:"to"` // defaults to the sender address
}

// StorageConfig selects and locates the watchlist store.
type StorageConfig struct {
	Backend     string `mapstructure:"backend"` // json, sqlite, postgres
	Path        string `mapstructure:"path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// AuditConfig holds alert audit log configuration.
type AuditConfig struct {
	Path       string `mapstructure:"path"`
	MaxSize    int    `mapstructure:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

// LoggingConfig holds application log configuration.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
	File    bool   `mapstructure:"file"`
	Path    string `mapstructure:"path"`
}

// WatchConfig holds repeated-check configuration.
type WatchConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// Credentials holds secrets, kept in credentials.toml.
type Credentials struct {
	APIKey        string `mapstructure:"api_key"`
	Email         string `mapstructure:"email"`
	EmailPassword string `mapstructure:"email_password"`
}

// envOverrides are read from STOCKALERT_* variables.
type envOverrides struct {
	APIKey         string `envconfig:"API_KEY"`
	Email          string `envconfig:"EMAIL"`
	EmailPassword  string `envconfig:"EMAIL_PASSWORD"`
	SMTPServer     string `envconfig:"SMTP_SERVER"`
	SMTPPort       int    `envconfig:"SMTP_PORT"`
	Provider       string `envconfig:"PROVIDER"`
	StorageBackend string `envconfig:"STORAGE_BACKEND"`
	PostgresDSN    string `envconfig:"POSTGRES_DSN"`
	LogLevel       string `envconfig:"LOG_LEVEL"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/stock-alert"
	}
	return filepath.Join(home, ".config", "stock-alert")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
// On first run the missing files are written from templates and an error
// wrapping ErrConfigTemplateCreated is returned.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{Dir: configDir}

	// Both templates are written on a fresh install before halting.
	mainErr := loadConfigFile(configDir, cfg)
	credErr := loadCredentials(configDir, &cfg.Credentials)
	if mainErr != nil {
		return nil, fmt.Errorf("loading config.toml: %w", mainErr)
	}
	if credErr != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", credErr)
	}

	if err := applyEnvOverrides(configDir, cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	cfg.resolvePaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider.name", "alphavantage")
	v.SetDefault("provider.base_url", "https://www.alphavantage.co/query")
	v.SetDefault("provider.timeout", "10s")
	v.SetDefault("provider.min_interval", "12s")
	v.SetDefault("provider.rate_limit_cooldown", "60s")
	v.SetDefault("email.smtp_server", "smtp.gmail.com")
	v.SetDefault("email.smtp_port", 465)
	v.SetDefault("storage.backend", "json")
	v.SetDefault("audit.max_size", 10)
	v.SetDefault("audit.max_backups", 10)
	v.SetDefault("audit.max_age", 365)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file", true)
	v.SetDefault("watch.interval", "15m")
}

func loadConfigFile(configDir string, cfg *Config) error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return createTemplateConfig(configDir)
		}
		return err
	}

	return v.Unmarshal(cfg)
}

func loadCredentials(configDir string, creds *Credentials) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return createTemplateCredentials(configDir)
		}
		return err
	}

	return v.Unmarshal(creds)
}

func applyEnvOverrides(configDir string, cfg *Config) error {
	// Missing .env files are fine; existing variables win over file values.
	_ = godotenv.Load()
	_ = godotenv.Load(filepath.Join(configDir, ".env"))

	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return err
	}

	if env.APIKey != "" {
		cfg.Credentials.APIKey = env.APIKey
	}
	if env.Email != "" {
		cfg.Credentials.Email = env.Email
	}
	if env.EmailPassword != "" {
		cfg.Credentials.EmailPassword = env.EmailPassword
	}
	if env.SMTPServer != "" {
		cfg.Email.SMTPServer = env.SMTPServer
	}
	if env.SMTPPort != 0 {
		cfg.Email.SMTPPort = env.SMTPPort
	}
	if env.Provider != "" {
		cfg.Provider.Name = env.Provider
	}
	if env.StorageBackend != "" {
		cfg.Storage.Backend = env.StorageBackend
	}
	if env.PostgresDSN != "" {
		cfg.Storage.PostgresDSN = env.PostgresDSN
	}
	if env.LogLevel != "" {
		cfg.Logging.Level = env.LogLevel
	}
	return nil
}

func (c *Config) resolvePaths() {
	c.Provider.Name = strings.ToLower(strings.TrimSpace(c.Provider.Name))
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))

	if c.Storage.Path == "" {
		switch c.Storage.Backend {
		case "sqlite":
			c.Storage.Path = filepath.Join(c.Dir, "watchlist.db")
		default:
			c.Storage.Path = filepath.Join(c.Dir, "watchlist.json")
		}
	}
	if c.Audit.Path == "" {
		c.Audit.Path = filepath.Join(c.Dir, "alerts.log")
	}
	if c.Logging.Path == "" {
		c.Logging.Path = filepath.Join(c.Dir, "logs", "stock-alert.log")
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var missing []string

	switch c.Provider.Name {
	case "alphavantage":
		if c.Credentials.APIKey == "" {
			missing = append(missing, "api_key")
		}
	case "yahoo":
	default:
		return fmt.Errorf("%w: unknown provider %q (must be 'alphavantage' or 'yahoo')", apperrors.ErrConfigInvalid, c.Provider.Name)
	}

	if c.Credentials.Email == "" {
		missing = append(missing, "email")
	}
	if c.Credentials.EmailPassword == "" {
		missing = append(missing, "email_password")
	}
	if c.Email.SMTPServer == "" {
		missing = append(missing, "smtp_server")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing values: %s", apperrors.ErrConfigInvalid, strings.Join(missing, ", "))
	}

	if !strings.Contains(c.Credentials.Email, "@") {
		return fmt.Errorf("%w: email %q is not an address", apperrors.ErrConfigInvalid, c.Credentials.Email)
	}
	if c.Email.SMTPPort <= 0 || c.Email.SMTPPort > 65535 {
		return fmt.Errorf("%w: smtp_port must be between 1 and 65535", apperrors.ErrConfigInvalid)
	}

	if c.Provider.Timeout <= 0 {
		return fmt.Errorf("%w: provider timeout must be positive", apperrors.ErrConfigInvalid)
	}
	if c.Provider.MinInterval < MinRequestInterval {
		return fmt.Errorf("%w: min_interval must be at least %s, got %s",
			apperrors.ErrConfigInvalid, MinRequestInterval, c.Provider.MinInterval)
	}
	if c.Provider.RateLimitCooldown < MinRateLimitCooldown {
		return fmt.Errorf("%w: rate_limit_cooldown must be at least %s, got %s",
			apperrors.ErrConfigInvalid, MinRateLimitCooldown, c.Provider.RateLimitCooldown)
	}
	if c.Watch.Interval <= 0 {
		return fmt.Errorf("%w: watch interval must be positive", apperrors.ErrConfigInvalid)
	}

	switch c.Storage.Backend {
	case "json", "sqlite":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("%w: storage backend postgres requires postgres_dsn", apperrors.ErrConfigInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown storage backend %q", apperrors.ErrConfigInvalid, c.Storage.Backend)
	}

	return nil
}

// Recipient returns the alert recipient address.
func (c *Config) Recipient() string {
	if c.Email.To != "" {
		return c.Email.To
	}
	return c.Credentials.Email
}
