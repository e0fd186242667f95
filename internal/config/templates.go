package config

import (
	"fmt"
	"os"
	"path/filepath"

	apperrors "stock-alert/internal/errors"
)

const configTemplate = `# Stock Alert Configuration

[provider]
# Market data provider: "alphavantage" or "yahoo"
name = "alphavantage"
base_url = "https://www.alphavantage.co/query"
# Per-request timeout
timeout = "10s"
# Minimum spacing between price requests (free tier allows 5 calls per minute)
min_interval = "12s"
# Pause after the provider reports a rate limit
rate_limit_cooldown = "60s"

[email]
smtp_server = "smtp.gmail.com"
# 465 uses implicit TLS, 587 uses STARTTLS
smtp_port = 465
# Recipient address; defaults to the sender address in credentials.toml
to = ""

[storage]
# Watchlist backend: "json", "sqlite" or "postgres"
backend = "json"
# File path for json/sqlite; defaults to the config directory
path = ""
postgres_dsn = ""

[audit]
# Append-only log of sent alerts; defaults to alerts.log in the config directory
path = ""
max_size = 10
max_backups = 10
max_age = 365

[logging]
level = "info"
console = true
file = true
path = ""

[watch]
# Interval between passes for 'stockalert watch'
interval = "15m"
`

const credentialsTemplate = `# Stock Alert Credentials
# WARNING: Keep this file secure! Do not commit to version control.

# Alpha Vantage API key
api_key = "your_alphavantage_api_key"
# Sender (and default recipient) address
email = "your_email@example.com"
# SMTP password or app password
email_password = "your_app_password"
`

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return fmt.Errorf("%w: %s", apperrors.ErrConfigTemplateCreated, path)
}

func createTemplateCredentials(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "credentials.toml")
	// Use restricted permissions for credentials file
	if err := os.WriteFile(path, []byte(credentialsTemplate), 0600); err != nil {
		return fmt.Errorf("writing credentials template: %w", err)
	}

	return fmt.Errorf("%w: %s", apperrors.ErrConfigTemplateCreated, path)
}
