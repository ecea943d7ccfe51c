package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Pricing  PricingConfig  `yaml:"pricing"`
	Issuance IssuanceConfig `yaml:"issuance"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with ECS detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	// Allow override via environment
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds the Postgres connection settings
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// WebhookConfig holds the shared secret for the n8n webhook surface.
// Requests must present it in the X-Webhook-Secret header.
type WebhookConfig struct {
	Secret string `yaml:"secret"`
}

// PricingConfig holds the knowledge base file locations
type PricingConfig struct {
	TariffCSVPath string `yaml:"tariff_csv_path"`
	RulesYAMLPath string `yaml:"rules_yaml_path"`
}

// IssuanceConfig holds the issuance simulator settings
type IssuanceConfig struct {
	ScreenshotDir string `yaml:"screenshot_dir"`
	TargetURL     string `yaml:"target_url"`
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
	if cfg.Webhook.Secret == "" {
		cfg.Webhook.Secret = "test-secret"
	}
	if cfg.Pricing.TariffCSVPath == "" {
		cfg.Pricing.TariffCSVPath = "data/tariffs.csv"
	}
	if cfg.Pricing.RulesYAMLPath == "" {
		cfg.Pricing.RulesYAMLPath = "data/rules.yml"
	}
	if cfg.Issuance.ScreenshotDir == "" {
		cfg.Issuance.ScreenshotDir = "/tmp/issuance_screenshots"
	}
	if cfg.Issuance.TargetURL == "" {
		cfg.Issuance.TargetURL = "https://www.google.com"
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables if present
	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT %q: %w", port, err)
		}
		cfg.Server.Port = p
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if secret := os.Getenv("N8N_WEBHOOK_SECRET"); secret != "" {
		cfg.Webhook.Secret = secret
	}
	if p := os.Getenv("TARIFF_CSV_PATH"); p != "" {
		cfg.Pricing.TariffCSVPath = p
	}
	if p := os.Getenv("RULES_YAML_PATH"); p != "" {
		cfg.Pricing.RulesYAMLPath = p
	}
	if dir := os.Getenv("SCREENSHOT_DIR"); dir != "" {
		cfg.Issuance.ScreenshotDir = dir
	}
	if u := os.Getenv("ISSUANCE_TARGET_URL"); u != "" {
		cfg.Issuance.TargetURL = u
	}

	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required (set it in the environment or under database.url in %s)", path)
	}

	return cfg, nil
}
