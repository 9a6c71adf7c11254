package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	Auth     AuthConfig     `yaml:"auth"`
	Pixelart PixelartConfig `yaml:"pixelart"`
	Credits  CreditsConfig  `yaml:"credits"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// StorageConfig holds S3-compatible object storage configuration.
// Endpoint is required for R2 and other non-AWS providers.
type StorageConfig struct {
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Endpoint  string `yaml:"endpoint"`
}

// AuthConfig holds JWT configuration
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// PixelartConfig holds the image-generation provider configuration
type PixelartConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the provider call timeout as a duration
func (c *PixelartConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// CreditsConfig holds credit accounting amounts
type CreditsConfig struct {
	PixelateCost int `yaml:"pixelate_cost"`
	NewUserGrant int `yaml:"new_user_grant"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Secrets may come from the environment instead of the file.
	if v := os.Getenv("PIXELART_API_KEY"); v != "" {
		cfg.Pixelart.APIKey = v
	}
	if v := os.Getenv("STORAGE_ACCESS_KEY"); v != "" {
		cfg.Storage.AccessKey = v
	}
	if v := os.Getenv("STORAGE_SECRET_KEY"); v != "" {
		cfg.Storage.SecretKey = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}

	cfg.applyDefaults()

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Pixelart.BaseURL == "" {
		c.Pixelart.BaseURL = "https://api.apicore.ai/v1"
	}
	if c.Pixelart.Model == "" {
		c.Pixelart.Model = "gpt-4o-image"
	}
	if c.Pixelart.TimeoutSeconds <= 0 {
		c.Pixelart.TimeoutSeconds = 120
	}
	if c.Credits.PixelateCost <= 0 {
		c.Credits.PixelateCost = 1
	}
	if c.Credits.NewUserGrant <= 0 {
		c.Credits.NewUserGrant = 10
	}
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
