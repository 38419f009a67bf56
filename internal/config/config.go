package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"study-sms-server/pkg/logger"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Config holds all configuration settings
type Config struct {
	Server struct {
		Port int    `json:"port"`
		Host string `json:"host"`
		// Public base URL used to build provider status-callback addresses
		ExternalBaseURL string `json:"external_base_url"`
	} `json:"server"`
	Database struct {
		DSN string `json:"dsn"`
	} `json:"database"`
	JWT struct {
		Secret      string        `json:"secret"`
		TokenExpiry time.Duration `json:"token_expiry"`
	} `json:"jwt"`
	Auth struct {
		// Single researcher-operator identity; the hash is a bcrypt hash
		ResearcherUsername     string `json:"researcher_username"`
		ResearcherPasswordHash string `json:"researcher_password_hash"`
	} `json:"auth"`
	Twilio struct {
		AccountSID string `json:"account_sid"`
		AuthToken  string `json:"auth_token"`
		FromNumber string `json:"from_number"`
	} `json:"twilio"`
	Scheduler struct {
		// Cron spec for in-process scheduled runs; empty disables the internal
		// trigger and leaves runs to the manual endpoint or an external cron
		Cron string `json:"cron"`
	} `json:"scheduler"`
	Fitbit struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	} `json:"fitbit"`
	Security struct {
		// 32-byte key for AES-256 encryption of stored OAuth tokens
		TokenEncryptionKey string `json:"token_encryption_key"`
	} `json:"security"`
	Seed struct {
		Enable bool `json:"enable"`
	} `json:"seed"`
	Logging struct {
		Level string `json:"level"`
		Path  string `json:"path"`
	} `json:"logging"`
}

// LoadConfig loads configuration from a JSON file, then applies environment
// variable overrides for secrets. A .env file in the working directory is
// honored if present.
func LoadConfig(path string) (*Config, error) {
	// Validate path to prevent directory traversal
	cleanPath := filepath.Clean(path)
	if !filepath.IsAbs(cleanPath) {
		return nil, fmt.Errorf("config path must be absolute")
	}

	// Check if file exists and is a regular file
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("config file error: %w", err)
	}
	if !fileInfo.Mode().IsRegular() {
		return nil, fmt.Errorf("config path is not a regular file")
	}

	file, err := os.Open(cleanPath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			logger.Warn("Failed to close config file", zap.Error(closeErr))
		}
	}()

	var config Config
	if err := json.NewDecoder(file).Decode(&config); err != nil {
		return nil, err
	}

	config.applyEnvOverrides()

	return &config, nil
}

// DefaultConfig returns a default configuration with env overrides applied
func DefaultConfig() *Config {
	config := &Config{}
	config.Server.Port = 8080
	config.Server.Host = "localhost"
	config.Server.ExternalBaseURL = "http://localhost:8080"
	config.Database.DSN = "file:study.db?cache=shared&mode=rwc&_foreign_keys=on"
	config.JWT.Secret = "your-secret-key" // This should be changed in production
	config.JWT.TokenExpiry = 24 * time.Hour
	config.Auth.ResearcherUsername = "researcher"
	config.Logging.Level = "info"
	config.Logging.Path = "server.log"
	config.applyEnvOverrides()
	return config
}

// applyEnvOverrides layers environment variables over file values so that
// secrets never have to live in the config file
func (c *Config) applyEnvOverrides() {
	// Best effort; a missing .env file is not an error
	_ = godotenv.Load()

	setString(&c.JWT.Secret, "JWT_SECRET")
	setString(&c.Auth.ResearcherUsername, "RESEARCHER_USERNAME")
	setString(&c.Auth.ResearcherPasswordHash, "RESEARCHER_PASSWORD_HASH")
	setString(&c.Twilio.AccountSID, "TWILIO_ACCOUNT_SID")
	setString(&c.Twilio.AuthToken, "TWILIO_AUTH_TOKEN")
	setString(&c.Twilio.FromNumber, "TWILIO_PHONE_NUMBER")
	setString(&c.Server.ExternalBaseURL, "EXTERNAL_BASE_URL")
	setString(&c.Fitbit.ClientID, "FITBIT_CLIENT_ID")
	setString(&c.Fitbit.ClientSecret, "FITBIT_CLIENT_SECRET")
	setString(&c.Security.TokenEncryptionKey, "TOKEN_ENCRYPTION_KEY")
	setString(&c.Database.DSN, "DATABASE_DSN")
	setString(&c.Scheduler.Cron, "SCHEDULER_CRON")

	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("SEED_ENABLE"); v != "" {
		if enable, err := strconv.ParseBool(v); err == nil {
			c.Seed.Enable = enable
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
