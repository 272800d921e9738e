// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Port           string `mapstructure:"PORT"`
	Env            string `mapstructure:"APP_ENV"`
	JWTSecret      string `mapstructure:"JWT_SECRET"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	AdminUserIDs   string `mapstructure:"ADMIN_USER_IDS"`

	DBHost     string `mapstructure:"DB_HOST"`
	DBPort     string `mapstructure:"DB_PORT"`
	DBUser     string `mapstructure:"DB_USER"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBName     string `mapstructure:"DB_NAME"`
	DBSSLMode  string `mapstructure:"DB_SSLMODE"`

	RedisURL string `mapstructure:"REDIS_URL"`

	// DataDir is the root for the local fallback database and blob store.
	DataDir string `mapstructure:"DATA_DIR"`
	// MediaBaseURL is prepended to stored object paths when building
	// client-facing URLs, e.g. "http://localhost:8480/media".
	MediaBaseURL string `mapstructure:"MEDIA_BASE_URL"`
	// StorageHosts lists hostnames whose URLs are treated as belonging to
	// our own object storage and may be embedded directly.
	StorageHosts string `mapstructure:"STORAGE_HOSTS"`

	AIAPIKey    string        `mapstructure:"AI_API_KEY"`
	AIModel     string        `mapstructure:"AI_MODEL"`
	AIEndpoint  string        `mapstructure:"AI_ENDPOINT"`
	AITimeout   time.Duration `mapstructure:"AI_TIMEOUT"`
	AIMaxTokens int           `mapstructure:"AI_MAX_TOKENS"`

	ChromePath     string        `mapstructure:"CHROME_PATH"`
	CaptureTimeout time.Duration `mapstructure:"CAPTURE_TIMEOUT"`
	CaptureSettle  time.Duration `mapstructure:"CAPTURE_SETTLE"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The config file is optional, environment variables are enough.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	// Set default values for development
	viper.SetDefault("PORT", "8480")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("JWT_SECRET", "your-secret-key-change-in-production")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173")
	viper.SetDefault("ADMIN_USER_IDS", "")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "mathgenie")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("DATA_DIR", "./data")
	viper.SetDefault("MEDIA_BASE_URL", "/media")
	viper.SetDefault("STORAGE_HOSTS", "firebasestorage.googleapis.com,storage.googleapis.com")
	viper.SetDefault("AI_API_KEY", "")
	viper.SetDefault("AI_MODEL", "gemini-2.5-flash")
	viper.SetDefault("AI_ENDPOINT", "https://generativelanguage.googleapis.com/v1beta")
	viper.SetDefault("AI_TIMEOUT", "120s")
	viper.SetDefault("AI_MAX_TOKENS", 65536)
	viper.SetDefault("CHROME_PATH", "")
	viper.SetDefault("CAPTURE_TIMEOUT", "30s")
	viper.SetDefault("CAPTURE_SETTLE", "2s")

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.DataDir == "" {
		return errors.New("DATA_DIR is required")
	}
	if c.AITimeout <= 0 {
		return errors.New("AI_TIMEOUT must be positive")
	}
	if c.CaptureTimeout <= 0 {
		return errors.New("CAPTURE_TIMEOUT must be positive")
	}

	isProduction := c.Env == "production" || c.Env == "prod"

	// Strict checks for production
	if isProduction {
		if c.JWTSecret == "your-secret-key-change-in-production" {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
			log.Println("WARNING: DB_SSLMODE is 'disable' in production. It is highly recommended to use SSL for database connections.")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
		if c.AIAPIKey == "" {
			log.Println("WARNING: AI_API_KEY is not set. Generation endpoints will report the AI backend as unconfigured.")
		}
	} else {
		if len(c.JWTSecret) < 32 {
			log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
		}
	}

	return nil
}

// AIConfigured reports whether an upstream AI provider key is available.
func (c *Config) AIConfigured() bool {
	return c.AIAPIKey != ""
}

// AdminIDs returns the configured admin user ids as a set.
func (c *Config) AdminIDs() map[string]struct{} {
	ids := make(map[string]struct{})
	for _, id := range strings.Split(c.AdminUserIDs, ",") {
		id = strings.TrimSpace(id)
		if id != "" {
			ids[id] = struct{}{}
		}
	}
	return ids
}

// StorageHostSet returns the configured object-storage hostnames as a set.
func (c *Config) StorageHostSet() map[string]struct{} {
	hosts := make(map[string]struct{})
	for _, h := range strings.Split(c.StorageHosts, ",") {
		h = strings.TrimSpace(strings.ToLower(h))
		if h != "" {
			hosts[h] = struct{}{}
		}
	}
	return hosts
}
