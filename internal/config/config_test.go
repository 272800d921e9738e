package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		Port:           "8480",
		Env:            "development",
		JWTSecret:      "secure-secret-at-least-32-chars-long",
		DataDir:        "./data",
		AITimeout:      2 * time.Minute,
		CaptureTimeout: 30 * time.Second,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
	}{
		{"Valid development config", func(*Config) {}, false},
		{"Missing port", func(c *Config) { c.Port = "" }, true},
		{"Missing JWT secret", func(c *Config) { c.JWTSecret = "" }, true},
		{"Missing data dir", func(c *Config) { c.DataDir = "" }, true},
		{"Zero AI timeout", func(c *Config) { c.AITimeout = 0 }, true},
		{"Zero capture timeout", func(c *Config) { c.CaptureTimeout = 0 }, true},
		{"Production with default JWT secret", func(c *Config) {
			c.Env = "production"
			c.JWTSecret = "your-secret-key-change-in-production"
		}, true},
		{"Production with short JWT secret", func(c *Config) {
			c.Env = "production"
			c.JWTSecret = "too-short"
		}, true},
		{"Production with strong JWT secret", func(c *Config) {
			c.Env = "production"
		}, false},
		{"Development with short JWT secret", func(c *Config) {
			c.JWTSecret = "short"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_AdminIDs(t *testing.T) {
	c := validConfig()
	c.AdminUserIDs = "admin-1, admin-2,,  "

	ids := c.AdminIDs()
	assert.Len(t, ids, 2)
	assert.Contains(t, ids, "admin-1")
	assert.Contains(t, ids, "admin-2")
}

func TestConfig_StorageHostSet(t *testing.T) {
	c := validConfig()
	c.StorageHosts = "Firebasestorage.googleapis.com, storage.googleapis.com"

	hosts := c.StorageHostSet()
	assert.Len(t, hosts, 2)
	assert.Contains(t, hosts, "firebasestorage.googleapis.com")
}

func TestConfig_AIConfigured(t *testing.T) {
	c := validConfig()
	assert.False(t, c.AIConfigured())

	c.AIAPIKey = "key"
	assert.True(t, c.AIConfigured())
}
