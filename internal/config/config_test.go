package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validBase() *Config {
	return &Config{
		Port:                     "8460",
		JWTSecret:                "secure-secret-at-least-32-chars-long",
		DBPassword:               "secure-password",
		DBSSLMode:                "require",
		Env:                      "test",
		PresenceHeartbeatSeconds: 30,
		PresenceTTLSeconds:       90,
	}
}

func TestConfig_ValidateRequiredFields(t *testing.T) {
	c := validBase()
	c.Port = ""
	assert.Error(t, c.Validate())

	c = validBase()
	c.JWTSecret = ""
	assert.Error(t, c.Validate())

	assert.NoError(t, validBase().Validate())
}

func TestConfig_ValidateProductionSecrets(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
	}{
		{"default secret rejected", func(c *Config) {
			c.Env = "production"
			c.JWTSecret = "your-secret-key-change-in-production"
		}, true},
		{"short secret rejected", func(c *Config) {
			c.Env = "production"
			c.JWTSecret = "short"
		}, true},
		{"weak db password rejected", func(c *Config) {
			c.Env = "prod"
			c.DBPassword = "password"
		}, true},
		{"strong production config accepted", func(c *Config) {
			c.Env = "production"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validBase()
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

func TestConfig_ValidatePresenceWindows(t *testing.T) {
	c := validBase()
	c.PresenceHeartbeatSeconds = 30
	c.PresenceTTLSeconds = 30
	assert.Error(t, c.Validate(), "TTL equal to heartbeat leaves no liveness margin")

	c.PresenceTTLSeconds = 20
	assert.Error(t, c.Validate())

	c.PresenceTTLSeconds = 90
	assert.NoError(t, c.Validate())
}
