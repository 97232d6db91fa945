package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", testSecret)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, StoreDynamoDB, cfg.Store.Driver)
	assert.Equal(t, 6, cfg.OTP.Length)
	assert.Equal(t, 5*time.Minute, cfg.OTP.Expiry)
	assert.Equal(t, 24*time.Hour, cfg.JWT.EmailTokenExpiry)
	assert.Zero(t, cfg.JWT.SessionExpiry)
	assert.Empty(t, cfg.Redis.URL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", testSecret)
	t.Setenv("STORE_DRIVER", "Mongo")
	t.Setenv("OTP_EXPIRY", "90s")
	t.Setenv("JWT_SESSION_EXPIRY", "1h")
	t.Setenv("BASE_URL", "https://example.com/api/auth/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreMongo, cfg.Store.Driver)
	assert.Equal(t, 90*time.Second, cfg.OTP.Expiry)
	assert.Equal(t, time.Hour, cfg.JWT.SessionExpiry)
	assert.Equal(t, "https://example.com/api/auth", cfg.Server.BaseURL)
}

func TestLoadRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing secret", env: map[string]string{"JWT_SECRET_KEY": ""}},
		{name: "short secret", env: map[string]string{"JWT_SECRET_KEY": "short"}},
		{name: "unknown driver", env: map[string]string{"JWT_SECRET_KEY": testSecret, "STORE_DRIVER": "postgres"}},
		{name: "otp too short", env: map[string]string{"JWT_SECRET_KEY": testSecret, "OTP_LENGTH": "2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
