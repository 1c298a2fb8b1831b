package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("BACKEND_JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "notes-admin.sqlite", cfg.Database.URL)
	assert.Equal(t, "memory", cfg.Gate.CredentialStore)
	assert.Equal(t, "admin", cfg.Gate.AdminRole)
	assert.Equal(t, time.Hour, cfg.Backend.TokenTTL)
	assert.Equal(t, 3*time.Second, cfg.Gate.SettleTimeout)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.HTTP.AllowedOrigins)
	assert.True(t, cfg.AuditEnabled)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("BACKEND_JWT_SECRET", "secret")
	t.Setenv("CREDENTIAL_STORE", "Redis")
	t.Setenv("GATE_SETTLE_TIMEOUT", "750ms")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("AUDIT_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "redis", cfg.Gate.CredentialStore)
	assert.Equal(t, 750*time.Millisecond, cfg.Gate.SettleTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HTTP.AllowedOrigins)
	assert.False(t, cfg.AuditEnabled)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing jwt secret", env: map[string]string{"BACKEND_JWT_SECRET": ""}},
		{name: "bad credential store", env: map[string]string{"CREDENTIAL_STORE": "cookie"}},
		{name: "bad duration", env: map[string]string{"BACKEND_TOKEN_TTL": "soon"}},
		{name: "bad bool", env: map[string]string{"COOKIE_SECURE": "maybe"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("BACKEND_JWT_SECRET", "secret")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	assert.Equal(t, "notes-admin.sqlite", DatabaseURL())

	t.Setenv("DATABASE_URL", "/var/lib/notes/admin.sqlite")
	assert.Equal(t, "/var/lib/notes/admin.sqlite", DatabaseURL())
}
