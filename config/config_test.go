package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "FroidAPI", cfg.App.Name)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.False(t, cfg.Server.TrustProxy)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, "https://www.farsroid.com", cfg.Site.BaseURL)
	assert.Equal(t, uint(5), cfg.Site.Attempts)
	assert.Equal(t, 30*time.Second, cfg.Site.Timeout)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Equal(t, "./data", cfg.Cache.LocalPath)
	assert.Equal(t, "mock", cfg.Email.Provider)
	assert.Equal(t, []string{"*"}, cfg.CORS.Origins)
	assert.False(t, cfg.API.RequireToken)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	toml := `
debug = true

[server]
port = 9000

[site]
attempts = 2
timeout = "5s"

[cache]
ttl = "30m"
bucket = "froid-cache"

[api]
require_token = true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(toml), 0o600))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, uint(2), cfg.Site.Attempts)
	assert.Equal(t, 5*time.Second, cfg.Site.Timeout)
	assert.Equal(t, 30*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "froid-cache", cfg.Cache.Bucket)
	assert.True(t, cfg.API.RequireToken)
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("FROID_SERVER_PORT", "7000")
	t.Setenv("FROID_EMAIL_FROM", "noreply@example.com")
	t.Setenv("DATABASE_URL", "sqlite:///tmp/froid.db")
	t.Setenv("STORAGE_BUCKET", "bucket-from-env")
	t.Setenv("FROID_SERVER_TRUST_PROXY", "true")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "noreply@example.com", cfg.Email.From)
	assert.Equal(t, "sqlite:///tmp/froid.db", cfg.DB.Path)
	assert.Equal(t, "bucket-from-env", cfg.Cache.Bucket)
	assert.True(t, cfg.Server.TrustProxy)
}

func TestLoadPlainPortWins(t *testing.T) {
	t.Setenv("FROID_SERVER_PORT", "7000")
	t.Setenv("PORT", "7001")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 7001, cfg.Server.Port)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad port", map[string]string{"FROID_SERVER_PORT": "0"}},
		{"no attempts", map[string]string{"FROID_SITE_ATTEMPTS": "0"}},
		{"unknown email provider", map[string]string{"FROID_EMAIL_PROVIDER": "pigeon"}},
		{"brevo without key", map[string]string{"FROID_EMAIL_PROVIDER": "brevo"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(t.TempDir())
			assert.Error(t, err)
		})
	}
}

func TestLoadMalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[server\nport = "), 0o600))

	_, err := Load(dir)
	assert.Error(t, err)
}
