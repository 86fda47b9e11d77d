package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 30, cfg.Browser.NavTimeoutSec)
	require.Equal(t, 3000, cfg.Browser.ScreenshotHeight)
	require.Equal(t, 1280, cfg.Browser.ViewportWidth)
	require.Equal(t, "memory", cfg.Storage.Provider)
	require.Equal(t, "screenshots", cfg.Storage.Prefix)
	require.Equal(t, "articles", cfg.DB.Table)
	require.Equal(t, "memory", cfg.PubSub.Provider)
	require.True(t, cfg.Logging.Development)
}

func TestLoadFromFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
server:
  port: 9999
browser:
  endpoint: http://browser.internal:9222
  nav_timeout_seconds: 12
storage:
  provider: gcs
  gcs_bucket: snapmark-shots
  public_base_url: https://cdn.example.com
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9999, cfg.Server.Port)
	require.Equal(t, "http://browser.internal:9222", cfg.Browser.Endpoint)
	require.Equal(t, 12, cfg.Browser.NavTimeoutSec)
	require.Equal(t, "snapmark-shots", cfg.Storage.GCSBucket)
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	require.NoError(t, err)

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"zero nav timeout", func(c *Config) { c.Browser.NavTimeoutSec = 0 }},
		{"gcs without bucket", func(c *Config) { c.Storage.Provider = "gcs"; c.Storage.GCSBucket = "" }},
		{"pubsub without project", func(c *Config) { c.PubSub.Provider = "pubsub"; c.PubSub.TopicID = "t" }},
		{"auth without key", func(c *Config) { c.Auth.Enabled = true; c.Auth.APIKey = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
