package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_Defaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, "heuristic", cfg.Summary.Mode)
	assert.Equal(t, 2*time.Second, cfg.Transfer.SpeakDelay)
	assert.Equal(t, 15*time.Second, cfg.Transfer.RelocateTimeout)
	assert.False(t, cfg.History.Enabled)
}

func TestLoader_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "warmline.yaml")
	yaml := `
server:
  http_port: 9999
media:
  url: wss://media.example.com
  api_key: key123
  api_secret: secret456
transfer:
  speak_delay: 500ms
  relocate_timeout: 30s
summary:
  mode: remote
  url: http://summarizer:8000/summarize
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.HTTPPort)
	assert.Equal(t, "wss://media.example.com", cfg.Media.URL)
	assert.Equal(t, 500*time.Millisecond, cfg.Transfer.SpeakDelay)
	assert.Equal(t, 30*time.Second, cfg.Transfer.RelocateTimeout)
	assert.Equal(t, "remote", cfg.Summary.Mode)
	// Untouched sections keep defaults
	assert.Equal(t, 3*time.Second, cfg.Transfer.SettleDelay)
}

func TestLoader_EnvOverride(t *testing.T) {
	t.Setenv("WARMLINE_SERVER_HTTP_PORT", "7070")
	t.Setenv("WARMLINE_MEDIA_API_KEY", "env-key")
	t.Setenv("WARMLINE_TRANSFER_SETTLE_DELAY", "1s")
	t.Setenv("WARMLINE_HISTORY_ENABLED", "true")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.HTTPPort)
	assert.Equal(t, "env-key", cfg.Media.APIKey)
	assert.Equal(t, time.Second, cfg.Transfer.SettleDelay)
	assert.True(t, cfg.History.Enabled)
}

func TestLoader_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/nonexistent/warmline.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
}

func TestLoader_Validator(t *testing.T) {
	_, err := NewLoader().
		WithValidator(func(c *Config) error { return c.Validate() }).
		Load()
	// Defaults carry no API key/secret, so full validation must fail.
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Media.APIKey = "k"
	cfg.Media.APISecret = "s"
	assert.NoError(t, cfg.Validate())

	cfg.Summary.Mode = "remote"
	cfg.Summary.URL = ""
	assert.Error(t, cfg.Validate())

	cfg.Summary.Mode = "heuristic"
	cfg.Transfer.RelocateTimeout = 0
	assert.Error(t, cfg.Validate())
}
