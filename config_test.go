package uigen

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"UIGEN_ADDR", "UIGEN_LOG_LEVEL", "UIGEN_LOG_FORMAT", "UIGEN_CDN_URL", "UIGEN_STYLING_URL", "UIGEN_WORKERS"} {
		t.Setenv(key, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "https://esm.sh", cfg.Preview.CDNBaseURL)
	assert.Equal(t, "/_modules/", cfg.Preview.ModulePrefix)
	assert.True(t, cfg.Server.LiveReload)
	assert.Equal(t, 4, cfg.Compiler.Workers)
}

func TestLoadConfigMissingFile(t *testing.T) {
	clearConfigEnv(t)
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	cfg, err = LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigFile(t *testing.T) {
	clearConfigEnv(t)
	path := filepath.Join(t.TempDir(), "uigen.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":8080"
  live_reload: false
preview:
  cdn_base_url: https://cdn.example.com
  pins:
    lucide-react: "0.400.0"
compiler:
  workers: 2
logging:
  level: debug
  format: console
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.False(t, cfg.Server.LiveReload)
	assert.Equal(t, "https://cdn.example.com", cfg.Preview.CDNBaseURL)
	assert.Equal(t, map[string]string{"lucide-react": "0.400.0"}, cfg.Preview.Pins)
	assert.Equal(t, 2, cfg.Compiler.Workers)
	assert.Equal(t, "console", cfg.Logging.Format)
	// unspecified fields keep their defaults
	assert.Equal(t, "19", cfg.Preview.ReactVersion)
	assert.Equal(t, 512, cfg.Compiler.CacheEntries)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("UIGEN_ADDR", "0.0.0.0:9000")
	t.Setenv("UIGEN_LOG_LEVEL", "warn")
	t.Setenv("UIGEN_CDN_URL", "https://esm.example.org")
	t.Setenv("UIGEN_WORKERS", "8")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "https://esm.example.org", cfg.Preview.CDNBaseURL)
	assert.Equal(t, 8, cfg.Compiler.Workers)
}

func TestLoadConfigErrors(t *testing.T) {
	t.Run("bad workers env", func(t *testing.T) {
		clearConfigEnv(t)
		t.Setenv("UIGEN_WORKERS", "many")
		_, err := LoadConfig("")
		assert.ErrorContains(t, err, "UIGEN_WORKERS")
	})

	t.Run("invalid yaml", func(t *testing.T) {
		clearConfigEnv(t)
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o644))
		_, err := LoadConfig(path)
		assert.ErrorContains(t, err, "failed to parse config")
	})

	t.Run("zero workers", func(t *testing.T) {
		clearConfigEnv(t)
		t.Setenv("UIGEN_WORKERS", "0")
		_, err := LoadConfig("")
		assert.ErrorContains(t, err, "compiler.workers")
	})

	t.Run("bad format", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Logging.Format = "xml"
		assert.ErrorContains(t, cfg.Validate(), "logging.format")
	})

	t.Run("empty cdn", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Preview.CDNBaseURL = " "
		assert.Error(t, cfg.Validate())
	})
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LoggingConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(-1))

	logger, err = NewLogger(LoggingConfig{Level: "warn", Format: "json"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(0))

	_, err = NewLogger(LoggingConfig{Level: "loud"})
	assert.ErrorContains(t, err, "invalid log level")
}
