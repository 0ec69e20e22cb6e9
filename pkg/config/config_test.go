package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "https://de.dawanda.com", cfg.Site.BaseURL)
	assert.NotEmpty(t, cfg.Site.UserAgent)
	assert.Equal(t, 60*time.Second, cfg.Site.Timeout)
	assert.Empty(t, cfg.Site.SessionCookie)

	assert.Empty(t, cfg.Output.Path)
	assert.Equal(t, DefaultNamePattern, cfg.Output.NamePattern)

	assert.False(t, cfg.Export.SkipProducts)
	assert.False(t, cfg.Export.SkipImages)
	assert.False(t, cfg.Export.SkipRatings)
	assert.Equal(t, 5*time.Second, cfg.Export.ExitDelay)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Debug)

	assert.NoError(t, cfg.Validate())
}

func TestArchivePath(t *testing.T) {
	start := time.Date(2017, 10, 3, 14, 5, 9, 0, time.UTC)

	t.Run("derived from start time", func(t *testing.T) {
		cfg := DefaultConfig()
		assert.Equal(t, "dawanda_2017-10-03_14-05-09.zip", cfg.ArchivePath(start))
	})

	t.Run("explicit path wins", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Output.Path = "/tmp/shop.zip"
		assert.Equal(t, "/tmp/shop.zip", cfg.ArchivePath(start))
	})

	t.Run("empty pattern falls back to default", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Output.NamePattern = ""
		assert.Equal(t, "dawanda_2017-10-03_14-05-09.zip", cfg.ArchivePath(start))
	})
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DWARCHIVE_BASE_URL", "https://en.dawanda.com")
	t.Setenv("DWARCHIVE_SESSION", "env-session")
	t.Setenv("DWARCHIVE_TIMEOUT", "15s")
	t.Setenv("DWARCHIVE_OUTPUT", "/tmp/env.zip")
	t.Setenv("DWARCHIVE_SKIP_IMAGES", "true")
	t.Setenv("DWARCHIVE_EXIT_TIMEOUT", "0")
	t.Setenv("DWARCHIVE_LOG_LEVEL", "debug")
	t.Setenv("DWARCHIVE_REQUESTS_PER_MINUTE", "30")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "https://en.dawanda.com", cfg.Site.BaseURL)
	assert.Equal(t, "env-session", cfg.Site.SessionCookie)
	assert.Equal(t, 15*time.Second, cfg.Site.Timeout)
	assert.Equal(t, "/tmp/env.zip", cfg.Output.Path)
	assert.True(t, cfg.Export.SkipImages)
	assert.False(t, cfg.Export.SkipProducts)
	assert.Equal(t, time.Duration(0), cfg.Export.ExitDelay)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 30, cfg.Site.RequestsPerMinute)
}

func TestLoadFromEnvInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad timeout", "DWARCHIVE_TIMEOUT", "soon"},
		{"bad bool", "DWARCHIVE_SKIP_RATINGS", "maybe"},
		{"bad exit timeout", "DWARCHIVE_EXIT_TIMEOUT", "5s"},
		{"bad rate", "DWARCHIVE_REQUESTS_PER_MINUTE", "fast"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			cfg := DefaultConfig()
			err := cfg.LoadFromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	t.Run("valid yaml file", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.yaml")
		content := `
site:
  base_url: https://fr.dawanda.com
  timeout: 30s
output:
  path: /file/out.zip
  metrics_file: /file/metrics.prom
export:
  skip_ratings: true
  exit_delay: 2s
logging:
  level: warn
`
		require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

		cfg := DefaultConfig()
		require.NoError(t, cfg.LoadFromFile(configPath))

		assert.Equal(t, "https://fr.dawanda.com", cfg.Site.BaseURL)
		assert.Equal(t, 30*time.Second, cfg.Site.Timeout)
		assert.NotEmpty(t, cfg.Site.UserAgent, "unset keys keep their defaults")
		assert.Equal(t, "/file/out.zip", cfg.Output.Path)
		assert.Equal(t, "/file/metrics.prom", cfg.Output.MetricsFile)
		assert.True(t, cfg.Export.SkipRatings)
		assert.Equal(t, 2*time.Second, cfg.Export.ExitDelay)
		assert.Equal(t, "warn", cfg.Logging.Level)
	})

	t.Run("missing file", func(t *testing.T) {
		cfg := DefaultConfig()
		err := cfg.LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config file")
	})

	t.Run("invalid yaml", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "broken.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte("site: [unclosed"), 0644))

		cfg := DefaultConfig()
		err := cfg.LoadFromFile(configPath)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse config file")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"empty base url", func(c *Config) { c.Site.BaseURL = "" }, "base URL is required"},
		{"relative base url", func(c *Config) { c.Site.BaseURL = "/shop" }, "not an absolute URL"},
		{"zero timeout", func(c *Config) { c.Site.Timeout = 0 }, "timeout must be positive"},
		{"no output", func(c *Config) { c.Output.NamePattern = "" }, "output path or a name pattern"},
		{"negative delay", func(c *Config) { c.Export.ExitDelay = -time.Second }, "exit delay"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "invalid log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("reports every problem", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Site.BaseURL = ""
		cfg.Logging.Level = "loud"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "base URL is required")
		assert.Contains(t, err.Error(), "invalid log level")
	})
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()

	cfg.MergeCommandLineFlags(map[string]interface{}{
		"session":       "flag-session",
		"output":        "flag.zip",
		"exit-timeout":  0,
		"skip-products": true,
		"debug":         true,
	})

	assert.Equal(t, "flag-session", cfg.Site.SessionCookie)
	assert.Equal(t, "flag.zip", cfg.Output.Path)
	assert.Equal(t, time.Duration(0), cfg.Export.ExitDelay)
	assert.True(t, cfg.Export.SkipProducts)
	assert.False(t, cfg.Export.SkipImages)
	assert.True(t, cfg.Logging.Debug)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Output.MetricsFile = "/tmp/metrics.prom"
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, cfg.Output.MetricsFile, loaded.Output.MetricsFile)
	assert.Equal(t, cfg.Site.Timeout, loaded.Site.Timeout)
}

func TestLoad(t *testing.T) {
	t.Run("precedence order", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.yaml")
		content := `
site:
  session_cookie: file_session
output:
  path: /file/out.zip
  metrics_file: /file/metrics.prom
`
		require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

		t.Setenv("DWARCHIVE_SESSION", "env_session")
		t.Setenv("DWARCHIVE_OUTPUT", "/env/out.zip")

		cfg, err := Load(configPath, map[string]interface{}{
			"session": "flag_session",
		})
		require.NoError(t, err)

		assert.Equal(t, "flag_session", cfg.Site.SessionCookie)
		assert.Equal(t, "/env/out.zip", cfg.Output.Path)
		assert.Equal(t, "/file/metrics.prom", cfg.Output.MetricsFile)
	})

	t.Run("validation failure", func(t *testing.T) {
		t.Setenv("DWARCHIVE_LOG_LEVEL", "chatty")

		cfg, err := Load("", nil)
		assert.Error(t, err)
		assert.Nil(t, cfg)
	})

	t.Run("loads .env file", func(t *testing.T) {
		tempDir := t.TempDir()
		oldDir, _ := os.Getwd()
		defer os.Chdir(oldDir)
		require.NoError(t, os.Chdir(tempDir))

		require.NoError(t, os.WriteFile(".env", []byte("DWARCHIVE_SKIP_RATINGS=true\n"), 0644))
		os.Unsetenv("DWARCHIVE_SKIP_RATINGS")
		defer os.Unsetenv("DWARCHIVE_SKIP_RATINGS")

		cfg, err := Load("", nil)
		require.NoError(t, err)
		assert.True(t, cfg.Export.SkipRatings)
	})
}

func TestDurationParsing(t *testing.T) {
	var cfg Config
	err := yaml.Unmarshal([]byte("site:\n  timeout: 1m30s\nexport:\n  exit_delay: 500ms\n"), &cfg)
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, cfg.Site.Timeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Export.ExitDelay)
}
