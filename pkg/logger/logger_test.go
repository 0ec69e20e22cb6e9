package logger

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"dwarchive/pkg/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bufferLogger(buf *bytes.Buffer) *zerologLogger {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	zlog := zerolog.New(buf).Level(zerolog.DebugLevel)
	return &zerologLogger{
		logger: &zlog,
		fields: make(map[string]interface{}),
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{"info level", &config.LoggingConfig{Level: "info"}, false},
		{"debug level", &config.LoggingConfig{Level: "debug"}, false},
		{"debug flag overrides level", &config.LoggingConfig{Level: "error", Debug: true}, false},
		{"invalid level", &config.LoggingConfig{Level: "chatty"}, true},
		{"file output", &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "run.log")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, log)
			if tt.cfg.File != "" {
				_, err := os.Stat(tt.cfg.File)
				assert.NoError(t, err)
			}
		})
	}

	t.Run("debug flag sets global level", func(t *testing.T) {
		_, err := New(&config.LoggingConfig{Level: "error", Debug: true})
		require.NoError(t, err)
		assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
	})
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"DEBUG", zerolog.DebugLevel, false},
		{"info", zerolog.InfoLevel, false},
		{"warn", zerolog.WarnLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"fatal", zerolog.InfoLevel, true},
		{"", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			assert.Equal(t, tt.wantErr, err != nil)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	log := bufferLogger(&buf)

	log.WithField("stage", "ratings").
		WithFields(map[string]interface{}{"page": 3, "skipped": true}).
		Info("page fetched")

	out := buf.String()
	assert.Contains(t, out, "page fetched")
	assert.Contains(t, out, `"stage":"ratings"`)
	assert.Contains(t, out, `"page":3`)
	assert.Contains(t, out, `"skipped":true`)
}

func TestWithFieldDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	log := bufferLogger(&buf)

	_ = log.WithField("product_id", "42")
	log.Info("plain")

	assert.NotContains(t, buf.String(), "product_id")
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	log := bufferLogger(&buf)

	assert.Same(t, log, log.WithError(nil))

	log.WithError(errors.New("connection reset")).Error("fetch failed")
	assert.Contains(t, buf.String(), "connection reset")
	assert.Contains(t, buf.String(), `"level":"error"`)
}

func TestFieldTypes(t *testing.T) {
	var buf bytes.Buffer
	log := bufferLogger(&buf)

	log.InfoWithFields("all types", map[string]interface{}{
		"string":   "x",
		"int64":    int64(7),
		"float":    4.5,
		"duration": 2 * time.Second,
		"strings":  []string{"a", "b"},
		"custom":   struct{ Name string }{Name: "n"},
	})

	out := buf.String()
	assert.Contains(t, out, `"int64":7`)
	assert.Contains(t, out, `"float":4.5`)
	assert.Contains(t, out, `"strings":["a","b"]`)
	assert.Contains(t, out, `"custom":{"Name":"n"}`)
}

func TestLogRequest(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{200, "DEBUG"},
		{404, "WARN"},
		{503, "ERROR"},
	}

	for _, tt := range tests {
		log := NewTestLogger()
		LogRequest(log, "GET", "https://de.dawanda.com/x", tt.status, time.Millisecond)
		msgs := log.GetMessagesByLevel(tt.level)
		require.Len(t, msgs, 1, "status %d", tt.status)
		assert.Equal(t, tt.status, msgs[0].Fields["status_code"])
	}
}

func TestGlobalLogger(t *testing.T) {
	require.NoError(t, Initialize(&config.LoggingConfig{Level: "debug"}))
	assert.NotNil(t, GetLogger())

	Debug("debug message")
	Info("info message")
	Warn("warn message")
	Error("error message")
	WithField("key", "value").Info("with field")
	WithError(errors.New("boom")).Error("with error")
}

func TestTestLogger(t *testing.T) {
	log := NewTestLogger()

	log.WithField("id", "1").Warn("duplicate product id")
	log.WithError(errors.New("bad row")).ErrorWithFields("parse failed", map[string]interface{}{"url": "/x"})

	assert.True(t, log.HasMessage("duplicate product id"))
	assert.True(t, log.HasMessageContaining("WARN", "duplicate"))
	assert.False(t, log.HasMessageContaining("INFO", "duplicate"))
	assert.True(t, log.HasError())

	errs := log.GetMessagesByLevel("ERROR")
	require.Len(t, errs, 1)
	assert.EqualError(t, errs[0].Error, "bad row")
	assert.Equal(t, "/x", errs[0].Fields["url"])

	log.Clear()
	assert.Empty(t, log.GetMessages())
}
