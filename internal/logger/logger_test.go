package logger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"warning", zapcore.WarnLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"bogus", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestNewWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "review_mining.log")

	log, err := New(Config{Level: "info", File: path, Quiet: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })

	log.Named("scraper").Info("scraped reviews", "platform", "reddit", "count", 3)
	log.Debug("dropped at info level")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"scraped reviews"`)
	assert.Contains(t, string(data), `"platform":"reddit"`)
	assert.Contains(t, string(data), "review_mining.scraper")
	assert.NotContains(t, string(data), "dropped at info level")
}

func TestCloseReleasesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "review_mining.log")

	log, err := New(Config{Level: "info", File: path, Quiet: true})
	require.NoError(t, err)
	named := log.Named("export")
	named.Info("wrote batch")

	require.NoError(t, log.Close())
	// derived loggers share the file, so it is already closed
	err = named.Close()
	assert.True(t, errors.Is(err, os.ErrClosed), "second Close() error = %v", err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"wrote batch"`)

	assert.NoError(t, NewNop().Close())
}
