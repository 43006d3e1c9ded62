package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(EnvConfigPath, "")

	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 0.90, s.Processing.DeduplicationThreshold)
	assert.Equal(t, 10000, s.Export.MaxRowsPerFile)
	assert.Equal(t, 2.0, s.RateLimitFor("playstore").DelayBetweenRequest)
	assert.NotNil(t, s.Catalog)
}

func TestLoadYAMLOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := writeFile(t, dir, "config.yaml", `
processing:
  deduplication_threshold: 0.8
  languages: [en, de]
export:
  max_rows_per_file: 50
rate_limits:
  reddit:
    delay_between_requests: 0.5
`)

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.8, s.Processing.DeduplicationThreshold)
	assert.Equal(t, []string{"en", "de"}, s.Processing.Languages)
	assert.Equal(t, 50, s.Export.MaxRowsPerFile)
	assert.Equal(t, 0.5, s.RateLimitFor("reddit").DelayBetweenRequest)
	// untouched values keep their defaults
	assert.Equal(t, 5000, s.Processing.MaxReviewLength)
	assert.Equal(t, 2.0, s.RateLimitFor("playstore").DelayBetweenRequest)
}

func TestLoadEnvAndDotenv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, dir, ".env", "REDDIT_CLIENT_ID=from-dotenv\n")
	// register restore, then unset so .env can supply the value
	t.Setenv(EnvClientID, "")
	require.NoError(t, os.Unsetenv(EnvClientID))
	t.Setenv(EnvClientSecret, "secret-from-env")
	t.Setenv(EnvDatabasePath, filepath.Join(dir, "runs.db"))
	t.Setenv(EnvConfigPath, "")

	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", s.Reddit.ClientID)
	assert.Equal(t, "secret-from-env", s.Reddit.ClientSecret)
	assert.Equal(t, filepath.Join(dir, "runs.db"), s.Database)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := Load("does-not-exist.yaml")
	assert.Error(t, err)
}

func TestLoadInvalid(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := writeFile(t, dir, "bad.yaml", "processing:\n  deduplication_threshold: 1.5\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}
