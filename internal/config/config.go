// Package config loads Settings from defaults, an optional YAML file,
// a .env file and environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/dtnitsch/review-miner/models"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath   = "REVIEW_MINER_CONFIG"
	EnvDatabasePath = "REVIEW_MINER_DB"
	EnvClientID     = "REDDIT_CLIENT_ID"
	EnvClientSecret = "REDDIT_CLIENT_SECRET"
	EnvUserAgent    = "REDDIT_USER_AGENT"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Load builds Settings. An empty path falls back to $REVIEW_MINER_CONFIG;
// a missing default file is not an error, a missing explicit file is.
func Load(path string) (*models.Settings, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	settings := models.DefaultSettings()

	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		// $REVIEW_MINER_CONFIG pointing at a missing file behaves like no config.
		if err := loadFile(path, settings); err != nil {
			if explicit || !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
		}
	}

	applyEnv(settings)

	if err := Validate(settings); err != nil {
		return nil, err
	}
	return settings, nil
}

func loadFile(path string, settings *models.Settings) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, settings); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(s *models.Settings) {
	if v := os.Getenv(EnvClientID); v != "" {
		s.Reddit.ClientID = v
	}
	if v := os.Getenv(EnvClientSecret); v != "" {
		s.Reddit.ClientSecret = v
	}
	if v := os.Getenv(EnvUserAgent); v != "" {
		s.Reddit.UserAgent = v
	}
	if v := os.Getenv(EnvDatabasePath); v != "" {
		s.Database = v
	}
}

// Validate rejects settings the pipeline cannot run with.
func Validate(s *models.Settings) error {
	p := s.Processing
	var problems []string
	if p.MinReviewLength < 0 || p.MaxReviewLength <= p.MinReviewLength {
		problems = append(problems, "processing.max_review_length must exceed min_review_length")
	}
	if p.DeduplicationThreshold <= 0 || p.DeduplicationThreshold > 1 {
		problems = append(problems, "processing.deduplication_threshold must be in (0, 1]")
	}
	if p.ClassificationConfidenceThreshold < 0 || p.ClassificationConfidenceThreshold > 1 {
		problems = append(problems, "processing.classification_confidence_threshold must be in [0, 1]")
	}
	if s.Export.MaxRowsPerFile <= 0 {
		problems = append(problems, "export.max_rows_per_file must be positive")
	}
	if s.Scraping.MaxRetries < 0 {
		problems = append(problems, "scraping.max_retries must not be negative")
	}
	if s.Catalog == nil {
		problems = append(problems, "catalog is missing")
	} else if err := s.Catalog.Validate(); err != nil {
		problems = append(problems, "catalog: "+err.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
