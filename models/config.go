// Package models defines the review, batch, app catalog and settings types.
package models

import "time"

// RateLimit is the request pacing for one platform.
type RateLimit struct {
	RequestsPerMinute   int     `yaml:"requests_per_minute" json:"requests_per_minute"`
	DelayBetweenRequest float64 `yaml:"delay_between_requests" json:"delay_between_requests"` // seconds
}

// Delay returns the minimum spacing between requests.
func (r RateLimit) Delay() time.Duration {
	return time.Duration(r.DelayBetweenRequest * float64(time.Second))
}

type ScrapingSettings struct {
	MaxRetries int      `yaml:"max_retries" json:"max_retries"`
	Timeout    int      `yaml:"timeout" json:"timeout"` // seconds
	UserAgents []string `yaml:"user_agents" json:"user_agents"`
}

type ProcessingSettings struct {
	MinReviewLength                   int      `yaml:"min_review_length" json:"min_review_length"`
	MaxReviewLength                   int      `yaml:"max_review_length" json:"max_review_length"`
	Languages                         []string `yaml:"languages" json:"languages"`
	DeduplicationThreshold            float64  `yaml:"deduplication_threshold" json:"deduplication_threshold"`
	ClassificationConfidenceThreshold float64  `yaml:"classification_confidence_threshold" json:"classification_confidence_threshold"`
}

type ExportSettings struct {
	DateFormat     string `yaml:"date_format" json:"date_format"`
	MaxRowsPerFile int    `yaml:"max_rows_per_file" json:"max_rows_per_file"`
}

type LoggingSettings struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

type DataPaths struct {
	Raw       string `yaml:"raw" json:"raw"`
	Processed string `yaml:"processed" json:"processed"`
	Exports   string `yaml:"exports" json:"exports"`
	Logs      string `yaml:"logs" json:"logs"`
	Cache     string `yaml:"cache" json:"cache"`
}

type RedditCredentials struct {
	ClientID     string `yaml:"client_id" json:"-"`
	ClientSecret string `yaml:"client_secret" json:"-"`
	UserAgent    string `yaml:"user_agent" json:"user_agent"`
}

// Settings is the full application configuration.
type Settings struct {
	Reddit     RedditCredentials    `yaml:"reddit" json:"reddit"`
	RateLimits map[string]RateLimit `yaml:"rate_limits" json:"rate_limits"`
	Scraping   ScrapingSettings     `yaml:"scraping" json:"scraping"`
	Processing ProcessingSettings   `yaml:"processing" json:"processing"`
	Export     ExportSettings       `yaml:"export" json:"export"`
	Logging    LoggingSettings      `yaml:"logging" json:"logging"`
	Paths      DataPaths            `yaml:"paths" json:"paths"`
	Database   string               `yaml:"database" json:"database"`
	Catalog    *Catalog             `yaml:"catalog,omitempty" json:"-"`
}

// DefaultSettings returns the built-in configuration.
func DefaultSettings() *Settings {
	return &Settings{
		Reddit: RedditCredentials{UserAgent: "ReviewMiner/1.0"},
		RateLimits: map[string]RateLimit{
			"reddit":    {RequestsPerMinute: 60, DelayBetweenRequest: 1.0},
			"playstore": {RequestsPerMinute: 30, DelayBetweenRequest: 2.0},
		},
		Scraping: ScrapingSettings{
			MaxRetries: 3,
			Timeout:    30,
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
				"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
			},
		},
		Processing: ProcessingSettings{
			MinReviewLength:                   5,
			MaxReviewLength:                   5000,
			Languages:                         []string{"en"},
			DeduplicationThreshold:            0.90,
			ClassificationConfidenceThreshold: 0.3,
		},
		Export: ExportSettings{
			DateFormat:     "2006-01-02 15:04:05",
			MaxRowsPerFile: 10000,
		},
		Logging: LoggingSettings{
			Level: "info",
			File:  "logs/review_mining.log",
		},
		Paths: DataPaths{
			Raw:       "data/raw",
			Processed: "data/processed",
			Exports:   "data/exports",
			Logs:      "logs",
			Cache:     "data/cache",
		},
		Database: "data/review-miner.db",
		Catalog:  DefaultCatalog(),
	}
}

// RateLimitFor returns the platform's rate limit, falling back to one request per second.
func (s *Settings) RateLimitFor(platform string) RateLimit {
	if rl, ok := s.RateLimits[platform]; ok {
		return rl
	}
	return RateLimit{RequestsPerMinute: 60, DelayBetweenRequest: 1.0}
}

// MineConfig holds runtime options for one pipeline run.
// Values come from CLI flags layered over Settings.
type MineConfig struct {
	AppName     string
	Platforms   []string
	Limit       int
	Formats     []string
	OutputDir   string
	WorkerCount int
	MaxAge      time.Duration
	MetricsFile string
	RecordRun   bool
}
