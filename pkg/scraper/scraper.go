// Package scraper collects raw reviews and app mentions from review
// platforms. Each platform implements Scraper.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dtnitsch/review-miner/internal/logger"
	"github.com/dtnitsch/review-miner/models"
	"github.com/dtnitsch/review-miner/pkg/caching"
	"github.com/dtnitsch/review-miner/pkg/fetcher"
)

const (
	PlatformReddit    = "reddit"
	PlatformPlayStore = "playstore"
)

var (
	ErrUnknownPlatform = errors.New("unknown platform")
	ErrInvalidApp      = errors.New("invalid app configuration")
)

// Scraper fetches up to limit raw reviews for an app.
type Scraper interface {
	Platform() string
	ValidateConfig(app models.AppConfig) error
	ScrapeReviews(ctx context.Context, app models.AppConfig, limit int) ([]models.RawReview, error)
}

// Info describes a scraper's runtime configuration.
type Info struct {
	Platform  string           `json:"platform"`
	RateLimit models.RateLimit `json:"rate_limit"`
	Timeout   time.Duration    `json:"timeout"`
}

// Base holds what every platform scraper shares: the rate limited fetcher,
// the logger and the clock.
type Base struct {
	platform  string
	fetcher   *fetcher.Fetcher
	rateLimit models.RateLimit
	timeout   time.Duration
	log       logger.Logger
	now       func() time.Time
}

func newBase(platform string, settings *models.Settings, log logger.Logger, opts fetcher.Options) Base {
	rl := settings.RateLimitFor(platform)
	timeout := time.Duration(settings.Scraping.Timeout) * time.Second

	named := log.Named("scraper." + platform)
	if opts.Timeout == 0 {
		opts.Timeout = timeout
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = settings.Scraping.MaxRetries
	}
	if opts.UserAgents == nil {
		opts.UserAgents = settings.Scraping.UserAgents
	}
	if opts.MinInterval == 0 {
		opts.MinInterval = rl.Delay()
	}
	opts.Logger = named

	return Base{
		platform:  platform,
		fetcher:   fetcher.NewFetcher(opts),
		rateLimit: rl,
		timeout:   timeout,
		log:       named,
		now:       time.Now,
	}
}

func (b *Base) Platform() string { return b.platform }

func (b *Base) Info() Info {
	return Info{Platform: b.platform, RateLimit: b.rateLimit, Timeout: b.timeout}
}

// newReview fills the fields common to every scraped review.
func (b *Base) newReview(app models.AppConfig) models.RawReview {
	return models.RawReview{
		Platform:  b.platform,
		AppName:   app.Name,
		ScrapedAt: b.now().UTC(),
		RawData:   map[string]any{},
	}
}

// Options configures scraper construction.
type Options struct {
	// Fetcher overrides the HTTP settings derived from Settings.
	Fetcher fetcher.Options
	// Cache stores app detail pages. Optional.
	Cache *caching.Cache
	// RedditBaseURL, RedditTokenURL and PlayStoreBaseURL point the scrapers
	// at another host.
	RedditBaseURL    string
	RedditTokenURL   string
	PlayStoreBaseURL string
}

// Platforms lists the supported platform names.
func Platforms() []string {
	names := []string{PlatformReddit, PlatformPlayStore}
	sort.Strings(names)
	return names
}

// New builds the scraper for platform.
func New(ctx context.Context, platform string, settings *models.Settings, log logger.Logger, opts Options) (Scraper, error) {
	switch strings.ToLower(platform) {
	case PlatformReddit:
		return NewRedditScraper(ctx, settings, log, opts), nil
	case PlatformPlayStore:
		return NewPlayStoreScraper(settings, log, opts), nil
	default:
		return nil, fmt.Errorf("%w: %q (supported: %s)", ErrUnknownPlatform, platform, strings.Join(Platforms(), ", "))
	}
}

// dedupeAndTrim drops repeated review ids, keeping the first, and caps the
// result at limit.
func dedupeAndTrim(reviews []models.RawReview, limit int) []models.RawReview {
	seen := make(map[string]bool, len(reviews))
	out := make([]models.RawReview, 0, min(len(reviews), limit))
	for _, r := range reviews {
		if seen[r.ReviewID] {
			continue
		}
		seen[r.ReviewID] = true
		out = append(out, r)
		if len(out) >= limit {
			break
		}
	}
	return out
}
