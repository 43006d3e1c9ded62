package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrAppNotFound = errors.New("app not found")

// AppConfig describes an app that reviews can be mined for.
type AppConfig struct {
	Key         string   `json:"key" yaml:"key"`
	Name        string   `json:"name" yaml:"name"`
	Category    string   `json:"category" yaml:"category"`
	Platforms   []string `json:"platforms,omitempty" yaml:"platforms,omitempty"`
	PackageID   string   `json:"package_id,omitempty" yaml:"package_id,omitempty"`
	URL         string   `json:"url,omitempty" yaml:"url,omitempty"`
	Keywords    []string `json:"keywords" yaml:"keywords"`
	Competitors []string `json:"competitors,omitempty" yaml:"competitors,omitempty"`
	Subreddits  []string `json:"subreddits,omitempty" yaml:"subreddits,omitempty"`
}

// AppGroup is a named section of the catalog (mobile_apps, web_apps).
type AppGroup struct {
	Name string      `json:"name" yaml:"name"`
	Apps []AppConfig `json:"apps" yaml:"apps"`
}

// Category is a review topic with the keywords that indicate it.
type Category struct {
	ID       string   `json:"id" yaml:"id"`
	Name     string   `json:"name" yaml:"name"`
	Keywords []string `json:"keywords" yaml:"keywords"`
}

// Catalog holds the known apps, the subreddits to watch per app category
// and the review topic categories.
type Catalog struct {
	Groups            []AppGroup          `json:"groups" yaml:"groups"`
	SubredditMapping  map[string][]string `json:"subreddit_mapping" yaml:"subreddit_mapping"`
	GeneralSubreddits []string            `json:"general_subreddits" yaml:"general_subreddits"`
	Categories        []Category          `json:"categories" yaml:"categories"`
}

// Lookup finds an app by key or display name, case-insensitively.
func (c *Catalog) Lookup(name string) (AppConfig, error) {
	needle := strings.ToLower(strings.TrimSpace(name))
	for _, g := range c.Groups {
		for _, app := range g.Apps {
			if strings.ToLower(app.Key) == needle || strings.ToLower(app.Name) == needle {
				return app, nil
			}
		}
	}
	return AppConfig{}, fmt.Errorf("%w: %q (available: %s)", ErrAppNotFound, name, strings.Join(c.Keys(), ", "))
}

// Keys returns every app key in catalog order.
func (c *Catalog) Keys() []string {
	var keys []string
	for _, g := range c.Groups {
		for _, app := range g.Apps {
			keys = append(keys, app.Key)
		}
	}
	return keys
}

// SubredditsFor returns the subreddits mapped to an app category.
func (c *Catalog) SubredditsFor(category string) []string {
	return c.SubredditMapping[category]
}

// CategoryIDs returns the topic category ids in their defined order.
func (c *Catalog) CategoryIDs() []string {
	ids := make([]string, 0, len(c.Categories))
	for _, cat := range c.Categories {
		ids = append(ids, cat.ID)
	}
	return ids
}

// Validate checks that every app has a key, a name and unique keys.
func (c *Catalog) Validate() error {
	seen := map[string]bool{}
	for _, g := range c.Groups {
		for i, app := range g.Apps {
			if app.Key == "" || app.Name == "" {
				return fmt.Errorf("app %d in group %s needs both key and name", i, g.Name)
			}
			k := strings.ToLower(app.Key)
			if seen[k] {
				return fmt.Errorf("duplicate app key %q", app.Key)
			}
			seen[k] = true
		}
	}
	if len(c.Categories) == 0 {
		return errors.New("catalog defines no review categories")
	}
	return nil
}

// SortedSubredditCategories returns mapping keys sorted, for stable listings.
func (c *Catalog) SortedSubredditCategories() []string {
	keys := make([]string, 0, len(c.SubredditMapping))
	for k := range c.SubredditMapping {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DefaultCatalog is the built-in app catalog.
func DefaultCatalog() *Catalog {
	return &Catalog{
		Groups: []AppGroup{
			{
				Name: "mobile_apps",
				Apps: []AppConfig{
					{
						Key: "spotify", Name: "Spotify", PackageID: "com.spotify.music", Category: "music_streaming",
						Platforms:   []string{"android", "ios"},
						Keywords:    []string{"spotify", "music streaming", "playlist"},
						Competitors: []string{"apple_music", "youtube_music", "amazon_music"},
					},
					{
						Key: "netflix", Name: "Netflix", PackageID: "com.netflix.mediaclient", Category: "video_streaming",
						Platforms:   []string{"android", "ios"},
						Keywords:    []string{"netflix", "streaming", "movies", "tv shows"},
						Competitors: []string{"disney_plus", "hulu", "amazon_prime"},
					},
					{
						Key: "uber", Name: "Uber", PackageID: "com.ubercab", Category: "transportation",
						Platforms:   []string{"android", "ios"},
						Keywords:    []string{"uber", "rideshare", "taxi"},
						Competitors: []string{"lyft", "taxi", "public_transport"},
					},
					{
						Key: "airbnb", Name: "Airbnb", PackageID: "com.airbnb.android", Category: "travel",
						Platforms:   []string{"android", "ios"},
						Keywords:    []string{"airbnb", "accommodation", "vacation rental"},
						Competitors: []string{"booking", "hotels", "vrbo"},
					},
					{
						Key: "day_one", Name: "Day One", Category: "journaling",
						Platforms:   []string{"reddit"},
						Keywords:    []string{"day one", "journal", "diary", "daily journal", "journaling app"},
						Competitors: []string{"journey", "daily", "grid_diary", "momento"},
					},
					{
						Key: "journey", Name: "Journey", Category: "journaling",
						Platforms:   []string{"reddit"},
						Keywords:    []string{"journey", "journal", "diary", "journaling", "memories"},
						Competitors: []string{"day_one", "daily", "grid_diary", "momento"},
					},
					{
						Key: "daily", Name: "Daily - Journal & Diary", Category: "journaling",
						Platforms:   []string{"reddit"},
						Keywords:    []string{"daily", "journal", "diary", "mood tracker", "daily journal", "daily notes", "habit tracker"},
						Competitors: []string{"day_one", "journey", "grid_diary", "momento"},
					},
				},
			},
			{
				Name: "web_apps",
				Apps: []AppConfig{
					{
						Key: "slack", Name: "Slack", URL: "https://slack.com", Category: "communication",
						Keywords:    []string{"slack", "team communication", "workplace chat"},
						Competitors: []string{"microsoft_teams", "discord", "zoom"},
					},
					{
						Key: "zoom", Name: "Zoom", URL: "https://zoom.us", Category: "video_conferencing",
						Keywords:    []string{"zoom", "video calls", "meetings"},
						Competitors: []string{"microsoft_teams", "google_meet", "skype"},
					},
				},
			},
		},
		SubredditMapping: map[string][]string{
			"music_streaming":    {"spotify", "music", "streaming", "playlists"},
			"video_streaming":    {"netflix", "streaming", "movies", "television"},
			"transportation":     {"uber", "rideshare", "transportation"},
			"travel":             {"airbnb", "travel", "vacation"},
			"communication":      {"slack", "workplace", "productivity"},
			"video_conferencing": {"zoom", "videoconferencing", "remotework"},
			"journaling":         {"journaling", "diary", "productivity", "selfimprovement", "mentalhealth", "writing"},
		},
		GeneralSubreddits: []string{"apps", "AppHookup", "androidapps", "iosgaming", "software"},
		Categories:        DefaultCategories(),
	}
}

// DefaultCategories returns the review topic categories in priority order.
// Ties in classification go to the earlier category.
func DefaultCategories() []Category {
	return []Category{
		{ID: "ux_ui", Name: "User Experience & Interface", Keywords: []string{"interface", "design", "usability", "navigation", "ui", "ux", "user-friendly"}},
		{ID: "pricing", Name: "Pricing & Billing", Keywords: []string{"price", "cost", "expensive", "cheap", "billing", "subscription", "payment"}},
		{ID: "performance", Name: "Performance & Reliability", Keywords: []string{"slow", "fast", "lag", "crash", "bug", "stable", "performance", "loading"}},
		{ID: "features", Name: "Features & Functionality", Keywords: []string{"feature", "function", "capability", "tool", "option", "missing", "need"}},
		{ID: "customer_service", Name: "Customer Service", Keywords: []string{"support", "help", "service", "response", "staff", "customer care"}},
		{ID: "content_quality", Name: "Content Quality", Keywords: []string{"content", "quality", "selection", "variety", "catalog", "library"}},
	}
}
