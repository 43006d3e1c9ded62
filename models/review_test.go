package models

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReviewValidate(t *testing.T) {
	tests := []struct {
		name    string
		review  Review
		wantErr bool
	}{
		{"valid", Review{ReviewID: "r1", Platform: "reddit", AppName: "Spotify"}, false},
		{"valid with rating and sentiment", Review{ReviewID: "r1", Platform: "reddit", AppName: "Spotify", Rating: IntPtr(5), Sentiment: SentimentPositive}, false},
		{"missing id", Review{Platform: "reddit", AppName: "Spotify"}, true},
		{"missing platform", Review{ReviewID: "r1", AppName: "Spotify"}, true},
		{"missing app", Review{ReviewID: "r1", Platform: "reddit"}, true},
		{"rating too low", Review{ReviewID: "r1", Platform: "reddit", AppName: "x", Rating: IntPtr(0)}, true},
		{"rating too high", Review{ReviewID: "r1", Platform: "reddit", AppName: "x", Rating: IntPtr(6)}, true},
		{"bad sentiment", Review{ReviewID: "r1", Platform: "reddit", AppName: "x", Sentiment: "angry"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.review.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidReview))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestReviewIsHighQuality(t *testing.T) {
	long := strings.Repeat("solid review text ", 3)

	tests := []struct {
		name   string
		review Review
		want   bool
	}{
		{"good", Review{Content: long, QualityScore: 1.2}, true},
		{"spam", Review{Content: long, QualityScore: 1.2, IsSpam: true}, false},
		{"duplicate", Review{Content: long, QualityScore: 1.2, IsDuplicate: true}, false},
		{"low score", Review{Content: long, QualityScore: 0.2}, false},
		{"short", Review{Content: "too short", QualityScore: 3}, false},
		{"cleaned content counts", Review{Content: "x", CleanedContent: long, QualityScore: 0.5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.review.IsHighQuality(MinQualityScore))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab...", Truncate("abcdef", 2))
	assert.Equal(t, "héé...", Truncate("héééé", 3))
}

func TestNumberUnmarshal(t *testing.T) {
	var raw struct {
		Rating  *Number `json:"rating"`
		Helpful *Number `json:"helpful"`
		Bad     *Number `json:"bad"`
		Missing *Number `json:"missing"`
	}
	err := json.Unmarshal([]byte(`{"rating": 4.7, "helpful": "10", "bad": "n/a"}`), &raw)
	require.NoError(t, err)

	v, ok := raw.Rating.Float()
	assert.True(t, ok)
	assert.InDelta(t, 4.7, v, 1e-9)

	v, ok = raw.Helpful.Float()
	assert.True(t, ok)
	assert.Equal(t, 10.0, v)

	_, ok = raw.Bad.Float()
	assert.False(t, ok)

	_, ok = raw.Missing.Float()
	assert.False(t, ok)
}

func TestBatchStats(t *testing.T) {
	now := time.Now()
	processed := func(r Review) Review {
		r.MarkProcessed(now)
		return r
	}

	batch := NewBatch("spotify", "reddit", []Review{
		processed(Review{ReviewID: "1", Rating: IntPtr(5), PrimaryCategory: "pricing", Sentiment: SentimentPositive, SentimentScore: 0.8}),
		processed(Review{ReviewID: "2", Rating: IntPtr(3), PrimaryCategory: "pricing", Sentiment: SentimentNegative, SentimentScore: -0.4}),
		processed(Review{ReviewID: "3", SentimentScore: 0.2}),
		{ReviewID: "4", Rating: IntPtr(1), IsSpam: true},
	})

	stats := batch.Stats()
	assert.Equal(t, 4, stats.TotalReviews)
	assert.Equal(t, 3, stats.ProcessedReviews)
	assert.Equal(t, 1, stats.SpamReviews)
	assert.Equal(t, map[string]int{"pricing": 2, Unclassified: 1}, stats.CategoryDistribution)
	assert.Equal(t, map[string]int{SentimentPositive: 1, SentimentNegative: 1, SentimentNeutral: 1}, stats.SentimentDistribution)
	assert.Equal(t, map[int]int{5: 1, 3: 1}, stats.RatingDistribution)
	assert.InDelta(t, 4.0, stats.AverageRating, 1e-9)
	assert.InDelta(t, 0.2, stats.AverageSentiment, 1e-9)
}

func TestBatchStatsEmpty(t *testing.T) {
	stats := NewBatch("spotify", "reddit", nil).Stats()
	assert.Zero(t, stats.TotalReviews)
	assert.Zero(t, stats.AverageRating)
	assert.Zero(t, stats.AverageSentiment)
}

func TestCatalogLookup(t *testing.T) {
	c := DefaultCatalog()
	require.NoError(t, c.Validate())

	app, err := c.Lookup("Spotify")
	require.NoError(t, err)
	assert.Equal(t, "com.spotify.music", app.PackageID)

	app, err = c.Lookup("day one")
	require.NoError(t, err)
	assert.Equal(t, "day_one", app.Key)

	_, err = c.Lookup("myspace")
	assert.True(t, errors.Is(err, ErrAppNotFound))
	assert.Contains(t, err.Error(), "spotify")
}

func TestReviewFieldNames(t *testing.T) {
	r := Review{
		ReviewID:                 "r1",
		Platform:                 "playstore",
		AppName:                  "Spotify",
		Version:                  "8.9.1",
		PrimaryCategory:          "pricing",
		ClassificationConfidence: 0.7,
	}
	data, err := json.Marshal(r)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Equal(t, "8.9.1", fields["version"])
	assert.Equal(t, "pricing", fields["primary_category"])
	assert.InDelta(t, 0.7, fields["classification_confidence"], 1e-9)
	for _, name := range []string{"app_version", "category", "category_confidence"} {
		assert.NotContains(t, fields, name)
	}

	raw, err := json.Marshal(RawReview{ReviewID: "r1", Version: "8.9.1"})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"version":"8.9.1"`)
}
