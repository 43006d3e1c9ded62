package classifier

import (
	"strings"
	"testing"

	"github.com/dtnitsch/review-miner/internal/logger"
	"github.com/dtnitsch/review-miner/models"
	"github.com/dtnitsch/review-miner/pkg/mapreduce"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClassifier() *Classifier {
	return New(models.DefaultCategories(), 0.3, logger.NewNop())
}

func classify(c *Classifier, title, content string) models.Review {
	return c.ClassifyReview(models.Review{ReviewID: "r", Platform: "reddit", AppName: "Spotify", Title: title, Content: content})
}

func TestClassifyReviewCategories(t *testing.T) {
	c := newTestClassifier()

	tests := []struct {
		name     string
		content  string
		category string
	}{
		{"pricing", "Too expensive, the subscription price keeps going up", "pricing"},
		{"performance", "The app is slow and keeps crashing with a crash on every launch", "performance"},
		{"ux", "Great design", "ux_ui"},
		{"multi word keyword", "Customer care never answered, the support staff ignored me", "customer_service"},
		{"no keywords", "I love this app, it is amazing", models.Unclassified},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := classify(c, "", tt.content)
			assert.Equal(t, tt.category, r.PrimaryCategory)
			assert.Len(t, r.CategoryScores, 6)
		})
	}
}

func TestClassifyReviewConfidence(t *testing.T) {
	c := newTestClassifier()

	// one keyword over 24 words: 1/3.4 doubled by the margin over zero
	r := classify(c, "", "I would pay the price again since it is worth every single cent for my whole family and friends to enjoy together at home")
	assert.Equal(t, "pricing", r.PrimaryCategory)
	assert.InDelta(t, 1/3.4, r.CategoryScores["pricing"], 1e-9)
	assert.InDelta(t, 2/3.4, r.ClassificationConfidence, 1e-9)

	// a tie goes to the earlier category and adds no margin
	r = classify(c, "", "The price is fair but the interface could use some small tweaks in a few places over there today")
	assert.Equal(t, "ux_ui", r.PrimaryCategory)
	assert.InDelta(t, 1/2.9, r.ClassificationConfidence, 1e-9)

	r = classify(c, "", "The price is fair but the interface could use some small tweaks in a few places over there today and also tomorrow as well")
	assert.Equal(t, models.Unclassified, r.PrimaryCategory)
	assert.InDelta(t, 1/3.4, r.ClassificationConfidence, 1e-9)
}

func TestClassifyReviewUsesTitle(t *testing.T) {
	c := newTestClassifier()
	r := classify(c, "Billing", "charged twice")
	assert.Equal(t, "pricing", r.PrimaryCategory)
	assert.Equal(t, []string{"billing"}, r.KeywordsFound)
}

func TestClassifyReviewEmpty(t *testing.T) {
	c := newTestClassifier()
	r := classify(c, "  ", "")
	assert.Equal(t, models.Unclassified, r.PrimaryCategory)
	assert.Empty(t, r.CategoryScores)
	assert.Zero(t, r.ClassificationConfidence)
	assert.Equal(t, models.SentimentNeutral, r.Sentiment)
	assert.Zero(t, r.SentimentScore)
}

func TestKeywordsUnique(t *testing.T) {
	c := newTestClassifier()
	got := c.Keywords("Slow, slow, SLOW. Every crash is a bug and the UI is slow")
	assert.Equal(t, []string{"ui", "slow", "crash", "bug"}, got)
}

func TestKeywordsWordBoundaries(t *testing.T) {
	c := newTestClassifier()
	// "build" and "guilty" contain "ui" but are not matches
	assert.Empty(t, c.Keywords("Nice build, guilty pleasure"))
}

func TestKeywordCount(t *testing.T) {
	tests := []struct {
		name string
		kw   string
		text string
		want int
	}{
		{"plain", "bug", "one bug, another bug", 2},
		{"adjacent repeats", "bug", "bug bug bug", 3},
		{"inside word", "ui", "build guilty", 0},
		{"accented neighbour", "caf", "café caf", 1},
		{"accented keyword", "café", "le café, cafés", 1},
		{"digits are word chars", "ui", "ui2 ui", 1},
		{"phrase", "too slow", "way too slow. too slowly", 1},
		{"underscore joins", "sync", "sync_error sync", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, keyword{text: tt.kw}.count(tt.text))
		})
	}
}

func TestAnalyzeSentiment(t *testing.T) {
	tests := []struct {
		text  string
		label string
		score float64
	}{
		{"I love this app, it is amazing", models.SentimentPositive, 1},
		{"Terrible, the worst app I have used", models.SentimentNegative, -1},
		{"The weather today is cloudy", models.SentimentNeutral, 0},
		{"", models.SentimentNeutral, 0},
		// positive and negative cancel out
		{"good but slow", models.SentimentNeutral, 0},
		// 1 point over 60 words stays under the neutral band
		{"nice" + strings.Repeat(" word", 59), models.SentimentNeutral, 10.0 / 60},
	}
	for _, tt := range tests {
		label, score := AnalyzeSentiment(tt.text)
		assert.Equal(t, tt.label, label, tt.text)
		assert.InDelta(t, tt.score, score, 1e-9, tt.text)
	}
}

func TestClassifyReviewsAndSummary(t *testing.T) {
	c := newTestClassifier()

	reviews := c.ClassifyReviews([]models.Review{
		{ReviewID: "1", Content: "Too expensive, the subscription price keeps going up", Rating: models.IntPtr(2)},
		{ReviewID: "2", Content: "The app is slow and keeps crashing with a crash on every launch", Rating: models.IntPtr(1)},
		{ReviewID: "3", Content: "I love this app, it is amazing"},
		{ReviewID: "4", Content: "Great design", Rating: models.IntPtr(5)},
	})
	require.Len(t, reviews, 4)

	s := c.Summary(reviews)
	assert.Equal(t, 4, s.TotalReviews)
	assert.Equal(t, map[string]int{"pricing": 1, "performance": 1, "ux_ui": 1, models.Unclassified: 1}, s.CategoryDistribution)
	assert.Equal(t, map[string]int{models.SentimentNeutral: 1, models.SentimentNegative: 1, models.SentimentPositive: 2}, s.SentimentDistribution)
	assert.Equal(t, 3, s.HighConfidenceCount)
	assert.Equal(t, 1, s.UnclassifiedCount)
	assert.InDelta(t, 0.75, s.ClassificationRate, 1e-9)
	assert.InDelta(t, 0.75, s.AverageConfidence, 1e-9)

	empty := c.Summary(nil)
	assert.Zero(t, empty.TotalReviews)
	assert.Zero(t, empty.ClassificationRate)
}

func TestCategoryInsights(t *testing.T) {
	long := strings.Repeat("slow ", 60)
	reviews := []models.Review{
		{PrimaryCategory: "performance", Content: long, Rating: models.IntPtr(2), Sentiment: "negative", SentimentScore: -1, KeywordsFound: []string{"slow"}},
		{PrimaryCategory: "performance", Content: "crash after update", Rating: models.IntPtr(1), Sentiment: "negative", SentimentScore: -0.5, KeywordsFound: []string{"crash", "slow"}},
		{PrimaryCategory: "performance", Content: "fast now", Sentiment: "positive", SentimentScore: 0.5, KeywordsFound: []string{"fast"}},
		{PrimaryCategory: "performance", Content: "fourth", Sentiment: "neutral"},
		{PrimaryCategory: "pricing", Content: "too expensive", Rating: models.IntPtr(5)},
	}

	ins := CategoryInsights(reviews, "performance")
	assert.Equal(t, 4, ins.ReviewCount)
	assert.Equal(t, map[string]int{"negative": 2, "positive": 1, "neutral": 1}, ins.SentimentDistribution)
	assert.InDelta(t, 1.5, ins.AverageRating, 1e-9)
	assert.InDelta(t, -0.25, ins.AverageSentimentScore, 1e-9)
	assert.Equal(t, []mapreduce.WordCount{{Word: "slow", Count: 2}, {Word: "crash", Count: 1}, {Word: "fast", Count: 1}}, ins.CommonKeywords)
	require.Len(t, ins.SampleReviews, 3)
	assert.Equal(t, 203, len([]rune(ins.SampleReviews[0].Content)))
	assert.True(t, strings.HasSuffix(ins.SampleReviews[0].Content, "..."))
	assert.Equal(t, "crash after update", ins.SampleReviews[1].Content)

	none := CategoryInsights(reviews, "features")
	assert.Equal(t, "features", none.Category)
	assert.Zero(t, none.ReviewCount)
}
