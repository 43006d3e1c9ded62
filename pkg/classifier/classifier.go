// Package classifier assigns a topic category and a sentiment to reviews
// using keyword and lexicon scoring.
package classifier

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dtnitsch/review-miner/internal/logger"
	"github.com/dtnitsch/review-miner/models"
	"github.com/dtnitsch/review-miner/pkg/mapreduce"
)

type keyword struct {
	text   string
	weight float64
}

// count returns the non-overlapping occurrences of the keyword in text that
// start and end on a word boundary. Letters outside ASCII count as word
// characters, so "café" does not match "caf".
func (k keyword) count(text string) int {
	if k.text == "" {
		return 0
	}
	n := 0
	for from := 0; from <= len(text)-len(k.text); {
		i := strings.Index(text[from:], k.text)
		if i < 0 {
			break
		}
		start := from + i
		end := start + len(k.text)
		if isBoundary(text, start) && isBoundary(text, end) {
			n++
			from = end
			continue
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		from = start + size
	}
	return n
}

func (k keyword) in(text string) bool {
	return k.count(text) > 0
}

// isBoundary reports whether exactly one side of pos is a word character.
func isBoundary(text string, pos int) bool {
	before, after := false, false
	if pos > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:pos])
		before = isWordRune(r)
	}
	if pos < len(text) {
		r, _ := utf8.DecodeRuneInString(text[pos:])
		after = isWordRune(r)
	}
	return before != after
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

type category struct {
	id       string
	keywords []keyword
}

// Classifier scores reviews against an ordered list of categories. Ties go
// to the category listed first.
type Classifier struct {
	categories []category
	threshold  float64
	log        logger.Logger
}

func New(categories []models.Category, threshold float64, log logger.Logger) *Classifier {
	c := &Classifier{
		threshold: threshold,
		log:       log.Named("classifier"),
	}
	for _, cat := range categories {
		compiled := category{id: cat.ID}
		for _, kw := range cat.Keywords {
			kw = strings.ToLower(kw)
			compiled.keywords = append(compiled.keywords, keyword{
				text:   kw,
				weight: float64(len(strings.Fields(kw)))*0.5 + 1,
			})
		}
		c.categories = append(c.categories, compiled)
	}
	return c
}

// ClassifyReviews classifies every review and logs the distribution.
func (c *Classifier) ClassifyReviews(reviews []models.Review) []models.Review {
	out := make([]models.Review, len(reviews))
	for i, r := range reviews {
		out[i] = c.ClassifyReview(r)
	}

	s := c.Summary(out)
	c.log.Info("Classification complete",
		"count", len(out),
		"average_confidence", s.AverageConfidence,
		"categories", s.CategoryDistribution,
		"sentiments", s.SentimentDistribution,
	)
	return out
}

// ClassifyReview returns a copy of r with category, confidence, sentiment
// and matched keywords filled in.
func (c *Classifier) ClassifyReview(r models.Review) models.Review {
	text := strings.TrimSpace(r.Title + " " + r.DisplayContent())
	if text == "" {
		r.PrimaryCategory = models.Unclassified
		r.CategoryScores = map[string]float64{}
		r.ClassificationConfidence = 0
		r.Sentiment = models.SentimentNeutral
		r.SentimentScore = 0
		r.KeywordsFound = []string{}
		return r
	}

	scores := c.CategoryScores(text)
	r.CategoryScores = scores
	r.PrimaryCategory, r.ClassificationConfidence = c.primaryCategory(scores)
	r.Sentiment, r.SentimentScore = AnalyzeSentiment(text)
	r.KeywordsFound = c.Keywords(text)
	return r
}

// CategoryScores scores text against every category. Multi-word keywords
// weigh more and longer texts dilute the score, which is capped at 1.
func (c *Classifier) CategoryScores(text string) map[string]float64 {
	lower := strings.ToLower(text)
	words := len(strings.Fields(text))

	scores := make(map[string]float64, len(c.categories))
	for _, cat := range c.categories {
		if words == 0 {
			scores[cat.id] = 0
			continue
		}
		score := 0.0
		for _, kw := range cat.keywords {
			score += float64(kw.count(lower)) * kw.weight
		}
		scores[cat.id] = min(score/(float64(words)*0.1+1), 1)
	}
	return scores
}

func (c *Classifier) primaryCategory(scores map[string]float64) (string, float64) {
	if len(c.categories) == 0 {
		return models.Unclassified, 0
	}

	primary := ""
	top, second := -1.0, -1.0
	for _, cat := range c.categories {
		s := scores[cat.id]
		switch {
		case s > top:
			primary, second, top = cat.id, top, s
		case s > second:
			second = s
		}
	}

	confidence := top
	if len(c.categories) >= 2 && top != 0 {
		confidence = min(top+(top-second), 1)
	}

	if confidence < c.threshold {
		return models.Unclassified, confidence
	}
	return primary, confidence
}

// Keywords returns the distinct category keywords present in text, in
// category order.
func (c *Classifier) Keywords(text string) []string {
	lower := strings.ToLower(text)
	seen := map[string]bool{}
	found := []string{}
	for _, cat := range c.categories {
		for _, kw := range cat.keywords {
			if !seen[kw.text] && kw.in(lower) {
				seen[kw.text] = true
				found = append(found, kw.text)
			}
		}
	}
	return found
}

// Summary aggregates classification results.
type Summary struct {
	TotalReviews          int            `json:"total_reviews"`
	CategoryDistribution  map[string]int `json:"category_distribution"`
	SentimentDistribution map[string]int `json:"sentiment_distribution"`
	AverageConfidence     float64        `json:"average_confidence"`
	HighConfidenceCount   int            `json:"high_confidence_count"`
	UnclassifiedCount     int            `json:"unclassified_count"`
	ClassificationRate    float64        `json:"classification_rate"`
}

func (c *Classifier) Summary(reviews []models.Review) Summary {
	s := Summary{
		TotalReviews:          len(reviews),
		CategoryDistribution:  map[string]int{},
		SentimentDistribution: map[string]int{},
	}
	if len(reviews) == 0 {
		return s
	}

	total := 0.0
	for _, r := range reviews {
		cat := r.PrimaryCategory
		if cat == "" {
			cat = models.Unclassified
		}
		sentiment := r.Sentiment
		if sentiment == "" {
			sentiment = models.SentimentNeutral
		}
		s.CategoryDistribution[cat]++
		s.SentimentDistribution[sentiment]++
		total += r.ClassificationConfidence
		if r.ClassificationConfidence >= c.threshold {
			s.HighConfidenceCount++
		}
	}

	n := float64(len(reviews))
	s.AverageConfidence = total / n
	s.UnclassifiedCount = s.CategoryDistribution[models.Unclassified]
	s.ClassificationRate = 1 - float64(s.UnclassifiedCount)/n
	return s
}

// SampleReview is a short excerpt shown in category insights.
type SampleReview struct {
	Content   string `json:"content"`
	Rating    *int   `json:"rating"`
	Sentiment string `json:"sentiment"`
}

// Insights describes the reviews of one category.
type Insights struct {
	Category              string                `json:"category"`
	ReviewCount           int                   `json:"review_count"`
	SentimentDistribution map[string]int        `json:"sentiment_distribution,omitempty"`
	AverageRating         float64               `json:"average_rating"`
	AverageSentimentScore float64               `json:"average_sentiment_score"`
	CommonKeywords        []mapreduce.WordCount `json:"common_keywords,omitempty"`
	SampleReviews         []SampleReview        `json:"sample_reviews,omitempty"`
}

// CategoryInsights summarizes the reviews whose primary category is cat.
// The average rating only counts rated reviews.
func CategoryInsights(reviews []models.Review, cat string) Insights {
	ins := Insights{Category: cat}

	var matched []models.Review
	for _, r := range reviews {
		if r.PrimaryCategory == cat {
			matched = append(matched, r)
		}
	}
	if len(matched) == 0 {
		return ins
	}

	ins.ReviewCount = len(matched)
	ins.SentimentDistribution = map[string]int{}

	var keywords []string
	ratingSum, rated, sentimentSum := 0, 0, 0.0
	for _, r := range matched {
		ins.SentimentDistribution[r.Sentiment]++
		sentimentSum += r.SentimentScore
		if r.Rating != nil {
			ratingSum += *r.Rating
			rated++
		}
		keywords = append(keywords, r.KeywordsFound...)
	}

	if rated > 0 {
		ins.AverageRating = float64(ratingSum) / float64(rated)
	}
	ins.AverageSentimentScore = sentimentSum / float64(len(matched))
	ins.CommonKeywords = mapreduce.TopCounts(mapreduce.Count(keywords), 10)

	for _, r := range matched[:min(3, len(matched))] {
		ins.SampleReviews = append(ins.SampleReviews, SampleReview{
			Content:   models.Truncate(r.DisplayContent(), 200),
			Rating:    r.Rating,
			Sentiment: r.Sentiment,
		})
	}
	return ins
}
