package models

import (
	"errors"
	"fmt"
	"time"
)

// Sentiment labels.
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

// Unclassified is the category assigned when no topic clears the confidence threshold.
const Unclassified = "unclassified"

// MinQualityScore is the default quality_score cutoff for high-quality reviews.
const MinQualityScore = 0.5

var ErrInvalidReview = errors.New("invalid review")

// Review is a processed review as it flows through cleaning, dedup and classification.
type Review struct {
	// Core identifiers
	ReviewID string `json:"review_id"`
	Platform string `json:"platform"`
	AppName  string `json:"app_name"`
	AppID    string `json:"app_id,omitempty"`

	// Content
	Title          string `json:"title,omitempty"`
	Content        string `json:"content"`
	CleanedContent string `json:"cleaned_content,omitempty"`
	Rating         *int   `json:"rating"`

	// User
	UserID   string `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
	Verified bool   `json:"verified"`

	// Timestamps
	ReviewDate  *time.Time `json:"review_date,omitempty"`
	ScrapedAt   time.Time  `json:"scraped_at"`
	CleanedAt   *time.Time `json:"cleaned_at,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`

	// Engagement
	HelpfulCount int `json:"helpful_count"`
	ReplyCount   int `json:"reply_count"`

	// Technical metadata
	Version   string `json:"version,omitempty"`
	Language  string `json:"language,omitempty"`
	Country   string `json:"country,omitempty"`
	Device    string `json:"device,omitempty"`
	SourceURL string `json:"source_url,omitempty"`

	OriginalLength int `json:"original_length"`
	CleanedLength  int `json:"cleaned_length"`

	// Classification
	PrimaryCategory          string             `json:"primary_category,omitempty"`
	CategoryScores           map[string]float64 `json:"category_scores"`
	ClassificationConfidence float64            `json:"classification_confidence"`
	Sentiment                string             `json:"sentiment,omitempty"`
	SentimentScore           float64            `json:"sentiment_score"`
	KeywordsFound            []string           `json:"keywords_found"`

	// Quality
	IsDuplicate  bool    `json:"is_duplicate"`
	IsSpam       bool    `json:"is_spam"`
	QualityScore float64 `json:"quality_score"`

	RawData map[string]any `json:"raw_data"`
}

// Validate checks required identifiers and the value ranges of rating and sentiment.
func (r *Review) Validate() error {
	if r.ReviewID == "" {
		return fmt.Errorf("%w: review_id is required", ErrInvalidReview)
	}
	if r.Platform == "" {
		return fmt.Errorf("%w: platform is required", ErrInvalidReview)
	}
	if r.AppName == "" {
		return fmt.Errorf("%w: app_name is required", ErrInvalidReview)
	}
	if r.Rating != nil && (*r.Rating < 1 || *r.Rating > 5) {
		return fmt.Errorf("%w: rating must be between 1 and 5, got %d", ErrInvalidReview, *r.Rating)
	}
	switch r.Sentiment {
	case "", SentimentPositive, SentimentNegative, SentimentNeutral:
	default:
		return fmt.Errorf("%w: sentiment must be positive, negative or neutral, got %q", ErrInvalidReview, r.Sentiment)
	}
	return nil
}

// DisplayContent returns the cleaned content when available.
func (r *Review) DisplayContent() string {
	if r.CleanedContent != "" {
		return r.CleanedContent
	}
	return r.Content
}

func (r *Review) IsProcessed() bool {
	return r.ProcessedAt != nil
}

// IsHighQuality reports whether the review is neither spam nor a duplicate,
// has a quality score of at least minScore and at least 20 characters of content.
func (r *Review) IsHighQuality(minScore float64) bool {
	return !r.IsSpam &&
		!r.IsDuplicate &&
		r.QualityScore >= minScore &&
		len([]rune(r.DisplayContent())) >= 20
}

// MarkProcessed stamps the review as having passed the processing pipeline.
func (r *Review) MarkProcessed(at time.Time) {
	t := at.UTC()
	r.ProcessedAt = &t
}

// Summary is a compact view of a review used in listings.
type Summary struct {
	ReviewID        string     `json:"review_id"`
	Platform        string     `json:"platform"`
	AppName         string     `json:"app_name"`
	Rating          *int       `json:"rating"`
	Sentiment       string     `json:"sentiment"`
	PrimaryCategory string     `json:"primary_category"`
	ContentPreview  string     `json:"content_preview"`
	ReviewDate      *time.Time `json:"review_date,omitempty"`
	IsHighQuality   bool       `json:"is_high_quality"`
	HelpfulCount    int        `json:"helpful_count"`
}

func (r *Review) Summary() Summary {
	return Summary{
		ReviewID:        r.ReviewID,
		Platform:        r.Platform,
		AppName:         r.AppName,
		Rating:          r.Rating,
		Sentiment:       r.Sentiment,
		PrimaryCategory: r.PrimaryCategory,
		ContentPreview:  Truncate(r.DisplayContent(), 100),
		ReviewDate:      r.ReviewDate,
		IsHighQuality:   r.IsHighQuality(MinQualityScore),
		HelpfulCount:    r.HelpfulCount,
	}
}

// Truncate cuts s to n runes and appends "..." when it was longer.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

// IntPtr is a convenience for optional int fields.
func IntPtr(v int) *int {
	return &v
}
