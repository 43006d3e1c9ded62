package models

import (
	"time"
)

// ProcessingStats records review counts after each processing stage.
type ProcessingStats struct {
	OriginalCount     int `json:"original_count" yaml:"original_count"`
	CleanedCount      int `json:"cleaned_count" yaml:"cleaned_count"`
	DeduplicatedCount int `json:"deduplicated_count" yaml:"deduplicated_count"`
	ClassifiedCount   int `json:"classified_count" yaml:"classified_count"`
	FinalCount        int `json:"final_count" yaml:"final_count"`
}

// Batch groups the reviews scraped for one app on one platform.
type Batch struct {
	Reviews         []Review         `json:"reviews"`
	AppName         string           `json:"app_name"`
	Platform        string           `json:"platform"`
	ScrapedAt       time.Time        `json:"scraped_at"`
	TotalScraped    int              `json:"total_scraped"`
	TotalProcessed  int              `json:"total_processed"`
	ProcessingStats *ProcessingStats `json:"processing_stats,omitempty"`
}

// NewBatch creates a batch stamped with the current time.
func NewBatch(appName, platform string, reviews []Review) *Batch {
	return &Batch{
		Reviews:      reviews,
		AppName:      appName,
		Platform:     platform,
		ScrapedAt:    time.Now().UTC(),
		TotalScraped: len(reviews),
	}
}

func (b *Batch) Add(r Review) {
	b.Reviews = append(b.Reviews, r)
	b.TotalScraped = len(b.Reviews)
}

func (b *Batch) ProcessedReviews() []Review {
	var out []Review
	for _, r := range b.Reviews {
		if r.IsProcessed() {
			out = append(out, r)
		}
	}
	return out
}

func (b *Batch) HighQualityReviews(minScore float64) []Review {
	var out []Review
	for _, r := range b.Reviews {
		if r.IsHighQuality(minScore) {
			out = append(out, r)
		}
	}
	return out
}

// BatchStats summarizes a batch for exports and run history.
type BatchStats struct {
	AppName               string           `json:"app_name"`
	Platform              string           `json:"platform"`
	TotalReviews          int              `json:"total_reviews"`
	ProcessedReviews      int              `json:"processed_reviews"`
	HighQualityReviews    int              `json:"high_quality_reviews"`
	SpamReviews           int              `json:"spam_reviews"`
	DuplicateReviews      int              `json:"duplicate_reviews"`
	CategoryDistribution  map[string]int   `json:"category_distribution"`
	SentimentDistribution map[string]int   `json:"sentiment_distribution"`
	RatingDistribution    map[int]int      `json:"rating_distribution"`
	AverageRating         float64          `json:"average_rating"`
	AverageSentiment      float64          `json:"average_sentiment_score"`
	ScrapedAt             time.Time        `json:"scraped_at"`
	ProcessingStats       *ProcessingStats `json:"processing_stats,omitempty"`
}

// Stats computes distributions and averages over the processed reviews.
func (b *Batch) Stats() BatchStats {
	processed := b.ProcessedReviews()
	stats := BatchStats{
		AppName:               b.AppName,
		Platform:              b.Platform,
		TotalReviews:          len(b.Reviews),
		ProcessedReviews:      len(processed),
		HighQualityReviews:    len(b.HighQualityReviews(MinQualityScore)),
		CategoryDistribution:  map[string]int{},
		SentimentDistribution: map[string]int{},
		RatingDistribution:    map[int]int{},
		ScrapedAt:             b.ScrapedAt,
		ProcessingStats:       b.ProcessingStats,
	}

	for _, r := range b.Reviews {
		if r.IsSpam {
			stats.SpamReviews++
		}
		if r.IsDuplicate {
			stats.DuplicateReviews++
		}
	}

	var ratingSum, rated int
	var sentimentSum float64
	for _, r := range processed {
		category := r.PrimaryCategory
		if category == "" {
			category = Unclassified
		}
		stats.CategoryDistribution[category]++

		sentiment := r.Sentiment
		if sentiment == "" {
			sentiment = SentimentNeutral
		}
		stats.SentimentDistribution[sentiment]++

		if r.Rating != nil {
			stats.RatingDistribution[*r.Rating]++
			ratingSum += *r.Rating
			rated++
		}
		sentimentSum += r.SentimentScore
	}

	if rated > 0 {
		stats.AverageRating = float64(ratingSum) / float64(rated)
	}
	if len(processed) > 0 {
		stats.AverageSentiment = sentimentSum / float64(len(processed))
	}
	return stats
}
