package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// RawReview is a review as produced by a scraper or read from an import file,
// before any normalization. Numeric fields tolerate strings and floats.
type RawReview struct {
	ReviewID     string         `json:"review_id"`
	Platform     string         `json:"platform"`
	AppName      string         `json:"app_name"`
	AppID        string         `json:"app_id,omitempty"`
	UserID       string         `json:"user_id,omitempty"`
	Username     string         `json:"username,omitempty"`
	Rating       *Number        `json:"rating,omitempty"`
	Title        string         `json:"title,omitempty"`
	Content      string         `json:"content"`
	ReviewDate   string         `json:"review_date,omitempty"`
	HelpfulCount *Number        `json:"helpful_count,omitempty"`
	ReplyCount   *Number        `json:"reply_count,omitempty"`
	Verified     bool           `json:"verified"`
	Version      string         `json:"version,omitempty"`
	Language     string         `json:"language,omitempty"`
	Country      string         `json:"country,omitempty"`
	Device       string         `json:"device,omitempty"`
	SourceURL    string         `json:"source_url,omitempty"`
	ScrapedAt    time.Time      `json:"scraped_at"`
	RawData      map[string]any `json:"raw_data,omitempty"`
}

// Number is a loosely typed numeric value. It decodes from JSON numbers
// and numeric strings; anything else decodes as NaN.
type Number float64

func NumberOf(v float64) *Number {
	n := Number(v)
	return &n
}

func (n *Number) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*n = Number(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("failed to decode number %s: %w", string(data), err)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*n = Number(math.NaN())
		return nil
	}
	*n = Number(f)
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

// Float returns the value and whether it is a usable number.
func (n *Number) Float() (float64, bool) {
	if n == nil {
		return 0, false
	}
	f := float64(*n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ToReview copies the raw identity and metadata fields into a Review.
// Normalized fields (rating, dates, counts) are left for the cleaner.
func (r RawReview) ToReview() Review {
	review := Review{
		ReviewID:       r.ReviewID,
		Platform:       r.Platform,
		AppName:        r.AppName,
		AppID:          r.AppID,
		Title:          r.Title,
		Content:        r.Content,
		UserID:         r.UserID,
		Username:       r.Username,
		Verified:       r.Verified,
		ScrapedAt:      r.ScrapedAt,
		Version:        r.Version,
		Language:       r.Language,
		Country:        r.Country,
		Device:         r.Device,
		SourceURL:      r.SourceURL,
		CategoryScores: map[string]float64{},
		KeywordsFound:  []string{},
		RawData:        r.RawData,
	}
	if review.RawData == nil {
		review.RawData = map[string]any{}
	}
	if review.ScrapedAt.IsZero() {
		review.ScrapedAt = time.Now().UTC()
	}
	return review
}
