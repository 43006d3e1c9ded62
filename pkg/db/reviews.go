package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dtnitsch/review-miner/models"
)

// StoredReview is a processed review as kept in run history.
type StoredReview struct {
	RunID                    string     `json:"run_id"`
	ReviewID                 string     `json:"review_id"`
	Platform                 string     `json:"platform"`
	AppName                  string     `json:"app_name"`
	Title                    string     `json:"title,omitempty"`
	Content                  string     `json:"content"`
	CleanedContent           string     `json:"cleaned_content"`
	Rating                   *int       `json:"rating"`
	ReviewDate               *time.Time `json:"review_date"`
	HelpfulCount             int        `json:"helpful_count"`
	PrimaryCategory          string     `json:"primary_category"`
	ClassificationConfidence float64    `json:"classification_confidence"`
	Sentiment                string     `json:"sentiment"`
	SentimentScore           float64    `json:"sentiment_score"`
	QualityScore             float64    `json:"quality_score"`
	IsHighQuality            bool       `json:"is_high_quality"`
	Keywords                 []string   `json:"keywords"`
	SourceURL                string     `json:"source_url,omitempty"`
}

// InsertReviews stores reviews for a run in one transaction. Reviews already
// stored for the run are replaced. It returns the number written.
func (db *DB) InsertReviews(runID string, reviews []models.Review) (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT INTO reviews (
			run_id, review_id, platform, app_name, title, content, cleaned_content, rating,
			review_date, helpful_count, primary_category, classification_confidence,
			sentiment, sentiment_score, quality_score, is_high_quality, keywords, source_url
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, review_id) DO UPDATE SET
			cleaned_content = excluded.cleaned_content,
			primary_category = excluded.primary_category,
			classification_confidence = excluded.classification_confidence,
			sentiment = excluded.sentiment,
			sentiment_score = excluded.sentiment_score,
			quality_score = excluded.quality_score,
			is_high_quality = excluded.is_high_quality,
			keywords = excluded.keywords
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare review insert: %w", err)
	}
	defer stmt.Close()

	for i := range reviews {
		r := &reviews[i]
		keywords, err := json.Marshal(nonNil(r.KeywordsFound))
		if err != nil {
			return 0, fmt.Errorf("failed to encode keywords: %w", err)
		}

		var rating sql.NullInt64
		if r.Rating != nil {
			rating = sql.NullInt64{Int64: int64(*r.Rating), Valid: true}
		}
		var reviewDate sql.NullString
		if r.ReviewDate != nil {
			reviewDate = NewNullString(formatTime(*r.ReviewDate))
		}

		_, err = stmt.Exec(runID, r.ReviewID, r.Platform, r.AppName, NewNullString(r.Title), r.Content,
			NewNullString(r.CleanedContent), rating, reviewDate, r.HelpfulCount,
			NewNullString(r.PrimaryCategory), r.ClassificationConfidence, NewNullString(r.Sentiment),
			r.SentimentScore, r.QualityScore, r.IsHighQuality(models.MinQualityScore), string(keywords),
			NewNullString(r.SourceURL))
		if err != nil {
			return 0, fmt.Errorf("failed to insert review %s: %w", r.ReviewID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit reviews: %w", err)
	}
	return len(reviews), nil
}

// ReviewFilter narrows QueryReviews. Zero values match everything.
type ReviewFilter struct {
	Category    string
	Sentiment   string
	Platform    string
	HighQuality bool
	Limit       int
}

// QueryReviews returns a run's reviews matching filter, highest quality first.
func (db *DB) QueryReviews(runID string, filter ReviewFilter) ([]StoredReview, error) {
	where := []string{"run_id = ?"}
	args := []any{runID}
	if filter.Category != "" {
		where = append(where, "primary_category = ?")
		args = append(args, filter.Category)
	}
	if filter.Sentiment != "" {
		where = append(where, "sentiment = ?")
		args = append(args, filter.Sentiment)
	}
	if filter.Platform != "" {
		where = append(where, "platform = ?")
		args = append(args, filter.Platform)
	}
	if filter.HighQuality {
		where = append(where, "is_high_quality = 1")
	}

	query := fmt.Sprintf(`
		SELECT run_id, review_id, platform, app_name, title, content, cleaned_content, rating,
		       review_date, helpful_count, primary_category, classification_confidence,
		       sentiment, sentiment_score, quality_score, is_high_quality, keywords, source_url
		FROM reviews
		WHERE %s
		ORDER BY quality_score DESC, id
	`, strings.Join(where, " AND "))
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reviews: %w", err)
	}
	defer rows.Close()

	var reviews []StoredReview
	for rows.Next() {
		var (
			r                                   StoredReview
			title, cleaned, category, sentiment sql.NullString
			reviewDate, keywords, sourceURL     sql.NullString
			rating                              sql.NullInt64
		)
		err := rows.Scan(&r.RunID, &r.ReviewID, &r.Platform, &r.AppName, &title, &r.Content, &cleaned,
			&rating, &reviewDate, &r.HelpfulCount, &category, &r.ClassificationConfidence,
			&sentiment, &r.SentimentScore, &r.QualityScore, &r.IsHighQuality, &keywords, &sourceURL)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}

		r.Title = title.String
		r.CleanedContent = cleaned.String
		r.PrimaryCategory = category.String
		r.Sentiment = sentiment.String
		r.SourceURL = sourceURL.String
		if rating.Valid {
			v := int(rating.Int64)
			r.Rating = &v
		}
		if reviewDate.Valid {
			t := parseTime(reviewDate.String)
			r.ReviewDate = &t
		}
		if keywords.Valid {
			_ = json.Unmarshal([]byte(keywords.String), &r.Keywords)
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

// CategoryCounts returns how many of a run's reviews fall in each category.
func (db *DB) CategoryCounts(runID string) (map[string]int, error) {
	rows, err := db.Query(`
		SELECT COALESCE(primary_category, ''), COUNT(*)
		FROM reviews
		WHERE run_id = ?
		GROUP BY primary_category
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to count categories: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var category string
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			return nil, fmt.Errorf("failed to scan category count: %w", err)
		}
		if category == "" {
			category = models.Unclassified
		}
		counts[category] += n
	}
	return counts, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
