// Package export writes processed reviews as CSV, JSON and report files.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dtnitsch/review-miner/internal/common"
	"github.com/dtnitsch/review-miner/internal/logger"
	"github.com/dtnitsch/review-miner/models"
)

const timestampLayout = "20060102_150405"

// Exporter writes export files into a single output directory.
type Exporter struct {
	outputDir  string
	maxRows    int
	dateFormat string
	log        logger.Logger
	now        func() time.Time
}

// New creates an exporter rooted at outputDir, creating it if needed.
func New(outputDir string, settings models.ExportSettings, log logger.Logger) (*Exporter, error) {
	if err := os.MkdirAll(outputDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}
	maxRows := settings.MaxRowsPerFile
	if maxRows <= 0 {
		maxRows = 10000
	}
	dateFormat := settings.DateFormat
	if dateFormat == "" {
		dateFormat = time.RFC3339
	}
	return &Exporter{
		outputDir:  outputDir,
		maxRows:    maxRows,
		dateFormat: dateFormat,
		log:        log.Named("export"),
		now:        time.Now,
	}, nil
}

func (e *Exporter) OutputDir() string { return e.outputDir }

func (e *Exporter) timestamp() string {
	return e.now().UTC().Format(timestampLayout)
}

func (e *Exporter) path(name string) string {
	return filepath.Join(e.outputDir, common.SafeFilename(name))
}

var reviewColumns = []string{
	"review_id", "platform", "app_name", "app_id", "title", "content", "cleaned_content",
	"rating", "user_id", "username", "verified", "review_date", "scraped_at", "cleaned_at",
	"processed_at", "helpful_count", "reply_count", "version", "language", "country", "device",
	"source_url", "original_length", "cleaned_length", "primary_category", "category_scores",
	"classification_confidence", "sentiment", "sentiment_score", "keywords_found",
	"is_duplicate", "is_spam", "quality_score", "raw_data",
}

// WriteReviewsCSV writes reviews to {name}.csv, or to {name}_part_N.csv files
// when there are more than max_rows_per_file reviews. It returns the paths
// written, or nil when there is nothing to export.
func (e *Exporter) WriteReviewsCSV(reviews []models.Review, name string) ([]string, error) {
	if len(reviews) == 0 {
		e.log.Warn("No reviews to export", "name", name)
		return nil, nil
	}

	chunks := common.Chunk(reviews, e.maxRows)
	files := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		filename := name + ".csv"
		if len(chunks) > 1 {
			filename = fmt.Sprintf("%s_part_%d.csv", name, i+1)
		}
		path := e.path(filename)

		rows := make([][]string, len(chunk))
		for j := range chunk {
			rows[j] = e.reviewRow(&chunk[j])
		}
		if err := writeCSV(path, reviewColumns, rows); err != nil {
			return files, err
		}
		files = append(files, path)
	}

	e.log.Info("Exported reviews to CSV", "reviews", len(reviews), "files", len(files))
	return files, nil
}

// WriteBatchCSV writes a batch as {app}_{platform}_{timestamp}.csv.
func (e *Exporter) WriteBatchCSV(b *models.Batch) ([]string, error) {
	return e.WriteReviewsCSV(b.Reviews, fmt.Sprintf("%s_%s_%s", b.AppName, b.Platform, e.timestamp()))
}

var summaryColumns = []string{
	"app_name", "platform", "total_reviews", "high_quality_reviews", "average_rating",
	"average_sentiment_score", "positive_sentiment_count", "negative_sentiment_count",
	"neutral_sentiment_count", "scraped_at",
}

// WriteSummaryCSV writes one row of stats per batch to {name}_{timestamp}.csv.
func (e *Exporter) WriteSummaryCSV(batches []*models.Batch, name string) (string, error) {
	if name == "" {
		name = "summary"
	}
	path := e.path(fmt.Sprintf("%s_%s.csv", name, e.timestamp()))

	rows := make([][]string, 0, len(batches))
	for _, b := range batches {
		stats := b.Stats()
		rows = append(rows, []string{
			stats.AppName,
			stats.Platform,
			strconv.Itoa(stats.TotalReviews),
			strconv.Itoa(stats.HighQualityReviews),
			formatFloat(round(stats.AverageRating, 2)),
			formatFloat(round(stats.AverageSentiment, 3)),
			strconv.Itoa(stats.SentimentDistribution[models.SentimentPositive]),
			strconv.Itoa(stats.SentimentDistribution[models.SentimentNegative]),
			strconv.Itoa(stats.SentimentDistribution[models.SentimentNeutral]),
			e.formatTime(&stats.ScrapedAt),
		})
	}

	if err := writeCSV(path, summaryColumns, rows); err != nil {
		return "", err
	}
	e.log.Info("Exported summary CSV", "path", path)
	return path, nil
}

func (e *Exporter) reviewRow(r *models.Review) []string {
	rating := ""
	if r.Rating != nil {
		rating = strconv.Itoa(*r.Rating)
	}
	return []string{
		r.ReviewID,
		r.Platform,
		r.AppName,
		r.AppID,
		r.Title,
		r.Content,
		r.CleanedContent,
		rating,
		r.UserID,
		r.Username,
		strconv.FormatBool(r.Verified),
		e.formatTime(r.ReviewDate),
		e.formatTime(&r.ScrapedAt),
		e.formatTime(r.CleanedAt),
		e.formatTime(r.ProcessedAt),
		strconv.Itoa(r.HelpfulCount),
		strconv.Itoa(r.ReplyCount),
		r.Version,
		r.Language,
		r.Country,
		r.Device,
		r.SourceURL,
		strconv.Itoa(r.OriginalLength),
		strconv.Itoa(r.CleanedLength),
		r.PrimaryCategory,
		jsonCell(r.CategoryScores, r.CategoryScores == nil),
		formatFloat(r.ClassificationConfidence),
		r.Sentiment,
		formatFloat(r.SentimentScore),
		jsonCell(r.KeywordsFound, r.KeywordsFound == nil),
		strconv.FormatBool(r.IsDuplicate),
		strconv.FormatBool(r.IsSpam),
		formatFloat(r.QualityScore),
		jsonCell(r.RawData, r.RawData == nil),
	}
}

func (e *Exporter) formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(e.dateFormat)
}

// jsonCell renders nested values as a JSON string; nil becomes an empty cell.
func jsonCell(v any, isNil bool) string {
	if isNil {
		return ""
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func round(f float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(f*p) / p
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to create CSV file %s: %w", path, err)
	}
	return writeRows(f, path, header, rows)
}

// writeRows writes the CSV and closes wc. A failed close is reported
// since buffered data may not have reached the disk.
func writeRows(wc io.WriteCloser, path string, header []string, rows [][]string) (err error) {
	defer func() {
		if cerr := wc.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close CSV file %s: %w", path, cerr)
		}
	}()

	w := csv.NewWriter(wc)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write CSV file %s: %w", path, err)
	}
	return nil
}
