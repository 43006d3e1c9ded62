package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dtnitsch/review-miner/models"
	"github.com/dtnitsch/review-miner/pkg/cleaner"
)

// BatchMetadata is the header of a batch JSON file.
type BatchMetadata struct {
	AppName         string                  `json:"app_name"`
	Platform        string                  `json:"platform"`
	ScrapedAt       string                  `json:"scraped_at"`
	TotalScraped    int                     `json:"total_scraped"`
	TotalProcessed  int                     `json:"total_processed"`
	ProcessingStats *models.ProcessingStats `json:"processing_stats"`
}

type batchFile struct {
	Metadata BatchMetadata   `json:"metadata"`
	Reviews  []models.Review `json:"reviews"`
}

type reviewsFile struct {
	Metadata struct {
		ExportedAt   time.Time `json:"exported_at"`
		TotalReviews int       `json:"total_reviews"`
		ExportType   string    `json:"export_type"`
	} `json:"metadata"`
	Reviews []models.Review `json:"reviews"`
}

// WriteReviewsJSON writes a flat review list to {name}.json.
func (e *Exporter) WriteReviewsJSON(reviews []models.Review, name string) (string, error) {
	var doc reviewsFile
	doc.Metadata.ExportedAt = e.now().UTC()
	doc.Metadata.TotalReviews = len(reviews)
	doc.Metadata.ExportType = "reviews"
	doc.Reviews = reviews
	if doc.Reviews == nil {
		doc.Reviews = []models.Review{}
	}

	path := e.path(name + ".json")
	if err := writeJSON(path, doc); err != nil {
		return "", err
	}
	e.log.Info("Exported reviews to JSON", "reviews", len(reviews), "path", path)
	return path, nil
}

// WriteBatchJSON writes a batch as {app}_{platform}_{timestamp}.json. The
// file can be read back with LoadBatch.
func (e *Exporter) WriteBatchJSON(b *models.Batch) (string, error) {
	path := e.path(fmt.Sprintf("%s_%s_%s.json", b.AppName, b.Platform, e.timestamp()))
	if err := SaveBatch(path, b); err != nil {
		return "", err
	}
	e.log.Info("Exported batch to JSON", "app", b.AppName, "platform", b.Platform, "path", path)
	return path, nil
}

// SaveBatch writes b to path in the batch JSON layout.
func SaveBatch(path string, b *models.Batch) error {
	doc := batchFile{
		Metadata: BatchMetadata{
			AppName:         b.AppName,
			Platform:        b.Platform,
			ScrapedAt:       b.ScrapedAt.UTC().Format(time.RFC3339Nano),
			TotalScraped:    b.TotalScraped,
			TotalProcessed:  b.TotalProcessed,
			ProcessingStats: b.ProcessingStats,
		},
		Reviews: b.Reviews,
	}
	if doc.Reviews == nil {
		doc.Reviews = []models.Review{}
	}
	return writeJSON(path, doc)
}

// LoadBatch reads a batch JSON file written by SaveBatch or WriteBatchJSON.
func LoadBatch(path string) (*models.Batch, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}

	var doc batchFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode batch file %s: %w", path, err)
	}

	b := &models.Batch{
		Reviews:         doc.Reviews,
		AppName:         doc.Metadata.AppName,
		Platform:        doc.Metadata.Platform,
		TotalScraped:    doc.Metadata.TotalScraped,
		TotalProcessed:  doc.Metadata.TotalProcessed,
		ProcessingStats: doc.Metadata.ProcessingStats,
	}
	if b.TotalScraped == 0 {
		b.TotalScraped = len(b.Reviews)
	}
	if t := cleaner.NormalizeDate(doc.Metadata.ScrapedAt); t != nil {
		b.ScrapedAt = *t
	}
	return b, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
