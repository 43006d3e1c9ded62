package manifest

import "github.com/dtnitsch/review-miner/models"

// RunManifest is the result document of one pipeline run. It is printed as
// the run summary and saved next to the exports.
type RunManifest struct {
	Success               bool                `json:"success"`
	Error                 string              `json:"error,omitempty"`
	RunID                 string              `json:"run_id,omitempty"`
	GeneratedAt           string              `json:"generated_at"`
	AppName               string              `json:"app_name"`
	Platforms             []string            `json:"platforms"`
	ExecutionTimeSeconds  float64             `json:"execution_time_seconds"`
	TotalReviewsScraped   int                 `json:"total_reviews_scraped"`
	TotalReviewsProcessed int                 `json:"total_reviews_processed"`
	ProcessingRate        float64             `json:"processing_rate"`
	BatchesCreated        int                 `json:"batches_created"`
	ExportedFiles         map[string][]string `json:"exported_files"`
	BatchSummaries        []models.BatchStats `json:"batch_summaries"`

	// PlatformErrors holds platforms that failed and were skipped.
	PlatformErrors map[string]string `json:"platform_errors,omitempty"`
	// ReusedSnapshots lists platforms served from a fresh raw snapshot.
	ReusedSnapshots []string `json:"reused_snapshots,omitempty"`
	// TopKeywords are the most frequent terms across every batch, as "word:count".
	TopKeywords []string `json:"top_keywords,omitempty"`
}

// FileCount returns how many exported files the run produced.
func (m *RunManifest) FileCount() int {
	n := 0
	for _, files := range m.ExportedFiles {
		n += len(files)
	}
	return n
}
