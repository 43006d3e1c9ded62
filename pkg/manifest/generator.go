package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dtnitsch/review-miner/internal/common"
	"github.com/dtnitsch/review-miner/models"
	"github.com/dtnitsch/review-miner/pkg/analytics"
	"github.com/dtnitsch/review-miner/pkg/mapreduce"
)

const topKeywordCount = 25

// Input is everything the pipeline knows when it finishes.
type Input struct {
	RunID           string
	AppName         string
	Platforms       []string
	Started         time.Time
	Finished        time.Time
	Batches         []*models.Batch
	ExportedFiles   map[string][]string
	PlatformErrors  map[string]string
	ReusedSnapshots []string
	Err             error
}

// Build assembles the manifest. A non-nil Err marks the run failed.
func Build(in Input) *RunManifest {
	m := &RunManifest{
		Success:              in.Err == nil,
		RunID:                in.RunID,
		GeneratedAt:          in.Finished.UTC().Format(time.RFC3339),
		AppName:              in.AppName,
		Platforms:            in.Platforms,
		ExecutionTimeSeconds: in.Finished.Sub(in.Started).Seconds(),
		BatchesCreated:       len(in.Batches),
		ExportedFiles:        in.ExportedFiles,
		BatchSummaries:       make([]models.BatchStats, 0, len(in.Batches)),
		PlatformErrors:       in.PlatformErrors,
		ReusedSnapshots:      in.ReusedSnapshots,
	}
	if in.Err != nil {
		m.Error = in.Err.Error()
	}
	if m.ExportedFiles == nil {
		m.ExportedFiles = map[string][]string{}
	}

	a := analytics.New(in.AppName)
	var wordCounts []map[string]int
	for _, b := range in.Batches {
		m.TotalReviewsScraped += b.TotalScraped
		m.TotalReviewsProcessed += b.TotalProcessed
		m.BatchSummaries = append(m.BatchSummaries, b.Stats())
		for _, r := range b.Reviews {
			wordCounts = append(wordCounts, mapreduce.Map(r.DisplayContent(), a))
		}
	}
	if m.TotalReviewsScraped > 0 {
		m.ProcessingRate = float64(m.TotalReviewsProcessed) / float64(m.TotalReviewsScraped)
	}
	m.TopKeywords = mapreduce.TopKeywords(mapreduce.Reduce(wordCounts), topKeywordCount)
	return m
}

// Save writes the manifest to {dir}/manifest_{app}_{timestamp}.json and
// returns the path.
func Save(m *RunManifest, dir string, at time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("failed to create manifest directory: %w", err)
	}
	name := common.SafeFilename(fmt.Sprintf("manifest_%s_%s.json", m.AppName, at.UTC().Format("20060102_150405")))
	manifestPath := filepath.Join(dir, name)

	manifestData, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("error marshalling manifest: %w", err)
	}
	if err := os.WriteFile(manifestPath, manifestData, 0600); err != nil {
		return "", fmt.Errorf("error saving manifest: %w", err)
	}
	return manifestPath, nil
}
