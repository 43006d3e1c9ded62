package db

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/dtnitsch/review-miner/internal/ui"
	"github.com/dtnitsch/review-miner/models"
	dbpkg "github.com/dtnitsch/review-miner/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	ui.DisableColors(true)
}

func TestPrintRuns(t *testing.T) {
	finished := time.Date(2024, 6, 1, 12, 1, 0, 0, time.UTC)
	runs := []dbpkg.Run{
		{RunID: "01J0000000000000000000000B", Command: "mine", AppName: "Spotify", Platforms: []string{"reddit", "playstore"},
			StartedAt: finished.Add(-time.Minute), FinishedAt: &finished, Success: true, TotalScraped: 120, TotalProcessed: 87},
		{RunID: "01J0000000000000000000000A", Command: "mine", AppName: "Zoom", Platforms: []string{"reddit"},
			StartedAt: finished.Add(-time.Hour)},
	}

	var buf bytes.Buffer
	PrintRuns(&buf, runs)
	out := buf.String()

	assert.Contains(t, out, "reddit,playstore")
	assert.Contains(t, out, "87/120")
	assert.Contains(t, out, "success")
	assert.Contains(t, out, "running")
	assert.Contains(t, out, "Total: 2 runs")
}

func TestPrintRunsEmpty(t *testing.T) {
	var buf bytes.Buffer
	PrintRuns(&buf, nil)
	assert.Equal(t, "No runs found\n", buf.String())
}

func TestPrintRun(t *testing.T) {
	started := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	finished := started.Add(3 * time.Second)
	run := &dbpkg.Run{
		RunID: "01J0000000000000000000000C", Command: "mine", AppName: "Day One", Platforms: []string{"reddit"},
		StartedAt: started, FinishedAt: &finished, ExecutionSeconds: 3.14159, ErrorMessage: "no reviews processed",
	}
	batches := []dbpkg.RunBatch{{Stats: models.BatchStats{
		Platform: "reddit", TotalReviews: 30, HighQualityReviews: 12, AverageRating: 0, AverageSentiment: 0.25,
		ProcessingStats: &models.ProcessingStats{OriginalCount: 40, FinalCount: 30},
	}}}
	files := []dbpkg.RunFile{{Kind: "csv", Path: "data/exports/day_one.csv"}}

	var buf bytes.Buffer
	PrintRun(&buf, run, batches, files, map[string]int{"bugs": 3, "features": 5, "pricing": 3})
	out := buf.String()

	assert.Contains(t, out, "Run 01J0000000000000000000000C")
	assert.Contains(t, out, "3.14 seconds")
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "Error: no reviews processed")
	assert.Contains(t, out, "30/40")
	assert.Contains(t, out, "+0.25")
	assert.Contains(t, out, "data/exports/day_one.csv")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("features")), bytes.Index(buf.Bytes(), []byte("bugs")))
}

func TestPrintReviews(t *testing.T) {
	reviews := []dbpkg.StoredReview{
		{Platform: "playstore", Rating: models.IntPtr(2), PrimaryCategory: "pricing", Sentiment: "negative",
			QualityScore: 1.5, Content: "raw", CleanedContent: "The family plan\nprice keeps going up"},
		{Platform: "reddit", PrimaryCategory: "ux_ui", Sentiment: "positive", QualityScore: 0.5, Content: "Love the new dark mode"},
	}

	var buf bytes.Buffer
	PrintReviews(&buf, reviews)
	out := buf.String()

	assert.Contains(t, out, "The family plan price keeps going up")
	assert.Contains(t, out, "Love the new dark mode")
	assert.Contains(t, out, "1.50")
	assert.Contains(t, out, "Total: 2 reviews")
}

func TestSortedByCount(t *testing.T) {
	got := sortedByCount(map[string]int{"pricing": 2, "bugs": 2, "features": 7})
	assert.Equal(t, []string{"features", "bugs", "pricing"}, got)
}

func TestWriteReviewsJSON(t *testing.T) {
	reviews := []dbpkg.StoredReview{{ReviewID: "r1", Platform: "reddit", Sentiment: "positive", Content: "Love it"}}

	var buf bytes.Buffer
	require.NoError(t, WriteReviewsJSON(&buf, reviews, "review_id, sentiment"))

	var got []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, []map[string]any{{"review_id": "r1", "sentiment": "positive"}}, got)

	buf.Reset()
	require.NoError(t, WriteReviewsJSON(&buf, nil, ""))
	assert.Equal(t, "[]\n", buf.String())
}
