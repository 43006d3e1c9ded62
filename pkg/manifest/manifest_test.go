package manifest

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dtnitsch/review-miner/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	started  = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	finished = started.Add(2500 * time.Millisecond)
)

func batch(platform string, scraped, processed int, contents ...string) *models.Batch {
	var reviews []models.Review
	for i, c := range contents {
		reviews = append(reviews, models.Review{ReviewID: platform + string(rune('a'+i)), Content: c})
	}
	b := models.NewBatch("Spotify", platform, reviews)
	b.TotalScraped = scraped
	b.TotalProcessed = processed
	return b
}

func TestBuildSuccess(t *testing.T) {
	m := Build(Input{
		RunID:     "01HZX",
		AppName:   "Spotify",
		Platforms: []string{"reddit", "playstore"},
		Started:   started,
		Finished:  finished,
		Batches: []*models.Batch{
			batch("reddit", 10, 6, "shuffle keeps repeating songs", "shuffle is fine"),
			batch("playstore", 30, 24, "podcasts load slowly"),
		},
		ExportedFiles:  map[string][]string{"csv": {"a.csv", "b.csv"}, "json": {"a.json"}},
		PlatformErrors: map[string]string{"appstore": "unknown platform"},
	})

	assert.True(t, m.Success)
	assert.Empty(t, m.Error)
	assert.Equal(t, "2024-06-01T12:00:02Z", m.GeneratedAt)
	assert.InDelta(t, 2.5, m.ExecutionTimeSeconds, 1e-9)
	assert.Equal(t, 40, m.TotalReviewsScraped)
	assert.Equal(t, 30, m.TotalReviewsProcessed)
	assert.InDelta(t, 0.75, m.ProcessingRate, 1e-9)
	assert.Equal(t, 2, m.BatchesCreated)
	assert.Len(t, m.BatchSummaries, 2)
	assert.Equal(t, 3, m.FileCount())
	require.NotEmpty(t, m.TopKeywords)
	assert.Equal(t, "shuffle:2", m.TopKeywords[0])
}

func TestBuildFailure(t *testing.T) {
	m := Build(Input{AppName: "Zoom", Started: started, Finished: finished, Err: errors.New("No reviews scraped")})
	assert.False(t, m.Success)
	assert.Equal(t, "No reviews scraped", m.Error)
	assert.Zero(t, m.ProcessingRate)
	assert.NotNil(t, m.ExportedFiles)
	assert.Zero(t, m.FileCount())
}

func TestSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	m := Build(Input{AppName: "Day One", Platforms: []string{"reddit"}, Started: started, Finished: finished})

	path, err := Save(m, dir, finished)
	require.NoError(t, err)
	assert.Equal(t, "manifest_Day One_20240601_120002.json", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got RunManifest
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "Day One", got.AppName)
	assert.True(t, got.Success)
}
