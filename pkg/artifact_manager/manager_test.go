package artifact_manager

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dtnitsch/review-miner/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, maxAge time.Duration) *Manager {
	t.Helper()
	dir := t.TempDir()
	m, err := NewManager(models.DataPaths{
		Raw:       filepath.Join(dir, "raw"),
		Processed: filepath.Join(dir, "processed"),
	}, maxAge)
	require.NoError(t, err)
	return m
}

func snapshot() RawSnapshot {
	return RawSnapshot{
		AppName:   "Day One",
		Platform:  "reddit",
		ScrapedAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		Reviews: []models.RawReview{
			{ReviewID: "reddit_post_1", Platform: "reddit", AppName: "Day One", Content: "Love the journaling prompts"},
		},
	}
}

func TestRawSnapshotRoundTrip(t *testing.T) {
	m := newTestManager(t, time.Hour)

	path, err := m.SetRaw(snapshot())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filepath.Base(path), "day_one_reddit-"))

	snap, ok, err := m.GetRaw("Day One", "reddit")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Day One", snap.AppName)
	require.Len(t, snap.Reviews, 1)
	assert.Equal(t, "reddit_post_1", snap.Reviews[0].ReviewID)
}

func TestGetRawMissingOrStale(t *testing.T) {
	m := newTestManager(t, time.Hour)

	_, ok, err := m.GetRaw("Day One", "reddit")
	require.NoError(t, err)
	assert.False(t, ok)

	path, err := m.SetRaw(snapshot())
	require.NoError(t, err)
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	_, ok, err = m.GetRaw("Day One", "reddit")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetRawDisabled(t *testing.T) {
	m := newTestManager(t, 0)
	_, err := m.SetRaw(snapshot())
	require.NoError(t, err)

	_, ok, err := m.GetRaw("Day One", "reddit")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestArtifactPathSeparatesSimilarNames(t *testing.T) {
	a := ArtifactPath("raw", "Day One", "reddit")
	b := ArtifactPath("raw", "day-one", "reddit")
	c := ArtifactPath("raw", "Day One", "playstore")
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, a, ArtifactPath("raw", "Day One", "reddit"))
	assert.Equal(t, "app", sanitizeSlug("  ???  "))
}
