package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dtnitsch/review-miner/internal/logger"
	"github.com/dtnitsch/review-miner/models"
	"github.com/dtnitsch/review-miner/pkg/mapreduce"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestExporter(t *testing.T, maxRows int) *Exporter {
	t.Helper()
	e, err := New(t.TempDir(), models.ExportSettings{DateFormat: "2006-01-02 15:04:05", MaxRowsPerFile: maxRows}, logger.NewNop())
	require.NoError(t, err)
	e.now = func() time.Time { return fixedNow }
	return e
}

func processed(id string, rating int, category, sentiment string, score float64, content string) models.Review {
	at := fixedNow
	r := models.Review{
		ReviewID:        id,
		Platform:        "reddit",
		AppName:         "Spotify",
		Content:         content,
		CleanedContent:  content,
		ScrapedAt:       fixedNow,
		ProcessedAt:     &at,
		PrimaryCategory: category,
		CategoryScores:  map[string]float64{category: 0.5},
		Sentiment:       sentiment,
		SentimentScore:  score,
		KeywordsFound:   []string{},
		QualityScore:    1.0,
		RawData:         map[string]any{"subreddit": "Music"},
	}
	if rating > 0 {
		r.Rating = models.IntPtr(rating)
	}
	return r
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func column(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}

func testBatches() []*models.Batch {
	spotify := models.NewBatch("Spotify", "reddit", []models.Review{
		processed("r1", 5, "pricing", models.SentimentPositive, 0.5, "The premium plan is worth the price for me"),
		processed("r2", 3, "pricing", models.SentimentPositive, 0.25, "Price went up again but shuffle still works"),
	})
	spotify.ScrapedAt = fixedNow

	netflixReview := processed("p1", 2, "ux_ui", models.SentimentNegative, -0.5, "The new interface hides my watch list")
	netflixReview.AppName = "Netflix"
	netflixReview.Platform = "playstore"
	spam := processed("p2", 0, "", "", 0, "spam spam spam spam spam spam")
	spam.AppName = "Netflix"
	spam.Platform = "playstore"
	spam.IsSpam = true
	netflix := models.NewBatch("Netflix", "playstore", []models.Review{netflixReview, spam})
	netflix.ScrapedAt = fixedNow

	return []*models.Batch{spotify, netflix}
}

func TestWriteReviewsCSV(t *testing.T) {
	e := newTestExporter(t, 10)
	r := processed("r1", 4, "pricing", models.SentimentPositive, 0.3, "Great value, love the family plan")
	r.CategoryScores = nil

	files, err := e.WriteReviewsCSV([]models.Review{r}, "spotify_reddit")
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(e.OutputDir(), "spotify_reddit.csv")}, files)

	rows := readCSV(t, files[0])
	require.Len(t, rows, 2)
	header, row := rows[0], rows[1]
	assert.Equal(t, reviewColumns, header)
	assert.Equal(t, "r1", row[column(header, "review_id")])
	assert.Equal(t, "4", row[column(header, "rating")])
	assert.Equal(t, "", row[column(header, "category_scores")])
	assert.Equal(t, "[]", row[column(header, "keywords_found")])
	assert.Equal(t, `{"subreddit":"Music"}`, row[column(header, "raw_data")])
	assert.Equal(t, "2024-06-01 12:00:00", row[column(header, "processed_at")])
	assert.Equal(t, "", row[column(header, "review_date")])
	assert.Equal(t, "false", row[column(header, "is_spam")])
	assert.Equal(t, "0.3", row[column(header, "sentiment_score")])
}

func TestWriteReviewsCSVChunks(t *testing.T) {
	e := newTestExporter(t, 2)
	var reviews []models.Review
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		reviews = append(reviews, processed(id, 0, "features", models.SentimentNeutral, 0, "some review text here"))
	}

	files, err := e.WriteReviewsCSV(reviews, "big")
	require.NoError(t, err)
	require.Len(t, files, 3)
	for i, want := range []string{"big_part_1.csv", "big_part_2.csv", "big_part_3.csv"} {
		assert.Equal(t, want, filepath.Base(files[i]))
	}
	assert.Len(t, readCSV(t, files[0]), 3)
	assert.Len(t, readCSV(t, files[2]), 2)

	row := readCSV(t, files[2])[1]
	assert.Equal(t, "e", row[0])
	assert.Equal(t, "", row[column(reviewColumns, "rating")])
}

func TestWriteReviewsCSVEmpty(t *testing.T) {
	e := newTestExporter(t, 10)
	files, err := e.WriteReviewsCSV(nil, "nothing")
	require.NoError(t, err)
	assert.Nil(t, files)
}

func TestWriteBatchCSVName(t *testing.T) {
	e := newTestExporter(t, 10)
	b := models.NewBatch("Day One", "reddit", []models.Review{processed("r1", 5, "features", "positive", 0.2, "journaling every day")})

	files, err := e.WriteBatchCSV(b)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "Day One_reddit_20240601_120000.csv", filepath.Base(files[0]))
}

func TestWriteSummaryCSV(t *testing.T) {
	e := newTestExporter(t, 10)
	path, err := e.WriteSummaryCSV(testBatches(), "")
	require.NoError(t, err)
	assert.Equal(t, "summary_20240601_120000.csv", filepath.Base(path))

	rows := readCSV(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, summaryColumns, rows[0])
	assert.Equal(t, []string{"Spotify", "reddit", "2", "2", "4", "0.375", "2", "0", "0", "2024-06-01 12:00:00"}, rows[1])
	assert.Equal(t, []string{"Netflix", "playstore", "2", "1", "2", "-0.25", "0", "1", "1", "2024-06-01 12:00:00"}, rows[2])
}

func TestBatchJSONRoundTrip(t *testing.T) {
	e := newTestExporter(t, 10)
	b := testBatches()[0]
	b.TotalProcessed = 2
	b.ProcessingStats = &models.ProcessingStats{OriginalCount: 3, CleanedCount: 2, DeduplicatedCount: 2, ClassifiedCount: 2, FinalCount: 2}

	path, err := e.WriteBatchJSON(b)
	require.NoError(t, err)
	assert.Equal(t, "Spotify_reddit_20240601_120000.json", filepath.Base(path))

	loaded, err := LoadBatch(path)
	require.NoError(t, err)
	assert.Equal(t, "Spotify", loaded.AppName)
	assert.Equal(t, "reddit", loaded.Platform)
	assert.Equal(t, 2, loaded.TotalScraped)
	assert.Equal(t, 2, loaded.TotalProcessed)
	assert.Equal(t, b.ProcessingStats, loaded.ProcessingStats)
	assert.True(t, fixedNow.Equal(loaded.ScrapedAt))
	require.Len(t, loaded.Reviews, 2)
	assert.Equal(t, "r1", loaded.Reviews[0].ReviewID)
	assert.Equal(t, models.IntPtr(5), loaded.Reviews[0].Rating)
	assert.True(t, loaded.Reviews[0].IsProcessed())
}

func TestLoadBatchErrors(t *testing.T) {
	_, err := LoadBatch(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0600))
	_, err = LoadBatch(bad)
	assert.Error(t, err)
}

func TestWriteReviewsJSON(t *testing.T) {
	e := newTestExporter(t, 10)
	path, err := e.WriteReviewsJSON(testBatches()[0].Reviews, "spotify reviews")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	meta := doc["metadata"].(map[string]any)
	assert.Equal(t, "reviews", meta["export_type"])
	assert.Equal(t, 2.0, meta["total_reviews"])
	assert.Len(t, doc["reviews"], 2)
}

func TestComputeOverallStats(t *testing.T) {
	stats := ComputeOverallStats(testBatches())
	assert.Equal(t, 4, stats.TotalReviews)
	assert.Equal(t, 3, stats.TotalHighQualityReviews)
	assert.Equal(t, 2, stats.TotalApps)
	assert.Equal(t, 2, stats.TotalPlatforms)
	assert.InDelta(t, 10.0/3.0, stats.AverageRating, 1e-9)
	assert.InDelta(t, 0.0625, stats.AverageSentimentScore, 1e-9)
	assert.InDelta(t, 0.75, stats.QualityRate, 1e-9)

	assert.Equal(t, OverallStats{}, ComputeOverallStats(nil))
}

func TestInsights(t *testing.T) {
	assert.Equal(t, []string{
		"Highest rated app: Spotify (4.0/5)",
		"Most discussed category: pricing (2 reviews)",
	}, Insights(testBatches()))
	assert.Empty(t, Insights(nil))
}

func TestTopTerms(t *testing.T) {
	b := models.NewBatch("Spotify", "reddit", []models.Review{
		{ReviewID: "1", Content: "shuffle broken, shuffle!"},
		{ReviewID: "2", Title: "Ads", Content: "the shuffle"},
	})
	assert.Equal(t, []mapreduce.WordCount{
		{Word: "shuffle", Count: 3},
		{Word: "ads", Count: 1},
	}, TopTerms([]*models.Batch{b}, 2))
}

func TestTopTermsSkipsAppName(t *testing.T) {
	b := models.NewBatch("Spotify", "reddit", []models.Review{
		{ReviewID: "1", Content: "Spotify shuffle on spotify"},
	})
	assert.Equal(t, []mapreduce.WordCount{{Word: "shuffle", Count: 1}}, TopTerms([]*models.Batch{b}, 5))
}

func TestAnalyzeCategoriesAndTrends(t *testing.T) {
	batches := testBatches()

	categories := AnalyzeCategories(batches)
	require.Len(t, categories, 2)
	assert.Equal(t, 2, categories["pricing"].Count)
	assert.InDelta(t, 0.375, categories["pricing"].AverageSentiment, 1e-9)
	assert.InDelta(t, 4.0, categories["pricing"].AverageRating, 1e-9)
	assert.InDelta(t, 2.0, categories["ux_ui"].AverageRating, 1e-9)

	insights := categoryInsights(batches, categories)
	require.Len(t, insights, 2)
	assert.Equal(t, "pricing", insights[0].Category)
	assert.Equal(t, 2, insights[0].ReviewCount)
	assert.Equal(t, "ux_ui", insights[1].Category)

	trends := AnalyzeSentimentTrends(batches)
	assert.InDelta(t, 0.375, trends.PlatformAverages["reddit"], 1e-9)
	assert.InDelta(t, -0.25, trends.PlatformAverages["playstore"], 1e-9)
	assert.InDelta(t, -0.25, trends.AppAverages["Netflix"], 1e-9)

	quality := AnalyzeQuality(batches)
	assert.Equal(t, 1, quality.SpamCount)
	assert.Equal(t, 3, quality.HighQualityCount)
	assert.InDelta(t, 0.25, quality.SpamRate, 1e-9)
}

func TestWriteReport(t *testing.T) {
	e := newTestExporter(t, 10)
	files, err := e.WriteReport(testBatches(), "")
	require.NoError(t, err)

	assert.Equal(t, "comprehensive_report_20240601_120000_summary.json", filepath.Base(files.Summary))
	assert.Equal(t, "comprehensive_report_20240601_120000_analysis.json", filepath.Base(files.Analysis))
	require.Len(t, files.CSVFiles, 2)
	assert.Equal(t, "comprehensive_report_20240601_120000_high_quality_Spotify_reddit.csv", filepath.Base(files.CSVFiles[0]))
	assert.Len(t, readCSV(t, files.CSVFiles[1]), 2)
	assert.Len(t, files.All(), 4)

	data, err := os.ReadFile(files.Analysis)
	require.NoError(t, err)
	var analysis Analysis
	require.NoError(t, json.Unmarshal(data, &analysis))
	assert.Equal(t, "analysis", analysis.Metadata.ReportType)
	require.Len(t, analysis.Insights, 3)
	assert.True(t, strings.HasPrefix(analysis.Insights[2], "Most mentioned terms: "))
	assert.Equal(t, 1, analysis.QualityMetrics.SpamCount)

	data, err = os.ReadFile(files.Summary)
	require.NoError(t, err)
	var summary map[string]any
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Len(t, summary["batch_summaries"], 2)
}

type closeFailer struct {
	bytes.Buffer
	err error
}

func (c *closeFailer) Close() error { return c.err }

func TestWriteRowsReportsCloseError(t *testing.T) {
	ok := &closeFailer{}
	require.NoError(t, writeRows(ok, "ok.csv", []string{"a", "b"}, [][]string{{"1", "2"}}))
	assert.Equal(t, "a,b\n1,2\n", ok.String())

	diskFull := errors.New("no space left on device")
	failing := &closeFailer{err: diskFull}
	err := writeRows(failing, "reviews.csv", []string{"a"}, [][]string{{"1"}})
	require.ErrorIs(t, err, diskFull)
	assert.Contains(t, err.Error(), "reviews.csv")
}
