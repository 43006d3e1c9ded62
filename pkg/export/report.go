package export

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dtnitsch/review-miner/models"
	"github.com/dtnitsch/review-miner/pkg/analytics"
	"github.com/dtnitsch/review-miner/pkg/classifier"
	"github.com/dtnitsch/review-miner/pkg/mapreduce"
)

const topTermCount = 10

// ReportFiles lists the files written by WriteReport.
type ReportFiles struct {
	Summary  string   `json:"summary"`
	CSVFiles []string `json:"csv_files"`
	Analysis string   `json:"analysis"`
}

// All returns every report file path.
func (f *ReportFiles) All() []string {
	out := []string{f.Summary}
	out = append(out, f.CSVFiles...)
	return append(out, f.Analysis)
}

type reportMetadata struct {
	GeneratedAt  time.Time `json:"generated_at"`
	TotalBatches int       `json:"total_batches,omitempty"`
	ReportType   string    `json:"report_type"`
}

// OverallStats aggregates every batch in a report.
type OverallStats struct {
	TotalReviews            int     `json:"total_reviews"`
	TotalHighQualityReviews int     `json:"total_high_quality_reviews"`
	TotalApps               int     `json:"total_apps"`
	TotalPlatforms          int     `json:"total_platforms"`
	AverageRating           float64 `json:"average_rating"`
	AverageSentimentScore   float64 `json:"average_sentiment_score"`
	QualityRate             float64 `json:"quality_rate"`
}

type summaryReport struct {
	Metadata       reportMetadata      `json:"report_metadata"`
	OverallStats   OverallStats        `json:"overall_stats"`
	BatchSummaries []models.BatchStats `json:"batch_summaries"`
}

// CategoryStats is the per-category block of the analysis report.
type CategoryStats struct {
	Count            int     `json:"count"`
	AverageSentiment float64 `json:"average_sentiment"`
	AverageRating    float64 `json:"average_rating"`
}

// SentimentTrends holds average sentiment scores per platform and per app.
type SentimentTrends struct {
	PlatformAverages map[string]float64 `json:"platform_sentiment_averages"`
	AppAverages      map[string]float64 `json:"app_sentiment_averages"`
}

// QualityMetrics counts spam, duplicate and high-quality reviews.
type QualityMetrics struct {
	TotalReviews     int     `json:"total_reviews"`
	SpamCount        int     `json:"spam_count"`
	DuplicateCount   int     `json:"duplicate_count"`
	HighQualityCount int     `json:"high_quality_count"`
	SpamRate         float64 `json:"spam_rate"`
	DuplicateRate    float64 `json:"duplicate_rate"`
	QualityRate      float64 `json:"quality_rate"`
}

// Analysis is the body of the {base}_analysis.json report.
type Analysis struct {
	Metadata         reportMetadata           `json:"report_metadata"`
	Insights         []string                 `json:"insights"`
	TopTerms         []mapreduce.WordCount    `json:"top_terms"`
	CategoryAnalysis map[string]CategoryStats `json:"category_analysis"`
	CategoryInsights []classifier.Insights    `json:"category_insights"`
	SentimentTrends  SentimentTrends          `json:"sentiment_trends"`
	QualityMetrics   QualityMetrics           `json:"quality_metrics"`
}

// WriteReport writes the comprehensive report: a summary JSON, one CSV of
// high-quality reviews per batch and an analysis JSON, all sharing the
// {name}_{timestamp} prefix.
func (e *Exporter) WriteReport(batches []*models.Batch, name string) (*ReportFiles, error) {
	if name == "" {
		name = "comprehensive_report"
	}
	base := fmt.Sprintf("%s_%s", name, e.timestamp())
	files := &ReportFiles{CSVFiles: []string{}}

	summary := summaryReport{
		Metadata:       reportMetadata{GeneratedAt: e.now().UTC(), TotalBatches: len(batches), ReportType: "summary"},
		OverallStats:   ComputeOverallStats(batches),
		BatchSummaries: make([]models.BatchStats, 0, len(batches)),
	}
	for _, b := range batches {
		summary.BatchSummaries = append(summary.BatchSummaries, b.Stats())
	}
	files.Summary = e.path(base + "_summary.json")
	if err := writeJSON(files.Summary, summary); err != nil {
		return nil, err
	}

	for _, b := range batches {
		csvName := fmt.Sprintf("%s_high_quality_%s_%s", base, b.AppName, b.Platform)
		paths, err := e.WriteReviewsCSV(b.HighQualityReviews(models.MinQualityScore), csvName)
		if err != nil {
			return nil, err
		}
		files.CSVFiles = append(files.CSVFiles, paths...)
	}

	analysis := Analyze(batches)
	analysis.Metadata = reportMetadata{GeneratedAt: e.now().UTC(), ReportType: "analysis"}
	files.Analysis = e.path(base + "_analysis.json")
	if err := writeJSON(files.Analysis, analysis); err != nil {
		return nil, err
	}

	e.log.Info("Generated comprehensive report", "files", len(files.All()))
	return files, nil
}

// ComputeOverallStats aggregates counts and averages across batches. The
// rating average only counts rated reviews.
func ComputeOverallStats(batches []*models.Batch) OverallStats {
	var stats OverallStats
	apps := map[string]bool{}
	platforms := map[string]bool{}

	var ratingSum, sentimentSum float64
	var rated int
	for _, b := range batches {
		apps[b.AppName] = true
		platforms[b.Platform] = true
		stats.TotalReviews += len(b.Reviews)
		stats.TotalHighQualityReviews += len(b.HighQualityReviews(models.MinQualityScore))
		for _, r := range b.Reviews {
			if r.Rating != nil {
				ratingSum += float64(*r.Rating)
				rated++
			}
			sentimentSum += r.SentimentScore
		}
	}

	stats.TotalApps = len(apps)
	stats.TotalPlatforms = len(platforms)
	if rated > 0 {
		stats.AverageRating = ratingSum / float64(rated)
	}
	if stats.TotalReviews > 0 {
		stats.AverageSentimentScore = sentimentSum / float64(stats.TotalReviews)
		stats.QualityRate = float64(stats.TotalHighQualityReviews) / float64(stats.TotalReviews)
	}
	return stats
}

// Analyze builds the analysis report body without metadata.
func Analyze(batches []*models.Batch) Analysis {
	terms := TopTerms(batches, topTermCount)
	insights := Insights(batches)
	if len(terms) > 0 {
		words := make([]string, len(terms))
		for i, t := range terms {
			words[i] = t.Word
		}
		insights = append(insights, "Most mentioned terms: "+strings.Join(words, ", "))
	}

	categories := AnalyzeCategories(batches)
	return Analysis{
		Insights:         insights,
		TopTerms:         terms,
		CategoryAnalysis: categories,
		CategoryInsights: categoryInsights(batches, categories),
		SentimentTrends:  AnalyzeSentimentTrends(batches),
		QualityMetrics:   AnalyzeQuality(batches),
	}
}

// Insights names the highest rated app and the most discussed category.
// Ties go to whichever was seen first.
func Insights(batches []*models.Batch) []string {
	insights := []string{}

	var appOrder []string
	appRatings := map[string]float64{}
	for _, b := range batches {
		avg := b.Stats().AverageRating
		if avg <= 0 {
			continue
		}
		if _, ok := appRatings[b.AppName]; !ok {
			appOrder = append(appOrder, b.AppName)
		}
		appRatings[b.AppName] = avg
	}
	if best, ok := argmax(appOrder, appRatings); ok {
		insights = append(insights, fmt.Sprintf("Highest rated app: %s (%.1f/5)", best, appRatings[best]))
	}

	var categoryOrder []string
	categoryCounts := map[string]float64{}
	for _, b := range batches {
		for _, r := range b.Reviews {
			if !isClassified(r) {
				continue
			}
			if _, ok := categoryCounts[r.PrimaryCategory]; !ok {
				categoryOrder = append(categoryOrder, r.PrimaryCategory)
			}
			categoryCounts[r.PrimaryCategory]++
		}
	}
	if top, ok := argmax(categoryOrder, categoryCounts); ok {
		insights = append(insights, fmt.Sprintf("Most discussed category: %s (%d reviews)", top, int(categoryCounts[top])))
	}
	return insights
}

// TopTerms maps every review's text to word counts, reduces them and
// returns the n most frequent terms. Words of the app name are left out.
func TopTerms(batches []*models.Batch, n int) []mapreduce.WordCount {
	var counts []map[string]int
	for _, b := range batches {
		a := analytics.New(b.AppName)
		for _, r := range b.Reviews {
			counts = append(counts, mapreduce.Map(r.Title+" "+r.DisplayContent(), a))
		}
	}
	return mapreduce.TopCounts(mapreduce.Reduce(counts), n)
}

// AnalyzeCategories reports count, average sentiment and average rating for
// each classified category.
func AnalyzeCategories(batches []*models.Batch) map[string]CategoryStats {
	type acc struct {
		count     int
		sentiment float64
		ratingSum int
		rated     int
	}
	accs := map[string]*acc{}
	for _, b := range batches {
		for _, r := range b.Reviews {
			if !isClassified(r) {
				continue
			}
			a, ok := accs[r.PrimaryCategory]
			if !ok {
				a = &acc{}
				accs[r.PrimaryCategory] = a
			}
			a.count++
			a.sentiment += r.SentimentScore
			if r.Rating != nil {
				a.ratingSum += *r.Rating
				a.rated++
			}
		}
	}

	out := make(map[string]CategoryStats, len(accs))
	for category, a := range accs {
		cs := CategoryStats{Count: a.count, AverageSentiment: a.sentiment / float64(a.count)}
		if a.rated > 0 {
			cs.AverageRating = float64(a.ratingSum) / float64(a.rated)
		}
		out[category] = cs
	}
	return out
}

// categoryInsights details every classified category, most reviewed first.
func categoryInsights(batches []*models.Batch, categories map[string]CategoryStats) []classifier.Insights {
	var reviews []models.Review
	for _, b := range batches {
		reviews = append(reviews, b.Reviews...)
	}

	names := make([]string, 0, len(categories))
	for name := range categories {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if categories[names[i]].Count != categories[names[j]].Count {
			return categories[names[i]].Count > categories[names[j]].Count
		}
		return names[i] < names[j]
	})

	out := make([]classifier.Insights, 0, len(names))
	for _, name := range names {
		out = append(out, classifier.CategoryInsights(reviews, name))
	}
	return out
}

// AnalyzeSentimentTrends averages sentiment scores per platform and per app.
// Groups without reviews are left out.
func AnalyzeSentimentTrends(batches []*models.Batch) SentimentTrends {
	platformSum, platformN := map[string]float64{}, map[string]int{}
	appSum, appN := map[string]float64{}, map[string]int{}
	for _, b := range batches {
		for _, r := range b.Reviews {
			platformSum[b.Platform] += r.SentimentScore
			platformN[b.Platform]++
			appSum[b.AppName] += r.SentimentScore
			appN[b.AppName]++
		}
	}

	trends := SentimentTrends{
		PlatformAverages: make(map[string]float64, len(platformN)),
		AppAverages:      make(map[string]float64, len(appN)),
	}
	for p, n := range platformN {
		trends.PlatformAverages[p] = platformSum[p] / float64(n)
	}
	for a, n := range appN {
		trends.AppAverages[a] = appSum[a] / float64(n)
	}
	return trends
}

func AnalyzeQuality(batches []*models.Batch) QualityMetrics {
	var m QualityMetrics
	for _, b := range batches {
		m.TotalReviews += len(b.Reviews)
		for _, r := range b.Reviews {
			if r.IsSpam {
				m.SpamCount++
			}
			if r.IsDuplicate {
				m.DuplicateCount++
			}
			if r.IsHighQuality(models.MinQualityScore) {
				m.HighQualityCount++
			}
		}
	}
	if m.TotalReviews > 0 {
		total := float64(m.TotalReviews)
		m.SpamRate = float64(m.SpamCount) / total
		m.DuplicateRate = float64(m.DuplicateCount) / total
		m.QualityRate = float64(m.HighQualityCount) / total
	}
	return m
}

func isClassified(r models.Review) bool {
	return r.PrimaryCategory != "" && r.PrimaryCategory != models.Unclassified
}

func argmax(order []string, values map[string]float64) (string, bool) {
	best, found := "", false
	for _, k := range order {
		if !found || values[k] > values[best] {
			best, found = k, true
		}
	}
	return best, found
}
