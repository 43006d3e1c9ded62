package db

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dtnitsch/review-miner/internal/common"
	"github.com/dtnitsch/review-miner/internal/ui"
	"github.com/dtnitsch/review-miner/models"
	dbpkg "github.com/dtnitsch/review-miner/pkg/db"
	"github.com/urfave/cli/v2"
)

const timeLayout = "2006-01-02 15:04:05"

func RunsAction(c *cli.Context) error {
	database, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer database.Close()

	runs, err := database.ListRuns(c.String("app"), c.Int("limit"))
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	PrintRuns(c.App.Writer, runs)
	return nil
}

func PrintRuns(w io.Writer, runs []dbpkg.Run) {
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(w, "No runs found")
		return
	}

	t := ui.NewTable(w, "Run", "Started", "Command", "App", "Platforms", "Reviews", "Status")
	for _, r := range runs {
		t.AppendRow([]any{
			r.RunID,
			r.StartedAt.Local().Format(timeLayout),
			r.Command,
			r.AppName,
			strings.Join(r.Platforms, ","),
			fmt.Sprintf("%d/%d", r.TotalProcessed, r.TotalScraped),
			status(r),
		})
	}
	t.Render()

	_, _ = fmt.Fprintf(w, "\nTotal: %d runs\n", len(runs))
	_, _ = fmt.Fprintf(w, "\nTip: Use 'review-miner db run <id>' to see details\n")
}

// RunAction shows details for a specific run, or the latest one.
func RunAction(c *cli.Context) error {
	database, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer database.Close()

	runID, err := runIDOrLatest(c, database)
	if err != nil {
		return err
	}

	run, err := database.GetRun(runID)
	if errors.Is(err, dbpkg.ErrRunNotFound) {
		return cli.Exit(fmt.Sprintf("run %s not found", runID), 1)
	}
	if err != nil {
		return fmt.Errorf("failed to get run: %w", err)
	}
	batches, err := database.GetRunBatches(runID)
	if err != nil {
		return fmt.Errorf("failed to get run batches: %w", err)
	}
	files, err := database.GetRunFiles(runID)
	if err != nil {
		return fmt.Errorf("failed to get run files: %w", err)
	}
	categories, err := database.CategoryCounts(runID)
	if err != nil {
		return fmt.Errorf("failed to count categories: %w", err)
	}

	PrintRun(c.App.Writer, run, batches, files, categories)
	return nil
}

func PrintRun(w io.Writer, run *dbpkg.Run, batches []dbpkg.RunBatch, files []dbpkg.RunFile, categories map[string]int) {
	ui.Header(w, fmt.Sprintf("Run %s", run.RunID))
	ui.Field(w, "Command", run.Command)
	ui.Field(w, "App", run.AppName)
	ui.Field(w, "Platforms", strings.Join(run.Platforms, ", "))
	ui.Field(w, "Started", run.StartedAt.Local().Format(timeLayout))
	if run.FinishedAt != nil {
		ui.Field(w, "Finished", run.FinishedAt.Local().Format(timeLayout))
		ui.Field(w, "Execution time", fmt.Sprintf("%.2f seconds", run.ExecutionSeconds))
	}
	ui.Field(w, "Status", status(*run))
	ui.Field(w, "Reviews", fmt.Sprintf("%d/%d", run.TotalProcessed, run.TotalScraped))
	if run.OutputDir != "" {
		ui.Field(w, "Output", run.OutputDir)
	}
	if run.ErrorMessage != "" {
		ui.Errorf(w, "Error: %s", run.ErrorMessage)
	}

	if len(batches) > 0 {
		_, _ = fmt.Fprintln(w)
		t := ui.NewTable(w, "Platform", "Reviews", "High quality", "Spam", "Avg rating", "Avg sentiment", "Kept")
		for _, b := range batches {
			s := b.Stats
			kept := "-"
			if s.ProcessingStats != nil && s.ProcessingStats.OriginalCount > 0 {
				kept = fmt.Sprintf("%d/%d", s.ProcessingStats.FinalCount, s.ProcessingStats.OriginalCount)
			}
			t.AppendRow([]any{
				s.Platform, s.TotalReviews, s.HighQualityReviews, s.SpamReviews,
				fmt.Sprintf("%.2f", s.AverageRating), fmt.Sprintf("%+.2f", s.AverageSentiment), kept,
			})
		}
		t.Render()
	}

	if len(categories) > 0 {
		_, _ = fmt.Fprintln(w)
		t := ui.NewTable(w, "Category", "Reviews")
		for _, category := range sortedByCount(categories) {
			t.AppendRow([]any{category, categories[category]})
		}
		t.Render()
	}

	if len(files) > 0 {
		_, _ = fmt.Fprintln(w)
		_, _ = ui.Bold.Fprintln(w, "Files:")
		for _, f := range files {
			_, _ = fmt.Fprintf(w, "  %-8s %s\n", f.Kind, f.Path)
		}
	}
}

// ReviewsAction lists stored reviews for a run, best quality first.
func ReviewsAction(c *cli.Context) error {
	database, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer database.Close()

	runID, err := runIDOrLatest(c, database)
	if err != nil {
		return err
	}

	reviews, err := database.QueryReviews(runID, dbpkg.ReviewFilter{
		Category:    c.String("category"),
		Sentiment:   c.String("sentiment"),
		Platform:    c.String("platform"),
		HighQuality: c.Bool("high-quality"),
		Limit:       c.Int("limit"),
	})
	if err != nil {
		return fmt.Errorf("failed to query reviews: %w", err)
	}
	if c.Bool("json") {
		return WriteReviewsJSON(c.App.Writer, reviews, c.String("fields"))
	}
	PrintReviews(c.App.Writer, reviews)
	return nil
}

// WriteReviewsJSON writes reviews as a JSON array, keeping only the
// comma-separated fields when given.
func WriteReviewsJSON(w io.Writer, reviews []dbpkg.StoredReview, fields string) error {
	out := make([]map[string]any, 0, len(reviews))
	for _, r := range reviews {
		out = append(out, common.FilterFields(r, fields))
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode reviews: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func PrintReviews(w io.Writer, reviews []dbpkg.StoredReview) {
	if len(reviews) == 0 {
		_, _ = fmt.Fprintln(w, "No reviews found")
		return
	}

	t := ui.NewTable(w, "Platform", "Rating", "Category", "Sentiment", "Quality", "Review")
	for _, r := range reviews {
		rating := "-"
		if r.Rating != nil {
			rating = fmt.Sprintf("%d", *r.Rating)
		}
		content := r.CleanedContent
		if content == "" {
			content = r.Content
		}
		t.AppendRow([]any{
			r.Platform, rating, r.PrimaryCategory, r.Sentiment,
			fmt.Sprintf("%.2f", r.QualityScore),
			models.Truncate(strings.Join(strings.Fields(content), " "), 80),
		})
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "\nTotal: %d reviews\n", len(reviews))
}

func status(r dbpkg.Run) string {
	switch {
	case r.FinishedAt == nil:
		return "running"
	case r.Success:
		return "success"
	default:
		return "failed"
	}
}

func sortedByCount(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}
