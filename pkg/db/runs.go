package db

import (
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dtnitsch/review-miner/models"
	"github.com/oklog/ulid/v2"
)

var ErrRunNotFound = errors.New("run not found")

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewRunID returns a ULID. IDs created later sort after earlier ones.
func NewRunID(at time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), entropy).String()
}

// Run is one recorded pipeline invocation.
type Run struct {
	RunID            string
	Command          string
	AppName          string
	Platforms        []string
	OutputDir        string
	StartedAt        time.Time
	FinishedAt       *time.Time
	Success          bool
	TotalScraped     int
	TotalProcessed   int
	ExecutionSeconds float64
	ErrorMessage     string
}

// RunOutcome is what FinishRun stores when a run completes.
type RunOutcome struct {
	Success          bool
	TotalScraped     int
	TotalProcessed   int
	ExecutionSeconds float64
	Error            string
}

// CreateRun inserts a new run and returns its ID.
func (db *DB) CreateRun(command, appName string, platforms []string, outputDir string, startedAt time.Time) (string, error) {
	runID := NewRunID(startedAt)
	_, err := db.Exec(`
		INSERT INTO runs (run_id, command, app_name, platforms, output_dir, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, runID, command, appName, strings.Join(platforms, ","), outputDir, formatTime(startedAt))
	if err != nil {
		return "", fmt.Errorf("failed to create run: %w", err)
	}
	return runID, nil
}

// FinishRun records the outcome of a run.
func (db *DB) FinishRun(runID string, finishedAt time.Time, outcome RunOutcome) error {
	result, err := db.Exec(`
		UPDATE runs
		SET finished_at = ?, success = ?, total_scraped = ?, total_processed = ?,
		    execution_seconds = ?, error_message = ?
		WHERE run_id = ?
	`, formatTime(finishedAt), outcome.Success, outcome.TotalScraped, outcome.TotalProcessed,
		outcome.ExecutionSeconds, NewNullString(outcome.Error), runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

const runColumns = `run_id, command, app_name, platforms, output_dir, started_at, finished_at,
	success, total_scraped, total_processed, execution_seconds, error_message`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		r                     Run
		platforms, startedAt  string
		outputDir, finishedAt sql.NullString
		errorMessage          sql.NullString
	)
	err := row.Scan(&r.RunID, &r.Command, &r.AppName, &platforms, &outputDir, &startedAt, &finishedAt,
		&r.Success, &r.TotalScraped, &r.TotalProcessed, &r.ExecutionSeconds, &errorMessage)
	if err != nil {
		return nil, err
	}

	if platforms != "" {
		r.Platforms = strings.Split(platforms, ",")
	}
	r.OutputDir = outputDir.String
	r.StartedAt = parseTime(startedAt)
	if finishedAt.Valid {
		t := parseTime(finishedAt.String)
		r.FinishedAt = &t
	}
	r.ErrorMessage = errorMessage.String
	return &r, nil
}

// GetRun returns the run with the given ID.
func (db *DB) GetRun(runID string) (*Run, error) {
	run, err := scanRun(db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// LatestRun returns the most recently started run.
func (db *DB) LatestRun() (*Run, error) {
	run, err := scanRun(db.QueryRow(`SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, run_id DESC LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return run, nil
}

// ListRuns returns up to limit runs, newest first. An app filter matches
// the app name case-insensitively.
func (db *DB) ListRuns(appName string, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if appName != "" {
		query += ` WHERE LOWER(app_name) = LOWER(?)`
		args = append(args, appName)
	}
	query += ` ORDER BY started_at DESC, run_id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// RunBatch is the stored summary of one batch within a run.
type RunBatch struct {
	BatchID int64
	RunID   string
	Stats   models.BatchStats
}

// InsertRunBatch stores the stats of one processed batch.
func (db *DB) InsertRunBatch(runID string, stats models.BatchStats) (int64, error) {
	ps := models.ProcessingStats{}
	if stats.ProcessingStats != nil {
		ps = *stats.ProcessingStats
	}
	result, err := db.Exec(`
		INSERT INTO run_batches (
			run_id, app_name, platform, scraped_at, total_reviews, high_quality_reviews,
			spam_reviews, duplicate_reviews, average_rating, average_sentiment,
			original_count, cleaned_count, deduplicated_count, classified_count, final_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, stats.AppName, stats.Platform, formatTime(stats.ScrapedAt), stats.TotalReviews,
		stats.HighQualityReviews, stats.SpamReviews, stats.DuplicateReviews, stats.AverageRating,
		stats.AverageSentiment, ps.OriginalCount, ps.CleanedCount, ps.DeduplicatedCount,
		ps.ClassifiedCount, ps.FinalCount)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run batch: %w", err)
	}

	batchID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get batch ID: %w", err)
	}
	return batchID, nil
}

// GetRunBatches returns a run's batches in insertion order.
func (db *DB) GetRunBatches(runID string) ([]RunBatch, error) {
	rows, err := db.Query(`
		SELECT batch_id, run_id, app_name, platform, scraped_at, total_reviews, high_quality_reviews,
		       spam_reviews, duplicate_reviews, average_rating, average_sentiment,
		       original_count, cleaned_count, deduplicated_count, classified_count, final_count
		FROM run_batches
		WHERE run_id = ?
		ORDER BY batch_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run batches: %w", err)
	}
	defer rows.Close()

	var batches []RunBatch
	for rows.Next() {
		var (
			b         RunBatch
			scrapedAt sql.NullString
			ps        models.ProcessingStats
		)
		err := rows.Scan(&b.BatchID, &b.RunID, &b.Stats.AppName, &b.Stats.Platform, &scrapedAt,
			&b.Stats.TotalReviews, &b.Stats.HighQualityReviews, &b.Stats.SpamReviews,
			&b.Stats.DuplicateReviews, &b.Stats.AverageRating, &b.Stats.AverageSentiment,
			&ps.OriginalCount, &ps.CleanedCount, &ps.DeduplicatedCount, &ps.ClassifiedCount, &ps.FinalCount)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run batch: %w", err)
		}
		b.Stats.ScrapedAt = parseTime(scrapedAt.String)
		b.Stats.ProcessingStats = &ps
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// RunFile is a file written by a run.
type RunFile struct {
	Kind string
	Path string
}

// InsertRunFiles records files of one kind. Paths already recorded for the
// run are ignored.
func (db *DB) InsertRunFiles(runID, kind string, paths []string) error {
	for _, p := range paths {
		_, err := db.Exec(`
			INSERT OR IGNORE INTO run_files (run_id, kind, file_path)
			VALUES (?, ?, ?)
		`, runID, kind, p)
		if err != nil {
			return fmt.Errorf("failed to insert run file: %w", err)
		}
	}
	return nil
}

// GetRunFiles returns a run's files in insertion order.
func (db *DB) GetRunFiles(runID string) ([]RunFile, error) {
	rows, err := db.Query(`SELECT kind, file_path FROM run_files WHERE run_id = ? ORDER BY file_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run files: %w", err)
	}
	defer rows.Close()

	var files []RunFile
	for rows.Next() {
		var f RunFile
		if err := rows.Scan(&f.Kind, &f.Path); err != nil {
			return nil, fmt.Errorf("failed to scan run file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// NewNullString creates a sql.NullString from a string value.
func NewNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}
