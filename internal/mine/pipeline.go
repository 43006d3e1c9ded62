// Package mine runs the review mining pipeline: scrape, clean, dedup,
// classify, export and record.
package mine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dtnitsch/review-miner/internal/logger"
	"github.com/dtnitsch/review-miner/models"
	"github.com/dtnitsch/review-miner/pkg/artifact_manager"
	"github.com/dtnitsch/review-miner/pkg/cleaner"
	"github.com/dtnitsch/review-miner/pkg/db"
	"github.com/dtnitsch/review-miner/pkg/export"
	"github.com/dtnitsch/review-miner/pkg/manifest"
	"github.com/dtnitsch/review-miner/pkg/metrics"
	"github.com/dtnitsch/review-miner/pkg/scraper"
	"golang.org/x/sync/errgroup"
)

const (
	FormatCSV     = "csv"
	FormatJSON    = "json"
	FormatReport  = "report"
	FormatSummary = "summary"

	defaultWorkers = 4
)

var (
	ErrNoReviewsScraped   = errors.New("no reviews scraped")
	ErrNoReviewsProcessed = errors.New("no reviews processed")
	ErrUnknownFormat      = errors.New("unknown export format")
)

// DefaultFormats are exported when no --formats flag is given.
var DefaultFormats = []string{FormatCSV, FormatJSON, FormatReport}

// ValidateFormats rejects export formats the pipeline cannot write.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		switch f {
		case FormatCSV, FormatJSON, FormatReport, FormatSummary:
		default:
			return fmt.Errorf("%w: %q (supported: csv, json, report, summary)", ErrUnknownFormat, f)
		}
	}
	return nil
}

// ScraperFactory builds the scraper for a platform.
type ScraperFactory func(ctx context.Context, platform string) (scraper.Scraper, error)

// Options wires a Pipeline. Settings and Exporter are required; a nil DB
// disables run history and a nil Artifacts disables snapshots.
type Options struct {
	Settings       *models.Settings
	Logger         logger.Logger
	Artifacts      *artifact_manager.Manager
	Exporter       *export.Exporter
	DB             *db.DB
	Metrics        *metrics.Recorder
	Scrapers       ScraperFactory
	Workers        int
	CleanerOptions []cleaner.Option
}

type Pipeline struct {
	settings  *models.Settings
	log       logger.Logger
	artifacts *artifact_manager.Manager
	exporter  *export.Exporter
	database  *db.DB
	metrics   *metrics.Recorder
	scrapers  ScraperFactory
	workers   int
	processor *Processor
	now       func() time.Time
}

func New(opts Options) *Pipeline {
	p := &Pipeline{
		settings:  opts.Settings,
		log:       opts.Logger,
		artifacts: opts.Artifacts,
		exporter:  opts.Exporter,
		database:  opts.DB,
		metrics:   opts.Metrics,
		scrapers:  opts.Scrapers,
		workers:   opts.Workers,
		now:       time.Now,
	}
	if p.log == nil {
		p.log = logger.NewNop()
	}
	p.log = p.log.Named("pipeline")
	if p.metrics == nil {
		p.metrics = metrics.New()
	}
	if p.workers <= 0 {
		p.workers = defaultWorkers
	}
	if p.scrapers == nil {
		p.scrapers = func(ctx context.Context, platform string) (scraper.Scraper, error) {
			return scraper.New(ctx, platform, p.settings, opts.Logger, scraper.Options{})
		}
	}
	p.processor = NewProcessor(p.settings, p.log, opts.CleanerOptions...)
	return p
}

// Metrics returns the recorder the pipeline reports to.
func (p *Pipeline) Metrics() *metrics.Recorder {
	return p.metrics
}

// run tracks one invocation from start to manifest.
type run struct {
	id             string
	command        string
	appName        string
	platforms      []string
	cfg            models.MineConfig
	started        time.Time
	platformErrors map[string]string
	reused         []string
	batches        []*models.Batch
	files          map[string][]string
}

func (p *Pipeline) startRun(command, appName string, platforms []string, cfg models.MineConfig) *run {
	r := &run{
		command:   command,
		appName:   appName,
		platforms: platforms,
		cfg:       cfg,
		started:   p.now(),
		files:     map[string][]string{},
	}
	if p.database != nil && cfg.RecordRun {
		id, err := p.database.CreateRun(command, appName, platforms, p.exporter.OutputDir(), r.started)
		if err != nil {
			p.log.Warn("Failed to record run start", "error", err)
		} else {
			r.id = id
		}
	}
	p.log.Info("Starting pipeline", "command", command, "app", appName, "platforms", platforms, "run_id", r.id)
	return r
}

// Run mines reviews for cfg.AppName end to end. The manifest is returned
// for every run whose app resolves, failed runs included.
func (p *Pipeline) Run(ctx context.Context, cfg models.MineConfig) (*manifest.RunManifest, error) {
	app, err := p.settings.Catalog.Lookup(cfg.AppName)
	if err != nil {
		return nil, err
	}
	platforms := cfg.Platforms
	if len(platforms) == 0 {
		platforms = []string{scraper.PlatformReddit}
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = 100
	}

	r := p.startRun("mine", app.Name, platforms, cfg)
	scraped, err := p.Scrape(ctx, app, platforms, limit)
	r.platformErrors = scraped.Errors
	r.reused = scraped.Reused
	if err != nil {
		return p.finish(r, err)
	}
	if len(scraped.Batches) == 0 {
		p.log.Error("No reviews scraped, aborting pipeline", "app", app.Name)
		return p.finish(r, ErrNoReviewsScraped)
	}
	if err := ctx.Err(); err != nil {
		return p.finish(r, err)
	}

	r.batches = p.ProcessAll(app.Name, scraped.Batches)
	return p.complete(r)
}

// ProcessInput runs a batch loaded from disk through processing and export
// without scraping.
func (p *Pipeline) ProcessInput(ctx context.Context, in *Input, cfg models.MineConfig) (*manifest.RunManifest, error) {
	r := p.startRun("process", in.AppName, []string{in.Platform}, cfg)
	if len(in.Reviews) == 0 {
		return p.finish(r, ErrNoReviewsScraped)
	}
	if err := ctx.Err(); err != nil {
		return p.finish(r, err)
	}

	scrapedAt := in.ScrapedAt
	if scrapedAt.IsZero() {
		scrapedAt = p.now().UTC()
	}
	r.batches = p.ProcessAll(in.AppName, []ScrapedBatch{{Platform: in.Platform, ScrapedAt: scrapedAt, Reviews: in.Reviews}})
	return p.complete(r)
}

// complete runs the stages after processing: export and run history.
func (p *Pipeline) complete(r *run) (*manifest.RunManifest, error) {
	processed := 0
	for _, b := range r.batches {
		processed += b.TotalProcessed
	}
	if processed == 0 {
		p.log.Error("No reviews processed, aborting pipeline", "app", r.appName)
		return p.finish(r, ErrNoReviewsProcessed)
	}

	formats := r.cfg.Formats
	if len(formats) == 0 {
		formats = DefaultFormats
	}
	files, err := p.Export(r.batches, formats)
	r.files = files
	if err != nil {
		return p.finish(r, err)
	}

	p.record(r)
	return p.finish(r, nil)
}

// finish builds and saves the manifest, closes the run record and writes
// the metrics textfile.
func (p *Pipeline) finish(r *run, runErr error) (*manifest.RunManifest, error) {
	finished := p.now()
	m := manifest.Build(manifest.Input{
		RunID:           r.id,
		AppName:         r.appName,
		Platforms:       r.platforms,
		Started:         r.started,
		Finished:        finished,
		Batches:         r.batches,
		ExportedFiles:   r.files,
		PlatformErrors:  r.platformErrors,
		ReusedSnapshots: r.reused,
		Err:             runErr,
	})

	manifestPath, err := manifest.Save(m, p.exporter.OutputDir(), finished)
	if err != nil {
		p.log.Warn("Failed to save run manifest", "error", err)
	}

	if r.id != "" {
		if manifestPath != "" {
			if err := p.database.InsertRunFiles(r.id, "manifest", []string{manifestPath}); err != nil {
				p.log.Warn("Failed to record manifest", "run_id", r.id, "error", err)
			}
		}
		outcome := db.RunOutcome{
			Success:          m.Success,
			TotalScraped:     m.TotalReviewsScraped,
			TotalProcessed:   m.TotalReviewsProcessed,
			ExecutionSeconds: m.ExecutionTimeSeconds,
			Error:            m.Error,
		}
		if err := p.database.FinishRun(r.id, finished, outcome); err != nil {
			p.log.Warn("Failed to record run outcome", "run_id", r.id, "error", err)
		}
	}

	p.metrics.ObserveExports(r.files)
	p.metrics.Finish(m.Success, finished.Sub(r.started), finished)
	if r.cfg.MetricsFile != "" {
		if err := p.metrics.WriteTextfile(r.cfg.MetricsFile); err != nil {
			p.log.Warn("Failed to write metrics", "path", r.cfg.MetricsFile, "error", err)
		}
	}

	if runErr != nil {
		p.log.Error("Pipeline failed", "app", r.appName, "error", runErr)
	} else {
		p.log.Info("Pipeline completed successfully",
			"app", r.appName,
			"processed", m.TotalReviewsProcessed,
			"scraped", m.TotalReviewsScraped,
			"seconds", fmt.Sprintf("%.2f", m.ExecutionTimeSeconds),
		)
	}
	return m, runErr
}

// ScrapedBatch is the raw output of one platform.
type ScrapedBatch struct {
	Platform  string
	ScrapedAt time.Time
	Reviews   []models.RawReview
}

// ScrapeResult collects every platform of one scrape. Batches follow the
// requested platform order.
type ScrapeResult struct {
	Batches []ScrapedBatch
	Errors  map[string]string
	Reused  []string
}

// Scrape collects reviews from every platform concurrently. A failing
// platform is logged and skipped; platforms that return nothing are dropped.
// Cancelling ctx stops the remaining platforms and returns ctx's error.
func (p *Pipeline) Scrape(ctx context.Context, app models.AppConfig, platforms []string, limit int) (ScrapeResult, error) {
	slots := make([]*ScrapedBatch, len(platforms))
	res := ScrapeResult{Errors: map[string]string{}}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i, platform := range platforms {
		g.Go(func() error {
			batch, reused, err := p.scrapePlatform(gctx, app, platform, limit)
			if err := ctx.Err(); err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				p.log.Error("Error scraping platform", "app", app.Name, "platform", platform, "error", err)
				p.metrics.PlatformFailed(platform)
				res.Errors[platform] = err.Error()
				return nil
			}
			if reused {
				res.Reused = append(res.Reused, platform)
			}
			slots[i] = batch
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		p.log.Warn("Scraping cancelled", "app", app.Name, "error", err)
		return res, err
	}

	for _, b := range slots {
		if b == nil {
			continue
		}
		if len(b.Reviews) == 0 {
			p.log.Warn("No reviews found", "app", app.Name, "platform", b.Platform)
			continue
		}
		res.Batches = append(res.Batches, *b)
	}
	sort.Strings(res.Reused)
	p.log.Info("Completed scraping", "app", app.Name, "batches", len(res.Batches), "failed", len(res.Errors))
	return res, nil
}

func (p *Pipeline) scrapePlatform(ctx context.Context, app models.AppConfig, platform string, limit int) (*ScrapedBatch, bool, error) {
	platform = strings.ToLower(platform)

	if p.artifacts != nil {
		snap, fresh, err := p.artifacts.GetRaw(app.Name, platform)
		if err != nil {
			p.log.Warn("Error checking raw snapshot, scraping fresh", "platform", platform, "error", err)
		}
		if fresh {
			p.log.Info("Fresh raw snapshot found, using it", "platform", platform, "reviews", len(snap.Reviews))
			p.metrics.SnapshotReused()
			reviews := snap.Reviews
			if len(reviews) > limit {
				reviews = reviews[:limit]
			}
			return &ScrapedBatch{Platform: platform, ScrapedAt: snap.ScrapedAt, Reviews: reviews}, true, nil
		}
	}

	s, err := p.scrapers(ctx, platform)
	if err != nil {
		return nil, false, err
	}
	if d, ok := s.(interface{ Info() scraper.Info }); ok {
		info := d.Info()
		p.log.Debug("Scraper ready", "platform", info.Platform,
			"requests_per_minute", info.RateLimit.RequestsPerMinute, "timeout", info.Timeout)
	}
	if err := s.ValidateConfig(app); err != nil {
		return nil, false, err
	}

	p.log.Info("Scraping reviews", "app", app.Name, "platform", platform, "limit", limit)
	start := p.now()
	reviews, err := s.ScrapeReviews(ctx, app, limit)
	if err != nil {
		return nil, false, fmt.Errorf("failed to scrape %s: %w", platform, err)
	}
	p.metrics.ObserveScrape(app.Name, platform, len(reviews), p.now().Sub(start))
	p.log.Info("Scraped reviews", "platform", platform, "count", len(reviews))

	batch := &ScrapedBatch{Platform: platform, ScrapedAt: start.UTC(), Reviews: reviews}
	if p.artifacts != nil && len(reviews) > 0 {
		snap := artifact_manager.RawSnapshot{AppName: app.Name, Platform: platform, ScrapedAt: batch.ScrapedAt, Reviews: reviews}
		if path, err := p.artifacts.SetRaw(snap); err != nil {
			p.log.Warn("Failed to store raw snapshot", "platform", platform, "error", err)
		} else {
			p.log.Debug("Stored raw snapshot", "path", path)
		}
	}
	return batch, false, nil
}

type processJob struct {
	index int
	batch ScrapedBatch
}

type processResult struct {
	index int
	batch *models.Batch
}

// ProcessAll runs every scraped batch through the processor on a pool of
// workers. The result keeps the input order.
func (p *Pipeline) ProcessAll(appName string, scraped []ScrapedBatch) []*models.Batch {
	workerCount := max(min(p.workers, len(scraped)), 1)
	p.log.Info("Starting processing", "batches", len(scraped), "workers", workerCount)

	var wg sync.WaitGroup
	jobs := make(chan processJob, len(scraped))
	results := make(chan processResult, len(scraped))

	for w := 1; w <= workerCount; w++ {
		wg.Add(1)
		go p.worker(w, appName, &wg, jobs, results)
	}

	for i, b := range scraped {
		jobs <- processJob{index: i, batch: b}
	}
	close(jobs)

	wg.Wait()
	close(results)

	batches := make([]*models.Batch, len(scraped))
	for res := range results {
		batches[res.index] = res.batch
	}
	p.log.Info("Completed processing", "batches", len(batches))
	return batches
}

func (p *Pipeline) worker(id int, appName string, wg *sync.WaitGroup, jobs <-chan processJob, results chan<- processResult) {
	defer wg.Done()
	for job := range jobs {
		p.log.Info("Worker started batch", "worker_id", id, "app", appName, "platform", job.batch.Platform)

		start := p.now()
		batch := p.processor.Process(appName, job.batch)
		ps := batch.ProcessingStats
		p.metrics.ObserveProcessing(appName, batch.Platform, metrics.StageCounts{
			Original:     ps.OriginalCount,
			Cleaned:      ps.CleanedCount,
			Deduplicated: ps.DeduplicatedCount,
			Classified:   ps.ClassifiedCount,
			Final:        ps.FinalCount,
		}, p.now().Sub(start))

		if p.artifacts != nil {
			path := p.artifacts.ProcessedPath(appName, batch.Platform)
			if err := export.SaveBatch(path, batch); err != nil {
				p.log.Warn("Failed to store processed batch", "platform", batch.Platform, "error", err)
			}
		}

		p.log.Info("Worker finished batch", "worker_id", id, "platform", batch.Platform,
			"final", ps.FinalCount, "original", ps.OriginalCount)
		results <- processResult{index: job.index, batch: batch}
	}
}

// Export writes batches in each requested format and returns the files
// per format.
func (p *Pipeline) Export(batches []*models.Batch, formats []string) (map[string][]string, error) {
	p.log.Info("Exporting results", "formats", formats)
	files := map[string][]string{}

	for _, format := range formats {
		switch format {
		case FormatCSV:
			paths := []string{}
			for _, b := range batches {
				written, err := p.exporter.WriteBatchCSV(b)
				if err != nil {
					return files, fmt.Errorf("failed to export csv: %w", err)
				}
				paths = append(paths, written...)
			}
			files[FormatCSV] = paths
		case FormatJSON:
			paths := []string{}
			for _, b := range batches {
				written, err := p.exporter.WriteBatchJSON(b)
				if err != nil {
					return files, fmt.Errorf("failed to export json: %w", err)
				}
				paths = append(paths, written)
			}
			files[FormatJSON] = paths
		case FormatReport:
			report, err := p.exporter.WriteReport(batches, "")
			if err != nil {
				return files, fmt.Errorf("failed to export report: %w", err)
			}
			files[FormatReport] = report.All()
		case FormatSummary:
			written, err := p.exporter.WriteSummaryCSV(batches, "")
			if err != nil {
				return files, fmt.Errorf("failed to export summary: %w", err)
			}
			files[FormatSummary] = []string{written}
		default:
			return files, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
		}
	}

	total := 0
	for _, paths := range files {
		total += len(paths)
	}
	p.log.Info("Export completed", "files", total)
	return files, nil
}

// record stores batches, reviews and files in run history. Failures are
// logged; the exports on disk stay authoritative.
func (p *Pipeline) record(r *run) {
	if r.id == "" {
		return
	}
	for _, b := range r.batches {
		if _, err := p.database.InsertRunBatch(r.id, b.Stats()); err != nil {
			p.log.Warn("Failed to record batch", "run_id", r.id, "platform", b.Platform, "error", err)
			continue
		}
		if _, err := p.database.InsertReviews(r.id, b.Reviews); err != nil {
			p.log.Warn("Failed to record reviews", "run_id", r.id, "platform", b.Platform, "error", err)
		}
	}

	kinds := make([]string, 0, len(r.files))
	for kind := range r.files {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		if err := p.database.InsertRunFiles(r.id, kind, r.files[kind]); err != nil {
			p.log.Warn("Failed to record exported files", "run_id", r.id, "kind", kind, "error", err)
		}
	}
}
