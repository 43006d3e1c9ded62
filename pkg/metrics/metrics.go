// Package metrics collects per-run pipeline counters and writes them in the
// Prometheus text format for node_exporter's textfile collector.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var durationBuckets = []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}

// Recorder holds the metrics of one pipeline run. Each Recorder owns its
// registry, so several can coexist in one process.
type Recorder struct {
	registry *prometheus.Registry

	reviewsScraped   *prometheus.CounterVec
	reviewsProcessed *prometheus.CounterVec
	stageDropped     *prometheus.CounterVec
	platformErrors   *prometheus.CounterVec
	snapshotReuses   prometheus.Counter
	exportedFiles    *prometheus.CounterVec
	scrapeDuration   *prometheus.HistogramVec
	processDuration  prometheus.Histogram
	runDuration      prometheus.Gauge
	runSuccess       prometheus.Gauge
	lastRun          prometheus.Gauge
}

// New creates a Recorder with every metric registered.
func New() *Recorder {
	r := &Recorder{registry: prometheus.NewRegistry()}

	r.reviewsScraped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "review_miner_reviews_scraped_total",
		Help: "Raw reviews collected, by platform",
	}, []string{"app", "platform"})
	r.reviewsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "review_miner_reviews_processed_total",
		Help: "Reviews that survived cleaning, dedup and classification",
	}, []string{"app", "platform"})
	r.stageDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "review_miner_reviews_dropped_total",
		Help: "Reviews removed by a processing stage",
	}, []string{"stage"})
	r.platformErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "review_miner_platform_errors_total",
		Help: "Platforms that failed to scrape",
	}, []string{"platform"})
	r.snapshotReuses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "review_miner_snapshot_reuses_total",
		Help: "Platforms served from a fresh raw snapshot",
	})
	r.exportedFiles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "review_miner_exported_files_total",
		Help: "Files written, by export format",
	}, []string{"format"})
	r.scrapeDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "review_miner_scrape_seconds",
		Help:    "Time spent scraping one platform",
		Buckets: durationBuckets,
	}, []string{"platform"})
	r.processDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "review_miner_process_seconds",
		Help:    "Time spent processing one batch",
		Buckets: durationBuckets,
	})
	r.runDuration = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "review_miner_run_duration_seconds",
		Help: "Wall time of the last run",
	})
	r.runSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "review_miner_run_success",
		Help: "1 if the last run succeeded",
	})
	r.lastRun = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "review_miner_last_run_timestamp_seconds",
		Help: "Unix time the last run finished",
	})

	r.registry.MustRegister(
		r.reviewsScraped, r.reviewsProcessed, r.stageDropped, r.platformErrors,
		r.snapshotReuses, r.exportedFiles,
		r.scrapeDuration, r.processDuration,
		r.runDuration, r.runSuccess, r.lastRun,
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveScrape records one platform scrape.
func (r *Recorder) ObserveScrape(app, platform string, reviews int, took time.Duration) {
	r.reviewsScraped.WithLabelValues(app, platform).Add(float64(reviews))
	r.scrapeDuration.WithLabelValues(platform).Observe(took.Seconds())
}

// PlatformFailed counts a platform that was skipped.
func (r *Recorder) PlatformFailed(platform string) {
	r.platformErrors.WithLabelValues(platform).Inc()
}

// SnapshotReused counts a scrape served from disk.
func (r *Recorder) SnapshotReused() {
	r.snapshotReuses.Inc()
}

// StageCounts are the review counts after each processing stage.
type StageCounts struct {
	Original, Cleaned, Deduplicated, Classified, Final int
}

// ObserveProcessing records one processed batch and how many reviews each
// stage removed.
func (r *Recorder) ObserveProcessing(app, platform string, counts StageCounts, took time.Duration) {
	r.reviewsProcessed.WithLabelValues(app, platform).Add(float64(counts.Final))
	r.stageDropped.WithLabelValues("clean").Add(float64(max(counts.Original-counts.Cleaned, 0)))
	r.stageDropped.WithLabelValues("dedup").Add(float64(max(counts.Cleaned-counts.Deduplicated, 0)))
	r.stageDropped.WithLabelValues("classify").Add(float64(max(counts.Deduplicated-counts.Final, 0)))
	r.processDuration.Observe(took.Seconds())
}

// ObserveExports counts written files per format.
func (r *Recorder) ObserveExports(files map[string][]string) {
	for format, paths := range files {
		r.exportedFiles.WithLabelValues(format).Add(float64(len(paths)))
	}
}

// Finish records the run outcome.
func (r *Recorder) Finish(success bool, took time.Duration, at time.Time) {
	r.runDuration.Set(took.Seconds())
	if success {
		r.runSuccess.Set(1)
	} else {
		r.runSuccess.Set(0)
	}
	r.lastRun.Set(float64(at.Unix()))
}

// WriteTextfile writes every metric to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create metrics directory: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
