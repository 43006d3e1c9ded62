package mine

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"time"

	"github.com/dtnitsch/review-miner/internal/apps"
	"github.com/dtnitsch/review-miner/internal/common"
	"github.com/dtnitsch/review-miner/internal/config"
	"github.com/dtnitsch/review-miner/internal/logger"
	"github.com/dtnitsch/review-miner/internal/ui"
	"github.com/dtnitsch/review-miner/models"
	"github.com/dtnitsch/review-miner/pkg/artifact_manager"
	"github.com/dtnitsch/review-miner/pkg/caching"
	"github.com/dtnitsch/review-miner/pkg/db"
	"github.com/dtnitsch/review-miner/pkg/export"
	"github.com/dtnitsch/review-miner/pkg/manifest"
	"github.com/dtnitsch/review-miner/pkg/scraper"
	"github.com/urfave/cli/v2"
)

const detailsCacheTTL = 24 * time.Hour

// MineAction runs the full pipeline for the app named in the first argument.
func MineAction(c *cli.Context) error {
	settings, err := config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to initialize review miner: %v", err), 1)
	}

	if c.Bool("list-apps") {
		apps.PrintCatalog(c.App.Writer, settings.Catalog)
		return nil
	}

	appName := c.Args().First()
	if appName == "" {
		return cli.Exit("an app name is required (see 'review-miner mine --list-apps')", 1)
	}

	cfg, err := mineConfig(c, settings, appName)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	log, err := newLogger(c, settings)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to initialize review miner: %v", err), 1)
	}
	defer func() { _ = log.Close() }()

	p, closeFn, err := setup(settings, log, cfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to initialize review miner: %v", err), 1)
	}
	defer closeFn()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	m, err := p.Run(ctx, cfg)
	return report(c.App.Writer, m, err)
}

// ProcessAction reprocesses a batch or raw review file without scraping.
func ProcessAction(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return cli.Exit("an input file is required", 1)
	}

	settings, err := config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to initialize review miner: %v", err), 1)
	}

	in, err := LoadInput(path)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	appName := c.String("app")
	if appName != "" {
		// Catalog names win so reprocessed runs group with mined ones.
		if app, err := settings.Catalog.Lookup(appName); err == nil {
			appName = app.Name
		}
	}
	if err := in.Override(appName, c.String("platform")); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	cfg, err := mineConfig(c, settings, in.AppName)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	cfg.Platforms = []string{in.Platform}
	cfg.MaxAge = 0

	log, err := newLogger(c, settings)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to initialize review miner: %v", err), 1)
	}
	defer func() { _ = log.Close() }()

	p, closeFn, err := setup(settings, log, cfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to initialize review miner: %v", err), 1)
	}
	defer closeFn()

	m, err := p.ProcessInput(c.Context, in, cfg)
	return report(c.App.Writer, m, err)
}

func mineConfig(c *cli.Context, settings *models.Settings, appName string) (models.MineConfig, error) {
	formats := common.SplitList(c.StringSlice("formats")...)
	if len(formats) == 0 {
		formats = DefaultFormats
	}
	if err := ValidateFormats(formats); err != nil {
		return models.MineConfig{}, err
	}

	// Unknown platforms are not rejected here; the run skips them like any
	// other failing platform.
	platforms := common.SplitList(c.StringSlice("platforms")...)

	outputDir := c.String("output-dir")
	if outputDir == "" {
		outputDir = settings.Paths.Exports
	}

	return models.MineConfig{
		AppName:     appName,
		Platforms:   platforms,
		Limit:       c.Int("limit"),
		Formats:     formats,
		OutputDir:   outputDir,
		WorkerCount: c.Int("workers"),
		MaxAge:      c.Duration("max-age"),
		MetricsFile: c.String("metrics-file"),
		RecordRun:   !c.Bool("no-db"),
	}, nil
}

func newLogger(c *cli.Context, settings *models.Settings) (logger.Logger, error) {
	level := settings.Logging.Level
	if c.IsSet("log-level") || level == "" {
		level = c.String("log-level")
	}
	return logger.New(logger.Config{
		Level: level,
		File:  settings.Logging.File,
		Quiet: c.Bool("quiet"),
	})
}

// setup wires the pipeline's collaborators. The returned func releases
// the database.
func setup(settings *models.Settings, log logger.Logger, cfg models.MineConfig) (*Pipeline, func(), error) {
	artifacts, err := artifact_manager.NewManager(settings.Paths, cfg.MaxAge)
	if err != nil {
		return nil, nil, err
	}
	exporter, err := export.New(cfg.OutputDir, settings.Export, log)
	if err != nil {
		return nil, nil, err
	}
	cache, err := caching.NewCache(settings.Paths.Cache, detailsCacheTTL, caching.WithLogger(log))
	if err != nil {
		return nil, nil, err
	}

	var database *db.DB
	closeFn := func() {}
	if cfg.RecordRun {
		database, err = db.Open(settings.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		closeFn = func() { _ = database.Close() }
	}

	p := New(Options{
		Settings:  settings,
		Logger:    log,
		Artifacts: artifacts,
		Exporter:  exporter,
		DB:        database,
		Workers:   cfg.WorkerCount,
		Scrapers: func(ctx context.Context, platform string) (scraper.Scraper, error) {
			return scraper.New(ctx, platform, settings, log, scraper.Options{Cache: cache})
		},
	})
	return p, closeFn, nil
}

// report prints the run summary and converts a failure into exit code 1.
func report(w io.Writer, m *manifest.RunManifest, runErr error) error {
	if runErr != nil {
		_, _ = fmt.Fprintln(w)
		ui.Errorf(w, "Pipeline failed: %v", runErr)
		if m != nil {
			printPlatformErrors(w, m)
		}
		return cli.Exit("", 1)
	}

	_, _ = fmt.Fprintln(w)
	ui.Successf(w, "Pipeline completed successfully!")
	ui.Field(w, "App", m.AppName)
	if m.RunID != "" {
		ui.Field(w, "Run", m.RunID)
	}
	ui.Field(w, "Reviews processed", fmt.Sprintf("%d/%d", m.TotalReviewsProcessed, m.TotalReviewsScraped))
	ui.Field(w, "Execution time", fmt.Sprintf("%.2f seconds", m.ExecutionTimeSeconds))
	ui.Field(w, "Files created", m.FileCount())
	if len(m.ReusedSnapshots) > 0 {
		ui.Infof(w, "Reused raw snapshots for: %v", m.ReusedSnapshots)
	}
	printPlatformErrors(w, m)

	formats := make([]string, 0, len(m.ExportedFiles))
	for format := range m.ExportedFiles {
		formats = append(formats, format)
	}
	sort.Strings(formats)
	for _, format := range formats {
		for _, path := range m.ExportedFiles[format] {
			_, _ = ui.Dim.Fprintf(w, "  %-7s %s\n", format, filepath.ToSlash(path))
		}
	}
	return nil
}

func printPlatformErrors(w io.Writer, m *manifest.RunManifest) {
	platforms := make([]string, 0, len(m.PlatformErrors))
	for platform := range m.PlatformErrors {
		platforms = append(platforms, platform)
	}
	sort.Strings(platforms)
	for _, platform := range platforms {
		ui.Warningf(w, "%s skipped: %s", platform, m.PlatformErrors[platform])
	}
}
