package main

import (
	"fmt"
	"os"

	"github.com/dtnitsch/review-miner/internal/apps"
	"github.com/dtnitsch/review-miner/internal/db"
	"github.com/dtnitsch/review-miner/internal/mine"
	"github.com/dtnitsch/review-miner/internal/ui"
	"github.com/dtnitsch/review-miner/pkg/help"
	"github.com/dtnitsch/review-miner/pkg/scraper"
	"github.com/urfave/cli/v2"
)

var version = "dev"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to a YAML config file (default: $REVIEW_MINER_CONFIG)",
	}
}

func pipelineFlags() []cli.Flag {
	return []cli.Flag{
		configFlag(),
		&cli.StringSliceFlag{
			Name:  "formats",
			Usage: "Export formats: csv, json, report, summary (comma-separated)",
			Value: cli.NewStringSlice(mine.DefaultFormats...),
		},
		&cli.StringFlag{
			Name:  "output-dir",
			Usage: "Directory for exported files (default: paths.exports from config)",
		},
		&cli.IntFlag{
			Name:  "workers",
			Usage: "Number of batches processed in parallel",
			Value: 4,
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
			Value: "info",
		},
		&cli.BoolFlag{
			Name:    "quiet",
			Aliases: []string{"q"},
			Usage:   "Only log to the log file",
		},
		&cli.StringFlag{
			Name:  "metrics-file",
			Usage: "Write Prometheus metrics for the run to this textfile",
		},
		&cli.BoolFlag{
			Name:  "no-db",
			Usage: "Do not record the run in the history database",
		},
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "review-miner",
		Usage:   "Scrape, clean, classify and export app reviews from Reddit and Google Play",
		Version: version,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "Disable colored output",
			},
		},
		Before: func(c *cli.Context) error {
			ui.DisableColors(c.Bool("no-color"))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "mine",
				Usage:     "Run the full pipeline for one app",
				ArgsUsage: "<app>",
				Flags: append(pipelineFlags(),
					&cli.StringSliceFlag{
						Name:    "platforms",
						Aliases: []string{"p"},
						Usage:   fmt.Sprintf("Platforms to scrape: %v (comma-separated)", scraper.Platforms()),
						Value:   cli.NewStringSlice(scraper.PlatformReddit),
					},
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"l"},
						Usage:   "Maximum reviews per platform",
						Value:   100,
					},
					&cli.DurationFlag{
						Name:  "max-age",
						Usage: "Reuse raw snapshots younger than this instead of scraping (0 disables)",
					},
					&cli.BoolFlag{
						Name:  "list-apps",
						Usage: "List available apps and exit",
					},
				),
				Action: mine.MineAction,
			},
			{
				Name:      "process",
				Usage:     "Reprocess an exported batch or raw review file without scraping",
				ArgsUsage: "<file.json>",
				Flags: append(pipelineFlags(),
					&cli.StringFlag{
						Name:  "app",
						Usage: "App name (default: taken from the file)",
					},
					&cli.StringFlag{
						Name:  "platform",
						Usage: "Platform (default: taken from the file)",
					},
				),
				Action: mine.ProcessAction,
			},
			{
				Name:  "apps",
				Usage: "Browse the app catalog",
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "List available apps",
						Flags:  []cli.Flag{configFlag()},
						Action: apps.ListAction,
					},
					{
						Name:      "info",
						Usage:     "Show an app's catalog entry and store or landing page details",
						ArgsUsage: "<app>",
						Flags: []cli.Flag{
							configFlag(),
							&cli.BoolFlag{
								Name:  "offline",
								Usage: "Skip fetching live details",
							},
						},
						Action: apps.InfoAction,
					},
					{
						Name:      "search",
						Usage:     "Search the Play Store for apps",
						ArgsUsage: "<query>",
						Flags: []cli.Flag{
							configFlag(),
							&cli.IntFlag{
								Name:    "limit",
								Aliases: []string{"l"},
								Usage:   "Maximum number of results",
								Value:   10,
							},
						},
						Action: apps.SearchAction,
					},
				},
			},
			{
				Name:  "db",
				Usage: "Query the run history database",
				Subcommands: []*cli.Command{
					{
						Name:  "runs",
						Usage: "List recorded runs",
						Flags: []cli.Flag{
							configFlag(),
							&cli.StringFlag{
								Name:  "app",
								Usage: "Only runs for this app",
							},
							&cli.IntFlag{
								Name:  "limit",
								Usage: "Maximum number of runs to show",
								Value: 20,
							},
						},
						Action: db.RunsAction,
					},
					{
						Name:      "run",
						Usage:     "Show details for a run (default: latest)",
						ArgsUsage: "[run-id]",
						Flags:     []cli.Flag{configFlag()},
						Action:    db.RunAction,
					},
					{
						Name:      "reviews",
						Usage:     "List stored reviews for a run (default: latest)",
						ArgsUsage: "[run-id]",
						Flags: []cli.Flag{
							configFlag(),
							&cli.StringFlag{
								Name:  "category",
								Usage: "Filter by primary category",
							},
							&cli.StringFlag{
								Name:  "sentiment",
								Usage: "Filter by sentiment: positive, negative, neutral",
							},
							&cli.StringFlag{
								Name:  "platform",
								Usage: "Filter by platform",
							},
							&cli.BoolFlag{
								Name:  "high-quality",
								Usage: "Only high-quality reviews",
							},
							&cli.IntFlag{
								Name:  "limit",
								Usage: "Maximum number of reviews to show",
								Value: 50,
							},
							&cli.BoolFlag{
								Name:  "json",
								Usage: "Print reviews as JSON",
							},
							&cli.StringFlag{
								Name:  "fields",
								Usage: "With --json, only these comma-separated fields (e.g. review_id,sentiment,content)",
							},
						},
						Action: db.ReviewsAction,
					},
				},
			},
			{
				Name:  "quickstart",
				Usage: "Print a quick start guide",
				Action: func(c *cli.Context) error {
					_, err := fmt.Fprint(c.App.Writer, help.QuickstartYAML)
					return err
				},
			},
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		ui.Errorf(os.Stderr, "%v", err)
		os.Exit(1)
	}
}
