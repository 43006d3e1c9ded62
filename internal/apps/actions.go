// Package apps implements the `apps` commands over the app catalog.
package apps

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dtnitsch/review-miner/internal/config"
	"github.com/dtnitsch/review-miner/internal/logger"
	"github.com/dtnitsch/review-miner/internal/ui"
	"github.com/dtnitsch/review-miner/models"
	"github.com/dtnitsch/review-miner/pkg/appinfo"
	"github.com/dtnitsch/review-miner/pkg/caching"
	"github.com/dtnitsch/review-miner/pkg/fetcher"
	"github.com/dtnitsch/review-miner/pkg/scraper"
	"github.com/urfave/cli/v2"
)

const lookupTimeout = 30 * time.Second

func ListAction(c *cli.Context) error {
	settings, err := config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	PrintCatalog(c.App.Writer, settings.Catalog)
	return nil
}

// PrintCatalog renders every app grouped by catalog section.
func PrintCatalog(w io.Writer, catalog *models.Catalog) {
	t := ui.NewTable(w, "Group", "Key", "Name", "Category", "Source")
	count := 0
	for _, g := range catalog.Groups {
		for _, app := range g.Apps {
			t.AppendRow([]any{groupTitle(g.Name), app.Key, app.Name, app.Category, source(app)})
			count++
		}
	}
	t.AppendFooter([]any{"", "", "", "Total", count})
	t.Render()
}

// InfoAction shows an app's catalog entry plus live store or landing page
// metadata. Lookup failures are reported but do not fail the command.
func InfoAction(c *cli.Context) error {
	name := c.Args().First()
	if name == "" {
		return cli.Exit("an app name is required", 1)
	}
	settings, err := config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	app, err := settings.Catalog.Lookup(name)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	w := c.App.Writer
	PrintApp(w, settings.Catalog, app)
	if c.Bool("offline") {
		return nil
	}

	ctx, cancel := context.WithTimeout(c.Context, lookupTimeout)
	defer cancel()

	log := logger.NewNop()
	cache, err := caching.NewCache(settings.Paths.Cache, 24*time.Hour, caching.WithLogger(log))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	switch {
	case app.PackageID != "":
		play := scraper.NewPlayStoreScraper(settings, log, scraper.Options{Cache: cache})
		details, err := play.AppDetails(ctx, app.PackageID)
		if err != nil {
			ui.Warningf(w, "Play Store details unavailable: %v", err)
			return nil
		}
		PrintDetails(w, details)
	case app.URL != "":
		client := appinfo.NewClient(fetcher.NewFetcher(fetcher.Options{
			Timeout:    time.Duration(settings.Scraping.Timeout) * time.Second,
			MaxRetries: settings.Scraping.MaxRetries,
			UserAgents: settings.Scraping.UserAgents,
		}), log)
		info, err := client.Lookup(ctx, app.URL)
		if err != nil {
			ui.Warningf(w, "Landing page unavailable: %v", err)
			return nil
		}
		PrintPageInfo(w, info)
	}
	return nil
}

// SearchAction lists Play Store apps matching the arguments, for finding
// the package ID of a new catalog entry.
func SearchAction(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return cli.Exit("a search query is required", 1)
	}
	settings, err := config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	ctx, cancel := context.WithTimeout(c.Context, lookupTimeout)
	defer cancel()

	play := scraper.NewPlayStoreScraper(settings, logger.NewNop(), scraper.Options{})
	results, err := play.SearchApps(ctx, query, c.Int("limit"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("Search failed: %v", err), 1)
	}
	PrintSearchResults(c.App.Writer, results)
	return nil
}

func PrintSearchResults(w io.Writer, results []scraper.SearchResult) {
	if len(results) == 0 {
		ui.Warningf(w, "No apps found")
		return
	}
	t := ui.NewTable(w, "Package", "Title", "Developer", "Rating")
	for _, r := range results {
		rating := "-"
		if r.Rating > 0 {
			rating = fmt.Sprintf("%.1f", r.Rating)
		}
		t.AppendRow([]any{r.PackageID, r.Title, r.Developer, rating})
	}
	t.Render()
	_, _ = fmt.Fprintln(w)
	ui.Infof(w, "Tip: add a package to the catalog's package_id to mine its Play Store reviews")
}

func PrintApp(w io.Writer, catalog *models.Catalog, app models.AppConfig) {
	ui.Header(w, app.Name)
	ui.Field(w, "Key", app.Key)
	ui.Field(w, "Category", app.Category)
	if app.PackageID != "" {
		ui.Field(w, "Package", app.PackageID)
	}
	if app.URL != "" {
		ui.Field(w, "URL", app.URL)
	}
	if len(app.Platforms) > 0 {
		ui.Field(w, "Platforms", strings.Join(app.Platforms, ", "))
	}
	ui.Field(w, "Keywords", strings.Join(app.Keywords, ", "))
	if len(app.Competitors) > 0 {
		ui.Field(w, "Competitors", strings.Join(app.Competitors, ", "))
	}
	subreddits := app.Subreddits
	if len(subreddits) == 0 {
		subreddits = catalog.SubredditsFor(app.Category)
	}
	if len(subreddits) > 0 {
		ui.Field(w, "Subreddits", "r/"+strings.Join(subreddits, ", r/"))
	}
}

func PrintDetails(w io.Writer, d *scraper.AppDetails) {
	_, _ = fmt.Fprintln(w)
	ui.Infof(w, "Google Play")
	ui.Field(w, "Title", d.Title)
	ui.Field(w, "Developer", d.Developer)
	ui.Field(w, "Genre", d.Genre)
	if d.Rating > 0 {
		ui.Field(w, "Rating", fmt.Sprintf("%.1f/5", d.Rating))
	}
	if d.Installs != "" {
		ui.Field(w, "Installs", d.Installs)
	}
	ui.Field(w, "Listing", d.URL)
	if d.Description != "" {
		ui.Field(w, "Description", models.Truncate(d.Description, 200))
	}
}

func PrintPageInfo(w io.Writer, info *appinfo.PageInfo) {
	_, _ = fmt.Fprintln(w)
	ui.Infof(w, "Landing page")
	ui.Field(w, "Title", info.Title)
	if info.SiteName != "" {
		ui.Field(w, "Site", info.SiteName)
	}
	if info.Description != "" {
		ui.Field(w, "Description", models.Truncate(info.Description, 200))
	}
	if len(info.Headings) > 0 {
		ui.Field(w, "Headings", strings.Join(info.Headings, " | "))
	}
	if len(info.TopTerms) > 0 {
		ui.Field(w, "Top terms", strings.Join(info.TopTerms, ", "))
	}
	ui.Field(w, "Words", info.WordCount)
}

func groupTitle(name string) string {
	words := strings.Fields(strings.ReplaceAll(name, "_", " "))
	for i, word := range words {
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}

// source names where reviews for the app come from.
func source(app models.AppConfig) string {
	switch {
	case app.PackageID != "":
		return app.PackageID
	case app.URL != "":
		return app.URL
	default:
		return "reddit"
	}
}
