package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dtnitsch/review-miner/pkg/fetcher"
)

var ErrEmptyQuery = errors.New("search query is empty")

// SearchResult is one app listed on a store search page.
type SearchResult struct {
	PackageID string  `json:"package_id"`
	Title     string  `json:"title"`
	Developer string  `json:"developer,omitempty"`
	Rating    float64 `json:"rating,omitempty"`
	URL       string  `json:"url"`
}

// SearchApps returns up to limit apps from the store search page for query,
// in page order. It is useful for finding the package ID of a new catalog
// entry.
func (s *PlayStoreScraper) SearchApps(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = 10
	}

	pageURL := s.baseURL + "/store/search?" + url.Values{"q": {query}, "c": {"apps"}, "hl": {"en"}, "gl": {"us"}}.Encode()
	body, err := s.fetcher.Get(ctx, pageURL, http.Header{"Accept-Language": {"en-US,en;q=0.9"}})
	if err != nil {
		return nil, fmt.Errorf("failed to search apps: %w", err)
	}
	doc, err := fetcher.ParseHtml(body)
	if err != nil {
		return nil, err
	}

	results := parseSearchResults(doc, limit)
	s.log.Info("Searched Play Store", "query", query, "results", len(results))
	return results, nil
}

// parseSearchResults reads the app links of a search page. Each link holds
// the title, developer and rating as separate text leaves.
func parseSearchResults(doc *goquery.Document, limit int) []SearchResult {
	var results []SearchResult
	seen := map[string]bool{}

	doc.Find(`a[href*="/store/apps/details?id="]`).EachWithBreak(func(_ int, link *goquery.Selection) bool {
		href, _ := link.Attr("href")
		u, err := url.Parse(href)
		if err != nil {
			return true
		}
		id := u.Query().Get("id")
		if id == "" || seen[id] {
			return true
		}

		r := SearchResult{PackageID: id, URL: playStoreURL + "/store/apps/details?id=" + url.QueryEscape(id)}
		var texts []string
		link.Find("*").Each(func(_ int, leaf *goquery.Selection) {
			if leaf.Children().Length() > 0 {
				return
			}
			text := strings.TrimSpace(leaf.Text())
			if text == "" {
				return
			}
			if rating, ok := parseStars(text); ok && r.Rating == 0 {
				r.Rating = rating
				return
			}
			texts = append(texts, text)
		})
		if len(texts) > 0 {
			r.Title = texts[0]
		}
		if len(texts) > 1 {
			r.Developer = texts[1]
		}
		if r.Title == "" {
			r.Title, _ = link.Attr("aria-label")
		}
		if r.Title == "" {
			r.Title = strings.TrimSpace(link.Text())
		}
		if r.Title == "" {
			// links to the same app without a label, such as icons
			return true
		}

		seen[id] = true
		results = append(results, r)
		return len(results) < limit
	})
	return results
}

// parseStars accepts a star rating such as "4.5".
func parseStars(text string) (float64, bool) {
	if !strings.Contains(text, ".") {
		return 0, false
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || v <= 0 || v > 5 {
		return 0, false
	}
	return v, true
}
