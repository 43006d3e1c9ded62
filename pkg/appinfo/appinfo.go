// Package appinfo describes a web app from its landing page. Readability
// pulls the main copy and goquery fills in the head metadata it misses.
package appinfo

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dtnitsch/review-miner/internal/common"
	"github.com/dtnitsch/review-miner/internal/logger"
	"github.com/dtnitsch/review-miner/pkg/analytics"
	"github.com/dtnitsch/review-miner/pkg/fetcher"
	"github.com/go-shiori/go-readability"
)

const (
	maxHeadings = 10
	maxTerms    = 10
)

// PageInfo is what the landing page says about the app.
type PageInfo struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	SiteName    string    `json:"site_name,omitempty"`
	Description string    `json:"description,omitempty"`
	Image       string    `json:"image,omitempty"`
	Headings    []string  `json:"headings,omitempty"`
	TopTerms    []string  `json:"top_terms,omitempty"`
	WordCount   int       `json:"word_count"`
	FetchedAt   time.Time `json:"fetched_at"`
}

type Client struct {
	fetcher *fetcher.Fetcher
	log     logger.Logger
}

func NewClient(f *fetcher.Fetcher, log logger.Logger) *Client {
	if log == nil {
		log = logger.NewNop()
	}
	return &Client{fetcher: f, log: log.Named("appinfo")}
}

// Lookup fetches rawURL and extracts its metadata.
func (c *Client) Lookup(ctx context.Context, rawURL string) (*PageInfo, error) {
	rawURL, err := common.ValidateURL(rawURL)
	if err != nil {
		return nil, err
	}
	body, err := c.fetcher.Get(ctx, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	info, err := Parse(rawURL, body)
	if err != nil {
		return nil, err
	}
	c.log.Debug("page metadata extracted", "url", rawURL, "title", info.Title, "words", info.WordCount)
	return info, nil
}

// Parse extracts metadata from a fetched page. When readability cannot find
// an article the head tags and body text are used directly.
func Parse(rawURL string, body []byte) (*PageInfo, error) {
	pageURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	doc, err := fetcher.ParseHtml(body)
	if err != nil {
		return nil, err
	}

	info := &PageInfo{
		URL:         rawURL,
		Title:       firstNonEmpty(meta(doc, `meta[property="og:title"]`), normalizeText(doc.Find("title").First().Text())),
		SiteName:    meta(doc, `meta[property="og:site_name"]`),
		Description: firstNonEmpty(meta(doc, `meta[property="og:description"]`), meta(doc, `meta[name="description"]`)),
		Image:       meta(doc, `meta[property="og:image"]`),
		FetchedAt:   time.Now().UTC(),
	}

	content := doc.Find("body")
	parser := readability.NewParser()
	article, err := parser.Parse(bytes.NewReader(body), pageURL)
	if err == nil && strings.TrimSpace(article.Content) != "" {
		info.Title = firstNonEmpty(normalizeText(article.Title), info.Title)
		info.SiteName = firstNonEmpty(info.SiteName, article.SiteName)
		info.Description = firstNonEmpty(info.Description, normalizeText(article.Excerpt))
		info.Image = firstNonEmpty(info.Image, article.Image)
		if articleDoc, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content)); err == nil {
			content = articleDoc.Selection
		}
	}

	// Headings come from the full page; readability drops hero sections.
	doc.Find("h1,h2,h3").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if text := normalizeText(s.Text()); text != "" {
			info.Headings = append(info.Headings, text)
		}
		return len(info.Headings) < maxHeadings
	})
	text := content.Text()
	info.WordCount = len(strings.Fields(text))
	info.TopTerms = (&analytics.Analytics{}).TopNWords(text, maxTerms)
	return info, nil
}

func meta(doc *goquery.Document, selector string) string {
	v, _ := doc.Find(selector).First().Attr("content")
	return normalizeText(v)
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
