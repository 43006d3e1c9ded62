package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dtnitsch/review-miner/internal/logger"
	"github.com/dtnitsch/review-miner/models"
	"github.com/dtnitsch/review-miner/pkg/caching"
	"github.com/dtnitsch/review-miner/pkg/fetcher"
)

const (
	playStoreURL = "https://play.google.com"

	reviewsRPC     = "UsvDTd"
	sortNewest     = 2
	maxPageSize    = 200
	responsePrefix = ")]}'"
)

// PlayStoreScraper pages through an app's newest Play Store reviews using
// the store's batchexecute endpoint.
type PlayStoreScraper struct {
	Base
	baseURL string
	cache   *caching.Cache
}

func NewPlayStoreScraper(settings *models.Settings, log logger.Logger, opts Options) *PlayStoreScraper {
	baseURL := playStoreURL
	if opts.PlayStoreBaseURL != "" {
		baseURL = strings.TrimRight(opts.PlayStoreBaseURL, "/")
	}
	return &PlayStoreScraper{
		Base:    newBase(PlatformPlayStore, settings, log, opts.Fetcher),
		baseURL: baseURL,
		cache:   opts.Cache,
	}
}

func (s *PlayStoreScraper) ValidateConfig(app models.AppConfig) error {
	if app.PackageID == "" || app.Name == "" {
		return fmt.Errorf("%w: playstore needs a package_id and name for %q", ErrInvalidApp, app.Key)
	}
	return nil
}

func (s *PlayStoreScraper) ScrapeReviews(ctx context.Context, app models.AppConfig, limit int) ([]models.RawReview, error) {
	if err := s.ValidateConfig(app); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []models.RawReview{}, nil
	}

	details, err := s.AppDetails(ctx, app.PackageID)
	if err != nil {
		s.log.Warn("Could not load app details", "package_id", app.PackageID, "error", err)
		details = &AppDetails{PackageID: app.PackageID}
	}

	var reviews []models.RawReview
	token := ""
	for len(reviews) < limit {
		count := min(maxPageSize, limit-len(reviews))
		page, next, err := s.fetchPage(ctx, app.PackageID, count, token)
		if err != nil {
			if len(reviews) == 0 {
				return nil, fmt.Errorf("failed to scrape play store reviews for %s: %w", app.PackageID, err)
			}
			s.log.Error("Error in batch scraping", "package_id", app.PackageID, "error", err)
			break
		}
		if len(page) == 0 {
			break
		}
		for _, pr := range page {
			reviews = append(reviews, s.toRawReview(app, pr, details))
		}
		if next == "" {
			break
		}
		token = next
	}

	reviews = dedupeAndTrim(reviews, limit)
	s.log.Info("Scraped Play Store reviews", "app", app.Name, "count", len(reviews))
	return reviews, nil
}

// playReview holds the fields read from one batchexecute review entry.
type playReview struct {
	ReviewID      string  `json:"reviewId"`
	UserName      string  `json:"userName"`
	Content       string  `json:"content"`
	Score         float64 `json:"score"`
	ThumbsUpCount float64 `json:"thumbsUpCount"`
	AppVersion    string  `json:"appVersion,omitempty"`
	At            int64   `json:"at"`
	ReplyContent  string  `json:"replyContent,omitempty"`
}

func (s *PlayStoreScraper) fetchPage(ctx context.Context, packageID string, count int, token string) ([]playReview, string, error) {
	freq, err := reviewsRequest(packageID, count, token)
	if err != nil {
		return nil, "", err
	}

	endpoint := s.baseURL + "/_/PlayStoreUi/data/batchexecute?hl=en&gl=us"
	body, err := s.fetcher.PostForm(ctx, endpoint, url.Values{"f.req": {freq}}, nil)
	if err != nil {
		return nil, "", err
	}
	return parseReviewsResponse(body)
}

// reviewsRequest builds the f.req payload for one page of newest reviews.
func reviewsRequest(packageID string, count int, token string) (string, error) {
	var tok any
	if token != "" {
		tok = token
	}
	inner, err := json.Marshal([]any{
		nil, nil,
		[]any{2, sortNewest, []any{count, nil, tok}, nil, []any{nil, nil}},
		[]any{packageID, 7},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode reviews request: %w", err)
	}
	outer, err := json.Marshal([]any{[]any{[]any{reviewsRPC, string(inner), nil, "generic"}}})
	if err != nil {
		return "", fmt.Errorf("failed to encode reviews request: %w", err)
	}
	return string(outer), nil
}

// parseReviewsResponse decodes a batchexecute envelope. The reviews payload
// is itself a JSON string at [0][2]; reviews sit at its [0] and the next
// page token at [-2][-1].
func parseReviewsResponse(body []byte) ([]playReview, string, error) {
	body = bytes.TrimSpace(body)
	body = bytes.TrimSpace(bytes.TrimPrefix(body, []byte(responsePrefix)))

	var envelope []any
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, "", fmt.Errorf("failed to decode batchexecute response: %w", err)
	}

	raw, ok := jsonAt(envelope, 0, 2).(string)
	if !ok {
		return nil, "", nil
	}
	var payload []any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, "", fmt.Errorf("failed to decode reviews payload: %w", err)
	}

	entries, _ := jsonAt(payload, 0).([]any)
	reviews := make([]playReview, 0, len(entries))
	for _, e := range entries {
		id := jsonString(e, 0)
		if id == "" {
			continue
		}
		reviews = append(reviews, playReview{
			ReviewID:      id,
			UserName:      jsonString(e, 1, 0),
			Score:         jsonNumber(e, 2),
			Content:       jsonString(e, 4),
			At:            int64(jsonNumber(e, 5, 0)),
			ThumbsUpCount: jsonNumber(e, 6),
			ReplyContent:  jsonString(e, 7, 1),
			AppVersion:    jsonString(e, 10),
		})
	}

	token, _ := jsonAt(payload, -2, -1).(string)
	return reviews, token, nil
}

func (s *PlayStoreScraper) toRawReview(app models.AppConfig, pr playReview, details *AppDetails) models.RawReview {
	r := s.newReview(app)
	r.ReviewID = "playstore_" + pr.ReviewID
	r.AppID = app.PackageID
	r.UserID = pr.ReviewID
	r.Username = pr.UserName
	if r.Username == "" {
		r.Username = "Anonymous"
	}
	r.Rating = models.NumberOf(pr.Score)
	r.Content = pr.Content
	if pr.At > 0 {
		r.ReviewDate = time.Unix(pr.At, 0).UTC().Format(time.RFC3339)
	}
	r.HelpfulCount = models.NumberOf(pr.ThumbsUpCount)
	r.ReplyCount = models.NumberOf(0)
	r.Verified = true
	r.Version = pr.AppVersion
	r.Language = "en"
	r.Country = "us"
	r.SourceURL = playStoreURL + "/store/apps/details?id=" + url.QueryEscape(app.PackageID)
	r.RawData = map[string]any{
		"play_store_data": pr,
		"app_info": map[string]any{
			"title":     details.Title,
			"developer": details.Developer,
			"category":  details.Genre,
			"rating":    details.Rating,
			"installs":  details.Installs,
		},
	}
	return r
}

// AppDetails is the store listing metadata for an app.
type AppDetails struct {
	PackageID   string    `json:"package_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Developer   string    `json:"developer"`
	Genre       string    `json:"category"`
	Rating      float64   `json:"rating"`
	Installs    string    `json:"installs"`
	URL         string    `json:"url"`
	ScrapedAt   time.Time `json:"scraped_at"`
}

// AppDetails loads the store listing page for packageID, through the cache
// when one is configured.
func (s *PlayStoreScraper) AppDetails(ctx context.Context, packageID string) (*AppDetails, error) {
	pageURL := s.baseURL + "/store/apps/details?" + url.Values{"id": {packageID}, "hl": {"en"}, "gl": {"us"}}.Encode()

	body, err := s.cache.Fetch(pageURL, func() ([]byte, error) {
		return s.fetcher.Get(ctx, pageURL, http.Header{"Accept-Language": {"en-US,en;q=0.9"}})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch app details: %w", err)
	}

	doc, err := fetcher.ParseHtml(body)
	if err != nil {
		return nil, err
	}
	d := parseAppDetails(doc)
	d.PackageID = packageID
	d.URL = playStoreURL + "/store/apps/details?id=" + url.QueryEscape(packageID)
	d.ScrapedAt = s.now().UTC()
	return d, nil
}

func parseAppDetails(doc *goquery.Document) *AppDetails {
	d := &AppDetails{}

	d.Title = metaContent(doc, `meta[property="og:title"]`)
	d.Title = strings.TrimSpace(strings.TrimSuffix(d.Title, " - Apps on Google Play"))
	if d.Title == "" {
		d.Title = strings.TrimSpace(doc.Find("h1").First().Text())
	}

	d.Description = metaContent(doc, `meta[name="description"]`)
	if d.Description == "" {
		d.Description = metaContent(doc, `meta[property="og:description"]`)
	}

	d.Developer = strings.TrimSpace(doc.Find(`a[href*="/store/apps/dev"]`).First().Text())
	d.Genre = strings.TrimSpace(doc.Find(`a[itemprop="genre"], a[href*="/store/apps/category/"]`).First().Text())

	if v := metaContent(doc, `meta[itemprop="ratingValue"]`); v != "" {
		d.Rating, _ = strconv.ParseFloat(v, 64)
	} else if label, ok := doc.Find(`[aria-label^="Rated "]`).First().Attr("aria-label"); ok {
		fields := strings.Fields(label)
		if len(fields) > 1 {
			d.Rating, _ = strconv.ParseFloat(fields[1], 64)
		}
	}

	doc.Find("div").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if sel.Children().Length() == 0 && strings.TrimSpace(sel.Text()) == "Downloads" {
			d.Installs = strings.TrimSpace(sel.Prev().Text())
			return false
		}
		return true
	})
	return d
}

func metaContent(doc *goquery.Document, selector string) string {
	v, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(v)
}

// jsonAt walks nested arrays by index. Negative indexes count from the end.
// It returns nil when the path does not exist.
func jsonAt(v any, path ...int) any {
	for _, i := range path {
		arr, ok := v.([]any)
		if !ok {
			return nil
		}
		if i < 0 {
			i += len(arr)
		}
		if i < 0 || i >= len(arr) {
			return nil
		}
		v = arr[i]
	}
	return v
}

func jsonString(v any, path ...int) string {
	s, _ := jsonAt(v, path...).(string)
	return s
}

func jsonNumber(v any, path ...int) float64 {
	f, _ := jsonAt(v, path...).(float64)
	return f
}
