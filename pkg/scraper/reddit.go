package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cloudflare/ahocorasick"
	"github.com/dtnitsch/review-miner/internal/logger"
	"github.com/dtnitsch/review-miner/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	redditPublicURL = "https://www.reddit.com"
	redditOAuthURL  = "https://oauth.reddit.com"
	redditTokenURL  = "https://www.reddit.com/api/v1/access_token"

	commentsPerPost = 5
	deletedUser     = "deleted"
)

var (
	simplePositiveWords = []string{"good", "great", "excellent", "amazing", "love", "best", "perfect", "awesome", "fantastic"}
	simpleNegativeWords = []string{"bad", "terrible", "awful", "hate", "worst", "horrible", "disgusting", "useless", "broken"}
)

// RedditScraper collects posts and comments that mention an app. Reddit has
// no star ratings, so ratings are derived from a simple sentiment score.
type RedditScraper struct {
	Base
	baseURL       string
	authenticated bool
	catalog       *models.Catalog
}

func NewRedditScraper(ctx context.Context, settings *models.Settings, log logger.Logger, opts Options) *RedditScraper {
	fopts := opts.Fetcher
	if ua := settings.Reddit.UserAgent; ua != "" && fopts.UserAgents == nil {
		fopts.UserAgents = []string{ua}
	}

	baseURL := redditPublicURL
	authenticated := false
	if settings.Reddit.ClientID != "" && settings.Reddit.ClientSecret != "" && fopts.Client == nil {
		fopts.Client = oauthClient(ctx, settings, opts.RedditTokenURL)
		baseURL = redditOAuthURL
		authenticated = true
	}
	if opts.RedditBaseURL != "" {
		baseURL = strings.TrimRight(opts.RedditBaseURL, "/")
	}

	s := &RedditScraper{
		Base:          newBase(PlatformReddit, settings, log, fopts),
		baseURL:       baseURL,
		authenticated: authenticated,
		catalog:       settings.Catalog,
	}
	if s.catalog == nil {
		s.catalog = models.DefaultCatalog()
	}
	s.log.Info("Reddit scraper ready", "authenticated", authenticated, "base_url", baseURL)
	return s
}

// oauthClient returns an HTTP client that authenticates with app-only
// client credentials and refreshes its token as needed.
func oauthClient(ctx context.Context, settings *models.Settings, tokenURL string) *http.Client {
	if tokenURL == "" {
		tokenURL = redditTokenURL
	}
	timeout := time.Duration(settings.Scraping.Timeout) * time.Second

	base := &http.Client{
		Timeout:   timeout,
		Transport: &userAgentTransport{agent: settings.Reddit.UserAgent, next: http.DefaultTransport},
	}
	cfg := clientcredentials.Config{
		ClientID:     settings.Reddit.ClientID,
		ClientSecret: settings.Reddit.ClientSecret,
		TokenURL:     tokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	client := cfg.Client(context.WithValue(ctx, oauth2.HTTPClient, base))
	client.Timeout = timeout
	return client
}

type userAgentTransport struct {
	agent string
	next  http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.agent != "" && req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.agent)
	}
	return t.next.RoundTrip(req)
}

func (s *RedditScraper) ValidateConfig(app models.AppConfig) error {
	if app.Name == "" || len(app.Keywords) == 0 {
		return fmt.Errorf("%w: reddit needs a name and keywords for %q", ErrInvalidApp, app.Key)
	}
	return nil
}

// Subreddits returns the subreddits searched for app: the app category's
// subreddits, the app's own name, any configured extras and the general
// app subreddits. Duplicates are dropped case-insensitively.
func (s *RedditScraper) Subreddits(app models.AppConfig) []string {
	var candidates []string
	candidates = append(candidates, s.catalog.SubredditsFor(app.Category)...)
	candidates = append(candidates, strings.ToLower(strings.ReplaceAll(app.Name, " ", "")))
	candidates = append(candidates, app.Subreddits...)
	candidates = append(candidates, s.catalog.GeneralSubreddits...)

	seen := map[string]bool{}
	var subs []string
	for _, sub := range candidates {
		k := strings.ToLower(sub)
		if sub == "" || seen[k] {
			continue
		}
		seen[k] = true
		subs = append(subs, sub)
	}
	return subs
}

func (s *RedditScraper) ScrapeReviews(ctx context.Context, app models.AppConfig, limit int) ([]models.RawReview, error) {
	if err := s.ValidateConfig(app); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []models.RawReview{}, nil
	}

	matcher := newKeywordMatcher(app.Keywords)
	subs := s.Subreddits(app)
	perSub := max(limit/len(subs), 1)

	var reviews []models.RawReview
	seen := map[string]bool{}
	add := func(r models.RawReview) {
		if !seen[r.ReviewID] {
			seen[r.ReviewID] = true
			reviews = append(reviews, r)
		}
	}

	var errs []error
	for _, sub := range subs {
		if len(seen) >= limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		posts, err := s.searchSubreddit(ctx, sub, app.Keywords, matcher, perSub)
		if err != nil {
			s.log.Error("Error scraping subreddit", "subreddit", sub, "error", err)
			errs = append(errs, err)
			continue
		}

		for _, post := range posts {
			if matcher.matches(post.Title + " " + post.Selftext) {
				add(s.postReview(app, post))
			}

			comments, err := s.fetchComments(ctx, post, commentsPerPost)
			if err != nil {
				s.log.Warn("Error fetching comments", "post_id", post.ID, "error", err)
			}
			for _, c := range comments {
				if len(c.Body) > 20 && matcher.matches(c.Body) {
					add(s.commentReview(app, post, c))
				}
			}

			if len(seen) >= limit {
				break
			}
		}
	}

	if len(reviews) == 0 && len(errs) > 0 {
		return nil, fmt.Errorf("failed to scrape reddit for %s: %w", app.Name, errors.Join(errs...))
	}

	reviews = dedupeAndTrim(reviews, limit)
	s.log.Info("Scraped Reddit posts and comments", "app", app.Name, "count", len(reviews), "subreddits", len(subs))
	return reviews, nil
}

// searchSubreddit runs a relevance search per keyword and adds hot posts that
// mention a keyword.
func (s *RedditScraper) searchSubreddit(ctx context.Context, sub string, keywords []string, matcher keywordMatcher, limit int) ([]redditPost, error) {
	var posts []redditPost

	perKeyword := max(limit/len(keywords), 1)
	for _, kw := range keywords {
		q := url.Values{
			"q":           {kw},
			"restrict_sr": {"1"},
			"sort":        {"relevance"},
			"limit":       {fmt.Sprint(perKeyword)},
			"raw_json":    {"1"},
		}
		found, err := s.listing(ctx, "/r/"+url.PathEscape(sub)+"/search.json", q)
		if err != nil {
			return nil, err
		}
		posts = append(posts, found...)
	}

	if hot := limit / 2; hot > 0 {
		q := url.Values{"limit": {fmt.Sprint(hot)}, "raw_json": {"1"}}
		found, err := s.listing(ctx, "/r/"+url.PathEscape(sub)+"/hot.json", q)
		if err != nil {
			return nil, err
		}
		for _, p := range found {
			if matcher.matches(p.Title + " " + p.Selftext) {
				posts = append(posts, p)
			}
		}
	}

	if len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}

func (s *RedditScraper) listing(ctx context.Context, path string, q url.Values) ([]redditPost, error) {
	body, err := s.fetcher.Get(ctx, s.baseURL+path+"?"+q.Encode(), jsonHeaders)
	if err != nil {
		return nil, err
	}

	var l redditListing
	if err := json.Unmarshal(body, &l); err != nil {
		return nil, fmt.Errorf("failed to decode reddit listing: %w", err)
	}

	var posts []redditPost
	for _, child := range l.Data.Children {
		if child.Kind != "t3" {
			continue
		}
		var p redditPost
		if err := json.Unmarshal(child.Data, &p); err != nil {
			return nil, fmt.Errorf("failed to decode reddit post: %w", err)
		}
		posts = append(posts, p)
	}
	return posts, nil
}

// fetchComments returns the first n comments of a post in breadth-first
// order, without expanding "load more" stubs.
func (s *RedditScraper) fetchComments(ctx context.Context, post redditPost, n int) ([]redditComment, error) {
	path := fmt.Sprintf("/r/%s/comments/%s.json", url.PathEscape(post.Subreddit), url.PathEscape(post.ID))
	q := url.Values{"limit": {"50"}, "raw_json": {"1"}}
	body, err := s.fetcher.Get(ctx, s.baseURL+path+"?"+q.Encode(), jsonHeaders)
	if err != nil {
		return nil, err
	}

	var listings []redditListing
	if err := json.Unmarshal(body, &listings); err != nil {
		return nil, fmt.Errorf("failed to decode reddit comments: %w", err)
	}
	if len(listings) < 2 {
		return nil, nil
	}

	queue := listings[1].Data.Children
	var comments []redditComment
	for len(queue) > 0 && len(comments) < n {
		child := queue[0]
		queue = queue[1:]
		if child.Kind != "t1" {
			continue
		}
		var c redditComment
		if err := json.Unmarshal(child.Data, &c); err != nil {
			return comments, fmt.Errorf("failed to decode reddit comment: %w", err)
		}
		comments = append(comments, c)
		queue = append(queue, c.replies()...)
	}
	return comments, nil
}

func (s *RedditScraper) postReview(app models.AppConfig, p redditPost) models.RawReview {
	sentiment := SimpleSentiment(p.Title + " " + p.Selftext)

	r := s.newReview(app)
	r.ReviewID = "reddit_post_" + p.ID
	r.UserID = authorName(p.Author)
	r.Username = r.UserID
	r.Rating = models.NumberOf(float64(SentimentToRating(sentiment)))
	r.Title = p.Title
	r.Content = p.Selftext
	r.ReviewDate = unixDate(p.CreatedUTC)
	r.HelpfulCount = models.NumberOf(float64(p.Score))
	r.ReplyCount = models.NumberOf(float64(p.NumComments))
	r.SourceURL = "https://reddit.com" + p.Permalink
	r.RawData = map[string]any{
		"subreddit":       p.Subreddit,
		"upvote_ratio":    p.UpvoteRatio,
		"gilded":          p.Gilded,
		"sentiment_score": sentiment,
		"post_type":       "submission",
	}
	return r
}

func (s *RedditScraper) commentReview(app models.AppConfig, p redditPost, c redditComment) models.RawReview {
	sentiment := SimpleSentiment(c.Body)

	r := s.newReview(app)
	r.ReviewID = "reddit_comment_" + c.ID
	r.UserID = authorName(c.Author)
	r.Username = r.UserID
	r.Rating = models.NumberOf(float64(SentimentToRating(sentiment)))
	r.Title = "Comment on: " + truncateRunes(p.Title, 50) + "..."
	r.Content = c.Body
	r.ReviewDate = unixDate(c.CreatedUTC)
	r.HelpfulCount = models.NumberOf(float64(c.Score))
	r.ReplyCount = models.NumberOf(float64(len(c.replies())))
	r.SourceURL = "https://reddit.com" + c.Permalink
	r.RawData = map[string]any{
		"subreddit":       p.Subreddit,
		"parent_post_id":  p.ID,
		"sentiment_score": sentiment,
		"post_type":       "comment",
	}
	return r
}

// SimpleSentiment counts which of a few strong positive and negative words
// appear in text and scales the difference per word to [-1, 1].
func SimpleSentiment(text string) float64 {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	lower := strings.ToLower(text)

	pos, neg := 0, 0
	for _, w := range simplePositiveWords {
		if strings.Contains(lower, w) {
			pos++
		}
	}
	for _, w := range simpleNegativeWords {
		if strings.Contains(lower, w) {
			neg++
		}
	}
	score := float64(pos-neg) / float64(words) * 10
	return max(-1, min(1, score))
}

// SentimentToRating maps a [-1, 1] sentiment score onto 1-5 stars.
func SentimentToRating(score float64) int {
	switch {
	case score >= 0.5:
		return 5
	case score >= 0.2:
		return 4
	case score >= -0.2:
		return 3
	case score >= -0.5:
		return 2
	default:
		return 1
	}
}

type keywordMatcher struct {
	m *ahocorasick.Matcher
}

func newKeywordMatcher(keywords []string) keywordMatcher {
	lower := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			lower = append(lower, kw)
		}
	}
	if len(lower) == 0 {
		return keywordMatcher{}
	}
	return keywordMatcher{m: ahocorasick.NewStringMatcher(lower)}
}

// matches reports whether any keyword occurs in text, case-insensitively.
func (k keywordMatcher) matches(text string) bool {
	if k.m == nil {
		return false
	}
	return len(k.m.Match([]byte(strings.ToLower(text)))) > 0
}

var jsonHeaders = http.Header{"Accept": {"application/json"}}

type redditListing struct {
	Kind string `json:"kind"`
	Data struct {
		Children []redditThing `json:"children"`
	} `json:"data"`
}

type redditThing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type redditPost struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Author      string  `json:"author"`
	Subreddit   string  `json:"subreddit"`
	Permalink   string  `json:"permalink"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	UpvoteRatio float64 `json:"upvote_ratio"`
	Gilded      int     `json:"gilded"`
	CreatedUTC  float64 `json:"created_utc"`
}

type redditComment struct {
	ID         string          `json:"id"`
	Author     string          `json:"author"`
	Body       string          `json:"body"`
	Permalink  string          `json:"permalink"`
	Score      int             `json:"score"`
	CreatedUTC float64         `json:"created_utc"`
	Replies    json.RawMessage `json:"replies"`
}

// replies returns the comment's direct replies. Reddit sends "" when there
// are none.
func (c redditComment) replies() []redditThing {
	if len(c.Replies) == 0 || c.Replies[0] != '{' {
		return nil
	}
	var l redditListing
	if err := json.Unmarshal(c.Replies, &l); err != nil {
		return nil
	}
	var out []redditThing
	for _, child := range l.Data.Children {
		if child.Kind == "t1" {
			out = append(out, child)
		}
	}
	return out
}

func authorName(author string) string {
	if author == "" || author == "[deleted]" {
		return deletedUser
	}
	return author
}

func unixDate(sec float64) string {
	if sec <= 0 {
		return ""
	}
	return time.Unix(int64(sec), 0).UTC().Format(time.RFC3339)
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
