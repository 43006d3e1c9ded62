// Package fetcher is the rate limited, retrying HTTP client shared by the
// scrapers.
package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cenkalti/backoff/v4"
	"github.com/dtnitsch/review-miner/internal/logger"
	"golang.org/x/time/rate"
)

const maxBodySize = 20 << 20

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d from %s", e.StatusCode, e.URL)
}

// Retryable reports whether the request may succeed if repeated.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Options configures a Fetcher. Zero values fall back to sensible defaults.
type Options struct {
	Client     *http.Client
	Timeout    time.Duration
	MaxRetries int
	UserAgents []string
	// MinInterval is the minimum time between two requests.
	MinInterval time.Duration
	// RetryInterval is the first backoff delay, doubled on each retry.
	RetryInterval time.Duration
	Logger        logger.Logger
}

type Fetcher struct {
	client        *http.Client
	limiter       *rate.Limiter
	userAgents    []string
	nextAgent     atomic.Uint64
	maxRetries    int
	retryInterval time.Duration
	log           logger.Logger
}

func NewFetcher(opts Options) *Fetcher {
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	if opts.MinInterval > 0 {
		limit = rate.Every(opts.MinInterval)
	}

	f := &Fetcher{
		client:        client,
		limiter:       rate.NewLimiter(limit, 1),
		userAgents:    opts.UserAgents,
		maxRetries:    max(opts.MaxRetries, 1),
		retryInterval: opts.RetryInterval,
		log:           opts.Logger,
	}
	if f.retryInterval <= 0 {
		f.retryInterval = time.Second
	}
	if f.log == nil {
		f.log = logger.NewNop()
	}
	return f
}

// UserAgent returns the next user agent in rotation, or "" if none are configured.
func (f *Fetcher) UserAgent() string {
	if len(f.userAgents) == 0 {
		return ""
	}
	n := f.nextAgent.Add(1) - 1
	return f.userAgents[n%uint64(len(f.userAgents))]
}

// Do sends a request built by newReq, waiting on the rate limiter before every
// attempt. Network errors, 429 and 5xx responses are retried with exponential
// backoff. The response body is returned for 2xx responses.
func (f *Fetcher) Do(ctx context.Context, newReq func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	var body []byte
	attempt := 0

	op := func() error {
		attempt++
		if err := f.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		req, err := newReq(ctx)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to build request: %w", err))
		}
		if req.Header.Get("User-Agent") == "" {
			if ua := f.UserAgent(); ua != "" {
				req.Header.Set("User-Agent", ua)
			}
		}

		resp, err := f.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("failed to make HTTP request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
			statusErr := &StatusError{StatusCode: resp.StatusCode, URL: req.URL.String()}
			if !statusErr.Retryable() {
				return backoff.Permanent(statusErr)
			}
			return statusErr
		}

		body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}
		return nil
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = f.retryInterval
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	b := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(f.maxRetries-1)), ctx)

	err := backoff.RetryNotify(op, b, func(err error, wait time.Duration) {
		f.log.Warn("Request failed, retrying",
			"attempt", attempt,
			"max_retries", f.maxRetries,
			"wait", wait,
			"error", err,
		)
	})
	if err != nil {
		var statusErr *StatusError
		if !errors.As(err, &statusErr) || statusErr.Retryable() {
			f.log.Error("Request failed", "attempts", attempt, "error", err)
		}
		return nil, err
	}
	return body, nil
}

// Get fetches rawURL with the given extra headers.
func (f *Fetcher) Get(ctx context.Context, rawURL string, headers http.Header) ([]byte, error) {
	return f.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		copyHeaders(req.Header, headers)
		return req, nil
	})
}

// PostForm posts url-encoded form values to rawURL.
func (f *Fetcher) PostForm(ctx context.Context, rawURL string, form url.Values, headers http.Header) ([]byte, error) {
	encoded := []byte(form.Encode())
	return f.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		copyHeaders(req.Header, headers)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=UTF-8")
		return req, nil
	})
}

// GetHtml fetches rawURL and parses it as HTML.
func (f *Fetcher) GetHtml(ctx context.Context, rawURL string) (*goquery.Document, error) {
	bodyBytes, err := f.Get(ctx, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return ParseHtml(bodyBytes)
}

// ParseHtml parses an HTML document.
func ParseHtml(bodyBytes []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(bodyBytes)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

func copyHeaders(dst, src http.Header) {
	for k, vs := range src {
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}
