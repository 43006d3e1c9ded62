// Package cleaner normalizes raw review text and fields and drops reviews
// that are too short, too long, spammy or not in a supported language.
package cleaner

import (
	"html"
	"math"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/dtnitsch/review-miner/internal/logger"
	"github.com/dtnitsch/review-miner/models"
	"golang.org/x/text/unicode/norm"
)

var (
	whitespacePattern = regexp.MustCompile(`[\s\p{Z}]+`)
	urlPattern        = regexp.MustCompile(`https?://(?:[a-zA-Z]|[0-9]|[$-_@.&+]|[!*\\(),]|(?:%[0-9a-fA-F][0-9a-fA-F]))+`)
	emailPattern      = regexp.MustCompile(`\S+@\S+\.\S+`)
	exclaimPattern    = regexp.MustCompile(`!{2,}`)
	questionPattern   = regexp.MustCompile(`\?{2,}`)
	ellipsisPattern   = regexp.MustCompile(`\.{3,}`)
	disallowedPattern = regexp.MustCompile(`[^\p{L}\p{N}_\s.,!?;:()\-'"@#]`)
	capsRunPattern    = regexp.MustCompile(`[A-Z]{20,}`)
)

var spamPhrases = []string{"www.", "bit.ly", "click here", "free money", "buy now", "limited time"}

// Cleaner holds the validation bounds and language detector.
type Cleaner struct {
	minLength int
	maxLength int
	languages map[string]bool
	detector  LanguageDetector
	log       logger.Logger
	now       func() time.Time
}

type Option func(*Cleaner)

// WithDetector replaces the default lingua-backed language detector.
func WithDetector(d LanguageDetector) Option {
	return func(c *Cleaner) { c.detector = d }
}

func New(cfg models.ProcessingSettings, log logger.Logger, opts ...Option) *Cleaner {
	c := &Cleaner{
		minLength: cfg.MinReviewLength,
		maxLength: cfg.MaxReviewLength,
		languages: map[string]bool{},
		log:       log.Named("cleaner"),
		now:       time.Now,
	}
	for _, lang := range cfg.Languages {
		c.languages[strings.ToLower(lang)] = true
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.detector == nil {
		c.detector = NewLinguaDetector(cfg.Languages)
	}
	return c
}

// CleanReviews cleans every review and keeps the valid ones, in order.
func (c *Cleaner) CleanReviews(raws []models.RawReview) []models.Review {
	cleaned := make([]models.Review, 0, len(raws))
	for _, raw := range raws {
		if review, ok := c.CleanReview(raw); ok {
			cleaned = append(cleaned, review)
		}
	}
	c.log.Info("Cleaned reviews", "kept", len(cleaned), "total", len(raws))
	return cleaned
}

// CleanReview normalizes one raw review. It returns false when the review
// fails validation and should be dropped.
func (c *Cleaner) CleanReview(raw models.RawReview) (models.Review, bool) {
	review := raw.ToReview()
	review.Title = CleanText(raw.Title)
	review.CleanedContent = CleanText(raw.Content)

	if !c.IsValid(review.CleanedContent) {
		c.log.Debug("Dropped review", "review_id", raw.ReviewID)
		return models.Review{}, false
	}

	review.Rating = NormalizeRating(raw.Rating)
	review.ReviewDate = NormalizeDate(raw.ReviewDate)
	review.HelpfulCount = NormalizeCount(raw.HelpfulCount)
	review.ReplyCount = NormalizeCount(raw.ReplyCount)

	now := c.now().UTC()
	review.CleanedAt = &now
	review.OriginalLength = len([]rune(raw.Content))
	review.CleanedLength = len([]rune(review.CleanedContent))

	if err := review.Validate(); err != nil {
		c.log.Warn("Dropped invalid review", "review_id", raw.ReviewID, "error", err)
		return models.Review{}, false
	}
	return review, true
}

// CleanText decodes entities, normalizes unicode and whitespace and strips
// URLs, emails, repeated punctuation and unusual symbols.
func CleanText(text string) string {
	if text == "" {
		return ""
	}

	text = html.UnescapeString(text)
	text = norm.NFKC.String(text)
	text = whitespacePattern.ReplaceAllString(text, " ")
	text = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, text)

	text = urlPattern.ReplaceAllString(text, "")
	text = emailPattern.ReplaceAllString(text, "")

	text = exclaimPattern.ReplaceAllString(text, "!")
	text = questionPattern.ReplaceAllString(text, "?")
	text = ellipsisPattern.ReplaceAllString(text, "...")

	// Removed tokens leave their surrounding spaces behind.
	text = disallowedPattern.ReplaceAllString(text, "")

	return strings.TrimSpace(text)
}

// IsValid reports whether cleaned content meets the length, content, spam
// and language criteria.
func (c *Cleaner) IsValid(content string) bool {
	length := len([]rune(content))
	if length < c.minLength || length > c.maxLength {
		return false
	}

	alnum := 0
	for _, r := range content {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			alnum++
		}
	}
	if alnum < 5 {
		return false
	}

	if IsSpam(content) {
		return false
	}

	return c.isSupportedLanguage(content)
}

// IsSpam flags long character runs, shouting and common promotional phrases.
func IsSpam(text string) bool {
	if hasRepeatedRun(text, 11) {
		return true
	}
	if capsRunPattern.MatchString(text) {
		return true
	}
	lower := strings.ToLower(text)
	for _, phrase := range spamPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// hasRepeatedRun reports whether any rune repeats n or more times in a row,
// case-insensitively.
func hasRepeatedRun(text string, n int) bool {
	var prev rune = -1
	run := 0
	for _, r := range strings.ToLower(text) {
		if r == prev {
			run++
		} else {
			prev, run = r, 1
		}
		if run >= n {
			return true
		}
	}
	return false
}

// NormalizeRating rounds and clamps a rating to 1..5. Missing or non-numeric
// ratings yield nil.
func NormalizeRating(rating *models.Number) *int {
	f, ok := rating.Float()
	if !ok {
		return nil
	}
	r := int(math.Max(1, math.Min(5, math.RoundToEven(f))))
	return &r
}

// NormalizeCount converts a count to a non-negative int, truncating fractions.
func NormalizeCount(count *models.Number) int {
	f, ok := count.Float()
	if !ok || f < 0 {
		return 0
	}
	return int(f)
}

// Stats describes how many reviews the cleaner kept.
type Stats struct {
	OriginalCount          int     `json:"original_count"`
	CleanedCount           int     `json:"cleaned_count"`
	RemovedCount           int     `json:"removed_count"`
	RemovalRate            float64 `json:"removal_rate"`
	AverageLengthReduction float64 `json:"average_length_reduction"`
}

func (c *Cleaner) Stats(originalCount int, cleaned []models.Review) Stats {
	s := Stats{
		OriginalCount: originalCount,
		CleanedCount:  len(cleaned),
		RemovedCount:  originalCount - len(cleaned),
	}
	if originalCount > 0 {
		s.RemovalRate = float64(s.RemovedCount) / float64(originalCount)
	}

	var total float64
	var n int
	for _, r := range cleaned {
		if r.OriginalLength > 0 {
			total += float64(r.OriginalLength-r.CleanedLength) / float64(r.OriginalLength)
			n++
		}
	}
	if n > 0 {
		s.AverageLengthReduction = total / float64(n)
	}
	return s
}
