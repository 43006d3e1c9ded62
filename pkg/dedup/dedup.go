// Package dedup removes exact and near duplicate reviews, spam and repeat
// reviews from the same user.
package dedup

import (
	"math"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/dtnitsch/review-miner/internal/common"
	"github.com/dtnitsch/review-miner/internal/logger"
	"github.com/dtnitsch/review-miner/models"
	"github.com/pmezard/go-difflib/difflib"
)

var (
	nonWordPattern    = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

var comparisonStopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true, "in": true,
	"on": true, "at": true, "to": true, "for": true, "of": true, "with": true, "by": true,
}

var spamPatterns = []*regexp.Regexp{
	regexp.MustCompile(`visit\s+my\s+website`),
	regexp.MustCompile(`click\s+here`),
	regexp.MustCompile(`make\s+money`),
	regexp.MustCompile(`free\s+money`),
	regexp.MustCompile(`earn\s+\$\d+`),
	regexp.MustCompile(`work\s+from\s+home`),
	regexp.MustCompile(`buy\s+now`),
	regexp.MustCompile(`limited\s+time`),
	regexp.MustCompile(`act\s+fast`),
	regexp.MustCompile(`special\s+offer`),
	regexp.MustCompile(`https?://`),
	regexp.MustCompile(`www\.`),
	regexp.MustCompile(`\.com`),
	regexp.MustCompile(`whatsapp`),
	regexp.MustCompile(`telegram`),
	regexp.MustCompile(`contact\s+me`),
}

// Deduplicator applies the dedup passes in order: exact, similar, spam, user.
type Deduplicator struct {
	threshold float64
	log       logger.Logger
	now       func() time.Time
}

func New(cfg models.ProcessingSettings, log logger.Logger) *Deduplicator {
	return &Deduplicator{
		threshold: cfg.DeduplicationThreshold,
		log:       log.Named("deduplicator"),
		now:       time.Now,
	}
}

// Deduplicate returns the surviving reviews with QualityScore set.
func (d *Deduplicator) Deduplicate(reviews []models.Review) []models.Review {
	if len(reviews) == 0 {
		return []models.Review{}
	}
	d.log.Info("Starting deduplication", "count", len(reviews))

	now := d.now()
	out := d.removeHashDuplicates(reviews)
	out = d.removeSimilar(out, now)
	out = d.removeSpam(out)
	out = d.removeUserDuplicates(out, now)

	for i := range out {
		out[i].QualityScore = QualityScore(&out[i], now)
	}

	d.log.Info("Deduplication complete", "remaining", len(out), "original", len(reviews))
	return out
}

func (d *Deduplicator) removeHashDuplicates(reviews []models.Review) []models.Review {
	seen := make(map[string]bool, len(reviews))
	out := make([]models.Review, 0, len(reviews))
	for _, r := range reviews {
		h := ContentHash(&r)
		if seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, r)
	}
	d.log.Info("Removed exact duplicates", "removed", len(reviews)-len(out))
	return out
}

func (d *Deduplicator) removeSimilar(reviews []models.Review, now time.Time) []models.Review {
	out := make([]models.Review, 0, len(reviews))
	for _, r := range reviews {
		duplicate := false
		for j := range out {
			if Similarity(&r, &out[j]) < d.threshold {
				continue
			}
			if QualityScore(&r, now) > QualityScore(&out[j], now) {
				out[j] = r
			}
			duplicate = true
			break
		}
		if !duplicate {
			out = append(out, r)
		}
	}
	d.log.Info("Removed near duplicates", "removed", len(reviews)-len(out), "threshold", d.threshold)
	return out
}

func (d *Deduplicator) removeSpam(reviews []models.Review) []models.Review {
	out := make([]models.Review, 0, len(reviews))
	for _, r := range reviews {
		if !IsSpamReview(&r) {
			out = append(out, r)
		}
	}
	d.log.Info("Removed spam reviews", "removed", len(reviews)-len(out))
	return out
}

// anonymousUsers never collapse into one another.
var anonymousUsers = map[string]bool{"": true, "deleted": true, "[deleted]": true}

// removeUserDuplicates keeps the best review per (user, app), in order of
// first appearance.
func (d *Deduplicator) removeUserDuplicates(reviews []models.Review, now time.Time) []models.Review {
	type key struct{ user, app string }

	index := map[key]int{}
	best := make([]float64, 0, len(reviews))
	out := make([]models.Review, 0, len(reviews))
	for _, r := range reviews {
		score := QualityScore(&r, now)
		if anonymousUsers[r.UserID] {
			out = append(out, r)
			best = append(best, score)
			continue
		}
		k := key{r.UserID, r.AppName}
		i, ok := index[k]
		if !ok {
			index[k] = len(out)
			out = append(out, r)
			best = append(best, score)
			continue
		}
		if score > best[i] {
			out[i] = r
			best[i] = score
		}
	}
	d.log.Info("Removed user duplicates", "removed", len(reviews)-len(out))
	return out
}

// ContentHash fingerprints a review by its lowercased, trimmed title and content.
func ContentHash(r *models.Review) string {
	title := strings.ToLower(strings.TrimSpace(r.Title))
	content := strings.ToLower(strings.TrimSpace(r.DisplayContent()))
	return common.MD5Hex(title + "|" + content)
}

// Normalize lowercases text, turns punctuation into spaces and drops a small
// set of stop words.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	text = nonWordPattern.ReplaceAllString(strings.ToLower(text), " ")
	text = whitespacePattern.ReplaceAllString(text, " ")

	words := strings.Fields(text)
	kept := words[:0]
	for _, w := range words {
		if !comparisonStopWords[w] {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

// Similarity scores two reviews between 0 and 1. Content similarity counts
// 80% when both reviews have a title, 100% otherwise.
func Similarity(a, b *models.Review) float64 {
	c1, c2 := Normalize(a.DisplayContent()), Normalize(b.DisplayContent())
	if c1 == "" || c2 == "" {
		return 0
	}
	sim := ratio(c1, c2)

	t1, t2 := Normalize(a.Title), Normalize(b.Title)
	if t1 != "" && t2 != "" {
		sim = sim*0.8 + ratio(t1, t2)*0.2
	}
	return sim
}

func ratio(a, b string) float64 {
	return difflib.NewMatcher(chars(a), chars(b)).Ratio()
}

func chars(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// QualityScore rewards long, helpful, verified, titled and recent reviews.
func QualityScore(r *models.Review, now time.Time) float64 {
	score := 0.0

	if n := len([]rune(r.DisplayContent())); n > 50 {
		score += min(float64(n)/200, 2)
	}
	score += min(float64(r.HelpfulCount)/10, 2)
	if r.Verified {
		score += 1
	}
	if r.Title != "" {
		score += 0.5
	}
	if r.ReviewDate != nil {
		days := int(math.Floor(now.Sub(*r.ReviewDate).Hours() / 24))
		if days < 365 {
			score += float64(365-days) / 365
		}
	}
	return score
}

// IsSpamReview matches promotional patterns and shouting or repetitive content.
func IsSpamReview(r *models.Review) bool {
	content := r.DisplayContent()
	lower := strings.ToLower(content)
	combined := strings.ToLower(r.Title) + " " + lower

	hits := 0
	for _, p := range spamPatterns {
		if p.MatchString(combined) {
			hits++
		}
	}
	if hits >= 2 {
		return true
	}

	runes := []rune(content)
	if len(runes) < 20 && hits >= 1 {
		return true
	}

	if len(runes) > 10 {
		upper := 0
		for _, c := range content {
			if unicode.IsUpper(c) {
				upper++
			}
		}
		if float64(upper)/float64(len(runes)) > 0.7 {
			return true
		}
	}

	words := strings.Fields(lower)
	if len(words) > 5 {
		unique := map[string]bool{}
		for _, w := range words {
			unique[w] = true
		}
		if 1-float64(len(unique))/float64(len(words)) > 0.7 {
			return true
		}
	}
	return false
}

// Stats describes how many reviews the deduplicator removed.
type Stats struct {
	OriginalCount       int     `json:"original_count"`
	FinalCount          int     `json:"final_count"`
	RemovedCount        int     `json:"removed_count"`
	RemovalRate         float64 `json:"removal_rate"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
}

func (d *Deduplicator) Stats(originalCount, finalCount int) Stats {
	s := Stats{
		OriginalCount:       originalCount,
		FinalCount:          finalCount,
		RemovedCount:        originalCount - finalCount,
		SimilarityThreshold: d.threshold,
	}
	if originalCount > 0 {
		s.RemovalRate = float64(s.RemovedCount) / float64(originalCount)
	}
	return s
}
