package classifier

import (
	"regexp"
	"strings"

	"github.com/dtnitsch/review-miner/models"
)

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

var positiveWords = map[string]int{
	"excellent": 3, "amazing": 3, "outstanding": 3, "fantastic": 3,
	"great": 2, "good": 2, "wonderful": 2, "awesome": 3, "love": 2,
	"best": 2, "perfect": 3, "brilliant": 2, "superb": 2,
	"like": 1, "nice": 1, "fine": 1, "okay": 1, "decent": 1,
	"helpful": 1, "useful": 1, "easy": 1, "smooth": 1, "fast": 1,
}

var negativeWords = map[string]int{
	"terrible": 3, "awful": 3, "horrible": 3, "disgusting": 3, "trash": 3,
	"bad": 2, "poor": 2, "worst": 3, "hate": 2, "useless": 2,
	"broken": 2, "buggy": 2, "slow": 2, "crash": 2, "freezes": 2,
	"disappointed": 2, "frustrated": 2, "annoying": 1, "confusing": 1,
	"difficult": 1, "hard": 1, "problem": 1, "issue": 1, "error": 1,
}

// sentimentThreshold is the net score per word needed to leave neutral.
const sentimentThreshold = 0.02

// AnalyzeSentiment scores text with a weighted word lexicon. The score is
// the net weight per word scaled by 10 and clamped to [-1, 1].
func AnalyzeSentiment(text string) (string, float64) {
	words := wordPattern.FindAllString(strings.ToLower(text), -1)
	if len(words) == 0 {
		return models.SentimentNeutral, 0
	}

	pos, neg := 0, 0
	for _, w := range words {
		if weight, ok := positiveWords[w]; ok {
			pos += weight
		} else if weight, ok := negativeWords[w]; ok {
			neg += weight
		}
	}

	net := float64(pos-neg) / float64(len(words))

	label := models.SentimentNeutral
	switch {
	case net > sentimentThreshold:
		label = models.SentimentPositive
	case net < -sentimentThreshold:
		label = models.SentimentNegative
	}
	return label, max(-1, min(1, net*10))
}
