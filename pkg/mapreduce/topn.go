package mapreduce

import (
	"fmt"
	"sort"
	"strings"
)

// WordCount is one entry of a ranked frequency list.
type WordCount struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// isValidKeyword checks if a keyword should be included in results.
// Filters malformed tokens (unmatched delimiters, trailing special chars, unmatched quotes).
func isValidKeyword(word string) bool {
	if strings.HasSuffix(word, ":") || strings.HasSuffix(word, "=") {
		return false
	}

	if strings.Contains(word, "(") && !strings.Contains(word, ")") {
		return false
	}
	if strings.Contains(word, "[") && !strings.Contains(word, "]") {
		return false
	}

	if strings.Count(word, "\"")%2 != 0 {
		return false
	}
	return strings.Count(word, "'")%2 == 0
}

// TopCounts returns the n most frequent words, highest count first. Ties
// are broken alphabetically so results are stable.
func TopCounts(wordCounts map[string]int, n int) []WordCount {
	ss := make([]WordCount, 0, len(wordCounts))
	for k, v := range wordCounts {
		if isValidKeyword(k) {
			ss = append(ss, WordCount{k, v})
		}
	}

	sort.Slice(ss, func(i, j int) bool {
		if ss[i].Count != ss[j].Count {
			return ss[i].Count > ss[j].Count
		}
		return ss[i].Word < ss[j].Word
	})

	if n < 0 {
		n = 0
	}
	if len(ss) > n {
		ss = ss[:n]
	}
	return ss
}

// TopKeywords returns the top N keywords formatted as "word:count"
// (e.g., "crash:42").
func TopKeywords(wordCounts map[string]int, n int) []string {
	top := TopCounts(wordCounts, n)
	keywords := make([]string, len(top))
	for i, wc := range top {
		keywords[i] = fmt.Sprintf("%s:%d", wc.Word, wc.Count)
	}
	return keywords
}
