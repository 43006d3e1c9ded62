package mapreduce

import "github.com/dtnitsch/review-miner/pkg/analytics"

// Map generates a word frequency map for a single review's text.
func Map(content string, a *analytics.Analytics) map[string]int {
	return a.WordFrequency(content)
}

// Reduce aggregates a slice of word frequency maps into a single map.
func Reduce(intermediate []map[string]int) map[string]int {
	finalResults := make(map[string]int)

	for _, counts := range intermediate {
		for word, count := range counts {
			finalResults[word] += count
		}
	}

	return finalResults
}

// Count tallies the given keys into a frequency map.
func Count(keys []string) map[string]int {
	counts := make(map[string]int, len(keys))
	for _, k := range keys {
		counts[k]++
	}
	return counts
}
