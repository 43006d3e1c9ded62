// Package analytics counts the words of review text for keyword and term
// summaries.
package analytics

import (
	"sort"
	"strings"
	"unicode"
)

// Analytics counts terms. The zero value ignores stopwords only.
type Analytics struct {
	exclude map[string]struct{}
}

// New returns an Analytics that also ignores the words of each name, so
// reviews of "Day One" do not rank "day" as a term.
func New(names ...string) *Analytics {
	a := &Analytics{exclude: map[string]struct{}{}}
	for _, name := range names {
		for _, word := range tokenize(name) {
			a.exclude[word] = struct{}{}
		}
	}
	return a
}

var stopwords = wordSet(
	// function words
	`a about above after again against all also am an and any are around as at
	be because been before being below between both but by can could did do does
	doing down during each either else even ever every few for from further had
	has have having he her here hers him his how i if in into is it its itself
	just me more most much must my myself no nor not now of off on once one only
	or other others our ours out over own same she should since so some such
	than that the their them then there these they this those through to too
	under until up upon us very via was we were what when where which while who
	whom whose why will with within without would yet you your yours`,
	// contractions, with and without the apostrophe
	`ain't aren't can't couldn't didn't doesn't don't hadn't hasn't haven't i'd
	i'll i'm i've isn't it'll it's let's shouldn't that's there's they'd they'll
	they're they've wasn't we'd we'll we're weren't what's won't wouldn't you'd
	you'll you're you've cant couldnt didnt doesnt dont im isnt ive thats wont`,
	// review boilerplate
	`app apps application review reviews star stars rating comment get got
	really thing things use using lol`,
)

func wordSet(groups ...string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, g := range groups {
		for _, w := range strings.Fields(g) {
			set[w] = struct{}{}
		}
	}
	return set
}

// IsStopword reports whether word carries no meaning on its own in a review.
func IsStopword(word string) bool {
	_, ok := stopwords[normalizeWord(word)]
	return ok
}

func normalizeWord(word string) string {
	return strings.ReplaceAll(strings.ToLower(word), "’", "'")
}

// tokenize lowercases text and splits it into words with surrounding
// punctuation trimmed. Inner apostrophes and hyphens are kept.
func tokenize(text string) []string {
	fields := strings.Fields(normalizeWord(text))
	words := fields[:0]
	for _, f := range fields {
		f = strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if f != "" {
			words = append(words, f)
		}
	}
	return words
}

func (a *Analytics) skip(word string) bool {
	if IsStopword(word) {
		return true
	}
	if _, ok := a.exclude[word]; ok {
		return true
	}
	// bare numbers and single letters
	return len([]rune(word)) < 2 || strings.IndexFunc(word, unicode.IsLetter) < 0
}

// WordFrequency counts the meaningful words of text.
func (a *Analytics) WordFrequency(text string) map[string]int {
	frequencies := make(map[string]int)
	for _, word := range tokenize(text) {
		if !a.skip(word) {
			frequencies[word]++
		}
	}
	return frequencies
}

// TopNWords returns the n most frequent meaningful words in text. Ties are
// ordered alphabetically.
func (a *Analytics) TopNWords(text string, n int) []string {
	frequencies := a.WordFrequency(text)

	words := make([]string, 0, len(frequencies))
	for w := range frequencies {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if frequencies[words[i]] != frequencies[words[j]] {
			return frequencies[words[i]] > frequencies[words[j]]
		}
		return words[i] < words[j]
	})

	if len(words) > n {
		words = words[:max(n, 0)]
	}
	return words
}
