package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWordFrequency(t *testing.T) {
	a := &Analytics{}
	got := a.WordFrequency("The app keeps crashing. Crashing again, and the UI (menu) is slow!")
	assert.Equal(t, map[string]int{
		"keeps":    1,
		"crashing": 2,
		"ui":       1,
		"menu":     1,
		"slow":     1,
	}, got)
}

func TestTopNWords(t *testing.T) {
	a := &Analytics{}
	text := "ads ads ads price price shuffle bugs"
	assert.Equal(t, []string{"ads", "price", "bugs"}, a.TopNWords(text, 3))
	assert.Equal(t, []string{"ads", "price", "bugs", "shuffle"}, a.TopNWords(text, 10))
	assert.Empty(t, a.TopNWords(text, 0))
}

func TestWordFrequencyTokens(t *testing.T) {
	a := &Analytics{}
	got := a.WordFrequency("Café works in 2024, 5 stars! Don’t buy it: “pricey” x")
	assert.Equal(t, map[string]int{
		"café":   1,
		"works":  1,
		"buy":    1,
		"pricey": 1,
	}, got)
}

func TestNewExcludesNames(t *testing.T) {
	a := New("Day One")
	got := a.WordFrequency("Day one of using Day One: journaling every day")
	assert.Equal(t, map[string]int{"journaling": 1}, got)

	// the zero value keeps them
	assert.Equal(t, 3, (&Analytics{}).WordFrequency("day day day")["day"])
}

func TestIsStopword(t *testing.T) {
	tests := []struct {
		word string
		want bool
	}{
		{"The", true},
		{"apps", true},
		{"don't", true},
		{"Don’t", true},
		{"dont", true},
		{"subscription", false},
		{"update", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsStopword(tt.word), tt.word)
	}
}
