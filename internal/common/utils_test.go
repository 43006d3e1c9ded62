package common

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"spotify_reddit_20240101_120000", "spotify_reddit_20240101_120000"},
		{`a<b>c:d"e/f\g|h?i*j`, "a_b_c_d_e_f_g_h_i_j"},
		{"Daily - Journal & Diary", "Daily - Journal & Diary"},
		{"a//b", "a_b"},
		{"__x__", "x"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SafeFilename(tt.in), tt.in)
	}

	assert.Len(t, SafeFilename(strings.Repeat("x", 300)), 200)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"reddit", "playstore"}, SplitList("reddit,PlayStore"))
	assert.Equal(t, []string{"csv", "json", "report"}, SplitList("csv json", "report"))
	assert.Empty(t, SplitList(" , "))
}

func TestChunk(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, Chunk(items, 2))
	assert.Equal(t, [][]int{{1, 2, 3, 4, 5}}, Chunk(items, 10))
	assert.Equal(t, [][]int{{1, 2, 3, 4, 5}}, Chunk(items, 0))
}

func TestMD5Hex(t *testing.T) {
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", MD5Hex(""))
	assert.Equal(t, MD5Hex("same"), MD5Hex("same"))
}

func TestValidateURL(t *testing.T) {
	got, err := ValidateURL(" https://slack.com, ")
	require.NoError(t, err)
	assert.Equal(t, "https://slack.com", got)

	got, err = ValidateURL("[zoom](https://zoom.us)")
	require.NoError(t, err)
	assert.Equal(t, "https://zoom.us", got)

	for _, bad := range []string{"", "ftp://x.com", "not a url", "https://"} {
		_, err := ValidateURL(bad)
		assert.Error(t, err, bad)
	}
}

func TestFilterFields(t *testing.T) {
	v := struct {
		ID    string `json:"review_id"`
		Score int    `json:"score"`
	}{"r1", 3}

	assert.Equal(t, map[string]any{"review_id": "r1"}, FilterFields(v, "review_id, missing"))
	assert.Len(t, FilterFields(v, ""), 2)
}
