package cleaner

import (
	"strings"
	"testing"
	"time"

	"github.com/dtnitsch/review-miner/internal/logger"
	"github.com/dtnitsch/review-miner/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDetector struct {
	code string
	ok   bool
}

func (s stubDetector) Detect(string) (string, bool) { return s.code, s.ok }

func newTestCleaner(opts ...Option) *Cleaner {
	return New(models.DefaultSettings().Processing, logger.NewNop(), opts...)
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"whitespace", "  This is a   test\t\nwith extra   whitespace!  ", "This is a test with extra whitespace!"},
		{"html entities", "This &amp; that &quot;quote&quot;", `This  that "quote"`},
		{"url removed", "Check out https://example.com for more info", "Check out  for more info"},
		{"email removed", "Contact us at support@example.com for help", "Contact us at  for help"},
		{"punctuation collapse", "Wow!!! Really??? Hmm.....", "Wow! Really? Hmm..."},
		{"symbols stripped", "Great app ★★★★★ 100% <3", "Great app  100 3"},
		{"nfkc", "ﬁne ｆｕｌｌwidth", "fine fullwidth"},
		{"unicode letters kept", "Très bien, ça marche", "Très bien, ça marche"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanText(tt.in))
		})
	}
}

func TestCleanTextDropsDecodedSymbols(t *testing.T) {
	// & is outside the allowed set, < and > as well, so entities decode and then drop
	got := CleanText("fish &amp; chips &lt;tag&gt;")
	assert.Equal(t, "fish  chips tag", got)
}

func TestIsSpam(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"CLICK HERE for FREE MONEY! Visit www.scam.com", true},
		{"This app works well for my daily tasks", false},
		{"s" + strings.Repeat("o", 12) + " good", true},
		{"THISISREALLYLOUDSHOUTING about the app", true},
		{"Buy now while it lasts", true},
		{"short link bit.ly/abc", true},
		{"I paid for the limited time offer", true},
		{"Normal review with Some Caps", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsSpam(tt.text), tt.text)
	}
}

func TestIsValid(t *testing.T) {
	c := newTestCleaner(WithDetector(stubDetector{"en", true}))

	assert.False(t, c.IsValid("Bad"), "too short")
	assert.True(t, c.IsValid("This is a reasonable length review content"))
	assert.False(t, c.IsValid(strings.Repeat("x", 6000)), "too long")
	assert.False(t, c.IsValid("!!! ??? 12"), "not enough alphanumerics")
	assert.False(t, c.IsValid("click here to win the prize"), "spam")
}

func TestIsValidLanguage(t *testing.T) {
	german := newTestCleaner(WithDetector(stubDetector{"de", true}))
	assert.False(t, german.IsValid("Diese App ist wirklich sehr gut"))
	// detector disagrees but english markers are present
	assert.True(t, german.IsValid("Love it, the app is great for notes"))

	unknown := newTestCleaner(WithDetector(stubDetector{"", false}))
	assert.True(t, unknown.IsValid("The sync works on all my devices"))
	assert.False(t, unknown.IsValid("Superb, wonderful experience"))
}

func TestLinguaDetector(t *testing.T) {
	d := NewLinguaDetector([]string{"en"})

	code, ok := d.Detect("This application is really useful and I enjoy using it every single day")
	require.True(t, ok)
	assert.Equal(t, "en", code)

	code, ok = d.Detect("Esta aplicación es muy útil y la uso todos los días para organizar mi trabajo")
	require.True(t, ok)
	assert.Equal(t, "es", code)
}

func TestNormalizeRating(t *testing.T) {
	tests := []struct {
		name string
		in   *models.Number
		want *int
	}{
		{"integer", models.NumberOf(3), models.IntPtr(3)},
		{"round up", models.NumberOf(3.7), models.IntPtr(4)},
		{"clamp low", models.NumberOf(0), models.IntPtr(1)},
		{"clamp high", models.NumberOf(6), models.IntPtr(5)},
		{"nil", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeRating(tt.in))
		})
	}
}

func TestNormalizeCount(t *testing.T) {
	assert.Equal(t, 10, NormalizeCount(models.NumberOf(10)))
	assert.Equal(t, 2, NormalizeCount(models.NumberOf(2.9)))
	assert.Equal(t, 0, NormalizeCount(models.NumberOf(-4)))
	assert.Equal(t, 0, NormalizeCount(nil))
}

func TestNormalizeDate(t *testing.T) {
	want := time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)

	for _, in := range []string{"2023-01-01T12:00:00", "2023-01-01T12:00:00Z", "2023-01-01 12:00:00"} {
		got := NormalizeDate(in)
		require.NotNil(t, got, in)
		assert.True(t, want.Equal(*got), in)
	}

	for _, in := range []string{"2023-01-01", "01/01/2023", "January 1, 2023"} {
		got := NormalizeDate(in)
		require.NotNil(t, got, in)
		assert.Equal(t, "2023-01-01", got.Format("2006-01-02"), in)
	}

	assert.Nil(t, NormalizeDate(""))
	assert.Nil(t, NormalizeDate("not a date"))
}

func TestCleanReview(t *testing.T) {
	c := newTestCleaner(WithDetector(stubDetector{"en", true}))

	raw := models.RawReview{
		ReviewID:     "test_123",
		Platform:     "reddit",
		AppName:      "Spotify",
		Title:        "  Great App!  ",
		Content:      "  This app is really good https://spam.com and useful  ",
		Rating:       models.NumberOf(4.7),
		HelpfulCount: models.NumberOf(10),
		ReviewDate:   "2023-01-01 12:00:00",
	}

	review, ok := c.CleanReview(raw)
	require.True(t, ok)
	assert.Equal(t, "Great App!", review.Title)
	assert.Equal(t, "This app is really good  and useful", review.CleanedContent)
	assert.Equal(t, raw.Content, review.Content)
	require.NotNil(t, review.Rating)
	assert.Equal(t, 5, *review.Rating)
	assert.Equal(t, 10, review.HelpfulCount)
	assert.NotNil(t, review.CleanedAt)
	assert.NotNil(t, review.ReviewDate)
	assert.Equal(t, len([]rune(raw.Content)), review.OriginalLength)
	assert.Equal(t, len(review.CleanedContent), review.CleanedLength)
}

func TestCleanReviewsAndStats(t *testing.T) {
	c := newTestCleaner(WithDetector(stubDetector{"en", true}))

	raws := []models.RawReview{
		{ReviewID: "1", Platform: "reddit", AppName: "x", Content: "Works great on my phone every day"},
		{ReviewID: "2", Platform: "reddit", AppName: "x", Content: "Bad"},
		{ReviewID: "3", Platform: "reddit", AppName: "x", Content: "Free money!!! click here"},
		{ReviewID: "", Platform: "reddit", AppName: "x", Content: "Missing id but otherwise a fine review"},
	}

	cleaned := c.CleanReviews(raws)
	require.Len(t, cleaned, 1)
	assert.Equal(t, "1", cleaned[0].ReviewID)

	stats := c.Stats(len(raws), cleaned)
	assert.Equal(t, 4, stats.OriginalCount)
	assert.Equal(t, 3, stats.RemovedCount)
	assert.InDelta(t, 0.75, stats.RemovalRate, 1e-9)
	assert.InDelta(t, 0, stats.AverageLengthReduction, 1e-9)
}
