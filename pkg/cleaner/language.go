package cleaner

import (
	"strings"

	"github.com/pemistahl/lingua-go"
)

// LanguageDetector returns the lowercase ISO 639-1 code of text's language.
// ok is false when the language cannot be determined.
type LanguageDetector interface {
	Detect(text string) (code string, ok bool)
}

var linguaLanguages = map[string]lingua.Language{
	"en": lingua.English,
	"es": lingua.Spanish,
	"fr": lingua.French,
	"de": lingua.German,
	"pt": lingua.Portuguese,
	"it": lingua.Italian,
	"nl": lingua.Dutch,
}

// candidate languages always considered so that common non-supported
// languages are recognized as such instead of being forced into English
var baselineLanguages = []string{"en", "es", "fr", "de", "pt", "it", "nl"}

type linguaDetector struct {
	detector lingua.LanguageDetector
}

// NewLinguaDetector builds a detector over the supported languages plus a
// baseline set of widely used European languages.
func NewLinguaDetector(supported []string) LanguageDetector {
	seen := map[lingua.Language]bool{}
	var langs []lingua.Language
	for _, code := range append(append([]string{}, supported...), baselineLanguages...) {
		lang, ok := linguaLanguages[strings.ToLower(code)]
		if !ok || seen[lang] {
			continue
		}
		seen[lang] = true
		langs = append(langs, lang)
	}

	return &linguaDetector{
		detector: lingua.NewLanguageDetectorBuilder().
			FromLanguages(langs...).
			Build(),
	}
}

func (d *linguaDetector) Detect(text string) (string, bool) {
	lang, ok := d.detector.DetectLanguageOf(text)
	if !ok {
		return "", false
	}
	return strings.ToLower(lang.IsoCode639_1().String()), true
}

var englishMarkers = map[string]bool{
	"the": true, "and": true, "or": true, "but": true, "in": true, "on": true,
	"at": true, "to": true, "for": true, "of": true, "with": true, "by": true,
}

// looksEnglish reports whether at least two distinct common English
// function words appear in text.
func looksEnglish(text string) bool {
	found := map[string]bool{}
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && r != '\''
	}) {
		if englishMarkers[w] {
			found[w] = true
			if len(found) >= 2 {
				return true
			}
		}
	}
	return false
}

func (c *Cleaner) isSupportedLanguage(text string) bool {
	if code, ok := c.detector.Detect(text); ok && c.languages[code] {
		return true
	}
	// Short reviews are often too ambiguous for the detector.
	return c.languages["en"] && looksEnglish(text)
}
