package common

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ContentHash computes SHA256 hash of content and returns hex string.
func ContentHash(data []byte) string {
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash)
}

// MD5Hex returns the hex md5 digest of s. Used for review fingerprints, not security.
func MD5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return fmt.Sprintf("%x", sum)
}

var (
	invalidFilenameChars = strings.NewReplacer(
		"<", "_", ">", "_", ":", "_", `"`, "_", "/", "_", `\`, "_", "|", "_", "?", "_", "*", "_",
	)
	repeatedUnderscores = regexp.MustCompile(`_+`)
)

// SafeFilename replaces characters that are invalid in file names with
// underscores, collapses runs of underscores and caps the length at 200 bytes.
// Example: `spotify:reddit//2024` -> `spotify_reddit_2024`
func SafeFilename(name string) string {
	safe := invalidFilenameChars.Replace(name)
	safe = repeatedUnderscores.ReplaceAllString(safe, "_")
	safe = strings.Trim(safe, "_")
	if len(safe) > 200 {
		safe = safe[:200]
	}
	return safe
}

// SplitList splits a comma and/or whitespace separated flag value,
// dropping empty entries and lowercasing each item.
func SplitList(values ...string) []string {
	var out []string
	for _, v := range values {
		for _, item := range strings.FieldsFunc(v, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		}) {
			out = append(out, strings.ToLower(item))
		}
	}
	return out
}

// Chunk splits items into consecutive slices of at most size elements.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 || len(items) <= size {
		return [][]T{items}
	}
	var chunks [][]T
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[i:end])
	}
	return chunks
}

// SanitizeURL performs basic cleanup on URLs to handle common copy-paste issues.
func SanitizeURL(rawURL string) string {
	cleaned := strings.TrimSpace(rawURL)

	// [text](url) -> url
	markdownLinkPattern := regexp.MustCompile(`^\[.*?\]\((https?://[^\)]+)\)$`)
	if matches := markdownLinkPattern.FindStringSubmatch(cleaned); len(matches) > 1 {
		cleaned = matches[1]
	}

	for _, char := range []string{",", ".", ")", "}", "]", "\"", "'", ">", ";"} {
		cleaned = strings.TrimSuffix(cleaned, char)
	}
	for _, char := range []string{"(", "[", "<", "\"", "'"} {
		cleaned = strings.TrimPrefix(cleaned, char)
	}

	return strings.TrimSpace(cleaned)
}

// ValidateURL sanitizes rawURL and checks that it is an absolute http(s) URL.
func ValidateURL(rawURL string) (string, error) {
	cleaned := SanitizeURL(rawURL)
	if cleaned == "" || strings.Contains(cleaned, " ") {
		return "", fmt.Errorf("invalid URL %q", rawURL)
	}
	parsed, err := url.Parse(cleaned)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("invalid URL %q: scheme must be http or https", rawURL)
	}
	if parsed.Host == "" || strings.ContainsAny(parsed.Host, "{}[]<>\"'") {
		return "", fmt.Errorf("invalid URL %q: bad host", rawURL)
	}
	return cleaned, nil
}

// FilterFields converts v to a map through its JSON form and keeps only the
// comma separated fields requested. An empty fields string keeps everything.
func FilterFields(v any, fields string) map[string]any {
	data, _ := json.Marshal(v)
	var full map[string]any
	_ = json.Unmarshal(data, &full)

	if fields == "" {
		return full
	}
	filtered := make(map[string]any)
	for _, f := range strings.Split(fields, ",") {
		f = strings.TrimSpace(f)
		if val, ok := full[f]; ok {
			filtered[f] = val
		}
	}
	return filtered
}
