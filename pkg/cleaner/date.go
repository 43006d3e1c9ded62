package cleaner

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// layouts tried before falling back to dateparse. Day-first dates are
// only reachable here since dateparse assumes month-first.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"02/01/2006",
}

// NormalizeDate parses a review date in any common format. Dates without a
// zone are taken as UTC. Empty or unparseable input yields nil.
func NormalizeDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return &t
		}
	}

	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return nil
	}
	return &t
}
