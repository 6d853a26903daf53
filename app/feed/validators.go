package feed

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"golang.org/x/text/language"
)

// Language normalizes a feed language value to a two-letter base code,
// defaulting to "en".
func Language(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "en"
	}
	if tag, err := language.Parse(value); err == nil {
		if base, conf := tag.Base(); conf != language.No {
			return base.String()
		}
	}
	if len(value) >= 2 {
		return strings.ToLower(value[:2])
	}
	return "en"
}

// Explicit reports whether an itunes:explicit value marks content explicit.
func Explicit(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "clean", "yes":
		return true
	}
	return false
}

// Complete reports whether an itunes:complete value marks a feed finished.
func Complete(value string) bool {
	return strings.EqualFold(strings.TrimSpace(value), "yes")
}

// URL validates a URL value, prefixing https:// when only a domain is given.
// Returns empty string when the value cannot resolve to an http(s) URL.
func URL(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}

	parsed, err := url.Parse(value)
	if err != nil {
		return ""
	}

	if parsed.Scheme == "" && !strings.Contains(value, "://") && strings.Contains(value, ".") {
		return URL("https://" + value)
	}

	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return ""
	}
	return parsed.String()
}

// IsAudio reports whether a MIME type denotes an audio enclosure.
func IsAudio(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "audio/")
}

// PGInteger parses an integer, returning nil unless it fits a Postgres
// int4 column.
func PGInteger(value string) *int {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil || parsed < math.MinInt32 || parsed > math.MaxInt32 {
		return nil
	}
	result := int(parsed)
	return &result
}

// Duration normalizes an itunes:duration value: a plain seconds count passes
// through, h:m:s / m:s forms keep at most three components with minute and
// second components outside [0,60) dropped. Unresolvable values become "".
func Duration(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}

	if seconds, err := strconv.Atoi(value); err == nil {
		return strconv.Itoa(seconds)
	}

	parts := strings.Split(value, ":")
	if len(parts) > 3 {
		parts = parts[:3]
	}

	hasHours := len(parts) == 3

	var kept []string
	for i, part := range parts {
		component, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return ""
		}
		// hours are unbounded, minute and second components are not
		if (i > 0 || !hasHours) && (component < 0 || component >= 60) {
			continue
		}
		kept = append(kept, strconv.Itoa(component))
	}
	return strings.Join(kept, ":")
}

// PubDate parses an item pub date and rejects dates in the future.
func PubDate(value string, parsed *time.Time, now time.Time) (time.Time, error) {
	pubDate := time.Time{}
	if parsed != nil {
		pubDate = *parsed
	} else if value != "" {
		var err error
		pubDate, err = dateparse.ParseAny(value)
		if err != nil {
			return time.Time{}, fmt.Errorf("unparseable pub date %q: %w", value, err)
		}
	}

	if pubDate.IsZero() {
		return time.Time{}, fmt.Errorf("missing pub date")
	}
	if pubDate.After(now) {
		return time.Time{}, fmt.Errorf("pub date %s is in the future", pubDate)
	}
	return pubDate, nil
}
