package sensor

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// CaptureTimeLayout is the EXIF date layout used for formatted capture times.
const CaptureTimeLayout = "2006:01:02 15:04:05"

// rowTimestamp accepts "2023-08-30 20:51:02", "2023-08-30_20:51:02:123",
// "2023/08/30 20-51-02.5" and similar variants.
var rowTimestamp = regexp.MustCompile(`^(\d{4})[-/](\d{1,2})[-/](\d{1,2})[ _T](\d{1,2})[:\-](\d{2})[:\-](\d{2})(?:[.:,](\d{1,9}))?$`)

// rowLayouts are tried after rowTimestamp. Zoned values keep their wall
// clock so they compare against photo names taken in the same local time.
var rowLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"20060102_150405",
	"20060102150405",
	"01/02/2006 15:04:05",
}

// ParseTimestamp parses a free-text sensor log timestamp. Times without a
// zone are treated as UTC.
func ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if m := rowTimestamp.FindStringSubmatch(raw); m != nil {
		frac := 0
		if m[7] != "" {
			digits := m[7]
			for len(digits) < 9 {
				digits += "0"
			}
			frac, _ = strconv.Atoi(digits)
		}
		return buildTime(m[1], m[2], m[3], m[4], m[5], m[6], frac)
	}
	for _, layout := range rowLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return wallClockUTC(t), true
		}
	}
	return time.Time{}, false
}

// filenamePatterns are tried in order against a photo's stem.
var filenamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})_(\d{2})-(\d{2})-(\d{2})`),
	regexp.MustCompile(`(?:^|\D)(\d{4})(\d{2})(\d{2})_(\d{2})(\d{2})(\d{2})(?:\D|$)`),
	regexp.MustCompile(`(?:^|\D)(\d{4})(\d{2})(\d{2})(\d{2})(\d{2})(\d{2})(?:\D|$)`),
	regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})[ T_](\d{2})[:\-]?(\d{2})[:\-]?(\d{2})`),
}

// FilenameTimestamp extracts a timestamp embedded in the stem of path.
func FilenameTimestamp(path string) (time.Time, bool) {
	base := filepath.Base(strings.ReplaceAll(path, "\\", "/"))
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	for _, p := range filenamePatterns {
		m := p.FindStringSubmatch(stem)
		if m == nil {
			continue
		}
		if t, ok := buildTime(m[1], m[2], m[3], m[4], m[5], m[6], 0); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// buildTime assembles a UTC time and rejects components time.Date would
// silently normalize, such as month 13 or second 61.
func buildTime(year, month, day, hour, minute, second string, nanos int) (time.Time, bool) {
	parts := make([]int, 6)
	for i, s := range []string{year, month, day, hour, minute, second} {
		n, err := strconv.Atoi(s)
		if err != nil {
			return time.Time{}, false
		}
		parts[i] = n
	}
	t := time.Date(parts[0], time.Month(parts[1]), parts[2], parts[3], parts[4], parts[5], nanos, time.UTC)
	if t.Year() != parts[0] || int(t.Month()) != parts[1] || t.Day() != parts[2] ||
		t.Hour() != parts[3] || t.Minute() != parts[4] || t.Second() != parts[5] {
		return time.Time{}, false
	}
	return t, true
}

func wallClockUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}
