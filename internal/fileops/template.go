package fileops

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DefaultTemplate is used when renaming is enabled without a template.
const DefaultTemplate = "{index:04}_{ppm}ppm_{stem}"

// Values feeds one rendered file name.
type Values struct {
	Index int
	PPM   float64
	Lat   float64
	Lon   float64
	Stem  string
	// Time renders {date} and {time}; the zero value renders zeros.
	Time time.Time
}

type segment struct {
	literal string
	token   string
	width   int
}

// Template is a parsed rename template such as "{index:04}_{ppm}ppm_{stem}".
type Template struct {
	raw      string
	segments []segment
}

var knownTokens = map[string]bool{
	"index": true,
	"ppm":   true,
	"lat":   true,
	"lon":   true,
	"stem":  true,
	"date":  true,
	"time":  true,
}

// paddable tokens accept a ":N" width.
var paddable = map[string]bool{"index": true, "ppm": true}

// ParseTemplate validates and parses a rename template.
func ParseTemplate(raw string) (Template, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Template{}, fmt.Errorf("rename template is empty")
	}
	t := Template{raw: raw}
	rest := raw
	for rest != "" {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			if strings.ContainsRune(rest, '}') {
				return Template{}, fmt.Errorf("rename template %q: unmatched '}'", raw)
			}
			t.segments = append(t.segments, segment{literal: rest})
			break
		}
		if open > 0 {
			lit := rest[:open]
			if strings.ContainsRune(lit, '}') {
				return Template{}, fmt.Errorf("rename template %q: unmatched '}'", raw)
			}
			t.segments = append(t.segments, segment{literal: lit})
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			return Template{}, fmt.Errorf("rename template %q: unterminated token", raw)
		}
		seg, err := parseToken(rest[open+1 : open+end])
		if err != nil {
			return Template{}, fmt.Errorf("rename template %q: %w", raw, err)
		}
		t.segments = append(t.segments, seg)
		rest = rest[open+end+1:]
	}
	if !t.uses("index") && !t.uses("stem") {
		return Template{}, fmt.Errorf("rename template %q must include {index} or {stem} to keep names distinct", raw)
	}
	return t, nil
}

func parseToken(body string) (segment, error) {
	name, widthText, hasWidth := strings.Cut(strings.TrimSpace(body), ":")
	name = strings.ToLower(strings.TrimSpace(name))
	if !knownTokens[name] {
		return segment{}, fmt.Errorf("unknown token {%s}", body)
	}
	seg := segment{token: name}
	if hasWidth {
		if !paddable[name] {
			return segment{}, fmt.Errorf("token {%s} does not take a width", name)
		}
		w, err := strconv.Atoi(strings.TrimSpace(widthText))
		if err != nil || w < 1 || w > 12 {
			return segment{}, fmt.Errorf("invalid width in {%s}", body)
		}
		seg.width = w
	}
	return seg, nil
}

func (t Template) uses(token string) bool {
	for _, s := range t.segments {
		if s.token == token {
			return true
		}
	}
	return false
}

// String returns the template source.
func (t Template) String() string { return t.raw }

// Render produces a file stem (without extension) for v.
func (t Template) Render(v Values) string {
	var b strings.Builder
	for _, s := range t.segments {
		if s.token == "" {
			b.WriteString(s.literal)
			continue
		}
		switch s.token {
		case "index":
			b.WriteString(pad(int64(v.Index), s.width))
		case "ppm":
			b.WriteString(pad(int64(math.Round(v.PPM)), s.width))
		case "lat":
			b.WriteString(strconv.FormatFloat(v.Lat, 'f', 6, 64))
		case "lon":
			b.WriteString(strconv.FormatFloat(v.Lon, 'f', 6, 64))
		case "stem":
			b.WriteString(v.Stem)
		case "date":
			if v.Time.IsZero() {
				b.WriteString("00000000")
			} else {
				b.WriteString(v.Time.Format("20060102"))
			}
		case "time":
			if v.Time.IsZero() {
				b.WriteString("000000")
			} else {
				b.WriteString(v.Time.Format("150405"))
			}
		}
	}
	return b.String()
}

func pad(n int64, width int) string {
	if width <= 0 {
		return strconv.FormatInt(n, 10)
	}
	if n < 0 {
		return "-" + fmt.Sprintf("%0*d", width, -n)
	}
	return fmt.Sprintf("%0*d", width, n)
}
