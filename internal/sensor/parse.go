package sensor

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"geotagger/internal/textutil"
)

// Log is the parse outcome of one sensor log file.
type Log struct {
	Path    string
	Header  []string
	Records []Record
	// RowsDropped counts data rows rejected individually.
	RowsDropped int
	// SkipReason is set when the whole log was rejected.
	SkipReason string
}

// Skipped reports whether the log contributed no records because it was
// rejected as a whole.
func (l Log) Skipped() bool { return l.SkipReason != "" }

// ParseFile reads and parses one sensor log. A non-nil error means the file
// could not be read at all; content problems are reported via SkipReason.
func ParseFile(path string) (Log, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Log{Path: path, SkipReason: fmt.Sprintf("read failed: %v", err)}, err
	}
	return Parse(path, raw), nil
}

// Parse parses the raw bytes of a sensor log.
func Parse(path string, raw []byte) Log {
	out := Log{Path: path}

	text, err := decodeText(raw)
	if err != nil {
		out.SkipReason = err.Error()
		return out
	}
	if strings.TrimSpace(text) == "" {
		out.SkipReason = "empty log"
		return out
	}

	delim := sniffDelimiter(text)
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	r.ReuseRecord = false

	header, err := r.Read()
	if err != nil {
		out.SkipReason = fmt.Sprintf("unreadable header: %v", err)
		return out
	}
	out.Header = header
	cols := resolveColumns(header)
	if !cols.has(fieldLat) || !cols.has(fieldLon) {
		out.SkipReason = "no latitude/longitude columns"
		return out
	}

	decimalComma := delim == ';'
	row := 0
	for {
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				out.RowsDropped++
				continue
			}
			out.RowsDropped++
			break
		}
		if blankRow(fields) {
			row--
			continue
		}
		rec, ok := buildRecord(path, row, fields, cols, decimalComma)
		if !ok {
			out.RowsDropped++
			continue
		}
		out.Records = append(out.Records, rec)
	}
	return out
}

// decodeText honours UTF-8 and UTF-16 byte order marks. Content without a
// UTF-16 mark must already be valid UTF-8; a literal U+FFFD is kept.
func decodeText(raw []byte) (string, error) {
	utf16 := bytes.HasPrefix(raw, []byte{0xfe, 0xff}) || bytes.HasPrefix(raw, []byte{0xff, 0xfe})
	if !utf16 && !utf8.Valid(raw) {
		return "", errors.New("not valid UTF-8 text")
	}
	decoded, _, err := transform.Bytes(unicode.BOMOverride(transform.Nop), raw)
	if err != nil {
		return "", fmt.Errorf("decode failed: %w", err)
	}
	return string(decoded), nil
}

// sniffDelimiter picks the most frequent of comma, semicolon and tab on the
// first line. Commas win ties.
func sniffDelimiter(text string) rune {
	line, _, _ := strings.Cut(text, "\n")
	best, bestCount := ',', strings.Count(line, ",")
	for _, d := range []rune{';', '\t'} {
		if n := strings.Count(line, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

func blankRow(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func buildRecord(path string, row int, fields []string, cols columnMap, decimalComma bool) (Record, bool) {
	cell := func(f field) string {
		idx := cols[f]
		if idx < 0 || idx >= len(fields) {
			return ""
		}
		return strings.TrimSpace(fields[idx])
	}
	num := func(f field) *float64 {
		v, ok := parseNumber(cell(f), decimalComma)
		if !ok {
			return nil
		}
		return &v
	}

	lat, ok := parseNumber(cell(fieldLat), decimalComma)
	if !ok || lat < -90 || lat > 90 {
		return Record{}, false
	}
	lon, ok := parseNumber(cell(fieldLon), decimalComma)
	if !ok || lon < -180 || lon > 180 {
		return Record{}, false
	}

	rec := Record{
		Lat:     lat,
		Lon:     lon,
		LogPath: path,
		Row:     row,
		RawTime: cell(fieldTimestamp),
	}
	if ppm, ok := parseNumber(cell(fieldPPM), decimalComma); ok {
		rec.PPM = ppm
	}
	if t, ok := ParseTimestamp(rec.RawTime); ok {
		rec.Time = t
	}
	if ref := cell(fieldPhoto); ref != "" {
		rec.Photo = photoBaseName(ref)
	}
	rec.Telemetry = Telemetry{
		Altitude:         num(fieldAltitude),
		RelativeAltitude: num(fieldRelativeAltitude),
		LightIntensity:   num(fieldLight),
		UAVPitch:         num(fieldUAVPitch),
		UAVRoll:          num(fieldUAVRoll),
		UAVYaw:           num(fieldUAVYaw),
		GimbalPitch:      num(fieldGimbalPitch),
		GimbalRoll:       num(fieldGimbalRoll),
		GimbalYaw:        num(fieldGimbalYaw),
		FocalLength:      num(fieldFocalLength),
		Zoom:             num(fieldZoom),
	}
	return rec, true
}

func parseNumber(s string, decimalComma bool) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if decimalComma {
		s = strings.Replace(s, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// photoBaseName strips any directory, written with either separator, and
// normalizes the result to NFC.
func photoBaseName(ref string) string {
	ref = strings.ReplaceAll(ref, "\\", "/")
	return textutil.NormalizeName(filepath.Base(ref))
}

// Stem returns the log file name without extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ParseAll parses paths in order, stopping early only on cancellation.
func ParseAll(ctx context.Context, paths []string) ([]Log, error) {
	logs := make([]Log, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return logs, err
		}
		l, _ := ParseFile(p)
		logs = append(logs, l)
	}
	return logs, nil
}
