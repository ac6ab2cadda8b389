package sensor

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"geotagger/internal/textutil"
)

// TieWindow is the ambiguity tolerance for timestamp joins: a second record
// whose delta is within TieWindow of the best delta makes the join ambiguous.
const TieWindow = 100 * time.Millisecond

// JoinMethod names how a photo was correlated with its record.
type JoinMethod string

const (
	JoinFilename  JoinMethod = "FILENAME"
	JoinTimestamp JoinMethod = "TIMESTAMP"
)

// FailureKind classifies a correlation failure.
type FailureKind string

const (
	FailureNoCorrelation     FailureKind = "no_correlation"
	FailureNoPhotoTimestamp  FailureKind = "no_photo_timestamp"
	FailureAmbiguous         FailureKind = "ambiguous"
	FailureThresholdExceeded FailureKind = "threshold_exceeded"
)

// CorrelationError explains why a photo could not be matched.
type CorrelationError struct {
	Kind   FailureKind
	Reason string
	// Delta is the best measured delta for ambiguous or threshold failures.
	Delta time.Duration
}

func (e *CorrelationError) Error() string { return e.Reason }

// MatchOptions controls matching and the derived output fields.
type MatchOptions struct {
	MaxDelta     time.Duration
	PACPrecision int
}

// Match is a successful correlation with its derived output fields.
type Match struct {
	Record Record
	Method JoinMethod
	// Delta is zero for filename joins.
	Delta       time.Duration
	CaptureTime string
	Description string
	// PAC is nil when the record has no positive relative altitude.
	PAC *float64
}

// MatchResult is either a Match or a CorrelationError, never both.
type MatchResult struct {
	match   *Match
	failure *CorrelationError
}

// Matched wraps a successful correlation.
func Matched(m Match) MatchResult { return MatchResult{match: &m} }

// Unmatched wraps a correlation failure.
func Unmatched(err *CorrelationError) MatchResult { return MatchResult{failure: err} }

// Get returns the match, or the failure when the photo is unmatched.
func (r MatchResult) Get() (Match, *CorrelationError) {
	if r.match == nil {
		if r.failure == nil {
			return Match{}, &CorrelationError{Kind: FailureNoCorrelation, Reason: "not matched"}
		}
		return Match{}, r.failure
	}
	return *r.match, nil
}

// OK reports whether the result is a match.
func (r MatchResult) OK() bool { return r.match != nil }

// Match correlates photoPath with a record. Filename references always win;
// otherwise the nearest timestamped record is used subject to TieWindow and
// opts.MaxDelta.
func (idx *Index) Match(photoPath string, opts MatchOptions) MatchResult {
	name := textutil.NormalizeName(filepath.Base(strings.ReplaceAll(photoPath, "\\", "/")))
	if i, ok := idx.byPhoto[name]; ok {
		return Matched(idx.derive(idx.records[i], JoinFilename, 0, opts))
	}

	if len(idx.timed) == 0 && len(idx.byPhoto) == 0 {
		return Unmatched(&CorrelationError{
			Kind:   FailureNoCorrelation,
			Reason: "no explicit photo-column correlation and no timestamped rows available",
		})
	}

	target, ok := FilenameTimestamp(name)
	if !ok {
		return Unmatched(&CorrelationError{
			Kind:   FailureNoPhotoTimestamp,
			Reason: "no filename timestamp and no photo-column correlation",
		})
	}
	if len(idx.timed) == 0 {
		return Unmatched(&CorrelationError{
			Kind:   FailureNoCorrelation,
			Reason: "photo not referenced by any log and no timestamped rows available",
		})
	}

	best, delta, ties := idx.nearest(target)
	if ties > 1 {
		return Unmatched(&CorrelationError{
			Kind:   FailureAmbiguous,
			Reason: fmt.Sprintf("ambiguous timestamp join: %d records within %s of best delta %s", ties, TieWindow, formatDelta(delta)),
			Delta:  delta,
		})
	}
	if delta > opts.MaxDelta {
		return Unmatched(&CorrelationError{
			Kind:   FailureThresholdExceeded,
			Reason: fmt.Sprintf("nearest timestamp delta %s exceeds threshold %s", formatDelta(delta), formatDelta(opts.MaxDelta)),
			Delta:  delta,
		})
	}
	return Matched(idx.derive(idx.records[best], JoinTimestamp, delta, opts))
}

func (idx *Index) derive(rec Record, method JoinMethod, delta time.Duration, opts MatchOptions) Match {
	m := Match{
		Record:      rec,
		Method:      method,
		Delta:       delta,
		Description: Description(rec),
		PAC:         PathAverageConcentration(rec.PPM, rec.Telemetry.RelativeAltitude, opts.PACPrecision),
	}
	if rec.HasTime() {
		m.CaptureTime = rec.Time.Format(CaptureTimeLayout)
	}
	return m
}

// Description renders the image description written into a tagged photo.
func Description(rec Record) string {
	return fmt.Sprintf("Methane %d ppm; source %s", int64(math.Round(rec.PPM)), rec.LogName())
}

// PathAverageConcentration returns ppm divided by the above-ground altitude,
// rounded to precision decimals. It is nil when agl is nil, zero or negative.
func PathAverageConcentration(ppm float64, agl *float64, precision int) *float64 {
	if agl == nil || *agl <= 0 {
		return nil
	}
	v := Round(ppm / *agl, precision)
	return &v
}

// Round rounds v half away from zero to the given number of decimals.
func Round(v float64, precision int) float64 {
	if precision < 0 {
		precision = 0
	}
	scale := math.Pow(10, float64(precision))
	return math.Round(v*scale) / scale
}

func formatDelta(d time.Duration) string {
	return fmt.Sprintf("%.3fs", d.Seconds())
}
