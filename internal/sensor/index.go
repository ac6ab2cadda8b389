package sensor

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"geotagger/internal/logging"
)

// Stats summarizes what went into an Index.
type Stats struct {
	LogsParsed         int `json:"logs_parsed"`
	LogsSkipped        int `json:"logs_skipped"`
	RowsDropped        int `json:"rows_dropped"`
	Records            int `json:"records"`
	TimestampedRecords int `json:"timestamped_records"`
	PhotoReferences    int `json:"photo_references"`
}

// Index holds every record of a run plus the filename and time lookups.
// It is never mutated after NewIndex returns.
type Index struct {
	logs    []Log
	records []Record
	byPhoto map[string]int
	// timed holds indexes into records ordered by Time.
	timed []int
	stats Stats
}

// Build parses every log and indexes the surviving records. Logs are
// indexed in the order given; callers pass them sorted.
func Build(ctx context.Context, paths []string, logger *slog.Logger) (*Index, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	logs, err := ParseAll(ctx, paths)
	if err != nil {
		return nil, err
	}
	for _, l := range logs {
		if l.Skipped() {
			logger.Warn("sensor log skipped",
				logging.String("log", l.Path),
				logging.Reason(l.SkipReason),
				logging.String(logging.FieldEventType, "sensor_log_skipped"),
				logging.String(logging.FieldErrorHint, "check the file is a UTF-8 CSV with latitude and longitude columns"),
			)
			continue
		}
		logger.Info("sensor log parsed",
			logging.String("log", l.Path),
			logging.Int("records", len(l.Records)),
			logging.Int("rows_dropped", l.RowsDropped),
		)
	}
	return NewIndex(logs), nil
}

// NewIndex indexes already parsed logs.
func NewIndex(logs []Log) *Index {
	idx := &Index{
		logs:    logs,
		byPhoto: make(map[string]int),
	}
	for _, l := range logs {
		if l.Skipped() {
			idx.stats.LogsSkipped++
			continue
		}
		idx.stats.LogsParsed++
		idx.stats.RowsDropped += l.RowsDropped
		idx.records = append(idx.records, l.Records...)
	}
	for i, rec := range idx.records {
		if rec.Photo != "" {
			if _, seen := idx.byPhoto[rec.Photo]; !seen {
				idx.byPhoto[rec.Photo] = i
			}
		}
		if rec.HasTime() {
			idx.timed = append(idx.timed, i)
		}
	}
	slices.SortStableFunc(idx.timed, func(a, b int) int {
		return idx.records[a].Time.Compare(idx.records[b].Time)
	})
	idx.stats.Records = len(idx.records)
	idx.stats.TimestampedRecords = len(idx.timed)
	idx.stats.PhotoReferences = len(idx.byPhoto)
	return idx
}

// Stats reports index counters.
func (idx *Index) Stats() Stats { return idx.stats }

// Logs returns the parse outcome of every log, including skipped ones.
func (idx *Index) Logs() []Log { return slices.Clone(idx.logs) }

// nearest returns the record closest to target, its absolute delta and the
// number of records whose delta is within TieWindow of the best one.
func (idx *Index) nearest(target time.Time) (best int, delta time.Duration, ties int) {
	n := len(idx.timed)
	at := func(i int) time.Time { return idx.records[idx.timed[i]].Time }

	pos, _ := slices.BinarySearchFunc(idx.timed, target, func(ri int, t time.Time) int {
		return idx.records[ri].Time.Compare(t)
	})
	best = -1
	for _, i := range []int{pos - 1, pos} {
		if i < 0 || i >= n {
			continue
		}
		d := absDuration(at(i).Sub(target))
		if best < 0 || d < delta {
			best, delta = i, d
		}
	}

	// Every record with |t-target| <= delta+TieWindow is a tie candidate,
	// the winner included.
	limit := delta + TieWindow
	lo, _ := slices.BinarySearchFunc(idx.timed, target.Add(-limit), func(ri int, t time.Time) int {
		return idx.records[ri].Time.Compare(t)
	})
	hi, found := slices.BinarySearchFunc(idx.timed, target.Add(limit), func(ri int, t time.Time) int {
		return idx.records[ri].Time.Compare(t)
	})
	if found {
		for hi < n && !at(hi).After(target.Add(limit)) {
			hi++
		}
	}
	return idx.timed[best], delta, hi - lo
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
