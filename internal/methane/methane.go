// Package methane writes the per-log outputs of a methane run: a cleaned
// CSV of readings at or above the PPM threshold, an optional KMZ of the same
// points, and PPM statistics for the run summary.
package methane

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"geotagger/internal/artifacts"
	"geotagger/internal/logging"
	"geotagger/internal/sensor"
)

// Options controls which outputs are produced.
type Options struct {
	ThresholdPPM float64
	CleanedCSV   bool
	KMZ          bool
	OutDir       string
}

// cleanedHeader is the normalized column set of a cleaned CSV.
var cleanedHeader = []string{
	"timestamp", "latitude", "longitude", "ppm", "altitude", "relative_altitude", "photo", "source_row",
}

// Write produces outputs for every log. A failing log is reported in its
// result and never stops the others. Cancellation is checked per log.
func Write(ctx context.Context, logs []sensor.Log, opts Options, logger *slog.Logger) ([]artifacts.LogOutput, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	results := make([]artifacts.LogOutput, 0, len(logs))
	for _, l := range logs {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := writeLog(l, opts)
		if res.Error != "" {
			logger.Warn("methane output failed",
				logging.String("log", l.Path),
				logging.Reason(res.Error),
				logging.String(logging.FieldEventType, "methane_output_failed"),
			)
		} else {
			logger.Info("methane output written",
				logging.String("log", l.Path),
				logging.Int("rows_kept", res.RowsKept),
				logging.Int("rows_total", res.RowsTotal),
				logging.Float64("ppm_max", res.PPMMax),
			)
		}
		results = append(results, res)
	}
	return results, nil
}

func writeLog(l sensor.Log, opts Options) artifacts.LogOutput {
	res := artifacts.LogOutput{LogPath: l.Path, RowsTotal: len(l.Records)}
	if l.Skipped() {
		res.Error = l.SkipReason
		return res
	}

	stats := Summarize(l.Records)
	res.PPMMean, res.PPMMax, res.PPMP95 = stats.Mean, stats.Max, stats.P95

	kept := Filter(l.Records, opts.ThresholdPPM)
	res.RowsKept = len(kept)

	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		res.Error = fmt.Sprintf("create output dir: %v", err)
		return res
	}
	stem := sensor.Stem(l.Path)
	if opts.CleanedCSV {
		path := filepath.Join(opts.OutDir, stem+"_Cleaned.csv")
		if err := writeCleanedCSV(path, kept); err != nil {
			res.Error = err.Error()
			return res
		}
		res.CleanedCSV = path
	}
	if opts.KMZ {
		path := filepath.Join(opts.OutDir, stem+".kmz")
		if err := WriteKMZ(path, stem, kept); err != nil {
			res.Error = err.Error()
			return res
		}
		res.KMZ = path
	}
	return res
}

// Filter returns records with PPM at or above threshold, in log order.
func Filter(records []sensor.Record, threshold float64) []sensor.Record {
	var out []sensor.Record
	for _, r := range records {
		if r.PPM >= threshold {
			out = append(out, r)
		}
	}
	return out
}

// Stats summarizes the PPM readings of a log.
type Stats struct {
	Mean float64
	Max  float64
	P95  float64
}

// Summarize computes PPM statistics. An empty input yields zeros.
func Summarize(records []sensor.Record) Stats {
	if len(records) == 0 {
		return Stats{}
	}
	values := make([]float64, len(records))
	for i, r := range records {
		values[i] = r.PPM
	}
	slices.Sort(values)
	return Stats{
		Mean: stat.Mean(values, nil),
		Max:  floats.Max(values),
		P95:  stat.Quantile(0.95, stat.Empirical, values, nil),
	}
}

func writeCleanedCSV(path string, records []sensor.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create cleaned csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(cleanedHeader); err != nil {
		return err
	}
	for _, r := range records {
		ts := r.RawTime
		if r.HasTime() {
			ts = r.Time.Format("2006-01-02 15:04:05.000")
		}
		if err := w.Write([]string{
			ts,
			strconv.FormatFloat(r.Lat, 'f', -1, 64),
			strconv.FormatFloat(r.Lon, 'f', -1, 64),
			strconv.FormatFloat(r.PPM, 'f', -1, 64),
			optional(r.Telemetry.Altitude),
			optional(r.Telemetry.RelativeAltitude),
			r.Photo,
			strconv.Itoa(r.Row),
		}); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write cleaned csv: %w", err)
	}
	return f.Close()
}

func optional(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
