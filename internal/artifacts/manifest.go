package artifacts

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Task statuses recorded in the manifest.
const (
	StatusPending = "PENDING"
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
	StatusSkipped = "SKIPPED"
)

// ManifestHeader is the column order of manifest.csv.
var ManifestHeader = []string{
	"source_path",
	"output_path",
	"status",
	"reason",
	"lat",
	"lon",
	"ppm",
	"csv_path",
	"join_method",
	"exif_written",
	"altitude",
	"relative_altitude",
	"light_intensity",
	"pac",
	"uav_pitch",
	"uav_roll",
	"uav_yaw",
	"gimbal_pitch",
	"gimbal_roll",
	"gimbal_yaw",
	"camera_focal_length",
	"camera_zoom",
	"capture_time",
}

// ManifestRow is the final record of one photo.
type ManifestRow struct {
	SourcePath       string
	OutputPath       string
	Status           string
	Reason           string
	Lat              *float64
	Lon              *float64
	PPM              *float64
	CSVPath          string
	JoinMethod       string
	ExifWritten      bool
	Altitude         *float64
	RelativeAltitude *float64
	LightIntensity   *float64
	PAC              *float64
	UAVPitch         *float64
	UAVRoll          *float64
	UAVYaw           *float64
	GimbalPitch      *float64
	GimbalRoll       *float64
	GimbalYaw        *float64
	FocalLength      *float64
	Zoom             *float64
	CaptureTime      string
}

func (r ManifestRow) record() []string {
	return []string{
		r.SourcePath,
		r.OutputPath,
		r.Status,
		r.Reason,
		formatFloat(r.Lat),
		formatFloat(r.Lon),
		formatFloat(r.PPM),
		r.CSVPath,
		r.JoinMethod,
		strconv.FormatBool(r.ExifWritten),
		formatFloat(r.Altitude),
		formatFloat(r.RelativeAltitude),
		formatFloat(r.LightIntensity),
		formatFloat(r.PAC),
		formatFloat(r.UAVPitch),
		formatFloat(r.UAVRoll),
		formatFloat(r.UAVYaw),
		formatFloat(r.GimbalPitch),
		formatFloat(r.GimbalRoll),
		formatFloat(r.GimbalYaw),
		formatFloat(r.FocalLength),
		formatFloat(r.Zoom),
		r.CaptureTime,
	}
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// WriteManifest writes the header and one line per row. The header is
// always present, even with no rows.
func WriteManifest(path string, rows []ManifestRow) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(ManifestHeader); err != nil {
		return err
	}
	for _, r := range rows {
		if err := w.Write(r.record()); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return writeAtomic(path, buf.Bytes())
}

// ReadManifest parses a manifest written by WriteManifest. Columns are
// looked up by header name so extra or reordered columns are tolerated.
func ReadManifest(path string) ([]ManifestRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read manifest header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	if _, ok := col["source_path"]; !ok {
		return nil, errors.New("manifest has no source_path column")
	}
	if _, ok := col["status"]; !ok {
		return nil, errors.New("manifest has no status column")
	}

	var rows []ManifestRow
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return rows, fmt.Errorf("read manifest: %w", err)
		}
		get := func(name string) string {
			i, ok := col[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return rec[i]
		}
		num := func(name string) *float64 {
			v, err := strconv.ParseFloat(strings.TrimSpace(get(name)), 64)
			if err != nil {
				return nil
			}
			return &v
		}
		written, _ := strconv.ParseBool(get("exif_written"))
		rows = append(rows, ManifestRow{
			SourcePath:       get("source_path"),
			OutputPath:       get("output_path"),
			Status:           get("status"),
			Reason:           get("reason"),
			Lat:              num("lat"),
			Lon:              num("lon"),
			PPM:              num("ppm"),
			CSVPath:          get("csv_path"),
			JoinMethod:       get("join_method"),
			ExifWritten:      written,
			Altitude:         num("altitude"),
			RelativeAltitude: num("relative_altitude"),
			LightIntensity:   num("light_intensity"),
			PAC:              num("pac"),
			UAVPitch:         num("uav_pitch"),
			UAVRoll:          num("uav_roll"),
			UAVYaw:           num("uav_yaw"),
			GimbalPitch:      num("gimbal_pitch"),
			GimbalRoll:       num("gimbal_roll"),
			GimbalYaw:        num("gimbal_yaw"),
			FocalLength:      num("camera_focal_length"),
			Zoom:             num("camera_zoom"),
			CaptureTime:      get("capture_time"),
		})
	}
	return rows, nil
}

// ResolveManifest accepts a run folder or a manifest path and returns the
// manifest path.
func ResolveManifest(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		path = filepath.Join(path, ManifestName)
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("no %s in run folder: %w", ManifestName, err)
		}
	}
	return path, nil
}

// FailedSources returns the source paths of FAILED rows that still exist on
// disk, in manifest order without duplicates.
func FailedSources(rows []ManifestRow) []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range rows {
		if r.Status != StatusFailed || r.SourcePath == "" || seen[r.SourcePath] {
			continue
		}
		info, err := os.Stat(r.SourcePath)
		if err != nil || info.IsDir() {
			continue
		}
		seen[r.SourcePath] = true
		out = append(out, r.SourcePath)
	}
	return out
}

// StatusCounts tallies rows per status.
func StatusCounts(rows []ManifestRow) map[string]int {
	out := map[string]int{}
	for _, r := range rows {
		out[r.Status]++
	}
	return out
}
