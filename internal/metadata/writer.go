package metadata

import (
	"context"
	"encoding/json"
	"errors"

	"geotagger/internal/sensor"
)

// Request describes the metadata to write into one photo.
type Request struct {
	// Path is the file to modify and the key of the returned result map.
	Path        string
	Lat         float64
	Lon         float64
	Altitude    *float64
	Description string
	// Comment is stored as EXIF UserComment.
	Comment string
}

// Result is the outcome of writing one photo.
type Result struct {
	Err error
}

// OK reports whether the write succeeded.
func (r Result) OK() bool { return r.Err == nil }

// ErrMissingResult is synthesized for requests the writer did not report on.
var ErrMissingResult = errors.New("metadata writer returned no result for file")

// Writer writes metadata for a set of photos. The returned map is keyed by
// Request.Path. A non-nil error means the writer as a whole failed; entries
// already present in the map remain valid. progress may be nil.
type Writer interface {
	Write(ctx context.Context, reqs []Request, workDir string, progress func(done, total int)) (map[string]Result, error)
}

// telemetryComment is the JSON bundle stored in UserComment.
type telemetryComment struct {
	PPM         float64          `json:"ppm"`
	PAC         *float64         `json:"pac,omitempty"`
	Log         string           `json:"log"`
	JoinMethod  string           `json:"join_method"`
	CaptureTime string           `json:"capture_time,omitempty"`
	Telemetry   sensor.Telemetry `json:"telemetry"`
}

// RequestFor builds the request for a matched photo at path.
func RequestFor(path string, m sensor.Match) Request {
	comment, _ := json.Marshal(telemetryComment{
		PPM:         m.Record.PPM,
		PAC:         m.PAC,
		Log:         m.Record.LogName(),
		JoinMethod:  string(m.Method),
		CaptureTime: m.CaptureTime,
		Telemetry:   m.Record.Telemetry,
	})
	alt := m.Record.Telemetry.Altitude
	return Request{
		Path:        path,
		Lat:         m.Record.Lat,
		Lon:         m.Record.Lon,
		Altitude:    alt,
		Description: m.Description,
		Comment:     string(comment),
	}
}

// DryRunWriter reports every request as written without touching disk.
type DryRunWriter struct{}

// Write implements Writer.
func (DryRunWriter) Write(ctx context.Context, reqs []Request, _ string, progress func(done, total int)) (map[string]Result, error) {
	out := make(map[string]Result, len(reqs))
	for _, r := range reqs {
		out[r.Path] = Result{}
	}
	if progress != nil {
		progress(len(reqs), len(reqs))
	}
	return out, nil
}
