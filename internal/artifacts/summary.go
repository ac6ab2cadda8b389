package artifacts

import "time"

// Run outcomes recorded in the summary.
const (
	OutcomeCompleted = "COMPLETED"
	OutcomeCancelled = "CANCELLED"
	OutcomeFailed    = "FAILED"
)

// Counts are the task tallies of a run.
type Counts struct {
	PhotosScanned int `json:"photos_scanned"`
	LogsScanned   int `json:"logs_scanned"`
	Tasks         int `json:"tasks"`
	Matched       int `json:"matched"`
	Success       int `json:"success"`
	Failed        int `json:"failed"`
	Skipped       int `json:"skipped"`
	Pending       int `json:"pending"`
}

// WriteSummary is the metadata-write tally.
type WriteSummary struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

// LogOutput is the cleaned-output result for one sensor log.
type LogOutput struct {
	LogPath    string  `json:"log_path"`
	CleanedCSV string  `json:"cleaned_csv,omitempty"`
	KMZ        string  `json:"kmz,omitempty"`
	RowsTotal  int     `json:"rows_total"`
	RowsKept   int     `json:"rows_kept"`
	PPMMean    float64 `json:"ppm_mean"`
	PPMMax     float64 `json:"ppm_max"`
	PPMP95     float64 `json:"ppm_p95"`
	Error      string  `json:"error,omitempty"`
}

// Summary is the end-of-run snapshot written to run_summary.json.
// Encroachment tallies the separate copy-out set in combined mode.
type Summary struct {
	RunID          string       `json:"run_id"`
	JobName        string       `json:"job_name"`
	Mode           string       `json:"run_mode"`
	Outcome        string       `json:"outcome"`
	Error          string       `json:"error,omitempty"`
	StartedAt      time.Time    `json:"started_at"`
	FinishedAt     time.Time    `json:"finished_at"`
	Inputs         []string     `json:"inputs"`
	RunFolder      string       `json:"run_folder"`
	Settings       any          `json:"settings"`
	Counts         Counts       `json:"counts"`
	MetadataWrite  WriteSummary `json:"metadata_write"`
	SensorIndex    any          `json:"sensor_index,omitempty"`
	Encroachment   *Counts      `json:"encroachment,omitempty"`
	MethaneOutputs []LogOutput  `json:"methane_outputs"`
}

// WriteSummaryFile writes s to path.
func WriteSummaryFile(path string, s Summary) error {
	if s.MethaneOutputs == nil {
		s.MethaneOutputs = []LogOutput{}
	}
	if s.Inputs == nil {
		s.Inputs = []string{}
	}
	return WriteJSON(path, s)
}
