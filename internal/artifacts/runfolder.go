package artifacts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// RunFolderPrefix starts the name of every run folder.
const RunFolderPrefix = "PurwayGeotagger_"

// File and directory names inside a run folder.
const (
	RunLogName      = "run_log.txt"
	RunConfigName   = "run_config.json"
	ManifestName    = "manifest.csv"
	SummaryName     = "run_summary.json"
	GeotaggedDir    = "GEOTAGGED"
	BackupsDir      = "BACKUPS"
	FlatDir         = "JPG_FLAT"
	ByPPMDir        = "BY_PPM"
	MethaneDir      = "METHANE"
	EncroachmentDir = "ENCROACHMENT"
	exiftoolWorkDir = ".exiftool"
)

// RunFolder is the timestamped directory holding one run's artifacts.
type RunFolder struct {
	Path string
}

// CreateRunFolder creates <root>/PurwayGeotagger_<YYYYMMDD_HHMMSS>. When two
// runs start within the same second the later one gets a numbered suffix.
func CreateRunFolder(root string, now time.Time) (RunFolder, error) {
	if root == "" {
		return RunFolder{}, errors.New("run folder root is empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return RunFolder{}, fmt.Errorf("create output root: %w", err)
	}
	base := RunFolderPrefix + now.Format("20060102_150405")
	for n := 0; n < 1000; n++ {
		name := base
		if n > 0 {
			name = fmt.Sprintf("%s_%d", base, n)
		}
		path := filepath.Join(root, name)
		err := os.Mkdir(path, 0o755)
		if err == nil {
			return RunFolder{Path: path}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return RunFolder{}, fmt.Errorf("create run folder: %w", err)
		}
	}
	return RunFolder{}, fmt.Errorf("create run folder: too many runs named %s", base)
}

func (r RunFolder) RunLog() string    { return filepath.Join(r.Path, RunLogName) }
func (r RunFolder) Config() string    { return filepath.Join(r.Path, RunConfigName) }
func (r RunFolder) Manifest() string  { return filepath.Join(r.Path, ManifestName) }
func (r RunFolder) Summary() string   { return filepath.Join(r.Path, SummaryName) }
func (r RunFolder) Geotagged() string { return filepath.Join(r.Path, GeotaggedDir) }
func (r RunFolder) Backups() string   { return filepath.Join(r.Path, BackupsDir) }
func (r RunFolder) Flat() string      { return filepath.Join(r.Path, FlatDir) }
func (r RunFolder) ByPPM() string     { return filepath.Join(r.Path, ByPPMDir) }
func (r RunFolder) Methane() string   { return filepath.Join(r.Path, MethaneDir) }

// ExifToolWork is the scratch directory for exiftool argument files.
func (r RunFolder) ExifToolWork() string { return filepath.Join(r.Path, exiftoolWorkDir) }

// WriteJSON writes v as indented JSON, replacing path atomically.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	data = append(data, '\n')
	return writeAtomic(path, data)
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
