package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Run modes.
const (
	ModeMethane      = "methane"
	ModeEncroachment = "encroachment"
	ModeCombined     = "combined"
)

// Paths contains directory configuration.
type Paths struct {
	// OutputRoot receives run folders. Empty means "next to the first input".
	OutputRoot string `toml:"output_root"`
	LogDir     string `toml:"log_dir"`
}

// Run contains settings shared by every mode.
type Run struct {
	Mode                string  `toml:"mode"`
	DryRun              bool    `toml:"dry_run"`
	MaxJoinDeltaSeconds float64 `toml:"max_join_delta_seconds"`
	PACPrecision        int     `toml:"pac_precision"`
}

// Methane contains settings for the in-place methane pass.
type Methane struct {
	ThresholdPPM  float64 `toml:"threshold_ppm"`
	CleanedCSV    bool    `toml:"cleaned_csv"`
	KMZ           bool    `toml:"kmz"`
	CreateBackups bool    `toml:"create_backups"`
}

// Encroachment contains settings for the copy-out pass.
type Encroachment struct {
	OutputRoot     string `toml:"output_root"`
	RenameEnabled  bool   `toml:"rename_enabled"`
	RenameTemplate string `toml:"rename_template"`
	StartIndex     int    `toml:"start_index"`
}

// Sort contains PPM bucket sorting settings.
type Sort struct {
	Enabled  bool  `toml:"enabled"`
	BinEdges []int `toml:"bin_edges"`
}

// Flatten contains settings for collapsing outputs into one folder.
type Flatten struct {
	Enabled    bool `toml:"enabled"`
	PruneEmpty bool `toml:"prune_empty"`
}

// ExifTool contains settings for the external metadata writer.
type ExifTool struct {
	Binary         string `toml:"binary"`
	BatchSize      int    `toml:"batch_size"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	Verify         bool   `toml:"verify"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for geotagger.
//
// Configuration sections by subsystem:
//   - Paths: output root and process log directory
//   - Run: mode, dry-run, join threshold, PAC precision
//   - Methane: cleaned sensor-log outputs and backups for in-place tagging
//   - Encroachment: copy-out root and rename template
//   - Sort / Flatten: post-processing of tagged outputs
//   - ExifTool: external metadata writer
//   - Logging: log format and level
type Config struct {
	Paths        Paths        `toml:"paths"`
	Run          Run          `toml:"run"`
	Methane      Methane      `toml:"methane"`
	Encroachment Encroachment `toml:"encroachment"`
	Sort         Sort         `toml:"sort"`
	Flatten      Flatten      `toml:"flatten"`
	ExifTool     ExifTool     `toml:"exiftool"`
	Logging      Logging      `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/geotagger/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("geotagger.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the CLI writes to unconditionally.
// Output roots are created per run by the pipeline.
func (c *Config) EnsureDirectories() error {
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return nil
	}
	if err := os.MkdirAll(c.Paths.LogDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.LogDir, err)
	}
	return nil
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// SampleConfig returns the embedded sample configuration text.
func SampleConfig() string {
	return sampleConfig
}
