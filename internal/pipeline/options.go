package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"geotagger/internal/config"
	"geotagger/internal/fileops"
	"geotagger/internal/services"
)

// ModeSettings is one of MethaneSettings, EncroachmentSettings or
// CombinedSettings. Each variant carries only the fields its mode uses.
type ModeSettings interface {
	modeName() string
}

// MethaneSettings tags originals in place and writes cleaned sensor logs.
type MethaneSettings struct {
	ThresholdPPM  float64
	CleanedCSV    bool
	KMZ           bool
	CreateBackups bool
}

// RenameSettings configures template renaming of copied outputs.
type RenameSettings struct {
	Enabled    bool
	Template   string
	StartIndex int
}

// EncroachmentSettings copies photos out and tags the copies.
type EncroachmentSettings struct {
	// OutputRoot receives the copy set. Empty falls back to the shared root.
	OutputRoot string
	Rename     RenameSettings
}

// CombinedSettings runs the methane pass, then clones its results into an
// encroachment copy set.
type CombinedSettings struct {
	Methane      MethaneSettings
	Encroachment EncroachmentSettings
}

func (MethaneSettings) modeName() string      { return config.ModeMethane }
func (EncroachmentSettings) modeName() string { return config.ModeEncroachment }
func (CombinedSettings) modeName() string     { return config.ModeCombined }

// SharedSettings apply to every mode.
type SharedSettings struct {
	OutputRoot          string
	DryRun              bool
	MaxJoinDeltaSeconds float64
	PACPrecision        int
	SortEnabled         bool
	BinEdges            []int
	FlattenEnabled      bool
	PruneEmpty          bool
}

// JobOptions is the immutable, fully resolved option snapshot for one job.
type JobOptions struct {
	Mode                string  `json:"mode"`
	OutputRoot          string  `json:"output_root"`
	DryRun              bool    `json:"dry_run"`
	Overwrite           bool    `json:"overwrite"`
	MaxJoinDeltaSeconds float64 `json:"max_join_delta_seconds"`
	PACPrecision        int     `json:"pac_precision"`
	ThresholdPPM        float64 `json:"threshold_ppm"`
	CleanedCSV          bool    `json:"cleaned_csv"`
	KMZ                 bool    `json:"kmz"`
	CreateBackups       bool    `json:"create_backups"`
	EncroachmentRoot    string  `json:"encroachment_root,omitempty"`
	RenameEnabled       bool    `json:"rename_enabled"`
	RenameTemplate      string  `json:"rename_template,omitempty"`
	StartIndex          int     `json:"start_index"`
	SortEnabled         bool    `json:"sort_enabled"`
	BinEdges            []int   `json:"bin_edges,omitempty"`
	FlattenEnabled      bool    `json:"flatten_enabled"`
	PruneEmpty          bool    `json:"prune_empty"`
}

// MaxJoinDelta returns the timestamp join threshold.
func (o JobOptions) MaxJoinDelta() time.Duration {
	return time.Duration(o.MaxJoinDeltaSeconds * float64(time.Second))
}

// CopyMode reports whether the post-processed set is a copy.
func (o JobOptions) CopyMode() bool {
	return o.Mode != config.ModeMethane
}

// VariantFromConfig selects the mode variant described by cfg.
func VariantFromConfig(cfg *config.Config) (ModeSettings, SharedSettings, error) {
	shared := SharedSettings{
		OutputRoot:          cfg.Paths.OutputRoot,
		DryRun:              cfg.Run.DryRun,
		MaxJoinDeltaSeconds: cfg.Run.MaxJoinDeltaSeconds,
		PACPrecision:        cfg.Run.PACPrecision,
		SortEnabled:         cfg.Sort.Enabled,
		BinEdges:            slices.Clone(cfg.Sort.BinEdges),
		FlattenEnabled:      cfg.Flatten.Enabled,
		PruneEmpty:          cfg.Flatten.PruneEmpty,
	}
	methane := MethaneSettings{
		ThresholdPPM:  cfg.Methane.ThresholdPPM,
		CleanedCSV:    cfg.Methane.CleanedCSV,
		KMZ:           cfg.Methane.KMZ,
		CreateBackups: cfg.Methane.CreateBackups,
	}
	encroachment := EncroachmentSettings{
		OutputRoot: cfg.Encroachment.OutputRoot,
		Rename: RenameSettings{
			Enabled:    cfg.Encroachment.RenameEnabled,
			Template:   cfg.Encroachment.RenameTemplate,
			StartIndex: cfg.Encroachment.StartIndex,
		},
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Run.Mode)) {
	case config.ModeMethane:
		return methane, shared, nil
	case config.ModeEncroachment:
		return encroachment, shared, nil
	case config.ModeCombined:
		return CombinedSettings{Methane: methane, Encroachment: encroachment}, shared, nil
	default:
		return nil, shared, services.Wrap(services.ErrConfiguration, "options", "resolve mode", fmt.Sprintf("unknown run mode %q", cfg.Run.Mode), nil)
	}
}

// ResolveOptions turns a config snapshot into job options for inputs.
func ResolveOptions(cfg *config.Config, inputs []string) (JobOptions, error) {
	if cfg == nil {
		return JobOptions{}, services.Wrap(services.ErrConfiguration, "options", "resolve", "configuration required", nil)
	}
	mode, shared, err := VariantFromConfig(cfg)
	if err != nil {
		return JobOptions{}, err
	}
	return Resolve(mode, shared, inputs)
}

// Resolve flattens a mode variant and shared settings into JobOptions,
// validating the rename template and filling the output root default.
func Resolve(mode ModeSettings, shared SharedSettings, inputs []string) (JobOptions, error) {
	if mode == nil {
		return JobOptions{}, services.Wrap(services.ErrConfiguration, "options", "resolve", "run mode required", nil)
	}
	opts := JobOptions{
		Mode:                mode.modeName(),
		OutputRoot:          strings.TrimSpace(shared.OutputRoot),
		DryRun:              shared.DryRun,
		MaxJoinDeltaSeconds: shared.MaxJoinDeltaSeconds,
		PACPrecision:        shared.PACPrecision,
		SortEnabled:         shared.SortEnabled,
		BinEdges:            slices.Clone(shared.BinEdges),
		FlattenEnabled:      shared.FlattenEnabled,
		PruneEmpty:          shared.PruneEmpty,
	}
	if opts.MaxJoinDeltaSeconds < 0 {
		return JobOptions{}, services.Wrap(services.ErrValidation, "options", "resolve", "max join delta must not be negative", nil)
	}

	var rename RenameSettings
	switch m := mode.(type) {
	case MethaneSettings:
		opts.applyMethane(m)
		// Sorting applies to copied outputs only.
		opts.SortEnabled = false
	case EncroachmentSettings:
		rename = m.Rename
		if root := strings.TrimSpace(m.OutputRoot); root != "" {
			opts.OutputRoot = root
		}
	case CombinedSettings:
		opts.applyMethane(m.Methane)
		rename = m.Encroachment.Rename
		opts.EncroachmentRoot = strings.TrimSpace(m.Encroachment.OutputRoot)
	}

	if rename.Enabled {
		tmpl := strings.TrimSpace(rename.Template)
		if tmpl == "" {
			tmpl = fileops.DefaultTemplate
		}
		if _, err := fileops.ParseTemplate(tmpl); err != nil {
			return JobOptions{}, services.Wrap(services.ErrValidation, "options", "rename template", "", err)
		}
		opts.RenameEnabled = true
		opts.RenameTemplate = tmpl
		opts.StartIndex = rename.StartIndex
	}

	if opts.OutputRoot == "" {
		root, err := DefaultOutputRoot(inputs)
		if err != nil {
			return JobOptions{}, err
		}
		opts.OutputRoot = root
	}
	if opts.Mode == config.ModeCombined && opts.EncroachmentRoot == "" {
		opts.EncroachmentRoot = opts.OutputRoot
	}
	return opts, nil
}

func (o *JobOptions) applyMethane(m MethaneSettings) {
	o.Overwrite = true
	o.ThresholdPPM = m.ThresholdPPM
	o.CleanedCSV = m.CleanedCSV
	o.KMZ = m.KMZ
	o.CreateBackups = m.CreateBackups
}

// DefaultOutputRoot places run folders next to the first input: inside it
// when it is a directory, beside it otherwise.
func DefaultOutputRoot(inputs []string) (string, error) {
	for _, in := range inputs {
		in = strings.TrimSpace(in)
		if in == "" {
			continue
		}
		abs, err := filepath.Abs(in)
		if err != nil {
			return "", services.Wrap(services.ErrValidation, "options", "output root", "", err)
		}
		if info, err := os.Stat(abs); err == nil && info.IsDir() {
			return abs, nil
		}
		return filepath.Dir(abs), nil
	}
	return "", services.Wrap(services.ErrValidation, "options", "output root", "output root required when no inputs are given", nil)
}
