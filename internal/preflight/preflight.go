package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"geotagger/internal/config"
	"geotagger/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every applicable check for cfg.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	for _, status := range CheckSystemDeps(cfg) {
		r := Result{Name: status.Name, Passed: status.Available, Detail: status.Command}
		if !status.Available {
			r.Detail = status.Detail
		}
		results = append(results, r)
	}

	if cfg.Paths.LogDir != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}
	if cfg.Paths.OutputRoot != "" {
		results = append(results, CheckWritableTarget("Output root", cfg.Paths.OutputRoot))
	}
	if cfg.Run.Mode == config.ModeCombined && cfg.Encroachment.OutputRoot != "" {
		results = append(results, CheckWritableTarget("Encroachment output root", cfg.Encroachment.OutputRoot))
	}
	return results
}

// CheckSystemDeps evaluates the external programs the metadata writer needs.
// Dry runs never invoke them, so exiftool is optional there.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "ExifTool",
			Command:     cfg.ExifTool.Binary,
			Description: "Required for writing GPS and XMP metadata",
			Optional:    cfg.Run.DryRun,
		},
	}
	return deps.CheckBinaries(requirements)
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckWritableTarget is CheckDirectoryAccess for directories the pipeline
// creates on demand: a missing path passes when its nearest existing parent
// is writable.
func CheckWritableTarget(name, path string) Result {
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	if _, err := os.Stat(path); err == nil {
		return CheckDirectoryAccess(name, path)
	}
	parent := path
	for {
		next := filepath.Dir(parent)
		if next == parent {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: no existing parent)", path)}
		}
		parent = next
		if _, err := os.Stat(parent); err == nil {
			break
		}
	}
	res := CheckDirectoryAccess(name, parent)
	if res.Passed {
		res.Detail = fmt.Sprintf("%s (will be created under %s)", path, parent)
	}
	return res
}
