// Package scan classifies input paths into photos and sensor logs.
package scan

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"geotagger/internal/logging"
)

var photoExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
}

var logExts = map[string]bool{
	".csv": true,
}

// skipNames are platform artifacts ignored wherever they appear.
var skipNames = map[string]bool{
	"thumbs.db":   true,
	"desktop.ini": true,
	"__macosx":    true,
}

// Result holds the classified inputs, each sorted and deduplicated by
// resolved absolute path.
type Result struct {
	Photos []string
	Logs   []string
}

// Scanner walks input paths. The zero value is usable.
type Scanner struct {
	// SkipDirPrefixes names directories that are never descended into,
	// such as previous run folders.
	SkipDirPrefixes []string
	Logger          *slog.Logger
}

// IsPhoto reports whether path has a photo extension.
func IsPhoto(path string) bool {
	return photoExts[strings.ToLower(filepath.Ext(path))]
}

// IsSensorLog reports whether path has a sensor-log extension.
func IsSensorLog(path string) bool {
	return logExts[strings.ToLower(filepath.Ext(path))]
}

// Scan recursively enumerates inputs. Missing inputs are skipped. The walk
// stops early only when ctx is cancelled.
func (s Scanner) Scan(ctx context.Context, inputs []string) (Result, error) {
	logger := s.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	photos := map[string]struct{}{}
	logs := map[string]struct{}{}
	add := func(path string) {
		switch {
		case IsPhoto(path):
			photos[resolve(path)] = struct{}{}
		case IsSensorLog(path):
			logs[resolve(path)] = struct{}{}
		}
	}

	for _, input := range inputs {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		info, err := os.Stat(input)
		if err != nil {
			logger.Warn("input skipped",
				logging.String("path", input),
				logging.Error(err),
				logging.String(logging.FieldEventType, "scan_input_missing"),
			)
			continue
		}
		if !info.IsDir() {
			if !s.ignored(info.Name(), false) {
				add(input)
			}
			continue
		}
		walkErr := filepath.WalkDir(input, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				logger.Debug("walk error", logging.String("path", path), logging.Error(err))
				if d != nil && d.IsDir() && path != input {
					return filepath.SkipDir
				}
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if path == input {
				return nil
			}
			if s.ignored(d.Name(), d.IsDir()) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.Type()&fs.ModeSymlink != 0 {
				target, statErr := os.Stat(path)
				if statErr != nil || target.IsDir() {
					return nil
				}
			} else if d.IsDir() {
				return nil
			}
			add(path)
			return nil
		})
		if walkErr != nil {
			return Result{}, walkErr
		}
	}

	res := Result{
		Photos: sortedKeys(photos),
		Logs:   sortedKeys(logs),
	}
	logger.Info("scan complete",
		logging.Int("photos", len(res.Photos)),
		logging.Int("logs", len(res.Logs)),
		logging.Int("inputs", len(inputs)),
	)
	return res, nil
}

func (s Scanner) ignored(name string, dir bool) bool {
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
		return true
	}
	if skipNames[strings.ToLower(name)] {
		return true
	}
	if dir {
		for _, prefix := range s.SkipDirPrefixes {
			if prefix != "" && strings.HasPrefix(name, prefix) {
				return true
			}
		}
	}
	return false
}

func resolve(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		return real
	}
	return abs
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
