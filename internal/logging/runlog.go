package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	slogmulti "github.com/samber/slog-multi"
)

const runLogTimeLayout = "2006-01-02 15:04:05"

// RunLog is the append-only, timestamped text log kept inside a run folder.
type RunLog struct {
	path   string
	file   *os.File
	logger *slog.Logger
	once   sync.Once
}

// OpenRunLog opens (or creates) path in append mode and returns a RunLog whose
// Logger writes every record to both base and the file.
func OpenRunLog(path string, base *slog.Logger) (*RunLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create run log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open run log: %w", err)
	}
	if base == nil {
		base = NewNop()
	}
	fileHandler := &prettyHandler{
		mu:        &sync.Mutex{},
		writer:    file,
		level:     slog.LevelInfo,
		localTime: true,
	}
	return &RunLog{
		path:   path,
		file:   file,
		logger: slog.New(slogmulti.Fanout(base.Handler(), fileHandler)),
	}, nil
}

// Logger returns the tee logger. After Close the file side drops records.
func (r *RunLog) Logger() *slog.Logger {
	if r == nil {
		return NewNop()
	}
	return r.logger
}

// Path returns the run log location.
func (r *RunLog) Path() string {
	if r == nil {
		return ""
	}
	return r.path
}

// Close flushes and closes the underlying file.
func (r *RunLog) Close() error {
	if r == nil {
		return nil
	}
	var err error
	r.once.Do(func() {
		if syncErr := r.file.Sync(); syncErr != nil {
			err = syncErr
		}
		if closeErr := r.file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	})
	return err
}
