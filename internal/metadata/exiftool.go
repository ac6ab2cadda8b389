package metadata

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"geotagger/internal/logging"
	"geotagger/internal/services"
)

// verifyTolerance is the maximum coordinate difference accepted on readback.
const verifyTolerance = 1e-5

// Executor abstracts command execution for testability. onStdout receives
// every stdout and stderr line.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onStdout func(string)) error
}

// Option configures an ExifToolWriter.
type Option func(*ExifToolWriter)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(w *ExifToolWriter) {
		if exec != nil {
			w.exec = exec
		}
	}
}

// WithLogger sets the writer's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *ExifToolWriter) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// ExifToolWriter writes metadata through the exiftool CLI.
type ExifToolWriter struct {
	binary    string
	batchSize int
	timeout   time.Duration
	verify    bool
	exec      Executor
	logger    *slog.Logger
}

// NewExifToolWriter constructs a writer. A batch is never interrupted once
// started; cancellation is observed between batches.
func NewExifToolWriter(binary string, batchSize, timeoutSeconds int, verify bool, opts ...Option) (*ExifToolWriter, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("exiftool binary required")
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	w := &ExifToolWriter{
		binary:    binary,
		batchSize: batchSize,
		timeout:   time.Duration(timeoutSeconds) * time.Second,
		verify:    verify,
		exec:      commandExecutor{},
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Write implements Writer.
func (w *ExifToolWriter) Write(ctx context.Context, reqs []Request, workDir string, progress func(done, total int)) (map[string]Result, error) {
	results := make(map[string]Result, len(reqs))
	if len(reqs) == 0 {
		return results, nil
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return results, services.Wrap(services.ErrConfiguration, "write", "prepare work dir", "could not create exiftool work directory", err)
	}

	total := len(reqs)
	done := 0
	for start := 0; start < total; start += w.batchSize {
		if err := ctx.Err(); err != nil {
			return results, services.Wrap(services.ErrCancelled, "write", "batch", "metadata write cancelled", err)
		}
		end := min(start+w.batchSize, total)
		batch := reqs[start:end]

		batchResults, err := w.writeBatch(ctx, batch, workDir, start/w.batchSize)
		if err != nil {
			return results, err
		}
		if w.verify {
			w.verifyBatch(ctx, batch, batchResults)
		}
		for path, r := range batchResults {
			results[path] = r
		}
		done = end
		if progress != nil {
			progress(done, total)
		}
	}
	return results, nil
}

func (w *ExifToolWriter) writeBatch(ctx context.Context, batch []Request, workDir string, n int) (map[string]Result, error) {
	argPath := filepath.Join(workDir, fmt.Sprintf("exiftool_batch_%04d.args", n))
	if err := os.WriteFile(argPath, []byte(buildArgFile(batch)), 0o644); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "write", "argfile", "could not write exiftool argument file", err)
	}
	defer os.Remove(argPath)

	runCtx, cancel := w.batchContext(ctx)
	defer cancel()

	var lines []string
	runErr := w.exec.Run(runCtx, w.binary, []string{"-@", argPath}, func(line string) {
		lines = append(lines, line)
	})
	fileErrors := parseFileErrors(lines, batch)
	if runErr != nil && len(fileErrors) == 0 {
		w.logger.Error("exiftool invocation failed",
			logging.Error(runErr),
			logging.Int("batch", n),
			logging.String(logging.FieldEventType, "exiftool_failed"),
			logging.String(logging.FieldErrorHint, "run `geotagger doctor` to check the exiftool installation"),
		)
		return nil, services.Wrap(services.ErrExternalTool, "write", "exiftool", "exiftool failed to run", runErr)
	}

	results := make(map[string]Result, len(batch))
	for _, r := range batch {
		if msg, failed := fileErrors[r.Path]; failed {
			results[r.Path] = Result{Err: fmt.Errorf("exiftool: %s", msg)}
			continue
		}
		results[r.Path] = Result{}
	}
	return results, nil
}

// batchContext detaches from caller cancellation so an issued batch runs to
// completion, bounded only by the configured timeout.
func (w *ExifToolWriter) batchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if w.timeout <= 0 {
		return context.WithCancel(detached)
	}
	return context.WithTimeout(detached, w.timeout)
}

// buildArgFile renders one exiftool argument block per request, separated by
// -execute so each file is processed independently.
func buildArgFile(batch []Request) string {
	var b strings.Builder
	for _, r := range batch {
		writeArg(&b, "-overwrite_original")
		writeArg(&b, "-n")
		writeArg(&b, "-GPSLatitude="+formatCoord(math.Abs(r.Lat)))
		writeArg(&b, "-GPSLatitudeRef="+hemisphere(r.Lat, "N", "S"))
		writeArg(&b, "-GPSLongitude="+formatCoord(math.Abs(r.Lon)))
		writeArg(&b, "-GPSLongitudeRef="+hemisphere(r.Lon, "E", "W"))
		if r.Altitude != nil {
			writeArg(&b, "-GPSAltitude="+strconv.FormatFloat(math.Abs(*r.Altitude), 'f', 2, 64))
			ref := "0"
			if *r.Altitude < 0 {
				ref = "1"
			}
			writeArg(&b, "-GPSAltitudeRef="+ref)
		}
		if r.Description != "" {
			writeArg(&b, "-ImageDescription="+r.Description)
			writeArg(&b, "-XMP-dc:Description="+r.Description)
		}
		if r.Comment != "" {
			writeArg(&b, "-UserComment="+r.Comment)
		}
		writeArg(&b, r.Path)
		writeArg(&b, "-execute")
	}
	return b.String()
}

func writeArg(b *strings.Builder, arg string) {
	arg = strings.NewReplacer("\r", " ", "\n", " ").Replace(arg)
	b.WriteString(arg)
	b.WriteByte('\n')
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 8, 64)
}

func hemisphere(v float64, pos, neg string) string {
	if v < 0 {
		return neg
	}
	return pos
}

// parseFileErrors maps request paths to the exiftool "Error:" line that
// names them.
func parseFileErrors(lines []string, batch []Request) map[string]string {
	out := map[string]string{}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "Error:") {
			continue
		}
		for _, r := range batch {
			suffix := " - " + r.Path
			if strings.HasSuffix(line, suffix) {
				msg := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(line, "Error:"), suffix))
				out[r.Path] = msg
				break
			}
		}
	}
	return out
}

type readback struct {
	SourceFile   string   `json:"SourceFile"`
	GPSLatitude  *float64 `json:"GPSLatitude"`
	GPSLongitude *float64 `json:"GPSLongitude"`
}

// verifyBatch reads coordinates back and downgrades mismatching results.
// A failed readback invocation fails every written file in the batch.
func (w *ExifToolWriter) verifyBatch(ctx context.Context, batch []Request, results map[string]Result) {
	var paths []string
	for _, r := range batch {
		if results[r.Path].OK() {
			paths = append(paths, r.Path)
		}
	}
	if len(paths) == 0 {
		return
	}

	runCtx, cancel := w.batchContext(ctx)
	defer cancel()

	args := append([]string{"-j", "-n", "-Composite:GPSLatitude", "-Composite:GPSLongitude"}, paths...)
	var out strings.Builder
	runErr := w.exec.Run(runCtx, w.binary, args, func(line string) {
		out.WriteString(line)
		out.WriteByte('\n')
	})
	var got []readback
	jsonErr := json.Unmarshal([]byte(jsonPortion(out.String())), &got)
	if jsonErr != nil {
		err := jsonErr
		if runErr != nil {
			err = runErr
		}
		for _, p := range paths {
			results[p] = Result{Err: fmt.Errorf("verification failed: %w", err)}
		}
		return
	}

	byPath := make(map[string]readback, len(got))
	for _, rb := range got {
		byPath[rb.SourceFile] = rb
	}
	for _, r := range batch {
		if !results[r.Path].OK() {
			continue
		}
		rb, ok := byPath[r.Path]
		switch {
		case !ok:
			results[r.Path] = Result{Err: errors.New("verification failed: file missing from readback")}
		case rb.GPSLatitude == nil || rb.GPSLongitude == nil:
			results[r.Path] = Result{Err: errors.New("verification failed: GPS tags not present after write")}
		case math.Abs(*rb.GPSLatitude-r.Lat) > verifyTolerance || math.Abs(*rb.GPSLongitude-r.Lon) > verifyTolerance:
			results[r.Path] = Result{Err: fmt.Errorf("verification failed: read back %.6f,%.6f, expected %.6f,%.6f",
				*rb.GPSLatitude, *rb.GPSLongitude, r.Lat, r.Lon)}
		}
	}
}

// jsonPortion strips warning lines exiftool may print around its JSON.
func jsonPortion(s string) string {
	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onStdout func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var scanErr error
	var once sync.Once

	scan := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			if onStdout == nil {
				continue
			}
			mu.Lock()
			onStdout(scanner.Text())
			mu.Unlock()
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() {
				scanErr = err
			})
		}
	}

	wg.Add(2)
	go scan(stdout)
	go scan(stderr)

	wg.Wait()
	if scanErr != nil {
		_ = cmd.Process.Kill()
		return fmt.Errorf("scan output: %w", scanErr)
	}
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait command: %w", err)
	}
	return nil
}
