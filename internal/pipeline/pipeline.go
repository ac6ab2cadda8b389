package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"geotagger/internal/artifacts"
	"geotagger/internal/config"
	"geotagger/internal/logging"
	"geotagger/internal/metadata"
	"geotagger/internal/scan"
	"geotagger/internal/sensor"
	"geotagger/internal/services"
)

// Pipeline executes jobs. It holds no per-run state and may run jobs
// sequentially from any goroutine.
type Pipeline struct {
	writer      metadata.Writer
	logger      *slog.Logger
	now         func() time.Time
	captureTime func(string) (time.Time, error)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithWriter sets the metadata writer used outside dry runs.
func WithWriter(w metadata.Writer) Option {
	return func(p *Pipeline) {
		if w != nil {
			p.writer = w
		}
	}
}

// WithLogger sets the process logger the run log fans out to.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithClock overrides the clock used for run folder names and timings.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// WithCaptureTime overrides how the renamer reads photo capture times.
func WithCaptureTime(fn func(string) (time.Time, error)) Option {
	return func(p *Pipeline) {
		p.captureTime = fn
	}
}

// New constructs a Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		logger:      logging.NewNop(),
		now:         time.Now,
		captureTime: metadata.CaptureTime,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Result describes a finished run.
type Result struct {
	RunID        string
	RunFolder    string
	Outcome      string
	ManifestPath string
	SummaryPath  string
	Counts       artifacts.Counts
	Encroachment *artifacts.Counts
	Tasks        []PhotoTask
}

// run is the state of one execution. Only the goroutine inside Run touches it.
type run struct {
	p          *Pipeline
	job        *Job
	opts       JobOptions
	writer     metadata.Writer
	folder     artifacts.RunFolder
	encFolder  artifacts.RunFolder
	inputRoots []string
	runLog     *logging.RunLog
	logger     *slog.Logger
	progress   *reporter
	started    time.Time

	scanned  scan.Result
	index    *sensor.Index
	tasks    arena
	enc      *arena
	methane  []artifacts.LogOutput
	write    artifacts.WriteSummary
	writeErr error
	err      error
}

// Run executes job and blocks until it finishes. Whatever the outcome, the
// manifest and run summary are written before Run returns. Cancelling ctx
// stops the run at the next checkpoint with an error matching
// services.ErrCancelled. A panic inside the run is re-raised after the
// artifacts are written.
func (p *Pipeline) Run(ctx context.Context, job *Job, onProgress ProgressFunc) (*Result, error) {
	if job == nil {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "run", "job required", nil)
	}
	ctx = services.WithJobID(ctx, job.ID)
	r, err := p.begin(ctx, job, onProgress)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.err = fmt.Errorf("unexpected failure: %v", rec)
			logging.ErrorWithContext(r.logger, "pipeline panic", "pipeline_panic",
				logging.String("panic", fmt.Sprint(rec)),
				logging.String(logging.FieldErrorHint, "report this failure with run_log.txt attached"),
			)
			r.finalize()
			panic(rec)
		}
	}()
	r.err = r.execute(ctx)
	res := r.finalize()
	return res, r.err
}

func (p *Pipeline) begin(ctx context.Context, job *Job, onProgress ProgressFunc) (*run, error) {
	opts := job.Options
	if strings.TrimSpace(opts.OutputRoot) == "" {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "run", "output root required", nil)
	}
	started := p.now()
	folder, err := artifacts.CreateRunFolder(opts.OutputRoot, started)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "create run folder", "", err)
	}
	runLog, err := logging.OpenRunLog(folder.RunLog(), p.logger)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "open run log", "", err)
	}
	if job.State == nil {
		job.State = &JobState{}
	}
	writer := p.writer
	if opts.DryRun {
		writer = metadata.DryRunWriter{}
	}
	ctx = services.WithRunFolder(ctx, filepath.Base(folder.Path))
	logger := logging.NewComponentLogger(logging.WithContext(ctx, runLog.Logger()), "pipeline")
	return &run{
		p:          p,
		job:        job,
		opts:       opts,
		writer:     writer,
		folder:     folder,
		inputRoots: inputRoots(job.Inputs),
		runLog:     runLog,
		logger:     logger,
		progress:   &reporter{state: job.State, fn: onProgress},
		started:    started,
	}, nil
}

// inputRoots returns the absolute directories the user selected: each
// directory input itself and the parent of each file input.
func inputRoots(inputs []string) []string {
	var roots []string
	seen := map[string]bool{}
	for _, in := range inputs {
		abs, err := filepath.Abs(in)
		if err != nil {
			continue
		}
		if info, err := os.Stat(abs); err != nil || !info.IsDir() {
			abs = filepath.Dir(abs)
		}
		if !seen[abs] {
			seen[abs] = true
			roots = append(roots, abs)
		}
	}
	return roots
}

const cancelledReason = "cancelled by user"

type step struct {
	stage   Stage
	enabled bool
	fn      func(context.Context) error
}

func (r *run) execute(ctx context.Context) error {
	if err := r.writeRunConfig(); err != nil {
		return err
	}
	r.logger.Info("run started",
		logging.String("job_name", r.job.Name),
		logging.String("mode", r.opts.Mode),
		logging.Bool("dry_run", r.opts.DryRun),
		logging.Int("inputs", len(r.job.Inputs)),
		logging.String("run_folder", r.folder.Path),
	)

	steps := []step{
		{StageScan, true, r.scanInputs},
		{StageParse, true, r.parseLogs},
		{StageMethaneOutputs, r.opts.Overwrite && (r.opts.CleanedCSV || r.opts.KMZ), r.writeMethaneOutputs},
		{StagePrepare, true, r.prepare},
		{StageMatch, true, r.match},
		{StageWrite, true, r.writeMetadata},
		{StageEncroachmentCopy, r.opts.Mode == config.ModeCombined, r.copyEncroachment},
		{StageRename, r.opts.CopyMode() && r.opts.RenameEnabled, r.rename},
		{StageSort, r.opts.CopyMode() && r.opts.SortEnabled, r.sort},
		{StageFlatten, r.opts.FlattenEnabled, r.flatten},
	}
	for _, s := range steps {
		if !s.enabled {
			continue
		}
		if err := r.runStage(ctx, s.stage, s.fn); err != nil {
			return err
		}
	}
	if r.writeErr != nil {
		return r.writeErr
	}
	r.progress.report(StageDone, 100, stageMessages[StageDone])
	return nil
}

func (r *run) runStage(ctx context.Context, stage Stage, fn func(context.Context) error) error {
	if err := r.checkCancelled(ctx, stage); err != nil {
		return err
	}
	stageCtx := services.WithStage(ctx, string(stage))
	logger := logging.WithContext(stageCtx, r.logger)
	logger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))
	r.progress.report(stage, stageBands[stage].from, stageMessages[stage])

	start := time.Now()
	if err := fn(stageCtx); err != nil {
		if !services.IsCancelled(err) {
			logging.ErrorWithContext(logger, "stage failed", "stage_failure",
				logging.Error(err),
				logging.Alert("stage_failure"),
				logging.StageDuration(time.Since(start)),
			)
		}
		return err
	}
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.StageDuration(time.Since(start)),
	)
	r.progress.report(stage, stageBands[stage].to, stageMessages[stage])
	return nil
}

// checkCancelled returns the cancellation error once ctx is done.
func (r *run) checkCancelled(ctx context.Context, stage Stage) error {
	if ctx.Err() == nil {
		return nil
	}
	return cancelledAt(stage)
}

func cancelledAt(stage Stage) error {
	return services.Wrap(services.ErrCancelled, string(stage), "check cancellation", cancelledReason, nil)
}

// RunConfig is the run_config.json snapshot written when a run starts.
type RunConfig struct {
	JobID     string     `json:"job_id"`
	Name      string     `json:"name"`
	Inputs    []string   `json:"inputs"`
	Options   JobOptions `json:"options"`
	RunFolder string     `json:"run_folder"`
	StartedAt time.Time  `json:"started_at"`
}

// ReadRunConfig loads the run_config.json at path.
func ReadRunConfig(path string) (RunConfig, error) {
	var cfg RunConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse run config: %w", err)
	}
	return cfg, nil
}

func (r *run) writeRunConfig() error {
	inputs := r.job.Inputs
	if inputs == nil {
		inputs = []string{}
	}
	cfg := RunConfig{
		JobID:     r.job.ID,
		Name:      r.job.Name,
		Inputs:    inputs,
		Options:   r.opts,
		RunFolder: r.folder.Path,
		StartedAt: r.started,
	}
	if err := artifacts.WriteJSON(r.folder.Config(), cfg); err != nil {
		return services.Wrap(services.ErrConfiguration, "pipeline", "write run config", "", err)
	}
	return nil
}
