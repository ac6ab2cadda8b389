package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"geotagger/internal/artifacts"
	"geotagger/internal/logging"
	"geotagger/internal/pipeline"
	"geotagger/internal/services"
)

// Runner executes one job. *pipeline.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, job *pipeline.Job, onProgress pipeline.ProgressFunc) (*pipeline.Result, error)
}

// JobStatus is the scheduler's view of a job.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusCancelled JobStatus = "cancelled"
	StatusFailed    JobStatus = "failed"
)

// Outcome is the final result of a job.
type Outcome struct {
	JobID  string
	Status JobStatus
	Result *pipeline.Result
	Err    error
}

// ProgressObserver receives progress for whichever job is running.
type ProgressObserver func(job *pipeline.Job, p pipeline.Progress)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the scheduler logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithProgress registers a progress observer.
func WithProgress(fn ProgressObserver) Option {
	return func(s *Scheduler) {
		s.onProgress = fn
	}
}

type entry struct {
	job     *pipeline.Job
	status  JobStatus
	cancel  context.CancelFunc
	done    chan struct{}
	outcome Outcome
}

// Scheduler is a FIFO queue with a single runner.
type Scheduler struct {
	runner     Runner
	logger     *slog.Logger
	onProgress ProgressObserver

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	wake    chan struct{}
	queue   []*entry
	entries map[string]*entry
	active  *entry
	lastErr error
}

// New constructs a scheduler around runner.
func New(runner Runner, opts ...Option) *Scheduler {
	s := &Scheduler{
		runner:  runner,
		logger:  logging.NewNop(),
		wake:    make(chan struct{}, 1),
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "jobqueue")
	return s
}

// Start begins processing queued jobs in the background.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("scheduler already running")
	}
	if s.runner == nil {
		s.mu.Unlock()
		return errors.New("scheduler runner not configured")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.wg.Add(1)
	s.mu.Unlock()

	go s.loop(runCtx)
	return nil
}

// Stop cancels the active job, fails every queued job as cancelled, and
// waits for the background loop to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
}

// Submit queues job and returns its id. Jobs may be submitted before Start.
func (s *Scheduler) Submit(job *pipeline.Job) string {
	e := &entry{job: job, status: StatusQueued, done: make(chan struct{})}
	s.mu.Lock()
	s.queue = append(s.queue, e)
	s.entries[job.ID] = e
	position := len(s.queue)
	s.mu.Unlock()

	s.logger.Info("job queued",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("job_name", job.Name),
		logging.Int("queue_position", position),
	)
	s.signal()
	return job.ID
}

// Cancel requests cancellation of a job. A queued job is removed without
// running; a running job stops at its next checkpoint. It reports whether
// the id was known and not yet finished.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	switch e.status {
	case StatusQueued:
		s.queue = slices.DeleteFunc(s.queue, func(q *entry) bool { return q == e })
		s.finishLocked(e, Outcome{JobID: id, Status: StatusCancelled, Err: cancelledBeforeStart()})
		s.mu.Unlock()
		s.logger.Info("queued job cancelled", logging.String(logging.FieldJobID, id))
		return true
	case StatusRunning:
		cancel := e.cancel
		s.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		s.logger.Info("cancellation requested", logging.String(logging.FieldJobID, id))
		return true
	default:
		s.mu.Unlock()
		return false
	}
}

// Wait blocks until the job finishes or ctx is done.
func (s *Scheduler) Wait(ctx context.Context, id string) (Outcome, error) {
	s.mu.Lock()
	e, ok := s.entries[id]
	s.mu.Unlock()
	if !ok {
		return Outcome{}, services.Wrap(services.ErrNotFound, "jobqueue", "wait", fmt.Sprintf("unknown job %s", id), nil)
	}
	select {
	case <-e.done:
		s.mu.Lock()
		out := e.outcome
		s.mu.Unlock()
		return out, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()
	for {
		if ctx.Err() != nil {
			s.drain()
			return
		}
		e, jobCtx, cancel := s.next(ctx)
		if e == nil {
			select {
			case <-ctx.Done():
				s.drain()
				return
			case <-s.wake:
			}
			continue
		}
		s.runEntry(jobCtx, cancel, e)
	}
}

// next claims the head of the queue. The entry leaves the queue already
// marked running with its cancel func installed, so a concurrent Cancel
// either removes it while still queued or cancels it as running.
func (s *Scheduler) next(ctx context.Context) (*entry, context.Context, context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil, nil, nil
	}
	e := s.queue[0]
	s.queue = s.queue[1:]
	jobCtx, cancel := context.WithCancel(services.WithJobID(ctx, e.job.ID))
	e.status = StatusRunning
	e.cancel = cancel
	s.active = e
	return e, jobCtx, cancel
}

// drain cancels every job still queued when the scheduler stops.
func (s *Scheduler) drain() {
	s.mu.Lock()
	pending := s.queue
	s.queue = nil
	for _, e := range pending {
		s.finishLocked(e, Outcome{JobID: e.job.ID, Status: StatusCancelled, Err: cancelledBeforeStart()})
	}
	s.mu.Unlock()
}

func (s *Scheduler) runEntry(jobCtx context.Context, cancel context.CancelFunc, e *entry) {
	defer cancel()

	logger := logging.WithContext(jobCtx, s.logger)
	finished := make(chan Outcome, 1)
	go func() {
		finished <- s.execute(jobCtx, e.job, logger)
	}()
	out := <-finished

	s.mu.Lock()
	s.active = nil
	if out.Err != nil && out.Status == StatusFailed {
		s.lastErr = out.Err
	}
	s.finishLocked(e, out)
	s.mu.Unlock()

	logger.Info("job finished",
		logging.String("status", string(out.Status)),
		logging.String("run_folder", runFolder(out.Result)),
	)
}

func (s *Scheduler) execute(ctx context.Context, job *pipeline.Job, logger *slog.Logger) (out Outcome) {
	out.JobID = job.ID
	defer func() {
		if rec := recover(); rec != nil {
			out.Status = StatusFailed
			out.Err = fmt.Errorf("job panicked: %v", rec)
			logging.ErrorWithContext(logger, "job panicked", "job_panic",
				logging.String("panic", fmt.Sprint(rec)),
				logging.Alert("job_panic"),
			)
		}
	}()

	lock, err := acquireRootLock(job.Options.OutputRoot)
	if err != nil {
		logging.ErrorWithContext(logger, "job not started", "job_lock_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "wait for the other geotagger run or choose a different output root"),
		)
		out.Status = StatusFailed
		out.Err = err
		return out
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("failed to release output root lock",
				logging.Error(err),
				logging.String(logging.FieldEventType, "lock_release_failed"),
			)
		}
	}()

	logger.Info("job started",
		logging.String("job_name", job.Name),
		logging.String("output_root", job.Options.OutputRoot),
	)
	var progress pipeline.ProgressFunc
	if s.onProgress != nil {
		progress = func(p pipeline.Progress) { s.onProgress(job, p) }
	}
	res, err := s.runner.Run(ctx, job, progress)
	out.Result = res
	out.Err = err
	out.Status = statusFor(res, err)
	return out
}

// finishLocked records the final outcome once; later calls are ignored.
func (s *Scheduler) finishLocked(e *entry, out Outcome) {
	select {
	case <-e.done:
		return
	default:
	}
	e.status = out.Status
	e.outcome = out
	e.cancel = nil
	close(e.done)
}

func statusFor(res *pipeline.Result, err error) JobStatus {
	switch {
	case services.IsCancelled(err):
		return StatusCancelled
	case err != nil:
		return StatusFailed
	case res != nil && res.Outcome == artifacts.OutcomeCancelled:
		return StatusCancelled
	case res != nil && res.Outcome == artifacts.OutcomeFailed:
		return StatusFailed
	default:
		return StatusCompleted
	}
}

func cancelledBeforeStart() error {
	return services.Wrap(services.ErrCancelled, "jobqueue", "run", "cancelled before start", nil)
}

func runFolder(res *pipeline.Result) string {
	if res == nil {
		return ""
	}
	return res.RunFolder
}
