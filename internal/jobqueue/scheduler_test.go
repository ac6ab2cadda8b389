package jobqueue_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/go-cmp/cmp"

	"geotagger/internal/artifacts"
	"geotagger/internal/jobqueue"
	"geotagger/internal/metadata"
	"geotagger/internal/pipeline"
	"geotagger/internal/services"
	"geotagger/internal/testsupport"
)

type recordingRunner struct {
	mu        sync.Mutex
	order     []string
	active    int
	maxActive int
	started   chan string
	block     bool
}

func (r *recordingRunner) Run(ctx context.Context, job *pipeline.Job, onProgress pipeline.ProgressFunc) (*pipeline.Result, error) {
	r.mu.Lock()
	r.order = append(r.order, job.Name)
	r.active++
	r.maxActive = max(r.maxActive, r.active)
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.active--
		r.mu.Unlock()
	}()

	if r.started != nil {
		r.started <- job.ID
	}
	if onProgress != nil {
		onProgress(pipeline.Progress{Stage: pipeline.StageScan, Percent: 5})
	}
	if r.block {
		<-ctx.Done()
		return &pipeline.Result{RunID: job.ID, Outcome: artifacts.OutcomeCancelled},
			services.Wrap(services.ErrCancelled, "test", "run", "cancelled by user", nil)
	}
	return &pipeline.Result{RunID: job.ID, Outcome: artifacts.OutcomeCompleted}, nil
}

func (r *recordingRunner) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

func testJob(t *testing.T, name string) *pipeline.Job {
	t.Helper()
	return pipeline.NewJob(name, nil, pipeline.JobOptions{OutputRoot: t.TempDir()})
}

func waitOutcome(t *testing.T, s *jobqueue.Scheduler, id string) jobqueue.Outcome {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	out, err := s.Wait(ctx, id)
	if err != nil {
		t.Fatalf("Wait(%s): %v", id, err)
	}
	return out
}

func TestSchedulerRunsJobsInOrderOneAtATime(t *testing.T) {
	runner := &recordingRunner{}
	var progressMu sync.Mutex
	progressed := map[string]int{}
	s := jobqueue.New(runner, jobqueue.WithProgress(func(job *pipeline.Job, p pipeline.Progress) {
		progressMu.Lock()
		progressed[job.Name]++
		progressMu.Unlock()
	}))

	var ids []string
	for _, name := range []string{"first", "second", "third"} {
		ids = append(ids, s.Submit(testJob(t, name)))
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	for _, id := range ids {
		if out := waitOutcome(t, s, id); out.Status != jobqueue.StatusCompleted {
			t.Fatalf("job %s status = %s (%v)", id, out.Status, out.Err)
		}
	}
	if diff := cmp.Diff([]string{"first", "second", "third"}, runner.names()); diff != "" {
		t.Fatalf("run order mismatch (-want +got):\n%s", diff)
	}
	if runner.maxActive != 1 {
		t.Fatalf("max concurrent jobs = %d", runner.maxActive)
	}
	progressMu.Lock()
	defer progressMu.Unlock()
	if progressed["second"] != 1 {
		t.Fatalf("progress observer calls = %v", progressed)
	}
}

func TestSchedulerCancelRunningAndQueued(t *testing.T) {
	runner := &recordingRunner{block: true, started: make(chan string, 2)}
	s := jobqueue.New(runner)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	running := s.Submit(testJob(t, "running"))
	queued := s.Submit(testJob(t, "queued"))
	select {
	case id := <-runner.started:
		if id != running {
			t.Fatalf("unexpected job started: %s", id)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("first job never started")
	}

	status := s.Status()
	if status.Active == nil || status.Active.ID != running || len(status.Queued) != 1 {
		t.Fatalf("unexpected status: %+v", status)
	}

	if !s.Cancel(queued) {
		t.Fatal("cancel queued job returned false")
	}
	if out := waitOutcome(t, s, queued); out.Status != jobqueue.StatusCancelled || !errors.Is(out.Err, services.ErrCancelled) {
		t.Fatalf("queued outcome = %+v", out)
	}
	if !s.Cancel(running) {
		t.Fatal("cancel running job returned false")
	}
	if out := waitOutcome(t, s, running); out.Status != jobqueue.StatusCancelled {
		t.Fatalf("running outcome = %+v", out)
	}
	if s.Cancel(running) {
		t.Fatal("cancel of a finished job should return false")
	}
	if diff := cmp.Diff([]string{"running"}, runner.names()); diff != "" {
		t.Fatalf("queued job must never run (-want +got):\n%s", diff)
	}
}

func TestSchedulerFailsJobWhenRootLocked(t *testing.T) {
	runner := &recordingRunner{}
	s := jobqueue.New(runner)
	job := testJob(t, "locked")

	other := flock.New(filepath.Join(job.Options.OutputRoot, jobqueue.LockFileName))
	ok, err := other.TryLock()
	if err != nil || !ok {
		t.Fatalf("pre-lock: ok=%v err=%v", ok, err)
	}
	defer other.Unlock()

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	out := waitOutcome(t, s, s.Submit(job))
	if out.Status != jobqueue.StatusFailed || out.Err == nil {
		t.Fatalf("outcome = %+v", out)
	}
	if len(runner.names()) != 0 {
		t.Fatal("runner must not run while the root is locked")
	}
	if s.Status().LastError == "" {
		t.Fatal("expected last error to be recorded")
	}
}

func TestSchedulerStopCancelsQueuedJobs(t *testing.T) {
	s := jobqueue.New(&recordingRunner{})
	id := s.Submit(testJob(t, "never"))
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Stop()
	out := waitOutcome(t, s, id)
	if out.Status != jobqueue.StatusCompleted && out.Status != jobqueue.StatusCancelled {
		t.Fatalf("unexpected status after stop: %s", out.Status)
	}
}

func TestSchedulerWaitUnknownJob(t *testing.T) {
	s := jobqueue.New(&recordingRunner{})
	if _, err := s.Wait(context.Background(), "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSchedulerRunsPipelineDryRun(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithDryRun(true))
	input := filepath.Join(testsupport.BaseDir(cfg), "input")
	testsupport.WriteFile(t, filepath.Join(input, "IMG_0001.jpg"), 32)
	testsupport.WriteCSV(t, filepath.Join(input, "log.csv"),
		[]string{"Latitude", "Longitude", "PPM", "Photo"},
		[]string{"1.0", "2.0", "10", "IMG_0001.jpg"},
	)
	opts, err := pipeline.ResolveOptions(cfg, []string{input})
	if err != nil {
		t.Fatalf("ResolveOptions: %v", err)
	}

	s := jobqueue.New(pipeline.New(pipeline.WithWriter(metadata.DryRunWriter{}), pipeline.WithCaptureTime(nil)))
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	out := waitOutcome(t, s, s.Submit(pipeline.NewJob("dry", []string{input}, opts)))
	if out.Status != jobqueue.StatusCompleted || out.Result == nil {
		t.Fatalf("outcome = %+v", out)
	}
	if out.Result.Counts.Success != 1 {
		t.Fatalf("counts = %+v", out.Result.Counts)
	}
}

func TestSchedulerCancelRacingDequeue(t *testing.T) {
	runner := &recordingRunner{}
	s := jobqueue.New(runner)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	root := t.TempDir()
	ids := make(chan string, 16)
	var cancels sync.WaitGroup
	cancels.Add(1)
	go func() {
		defer cancels.Done()
		for id := range ids {
			for range 50 {
				s.Cancel(id)
			}
		}
	}()

	var submitted []string
	for i := range 300 {
		id := s.Submit(pipeline.NewJob(fmt.Sprintf("job-%d", i), nil, pipeline.JobOptions{OutputRoot: root}))
		submitted = append(submitted, id)
		ids <- id
	}
	close(ids)
	cancels.Wait()

	completed := 0
	for _, id := range submitted {
		switch out := waitOutcome(t, s, id); out.Status {
		case jobqueue.StatusCompleted:
			completed++
		case jobqueue.StatusCancelled:
		default:
			t.Fatalf("job %s ended %s: %v", id, out.Status, out.Err)
		}
	}
	if got := len(runner.names()); got != completed {
		t.Fatalf("runner ran %d jobs but %d completed; a job cancelled before start must never run", got, completed)
	}
}
