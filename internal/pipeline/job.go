package pipeline

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Job is one unit of work: a set of inputs processed with a fixed option
// snapshot.
type Job struct {
	ID        string
	Name      string
	Inputs    []string
	Options   JobOptions
	CreatedAt time.Time
	State     *JobState
}

// NewJob creates a job with a fresh id. An empty name defaults to the base
// name of the first input.
func NewJob(name string, inputs []string, opts JobOptions) *Job {
	id := uuid.NewString()
	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultJobName(inputs, id)
	}
	return &Job{
		ID:        id,
		Name:      name,
		Inputs:    slices.Clone(inputs),
		Options:   opts,
		CreatedAt: time.Now().UTC(),
		State:     &JobState{},
	}
}

func defaultJobName(inputs []string, id string) string {
	for _, in := range inputs {
		trimmed := strings.TrimRight(strings.TrimSpace(in), `/\`)
		if trimmed == "" {
			continue
		}
		if i := strings.LastIndexAny(trimmed, `/\`); i >= 0 {
			trimmed = trimmed[i+1:]
		}
		if trimmed != "" {
			return trimmed
		}
	}
	return "job-" + id[:8]
}

// Snapshot is a point-in-time copy of JobState.
type Snapshot struct {
	Stage   Stage
	Percent int
	Scanned int
	Matched int
	Success int
	Failed  int
	Message string
}

// JobState is the progress of a running job. The pipeline is its only
// writer; observers read it through Snapshot.
type JobState struct {
	mu   sync.Mutex
	snap Snapshot
}

// Snapshot returns a copy of the current state.
func (s *JobState) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *JobState) update(fn func(*Snapshot)) {
	if s == nil {
		return
	}
	s.mu.Lock()
	fn(&s.snap)
	s.mu.Unlock()
}
