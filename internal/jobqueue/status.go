package jobqueue

import "geotagger/internal/pipeline"

// JobSummary describes one known job.
type JobSummary struct {
	ID     string
	Name   string
	Status JobStatus
	State  pipeline.Snapshot
}

// StatusSummary is a point-in-time view of the scheduler.
type StatusSummary struct {
	Running   bool
	Active    *JobSummary
	Queued    []JobSummary
	LastError string
}

// Status returns the current scheduler state.
func (s *Scheduler) Status() StatusSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	summary := StatusSummary{Running: s.running}
	if s.active != nil {
		active := summarize(s.active)
		summary.Active = &active
	}
	for _, e := range s.queue {
		summary.Queued = append(summary.Queued, summarize(e))
	}
	if s.lastErr != nil {
		summary.LastError = s.lastErr.Error()
	}
	return summary
}

func summarize(e *entry) JobSummary {
	return JobSummary{
		ID:     e.job.ID,
		Name:   e.job.Name,
		Status: e.status,
		State:  e.job.State.Snapshot(),
	}
}
