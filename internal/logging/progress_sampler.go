package logging

import (
	"strings"
	"sync"
)

// ProgressSampler decides which progress events are worth a log line. An
// event is emitted when its stage changes or its percent enters a new bucket.
// State is tracked per key so interleaved jobs do not suppress each other.
type ProgressSampler struct {
	bucketSize int

	mu    sync.Mutex
	state map[string]sampleState
}

type sampleState struct {
	stage  string
	bucket int
}

// NewProgressSampler returns a sampler with the given bucket width in
// percent. Non-positive widths default to 5.
func NewProgressSampler(bucketSize int) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 5
	}
	return &ProgressSampler{bucketSize: bucketSize, state: map[string]sampleState{}}
}

// ShouldLog reports whether the event for key should be logged. Percent is
// clamped to 0..100. A nil sampler logs everything.
func (s *ProgressSampler) ShouldLog(key, stage string, percent int) bool {
	if s == nil {
		return true
	}
	stage = strings.TrimSpace(stage)
	bucket := max(0, min(percent, 100)) / s.bucketSize

	s.mu.Lock()
	defer s.mu.Unlock()
	prev, seen := s.state[key]
	if !seen {
		prev = sampleState{bucket: -1}
	}
	emit := false
	if stage != "" && stage != prev.stage {
		prev.stage = stage
		prev.bucket = -1
		emit = true
	}
	if bucket > prev.bucket {
		prev.bucket = bucket
		emit = true
	}
	s.state[key] = prev
	return emit
}

// Forget drops the state kept for key, typically once a job finishes.
func (s *ProgressSampler) Forget(key string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	delete(s.state, key)
	s.mu.Unlock()
}
