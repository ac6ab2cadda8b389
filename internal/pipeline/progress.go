package pipeline

import "time"

// Progress is one observer notification.
type Progress struct {
	Stage   Stage
	Percent int
	Message string
}

// ProgressFunc receives progress notifications on the goroutine running the
// job. It must not block. The same percent may be reported more than once.
type ProgressFunc func(Progress)

// reporter keeps reported percent monotonic and mirrors it into JobState.
type reporter struct {
	state *JobState
	fn    ProgressFunc
	last  int
}

func (r *reporter) report(stage Stage, percent int, message string) {
	percent = max(r.last, min(percent, 100))
	r.last = percent
	r.state.update(func(s *Snapshot) {
		s.Stage = stage
		s.Percent = percent
		s.Message = message
	})
	if r.fn != nil {
		r.fn(Progress{Stage: stage, Percent: percent, Message: message})
	}
}

// throttle limits intermediate reports to one per every items or interval.
type throttle struct {
	every    int
	interval time.Duration
	count    int
	lastAt   time.Time
	now      func() time.Time
}

func newThrottle(every int, interval time.Duration, now func() time.Time) *throttle {
	return &throttle{every: every, interval: interval, now: now, lastAt: now()}
}

// tick records one item and reports whether a notification is due.
func (t *throttle) tick() bool {
	t.count++
	at := t.now()
	if t.count >= t.every || at.Sub(t.lastAt) >= t.interval {
		t.count = 0
		t.lastAt = at
		return true
	}
	return false
}
