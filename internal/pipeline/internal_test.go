package pipeline

import (
	"testing"
	"time"

	"geotagger/internal/artifacts"
)

func TestSettleIsMonotonic(t *testing.T) {
	var a arena
	i := a.add(PhotoTask{Source: "a.jpg"})
	task := a.at(i)
	if task.Status != artifacts.StatusPending {
		t.Fatalf("new task status = %s", task.Status)
	}
	if !task.settle(artifacts.StatusSuccess, "") {
		t.Fatal("pending task should settle")
	}
	if task.settle(artifacts.StatusFailed, "late failure") {
		t.Fatal("terminal task must not change status")
	}
	if task.Status != artifacts.StatusSuccess || task.Reason != "" {
		t.Fatalf("task changed after settling: %+v", task)
	}
	if n := a.settleRemaining("cancelled by user"); n != 0 {
		t.Fatalf("settleRemaining touched %d terminal tasks", n)
	}
}

func TestReporterNeverGoesBackwards(t *testing.T) {
	state := &JobState{}
	var got []int
	r := &reporter{state: state, fn: func(p Progress) { got = append(got, p.Percent) }}
	r.report(StageMatch, 30, "")
	r.report(StageMatch, 20, "")
	r.report(StageWrite, 150, "")
	want := []int{30, 30, 100}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("reported %v, want %v", got, want)
		}
	}
	if snap := state.Snapshot(); snap.Stage != StageWrite || snap.Percent != 100 {
		t.Fatalf("state = %+v", snap)
	}
}

func TestThrottle(t *testing.T) {
	now := time.Unix(0, 0)
	th := newThrottle(3, time.Second, func() time.Time { return now })
	if th.tick() || th.tick() {
		t.Fatal("throttle fired before the item budget")
	}
	if !th.tick() {
		t.Fatal("throttle should fire on the third item")
	}
	now = now.Add(2 * time.Second)
	if !th.tick() {
		t.Fatal("throttle should fire once the interval passed")
	}
}

func TestBandAt(t *testing.T) {
	b := stageBands[StageWrite]
	cases := []struct {
		done, total, want int
	}{
		{0, 10, 50},
		{5, 10, 65},
		{10, 10, 80},
		{3, 0, 80},
	}
	for _, tc := range cases {
		if got := b.at(tc.done, tc.total); got != tc.want {
			t.Fatalf("at(%d, %d) = %d, want %d", tc.done, tc.total, got, tc.want)
		}
	}
}

func TestDefaultJobName(t *testing.T) {
	if got := defaultJobName([]string{"/data/flight-07/"}, "abcdef0123"); got != "flight-07" {
		t.Fatalf("got %q", got)
	}
	if got := defaultJobName(nil, "abcdef0123"); got != "job-abcdef01" {
		t.Fatalf("got %q", got)
	}
}
