package pipeline

import (
	"geotagger/internal/artifacts"
	"geotagger/internal/fileops"
	"geotagger/internal/sensor"
)

// PhotoTask is one photo moving through the pipeline.
type PhotoTask struct {
	// Source is the discovery path and never changes.
	Source string
	// Output is the current location of the working file. Stages that move
	// or rename the file update it.
	Output string
	Status string
	Reason string
	// Match is nil until the photo has been correlated.
	Match       *sensor.Match
	ExifWritten bool
}

// Terminal reports whether the task reached SUCCESS, FAILED or SKIPPED.
func (t *PhotoTask) Terminal() bool {
	return t.Status != "" && t.Status != artifacts.StatusPending
}

// settle moves a pending task to a terminal status. Terminal tasks are left
// untouched; it reports whether the status changed.
func (t *PhotoTask) settle(status, reason string) bool {
	if t.Terminal() {
		return false
	}
	t.Status = status
	t.Reason = reason
	return true
}

// note attaches a reason to a task without changing its status.
func (t *PhotoTask) note(reason string) {
	if t.Reason == "" {
		t.Reason = reason
	}
}

func (t *PhotoTask) row() artifacts.ManifestRow {
	row := artifacts.ManifestRow{
		SourcePath:  t.Source,
		OutputPath:  t.Output,
		Status:      t.Status,
		Reason:      t.Reason,
		ExifWritten: t.ExifWritten,
	}
	if t.Match == nil {
		return row
	}
	m := t.Match
	rec := m.Record
	lat, lon, ppm := rec.Lat, rec.Lon, rec.PPM
	row.Lat = &lat
	row.Lon = &lon
	row.PPM = &ppm
	row.CSVPath = rec.LogPath
	row.JoinMethod = string(m.Method)
	row.Altitude = rec.Telemetry.Altitude
	row.RelativeAltitude = rec.Telemetry.RelativeAltitude
	row.LightIntensity = rec.Telemetry.LightIntensity
	row.PAC = m.PAC
	row.UAVPitch = rec.Telemetry.UAVPitch
	row.UAVRoll = rec.Telemetry.UAVRoll
	row.UAVYaw = rec.Telemetry.UAVYaw
	row.GimbalPitch = rec.Telemetry.GimbalPitch
	row.GimbalRoll = rec.Telemetry.GimbalRoll
	row.GimbalYaw = rec.Telemetry.GimbalYaw
	row.FocalLength = rec.Telemetry.FocalLength
	row.Zoom = rec.Telemetry.Zoom
	row.CaptureTime = m.CaptureTime
	return row
}

// arena holds the tasks of one set. Stages address tasks by index.
type arena struct {
	tasks []PhotoTask
}

func (a *arena) add(t PhotoTask) int {
	if t.Status == "" {
		t.Status = artifacts.StatusPending
	}
	a.tasks = append(a.tasks, t)
	return len(a.tasks) - 1
}

func (a *arena) at(i int) *PhotoTask { return &a.tasks[i] }

func (a *arena) len() int { return len(a.tasks) }

// indexes returns the positions of tasks accepted by keep.
func (a *arena) indexes(keep func(*PhotoTask) bool) []int {
	var out []int
	for i := range a.tasks {
		if keep(&a.tasks[i]) {
			out = append(out, i)
		}
	}
	return out
}

// items builds file operation items for the given task positions.
func (a *arena) items(idx []int) []fileops.Item {
	items := make([]fileops.Item, len(idx))
	for n, i := range idx {
		t := &a.tasks[i]
		it := fileops.Item{Source: t.Source, Path: t.Output}
		if t.Match != nil {
			it.PPM = t.Match.Record.PPM
			it.Lat = t.Match.Record.Lat
			it.Lon = t.Match.Record.Lon
		}
		items[n] = it
	}
	return items
}

// settleRemaining fails every non-terminal task with reason.
func (a *arena) settleRemaining(reason string) int {
	n := 0
	for i := range a.tasks {
		if a.tasks[i].settle(artifacts.StatusFailed, reason) {
			n++
		}
	}
	return n
}

func (a *arena) rows() []artifacts.ManifestRow {
	rows := make([]artifacts.ManifestRow, len(a.tasks))
	for i := range a.tasks {
		rows[i] = a.tasks[i].row()
	}
	return rows
}

func (a *arena) counts() artifacts.Counts {
	c := artifacts.Counts{Tasks: len(a.tasks)}
	for i := range a.tasks {
		t := &a.tasks[i]
		if t.Match != nil {
			c.Matched++
		}
		switch t.Status {
		case artifacts.StatusSuccess:
			c.Success++
		case artifacts.StatusFailed:
			c.Failed++
		case artifacts.StatusSkipped:
			c.Skipped++
		default:
			c.Pending++
		}
	}
	return c
}

func (a *arena) snapshot() []PhotoTask {
	out := make([]PhotoTask, len(a.tasks))
	copy(out, a.tasks)
	return out
}

func isSuccess(t *PhotoTask) bool { return t.Status == artifacts.StatusSuccess }
