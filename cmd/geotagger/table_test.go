package main

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"geotagger/internal/artifacts"
	"geotagger/internal/jobqueue"
	"geotagger/internal/pipeline"
)

// tableCells returns the trimmed cells of the first rendered line that
// contains marker.
func tableCells(t *testing.T, rendered, marker string) []string {
	t.Helper()
	for _, line := range strings.Split(rendered, "\n") {
		if !strings.Contains(line, marker) {
			continue
		}
		parts := strings.Split(line, "│")
		if len(parts) < 3 {
			t.Fatalf("line %q is not a table row", line)
		}
		cells := make([]string, 0, len(parts)-2)
		for _, p := range parts[1 : len(parts)-1] {
			cells = append(cells, strings.TrimSpace(p))
		}
		return cells
	}
	t.Fatalf("no line containing %q in:\n%s", marker, rendered)
	return nil
}

func TestTextTableTotals(t *testing.T) {
	tbl := newTextTable("", textColumn("Log"), numericColumn("Rows"), numericColumn("Dropped"), textColumn("Status"))
	tbl.add("a.csv", "10", "1", "ok")
	tbl.add("b.csv", "-", "2")
	tbl.add("c.csv", "5", "0", "ok")
	tbl.total("Total")

	rendered := tbl.String()
	if diff := cmp.Diff([]string{"TOTAL", "15", "3", ""}, tableCells(t, rendered, "TOTAL")); diff != "" {
		t.Fatalf("footer mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"b.csv", "-", "2", ""}, tableCells(t, rendered, "b.csv")); diff != "" {
		t.Fatalf("short row mismatch (-want +got):\n%s", diff)
	}
}

func TestTextTableWithoutColumns(t *testing.T) {
	tbl := newTextTable("empty")
	tbl.add("ignored")
	tbl.total("Total")
	if got := tbl.String(); got != "" {
		t.Fatalf("expected empty render, got %q", got)
	}
}

func TestRenderOutcomesTotalsAcrossJobs(t *testing.T) {
	jobs := []*pipeline.Job{{Name: "north"}, {Name: "south"}, {Name: "east"}}
	outcomes := []jobqueue.Outcome{
		{Status: jobqueue.StatusCompleted, Result: &pipeline.Result{
			RunFolder: "/out/run1",
			Counts:    artifacts.Counts{PhotosScanned: 4, Success: 3, Failed: 1},
		}},
		{Status: jobqueue.StatusCompleted, Result: &pipeline.Result{
			RunFolder: "/out/run2",
			Counts:    artifacts.Counts{PhotosScanned: 2, Success: 1, Skipped: 1},
		}},
		{Status: jobqueue.StatusCancelled},
	}

	rendered := renderOutcomes(jobs, outcomes)
	if diff := cmp.Diff([]string{"TOTAL", "", "6", "4", "1", "1", ""}, tableCells(t, rendered, "TOTAL")); diff != "" {
		t.Fatalf("footer mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"east", string(jobqueue.StatusCancelled), "-", "-", "-", "-", "-"}, tableCells(t, rendered, "east")); diff != "" {
		t.Fatalf("cancelled row mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderOutcomesSingleJobHasNoTotal(t *testing.T) {
	rendered := renderOutcomes(
		[]*pipeline.Job{{Name: "solo"}},
		[]jobqueue.Outcome{{Status: jobqueue.StatusCompleted, Result: &pipeline.Result{Counts: artifacts.Counts{PhotosScanned: 1, Success: 1}}}},
	)
	if strings.Contains(rendered, "TOTAL") {
		t.Fatalf("single job should not render a total row:\n%s", rendered)
	}
}
