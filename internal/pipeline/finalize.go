package pipeline

import (
	"geotagger/internal/artifacts"
	"geotagger/internal/logging"
	"geotagger/internal/services"
)

// finalize settles leftover tasks and writes the manifest and run summary.
// It runs on every exit path and never returns an error of its own: a
// manifest failure becomes the run error only when the run had none, and a
// summary failure is logged and dropped.
func (r *run) finalize() *Result {
	outcome, reason, terminal := r.outcome()
	if reason != "" {
		r.tasks.settleRemaining(reason)
		if r.enc != nil {
			r.enc.settleRemaining(reason)
		}
	}

	counts := r.tasks.counts()
	counts.PhotosScanned = len(r.scanned.Photos)
	counts.LogsScanned = len(r.scanned.Logs)
	rows := r.manifestRows(reason)

	finished := r.p.now()
	attrs := []logging.Attr{
		logging.String("outcome", outcome),
		logging.Int("photos", counts.PhotosScanned),
		logging.Int("success", counts.Success),
		logging.Int("failed", counts.Failed),
		logging.Int("skipped", counts.Skipped),
		logging.Duration("run_duration", finished.Sub(r.started)),
	}
	switch outcome {
	case artifacts.OutcomeCompleted:
		r.logger.Info("run finished", logging.Args(attrs...)...)
	case artifacts.OutcomeCancelled:
		r.logger.Warn("run cancelled", logging.Args(append(attrs,
			logging.String(logging.FieldEventType, "run_cancelled"),
			logging.String(logging.FieldImpact, "remaining photos were not processed"),
			logging.String(logging.FieldErrorHint, "use rerun-failed to resume"),
		)...)...)
	default:
		logging.ErrorWithContext(r.logger, "run failed", "run_failed", append(attrs, logging.Reason(reason))...)
	}

	if err := artifacts.WriteManifest(r.folder.Manifest(), rows); err != nil {
		logging.ErrorWithContext(r.logger, "manifest write failed", "manifest_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check free space and permissions on the output root"),
		)
		if r.err == nil {
			r.err = services.Wrap(services.ErrTransient, "finalize", "write manifest", "", err)
			outcome, reason, terminal = r.outcome()
		}
	}

	var encCounts *artifacts.Counts
	if r.enc != nil {
		c := r.enc.counts()
		encCounts = &c
		if err := artifacts.WriteManifest(r.encFolder.Manifest(), r.enc.rows()); err != nil {
			logging.WarnWithContext(r.logger, "encroachment manifest write failed", "manifest_write_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "encroachment set has no manifest"),
			)
		}
	}

	summary := artifacts.Summary{
		RunID:          r.job.ID,
		JobName:        r.job.Name,
		Mode:           r.opts.Mode,
		Outcome:        outcome,
		Error:          reason,
		StartedAt:      r.started,
		FinishedAt:     finished,
		Inputs:         nonNil(r.job.Inputs),
		RunFolder:      r.folder.Path,
		Settings:       r.opts,
		Counts:         counts,
		MetadataWrite:  r.write,
		Encroachment:   encCounts,
		MethaneOutputs: nonNil(r.methane),
	}
	if r.index != nil {
		summary.SensorIndex = r.index.Stats()
	}
	if err := artifacts.WriteSummaryFile(r.folder.Summary(), summary); err != nil {
		logging.WarnWithContext(r.logger, "run summary write failed", "summary_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run_summary.json is missing; manifest.csv is complete"),
		)
	}

	r.job.State.update(func(s *Snapshot) {
		s.Stage = terminal
		s.Matched = counts.Matched
		s.Success = counts.Success
		s.Failed = counts.Failed
		if reason != "" {
			s.Message = reason
		}
	})
	_ = r.runLog.Close()

	return &Result{
		RunID:        r.job.ID,
		RunFolder:    r.folder.Path,
		Outcome:      outcome,
		ManifestPath: r.folder.Manifest(),
		SummaryPath:  r.folder.Summary(),
		Counts:       counts,
		Encroachment: encCounts,
		Tasks:        r.tasks.snapshot(),
	}
}

func (r *run) outcome() (outcome, reason string, terminal Stage) {
	switch {
	case r.err == nil:
		return artifacts.OutcomeCompleted, "", StageDone
	case services.IsCancelled(r.err):
		return artifacts.OutcomeCancelled, cancelledReason, StageCancelled
	default:
		return artifacts.OutcomeFailed, services.Reason(r.err), StageFailed
	}
}

// manifestRows lists every task, then every scanned photo that never became
// a task: FAILED with reason when the run stopped early, PENDING otherwise.
func (r *run) manifestRows(reason string) []artifacts.ManifestRow {
	rows := r.tasks.rows()
	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		seen[row.SourcePath] = true
	}
	for _, photo := range r.scanned.Photos {
		if seen[photo] {
			continue
		}
		row := artifacts.ManifestRow{SourcePath: photo, Status: artifacts.StatusPending}
		if reason != "" {
			row.Status = artifacts.StatusFailed
			row.Reason = reason
		}
		rows = append(rows, row)
	}
	return rows
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

