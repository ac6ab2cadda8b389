package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"geotagger/internal/artifacts"
	"geotagger/internal/fileops"
	"geotagger/internal/logging"
	"geotagger/internal/metadata"
	"geotagger/internal/methane"
	"geotagger/internal/scan"
	"geotagger/internal/sensor"
	"geotagger/internal/services"
)

const (
	progressEvery    = 25
	progressInterval = time.Second
)

func (r *run) stageErr(ctx context.Context, stage Stage, op string, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return cancelledAt(stage)
	}
	if services.IsCancelled(err) {
		return err
	}
	return services.Wrap(services.ErrTransient, string(stage), op, "", err)
}

func (r *run) scanInputs(ctx context.Context) error {
	scanner := scan.Scanner{
		SkipDirPrefixes: []string{artifacts.RunFolderPrefix},
		Logger:          logging.WithContext(ctx, r.logger),
	}
	res, err := scanner.Scan(ctx, r.job.Inputs)
	if err != nil {
		return r.stageErr(ctx, StageScan, "scan inputs", err)
	}
	r.scanned = res
	r.job.State.update(func(s *Snapshot) { s.Scanned = len(res.Photos) })
	logging.WithContext(ctx, r.logger).Info("inputs scanned",
		logging.Int("photos", len(res.Photos)),
		logging.Int("sensor_logs", len(res.Logs)),
	)
	return nil
}

func (r *run) parseLogs(ctx context.Context) error {
	logger := logging.WithContext(ctx, r.logger)
	idx, err := sensor.Build(ctx, r.scanned.Logs, logger)
	if err != nil {
		return r.stageErr(ctx, StageParse, "build sensor index", err)
	}
	r.index = idx
	stats := idx.Stats()
	logger.Info("sensor index built",
		logging.Int("logs_parsed", stats.LogsParsed),
		logging.Int("logs_skipped", stats.LogsSkipped),
		logging.Int("records", stats.Records),
		logging.Int("timestamped_records", stats.TimestampedRecords),
		logging.Int("photo_references", stats.PhotoReferences),
	)
	return nil
}

func (r *run) writeMethaneOutputs(ctx context.Context) error {
	outs, err := methane.Write(ctx, r.index.Logs(), methane.Options{
		ThresholdPPM: r.opts.ThresholdPPM,
		CleanedCSV:   r.opts.CleanedCSV,
		KMZ:          r.opts.KMZ,
		OutDir:       r.folder.Methane(),
	}, logging.WithContext(ctx, r.logger))
	r.methane = outs
	if err != nil {
		return r.stageErr(ctx, StageMethaneOutputs, "write methane outputs", err)
	}
	return nil
}

// prepare creates one task per scanned photo. Copy mode works on a copy in
// the run folder; overwrite mode works on the original after an optional
// backup.
func (r *run) prepare(ctx context.Context) error {
	logger := logging.WithContext(ctx, r.logger)
	photos := r.scanned.Photos
	b := stageBands[StagePrepare]
	th := newThrottle(progressEvery, progressInterval, time.Now)
	backups := 0
	for n, photo := range photos {
		if err := r.checkCancelled(ctx, StagePrepare); err != nil {
			return err
		}
		t := PhotoTask{Source: photo, Output: photo, Status: artifacts.StatusPending}
		info, err := os.Stat(photo)
		switch {
		case err != nil:
			t.settle(artifacts.StatusFailed, fmt.Sprintf("photo unreadable: %v", err))
		case info.Size() == 0:
			t.settle(artifacts.StatusSkipped, "empty file")
		case !r.opts.Overwrite:
			dst, err := fileops.CopyInto(photo, r.folder.Geotagged())
			if err != nil {
				t.settle(artifacts.StatusFailed, fmt.Sprintf("copy failed: %v", err))
				break
			}
			t.Output = dst
		case r.opts.CreateBackups && !r.opts.DryRun:
			written, err := fileops.Backup(photo, r.backupPath(photo))
			if err != nil {
				t.settle(artifacts.StatusFailed, fmt.Sprintf("backup failed: %v", err))
				break
			}
			if written {
				backups++
			}
		}
		if t.Terminal() {
			logging.WarnWithContext(logger, "photo not prepared", "photo_prepare_failed",
				logging.Photo(photo),
				logging.String("status", t.Status),
				logging.Reason(t.Reason),
				logging.String(logging.FieldImpact, "photo is not geotagged"),
			)
		}
		r.tasks.add(t)
		if th.tick() {
			r.progress.report(StagePrepare, b.at(n+1, len(photos)), fmt.Sprintf("Prepared %d/%d photos", n+1, len(photos)))
		}
	}
	logger.Info("photos prepared",
		logging.Int("tasks", r.tasks.len()),
		logging.Int("backups_written", backups),
		logging.Bool("copy_mode", !r.opts.Overwrite),
	)
	return nil
}

// backupPath mirrors src below the run's backup folder relative to the input
// root containing it.
func (r *run) backupPath(src string) string {
	rel := filepath.Base(src)
	best := ""
	for _, root := range r.inputRoots {
		candidate, err := filepath.Rel(root, src)
		if err != nil || candidate == ".." || strings.HasPrefix(candidate, ".."+string(filepath.Separator)) {
			continue
		}
		if len(root) > len(best) {
			best = root
			rel = candidate
		}
	}
	return filepath.Join(r.folder.Backups(), rel)
}

func (r *run) match(ctx context.Context) error {
	logger := logging.WithContext(ctx, r.logger)
	opts := sensor.MatchOptions{MaxDelta: r.opts.MaxJoinDelta(), PACPrecision: r.opts.PACPrecision}
	pending := r.tasks.indexes(func(t *PhotoTask) bool { return !t.Terminal() })
	b := stageBands[StageMatch]
	th := newThrottle(progressEvery, progressInterval, time.Now)
	matched, failed := 0, 0
	for n, i := range pending {
		if err := r.checkCancelled(ctx, StageMatch); err != nil {
			return err
		}
		t := r.tasks.at(i)
		m, cerr := r.index.Match(t.Source, opts).Get()
		if cerr != nil {
			t.settle(artifacts.StatusFailed, cerr.Reason)
			failed++
			logging.WarnWithContext(logger, "photo not matched", "photo_unmatched",
				logging.Photo(t.Source),
				logging.Reason(cerr.Reason),
				logging.String("failure_kind", string(cerr.Kind)),
				logging.String(logging.FieldImpact, "photo is not geotagged"),
				logging.String(logging.FieldErrorHint, "check the sensor log covers this photo or raise max_join_delta_seconds"),
			)
		} else {
			t.Match = &m
			matched++
		}
		if th.tick() {
			r.job.State.update(func(s *Snapshot) {
				s.Matched = matched
				s.Failed = failed
			})
			r.progress.report(StageMatch, b.at(n+1, len(pending)), fmt.Sprintf("Matched %d/%d photos", n+1, len(pending)))
		}
	}
	r.job.State.update(func(s *Snapshot) {
		s.Matched = matched
		s.Failed = failed
	})
	logger.Info("photos matched",
		logging.Int("matched", matched),
		logging.Int("unmatched", failed),
	)
	return nil
}

// writeMetadata hands every matched pending task to the writer. A writer
// failure fails the tasks it did not report on and marks the run failed,
// but later stages still process the photos that were written.
func (r *run) writeMetadata(ctx context.Context) error {
	logger := logging.WithContext(ctx, r.logger)
	idx := r.tasks.indexes(func(t *PhotoTask) bool { return !t.Terminal() && t.Match != nil })
	if len(idx) == 0 {
		logger.Info("no photos to tag")
		return nil
	}
	if r.writer == nil {
		r.writeErr = services.Wrap(services.ErrConfiguration, string(StageWrite), "write metadata", "no metadata writer configured", nil)
		r.failWrites(idx, services.Reason(r.writeErr))
		return nil
	}
	reqs := make([]metadata.Request, len(idx))
	for n, i := range idx {
		t := r.tasks.at(i)
		reqs[n] = metadata.RequestFor(t.Output, *t.Match)
	}
	b := stageBands[StageWrite]
	results, err := r.writer.Write(ctx, reqs, r.folder.ExifToolWork(), func(done, total int) {
		r.progress.report(StageWrite, b.at(done, total), fmt.Sprintf("Tagged %d/%d photos", done, total))
	})
	r.write.Total = len(reqs)
	for n, i := range idx {
		t := r.tasks.at(i)
		res, ok := results[reqs[n].Path]
		if !ok {
			if err != nil {
				continue
			}
			res = metadata.Result{Err: metadata.ErrMissingResult}
		}
		if res.OK() {
			t.settle(artifacts.StatusSuccess, "")
			t.ExifWritten = !r.opts.DryRun
			r.write.Success++
			continue
		}
		t.settle(artifacts.StatusFailed, res.Err.Error())
		r.write.Failed++
		logging.WarnWithContext(logger, "metadata write failed", "photo_write_failed",
			logging.Photo(t.Source),
			logging.Reason(res.Err.Error()),
			logging.String(logging.FieldImpact, "photo is not geotagged"),
		)
	}
	r.job.State.update(func(s *Snapshot) {
		s.Success = r.write.Success
		s.Failed += r.write.Failed
	})
	if err == nil {
		return nil
	}
	if ctx.Err() != nil || services.IsCancelled(err) {
		return cancelledAt(StageWrite)
	}
	if !errors.Is(err, services.ErrExternalTool) && !errors.Is(err, services.ErrConfiguration) {
		err = services.Wrap(services.ErrExternalTool, string(StageWrite), "write metadata", "", err)
	}
	r.writeErr = err
	affected := r.failWrites(idx, services.Reason(err))
	logging.ErrorWithContext(logger, "metadata writer failed", "metadata_write_failure",
		logging.Error(err),
		logging.Int("affected_photos", affected),
		logging.Alert("metadata_write_failure"),
		logging.String(logging.FieldErrorHint, "run geotagger doctor to check the exiftool installation"),
	)
	return nil
}

// failWrites settles every still pending task among idx with reason.
func (r *run) failWrites(idx []int, reason string) int {
	n := 0
	for _, i := range idx {
		if r.tasks.at(i).settle(artifacts.StatusFailed, reason) {
			n++
		}
	}
	r.write.Total = len(idx)
	r.write.Failed += n
	return n
}

// copyEncroachment clones the primary tasks into a second set under the
// encroachment root. Match results and statuses are copied, not recomputed;
// tagged photos are copied into the set's GEOTAGGED folder.
func (r *run) copyEncroachment(ctx context.Context) error {
	logger := logging.WithContext(ctx, r.logger)
	folder, err := r.encroachmentFolder()
	if err != nil {
		return services.Wrap(services.ErrConfiguration, string(StageEncroachmentCopy), "create encroachment folder", "", err)
	}
	r.encFolder = folder
	r.enc = &arena{}
	b := stageBands[StageEncroachmentCopy]
	th := newThrottle(progressEvery, progressInterval, time.Now)
	copied := 0
	total := r.tasks.len()
	for i := 0; i < total; i++ {
		if err := r.checkCancelled(ctx, StageEncroachmentCopy); err != nil {
			return err
		}
		primary := r.tasks.at(i)
		t := PhotoTask{
			Source:      primary.Source,
			Status:      primary.Status,
			Reason:      primary.Reason,
			Match:       primary.Match,
			ExifWritten: primary.ExifWritten,
		}
		if isSuccess(primary) {
			dst, err := fileops.CopyInto(primary.Output, folder.Geotagged())
			if err != nil {
				t.Status = artifacts.StatusFailed
				t.Reason = fmt.Sprintf("encroachment copy failed: %v", err)
				logging.WarnWithContext(logger, "encroachment copy failed", "encroachment_copy_failed",
					logging.Photo(primary.Source),
					logging.Error(err),
				)
			} else {
				t.Output = dst
				copied++
			}
		}
		r.enc.add(t)
		if th.tick() {
			r.progress.report(StageEncroachmentCopy, b.at(i+1, total), fmt.Sprintf("Copied %d/%d photos", i+1, total))
		}
	}
	logger.Info("encroachment set copied",
		logging.String("folder", folder.Path),
		logging.Int("copied", copied),
	)
	return nil
}

// encroachmentFolder lives inside the primary run folder when both share a
// root and in its own run folder otherwise.
func (r *run) encroachmentFolder() (artifacts.RunFolder, error) {
	root := r.opts.EncroachmentRoot
	if root == "" || filepath.Clean(root) == filepath.Clean(r.opts.OutputRoot) {
		folder := artifacts.RunFolder{Path: filepath.Join(r.folder.Path, artifacts.EncroachmentDir)}
		return folder, os.MkdirAll(folder.Path, 0o755)
	}
	return artifacts.CreateRunFolder(root, r.started)
}

// postSet is the task set the rename, sort and flatten stages work on.
func (r *run) postSet() (*arena, artifacts.RunFolder, bool) {
	if r.enc != nil {
		return r.enc, r.encFolder, true
	}
	return &r.tasks, r.folder, !r.opts.Overwrite
}

func (r *run) rename(ctx context.Context) error {
	tmpl, err := fileops.ParseTemplate(r.opts.RenameTemplate)
	if err != nil {
		return services.Wrap(services.ErrValidation, string(StageRename), "parse template", "", err)
	}
	set, _, _ := r.postSet()
	idx := set.indexes(isSuccess)
	items := set.items(idx)
	renamer := fileops.Renamer{Template: tmpl, StartIndex: r.opts.StartIndex, CaptureTime: r.p.captureTime}
	errs := renamer.Rename(ctx, items)
	r.apply(ctx, set, idx, items, errs, "rename failed")
	if err := r.checkCancelled(ctx, StageRename); err != nil {
		return err
	}
	logging.WithContext(ctx, r.logger).Info("outputs renamed",
		logging.Int("photos", len(items)),
		logging.String("template", tmpl.String()),
	)
	return nil
}

func (r *run) sort(ctx context.Context) error {
	set, folder, _ := r.postSet()
	idx := set.indexes(isSuccess)
	items := set.items(idx)
	dests, errs := fileops.SortInto(ctx, items, folder.ByPPM(), r.opts.BinEdges)
	r.apply(ctx, set, idx, items, errs, "sort failed")
	if err := r.checkCancelled(ctx, StageSort); err != nil {
		return err
	}
	sorted := 0
	for _, d := range dests {
		if d != "" {
			sorted++
		}
	}
	logging.WithContext(ctx, r.logger).Info("outputs sorted",
		logging.Int("photos", sorted),
		logging.String("folder", folder.ByPPM()),
	)
	return nil
}

func (r *run) flatten(ctx context.Context) error {
	logger := logging.WithContext(ctx, r.logger)
	set, folder, copyMode := r.postSet()
	if !copyMode && r.opts.DryRun {
		logger.Info("flatten skipped in dry run", logging.Reason("originals are never moved in dry run"))
		return nil
	}
	idx := set.indexes(isSuccess)
	items := set.items(idx)
	vacated, errs := fileops.FlattenInto(ctx, items, folder.Flat())
	r.apply(ctx, set, idx, items, errs, "flatten failed")
	if err := r.checkCancelled(ctx, StageFlatten); err != nil {
		return err
	}
	var removed []string
	if r.opts.PruneEmpty {
		scopes := r.inputRoots
		if copyMode {
			scopes = []string{folder.Path}
		}
		removed = fileops.PruneEmpty(vacated, scopes)
	}
	logger.Info("outputs flattened",
		logging.Int("photos", len(items)),
		logging.String("folder", folder.Flat()),
		logging.Int("pruned_dirs", len(removed)),
	)
	return nil
}

// apply writes file operation results back onto tasks. A file operation
// failure is noted on the task but never changes its terminal status.
func (r *run) apply(ctx context.Context, set *arena, idx []int, items []fileops.Item, errs []error, prefix string) {
	logger := logging.WithContext(ctx, r.logger)
	for n, i := range idx {
		t := set.at(i)
		t.Output = items[n].Path
		err := errs[n]
		if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			continue
		}
		t.note(fmt.Sprintf("%s: %v", prefix, err))
		logging.WarnWithContext(logger, prefix, "file_operation_failed",
			logging.Photo(t.Source),
			logging.Error(err),
			logging.String(logging.FieldImpact, "photo keeps its previous location"),
		)
	}
}
