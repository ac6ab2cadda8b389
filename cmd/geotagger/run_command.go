package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"geotagger/internal/artifacts"
	"geotagger/internal/config"
	"geotagger/internal/deps"
	"geotagger/internal/jobqueue"
	"geotagger/internal/metadata"
	"geotagger/internal/pipeline"
	"geotagger/internal/preflight"
	"geotagger/internal/scan"
	"geotagger/internal/services"
)

type runFlags struct {
	mode       string
	dryRun     bool
	separate   bool
	name       string
	outputRoot string
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run <path>...",
		Short: "Geotag photos under the given folders or files",
		Long: "Scan the inputs for photos and sensor logs, correlate each photo with a\n" +
			"log row, and write GPS and telemetry metadata. Use --separate to queue one\n" +
			"job per input instead of one combined job.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			snapshot, err := applyRunFlags(cmd, cfg, flags)
			if err != nil {
				return err
			}

			inputs, err := absInputs(args)
			if err != nil {
				return err
			}
			groups := [][]string{inputs}
			if flags.separate {
				groups = groups[:0]
				for _, in := range inputs {
					groups = append(groups, []string{in})
				}
			}

			jobs := make([]*pipeline.Job, 0, len(groups))
			for i, group := range groups {
				opts, err := pipeline.ResolveOptions(snapshot, group)
				if err != nil {
					return err
				}
				name := strings.TrimSpace(flags.name)
				if name != "" && len(groups) > 1 {
					name = name + "-" + strconv.Itoa(i+1)
				}
				jobs = append(jobs, pipeline.NewJob(name, group, opts))
			}
			return runJobs(cmd, ctx, snapshot, jobs)
		},
	}

	cmd.Flags().StringVarP(&flags.mode, "mode", "m", "", "Run mode: methane, encroachment, or combined")
	cmd.Flags().BoolVarP(&flags.dryRun, "dry-run", "n", false, "Correlate and report without writing metadata")
	cmd.Flags().BoolVar(&flags.separate, "separate", false, "Queue one job per input path")
	cmd.Flags().StringVar(&flags.name, "name", "", "Job name shown in progress and summaries")
	cmd.Flags().StringVarP(&flags.outputRoot, "output-root", "o", "", "Directory that receives run folders")
	return cmd
}

// applyRunFlags returns a copy of cfg with command-line overrides applied.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config, flags runFlags) (*config.Config, error) {
	snapshot := *cfg
	if mode := strings.ToLower(strings.TrimSpace(flags.mode)); mode != "" {
		snapshot.Run.Mode = mode
	}
	if cmd.Flags().Changed("dry-run") {
		snapshot.Run.DryRun = flags.dryRun
	}
	if root := strings.TrimSpace(flags.outputRoot); root != "" {
		expanded, err := config.ExpandPath(root)
		if err != nil {
			return nil, fmt.Errorf("resolve output root: %w", err)
		}
		snapshot.Paths.OutputRoot = expanded
		if snapshot.Run.Mode == config.ModeEncroachment {
			snapshot.Encroachment.OutputRoot = expanded
		}
	}
	if err := snapshot.Validate(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "cli", "validate flags", "invalid run settings", err)
	}
	return &snapshot, nil
}

func absInputs(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for _, arg := range args {
		expanded, err := config.ExpandPath(arg)
		if err != nil {
			return nil, fmt.Errorf("resolve input %q: %w", arg, err)
		}
		if _, err := os.Stat(expanded); err != nil {
			return nil, services.Wrap(services.ErrValidation, "cli", "check input", fmt.Sprintf("input %s is not readable", arg), err)
		}
		out = append(out, expanded)
	}
	return out, nil
}

func newRerunFailedCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "rerun-failed <run-folder|manifest.csv>",
		Short: "Re-run the photos that failed in a previous run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			manifestPath, err := artifacts.ResolveManifest(args[0])
			if err != nil {
				return services.Wrap(services.ErrNotFound, "cli", "resolve manifest", "no manifest found", err)
			}
			rows, err := artifacts.ReadManifest(manifestPath)
			if err != nil {
				return err
			}
			photos := artifacts.FailedSources(rows)
			if len(photos) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No failed photos to re-run")
				return nil
			}

			prev, hasPrev := previousRun(filepath.Dir(manifestPath))
			logs, err := rerunLogs(cmd.Context(), rows, prev.Inputs)
			if err != nil {
				return err
			}

			snapshot := *cfg
			if cmd.Flags().Changed("dry-run") {
				snapshot.Run.DryRun = dryRun
			}
			inputs := append(photos, logs...)

			var opts pipeline.JobOptions
			if hasPrev {
				opts = prev.Options
				opts.DryRun = snapshot.Run.DryRun
			} else if opts, err = pipeline.ResolveOptions(&snapshot, inputs); err != nil {
				return err
			}
			name := "rerun"
			if prev.Name != "" {
				name = prev.Name + "-rerun"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Re-running %d failed photo(s) with %d sensor log(s)\n", len(photos), len(logs))
			return runJobs(cmd, ctx, &snapshot, []*pipeline.Job{pipeline.NewJob(name, inputs, opts)})
		},
	}

	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Correlate and report without writing metadata")
	return cmd
}

func previousRun(folder string) (pipeline.RunConfig, bool) {
	rc, err := pipeline.ReadRunConfig(filepath.Join(folder, artifacts.RunConfigName))
	if err != nil {
		return pipeline.RunConfig{}, false
	}
	return rc, true
}

// rerunLogs collects the sensor logs referenced by the manifest plus any
// found under the previous run's inputs.
func rerunLogs(ctx context.Context, rows []artifacts.ManifestRow, prevInputs []string) ([]string, error) {
	seen := map[string]bool{}
	var logs []string
	add := func(path string) {
		if path == "" || seen[path] {
			return
		}
		if _, err := os.Stat(path); err != nil {
			return
		}
		seen[path] = true
		logs = append(logs, path)
	}
	for _, row := range rows {
		add(row.CSVPath)
	}
	if len(prevInputs) > 0 {
		res, err := scan.Scanner{SkipDirPrefixes: []string{artifacts.RunFolderPrefix}}.Scan(ctx, prevInputs)
		if err != nil {
			return nil, err
		}
		for _, path := range res.Logs {
			add(path)
		}
	}
	return logs, nil
}

// runJobs queues jobs, runs them to completion, and prints a summary.
// Cancelling the command context cancels every job.
func runJobs(cmd *cobra.Command, cmdCtx *commandContext, cfg *config.Config, jobs []*pipeline.Job) error {
	logger, err := cmdCtx.ensureLogger()
	if err != nil {
		return err
	}

	opts := []pipeline.Option{pipeline.WithLogger(logger)}
	if !cfg.Run.DryRun {
		if missing := deps.Missing(preflight.CheckSystemDeps(cfg)); len(missing) > 0 {
			return services.Wrap(services.ErrConfiguration, "cli", "check dependencies",
				fmt.Sprintf("%s not found (%s)", missing[0].Name, missing[0].Command), nil)
		}
		writer, err := metadata.NewExifToolWriter(cfg.ExifTool.Binary, cfg.ExifTool.BatchSize, cfg.ExifTool.TimeoutSeconds, cfg.ExifTool.Verify,
			metadata.WithLogger(logger))
		if err != nil {
			return err
		}
		opts = append(opts, pipeline.WithWriter(writer))
	} else {
		opts = append(opts, pipeline.WithWriter(metadata.DryRunWriter{}))
	}

	printer := newProgressPrinter(cmd.ErrOrStderr())
	sched := jobqueue.New(pipeline.New(opts...), jobqueue.WithLogger(logger), jobqueue.WithProgress(printer.update))

	ids := make([]string, 0, len(jobs))
	for _, job := range jobs {
		ids = append(ids, sched.Submit(job))
	}
	if err := sched.Start(context.Background()); err != nil {
		return err
	}
	defer sched.Stop()

	watchCtx, stopWatch := context.WithCancel(cmd.Context())
	defer stopWatch()
	go func() {
		<-watchCtx.Done()
		for _, id := range ids {
			sched.Cancel(id)
		}
	}()

	outcomes := make([]jobqueue.Outcome, 0, len(ids))
	for _, id := range ids {
		out, err := sched.Wait(context.Background(), id)
		if err != nil {
			return err
		}
		outcomes = append(outcomes, out)
	}
	printer.finish()

	fmt.Fprintln(cmd.OutOrStdout(), renderOutcomes(jobs, outcomes))
	return outcomeError(outcomes)
}

func renderOutcomes(jobs []*pipeline.Job, outcomes []jobqueue.Outcome) string {
	tbl := newTextTable("",
		textColumn("Job"), textColumn("Status"),
		numericColumn("Scanned"), numericColumn("Success"), numericColumn("Failed"), numericColumn("Skipped"),
		textColumn("Run folder"),
	)
	var notes []string
	for i, out := range outcomes {
		if res := out.Result; res != nil {
			c := res.Counts
			tbl.add(jobs[i].Name, string(out.Status),
				strconv.Itoa(c.PhotosScanned), strconv.Itoa(c.Success), strconv.Itoa(c.Failed), strconv.Itoa(c.Skipped),
				res.RunFolder)
		} else {
			tbl.add(jobs[i].Name, string(out.Status), "-", "-", "-", "-", "-")
		}
		if out.Err != nil && out.Status == jobqueue.StatusFailed {
			notes = append(notes, fmt.Sprintf("%s: %s", jobs[i].Name, services.Reason(out.Err)))
		}
	}
	if len(outcomes) > 1 {
		tbl.total("Total")
	}
	text := tbl.String()
	if len(notes) > 0 {
		text += "\n" + strings.Join(notes, "\n")
	}
	return text
}

func outcomeError(outcomes []jobqueue.Outcome) error {
	var failed, cancelled int
	for _, out := range outcomes {
		switch out.Status {
		case jobqueue.StatusFailed:
			failed++
		case jobqueue.StatusCancelled:
			cancelled++
		}
	}
	switch {
	case failed > 0:
		return fmt.Errorf("%d of %d job(s) failed", failed, len(outcomes))
	case cancelled > 0:
		return context.Canceled
	}
	return nil
}
