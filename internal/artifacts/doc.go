// Package artifacts owns the on-disk layout of a run folder and the files
// written into it: run_config.json at start, manifest.csv and
// run_summary.json at the end of every run.
package artifacts
