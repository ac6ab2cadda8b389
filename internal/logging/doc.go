// Package logging assembles structured slog loggers and formatting helpers used
// across the geotagger packages.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so stage code automatically tags
// log lines with job IDs, stage names, and correlation IDs. OpenRunLog tees a
// process logger into the append-only run_log.txt of a single run.
//
// Prefer these constructors over hand-rolled slog setup so new components emit
// data with the same shape as the rest of the system.
package logging
