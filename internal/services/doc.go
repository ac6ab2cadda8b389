// Package services defines shared utilities consumed by the pipeline stages
// and the external tool integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so callers can classify
//     failures (cancelled, external tool, validation) without string matching.
//
// Use these helpers when wiring new stage logic so operational behaviour stays
// uniform across the pipeline.
package services
