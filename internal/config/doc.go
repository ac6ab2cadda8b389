// Package config loads, normalizes, and validates geotagger configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts) and reads TOML files. The Config type centralizes every knob the
// pipeline and CLI need: output locations, the run mode, join thresholds,
// post-processing switches and the exiftool invocation.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical modes, and clear validation errors.
package config
