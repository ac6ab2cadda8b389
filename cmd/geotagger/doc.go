// Package main hosts the geotagger CLI entrypoint and command graph.
//
// Commands resolve configuration once, then hand work to the internal
// packages: run and rerun-failed queue pipeline jobs, scan and match expose
// the discovery and correlation steps for debugging, manifest show renders a
// finished run, and doctor runs the preflight checks.
package main
