// Package preflight runs the environment checks reported by "geotagger doctor"
// and performed before a job starts: required binaries are installed and the
// configured output directories are writable.
package preflight
