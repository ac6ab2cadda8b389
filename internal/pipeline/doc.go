// Package pipeline runs one geotagging job from input discovery to the final
// manifest.
//
// A run moves through a fixed sequence of stages (see Stage). Every exit
// path, whether the run completed, was cancelled, failed or panicked,
// funnels through one finalization routine that writes the run log, the
// manifest and the run summary before returning.
//
// Tasks live in an arena addressed by index and are mutated only by the
// goroutine executing the run. JobState is the one structure shared with
// observers and is guarded by its own mutex.
package pipeline
