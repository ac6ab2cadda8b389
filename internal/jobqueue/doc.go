// Package jobqueue runs pipeline jobs one at a time in submission order.
//
// Each job runs on its own goroutine under a cancellable context derived
// from the scheduler's. Before a job starts, the scheduler takes an
// exclusive file lock in the job's output root so two geotagger processes
// never write run folders into the same root at once.
package jobqueue
