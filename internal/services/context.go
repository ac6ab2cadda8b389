package services

import "context"

type contextKey string

const (
	jobIDKey contextKey = "job_id"
	stageKey contextKey = "stage"
	runFolderKey contextKey = "run_folder"
)

func annotate(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func lookup(ctx context.Context, key contextKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(key).(string)
	return v, ok && v != ""
}

// WithJobID annotates ctx with the queued job's identifier.
func WithJobID(ctx context.Context, id string) context.Context { return annotate(ctx, jobIDKey, id) }

// JobIDFromContext extracts the job identifier if present.
func JobIDFromContext(ctx context.Context) (string, bool) { return lookup(ctx, jobIDKey) }

// WithStage annotates ctx with the pipeline stage currently executing.
func WithStage(ctx context.Context, stage string) context.Context {
	return annotate(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) { return lookup(ctx, stageKey) }

// WithRunFolder annotates ctx with the run folder name (PurwayGeotagger_...),
// which is what users quote when reporting a run.
func WithRunFolder(ctx context.Context, id string) context.Context { return annotate(ctx, runFolderKey, id) }

// RunFolderFromContext extracts the run folder name if present.
func RunFolderFromContext(ctx context.Context) (string, bool) { return lookup(ctx, runFolderKey) }
