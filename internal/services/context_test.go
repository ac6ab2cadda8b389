package services_test

import (
	"context"
	"testing"

	"geotagger/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithJobID(ctx, "job-42")
	ctx = services.WithStage(ctx, "MATCH")
	ctx = services.WithRunFolder(ctx, "PurwayGeotagger_20240501_120000")

	tests := []struct {
		name string
		get  func(context.Context) (string, bool)
		want string
	}{
		{"job", services.JobIDFromContext, "job-42"},
		{"stage", services.StageFromContext, "MATCH"},
		{"run folder", services.RunFolderFromContext, "PurwayGeotagger_20240501_120000"},
	}
	for _, tt := range tests {
		if got, ok := tt.get(ctx); !ok || got != tt.want {
			t.Fatalf("%s: got %q %v, want %q", tt.name, got, ok, tt.want)
		}
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
	ctx = services.WithJobID(ctx, "")
	if _, ok := services.JobIDFromContext(ctx); ok {
		t.Fatal("expected no job id value")
	}
	if _, ok := services.RunFolderFromContext(ctx); ok {
		t.Fatal("expected no run folder value")
	}
}
