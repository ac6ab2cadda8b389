package services_test

import (
	"errors"
	"strings"
	"testing"

	"geotagger/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "write", "exiftool", "invocation failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"write", "exiftool", "invocation failed", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "scan", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
}

func TestReason(t *testing.T) {
	err := services.Wrap(services.ErrExternalTool, "write", "exiftool", "exiftool exited with status 1", nil)
	if got := services.Reason(err); got != "exiftool exited with status 1" {
		t.Fatalf("unexpected reason %q", got)
	}
	if got := services.Reason(errors.New("plain")); got != "plain" {
		t.Fatalf("unexpected reason for plain error %q", got)
	}
	if got := services.Reason(nil); got != "" {
		t.Fatalf("expected empty reason for nil, got %q", got)
	}
}

func TestIsCancelled(t *testing.T) {
	err := services.Wrap(services.ErrCancelled, "match", "", "cancelled by user", nil)
	if !services.IsCancelled(err) {
		t.Fatal("expected cancellation to be detected")
	}
	if services.IsCancelled(services.Wrap(services.ErrValidation, "", "", "bad", nil)) {
		t.Fatal("validation error must not be reported as cancellation")
	}
}
