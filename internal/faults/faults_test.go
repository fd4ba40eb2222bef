package faults_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/mitralabs/coco/internal/faults"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := faults.Wrap(faults.ErrTransientIO, "queue", "dequeue", "rewrite failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, faults.ErrTransientIO) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"queue", "dequeue", "rewrite failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransientIO(t *testing.T) {
	err := faults.Wrap(nil, "uploader", "read", "", nil)
	if !errors.Is(err, faults.ErrTransientIO) {
		t.Fatalf("expected transient io marker, got %v", err)
	}
}

func TestIsTransient(t *testing.T) {
	if !faults.IsTransient(faults.Wrap(faults.ErrTransientNetwork, "backend", "probe", "", nil)) {
		t.Fatal("network errors are transient")
	}
	if faults.IsTransient(faults.Wrap(faults.ErrFatalInit, "daemon", "start", "", nil)) {
		t.Fatal("fatal init errors are not transient")
	}
	if faults.IsTransient(faults.Wrap(faults.ErrThresholdExceeded, "uploader", "transfer", "", nil)) {
		t.Fatal("threshold errors are not transient")
	}
}
