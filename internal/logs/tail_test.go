package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mitralabs/coco/internal/logs"
)

func writeLog(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cocod.log")
	if err := os.WriteFile(path, []byte(lines), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func TestTailNewestLines(t *testing.T) {
	path := writeLog(t, "one\ntwo\nthree\nfour\n")

	result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 2})
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(result.Lines) != 2 || result.Lines[0] != "three" || result.Lines[1] != "four" {
		t.Fatalf("Lines = %v, want [three four]", result.Lines)
	}
	if result.Offset == 0 {
		t.Fatal("offset must point at end of file")
	}
}

func TestTailFromOffsetReadsOnlyNewLines(t *testing.T) {
	path := writeLog(t, "one\ntwo\n")
	ctx := context.Background()

	first, err := logs.Tail(ctx, path, logs.TailOptions{Offset: -1, Limit: 10})
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.WriteString("three\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	f.Close()

	second, err := logs.Tail(ctx, path, logs.TailOptions{Offset: first.Offset})
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(second.Lines) != 1 || second.Lines[0] != "three" {
		t.Fatalf("Lines = %v, want [three]", second.Lines)
	}
}

func TestTailMissingFileIsEmpty(t *testing.T) {
	result, err := logs.Tail(context.Background(), filepath.Join(t.TempDir(), "none.log"), logs.TailOptions{Offset: -1, Limit: 5})
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(result.Lines) != 0 || result.Offset != 0 {
		t.Fatalf("result = %+v, want empty", result)
	}
}

func TestTailFollowPicksUpAppendedLines(t *testing.T) {
	path := writeLog(t, "one\n")
	ctx := context.Background()

	first, err := logs.Tail(ctx, path, logs.TailOptions{Offset: -1, Limit: 10})
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}

	go func() {
		time.Sleep(300 * time.Millisecond)
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return
		}
		defer f.Close()
		_, _ = f.WriteString("two\n")
	}()

	result, err := logs.Tail(ctx, path, logs.TailOptions{
		Offset: first.Offset,
		Follow: true,
		Wait:   2 * time.Second,
	})
	if err != nil {
		t.Fatalf("Tail follow: %v", err)
	}
	if len(result.Lines) != 1 || result.Lines[0] != "two" {
		t.Fatalf("Lines = %v, want [two]", result.Lines)
	}
}

func TestTailOffsetPastEndClampsToSize(t *testing.T) {
	path := writeLog(t, "one\n")
	result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: 1 << 20})
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(result.Lines) != 0 {
		t.Fatalf("Lines = %v, want empty", result.Lines)
	}
	if result.Offset != 4 {
		t.Fatalf("Offset = %d, want 4", result.Offset)
	}
}
