package storage_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mitralabs/coco/internal/storage"
)

func newService(t *testing.T) *storage.Service {
	t.Helper()
	return storage.NewService(time.Second, nil)
}

func TestWriteReadRoundTrip(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "chunk.wav")

	if err := svc.WriteFile(ctx, path, []byte("payload")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	data, err := svc.ReadFile(ctx, path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("unexpected contents: %q", data)
	}
}

func TestAppendCreatesAndExtends(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "queue.txt")

	if err := svc.Append(ctx, path, []byte("a\n")); err != nil {
		t.Fatalf("first append failed: %v", err)
	}
	if err := svc.Append(ctx, path, []byte("b\n")); err != nil {
		t.Fatalf("second append failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back failed: %v", err)
	}
	if string(data) != "a\nb\n" {
		t.Fatalf("unexpected contents: %q", data)
	}
}

func TestReadIntoRejectsOversizedFile(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "big.wav")
	if err := os.WriteFile(path, make([]byte, 64), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	buf := make([]byte, 16)
	if _, err := svc.ReadInto(ctx, path, buf); !errors.Is(err, storage.ErrBufferTooSmall) {
		t.Fatalf("expected ErrBufferTooSmall, got %v", err)
	}
}

func TestReadIntoReturnsExactCount(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "small.wav")
	if err := os.WriteFile(path, []byte("abcde"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	buf := make([]byte, 16)
	n, err := svc.ReadInto(ctx, path, buf)
	if err != nil {
		t.Fatalf("ReadInto failed: %v", err)
	}
	if n != 5 || string(buf[:n]) != "abcde" {
		t.Fatalf("unexpected read: n=%d contents=%q", n, buf[:n])
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "gone.wav")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	if err := svc.Delete(ctx, path); err != nil {
		t.Fatalf("first delete failed: %v", err)
	}
	if err := svc.Delete(ctx, path); err != nil {
		t.Fatalf("second delete failed: %v", err)
	}
	if exists, err := svc.Exists(ctx, path); err != nil || exists {
		t.Fatalf("expected file absent, exists=%v err=%v", exists, err)
	}
}

func TestFreeSpaceReportsNonZero(t *testing.T) {
	svc := newService(t)
	total, free, err := svc.FreeSpace(t.TempDir())
	if err != nil {
		t.Fatalf("FreeSpace failed: %v", err)
	}
	if total == 0 {
		t.Fatal("expected nonzero total space")
	}
	if free > total {
		t.Fatalf("free %d exceeds total %d", free, total)
	}
}
