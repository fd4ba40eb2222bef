package ipc_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mitralabs/coco/internal/config"
	"github.com/mitralabs/coco/internal/daemon"
	"github.com/mitralabs/coco/internal/ipc"
	"github.com/mitralabs/coco/internal/led"
	"github.com/mitralabs/coco/internal/power"
	"github.com/mitralabs/coco/internal/testsupport"
)

func testDaemon(t *testing.T) (*daemon.Daemon, *config.Config) {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	logPath := filepath.Join(cfg.Paths.DataDir, "cocod.log")
	if err := os.WriteFile(logPath, []byte("first line\nsecond line\n"), 0o644); err != nil {
		t.Fatalf("seed log file: %v", err)
	}

	d, err := daemon.New(cfg, nil, daemon.Options{
		Sleeper:  &power.NopSleeper{},
		Signaler: led.NewLogSignaler(nil),
		LogPath:  logPath,
	})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d, cfg
}

func TestIPCServerClient(t *testing.T) {
	d, cfg := testDaemon(t)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}

	socket := cfg.SocketPath()
	srv, err := ipc.NewServer(ctx, socket, d, nil)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	time.Sleep(50 * time.Millisecond)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if !status.Running {
		t.Fatal("expected running daemon")
	}
	if status.BootSession != 1 {
		t.Fatalf("BootSession = %d, want 1", status.BootSession)
	}
	if status.PID != os.Getpid() {
		t.Fatalf("PID = %d, want %d", status.PID, os.Getpid())
	}

	record, err := client.Record(true)
	if err != nil {
		t.Fatalf("Record RPC failed: %v", err)
	}
	if !record.Recording {
		t.Fatal("expected recording to start")
	}
	if status, err = client.Status(); err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if !status.RecordingRequested {
		t.Fatal("status must reflect the recording request")
	}
	if _, err = client.Record(false); err != nil {
		t.Fatalf("Record RPC failed: %v", err)
	}

	list, err := client.QueueList()
	if err != nil {
		t.Fatalf("QueueList RPC failed: %v", err)
	}
	if len(list.Entries) != 0 {
		t.Fatalf("Entries = %v, want empty", list.Entries)
	}

	cleared, err := client.QueueClear()
	if err != nil {
		t.Fatalf("QueueClear RPC failed: %v", err)
	}
	if cleared.Removed != 0 {
		t.Fatalf("Removed = %d, want 0", cleared.Removed)
	}

	uploads, err := client.Uploads(5)
	if err != nil {
		t.Fatalf("Uploads RPC failed: %v", err)
	}
	if len(uploads.Attempts) != 0 {
		t.Fatalf("Attempts = %v, want empty", uploads.Attempts)
	}

	tail, err := client.LogTail(ipc.LogTailRequest{Offset: -1, Limit: 1})
	if err != nil {
		t.Fatalf("LogTail RPC failed: %v", err)
	}
	if len(tail.Lines) != 1 || tail.Lines[0] != "second line" {
		t.Fatalf("Lines = %v, want the newest log line", tail.Lines)
	}

	stop, err := client.Stop()
	if err != nil {
		t.Fatalf("Stop RPC failed: %v", err)
	}
	if !stop.Stopped {
		t.Fatal("expected stop to take effect")
	}
	if d.Running() {
		t.Fatal("daemon must be stopped")
	}
}

func TestDialFailsWithoutServer(t *testing.T) {
	if _, err := ipc.Dial(filepath.Join(t.TempDir(), "missing.sock")); err == nil {
		t.Fatal("expected dial failure for a missing socket")
	}
}
