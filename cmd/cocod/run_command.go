package main

import (
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mitralabs/coco/internal/daemon"
	"github.com/mitralabs/coco/internal/ipc"
	"github.com/mitralabs/coco/internal/logging"
)

// asyncLogBacklog bounds buffered log records so a stalled writer cannot
// block the capture loop.
const asyncLogBacklog = 1024

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the audio logger daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonProcess(cmd, ctx)
		},
	}
}

func runDaemonProcess(cmd *cobra.Command, ctx *commandContext) error {
	signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	runID := time.Now().UTC().Format("20060102T150405Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("cocod-%s.log", runID))
	base, err := logging.New(logging.Options{
		Level:            cfg.Logging.Level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	// Records pass through a bounded async sink so sleep preparation can
	// flush them before suspend.
	sink := logging.NewAsyncSink(base.Handler(), asyncLogBacklog)
	sink.Start()
	defer sink.Stop()
	logger := slog.New(sink)

	d, err := daemon.New(cfg, logger, daemon.Options{Sink: sink, LogPath: logPath})
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(signalCtx, ctx.socketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		return err
	}

	<-signalCtx.Done()
	d.Stop()
	return nil
}
