package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mitralabs/coco/internal/ipc"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and pipeline status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return fmt.Errorf("fetch status: %w", err)
				}
				writeStatus(cmd.OutOrStdout(), status)
				return nil
			})
		},
	}
}

func writeStatus(out io.Writer, status *ipc.StatusResponse) {
	colorize := shouldColorize(out)

	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(out, line)
	}
	runningKind := statusError
	if status.Running {
		runningKind = statusOK
	}
	fmt.Fprintln(out, renderStatusLine("Running", runningKind, fmt.Sprintf("pid %d", status.PID), colorize))
	fmt.Fprintln(out, renderStatusLine("Boot session", statusInfo, fmt.Sprintf("%d", status.BootSession), colorize))
	fmt.Fprintln(out, renderStatusLine("Lock", statusInfo, status.LockPath, colorize))

	for _, line := range renderSectionHeader("Pipeline", colorize) {
		fmt.Fprintln(out, line)
	}
	recordingKind := statusInfo
	recordingMsg := "idle"
	if status.RecordingRequested {
		recordingKind = statusOK
		recordingMsg = fmt.Sprintf("capturing, next file index %d", status.AudioFileIndex+1)
	}
	fmt.Fprintln(out, renderStatusLine("Recording", recordingKind, recordingMsg, colorize))
	fmt.Fprintln(out, renderStatusLine("Ready for sleep", statusInfo, yesNo(status.ReadyForSleep), colorize))

	for _, line := range renderSectionHeader("Network", colorize) {
		fmt.Fprintln(out, line)
	}
	linkKind := statusWarn
	linkMsg := "down"
	if status.LinkConnected {
		linkKind = statusOK
		linkMsg = "up"
	}
	fmt.Fprintln(out, renderStatusLine("Link", linkKind, linkMsg, colorize))
	backendKind := statusWarn
	backendMsg := "unreachable"
	if status.BackendReachable {
		backendKind = statusOK
		backendMsg = "reachable"
	}
	fmt.Fprintln(out, renderStatusLine("Backend", backendKind, backendMsg, colorize))

	for _, line := range renderSectionHeader("Uploads", colorize) {
		fmt.Fprintln(out, line)
	}
	queueKind := statusInfo
	queueMsg := "empty"
	if status.QueueLength > 0 {
		queueMsg = fmt.Sprintf("%d file(s) pending", status.QueueLength)
	}
	fmt.Fprintln(out, renderStatusLine("Queue", queueKind, queueMsg, colorize))
	inFlightKind := statusInfo
	if status.UploadInProgress {
		inFlightKind = statusOK
	}
	fmt.Fprintln(out, renderStatusLine("In flight", inFlightKind, yesNo(status.UploadInProgress), colorize))
	failureKind := statusInfo
	if status.ConsecutiveUploadFailures > 0 {
		failureKind = statusWarn
	}
	fmt.Fprintln(out, renderStatusLine("Failure streak", failureKind,
		fmt.Sprintf("%d", status.ConsecutiveUploadFailures), colorize))
	fmt.Fprintln(out, renderStatusLine("History", statusInfo,
		fmt.Sprintf("%d total, %d ok, %d failed", status.UploadsTotal, status.UploadsSucceeded, status.UploadsFailed), colorize))
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop daemon background tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Stop()
				if err != nil {
					return fmt.Errorf("stop daemon: %w", err)
				}
				if resp.Stopped {
					fmt.Fprintln(cmd.OutOrStdout(), "daemon stopped")
				}
				return nil
			})
		},
	}
}
