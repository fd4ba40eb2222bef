package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mitralabs/coco/internal/ipc"
)

func newRecordCommand(ctx *commandContext) *cobra.Command {
	recordCmd := &cobra.Command{
		Use:   "record",
		Short: "Start or stop audio capture",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	recordCmd.AddCommand(&cobra.Command{
		Use:   "start",
		Short: "Request capture to begin",
		RunE: func(cmd *cobra.Command, args []string) error {
			return setRecording(ctx, cmd, true)
		},
	})
	recordCmd.AddCommand(&cobra.Command{
		Use:   "stop",
		Short: "Request capture to end",
		RunE: func(cmd *cobra.Command, args []string) error {
			return setRecording(ctx, cmd, false)
		},
	})
	return recordCmd
}

func setRecording(ctx *commandContext, cmd *cobra.Command, active bool) error {
	return ctx.withClient(func(client *ipc.Client) error {
		resp, err := client.Record(active)
		if err != nil {
			return fmt.Errorf("request recording: %w", err)
		}
		if resp.Recording {
			fmt.Fprintln(cmd.OutOrStdout(), "recording started")
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "recording stopped")
		}
		return nil
	})
}

func newWakeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "wake",
		Short: "Feed a synthetic wake signal through debounce validation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Wake()
				if err != nil {
					return fmt.Errorf("trigger wake: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wake validation: %s\n", resp.Validity)
				return nil
			})
		},
	}
}
