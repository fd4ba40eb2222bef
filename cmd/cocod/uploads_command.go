package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mitralabs/coco/internal/ipc"
)

func newUploadsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "uploads",
		Short: "Show recent upload attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Uploads(limit)
				if err != nil {
					return fmt.Errorf("fetch uploads: %w", err)
				}
				if len(resp.Attempts) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no upload attempts recorded")
					return nil
				}

				titler := cases.Title(language.English)
				rows := make([][]string, 0, len(resp.Attempts))
				for _, attempt := range resp.Attempts {
					rows = append(rows, []string{
						attempt.AttemptedAt,
						filepath.Base(attempt.FilePath),
						fmt.Sprintf("%d", attempt.Bytes),
						titler.String(attempt.Outcome),
						attempt.Detail,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Attempted", "File", "Bytes", "Outcome", "Detail"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of attempts to show")
	return cmd
}
