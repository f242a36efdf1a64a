package main

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"trainloop/internal/journal"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent pipeline runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			journalFile, err := ctx.journalPath()
			if err != nil {
				return err
			}
			store, err := journal.Open(journalFile)
			if err != nil {
				return fmt.Errorf("open run journal: %w", err)
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}

			rows := make([]table.Row, 0, len(runs))
			for _, run := range runs {
				finished := ""
				if run.FinishedAt != nil {
					finished = run.FinishedAt.Local().Format(time.RFC3339)
				}
				rows = append(rows, table.Row{
					run.ID,
					string(run.Status),
					run.RecordCount,
					run.StartedAt.Local().Format(time.RFC3339),
					finished,
					run.ErrorMessage,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				table.Row{"RUN", "STATUS", "RECORDINGS", "STARTED", "FINISHED", "ERROR"},
				rows, 3))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to show")
	return cmd
}
