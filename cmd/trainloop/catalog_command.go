package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"trainloop/internal/catalog"
	"trainloop/internal/logging"
)

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	var final bool

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List eligible episodes and their anchor timesteps",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			dir := cfg.Paths.EpisodesDirInitial
			if final {
				dir = cfg.Paths.EpisodesDirFinal
			}

			metas, err := catalog.New(logging.NewNop()).Discover(dir)
			if err != nil {
				return err
			}

			rows := make([]table.Row, 0, len(metas))
			for _, meta := range metas {
				rows = append(rows, table.Row{meta.EpisodeID, meta.MaxTimestep, len(meta.EvenTimesteps)})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				table.Row{"EPISODE", "MAX TIMESTEP", "ANCHORS"},
				rows, 2, 3))
			fmt.Fprintf(out, "%d eligible episode(s) under %s\n", len(metas), dir)
			return nil
		},
	}

	cmd.Flags().BoolVar(&final, "final", false, "Inspect the recorded-episodes directory instead of the initial catalog")
	return cmd
}
