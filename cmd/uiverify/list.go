package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"uiverify/internal/runner"
)

func getListCmd(gs *globalState) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list recorded runs, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ids, err := runner.FindRuns(gs.fs, gs.workspace)
			if err != nil {
				return err
			}
			for _, id := range ids {
				m, err := runner.LoadManifest(gs.fs, runner.ManifestPath(gs.workspace, id))
				if err != nil {
					fmt.Fprintf(gs.stdout, "%s  %s\n", id, "unknown")
					continue
				}
				fmt.Fprintf(gs.stdout, "%s  %-6s  %-9s  %s\n",
					id, m.Status, m.Scenario, m.StartedAt.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func getShowCmd(gs *globalState) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "print a run's manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runner.ValidateRunID(args[0]); err != nil {
				return usageError(err)
			}
			m, err := runner.LoadManifest(gs.fs, runner.ManifestPath(gs.workspace, args[0]))
			if err != nil {
				return fmt.Errorf("run %s: %w", args[0], err)
			}
			enc := json.NewEncoder(gs.stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(m)
		},
	}
}
