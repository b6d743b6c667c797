package commands

import (
	"fmt"

	"github.com/dyluth/lsq/internal/printer"
	"github.com/dyluth/lsq/internal/runs"
	"github.com/spf13/cobra"
)

func newRunsGetCmd(g *globalOptions) *cobra.Command {
	var fields, format string

	cmd := &cobra.Command{
		Use:   "get RUN_ID",
		Short: "Show the details of a single run",
		Long: `Fetch one run by ID.

Use --fields to keep only some fields; id and name are always shown.

Examples:
  lsq runs get 3f1c2a9e-6b7d-4e58-9a0b-1c2d3e4f5a6b
  lsq runs get 3f1c2a9e-6b7d-4e58-9a0b-1c2d3e4f5a6b --fields inputs,outputs --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if err := runs.ValidateRunID(id); err != nil {
				return printer.Error(err, "invalid run ID", err.Error(), []string{"Run IDs are UUIDs, as shown by 'lsq runs list'"})
			}

			cfg, client, err := connect(g)
			if err != nil {
				return err
			}
			f, err := resolveFormat(g, format, cfg)
			if err != nil {
				return printer.Error(err, "invalid output format", err.Error(), []string{"Valid formats: table, json, jsonl, csv, yaml"})
			}

			if err := runs.Get(cmd.Context(), client, id, runs.ParseFields(fields), f, cmd.OutOrStdout()); err != nil {
				return apiError(err, cfg, "")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&fields, "fields", "", "Comma-separated fields to include (e.g. inputs,outputs,error)")
	cmd.Flags().StringVar(&format, "format", "", "Output format: table, json or yaml")

	return cmd
}

func newRunsOpenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open RUN_ID",
		Short: "Print the web UI link for a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runs.ValidateRunID(args[0]); err != nil {
				return printer.Error(err, "invalid run ID", err.Error(), nil)
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s/r/%s\n", webURL, args[0])
			return err
		},
	}
}
