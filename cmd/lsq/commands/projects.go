package commands

import (
	"github.com/dyluth/lsq/internal/printer"
	"github.com/dyluth/lsq/internal/projects"
	"github.com/spf13/cobra"
)

func newProjectsCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Inspect tracing projects",
	}

	var (
		limit, offset int
		format        string
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, client, err := connect(g)
			if err != nil {
				return err
			}
			f, err := resolveFormat(g, format, cfg)
			if err != nil {
				return printer.Error(err, "invalid output format", err.Error(), []string{"Valid formats: table, json, jsonl, csv, yaml"})
			}

			if _, err := projects.List(cmd.Context(), client, limit, offset, f, cmd.OutOrStdout()); err != nil {
				return listError(err, cfg, "")
			}
			return nil
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "Max projects to show")
	list.Flags().IntVar(&offset, "offset", 0, "Number of projects to skip")
	list.Flags().StringVar(&format, "format", "", "Output format: table, json, jsonl, csv or yaml")

	cmd.AddCommand(list)
	return cmd
}
