package commands

import (
	"github.com/dyluth/lsq/internal/filter"
	"github.com/dyluth/lsq/internal/printer"
	"github.com/dyluth/lsq/internal/runs"
	"github.com/dyluth/lsq/internal/smith"
	"github.com/spf13/cobra"
)

func newRunsStatsCmd(g *globalOptions) *cobra.Command {
	var (
		opts    filter.Options
		project string
		format  string
		dryRun  bool
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show aggregated metrics for a project",
		Long: `Fetch aggregated run metrics (counts, error rate, latency percentiles,
token usage) for a project.

The filter flags of 'runs list' narrow the runs the metrics are computed over.

Examples:
  lsq runs stats --project my-app
  lsq runs stats --tag production --last 24h --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			expr, err := composeFilter(&opts)
			if err != nil {
				return err
			}
			if dryRun {
				return writeDryRun(cmd.OutOrStdout(), g, expr)
			}

			cfg, client, err := connect(g)
			if err != nil {
				return err
			}
			f, err := resolveFormat(g, format, cfg)
			if err != nil {
				return printer.Error(err, "invalid output format", err.Error(), []string{"Valid formats: table, json, jsonl, csv, yaml"})
			}

			if project == "" {
				project = cfg.Project
			}
			err = runs.Stats(cmd.Context(), client, project, smith.RunQuery{Filter: expr}, f, cmd.OutOrStdout())
			if err != nil {
				return apiError(err, cfg, project)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&project, "project", "", "Project name or ID (default from config)")
	cmd.Flags().StringVar(&format, "format", "", "Output format: table, json, jsonl, csv or yaml")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the composed filter and exit without calling the API")
	addFilterFlags(cmd, &opts)

	return cmd
}
