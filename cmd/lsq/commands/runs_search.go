package commands

import (
	"strings"

	"github.com/dyluth/lsq/internal/filter"
	"github.com/dyluth/lsq/internal/printer"
	"github.com/dyluth/lsq/internal/runs"
	"github.com/dyluth/lsq/internal/smith"
	"github.com/spf13/cobra"
)

type runsSearchOptions struct {
	project        string
	limit          int
	inputContains  string
	outputContains string
	format         string
	dryRun         bool
}

func newRunsSearchCmd(g *globalOptions) *cobra.Command {
	o := &runsSearchOptions{}

	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Full-text search across runs",
		Long: `Search runs by free text.

QUERY and the optional --input-contains / --output-contains terms each become a
search condition, combined with AND.

Examples:
  lsq runs search "timeout"
  lsq runs search "refund" --input-contains "order 1234" --limit 50`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := &filter.Options{
				SearchTerms: searchTerms(args[0], o.inputContains, o.outputContains),
			}
			if !opts.HasFilters() {
				err := runs.ErrInvalidArgument
				return printer.Error(err, "empty search", "QUERY must contain some text", nil)
			}

			expr, err := composeFilter(opts)
			if err != nil {
				return err
			}
			if o.dryRun {
				return writeDryRun(cmd.OutOrStdout(), g, expr)
			}

			cfg, client, err := connect(g)
			if err != nil {
				return err
			}
			format, err := resolveFormat(g, o.format, cfg)
			if err != nil {
				return printer.Error(err, "invalid output format", err.Error(), []string{"Valid formats: table, json, jsonl, csv, yaml"})
			}

			project := o.project
			if project == "" {
				project = cfg.Project
			}

			_, err = runs.List(cmd.Context(), client, runs.ListOptions{
				Project: project,
				Limit:   o.limit,
				Query:   smith.RunQuery{Filter: expr},
			}, format, cmd.OutOrStdout())
			if err != nil {
				return listError(err, cfg, project)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.project, "project", "", "Project name or ID (default from config)")
	f.IntVar(&o.limit, "limit", 20, "Max runs to show")
	f.StringVar(&o.inputContains, "input-contains", "", "Also require this text in the inputs")
	f.StringVar(&o.outputContains, "output-contains", "", "Also require this text in the outputs")
	f.StringVar(&o.format, "format", "", "Output format: table, json, jsonl, csv or yaml")
	f.BoolVar(&o.dryRun, "dry-run", false, "Print the composed filter and exit without calling the API")

	return cmd
}

func searchTerms(terms ...string) []string {
	var out []string
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
