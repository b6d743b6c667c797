package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dyluth/lsq/internal/config"
	"github.com/dyluth/lsq/internal/filter"
	"github.com/dyluth/lsq/internal/printer"
	"github.com/dyluth/lsq/internal/runs"
	"github.com/dyluth/lsq/internal/smith"
	"github.com/dyluth/lsq/internal/timespec"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// webURL is where runs can be viewed in a browser.
const webURL = "https://smith.langchain.com"

func newRunsCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect and filter traced runs",
	}

	cmd.AddCommand(newRunsListCmd(g))
	cmd.AddCommand(newRunsSearchCmd(g))
	cmd.AddCommand(newRunsGetCmd(g))
	cmd.AddCommand(newRunsStatsCmd(g))
	cmd.AddCommand(newRunsOpenCmd())

	return cmd
}

// resolveFormat picks the output format: --format, then --json, then config.
func resolveFormat(g *globalOptions, flagValue string, cfg *config.Config) (runs.Format, error) {
	switch {
	case flagValue != "":
		return runs.ParseFormat(flagValue)
	case g.json:
		return runs.FormatJSON, nil
	case cfg != nil:
		return runs.ParseFormat(cfg.Output)
	default:
		return runs.FormatTable, nil
	}
}

// composeFilter builds the filter expression, printing a formatted error for
// invalid duration or timestamp values.
func composeFilter(opts *filter.Options) (string, error) {
	expr, err := opts.Expression(nowFunc())
	if err != nil {
		suggestion := "Durations look like '500ms', '1.5s', '5m', '24h' or '7d'"
		if errors.Is(err, timespec.ErrInvalidTimestamp) {
			suggestion = "Use ISO format (2024-01-14T10:00:00Z) or relative time (24h, 7d)"
		}
		return "", printer.Error(err, "invalid filter option", err.Error(), []string{suggestion})
	}

	log.Debug().Str("filter", expr).Msg("composed filter")
	return expr, nil
}

// writeDryRun prints the composed filter instead of querying.
func writeDryRun(w io.Writer, g *globalOptions, expr string) error {
	if g.json {
		return writeJSON(w, map[string]interface{}{"filter": expr})
	}
	_, err := fmt.Fprintln(w, expr)
	return err
}

// writeJSON writes v as indented JSON followed by a newline.
func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// apiError prints a formatted explanation for errors from the runs API.
func apiError(err error, cfg *config.Config, project string) error {
	details := map[string]string{"Endpoint": cfg.Endpoint}
	if project != "" {
		details["Project"] = project
	}

	var apiErr *smith.APIError
	switch {
	case smith.IsAuth(err):
		return printer.ErrorWithContext(err,
			"authentication failed",
			err.Error(),
			details,
			[]string{"Set LANGSMITH_API_KEY or add api_key to your config file"},
		)
	case smith.IsNotFound(err):
		return printer.ErrorWithContext(err,
			"not found",
			err.Error(),
			details,
			[]string{"Check the project name or run ID"},
		)
	case errors.As(err, &apiErr) && apiErr.StatusCode == 400:
		return printer.ErrorWithContext(err,
			"request rejected",
			apiErr.Body,
			details,
			[]string{"Check the --filter expression; run with --dry-run to see the full filter"},
		)
	case smith.IsRemote(err):
		return printer.ErrorWithContext(err, "API request failed", err.Error(), details, nil)
	default:
		return err
	}
}

// connect loads config and creates the API client.
func connect(g *globalOptions) (*config.Config, *smith.Client, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	client, err := smith.NewClient(cfg)
	if err != nil {
		return nil, nil, apiError(err, cfg, "")
	}
	return cfg, client, nil
}

type runsListOptions struct {
	filter filter.Options

	project            string
	limit              int
	status             string
	failed             bool
	succeeded          bool
	traceID            string
	runType            string
	isRoot             bool
	traceFilter        string
	treeFilter         string
	referenceExampleID string
	nameRegex          string
	sortBy             string
	format             string
	dryRun             bool
}

func newRunsListCmd(g *globalOptions) *cobra.Command {
	o := &runsListOptions{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs with filtering",
		Long: `List runs of a project, filtered server side.

Filter flags are combined with AND. Each --tag adds its own condition, so
--tag a --tag b only matches runs carrying both tags. Conditions are always
composed in the same order, regardless of the order flags are given:

  tags, name pattern, model, slow, recent, today,
  min latency, max latency, last, since, raw --filter

Durations: 500ms, 1.5s, 5m, 24h, 7d
Times:     a duration meaning "that long ago", or ISO 8601 (2024-01-14T10:00:00Z)

Examples:
  # Slow production runs from the last day
  lsq runs list --tag production --slow --last 24h

  # Runs whose name contains "api", started since a fixed time
  lsq runs list --name-pattern "*api*" --since 2024-01-14T10:00:00Z

  # Combine generated filters with a raw expression
  lsq runs list --min-latency 2s --filter 'eq(run_type, "llm")'

  # Show the filter that would be sent, without calling the API
  lsq runs list --tag prod --today --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRunsList(cmd.Context(), cmd, g, o)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.project, "project", "", "Project name or ID (default from config)")
	f.IntVar(&o.limit, "limit", 20, "Max runs to show")
	f.StringVar(&o.status, "status", "", "Filter by status: success or error")
	f.BoolVar(&o.failed, "failed", false, "Show only failed runs (same as --status error)")
	f.BoolVar(&o.succeeded, "succeeded", false, "Show only successful runs (same as --status success)")
	f.StringVar(&o.traceID, "trace-id", "", "Only runs in this trace")
	f.StringVar(&o.runType, "run-type", "", "Filter by run type (llm, chain, tool, retriever, ...)")
	f.BoolVar(&o.isRoot, "is-root", false, "Filter on root runs (--is-root=false for child runs only)")
	f.StringVar(&o.traceFilter, "trace-filter", "", "Filter applied to the root run of each trace")
	f.StringVar(&o.treeFilter, "tree-filter", "", "Filter matched against any run in the trace tree")
	f.StringVar(&o.referenceExampleID, "reference-example-id", "", "Only runs for this dataset example")
	f.StringVar(&o.nameRegex, "name-regex", "", "Filter by name with a regex (applied client side)")
	f.StringVar(&o.sortBy, "sort-by", "", "Sort by name, status, latency or start_time (prefix - for descending)")
	f.StringVar(&o.format, "format", "", "Output format: table, json, jsonl, csv or yaml")
	f.BoolVar(&o.dryRun, "dry-run", false, "Print the composed filter and exit without calling the API")

	addFilterFlags(cmd, &o.filter)

	return cmd
}

// addFilterFlags registers the flags translated into the filter expression.
func addFilterFlags(cmd *cobra.Command, opts *filter.Options) {
	f := cmd.Flags()
	f.StringArrayVar(&opts.Tags, "tag", nil, "Filter by tag (repeat for AND: --tag a --tag b)")
	f.StringVar(&opts.NamePattern, "name-pattern", "", "Filter by name with wildcards, e.g. '*auth*' (substring search)")
	f.StringVar(&opts.Model, "model", "", "Filter by model name, e.g. 'gpt-4'")
	f.BoolVar(&opts.Slow, "slow", false, "Only slow runs (latency > 5s)")
	f.BoolVar(&opts.Recent, "recent", false, "Only runs from the last hour")
	f.BoolVar(&opts.Today, "today", false, "Only runs started today")
	f.StringVar(&opts.MinLatency, "min-latency", "", "Minimum latency, e.g. '2s', '500ms', '1.5s'")
	f.StringVar(&opts.MaxLatency, "max-latency", "", "Maximum latency, e.g. '10s', '2000ms'")
	f.StringVar(&opts.Last, "last", "", "Only runs from the last duration, e.g. '24h', '7d', '30m'")
	f.StringVar(&opts.Since, "since", "", "Only runs since a time (ISO 8601 or relative like '24h')")
	f.StringVar(&opts.Raw, "filter", "", "Raw filter expression, ANDed after generated filters")
}

func runRunsList(ctx context.Context, cmd *cobra.Command, g *globalOptions, o *runsListOptions) error {
	errorFilter, err := statusFilter(o)
	if err != nil {
		return printer.Error(err, "invalid status filter", err.Error(), []string{"Use at most one of --status, --failed and --succeeded"})
	}

	// Filter composition happens before anything touches the network
	expr, err := composeFilter(&o.filter)
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

	if o.sortBy != "" && !runs.IsSortField(o.sortBy) {
		printer.Warning("unknown sort field %q, keeping server order (available: %s)\n", o.sortBy, runs.SortFields)
	}

	project := o.project
	if project == "" {
		project = cfg.Project
	}

	query := smith.RunQuery{
		Filter:      expr,
		TraceFilter: o.traceFilter,
		TreeFilter:  o.treeFilter,
		Error:       errorFilter,
		RunType:     o.runType,
		TraceID:     o.traceID,
	}
	if cmd.Flags().Changed("is-root") {
		isRoot := o.isRoot
		query.IsRoot = &isRoot
	}
	if o.referenceExampleID != "" {
		query.ReferenceExampleID = []string{o.referenceExampleID}
	}

	_, err = runs.List(ctx, client, runs.ListOptions{
		Project:   project,
		Limit:     o.limit,
		Query:     query,
		NameRegex: o.nameRegex,
		SortBy:    o.sortBy,
	}, format, cmd.OutOrStdout())
	if err != nil {
		return listError(err, cfg, project)
	}
	return nil
}

func listError(err error, cfg *config.Config, project string) error {
	if errors.Is(err, runs.ErrInvalidArgument) {
		return printer.Error(err, "invalid argument", err.Error(), nil)
	}
	return apiError(err, cfg, project)
}

// statusFilter maps --status/--failed/--succeeded to the API's error flag.
func statusFilter(o *runsListOptions) (*bool, error) {
	var want *bool
	set := func(v bool) error {
		if want != nil && *want != v {
			return fmt.Errorf("%w: conflicting status filters", runs.ErrInvalidArgument)
		}
		want = &v
		return nil
	}

	switch strings.ToLower(o.status) {
	case "":
	case "error":
		if err := set(true); err != nil {
			return nil, err
		}
	case "success":
		if err := set(false); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: --status must be success or error, got %q", runs.ErrInvalidArgument, o.status)
	}

	if o.failed {
		if err := set(true); err != nil {
			return nil, err
		}
	}
	if o.succeeded {
		if err := set(false); err != nil {
			return nil, err
		}
	}
	return want, nil
}
