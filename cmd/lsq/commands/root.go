package commands

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dyluth/lsq/internal/config"
	"github.com/dyluth/lsq/internal/logging"
	"github.com/dyluth/lsq/internal/printer"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// nowFunc supplies the single "now" captured per command invocation.
var nowFunc = time.Now

// globalOptions holds flags shared by every command.
type globalOptions struct {
	json       bool
	verbose    bool
	configPath string
}

// loadConfig reads configuration for commands that talk to the API.
func (g *globalOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, printer.Error(err,
			"invalid configuration",
			err.Error(),
			[]string{fmt.Sprintf("Check your config file (default: %s) and LANGSMITH_* environment variables", config.DefaultPath())},
		)
	}
	return cfg, nil
}

// NewRootCmd builds the full command tree.
func NewRootCmd() *cobra.Command {
	g := &globalOptions{}

	root := &cobra.Command{
		Use:   "lsq",
		Short: "lsq - query and inspect traced runs",
		Long: `lsq is a command-line client for inspecting traced runs.

Ergonomic flags such as --tag, --slow, --last 24h or --since 2024-01-14T10:00:00Z
are translated into a single filter expression, combined with any raw --filter
you supply, and sent to the runs API.

Configuration comes from ~/.config/lsq/config.yml and LANGSMITH_* environment
variables (LANGSMITH_API_KEY, LANGSMITH_ENDPOINT, LANGSMITH_PROJECT).`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		// Prevent silent success when unknown flags are passed to root command
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Setup(cmd.ErrOrStderr(), g.verbose)
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.PersistentFlags().BoolVar(&g.json, "json", false, "Output strict JSON (shorthand for --format json)")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Log requests and the composed filter to stderr")
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "Config file (default: ~/.config/lsq/config.yml)")

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	root.AddCommand(newRunsCmd(g))
	root.AddCommand(newProjectsCmd(g))
	root.AddCommand(newConfigCmd(g))

	return root
}

// Execute runs the command tree against os.Args.
// Errors not already shown by the printer package are printed here.
func Execute() error {
	err := NewRootCmd().Execute()
	if err != nil {
		var displayed *printer.DisplayedError
		if !errors.As(err, &displayed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
	return err
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}
