package main

import (
	"os"

	"github.com/dyluth/lsq/cmd/lsq/commands"
)

// Version information - set during build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)

	// Errors are printed by Execute; the exit status tells scripts what kind
	// of failure happened (see commands.ExitCode)
	if err := commands.Execute(); err != nil {
		os.Exit(commands.ExitCode(err))
	}
}
