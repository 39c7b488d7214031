package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := NewRootCommand(os.Stdin, os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

// NewRootCommand builds the loader CLI.
func NewRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	rc := &cobra.Command{
		Use:   "loader",
		Short: "Bulk order loader for the replenishment store.",
		Long: `Streams order files into the partitioned order store through the same
validation and COPY pipeline the HTTP bulk endpoint uses.

Database and metrics settings are read from the environment (and .env).
`,
		SilenceUsage: true,
	}
	rc.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error).")
	rc.PersistentFlags().String("log-format", "console", "Log format (console or json).")

	rc.AddCommand(newIngestCommand(stdin, stdout, stderr))
	rc.AddCommand(newSeedCommand(stdin, stdout, stderr))

	rc.SetOut(stdout)
	rc.SetErr(stderr)
	return rc
}
