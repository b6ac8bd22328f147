package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/puppetdoc-mcp/internal/parser"
	"github.com/dshills/puppetdoc-mcp/internal/storage"
)

func newVersionCmd(a *app) *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		// Version output never needs configuration
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			b := a.build.withDefaults()

			if short {
				fmt.Fprintln(w, b.Version)
				return nil
			}

			fmt.Fprintf(w, "puppetdoc\n")
			fmt.Fprintf(w, "Version: %s\n", b.Version)
			fmt.Fprintf(w, "Commit: %s\n", b.Commit)
			fmt.Fprintf(w, "Built: %s\n", b.BuildTime)
			fmt.Fprintf(w, "Build Mode: %s\n", storage.BuildMode)
			fmt.Fprintf(w, "SQLite Driver: %s\n", storage.DriverName)
			fmt.Fprintf(w, "Default Runtime: Puppet %s\n", parser.DefaultRuntimeVersion)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "Show only version number")
	return cmd
}

func (b BuildInfo) withDefaults() BuildInfo {
	if b.Version == "" {
		b.Version = "dev"
	}
	if b.Commit == "" {
		b.Commit = "unknown"
	}
	if b.BuildTime == "" {
		b.BuildTime = "unknown"
	}
	return b
}
