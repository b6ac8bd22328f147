package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/puppetdoc-mcp/internal/indexer"
)

func newIndexCmd(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "index PATH",
		Short: "Index the documented declarations of a Puppet module",
		Long: `Parse every manifest under manifests/, functions/, types/ and plans/ of the
module at PATH and store its declarations for searching.

Unchanged files are skipped unless --force is given or the configured
runtime version differs from the one the module was last indexed with.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := modulePath(args[0])
			if err != nil {
				return err
			}

			store, err := a.openStorage()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			idx := indexer.New(store,
				indexer.WithRuntime(a.cfg.RuntimeSettings()),
				indexer.WithLogger(a.logger))

			stats, err := idx.IndexModule(cmd.Context(), root, &indexer.Config{
				Workers:   a.cfg.Indexer.Workers,
				BatchSize: a.cfg.Indexer.BatchSize,
				Force:     force,
			})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Indexed %s (run %s)\n", root, stats.RunID)
			fmt.Fprintf(w, "  files indexed:   %d\n", stats.FilesIndexed)
			fmt.Fprintf(w, "  files unchanged: %d\n", stats.FilesUnchanged)
			fmt.Fprintf(w, "  files skipped:   %d\n", stats.FilesSkipped)
			fmt.Fprintf(w, "  files failed:    %d\n", stats.FilesFailed)
			fmt.Fprintf(w, "  files removed:   %d\n", stats.FilesRemoved)
			fmt.Fprintf(w, "  declarations:    %d\n", stats.DeclarationsExtracted)
			fmt.Fprintf(w, "  duration:        %s\n", stats.Duration.Round(time.Millisecond))
			for _, msg := range stats.ErrorMessages {
				fmt.Fprintf(w, "  error: %s\n", msg)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Re-parse all files ignoring content hashes")

	return cmd
}
