package cli

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/puppetdoc-mcp/internal/storage"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status PATH",
		Short: "Show indexing statistics for a module",
		Args:  cobra.ExactArgs(1),
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

			w := cmd.OutOrStdout()

			module, err := store.GetModule(cmd.Context(), root)
			if errors.Is(err, storage.ErrNotFound) {
				fmt.Fprintf(w, "%s is not indexed\n", root)
				return nil
			}
			if err != nil {
				return err
			}

			status, err := store.GetStatus(cmd.Context(), module.ID)
			if err != nil {
				return err
			}

			name := module.Name
			if name == "" {
				name = "(unnamed)"
			}
			fmt.Fprintf(w, "Module:          %s %s\n", name, module.Version)
			fmt.Fprintf(w, "Path:            %s\n", module.RootPath)
			fmt.Fprintf(w, "Runtime version: %s\n", module.RuntimeVersion)
			settings := module.RuntimeSettings
			if settings == "" {
				settings = "(none)"
			}
			fmt.Fprintf(w, "Runtime settings: %s\n", settings)
			fmt.Fprintf(w, "Last indexed:    %s\n", module.LastIndexedAt.Format(time.RFC3339))
			fmt.Fprintf(w, "Files:           %d (%d failed, %d skipped)\n",
				status.FilesCount, status.FailedFilesCount, status.SkippedFilesCount)
			fmt.Fprintf(w, "Declarations:    %d\n", status.DeclarationsCount)

			kinds := make([]string, 0, len(status.CountsByKind))
			for k := range status.CountsByKind {
				kinds = append(kinds, k)
			}
			slices.Sort(kinds)
			for _, k := range kinds {
				fmt.Fprintf(w, "  %-16s %d\n", k, status.CountsByKind[k])
			}

			fmt.Fprintf(w, "Index size:      %.2f MB\n", status.IndexSizeMB)
			return nil
		},
	}
}
