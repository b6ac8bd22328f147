package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/puppetdoc-mcp/internal/searcher"
	"github.com/dshills/puppetdoc-mcp/internal/storage"
	"github.com/dshills/puppetdoc-mcp/pkg/types"
)

func newSearchCmd(a *app) *cobra.Command {
	var (
		limit        int
		kinds        []string
		filePattern  string
		minRelevance float64
		asJSON       bool
	)

	cmd := &cobra.Command{
		Use:   "search PATH QUERY",
		Short: "Search declaration names and docstrings of an indexed module",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := modulePath(args[0])
			if err != nil {
				return err
			}
			for _, k := range kinds {
				if !types.ValidKind(types.StatementKind(k)) {
					return fmt.Errorf("unknown kind %q", k)
				}
			}
			if limit == 0 {
				limit = a.cfg.Search.DefaultLimit
			}

			store, err := a.openStorage()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			module, err := store.GetModule(cmd.Context(), root)
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("module %s is not indexed; run 'puppetdoc index %s' first", root, args[0])
			}
			if err != nil {
				return err
			}

			var filters *storage.SearchFilters
			if len(kinds) > 0 || filePattern != "" || minRelevance > 0 {
				filters = &storage.SearchFilters{
					Kinds:        kinds,
					FilePattern:  filePattern,
					MinRelevance: minRelevance,
				}
			}

			resp, err := searcher.NewSearcher(store).Search(cmd.Context(), searcher.SearchRequest{
				Query:    args[1],
				Limit:    limit,
				ModuleID: module.ID,
				Filters:  filters,
			})
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			writeResults(cmd.OutOrStdout(), resp)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of results (default from config)")
	cmd.Flags().StringSliceVarP(&kinds, "kind", "k", nil, "Only return declarations of these kinds")
	cmd.Flags().StringVar(&filePattern, "file-pattern", "", "Glob for file paths relative to the module root")
	cmd.Flags().Float64Var(&minRelevance, "min-relevance", 0, "Minimum relevance score (0.0-1.0)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")

	return cmd
}

func writeResults(w io.Writer, resp *searcher.SearchResponse) {
	if resp.TotalResults == 0 {
		fmt.Fprintln(w, "No results.")
		return
	}

	for _, r := range resp.Results {
		fmt.Fprintf(w, "%d. %s %s (%s:%d) score=%.3f\n",
			r.Rank, r.Statement.Kind, r.Statement.Name, r.File, r.Statement.Line, r.RelevanceScore)
		if summary, _, _ := strings.Cut(r.Statement.Docstring, "\n"); summary != "" {
			fmt.Fprintf(w, "   %s\n", summary)
		}
	}
}
