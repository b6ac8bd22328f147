package cli

import (
	"github.com/spf13/cobra"

	"github.com/dshills/puppetdoc-mcp/internal/indexer"
	"github.com/dshills/puppetdoc-mcp/internal/mcp"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the MCP tools on stdio",
		Long: `Run the Model Context Protocol server on stdin/stdout, exposing the
index_module, search_docs, get_status and parse_source tools.

Logs are written to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, err := a.cfg.ExpandedDBPath()
			if err != nil {
				return err
			}

			server, err := mcp.NewServer(dbPath,
				mcp.WithRuntime(a.cfg.RuntimeSettings()),
				mcp.WithLogger(a.logger),
				mcp.WithIndexerConfig(indexer.Config{
					Workers:   a.cfg.Indexer.Workers,
					BatchSize: a.cfg.Indexer.BatchSize,
				}),
				mcp.WithDefaultLimit(a.cfg.Search.DefaultLimit),
				mcp.WithVersion(a.build.Version))
			if err != nil {
				return err
			}

			err = server.Serve(cmd.Context())
			a.logger.Info("Server stopped")
			return err
		},
	}
}
