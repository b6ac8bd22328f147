package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dshills/puppetdoc-mcp/internal/config"
	"github.com/dshills/puppetdoc-mcp/internal/logging"
	"github.com/dshills/puppetdoc-mcp/internal/storage"
)

// BuildInfo carries the values set via ldflags at build time
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// app holds the state shared by all subcommands of one invocation
type app struct {
	build   BuildInfo
	cfgFile string
	cfg     *config.Config
	logger  *slog.Logger
}

// flagBindings maps persistent flags to their configuration keys
var flagBindings = map[string]string{
	"db":              "database.path",
	"runtime-version": "runtime.version",
	"log-level":       "log.level",
	"log-format":      "log.format",
}

// NewRootCommand builds the puppetdoc command tree
func NewRootCommand(build BuildInfo) *cobra.Command {
	a := &app{build: build}

	root := &cobra.Command{
		Use:   "puppetdoc",
		Short: "Puppet declaration docs for humans and AI assistants",
		Long: `puppetdoc parses Puppet manifests, extracts the classes, defined types,
functions, plans and type aliases they declare, and associates each
declaration with the comment block written above it.

Indexed modules can be searched from the command line or served to AI
assistants over the Model Context Protocol.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default: ./puppetdoc.yaml or ~/.puppetdoc/puppetdoc.yaml)")
	flags.String("db", "", "declaration database path (default: ~/.puppetdoc/index.db)")
	flags.String("runtime-version", "", "Puppet version manifests are parsed against")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.String("log-format", "", "Log format (json, text)")

	root.AddCommand(
		newParseCmd(a),
		newIndexCmd(a),
		newSearchCmd(a),
		newStatusCmd(a),
		newServeCmd(a),
		newVersionCmd(a),
	)

	return root
}

// Execute runs the command tree with the given arguments
func Execute(ctx context.Context, build BuildInfo, args []string) error {
	root := NewRootCommand(build)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// init loads configuration and builds the logger
func (a *app) init(cmd *cobra.Command) error {
	v, err := config.NewViper(a.cfgFile)
	if err != nil {
		return err
	}
	if err := bindFlags(v, cmd); err != nil {
		return err
	}

	cfg, err := config.New(v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	// stdout is reserved for command output and the MCP protocol
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.logger = logger

	return nil
}

func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	for name, key := range flagBindings {
		flag := cmd.Flags().Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("error binding %s flag: %w", name, err)
		}
	}
	return nil
}

// openStorage opens the configured declaration store, creating its directory
func (a *app) openStorage() (storage.Storage, error) {
	path, err := a.cfg.ExpandedDBPath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	store, err := storage.NewSQLiteStorage(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return store, nil
}

// modulePath resolves a module root argument to the form the indexer stores
func modulePath(arg string) (string, error) {
	path, err := filepath.Abs(arg)
	if err != nil {
		return "", fmt.Errorf("invalid module path %q: %w", arg, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", path)
	}
	return path, nil
}
