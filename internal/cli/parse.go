package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dshills/puppetdoc-mcp/internal/parser"
	"github.com/dshills/puppetdoc-mcp/pkg/types"
)

// fileReport is the parse output for one file
type fileReport struct {
	File       string                  `json:"file" yaml:"file"`
	State      string                  `json:"state" yaml:"state"`
	Skipped    bool                    `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Error      *types.ParseError       `json:"error,omitempty" yaml:"error,omitempty"`
	Statements []types.StatementRecord `json:"statements" yaml:"statements"`
}

func newParseCmd(a *app) *cobra.Command {
	var (
		format string
		root   string
	)

	cmd := &cobra.Command{
		Use:   "parse FILE...",
		Short: "Print the documented declarations of Puppet manifests",
		Long: `Parse one or more Puppet manifests and print every class, defined type,
function, plan and type alias they declare together with its docstring.

File names are resolved relative to --root, so a file under plans/ is
skipped when the runtime version predates Puppet plans.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "yaml" {
				return fmt.Errorf("unsupported format %q (want json or yaml)", format)
			}

			reports, failed, err := a.parseFiles(root, args)
			if err != nil {
				return err
			}
			if err := writeReports(cmd.OutOrStdout(), format, reports); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d file(s) failed to parse", failed, len(reports))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format (json, yaml)")
	cmd.Flags().StringVar(&root, "root", ".", "Module root file names are resolved against")

	return cmd
}

// parseFiles parses each file with the configured runtime
func (a *app) parseFiles(root string, files []string) ([]fileReport, int, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid root %q: %w", root, err)
	}

	settings := a.cfg.RuntimeSettings()
	reports := make([]fileReport, 0, len(files))
	failed := 0

	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, 0, err
		}

		p := parser.New(string(data), moduleRelPath(absRoot, file),
			parser.WithRuntime(settings),
			parser.WithLogger(a.logger))
		result := p.Parse()

		report := fileReport{
			File:       p.File(),
			State:      p.State().String(),
			Skipped:    result.Skipped(),
			Error:      result.ParseError(),
			Statements: types.ToRecords(result.Statements()),
		}
		if report.Error != nil {
			failed++
		}
		reports = append(reports, report)
	}

	return reports, failed, nil
}

// moduleRelPath names file relative to root, falling back to the path as given
func moduleRelPath(root, file string) string {
	abs, err := filepath.Abs(file)
	if err != nil {
		return filepath.ToSlash(file)
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(file)
	}
	return filepath.ToSlash(rel)
}

func writeReports(w io.Writer, format string, reports []fileReport) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(reports); err != nil {
			return err
		}
		return enc.Close()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(reports)
}
