package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/dshills/puppetdoc-mcp/pkg/types"
)

const initManifest = `# Manages the chrony daemon.
#
# @param servers NTP servers to sync with
class chrony (
  Array[String] $servers = [],
) inherits chrony::params { }
`

const aliasManifest = `# Accepted chrony log levels.
type Chrony::LogLevel = Enum['debug', 'info']
`

const planManifest = `# Restarts chrony across the fleet.
plan chrony::restart (TargetSpec $targets) { }
`

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func newTestModule(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "metadata.json", `{"name": "example-chrony", "version": "3.0.0"}`)
	writeFile(t, root, "manifests/init.pp", initManifest)
	writeFile(t, root, "types/loglevel.pp", aliasManifest)
	writeFile(t, root, "plans/restart.pp", planManifest)
	return root
}

// run executes the command tree against a throwaway database
func run(t *testing.T, dbPath string, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	root := NewRootCommand(BuildInfo{Version: "1.2.3", Commit: "abc123", BuildTime: "2026-01-02T03:04:05Z"})
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--db", dbPath, "--log-level", "error"}, args...))

	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func testDB(t *testing.T) string {
	return filepath.Join(t.TempDir(), "db", "index.db")
}

func TestVersionCommand(t *testing.T) {
	out, _, err := run(t, testDB(t), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version: 1.2.3")
	assert.Contains(t, out, "Commit: abc123")
	assert.Contains(t, out, "Built: 2026-01-02T03:04:05Z")
	assert.Contains(t, out, "SQLite Driver: ")

	out, _, err = run(t, testDB(t), "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, "1.2.3\n", out)
}

func TestBuildInfoDefaults(t *testing.T) {
	b := BuildInfo{}.withDefaults()
	assert.Equal(t, BuildInfo{Version: "dev", Commit: "unknown", BuildTime: "unknown"}, b)
}

func TestParseCommand_JSON(t *testing.T) {
	root := newTestModule(t)

	out, _, err := run(t, testDB(t), "parse", "--root", root,
		filepath.Join(root, "manifests/init.pp"),
		filepath.Join(root, "types/loglevel.pp"))
	require.NoError(t, err)

	var reports []fileReport
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 2)

	assert.Equal(t, "manifests/init.pp", reports[0].File)
	assert.Equal(t, "parsed", reports[0].State)
	require.Len(t, reports[0].Statements, 1)
	class := reports[0].Statements[0]
	assert.Equal(t, types.KindClass, class.Kind)
	assert.Equal(t, "chrony", class.Name)
	assert.Equal(t, "chrony::params", class.ParentClass)
	assert.Equal(t, "Manages the chrony daemon.\n\n@param servers NTP servers to sync with", class.Docstring)
	require.Len(t, class.Parameters, 1)
	assert.Equal(t, "servers", class.Parameters[0].Name)

	require.Len(t, reports[1].Statements, 1)
	alias := reports[1].Statements[0]
	assert.Equal(t, types.KindDataTypeAlias, alias.Kind)
	assert.Equal(t, "Chrony::LogLevel", alias.Name)
	assert.Equal(t, "Accepted chrony log levels.", alias.Docstring)
}

func TestParseCommand_YAML(t *testing.T) {
	root := newTestModule(t)

	out, _, err := run(t, testDB(t), "parse", "--format", "yaml", "--root", root,
		filepath.Join(root, "plans/restart.pp"))
	require.NoError(t, err)

	var reports []fileReport
	require.NoError(t, yaml.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, "plans/restart.pp", reports[0].File)
	require.Len(t, reports[0].Statements, 1)
	assert.Equal(t, types.KindPlan, reports[0].Statements[0].Kind)
	assert.Equal(t, "chrony::restart", reports[0].Statements[0].Name)
}

func TestParseCommand_PlansGate(t *testing.T) {
	root := newTestModule(t)

	out, stderr, err := run(t, testDB(t), "--runtime-version", "4.10.0", "--log-level", "warn",
		"parse", "--root", root, filepath.Join(root, "plans/restart.pp"))
	require.NoError(t, err)

	var reports []fileReport
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 1)
	assert.True(t, reports[0].Skipped)
	assert.Empty(t, reports[0].Statements)
	assert.Contains(t, stderr, "Skipping plans/restart.pp: Puppet Plans require Puppet 5 or greater.")
}

func TestParseCommand_Errors(t *testing.T) {
	root := t.TempDir()
	broken := writeFile(t, root, "manifests/broken.pp", "class broken {\n")

	out, _, err := run(t, testDB(t), "parse", "--root", root, broken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 file(s) failed to parse")

	var reports []fileReport
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, "failed", reports[0].State)
	require.NotNil(t, reports[0].Error)
	assert.Empty(t, reports[0].Statements)

	_, _, err = run(t, testDB(t), "parse", "--format", "toml", broken)
	assert.ErrorContains(t, err, "unsupported format")

	_, _, err = run(t, testDB(t), "parse", filepath.Join(root, "missing.pp"))
	assert.Error(t, err)

	_, _, err = run(t, testDB(t), "parse")
	assert.Error(t, err)
}

func TestModuleRelPath(t *testing.T) {
	root := t.TempDir()

	assert.Equal(t, "plans/a.pp", moduleRelPath(root, filepath.Join(root, "plans", "a.pp")))
	outside := filepath.Join(filepath.Dir(root), "elsewhere", "b.pp")
	assert.Equal(t, filepath.ToSlash(outside), moduleRelPath(root, outside))
}

func TestIndexSearchStatus(t *testing.T) {
	db := testDB(t)
	root := newTestModule(t)

	out, _, err := run(t, db, "status", root)
	require.NoError(t, err)
	assert.Contains(t, out, "is not indexed")

	_, _, err = run(t, db, "search", root, "chrony")
	assert.ErrorContains(t, err, "is not indexed")

	out, _, err = run(t, db, "index", root)
	require.NoError(t, err)
	assert.Contains(t, out, "files indexed:   3")
	assert.Contains(t, out, "declarations:    3")

	out, _, err = run(t, db, "index", root)
	require.NoError(t, err)
	assert.Contains(t, out, "files unchanged: 3")

	out, _, err = run(t, db, "search", root, "fleet")
	require.NoError(t, err)
	assert.Contains(t, out, "1. plan chrony::restart (plans/restart.pp:2)")
	assert.Contains(t, out, "Restarts chrony across the fleet.")

	out, _, err = run(t, db, "search", root, "chrony", "--kind", "data_type_alias", "--json")
	require.NoError(t, err)
	var resp struct {
		Results []types.SearchResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "Chrony::LogLevel", resp.Results[0].Statement.Name)

	out, _, err = run(t, db, "search", root, "nothingmatches")
	require.NoError(t, err)
	assert.Equal(t, "No results.\n", out)

	_, _, err = run(t, db, "search", root, "chrony", "--kind", "node")
	assert.ErrorContains(t, err, "unknown kind")

	out, _, err = run(t, db, "status", root)
	require.NoError(t, err)
	assert.Contains(t, out, "Module:          example-chrony 3.0.0")
	assert.Contains(t, out, "Runtime settings: tasks")
	assert.Contains(t, out, "Declarations:    3")
	assert.True(t, strings.Contains(out, "plan") && strings.Contains(out, "class"))
}

func TestIndexCommand_NotADirectory(t *testing.T) {
	root := newTestModule(t)

	_, _, err := run(t, testDB(t), "index", filepath.Join(root, "metadata.json"))
	assert.ErrorContains(t, err, "is not a directory")
}

func TestInvalidConfiguration(t *testing.T) {
	_, _, err := run(t, testDB(t), "--log-level", "loud", "status", t.TempDir())
	assert.Error(t, err)

	_, _, err = run(t, testDB(t), "--runtime-version", "five", "status", t.TempDir())
	assert.Error(t, err)
}
