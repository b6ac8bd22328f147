package parser

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dshills/puppetdoc-mcp/pkg/types"
)

// State is the lifecycle state of a Parser
type State int

const (
	StateUnparsed State = iota
	StateParsing
	StateParsed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnparsed:
		return "unparsed"
	case StateParsing:
		return "parsing"
	case StateParsed:
		return "parsed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Option configures a Parser
type Option func(*Parser)

// WithRuntime sets the runtime settings the source is parsed against
func WithRuntime(s Settings) Option {
	return func(p *Parser) {
		if s != nil {
			p.settings = s
		}
	}
}

// WithLogger sets the logger used for skip warnings and parse failures
func WithLogger(logger *slog.Logger) Option {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Parser extracts documented declarations from one Puppet source unit.
// A Parser is not safe for concurrent use.
type Parser struct {
	file     string
	source   string
	settings Settings
	logger   *slog.Logger

	state  State
	result *types.ParseResult
}

// New creates a Parser for source identified by file. The file identifier is used
// in diagnostics and to recognize plan files (paths starting with "plans/").
func New(source, file string, opts ...Option) *Parser {
	p := &Parser{
		file:     file,
		source:   source,
		settings: DefaultRuntime(),
		logger:   slog.Default(),
		state:    StateUnparsed,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParseFile reads relPath under root and parses it. The returned result's file
// identifier is relPath in slash form.
func ParseFile(root, relPath string, opts ...Option) (*types.ParseResult, error) {
	content, err := os.ReadFile(filepath.Join(root, relPath))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return New(string(content), filepath.ToSlash(relPath), opts...).Parse(), nil
}

// File returns the file identifier
func (p *Parser) File() string {
	return p.file
}

// State returns the current lifecycle state
func (p *Parser) State() State {
	return p.state
}

// Parse extracts the statements. The first call does the work; later calls return
// the same result.
func (p *Parser) Parse() *types.ParseResult {
	if p.result != nil {
		return p.result
	}
	p.state = StateParsing

	// Runtimes that predate plans cannot tokenize them, so the gate runs first
	if skipsPlansFile(p.settings, p.file) {
		p.logger.Warn(fmt.Sprintf("Skipping %s: Puppet Plans require Puppet 5 or greater.", p.file),
			slog.String("file", p.file),
			slog.String("runtime_version", p.settings.Version()))
		return p.finish(StateParsed, types.NewSkippedResult(p.file))
	}

	root, perr := parseAST(p.file, p.source, grammarOptions(p.settings))
	if perr != nil {
		p.logger.Error(fmt.Sprintf("Failed to parse %s: %s", p.file, perr.Message),
			slog.String("file", p.file),
			slog.Int("line", perr.Line),
			slog.Int("column", perr.Column))
		return p.finish(StateFailed, types.NewFailedResult(perr))
	}

	statements := newDeclarationVisitor(p.file).visit(root)
	return p.finish(StateParsed, types.NewParseResult(p.file, statements))
}

// Statements returns the extracted statements, parsing first if needed
func (p *Parser) Statements() []types.Statement {
	return p.Parse().Statements()
}

func (p *Parser) finish(state State, result *types.ParseResult) *types.ParseResult {
	p.state = state
	p.result = result
	return result
}
