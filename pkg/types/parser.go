package types

import "fmt"

// ParseResult is the frozen output of parsing one source unit.
//
// Either the error is set and there are no statements, or the error is unset and
// the statements (possibly none) are the declarations in source order. A result is
// never modified after construction.
type ParseResult struct {
	file       string
	statements []Statement
	err        *ParseError
	skipped    bool
}

// ParseError represents a syntax error reported for a source unit
type ParseError struct {
	File    string `json:"file" yaml:"file"`
	Line    int    `json:"line" yaml:"line"`
	Column  int    `json:"column" yaml:"column"`
	Message string `json:"message" yaml:"message"`
}

// Error implements the error interface
func (pe *ParseError) Error() string {
	if pe.File == "" {
		return pe.Message
	}
	return fmt.Sprintf("%s: %s", pe.File, pe.Message)
}

// NewParseResult creates a successful result holding a deep copy of statements
func NewParseResult(file string, statements []Statement) *ParseResult {
	return &ParseResult{file: file, statements: cloneStatements(statements)}
}

func cloneStatements(statements []Statement) []Statement {
	out := make([]Statement, len(statements))
	for i, s := range statements {
		if s != nil {
			out[i] = s.clone()
		}
	}
	return out
}

// NewFailedResult creates a result carrying err and no statements
func NewFailedResult(err *ParseError) *ParseResult {
	return &ParseResult{file: err.File, statements: []Statement{}, err: err}
}

// NewSkippedResult creates an empty successful result for a file that was not parsed
// because the runtime does not support its contents
func NewSkippedResult(file string) *ParseResult {
	return &ParseResult{file: file, statements: []Statement{}, skipped: true}
}

// File returns the file identifier the result belongs to
func (pr *ParseResult) File() string {
	return pr.file
}

// Statements returns a deep copy of the extracted statements in source order
func (pr *ParseResult) Statements() []Statement {
	return cloneStatements(pr.statements)
}

// Len returns the number of statements
func (pr *ParseResult) Len() int {
	return len(pr.statements)
}

// Err returns the parse error, or nil if parsing succeeded
func (pr *ParseResult) Err() error {
	if pr.err == nil {
		return nil
	}
	return pr.err
}

// ParseError returns the recorded syntax error, or nil
func (pr *ParseResult) ParseError() *ParseError {
	return pr.err
}

// Failed returns true if parsing produced a syntax error
func (pr *ParseResult) Failed() bool {
	return pr.err != nil
}

// Skipped returns true if the file was skipped by the runtime version gate
func (pr *ParseResult) Skipped() bool {
	return pr.skipped
}
