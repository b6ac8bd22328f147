package puppet

import "fmt"

// SyntaxError is returned by Parse when the source is not well formed
type SyntaxError struct {
	Message string
	Line    int
	Column  int
}

// Error implements the error interface
func (e *SyntaxError) Error() string {
	if e.Line <= 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (line: %d, column: %d)", e.Message, e.Line, e.Column)
}

func syntaxErrorAt(t token, format string, args ...any) *SyntaxError {
	return &SyntaxError{
		Message: fmt.Sprintf(format, args...),
		Line:    t.line,
		Column:  t.col,
	}
}

// unexpected builds the generic error for a token the grammar cannot accept
func unexpected(t token) *SyntaxError {
	if t.kind == tokEOF {
		return syntaxErrorAt(t, "Syntax error at end of input")
	}
	return syntaxErrorAt(t, "Syntax error at '%s'", t.text)
}
