package types

import "errors"

// Domain errors for type validation
var (
	// Statement errors
	ErrNilStatement          = errors.New("statement is nil")
	ErrInvalidKind           = errors.New("invalid statement kind")
	ErrMissingName           = errors.New("declaration name is required")
	ErrInvalidLine           = errors.New("invalid position: line numbers must be positive")
	ErrMissingParameterName  = errors.New("parameter name is required")
	ErrUnknownStatementShape = errors.New("record does not describe a known statement")

	// Search result errors
	ErrInvalidDeclarationID  = errors.New("invalid declaration ID")
	ErrInvalidRank           = errors.New("rank must be >= 1")
	ErrInvalidRelevanceScore = errors.New("relevance score must be between 0 and 1")
	ErrMissingFile           = errors.New("file path is required")
)
