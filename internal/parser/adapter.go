package parser

import (
	"errors"
	"fmt"

	"github.com/dshills/puppetdoc-mcp/internal/puppet"
	"github.com/dshills/puppetdoc-mcp/pkg/types"
)

// parseAST runs the grammar over source. Syntax errors and grammar panics are
// returned as a ParseError; they never propagate to the caller.
func parseAST(file, source string, opts puppet.Options) (root puppet.Node, perr *types.ParseError) {
	defer func() {
		if r := recover(); r != nil {
			root = nil
			perr = &types.ParseError{File: file, Message: fmt.Sprintf("internal parser error: %v", r)}
		}
	}()

	factory, err := puppet.Parse(source, opts)
	if err != nil {
		var syn *puppet.SyntaxError
		if errors.As(err, &syn) {
			return nil, &types.ParseError{
				File:    file,
				Line:    syn.Line,
				Column:  syn.Column,
				Message: syn.Error(),
			}
		}
		return nil, &types.ParseError{File: file, Message: err.Error()}
	}

	return factory, nil
}
