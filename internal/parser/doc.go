// Package parser extracts documented declarations from Puppet manifest source.
//
// The parser runs the definition-level grammar in internal/puppet, walks the
// resulting AST and attaches to each declaration the comment block that
// immediately precedes it.
//
// # Basic Usage
//
//	p := parser.New(source, "manifests/init.pp",
//	    parser.WithRuntime(parser.NewRuntime("8.10.0", parser.TasksSetting)),
//	    parser.WithLogger(logger))
//	result := p.Parse()
//	if result.Failed() {
//	    return result.Err()
//	}
//	for _, stmt := range result.Statements() {
//	    fmt.Printf("%s %s: %q\n", stmt.Kind(), stmt.Decl().Name, stmt.Decl().Docstring)
//	}
//
// # Features
//
// Statement extraction includes:
//   - Classes (parameters, inherits), nested classes and defines qualified
//     with the enclosing class name
//   - Defined types
//   - Puppet-language functions (parameters, return type)
//   - Plans, when the runtime settings include "tasks"
//   - Data type aliases
//
// Node definitions and all other statements are ignored.
//
// # Docstrings
//
// A docstring is the run of `#` comment lines directly above a declaration. One
// blank line between the block and the declaration is tolerated; two or more
// detach it. Comment markers and one following space are stripped from each line.
//
// # Error Handling
//
// Syntax errors never escape Parse. They are logged and recorded on the result:
//
//	result := p.Parse()
//	if result.Failed() {
//	    fmt.Println(result.ParseError().Line, result.ParseError().Message)
//	}
//	// result.Statements() is empty
//
// Files under plans/ are skipped with a warning when the runtime version is
// below 5.0.0.
//
// # Concurrency
//
// A Parser belongs to a single goroutine. Runtime values are immutable and may be
// shared freely.
package parser
