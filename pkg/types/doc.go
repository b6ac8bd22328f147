// Package types provides shared type definitions for the puppetdoc MCP server.
//
// This package defines the document model produced by the manifest parser and
// consumed by storage, search and the tool server.
//
// # Core Types
//
// Statement is a closed sum type with one variant per documentable Puppet
// declaration. Every variant embeds Declaration:
//
//	switch s := stmt.(type) {
//	case types.ClassStatement:
//	    fmt.Println(s.Name, s.ParentClass)
//	case types.FunctionStatement:
//	    fmt.Println(s.Name, s.ReturnType)
//	}
//
// ParseResult is the frozen output for one source unit. It either carries a
// ParseError and no statements, or statements and no error:
//
//	if result.Failed() {
//	    log.Printf("parse failed: %v", result.Err())
//	}
//	for _, stmt := range result.Statements() {
//	    fmt.Println(stmt.Kind(), stmt.Decl().Name)
//	}
//
// # Records
//
// StatementRecord is the flat form used for JSON/YAML output and storage.
// ToRecord and StatementRecord.ToStatement convert between the two.
//
// # Validation
//
//	if err := types.ValidateStatement(stmt); err != nil {
//	    return err
//	}
package types
