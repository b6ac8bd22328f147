package types

import (
	"errors"
	"slices"
	"strings"
)

// StatementKind represents the type of documentable Puppet declaration
type StatementKind string

const (
	KindClass         StatementKind = "class"
	KindDefinedType   StatementKind = "defined_type"
	KindFunction      StatementKind = "function"
	KindPlan          StatementKind = "plan"
	KindDataTypeAlias StatementKind = "data_type_alias"

	// Produced outside the manifest parser (Ruby resource types, task metadata);
	// they share the record shape and storage.
	KindResourceType StatementKind = "resource_type"
	KindTask         StatementKind = "task"
)

// ValidKind reports whether k is a known statement kind
func ValidKind(k StatementKind) bool {
	switch k {
	case KindClass, KindDefinedType, KindFunction, KindPlan, KindDataTypeAlias,
		KindResourceType, KindTask:
		return true
	default:
		return false
	}
}

// LineRange is an inclusive, 1-based range of source lines. The zero value means
// "no lines".
type LineRange struct {
	Start int
	End   int
}

// IsZero returns true if the range covers no lines
func (r LineRange) IsZero() bool {
	return r.Start == 0 && r.End == 0
}

// Declaration holds the fields every statement variant shares
type Declaration struct {
	Name      string
	File      string // File identifier as given to the parser
	Line      int    // 1-based line of the declaration keyword
	Docstring string // Normalized comment block, "" when absent
	Source    string // Declaration text from its first to its last token
	Comments  LineRange
}

// Validate checks the shared declaration fields
func (d Declaration) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return ErrMissingName
	}
	if d.Line <= 0 {
		return ErrInvalidLine
	}
	if !d.Comments.IsZero() {
		if d.Comments.Start > d.Comments.End || d.Comments.End >= d.Line {
			return errors.New("invalid comment range: must end before the declaration line")
		}
	}
	return nil
}

// Parameter is a single declared parameter. Type and Value are the source text of
// the type expression and default value; empty means absent.
type Parameter struct {
	Name         string
	Type         string
	Value        string
	CapturesRest bool
}

// HasDefault returns true if the parameter declares a default value
func (p Parameter) HasDefault() bool {
	return p.Value != ""
}

// Statement is one documentable declaration extracted from a source unit.
// The set of implementations is closed.
type Statement interface {
	Kind() StatementKind
	Decl() Declaration
	statement()
	clone() Statement // Copy sharing no slices with the receiver
}

// Parameterized is implemented by statements that declare parameters
type Parameterized interface {
	Statement
	Params() []Parameter
}

// ClassStatement documents a `class` definition
type ClassStatement struct {
	Declaration
	Parameters  []Parameter
	ParentClass string // Name after `inherits`, "" when absent
}

func (ClassStatement) Kind() StatementKind   { return KindClass }
func (s ClassStatement) Decl() Declaration   { return s.Declaration }
func (s ClassStatement) Params() []Parameter { return s.Parameters }
func (ClassStatement) statement()            {}

func (s ClassStatement) clone() Statement {
	s.Parameters = slices.Clone(s.Parameters)
	return s
}

// DefinedTypeStatement documents a `define` definition
type DefinedTypeStatement struct {
	Declaration
	Parameters []Parameter
}

func (DefinedTypeStatement) Kind() StatementKind   { return KindDefinedType }
func (s DefinedTypeStatement) Decl() Declaration   { return s.Declaration }
func (s DefinedTypeStatement) Params() []Parameter { return s.Parameters }
func (DefinedTypeStatement) statement()            {}

func (s DefinedTypeStatement) clone() Statement {
	s.Parameters = slices.Clone(s.Parameters)
	return s
}

// FunctionStatement documents a Puppet-language `function` definition
type FunctionStatement struct {
	Declaration
	Parameters []Parameter
	ReturnType string // Type expression after `>>`, "" when absent
}

func (FunctionStatement) Kind() StatementKind   { return KindFunction }
func (s FunctionStatement) Decl() Declaration   { return s.Declaration }
func (s FunctionStatement) Params() []Parameter { return s.Parameters }
func (FunctionStatement) statement()            {}

func (s FunctionStatement) clone() Statement {
	s.Parameters = slices.Clone(s.Parameters)
	return s
}

// PlanStatement documents a `plan` definition
type PlanStatement struct {
	Declaration
	Parameters []Parameter
}

func (PlanStatement) Kind() StatementKind   { return KindPlan }
func (s PlanStatement) Decl() Declaration   { return s.Declaration }
func (s PlanStatement) Params() []Parameter { return s.Parameters }
func (PlanStatement) statement()            {}

func (s PlanStatement) clone() Statement {
	s.Parameters = slices.Clone(s.Parameters)
	return s
}

// DataTypeAliasStatement documents a `type Name = ...` alias
type DataTypeAliasStatement struct {
	Declaration
	AliasOf string
}

func (DataTypeAliasStatement) Kind() StatementKind { return KindDataTypeAlias }
func (s DataTypeAliasStatement) Decl() Declaration { return s.Declaration }
func (DataTypeAliasStatement) statement()          {}

func (s DataTypeAliasStatement) clone() Statement { return s }

// ValidateStatement performs comprehensive validation of a statement
func ValidateStatement(s Statement) error {
	if s == nil {
		return ErrNilStatement
	}
	if !ValidKind(s.Kind()) {
		return ErrInvalidKind
	}
	if err := s.Decl().Validate(); err != nil {
		return err
	}

	if p, ok := s.(Parameterized); ok {
		seen := make(map[string]bool, len(p.Params()))
		for i, param := range p.Params() {
			if param.Name == "" {
				return ErrMissingParameterName
			}
			if seen[param.Name] {
				return errors.New("duplicate parameter name: " + param.Name)
			}
			seen[param.Name] = true

			// Only the last parameter may capture the rest
			if param.CapturesRest && i != len(p.Params())-1 {
				return errors.New("captures-rest parameter must be last: " + param.Name)
			}
		}
	}

	return nil
}
