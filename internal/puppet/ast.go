package puppet

// NodeKind identifies the variant of an AST node
type NodeKind string

const (
	KindFactory                NodeKind = "Factory"
	KindProgram                NodeKind = "Program"
	KindHostClassDefinition    NodeKind = "HostClassDefinition"
	KindResourceTypeDefinition NodeKind = "ResourceTypeDefinition"
	KindFunctionDefinition     NodeKind = "FunctionDefinition"
	KindPlanDefinition         NodeKind = "PlanDefinition"
	KindTypeAlias              NodeKind = "TypeAlias"
	KindNodeDefinition         NodeKind = "NodeDefinition"
)

// Position is a location in source text. Line and Column are 1-based; Offset is a
// 0-based byte offset.
type Position struct {
	Offset int
	Line   int
	Column int
}

// Node is implemented by every AST node
type Node interface {
	Kind() NodeKind
	Position() Position
	End() int // Byte offset one past the node's last character
}

// Span records where a definition starts and ends
type Span struct {
	Start     Position
	EndOffset int
}

// Position returns the position of the definition's first token
func (s Span) Position() Position { return s.Start }

// End returns the byte offset one past the definition's last token
func (s Span) End() int { return s.EndOffset }

// Factory wraps the parse result. It carries no information of its own.
type Factory struct {
	Current Node
}

func (f *Factory) Kind() NodeKind { return KindFactory }

func (f *Factory) Position() Position {
	if f.Current == nil {
		return Position{Line: 1, Column: 1}
	}
	return f.Current.Position()
}

func (f *Factory) End() int {
	if f.Current == nil {
		return 0
	}
	return f.Current.End()
}

// Program is the root of a parsed source unit
type Program struct {
	Span
	Definitions []Node // Every definition, nested ones included, in source order
	SourceText  string
}

func (*Program) Kind() NodeKind { return KindProgram }

// Parameter is a declared parameter of a class, define, function or plan
type Parameter struct {
	Name         string // Without the leading $
	Type         string // Source text of the type expression, "" when untyped
	Value        string // Source text of the default value, "" when absent
	CapturesRest bool   // Declared as *$name
}

// HostClassDefinition is a `class` definition
type HostClassDefinition struct {
	Span
	Name       string // Fully qualified, including enclosing class names
	Parameters []*Parameter
	Parent     string // Name after `inherits`
}

func (*HostClassDefinition) Kind() NodeKind { return KindHostClassDefinition }

// ResourceTypeDefinition is a `define` definition
type ResourceTypeDefinition struct {
	Span
	Name       string
	Parameters []*Parameter
}

func (*ResourceTypeDefinition) Kind() NodeKind { return KindResourceTypeDefinition }

// FunctionDefinition is a Puppet-language `function` definition
type FunctionDefinition struct {
	Span
	Name       string
	Parameters []*Parameter
	ReturnType string // Source text after `>>`
}

func (*FunctionDefinition) Kind() NodeKind { return KindFunctionDefinition }

// PlanDefinition is a `plan` definition. Only produced when Options.Tasks is set.
type PlanDefinition struct {
	Span
	Name       string
	Parameters []*Parameter
}

func (*PlanDefinition) Kind() NodeKind { return KindPlanDefinition }

// TypeAlias is a `type Name = TypeExpression` statement
type TypeAlias struct {
	Span
	Name     string
	TypeExpr string
}

func (*TypeAlias) Kind() NodeKind { return KindTypeAlias }

// NodeDefinition is a `node` definition
type NodeDefinition struct {
	Span
	HostMatches []string
	Parent      string
}

func (*NodeDefinition) Kind() NodeKind { return KindNodeDefinition }
