package parser

import (
	"github.com/dshills/puppetdoc-mcp/internal/puppet"
	"github.com/dshills/puppetdoc-mcp/pkg/types"
)

// declarationVisitor turns AST nodes into statements
type declarationVisitor struct {
	file   string
	unit   *SourceUnit // Set when a Program is visited
	source string
}

func newDeclarationVisitor(file string) *declarationVisitor {
	return &declarationVisitor{file: file}
}

// visit dispatches on the node's concrete type. Kinds without a statement
// variant produce nothing.
func (v *declarationVisitor) visit(node puppet.Node) []types.Statement {
	switch n := node.(type) {
	case *puppet.Factory:
		if n.Current == nil {
			return nil
		}
		return v.visit(n.Current)
	case *puppet.Program:
		return v.visitProgram(n)
	case *puppet.HostClassDefinition:
		return []types.Statement{v.extractClass(n)}
	case *puppet.ResourceTypeDefinition:
		return []types.Statement{v.extractDefinedType(n)}
	case *puppet.FunctionDefinition:
		return []types.Statement{v.extractFunction(n)}
	case *puppet.PlanDefinition:
		return []types.Statement{v.extractPlan(n)}
	case *puppet.TypeAlias:
		return []types.Statement{v.extractTypeAlias(n)}
	default:
		return nil
	}
}

// visitProgram indexes the program's lines and visits its definitions in order
func (v *declarationVisitor) visitProgram(program *puppet.Program) []types.Statement {
	v.source = program.SourceText
	v.unit = NewSourceUnit(v.file, program.SourceText)

	statements := make([]types.Statement, 0, len(program.Definitions))
	for _, def := range program.Definitions {
		statements = append(statements, v.visit(def)...)
	}
	return statements
}

// extractClass builds a ClassStatement
func (v *declarationVisitor) extractClass(def *puppet.HostClassDefinition) types.Statement {
	return types.ClassStatement{
		Declaration: v.declaration(def.Name, def),
		Parameters:  convertParameters(def.Parameters),
		ParentClass: def.Parent,
	}
}

// extractDefinedType builds a DefinedTypeStatement
func (v *declarationVisitor) extractDefinedType(def *puppet.ResourceTypeDefinition) types.Statement {
	return types.DefinedTypeStatement{
		Declaration: v.declaration(def.Name, def),
		Parameters:  convertParameters(def.Parameters),
	}
}

// extractFunction builds a FunctionStatement
func (v *declarationVisitor) extractFunction(def *puppet.FunctionDefinition) types.Statement {
	return types.FunctionStatement{
		Declaration: v.declaration(def.Name, def),
		Parameters:  convertParameters(def.Parameters),
		ReturnType:  def.ReturnType,
	}
}

// extractPlan builds a PlanStatement
func (v *declarationVisitor) extractPlan(def *puppet.PlanDefinition) types.Statement {
	return types.PlanStatement{
		Declaration: v.declaration(def.Name, def),
		Parameters:  convertParameters(def.Parameters),
	}
}

// extractTypeAlias builds a DataTypeAliasStatement
func (v *declarationVisitor) extractTypeAlias(def *puppet.TypeAlias) types.Statement {
	return types.DataTypeAliasStatement{
		Declaration: v.declaration(def.Name, def),
		AliasOf:     def.TypeExpr,
	}
}

// declaration fills the fields shared by every statement
func (v *declarationVisitor) declaration(name string, node puppet.Node) types.Declaration {
	pos := node.Position()
	decl := types.Declaration{
		Name: name,
		File: v.file,
		Line: pos.Line,
	}

	if v.unit != nil {
		decl.Docstring, decl.Comments = ExtractDocstring(v.unit, pos.Line)
	}
	if start, end := pos.Offset, node.End(); start >= 0 && start < end && end <= len(v.source) {
		decl.Source = v.source[start:end]
	}

	return decl
}

func convertParameters(params []*puppet.Parameter) []types.Parameter {
	out := make([]types.Parameter, 0, len(params))
	for _, p := range params {
		out = append(out, types.Parameter{
			Name:         p.Name,
			Type:         p.Type,
			Value:        p.Value,
			CapturesRest: p.CapturesRest,
		})
	}
	return out
}
