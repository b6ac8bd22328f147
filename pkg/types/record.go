package types

// StatementRecord is the flat, serializable form of a Statement used for CLI output,
// tool responses and storage round-trips.
type StatementRecord struct {
	Kind       StatementKind     `json:"kind" yaml:"kind"`
	Name       string            `json:"name" yaml:"name"`
	File       string            `json:"file" yaml:"file"`
	Line       int               `json:"line" yaml:"line"`
	Docstring  string            `json:"docstring" yaml:"docstring"`
	Parameters []ParameterRecord `json:"parameters,omitempty" yaml:"parameters,omitempty"`

	ParentClass string `json:"parent_class,omitempty" yaml:"parent_class,omitempty"`
	ReturnType  string `json:"return_type,omitempty" yaml:"return_type,omitempty"`
	AliasOf     string `json:"alias_of,omitempty" yaml:"alias_of,omitempty"`

	CommentsStart int    `json:"comments_start,omitempty" yaml:"comments_start,omitempty"`
	CommentsEnd   int    `json:"comments_end,omitempty" yaml:"comments_end,omitempty"`
	Source        string `json:"source,omitempty" yaml:"source,omitempty"`
}

// ParameterRecord is the serializable form of a Parameter
type ParameterRecord struct {
	Name         string `json:"name" yaml:"name"`
	Type         string `json:"type,omitempty" yaml:"type,omitempty"`
	Value        string `json:"value,omitempty" yaml:"value,omitempty"`
	CapturesRest bool   `json:"captures_rest,omitempty" yaml:"captures_rest,omitempty"`
}

// ToRecord flattens a statement
func ToRecord(s Statement) StatementRecord {
	d := s.Decl()
	rec := StatementRecord{
		Kind:          s.Kind(),
		Name:          d.Name,
		File:          d.File,
		Line:          d.Line,
		Docstring:     d.Docstring,
		CommentsStart: d.Comments.Start,
		CommentsEnd:   d.Comments.End,
		Source:        d.Source,
	}

	if p, ok := s.(Parameterized); ok {
		for _, param := range p.Params() {
			rec.Parameters = append(rec.Parameters, ParameterRecord(param))
		}
	}

	switch v := s.(type) {
	case ClassStatement:
		rec.ParentClass = v.ParentClass
	case FunctionStatement:
		rec.ReturnType = v.ReturnType
	case DataTypeAliasStatement:
		rec.AliasOf = v.AliasOf
	}

	return rec
}

// ToRecords flattens a list of statements, preserving order
func ToRecords(statements []Statement) []StatementRecord {
	records := make([]StatementRecord, 0, len(statements))
	for _, s := range statements {
		records = append(records, ToRecord(s))
	}
	return records
}

// ToStatement rebuilds the statement a record was flattened from.
// Kinds without a manifest variant (resource_type, task) return ErrUnknownStatementShape.
func (r StatementRecord) ToStatement() (Statement, error) {
	decl := Declaration{
		Name:      r.Name,
		File:      r.File,
		Line:      r.Line,
		Docstring: r.Docstring,
		Source:    r.Source,
		Comments:  LineRange{Start: r.CommentsStart, End: r.CommentsEnd},
	}

	var params []Parameter
	for _, p := range r.Parameters {
		params = append(params, Parameter(p))
	}

	switch r.Kind {
	case KindClass:
		return ClassStatement{Declaration: decl, Parameters: params, ParentClass: r.ParentClass}, nil
	case KindDefinedType:
		return DefinedTypeStatement{Declaration: decl, Parameters: params}, nil
	case KindFunction:
		return FunctionStatement{Declaration: decl, Parameters: params, ReturnType: r.ReturnType}, nil
	case KindPlan:
		return PlanStatement{Declaration: decl, Parameters: params}, nil
	case KindDataTypeAlias:
		return DataTypeAliasStatement{Declaration: decl, AliasOf: r.AliasOf}, nil
	default:
		return nil, ErrUnknownStatementShape
	}
}
