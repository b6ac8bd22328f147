// Package puppet implements the definition-level grammar of the Puppet language.
//
// Parse recognizes the top-level constructs that carry documentation (classes,
// defined types, functions, plans, type aliases) plus node definitions, and
// returns them as a flat, source-ordered list inside a Program:
//
//	factory, err := puppet.Parse(src, puppet.Options{Tasks: true})
//	if err != nil {
//	    var syn *puppet.SyntaxError
//	    errors.As(err, &syn) // syn.Line, syn.Column
//	}
//	program := factory.Current.(*puppet.Program)
//
// Parameter types, default values and alias targets are kept as source text.
// Statement bodies are tokenized and bracket-checked only.
package puppet
