package puppet

import (
	"strings"
)

// Options controls language features recognized by the grammar
type Options struct {
	// Tasks enables the `plan` keyword
	Tasks bool
}

type parser struct {
	src  string
	toks []token
	pos  int
	opts Options
	defs []Node
}

// Parse parses Puppet source into a Factory wrapping the Program.
//
// Definitions (class, define, function, plan, type alias, node) are recognized
// structurally; the statements inside their bodies are checked for balanced
// brackets but not interpreted. Errors are returned as *SyntaxError.
func Parse(source string, opts Options) (*Factory, error) {
	toks, err := lex(source)
	if err != nil {
		return nil, err
	}

	p := &parser{src: source, toks: toks, opts: opts}
	if err := p.parseStatements("", true); err != nil {
		return nil, err
	}

	program := &Program{
		Span:        Span{Start: Position{Line: 1, Column: 1}, EndOffset: len(source)},
		Definitions: p.defs,
		SourceText:  source,
	}
	return &Factory{Current: program}, nil
}

func (p *parser) peek(n int) token {
	if p.pos+n < len(p.toks) {
		return p.toks[p.pos+n]
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) advance() token {
	t := p.peek(0)
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

// parseStatements consumes statements until end of input (topLevel) or an unconsumed
// closing brace. Definitions nested in class bodies are qualified with namespace.
func (p *parser) parseStatements(namespace string, topLevel bool) error {
	for {
		t := p.peek(0)
		switch t.kind {
		case tokEOF:
			return nil
		case tokRBrace:
			if topLevel {
				return unexpected(t)
			}
			return nil
		case tokRParen, tokRBrack:
			return unexpected(t)
		case tokName:
			handled, err := p.parseDefinition(namespace, topLevel)
			if err != nil {
				return err
			}
			if handled {
				continue
			}
		}

		if _, err := p.skipTerm(); err != nil {
			return err
		}
	}
}

func (p *parser) parseDefinition(namespace string, topLevel bool) (bool, error) {
	t, next := p.peek(0), p.peek(1)

	switch t.text {
	case "class":
		if next.kind == tokName {
			return true, p.parseClass(namespace)
		}
	case "define":
		if next.kind == tokName {
			return true, p.parseDefine(namespace)
		}
	case "function":
		if topLevel && next.kind == tokName {
			return true, p.parseFunction()
		}
	case "plan":
		if p.opts.Tasks && topLevel && next.kind == tokName {
			return true, p.parsePlan()
		}
	case "type":
		if topLevel && next.kind == tokTypeName && p.peek(2).isPunct("=") {
			return true, p.parseTypeAlias()
		}
	case "node":
		if topLevel && startsHostMatch(next) {
			return true, p.parseNode()
		}
	}
	return false, nil
}

func startsHostMatch(t token) bool {
	switch t.kind {
	case tokName, tokString, tokRegex, tokNumber:
		return true
	default:
		return false
	}
}

func qualify(namespace, name string) string {
	if strings.HasPrefix(name, "::") {
		return name[2:]
	}
	if namespace == "" {
		return name
	}
	return namespace + "::" + name
}

func (p *parser) parseClass(namespace string) error {
	kw := p.advance()
	name := p.advance()

	def := &HostClassDefinition{Name: qualify(namespace, name.text)}
	def.Start = kw.position()
	p.defs = append(p.defs, def)

	if p.peek(0).kind == tokLParen {
		params, err := p.parseParameters()
		if err != nil {
			return err
		}
		def.Parameters = params
	}

	if p.peek(0).isKeyword("inherits") {
		p.advance()
		parent := p.advance()
		if parent.kind != tokName {
			return unexpected(parent)
		}
		def.Parent = strings.TrimPrefix(parent.text, "::")
	}

	open := p.peek(0)
	if open.kind != tokLBrace {
		return unexpected(open)
	}
	p.advance()

	if err := p.parseStatements(def.Name, false); err != nil {
		return err
	}

	closing := p.peek(0)
	if closing.kind != tokRBrace {
		return syntaxErrorAt(open, "Unclosed '{'")
	}
	p.advance()
	def.EndOffset = closing.end
	return nil
}

func (p *parser) parseDefine(namespace string) error {
	kw := p.advance()
	name := p.advance()

	def := &ResourceTypeDefinition{Name: qualify(namespace, name.text)}
	def.Start = kw.position()
	p.defs = append(p.defs, def)

	params, end, err := p.parseSignatureAndBody()
	if err != nil {
		return err
	}
	def.Parameters = params
	def.EndOffset = end
	return nil
}

func (p *parser) parsePlan() error {
	kw := p.advance()
	name := p.advance()

	def := &PlanDefinition{Name: strings.TrimPrefix(name.text, "::")}
	def.Start = kw.position()
	p.defs = append(p.defs, def)

	params, end, err := p.parseSignatureAndBody()
	if err != nil {
		return err
	}
	def.Parameters = params
	def.EndOffset = end
	return nil
}

// parseSignatureAndBody parses an optional parameter list followed by a body whose
// contents are skipped
func (p *parser) parseSignatureAndBody() ([]*Parameter, int, error) {
	var params []*Parameter
	if p.peek(0).kind == tokLParen {
		var err error
		if params, err = p.parseParameters(); err != nil {
			return nil, 0, err
		}
	}

	if t := p.peek(0); t.kind != tokLBrace {
		return nil, 0, unexpected(t)
	}
	closing, err := p.skipGroup()
	if err != nil {
		return nil, 0, err
	}
	return params, closing.end, nil
}

func (p *parser) parseFunction() error {
	kw := p.advance()
	name := p.advance()

	def := &FunctionDefinition{Name: strings.TrimPrefix(name.text, "::")}
	def.Start = kw.position()
	p.defs = append(p.defs, def)

	if p.peek(0).kind == tokLParen {
		params, err := p.parseParameters()
		if err != nil {
			return err
		}
		def.Parameters = params
	}

	if p.peek(0).isPunct(">>") {
		p.advance()
		start, end, err := p.scanUntil(func(t token) bool { return t.kind == tokLBrace })
		if err != nil {
			return err
		}
		if start == end {
			return unexpected(p.peek(0))
		}
		def.ReturnType = strings.TrimSpace(p.src[start:end])
	}

	if t := p.peek(0); t.kind != tokLBrace {
		return unexpected(t)
	}
	closing, err := p.skipGroup()
	if err != nil {
		return err
	}
	def.EndOffset = closing.end
	return nil
}

func (p *parser) parseTypeAlias() error {
	kw := p.advance()
	name := p.advance()
	p.advance() // =

	def := &TypeAlias{Name: strings.TrimPrefix(name.text, "::")}
	def.Start = kw.position()
	p.defs = append(p.defs, def)

	first := p.peek(0)
	end := first.end
	switch first.kind {
	case tokTypeName:
		p.advance()
		// Object-style sugar: `type T = Object { ... }`
		if next := p.peek(0); next.kind == tokLBrace && next.line == first.line {
			closing, err := p.skipGroup()
			if err != nil {
				return err
			}
			end = closing.end
		}
	case tokLBrack, tokLBrace:
		closing, err := p.skipGroup()
		if err != nil {
			return err
		}
		end = closing.end
	default:
		return unexpected(first)
	}

	for p.peek(0).kind == tokLBrack {
		closing, err := p.skipGroup()
		if err != nil {
			return err
		}
		end = closing.end
	}

	def.TypeExpr = strings.TrimSpace(p.src[first.offset:end])
	def.EndOffset = end
	return nil
}

func (p *parser) parseNode() error {
	kw := p.advance()

	def := &NodeDefinition{}
	def.Start = kw.position()
	p.defs = append(p.defs, def)

	for {
		t := p.peek(0)
		switch {
		case t.kind == tokLBrace:
			closing, err := p.skipGroup()
			if err != nil {
				return err
			}
			def.EndOffset = closing.end
			return nil
		case t.isKeyword("inherits"):
			p.advance()
			parent := p.advance()
			if !startsHostMatch(parent) {
				return unexpected(parent)
			}
			def.Parent = parent.text
		case startsHostMatch(t):
			p.advance()
			def.HostMatches = append(def.HostMatches, t.text)
		case t.isPunct(",") || t.isPunct("."):
			p.advance()
		default:
			return unexpected(t)
		}
	}
}

// parseParameters parses `( param, ... )` with an optional trailing comma
func (p *parser) parseParameters() ([]*Parameter, error) {
	open := p.advance()
	params := []*Parameter{}

	for {
		t := p.peek(0)
		if t.kind == tokRParen {
			p.advance()
			return params, nil
		}
		if t.kind == tokEOF {
			return nil, syntaxErrorAt(open, "Unclosed '('")
		}

		param, err := p.parseParameter()
		if err != nil {
			return nil, err
		}
		params = append(params, param)

		switch next := p.peek(0); {
		case next.isPunct(","):
			p.advance()
		case next.kind == tokRParen:
		case next.kind == tokEOF:
			return nil, syntaxErrorAt(open, "Unclosed '('")
		default:
			return nil, unexpected(next)
		}
	}
}

func (p *parser) parseParameter() (*Parameter, error) {
	param := &Parameter{}

	typeStart, typeEnd := -1, -1
	for {
		t := p.peek(0)
		if t.kind == tokVariable || (t.isPunct("*") && p.peek(1).kind == tokVariable) {
			break
		}
		switch {
		case t.kind == tokEOF || t.kind == tokRParen || t.kind == tokRBrace || t.kind == tokRBrack:
			return nil, unexpected(t)
		case t.isPunct(",") || t.isPunct("="):
			return nil, unexpected(t)
		}

		if typeStart < 0 {
			typeStart = t.offset
		}
		closing, err := p.skipTerm()
		if err != nil {
			return nil, err
		}
		typeEnd = closing.end
	}
	if typeStart >= 0 {
		param.Type = strings.TrimSpace(p.src[typeStart:typeEnd])
	}

	if p.peek(0).isPunct("*") {
		p.advance()
		param.CapturesRest = true
	}
	param.Name = strings.TrimPrefix(p.advance().text, "$")

	if p.peek(0).isPunct("=") {
		p.advance()
		start, end, err := p.scanUntil(func(t token) bool {
			return t.isPunct(",") || t.kind == tokRParen
		})
		if err != nil {
			return nil, err
		}
		if start == end {
			return nil, unexpected(p.peek(0))
		}
		param.Value = strings.TrimSpace(p.src[start:end])
	}

	return param, nil
}

// scanUntil consumes terms until stop matches a token at the current nesting level
// and returns the source offsets covered. The stop token is not consumed.
func (p *parser) scanUntil(stop func(token) bool) (int, int, error) {
	start := p.peek(0).offset
	end := start
	for {
		t := p.peek(0)
		if t.kind == tokEOF || stop(t) {
			return start, end, nil
		}
		if t.kind == tokRBrace || t.kind == tokRParen || t.kind == tokRBrack {
			return 0, 0, unexpected(t)
		}
		closing, err := p.skipTerm()
		if err != nil {
			return 0, 0, err
		}
		end = closing.end
	}
}

// skipTerm consumes one token, or a whole bracketed group, and returns the last
// token consumed
func (p *parser) skipTerm() (token, error) {
	switch p.peek(0).kind {
	case tokLBrace, tokLParen, tokLBrack:
		return p.skipGroup()
	default:
		return p.advance(), nil
	}
}

var closerFor = map[tokenKind]tokenKind{
	tokLBrace: tokRBrace,
	tokLParen: tokRParen,
	tokLBrack: tokRBrack,
}

// skipGroup consumes a balanced bracket group starting at the current opener and
// returns its closing token
func (p *parser) skipGroup() (token, error) {
	stack := []token{p.advance()}
	for {
		t := p.advance()
		switch t.kind {
		case tokEOF:
			top := stack[len(stack)-1]
			return token{}, syntaxErrorAt(top, "Unclosed '%s'", top.text)
		case tokLBrace, tokLParen, tokLBrack:
			stack = append(stack, t)
		case tokRBrace, tokRParen, tokRBrack:
			top := stack[len(stack)-1]
			if closerFor[top.kind] != t.kind {
				return token{}, unexpected(t)
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return t, nil
			}
		}
	}
}
