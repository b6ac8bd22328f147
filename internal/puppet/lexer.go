package puppet

import (
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokName
	tokTypeName
	tokVariable
	tokString
	tokHeredoc
	tokNumber
	tokRegex
	tokLBrace
	tokRBrace
	tokLParen
	tokRParen
	tokLBrack
	tokRBrack
	tokPunct
)

type token struct {
	kind   tokenKind
	text   string
	offset int // Byte offset of the first character
	end    int // Byte offset one past the last character
	line   int
	col    int
}

func (t token) position() Position {
	return Position{Offset: t.offset, Line: t.line, Column: t.col}
}

func (t token) isPunct(text string) bool {
	return t.kind == tokPunct && t.text == text
}

func (t token) isKeyword(text string) bool {
	return t.kind == tokName && t.text == text
}

// Longest operators first
var operators = []string{
	"<<|", "|>>",
	"=>", "+>", "->", "~>", "<-", "<~", "==", "!=", "=~", "!~", ">=", "<=", ">>", "<<", "<|", "|>",
	"=", "+", "-", "*", "/", "%", "!", "<", ">", ",", ";", ":", "?", "|", "@", ".", "&", "~",
}

// Names after which a slash starts a regular expression rather than a division
var regexKeywords = map[string]bool{
	"node": true, "and": true, "or": true, "in": true, "if": true, "elsif": true,
	"unless": true, "case": true, "default": true,
}

type pendingHeredoc struct {
	tag  string
	line int
	col  int
}

type lexer struct {
	src       string
	pos       int
	line      int
	lineStart int
	tokens    []token
	heredocs  []pendingHeredoc
}

// lex tokenizes src. Comments and whitespace are dropped; heredoc bodies are
// consumed and represented by their opening tag.
func lex(src string) ([]token, error) {
	l := &lexer{src: src, line: 1}
	if err := l.run(); err != nil {
		return nil, err
	}
	return l.tokens, nil
}

func (l *lexer) run() error {
	for {
		if err := l.skipSpaceAndComments(); err != nil {
			return err
		}
		if l.pos >= len(l.src) {
			if len(l.heredocs) > 0 {
				h := l.heredocs[0]
				return &SyntaxError{Message: "Unterminated heredoc '" + h.tag + "'", Line: h.line, Column: h.col}
			}
			l.tokens = append(l.tokens, token{kind: tokEOF, offset: l.pos, end: l.pos, line: l.line, col: l.col()})
			return nil
		}
		if err := l.next(); err != nil {
			return err
		}
	}
}

func (l *lexer) col() int {
	return l.pos - l.lineStart + 1
}

func (l *lexer) peekByte(n int) byte {
	if l.pos+n < len(l.src) {
		return l.src[l.pos+n]
	}
	return 0
}

// advanceTo moves to offset n, keeping line bookkeeping current
func (l *lexer) advanceTo(n int) {
	for l.pos < n {
		if l.src[l.pos] == '\n' {
			l.line++
			l.lineStart = l.pos + 1
		}
		l.pos++
	}
}

func (l *lexer) skipSpaceAndComments() error {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '\n':
			l.advanceTo(l.pos + 1)
			if len(l.heredocs) > 0 {
				if err := l.readHeredocBodies(); err != nil {
					return err
				}
			}
		case c == ' ' || c == '\t' || c == '\r' || c == '\f':
			l.pos++
		case c == '#':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		case c == '/' && l.peekByte(1) == '*':
			line, col := l.line, l.col()
			end := strings.Index(l.src[l.pos+2:], "*/")
			if end < 0 {
				return &SyntaxError{Message: "Unterminated comment", Line: line, Column: col}
			}
			l.advanceTo(l.pos + 2 + end + 2)
		default:
			return nil
		}
	}
	return nil
}

func (l *lexer) emit(kind tokenKind, start, line, col int) {
	l.tokens = append(l.tokens, token{
		kind:   kind,
		text:   l.src[start:l.pos],
		offset: start,
		end:    l.pos,
		line:   line,
		col:    col,
	})
}

func (l *lexer) next() error {
	start, line, col := l.pos, l.line, l.col()
	c := l.src[l.pos]

	switch {
	case c == '$':
		l.pos++
		end := l.scanQualified(l.pos, isVariableChar)
		if end == l.pos {
			return &SyntaxError{Message: "Syntax error at '$'", Line: line, Column: col}
		}
		l.pos = end
		l.emit(tokVariable, start, line, col)

	case isLower(c) || c == '_' || (c == ':' && l.peekByte(1) == ':' && isLetter(l.peekByte(2))):
		l.pos = l.scanQualified(l.pos, isWordChar)
		kind := tokName
		if isUpper(l.src[strings.LastIndex(l.src[start:l.pos], ":")+start+1]) {
			kind = tokTypeName
		}
		l.emit(kind, start, line, col)

	case isUpper(c):
		l.pos = l.scanQualified(l.pos, isWordChar)
		l.emit(tokTypeName, start, line, col)

	case isDigit(c):
		l.pos++
		for l.pos < len(l.src) {
			ch := l.src[l.pos]
			if isWordChar(ch) || (ch == '.' && isDigit(l.peekByte(1))) {
				l.pos++
				continue
			}
			break
		}
		l.emit(tokNumber, start, line, col)

	case c == '\'':
		end, ok := scanSingleQuoted(l.src, l.pos)
		if !ok {
			return &SyntaxError{Message: "Unterminated string", Line: line, Column: col}
		}
		l.advanceTo(end)
		l.emit(tokString, start, line, col)

	case c == '"':
		end, ok := scanDoubleQuoted(l.src, l.pos)
		if !ok {
			return &SyntaxError{Message: "Unterminated string", Line: line, Column: col}
		}
		l.advanceTo(end)
		l.emit(tokString, start, line, col)

	case c == '@' && l.peekByte(1) == '(':
		return l.heredoc(start, line, col)

	case c == '/' && l.regexAllowed():
		if end, ok := scanRegex(l.src, l.pos); ok {
			l.pos = end
			l.emit(tokRegex, start, line, col)
			return nil
		}
		l.pos++
		l.emit(tokPunct, start, line, col)

	case c == '{' || c == '}' || c == '(' || c == ')' || c == '[' || c == ']':
		l.pos++
		l.emit(bracketKinds[c], start, line, col)

	default:
		for _, op := range operators {
			if strings.HasPrefix(l.src[l.pos:], op) {
				l.pos += len(op)
				l.emit(tokPunct, start, line, col)
				return nil
			}
		}
		return &SyntaxError{Message: "Syntax error at '" + string(rune(c)) + "'", Line: line, Column: col}
	}

	return nil
}

var bracketKinds = map[byte]tokenKind{
	'{': tokLBrace, '}': tokRBrace,
	'(': tokLParen, ')': tokRParen,
	'[': tokLBrack, ']': tokRBrack,
}

// scanQualified scans `seg(::seg)*` starting at i, with an optional leading `::`.
// It returns the end offset; i itself when nothing matched.
func (l *lexer) scanQualified(i int, segChar func(byte) bool) int {
	src := l.src
	end := i
	if strings.HasPrefix(src[i:], "::") {
		i += 2
	}
	for {
		j := i
		for j < len(src) && segChar(src[j]) {
			j++
		}
		if j == i {
			return end
		}
		end = j
		if strings.HasPrefix(src[j:], "::") && j+2 < len(src) && segChar(src[j+2]) {
			i = j + 2
			continue
		}
		return end
	}
}

func (l *lexer) regexAllowed() bool {
	if len(l.tokens) == 0 {
		return true
	}
	prev := l.tokens[len(l.tokens)-1]
	switch prev.kind {
	case tokName:
		return regexKeywords[prev.text]
	case tokTypeName, tokVariable, tokString, tokHeredoc, tokNumber, tokRegex, tokRParen, tokRBrack:
		return false
	default:
		return true
	}
}

func (l *lexer) heredoc(start, line, col int) error {
	rest := l.src[l.pos:]
	closeIdx := strings.IndexByte(rest, ')')
	if closeIdx < 0 || strings.ContainsRune(rest[:closeIdx], '\n') {
		return &SyntaxError{Message: "Unterminated heredoc tag", Line: line, Column: col}
	}

	spec := rest[2:closeIdx]
	if i := strings.IndexAny(spec, ":/"); i >= 0 {
		spec = spec[:i]
	}
	tag := strings.Trim(strings.TrimSpace(spec), `"`)
	if tag == "" {
		return &SyntaxError{Message: "Invalid heredoc tag", Line: line, Column: col}
	}

	l.pos += closeIdx + 1
	l.emit(tokHeredoc, start, line, col)
	l.heredocs = append(l.heredocs, pendingHeredoc{tag: tag, line: line, col: col})
	return nil
}

// readHeredocBodies consumes the bodies of every heredoc opened on the previous line
func (l *lexer) readHeredocBodies() error {
	for _, h := range l.heredocs {
		for {
			if l.pos >= len(l.src) {
				return &SyntaxError{Message: "Unterminated heredoc '" + h.tag + "'", Line: h.line, Column: h.col}
			}
			lineEnd := strings.IndexByte(l.src[l.pos:], '\n')
			var text string
			if lineEnd < 0 {
				text = l.src[l.pos:]
				lineEnd = len(l.src)
			} else {
				text = l.src[l.pos : l.pos+lineEnd]
				lineEnd = l.pos + lineEnd + 1
			}
			l.advanceTo(lineEnd)
			if isHeredocEnd(text, h.tag) {
				break
			}
		}
	}
	l.heredocs = l.heredocs[:0]
	return nil
}

func isHeredocEnd(line, tag string) bool {
	s := strings.TrimLeft(line, " \t")
	s = strings.TrimLeft(strings.TrimPrefix(s, "|"), " \t")
	s = strings.TrimLeft(strings.TrimPrefix(s, "-"), " \t")
	return strings.TrimRight(s, " \t\r") == tag
}

func scanSingleQuoted(src string, i int) (int, bool) {
	for j := i + 1; j < len(src); j++ {
		switch src[j] {
		case '\\':
			j++
		case '\'':
			return j + 1, true
		}
	}
	return 0, false
}

func scanDoubleQuoted(src string, i int) (int, bool) {
	for j := i + 1; j < len(src); j++ {
		switch src[j] {
		case '\\':
			j++
		case '"':
			return j + 1, true
		case '$':
			if j+1 < len(src) && src[j+1] == '{' {
				end, ok := scanInterpolation(src, j+1)
				if !ok {
					return 0, false
				}
				j = end - 1
			}
		}
	}
	return 0, false
}

// scanInterpolation skips a `{...}` expression inside a double-quoted string
func scanInterpolation(src string, i int) (int, bool) {
	depth := 0
	for j := i; j < len(src); j++ {
		switch src[j] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return j + 1, true
			}
		case '"':
			end, ok := scanDoubleQuoted(src, j)
			if !ok {
				return 0, false
			}
			j = end - 1
		case '\'':
			end, ok := scanSingleQuoted(src, j)
			if !ok {
				return 0, false
			}
			j = end - 1
		}
	}
	return 0, false
}

// scanRegex scans a single-line /.../ literal
func scanRegex(src string, i int) (int, bool) {
	for j := i + 1; j < len(src); j++ {
		switch src[j] {
		case '\\':
			j++
		case '\n':
			return 0, false
		case '/':
			return j + 1, true
		}
	}
	return 0, false
}

func isLower(c byte) bool  { return c >= 'a' && c <= 'z' }
func isUpper(c byte) bool  { return c >= 'A' && c <= 'Z' }
func isDigit(c byte) bool  { return c >= '0' && c <= '9' }
func isLetter(c byte) bool { return isLower(c) || isUpper(c) }

func isWordChar(c byte) bool {
	return isLetter(c) || isDigit(c) || c == '_'
}

func isVariableChar(c byte) bool {
	return isWordChar(c)
}
