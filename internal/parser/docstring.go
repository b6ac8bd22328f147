package parser

import (
	"regexp"
	"strings"

	"github.com/dshills/puppetdoc-mcp/pkg/types"
)

// MaxSeparatingBlankLines is the number of blank lines allowed between a comment
// block and the declaration it documents
const MaxSeparatingBlankLines = 1

var (
	commentLine   = regexp.MustCompile(`^\s*#`)
	commentMarker = regexp.MustCompile(`^\s*#+ ?`)
)

// ExtractDocstring returns the normalized comment block immediately preceding
// declarationLine, and the lines it occupies. It returns "" and a zero range when
// there is no such block.
func ExtractDocstring(unit *SourceUnit, declarationLine int) (string, types.LineRange) {
	if unit == nil || declarationLine <= 1 {
		return "", types.LineRange{}
	}

	var (
		block  []string // nearest line first
		blanks int
		span   types.LineRange
	)
	for i, line := range unit.RangeBackward(declarationLine-1, 1) {
		n := declarationLine - 1 - i
		if len(block) == 0 && strings.TrimSpace(line) == "" {
			blanks++
			continue
		}
		if !commentLine.MatchString(line) {
			break
		}
		if len(block) == 0 {
			span.End = n
		}
		span.Start = n
		block = append(block, line)
	}

	if len(block) == 0 || blanks > MaxSeparatingBlankLines {
		return "", types.LineRange{}
	}

	normalized := make([]string, len(block))
	for i, line := range block {
		text := commentMarker.ReplaceAllString(line, "")
		normalized[len(block)-1-i] = strings.TrimRight(text, " \t")
	}

	doc := strings.TrimRight(strings.Join(normalized, "\n"), "\n")
	return doc, span
}
