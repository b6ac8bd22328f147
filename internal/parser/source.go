package parser

import "strings"

// SourceUnit is the line index of one source file. It is immutable after
// construction.
type SourceUnit struct {
	file  string
	lines []string
}

// NewSourceUnit splits text into lines. A trailing newline does not produce an
// extra empty line, and carriage returns before newlines are dropped.
func NewSourceUnit(file, text string) *SourceUnit {
	text = strings.TrimSuffix(text, "\n")
	var lines []string
	if text != "" {
		lines = strings.Split(text, "\n")
		for i, line := range lines {
			lines[i] = strings.TrimSuffix(line, "\r")
		}
	}
	return &SourceUnit{file: file, lines: lines}
}

// File returns the file identifier
func (u *SourceUnit) File() string {
	return u.file
}

// LineCount returns the number of lines
func (u *SourceUnit) LineCount() int {
	return len(u.lines)
}

// Line returns the 1-based line n
func (u *SourceUnit) Line(n int) (string, bool) {
	if n < 1 || n > len(u.lines) {
		return "", false
	}
	return u.lines[n-1], true
}

// RangeBackward returns lines from down to to (both 1-based, inclusive), nearest
// first. Out-of-range bounds are clamped.
func (u *SourceUnit) RangeBackward(from, to int) []string {
	if from > len(u.lines) {
		from = len(u.lines)
	}
	if to < 1 {
		to = 1
	}
	if from < to {
		return nil
	}

	out := make([]string, 0, from-to+1)
	for n := from; n >= to; n-- {
		out = append(out, u.lines[n-1])
	}
	return out
}
