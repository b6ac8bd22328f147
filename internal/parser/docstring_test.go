package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dshills/puppetdoc-mcp/pkg/types"
)

func TestExtractDocstring(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		line     int
		want     string
		comments types.LineRange
	}{
		{
			name:     "adjacent block",
			src:      "# An example class.\n# @param x The x.\nclass a($x) {}\n",
			line:     3,
			want:     "An example class.\n@param x The x.",
			comments: types.LineRange{Start: 1, End: 2},
		},
		{
			name:     "one blank line tolerated",
			src:      "# Doc.\n\nclass a {}\n",
			line:     3,
			want:     "Doc.",
			comments: types.LineRange{Start: 1, End: 1},
		},
		{
			name: "two blank lines detach",
			src:  "# Doc.\n\n\nclass a {}\n",
			line: 4,
			want: "",
		},
		{
			name: "whitespace-only lines count as blank",
			src:  "# Doc.\n   \n\t\nclass a {}\n",
			line: 4,
			want: "",
		},
		{
			name:     "code line stops the scan",
			src:      "# Unrelated.\n$x = 1\n# Doc.\nclass a {}\n",
			line:     4,
			want:     "Doc.",
			comments: types.LineRange{Start: 3, End: 3},
		},
		{
			name:     "blank line inside block stops the scan",
			src:      "# First.\n\n# Second.\nclass a {}\n",
			line:     4,
			want:     "Second.",
			comments: types.LineRange{Start: 3, End: 3},
		},
		{
			name:     "markers and one space stripped",
			src:      "  ## Title\n#   indented\n#\n#no space\nclass a {}\n",
			line:     5,
			want:     "Title\n  indented\n\nno space",
			comments: types.LineRange{Start: 1, End: 4},
		},
		{
			name:     "trailing whitespace and empty trailing lines trimmed",
			src:      "# Text.   \n#\n#  \nclass a {}\n",
			line:     4,
			want:     "Text.",
			comments: types.LineRange{Start: 1, End: 3},
		},
		{
			name: "no comment",
			src:  "$x = 1\nclass a {}\n",
			line: 2,
			want: "",
		},
		{
			name: "declaration on first line",
			src:  "class a {} # trailing\n",
			line: 1,
			want: "",
		},
		{
			name: "trailing comment of previous line is not a block",
			src:  "$x = 1 # note\nclass a {}\n",
			line: 2,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, comments := ExtractDocstring(NewSourceUnit("f.pp", tt.src), tt.line)
			assert.Equal(t, tt.want, doc)
			assert.Equal(t, tt.comments, comments)
		})
	}
}

func TestExtractDocstring_NilUnit(t *testing.T) {
	doc, comments := ExtractDocstring(nil, 5)
	assert.Empty(t, doc)
	assert.True(t, comments.IsZero())
}
