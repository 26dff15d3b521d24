package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDelimited(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		delimiter rune
		want      [][]string
	}{
		{
			name:      "simple csv",
			text:      "a,b\nc,d",
			delimiter: ',',
			want:      [][]string{{"a", "b"}, {"c", "d"}},
		},
		{
			name:      "crlf and cr are normalized",
			text:      "a,b\r\nc,d\re,f",
			delimiter: ',',
			want:      [][]string{{"a", "b"}, {"c", "d"}, {"e", "f"}},
		},
		{
			name:      "quoted delimiter and newline stay in one cell",
			text:      "\"x,y\",\"line1\nline2\"\nz,w",
			delimiter: ',',
			want:      [][]string{{"x,y", "line1\nline2"}, {"z", "w"}},
		},
		{
			name:      "doubled quotes are unescaped",
			text:      `"say ""hi""",b`,
			delimiter: ',',
			want:      [][]string{{`say "hi"`, "b"}},
		},
		{
			name:      "trailing newline does not produce a phantom row",
			text:      "a\tb\n",
			delimiter: '\t',
			want:      [][]string{{"a", "b"}},
		},
		{
			name:      "single empty cell rows are dropped",
			text:      "a\n\n\nb",
			delimiter: ',',
			want:      [][]string{{"a"}, {"b"}},
		},
		{
			name:      "rows of empty cells are kept",
			text:      "a,b\n,\n",
			delimiter: ',',
			want:      [][]string{{"a", "b"}, {"", ""}},
		},
		{
			name:      "empty text",
			text:      "",
			delimiter: ',',
			want:      nil,
		},
		{
			name:      "multibyte cells",
			text:      "요약\t설명\n作業\t詳細",
			delimiter: '\t',
			want:      [][]string{{"요약", "설명"}, {"作業", "詳細"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseDelimited(tt.text, tt.delimiter))
		})
	}
}

func TestDetectDelimiter(t *testing.T) {
	assert.Equal(t, ',', DetectDelimiter("a,b,c\nx\ty\tz\tw"))
	assert.Equal(t, '\t', DetectDelimiter("a\tb\tc"))
	// 同数ならカンマ
	assert.Equal(t, ',', DetectDelimiter("a,b\tc"))
	assert.Equal(t, ',', DetectDelimiter(""))
}

func TestParseWithHeaders(t *testing.T) {
	headers, rows := ParseWithHeaders(" Issue Key \t Summary\r\nABC-1\tFirst\r\n")
	assert.Equal(t, []string{"Issue Key", "Summary"}, headers)
	assert.Equal(t, [][]string{{"ABC-1", "First"}}, rows)

	headers, rows = ParseWithHeaders("")
	assert.Empty(t, headers)
	assert.Empty(t, rows)
}

func TestFormatDelimitedRoundTrip(t *testing.T) {
	grids := [][][]string{
		{{"Key", "Summary"}, {"ABC-1", "plain"}},
		{{"a,b", `q"uote`}, {"multi\nline", ""}},
		{{"", ""}, {"x", "y"}},
	}

	for _, grid := range grids {
		for _, delim := range []rune{',', '\t'} {
			text := FormatDelimited(grid, delim)
			assert.Equal(t, grid, ParseDelimited(text, delim))
		}
	}
}
