package services

import (
	"strings"
)

// normalizeNewlines は CRLF / CR を LF に揃えます
func normalizeNewlines(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

// ParseDelimited は CSV/TSV/クリップボードのテキストを文字列のグリッドに分解します。
// ダブルクォートで囲まれたセルは区切り文字や改行を含めることができ、"" は " として扱います。
// セルが1つだけで空の行 (末尾の改行など) は捨てますが、2セル以上ある行は空でも残します。
func ParseDelimited(text string, delimiter rune) [][]string {
	var (
		rows     [][]string
		row      []string
		cell     strings.Builder
		inQuotes bool
	)

	flushRow := func() {
		row = append(row, cell.String())
		cell.Reset()
		if len(row) > 1 || row[0] != "" {
			rows = append(rows, row)
		}
		row = nil
	}

	runes := []rune(normalizeNewlines(text))
	for i := 0; i < len(runes); i++ {
		ch := runes[i]

		if ch == '"' {
			if inQuotes && i+1 < len(runes) && runes[i+1] == '"' {
				cell.WriteRune('"')
				i++
			} else {
				inQuotes = !inQuotes
			}
			continue
		}

		if !inQuotes && ch == delimiter {
			row = append(row, cell.String())
			cell.Reset()
			continue
		}

		if !inQuotes && ch == '\n' {
			flushRow()
			continue
		}

		cell.WriteRune(ch)
	}
	flushRow()

	return rows
}

// DetectDelimiter は1行目のカンマとタブの数を比べて区切り文字を決めます。
// タブが厳密に多い場合のみタブになります。
func DetectDelimiter(text string) rune {
	firstLine, _, _ := strings.Cut(normalizeNewlines(text), "\n")
	if strings.Count(firstLine, "\t") > strings.Count(firstLine, ",") {
		return '\t'
	}
	return ','
}

// ParseWithHeaders は区切り文字を自動判定し、1行目をヘッダーとして返します
func ParseWithHeaders(text string) (headers []string, rows [][]string) {
	parsed := ParseDelimited(normalizeNewlines(text), DetectDelimiter(text))
	if len(parsed) == 0 {
		return []string{}, [][]string{}
	}

	headers = make([]string, len(parsed[0]))
	for i, h := range parsed[0] {
		headers[i] = strings.TrimSpace(h)
	}
	return headers, parsed[1:]
}

// FormatDelimited はグリッドを区切りテキストに書き出します。
// 区切り文字・引用符・改行を含むセルはクォートします。
func FormatDelimited(grid [][]string, delimiter rune) string {
	special := string(delimiter) + "\"\r\n"

	var b strings.Builder
	for i, row := range grid {
		if i > 0 {
			b.WriteByte('\n')
		}
		for j, cell := range row {
			if j > 0 {
				b.WriteRune(delimiter)
			}
			if strings.ContainsAny(cell, special) {
				b.WriteByte('"')
				b.WriteString(strings.ReplaceAll(cell, `"`, `""`))
				b.WriteByte('"')
				continue
			}
			b.WriteString(cell)
		}
	}
	return b.String()
}
