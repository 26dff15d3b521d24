package services

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// 推測に使う先頭データ行の数
const inferenceSampleSize = 50

var issueKeyPattern = regexp.MustCompile(`(?i)^[A-Z][A-Z0-9]+-\d+$`)

var headerFolder = cases.Lower(language.Und)

// NormalizeHeader はヘッダーを比較用に正規化します (NFC・小文字化・文字と数字以外を除去)
func NormalizeHeader(s string) string {
	lowered := headerFolder.String(norm.NFC.String(s))
	var b strings.Builder
	for _, r := range lowered {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ColumnMapping は論理フィールドごとの列インデックスです (-1 = 未解決)
type ColumnMapping struct {
	Key         int
	Summary     int
	Description int
	Type        int
	Status      int
	Sprint      int
	Assignee    int
	StartDate   int
	DueDate     int
	ParentKey   int
}

func unresolvedMapping() ColumnMapping {
	return ColumnMapping{-1, -1, -1, -1, -1, -1, -1, -1, -1, -1}
}

// ヘッダー候補 (英語・韓国語・日本語)
var headerAliases = struct {
	key, summary, description, issueType, status, sprint, assignee, startDate, dueDate, parentKey []string
}{
	key:         []string{"issuekey", "issue key", "key", "jirakey", "jira key", "issueid", "id", "課題キー", "キー"},
	summary:     []string{"summary", "summarytext", "title", "요약", "要約", "タイトル"},
	description: []string{"description", "descriptiontext", "details", "설명", "상세", "説明", "詳細"},
	issueType:   []string{"issuetype", "type", "이슈유형", "課題タイプ", "タイプ"},
	status:      []string{"status", "issuestatus", "state", "상태", "ステータス"},
	sprint:      []string{"sprint", "sprintname", "スプリント"},
	assignee:    []string{"assignee", "assigneeid", "assigneeaccountid", "담당자", "담당자id", "担当者"},
	startDate:   []string{"startdate", "start date", "start", "開始日"},
	dueDate:     []string{"duedate", "due date", "due", "기한", "期日"},
	parentKey:   []string{"parent", "parentkey", "epiclink", "epic link", "親", "親課題"},
}

// ResolveColumns はヘッダーと先頭のデータ行から各論理フィールドの列を決めます。
// キー列が見つからない場合は ErrMissingKeyColumn を返します。
func ResolveColumns(headers []string, rows [][]string) (ColumnMapping, error) {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = NormalizeHeader(h)
	}

	headerIndex := func(candidates []string) int {
		for _, c := range candidates {
			want := NormalizeHeader(c)
			for i, h := range normalized {
				if h == want {
					return i
				}
			}
		}
		return -1
	}

	m := unresolvedMapping()
	m.Key = headerIndex(headerAliases.key)
	m.Summary = headerIndex(headerAliases.summary)
	m.Description = headerIndex(headerAliases.description)
	m.Type = headerIndex(headerAliases.issueType)
	m.Status = headerIndex(headerAliases.status)
	m.Sprint = headerIndex(headerAliases.sprint)
	m.Assignee = headerIndex(headerAliases.assignee)
	m.StartDate = headerIndex(headerAliases.startDate)
	m.DueDate = headerIndex(headerAliases.dueDate)
	m.ParentKey = headerIndex(headerAliases.parentKey)

	if m.Key == -1 {
		for i, h := range normalized {
			if h == "parentkey" {
				continue
			}
			if h == "key" || (strings.Contains(h, "issue") && strings.Contains(h, "key")) {
				m.Key = i
				break
			}
		}
	}

	if m.Key == -1 {
		m.Key = guessKeyColumn(len(headers), rows)
	}

	if m.Summary == -1 {
		exclude := map[int]bool{}
		for _, idx := range []int{m.Key, m.Type, m.Status, m.Sprint, m.Assignee, m.StartDate, m.DueDate, m.ParentKey} {
			if idx >= 0 {
				exclude[idx] = true
			}
		}
		m.Summary = guessTextColumn(len(headers), rows, exclude)
	}

	// description はヘッダーが明示されている場合のみ対応付ける

	if m.Key == -1 {
		return m, ErrMissingKeyColumn
	}
	return m, nil
}

// guessKeyColumn はキーの形 (ABC-123) をした値が最も多い列を返します
func guessKeyColumn(columns int, rows [][]string) int {
	scores := make([]int, columns)
	for _, row := range sampleRows(rows) {
		for c := 0; c < columns; c++ {
			if issueKeyPattern.MatchString(cellAt(row, c)) {
				scores[c]++
			}
		}
	}
	return bestColumn(scores)
}

// guessTextColumn は数字だけではない文字列の合計長が最も大きい列を返します
func guessTextColumn(columns int, rows [][]string, exclude map[int]bool) int {
	scores := make([]int, columns)
	for _, row := range sampleRows(rows) {
		for c := 0; c < columns; c++ {
			if exclude[c] {
				continue
			}
			value := cellAt(row, c)
			if value == "" || isAllDigits(value) {
				continue
			}
			scores[c] += len([]rune(value))
		}
	}
	return bestColumn(scores)
}

func sampleRows(rows [][]string) [][]string {
	if len(rows) > inferenceSampleSize {
		return rows[:inferenceSampleSize]
	}
	return rows
}

// bestColumn は最大スコアの列を返します。同点は先の列、スコア0なら -1
func bestColumn(scores []int) int {
	best, bestScore := -1, 0
	for c, s := range scores {
		if s > bestScore {
			best, bestScore = c, s
		}
	}
	return best
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// ローカライズされた課題タイプ名 (空白除去後に比較)
var localizedIssueTypes = map[string]string{
	"작업":   "Task",
	"해야할일": "Task",
	"에픽":   "Epic",
	"タスク":  "Task",
	"作業":   "Task",
	"エピック": "Epic",
}

// NormalizeIssueType はローカライズされた課題タイプを Task/Epic に揃えます。
// 認識できない値はそのまま返し、空の場合は Task になります。
func NormalizeIssueType(raw string) string {
	compact := strings.Join(strings.Fields(raw), "")
	if canonical, ok := localizedIssueTypes[compact]; ok {
		return canonical
	}
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "Task"
	}
	return trimmed
}
