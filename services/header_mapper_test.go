package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeHeader(t *testing.T) {
	assert.Equal(t, "issuekey", NormalizeHeader(" Issue Key "))
	assert.Equal(t, "assigneeaccountid", NormalizeHeader("Assignee (Account ID)"))
	assert.Equal(t, "담당자id", NormalizeHeader("담당자 ID"))
	assert.Equal(t, "課題キー", NormalizeHeader("課題 キー"))
	assert.Equal(t, "", NormalizeHeader("-- / --"))
	assert.Equal(t, "field²", NormalizeHeader("Field²"))
	assert.Equal(t, "stageⅻ", NormalizeHeader("Stage Ⅻ"))
}

func TestResolveColumnsByHeader(t *testing.T) {
	m, err := ResolveColumns([]string{"Issue Key", "Summary"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Key)
	assert.Equal(t, 1, m.Summary)
	assert.Equal(t, -1, m.Description)
}

func TestResolveColumnsAllFields(t *testing.T) {
	headers := []string{"Epic Link", "Due Date", "Start date", "Assignee", "Sprint", "Status", "Issue Type", "Description", "Summary", "Issue key"}
	m, err := ResolveColumns(headers, nil)
	require.NoError(t, err)
	assert.Equal(t, ColumnMapping{
		Key:         9,
		Summary:     8,
		Description: 7,
		Type:        6,
		Status:      5,
		Sprint:      4,
		Assignee:    3,
		StartDate:   2,
		DueDate:     1,
		ParentKey:   0,
	}, m)
}

func TestResolveColumnsLocalizedHeaders(t *testing.T) {
	m, err := ResolveColumns([]string{"이슈 유형", "요약", "설명", "담당자"}, [][]string{{"작업", "x", "y", "z"}})
	// キー列がなくデータからも推測できない
	assert.ErrorIs(t, err, ErrMissingKeyColumn)
	assert.Equal(t, 0, m.Type)
	assert.Equal(t, 1, m.Summary)
	assert.Equal(t, 2, m.Description)
	assert.Equal(t, 3, m.Assignee)

	m, err = ResolveColumns([]string{"課題キー", "要約", "説明", "期日"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Key)
	assert.Equal(t, 1, m.Summary)
	assert.Equal(t, 2, m.Description)
	assert.Equal(t, 3, m.DueDate)
}

func TestResolveColumnsKeyFallbackRule(t *testing.T) {
	m, err := ResolveColumns([]string{"Parent Key", "Issue Key (old)"}, nil)
	require.NoError(t, err)
	// "Parent Key" は parent 側で解決され、キーの候補にはならない
	assert.Equal(t, 0, m.ParentKey)
	assert.Equal(t, 1, m.Key)
}

func TestResolveColumnsInfersKeyFromData(t *testing.T) {
	rows := [][]string{
		{"memo", "ABC-123", "Fix login"},
		{"memo", "ABC-124", "Add logout"},
		{"ABC-1", "", "Refactor"},
	}
	m, err := ResolveColumns([]string{"Notes", "Ref", "Text"}, rows)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Key)
	assert.Equal(t, 2, m.Summary)
}

func TestResolveColumnsIDTitle(t *testing.T) {
	rows := [][]string{{"ABC-123", "Login page"}, {"ABC-124", "Signup page"}}
	m, err := ResolveColumns([]string{"ID", "Title"}, rows)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Key)
	assert.Equal(t, 1, m.Summary)
}

func TestResolveColumnsInferenceTieGoesToEarliestColumn(t *testing.T) {
	rows := [][]string{{"ABC-1", "XYZ-1"}}
	m, err := ResolveColumns([]string{"a", "b"}, rows)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Key)
}

func TestResolveColumnsSummaryInferenceSkipsMappedAndNumeric(t *testing.T) {
	rows := [][]string{
		{"ABC-1", "In Progress", "12345678901234567890", "short"},
		{"ABC-2", "Done", "98765432109876543210", "tiny"},
	}
	m, err := ResolveColumns([]string{"Key", "Status", "Points", "Memo"}, rows)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Key)
	assert.Equal(t, 1, m.Status)
	// Status は除外、数字だけの列はスコア0
	assert.Equal(t, 3, m.Summary)
	assert.Equal(t, -1, m.Description)
}

func TestResolveColumnsSamplesFirstFiftyRows(t *testing.T) {
	rows := make([][]string, 0, 60)
	for i := 0; i < 50; i++ {
		rows = append(rows, []string{"ABC-1", ""})
	}
	for i := 0; i < 10; i++ {
		rows = append(rows, []string{"", "ABC-1"})
	}
	m, err := ResolveColumns([]string{"a", "b"}, rows)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Key)
}

func TestResolveColumnsMissingKey(t *testing.T) {
	_, err := ResolveColumns([]string{"Summary", "Description"}, [][]string{{"hello", "world"}})
	assert.ErrorIs(t, err, ErrMissingKeyColumn)
	assert.Equal(t, "CSV must include Issue Key column", err.Error())
}

func TestNormalizeIssueType(t *testing.T) {
	tests := map[string]string{
		"작업":     "Task",
		" 해야 할 일": "Task",
		"에픽":     "Epic",
		"エピック":   "Epic",
		"タスク":    "Task",
		"Story":  "Story",
		"  Bug ": "Bug",
		"":       "Task",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeIssueType(in), in)
	}
}
