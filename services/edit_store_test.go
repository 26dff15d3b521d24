package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jirabulk/models"
	"jirabulk/storage"
)

func TestEditStoreAddFromCreatedTickets(t *testing.T) {
	s := NewEditStore(nil)
	s.ReplaceFromImport([]models.EditRow{{ID: "old", Key: "ABC-1", Summary: "existing"}})

	added := s.AddFromCreatedTickets([]models.CreatedTicket{
		{RowID: "r1", Type: models.TypeEpic, Summary: "dup", JiraKey: models.StringPtr("ABC-1"), Status: models.StatusSuccess},
		{RowID: "r2", Type: models.TypeTask, Summary: "new", JiraKey: models.StringPtr("ABC-2"), Status: models.StatusSuccess, ParentKey: "ABC-1"},
		{RowID: "r3", Summary: "failed", Status: models.StatusFailed, ErrorMessage: models.StringPtr("boom")},
		{RowID: "r4", Summary: "no key", Status: models.StatusSuccess},
	})
	assert.Equal(t, 1, added)

	rows := s.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, "ABC-2", rows[0].Key)
	assert.Equal(t, "Task", rows[0].Type)
	assert.Equal(t, "new", rows[0].OriginalSummary)
	assert.Equal(t, "", rows[0].Description)
	assert.Equal(t, "ABC-1", rows[0].ParentKey)
	assert.True(t, rows[0].Selected)
	assert.False(t, rows[0].Changed())
	assert.Equal(t, "ABC-1", rows[1].Key)
}

func TestEditStoreChangedSelectedAndPromote(t *testing.T) {
	s := NewEditStore(nil)
	s.ReplaceFromImport([]models.EditRow{
		{ID: "1", Key: "ABC-1", Summary: "a", OriginalSummary: "a", Selected: true},
		{ID: "2", Key: "ABC-2", Summary: "b", OriginalSummary: "b", Selected: true},
		{ID: "3", Key: "ABC-3", Summary: "c", OriginalSummary: "c", Selected: false},
	})

	require.NoError(t, s.SetField("1", FieldSummary, "a2"))
	require.NoError(t, s.SetField("3", FieldDescription, "new"))
	assert.ErrorIs(t, s.SetField("1", "originalSummary", "x"), ErrUnknownField)

	changed := s.ChangedSelected()
	require.Len(t, changed, 1)
	assert.Equal(t, "1", changed[0].ID)

	// 編集しただけでは original は変わらない
	row, _ := s.Row("1")
	assert.Equal(t, "a", row.OriginalSummary)

	n := s.PromoteSynced(&models.EditRecord{Tickets: []models.EditedTicket{
		{RowID: "1", Summary: "a2", Status: models.StatusSuccess},
		{RowID: "3", Summary: "c", Description: "new", Status: models.StatusFailed},
		{RowID: "gone", Status: models.StatusSuccess},
	}})
	assert.Equal(t, 1, n)

	row, _ = s.Row("1")
	assert.Equal(t, "a2", row.OriginalSummary)
	assert.False(t, row.Changed())

	row, _ = s.Row("3")
	assert.True(t, row.Changed())
	assert.Zero(t, s.PromoteSynced(nil))
}

func TestEditStoreToggleSelectAll(t *testing.T) {
	s := NewEditStore(nil)
	// 行がない場合は何もしない
	s.ToggleSelectAll()
	assert.Empty(t, s.Rows())

	s.ReplaceFromImport([]models.EditRow{{ID: "1", Selected: true}, {ID: "2", Selected: true}})
	s.ToggleSelectAll()
	for _, r := range s.Rows() {
		assert.False(t, r.Selected)
	}
	require.NoError(t, s.ToggleSelect("1"))
	s.ToggleSelectAll()
	for _, r := range s.Rows() {
		assert.True(t, r.Selected)
	}

	s.Clear()
	assert.Empty(t, s.Rows())
}

func TestEditStoreFilterSortAndSprints(t *testing.T) {
	s := NewEditStore(nil)
	s.ReplaceFromImport([]models.EditRow{
		{ID: "1", Summary: "beta login", Status: "Done", Sprint: "S2"},
		{ID: "2", Summary: "Alpha", Status: "backlog", Sprint: "S1"},
		{ID: "3", Summary: "Élan login", Status: "", Sprint: "S2"},
		{ID: "4", Summary: "gamma", Status: "In Progress", Sprint: " "},
	})

	filtered := s.Filter("LOGIN", "")
	require.Len(t, filtered, 2)
	assert.Equal(t, "1", filtered[0].ID)

	filtered = s.Filter("login", "S2")
	assert.Len(t, filtered, 2)
	assert.Empty(t, s.Filter("", "S9"))
	assert.Len(t, s.Filter("", ""), 4)

	bySummary := SortRows(s.Rows(), SortSummary)
	assert.Equal(t, []string{"2", "1", "3", "4"}, rowIDs(bySummary))

	byStatus := SortRows(s.Rows(), SortStatus)
	assert.Equal(t, []string{"3", "2", "1", "4"}, rowIDs(byStatus))

	assert.Equal(t, []string{"1", "2", "3", "4"}, rowIDs(SortRows(s.Rows(), SortNone)))

	assert.Equal(t, []string{"S2", "S1"}, s.SprintOptions())
}

func rowIDs(rows []models.EditRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}

func TestEditStorePersistence(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()

	s := NewEditStore(kv)
	s.ReplaceFromImport([]models.EditRow{{ID: "1", Key: "ABC-1", Summary: "x", OriginalSummary: "y", Selected: true}})
	require.NoError(t, s.Save(ctx))

	loaded := NewEditStore(kv)
	require.NoError(t, loaded.Load(ctx))
	assert.Equal(t, s.Rows(), loaded.Rows())
	assert.True(t, loaded.Rows()[0].Changed())
}
