package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jirabulk/models"
	"jirabulk/storage"
)

type updateCall struct {
	Key   string
	Patch models.IssuePatch
}

type fakeUpdater struct {
	calls  []updateCall
	failOn map[string]error
}

func (f *fakeUpdater) UpdateIssue(_ context.Context, key string, patch models.IssuePatch) error {
	f.calls = append(f.calls, updateCall{Key: key, Patch: patch})
	return f.failOn[key]
}

func TestBuildPatch(t *testing.T) {
	patch := BuildPatch(models.EditRow{Summary: "new", OriginalSummary: "old", Description: "d", OriginalDescription: "d"})
	require.NotNil(t, patch.Summary)
	assert.Equal(t, "new", *patch.Summary)
	assert.Nil(t, patch.Description)

	patch = BuildPatch(models.EditRow{Summary: "s", OriginalSummary: "s", Description: "", OriginalDescription: "old"})
	assert.Nil(t, patch.Summary)
	require.NotNil(t, patch.Description)
	assert.Equal(t, "", *patch.Description)

	assert.True(t, BuildPatch(models.EditRow{Summary: "s", OriginalSummary: "s"}).Empty())
}

func TestEditRun(t *testing.T) {
	kv := storage.NewMemoryStore()
	history := NewHistoryStore(kv)
	updater := &fakeUpdater{failOn: map[string]error{"ABC-4": errors.New("Jira update failed (404): not found")}}
	svc := NewEditService(updater, history)

	rows := []models.EditRow{
		{ID: "1", Key: "ABC-1", Summary: "new", OriginalSummary: "old", Description: "d", OriginalDescription: "d"},
		{ID: "2", Key: "ABC-2", Summary: "same", OriginalSummary: "same"},
		{ID: "3", Key: "", Summary: "x", OriginalSummary: "y"},
		{ID: "4", Key: "ABC-4", Summary: "x", OriginalSummary: "y"},
	}

	var last Progress
	record, err := svc.Run(context.Background(), rows, func(p Progress) { last = p })
	require.NoError(t, err)

	assert.Equal(t, 1, record.SuccessCount)
	assert.Equal(t, 3, record.FailCount)
	require.Len(t, record.Tickets, 4)
	assert.Equal(t, models.StatusSuccess, record.Tickets[0].Status)
	assert.Equal(t, "No changes to update", *record.Tickets[1].ErrorMessage)
	assert.Equal(t, "Jira key is missing", *record.Tickets[2].ErrorMessage)
	assert.Equal(t, "Jira update failed (404): not found", *record.Tickets[3].ErrorMessage)

	// ローカルで失敗した行はリモートを呼ばない
	require.Len(t, updater.calls, 2)
	assert.Equal(t, "ABC-1", updater.calls[0].Key)
	assert.Nil(t, updater.calls[0].Patch.Description)
	assert.Equal(t, "new", *updater.calls[0].Patch.Summary)

	assert.Equal(t, 4, last.Current)
	assert.Len(t, history.Edits(), 1)

	// 成功した行だけ original に反映できる
	store := NewEditStore(kv)
	store.ReplaceFromImport(rows)
	assert.Equal(t, 1, store.PromoteSynced(record))
	row, _ := store.Row("1")
	assert.False(t, row.Changed())
	row, _ = store.Row("4")
	assert.True(t, row.Changed())
}

func TestEditRunCancellation(t *testing.T) {
	updater := &fakeUpdater{}
	svc := NewEditService(updater, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	record, err := svc.Run(ctx, []models.EditRow{{ID: "1", Key: "ABC-1", Summary: "a"}}, nil)
	require.NoError(t, err)
	assert.Empty(t, updater.calls)
	assert.Equal(t, 1, record.FailCount)
	assert.Equal(t, "Cancelled before submission", *record.Tickets[0].ErrorMessage)
}

func TestEditRunSetupFailures(t *testing.T) {
	svc := NewEditService(&fakeUpdater{}, nil)
	_, err := svc.Run(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrNoRowsSelected)

	svc = NewEditService(nil, nil)
	_, err = svc.Run(context.Background(), []models.EditRow{{Key: "ABC-1"}}, nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}
