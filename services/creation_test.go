package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jirabulk/models"
	"jirabulk/storage"
)

type createCall struct {
	Type models.IssueType
	Row  models.TicketRow
}

// fakeCreator は作成リクエストを記録し、連番のキーを返します
type fakeCreator struct {
	calls   []createCall
	failOn  map[string]error // summary -> error
	next    int
	onCall  func(n int)
	project string
}

func (f *fakeCreator) create(t models.IssueType, row models.TicketRow) (string, error) {
	f.calls = append(f.calls, createCall{Type: t, Row: row})
	if f.onCall != nil {
		f.onCall(len(f.calls))
	}
	if err, ok := f.failOn[row.Summary]; ok {
		return "", err
	}
	f.next++
	return fmt.Sprintf("ABC-%d", f.next), nil
}

func (f *fakeCreator) CreateEpic(_ context.Context, row models.TicketRow) (string, error) {
	return f.create(models.TypeEpic, row)
}

func (f *fakeCreator) CreateTask(_ context.Context, row models.TicketRow) (string, error) {
	return f.create(models.TypeTask, row)
}

func (f *fakeCreator) ProjectKey() string { return f.project }
func (f *fakeCreator) BaseURL() string    { return "https://example.atlassian.net" }

type creationFixture struct {
	kv       *storage.MemoryStore
	tickets  *TicketStore
	history  *HistoryStore
	settings *SettingsStore
	creator  *fakeCreator
	svc      *CreationService
}

func newCreationFixture(rows []models.TicketRow) *creationFixture {
	kv := storage.NewMemoryStore()
	f := &creationFixture{
		kv:       kv,
		tickets:  NewTicketStore(kv),
		history:  NewHistoryStore(kv),
		settings: NewSettingsStore(kv),
		creator:  &fakeCreator{project: "ABC"},
	}
	f.tickets.ReplaceFromImport(rows)
	f.svc = NewCreationService(f.creator, f.tickets, f.history, f.settings)
	return f
}

func TestCreationRunPartialFailureKeepsRows(t *testing.T) {
	f := newCreationFixture([]models.TicketRow{
		{ID: "epic-a", Type: models.TypeEpic, Summary: "A", Selected: true},
		{ID: "task-b", Type: models.TypeTask, Summary: "B", ParentRowID: "epic-a", Selected: true},
		{ID: "task-c", Type: models.TypeTask, Summary: "  ", Selected: true},
	})

	var progress []Progress
	record, err := f.svc.Run(context.Background(), RunOptions{
		Progress: func(p Progress) { progress = append(progress, p) },
	})
	require.NoError(t, err)

	assert.Equal(t, 2, record.SuccessCount)
	assert.Equal(t, 1, record.FailCount)
	assert.Equal(t, 1, record.EpicCount)
	assert.Equal(t, 2, record.TaskCount)
	assert.Equal(t, "ABC", record.ProjectKey)
	assert.Equal(t, "https://example.atlassian.net", record.JiraURL)
	require.Len(t, record.Tickets, 3)

	epic := record.Tickets[0]
	assert.Equal(t, models.StatusSuccess, epic.Status)
	require.NotNil(t, epic.JiraKey)
	assert.Equal(t, "ABC-1", *epic.JiraKey)

	taskB := record.Tickets[1]
	assert.Equal(t, models.StatusSuccess, taskB.Status)
	assert.Equal(t, "ABC-1", taskB.ParentKey)

	taskC := record.Tickets[2]
	assert.Equal(t, models.StatusFailed, taskC.Status)
	assert.Nil(t, taskC.JiraKey)
	require.NotNil(t, taskC.ErrorMessage)
	assert.Equal(t, "Summary is required", *taskC.ErrorMessage)

	// 要約のない行はリモートを呼ばない
	require.Len(t, f.creator.calls, 2)
	assert.Equal(t, "ABC-1", f.creator.calls[1].Row.ParentKey)

	// 失敗があるので行は残る。親キーは行にも反映される
	rows := f.tickets.Rows()
	require.Len(t, rows, 3)
	assert.Equal(t, "ABC-1", rows[1].ParentKey)

	assert.Len(t, f.history.Creations(), 1)
	assert.Equal(t, Progress{Current: 0, Total: 3, Message: "作成の準備中..."}, progress[0])
	assert.Equal(t, 3, progress[3].Current)
}

func TestCreationRunAllSuccessClearsRows(t *testing.T) {
	f := newCreationFixture([]models.TicketRow{
		{ID: "1", Type: models.TypeTask, Summary: "one", Selected: true},
		{ID: "2", Type: models.TypeTask, Summary: "two", Selected: true},
	})

	record, err := f.svc.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, record.SuccessCount)
	assert.Zero(t, record.FailCount)

	rows := f.tickets.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "", rows[0].Summary)
	assert.NotEqual(t, "1", rows[0].ID)

	// クリア後の状態も保存されている
	reloaded := NewTicketStore(f.kv)
	require.NoError(t, reloaded.Load(context.Background()))
	assert.Len(t, reloaded.Rows(), 1)
}

func TestCreationRunOnlySelectedInDisplayOrder(t *testing.T) {
	f := newCreationFixture([]models.TicketRow{
		{ID: "1", Summary: "skip", Selected: false},
		// Epic より前にある子は親キーを解決できない (並べ替えはしない)
		{ID: "2", Summary: "early child", ParentRowID: "3", Selected: true},
		{ID: "3", Type: models.TypeEpic, Summary: "epic", Selected: true},
	})

	record, err := f.svc.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	require.Len(t, record.Tickets, 2)
	assert.Equal(t, "2", record.Tickets[0].RowID)
	assert.Equal(t, "", record.Tickets[0].ParentKey)

	// 未選択の行が残るが、失敗がないのでクリアされる
	assert.Len(t, f.tickets.Rows(), 1)
}

func TestCreationRunRemoteFailureContinues(t *testing.T) {
	f := newCreationFixture([]models.TicketRow{
		{ID: "1", Type: models.TypeEpic, Summary: "bad epic", Selected: true},
		{ID: "2", Summary: "child", ParentRowID: "1", ParentKey: "OLD-1", Selected: true},
		{ID: "3", Summary: "empty error", Selected: true},
	})
	f.creator.failOn = map[string]error{
		"bad epic":    errors.New("Jira create failed (400): bad"),
		"empty error": errors.New(""),
	}

	record, err := f.svc.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, record.SuccessCount)
	assert.Equal(t, 2, record.FailCount)
	assert.Equal(t, "Jira create failed (400): bad", *record.Tickets[0].ErrorMessage)
	// 親が失敗した場合はユーザー指定の parentKey のまま
	assert.Equal(t, "OLD-1", record.Tickets[1].ParentKey)
	assert.Equal(t, "Unknown error", *record.Tickets[2].ErrorMessage)
	assert.Len(t, f.tickets.Rows(), 3)
}

func TestCreationRunResolvesAssignee(t *testing.T) {
	f := newCreationFixture([]models.TicketRow{
		{ID: "1", Summary: "s", Assignee: "hong@company.com", Selected: true},
	})
	require.NoError(t, f.settings.SetCache(context.Background(),
		[]models.JiraUser{{AccountID: "acc-1", DisplayName: "Hong", EmailAddress: "hong@company.com"}}, nil))

	record, err := f.svc.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, "acc-1", f.creator.calls[0].Row.Assignee)
	assert.Equal(t, "acc-1", record.Tickets[0].Assignee)
}

func TestCreationRunDryRun(t *testing.T) {
	f := newCreationFixture([]models.TicketRow{
		{ID: "e", Type: models.TypeEpic, Summary: "epic", Selected: true},
		{ID: "t", Summary: "task", ParentRowID: "e", Selected: true},
	})
	svc := NewCreationService(nil, f.tickets, f.history, f.settings)

	record, err := svc.Run(context.Background(), RunOptions{DryRun: true})
	require.NoError(t, err)
	assert.True(t, record.DryRun)
	assert.Equal(t, "DEBUG-1000", *record.Tickets[0].JiraKey)
	assert.Equal(t, "DEBUG-1001", *record.Tickets[1].JiraKey)
	assert.Equal(t, "DEBUG-1000", record.Tickets[1].ParentKey)
	// リハーサルでは行を消さない
	assert.Len(t, f.tickets.Rows(), 2)

	require.NoError(t, f.settings.SetConnection(context.Background(), Connection{ProjectKey: "XYZ"}))
	record, err = svc.Run(context.Background(), RunOptions{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, "XYZ-1000", *record.Tickets[0].JiraKey)
}

func TestCreationRunDryRunLeavesDraftUntouched(t *testing.T) {
	f := newCreationFixture([]models.TicketRow{
		{ID: "e", Type: models.TypeEpic, Summary: "epic", Selected: true},
		{ID: "t", Summary: "task", ParentRowID: "e", Selected: true},
	})
	ctx := context.Background()

	record, err := f.svc.Run(ctx, RunOptions{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, "ABC-1000", record.Tickets[1].ParentKey)
	assert.Empty(t, f.creator.calls)

	// 仮のキーは行にも保存先にも残らない
	assert.Equal(t, "", f.tickets.Rows()[1].ParentKey)
	reloaded := NewTicketStore(f.kv)
	require.NoError(t, reloaded.Load(ctx))
	assert.Len(t, reloaded.Rows(), 1)
	assert.Equal(t, "", reloaded.Rows()[0].Summary)

	// 本番で Epic が失敗しても Task に仮のキーが渡らない
	f.creator.failOn = map[string]error{"epic": errors.New("boom")}
	record, err = f.svc.Run(ctx, RunOptions{})
	require.NoError(t, err)
	require.Len(t, f.creator.calls, 2)
	assert.Equal(t, "", f.creator.calls[1].Row.ParentKey)
	assert.Equal(t, 1, record.FailCount)
	assert.Equal(t, "", f.tickets.Rows()[1].ParentKey)
}

func TestCreationRunCancellation(t *testing.T) {
	f := newCreationFixture([]models.TicketRow{
		{ID: "1", Summary: "one", Selected: true},
		{ID: "2", Summary: "two", Selected: true},
		{ID: "3", Summary: "three", Selected: true},
	})
	ctx, cancel := context.WithCancel(context.Background())
	f.creator.onCall = func(n int) {
		if n == 1 {
			cancel()
		}
	}

	record, err := f.svc.Run(ctx, RunOptions{})
	require.NoError(t, err)
	assert.Len(t, f.creator.calls, 1)
	assert.Equal(t, 1, record.SuccessCount)
	assert.Equal(t, 2, record.FailCount)
	assert.Equal(t, "Cancelled before submission", *record.Tickets[2].ErrorMessage)
	assert.Len(t, f.tickets.Rows(), 3)
	assert.Len(t, f.history.Creations(), 1)
}

func TestCreationRunSetupFailures(t *testing.T) {
	f := newCreationFixture([]models.TicketRow{{ID: "1", Summary: "x", Selected: false}})

	_, err := f.svc.Run(context.Background(), RunOptions{})
	assert.ErrorIs(t, err, ErrNoRowsSelected)

	svc := NewCreationService(nil, f.tickets, f.history, f.settings)
	_, err = svc.Run(context.Background(), RunOptions{})
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Empty(t, f.history.Creations())
}

func TestCreationRecordCountsMatchTickets(t *testing.T) {
	f := newCreationFixture([]models.TicketRow{
		{ID: "1", Summary: "a", Selected: true},
		{ID: "2", Summary: "", Selected: true},
		{ID: "3", Type: models.TypeEpic, Summary: "c", Selected: true},
	})
	record, err := f.svc.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, len(record.Tickets), record.SuccessCount+record.FailCount)
	assert.Equal(t, len(record.Tickets), record.EpicCount+record.TaskCount)
}
