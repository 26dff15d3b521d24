package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"jirabulk/models"
	"jirabulk/utils"
)

// IssueCreator はJIRAにイシューを作成する操作です (api.JiraClient が実装)
type IssueCreator interface {
	CreateEpic(ctx context.Context, row models.TicketRow) (string, error)
	CreateTask(ctx context.Context, row models.TicketRow) (string, error)
}

// 接続先情報を持つクライアント (履歴のリンク作成に使う)
type connectionInfo interface {
	BaseURL() string
	ProjectKey() string
}

// Progress は一括処理の進捗です
type Progress struct {
	Current int
	Total   int
	Message string
}

// ProgressFunc は進捗を受け取るコールバックです
type ProgressFunc func(Progress)

// RunOptions は一括作成の実行オプションです
type RunOptions struct {
	// DryRun は JIRA を呼ばずに仮のキーを採番します
	DryRun   bool
	Progress ProgressFunc
}

// CreationService は選択された行を順番にJIRAへ作成します
type CreationService struct {
	creator  IssueCreator
	tickets  *TicketStore
	history  *HistoryStore
	settings *SettingsStore
	log      *slog.Logger
	now      func() time.Time
}

// NewCreationService は新しい作成サービスを作成します。
// creator が nil の場合は DryRun のみ実行できます。
func NewCreationService(creator IssueCreator, tickets *TicketStore, history *HistoryStore, settings *SettingsStore) *CreationService {
	return &CreationService{
		creator:  creator,
		tickets:  tickets,
		history:  history,
		settings: settings,
		log:      utils.WithComponent("creation"),
		now:      time.Now,
	}
}

// Run は選択中の行を表示順に1件ずつ作成し、結果を履歴に追加します。
// 行ごとの失敗は結果に記録して次の行へ進みます。すべて成功した場合のみ行をクリアします。
func (s *CreationService) Run(ctx context.Context, opts RunOptions) (*models.CreationRecord, error) {
	if !opts.DryRun && s.creator == nil {
		return nil, ErrNotConfigured
	}

	selected := s.tickets.Selected()
	if len(selected) == 0 {
		return nil, ErrNoRowsSelected
	}

	startTime := time.Now()
	defer utils.TrackTime(startTime, "一括作成")

	projectKey, jiraURL := s.target()
	var users []models.JiraUser
	if s.settings != nil {
		users = s.settings.Users()
	}

	total := len(selected)
	report(opts.Progress, 0, total, "作成の準備中...")
	s.log.Info("一括作成を開始します", "rows", total, "project", projectKey, "dryRun", opts.DryRun)

	// 同じバッチ内で作成した Epic の行ID → JIRA Key
	rowKeys := make(map[string]string)
	tickets := make([]models.CreatedTicket, 0, total)
	cancelled := false

	for i, row := range selected {
		if err := ctx.Err(); err != nil {
			cancelled = true
			for _, rest := range selected[i:] {
				tickets = append(tickets, failedTicket(rest, msgCancelled))
			}
			s.log.Warn("一括作成が中断されました", "remaining", total-i)
			break
		}

		report(opts.Progress, i+1, total, fmt.Sprintf("%s 作成中: %s", row.Type, row.Summary))

		if row.ParentRowID != "" {
			if key, ok := rowKeys[row.ParentRowID]; ok {
				row.ParentKey = key
				// 仮のキーは下書きに書き戻さない
				if !opts.DryRun {
					if err := s.tickets.SetParentKey(row.ID, key); err != nil {
						s.log.Debug("親キーを行に反映できませんでした", "row", row.ID, "error", err)
					}
				}
			}
		}
		row.Assignee = ResolveAssignee(row.Assignee, users)

		key, err := s.createOne(ctx, i, projectKey, row, opts.DryRun)
		if err != nil {
			msg := ErrorMessage(err)
			s.log.Warn("作成に失敗しました", "row", i+1, "summary", row.Summary, "error", msg)
			tickets = append(tickets, failedTicket(row, msg))
			continue
		}

		if row.Type == models.TypeEpic {
			rowKeys[row.ID] = key
		}
		s.log.Debug("作成しました", "row", i+1, "key", key)
		tickets = append(tickets, models.CreatedTicket{
			RowID:     row.ID,
			Type:      row.Type,
			Summary:   row.Summary,
			Assignee:  row.Assignee,
			ParentKey: row.ParentKey,
			JiraKey:   models.StringPtr(key),
			Status:    models.StatusSuccess,
		})
	}

	record := s.buildRecord(projectKey, jiraURL, opts.DryRun, selected, tickets)

	// 中断されていても結果は保存する
	saveCtx := context.WithoutCancel(ctx)
	if s.history != nil {
		if err := s.history.AddCreation(saveCtx, *record); err != nil {
			utils.LogError("作成履歴の保存に失敗しました: %v", err)
		}
	}

	if !opts.DryRun {
		if !cancelled && record.FailCount == 0 && record.SuccessCount > 0 {
			s.tickets.Clear()
		}
		if err := s.tickets.Save(saveCtx); err != nil {
			utils.LogError("下書きの保存に失敗しました: %v", err)
		}
	}

	report(opts.Progress, total, total, fmt.Sprintf("完了: 成功=%d, 失敗=%d", record.SuccessCount, record.FailCount))
	s.log.Info("一括作成が完了しました", "success", record.SuccessCount, "failed", record.FailCount)
	return record, nil
}

// createOne は1行を作成してキーを返します
func (s *CreationService) createOne(ctx context.Context, index int, projectKey string, row models.TicketRow, dryRun bool) (string, error) {
	if strings.TrimSpace(row.Summary) == "" {
		return "", errors.New(msgSummaryRequired)
	}

	if dryRun {
		prefix := projectKey
		if prefix == "" {
			prefix = "DEBUG"
		}
		return fmt.Sprintf("%s-%d", prefix, 1000+index), nil
	}

	if row.Type == models.TypeEpic {
		return s.creator.CreateEpic(ctx, row)
	}
	return s.creator.CreateTask(ctx, row)
}

// target は履歴に記録するプロジェクトキーとJIRA URLを返します
func (s *CreationService) target() (projectKey, jiraURL string) {
	if info, ok := s.creator.(connectionInfo); ok {
		projectKey, jiraURL = info.ProjectKey(), info.BaseURL()
	}
	if s.settings != nil {
		st := s.settings.Get()
		if projectKey == "" {
			projectKey = st.ProjectKey
		}
		if jiraURL == "" {
			jiraURL = st.JiraURL
		}
	}
	return projectKey, jiraURL
}

func (s *CreationService) buildRecord(projectKey, jiraURL string, dryRun bool, rows []models.TicketRow, tickets []models.CreatedTicket) *models.CreationRecord {
	record := &models.CreationRecord{
		ID:         models.NewID(),
		CreatedAt:  s.now().UTC().Format(time.RFC3339Nano),
		ProjectKey: projectKey,
		JiraURL:    jiraURL,
		DryRun:     dryRun,
		Tickets:    tickets,
	}
	for _, r := range rows {
		if r.Type == models.TypeEpic {
			record.EpicCount++
		} else {
			record.TaskCount++
		}
	}
	for _, t := range tickets {
		if t.Status == models.StatusSuccess {
			record.SuccessCount++
		} else {
			record.FailCount++
		}
	}
	return record
}

func failedTicket(row models.TicketRow, msg string) models.CreatedTicket {
	return models.CreatedTicket{
		RowID:        row.ID,
		Type:         row.Type,
		Summary:      row.Summary,
		Assignee:     row.Assignee,
		ParentKey:    row.ParentKey,
		Status:       models.StatusFailed,
		ErrorMessage: models.StringPtr(msg),
	}
}

func report(fn ProgressFunc, current, total int, msg string) {
	if fn != nil {
		fn(Progress{Current: current, Total: total, Message: msg})
	}
}
