package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"jirabulk/models"
	"jirabulk/utils"
)

// IssueUpdater は既存イシューを部分更新する操作です (api.JiraClient が実装)
type IssueUpdater interface {
	UpdateIssue(ctx context.Context, key string, patch models.IssuePatch) error
}

// EditService は編集された行の summary/description をJIRAに反映します
type EditService struct {
	updater IssueUpdater
	history *HistoryStore
	log     *slog.Logger
	now     func() time.Time
}

// NewEditService は新しい更新サービスを作成します
func NewEditService(updater IssueUpdater, history *HistoryStore) *EditService {
	return &EditService{
		updater: updater,
		history: history,
		log:     utils.WithComponent("edit"),
		now:     time.Now,
	}
}

// BuildPatch は original から変わったフィールドだけを含む更新内容を返します
func BuildPatch(row models.EditRow) models.IssuePatch {
	var patch models.IssuePatch
	if row.Summary != row.OriginalSummary {
		patch.Summary = models.StringPtr(row.Summary)
	}
	if row.Description != row.OriginalDescription {
		patch.Description = models.StringPtr(row.Description)
	}
	return patch
}

// Run は行を順番に更新し、結果を更新履歴に追加します。
// original の更新は呼び出し側が EditStore.PromoteSynced で行います。
func (s *EditService) Run(ctx context.Context, rows []models.EditRow, progress ProgressFunc) (*models.EditRecord, error) {
	if s.updater == nil {
		return nil, ErrNotConfigured
	}
	if len(rows) == 0 {
		return nil, ErrNoRowsSelected
	}

	startTime := time.Now()
	defer utils.TrackTime(startTime, "一括更新")

	total := len(rows)
	report(progress, 0, total, "更新の準備中...")

	tickets := make([]models.EditedTicket, 0, total)
	for i, row := range rows {
		if ctx.Err() != nil {
			for _, rest := range rows[i:] {
				tickets = append(tickets, editedTicket(rest, errors.New(msgCancelled)))
			}
			s.log.Warn("一括更新が中断されました", "remaining", total-i)
			break
		}

		report(progress, i+1, total, fmt.Sprintf("%s を更新中", row.Key))

		err := s.updateOne(ctx, row)
		if err != nil {
			s.log.Warn("更新に失敗しました", "key", row.Key, "error", ErrorMessage(err))
		}
		tickets = append(tickets, editedTicket(row, err))
	}

	record := &models.EditRecord{
		ID:        models.NewID(),
		UpdatedAt: s.now().UTC().Format(time.RFC3339Nano),
		Tickets:   tickets,
	}
	for _, t := range tickets {
		if t.Status == models.StatusSuccess {
			record.SuccessCount++
		} else {
			record.FailCount++
		}
	}

	if s.history != nil {
		if err := s.history.AddEdit(context.WithoutCancel(ctx), *record); err != nil {
			utils.LogError("更新履歴の保存に失敗しました: %v", err)
		}
	}

	report(progress, total, total, fmt.Sprintf("完了: 成功=%d, 失敗=%d", record.SuccessCount, record.FailCount))
	s.log.Info("一括更新が完了しました", "success", record.SuccessCount, "failed", record.FailCount)
	return record, nil
}

func (s *EditService) updateOne(ctx context.Context, row models.EditRow) error {
	if row.Key == "" {
		return errors.New(msgKeyMissing)
	}
	patch := BuildPatch(row)
	if patch.Empty() {
		return errors.New(msgNoChanges)
	}
	return s.updater.UpdateIssue(ctx, row.Key, patch)
}

func editedTicket(row models.EditRow, err error) models.EditedTicket {
	t := models.EditedTicket{
		RowID:       row.ID,
		JiraKey:     row.Key,
		Summary:     row.Summary,
		Description: row.Description,
		Status:      models.StatusSuccess,
	}
	if err != nil {
		t.Status = models.StatusFailed
		t.ErrorMessage = models.StringPtr(ErrorMessage(err))
	}
	return t
}
