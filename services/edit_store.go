package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"jirabulk/models"
	"jirabulk/storage"
)

// 編集行の並び順
const (
	SortNone    = "none"
	SortSummary = "summary"
	SortStatus  = "status"
)

// 編集行だけにあるフィールド名
const (
	FieldKey    = "key"
	FieldStatus = "status"
)

// EditStore は更新待ちの既存イシューを保持します (edit-storage に保存)
type EditStore struct {
	mu   sync.Mutex
	rows []models.EditRow
	kv   storage.Store
}

// NewEditStore は空のストアを作成します
func NewEditStore(kv storage.Store) *EditStore {
	return &EditStore{rows: []models.EditRow{}, kv: kv}
}

// Load は保存済みの行を読み込みます
func (s *EditStore) Load(ctx context.Context) error {
	var rows []models.EditRow
	found, err := loadJSON(ctx, s.kv, KeyEditRows, &rows)
	if err != nil || !found {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if rows == nil {
		rows = []models.EditRow{}
	}
	s.rows = rows
	return nil
}

// Save は現在の行を保存します
func (s *EditStore) Save(ctx context.Context) error {
	return saveJSON(ctx, s.kv, KeyEditRows, s.Rows())
}

// Rows は行のコピーを返します
func (s *EditStore) Rows() []models.EditRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.EditRow, len(s.rows))
	copy(out, s.rows)
	return out
}

// Row はIDで行を返します
func (s *EditStore) Row(id string) (models.EditRow, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		return s.rows[i], true
	}
	return models.EditRow{}, false
}

func (s *EditStore) indexOf(id string) int {
	for i := range s.rows {
		if s.rows[i].ID == id {
			return i
		}
	}
	return -1
}

// ReplaceFromImport は全行を置き換えます
func (s *EditStore) ReplaceFromImport(rows []models.EditRow) {
	out := make([]models.EditRow, len(rows))
	copy(out, rows)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = out
}

// AddFromCreatedTickets は作成に成功したチケットを先頭に追加し、追加件数を返します。
// 既に同じキーの行がある場合は追加しません。
func (s *EditStore) AddFromCreatedTickets(tickets []models.CreatedTicket) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := make(map[string]bool, len(s.rows))
	for _, r := range s.rows {
		existing[r.Key] = true
	}

	var additions []models.EditRow
	for _, t := range tickets {
		if t.Status != models.StatusSuccess || t.JiraKey == nil || *t.JiraKey == "" {
			continue
		}
		if existing[*t.JiraKey] {
			continue
		}
		existing[*t.JiraKey] = true

		issueType := string(t.Type)
		if issueType == "" {
			issueType = string(models.TypeTask)
		}
		additions = append(additions, models.EditRow{
			ID:              models.NewID(),
			Key:             *t.JiraKey,
			Type:            issueType,
			ParentKey:       t.ParentKey,
			Assignee:        t.Assignee,
			Summary:         t.Summary,
			OriginalSummary: t.Summary,
			Selected:        true,
		})
	}

	s.rows = append(additions, s.rows...)
	return len(additions)
}

// UpdateRow は1行を関数で書き換えます
func (s *EditStore) UpdateRow(id string, update func(*models.EditRow)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%s: %w", id, ErrRowNotFound)
	}
	update(&s.rows[i])
	s.rows[i].ID = id
	return nil
}

// SetField はフィールド名を指定して1セルを書き換えます。
// originalSummary / originalDescription はここからは変更できません。
func (s *EditStore) SetField(id, field, value string) error {
	var fieldErr error
	err := s.UpdateRow(id, func(r *models.EditRow) {
		switch field {
		case FieldKey:
			r.Key = value
		case FieldType:
			r.Type = value
		case FieldStatus:
			r.Status = value
		case FieldSprint:
			r.Sprint = value
		case FieldAssignee:
			r.Assignee = value
		case FieldStartDate:
			r.StartDate = value
		case FieldDueDate:
			r.DueDate = value
		case FieldParentKey:
			r.ParentKey = value
		case FieldSummary:
			r.Summary = value
		case FieldDescription:
			r.Description = value
		default:
			fieldErr = fmt.Errorf("%s: %w", field, ErrUnknownField)
		}
	})
	if err != nil {
		return err
	}
	return fieldErr
}

// ToggleSelect は1行の選択状態を反転します
func (s *EditStore) ToggleSelect(id string) error {
	return s.UpdateRow(id, func(r *models.EditRow) { r.Selected = !r.Selected })
}

// ToggleSelectAll は全行が選択済みなら全解除、そうでなければ全選択します
func (s *EditStore) ToggleSelectAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := len(s.rows) > 0
	for _, r := range s.rows {
		if !r.Selected {
			all = false
			break
		}
	}
	for i := range s.rows {
		s.rows[i].Selected = !all
	}
}

// Clear はすべての行を削除します
func (s *EditStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = []models.EditRow{}
}

// ChangedSelected は選択中かつ summary/description が変更された行を返します
func (s *EditStore) ChangedSelected() []models.EditRow {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.EditRow
	for _, r := range s.rows {
		if r.Selected && r.Changed() {
			out = append(out, r)
		}
	}
	return out
}

// PromoteSynced は更新に成功した行の original を送信した値に揃え、反映件数を返します。
// JIRA 側の更新が確定した後にだけ呼び出します。
func (s *EditStore) PromoteSynced(record *models.EditRecord) int {
	if record == nil {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	promoted := 0
	for _, t := range record.Tickets {
		if t.Status != models.StatusSuccess {
			continue
		}
		i := s.indexOf(t.RowID)
		if i < 0 {
			continue
		}
		s.rows[i].OriginalSummary = t.Summary
		s.rows[i].OriginalDescription = t.Description
		promoted++
	}
	return promoted
}

// Filter は要約の部分一致 (大文字小文字を区別しない) とスプリントで絞り込みます
func (s *EditStore) Filter(search, sprint string) []models.EditRow {
	term := strings.ToLower(strings.TrimSpace(search))

	var out []models.EditRow
	for _, r := range s.Rows() {
		if term != "" && !strings.Contains(strings.ToLower(r.Summary), term) {
			continue
		}
		if sprint != "" && r.Sprint != sprint {
			continue
		}
		out = append(out, r)
	}
	return out
}

// SortRows は要約またはステータスで安定ソートしたコピーを返します
func SortRows(rows []models.EditRow, by string) []models.EditRow {
	out := make([]models.EditRow, len(rows))
	copy(out, rows)

	var key func(models.EditRow) string
	switch by {
	case SortSummary:
		key = func(r models.EditRow) string { return r.Summary }
	case SortStatus:
		key = func(r models.EditRow) string { return r.Status }
	default:
		return out
	}

	c := collate.New(language.Und, collate.IgnoreCase, collate.IgnoreDiacritics, collate.IgnoreWidth)
	sort.SliceStable(out, func(i, j int) bool {
		return c.CompareString(key(out[i]), key(out[j])) < 0
	})
	return out
}

// SprintOptions は行に現れるスプリント名を出現順に重複なく返します
func (s *EditStore) SprintOptions() []string {
	seen := map[string]bool{}
	var options []string
	for _, r := range s.Rows() {
		sprint := strings.TrimSpace(r.Sprint)
		if sprint == "" || seen[sprint] {
			continue
		}
		seen[sprint] = true
		options = append(options, sprint)
	}
	return options
}
