package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"jirabulk/models"
	"jirabulk/storage"
	"jirabulk/utils"
)

// 作成待ち行のフィールド名 (貼り付け時の列順)
const (
	FieldType        = "type"
	FieldSummary     = "summary"
	FieldDescription = "description"
	FieldAssignee    = "assignee"
	FieldSprint      = "sprint"
	FieldStartDate   = "startDate"
	FieldDueDate     = "dueDate"
	FieldParentKey   = "parentKey"
	FieldParentRowID = "parentRowId"
)

// PasteFields は複数セル貼り付けで左から順に埋めるフィールドです
var PasteFields = []string{
	FieldType, FieldSummary, FieldDescription, FieldAssignee,
	FieldSprint, FieldStartDate, FieldDueDate, FieldParentKey,
}

// TicketStore は作成待ちの行を保持します (jbc-draft に保存)
type TicketStore struct {
	mu   sync.Mutex
	rows []models.TicketRow
	kv   storage.Store
}

// NewTicketStore は空行1行だけのストアを作成します
func NewTicketStore(kv storage.Store) *TicketStore {
	return &TicketStore{
		rows: []models.TicketRow{models.NewTicketRow()},
		kv:   kv,
	}
}

// Load は保存済みの下書きを読み込みます
func (s *TicketStore) Load(ctx context.Context) error {
	var rows []models.TicketRow
	found, err := loadJSON(ctx, s.kv, KeyDraft, &rows)
	if err != nil || !found {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = normalizeTicketRows(rows)
	return nil
}

// Save は現在の行を保存します
func (s *TicketStore) Save(ctx context.Context) error {
	s.mu.Lock()
	rows := s.snapshot()
	s.mu.Unlock()
	return saveJSON(ctx, s.kv, KeyDraft, rows)
}

func (s *TicketStore) snapshot() []models.TicketRow {
	out := make([]models.TicketRow, len(s.rows))
	copy(out, s.rows)
	return out
}

func (s *TicketStore) indexOf(id string) int {
	for i := range s.rows {
		if s.rows[i].ID == id {
			return i
		}
	}
	return -1
}

// Rows は表示順の行のコピーを返します
func (s *TicketStore) Rows() []models.TicketRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Selected は選択中の行を表示順で返します
func (s *TicketStore) Selected() []models.TicketRow {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.TicketRow
	for _, r := range s.rows {
		if r.Selected {
			out = append(out, r)
		}
	}
	return out
}

// Row はIDで行を返します
func (s *TicketStore) Row(id string) (models.TicketRow, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		return s.rows[i], true
	}
	return models.TicketRow{}, false
}

// AddRow は index の直後に行を挿入します (index < 0 なら末尾)。
// data の ID が空なら採番し、種別は Epic/Task に丸めます。
func (s *TicketStore) AddRow(index int, data models.TicketRow) string {
	row := data
	if row.ID == "" {
		row.ID = models.NewID()
	}
	row.Type = models.CoerceIssueType(string(row.Type))

	s.mu.Lock()
	defer s.mu.Unlock()

	at := len(s.rows)
	if index >= 0 && index+1 < len(s.rows) {
		at = index + 1
	}
	s.rows = insertRows(s.rows, at, row)
	return row.ID
}

// AddBlankRow は選択状態の空行を追加します
func (s *TicketStore) AddBlankRow(index int) string {
	return s.AddRow(index, models.NewTicketRow())
}

// DeleteSelected は選択中の行を削除し、削除件数を返します
func (s *TicketStore) DeleteSelected() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.rows[:0:0]
	for _, r := range s.rows {
		if !r.Selected {
			kept = append(kept, r)
		}
	}
	removed := len(s.rows) - len(kept)
	s.rows = kept
	return removed
}

// UpdateRow は1行を関数で書き換えます
func (s *TicketStore) UpdateRow(id string, update func(*models.TicketRow)) error {
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

// SetField はフィールド名を指定して1セルを書き換えます
func (s *TicketStore) SetField(id, field, value string) error {
	var fieldErr error
	err := s.UpdateRow(id, func(r *models.TicketRow) {
		fieldErr = setTicketField(r, field, value)
	})
	if err != nil {
		return err
	}
	return fieldErr
}

// SetParentKey は親の JIRA Key を書き換えます (同一バッチ内の Epic 解決用)
func (s *TicketStore) SetParentKey(id, key string) error {
	return s.UpdateRow(id, func(r *models.TicketRow) { r.ParentKey = key })
}

// CopyRow は行を複製して元の行の直後に挿入し、新しいIDを返します
func (s *TicketStore) CopyRow(id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return "", fmt.Errorf("%s: %w", id, ErrRowNotFound)
	}
	dup := s.rows[i]
	dup.ID = models.NewID()
	dup.Selected = true
	s.rows = insertRows(s.rows, i+1, dup)
	return dup.ID, nil
}

// ToggleSelect は1行の選択状態を反転します
func (s *TicketStore) ToggleSelect(id string) error {
	return s.UpdateRow(id, func(r *models.TicketRow) { r.Selected = !r.Selected })
}

// ToggleSelectAll は全行が選択済みなら全解除、そうでなければ全選択します
func (s *TicketStore) ToggleSelectAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := true
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

// AddSubtasks は親行の直後に種類ごとの子 Task を追加します
func (s *TicketStore) AddSubtasks(parentID string, types []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(parentID)
	if i < 0 {
		return nil, fmt.Errorf("%s: %w", parentID, ErrRowNotFound)
	}
	parentSummary := s.rows[i].Summary

	children := make([]models.TicketRow, 0, len(types))
	ids := make([]string, 0, len(types))
	for _, t := range types {
		child := models.NewTicketRow()
		child.Summary = fmt.Sprintf("[%s] %s", t, parentSummary)
		child.ParentRowID = parentID
		children = append(children, child)
		ids = append(ids, child.ID)
	}
	s.rows = insertRows(s.rows, i+1, children...)
	return ids, nil
}

// EnsureRowCount は行数が n 未満なら空行を末尾に追加します
func (s *TicketStore) EnsureRowCount(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureRowCount(n)
}

func (s *TicketStore) ensureRowCount(n int) {
	for len(s.rows) < n {
		s.rows = append(s.rows, models.NewTicketRow())
	}
}

// ReplaceFromImport は全行を取り込んだ行で置き換えます
func (s *TicketStore) ReplaceFromImport(rows []models.TicketRow) {
	normalized := normalizeTicketRows(rows)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = normalized
}

// Clear は空行1行だけの状態に戻します
func (s *TicketStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = []models.TicketRow{models.NewTicketRow()}
}

// Paste はクリップボードのタブ区切りテキストを startRow/startField から書き込み、
// 書き込んだセル数を返します。行が足りなければ空行を追加します。
func (s *TicketStore) Paste(startRow int, startField, text string) (int, error) {
	startCol := -1
	for i, f := range PasteFields {
		if f == startField {
			startCol = i
			break
		}
	}
	if startCol < 0 {
		return 0, fmt.Errorf("%s: %w", startField, ErrUnknownField)
	}
	if startRow < 0 {
		startRow = 0
	}

	grid := ParseDelimited(text, '\t')
	if len(grid) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureRowCount(startRow + len(grid))

	written := 0
	for r, cells := range grid {
		row := &s.rows[startRow+r]
		for c, value := range cells {
			col := startCol + c
			if col >= len(PasteFields) {
				break
			}
			if applyPastedCell(row, PasteFields[col], value) {
				written++
			}
		}
	}
	return written, nil
}

// applyPastedCell は貼り付け値を1セルに反映します。反映しなかった場合は false
func applyPastedCell(row *models.TicketRow, field, value string) bool {
	switch field {
	case FieldType:
		t, ok := coercePastedType(value)
		if !ok {
			return false
		}
		row.Type = t
		return true
	case FieldStartDate, FieldDueDate:
		normalized, ok := utils.NormalizeDate(value)
		if !ok {
			utils.LogWarn("日付として不正な値を無視しました: '%s'", value)
			return false
		}
		value = normalized
	}
	return setTicketField(row, field, value) == nil
}

// coercePastedType は先頭文字で Epic/Task を判定します (e… → Epic, t… → Task)
func coercePastedType(value string) (models.IssueType, bool) {
	if strings.TrimSpace(value) == "" {
		return "", false
	}
	v := strings.ToLower(NormalizeIssueType(value))
	switch {
	case strings.HasPrefix(v, "e"):
		return models.TypeEpic, true
	case strings.HasPrefix(v, "t"):
		return models.TypeTask, true
	}
	return "", false
}

// ValidateParentLinks は parentRowId が同じ作業セット内の Epic を指していない行のIDを返します
func (s *TicketStore) ValidateParentLinks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	epics := make(map[string]bool)
	for _, r := range s.rows {
		if r.Type == models.TypeEpic {
			epics[r.ID] = true
		}
	}

	var broken []string
	for _, r := range s.rows {
		if r.ParentRowID != "" && !epics[r.ParentRowID] {
			broken = append(broken, r.ID)
		}
	}
	return broken
}

func setTicketField(r *models.TicketRow, field, value string) error {
	switch field {
	case FieldType:
		r.Type = models.CoerceIssueType(value)
	case FieldSummary:
		r.Summary = value
	case FieldDescription:
		r.Description = value
	case FieldAssignee:
		r.Assignee = value
	case FieldSprint:
		r.Sprint = value
	case FieldStartDate:
		r.StartDate = value
	case FieldDueDate:
		r.DueDate = value
	case FieldParentKey:
		r.ParentKey = value
	case FieldParentRowID:
		r.ParentRowID = value
	default:
		return fmt.Errorf("%s: %w", field, ErrUnknownField)
	}
	return nil
}

// normalizeTicketRows は取り込んだ行の欠損を補います。空なら空行1行を返します
func normalizeTicketRows(rows []models.TicketRow) []models.TicketRow {
	if len(rows) == 0 {
		return []models.TicketRow{models.NewTicketRow()}
	}
	out := make([]models.TicketRow, len(rows))
	for i, r := range rows {
		if r.ID == "" {
			r.ID = models.NewID()
		}
		r.Type = models.CoerceIssueType(string(r.Type))
		out[i] = r
	}
	return out
}

func insertRows(rows []models.TicketRow, at int, add ...models.TicketRow) []models.TicketRow {
	out := make([]models.TicketRow, 0, len(rows)+len(add))
	out = append(out, rows[:at]...)
	out = append(out, add...)
	return append(out, rows[at:]...)
}
