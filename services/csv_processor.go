package services

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strings"

	"jirabulk/models"
	"jirabulk/utils"
)

// CSVの書き出しに使う列 (ImportEditRows がそのまま読み戻せる順序)
var (
	editExportHeaders   = []string{"Issue Key", "Issue Type", "Status", "Sprint", "Assignee", "Start Date", "Due Date", "Parent", "Summary", "Description"}
	ticketExportHeaders = []string{"Issue Type", "Summary", "Description", "Assignee", "Sprint", "Start Date", "Due Date", "Parent"}
)

// CSVProcessor はCSVファイルの読み書きを担当します
type CSVProcessor struct{}

// NewCSVProcessor は新しいCSVプロセッサーを作成します
func NewCSVProcessor() *CSVProcessor {
	return &CSVProcessor{}
}

// ReadEditCSV はCSVファイルを読み込み、編集用の行に変換します
func (p *CSVProcessor) ReadEditCSV(path string) ([]models.EditRow, error) {
	utils.LogInfo("CSVファイル '%s' を読み込みます", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("CSVオープンエラー: %w", err)
	}

	rows, err := ImportEditRows(string(data))
	if err != nil {
		return nil, err
	}

	utils.LogInfo("CSVを読み込みました: %d 行", len(rows))
	return rows, nil
}

// WriteEditCSV は編集用の行をCSVファイルに書き出します
func (p *CSVProcessor) WriteEditCSV(path string, rows []models.EditRow) error {
	utils.LogInfo("CSVファイル '%s' を作成します", path)

	text, err := ExportEditRowsCSV(rows)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("CSVファイル作成エラー: %w", err)
	}

	utils.LogInfo("CSV書き込み完了: %d 行", len(rows))
	return nil
}

// WriteTicketCSV は作成待ちの行をCSVファイルに書き出します
func (p *CSVProcessor) WriteTicketCSV(path string, rows []models.TicketRow) error {
	text, err := ExportTicketRowsCSV(rows)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("CSVファイル作成エラー: %w", err)
	}

	utils.LogInfo("CSV書き込み完了: %d 行", len(rows))
	return nil
}

// ImportEditRows はCSV/TSVテキストを編集用の行に変換します。
// キーが空の行は読み飛ばします。キー列を特定できない場合は何も取り込みません。
func ImportEditRows(text string) ([]models.EditRow, error) {
	headers, dataRows := ParseWithHeaders(text)
	if len(headers) == 0 {
		return nil, fmt.Errorf("CSVデータが不足しています: %w", ErrMissingKeyColumn)
	}

	m, err := ResolveColumns(headers, dataRows)
	if err != nil {
		return nil, err
	}

	result := make([]models.EditRow, 0, len(dataRows))
	skipped := 0
	for _, row := range dataRows {
		key := cellAt(row, m.Key)
		if key == "" {
			skipped++
			continue
		}

		rawType := "Task"
		if m.Type >= 0 {
			rawType = cellAt(row, m.Type)
		}
		summary := cellAt(row, m.Summary)
		description := cellAt(row, m.Description)

		result = append(result, models.EditRow{
			ID:                  models.NewID(),
			Key:                 key,
			Type:                NormalizeIssueType(rawType),
			Status:              cellAt(row, m.Status),
			Sprint:              cellAt(row, m.Sprint),
			Assignee:            cellAt(row, m.Assignee),
			StartDate:           cellAt(row, m.StartDate),
			DueDate:             cellAt(row, m.DueDate),
			ParentKey:           cellAt(row, m.ParentKey),
			Summary:             summary,
			Description:         description,
			OriginalSummary:     summary,
			OriginalDescription: description,
			Selected:            true,
		})
	}

	if skipped > 0 {
		utils.LogWarn("キーが空の行をスキップしました: %d 行", skipped)
	}
	return result, nil
}

// ImportTicketRows はCSV/TSVテキストを作成待ちの行に変換します。
// キー列は不要で、要約が空の行は読み飛ばします。
func ImportTicketRows(text string) ([]models.TicketRow, error) {
	headers, dataRows := ParseWithHeaders(text)
	if len(headers) == 0 {
		return []models.TicketRow{}, nil
	}

	m, err := ResolveColumns(headers, dataRows)
	if err != nil && !errors.Is(err, ErrMissingKeyColumn) {
		return nil, err
	}
	if m.Summary < 0 {
		return nil, fmt.Errorf("要約の列が見つかりません")
	}

	result := make([]models.TicketRow, 0, len(dataRows))
	for _, row := range dataRows {
		summary := cellAt(row, m.Summary)
		if summary == "" {
			continue
		}

		t := models.NewTicketRow()
		t.Type = models.CoerceIssueType(NormalizeIssueType(cellAt(row, m.Type)))
		t.Summary = summary
		t.Description = cellAt(row, m.Description)
		t.Assignee = cellAt(row, m.Assignee)
		t.Sprint = cellAt(row, m.Sprint)
		t.StartDate = importDate(cellAt(row, m.StartDate))
		t.DueDate = importDate(cellAt(row, m.DueDate))
		t.ParentKey = cellAt(row, m.ParentKey)
		result = append(result, t)
	}
	return result, nil
}

// 暦として不正な日付は空にする
func importDate(v string) string {
	normalized, ok := utils.NormalizeDate(v)
	if !ok {
		utils.LogWarn("日付変換エラー: '%s'", v)
		return ""
	}
	return normalized
}

// ExportEditRowsCSV は編集用の行をCSVテキストにします
func ExportEditRowsCSV(rows []models.EditRow) (string, error) {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{
			r.Key, r.Type, r.Status, r.Sprint, r.Assignee,
			r.StartDate, r.DueDate, r.ParentKey, r.Summary, r.Description,
		})
	}
	return writeCSV(editExportHeaders, records)
}

// ExportTicketRowsCSV は作成待ちの行をCSVテキストにします
func ExportTicketRowsCSV(rows []models.TicketRow) (string, error) {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{
			string(r.Type), r.Summary, r.Description, r.Assignee,
			r.Sprint, r.StartDate, r.DueDate, r.ParentKey,
		})
	}
	return writeCSV(ticketExportHeaders, records)
}

func writeCSV(headers []string, records [][]string) (string, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(headers); err != nil {
		return "", fmt.Errorf("ヘッダー書き込みエラー: %w", err)
	}
	for _, record := range records {
		if err := writer.Write(record); err != nil {
			return "", fmt.Errorf("行書き込みエラー: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", fmt.Errorf("CSV書き込み完了エラー: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
