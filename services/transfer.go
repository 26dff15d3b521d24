package services

import (
	"bytes"
	"encoding/json"
	"fmt"

	"jirabulk/models"
)

// ExportVersion はエクスポートファイルの形式バージョンです
const ExportVersion = 1

// エクスポートファイルでリストを包むフィールド名
const (
	TransferRows    = "rows"
	TransferRecords = "records"
	TransferUsers   = "users"
)

// ExportJSON は {version: 1, <field>: items} 形式のJSONを返します
func ExportJSON(field string, items interface{}) ([]byte, error) {
	data, err := json.MarshalIndent(map[string]interface{}{
		"version": ExportVersion,
		field:     items,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("JSONエンコードエラー: %w", err)
	}
	return data, nil
}

// decodeList は {version, <field>: [...]} と素の配列のどちらも受け付けます。
// version は検証しません。
func decodeList[T any](data []byte, field string) ([]T, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("JSONが空です")
	}

	var items []T
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("JSON解析エラー: %w", err)
		}
		return items, nil
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, fmt.Errorf("JSON解析エラー: %w", err)
	}
	raw, ok := wrapped[field]
	if !ok {
		return nil, fmt.Errorf("JSONに %q がありません", field)
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("JSON解析エラー (%s): %w", field, err)
	}
	return items, nil
}

// selected が省略された行は選択状態として扱う
type importedTicketRow struct {
	models.TicketRow
	Selected *bool `json:"selected"`
}

// DecodeRows は下書きのJSONを作成待ちの行に変換します
func DecodeRows(data []byte) ([]models.TicketRow, error) {
	imported, err := decodeList[importedTicketRow](data, TransferRows)
	if err != nil {
		return nil, err
	}

	rows := make([]models.TicketRow, len(imported))
	for i, r := range imported {
		row := r.TicketRow
		row.Selected = r.Selected == nil || *r.Selected
		rows[i] = row
	}
	return normalizeTicketRows(rows), nil
}

// DecodeEditRows は編集行のJSONを変換します
func DecodeEditRows(data []byte) ([]models.EditRow, error) {
	return decodeList[models.EditRow](data, TransferRows)
}

// DecodeRecords は作成履歴のJSONを変換します
func DecodeRecords(data []byte) ([]models.CreationRecord, error) {
	return decodeList[models.CreationRecord](data, TransferRecords)
}

// DecodeUsers はユーザー一覧のJSONを変換します
func DecodeUsers(data []byte) ([]models.JiraUser, error) {
	return decodeList[models.JiraUser](data, TransferUsers)
}
