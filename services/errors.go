package services

import (
	"errors"
	"strings"

	"jirabulk/config"
)

var (
	// ErrNoRowsSelected は送信対象の行が1件もない場合に返されます
	ErrNoRowsSelected = errors.New("no rows selected")

	// ErrNotConfigured はJIRA接続設定が不足している場合に返されます
	ErrNotConfigured = config.ErrNotConfigured

	// ErrMissingKeyColumn はCSVからキー列を特定できなかった場合に返されます
	ErrMissingKeyColumn = errors.New("CSV must include Issue Key column")

	// ErrRowNotFound は指定IDの行が存在しない場合に返されます
	ErrRowNotFound = errors.New("row not found")

	// ErrUnknownField は貼り付け・更新で未知のフィールド名が指定された場合に返されます
	ErrUnknownField = errors.New("unknown field")
)

// 行ごとの失敗メッセージ (固定文言)
const (
	msgSummaryRequired = "Summary is required"
	msgKeyMissing      = "Jira key is missing"
	msgNoChanges       = "No changes to update"
	msgCancelled       = "Cancelled before submission"
	msgUnknownError    = "Unknown error"
)

// ErrorMessage は行の結果に記録するエラーメッセージを返します
func ErrorMessage(err error) string {
	if err == nil {
		return msgUnknownError
	}
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		return msgUnknownError
	}
	return msg
}
