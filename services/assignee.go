package services

import (
	"strings"

	"jirabulk/models"
)

// ResolveAssignee は担当者の入力値を accountId に解決します。
// 既知の accountId ならそのまま、表示名またはメールアドレス (大文字小文字を区別しない) に
// 一致すればその accountId を返し、どれにも一致しなければ入力値をそのまま返します。
func ResolveAssignee(raw string, users []models.JiraUser) string {
	value := strings.TrimSpace(raw)
	if value == "" {
		return ""
	}

	for _, u := range users {
		if u.AccountID == value {
			return value
		}
	}
	for _, u := range users {
		if u.DisplayName != "" && strings.EqualFold(u.DisplayName, value) {
			return u.AccountID
		}
	}
	for _, u := range users {
		if u.EmailAddress != "" && strings.EqualFold(u.EmailAddress, value) {
			return u.AccountID
		}
	}
	return value
}
