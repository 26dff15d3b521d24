package services

import (
	"strings"

	"jirabulk/models"
)

// ImportUsers は既存のユーザー一覧に取り込んだユーザーを追加します。
// 前後の空白を除き、accountId か表示名が空のエントリは捨てます。
// accountId が (大文字小文字を区別せず) 重複した場合は先に出たものを残し、重複数を返します。
func ImportUsers(existing, incoming []models.JiraUser) ([]models.JiraUser, int) {
	merged := make([]models.JiraUser, 0, len(existing)+len(incoming))
	seen := make(map[string]bool, len(existing)+len(incoming))
	duplicates := 0

	add := func(u models.JiraUser) {
		u = models.JiraUser{
			AccountID:    strings.TrimSpace(u.AccountID),
			DisplayName:  strings.TrimSpace(u.DisplayName),
			EmailAddress: strings.TrimSpace(u.EmailAddress),
		}
		if u.AccountID == "" || u.DisplayName == "" {
			return
		}
		id := strings.ToLower(u.AccountID)
		if seen[id] {
			duplicates++
			return
		}
		seen[id] = true
		merged = append(merged, u)
	}

	for _, u := range existing {
		add(u)
	}
	for _, u := range incoming {
		add(u)
	}
	return merged, duplicates
}

// MergeUsers は ImportUsers と同じ規則で取り込み、新たに受け入れた件数と重複数を返します。
// 既存側の不正なエントリが落ちても追加件数は負になりません。
func MergeUsers(existing, incoming []models.JiraUser) (merged []models.JiraUser, added, duplicates int) {
	base, _ := ImportUsers(nil, existing)
	merged, duplicates = ImportUsers(base, incoming)
	return merged, len(merged) - len(base), duplicates
}

// ParseUsersGrid は「表示名<TAB>accountId[<TAB>メール]」形式の貼り付けテキストを読みます。
// 1行目がヘッダーの場合は読み飛ばします。
func ParseUsersGrid(text string) []models.JiraUser {
	grid := ParseDelimited(text, DetectDelimiter(text))

	var users []models.JiraUser
	for i, cells := range grid {
		if i == 0 && isUsersHeader(cells) {
			continue
		}
		users = append(users, models.JiraUser{
			DisplayName:  cellAt(cells, 0),
			AccountID:    cellAt(cells, 1),
			EmailAddress: cellAt(cells, 2),
		})
	}
	return users
}

func isUsersHeader(cells []string) bool {
	switch NormalizeHeader(cellAt(cells, 1)) {
	case "accountid", "id", "assigneeid", "담당자id":
		return true
	}
	return false
}
