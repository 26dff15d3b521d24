package utils

import (
	"regexp"
	"strings"
	"time"
)

var (
	compactDateRe = regexp.MustCompile(`^\d{8}$`)
	isoDateRe     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// NormalizeDate は貼り付けられた日付を YYYY-MM-DD に揃えます。
// 20240131 形式は変換し、YYYY-MM-DD はそのまま通します。それ以外の文字列は
// 手を加えずに返します。日付の形をしているのに暦として存在しない値
// (例: 20241340, 9999-99-99) は ok=false を返します。
func NormalizeDate(value string) (string, bool) {
	v := strings.TrimSpace(value)
	switch {
	case compactDateRe.MatchString(v):
		v = v[0:4] + "-" + v[4:6] + "-" + v[6:8]
	case isoDateRe.MatchString(v):
	default:
		return value, true
	}

	if _, err := time.Parse(time.DateOnly, v); err != nil {
		return value, false
	}
	return v, true
}
