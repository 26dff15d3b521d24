package api

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrMissingIssueKey は作成成功レスポンスに key が含まれない場合のエラーです
	ErrMissingIssueKey = errors.New("Jira response missing issue key")
	// ErrSummaryRequired は summary が空のまま作成しようとした場合のエラーです
	ErrSummaryRequired = errors.New("Summary is required")
	// ErrKeyRequired は更新対象の key が空の場合のエラーです
	ErrKeyRequired = errors.New("Jira key is required")
)

// APIError は JIRA が 2xx 以外を返した場合のエラーです
type APIError struct {
	Op         string // create | update | createmeta | auth | users
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Jira %s failed (%d): %s", e.Op, e.StatusCode, e.Body)
}

// Retryable は時間をおけば成功する可能性があるステータスかを返します
func (e *APIError) Retryable() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
