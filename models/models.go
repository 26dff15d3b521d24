package models

import (
	"strings"

	"github.com/google/uuid"
)

// IssueType は作成対象のイシュー種別です (Epic または Task)
type IssueType string

const (
	TypeEpic IssueType = "Epic"
	TypeTask IssueType = "Task"
)

// CoerceIssueType は任意の文字列を Epic/Task のいずれかに丸めます
func CoerceIssueType(s string) IssueType {
	if IssueType(s) == TypeEpic {
		return TypeEpic
	}
	return TypeTask
}

// TicketRow は作成待ちの1行を表します
type TicketRow struct {
	ID          string    `json:"id"`
	Selected    bool      `json:"selected"`
	Type        IssueType `json:"type"`
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	Assignee    string    `json:"assignee"`    // accountId (空 = 未割り当て)
	Sprint      string    `json:"sprint"`      // Sprint ID
	StartDate   string    `json:"startDate"`   // YYYY-MM-DD
	DueDate     string    `json:"dueDate"`     // YYYY-MM-DD
	ParentKey   string    `json:"parentKey"`   // 親 Epic の JIRA Key
	ParentRowID string    `json:"parentRowId"` // 同じシート内の Epic 行 ID
}

// NewTicketRow は空の行を作成します
func NewTicketRow() TicketRow {
	return TicketRow{
		ID:       NewID(),
		Selected: true,
		Type:     TypeTask,
	}
}

// EditRow は既存イシューの更新待ちの1行を表します
type EditRow struct {
	ID                  string `json:"id"`
	Key                 string `json:"key"`
	Type                string `json:"type"`
	Status              string `json:"status"`
	Sprint              string `json:"sprint"`
	Assignee            string `json:"assignee"`
	StartDate           string `json:"startDate"`
	DueDate             string `json:"dueDate"`
	ParentKey           string `json:"parentKey"`
	Summary             string `json:"summary"`
	Description         string `json:"description"`
	OriginalSummary     string `json:"originalSummary"`
	OriginalDescription string `json:"originalDescription"`
	Selected            bool   `json:"selected"`
}

// Changed は summary/description が取り込み時から変更されているかを返します
func (r EditRow) Changed() bool {
	return r.Summary != r.OriginalSummary || r.Description != r.OriginalDescription
}

// OutcomeStatus は1行ごとの処理結果です
type OutcomeStatus string

const (
	StatusSuccess OutcomeStatus = "success"
	StatusFailed  OutcomeStatus = "failed"
)

// CreatedTicket は作成結果の1件です
type CreatedTicket struct {
	RowID        string        `json:"rowId"`
	Type         IssueType     `json:"type"`
	Summary      string        `json:"summary"`
	Assignee     string        `json:"assignee"`
	ParentKey    string        `json:"parentKey"`
	JiraKey      *string       `json:"jiraKey"`
	Status       OutcomeStatus `json:"status"`
	ErrorMessage *string       `json:"errorMessage"`
}

// CreationRecord は一括作成1回分の履歴です
type CreationRecord struct {
	ID           string          `json:"id"`
	CreatedAt    string          `json:"createdAt"` // ISO 8601
	ProjectKey   string          `json:"projectKey"`
	JiraURL      string          `json:"jiraUrl"`
	DryRun       bool            `json:"dryRun,omitempty"`
	EpicCount    int             `json:"epicCount"`
	TaskCount    int             `json:"taskCount"`
	SuccessCount int             `json:"successCount"`
	FailCount    int             `json:"failCount"`
	Tickets      []CreatedTicket `json:"tickets"`
}

// BrowseURL は作成されたイシューへのリンクを返します
func (r CreationRecord) BrowseURL(key string) string {
	base := strings.TrimRight(r.JiraURL, "/")
	if base == "" || key == "" {
		return ""
	}
	return base + "/browse/" + key
}

// EditedTicket は更新結果の1件です
type EditedTicket struct {
	RowID        string        `json:"rowId"`
	JiraKey      string        `json:"jiraKey"`
	Summary      string        `json:"summary"`
	Description  string        `json:"description"`
	Status       OutcomeStatus `json:"status"`
	ErrorMessage *string       `json:"errorMessage"`
}

// EditRecord は一括更新1回分の履歴です
type EditRecord struct {
	ID           string         `json:"id"`
	UpdatedAt    string         `json:"updatedAt"`
	SuccessCount int            `json:"successCount"`
	FailCount    int            `json:"failCount"`
	Tickets      []EditedTicket `json:"tickets"`
}

// IssuePatch は既存イシューへの部分更新です (nil のフィールドは送信しない)
type IssuePatch struct {
	Summary     *string `json:"summary,omitempty"`
	Description *string `json:"description,omitempty"`
}

// Empty は変更がない場合に true を返します
func (p IssuePatch) Empty() bool {
	return p.Summary == nil && p.Description == nil
}

// JiraUser は担当者ディレクトリの1件です
type JiraUser struct {
	AccountID    string `json:"accountId"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress"`
}

// JiraSprint はスプリントの1件です
type JiraSprint struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	State string `json:"state"` // active | future | closed
}

// Settings はローカルに保存されるユーザー設定です
type Settings struct {
	// JIRA接続 (空の場合は環境変数の設定を使う)
	JiraURL    string `json:"jiraUrl"`
	Email      string `json:"email"`
	APIToken   string `json:"apiToken"`
	ProjectKey string `json:"projectKey"`

	// デフォルト値
	DefaultType     IssueType `json:"defaultType"`
	DefaultSprintID string    `json:"defaultSprintId"`

	// キャッシュ
	Users   []JiraUser   `json:"users"`
	Sprints []JiraSprint `json:"sprints"`

	// サブタスク作成時に最後に選んだ種類
	LastSubtaskTypes []string `json:"lastSubtaskTypes"`
}

// DefaultSettings は初期設定を返します
func DefaultSettings() Settings {
	return Settings{
		DefaultType:      TypeTask,
		Users:            []JiraUser{},
		Sprints:          []JiraSprint{},
		LastSubtaskTypes: []string{},
	}
}

// NewID は行・履歴用の一意なIDを生成します
func NewID() string {
	return uuid.NewString()
}

// StringPtr は文字列のポインタを返します
func StringPtr(s string) *string {
	return &s
}
