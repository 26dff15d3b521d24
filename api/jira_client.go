package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"jirabulk/config"
	"jirabulk/models"
	"jirabulk/utils"
)

// JiraClient はJIRA REST API (v3) とのやり取りを処理します
type JiraClient struct {
	config *config.Config
	client *http.Client
	meta   *MetaCache
	log    *slog.Logger

	retryInterval time.Duration
}

// NewJiraClient は新しいJIRAクライアントを作成します
func NewJiraClient(cfg *config.Config) *JiraClient {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &JiraClient{
		config:        cfg,
		client:        &http.Client{Timeout: timeout},
		meta:          NewMetaCache(cfg.MetaCacheTTL),
		log:           utils.WithComponent("jira"),
		retryInterval: 500 * time.Millisecond,
	}
}

// BaseURL は接続先のJIRA URLを返します
func (j *JiraClient) BaseURL() string {
	return j.config.JiraURL
}

// ProjectKey は既定のプロジェクトキーを返します
func (j *JiraClient) ProjectKey() string {
	return j.config.JiraProjectKey
}

// CheckAuth はJIRA認証をチェックします
func (j *JiraClient) CheckAuth(ctx context.Context) (*models.JiraUser, error) {
	body, err := j.doRequest(ctx, "auth", http.MethodGet, j.config.JiraURL+"/rest/api/3/myself", nil, true)
	if err != nil {
		return nil, err
	}

	var me models.JiraUser
	if err := json.Unmarshal(body, &me); err != nil {
		return nil, fmt.Errorf("レスポンス解析エラー: %w", err)
	}
	return &me, nil
}

// CreateIssueRequest はイシュー作成に必要な論理フィールドです
type CreateIssueRequest struct {
	Type        models.IssueType
	ProjectKey  string
	Summary     string
	Description string
	Assignee    string
	ParentKey   string
	Sprint      string
	StartDate   string
	DueDate     string
}

// CreateEpic は Epic を作成してキーを返します
func (j *JiraClient) CreateEpic(ctx context.Context, row models.TicketRow) (string, error) {
	return j.CreateIssue(ctx, requestFromRow(models.TypeEpic, row))
}

// CreateTask は Task を作成してキーを返します
func (j *JiraClient) CreateTask(ctx context.Context, row models.TicketRow) (string, error) {
	return j.CreateIssue(ctx, requestFromRow(models.TypeTask, row))
}

func requestFromRow(t models.IssueType, row models.TicketRow) CreateIssueRequest {
	req := CreateIssueRequest{
		Type:        t,
		Summary:     row.Summary,
		Description: row.Description,
		Assignee:    row.Assignee,
		Sprint:      row.Sprint,
		StartDate:   row.StartDate,
		DueDate:     row.DueDate,
	}
	if t == models.TypeTask {
		req.ParentKey = row.ParentKey
	}
	return req
}

// CreateIssue はJIRAイシューを作成します
func (j *JiraClient) CreateIssue(ctx context.Context, req CreateIssueRequest) (string, error) {
	if strings.TrimSpace(req.Summary) == "" {
		return "", ErrSummaryRequired
	}
	projectKey := req.ProjectKey
	if projectKey == "" {
		projectKey = j.config.JiraProjectKey
	}
	if projectKey == "" {
		return "", fmt.Errorf("projectKey is required")
	}

	meta, err := j.CreateMeta(ctx, projectKey, string(req.Type))
	if err != nil {
		return "", err
	}

	fields := BuildCreateFields(projectKey, req, meta)
	payloadBytes, err := json.Marshal(map[string]interface{}{"fields": fields})
	if err != nil {
		return "", fmt.Errorf("JSONエンコードエラー: %w", err)
	}

	body, err := j.doRequest(ctx, "create", http.MethodPost, j.config.JiraURL+"/rest/api/3/issue", payloadBytes, false)
	if err != nil {
		return "", err
	}

	var created struct {
		ID  string `json:"id"`
		Key string `json:"key"`
	}
	if err := json.Unmarshal(body, &created); err != nil || created.Key == "" {
		return "", ErrMissingIssueKey
	}

	j.log.Debug("イシューを作成しました", "key", created.Key, "type", req.Type)
	return created.Key, nil
}

// BuildCreateFields はプロジェクトの種類 (company-managed / team-managed) に合わせて
// 作成用のフィールドマップを組み立てます
func BuildCreateFields(projectKey string, req CreateIssueRequest, meta IssueMeta) map[string]interface{} {
	fields := map[string]interface{}{
		"project":     map[string]string{"key": projectKey},
		"issuetype":   map[string]string{"name": string(req.Type)},
		"summary":     req.Summary,
		"description": PlainTextToADF(req.Description),
	}
	if req.Assignee != "" {
		fields["assignee"] = map[string]string{"accountId": req.Assignee}
	}

	if req.Type == models.TypeEpic && meta.EpicNameFieldID != "" {
		fields[meta.EpicNameFieldID] = req.Summary
	}

	if req.Type == models.TypeTask && req.ParentKey != "" {
		if meta.EpicLinkFieldID != "" {
			fields[meta.EpicLinkFieldID] = req.ParentKey
		} else {
			// team-managed プロジェクトには Epic Link がないので parent を使う
			fields["parent"] = map[string]string{"key": req.ParentKey}
		}
	}

	// 以下はプロジェクトに該当フィールドがある場合のみ送る
	if meta.SprintFieldID != "" && req.Sprint != "" {
		if id, err := strconv.Atoi(req.Sprint); err == nil {
			fields[meta.SprintFieldID] = id
		}
	}
	if meta.StartDateFieldID != "" {
		fields[meta.StartDateFieldID] = req.StartDate
	}
	if meta.HasDueDate {
		fields["duedate"] = req.DueDate
	}

	return CleanFields(fields)
}

// CreateMeta はプロジェクト×イシュータイプのフィールド定義を取得します (TTL付きキャッシュ)
func (j *JiraClient) CreateMeta(ctx context.Context, projectKey, issueType string) (IssueMeta, error) {
	if meta, ok := j.meta.Get(projectKey, issueType); ok {
		return meta, nil
	}

	params := url.Values{
		"projectKeys":    {projectKey},
		"issuetypeNames": {issueType},
		"expand":         {"projects.issuetypes.fields"},
	}
	apiURL := fmt.Sprintf("%s/rest/api/3/issue/createmeta?%s", j.config.JiraURL, params.Encode())

	body, err := j.doRequest(ctx, "createmeta", http.MethodGet, apiURL, nil, true)
	if err != nil {
		return IssueMeta{}, err
	}

	var resp createMetaResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return IssueMeta{}, fmt.Errorf("createmeta 解析エラー: %w", err)
	}

	var fields map[string]FieldMeta
	if len(resp.Projects) > 0 && len(resp.Projects[0].IssueTypes) > 0 {
		fields = resp.Projects[0].IssueTypes[0].Fields
	}
	meta := detectIssueMeta(fields)
	j.meta.Put(projectKey, issueType, meta)

	j.log.Debug("createmeta を取得しました",
		"project", projectKey, "issueType", issueType,
		"epicName", meta.EpicNameFieldID, "epicLink", meta.EpicLinkFieldID)
	return meta, nil
}

// UpdateIssue は summary / description を部分更新します
func (j *JiraClient) UpdateIssue(ctx context.Context, key string, patch models.IssuePatch) error {
	if key == "" {
		return ErrKeyRequired
	}
	if patch.Empty() {
		return fmt.Errorf("summary or description is required")
	}

	fields := map[string]interface{}{}
	if patch.Summary != nil {
		fields["summary"] = *patch.Summary
	}
	if patch.Description != nil {
		if adf := PlainTextToADF(*patch.Description); adf != nil {
			fields["description"] = adf
		} else {
			// 空の説明は null を送ってクリアする
			fields["description"] = nil
		}
	}

	payloadBytes, err := json.Marshal(map[string]interface{}{"fields": fields})
	if err != nil {
		return fmt.Errorf("JSONエンコードエラー: %w", err)
	}

	apiURL := fmt.Sprintf("%s/rest/api/3/issue/%s", j.config.JiraURL, url.PathEscape(key))
	_, err = j.doRequest(ctx, "update", http.MethodPut, apiURL, payloadBytes, true)
	return err
}

// FetchAssignableUsers はプロジェクトに割り当て可能なユーザー一覧を取得します
func (j *JiraClient) FetchAssignableUsers(ctx context.Context, projectKey string) ([]models.JiraUser, error) {
	if projectKey == "" {
		projectKey = j.config.JiraProjectKey
	}

	var all []models.JiraUser
	const pageSize = 100
	for startAt := 0; ; startAt += pageSize {
		params := url.Values{
			"project":    {projectKey},
			"startAt":    {strconv.Itoa(startAt)},
			"maxResults": {strconv.Itoa(pageSize)},
		}
		apiURL := fmt.Sprintf("%s/rest/api/3/user/assignable/search?%s", j.config.JiraURL, params.Encode())
		body, err := j.doRequest(ctx, "users", http.MethodGet, apiURL, nil, true)
		if err != nil {
			return nil, err
		}

		var page []models.JiraUser
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("ユーザー一覧の解析エラー: %w", err)
		}
		all = append(all, page...)
		if len(page) < pageSize {
			break
		}
	}
	return all, nil
}

// doRequest は認証付きリクエストを送り、レスポンスボディを返します。
// idempotent でないリクエスト (作成) は 429 の場合のみ再試行します。
func (j *JiraClient) doRequest(ctx context.Context, op, method, apiURL string, body []byte, idempotent bool) ([]byte, error) {
	if j.config.JiraURL == "" {
		return nil, config.ErrNotConfigured
	}

	var respBody []byte
	attempt := func() error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, apiURL, reader)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("リクエスト作成エラー: %w", err))
		}
		req.SetBasicAuth(j.config.JiraEmail, j.config.JiraAPIToken)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := j.client.Do(req)
		if err != nil {
			if !idempotent || ctx.Err() != nil {
				return backoff.Permanent(fmt.Errorf("リクエスト送信エラー: %w", err))
			}
			return fmt.Errorf("リクエスト送信エラー: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("レスポンス読み込みエラー: %w", err))
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			apiErr := &APIError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
			retry := apiErr.Retryable()
			if !idempotent {
				retry = resp.StatusCode == http.StatusTooManyRequests
			}
			if retry {
				j.log.Warn("JIRA API が一時的なエラーを返しました。再試行します", "op", op, "status", resp.StatusCode)
				return apiErr
			}
			return backoff.Permanent(apiErr)
		}

		respBody = data
		return nil
	}

	if err := backoff.Retry(attempt, j.newBackoff(ctx)); err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return nil, perm.Err
		}
		return nil, err
	}
	return respBody, nil
}

func (j *JiraClient) newBackoff(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = j.retryInterval
	bo.MaxElapsedTime = 30 * time.Second
	maxRetries := j.config.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(bo, uint64(maxRetries)), ctx)
}
