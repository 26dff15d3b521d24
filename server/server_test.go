package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jirabulk/api"
	"jirabulk/config"
	"jirabulk/models"
)

type fakeProxy struct {
	created []api.CreateIssueRequest
	updated map[string]models.IssuePatch
	err     error
}

func (f *fakeProxy) CreateIssue(_ context.Context, req api.CreateIssueRequest) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.created = append(f.created, req)
	return "ABC-1", nil
}

func (f *fakeProxy) UpdateIssue(_ context.Context, key string, patch models.IssuePatch) error {
	if f.err != nil {
		return f.err
	}
	if f.updated == nil {
		f.updated = map[string]models.IssuePatch{}
	}
	f.updated[key] = patch
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		JiraURL:        "https://example.atlassian.net",
		JiraEmail:      "me@example.com",
		JiraAPIToken:   "token",
		JiraProjectKey: "ABC",
		AllowedOrigin:  "http://localhost:5173",
	}
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var decoded map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	}
	return w, decoded
}

func TestHealth(t *testing.T) {
	s := New(testConfig(), &fakeProxy{})
	w, body := do(t, s.Handler(), http.MethodGet, "/api/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSRejectsOtherOrigins(t *testing.T) {
	s := New(testConfig(), &fakeProxy{})
	req := httptest.NewRequest(http.MethodOptions, "/api/jira/issue", nil)
	req.Header.Set("Origin", "http://evil.example.com")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCreateIssue(t *testing.T) {
	proxy := &fakeProxy{}
	s := New(testConfig(), proxy)

	w, body := do(t, s.Handler(), http.MethodPost, "/api/jira/issue",
		`{"type":"Task","summary":"Login","parentKey":"ABC-9","assignee":"acc-1"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ABC-1", body["key"])

	require.Len(t, proxy.created, 1)
	assert.Equal(t, "ABC", proxy.created[0].ProjectKey)
	assert.Equal(t, models.TypeTask, proxy.created[0].Type)
	assert.Equal(t, "ABC-9", proxy.created[0].ParentKey)
	assert.Equal(t, "acc-1", proxy.created[0].Assignee)
}

func TestCreateIssueValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     func(*config.Config)
		body    string
		status  int
		message string
	}{
		{"type missing", nil, `{"summary":"x"}`, http.StatusBadRequest, "type and summary are required"},
		{"summary missing", nil, `{"type":"Epic"}`, http.StatusBadRequest, "type and summary are required"},
		{"empty body", nil, ``, http.StatusBadRequest, "type and summary are required"},
		{"broken json", nil, `{"type":`, http.StatusBadRequest, "invalid JSON body"},
		{"no project", func(c *config.Config) { c.JiraProjectKey = "" }, `{"type":"Epic","summary":"x"}`, http.StatusBadRequest, "projectKey is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			if tt.cfg != nil {
				tt.cfg(cfg)
			}
			proxy := &fakeProxy{}
			w, body := do(t, New(cfg, proxy).Handler(), http.MethodPost, "/api/jira/issue", tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.message, body["error"])
			assert.Empty(t, proxy.created)
		})
	}
}

func TestCreateIssueUpstreamFailure(t *testing.T) {
	proxy := &fakeProxy{err: errors.New("Jira create failed (400): bad")}
	w, body := do(t, New(testConfig(), proxy).Handler(), http.MethodPost, "/api/jira/issue", `{"type":"Epic","summary":"x"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Jira create failed (400): bad", body["error"])
}

func TestCreateIssueNotConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.JiraAPIToken = ""
	w, body := do(t, New(cfg, &fakeProxy{}).Handler(), http.MethodPost, "/api/jira/issue", `{"type":"Epic","summary":"x"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, body["error"], "JIRA_API_TOKEN")
}

func TestUpdateIssue(t *testing.T) {
	proxy := &fakeProxy{}
	h := New(testConfig(), proxy).Handler()

	w, body := do(t, h, http.MethodPost, "/api/jira/issue/update", `{"key":"ABC-1","description":""}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["ok"])

	patch := proxy.updated["ABC-1"]
	assert.Nil(t, patch.Summary)
	require.NotNil(t, patch.Description)
	assert.Equal(t, "", *patch.Description)

	w, body = do(t, h, http.MethodPost, "/api/jira/issue/update", `{"summary":"x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "key is required", body["error"])

	w, body = do(t, h, http.MethodPost, "/api/jira/issue/update", `{"key":"ABC-2"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "summary or description is required", body["error"])

	proxy.err = errors.New("Jira update failed (404): missing")
	w, body = do(t, h, http.MethodPost, "/api/jira/issue/update", `{"key":"ABC-3","summary":"y"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Jira update failed (404): missing", body["error"])
}
