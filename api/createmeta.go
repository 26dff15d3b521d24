package api

import (
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// createmeta レスポンス (expand=projects.issuetypes.fields)
type createMetaResponse struct {
	Projects []struct {
		Key        string `json:"key"`
		IssueTypes []struct {
			Name   string               `json:"name"`
			Fields map[string]FieldMeta `json:"fields"`
		} `json:"issuetypes"`
	} `json:"projects"`
}

// FieldMeta は createmeta が返すフィールド定義です
type FieldMeta struct {
	Name     string      `json:"name"`
	Required bool        `json:"required"`
	Schema   FieldSchema `json:"schema"`
}

// FieldSchema はフィールドの型情報です
type FieldSchema struct {
	Type   string `json:"type"`
	System string `json:"system,omitempty"`
	Custom string `json:"custom,omitempty"`
}

// IssueMeta はプロジェクト×イシュータイプごとに検出したフィールドIDです。
// 空文字は「そのプロジェクトでは使えない」ことを意味します。
type IssueMeta struct {
	EpicNameFieldID  string
	EpicLinkFieldID  string
	SprintFieldID    string
	StartDateFieldID string
	HasDueDate       bool
}

// detectIssueMeta はフィールド定義から Epic Name / Epic Link などのIDを探します
func detectIssueMeta(fields map[string]FieldMeta) IssueMeta {
	meta := IssueMeta{}
	for id, f := range fields {
		name := strings.ToLower(f.Name)
		custom := strings.ToLower(f.Schema.Custom)

		switch {
		case strings.Contains(custom, "gh-epic-link") || strings.Contains(custom, "epic-link") || strings.Contains(name, "epic link"):
			meta.EpicLinkFieldID = pickLower(meta.EpicLinkFieldID, id)
		case strings.Contains(custom, "gh-epic-label") || strings.Contains(custom, "epic-label") || strings.Contains(name, "epic name"):
			meta.EpicNameFieldID = pickLower(meta.EpicNameFieldID, id)
		case strings.Contains(custom, "gh-sprint"):
			meta.SprintFieldID = pickLower(meta.SprintFieldID, id)
		case name == "start date":
			meta.StartDateFieldID = pickLower(meta.StartDateFieldID, id)
		case id == "duedate" || f.Schema.System == "duedate":
			meta.HasDueDate = true
		}
	}
	return meta
}

// マップの走査順に依存しないよう、候補が複数あれば辞書順で小さいIDを採用
func pickLower(current, candidate string) string {
	if current == "" || candidate < current {
		return candidate
	}
	return current
}

// MetaCache は createmeta の結果を TTL 付きで保持します
type MetaCache struct {
	lru *expirable.LRU[string, IssueMeta]
}

// NewMetaCache は TTL 付きキャッシュを作成します
func NewMetaCache(ttl time.Duration) *MetaCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &MetaCache{lru: expirable.NewLRU[string, IssueMeta](256, nil, ttl)}
}

func metaCacheKey(projectKey, issueType string) string {
	return projectKey + ":" + issueType
}

// Get はキャッシュ済みのメタ情報を返します
func (c *MetaCache) Get(projectKey, issueType string) (IssueMeta, bool) {
	return c.lru.Get(metaCacheKey(projectKey, issueType))
}

// Put はメタ情報をキャッシュします
func (c *MetaCache) Put(projectKey, issueType string, meta IssueMeta) {
	c.lru.Add(metaCacheKey(projectKey, issueType), meta)
}

// Purge はすべてのキャッシュを破棄します
func (c *MetaCache) Purge() {
	c.lru.Purge()
}
