package services

import (
	"context"
	"strings"
	"sync"

	"jirabulk/config"
	"jirabulk/models"
	"jirabulk/storage"
)

// SettingsStore はユーザー設定を保持します (jbc-settings に保存)
type SettingsStore struct {
	mu       sync.Mutex
	kv       storage.Store
	settings models.Settings
}

// NewSettingsStore は初期設定のストアを作成します
func NewSettingsStore(kv storage.Store) *SettingsStore {
	return &SettingsStore{kv: kv, settings: models.DefaultSettings()}
}

// Load は保存済みの設定を読み込みます
func (s *SettingsStore) Load(ctx context.Context) error {
	loaded := models.DefaultSettings()
	found, err := loadJSON(ctx, s.kv, KeySettings, &loaded)
	if err != nil || !found {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = loaded
	return nil
}

func (s *SettingsStore) update(ctx context.Context, fn func(*models.Settings)) error {
	s.mu.Lock()
	fn(&s.settings)
	snapshot := s.settings
	s.mu.Unlock()

	return saveJSON(ctx, s.kv, KeySettings, snapshot)
}

// Get は現在の設定を返します
func (s *SettingsStore) Get() models.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.settings
	out.Users = append([]models.JiraUser{}, s.settings.Users...)
	out.Sprints = append([]models.JiraSprint{}, s.settings.Sprints...)
	out.LastSubtaskTypes = append([]string{}, s.settings.LastSubtaskTypes...)
	return out
}

// Users はキャッシュ済みのユーザー一覧を返します
func (s *SettingsStore) Users() []models.JiraUser {
	return s.Get().Users
}

// Connection はJIRA接続に関する設定項目です。空の項目は変更しません
type Connection struct {
	JiraURL    string
	Email      string
	APIToken   string
	ProjectKey string
}

// SetConnection は接続設定を更新します
func (s *SettingsStore) SetConnection(ctx context.Context, conn Connection) error {
	return s.update(ctx, func(st *models.Settings) {
		if conn.JiraURL != "" {
			st.JiraURL = conn.JiraURL
		}
		if conn.Email != "" {
			st.Email = conn.Email
		}
		if conn.APIToken != "" {
			st.APIToken = conn.APIToken
		}
		if conn.ProjectKey != "" {
			st.ProjectKey = conn.ProjectKey
		}
	})
}

// SetDefaults は既定の種別とスプリントを更新します
func (s *SettingsStore) SetDefaults(ctx context.Context, defaultType models.IssueType, sprintID string) error {
	return s.update(ctx, func(st *models.Settings) {
		if defaultType != "" {
			st.DefaultType = models.CoerceIssueType(string(defaultType))
		}
		st.DefaultSprintID = sprintID
	})
}

// SetCache はユーザー・スプリントのキャッシュを更新します。nil の項目は変更しません
func (s *SettingsStore) SetCache(ctx context.Context, users []models.JiraUser, sprints []models.JiraSprint) error {
	return s.update(ctx, func(st *models.Settings) {
		if users != nil {
			st.Users = users
		}
		if sprints != nil {
			st.Sprints = sprints
		}
	})
}

// UpdateLastSubtaskTypes は最後に選んだサブタスク種別を記録します
func (s *SettingsStore) UpdateLastSubtaskTypes(ctx context.Context, types []string) error {
	return s.update(ctx, func(st *models.Settings) {
		st.LastSubtaskTypes = append([]string{}, types...)
	})
}

// Reset は初期設定に戻します
func (s *SettingsStore) Reset(ctx context.Context) error {
	return s.update(ctx, func(st *models.Settings) {
		*st = models.DefaultSettings()
	})
}

// ClearCache はユーザー・スプリントのキャッシュを空にします
func (s *SettingsStore) ClearCache(ctx context.Context) error {
	return s.update(ctx, func(st *models.Settings) {
		st.Users = []models.JiraUser{}
		st.Sprints = []models.JiraSprint{}
	})
}

// ApplyTo は保存済みの接続設定で cfg を上書きします (空の項目は上書きしない)
func (s *SettingsStore) ApplyTo(cfg *config.Config) {
	st := s.Get()
	if st.JiraURL != "" {
		cfg.JiraURL = strings.TrimRight(st.JiraURL, "/")
	}
	if st.Email != "" {
		cfg.JiraEmail = st.Email
	}
	if st.APIToken != "" {
		cfg.JiraAPIToken = st.APIToken
	}
	if st.ProjectKey != "" {
		cfg.JiraProjectKey = st.ProjectKey
	}
}

// SubtaskTypes はサブタスク展開で選べる種別です
var SubtaskTypes = []string{
	"기획", "레벨", "클라", "테크", "UI", "서버",
	"아트C-2D", "아트C-3D", "아트B-2D", "아트B-3D", "애니", "VFX", "SFX",
}
