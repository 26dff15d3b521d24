package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"jirabulk/models"
	"jirabulk/storage"
)

// HistoryStore は作成・更新の履歴を新しい順に保持します
type HistoryStore struct {
	mu        sync.Mutex
	kv        storage.Store
	creations []models.CreationRecord
	edits     []models.EditRecord
}

// NewHistoryStore は空の履歴ストアを作成します
func NewHistoryStore(kv storage.Store) *HistoryStore {
	return &HistoryStore{
		kv:        kv,
		creations: []models.CreationRecord{},
		edits:     []models.EditRecord{},
	}
}

// Load は保存済みの履歴を読み込みます
func (h *HistoryStore) Load(ctx context.Context) error {
	var creations []models.CreationRecord
	if _, err := loadJSON(ctx, h.kv, KeyHistory, &creations); err != nil {
		return err
	}
	var edits []models.EditRecord
	if _, err := loadJSON(ctx, h.kv, KeyEditHistory, &edits); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if creations != nil {
		h.creations = creations
	}
	if edits != nil {
		h.edits = edits
	}
	return nil
}

// AddCreation は作成履歴を先頭に追加して保存します
func (h *HistoryStore) AddCreation(ctx context.Context, record models.CreationRecord) error {
	h.mu.Lock()
	h.creations = append([]models.CreationRecord{record}, h.creations...)
	creations := h.copyCreations()
	h.mu.Unlock()

	return saveJSON(ctx, h.kv, KeyHistory, creations)
}

// AddEdit は更新履歴を先頭に追加して保存します
func (h *HistoryStore) AddEdit(ctx context.Context, record models.EditRecord) error {
	h.mu.Lock()
	h.edits = append([]models.EditRecord{record}, h.edits...)
	edits := h.copyEdits()
	h.mu.Unlock()

	return saveJSON(ctx, h.kv, KeyEditHistory, edits)
}

// Creations は作成履歴を新しい順に返します
func (h *HistoryStore) Creations() []models.CreationRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.copyCreations()
}

// Edits は更新履歴を新しい順に返します
func (h *HistoryStore) Edits() []models.EditRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.copyEdits()
}

// Creation はIDで作成履歴を探します。ID の前方一致も受け付けます
func (h *HistoryStore) Creation(id string) (models.CreationRecord, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var match *models.CreationRecord
	for i := range h.creations {
		rec := &h.creations[i]
		if rec.ID == id {
			return *rec, true
		}
		if id != "" && len(rec.ID) > len(id) && rec.ID[:len(id)] == id {
			if match != nil {
				// 前方一致が複数ある場合は曖昧なので見つからない扱い
				return models.CreationRecord{}, false
			}
			match = rec
		}
	}
	if match == nil {
		return models.CreationRecord{}, false
	}
	return *match, true
}

// Clear は作成履歴と更新履歴を削除します
func (h *HistoryStore) Clear(ctx context.Context) error {
	h.mu.Lock()
	h.creations = []models.CreationRecord{}
	h.edits = []models.EditRecord{}
	h.mu.Unlock()

	if err := saveJSON(ctx, h.kv, KeyHistory, []models.CreationRecord{}); err != nil {
		return err
	}
	return saveJSON(ctx, h.kv, KeyEditHistory, []models.EditRecord{})
}

// ReplaceFromImport は作成履歴を取り込んだ内容で置き換えます
func (h *HistoryStore) ReplaceFromImport(ctx context.Context, records []models.CreationRecord) error {
	if records == nil {
		records = []models.CreationRecord{}
	}

	h.mu.Lock()
	h.creations = records
	creations := h.copyCreations()
	h.mu.Unlock()

	return saveJSON(ctx, h.kv, KeyHistory, creations)
}

func (h *HistoryStore) copyCreations() []models.CreationRecord {
	out := make([]models.CreationRecord, len(h.creations))
	copy(out, h.creations)
	return out
}

func (h *HistoryStore) copyEdits() []models.EditRecord {
	out := make([]models.EditRecord, len(h.edits))
	copy(out, h.edits)
	return out
}

// Snapshot はプロジェクトごとに保存するデータのスナップショットです
type Snapshot struct {
	ProjectKey string          `json:"projectKey"`
	Kind       string          `json:"kind"`
	SavedAt    string          `json:"savedAt"`
	Payload    json.RawMessage `json:"payload"`
}

// SnapshotKey はスナップショットの保存キーを返します
func SnapshotKey(projectKey, kind string) string {
	if projectKey == "" {
		projectKey = "default"
	}
	return fmt.Sprintf("%s:%s:%s", snapshotKeyBase, projectKey, kind)
}

// SaveSnapshot は payload を JSON にしてプロジェクト×種類のキーに保存します
func (h *HistoryStore) SaveSnapshot(ctx context.Context, projectKey, kind string, payload interface{}) (string, error) {
	if kind == "" {
		return "", fmt.Errorf("snapshot kind is required")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("スナップショットのエンコードエラー: %w", err)
	}

	key := SnapshotKey(projectKey, kind)
	snap := Snapshot{
		ProjectKey: projectKey,
		Kind:       kind,
		SavedAt:    time.Now().UTC().Format(time.RFC3339),
		Payload:    raw,
	}
	if err := saveJSON(ctx, h.kv, key, snap); err != nil {
		return "", err
	}
	return key, nil
}

// LoadSnapshot は保存済みのスナップショットを返します
func (h *HistoryStore) LoadSnapshot(ctx context.Context, projectKey, kind string) (*Snapshot, bool, error) {
	var snap Snapshot
	found, err := loadJSON(ctx, h.kv, SnapshotKey(projectKey, kind), &snap)
	if err != nil || !found {
		return nil, false, err
	}
	return &snap, true, nil
}
