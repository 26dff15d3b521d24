package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"jirabulk/storage"
)

// ローカルストアのキー
const (
	KeySettings     = "jbc-settings"
	KeyDraft        = "jbc-draft"
	KeyEditRows     = "edit-storage"
	KeyHistory      = "history-storage"
	KeyEditHistory  = "edit-history"
	snapshotKeyBase = "snapshot"
)

// loadJSON はキーの値を v に読み込みます。キーが無い場合は false を返します
func loadJSON(ctx context.Context, kv storage.Store, key string, v interface{}) (bool, error) {
	if kv == nil {
		return false, nil
	}

	raw, err := kv.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s の読み込みエラー: %w", key, err)
	}

	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("%s の解析エラー: %w", key, err)
	}
	return true, nil
}

// saveJSON は v を JSON にしてキーに保存します。ストアが nil の場合は何もしません
func saveJSON(ctx context.Context, kv storage.Store, key string, v interface{}) error {
	if kv == nil {
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%s のエンコードエラー: %w", key, err)
	}
	if err := kv.Set(ctx, key, string(data)); err != nil {
		return fmt.Errorf("%s の保存エラー: %w", key, err)
	}
	return nil
}
