package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// --- SettingsStorer Implementation ---

func (s *PostgresStore) GetSetting(ctx context.Context, key string) (json.RawMessage, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM site_settings WHERE key = $1;`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSettingNotFound
		}
		return nil, fmt.Errorf("store: GetSetting failed to scan row: %w", err)
	}
	return json.RawMessage(value), nil
}

// PutSetting creates or replaces the value stored under key.
func (s *PostgresStore) PutSetting(ctx context.Context, key string, value json.RawMessage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO site_settings (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = CURRENT_TIMESTAMP;`,
		key, []byte(value))
	if err != nil {
		return fmt.Errorf("store: PutSetting failed to upsert %q: %w", key, err)
	}
	return nil
}
