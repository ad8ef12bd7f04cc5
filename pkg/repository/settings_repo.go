package repository

import (
	"context"
	"database/sql"
	"errors"
)

// SettingsRepository is a small durable key-value table used to persist
// the runtime mode flags across restarts.
type SettingsRepository struct {
	db Querier
}

// NewSettingsRepository creates a new settings repository over a *sql.DB
// or *sql.Tx.
func NewSettingsRepository(db Querier) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get retrieves a setting value. The second return value reports whether
// the key was present.
func (r *SettingsRepository) Get(ctx context.Context, key string) (string, bool, error) {
	query := `SELECT value FROM settings WHERE key = $1`
	var value string
	err := r.db.QueryRowContext(ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set upserts a setting value.
func (r *SettingsRepository) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`
	_, err := r.db.ExecContext(ctx, query, key, value)
	return err
}
