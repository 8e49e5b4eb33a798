package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"chamberheat/internal/models"
)

type SettingsSQLite struct {
	db *sql.DB
}

func NewSettingsSQLite(db *sql.DB) *SettingsSQLite {
	return &SettingsSQLite{db: db}
}

const (
	settingsRowID = 1

	upsertSettingsSQL = `
		INSERT INTO settings (id, payload, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			payload=excluded.payload,
			updated_at=excluded.updated_at
	`

	selectSettingsSQL = `SELECT payload FROM settings WHERE id=?`
)

func (r *SettingsSQLite) Save(ctx context.Context, s models.Settings) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	_, err = r.db.ExecContext(ctx, upsertSettingsSQL, settingsRowID, string(payload), time.Now().UTC())
	return err
}

// Load returns the persisted settings; found is false on first boot.
func (r *SettingsSQLite) Load(ctx context.Context) (models.Settings, bool, error) {
	row := r.db.QueryRowContext(ctx, selectSettingsSQL, settingsRowID)

	var payload string
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Settings{}, false, nil
		}
		return models.Settings{}, false, err
	}

	var s models.Settings
	if err := json.Unmarshal([]byte(payload), &s); err != nil {
		return models.Settings{}, false, fmt.Errorf("unmarshal settings: %w", err)
	}
	return s, true, nil
}
