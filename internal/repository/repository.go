package repository

import (
	"context"
	"database/sql"
	"time"

	"chamberheat/internal/models"
)

// CheckpointRepo owns the single durable checkpoint slot. Only one run
// exists at a time, so there is no run identifier: Save overwrites, Load
// reads the slot, Delete clears it.
type CheckpointRepo interface {
	Save(ctx context.Context, cp models.Checkpoint) error
	Load(ctx context.Context) (models.Checkpoint, bool, error)
	Delete(ctx context.Context) error
}

type EventRepo interface {
	Append(ctx context.Context, e models.ChamberEvent) error
	List(ctx context.Context, from, to time.Time, typ string) ([]models.ChamberEvent, error)
}

// SettingsRepo persists tuning knobs and material presets.
type SettingsRepo interface {
	Load(ctx context.Context) (models.Settings, bool, error)
	Save(ctx context.Context, s models.Settings) error
}

type Repository struct {
	Checkpoints CheckpointRepo
	Events      EventRepo
	Settings    SettingsRepo
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		Checkpoints: NewCheckpointSQLite(db),
		Events:      NewEventSQLite(db),
		Settings:    NewSettingsSQLite(db),
	}
}
