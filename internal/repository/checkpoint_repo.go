package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"chamberheat/internal/control"
	"chamberheat/internal/models"
)

type CheckpointSQLite struct {
	db *sql.DB
}

func NewCheckpointSQLite(db *sql.DB) *CheckpointSQLite {
	return &CheckpointSQLite{db: db}
}

// The checkpoint is a single row. The whole RunState travels as one JSON
// column so the upsert is atomic: a reader sees either the previous
// checkpoint or the new one, never a torn mix.
const (
	checkpointRowID = 1

	upsertCheckpointSQL = `
		INSERT INTO checkpoint (id, state, written_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state=excluded.state,
			written_at=excluded.written_at
	`

	selectCheckpointSQL = `SELECT state, written_at FROM checkpoint WHERE id=?`

	deleteCheckpointSQL = `DELETE FROM checkpoint WHERE id=?`
)

// Save overwrites the checkpoint slot. WrittenAt is set if zero, normalized
// to UTC otherwise.
func (r *CheckpointSQLite) Save(ctx context.Context, cp models.Checkpoint) error {
	ts := cp.WrittenAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	} else {
		ts = ts.UTC()
	}

	payload, err := json.Marshal(cp.State)
	if err != nil {
		return fmt.Errorf("marshal checkpoint state: %w", err)
	}

	_, err = r.db.ExecContext(ctx, upsertCheckpointSQL, checkpointRowID, string(payload), ts)
	return err
}

// Load reads the checkpoint slot. The second return value is false when no
// checkpoint exists. A malformed payload is reported as CheckpointCorrupt;
// callers treat that as no checkpoint, never as a crash.
func (r *CheckpointSQLite) Load(ctx context.Context) (models.Checkpoint, bool, error) {
	row := r.db.QueryRowContext(ctx, selectCheckpointSQL, checkpointRowID)

	var (
		payload string
		cp      models.Checkpoint
	)
	if err := row.Scan(&payload, &cp.WrittenAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Checkpoint{}, false, nil
		}
		return models.Checkpoint{}, false, err
	}

	if err := json.Unmarshal([]byte(payload), &cp.State); err != nil {
		return models.Checkpoint{}, false, fmt.Errorf("%w: %v", control.ErrCheckpointCorrupt, err)
	}
	cp.WrittenAt = cp.WrittenAt.UTC()
	return cp, true, nil
}

// Delete clears the slot. Deleting an empty slot is not an error.
func (r *CheckpointSQLite) Delete(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, deleteCheckpointSQL, checkpointRowID)
	return err
}
