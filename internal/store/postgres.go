package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"teamsync/api/internal/workspace"
)

// ErrStaleSnapshot is returned when a write does not carry a LastUpdated
// strictly greater than the stored one.
var ErrStaleSnapshot = errors.New("snapshot is not newer than the stored copy")

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetSnapshot returns the central copy. Before the first write it returns an
// empty snapshot with LastUpdated 0.
func (s *PostgresStore) GetSnapshot(ctx context.Context) (workspace.Snapshot, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM workspace_snapshot WHERE id = 1`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return workspace.Empty(), nil
	}
	if err != nil {
		return workspace.Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	snapshot, err := workspace.Decode(payload)
	if err != nil {
		return workspace.Snapshot{}, err
	}
	return snapshot, nil
}

// SaveSnapshot stores snapshot when its LastUpdated is strictly greater than
// the stored one and returns ErrStaleSnapshot otherwise. The comparison runs
// inside the upsert, so concurrent writers cannot both win.
func (s *PostgresStore) SaveSnapshot(ctx context.Context, snapshot workspace.Snapshot) error {
	payload, err := workspace.Encode(snapshot)
	if err != nil {
		return err
	}

	var accepted bool
	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO workspace_snapshot (id, last_updated, payload, updated_at)
			VALUES (1, $1, $2, NOW())
			ON CONFLICT (id) DO UPDATE
				SET last_updated = EXCLUDED.last_updated,
					payload = EXCLUDED.payload,
					updated_at = NOW()
				WHERE workspace_snapshot.last_updated < EXCLUDED.last_updated
		`, snapshot.LastUpdated, payload)
		if err != nil {
			return fmt.Errorf("upsert snapshot: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("upsert snapshot rows: %w", err)
		}
		accepted = affected > 0

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO snapshot_writes (last_updated, accepted)
			VALUES ($1, $2)
		`, snapshot.LastUpdated, accepted); err != nil {
			return fmt.Errorf("record snapshot write: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !accepted {
		return ErrStaleSnapshot
	}
	return nil
}

// RecentWrites lists the latest central writes, newest first.
func (s *PostgresStore) RecentWrites(ctx context.Context, limit int) ([]WriteRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, last_updated, accepted, written_at
		FROM snapshot_writes
		ORDER BY written_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshot writes: %w", err)
	}
	defer rows.Close()

	var records []WriteRecord
	for rows.Next() {
		var record WriteRecord
		if err := rows.Scan(&record.ID, &record.LastUpdated, &record.Accepted, &record.WrittenAt); err != nil {
			return nil, fmt.Errorf("scan snapshot write: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot writes: %w", err)
	}
	return records, nil
}
