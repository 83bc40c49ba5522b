package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/keydozer/internal/dbx"
)

// SQLiteStore keeps intents in the local database's intents table.
type SQLiteStore struct {
	db dbx.DBTX
}

func NewSQLiteStore(db dbx.DBTX) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Save(ctx context.Context, in Intent) error {
	record, sum, err := seal(in)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO intents (id, kind, owner_id, state, record, checksum, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET state = excluded.state,
			record = excluded.record,
			checksum = excluded.checksum,
			updated_at = excluded.updated_at
	`, in.ID, string(in.Kind), in.OwnerID, string(in.State), record, sum, in.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to save intent %s: %w", in.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, id string) (Intent, error) {
	var record, sum []byte
	err := s.db.QueryRowContext(ctx, `SELECT record, checksum FROM intents WHERE id = ?`, id).Scan(&record, &sum)
	if errors.Is(err, sql.ErrNoRows) {
		return Intent{}, ErrNotFound
	}
	if err != nil {
		return Intent{}, fmt.Errorf("failed to load intent %s: %w", id, err)
	}
	return open(record, sum)
}

func (s *SQLiteStore) Pending(ctx context.Context) ([]Intent, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, record, checksum FROM intents WHERE state = ?`, string(StatePending))
	if err != nil {
		return nil, fmt.Errorf("failed to list intents: %w", err)
	}
	defer rows.Close()

	var out []Intent
	for rows.Next() {
		var (
			id          string
			record, sum []byte
		)
		if err := rows.Scan(&id, &record, &sum); err != nil {
			return nil, fmt.Errorf("failed to scan intent row: %w", err)
		}
		in, err := open(record, sum)
		if err != nil {
			return nil, fmt.Errorf("intent %s: %w", id, err)
		}
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate intent rows: %w", err)
	}
	return out, nil
}
