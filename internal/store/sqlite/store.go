// Package sqlite is the local vault store: a store.Adapter over a SQLite
// database (modernc.org/sqlite, no cgo) with one table per collection.
// The same database also holds the credential table used by the local
// authentication provider and the journal's intent table.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/keydozer/internal/common"
	"github.com/dmitrijs2005/keydozer/internal/dbx"
	"github.com/dmitrijs2005/keydozer/internal/store"
)

// Store implements store.Adapter using a DBTX (either *sql.DB or *sql.Tx).
type Store struct {
	db dbx.DBTX
}

func New(db dbx.DBTX) *Store {
	return &Store{db: db}
}

// table names come from a closed set, never from callers
func table(coll store.Collection) (string, error) {
	if err := store.CheckCollection(coll); err != nil {
		return "", err
	}
	return string(coll), nil
}

func (s *Store) GetByID(ctx context.Context, coll store.Collection, id string) (store.Record, error) {
	t, err := table(coll)
	if err != nil {
		return store.Record{}, err
	}

	query := fmt.Sprintf(`SELECT id, owner_id, body, updated_at FROM %s WHERE id = ?`, t)
	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Record{}, common.ErrorNotFound
		}
		return store.Record{}, fmt.Errorf("failed to get %s/%s: %w", t, id, err)
	}
	return rec, nil
}

func (s *Store) PutByID(ctx context.Context, coll store.Collection, id string, rec store.Record) error {
	t, err := table(coll)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, owner_id, body, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET owner_id = excluded.owner_id,
			body = excluded.body,
			updated_at = excluded.updated_at`, t)
	_, err = s.db.ExecContext(ctx, query, id, rec.OwnerID, rec.Body, rec.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to upsert %s/%s: %w", t, id, err)
	}
	return nil
}

// PutBatch upserts recs in a single transaction. A Store already bound to a
// transaction writes into it and leaves commit to the caller.
func (s *Store) PutBatch(ctx context.Context, coll store.Collection, recs []store.Record) error {
	if _, err := table(coll); err != nil {
		return err
	}
	db, ok := s.db.(*sql.DB)
	if !ok {
		return s.putAll(ctx, coll, recs)
	}
	return dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return New(tx).putAll(ctx, coll, recs)
	})
}

func (s *Store) putAll(ctx context.Context, coll store.Collection, recs []store.Record) error {
	for _, rec := range recs {
		if err := s.PutByID(ctx, coll, rec.ID, rec); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) DeleteByID(ctx context.Context, coll store.Collection, id string) error {
	t, err := table(coll)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, t), id); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", t, id, err)
	}
	return nil
}

func (s *Store) ListByOwner(ctx context.Context, coll store.Collection, ownerID string) ([]store.Record, error) {
	t, err := table(coll)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT id, owner_id, body, updated_at FROM %s WHERE owner_id = ? ORDER BY id`, t)
	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", t, err)
	}
	defer rows.Close()

	var out []store.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", t, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s rows: %w", t, err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (store.Record, error) {
	var (
		rec store.Record
		ts  string
	)
	if err := row.Scan(&rec.ID, &rec.OwnerID, &rec.Body, &ts); err != nil {
		return store.Record{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return store.Record{}, fmt.Errorf("bad updated_at %q: %w", ts, err)
	}
	rec.UpdatedAt = t
	return rec, nil
}
