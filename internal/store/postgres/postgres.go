// Package postgres is a remote vault store on PostgreSQL. All collections
// share one table keyed by (collection, id); schema changes ship as goose
// migrations embedded in the binary.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/keydozer/internal/common"
	"github.com/dmitrijs2005/keydozer/internal/dbx"
	"github.com/dmitrijs2005/keydozer/internal/store"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, "migrations")
}

// Open connects with the pgx stdlib driver and migrates the schema.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}
	return db, nil
}

type Store struct {
	db dbx.DBTX
}

func New(db dbx.DBTX) *Store {
	return &Store{db: db}
}

func (s *Store) GetByID(ctx context.Context, coll store.Collection, id string) (store.Record, error) {
	if err := store.CheckCollection(coll); err != nil {
		return store.Record{}, err
	}

	query :=
		`SELECT id, owner_id, body, updated_at FROM vault_records
		 WHERE collection = $1 AND id = $2
		 `

	var rec store.Record
	err := s.db.QueryRowContext(ctx, query, string(coll), id).Scan(&rec.ID, &rec.OwnerID, &rec.Body, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Record{}, common.ErrorNotFound
		}
		return store.Record{}, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

func (s *Store) PutByID(ctx context.Context, coll store.Collection, id string, rec store.Record) error {
	if err := store.CheckCollection(coll); err != nil {
		return err
	}

	query :=
		`INSERT INTO vault_records (collection, id, owner_id, body, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (collection, id) DO UPDATE
		 SET owner_id = EXCLUDED.owner_id, body = EXCLUDED.body, updated_at = EXCLUDED.updated_at
		 `

	if _, err := s.db.ExecContext(ctx, query, string(coll), id, rec.OwnerID, rec.Body, rec.UpdatedAt.UTC()); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (s *Store) DeleteByID(ctx context.Context, coll store.Collection, id string) error {
	if err := store.CheckCollection(coll); err != nil {
		return err
	}

	query := `DELETE FROM vault_records WHERE collection = $1 AND id = $2`

	if _, err := s.db.ExecContext(ctx, query, string(coll), id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (s *Store) ListByOwner(ctx context.Context, coll store.Collection, ownerID string) ([]store.Record, error) {
	if err := store.CheckCollection(coll); err != nil {
		return nil, err
	}

	query :=
		`SELECT id, owner_id, body, updated_at FROM vault_records
		 WHERE collection = $1 AND owner_id = $2
		 ORDER BY id
		 `

	rows, err := s.db.QueryContext(ctx, query, string(coll), ownerID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []store.Record
	for rows.Next() {
		var rec store.Record
		if err := rows.Scan(&rec.ID, &rec.OwnerID, &rec.Body, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
