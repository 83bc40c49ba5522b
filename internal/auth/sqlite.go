package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/keydozer/internal/clock"
	"github.com/dmitrijs2005/keydozer/internal/common"
	"github.com/dmitrijs2005/keydozer/internal/cryptox"
	"github.com/dmitrijs2005/keydozer/internal/dbx"
)

// SQLiteProvider keeps argon2id password hashes in the local database's
// credentials table.
type SQLiteProvider struct {
	db     dbx.DBTX
	params cryptox.KDFParams
	clock  clock.Clock
}

func NewSQLiteProvider(db dbx.DBTX, params cryptox.KDFParams, clk clock.Clock) *SQLiteProvider {
	return &SQLiteProvider{db: db, params: params, clock: clk}
}

func (p *SQLiteProvider) hash(ctx context.Context, ownerID string) (string, error) {
	var h string
	err := p.db.QueryRowContext(ctx, `SELECT password_hash FROM credentials WHERE owner_id = ?`, ownerID).Scan(&h)
	if err != nil {
		return "", err
	}
	return h, nil
}

func (p *SQLiteProvider) Enroll(ctx context.Context, ownerID string, password []byte) error {
	h, err := cryptox.HashPassword(password, p.params)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	res, err := p.db.ExecContext(ctx, `
		INSERT INTO credentials (owner_id, password_hash, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(owner_id) DO NOTHING
	`, ownerID, h, p.clock.Now().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to enroll %s: %w", ownerID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return common.ErrDuplicateAccount
	}
	return nil
}

func (p *SQLiteProvider) VerifyPassword(ctx context.Context, ownerID string, password []byte) (bool, error) {
	h, err := p.hash(ctx, ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load credentials[%s]: %w", ownerID, err)
	}
	return cryptox.CheckPassword(password, h)
}

func (p *SQLiteProvider) ChangePassword(ctx context.Context, ownerID string, newPassword []byte) error {
	h, err := cryptox.HashPassword(newPassword, p.params)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	res, err := p.db.ExecContext(ctx, `UPDATE credentials SET password_hash = ?, updated_at = ? WHERE owner_id = ?`,
		h, p.clock.Now().Format(time.RFC3339Nano), ownerID)
	if err != nil {
		return fmt.Errorf("failed to change password[%s]: %w", ownerID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("%w: %s", common.ErrOwnerNotFound, ownerID)
	}
	return nil
}

func (p *SQLiteProvider) Remove(ctx context.Context, ownerID string) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM credentials WHERE owner_id = ?`, ownerID); err != nil {
		return fmt.Errorf("failed to remove credentials[%s]: %w", ownerID, err)
	}
	return nil
}
