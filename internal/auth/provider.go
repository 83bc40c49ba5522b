// Package auth is the authentication provider the vault consults before
// touching key material. The vault only needs to verify and change a
// password; where credentials live is up to the implementation.
package auth

import "context"

type Provider interface {
	// Enroll creates credentials for a new owner. It returns
	// common.ErrDuplicateAccount when the owner already exists.
	Enroll(ctx context.Context, ownerID string, password []byte) error

	// VerifyPassword reports whether password is correct. Unknown owners
	// verify as false.
	VerifyPassword(ctx context.Context, ownerID string, password []byte) (bool, error)

	// ChangePassword replaces the owner's password.
	ChangePassword(ctx context.Context, ownerID string, newPassword []byte) error

	// Remove deletes the owner's credentials. Removing an unknown owner is
	// not an error.
	Remove(ctx context.Context, ownerID string) error
}
