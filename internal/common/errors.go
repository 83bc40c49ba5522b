// Package common defines the error taxonomy and small helpers shared by every
// keydozer component. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Store-level errors.
	ErrorNotFound = errors.New("not found")

	// Key management errors.
	ErrWrapFailure   = errors.New("master key wrap failed")
	ErrUnwrapFailure = errors.New("master key unwrap failed")

	// Field-level errors. Non-fatal to batch operations.
	ErrDecryptionFailure = errors.New("decryption failed")

	// Account errors.
	ErrDuplicateAccount      = errors.New("account already exists")
	ErrAuthenticationFailure = errors.New("authentication failed")
	ErrOwnerNotFound         = errors.New("owner not found")
	ErrLocked                = errors.New("vault is locked")

	// Entry and sharing errors.
	ErrEntryNotFound     = errors.New("entry not found")
	ErrEnvelopeNotFound  = errors.New("envelope not found")
	ErrSelfShareRejected = errors.New("cannot share with yourself")

	// Validation errors.
	ErrInvalidInput = errors.New("invalid input")
)

// Message maps an error to a short user-facing explanation. Every kind in the
// taxonomy gets its own text so the UI never has to show a bare "failed".
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrWrapFailure):
		return "Could not protect the master key. Nothing was saved; try again."
	case errors.Is(err, ErrUnwrapFailure):
		return "The master key could not be unlocked with this password."
	case errors.Is(err, ErrDecryptionFailure):
		return "Some data could not be decrypted with the current key."
	case errors.Is(err, ErrDuplicateAccount):
		return "An account with this id already exists."
	case errors.Is(err, ErrAuthenticationFailure):
		return "Wrong password."
	case errors.Is(err, ErrOwnerNotFound):
		return "No such account."
	case errors.Is(err, ErrLocked):
		return "The vault is locked. Unlock it first."
	case errors.Is(err, ErrEntryNotFound):
		return "Entry not found."
	case errors.Is(err, ErrEnvelopeNotFound):
		return "Shared package not found."
	case errors.Is(err, ErrSelfShareRejected):
		return "You cannot share entries with your own account."
	case errors.Is(err, ErrInvalidInput):
		return "Invalid input: " + err.Error()
	case errors.Is(err, ErrorNotFound):
		return "Record not found."
	default:
		return "Unexpected error: " + err.Error()
	}
}
