package models

import "time"

type SecurityQuestion struct {
	Question   string `json:"question"`
	AnswerHash string `json:"answer_hash"`
}

// VaultOwner is the per-account identity record. PasswordHash and
// WrappedKey always change together.
type VaultOwner struct {
	ID           string `json:"id"`
	PasswordHash string `json:"password_hash"`
	WrappedKey   string `json:"wrapped_key"`

	// FallbackWrappedKey is set only after recovering a rotation that was
	// interrupted while the auth provider changed the password. It holds
	// the other wrapping so whichever password the provider kept still
	// unlocks. The next unlock clears it.
	FallbackWrappedKey string `json:"fallback_wrapped_key,omitempty"`

	// ShareRecipient is the public half of the owner's share identity;
	// ShareIdentity is the private half, field-encrypted under the master key.
	ShareRecipient string `json:"share_recipient"`
	ShareIdentity  string `json:"share_identity"`

	PasswordHint      string             `json:"password_hint,omitempty"`
	SecurityQuestions []SecurityQuestion `json:"security_questions,omitempty"`
	TwoFactorEnabled  bool               `json:"two_factor_enabled"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
