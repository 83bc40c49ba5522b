// Package models defines the vault records and their field sets.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// EntrySchemaVersion is the canonical entry shape written by this build.
const EntrySchemaVersion = 2

var ErrIncorrectField = errors.New("field must be name=value")

// EntryFields are the user-visible values of one credential. In a stored
// VaultEntry every value is field-cipher output; in memory after decryption
// they are plaintext.
type EntryFields struct {
	ServiceName string `json:"service_name"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	URL         string `json:"url"`
	Category    string `json:"category"`
	Notes       string `json:"notes"`
}

// FieldNames lists the fields in comparison order.
var FieldNames = []string{"service_name", "username", "password", "url", "category", "notes"}

// Field returns a pointer to the named field, or nil for an unknown name.
func (f *EntryFields) Field(name string) *string {
	switch name {
	case "service_name", "service":
		return &f.ServiceName
	case "username":
		return &f.Username
	case "password":
		return &f.Password
	case "url":
		return &f.URL
	case "category":
		return &f.Category
	case "notes":
		return &f.Notes
	}
	return nil
}

// Map applies fn to every field in FieldNames order and returns the
// transformed copy. The first error stops the walk.
func (f EntryFields) Map(fn func(name, value string) (string, error)) (EntryFields, error) {
	out := f
	for _, name := range FieldNames {
		p := out.Field(name)
		v, err := fn(name, *p)
		if err != nil {
			return EntryFields{}, fmt.Errorf("field %s: %w", name, err)
		}
		*p = v
	}
	return out, nil
}

// ParseFields builds EntryFields from "name=value" pairs. Values may contain
// '=' themselves.
func ParseFields(items []string) (EntryFields, error) {
	var f EntryFields
	for _, item := range items {
		name, value, ok := strings.Cut(item, "=")
		if !ok {
			return EntryFields{}, ErrIncorrectField
		}
		p := f.Field(strings.TrimSpace(name))
		if p == nil {
			return EntryFields{}, fmt.Errorf("%w: unknown field %q", ErrIncorrectField, name)
		}
		*p = value
	}
	return f, nil
}

// VaultEntry is one credential record as persisted.
type VaultEntry struct {
	ID        string      `json:"id"`
	OwnerID   string      `json:"owner_id"`
	Version   int         `json:"version"`
	Fields    EntryFields `json:"fields"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// legacyEntry covers the flat shapes written before the schema was
// versioned: url+notes records and category+additionalInfo records, both
// with plaintext metadata.
type legacyEntry struct {
	ID             string       `json:"id"`
	OwnerID        string       `json:"owner_id"`
	UserID         string       `json:"userId"`
	Version        int          `json:"version"`
	Fields         *EntryFields `json:"fields"`
	ServiceName    string       `json:"serviceName"`
	Username       string       `json:"username"`
	Password       string       `json:"password"`
	Encrypted      string       `json:"encryptedPassword"`
	URL            string       `json:"url"`
	Notes          string       `json:"notes"`
	Category       string       `json:"category"`
	AdditionalInfo string       `json:"additionalInfo"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// UnmarshalJSON accepts the current shape and every legacy shape. Legacy
// records decode with Version 1 so MigrateEntries can find them.
func (e *VaultEntry) UnmarshalJSON(b []byte) error {
	var raw legacyEntry
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	*e = VaultEntry{
		ID:        raw.ID,
		OwnerID:   raw.OwnerID,
		Version:   raw.Version,
		CreatedAt: raw.CreatedAt,
		UpdatedAt: raw.UpdatedAt,
	}
	if e.OwnerID == "" {
		e.OwnerID = raw.UserID
	}

	if raw.Fields != nil && raw.Version >= EntrySchemaVersion {
		e.Fields = *raw.Fields
		return nil
	}

	pw := raw.Password
	if pw == "" {
		pw = raw.Encrypted
	}
	notes := raw.Notes
	if raw.AdditionalInfo != "" {
		if notes != "" {
			notes += "\n"
		}
		notes += raw.AdditionalInfo
	}

	e.Version = 1
	e.Fields = EntryFields{
		ServiceName: raw.ServiceName,
		Username:    raw.Username,
		Password:    pw,
		URL:         raw.URL,
		Category:    raw.Category,
		Notes:       notes,
	}
	return nil
}
