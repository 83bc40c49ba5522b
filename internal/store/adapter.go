// Package store defines the vault store adapter: uniform CRUD by id over
// opaque records grouped in collections. Local and remote backends live in
// subpackages; typed repositories on top of any Adapter encode the records.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/keydozer/internal/common"
)

type Collection string

const (
	Owners    Collection = "owners"
	Entries   Collection = "entries"
	Envelopes Collection = "envelopes"
)

// Collections lists every collection an adapter must serve.
var Collections = []Collection{Owners, Entries, Envelopes}

func (c Collection) Valid() bool {
	switch c {
	case Owners, Entries, Envelopes:
		return true
	}
	return false
}

// CheckCollection returns common.ErrInvalidInput for unknown collections.
func CheckCollection(c Collection) error {
	if !c.Valid() {
		return fmt.Errorf("%w: unknown collection %q", common.ErrInvalidInput, c)
	}
	return nil
}

// Record is an opaque stored document. OwnerID is the listing key: the
// owner for owners and entries, the recipient for envelopes.
type Record struct {
	ID        string
	OwnerID   string
	Body      []byte
	UpdatedAt time.Time
}

// Adapter is implemented by every backend.
//
// GetByID returns common.ErrorNotFound for a missing id. PutByID overwrites.
// DeleteByID of a missing id is not an error. ListByOwner returns records
// ordered by id.
type Adapter interface {
	GetByID(ctx context.Context, coll Collection, id string) (Record, error)
	PutByID(ctx context.Context, coll Collection, id string, rec Record) error
	DeleteByID(ctx context.Context, coll Collection, id string) error
	ListByOwner(ctx context.Context, coll Collection, ownerID string) ([]Record, error)
}

// Batcher is implemented by adapters that can write several records of one
// collection all-or-nothing. Repositories fall back to PutByID in sequence
// for adapters without it.
type Batcher interface {
	PutBatch(ctx context.Context, coll Collection, recs []Record) error
}
