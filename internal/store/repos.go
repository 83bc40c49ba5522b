package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/keydozer/internal/common"
	"github.com/dmitrijs2005/keydozer/internal/models"
)

func get[T any](ctx context.Context, a Adapter, coll Collection, id string, notFound error) (*T, error) {
	rec, err := a.GetByID(ctx, coll, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: %s", notFound, id)
		}
		return nil, err
	}
	v := new(T)
	if err := json.Unmarshal(rec.Body, v); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", coll, id, err)
	}
	return v, nil
}

func put(ctx context.Context, a Adapter, coll Collection, id, ownerID string, v any, rec Record) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", coll, id, err)
	}
	rec.ID, rec.OwnerID, rec.Body = id, ownerID, body
	return a.PutByID(ctx, coll, id, rec)
}

func list[T any](ctx context.Context, a Adapter, coll Collection, ownerID string) ([]T, error) {
	recs, err := a.ListByOwner(ctx, coll, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		var v T
		if err := json.Unmarshal(rec.Body, &v); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", coll, rec.ID, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// OwnerRepository stores VaultOwner records keyed by owner id.
type OwnerRepository struct{ a Adapter }

func NewOwnerRepository(a Adapter) *OwnerRepository { return &OwnerRepository{a: a} }

func (r *OwnerRepository) Get(ctx context.Context, id string) (*models.VaultOwner, error) {
	return get[models.VaultOwner](ctx, r.a, Owners, id, common.ErrOwnerNotFound)
}

func (r *OwnerRepository) Put(ctx context.Context, o *models.VaultOwner) error {
	return put(ctx, r.a, Owners, o.ID, o.ID, o, Record{UpdatedAt: o.UpdatedAt})
}

func (r *OwnerRepository) Delete(ctx context.Context, id string) error {
	return r.a.DeleteByID(ctx, Owners, id)
}

// EntryRepository stores VaultEntry records.
type EntryRepository struct{ a Adapter }

func NewEntryRepository(a Adapter) *EntryRepository { return &EntryRepository{a: a} }

func (r *EntryRepository) Get(ctx context.Context, id string) (*models.VaultEntry, error) {
	return get[models.VaultEntry](ctx, r.a, Entries, id, common.ErrEntryNotFound)
}

func (r *EntryRepository) Put(ctx context.Context, e *models.VaultEntry) error {
	return put(ctx, r.a, Entries, e.ID, e.OwnerID, e, Record{UpdatedAt: e.UpdatedAt})
}

func (r *EntryRepository) Delete(ctx context.Context, id string) error {
	return r.a.DeleteByID(ctx, Entries, id)
}

// PutAll writes entries in one batch when the adapter is a Batcher, so a
// failure leaves none of them stored. Otherwise they are put one by one and
// a failure leaves the earlier ones in place.
func (r *EntryRepository) PutAll(ctx context.Context, entries []models.VaultEntry) error {
	if len(entries) == 0 {
		return nil
	}
	recs := make([]Record, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		body, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode %s/%s: %w", Entries, e.ID, err)
		}
		recs = append(recs, Record{ID: e.ID, OwnerID: e.OwnerID, Body: body, UpdatedAt: e.UpdatedAt})
	}
	if b, ok := r.a.(Batcher); ok {
		return b.PutBatch(ctx, Entries, recs)
	}
	for _, rec := range recs {
		if err := r.a.PutByID(ctx, Entries, rec.ID, rec); err != nil {
			return err
		}
	}
	return nil
}

func (r *EntryRepository) List(ctx context.Context, ownerID string) ([]models.VaultEntry, error) {
	return list[models.VaultEntry](ctx, r.a, Entries, ownerID)
}

// EnvelopeRepository stores ShareEnvelope records listed by recipient.
type EnvelopeRepository struct{ a Adapter }

func NewEnvelopeRepository(a Adapter) *EnvelopeRepository { return &EnvelopeRepository{a: a} }

func (r *EnvelopeRepository) Get(ctx context.Context, id string) (*models.ShareEnvelope, error) {
	return get[models.ShareEnvelope](ctx, r.a, Envelopes, id, common.ErrEnvelopeNotFound)
}

func (r *EnvelopeRepository) Put(ctx context.Context, e *models.ShareEnvelope) error {
	return put(ctx, r.a, Envelopes, e.ID, e.RecipientID, e, Record{UpdatedAt: e.UpdatedAt})
}

func (r *EnvelopeRepository) Delete(ctx context.Context, id string) error {
	return r.a.DeleteByID(ctx, Envelopes, id)
}

// Inbox lists envelopes addressed to recipientID.
func (r *EnvelopeRepository) Inbox(ctx context.Context, recipientID string) ([]models.ShareEnvelope, error) {
	return list[models.ShareEnvelope](ctx, r.a, Envelopes, recipientID)
}
