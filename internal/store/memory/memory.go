// Package memory is an in-process store.Adapter for tests and ephemeral
// runs.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/dmitrijs2005/keydozer/internal/common"
	"github.com/dmitrijs2005/keydozer/internal/store"
)

type Store struct {
	mu   sync.RWMutex
	data map[store.Collection]map[string]store.Record
}

func New() *Store {
	s := &Store{data: make(map[store.Collection]map[string]store.Record)}
	for _, c := range store.Collections {
		s.data[c] = make(map[string]store.Record)
	}
	return s
}

func clone(r store.Record) store.Record {
	r.Body = slices.Clone(r.Body)
	return r
}

func (s *Store) GetByID(ctx context.Context, coll store.Collection, id string) (store.Record, error) {
	if err := store.CheckCollection(coll); err != nil {
		return store.Record{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.data[coll][id]
	if !ok {
		return store.Record{}, common.ErrorNotFound
	}
	return clone(rec), nil
}

func (s *Store) PutByID(ctx context.Context, coll store.Collection, id string, rec store.Record) error {
	if err := store.CheckCollection(coll); err != nil {
		return err
	}
	rec.ID = id
	s.mu.Lock()
	s.data[coll][id] = clone(rec)
	s.mu.Unlock()
	return nil
}

func (s *Store) DeleteByID(ctx context.Context, coll store.Collection, id string) error {
	if err := store.CheckCollection(coll); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.data[coll], id)
	s.mu.Unlock()
	return nil
}

func (s *Store) ListByOwner(ctx context.Context, coll store.Collection, ownerID string) ([]store.Record, error) {
	if err := store.CheckCollection(coll); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.Record
	for _, rec := range s.data[coll] {
		if rec.OwnerID == ownerID {
			out = append(out, clone(rec))
		}
	}
	slices.SortFunc(out, func(a, b store.Record) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}
