package journal

import (
	"context"
	"sync"
)

type stored struct {
	record, sum []byte
}

// MemoryStore keeps sealed intents in a map, checksums included.
type MemoryStore struct {
	mu      sync.Mutex
	intents map[string]stored
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{intents: map[string]stored{}}
}

func (m *MemoryStore) Save(ctx context.Context, in Intent) error {
	record, sum, err := seal(in)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.intents[in.ID] = stored{record: record, sum: sum}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Load(ctx context.Context, id string) (Intent, error) {
	m.mu.Lock()
	s, ok := m.intents[id]
	m.mu.Unlock()
	if !ok {
		return Intent{}, ErrNotFound
	}
	return open(s.record, s.sum)
}

func (m *MemoryStore) Pending(ctx context.Context) ([]Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Intent
	for _, s := range m.intents {
		in, err := open(s.record, s.sum)
		if err != nil {
			return nil, err
		}
		if in.State == StatePending {
			out = append(out, in)
		}
	}
	return out, nil
}
