package memory

import (
	"context"
	"encoding/json"
	"sync"
)

// Store is a keyed collection of Memory records with upsert semantics.
// List order is most-recent-first: a new id is prepended, an existing
// id keeps its position when replaced.
type Store interface {
	Upsert(ctx context.Context, m Memory) error
	Get(ctx context.Context, id string) (Memory, error)
	List(ctx context.Context) ([]Memory, error)
}

// collection implements the ordering and upsert rules shared by every
// backend. Backends persist the snapshot it produces wholesale; there
// is no append log.
type collection struct {
	mu      sync.RWMutex
	entries []Memory
}

func (c *collection) upsert(m Memory) error {
	if m.Narrative == "" || m.ImageURL == "" {
		return ErrIncomplete
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.entries {
		if c.entries[i].ID == m.ID {
			c.entries[i] = m
			return nil
		}
	}
	c.entries = append([]Memory{m}, c.entries...)
	return nil
}

func (c *collection) get(id string) (Memory, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, m := range c.entries {
		if m.ID == id {
			return m, nil
		}
	}
	return Memory{}, ErrNotFound
}

func (c *collection) list() []Memory {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Memory, len(c.entries))
	copy(out, c.entries)
	return out
}

func (c *collection) snapshot() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.entries == nil {
		return json.Marshal([]Memory{})
	}
	return json.Marshal(c.entries)
}

func (c *collection) restore(data []byte) error {
	var entries []Memory
	if len(data) > 0 {
		if err := json.Unmarshal(data, &entries); err != nil {
			return err
		}
	}
	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
	return nil
}

// MemStore keeps the scrapbook in process memory only. Used by tests
// and as the fallback driver.
type MemStore struct {
	collection
}

func NewMemStore() *MemStore {
	return &MemStore{}
}

func (s *MemStore) Upsert(ctx context.Context, m Memory) error {
	return s.upsert(m)
}

func (s *MemStore) Get(ctx context.Context, id string) (Memory, error) {
	return s.get(id)
}

func (s *MemStore) List(ctx context.Context) ([]Memory, error) {
	return s.list(), nil
}
