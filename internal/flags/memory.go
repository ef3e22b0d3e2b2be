package flags

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is the in-process store used when Redis is not configured.
type MemoryStore struct {
	mu    sync.RWMutex
	flags map[string]Flag
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{flags: make(map[string]Flag)}
}

func (s *MemoryStore) Upsert(_ context.Context, key string, value bool) (*Flag, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	f := Flag{Key: key, Value: value, UpdatedAt: time.Now().UTC()}

	s.mu.Lock()
	s.flags[key] = f
	s.mu.Unlock()
	return &f, nil
}

func (s *MemoryStore) Update(_ context.Context, key string, value bool) (*Flag, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.flags[key]; !ok {
		return nil, ErrNotFound
	}
	f := Flag{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	s.flags[key] = f
	return &f, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (*Flag, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	s.mu.RLock()
	f, ok := s.flags[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return &f, nil
}

// List returns flags sorted by key.
func (s *MemoryStore) List(_ context.Context) ([]*Flag, error) {
	s.mu.RLock()
	out := make([]*Flag, 0, len(s.flags))
	for _, f := range s.flags {
		f := f
		out = append(out, &f)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.flags[key]; !ok {
		return ErrNotFound
	}
	delete(s.flags, key)
	return nil
}

func (s *MemoryStore) Enabled(ctx context.Context, key string, def bool) bool {
	f, err := s.Get(ctx, key)
	if err != nil {
		return def
	}
	return f.Value
}

func (s *MemoryStore) Seed(_ context.Context, defaults map[string]bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, value := range defaults {
		if err := ValidateKey(key); err != nil {
			return err
		}
		if _, ok := s.flags[key]; !ok {
			s.flags[key] = Flag{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
		}
	}
	return nil
}
