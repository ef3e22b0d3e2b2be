package profile

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aman-zulfiqar/solana-task-rewards/internal/models"
)

// MemoryStore keeps records in process. Used when Redis is not configured
// and in tests.
type MemoryStore struct {
	mu    sync.Mutex
	users map[string]*models.UserRecord
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]*models.UserRecord),
		now:   time.Now,
	}
}

func (s *MemoryStore) Get(ctx context.Context, address string) (*models.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[address]
	if !ok {
		return nil, ErrNotFound
	}
	return u.Clone(), nil
}

func (s *MemoryStore) Put(ctx context.Context, u *models.UserRecord) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if u == nil || strings.TrimSpace(u.Address) == "" {
		return fmt.Errorf("put user: address is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := u.Clone()
	if prev, ok := s.users[u.Address]; ok && prev.HasReceivedAirdrop {
		next.HasReceivedAirdrop = true
	}
	next.UpdatedAt = s.now().UTC()
	s.users[u.Address] = next
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, address string, fn UpdateFunc) (*models.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var cur *models.UserRecord
	prev, ok := s.users[address]
	if ok {
		cur = prev.Clone()
	}
	next, err := fn(cur)
	if err != nil {
		return nil, err
	}
	if next == nil {
		return cur, nil
	}
	if err := checkNext(address, next); err != nil {
		return nil, err
	}
	next = next.Clone()
	if ok && prev.HasReceivedAirdrop {
		next.HasReceivedAirdrop = true
	}
	next.UpdatedAt = s.now().UTC()
	s.users[address] = next
	return next.Clone(), nil
}

func (s *MemoryStore) MarkAirdropReceived(ctx context.Context, address string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[address]
	if !ok {
		return false, ErrNotFound
	}
	if u.HasReceivedAirdrop {
		return true, nil
	}
	u.HasReceivedAirdrop = true
	u.UpdatedAt = s.now().UTC()
	return false, nil
}
