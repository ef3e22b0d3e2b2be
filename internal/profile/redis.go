package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aman-zulfiqar/solana-task-rewards/internal/constants"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/models"
	"github.com/redis/go-redis/v9"
)

const maxTxRetries = 5

// RedisStore stores each record as JSON under users:<address>. Writes use
// WATCH/MULTI so the airdrop flag is never lost to a concurrent Put.
type RedisStore struct {
	client redis.UniversalClient
	now    func() time.Time
}

func NewRedisStore(client redis.UniversalClient) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return &RedisStore{client: client, now: time.Now}, nil
}

func (s *RedisStore) Get(ctx context.Context, address string) (*models.UserRecord, error) {
	raw, err := s.client.Get(ctx, userKey(address)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get user: %w", ErrUnavailable, err)
	}
	return decode(raw)
}

func (s *RedisStore) Put(ctx context.Context, u *models.UserRecord) error {
	if u == nil || strings.TrimSpace(u.Address) == "" {
		return fmt.Errorf("put user: address is required")
	}
	key := userKey(u.Address)

	txf := func(tx *redis.Tx) error {
		next := u.Clone()
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case err == redis.Nil:
		case err != nil:
			return err
		default:
			prev, err := decode(raw)
			if err != nil {
				return err
			}
			if prev.HasReceivedAirdrop {
				next.HasReceivedAirdrop = true
			}
		}
		next.UpdatedAt = s.now().UTC()

		b, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("marshal user: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, 0)
			return nil
		})
		return err
	}

	if err := s.watch(ctx, txf, key); err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

// Update reads, changes and writes the record inside one WATCH transaction,
// rerunning fn when another writer got in between.
func (s *RedisStore) Update(ctx context.Context, address string, fn UpdateFunc) (*models.UserRecord, error) {
	key := userKey(address)
	var stored *models.UserRecord

	txf := func(tx *redis.Tx) error {
		stored = nil
		var cur *models.UserRecord
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case err == redis.Nil:
		case err != nil:
			return err
		default:
			if cur, err = decode(raw); err != nil {
				return err
			}
		}

		var prevAirdrop bool
		if cur != nil {
			prevAirdrop = cur.HasReceivedAirdrop
		}
		next, err := fn(cur.Clone())
		if err != nil {
			return callerError{err}
		}
		if next == nil {
			stored = cur
			return nil
		}
		if err := checkNext(address, next); err != nil {
			return callerError{err}
		}
		next = next.Clone()
		if prevAirdrop {
			next.HasReceivedAirdrop = true
		}
		next.UpdatedAt = s.now().UTC()

		b, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("marshal user: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, 0)
			return nil
		})
		if err == nil {
			stored = next
		}
		return err
	}

	if err := s.watch(ctx, txf, key); err != nil {
		var ce callerError
		if errors.As(err, &ce) {
			return nil, ce.err
		}
		if errors.Is(err, ErrCorrupt) {
			return nil, err
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return stored, nil
}

func (s *RedisStore) MarkAirdropReceived(ctx context.Context, address string) (bool, error) {
	key := userKey(address)
	var prev bool

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		u, err := decode(raw)
		if err != nil {
			return err
		}
		prev = u.HasReceivedAirdrop
		if prev {
			return nil
		}

		u.HasReceivedAirdrop = true
		u.UpdatedAt = s.now().UTC()
		b, err := json.Marshal(u)
		if err != nil {
			return fmt.Errorf("marshal user: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, 0)
			return nil
		})
		return err
	}

	if err := s.watch(ctx, txf, key); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, err
		}
		return false, fmt.Errorf("mark airdrop: %w", err)
	}
	return prev, nil
}

// watch runs txf optimistically, retrying when another writer touched key.
func (s *RedisStore) watch(ctx context.Context, txf func(*redis.Tx) error, key string) error {
	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		var ce callerError
		if errors.As(err, &ce) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrCorrupt) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return fmt.Errorf("%w: too much contention on %s", ErrUnavailable, key)
}

func decode(raw []byte) (*models.UserRecord, error) {
	var u models.UserRecord
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &u, nil
}

func userKey(address string) string {
	return constants.RedisKeyUserPrefix + address
}
