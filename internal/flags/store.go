package flags

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/aman-zulfiqar/solana-task-rewards/internal/constants"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// hashKey holds every flag as one field: key -> JSON Flag.
const hashKey = constants.RedisKeyFlagsPrefix + "all"

var keyRe = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,128}$`)

// updateScript sets a field only when it already exists.
var updateScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
return 1
`)

// RedisStore keeps all flags in a single hash so reads and listing are one
// round trip.
type RedisStore struct {
	client redis.Cmdable
	logger *logrus.Logger
	now    func() time.Time
}

func NewRedisStore(client redis.Cmdable, logger *logrus.Logger) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &RedisStore{client: client, logger: logger, now: time.Now}, nil
}

func ValidateKey(key string) error {
	if !keyRe.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

func (s *RedisStore) encode(key string, value bool) (*Flag, []byte, error) {
	f := &Flag{Key: key, Value: value, UpdatedAt: s.now().UTC()}
	b, err := json.Marshal(f)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal flag: %w", err)
	}
	return f, b, nil
}

func (s *RedisStore) Upsert(ctx context.Context, key string, value bool) (*Flag, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	f, b, err := s.encode(key, value)
	if err != nil {
		return nil, err
	}
	if err := s.client.HSet(ctx, hashKey, key, b).Err(); err != nil {
		return nil, fmt.Errorf("upsert flag: %w", err)
	}
	return f, nil
}

func (s *RedisStore) Update(ctx context.Context, key string, value bool) (*Flag, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	f, b, err := s.encode(key, value)
	if err != nil {
		return nil, err
	}
	n, err := updateScript.Run(ctx, s.client, []string{hashKey}, key, b).Int()
	if err != nil {
		return nil, fmt.Errorf("update flag: %w", err)
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return f, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Flag, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	raw, err := s.client.HGet(ctx, hashKey, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get flag: %w", err)
	}

	var f Flag
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("unmarshal flag %s: %w", key, err)
	}
	return &f, nil
}

// List returns flags sorted by key. Undecodable entries are skipped.
func (s *RedisStore) List(ctx context.Context) ([]*Flag, error) {
	all, err := s.client.HGetAll(ctx, hashKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list flags: %w", err)
	}

	out := make([]*Flag, 0, len(all))
	for key, raw := range all {
		var f Flag
		if err := json.Unmarshal([]byte(raw), &f); err != nil {
			s.logger.WithError(err).WithField("flag", key).Warn("skipping undecodable flag")
			continue
		}
		out = append(out, &f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	n, err := s.client.HDel(ctx, hashKey, key).Result()
	if err != nil {
		return fmt.Errorf("delete flag: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Enabled returns the flag value, or def when the flag is unset or Redis
// cannot be read.
func (s *RedisStore) Enabled(ctx context.Context, key string, def bool) bool {
	f, err := s.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.WithError(err).WithField("flag", key).Warn("flag read failed, using default")
		}
		return def
	}
	return f.Value
}

// Seed writes defaults for flags that are not set yet. Existing values win.
func (s *RedisStore) Seed(ctx context.Context, defaults map[string]bool) error {
	pipe := s.client.Pipeline()
	for key, value := range defaults {
		if err := ValidateKey(key); err != nil {
			return err
		}
		_, b, err := s.encode(key, value)
		if err != nil {
			return err
		}
		pipe.HSetNX(ctx, hashKey, key, b)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("seed flags: %w", err)
	}
	return nil
}
