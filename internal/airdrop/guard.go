package airdrop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aman-zulfiqar/solana-task-rewards/internal/constants"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockLost is returned by Lease.SetPending once the lease expired or was
// taken over. The holder must not submit.
var ErrLockLost = errors.New("airdrop lock lost")

// Pending is a signed airdrop that may have reached the network.
type Pending struct {
	Signature string    `json:"sig"`
	CreatedAt time.Time `json:"createdAt"`
}

// Guard serializes dispenses per owner and remembers signatures that may
// have landed so they can be reconciled before any new transfer.
type Guard interface {
	// Acquire blocks until the owner's lock is held or ctx is done, in which
	// case it returns ErrDispenseInProgress.
	Acquire(ctx context.Context, owner string) (Lease, error)
	PendingSignature(ctx context.Context, owner string) (*Pending, error)
	// ClearPending drops the owner's pending entry if it still carries sig.
	ClearPending(ctx context.Context, owner, sig string) error
}

// Lease is a held per-owner lock.
type Lease interface {
	// SetPending parks p for the owner, failing with ErrLockLost when the
	// lease is no longer held.
	SetPending(ctx context.Context, p Pending) error
	Release()
}

// MemoryGuard is a process-local Guard.
type MemoryGuard struct {
	mu      sync.Mutex
	locks   map[string]*ownerLock
	pending map[string]Pending
}

type ownerLock struct {
	ch   chan struct{}
	refs int
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{
		locks:   make(map[string]*ownerLock),
		pending: make(map[string]Pending),
	}
}

func (g *MemoryGuard) Acquire(ctx context.Context, owner string) (Lease, error) {
	g.mu.Lock()
	l, ok := g.locks[owner]
	if !ok {
		l = &ownerLock{ch: make(chan struct{}, 1)}
		g.locks[owner] = l
	}
	l.refs++
	g.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		return &memoryLease{g: g, owner: owner, lock: l}, nil
	case <-ctx.Done():
		g.unref(owner, l)
		return nil, fmt.Errorf("%w: %s", ErrDispenseInProgress, owner)
	}
}

func (g *MemoryGuard) unref(owner string, l *ownerLock) {
	g.mu.Lock()
	defer g.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(g.locks, owner)
	}
}

func (g *MemoryGuard) PendingSignature(_ context.Context, owner string) (*Pending, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.pending[owner]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (g *MemoryGuard) ClearPending(_ context.Context, owner, sig string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if p, ok := g.pending[owner]; ok && p.Signature == sig {
		delete(g.pending, owner)
	}
	return nil
}

type memoryLease struct {
	g        *MemoryGuard
	owner    string
	lock     *ownerLock
	released atomic.Bool
}

func (l *memoryLease) SetPending(_ context.Context, p Pending) error {
	if l.released.Load() {
		return fmt.Errorf("%w: %s", ErrLockLost, l.owner)
	}
	l.g.mu.Lock()
	defer l.g.mu.Unlock()
	l.g.pending[l.owner] = p
	return nil
}

func (l *memoryLease) Release() {
	if l.released.Swap(true) {
		return
	}
	<-l.lock.ch
	l.g.unref(l.owner, l.lock)
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// parkScript writes the pending entry only while KEYS[1] still holds the
// caller's token.
var parkScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) ~= ARGV[1] then
	return 0
end
redis.call("DEL", KEYS[2])
redis.call("HSET", KEYS[2], "sig", ARGV[2], "createdAt", ARGV[3])
return 1
`)

var clearScript = redis.NewScript(`
if redis.call("HGET", KEYS[1], "sig") == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGuard holds the per-owner lock as a SET NX PX key, so dispenses are
// serialized across API replicas. A held lock is renewed every ttl/3 until
// released, so ttl only bounds how long a crashed holder blocks the owner.
type RedisGuard struct {
	client    redis.UniversalClient
	ttl       time.Duration
	retryWait time.Duration
}

func NewRedisGuard(client redis.UniversalClient, ttl time.Duration) (*RedisGuard, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if ttl <= 0 {
		ttl = constants.AirdropLockTTL
	}
	return &RedisGuard{client: client, ttl: ttl, retryWait: 50 * time.Millisecond}, nil
}

// Lock and pending keys share a hash tag so the scripts touching both run
// on one cluster slot.
func lockKey(owner string) string    { return constants.RedisKeyAirdropLock + "{" + owner + "}" }
func pendingKey(owner string) string { return constants.RedisKeyAirdropPending + "{" + owner + "}" }

func (g *RedisGuard) Acquire(ctx context.Context, owner string) (Lease, error) {
	key := lockKey(owner)
	token := uuid.NewString()

	for {
		ok, err := g.client.SetNX(ctx, key, token, g.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %s", ErrDispenseInProgress, owner)
			}
			return nil, fmt.Errorf("%w: acquire lock: %w", ErrGuardUnavailable, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s", ErrDispenseInProgress, owner)
		case <-time.After(g.retryWait):
		}
	}

	l := &redisLease{
		g:     g,
		owner: owner,
		token: token,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go l.keepAlive()
	return l, nil
}

func (g *RedisGuard) PendingSignature(ctx context.Context, owner string) (*Pending, error) {
	vals, err := g.client.HGetAll(ctx, pendingKey(owner)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: read pending: %w", ErrGuardUnavailable, err)
	}
	sig := vals["sig"]
	if sig == "" {
		return nil, nil
	}
	created, err := time.Parse(time.RFC3339Nano, vals["createdAt"])
	if err != nil {
		return nil, fmt.Errorf("%w: decode pending: %v", ErrGuardUnavailable, err)
	}
	return &Pending{Signature: sig, CreatedAt: created}, nil
}

func (g *RedisGuard) ClearPending(ctx context.Context, owner, sig string) error {
	if err := clearScript.Run(ctx, g.client, []string{pendingKey(owner)}, sig).Err(); err != nil {
		return fmt.Errorf("%w: clear pending: %w", ErrGuardUnavailable, err)
	}
	return nil
}

type redisLease struct {
	g     *RedisGuard
	owner string
	token string

	stop chan struct{}
	done chan struct{}
	once sync.Once
	lost atomic.Bool
}

// keepAlive extends the lock until Release or until the key no longer holds
// this lease's token. A failed renewal is retried on the next tick.
func (l *redisLease) keepAlive() {
	defer close(l.done)
	interval := l.g.ttl / 3
	if interval <= 0 {
		interval = l.g.ttl
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-t.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			n, err := renewScript.Run(ctx, l.g.client, []string{lockKey(l.owner)}, l.token, l.g.ttl.Milliseconds()).Int()
			cancel()
			if err == nil && n == 0 {
				l.lost.Store(true)
				return
			}
		}
	}
}

func (l *redisLease) SetPending(ctx context.Context, p Pending) error {
	if l.lost.Load() {
		return fmt.Errorf("%w: %s", ErrLockLost, l.owner)
	}
	n, err := parkScript.Run(ctx, l.g.client,
		[]string{lockKey(l.owner), pendingKey(l.owner)},
		l.token, p.Signature, p.CreatedAt.UTC().Format(time.RFC3339Nano),
	).Int()
	if err != nil {
		return fmt.Errorf("%w: write pending: %w", ErrGuardUnavailable, err)
	}
	if n == 0 {
		l.lost.Store(true)
		return fmt.Errorf("%w: %s", ErrLockLost, l.owner)
	}
	return nil
}

func (l *redisLease) Release() {
	l.once.Do(func() {
		close(l.stop)
		<-l.done
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.g.client, []string{lockKey(l.owner)}, l.token).Err()
	})
}
