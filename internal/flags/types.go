// Package flags holds runtime on/off switches for reward features.
package flags

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound   = errors.New("flag not found")
	ErrInvalidKey = errors.New("invalid flag key")
)

// Feature switches read by the reward services.
const (
	AirdropEnabled    = "airdrop.enabled"
	ContestsEnabled   = "contests.enabled"
	DailyLoginEnabled = "daily_login.enabled"
)

// Defaults is seeded into an empty store on startup.
var Defaults = map[string]bool{
	AirdropEnabled:    true,
	ContestsEnabled:   true,
	DailyLoginEnabled: true,
}

type Flag struct {
	Key       string    `json:"key"`
	Value     bool      `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is implemented by RedisStore and MemoryStore.
type Store interface {
	Upsert(ctx context.Context, key string, value bool) (*Flag, error)
	// Update changes an existing flag and returns ErrNotFound otherwise.
	Update(ctx context.Context, key string, value bool) (*Flag, error)
	Get(ctx context.Context, key string) (*Flag, error)
	List(ctx context.Context) ([]*Flag, error)
	Delete(ctx context.Context, key string) error
	Enabled(ctx context.Context, key string, def bool) bool
	Seed(ctx context.Context, defaults map[string]bool) error
}
