// Package app builds the reward components from configuration. The API
// server and the operator CLI share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aman-zulfiqar/solana-task-rewards/internal/airdrop"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/config"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/constants"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/events"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/flags"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/identity"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/ledger"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/profile"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/quiz"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/rpc"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/session"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/wallet"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// App holds every long-lived component. Optional parts are nil when their
// settings are absent: Redis, ClickHouse, Treasury, Airdrops and Quiz.
type App struct {
	Config *config.Config
	Logger *logrus.Logger

	Redis      *redis.Client
	ClickHouse *events.ClickHouseSink
	Publisher  *events.Publisher

	RPC      *rpc.Client
	Ledger   *ledger.Client
	Profiles profile.Store
	Flags    flags.Store
	Events   events.Sink
	Feed     events.Feed
	Identity *identity.Service
	Sessions *session.Manager
	Treasury *wallet.Keypair
	Airdrops *airdrop.Dispenser
	Quiz     *quiz.Client

	closeOnce sync.Once
}

// New connects the configured backends and wires the services. A Redis or
// ClickHouse address that is set but unreachable is an error; an unset one
// falls back to in-process storage.
func New(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	if logger == nil {
		logger = logrus.New()
	}
	a := &App{Config: cfg, Logger: logger}

	if err := a.initStorage(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initLedger(); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initServices(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) initStorage(ctx context.Context) error {
	cfg := a.Config

	if cfg.RedisAddr != "" {
		a.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("app: connect redis: %w", err)
		}

		store, err := profile.NewRedisStore(a.Redis)
		if err != nil {
			return err
		}
		a.Profiles = store

		fl, err := flags.NewRedisStore(a.Redis, a.Logger)
		if err != nil {
			return err
		}
		a.Flags = fl

		pub, err := events.NewPublisher(a.Redis, a.Logger)
		if err != nil {
			return err
		}
		a.Publisher = pub
		a.Feed = pub
	} else {
		a.Logger.Warn("REDIS_ADDR not set, users and flags are kept in memory")
		a.Profiles = profile.NewMemoryStore()
		a.Flags = flags.NewMemoryStore()
		mem := events.NewMemorySink(constants.MaxRecentRewards)
		a.Feed = mem
		a.Events = mem
	}

	if err := a.Flags.Seed(ctx, flags.Defaults); err != nil {
		a.Logger.WithError(err).Warn("failed to seed feature flags")
	}

	if cfg.ClickHouseAddr != "" {
		sink, err := events.NewClickHouseSink(ctx, events.ClickHouseConfig{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
			Logger:   a.Logger,
		})
		if err != nil {
			return fmt.Errorf("app: connect clickhouse: %w", err)
		}
		a.ClickHouse = sink
	}

	var sinks events.Fanout
	if a.Publisher != nil {
		sinks = append(sinks, a.Publisher)
	} else if a.Events != nil {
		sinks = append(sinks, a.Events)
	}
	if a.ClickHouse != nil {
		sinks = append(sinks, a.ClickHouse)
	}
	a.Events = sinks
	return nil
}

func (a *App) initLedger() error {
	cfg := a.Config

	a.RPC = rpc.NewClient(rpc.ClientConfig{
		BaseURL:      cfg.RPCUrl,
		Timeout:      cfg.HTTPTimeout,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		RateLimit:    cfg.RPCRateLimit,
		Logger:       a.Logger,
	})

	lc, err := ledger.NewClient(ledger.ClientConfig{
		RPC:            a.RPC,
		Mint:           cfg.TokenMint,
		Commitment:     cfg.Commitment,
		ConfirmTimeout: cfg.ConfirmTimeout,
		Logger:         a.Logger,
	})
	if err != nil {
		return err
	}
	a.Ledger = lc
	return nil
}

func (a *App) initServices() error {
	cfg := a.Config

	svc, err := identity.NewService(identity.Config{
		Store:         a.Profiles,
		Toggles:       a.Flags,
		Events:        a.Events,
		AvatarBaseURL: cfg.AvatarBaseURL,
		Logger:        a.Logger,
	})
	if err != nil {
		return err
	}
	a.Identity = svc

	mgr, err := session.NewManager(session.ManagerConfig{
		Identity: svc,
		Balances: a.Ledger,
		Interval: cfg.BalanceRefreshInterval,
		Logger:   a.Logger,
	})
	if err != nil {
		return err
	}
	a.Sessions = mgr

	if cfg.TreasuryPrivateKey != "" {
		kp, err := wallet.NewKeypair(cfg.TreasuryPrivateKey)
		if err != nil {
			return fmt.Errorf("app: treasury key: %w", err)
		}
		a.Treasury = kp

		var guard airdrop.Guard = airdrop.NewMemoryGuard()
		if a.Redis != nil {
			g, err := airdrop.NewRedisGuard(a.Redis, cfg.AirdropLockTTL)
			if err != nil {
				return err
			}
			guard = g
		}

		d, err := airdrop.NewDispenser(airdrop.Config{
			Ledger:     a.Ledger,
			Store:      a.Profiles,
			Guard:      guard,
			Treasury:   kp,
			Amount:     cfg.AirdropAmount,
			LockWait:   cfg.AirdropLockWait,
			PendingTTL: cfg.PendingSignatureTTL,
			Events:     a.Events,
			Logger:     a.Logger,
		})
		if err != nil {
			return err
		}
		a.Airdrops = d
	} else {
		a.Logger.Warn("TREASURY_PRIVATE_KEY not set, airdrops are disabled")
	}

	if cfg.QuizAPIURL != "" {
		a.Quiz = quiz.NewClient(cfg.QuizAPIURL, cfg.QuizAPIKey)
	}
	return nil
}

// Close stops every session refresher and releases backend connections.
// Calls after the first are no-ops.
func (a *App) Close() {
	a.closeOnce.Do(a.close)
}

func (a *App) close() {
	if a.Sessions != nil {
		a.Sessions.CloseAll()
	}
	if a.ClickHouse != nil {
		if err := a.ClickHouse.Close(); err != nil {
			a.Logger.WithError(err).Warn("failed to close clickhouse")
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.WithError(err).Warn("failed to close redis")
		}
	}
}
