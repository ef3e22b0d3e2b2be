// Package session tracks signed-in sessions and the background balance
// refresh bound to each of them.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aman-zulfiqar/solana-task-rewards/internal/constants"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// BalanceSource reads an owner's token balance.
type BalanceSource interface {
	GetBalance(ctx context.Context, owner string) (decimal.Decimal, error)
}

// Refresher polls one owner's balance until its context is cancelled.
type Refresher struct {
	source   BalanceSource
	owner    string
	interval time.Duration
	timeout  time.Duration
	logger   *logrus.Logger
	now      func() time.Time

	mu        sync.RWMutex
	balance   decimal.Decimal
	updatedAt time.Time
	lastErr   error
	running   bool
}

type RefresherConfig struct {
	Source   BalanceSource
	Owner    string
	Interval time.Duration
	// Timeout bounds a single balance read. Defaults to the interval.
	Timeout time.Duration
	Logger  *logrus.Logger
	Now     func() time.Time
}

func NewRefresher(cfg RefresherConfig) *Refresher {
	if cfg.Interval <= 0 {
		cfg.Interval = constants.DefaultBalanceRefresh
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = cfg.Interval
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Refresher{
		source:   cfg.Source,
		owner:    cfg.Owner,
		interval: cfg.Interval,
		timeout:  cfg.Timeout,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}
}

// Start refreshes once immediately and then on every tick. It blocks until
// ctx is done. Failures are logged and retried on the next tick.
func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("refresher already running")
	}
	r.running = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	log := r.logger.WithFields(logrus.Fields{
		"address":  r.owner,
		"interval": r.interval,
	})
	log.Debug("starting balance refresh")

	r.tick(ctx, log)
	for {
		select {
		case <-ctx.Done():
			log.Debug("balance refresh stopped")
			return ctx.Err()
		case <-ticker.C:
			r.tick(ctx, log)
		}
	}
}

func (r *Refresher) tick(ctx context.Context, log *logrus.Entry) {
	if err := r.Refresh(ctx); err != nil && ctx.Err() == nil {
		log.WithError(err).Warn("balance refresh failed")
	}
}

// Refresh reads the balance once and caches it on success.
func (r *Refresher) Refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	bal, err := r.source.GetBalance(ctx, r.owner)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastErr = err
	if err != nil {
		return err
	}
	r.balance = bal
	r.updatedAt = r.now().UTC()
	return nil
}

// Balance returns the last good balance and when it was read. ok is false
// until the first successful refresh.
func (r *Refresher) Balance() (bal decimal.Decimal, at time.Time, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.balance, r.updatedAt, !r.updatedAt.IsZero()
}

func (r *Refresher) LastError() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastErr
}

func (r *Refresher) Running() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}
