// Package identity reconciles authenticated principals with persisted user
// records and applies daily-login progression.
package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/aman-zulfiqar/solana-task-rewards/internal/constants"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/events"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/ledger"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/models"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/profile"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/progression"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	ErrProfileStoreUnavailable = errors.New("profile store unavailable")
	ErrNotAuthenticated        = errors.New("not authenticated")
	ErrWalletRequired          = errors.New("ledger account required")
	ErrUserNotFound            = errors.New("user not found")
	ErrInvalidXP               = errors.New("invalid xp amount")
	ErrInvalidUsername         = errors.New("invalid username")
	ErrInvalidReward           = errors.New("invalid token reward")
)

// DailyLoginToggle is the flag key that turns daily-login credit on or off.
const DailyLoginToggle = "daily_login.enabled"

var usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// Toggles reads runtime switches.
type Toggles interface {
	Enabled(ctx context.Context, key string, def bool) bool
}

type Config struct {
	Store         profile.Store
	Toggles       Toggles // optional
	Events        events.Sink
	AvatarBaseURL string
	// Location defines calendar days for the login streak. Default UTC.
	Location *time.Location
	Clock    func() time.Time
	Logger   *logrus.Logger
}

type Service struct {
	store   profile.Store
	toggles Toggles
	events  events.Sink
	avatar  string
	loc     *time.Location
	now     func() time.Time
	logger  *logrus.Logger

	// per-owner mutex for read-modify-write cycles within this process
	locks sync.Map
}

func NewService(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("identity: store is required")
	}
	if cfg.AvatarBaseURL == "" {
		cfg.AvatarBaseURL = constants.DefaultAvatarBaseURL
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Service{
		store:   cfg.Store,
		toggles: cfg.Toggles,
		events:  cfg.Events,
		avatar:  cfg.AvatarBaseURL,
		loc:     cfg.Location,
		now:     cfg.Clock,
		logger:  cfg.Logger,
	}, nil
}

// SyncResult is the reconciled record plus what this sync changed.
type SyncResult struct {
	User      *models.UserRecord `json:"user"`
	Created   bool               `json:"created"`
	Repaired  bool               `json:"repaired"`
	XPAwarded int64              `json:"xpAwarded"`
	LeveledUp bool               `json:"leveledUp"`
}

// OnPrincipal handles a principal change reported by the identity provider.
// Signing out clears the session and returns (nil, nil).
func (s *Service) OnPrincipal(ctx context.Context, sess *Session, p Principal) (*SyncResult, error) {
	switch v := p.(type) {
	case Unauthenticated:
		sess.mu.Lock()
		sess.setPrincipal(v)
		sess.mu.Unlock()
		return nil, nil
	case AuthenticatedNoWallet:
		sess.mu.Lock()
		sess.setPrincipal(v)
		sess.mu.Unlock()
		return nil, ErrWalletRequired
	case AuthenticatedWithWallet:
		return s.sync(ctx, sess, v)
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotAuthenticated, describe(p))
	}
}

// Sync reconciles owner's record within sess: it creates the record on first
// use, repairs derived fields and credits the daily login at most once per
// session. The session is marked credited only once the credit is persisted.
func (s *Service) Sync(ctx context.Context, sess *Session, owner string) (*SyncResult, error) {
	return s.sync(ctx, sess, AuthenticatedWithWallet{Subject: owner, OwnerKey: owner})
}

func (s *Service) sync(ctx context.Context, sess *Session, p AuthenticatedWithWallet) (*SyncResult, error) {
	if sess == nil {
		return nil, fmt.Errorf("identity: session is required")
	}
	owner := strings.TrimSpace(p.OwnerKey)
	if _, err := ledger.ParseAddress(owner); err != nil {
		return nil, err
	}
	p.OwnerKey = owner

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.setPrincipal(p)

	unlock := s.lockOwner(owner)
	defer unlock()

	credit := sess.credited != owner && s.enabled(ctx, DailyLoginToggle)
	now := s.now()

	var (
		res   *SyncResult
		login progression.Outcome
	)
	u, err := s.store.Update(ctx, owner, func(cur *models.UserRecord) (*models.UserRecord, error) {
		res = &SyncResult{}
		login = progression.Outcome{}

		u := cur
		dirty := false
		if u == nil {
			u = s.newRecord(owner, now)
			res.Created = true
			dirty = true
		}
		if u.AvatarURL == "" {
			u.AvatarURL = s.avatarURL(owner)
			res.Repaired = !res.Created
			dirty = true
		}
		if normalized, changed := progression.Normalize(u); changed {
			u = normalized
			res.Repaired = res.Repaired || !res.Created
			dirty = true
		}
		if credit {
			login = progression.ApplyDailyLogin(u, now.In(s.loc))
			if login.Changed {
				u = login.User
				dirty = true
			}
		}
		if !dirty {
			return nil, nil
		}
		return u, nil
	})
	if err != nil {
		return nil, s.storeErr(err)
	}
	if res.Created {
		s.logger.WithField("address", owner).Info("created user record")
	}
	if credit {
		sess.credited = owner
	}

	if login.Changed {
		res.XPAwarded = login.XPAwarded
		res.LeveledUp = login.LeveledUp
		s.emit(ctx, &models.RewardEvent{
			Kind:    models.RewardDailyLogin,
			Address: owner,
			XP:      login.XPAwarded,
			Level:   u.Level,
			Streak:  u.LoginStreak,
		})
		s.emitLevelUp(ctx, login, u)
	}

	s.logger.WithFields(logrus.Fields{
		"address":   owner,
		"created":   res.Created,
		"repaired":  res.Repaired,
		"xp_award":  res.XPAwarded,
		"leveledUp": res.LeveledUp,
	}).Debug("identity synced")

	res.User = u
	return res, nil
}

// User returns the stored record for owner with derived fields normalized.
func (s *Service) User(ctx context.Context, owner string) (*models.UserRecord, error) {
	owner = strings.TrimSpace(owner)
	if _, err := ledger.ParseAddress(owner); err != nil {
		return nil, err
	}
	u, err := s.store.Get(ctx, owner)
	if err != nil {
		return nil, s.storeErr(err)
	}
	u, _ = progression.Normalize(u)
	return u, nil
}

// GrantXP applies an in-app activity reward outside the daily cycle.
func (s *Service) GrantXP(ctx context.Context, owner string, amount int64) (progression.Outcome, error) {
	if amount <= 0 {
		return progression.Outcome{}, fmt.Errorf("%w: %d", ErrInvalidXP, amount)
	}

	var out progression.Outcome
	err := s.mutate(ctx, owner, func(u *models.UserRecord) (*models.UserRecord, error) {
		var err error
		out, err = progression.ApplyXPGrant(u, amount)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidXP, err)
		}
		return out.User, nil
	})
	if err != nil {
		return progression.Outcome{}, err
	}

	s.emit(ctx, &models.RewardEvent{
		Kind:    models.RewardXPGrant,
		Address: out.User.Address,
		XP:      out.XPAwarded,
		Level:   out.User.Level,
	})
	s.emitLevelUp(ctx, out, out.User)
	return out, nil
}

// RecordTaskReward counts a completed task: one more task, tokens added to
// the earned total and xp granted.
func (s *Service) RecordTaskReward(ctx context.Context, owner string, xp int64, tokens decimal.Decimal) (progression.Outcome, error) {
	if xp < 0 {
		return progression.Outcome{}, fmt.Errorf("%w: %d", ErrInvalidXP, xp)
	}
	if tokens.Sign() < 0 {
		return progression.Outcome{}, fmt.Errorf("%w: %s", ErrInvalidReward, tokens.String())
	}

	var out progression.Outcome
	err := s.mutate(ctx, owner, func(u *models.UserRecord) (*models.UserRecord, error) {
		var err error
		out, err = progression.ApplyXPGrant(u, xp)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidXP, err)
		}
		next := out.User
		next.TasksCompleted++
		next.TokensEarned = next.TokensEarned.Add(tokens)
		out.Changed = true
		return next, nil
	})
	if err != nil {
		return progression.Outcome{}, err
	}

	s.emit(ctx, &models.RewardEvent{
		Kind:    models.RewardTask,
		Address: out.User.Address,
		XP:      out.XPAwarded,
		Level:   out.User.Level,
		Amount:  tokens,
	})
	s.emitLevelUp(ctx, out, out.User)
	return out, nil
}

// UpdateUsername sets the display name.
func (s *Service) UpdateUsername(ctx context.Context, owner, username string) (*models.UserRecord, error) {
	username = strings.TrimSpace(username)
	if username == "" || len(username) > constants.MaxUsernameLen || !usernameRe.MatchString(username) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUsername, username)
	}

	var updated *models.UserRecord
	err := s.mutate(ctx, owner, func(u *models.UserRecord) (*models.UserRecord, error) {
		u.Username = username
		updated = u
		return u, nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// mutate runs fn on the existing record inside a store transaction. fn may be
// retried on contention.
func (s *Service) mutate(ctx context.Context, owner string, fn func(*models.UserRecord) (*models.UserRecord, error)) error {
	owner = strings.TrimSpace(owner)
	if _, err := ledger.ParseAddress(owner); err != nil {
		return err
	}

	unlock := s.lockOwner(owner)
	defer unlock()

	var fnErr error
	_, err := s.store.Update(ctx, owner, func(cur *models.UserRecord) (*models.UserRecord, error) {
		fnErr = nil
		if cur == nil {
			return nil, profile.ErrNotFound
		}
		cur, _ = progression.Normalize(cur)
		next, err := fn(cur)
		if err != nil {
			fnErr = err
			return nil, err
		}
		return next, nil
	})
	if fnErr != nil {
		return fnErr
	}
	if err != nil {
		return s.storeErr(err)
	}
	return nil
}

func (s *Service) newRecord(owner string, now time.Time) *models.UserRecord {
	u := models.NewUserRecord(owner, now)
	u.AvatarURL = s.avatarURL(owner)
	return u
}

func (s *Service) lockOwner(owner string) func() {
	m, _ := s.locks.LoadOrStore(owner, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *Service) avatarURL(owner string) string {
	seed := owner
	if len(seed) > constants.AvatarSeedLength {
		seed = seed[:constants.AvatarSeedLength]
	}
	return s.avatar + "?seed=" + seed
}

func (s *Service) enabled(ctx context.Context, key string) bool {
	if s.toggles == nil {
		return true
	}
	return s.toggles.Enabled(ctx, key, true)
}

func (s *Service) storeErr(err error) error {
	if errors.Is(err, profile.ErrNotFound) {
		return ErrUserNotFound
	}
	s.logger.WithError(err).Warn("profile store call failed")
	return fmt.Errorf("%w: %w", ErrProfileStoreUnavailable, err)
}

func (s *Service) emit(ctx context.Context, ev *models.RewardEvent) {
	events.Emit(ctx, s.events, s.logger, ev)
}

func (s *Service) emitLevelUp(ctx context.Context, out progression.Outcome, u *models.UserRecord) {
	if !out.LeveledUp {
		return
	}
	s.emit(ctx, &models.RewardEvent{
		Kind:    models.RewardLevelUp,
		Address: u.Address,
		XP:      u.XP,
		Level:   u.Level,
	})
}
