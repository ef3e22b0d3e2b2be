package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aman-zulfiqar/solana-task-rewards/internal/identity"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var ErrSessionNotFound = errors.New("session not found")

// Identity is the part of identity.Service sessions drive.
type Identity interface {
	OnPrincipal(ctx context.Context, sess *identity.Session, p identity.Principal) (*identity.SyncResult, error)
}

type ManagerConfig struct {
	Identity Identity
	Balances BalanceSource // nil disables balance refresh
	Interval time.Duration
	Logger   *logrus.Logger
	Now      func() time.Time
}

// Manager owns open sessions. Each session with a ledger owner gets one
// refresher goroutine which stops when the session closes or changes owner.
type Manager struct {
	cfg ManagerConfig

	mu       sync.Mutex
	sessions map[string]*entry
}

type entry struct {
	sess *identity.Session
	// op serializes principal changes and teardown of one session.
	op sync.Mutex

	// guarded by Manager.mu
	lastSync  *identity.SyncResult
	refresher *Refresher
	cancel    context.CancelFunc
	done      chan struct{}
	closed    bool
}

// View is the externally visible state of a session.
type View struct {
	ID               string               `json:"id"`
	CreatedAt        time.Time            `json:"createdAt"`
	Owner            string               `json:"owner,omitempty"`
	WalletRequired   bool                 `json:"walletRequired"`
	Sync             *identity.SyncResult `json:"sync,omitempty"`
	Balance          *decimal.Decimal     `json:"balance,omitempty"`
	BalanceUpdatedAt *time.Time           `json:"balanceUpdatedAt,omitempty"`
}

func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Identity == nil {
		return nil, fmt.Errorf("session: identity is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{cfg: cfg, sessions: make(map[string]*entry)}, nil
}

// Open starts a session for p. An unauthenticated principal cannot open
// one. A principal without a wallet gets a session flagged WalletRequired.
func (m *Manager) Open(ctx context.Context, p identity.Principal) (*View, error) {
	if _, ok := p.(identity.Unauthenticated); ok || p == nil {
		return nil, identity.ErrNotAuthenticated
	}

	sess := identity.NewSession(uuid.NewString(), m.cfg.Now())
	res, err := m.cfg.Identity.OnPrincipal(ctx, sess, p)
	if err != nil && !errors.Is(err, identity.ErrWalletRequired) {
		return nil, err
	}

	e := &entry{sess: sess, lastSync: res}
	m.startRefresh(e)

	m.mu.Lock()
	m.sessions[sess.ID] = e
	m.mu.Unlock()

	m.cfg.Logger.WithFields(logrus.Fields{
		"session": sess.ID,
		"owner":   ownerOf(sess),
	}).Info("session opened")
	return m.view(e), nil
}

// Update applies a principal change to an open session, for example a
// wallet being connected. Signing out closes the session.
func (m *Manager) Update(ctx context.Context, id string, p identity.Principal) (*View, error) {
	if _, ok := p.(identity.Unauthenticated); ok {
		return nil, m.Close(id)
	}

	e, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	e.op.Lock()
	defer e.op.Unlock()

	before := ownerOf(e.sess)
	res, err := m.cfg.Identity.OnPrincipal(ctx, e.sess, p)
	if err != nil && !errors.Is(err, identity.ErrWalletRequired) {
		return nil, err
	}

	m.mu.Lock()
	closed := e.closed
	if !closed {
		e.lastSync = res
	}
	m.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	if after := ownerOf(e.sess); after != before {
		m.stopRefresh(e)
		m.startRefresh(e)
	}
	return m.view(e), nil
}

func (m *Manager) Get(id string) (*View, error) {
	e, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	return m.view(e), nil
}

// Session returns the identity session behind id.
func (m *Manager) Session(id string) (*identity.Session, error) {
	e, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	return e.sess, nil
}

// Close ends the session and waits for its refresher to exit.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	e, ok := m.sessions[id]
	if ok {
		e.closed = true
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	// Waits out an in-flight Update so a refresher it started is stopped too.
	e.op.Lock()
	m.stopRefresh(e)
	e.op.Unlock()
	m.cfg.Logger.WithField("session", id).Info("session closed")
	return nil
}

// CloseAll ends every session. Used on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		_ = m.Close(id)
	}
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) lookup(id string) (*entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return e, nil
}

func (m *Manager) startRefresh(e *entry) {
	owner := ownerOf(e.sess)
	if owner == "" || m.cfg.Balances == nil {
		return
	}

	r := NewRefresher(RefresherConfig{
		Source:   m.cfg.Balances,
		Owner:    owner,
		Interval: m.cfg.Interval,
		Logger:   m.cfg.Logger,
		Now:      m.cfg.Now,
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	m.mu.Lock()
	if e.closed {
		m.mu.Unlock()
		cancel()
		return
	}
	e.refresher, e.cancel, e.done = r, cancel, done
	m.mu.Unlock()

	go func() {
		defer close(done)
		_ = r.Start(ctx)
	}()
}

func (m *Manager) stopRefresh(e *entry) {
	m.mu.Lock()
	cancel, done := e.cancel, e.done
	e.refresher, e.cancel, e.done = nil, nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (m *Manager) view(e *entry) *View {
	m.mu.Lock()
	r, res := e.refresher, e.lastSync
	m.mu.Unlock()

	owner := ownerOf(e.sess)
	v := &View{
		ID:             e.sess.ID,
		CreatedAt:      e.sess.CreatedAt,
		Owner:          owner,
		WalletRequired: owner == "",
		Sync:           res,
	}
	if r != nil {
		if bal, at, ok := r.Balance(); ok {
			v.Balance = &bal
			v.BalanceUpdatedAt = &at
		}
	}
	return v
}

func ownerOf(sess *identity.Session) string {
	owner, _ := identity.OwnerKey(sess.Principal())
	return owner
}
