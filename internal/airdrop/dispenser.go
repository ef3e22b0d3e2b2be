// Package airdrop grants the one-time welcome airdrop.
package airdrop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aman-zulfiqar/solana-task-rewards/internal/constants"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/events"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/ledger"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/models"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/profile"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotEligible        = errors.New("user is not eligible for the airdrop")
	ErrDispenseInProgress = errors.New("airdrop already in progress")
	// ErrOutcomeUncertain means an earlier transfer may have landed; the
	// caller should retry later rather than assume nothing happened.
	ErrOutcomeUncertain = errors.New("airdrop outcome uncertain")
	// ErrNotRecorded means tokens were sent but the flag write failed. The
	// next dispense reconciles it without paying again.
	ErrNotRecorded      = errors.New("airdrop sent but not recorded")
	ErrGuardUnavailable = errors.New("airdrop guard unavailable")
)

// State is the per-user airdrop state machine.
type State string

const (
	StateNotEligible State = "not_eligible"
	StateEligible    State = "eligible"
	StateDispensed   State = "dispensed"
)

// Eligibility derives the state from whether the principal has a ledger
// account and the persisted record (nil if none).
func Eligibility(hasWallet bool, u *models.UserRecord) State {
	switch {
	case !hasWallet || u == nil || u.Address == "":
		return StateNotEligible
	case u.HasReceivedAirdrop:
		return StateDispensed
	default:
		return StateEligible
	}
}

type Outcome string

const (
	OutcomeDispensed        Outcome = "dispensed"
	OutcomeAlreadyDispensed Outcome = "already_dispensed"
)

type Result struct {
	Outcome   Outcome         `json:"outcome"`
	Signature string          `json:"signature,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
}

// Ledger is the part of the token ledger the dispenser uses. Signing and
// submitting are separate steps so the signature is known before the send.
type Ledger interface {
	PrepareSigned(ctx context.Context, intent ledger.TransferIntent, signer ledger.Signer) (*ledger.PreparedTransfer, error)
	Submit(ctx context.Context, tx *solana.Transaction) (string, error)
	SignatureStatus(ctx context.Context, sig string) (ledger.Status, error)
}

type Config struct {
	Ledger   Ledger
	Store    profile.Store
	Guard    Guard
	Treasury ledger.Signer
	Amount   decimal.Decimal
	Mint     string // empty = ledger's mint

	// LockWait bounds how long a dispense waits for a concurrent one on the
	// same owner. Default 5s.
	LockWait time.Duration
	// PendingTTL is how long an unseen pending signature blocks new
	// transfers. It must exceed the blockhash lifetime, after which the
	// envelope can no longer land. Default 2m.
	PendingTTL time.Duration

	Events events.Sink
	Logger *logrus.Logger
	Now    func() time.Time
}

type Dispenser struct {
	cfg Config
}

func NewDispenser(cfg Config) (*Dispenser, error) {
	if cfg.Ledger == nil || cfg.Store == nil || cfg.Treasury == nil {
		return nil, fmt.Errorf("airdrop: ledger, store and treasury are required")
	}
	if cfg.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("airdrop: amount must be positive")
	}
	if cfg.Guard == nil {
		cfg.Guard = NewMemoryGuard()
	}
	if cfg.LockWait == 0 {
		cfg.LockWait = 5 * time.Second
	}
	if cfg.PendingTTL == 0 {
		cfg.PendingTTL = constants.PendingSignatureTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Dispenser{cfg: cfg}, nil
}

func (d *Dispenser) Amount() decimal.Decimal { return d.cfg.Amount }

// Dispense sends the airdrop to user at most once. A user whose snapshot
// already carries the flag gets OutcomeAlreadyDispensed without any network
// or store call.
func (d *Dispenser) Dispense(ctx context.Context, user *models.UserRecord) (*Result, error) {
	if user == nil || user.Address == "" {
		return nil, ErrNotEligible
	}
	if _, err := ledger.ParseAddress(user.Address); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotEligible, err)
	}
	if user.HasReceivedAirdrop {
		return d.already(""), nil
	}

	addr := user.Address
	log := d.cfg.Logger.WithField("address", addr)

	lockCtx, cancel := context.WithTimeout(ctx, d.cfg.LockWait)
	lease, err := d.cfg.Guard.Acquire(lockCtx, addr)
	cancel()
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	current, err := d.cfg.Store.Get(ctx, addr)
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			return nil, fmt.Errorf("%w: no profile for %s", ErrNotEligible, addr)
		}
		return nil, err
	}
	if current.HasReceivedAirdrop {
		return d.already(""), nil
	}

	pending, err := d.cfg.Guard.PendingSignature(ctx, addr)
	if err != nil {
		return nil, err
	}
	if pending != nil {
		res, done, err := d.reconcile(ctx, addr, pending)
		if done {
			return res, err
		}
	}

	intent := ledger.TransferIntent{
		Source:      d.cfg.Treasury.PublicKey().String(),
		Destination: addr,
		Mint:        d.cfg.Mint,
		Amount:      d.cfg.Amount,
	}
	prepared, err := d.cfg.Ledger.PrepareSigned(ctx, intent, d.cfg.Treasury)
	if err != nil {
		log.WithError(err).Error("airdrop transfer could not be prepared")
		return nil, err
	}
	sig := prepared.Signature()
	log = log.WithField("signature", sig)

	// The signature is parked before the send so that a crash or a lost
	// lease never hides a transfer that may land.
	if err := lease.SetPending(ctx, Pending{Signature: sig, CreatedAt: d.cfg.Now().UTC()}); err != nil {
		if errors.Is(err, ErrLockLost) {
			log.Warn("airdrop lock lost before submission")
			return nil, fmt.Errorf("%w: %w", ErrDispenseInProgress, err)
		}
		return nil, err
	}

	submitted, err := d.cfg.Ledger.Submit(ctx, prepared.Transaction)

	// Bookkeeping after a submission must outlive a cancelled request.
	bctx := context.WithoutCancel(ctx)
	if err != nil {
		if submitted == "" || errors.Is(err, ledger.ErrTransactionFailed) {
			// Refused by the node or failed on chain: nothing moved.
			d.clearPending(bctx, addr, sig)
			log.WithError(err).Error("airdrop transfer failed")
			return nil, err
		}
		log.WithError(err).Warn("airdrop outcome uncertain")
		return nil, fmt.Errorf("%w: %w", ErrOutcomeUncertain, err)
	}

	if err := d.markReceived(bctx, addr); err != nil {
		// The parked signature lets the next dispense record it.
		log.WithError(err).Error("airdrop sent but flag not persisted")
		return &Result{Outcome: OutcomeDispensed, Signature: sig, Amount: d.cfg.Amount},
			fmt.Errorf("%w: %w", ErrNotRecorded, err)
	}
	d.clearPending(bctx, addr, sig)

	d.emit(bctx, addr, sig)
	log.Info("airdrop dispensed")
	return &Result{Outcome: OutcomeDispensed, Signature: sig, Amount: d.cfg.Amount}, nil
}

// reconcile resolves a parked signature. done=false means the earlier
// attempt is known not to have landed and a new transfer may proceed.
func (d *Dispenser) reconcile(ctx context.Context, addr string, p *Pending) (*Result, bool, error) {
	log := d.cfg.Logger.WithFields(logrus.Fields{"address": addr, "signature": p.Signature})

	status, err := d.cfg.Ledger.SignatureStatus(ctx, p.Signature)
	if err != nil {
		return nil, true, fmt.Errorf("%w: %w", ErrOutcomeUncertain, err)
	}

	switch status {
	case ledger.StatusConfirmed:
		if err := d.markReceived(ctx, addr); err != nil {
			return nil, true, fmt.Errorf("%w: %w", ErrNotRecorded, err)
		}
		d.clearPending(ctx, addr, p.Signature)
		d.emit(ctx, addr, p.Signature)
		log.Info("pending airdrop confirmed")
		return d.already(p.Signature), true, nil

	case ledger.StatusPending:
		return nil, true, fmt.Errorf("%w: %s still pending", ErrOutcomeUncertain, p.Signature)

	case ledger.StatusUnknown:
		if d.cfg.Now().Sub(p.CreatedAt) < d.cfg.PendingTTL {
			return nil, true, fmt.Errorf("%w: %s not yet visible", ErrOutcomeUncertain, p.Signature)
		}
		log.Info("pending airdrop expired unseen, retrying")

	case ledger.StatusFailed:
		log.Info("pending airdrop failed on chain, retrying")
	}

	if err := d.cfg.Guard.ClearPending(ctx, addr, p.Signature); err != nil {
		return nil, true, err
	}
	return nil, false, nil
}

func (d *Dispenser) clearPending(ctx context.Context, addr, sig string) {
	if err := d.cfg.Guard.ClearPending(ctx, addr, sig); err != nil {
		d.cfg.Logger.WithError(err).WithFields(logrus.Fields{"address": addr, "signature": sig}).Warn("failed to clear pending airdrop")
	}
}

func (d *Dispenser) markReceived(ctx context.Context, addr string) error {
	prev, err := d.cfg.Store.MarkAirdropReceived(ctx, addr)
	if err != nil {
		return err
	}
	if prev {
		d.cfg.Logger.WithField("address", addr).Warn("airdrop flag was already set")
	}
	return nil
}

func (d *Dispenser) already(sig string) *Result {
	return &Result{Outcome: OutcomeAlreadyDispensed, Signature: sig, Amount: d.cfg.Amount}
}

func (d *Dispenser) emit(ctx context.Context, addr, sig string) {
	events.Emit(ctx, d.cfg.Events, d.cfg.Logger, &models.RewardEvent{
		Kind:      models.RewardAirdrop,
		Address:   addr,
		Amount:    d.cfg.Amount,
		Signature: sig,
	})
}
