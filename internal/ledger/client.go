package ledger

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aman-zulfiqar/solana-task-rewards/internal/rpc"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// RPC is the subset of the ledger node API the client needs.
type RPC interface {
	GetAccountInfo(ctx context.Context, address string, commitment string) (*rpc.AccountInfo, error)
	GetTokenAccountBalance(ctx context.Context, address string, commitment string) (*rpc.TokenAmount, error)
	GetTokenSupply(ctx context.Context, mint string, commitment string) (*rpc.TokenAmount, error)
	GetLatestBlockhash(ctx context.Context, commitment string) (*rpc.Blockhash, error)
	SendTransaction(ctx context.Context, encodedTx string, opts rpc.SendOptions) (string, error)
	GetSignatureStatuses(ctx context.Context, signatures []string) ([]*rpc.SignatureStatus, error)
}

// Signer authorizes transaction envelopes. Implementations may block on user
// approval and should return an error wrapping ErrSignatureRejected when the
// request is declined.
type Signer interface {
	PublicKey() solana.PublicKey
	SignTransaction(ctx context.Context, tx *solana.Transaction) error
}

// Status is the network's view of a submitted signature.
type Status int

const (
	StatusUnknown Status = iota
	StatusPending
	StatusConfirmed
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusConfirmed:
		return "confirmed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

const maxPollInterval = 4 * time.Second

type ClientConfig struct {
	RPC  RPC
	Mint string

	Commitment     string        // default "confirmed"
	ConfirmTimeout time.Duration // default 60s
	PollInterval   time.Duration // default 500ms
	SendOptions    *rpc.SendOptions

	Logger *logrus.Logger
}

// Client reads balances and moves tokens of one mint.
type Client struct {
	rpc            RPC
	resolver       *Resolver
	mint           solana.PublicKey
	commitment     string
	confirmTimeout time.Duration
	pollInterval   time.Duration
	sendOpts       rpc.SendOptions
	logger         *logrus.Logger

	mu       sync.Mutex
	decimals map[solana.PublicKey]uint8
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.RPC == nil {
		return nil, fmt.Errorf("ledger: RPC is required")
	}
	mint, err := ParseAddress(cfg.Mint)
	if err != nil {
		return nil, fmt.Errorf("ledger: mint: %w", err)
	}
	if cfg.Commitment == "" {
		cfg.Commitment = "confirmed"
	}
	if cfg.ConfirmTimeout == 0 {
		cfg.ConfirmTimeout = 60 * time.Second
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	sendOpts := rpc.DefaultSendOptions()
	if cfg.SendOptions != nil {
		sendOpts = *cfg.SendOptions
	}

	return &Client{
		rpc:            cfg.RPC,
		resolver:       NewResolver(cfg.RPC, cfg.Commitment),
		mint:           mint,
		commitment:     cfg.Commitment,
		confirmTimeout: cfg.ConfirmTimeout,
		pollInterval:   cfg.PollInterval,
		sendOpts:       sendOpts,
		logger:         cfg.Logger,
		decimals:       make(map[solana.PublicKey]uint8),
	}, nil
}

func (c *Client) Mint() solana.PublicKey { return c.mint }
func (c *Client) Resolver() *Resolver    { return c.resolver }

// GetBalance returns the owner's balance of the configured mint in human
// units. An owner without a token account has a zero balance.
func (c *Client) GetBalance(ctx context.Context, owner string) (decimal.Decimal, error) {
	ownerKey, err := ParseAddress(owner)
	if err != nil {
		return decimal.Zero, err
	}
	ata, err := c.resolver.Resolve(ownerKey, c.mint)
	if err != nil {
		return decimal.Zero, err
	}

	bal, err := c.rpc.GetTokenAccountBalance(ctx, ata.String(), c.commitment)
	if err != nil {
		if rpc.IsAccountNotFound(err) {
			return decimal.Zero, nil
		}
		return decimal.Zero, classify(err)
	}

	raw, err := parseRawAmount(bal.Amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	c.rememberDecimals(c.mint, bal.Decimals)
	return FromBaseUnits(raw, bal.Decimals), nil
}

// MintDecimals returns the decimal exponent of mint, fetched once and cached.
func (c *Client) MintDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error) {
	c.mu.Lock()
	d, ok := c.decimals[mint]
	c.mu.Unlock()
	if ok {
		return d, nil
	}

	supply, err := c.rpc.GetTokenSupply(ctx, mint.String(), c.commitment)
	if err != nil {
		return 0, fmt.Errorf("mint %s: %w", mint, classify(err))
	}
	c.rememberDecimals(mint, supply.Decimals)
	return supply.Decimals, nil
}

func (c *Client) rememberDecimals(mint solana.PublicKey, d uint8) {
	c.mu.Lock()
	c.decimals[mint] = d
	c.mu.Unlock()
}

// PreparedTransfer is an unsigned transaction envelope built from a
// TransferIntent.
type PreparedTransfer struct {
	Transaction          *solana.Transaction
	Plan                 InstructionPlan
	LastValidBlockHeight uint64
}

// Encode returns the envelope as base64 wire bytes with zeroed signature
// slots for the signers to fill in. The prepared transaction is not modified.
func (p *PreparedTransfer) Encode() (string, error) {
	unsigned := *p.Transaction
	unsigned.Signatures = make([]solana.Signature, p.Transaction.Message.Header.NumRequiredSignatures)
	return EncodeTransaction(&unsigned)
}

// Signature is the id the network will know the envelope by, or "" while
// the fee payer has not signed.
func (p *PreparedTransfer) Signature() string {
	if len(p.Transaction.Signatures) == 0 || p.Transaction.Signatures[0] == (solana.Signature{}) {
		return ""
	}
	return p.Transaction.Signatures[0].String()
}

// CreatedAccounts lists the token accounts the envelope creates.
func (p *PreparedTransfer) CreatedAccounts() []solana.PublicKey {
	var out []solana.PublicKey
	if !p.Plan.SourceExists {
		out = append(out, p.Plan.SourceAccount)
	}
	if !p.Plan.DestinationExists && !p.Plan.DestinationAccount.Equals(p.Plan.SourceAccount) {
		out = append(out, p.Plan.DestinationAccount)
	}
	return out
}

// Prepare resolves the intent and builds an unsigned envelope with a fresh
// blockhash. payer funds any account creation and pays the fee.
func (c *Client) Prepare(ctx context.Context, intent TransferIntent, payer solana.PublicKey) (*PreparedTransfer, error) {
	plan, err := c.plan(ctx, intent, payer)
	if err != nil {
		return nil, err
	}

	ixs, err := BuildInstructions(plan)
	if err != nil {
		return nil, err
	}

	tx, lastValid, err := c.newTransaction(ctx, ixs, payer)
	if err != nil {
		return nil, err
	}

	return &PreparedTransfer{
		Transaction:          tx,
		Plan:                 plan,
		LastValidBlockHeight: lastValid,
	}, nil
}

func (c *Client) plan(ctx context.Context, intent TransferIntent, payer solana.PublicKey) (InstructionPlan, error) {
	var plan InstructionPlan

	source, err := ParseAddress(intent.Source)
	if err != nil {
		return plan, fmt.Errorf("source: %w", err)
	}
	dest, err := ParseAddress(intent.Destination)
	if err != nil {
		return plan, fmt.Errorf("destination: %w", err)
	}
	mint := c.mint
	if strings.TrimSpace(intent.Mint) != "" {
		if mint, err = ParseAddress(intent.Mint); err != nil {
			return plan, fmt.Errorf("mint: %w", err)
		}
	}
	if payer.IsZero() {
		return plan, fmt.Errorf("%w: payer is required", ErrInvalidAddress)
	}
	if intent.Amount.Sign() <= 0 {
		return plan, fmt.Errorf("%w: %s must be positive", ErrInvalidAmount, intent.Amount.String())
	}

	decimals, err := c.MintDecimals(ctx, mint)
	if err != nil {
		return plan, err
	}
	base, err := ToBaseUnits(intent.Amount, decimals)
	if err != nil {
		return plan, err
	}

	srcATA, err := c.resolver.Resolve(source, mint)
	if err != nil {
		return plan, err
	}
	dstATA, err := c.resolver.Resolve(dest, mint)
	if err != nil {
		return plan, err
	}
	srcExists, err := c.resolver.Exists(ctx, srcATA)
	if err != nil {
		return plan, fmt.Errorf("source account: %w", err)
	}
	dstExists, err := c.resolver.Exists(ctx, dstATA)
	if err != nil {
		return plan, fmt.Errorf("destination account: %w", err)
	}

	return InstructionPlan{
		Payer:              payer,
		Source:             source,
		Destination:        dest,
		Mint:               mint,
		SourceAccount:      srcATA,
		DestinationAccount: dstATA,
		SourceExists:       srcExists,
		DestinationExists:  dstExists,
		Decimals:           decimals,
		BaseAmount:         base,
	}, nil
}

func (c *Client) newTransaction(ctx context.Context, ixs []solana.Instruction, payer solana.PublicKey) (*solana.Transaction, uint64, error) {
	bh, err := c.rpc.GetLatestBlockhash(ctx, c.commitment)
	if err != nil {
		return nil, 0, classify(err)
	}
	hash, err := solana.HashFromBase58(bh.Blockhash)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: invalid blockhash format: %v", ErrLedgerUnavailable, err)
	}

	tx, err := solana.NewTransaction(ixs, hash, solana.TransactionPayer(payer))
	if err != nil {
		return nil, 0, fmt.Errorf("build transaction: %w", err)
	}
	return tx, bh.LastValidBlockHeight, nil
}

// TransferResult describes a submitted transfer. Signature is set whenever the
// network accepted the envelope, including on ErrConfirmationTimeout.
type TransferResult struct {
	Signature          string
	SourceAccount      solana.PublicKey
	DestinationAccount solana.PublicKey
	BaseAmount         uint64
	CreatedAccounts    []solana.PublicKey
}

// PrepareSigned builds the intent with signer as payer and signs it. The
// envelope's Signature is final from here on, before anything reaches the
// network.
func (c *Client) PrepareSigned(ctx context.Context, intent TransferIntent, signer Signer) (*PreparedTransfer, error) {
	if signer == nil {
		return nil, fmt.Errorf("%w: signer is required", ErrSignatureRejected)
	}
	prepared, err := c.Prepare(ctx, intent, signer.PublicKey())
	if err != nil {
		return nil, err
	}
	if err := signer.SignTransaction(ctx, prepared.Transaction); err != nil {
		if errors.Is(err, ErrSignatureRejected) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrSignatureRejected, err)
	}
	if prepared.Signature() == "" {
		return nil, fmt.Errorf("%w: fee payer did not sign", ErrSignatureRejected)
	}
	return prepared, nil
}

// Transfer builds, signs, submits and confirms the intent. The signer must
// own the source and pays for the fee and any account creation.
//
// Transfer is not idempotent: calling it twice moves tokens twice.
func (c *Client) Transfer(ctx context.Context, intent TransferIntent, signer Signer) (*TransferResult, error) {
	if signer == nil {
		return nil, fmt.Errorf("%w: signer is required", ErrSignatureRejected)
	}
	payer := signer.PublicKey()
	source, err := ParseAddress(intent.Source)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	if !source.Equals(payer) {
		return nil, fmt.Errorf("%w: %s cannot sign for %s", ErrSignerMismatch, payer, source)
	}

	prepared, err := c.PrepareSigned(ctx, intent, signer)
	if err != nil {
		return nil, err
	}

	result := &TransferResult{
		SourceAccount:      prepared.Plan.SourceAccount,
		DestinationAccount: prepared.Plan.DestinationAccount,
		BaseAmount:         prepared.Plan.BaseAmount,
		CreatedAccounts:    prepared.CreatedAccounts(),
	}

	sig, err := c.Submit(ctx, prepared.Transaction)
	result.Signature = sig
	if err != nil {
		if sig == "" {
			return nil, err
		}
		return result, err
	}

	c.logger.WithFields(logrus.Fields{
		"signature":   sig,
		"source":      intent.Source,
		"destination": intent.Destination,
		"base_amount": prepared.Plan.BaseAmount,
		"created":     len(result.CreatedAccounts),
	}).Info("token transfer confirmed")

	return result, nil
}

// Submit verifies every signature on a fully signed envelope, sends it and
// waits for confirmation. ErrSubmissionFailed with an empty signature means
// the node refused the envelope. Any other failure after the send started
// returns the envelope's signature so the caller can query it later.
func (c *Client) Submit(ctx context.Context, tx *solana.Transaction) (string, error) {
	if err := verifySigned(tx); err != nil {
		return "", err
	}

	encoded, err := EncodeTransaction(tx)
	if err != nil {
		return "", err
	}

	sig, err := c.rpc.SendTransaction(ctx, encoded, c.sendOpts)
	if err != nil {
		var rpcErr *rpc.RPCError
		if errors.As(err, &rpcErr) {
			c.logger.WithError(err).Error("transaction rejected by node")
			return "", fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
		}
		// Transport failures leave the outcome open: the node may have
		// forwarded the envelope before the call failed.
		local := tx.Signatures[0].String()
		c.logger.WithError(err).WithField("signature", local).Warn("transaction submission outcome unknown")
		return local, fmt.Errorf("%w: send %s: %w", ErrConfirmationTimeout, local, err)
	}
	if sig == "" {
		sig = tx.Signatures[0].String()
	}

	c.logger.WithField("signature", sig).Debug("transaction submitted, awaiting confirmation")

	if err := c.confirm(ctx, sig); err != nil {
		return sig, err
	}
	return sig, nil
}

// SubmitEncoded decodes a base64 envelope signed elsewhere and submits it.
func (c *Client) SubmitEncoded(ctx context.Context, encoded string) (string, error) {
	tx, err := DecodeTransaction(encoded)
	if err != nil {
		return "", err
	}
	return c.Submit(ctx, tx)
}

func verifySigned(tx *solana.Transaction) error {
	if tx == nil {
		return fmt.Errorf("%w: nil transaction", ErrSignatureRejected)
	}
	required := int(tx.Message.Header.NumRequiredSignatures)
	if required == 0 || len(tx.Signatures) != required {
		return fmt.Errorf("%w: have %d of %d signatures", ErrSignatureRejected, len(tx.Signatures), required)
	}
	if err := tx.VerifySignatures(); err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureRejected, err)
	}
	return nil
}

// confirm polls the signature until it reaches the client's commitment,
// fails on chain, or the confirmation timeout elapses.
func (c *Client) confirm(ctx context.Context, sig string) error {
	ctx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()

	interval := c.pollInterval
	for {
		status, err := c.SignatureStatus(ctx, sig)
		if err != nil {
			c.logger.WithError(err).WithField("signature", sig).Debug("confirmation poll failed")
		}
		switch status {
		case StatusConfirmed:
			return nil
		case StatusFailed:
			return fmt.Errorf("%w: %s", ErrTransactionFailed, sig)
		}

		select {
		case <-ctx.Done():
			c.logger.WithField("signature", sig).Warn("transaction confirmation timed out")
			return fmt.Errorf("%w: %s", ErrConfirmationTimeout, sig)
		case <-time.After(interval):
		}
		if interval < maxPollInterval {
			interval *= 2
			if interval > maxPollInterval {
				interval = maxPollInterval
			}
		}
	}
}

// SignatureStatus reports whether sig has reached the client's commitment.
func (c *Client) SignatureStatus(ctx context.Context, sig string) (Status, error) {
	statuses, err := c.rpc.GetSignatureStatuses(ctx, []string{sig})
	if err != nil {
		return StatusUnknown, classify(err)
	}
	if len(statuses) == 0 || statuses[0] == nil {
		return StatusUnknown, nil
	}

	st := statuses[0]
	if st.Err != nil {
		return StatusFailed, nil
	}
	switch st.ConfirmationStatus {
	case "finalized":
		return StatusConfirmed, nil
	case "confirmed":
		if c.commitment == "finalized" {
			return StatusPending, nil
		}
		return StatusConfirmed, nil
	default:
		return StatusPending, nil
	}
}

// EnsureAccount returns the owner's token account for the configured mint,
// creating it (funded by signer) when it does not exist yet.
func (c *Client) EnsureAccount(ctx context.Context, owner string, signer Signer) (solana.PublicKey, bool, error) {
	ownerKey, err := ParseAddress(owner)
	if err != nil {
		return solana.PublicKey{}, false, err
	}
	ata, err := c.resolver.Resolve(ownerKey, c.mint)
	if err != nil {
		return solana.PublicKey{}, false, err
	}
	exists, err := c.resolver.Exists(ctx, ata)
	if err != nil {
		return solana.PublicKey{}, false, err
	}
	if exists {
		return ata, false, nil
	}
	if signer == nil {
		return solana.PublicKey{}, false, fmt.Errorf("%w: signer is required", ErrSignatureRejected)
	}

	payer := signer.PublicKey()
	ix := NewCreateAssociatedTokenAccountIx(payer, ata, ownerKey, c.mint)
	tx, _, err := c.newTransaction(ctx, []solana.Instruction{ix}, payer)
	if err != nil {
		return solana.PublicKey{}, false, err
	}
	if err := signer.SignTransaction(ctx, tx); err != nil {
		return solana.PublicKey{}, false, fmt.Errorf("%w: %v", ErrSignatureRejected, err)
	}
	sig, err := c.Submit(ctx, tx)
	if err != nil {
		return ata, false, err
	}

	c.logger.WithFields(logrus.Fields{
		"owner":     owner,
		"account":   ata.String(),
		"signature": sig,
	}).Info("token account created")
	return ata, true, nil
}

// EncodeTransaction serializes tx to base64 wire format.
func EncodeTransaction(tx *solana.Transaction) (string, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to serialize transaction: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeTransaction parses a base64 wire-format transaction.
func DecodeTransaction(encoded string) (*solana.Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64: %v", ErrMalformedTransaction, err)
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTransaction, err)
	}
	return tx, nil
}
