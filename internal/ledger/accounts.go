package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/aman-zulfiqar/solana-task-rewards/internal/rpc"
	"github.com/gagliardetto/solana-go"
)

var (
	// SPL Associated Token Account program
	associatedTokenProgramID = solana.MustPublicKeyFromBase58("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
)

// ParseAddress parses a base58 ledger address.
func ParseAddress(s string) (solana.PublicKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return solana.PublicKey{}, fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	pk, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %q: %v", ErrInvalidAddress, s, err)
	}
	return pk, nil
}

// FindAssociatedTokenAddress derives the ATA PDA for (owner, mint).
func FindAssociatedTokenAddress(owner, mint solana.PublicKey) (ata solana.PublicKey, bump uint8, err error) {
	// Seeds: [owner, token_program, mint]
	return solana.FindProgramAddress(
		[][]byte{
			owner.Bytes(),
			solana.TokenProgramID.Bytes(),
			mint.Bytes(),
		},
		associatedTokenProgramID,
	)
}

// Resolver locates the associated token account of an owner and checks
// whether it exists.
type Resolver struct {
	rpc        RPC
	commitment string
}

func NewResolver(client RPC, commitment string) *Resolver {
	if commitment == "" {
		commitment = "confirmed"
	}
	return &Resolver{rpc: client, commitment: commitment}
}

// Resolve derives the token account for (owner, mint). No network call.
func (r *Resolver) Resolve(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	if owner.IsZero() || mint.IsZero() {
		return solana.PublicKey{}, fmt.Errorf("%w: owner and mint are required", ErrInvalidAddress)
	}
	ata, _, err := FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: derive token account: %v", ErrInvalidAddress, err)
	}
	return ata, nil
}

// Exists reports whether the account is present on chain. A missing account
// is (false, nil); every other failure is returned as an error.
func (r *Resolver) Exists(ctx context.Context, account solana.PublicKey) (bool, error) {
	info, err := r.rpc.GetAccountInfo(ctx, account.String(), r.commitment)
	if err != nil {
		if rpc.IsAccountNotFound(err) {
			return false, nil
		}
		return false, classify(err)
	}
	return info != nil, nil
}

// classify maps an rpc failure onto the ledger error kinds. A cancelled or
// expired context is ledger-unavailable too and still matches the context
// error.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case rpc.IsAccountNotFound(err):
		return fmt.Errorf("%w: %w", ErrAccountNotFound, err)
	case rpc.IsInvalidParams(err):
		return fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	default:
		return fmt.Errorf("%w: %w", ErrLedgerUnavailable, err)
	}
}
