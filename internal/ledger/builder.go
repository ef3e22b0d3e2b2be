package ledger

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// TransferIntent moves Amount (human units) of Mint from the Source owner's
// token account to the Destination owner's token account. An empty Mint
// means the client's configured mint.
type TransferIntent struct {
	Source      string
	Destination string
	Mint        string
	Amount      decimal.Decimal
}

// InstructionPlan is a resolved TransferIntent: parsed keys, derived token
// accounts, existence flags, the mint's decimals and the floored base amount.
type InstructionPlan struct {
	Payer              solana.PublicKey
	Source             solana.PublicKey
	Destination        solana.PublicKey
	Mint               solana.PublicKey
	SourceAccount      solana.PublicKey
	DestinationAccount solana.PublicKey
	SourceExists       bool
	DestinationExists  bool
	Decimals           uint8
	BaseAmount         uint64
}

// BuildInstructions returns [create-source?, create-destination?, transfer].
// Creation instructions are funded by the plan's payer.
func BuildInstructions(p InstructionPlan) ([]solana.Instruction, error) {
	for name, pk := range map[string]solana.PublicKey{
		"payer":               p.Payer,
		"source":              p.Source,
		"destination":         p.Destination,
		"mint":                p.Mint,
		"source account":      p.SourceAccount,
		"destination account": p.DestinationAccount,
	} {
		if pk.IsZero() {
			return nil, fmt.Errorf("%w: %s is zero", ErrInvalidAddress, name)
		}
	}
	if p.BaseAmount == 0 {
		return nil, fmt.Errorf("%w: zero base amount", ErrInvalidAmount)
	}

	ixs := make([]solana.Instruction, 0, 3)
	if !p.SourceExists {
		ixs = append(ixs, NewCreateAssociatedTokenAccountIx(p.Payer, p.SourceAccount, p.Source, p.Mint))
	}
	if !p.DestinationExists && !p.DestinationAccount.Equals(p.SourceAccount) {
		ixs = append(ixs, NewCreateAssociatedTokenAccountIx(p.Payer, p.DestinationAccount, p.Destination, p.Mint))
	}
	ixs = append(ixs, NewTransferCheckedIx(p.SourceAccount, p.Mint, p.DestinationAccount, p.Source, p.BaseAmount, p.Decimals))
	return ixs, nil
}
