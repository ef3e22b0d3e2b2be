package ledger

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
)

// Instruction discriminators.
const (
	ataCreateIdempotent  byte = 1  // associated token program
	tokenTransferChecked byte = 12 // SPL token program
)

// NewCreateAssociatedTokenAccountIx creates owner's associated token account
// for mint, funded by payer. It uses the idempotent variant, so an account
// created by someone else between the existence check and submission does
// not fail the whole envelope.
func NewCreateAssociatedTokenAccountIx(payer, ata, owner, mint solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(associatedTokenProgramID, solana.AccountMetaSlice{
		solana.Meta(payer).WRITE().SIGNER(),
		solana.Meta(ata).WRITE(),
		solana.Meta(owner),
		solana.Meta(mint),
		solana.Meta(solana.SystemProgramID),
		solana.Meta(solana.TokenProgramID),
	}, []byte{ataCreateIdempotent})
}

// NewTransferCheckedIx moves amount base units from source to destination.
// The token program rejects it unless mint and decimals match the accounts.
func NewTransferCheckedIx(source, mint, destination, owner solana.PublicKey, amount uint64, decimals uint8) solana.Instruction {
	data := make([]byte, 10)
	data[0] = tokenTransferChecked
	binary.LittleEndian.PutUint64(data[1:9], amount)
	data[9] = decimals

	return solana.NewInstruction(solana.TokenProgramID, solana.AccountMetaSlice{
		solana.Meta(source).WRITE(),
		solana.Meta(mint),
		solana.Meta(destination).WRITE(),
		solana.Meta(owner).SIGNER(),
	}, data)
}
