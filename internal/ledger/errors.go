package ledger

import "errors"

var (
	// ErrInvalidAddress is returned for owner, mint or account strings that do
	// not parse as ledger addresses. Never retried.
	ErrInvalidAddress = errors.New("invalid ledger address")
	// ErrInvalidAmount is returned for non-positive amounts or amounts that do
	// not fit the mint's base units.
	ErrInvalidAmount = errors.New("invalid token amount")
	// ErrAccountNotFound marks a token account or mint the network has no
	// record of. Balance queries treat it as zero and never return it.
	ErrAccountNotFound = errors.New("account not found")
	// ErrLedgerUnavailable wraps transient network failures.
	ErrLedgerUnavailable = errors.New("ledger unavailable")
	// ErrSignatureRejected is returned when the signer declined or produced
	// an invalid signature. Nothing was submitted.
	ErrSignatureRejected = errors.New("signature rejected")
	// ErrSignerMismatch is returned when the signer does not own the source.
	ErrSignerMismatch = errors.New("signer does not own source account")
	// ErrMalformedTransaction is returned for envelopes that do not decode.
	ErrMalformedTransaction = errors.New("malformed transaction")
	// ErrSubmissionFailed is returned when the node answered the send with a
	// JSON-RPC error. No funds moved.
	ErrSubmissionFailed = errors.New("transaction submission failed")
	// ErrConfirmationTimeout means the transaction may have reached the
	// network but was not seen confirmed in time. This includes sends that
	// failed in transport. The outcome is unknown; re-query before retrying.
	ErrConfirmationTimeout = errors.New("transaction confirmation timed out")
	// ErrTransactionFailed means the transaction landed with an on-chain error.
	ErrTransactionFailed = errors.New("transaction failed on chain")
)
