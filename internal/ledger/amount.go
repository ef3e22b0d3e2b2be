package ledger

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// ToBaseUnits converts a human amount to mint base units, flooring any
// precision the mint cannot represent so a transfer never over-pays.
func ToBaseUnits(amount decimal.Decimal, decimals uint8) (uint64, error) {
	if amount.Sign() <= 0 {
		return 0, fmt.Errorf("%w: %s must be positive", ErrInvalidAmount, amount.String())
	}

	scaled := amount.Shift(int32(decimals)).Floor()
	if scaled.Sign() <= 0 {
		return 0, fmt.Errorf("%w: %s is below the smallest unit", ErrInvalidAmount, amount.String())
	}

	raw := scaled.BigInt()
	if !raw.IsUint64() {
		return 0, fmt.Errorf("%w: %s overflows base units", ErrInvalidAmount, amount.String())
	}
	return raw.Uint64(), nil
}

// FromBaseUnits scales raw base units back to a human amount.
func FromBaseUnits(raw uint64, decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(raw), -int32(decimals))
}

func parseRawAmount(s string) (uint64, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 || !v.IsUint64() {
		return 0, fmt.Errorf("invalid raw token amount %q", s)
	}
	return v.Uint64(), nil
}
