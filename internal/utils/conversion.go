/*
This file contains common utility functions for converting between raw on-chain
integer amounts and 18-decimal fixed point, with explicit precision handling.
*/

package utils

import (
	"errors"
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidPrecision = errors.New("precision is invalid")
	ErrAmountNil        = errors.New("amount is nil")
	ErrAmountNegative   = errors.New("amount is negative")
	ErrConversionFailed = errors.New("conversion failed")
)

// RawToDec converts a raw integer token amount to a whole-token decimal using
// the token's precision (e.g. 1_500_000 with precision 6 becomes 1.5).
func RawToDec(amount *big.Int, precision uint8) (sdkmath.LegacyDec, error) {
	if amount == nil {
		return sdkmath.LegacyZeroDec(), ErrAmountNil
	}
	if precision > 18 {
		return sdkmath.LegacyZeroDec(), fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, precision)
	}
	if amount.Sign() < 0 {
		return sdkmath.LegacyZeroDec(), ErrAmountNegative
	}

	decAmount := sdkmath.LegacyNewDecFromBigInt(new(big.Int).Set(amount))
	factor := sdkmath.LegacyNewDec(1)
	for i := uint8(0); i < precision; i++ {
		factor = factor.Mul(sdkmath.LegacyNewDec(10))
	}

	return decAmount.Quo(factor), nil
}

// DecToRaw converts a whole-token decimal to a raw integer amount using the
// token's precision, truncating any dust below one raw unit.
func DecToRaw(amount sdkmath.LegacyDec, precision uint8) (*big.Int, error) {
	if amount.IsNil() {
		return nil, ErrAmountNil
	}
	if precision > 18 {
		return nil, fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, precision)
	}
	if amount.IsNegative() {
		return nil, ErrAmountNegative
	}
	if amount.IsZero() {
		return big.NewInt(0), nil
	}

	factor := sdkmath.LegacyNewDec(1)
	for i := uint8(0); i < precision; i++ {
		factor = factor.Mul(sdkmath.LegacyNewDec(10))
	}

	result := amount.Mul(factor).TruncateInt()
	if result.IsNegative() {
		return nil, fmt.Errorf("%w: truncation produced a negative amount", ErrConversionFailed)
	}
	return result.BigInt(), nil
}
