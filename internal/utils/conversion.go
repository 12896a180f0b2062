/*
Fixed-point helpers for moving between native token precision, the 18-decimal
reference unit, and float64 at the reporting boundary. All conversions
truncate; nothing here rounds up.
*/

package utils

import (
	"errors"
	"fmt"
	"math"

	sdkmath "cosmossdk.io/math"
)

var (
	ErrInvalidPrecision = errors.New("precision is invalid")
	ErrAmountNil        = errors.New("amount is nil")
	ErrAmountNegative   = errors.New("amount is negative")
	ErrNotFinite        = errors.New("value is not finite")
	ErrZeroPrice        = errors.New("price is zero")
)

// ReferenceDecimals mirrors types.ReferenceDecimals without importing it, so
// this package stays a leaf.
const ReferenceDecimals = 18

// Pow10 returns 10^n as an Int. n must be within [0, 18].
func Pow10(n int) (sdkmath.Int, error) {
	if n < 0 || n > ReferenceDecimals {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, n)
	}
	return sdkmath.NewIntWithDecimal(1, n), nil
}

func checkAmount(amount sdkmath.Int) error {
	if amount.IsNil() {
		return ErrAmountNil
	}
	if amount.IsNegative() {
		return ErrAmountNegative
	}
	return nil
}

// RawToReference scales a raw native amount up to the 18-decimal reference
// precision. Lossless because native precision never exceeds 18.
func RawToReference(amount sdkmath.Int, decimals int) (sdkmath.Int, error) {
	if err := checkAmount(amount); err != nil {
		return sdkmath.ZeroInt(), err
	}
	factor, err := Pow10(ReferenceDecimals - decimals)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return amount.Mul(factor), nil
}

// ReferenceToRaw scales an 18-decimal value down to native precision,
// truncating sub-unit dust.
func ReferenceToRaw(value sdkmath.Int, decimals int) (sdkmath.Int, error) {
	if err := checkAmount(value); err != nil {
		return sdkmath.ZeroInt(), err
	}
	factor, err := Pow10(ReferenceDecimals - decimals)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return value.Quo(factor), nil
}

// ValueOf prices a raw native amount: amount * price / 10^decimals, where
// price is 18-decimal reference units per whole token. The result is an
// 18-decimal reference value.
func ValueOf(amount, price sdkmath.Int, decimals int) (sdkmath.Int, error) {
	if err := checkAmount(amount); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if err := checkAmount(price); err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("price: %w", err)
	}
	factor, err := Pow10(decimals)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return amount.Mul(price).Quo(factor), nil
}

// AmountForValue inverts ValueOf: the raw native amount worth the given
// 18-decimal reference value at the given price. Truncation under-sizes the
// amount, never over-sizes it.
func AmountForValue(value, price sdkmath.Int, decimals int) (sdkmath.Int, error) {
	if err := checkAmount(value); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if err := checkAmount(price); err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("price: %w", err)
	}
	if price.IsZero() {
		return sdkmath.ZeroInt(), ErrZeroPrice
	}
	factor, err := Pow10(decimals)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return value.Mul(factor).Quo(price), nil
}

// Float64ToReference converts whole reference units to an 18-decimal Int.
// Goes through a string to avoid binary float artifacts.
func Float64ToReference(amount float64) (sdkmath.Int, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: amount is %f", ErrNotFinite, amount)
	}
	if amount < 0 {
		return sdkmath.ZeroInt(), ErrAmountNegative
	}
	if amount == 0 {
		return sdkmath.ZeroInt(), nil
	}
	dec, err := sdkmath.LegacyNewDecFromStr(fmt.Sprintf("%.18f", amount))
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	factor := sdkmath.LegacyNewDecFromInt(sdkmath.NewIntWithDecimal(1, ReferenceDecimals))
	return dec.Mul(factor).TruncateInt(), nil
}

// ReferenceToFloat64 converts an 18-decimal Int to whole reference units for
// reporting. Not for arithmetic.
func ReferenceToFloat64(value sdkmath.Int) (float64, error) {
	if err := checkAmount(value); err != nil {
		return 0, err
	}
	dec := sdkmath.LegacyNewDecFromInt(value)
	factor := sdkmath.LegacyNewDecFromInt(sdkmath.NewIntWithDecimal(1, ReferenceDecimals))
	result, err := dec.Quo(factor).Float64()
	if err != nil {
		return 0, err
	}
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0, fmt.Errorf("%w: result is %f", ErrNotFinite, result)
	}
	return result, nil
}
