package lib

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

var ErrTooManyDecimals = errors.New("amount has more fractional digits than the token supports")

// ToDecimal converts token base units into a decimal value, raw / 10^decimals
func ToDecimal(raw *big.Int, decimals uint8) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -int32(decimals))
}

// FormatUnits renders base units with a fixed number of fractional digits
func FormatUnits(raw *big.Int, decimals uint8, precision int32) string {
	return ToDecimal(raw, decimals).StringFixed(precision)
}

// ParseUnits converts a human amount like "100.5" into base units
func ParseUnits(amount string, decimals uint8) (*big.Int, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("invalid amount %q: negative", amount)
	}
	if d.Exponent() < -int32(decimals) && !d.Equal(d.Truncate(int32(decimals))) {
		return nil, fmt.Errorf("%w: %q, max %d", ErrTooManyDecimals, amount, decimals)
	}
	return d.Shift(int32(decimals)).BigInt(), nil
}
