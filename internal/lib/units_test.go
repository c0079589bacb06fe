package lib

import (
	"math/big"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

func TestFormatUnits(t *testing.T) {
	require.Equal(t, "1.50", FormatUnits(big.NewInt(1_500_000), 6, 2))
	require.Equal(t, "0.00", FormatUnits(nil, 6, 2))
	require.Equal(t, "0.000001", FormatUnits(big.NewInt(1), 6, 6))
	require.Equal(t, "1234", FormatUnits(big.NewInt(1234), 0, 0))
}

func TestParseUnits(t *testing.T) {
	v, err := ParseUnits("100.5", 6)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(100_500_000), v)

	v, err = ParseUnits("1.500000000", 6)
	require.NoError(t, err, "trailing zeros are not extra precision")
	require.Equal(t, big.NewInt(1_500_000), v)

	_, err = ParseUnits("0.0000001", 6)
	require.ErrorIs(t, err, ErrTooManyDecimals)

	_, err = ParseUnits("-1", 6)
	require.Error(t, err)

	_, err = ParseUnits("ten", 6)
	require.Error(t, err)
}

func TestUnitsRoundTrip(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("parsing a full precision rendering gives the raw amount back", prop.ForAll(
		func(raw uint64, decimals int) bool {
			d := uint8(decimals)
			amount := new(big.Int).SetUint64(raw)
			parsed, err := ParseUnits(FormatUnits(amount, d, int32(d)), d)
			return err == nil && parsed.Cmp(amount) == 0
		},
		gen.UInt64(),
		gen.IntRange(0, 18),
	))

	properties.Property("display is raw / 10^decimals", prop.ForAll(
		func(raw uint64, decimals int) bool {
			amount := new(big.Int).SetUint64(raw)
			want := new(big.Rat).SetFrac(amount, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
			got, ok := new(big.Rat).SetString(ToDecimal(amount, uint8(decimals)).String())
			return ok && got.Cmp(want) == 0
		},
		gen.UInt64(),
		gen.IntRange(0, 18),
	))

	properties.TestingRun(t)
}
