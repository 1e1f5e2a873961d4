package sequence

import (
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUnits(t *testing.T) {
	tests := []struct {
		in       string
		decimals int32
		want     string
	}{
		{"0.50", 18, "500000000000000000"},
		{"1", 18, "1000000000000000000"},
		{"0", 18, "0"},
		{"100", 6, "100000000"},
		{"1.2345678", 6, "1234567"},
		{" 2.5 ", 6, "2500000"},
	}
	for _, tt := range tests {
		got, err := ParseUnits(tt.in, tt.decimals)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got.String(), tt.in)
	}

	_, err := ParseUnits("", 6)
	assert.Error(t, err)
	_, err = ParseUnits("abc", 6)
	assert.Error(t, err)
}

func TestParseUnits_BoundsExponent(t *testing.T) {
	for _, in := range []string{"0.5e-100000000", "1e40", "1e-37", "0." + strings.Repeat("1", 90)} {
		start := time.Now()
		_, err := ParseUnits(in, PriceDecimals)
		assert.Error(t, err, in)
		assert.Less(t, time.Since(start), time.Second, in)
	}

	got, err := ParseUnits("5e-1", PriceDecimals)
	require.NoError(t, err)
	assert.Equal(t, "500000000000000000", got.String())

	got, err = ParseUnits("0.1234567890123456789", PriceDecimals)
	require.NoError(t, err)
	assert.Equal(t, "123456789012345678", got.String())
}

func TestPriceRoundTrip(t *testing.T) {
	for _, p := range []string{"0", "0.1", "0.50", "0.999999999999999999", "1", "0.000000000000000001", "0.123456789012345678"} {
		scaled, err := ParseUnits(p, PriceDecimals)
		require.NoError(t, err)

		back := decimal.RequireFromString(FormatUnits(scaled, PriceDecimals))
		assert.True(t, back.Equal(decimal.RequireFromString(p)), "%s -> %s", p, back)
	}
}

func TestFormatPriceAndUSDC(t *testing.T) {
	assert.Equal(t, "0.50", FormatPrice(big.NewInt(500000000000000000)))
	assert.Equal(t, "0.00", FormatPrice(nil))
	assert.Equal(t, "123.46", FormatUSDC(big.NewInt(123456789)))
	assert.Equal(t, "100.00", FormatUSDC(big.NewInt(100000000)))
}
