package sequence

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// PriceDecimals is the fixed-point scale of on-chain prices.
	PriceDecimals = 18
	// USDCDecimals is the fixed-point scale of USDC amounts.
	USDCDecimals = 6

	// maxDecimalLen and maxExponent bound what parseDecimal accepts. Rescaling
	// a decimal costs time proportional to its exponent, so "1e-50000000"
	// must be refused before any comparison touches it.
	maxDecimalLen = 80
	maxExponent   = 36
)

// ParseUnits scales a decimal string by 10^decimals. Fractional digits
// beyond the scale are truncated toward zero.
func ParseUnits(s string, decimals int32) (*big.Int, error) {
	d, err := parseDecimal(s)
	if err != nil {
		return nil, err
	}
	return d.Shift(decimals).Truncate(0).BigInt(), nil
}

// FormatUnits renders a fixed-point integer as an exact decimal string.
func FormatUnits(v *big.Int, decimals int32) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -decimals).String()
}

// FormatPrice renders an 18-decimal price with two fractional digits.
func FormatPrice(v *big.Int) string {
	return formatFixed(v, PriceDecimals)
}

// FormatUSDC renders a 6-decimal USDC amount with two fractional digits.
func FormatUSDC(v *big.Int) string {
	return formatFixed(v, USDCDecimals)
}

func formatFixed(v *big.Int, decimals int32) string {
	if v == nil {
		return "0.00"
	}
	return decimal.NewFromBigInt(v, -decimals).StringFixed(2)
}

func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("sequence: empty decimal")
	}
	if len(s) > maxDecimalLen {
		return decimal.Zero, fmt.Errorf("sequence: decimal longer than %d characters", maxDecimalLen)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sequence: parse decimal %q: %w", s, err)
	}
	if exp := d.Exponent(); exp < -maxExponent || exp > maxExponent {
		return decimal.Zero, fmt.Errorf("sequence: decimal %q out of range", s)
	}
	return d, nil
}
