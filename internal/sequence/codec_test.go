package sequence

import (
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/matchbox/internal/domain"
)

var testCondition = "0x" + strings.Repeat("a", 64)

func validLeg(initial bool) domain.Leg {
	return domain.Leg{
		ID:        "leg",
		Market:    testCondition,
		Outcome:   domain.OutcomeYes,
		Amount:    "100",
		MaxPrice:  "0.50",
		MinPrice:  "0.10",
		IsInitial: initial,
	}
}

func TestIsValidConditionID(t *testing.T) {
	assert.True(t, IsValidConditionID(testCondition))
	assert.True(t, IsValidConditionID("0x"+strings.Repeat("AbC1", 16)))

	for _, bad := range []string{
		"",
		strings.Repeat("a", 64),
		"0x" + strings.Repeat("a", 63),
		"0x" + strings.Repeat("a", 65),
		"0x" + strings.Repeat("g", 64),
		"0X" + strings.Repeat("a", 64),
		" " + testCondition,
	} {
		assert.False(t, IsValidConditionID(bad), bad)
	}
}

func TestValidateLeg_CheckOrder(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.Leg)
		want   string
	}{
		{"valid", func(*domain.Leg) {}, ""},
		{"blank market", func(l *domain.Leg) { l.Market = "   " }, MsgMarketRequired},
		{"blank market wins over bad prices", func(l *domain.Leg) { l.Market = ""; l.MaxPrice = "7" }, MsgMarketRequired},
		{"market not a condition id", func(l *domain.Leg) { l.Market = "https://polymarket.com/event/x" }, MsgMarketInvalid},
		{"missing amount", func(l *domain.Leg) { l.Amount = "" }, MsgAmountInvalid},
		{"zero amount", func(l *domain.Leg) { l.Amount = "0" }, MsgAmountInvalid},
		{"negative amount", func(l *domain.Leg) { l.Amount = "-5" }, MsgAmountInvalid},
		{"garbage amount", func(l *domain.Leg) { l.Amount = "lots" }, MsgAmountInvalid},
		{"amount checked before prices", func(l *domain.Leg) { l.Amount = ""; l.MaxPrice = "" }, MsgAmountInvalid},
		{"missing max", func(l *domain.Leg) { l.MaxPrice = "" }, MsgMaxPriceInvalid},
		{"zero max", func(l *domain.Leg) { l.MaxPrice = "0" }, MsgMaxPriceInvalid},
		{"max above one", func(l *domain.Leg) { l.MaxPrice = "1.01" }, MsgMaxPriceInvalid},
		{"max exactly one", func(l *domain.Leg) { l.MaxPrice = "1" }, ""},
		{"missing min", func(l *domain.Leg) { l.MinPrice = "" }, MsgMinPriceInvalid},
		{"negative min", func(l *domain.Leg) { l.MinPrice = "-0.1" }, MsgMinPriceInvalid},
		{"min equals max", func(l *domain.Leg) { l.MinPrice = "0.50" }, MsgMinPriceInvalid},
		{"min above max", func(l *domain.Leg) { l.MinPrice = "0.6" }, MsgMinPriceInvalid},
		{"min zero", func(l *domain.Leg) { l.MinPrice = "0" }, ""},
		{"min in exponent form", func(l *domain.Leg) { l.MinPrice = "1e-2" }, ""},
		{"min exponent far out of range", func(l *domain.Leg) { l.MinPrice = "1e-50000000" }, MsgMinPriceInvalid},
		{"max exponent far out of range", func(l *domain.Leg) { l.MaxPrice = "5e-10000000" }, MsgMaxPriceInvalid},
		{"amount exponent far out of range", func(l *domain.Leg) { l.Amount = "1e99999999" }, MsgAmountInvalid},
		{"overlong min", func(l *domain.Leg) { l.MinPrice = "0." + strings.Repeat("0", 100) + "1" }, MsgMinPriceInvalid},
		{"min with extra fractional digits", func(l *domain.Leg) { l.MinPrice = "0.1000000000000000000001" }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			leg := validLeg(true)
			tt.mutate(&leg)
			assert.Equal(t, tt.want, ValidateLeg(leg))
		})
	}
}

func TestValidateLeg_NonInitialIgnoresAmount(t *testing.T) {
	leg := validLeg(false)
	leg.Amount = ""
	assert.Empty(t, ValidateLeg(leg))
}

func TestValidateSequence(t *testing.T) {
	assert.Equal(t, MsgNoLegs, ValidateSequence(nil))
	assert.Equal(t, MsgNoLegs, ValidateSequence([]domain.Leg{}))

	legs := []domain.Leg{validLeg(true), validLeg(false), validLeg(false)}
	assert.Empty(t, ValidateSequence(legs))

	bad := validLeg(true)
	bad.Amount = ""
	assert.Equal(t, "Leg INITIAL: "+MsgAmountInvalid, ValidateSequence([]domain.Leg{bad, validLeg(false)}))
}

func TestValidateSequence_ReportsFirstFailingConditionalLeg(t *testing.T) {
	second := validLeg(false)
	second.Market = ""
	third := validLeg(false)
	third.MaxPrice = "2"

	msg := ValidateSequence([]domain.Leg{validLeg(true), second, third})

	assert.Contains(t, strings.ToUpper(msg), "LEG 1")
	assert.Equal(t, "Leg 1: "+MsgMarketRequired, msg)
}

func TestLegToRule_InitialLeg(t *testing.T) {
	rule, err := LegToRule(validLeg(true))
	require.NoError(t, err)

	assert.Equal(t, testCondition, rule.ConditionHex())
	assert.Equal(t, int64(1), rule.OutcomeIndex.Int64())
	assert.Equal(t, "100000000000000000", rule.MinPrice.String())
	assert.Equal(t, "500000000000000000", rule.MaxPrice.String())
	assert.False(t, rule.UseAllFunds)
	assert.Equal(t, "100000000", rule.SpecificAmount.String())
}

func TestLegToRule_ConditionalLeg(t *testing.T) {
	leg := validLeg(false)
	leg.Outcome = domain.OutcomeNo
	leg.Amount = "250"

	rule, err := LegToRule(leg)
	require.NoError(t, err)

	assert.Equal(t, int64(0), rule.OutcomeIndex.Int64())
	assert.True(t, rule.UseAllFunds)
	assert.Zero(t, rule.SpecificAmount.Sign())
}

func TestLegToRule_Defaults(t *testing.T) {
	leg := validLeg(true)
	leg.MinPrice = ""
	leg.MaxPrice = ""
	leg.Amount = ""

	rule, err := LegToRule(leg)
	require.NoError(t, err)

	assert.Zero(t, rule.MinPrice.Sign())
	assert.Equal(t, new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil).String(), rule.MaxPrice.String())
	assert.Zero(t, rule.SpecificAmount.Sign())
}

func TestLegToRule_InvalidCondition(t *testing.T) {
	leg := validLeg(true)
	leg.Market = "0x1234"

	_, err := LegToRule(leg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidConditionID))
	assert.Contains(t, err.Error(), "0x1234")
}

func TestEncodeSequence(t *testing.T) {
	rules, err := EncodeSequence([]domain.Leg{validLeg(true), validLeg(false)})
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.False(t, rules[0].UseAllFunds)
	assert.True(t, rules[1].UseAllFunds)

	_, err = EncodeSequence(nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, -1, verr.Index)

	bad := validLeg(false)
	bad.MinPrice = "0.9"
	_, err = EncodeSequence([]domain.Leg{validLeg(true), bad})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 1, verr.Index)
	assert.Equal(t, MsgMinPriceInvalid, verr.Message)
}
