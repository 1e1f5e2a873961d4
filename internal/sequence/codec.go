// Package sequence validates user-entered legs and encodes them into the
// rule tuples a Matchbox vault accepts.
package sequence

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/matchbox/internal/domain"
)

// Validation messages, in check order.
const (
	MsgNoLegs          = "At least one leg is required"
	MsgMarketRequired  = "Market is required - paste a Polymarket URL"
	MsgMarketInvalid   = "Invalid market - please paste a valid Polymarket URL"
	MsgAmountInvalid   = "Initial leg requires a valid amount"
	MsgMaxPriceInvalid = "Max price must be between 0 and 1"
	MsgMinPriceInvalid = "Min price must be less than max price"
)

var conditionIDPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// IsValidConditionID reports whether s is 0x followed by exactly 64 hex digits.
func IsValidConditionID(s string) bool {
	return conditionIDPattern.MatchString(s)
}

// ValidationError identifies the first leg that failed validation.
// Index is -1 when the sequence itself is empty.
type ValidationError struct {
	Index   int
	Message string
}

func (e *ValidationError) Error() string {
	switch {
	case e.Index < 0:
		return e.Message
	case e.Index == 0:
		return "Leg INITIAL: " + e.Message
	default:
		return fmt.Sprintf("Leg %d: %s", e.Index, e.Message)
	}
}

// ValidateLeg returns the first failing check's message, or "" when the leg
// is valid.
func ValidateLeg(leg domain.Leg) string {
	if strings.TrimSpace(leg.Market) == "" {
		return MsgMarketRequired
	}
	if !IsValidConditionID(leg.Market) {
		return MsgMarketInvalid
	}
	if leg.IsInitial {
		amount, err := parseDecimal(leg.Amount)
		if err != nil || !amount.IsPositive() {
			return MsgAmountInvalid
		}
	}
	maxPrice, err := parseDecimal(leg.MaxPrice)
	if err != nil || !maxPrice.IsPositive() || maxPrice.GreaterThan(decimal.NewFromInt(1)) {
		return MsgMaxPriceInvalid
	}
	minPrice, err := parseDecimal(leg.MinPrice)
	if err != nil || minPrice.IsNegative() || minPrice.GreaterThanOrEqual(maxPrice) {
		return MsgMinPriceInvalid
	}
	return ""
}

// CheckSequence validates legs in order and stops at the first failure.
func CheckSequence(legs []domain.Leg) *ValidationError {
	if len(legs) == 0 {
		return &ValidationError{Index: -1, Message: MsgNoLegs}
	}
	for i, leg := range legs {
		if msg := ValidateLeg(leg); msg != "" {
			return &ValidationError{Index: i, Message: msg}
		}
	}
	return nil
}

// ValidateSequence is CheckSequence rendered as a message; "" means valid.
func ValidateSequence(legs []domain.Leg) string {
	if verr := CheckSequence(legs); verr != nil {
		return verr.Error()
	}
	return ""
}

// LegToRule encodes one leg. It does not run ValidateLeg; an unset max
// price encodes as 1 and an unset min price as 0. A market that is not a
// condition id is the only failure callers should expect after validation.
func LegToRule(leg domain.Leg) (domain.Rule, error) {
	if !IsValidConditionID(leg.Market) {
		return domain.Rule{}, fmt.Errorf("sequence: %w for market: %s", domain.ErrInvalidConditionID, leg.Market)
	}

	minPrice, err := ParseUnits(orDefault(leg.MinPrice, "0"), PriceDecimals)
	if err != nil {
		return domain.Rule{}, fmt.Errorf("sequence: min price: %w", err)
	}
	maxPrice, err := ParseUnits(orDefault(leg.MaxPrice, "1"), PriceDecimals)
	if err != nil {
		return domain.Rule{}, fmt.Errorf("sequence: max price: %w", err)
	}

	amount := new(big.Int)
	if strings.TrimSpace(leg.Amount) != "" {
		amount, err = ParseUnits(leg.Amount, USDCDecimals)
		if err != nil {
			return domain.Rule{}, fmt.Errorf("sequence: amount: %w", err)
		}
	}

	specific := new(big.Int)
	if leg.IsInitial {
		specific = amount
	}

	return domain.Rule{
		ConditionId:    common.HexToHash(leg.Market),
		OutcomeIndex:   big.NewInt(leg.Outcome.Index()),
		MinPrice:       minPrice,
		MaxPrice:       maxPrice,
		UseAllFunds:    !leg.IsInitial,
		SpecificAmount: specific,
	}, nil
}

// EncodeSequence validates then encodes a whole sequence. A validation
// failure is returned as *ValidationError.
func EncodeSequence(legs []domain.Leg) ([]domain.Rule, error) {
	if verr := CheckSequence(legs); verr != nil {
		return nil, verr
	}
	rules := make([]domain.Rule, 0, len(legs))
	for i, leg := range legs {
		r, err := LegToRule(leg)
		if err != nil {
			return nil, fmt.Errorf("sequence: leg %d: %w", i, err)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
