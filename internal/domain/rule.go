package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Rule is the on-chain encoding of a Leg. Field tags match the component
// names of the vault's Rule tuple so the ABI packer can map them.
type Rule struct {
	ConditionId    [32]byte `abi:"conditionId"`
	OutcomeIndex   *big.Int `abi:"outcomeIndex"`
	MinPrice       *big.Int `abi:"minPrice"`
	MaxPrice       *big.Int `abi:"maxPrice"`
	UseAllFunds    bool     `abi:"useAllFunds"`
	SpecificAmount *big.Int `abi:"specificAmount"`
}

// ConditionHex renders the condition id as 0x + 64 hex digits.
func (r Rule) ConditionHex() string {
	return common.Hash(r.ConditionId).Hex()
}

// RuleView is the JSON form of a Rule with integers rendered in base 10.
type RuleView struct {
	ConditionID    string `json:"conditionId"`
	OutcomeIndex   string `json:"outcomeIndex"`
	MinPrice       string `json:"minPrice"`
	MaxPrice       string `json:"maxPrice"`
	UseAllFunds    bool   `json:"useAllFunds"`
	SpecificAmount string `json:"specificAmount"`
}

// View converts the rule for transport.
func (r Rule) View() RuleView {
	return RuleView{
		ConditionID:    r.ConditionHex(),
		OutcomeIndex:   bigString(r.OutcomeIndex),
		MinPrice:       bigString(r.MinPrice),
		MaxPrice:       bigString(r.MaxPrice),
		UseAllFunds:    r.UseAllFunds,
		SpecificAmount: bigString(r.SpecificAmount),
	}
}

// Views converts a rule list for transport.
func Views(rules []Rule) []RuleView {
	out := make([]RuleView, len(rules))
	for i, r := range rules {
		out[i] = r.View()
	}
	return out
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
