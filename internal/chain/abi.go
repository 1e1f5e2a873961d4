// Package chain wraps the Matchbox factory and vault contracts.
package chain

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// EventMatchboxCreated is emitted by the factory for every new vault.
const EventMatchboxCreated = "MatchboxCreated"

const ruleTuple = `{"name":"conditionId","type":"bytes32"},
	{"name":"outcomeIndex","type":"uint256"},
	{"name":"minPrice","type":"uint256"},
	{"name":"maxPrice","type":"uint256"},
	{"name":"useAllFunds","type":"bool"},
	{"name":"specificAmount","type":"uint256"}`

const factoryABIJSON = `[
	{"type":"function","name":"createMatchbox","stateMutability":"nonpayable",
	 "inputs":[{"name":"salt","type":"bytes32"}],
	 "outputs":[{"name":"matchbox","type":"address"}]},
	{"type":"function","name":"getMatchboxesForOwner","stateMutability":"view",
	 "inputs":[{"name":"owner","type":"address"}],
	 "outputs":[{"name":"","type":"address[]"}]},
	{"type":"event","name":"MatchboxCreated","anonymous":false,
	 "inputs":[
		{"name":"owner","type":"address","indexed":true},
		{"name":"matchbox","type":"address","indexed":true},
		{"name":"salt","type":"bytes32","indexed":false}]}
]`

const vaultABIJSON = `[
	{"type":"function","name":"initializeSequence","stateMutability":"nonpayable",
	 "inputs":[{"name":"rules","type":"tuple[]","components":[` + ruleTuple + `]}],
	 "outputs":[]},
	{"type":"function","name":"executeFirstStep","stateMutability":"nonpayable",
	 "inputs":[{"name":"amount","type":"uint256"},{"name":"orderData","type":"bytes"}],
	 "outputs":[]},
	{"type":"function","name":"withdrawFunds","stateMutability":"nonpayable",
	 "inputs":[{"name":"token","type":"address"},{"name":"amount","type":"uint256"}],
	 "outputs":[]},
	{"type":"function","name":"getSequence","stateMutability":"view",
	 "inputs":[],
	 "outputs":[{"name":"","type":"tuple[]","components":[` + ruleTuple + `]}]},
	{"type":"function","name":"currentStep","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"isActive","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"bool"}]}
]`

var (
	factoryOnce sync.Once
	factoryABI  abi.ABI
	factoryErr  error

	vaultOnce sync.Once
	vaultABI  abi.ABI
	vaultErr  error
)

// FactoryABI returns the parsed MatchboxFactory ABI.
func FactoryABI() (abi.ABI, error) {
	factoryOnce.Do(func() {
		factoryABI, factoryErr = abi.JSON(strings.NewReader(factoryABIJSON))
		if factoryErr != nil {
			factoryErr = fmt.Errorf("chain: parse factory abi: %w", factoryErr)
		}
	})
	return factoryABI, factoryErr
}

// VaultABI returns the parsed Matchbox vault ABI.
func VaultABI() (abi.ABI, error) {
	vaultOnce.Do(func() {
		vaultABI, vaultErr = abi.JSON(strings.NewReader(vaultABIJSON))
		if vaultErr != nil {
			vaultErr = fmt.Errorf("chain: parse vault abi: %w", vaultErr)
		}
	})
	return vaultABI, vaultErr
}
