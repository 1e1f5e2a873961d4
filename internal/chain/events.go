package chain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/alanyoungcy/matchbox/internal/domain"
)

// DecodeEventArg finds the first log of the named event and returns one
// of its arguments. No log with the event's topic gives
// domain.ErrEventNotFound; a log with the topic that cannot be decoded, or
// lacks the argument, gives domain.ErrMalformedLog.
func DecodeEventArg(contract abi.ABI, event, arg string, logs []*types.Log) (any, error) {
	ev, ok := contract.Events[event]
	if !ok {
		return nil, fmt.Errorf("chain: unknown event %s", event)
	}

	for _, lg := range logs {
		if lg == nil || len(lg.Topics) == 0 || lg.Topics[0] != ev.ID {
			continue
		}

		values := make(map[string]any)
		if err := ev.Inputs.UnpackIntoMap(values, lg.Data); err != nil {
			return nil, fmt.Errorf("chain: %s data: %w: %v", event, domain.ErrMalformedLog, err)
		}
		var indexed abi.Arguments
		for _, in := range ev.Inputs {
			if in.Indexed {
				indexed = append(indexed, in)
			}
		}
		if err := abi.ParseTopicsIntoMap(values, indexed, lg.Topics[1:]); err != nil {
			return nil, fmt.Errorf("chain: %s topics: %w: %v", event, domain.ErrMalformedLog, err)
		}

		v, ok := values[arg]
		if !ok {
			return nil, fmt.Errorf("chain: %s has no %s: %w", event, arg, domain.ErrMalformedLog)
		}
		return v, nil
	}

	return nil, fmt.Errorf("chain: %s: %w", event, domain.ErrEventNotFound)
}
