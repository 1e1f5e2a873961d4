package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/alanyoungcy/matchbox/internal/domain"
	"github.com/alanyoungcy/matchbox/internal/resolver"
	"github.com/alanyoungcy/matchbox/internal/sequence"
)

// legsFile is the on-disk shape of a sequence for the deploy mode:
//
//	owner = "0x..."            # optional
//	[[legs]]
//	market = "https://polymarket.com/event/..."
//	outcome = "YES"
//	amount = "10"
//	max_price = "0.6"
//	min_price = "0.1"
type legsFile struct {
	Owner string       `json:"owner" toml:"owner"`
	Legs  []domain.Leg `json:"legs" toml:"legs"`
}

// LoadLegs reads a legs file. Files ending in .json are JSON (either an
// object with a legs array or a bare array); anything else is TOML.
func LoadLegs(path string) (owner string, legs []domain.Leg, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("app: read legs file: %w", err)
	}

	var f legsFile
	if strings.EqualFold(filepath.Ext(path), ".json") {
		trimmed := bytes.TrimSpace(data)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			err = json.Unmarshal(trimmed, &f.Legs)
		} else {
			err = json.Unmarshal(trimmed, &f)
		}
	} else {
		_, err = toml.Decode(string(data), &f)
	}
	if err != nil {
		return "", nil, fmt.Errorf("app: parse legs file %s: %w", path, err)
	}
	return f.Owner, f.Legs, nil
}

// MarketLookup resolves a pasted market URL.
type MarketLookup interface {
	LookupURL(ctx context.Context, input string) (domain.MarketDetails, error)
}

// ResolveMarkets replaces every leg market given as a Polymarket URL with
// its condition id. Markets that are already condition ids are left alone,
// as is anything that is not a URL; validation reports those later.
func ResolveMarkets(ctx context.Context, markets MarketLookup, legs []domain.Leg) ([]domain.Leg, error) {
	out := make([]domain.Leg, len(legs))
	copy(out, legs)
	for i := range out {
		m := strings.TrimSpace(out[i].Market)
		if sequence.IsValidConditionID(m) {
			continue
		}
		if _, ok := resolver.ExtractReference(m); !ok {
			continue
		}
		details, err := markets.LookupURL(ctx, m)
		if err != nil {
			return nil, fmt.Errorf("app: resolve leg %d market %q: %w", i, m, err)
		}
		out[i].Market = details.ConditionID
	}
	return out, nil
}
