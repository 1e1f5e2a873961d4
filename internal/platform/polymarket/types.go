package polymarket

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/alanyoungcy/matchbox/internal/domain"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// flexFloat accepts a JSON number or a numeric string. Anything else is 0.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, _ := strconv.ParseFloat(s, 64)
		*f = flexFloat(v)
	}
	return nil
}

// flexOutcomes keeps the outcome list in its serialized string form. The
// Gamma API usually sends a JSON-encoded string ("[\"Yes\",\"No\"]") but has
// been seen sending a real array; both normalize to the string form and any
// other shape becomes an empty list.
type flexOutcomes string

func (f *flexOutcomes) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexOutcomes(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		b, _ := json.Marshal(list)
		*f = flexOutcomes(b)
		return nil
	}
	*f = "[]"
	return nil
}

// APIMarket represents a market as returned by the Polymarket Gamma API.
// The API is inconsistent about casing, so both spellings of the
// identifier and slug fields are captured.
type APIMarket struct {
	ID               string       `json:"id"`
	Question         string       `json:"question"`
	ConditionID      string       `json:"conditionId"`
	ConditionIDSnake string       `json:"condition_id"`
	Slug             string       `json:"slug"`
	MarketSlug       string       `json:"market_slug"`
	Description      string       `json:"description"`
	EndDateISO       string       `json:"endDateIso"`
	EndDateISOSnake  string       `json:"end_date_iso"`
	Outcomes         flexOutcomes `json:"outcomes"`
	Active           flexBool     `json:"active"`
	Closed           flexBool     `json:"closed"`
	Volume           flexFloat    `json:"volume"`
	Liquidity        flexFloat    `json:"liquidity"`
}

// Condition returns the condition id, preferring the camelCase field.
func (m *APIMarket) Condition() string {
	return firstNonEmpty(m.ConditionID, m.ConditionIDSnake)
}

// ToMarketDetails converts an APIMarket to the normalized domain view.
func (m *APIMarket) ToMarketDetails() domain.MarketDetails {
	outcomes := string(m.Outcomes)
	if outcomes == "" {
		outcomes = "[]"
	}
	return domain.MarketDetails{
		ConditionID: m.Condition(),
		Question:    m.Question,
		Slug:        firstNonEmpty(m.Slug, m.MarketSlug),
		Outcomes:    outcomes,
		IsActive:    bool(m.Active),
		Description: m.Description,
		EndDate:     firstNonEmpty(m.EndDateISO, m.EndDateISOSnake),
		Volume:      float64(m.Volume),
		Liquidity:   float64(m.Liquidity),
	}
}

// DecodeMarket decodes a single Gamma market object.
func DecodeMarket(body []byte) (APIMarket, error) {
	var m APIMarket
	if err := json.Unmarshal(body, &m); err != nil {
		return APIMarket{}, err
	}
	return m, nil
}

// DecodeMarkets decodes a Gamma market list.
func DecodeMarkets(body []byte) ([]APIMarket, error) {
	var ms []APIMarket
	if err := json.Unmarshal(body, &ms); err != nil {
		return nil, err
	}
	return ms, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
