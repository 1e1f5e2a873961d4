package domain

import (
	"encoding/json"
	"strings"
)

// MarketDetails is the normalized view of an upstream market used to fill
// a leg. Outcomes keeps the raw serialized list the upstream returned.
type MarketDetails struct {
	ConditionID string  `json:"conditionId"`
	Question    string  `json:"question"`
	Slug        string  `json:"slug,omitempty"`
	Outcomes    string  `json:"outcomes"`
	IsActive    bool    `json:"isActive"`
	Description string  `json:"description,omitempty"`
	EndDate     string  `json:"endDate,omitempty"`
	Volume      float64 `json:"volume,omitempty"`
	Liquidity   float64 `json:"liquidity,omitempty"`
}

// OutcomeLabels decodes Outcomes. Anything that is not a JSON array of
// strings yields an empty list.
func (m MarketDetails) OutcomeLabels() []string {
	return ParseOutcomes(m.Outcomes)
}

// ParseOutcomes decodes a JSON-encoded outcome list. Anything that is not a
// JSON array of strings yields an empty list.
func ParseOutcomes(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []string{}
	}
	var labels []string
	if err := json.Unmarshal([]byte(raw), &labels); err != nil {
		return []string{}
	}
	if labels == nil {
		return []string{}
	}
	return labels
}
