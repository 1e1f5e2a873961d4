package domain

// Outcome is the side of a binary market a leg bets on.
type Outcome string

const (
	OutcomeYes Outcome = "YES"
	OutcomeNo  Outcome = "NO"
)

// Index returns the on-chain outcome index: YES is 1, anything else 0.
func (o Outcome) Index() int64 {
	if o == OutcomeYes {
		return 1
	}
	return 0
}

// Leg is one step of a conditional sequence as entered by the user.
// Amount and prices are decimal strings; they stay strings until encoding
// so no precision is lost before scaling.
type Leg struct {
	ID        string  `json:"id" toml:"id"`
	Market    string  `json:"market" toml:"market"` // 0x-prefixed condition id
	Outcome   Outcome `json:"outcome" toml:"outcome"`
	Amount    string  `json:"amount" toml:"amount"` // USDC, initial leg only
	MaxPrice  string  `json:"maxPrice" toml:"max_price"`
	MinPrice  string  `json:"minPrice" toml:"min_price"`
	IsInitial bool    `json:"isInitial" toml:"is_initial"`
}
