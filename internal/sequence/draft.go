package sequence

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/alanyoungcy/matchbox/internal/domain"
)

// Field names accepted by UpdateLeg.
const (
	FieldMarket   = "market"
	FieldOutcome  = "outcome"
	FieldAmount   = "amount"
	FieldMaxPrice = "maxPrice"
	FieldMinPrice = "minPrice"
)

// Draft is an immutable, ordered list of legs being composed. Every
// transition returns a new Draft and leaves the receiver untouched.
type Draft struct {
	legs []domain.Leg
}

// NewDraft starts a sequence with a single empty initial leg.
func NewDraft() Draft {
	return Draft{legs: []domain.Leg{newLeg()}}.normalize()
}

// DraftFrom wraps existing legs, recomputing which one is initial and
// filling in missing ids.
func DraftFrom(legs []domain.Leg) Draft {
	cp := make([]domain.Leg, len(legs))
	copy(cp, legs)
	return Draft{legs: cp}.normalize()
}

// Legs returns a copy of the draft's legs.
func (d Draft) Legs() []domain.Leg {
	cp := make([]domain.Leg, len(d.legs))
	copy(cp, d.legs)
	return cp
}

// Len returns the number of legs.
func (d Draft) Len() int { return len(d.legs) }

// AddLeg appends an empty conditional leg.
func (d Draft) AddLeg() Draft {
	return Draft{legs: append(d.Legs(), newLeg())}.normalize()
}

// RemoveLeg drops the leg with the given id. The last remaining leg
// cannot be removed.
func (d Draft) RemoveLeg(id string) (Draft, error) {
	if len(d.legs) <= 1 {
		return d, fmt.Errorf("sequence: remove leg: at least one leg is required")
	}
	out := make([]domain.Leg, 0, len(d.legs)-1)
	found := false
	for _, l := range d.legs {
		if l.ID == id {
			found = true
			continue
		}
		out = append(out, l)
	}
	if !found {
		return d, fmt.Errorf("sequence: remove leg %s: %w", id, domain.ErrNotFound)
	}
	return Draft{legs: out}.normalize(), nil
}

// UpdateLeg sets one field of the leg with the given id.
func (d Draft) UpdateLeg(id, field, value string) (Draft, error) {
	legs := d.Legs()
	idx := -1
	for i := range legs {
		if legs[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return d, fmt.Errorf("sequence: update leg %s: %w", id, domain.ErrNotFound)
	}

	switch field {
	case FieldMarket:
		legs[idx].Market = value
	case FieldOutcome:
		o := domain.Outcome(value)
		if o != domain.OutcomeYes && o != domain.OutcomeNo {
			return d, fmt.Errorf("sequence: update leg %s: unknown outcome %q", id, value)
		}
		legs[idx].Outcome = o
	case FieldAmount:
		legs[idx].Amount = value
	case FieldMaxPrice:
		legs[idx].MaxPrice = value
	case FieldMinPrice:
		legs[idx].MinPrice = value
	default:
		return d, fmt.Errorf("sequence: update leg %s: unknown field %q", id, field)
	}
	return Draft{legs: legs}, nil
}

// PrecedingOutcome returns the outcome leg i is conditioned on. The
// initial leg has none.
func (d Draft) PrecedingOutcome(i int) (domain.Outcome, bool) {
	if i <= 0 || i >= len(d.legs) {
		return "", false
	}
	return d.legs[i-1].Outcome, true
}

// Validate runs ValidateSequence over the draft.
func (d Draft) Validate() string {
	return ValidateSequence(d.legs)
}

// Encode runs EncodeSequence over the draft.
func (d Draft) Encode() ([]domain.Rule, error) {
	return EncodeSequence(d.legs)
}

func (d Draft) normalize() Draft {
	for i := range d.legs {
		d.legs[i].IsInitial = i == 0
		if d.legs[i].ID == "" {
			d.legs[i].ID = uuid.NewString()
		}
	}
	return d
}

func newLeg() domain.Leg {
	return domain.Leg{ID: uuid.NewString(), Outcome: domain.OutcomeYes}
}
