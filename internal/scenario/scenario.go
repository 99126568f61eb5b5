// Package scenario implements the betting-scenario ledger: a numbered
// scenario accumulates plain and insured wagers, resolves against a
// real-world outcome, and derives the house cut and payout pool.
//
// Amounts are integer cents; rates use shopspring/decimal — never float64
// for money.
package scenario

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/oddsmith/wagerbook/internal/model"
	"github.com/oddsmith/wagerbook/internal/prediction"
)

var (
	// ErrInvalidArgument is returned for failed input validation: blank
	// descriptions, empty bettor names, non-positive amounts or ids.
	// Retrying with the same input cannot succeed.
	ErrInvalidArgument = errors.New("scenario: invalid argument")

	// ErrNotFound is returned when an insurance id does not match any
	// insured wager in the scenario.
	ErrNotFound = errors.New("scenario: not found")

	// ErrResolved is returned by the book when a scenario has already
	// been closed.
	ErrResolved = errors.New("scenario: already resolved")
)

// Scenario tracks all wagers on one real-world predicted event and its
// resolution. Not safe for concurrent use; the Book serializes access.
//
// Both wager collections are sets with insertion order preserved:
// duplicate inserts are rejected by key, and iteration follows the order
// wagers were accepted.
type Scenario struct {
	number        int
	description   string
	status        model.Status
	houseCutCents int64

	wagers     map[string]*model.Wager
	wagerOrder []string

	insured      map[string]*model.InsuredWager
	insuredOrder []string

	// insuranceSeq is an explicit monotonic counter, deliberately not
	// derived from the collection size: ids must stay unique even if a
	// removal operation is ever added.
	insuranceSeq int
}

// New creates an open scenario with the given immutable number.
func New(number int, description string) (*Scenario, error) {
	if strings.TrimSpace(description) == "" {
		return nil, fmt.Errorf("%w: description must not be blank", ErrInvalidArgument)
	}
	return &Scenario{
		number:      number,
		description: description,
		status:      model.StatusOpen,
		wagers:      make(map[string]*model.Wager),
		insured:     make(map[string]*model.InsuredWager),
	}, nil
}

// Number returns the immutable identifying number.
func (s *Scenario) Number() int { return s.number }

// Description returns the scenario description.
func (s *Scenario) Description() string { return s.description }

// Status returns the current lifecycle state.
func (s *Scenario) Status() model.Status { return s.status }

// HouseCut returns the cents retained by the house; 0 until the scenario
// is resolved and the cut applied.
func (s *Scenario) HouseCut() int64 { return s.houseCutCents }

// Equal reports identity: two scenarios are equal iff their numbers match,
// regardless of every other field.
func (s *Scenario) Equal(other *Scenario) bool {
	if other == nil {
		return false
	}
	return s.number == other.number
}

func (s *Scenario) String() string {
	return fmt.Sprintf("%d - %s - %s", s.number, s.description, s.status)
}

func validateWager(bettor, predictionText string, amountCents int64) error {
	if strings.TrimSpace(bettor) == "" {
		return fmt.Errorf("%w: bettor must not be blank", ErrInvalidArgument)
	}
	if strings.TrimSpace(predictionText) == "" {
		return fmt.Errorf("%w: prediction must not be blank", ErrInvalidArgument)
	}
	if amountCents <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidArgument)
	}
	return nil
}

// AddWager inserts a plain wager. Returns false if an identical wager
// (same bettor, prediction, amount) already exists; that is set semantics,
// not an error.
func (s *Scenario) AddWager(bettor, predictionText string, amountCents int64) (bool, error) {
	if err := validateWager(bettor, predictionText, amountCents); err != nil {
		return false, err
	}

	w := &model.Wager{Bettor: bettor, Prediction: predictionText, AmountCents: amountCents}
	key := w.Key()
	if _, exists := s.wagers[key]; exists {
		return false, nil
	}
	s.wagers[key] = w
	s.wagerOrder = append(s.wagerOrder, key)
	return true, nil
}

// nextInsuranceID advances the monotonic insurance counter. Ids are
// 1-based and never reused.
func (s *Scenario) nextInsuranceID() int {
	s.insuranceSeq++
	return s.insuranceSeq
}

func (s *Scenario) addInsured(w *model.InsuredWager) bool {
	key := w.Key()
	if _, exists := s.insured[key]; exists {
		return false
	}
	s.insured[key] = w
	s.insuredOrder = append(s.insuredOrder, key)
	return true
}

// AddInsuredWagerFixed inserts a wager guaranteed a flat amount of cents
// regardless of outcome.
func (s *Scenario) AddInsuredWagerFixed(bettor, predictionText string, amountCents, insuredCents int64) (bool, error) {
	if err := validateWager(bettor, predictionText, amountCents); err != nil {
		return false, err
	}

	w := &model.InsuredWager{
		Wager:       model.Wager{Bettor: bettor, Prediction: predictionText, AmountCents: amountCents},
		InsuranceID: s.nextInsuranceID(),
		Policy:      model.FixedInsurance{AmountCents: insuredCents},
	}
	return s.addInsured(w), nil
}

// AddInsuredWagerRate inserts a wager guaranteed a fraction (0.0–1.0) of
// its stake regardless of outcome.
func (s *Scenario) AddInsuredWagerRate(bettor, predictionText string, amountCents int64, rate decimal.Decimal) (bool, error) {
	if err := validateWager(bettor, predictionText, amountCents); err != nil {
		return false, err
	}

	w := &model.InsuredWager{
		Wager:       model.Wager{Bettor: bettor, Prediction: predictionText, AmountCents: amountCents},
		InsuranceID: s.nextInsuranceID(),
		Policy:      model.RateInsurance{Rate: rate},
	}
	return s.addInsured(w), nil
}

// ChangeInsuranceToFixed replaces the policy of the insured wager with the
// given id by a fixed-amount guarantee. The swap is a whole-value
// replacement, never a partial mutation. Returns the id on success.
func (s *Scenario) ChangeInsuranceToFixed(insuranceID int, amountCents int64) (int, error) {
	if insuranceID <= 0 {
		return 0, fmt.Errorf("%w: insurance id must be positive", ErrInvalidArgument)
	}

	for _, key := range s.insuredOrder {
		w := s.insured[key]
		if w.InsuranceID == insuranceID {
			w.Policy = model.FixedInsurance{AmountCents: amountCents}
			return insuranceID, nil
		}
	}
	return 0, fmt.Errorf("%w: insurance id %d", ErrNotFound, insuranceID)
}

// TotalWagered sums the stakes of every wager, plain and insured.
func (s *Scenario) TotalWagered() int64 {
	var sum int64
	for _, w := range s.wagers {
		sum += w.AmountCents
	}
	for _, w := range s.insured {
		sum += w.AmountCents
	}
	return sum
}

// WagerCount returns the number of wagers, plain plus insured.
func (s *Scenario) WagerCount() int {
	return len(s.wagers) + len(s.insured)
}

// Wagers returns the plain wagers in insertion order. Entries are copies.
func (s *Scenario) Wagers() []model.Wager {
	out := make([]model.Wager, 0, len(s.wagers))
	for _, key := range s.wagerOrder {
		out = append(out, *s.wagers[key])
	}
	return out
}

// InsuredWagers returns the insured wagers in insertion order. Entries are
// copies.
func (s *Scenario) InsuredWagers() []model.InsuredWager {
	out := make([]model.InsuredWager, 0, len(s.insured))
	for _, key := range s.insuredOrder {
		out = append(out, *s.insured[key])
	}
	return out
}

// AllWagers renders a human-readable listing of every wager, plain then
// insured, one per line, in insertion order.
func (s *Scenario) AllWagers() string {
	var b strings.Builder
	b.WriteString("Wagers:\n")
	for _, key := range s.wagerOrder {
		b.WriteString(s.wagers[key].String())
		b.WriteByte('\n')
	}
	for _, key := range s.insuredOrder {
		b.WriteString(s.insured[key].String())
		b.WriteByte('\n')
	}
	return b.String()
}

// Finalize resolves the scenario against the real-world outcome and marks
// each plain wager won or lost: a wager backing the scenario wins iff it
// occurred, any other prediction wins iff it did not. Insured wagers are
// not classified here and never join the loser pool; their stake is covered
// by the guarantee, not redistributed.
//
// Finalize does not guard against re-resolution; the Book refuses to close
// a scenario twice.
func (s *Scenario) Finalize(occurred bool) {
	if occurred {
		s.status = model.StatusOccurred
	} else {
		s.status = model.StatusNotOccurred
	}

	for _, w := range s.wagers {
		if prediction.Favorable(w.Prediction) {
			w.Won = occurred
		} else {
			w.Won = !occurred
		}
	}
}

// LosersTotal sums the stakes of plain wagers marked as lost. Meaningful
// only after Finalize.
func (s *Scenario) LosersTotal() int64 {
	var sum int64
	for _, w := range s.wagers {
		if !w.Won {
			sum += w.AmountCents
		}
	}
	return sum
}

// SetHouseCut fixes the house cut as floor(losersTotal * rate).
func (s *Scenario) SetHouseCut(rate decimal.Decimal) {
	losers := decimal.NewFromInt(s.LosersTotal())
	s.houseCutCents = losers.Mul(rate).Floor().IntPart()
}

// PayoutPool returns the cents redistributed to winners: the losers' total
// minus the house cut.
func (s *Scenario) PayoutPool() int64 {
	return s.LosersTotal() - s.houseCutCents
}

// Record returns the persisted form of the scenario.
func (s *Scenario) Record() model.ScenarioRecord {
	return model.ScenarioRecord{
		Number:        s.number,
		Description:   s.description,
		Status:        s.status,
		HouseCutCents: s.houseCutCents,
	}
}
