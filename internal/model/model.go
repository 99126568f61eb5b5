// Package model defines the core domain types shared across the wager book.
// All amounts are integer cents (smallest currency unit); fractional rates
// use shopspring/decimal — never float64 for money.
package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a scenario. A scenario starts open and
// transitions exactly once to one of the resolved states.
type Status string

const (
	StatusOpen        Status = "open"
	StatusOccurred    Status = "resolved (occurred)"
	StatusNotOccurred Status = "resolved (did not occur)"
)

// Resolved reports whether the status has left the open state.
func (s Status) Resolved() bool {
	return s == StatusOccurred || s == StatusNotOccurred
}

// Wager is a single plain bet: who, what prediction, how many cents.
// Won is meaningless until the owning scenario is finalized.
type Wager struct {
	Bettor      string `json:"bettor"`
	Prediction  string `json:"prediction"`
	AmountCents int64  `json:"amount_cents"`
	Won         bool   `json:"won"`
}

// Key derives the uniqueness key for the plain-wager set. Two wagers with
// the same bettor, prediction, and amount are the same wager.
func (w Wager) Key() string {
	return fmt.Sprintf("%s|%s|%d", w.Bettor, w.Prediction, w.AmountCents)
}

func (w Wager) String() string {
	return fmt.Sprintf("%s - %d - %s", w.Bettor, w.AmountCents, w.Prediction)
}

// InsuredWager is a wager with an attached guarantee protecting part of the
// stake regardless of outcome. InsuranceID is unique within a scenario.
type InsuredWager struct {
	Wager
	InsuranceID int       `json:"insurance_id"`
	Policy      Insurance `json:"policy"`
}

// Key derives the uniqueness key for the insured-wager set: the full record,
// policy included.
func (w InsuredWager) Key() string {
	return fmt.Sprintf("%s|%d|%s", w.Wager.Key(), w.InsuranceID, w.Policy)
}

func (w InsuredWager) String() string {
	return fmt.Sprintf("%s - ASSURED (%s)", w.Wager, w.Policy)
}

// Insurance is the guarantee attached to an insured wager. Exactly two
// variants exist: a flat amount or a fraction of the stake. Swapping the
// policy on an existing wager is a whole-value replacement.
type Insurance interface {
	// Payout returns the guaranteed cents for a wager of the given stake.
	Payout(stakeCents int64) int64
	fmt.Stringer
}

// FixedInsurance guarantees a flat amount regardless of stake.
type FixedInsurance struct {
	AmountCents int64 `json:"amount_cents"`
}

func (f FixedInsurance) Payout(int64) int64 { return f.AmountCents }

func (f FixedInsurance) String() string {
	return fmt.Sprintf("fixed %d", f.AmountCents)
}

// RateInsurance guarantees a fraction of the stake, rounded down.
type RateInsurance struct {
	Rate decimal.Decimal `json:"rate"`
}

func (r RateInsurance) Payout(stakeCents int64) int64 {
	return r.Rate.Mul(decimal.NewFromInt(stakeCents)).Floor().IntPart()
}

func (r RateInsurance) String() string {
	return fmt.Sprintf("rate %s", r.Rate)
}

// ScenarioRecord is the persisted form of a scenario.
type ScenarioRecord struct {
	Number        int       `json:"number" db:"number"`
	Description   string    `json:"description" db:"description"`
	Status        Status    `json:"status" db:"status"`
	HouseCutCents int64     `json:"house_cut_cents" db:"house_cut_cents"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// WagerRecord is the persisted form of a wager, flattened so plain and
// insured wagers share one row shape. InsuranceID is 0 for plain wagers.
type WagerRecord struct {
	ID                string          `json:"id" db:"id"`
	ScenarioNumber    int             `json:"scenario_number" db:"scenario_number"`
	Bettor            string          `json:"bettor" db:"bettor"`
	Prediction        string          `json:"prediction" db:"prediction"`
	AmountCents       int64           `json:"amount_cents" db:"amount_cents"`
	Won               bool            `json:"won" db:"won"`
	InsuranceID       int             `json:"insurance_id,omitempty" db:"insurance_id"`
	PolicyKind        string          `json:"policy_kind,omitempty" db:"policy_kind"` // "", "fixed", "rate"
	PolicyAmountCents int64           `json:"policy_amount_cents,omitempty" db:"policy_amount_cents"`
	PolicyRate        decimal.Decimal `json:"policy_rate,omitempty" db:"policy_rate"`
	PlacedAt          time.Time       `json:"placed_at" db:"placed_at"`
}

// AuditEntry is an immutable record of a book mutation. Once created, these
// are never modified or deleted.
type AuditEntry struct {
	ID             string    `json:"id" db:"id"`
	ScenarioNumber int       `json:"scenario_number" db:"scenario_number"`
	Action         string    `json:"action" db:"action"`
	Detail         string    `json:"detail" db:"detail"`
	Timestamp      time.Time `json:"timestamp" db:"timestamp"`
}
