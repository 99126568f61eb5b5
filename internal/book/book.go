// Package book provides the wager book: the registry of betting scenarios,
// the house rate and treasury, and the HTTP handlers exposing them.
package book

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oddsmith/wagerbook/internal/limits"
	"github.com/oddsmith/wagerbook/internal/model"
	"github.com/oddsmith/wagerbook/internal/scenario"
	"github.com/oddsmith/wagerbook/internal/store"
)

// Book owns every scenario, numbered sequentially from 1, plus the house
// rate and the treasury accumulating house cuts. The book is authoritative
// in memory; mutations are written through to the store for durability and
// audit. A single mutex serializes access (single-instance).
type Book struct {
	mu            sync.Mutex
	houseRate     decimal.Decimal
	treasuryCents int64
	nextNumber    int

	scenarios map[int]*scenario.Scenario
	order     []int

	limiter *limits.StakeLimiter
	store   store.Store
}

// NewBook creates a book with the given opening treasury (cents) and house
// rate (0.0–1.0). Pass nil for limiter to disable stake limits.
func NewBook(st store.Store, limiter *limits.StakeLimiter, treasuryCents int64, houseRate decimal.Decimal) (*Book, error) {
	if treasuryCents < 0 {
		return nil, fmt.Errorf("%w: treasury must not be negative", scenario.ErrInvalidArgument)
	}
	if houseRate.IsNegative() {
		return nil, fmt.Errorf("%w: house rate must not be negative", scenario.ErrInvalidArgument)
	}
	if limiter == nil {
		limiter = limits.NewStakeLimiter(0, 0)
	}
	return &Book{
		houseRate:     houseRate,
		treasuryCents: treasuryCents,
		scenarios:     make(map[int]*scenario.Scenario),
		limiter:       limiter,
		store:         st,
	}, nil
}

// TreasuryCents returns the current treasury balance.
func (b *Book) TreasuryCents() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.treasuryCents
}

// HouseRate returns the house rate applied at close.
func (b *Book) HouseRate() decimal.Decimal {
	return b.houseRate
}

func (b *Book) audit(ctx context.Context, number int, action, detail string) {
	entry := &model.AuditEntry{
		ID:             uuid.New().String(),
		ScenarioNumber: number,
		Action:         action,
		Detail:         detail,
		Timestamp:      time.Now().UTC(),
	}
	if err := b.store.InsertAudit(ctx, entry); err != nil {
		slog.Warn("audit write failed", "action", action, "scenario", number, "err", err)
	}
}

// CreateScenario registers a new open scenario and returns its number.
func (b *Book) CreateScenario(ctx context.Context, description string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sc, err := scenario.New(b.nextNumber+1, description)
	if err != nil {
		return 0, err
	}
	b.nextNumber++
	b.scenarios[sc.Number()] = sc
	b.order = append(b.order, sc.Number())

	rec := sc.Record()
	rec.CreatedAt = time.Now().UTC()
	if err := b.store.CreateScenario(ctx, &rec); err != nil {
		return 0, fmt.Errorf("persist scenario %d: %w", sc.Number(), err)
	}
	b.audit(ctx, sc.Number(), "scenario_created", description)

	return sc.Number(), nil
}

// lookup finds a scenario by number. Caller must hold the mutex.
func (b *Book) lookup(number int) (*scenario.Scenario, error) {
	if number <= 0 {
		return nil, fmt.Errorf("%w: scenario number must be positive", scenario.ErrInvalidArgument)
	}
	sc, ok := b.scenarios[number]
	if !ok {
		return nil, fmt.Errorf("%w: scenario %d", scenario.ErrNotFound, number)
	}
	return sc, nil
}

// Scenario returns the scenario with the given number.
func (b *Book) Scenario(number int) (*scenario.Scenario, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lookup(number)
}

// Scenarios returns every scenario in creation order.
func (b *Book) Scenarios() []*scenario.Scenario {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]*scenario.Scenario, 0, len(b.order))
	for _, n := range b.order {
		out = append(out, b.scenarios[n])
	}
	return out
}

// bettorStakes sums a bettor's stake per open scenario. Caller must hold
// the mutex.
func (b *Book) bettorStakes(bettor string) map[int]int64 {
	stakes := make(map[int]int64)
	for n, sc := range b.scenarios {
		if sc.Status().Resolved() {
			continue
		}
		for _, w := range sc.Wagers() {
			if w.Bettor == bettor {
				stakes[n] += w.AmountCents
			}
		}
		for _, w := range sc.InsuredWagers() {
			if w.Bettor == bettor {
				stakes[n] += w.AmountCents
			}
		}
	}
	return stakes
}

func (b *Book) checkOpen(sc *scenario.Scenario) error {
	if sc.Status().Resolved() {
		return fmt.Errorf("%w: scenario %d", scenario.ErrResolved, sc.Number())
	}
	return nil
}

func (b *Book) persistWager(ctx context.Context, number int, w model.WagerRecord) error {
	w.ID = uuid.New().String()
	w.ScenarioNumber = number
	w.PlacedAt = time.Now().UTC()
	if err := b.store.InsertWager(ctx, &w); err != nil {
		return fmt.Errorf("persist wager on scenario %d: %w", number, err)
	}
	return nil
}

// PlaceWager adds a plain wager to an open scenario. The bool result is
// false when an identical wager already exists (set semantics).
func (b *Book) PlaceWager(ctx context.Context, number int, bettor, predictionText string, amountCents int64) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sc, err := b.lookup(number)
	if err != nil {
		return false, err
	}
	if err := b.checkOpen(sc); err != nil {
		return false, err
	}
	if err := b.limiter.CheckLimit(number, amountCents, b.bettorStakes(bettor)); err != nil {
		return false, err
	}

	added, err := sc.AddWager(bettor, predictionText, amountCents)
	if err != nil || !added {
		return added, err
	}

	if err := b.persistWager(ctx, number, model.WagerRecord{
		Bettor:      bettor,
		Prediction:  predictionText,
		AmountCents: amountCents,
	}); err != nil {
		return true, err
	}
	b.audit(ctx, number, "wager_placed", fmt.Sprintf("%s - %d - %s", bettor, amountCents, predictionText))

	return true, nil
}

// PlaceInsuredWagerFixed adds a wager guaranteed a flat amount of cents.
func (b *Book) PlaceInsuredWagerFixed(ctx context.Context, number int, bettor, predictionText string, amountCents, insuredCents int64) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sc, err := b.lookup(number)
	if err != nil {
		return false, err
	}
	if err := b.checkOpen(sc); err != nil {
		return false, err
	}
	if err := b.limiter.CheckLimit(number, amountCents, b.bettorStakes(bettor)); err != nil {
		return false, err
	}

	added, err := sc.AddInsuredWagerFixed(bettor, predictionText, amountCents, insuredCents)
	if err != nil || !added {
		return added, err
	}

	insured := sc.InsuredWagers()
	last := insured[len(insured)-1]
	if err := b.persistWager(ctx, number, model.WagerRecord{
		Bettor:            bettor,
		Prediction:        predictionText,
		AmountCents:       amountCents,
		InsuranceID:       last.InsuranceID,
		PolicyKind:        "fixed",
		PolicyAmountCents: insuredCents,
	}); err != nil {
		return true, err
	}
	b.audit(ctx, number, "insured_wager_placed", last.String())

	return true, nil
}

// PlaceInsuredWagerRate adds a wager guaranteed a fraction of its stake.
func (b *Book) PlaceInsuredWagerRate(ctx context.Context, number int, bettor, predictionText string, amountCents int64, rate decimal.Decimal) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sc, err := b.lookup(number)
	if err != nil {
		return false, err
	}
	if err := b.checkOpen(sc); err != nil {
		return false, err
	}
	if err := b.limiter.CheckLimit(number, amountCents, b.bettorStakes(bettor)); err != nil {
		return false, err
	}

	added, err := sc.AddInsuredWagerRate(bettor, predictionText, amountCents, rate)
	if err != nil || !added {
		return added, err
	}

	insured := sc.InsuredWagers()
	last := insured[len(insured)-1]
	if err := b.persistWager(ctx, number, model.WagerRecord{
		Bettor:      bettor,
		Prediction:  predictionText,
		AmountCents: amountCents,
		InsuranceID: last.InsuranceID,
		PolicyKind:  "rate",
		PolicyRate:  rate,
	}); err != nil {
		return true, err
	}
	b.audit(ctx, number, "insured_wager_placed", last.String())

	return true, nil
}

// ChangeInsuranceToFixed swaps the policy of the insured wager with the
// given id to a fixed guarantee. Returns the id on success.
func (b *Book) ChangeInsuranceToFixed(ctx context.Context, number, insuranceID int, amountCents int64) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sc, err := b.lookup(number)
	if err != nil {
		return 0, err
	}

	id, err := sc.ChangeInsuranceToFixed(insuranceID, amountCents)
	if err != nil {
		return 0, err
	}

	if err := b.store.UpdateInsurancePolicy(ctx, number, id, "fixed", amountCents, decimal.Zero); err != nil {
		return id, fmt.Errorf("persist policy change on scenario %d: %w", number, err)
	}
	b.audit(ctx, number, "insurance_changed", fmt.Sprintf("id %d to fixed %d", id, amountCents))

	return id, nil
}

// CloseResult summarizes a scenario resolution.
type CloseResult struct {
	Number        int          `json:"number"`
	Status        model.Status `json:"status"`
	LosersCents   int64        `json:"losers_cents"`
	HouseCutCents int64        `json:"house_cut_cents"`
	PayoutCents   int64        `json:"payout_cents"`
	TreasuryCents int64        `json:"treasury_cents"`
}

// Close resolves a scenario against the real-world outcome, applies the
// book's house rate, and credits the cut to the treasury. A scenario can
// be closed only once; re-closing would double-credit the treasury.
func (b *Book) Close(ctx context.Context, number int, occurred bool) (*CloseResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sc, err := b.lookup(number)
	if err != nil {
		return nil, err
	}
	if err := b.checkOpen(sc); err != nil {
		return nil, err
	}

	sc.Finalize(occurred)
	sc.SetHouseCut(b.houseRate)
	b.treasuryCents += sc.HouseCut()

	if err := b.store.SettleScenario(ctx, number, occurred, sc.Status(), sc.HouseCut()); err != nil {
		return nil, fmt.Errorf("persist settlement of scenario %d: %w", number, err)
	}
	b.audit(ctx, number, "scenario_closed", string(sc.Status()))

	return &CloseResult{
		Number:        number,
		Status:        sc.Status(),
		LosersCents:   sc.LosersTotal(),
		HouseCutCents: sc.HouseCut(),
		PayoutCents:   sc.PayoutPool(),
		TreasuryCents: b.treasuryCents,
	}, nil
}
