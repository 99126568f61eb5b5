package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/oddsmith/wagerbook/internal/model"
	"github.com/oddsmith/wagerbook/internal/prediction"
)

// MemoryStore implements Store with in-memory slices and maps. Used for
// testing and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu        sync.RWMutex
	scenarios map[int]*model.ScenarioRecord
	order     []int
	wagers    []model.WagerRecord
	audit     []model.AuditEntry
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		scenarios: make(map[int]*model.ScenarioRecord),
	}
}

func (s *MemoryStore) CreateScenario(_ context.Context, rec *model.ScenarioRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.scenarios[rec.Number]; exists {
		return fmt.Errorf("scenario %d already exists", rec.Number)
	}

	// Store a copy to avoid external mutation.
	copy := *rec
	s.scenarios[rec.Number] = &copy
	s.order = append(s.order, rec.Number)
	return nil
}

func (s *MemoryStore) GetScenario(_ context.Context, number int) (*model.ScenarioRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.scenarios[number]
	if !ok {
		return nil, fmt.Errorf("scenario %d not found", number)
	}
	copy := *rec
	return &copy, nil
}

func (s *MemoryStore) ListScenarios(_ context.Context) ([]model.ScenarioRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.ScenarioRecord, 0, len(s.order))
	for _, n := range s.order {
		out = append(out, *s.scenarios[n])
	}
	return out, nil
}

func (s *MemoryStore) SettleScenario(_ context.Context, number int, occurred bool, status model.Status, houseCutCents int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.scenarios[number]
	if !ok {
		return fmt.Errorf("scenario %d not found", number)
	}
	rec.Status = status
	rec.HouseCutCents = houseCutCents

	// Mark plain wagers; insured wagers keep their guarantee and are not
	// classified.
	for i := range s.wagers {
		w := &s.wagers[i]
		if w.ScenarioNumber != number || w.InsuranceID != 0 {
			continue
		}
		if prediction.Favorable(w.Prediction) {
			w.Won = occurred
		} else {
			w.Won = !occurred
		}
	}
	return nil
}

func (s *MemoryStore) InsertWager(_ context.Context, rec *model.WagerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.wagers = append(s.wagers, *rec)
	return nil
}

func (s *MemoryStore) ListWagersByScenario(_ context.Context, number int) ([]model.WagerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var plain, insured []model.WagerRecord
	for _, w := range s.wagers {
		if w.ScenarioNumber != number {
			continue
		}
		if w.InsuranceID == 0 {
			plain = append(plain, w)
		} else {
			insured = append(insured, w)
		}
	}
	return append(plain, insured...), nil
}

func (s *MemoryStore) UpdateInsurancePolicy(_ context.Context, number, insuranceID int, kind string, amountCents int64, rate decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.wagers {
		w := &s.wagers[i]
		if w.ScenarioNumber == number && w.InsuranceID == insuranceID {
			w.PolicyKind = kind
			w.PolicyAmountCents = amountCents
			w.PolicyRate = rate
			return nil
		}
	}
	return fmt.Errorf("insured wager %d not found on scenario %d", insuranceID, number)
}

func (s *MemoryStore) InsertAudit(_ context.Context, entry *model.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.audit = append(s.audit, *entry)
	return nil
}

func (s *MemoryStore) ListAuditByScenario(_ context.Context, number int) ([]model.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.AuditEntry
	for _, e := range s.audit {
		if e.ScenarioNumber == number {
			out = append(out, e)
		}
	}
	return out, nil
}
