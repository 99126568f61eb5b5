package book_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/oddsmith/wagerbook/internal/book"
	"github.com/oddsmith/wagerbook/internal/limits"
	"github.com/oddsmith/wagerbook/internal/scenario"
	"github.com/oddsmith/wagerbook/internal/store"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func newTestBook(t *testing.T) (*book.Book, *store.MemoryStore) {
	t.Helper()
	ms := store.NewMemoryStore()
	bk, err := book.NewBook(ms, nil, 10000, d("0.1"))
	if err != nil {
		t.Fatalf("failed to create book: %v", err)
	}
	return bk, ms
}

func TestNewBook_Validation(t *testing.T) {
	ms := store.NewMemoryStore()

	if _, err := book.NewBook(ms, nil, -1, d("0.1")); err == nil {
		t.Error("expected error for negative treasury")
	}
	if _, err := book.NewBook(ms, nil, 0, d("-0.1")); err == nil {
		t.Error("expected error for negative house rate")
	}
}

func TestCreateScenario_SequentialNumbers(t *testing.T) {
	bk, ms := newTestBook(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		n, err := bk.CreateScenario(ctx, "scenario")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != i {
			t.Errorf("expected number %d, got %d", i, n)
		}
	}

	recs, err := ms.ListScenarios(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 3 {
		t.Errorf("expected 3 persisted scenarios, got %d", len(recs))
	}
}

func TestScenario_Lookup(t *testing.T) {
	bk, _ := newTestBook(t)
	ctx := context.Background()
	bk.CreateScenario(ctx, "scenario")

	if _, err := bk.Scenario(0); !errors.Is(err, scenario.ErrInvalidArgument) {
		t.Errorf("expected invalid argument for number 0, got %v", err)
	}
	if _, err := bk.Scenario(99); !errors.Is(err, scenario.ErrNotFound) {
		t.Errorf("expected not found for unknown number, got %v", err)
	}
	if _, err := bk.Scenario(1); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestClose_CreditsTreasury(t *testing.T) {
	bk, _ := newTestBook(t)
	ctx := context.Background()

	n, _ := bk.CreateScenario(ctx, "Team X wins")
	bk.PlaceWager(ctx, n, "Alice", "WILL HAPPEN", 1000)
	bk.PlaceWager(ctx, n, "Bob", "WILL NOT HAPPEN", 500)

	result, err := bk.Close(ctx, n, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.LosersCents != 500 {
		t.Errorf("expected losers total 500, got %d", result.LosersCents)
	}
	if result.HouseCutCents != 50 {
		t.Errorf("expected house cut 50, got %d", result.HouseCutCents)
	}
	if result.PayoutCents != 450 {
		t.Errorf("expected payout 450, got %d", result.PayoutCents)
	}
	if got := bk.TreasuryCents(); got != 10050 {
		t.Errorf("expected treasury 10050, got %d", got)
	}
}

func TestClose_Twice(t *testing.T) {
	bk, _ := newTestBook(t)
	ctx := context.Background()

	n, _ := bk.CreateScenario(ctx, "scenario")
	if _, err := bk.Close(ctx, n, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := bk.Close(ctx, n, false); !errors.Is(err, scenario.ErrResolved) {
		t.Errorf("expected already-resolved error, got %v", err)
	}
	if got := bk.TreasuryCents(); got != 10000 {
		t.Errorf("treasury must not change on rejected close, got %d", got)
	}
}

func TestPlaceWager_OnResolvedScenario(t *testing.T) {
	bk, _ := newTestBook(t)
	ctx := context.Background()

	n, _ := bk.CreateScenario(ctx, "scenario")
	bk.Close(ctx, n, true)

	if _, err := bk.PlaceWager(ctx, n, "Alice", "WILL HAPPEN", 100); !errors.Is(err, scenario.ErrResolved) {
		t.Errorf("expected already-resolved error, got %v", err)
	}
}

func TestPlaceWager_StakeLimits(t *testing.T) {
	ms := store.NewMemoryStore()
	limiter := limits.NewStakeLimiter(1000, 1500)
	bk, err := book.NewBook(ms, limiter, 0, d("0.1"))
	if err != nil {
		t.Fatalf("failed to create book: %v", err)
	}
	ctx := context.Background()

	n1, _ := bk.CreateScenario(ctx, "first")
	n2, _ := bk.CreateScenario(ctx, "second")

	if _, err := bk.PlaceWager(ctx, n1, "Alice", "WILL HAPPEN", 900); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := bk.PlaceWager(ctx, n1, "Alice", "WILL HAPPEN", 200); !errors.Is(err, limits.ErrPerScenarioLimitExceeded) {
		t.Errorf("expected per-scenario limit error, got %v", err)
	}
	if _, err := bk.PlaceWager(ctx, n2, "Alice", "WILL HAPPEN", 700); !errors.Is(err, limits.ErrAggregateLimitExceeded) {
		t.Errorf("expected aggregate limit error, got %v", err)
	}
	// Other bettors are unaffected.
	if _, err := bk.PlaceWager(ctx, n2, "Bob", "WILL HAPPEN", 700); err != nil {
		t.Errorf("unexpected error for other bettor: %v", err)
	}
}

func TestChangeInsurance_WriteThrough(t *testing.T) {
	bk, ms := newTestBook(t)
	ctx := context.Background()

	n, _ := bk.CreateScenario(ctx, "scenario")
	added, err := bk.PlaceInsuredWagerRate(ctx, n, "Alice", "WILL HAPPEN", 1000, d("0.2"))
	if err != nil || !added {
		t.Fatalf("failed to place insured wager: added=%v err=%v", added, err)
	}

	id, err := bk.ChangeInsuranceToFixed(ctx, n, 1, 300)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 1 {
		t.Errorf("expected id 1, got %d", id)
	}

	recs, _ := ms.ListWagersByScenario(ctx, n)
	if len(recs) != 1 {
		t.Fatalf("expected 1 persisted wager, got %d", len(recs))
	}
	if recs[0].PolicyKind != "fixed" || recs[0].PolicyAmountCents != 300 {
		t.Errorf("policy change not persisted: %+v", recs[0])
	}
}

func TestAudit_RecordsMutations(t *testing.T) {
	bk, ms := newTestBook(t)
	ctx := context.Background()

	n, _ := bk.CreateScenario(ctx, "scenario")
	bk.PlaceWager(ctx, n, "Alice", "WILL HAPPEN", 100)
	bk.Close(ctx, n, false)

	entries, err := ms.ListAuditByScenario(ctx, n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 audit entries, got %d", len(entries))
	}

	actions := []string{"scenario_created", "wager_placed", "scenario_closed"}
	for i, want := range actions {
		if entries[i].Action != want {
			t.Errorf("entry %d: expected action %q, got %q", i, want, entries[i].Action)
		}
		if entries[i].ID == "" {
			t.Errorf("entry %d: expected non-empty id", i)
		}
	}
}
