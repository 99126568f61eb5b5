package book_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/oddsmith/wagerbook/internal/book"
	"github.com/oddsmith/wagerbook/internal/store"
)

// newTestEnv creates a test Service with in-memory store and chi router.
func newTestEnv(t *testing.T) (*book.Book, *store.MemoryStore, chi.Router) {
	t.Helper()
	ms := store.NewMemoryStore()
	bk, err := book.NewBook(ms, nil, 10000, d("0.1"))
	if err != nil {
		t.Fatalf("failed to create book: %v", err)
	}
	svc := book.NewService(bk, ms, nil)

	r := chi.NewRouter()
	r.Route("/api/v1", svc.Routes)

	return bk, ms, r
}

func doJSON(t *testing.T, router chi.Router, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createScenario(t *testing.T, router chi.Router, description string) int {
	t.Helper()
	w := doJSON(t, router, "POST", "/api/v1/scenarios", book.CreateScenarioRequest{Description: description})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp book.ScenarioResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	return resp.Number
}

func placeWager(t *testing.T, router chi.Router, number int, req book.PlaceWagerRequest) book.PlaceWagerResponse {
	t.Helper()
	w := doJSON(t, router, "POST", fmt.Sprintf("/api/v1/scenarios/%d/wagers", number), req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp book.PlaceWagerResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	return resp
}

// --- Scenario lifecycle tests ---

func TestCreateScenario_BlankDescription(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := doJSON(t, router, "POST", "/api/v1/scenarios", book.CreateScenarioRequest{Description: "   "})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCreateScenario_ReturnsOpenScenario(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := doJSON(t, router, "POST", "/api/v1/scenarios", book.CreateScenarioRequest{Description: "Team X wins"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp book.ScenarioResponse
	json.Unmarshal(w.Body.Bytes(), &resp)

	if resp.Number != 1 {
		t.Errorf("expected number 1, got %d", resp.Number)
	}
	if resp.Display != "1 - Team X wins - open" {
		t.Errorf("unexpected display form: %q", resp.Display)
	}
}

func TestGetScenario_NotFound(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := doJSON(t, router, "GET", "/api/v1/scenarios/42", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGetScenario_BadNumber(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := doJSON(t, router, "GET", "/api/v1/scenarios/abc", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

// --- Wager placement tests ---

func TestPlaceWager_DuplicateNotAccepted(t *testing.T) {
	_, _, router := newTestEnv(t)
	n := createScenario(t, router, "Team X wins")

	req := book.PlaceWagerRequest{Bettor: "Alice", Prediction: "will happen", AmountCents: 1000}

	first := placeWager(t, router, n, req)
	if !first.Accepted {
		t.Error("first wager should be accepted")
	}
	second := placeWager(t, router, n, req)
	if second.Accepted {
		t.Error("identical wager should not be accepted")
	}
}

func TestPlaceWager_InvalidPrediction(t *testing.T) {
	_, _, router := newTestEnv(t)
	n := createScenario(t, router, "Team X wins")

	w := doJSON(t, router, "POST", fmt.Sprintf("/api/v1/scenarios/%d/wagers", n),
		book.PlaceWagerRequest{Bettor: "Alice", Prediction: "probably", AmountCents: 1000})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestPlaceWager_Insured(t *testing.T) {
	_, _, router := newTestEnv(t)
	n := createScenario(t, router, "Team X wins")

	fixed := placeWager(t, router, n, book.PlaceWagerRequest{
		Bettor:      "Alice",
		Prediction:  "will happen",
		AmountCents: 1000,
		Insurance:   &book.InsuranceSpec{Kind: "fixed", AmountCents: 200},
	})
	if !fixed.Accepted || fixed.InsuranceID != 1 {
		t.Errorf("expected accepted insured wager with id 1, got %+v", fixed)
	}

	rate := placeWager(t, router, n, book.PlaceWagerRequest{
		Bettor:      "Bob",
		Prediction:  "will not happen",
		AmountCents: 500,
		Insurance:   &book.InsuranceSpec{Kind: "rate", Rate: d("0.5")},
	})
	if !rate.Accepted || rate.InsuranceID != 2 {
		t.Errorf("expected accepted insured wager with id 2, got %+v", rate)
	}
}

func TestPlaceWager_UnknownInsuranceKind(t *testing.T) {
	_, _, router := newTestEnv(t)
	n := createScenario(t, router, "Team X wins")

	w := doJSON(t, router, "POST", fmt.Sprintf("/api/v1/scenarios/%d/wagers", n),
		book.PlaceWagerRequest{
			Bettor:      "Alice",
			Prediction:  "will happen",
			AmountCents: 1000,
			Insurance:   &book.InsuranceSpec{Kind: "premium"},
		})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

// --- Insurance policy change tests ---

func TestChangeInsurance(t *testing.T) {
	_, ms, router := newTestEnv(t)
	n := createScenario(t, router, "Team X wins")
	placeWager(t, router, n, book.PlaceWagerRequest{
		Bettor:      "Alice",
		Prediction:  "will happen",
		AmountCents: 1000,
		Insurance:   &book.InsuranceSpec{Kind: "rate", Rate: d("0.2")},
	})

	w := doJSON(t, router, "PUT", fmt.Sprintf("/api/v1/scenarios/%d/insurance/1", n),
		book.ChangeInsuranceRequest{AmountCents: 300})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	recs, _ := ms.ListWagersByScenario(context.Background(), n)
	if recs[0].PolicyKind != "fixed" {
		t.Errorf("expected persisted policy kind fixed, got %q", recs[0].PolicyKind)
	}
}

func TestChangeInsurance_Errors(t *testing.T) {
	_, _, router := newTestEnv(t)
	n := createScenario(t, router, "Team X wins")

	w := doJSON(t, router, "PUT", fmt.Sprintf("/api/v1/scenarios/%d/insurance/9", n),
		book.ChangeInsuranceRequest{AmountCents: 300})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown id, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, "PUT", fmt.Sprintf("/api/v1/scenarios/%d/insurance/0", n),
		book.ChangeInsuranceRequest{AmountCents: 300})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for id 0, got %d: %s", w.Code, w.Body.String())
	}
}

// --- Close and treasury tests ---

func TestCloseScenario_FullFlow(t *testing.T) {
	_, _, router := newTestEnv(t)
	n := createScenario(t, router, "Team X wins")
	placeWager(t, router, n, book.PlaceWagerRequest{Bettor: "Alice", Prediction: "will happen", AmountCents: 1000})
	placeWager(t, router, n, book.PlaceWagerRequest{Bettor: "Bob", Prediction: "will not happen", AmountCents: 500})

	w := doJSON(t, router, "POST", fmt.Sprintf("/api/v1/scenarios/%d/close", n),
		book.CloseScenarioRequest{Occurred: true})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var result book.CloseResult
	json.Unmarshal(w.Body.Bytes(), &result)

	if result.LosersCents != 500 {
		t.Errorf("expected losers total 500, got %d", result.LosersCents)
	}
	if result.HouseCutCents != 50 {
		t.Errorf("expected house cut 50, got %d", result.HouseCutCents)
	}
	if result.PayoutCents != 450 {
		t.Errorf("expected payout 450, got %d", result.PayoutCents)
	}

	// Treasury reflects the credited cut.
	w = doJSON(t, router, "GET", "/api/v1/treasury", nil)
	var treasury book.TreasuryResponse
	json.Unmarshal(w.Body.Bytes(), &treasury)
	if treasury.BalanceCents != 10050 {
		t.Errorf("expected treasury 10050, got %d", treasury.BalanceCents)
	}
}

func TestCloseScenario_Twice(t *testing.T) {
	_, _, router := newTestEnv(t)
	n := createScenario(t, router, "Team X wins")

	doJSON(t, router, "POST", fmt.Sprintf("/api/v1/scenarios/%d/close", n),
		book.CloseScenarioRequest{Occurred: true})
	w := doJSON(t, router, "POST", fmt.Sprintf("/api/v1/scenarios/%d/close", n),
		book.CloseScenarioRequest{Occurred: false})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

// --- Listing tests ---

func TestListWagers(t *testing.T) {
	_, _, router := newTestEnv(t)
	n := createScenario(t, router, "Team X wins")
	placeWager(t, router, n, book.PlaceWagerRequest{Bettor: "Alice", Prediction: "will happen", AmountCents: 1000})
	placeWager(t, router, n, book.PlaceWagerRequest{
		Bettor:      "Bob",
		Prediction:  "will not happen",
		AmountCents: 500,
		Insurance:   &book.InsuranceSpec{Kind: "fixed", AmountCents: 100},
	})

	w := doJSON(t, router, "GET", fmt.Sprintf("/api/v1/scenarios/%d/wagers", n), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp book.WagerListResponse
	json.Unmarshal(w.Body.Bytes(), &resp)

	if len(resp.Wagers) != 2 {
		t.Errorf("expected 2 wager rows, got %d", len(resp.Wagers))
	}
	if resp.Listing == "" {
		t.Error("expected non-empty listing")
	}
	// Plain wagers come before insured ones.
	if resp.Wagers[0].InsuranceID != 0 || resp.Wagers[1].InsuranceID == 0 {
		t.Errorf("expected plain row first, insured second: %+v", resp.Wagers)
	}
}

func TestListScenarios(t *testing.T) {
	_, _, router := newTestEnv(t)
	createScenario(t, router, "first")
	createScenario(t, router, "second")

	w := doJSON(t, router, "GET", "/api/v1/scenarios", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var views []book.ScenarioResponse
	json.Unmarshal(w.Body.Bytes(), &views)
	if len(views) != 2 {
		t.Fatalf("expected 2 scenarios, got %d", len(views))
	}
	if views[0].Number != 1 || views[1].Number != 2 {
		t.Errorf("expected creation order, got %+v", views)
	}
}

func TestGetAudit(t *testing.T) {
	_, _, router := newTestEnv(t)
	n := createScenario(t, router, "Team X wins")
	placeWager(t, router, n, book.PlaceWagerRequest{Bettor: "Alice", Prediction: "will happen", AmountCents: 1000})

	w := doJSON(t, router, "GET", fmt.Sprintf("/api/v1/scenarios/%d/audit", n), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var entries []map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &entries)
	if len(entries) != 2 {
		t.Errorf("expected 2 audit entries, got %d", len(entries))
	}
}
