package book

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/oddsmith/wagerbook/internal/limits"
	"github.com/oddsmith/wagerbook/internal/metrics"
	"github.com/oddsmith/wagerbook/internal/model"
	"github.com/oddsmith/wagerbook/internal/prediction"
	"github.com/oddsmith/wagerbook/internal/scenario"
	"github.com/oddsmith/wagerbook/internal/store"
)

// Service exposes the wager book over HTTP.
type Service struct {
	book  *Book
	store store.Store
	wsHub *WSHub // optional WebSocket hub for real-time broadcasts
}

// NewService creates a new book service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(b *Book, st store.Store, hub *WSHub) *Service {
	return &Service{book: b, store: st, wsHub: hub}
}

// --- Request/Response types ---

// CreateScenarioRequest is the JSON body for scenario creation.
type CreateScenarioRequest struct {
	Description string `json:"description"`
}

// InsuranceSpec describes an optional guarantee on an incoming wager.
type InsuranceSpec struct {
	Kind        string          `json:"kind"` // "fixed" or "rate"
	AmountCents int64           `json:"amount_cents,omitempty"`
	Rate        decimal.Decimal `json:"rate,omitempty"`
}

// PlaceWagerRequest is the JSON body for POST /scenarios/{number}/wagers.
type PlaceWagerRequest struct {
	Bettor      string         `json:"bettor"`
	Prediction  string         `json:"prediction"`
	AmountCents int64          `json:"amount_cents"`
	Insurance   *InsuranceSpec `json:"insurance,omitempty"`
}

// PlaceWagerResponse reports whether the wager changed the set.
type PlaceWagerResponse struct {
	Scenario    int  `json:"scenario"`
	Accepted    bool `json:"accepted"`
	InsuranceID int  `json:"insurance_id,omitempty"`
}

// ChangeInsuranceRequest is the JSON body for the policy swap.
type ChangeInsuranceRequest struct {
	AmountCents int64 `json:"amount_cents"`
}

// CloseScenarioRequest is the JSON body for POST /scenarios/{number}/close.
type CloseScenarioRequest struct {
	Occurred bool `json:"occurred"`
}

// ScenarioResponse is the JSON view of one scenario.
type ScenarioResponse struct {
	Number            int          `json:"number"`
	Description       string       `json:"description"`
	Status            model.Status `json:"status"`
	HouseCutCents     int64        `json:"house_cut_cents"`
	TotalWageredCents int64        `json:"total_wagered_cents"`
	WagerCount        int          `json:"wager_count"`
	Display           string       `json:"display"`
}

// WagerListResponse carries both the structured rows and the line-per-wager
// listing.
type WagerListResponse struct {
	Scenario int                 `json:"scenario"`
	Listing  string              `json:"listing"`
	Wagers   []model.WagerRecord `json:"wagers"`
}

// TreasuryResponse is the JSON view of the house accounts.
type TreasuryResponse struct {
	BalanceCents int64           `json:"balance_cents"`
	HouseRate    decimal.Decimal `json:"house_rate"`
}

func scenarioView(sc *scenario.Scenario) ScenarioResponse {
	return ScenarioResponse{
		Number:            sc.Number(),
		Description:       sc.Description(),
		Status:            sc.Status(),
		HouseCutCents:     sc.HouseCut(),
		TotalWageredCents: sc.TotalWagered(),
		WagerCount:        sc.WagerCount(),
		Display:           sc.String(),
	}
}

// --- HTTP Handlers ---

// CreateScenario handles POST /api/v1/scenarios
func (s *Service) CreateScenario(w http.ResponseWriter, r *http.Request) {
	var req CreateScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	number, err := s.book.CreateScenario(r.Context(), req.Description)
	if err != nil {
		writeError(w, err.Error(), errStatus(err))
		return
	}
	metrics.OpenScenarios.Inc()

	slog.Info("scenario created", "number", number, "description", req.Description)

	sc, _ := s.book.Scenario(number)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(scenarioView(sc))
}

// ListScenarios handles GET /api/v1/scenarios
func (s *Service) ListScenarios(w http.ResponseWriter, r *http.Request) {
	views := []ScenarioResponse{}
	for _, sc := range s.book.Scenarios() {
		views = append(views, scenarioView(sc))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(views)
}

// GetScenario handles GET /api/v1/scenarios/{number}
func (s *Service) GetScenario(w http.ResponseWriter, r *http.Request) {
	number, ok := scenarioNumber(w, r)
	if !ok {
		return
	}

	sc, err := s.book.Scenario(number)
	if err != nil {
		writeError(w, err.Error(), errStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(scenarioView(sc))
}

// ListWagers handles GET /api/v1/scenarios/{number}/wagers
func (s *Service) ListWagers(w http.ResponseWriter, r *http.Request) {
	number, ok := scenarioNumber(w, r)
	if !ok {
		return
	}

	sc, err := s.book.Scenario(number)
	if err != nil {
		writeError(w, err.Error(), errStatus(err))
		return
	}

	recs, err := s.store.ListWagersByScenario(r.Context(), number)
	if err != nil {
		writeError(w, "failed to list wagers", http.StatusInternalServerError)
		return
	}
	if recs == nil {
		recs = []model.WagerRecord{}
	}

	resp := WagerListResponse{
		Scenario: number,
		Listing:  sc.AllWagers(),
		Wagers:   recs,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// PlaceWager handles POST /api/v1/scenarios/{number}/wagers
// Accepts plain wagers and, via the insurance field, insured ones.
func (s *Service) PlaceWager(w http.ResponseWriter, r *http.Request) {
	number, ok := scenarioNumber(w, r)
	if !ok {
		return
	}

	var req PlaceWagerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// Restrict prediction text to the two canonical forms at the API
	// boundary.
	pred, err := prediction.Parse(req.Prediction)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	var accepted bool
	var insuranceID int
	kind := "plain"

	switch {
	case req.Insurance == nil:
		accepted, err = s.book.PlaceWager(ctx, number, req.Bettor, pred, req.AmountCents)
	case req.Insurance.Kind == "fixed":
		kind = "fixed"
		accepted, err = s.book.PlaceInsuredWagerFixed(ctx, number, req.Bettor, pred,
			req.AmountCents, req.Insurance.AmountCents)
	case req.Insurance.Kind == "rate":
		kind = "rate"
		accepted, err = s.book.PlaceInsuredWagerRate(ctx, number, req.Bettor, pred,
			req.AmountCents, req.Insurance.Rate)
	default:
		writeError(w, "insurance kind must be fixed or rate", http.StatusBadRequest)
		return
	}

	if err != nil {
		if errors.Is(err, limits.ErrPerScenarioLimitExceeded) || errors.Is(err, limits.ErrAggregateLimitExceeded) {
			metrics.WagersRejected.WithLabelValues("limit").Inc()
		}
		writeError(w, err.Error(), errStatus(err))
		return
	}
	if !accepted {
		metrics.WagersRejected.WithLabelValues("duplicate").Inc()
	} else {
		metrics.WagersTotal.WithLabelValues(kind).Inc()

		if kind != "plain" {
			sc, _ := s.book.Scenario(number)
			insured := sc.InsuredWagers()
			insuranceID = insured[len(insured)-1].InsuranceID
		}

		slog.Info("wager placed",
			"scenario", number,
			"bettor", req.Bettor,
			"prediction", pred,
			"amount_cents", req.AmountCents,
			"kind", kind,
		)

		if s.wsHub != nil {
			s.wsHub.Broadcast(WSMessage{
				Type:        "wager_placed",
				Scenario:    number,
				Bettor:      req.Bettor,
				AmountCents: req.AmountCents,
				InsuranceID: insuranceID,
			})
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(PlaceWagerResponse{
		Scenario:    number,
		Accepted:    accepted,
		InsuranceID: insuranceID,
	})
}

// ChangeInsurance handles PUT /api/v1/scenarios/{number}/insurance/{insuranceID}
// Swaps the target policy to a fixed guarantee.
func (s *Service) ChangeInsurance(w http.ResponseWriter, r *http.Request) {
	number, ok := scenarioNumber(w, r)
	if !ok {
		return
	}
	insuranceID, err := strconv.Atoi(chi.URLParam(r, "insuranceID"))
	if err != nil {
		writeError(w, "insurance id must be an integer", http.StatusBadRequest)
		return
	}

	var req ChangeInsuranceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	id, err := s.book.ChangeInsuranceToFixed(r.Context(), number, insuranceID, req.AmountCents)
	if err != nil {
		writeError(w, err.Error(), errStatus(err))
		return
	}

	slog.Info("insurance policy changed",
		"scenario", number,
		"insurance_id", id,
		"amount_cents", req.AmountCents,
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:        "insurance_changed",
			Scenario:    number,
			InsuranceID: id,
			AmountCents: req.AmountCents,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"insurance_id": id})
}

// CloseScenario handles POST /api/v1/scenarios/{number}/close
// Resolves the scenario, applies the house cut, and credits the treasury.
func (s *Service) CloseScenario(w http.ResponseWriter, r *http.Request) {
	number, ok := scenarioNumber(w, r)
	if !ok {
		return
	}

	var req CloseScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := s.book.Close(r.Context(), number, req.Occurred)
	if err != nil {
		writeError(w, err.Error(), errStatus(err))
		return
	}

	outcome := "did_not_occur"
	if req.Occurred {
		outcome = "occurred"
	}
	metrics.ScenariosSettled.WithLabelValues(outcome).Inc()
	metrics.OpenScenarios.Dec()
	metrics.TreasuryCents.Set(float64(result.TreasuryCents))

	slog.Info("scenario closed",
		"scenario", number,
		"status", result.Status,
		"losers_cents", result.LosersCents,
		"house_cut_cents", result.HouseCutCents,
		"payout_cents", result.PayoutCents,
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:          "scenario_closed",
			Scenario:      number,
			Status:        string(result.Status),
			HouseCutCents: result.HouseCutCents,
			PayoutCents:   result.PayoutCents,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// GetAudit handles GET /api/v1/scenarios/{number}/audit
func (s *Service) GetAudit(w http.ResponseWriter, r *http.Request) {
	number, ok := scenarioNumber(w, r)
	if !ok {
		return
	}

	entries, err := s.store.ListAuditByScenario(r.Context(), number)
	if err != nil {
		writeError(w, "failed to list audit entries", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []model.AuditEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

// GetTreasury handles GET /api/v1/treasury
func (s *Service) GetTreasury(w http.ResponseWriter, r *http.Request) {
	resp := TreasuryResponse{
		BalanceCents: s.book.TreasuryCents(),
		HouseRate:    s.book.HouseRate(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// Routes mounts all book endpoints on the given router.
func (s *Service) Routes(r chi.Router) {
	r.Get("/scenarios", s.ListScenarios)
	r.Post("/scenarios", s.CreateScenario)
	r.Get("/scenarios/{number}", s.GetScenario)
	r.Get("/scenarios/{number}/wagers", s.ListWagers)
	r.Post("/scenarios/{number}/wagers", s.PlaceWager)
	r.Put("/scenarios/{number}/insurance/{insuranceID}", s.ChangeInsurance)
	r.Post("/scenarios/{number}/close", s.CloseScenario)
	r.Get("/scenarios/{number}/audit", s.GetAudit)
	r.Get("/treasury", s.GetTreasury)
}

// scenarioNumber extracts the {number} URL parameter, writing a 400 on
// malformed input.
func scenarioNumber(w http.ResponseWriter, r *http.Request) (int, bool) {
	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil {
		writeError(w, "scenario number must be an integer", http.StatusBadRequest)
		return 0, false
	}
	return number, true
}

// errStatus maps domain errors to HTTP status codes.
func errStatus(err error) int {
	switch {
	case errors.Is(err, scenario.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, scenario.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, scenario.ErrResolved),
		errors.Is(err, limits.ErrPerScenarioLimitExceeded),
		errors.Is(err, limits.ErrAggregateLimitExceeded):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
