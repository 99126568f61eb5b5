package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/oddsmith/wagerbook/internal/model"
	"github.com/oddsmith/wagerbook/internal/prediction"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Amounts are BIGINT cents; insurance rates are stored as NUMERIC text for
// exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) CreateScenario(ctx context.Context, rec *model.ScenarioRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO scenarios (number, description, status, house_cut_cents, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		rec.Number, rec.Description, string(rec.Status), rec.HouseCutCents, rec.CreatedAt,
	)
	return err
}

func (s *PostgresStore) GetScenario(ctx context.Context, number int) (*model.ScenarioRecord, error) {
	var rec model.ScenarioRecord
	var status string

	err := s.pool.QueryRow(ctx,
		`SELECT number, description, status, house_cut_cents, created_at
		 FROM scenarios WHERE number = $1`, number).
		Scan(&rec.Number, &rec.Description, &status, &rec.HouseCutCents, &rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get scenario %d: %w", number, err)
	}

	rec.Status = model.Status(status)
	return &rec, nil
}

func (s *PostgresStore) ListScenarios(ctx context.Context) ([]model.ScenarioRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT number, description, status, house_cut_cents, created_at
		 FROM scenarios ORDER BY number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []model.ScenarioRecord
	for rows.Next() {
		var rec model.ScenarioRecord
		var status string
		if err := rows.Scan(&rec.Number, &rec.Description, &status,
			&rec.HouseCutCents, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Status = model.Status(status)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (s *PostgresStore) SettleScenario(ctx context.Context, number int, occurred bool, status model.Status, houseCutCents int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE scenarios SET status = $2, house_cut_cents = $3 WHERE number = $1`,
		number, string(status), houseCutCents,
	); err != nil {
		return err
	}

	// Plain wagers only: backing predictions win iff the scenario
	// occurred, everything else wins iff it did not. Insured wagers are
	// not classified.
	if _, err := tx.Exec(ctx,
		`UPDATE wagers
		 SET won = CASE WHEN UPPER(BTRIM(prediction)) = $3 THEN $2 ELSE NOT $2 END
		 WHERE scenario_number = $1 AND insurance_id = 0`,
		number, occurred, prediction.WillHappen,
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) InsertWager(ctx context.Context, rec *model.WagerRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO wagers (id, scenario_number, bettor, prediction, amount_cents, won,
		                     insurance_id, policy_kind, policy_amount_cents, policy_rate, placed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::NUMERIC, $11)`,
		rec.ID, rec.ScenarioNumber, rec.Bettor, rec.Prediction, rec.AmountCents, rec.Won,
		rec.InsuranceID, rec.PolicyKind, rec.PolicyAmountCents, rec.PolicyRate.String(),
		rec.PlacedAt,
	)
	return err
}

func (s *PostgresStore) ListWagersByScenario(ctx context.Context, number int) ([]model.WagerRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, scenario_number, bettor, prediction, amount_cents, won,
		        insurance_id, policy_kind, policy_amount_cents, policy_rate::TEXT, placed_at
		 FROM wagers WHERE scenario_number = $1
		 ORDER BY (insurance_id <> 0), placed_at`, number)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []model.WagerRecord
	for rows.Next() {
		var rec model.WagerRecord
		var rate string
		if err := rows.Scan(&rec.ID, &rec.ScenarioNumber, &rec.Bettor, &rec.Prediction,
			&rec.AmountCents, &rec.Won, &rec.InsuranceID, &rec.PolicyKind,
			&rec.PolicyAmountCents, &rate, &rec.PlacedAt); err != nil {
			return nil, err
		}
		rec.PolicyRate, _ = decimal.NewFromString(rate)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (s *PostgresStore) UpdateInsurancePolicy(ctx context.Context, number, insuranceID int, kind string, amountCents int64, rate decimal.Decimal) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE wagers
		 SET policy_kind = $3, policy_amount_cents = $4, policy_rate = $5::NUMERIC
		 WHERE scenario_number = $1 AND insurance_id = $2`,
		number, insuranceID, kind, amountCents, rate.String(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("insured wager %d not found on scenario %d", insuranceID, number)
	}
	return nil
}

func (s *PostgresStore) InsertAudit(ctx context.Context, entry *model.AuditEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO audit_entries (id, scenario_number, action, detail, timestamp)
		 VALUES ($1, $2, $3, $4, $5)`,
		entry.ID, entry.ScenarioNumber, entry.Action, entry.Detail, entry.Timestamp,
	)
	return err
}

func (s *PostgresStore) ListAuditByScenario(ctx context.Context, number int) ([]model.AuditEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, scenario_number, action, detail, timestamp
		 FROM audit_entries WHERE scenario_number = $1 ORDER BY timestamp`, number)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		if err := rows.Scan(&e.ID, &e.ScenarioNumber, &e.Action, &e.Detail, &e.Timestamp); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
