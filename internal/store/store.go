// Package store defines the persistence interface for the wager book.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/oddsmith/wagerbook/internal/model"
)

// Store is the persistence interface. The book writes through on every
// mutation; listing and audit queries read from here.
type Store interface {
	// --- Scenario operations ---

	// CreateScenario persists a new scenario.
	CreateScenario(ctx context.Context, rec *model.ScenarioRecord) error

	// GetScenario retrieves a scenario by its number.
	GetScenario(ctx context.Context, number int) (*model.ScenarioRecord, error)

	// ListScenarios returns all scenarios in creation order.
	ListScenarios(ctx context.Context) ([]model.ScenarioRecord, error)

	// SettleScenario records a resolution: status, house cut, and the
	// won flag of every plain wager in one write.
	SettleScenario(ctx context.Context, number int, occurred bool, status model.Status, houseCutCents int64) error

	// --- Wager operations ---

	// InsertWager appends a wager row.
	InsertWager(ctx context.Context, rec *model.WagerRecord) error

	// ListWagersByScenario returns all wager rows for a scenario,
	// plain first, in placement order.
	ListWagersByScenario(ctx context.Context, number int) ([]model.WagerRecord, error)

	// UpdateInsurancePolicy replaces the policy columns of the insured
	// wager with the given id.
	UpdateInsurancePolicy(ctx context.Context, number, insuranceID int, kind string, amountCents int64, rate decimal.Decimal) error

	// --- Immutable audit log ---

	// InsertAudit appends an immutable audit record.
	InsertAudit(ctx context.Context, entry *model.AuditEntry) error

	// ListAuditByScenario returns all audit records for a scenario.
	ListAuditByScenario(ctx context.Context, number int) ([]model.AuditEntry, error)
}
