package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/oddsmith/wagerbook/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) CreateScenario(ctx context.Context, rec *model.ScenarioRecord) error {
	if err := s.primary.CreateScenario(ctx, rec); err != nil {
		return err
	}
	s.cacheScenario(ctx, rec)
	return nil
}

func (s *CachedStore) SettleScenario(ctx context.Context, number int, occurred bool, status model.Status, houseCutCents int64) error {
	if err := s.primary.SettleScenario(ctx, number, occurred, status, houseCutCents); err != nil {
		return err
	}
	// Invalidate; next read re-populates with the settled state.
	s.rdb.Del(ctx, scenarioKey(number), wagersKey(number))
	return nil
}

func (s *CachedStore) InsertWager(ctx context.Context, rec *model.WagerRecord) error {
	if err := s.primary.InsertWager(ctx, rec); err != nil {
		return err
	}
	s.rdb.Del(ctx, wagersKey(rec.ScenarioNumber))
	return nil
}

func (s *CachedStore) UpdateInsurancePolicy(ctx context.Context, number, insuranceID int, kind string, amountCents int64, rate decimal.Decimal) error {
	if err := s.primary.UpdateInsurancePolicy(ctx, number, insuranceID, kind, amountCents, rate); err != nil {
		return err
	}
	s.rdb.Del(ctx, wagersKey(number))
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetScenario(ctx context.Context, number int) (*model.ScenarioRecord, error) {
	data, err := s.rdb.Get(ctx, scenarioKey(number)).Bytes()
	if err == nil {
		var rec model.ScenarioRecord
		if json.Unmarshal(data, &rec) == nil {
			return &rec, nil
		}
	}

	// Cache miss: read from primary.
	rec, err := s.primary.GetScenario(ctx, number)
	if err != nil {
		return nil, err
	}

	s.cacheScenario(ctx, rec)
	return rec, nil
}

func (s *CachedStore) ListWagersByScenario(ctx context.Context, number int) ([]model.WagerRecord, error) {
	data, err := s.rdb.Get(ctx, wagersKey(number)).Bytes()
	if err == nil {
		var recs []model.WagerRecord
		if json.Unmarshal(data, &recs) == nil {
			return recs, nil
		}
	}

	// Cache miss.
	recs, err := s.primary.ListWagersByScenario(ctx, number)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(recs); err == nil {
		s.rdb.Set(ctx, wagersKey(number), data, s.ttl)
	}
	return recs, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListScenarios(ctx context.Context) ([]model.ScenarioRecord, error) {
	return s.primary.ListScenarios(ctx)
}

func (s *CachedStore) InsertAudit(ctx context.Context, entry *model.AuditEntry) error {
	return s.primary.InsertAudit(ctx, entry)
}

func (s *CachedStore) ListAuditByScenario(ctx context.Context, number int) ([]model.AuditEntry, error) {
	return s.primary.ListAuditByScenario(ctx, number)
}

// --- Cache helpers ---

func (s *CachedStore) cacheScenario(ctx context.Context, rec *model.ScenarioRecord) {
	if data, err := json.Marshal(rec); err == nil {
		s.rdb.Set(ctx, scenarioKey(rec.Number), data, s.ttl)
	}
}

func scenarioKey(number int) string { return fmt.Sprintf("scenario:%d", number) }
func wagersKey(number int) string   { return fmt.Sprintf("wagers:%d", number) }
