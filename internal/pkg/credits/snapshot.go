package credits

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/deckforge/DeckForge/app/models"
	"github.com/deckforge/DeckForge/internal/pkg/cache"
)

// Snapshot is the cached read-model of one entitlement record. It exists so
// the check endpoint can keep answering (flagged stale) while the database is
// briefly unreachable. It is never the system of record: every mutation goes
// to the store and invalidates the snapshot.
type Snapshot struct {
	RegisteredAt         time.Time `json:"registered_at"`
	CreditBalance        int64     `json:"credit_balance"`
	PaidAmountCumulative int64     `json:"paid_amount_cumulative"`
	TrialUsed            bool      `json:"trial_used"`
	CachedAt             time.Time `json:"cached_at"`
}

// Snapshots stores and serves entitlement snapshots.
type Snapshots interface {
	Get(email string) (*Snapshot, error)
	Put(email string, snap Snapshot, ttl time.Duration) error
	Invalidate(email string)
}

func snapshotOf(rec *models.EntitlementRecord) Snapshot {
	return Snapshot{
		RegisteredAt:         rec.RegisteredAt,
		CreditBalance:        rec.CreditBalance,
		PaidAmountCumulative: rec.PaidAmountCumulative,
		TrialUsed:            rec.TrialUsed,
		CachedAt:             time.Now(),
	}
}

func (s *Snapshot) toRecord(email string) *models.EntitlementRecord {
	return &models.EntitlementRecord{
		Email:                email,
		RegisteredAt:         s.RegisteredAt,
		CreditBalance:        s.CreditBalance,
		PaidAmountCumulative: s.PaidAmountCumulative,
		TrialUsed:            s.TrialUsed,
	}
}

const snapshotKeyPrefix = "entitlement:snapshot:"

// redisSnapshots keeps snapshots in the shared Redis cache.
type redisSnapshots struct{}

// NewRedisSnapshots returns the Redis-backed snapshot store.
func NewRedisSnapshots() Snapshots {
	return redisSnapshots{}
}

func (redisSnapshots) Get(email string) (*Snapshot, error) {
	raw, err := cache.Get(snapshotKeyPrefix + email)
	if err != nil {
		if cache.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, fmt.Errorf("corrupt entitlement snapshot for %s: %w", email, err)
	}
	return &snap, nil
}

func (redisSnapshots) Put(email string, snap Snapshot, ttl time.Duration) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return cache.Set(snapshotKeyPrefix+email, payload, ttl)
}

func (redisSnapshots) Invalidate(email string) {
	_ = cache.Delete(snapshotKeyPrefix + email)
}
