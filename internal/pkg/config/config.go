package config

import (
	"strconv"
	"time"

	"github.com/deckforge/DeckForge/internal/pkg/env"
)

// Ledger bundles every tunable of the entitlement core into one explicit
// struct. The services receive this by value instead of reading env keys
// ad hoc, so tests can construct arbitrary configurations directly.
type Ledger struct {
	// TrialDuration is the window after first contact during which a record
	// without payments may generate, credits permitting.
	TrialDuration time.Duration
	// StarterCredits is the grant given to a newly observed user, unless the
	// origin IP already consumed a trial.
	StarterCredits int64
	// GenerationCost is the credit price of one generation.
	GenerationCost int64
	// MinTransactionIDLen rejects trivially fabricated payment references
	// before they reach the ledger. Advisory, not a security boundary.
	MinTransactionIDLen int
	// SnapshotTTL bounds how long a cached entitlement snapshot may serve the
	// read path during a database outage.
	SnapshotTTL time.Duration
}

// Env keys with their documented defaults.
const (
	defaultTrialMinutes        = 1440
	defaultStarterCredits      = 100
	defaultGenerationCost      = 10
	defaultMinTransactionIDLen = 8
	defaultSnapshotTTLMinutes  = 5
)

// LoadLedger builds the ledger configuration from the environment.
func LoadLedger() Ledger {
	return Ledger{
		TrialDuration:       time.Duration(getInt("TRIAL_MINUTES", defaultTrialMinutes)) * time.Minute,
		StarterCredits:      int64(getInt("STARTER_CREDITS", defaultStarterCredits)),
		GenerationCost:      int64(getInt("GENERATION_COST", defaultGenerationCost)),
		MinTransactionIDLen: getInt("MIN_TRANSACTION_ID_LEN", defaultMinTransactionIDLen),
		SnapshotTTL:         time.Duration(getInt("SNAPSHOT_TTL_MINUTES", defaultSnapshotTTLMinutes)) * time.Minute,
	}
}

// DefaultLedger returns the documented defaults without touching the
// environment. Used by tests.
func DefaultLedger() Ledger {
	return Ledger{
		TrialDuration:       defaultTrialMinutes * time.Minute,
		StarterCredits:      defaultStarterCredits,
		GenerationCost:      defaultGenerationCost,
		MinTransactionIDLen: defaultMinTransactionIDLen,
		SnapshotTTL:         defaultSnapshotTTLMinutes * time.Minute,
	}
}

func getInt(key string, def int) int {
	raw := env.GetEnv(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}
