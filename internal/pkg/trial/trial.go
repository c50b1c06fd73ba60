package trial

import (
	"time"

	"github.com/deckforge/DeckForge/app/models"
	"github.com/deckforge/DeckForge/internal/pkg/config"
)

// State is the trial lifecycle position of one entitlement record at a given
// point in time.
type State string

const (
	StateNotStarted       State = "not_started"
	StateActiveTrial      State = "active_trial"
	StateExpiredByTime    State = "expired_by_time"
	StateExpiredByCredits State = "expired_by_credits"
	StateSubscribed       State = "subscribed"
)

// Evaluate converts a record plus the current time into a trial state. It is
// deliberately pure: marking trial_used on an expiry transition is the
// caller's job, so this function stays trivially testable.
//
// Subscribed is absorbing: any cumulative payment makes the trial window and
// the balance-versus-cost comparison irrelevant.
func Evaluate(rec *models.EntitlementRecord, now time.Time, perOperationCost int64, cfg config.Ledger) State {
	if rec == nil {
		return StateNotStarted
	}
	if rec.PaidAmountCumulative > 0 {
		return StateSubscribed
	}
	if now.Sub(rec.RegisteredAt) > cfg.TrialDuration {
		return StateExpiredByTime
	}
	if rec.CreditBalance < perOperationCost {
		return StateExpiredByCredits
	}
	return StateActiveTrial
}

// IsExpired reports whether a state denies the operation for trial reasons.
func IsExpired(s State) bool {
	return s == StateExpiredByTime || s == StateExpiredByCredits
}

// MinutesRemaining returns the whole minutes left in the trial window, floored
// at zero. Subscribed records report zero; their window no longer matters.
func MinutesRemaining(rec *models.EntitlementRecord, now time.Time, cfg config.Ledger) int64 {
	if rec == nil || rec.PaidAmountCumulative > 0 {
		return 0
	}
	remaining := cfg.TrialDuration - now.Sub(rec.RegisteredAt)
	if remaining <= 0 {
		return 0
	}
	return int64(remaining / time.Minute)
}
