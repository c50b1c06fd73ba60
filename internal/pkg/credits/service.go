package credits

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/deckforge/DeckForge/app/models"
	"github.com/deckforge/DeckForge/app/repository"
	"github.com/deckforge/DeckForge/internal/pkg/config"
	"github.com/deckforge/DeckForge/internal/pkg/trial"
	"gorm.io/gorm"
)

// Reason explains a denied entitlement check.
type Reason string

const (
	ReasonNone                  Reason = ""
	ReasonTrialExpiredByTime    Reason = "trial_expired_by_time"
	ReasonTrialExpiredByCredits Reason = "trial_expired_by_credits"
	ReasonTrialAlreadyUsed      Reason = "trial_already_used"
)

// Decision is the structured outcome of an entitlement check. Denials are
// values, not errors; only infrastructure failures surface as errors.
type Decision struct {
	Allowed          bool   `json:"allowed"`
	Reason           Reason `json:"reason,omitempty"`
	CreditsRemaining int64  `json:"credits_remaining"`
	MinutesRemaining int64  `json:"minutes_remaining"`
	// Stale marks a decision served from the snapshot cache because the
	// database read failed. Mutations are never served stale.
	Stale bool `json:"stale,omitempty"`
}

// ErrPersistenceUnavailable wraps database failures during balance mutations.
// Mutations fail outright rather than falling back to cached state.
var ErrPersistenceUnavailable = errors.New("entitlement store unavailable")

// Service is the credit accountant: it owns every balance mutation and every
// entitlement decision. Payment crediting goes through Credit, request
// handling through CheckEntitlement and Deduct.
type Service struct {
	repo      repository.EntitlementRepository
	snapshots Snapshots
	cfg       config.Ledger
	now       func() time.Time
}

// NewService creates a credit accountant from an injected repository and
// snapshot cache.
func NewService(repo repository.EntitlementRepository, snapshots Snapshots, cfg config.Ledger) *Service {
	return &Service{
		repo:      repo,
		snapshots: snapshots,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Config exposes the injected ledger configuration to collaborators.
func (s *Service) Config() config.Ledger {
	return s.cfg
}

// CheckEntitlement answers "may this email run one generation right now".
// Unseen emails get a record created on the spot: with starter credits, or
// already denied when the origin IP has burned a trial before.
func (s *Service) CheckEntitlement(ctx context.Context, email, ip string) (Decision, error) {
	_ = ctx
	normalized := models.NormalizeEmail(email)
	now := s.now()

	rec, err := s.repo.GetByEmail(normalized)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.createAndDecide(normalized, strings.TrimSpace(ip), now)
		}
		// Read path may serve the last known snapshot with a staleness flag
		// instead of hard-failing every request during a transient outage.
		if dec, ok := s.decideFromSnapshot(normalized, now); ok {
			log.Printf("entitlement check for %s served stale: %v", normalized, err)
			return dec, nil
		}
		return Decision{}, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}

	dec := s.decide(rec, now)
	if !dec.Allowed && !rec.TrialUsed {
		// First expiry observation: the monotonic flag must survive restarts,
		// so it is persisted immediately, not at some later save point.
		if err := s.repo.MarkTrialUsed(normalized); err != nil {
			log.Printf("failed to persist trial_used for %s: %v", normalized, err)
		}
		rec.TrialUsed = true
	}
	s.storeSnapshot(rec)
	return dec, nil
}

// Deduct spends credits for one billable operation. Callers invoke it at most
// once per operation, only after the operation actually succeeded. The
// balance check and decrement run as one conditional statement in the store.
func (s *Service) Deduct(ctx context.Context, email string, cost int64) (bool, int64, error) {
	_ = ctx
	if cost <= 0 {
		return false, 0, fmt.Errorf("deduct cost must be positive, got %d", cost)
	}
	normalized := models.NormalizeEmail(email)

	rec, applied, err := s.repo.DeductIfSufficient(normalized, cost)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, 0, err
		}
		return false, 0, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	s.snapshots.Invalidate(normalized)
	return applied, rec.CreditBalance, nil
}

// Credit applies a credit grant. Reconciler-only entry point; request-handling
// code never calls it directly. A grant for a never-seen email creates the
// record first, with no trial grant - the payment itself entitles it.
func (s *Service) Credit(ctx context.Context, email string, amount, paidIncrement int64) (int64, error) {
	_ = ctx
	if amount <= 0 {
		return 0, fmt.Errorf("credit amount must be positive, got %d", amount)
	}
	normalized := models.NormalizeEmail(email)

	if _, err := s.repo.GetByEmail(normalized); err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
		}
		rec := &models.EntitlementRecord{
			Email:        normalized,
			RegisteredAt: s.now(),
		}
		if err := s.repo.Create(rec); err != nil {
			// Lost a creation race; the row exists now, which is all we need.
			if _, getErr := s.repo.GetByEmail(normalized); getErr != nil {
				return 0, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
			}
		}
	}

	rec, err := s.repo.AddCredit(normalized, amount, paidIncrement)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	s.snapshots.Invalidate(normalized)
	return rec.CreditBalance, nil
}

// Refund compensates a deduction whose surrounding operation failed after the
// credits were already spent. It never touches paid_amount_cumulative.
func (s *Service) Refund(ctx context.Context, email string, amount int64) (int64, error) {
	_ = ctx
	if amount <= 0 {
		return 0, fmt.Errorf("refund amount must be positive, got %d", amount)
	}
	normalized := models.NormalizeEmail(email)

	rec, err := s.repo.AddCredit(normalized, amount, 0)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	s.snapshots.Invalidate(normalized)
	return rec.CreditBalance, nil
}

// createAndDecide handles the first contact of an unseen email.
func (s *Service) createAndDecide(email, ip string, now time.Time) (Decision, error) {
	flagged, err := HasUsedTrial(s.repo, ip)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}

	rec := &models.EntitlementRecord{
		Email:        email,
		RegisteredAt: now,
		OriginIP:     ip,
	}
	if flagged {
		// Born denied: zero starter credits and the trial already marked
		// consumed, so the same network origin cannot farm trials across
		// multiple mailboxes.
		rec.TrialUsed = true
	} else {
		rec.CreditBalance = s.cfg.StarterCredits
	}

	if err := s.repo.Create(rec); err != nil {
		// A concurrent check may have created the row first. Fall back to the
		// stored record instead of failing the request.
		existing, getErr := s.repo.GetByEmail(email)
		if getErr != nil {
			return Decision{}, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
		}
		rec = existing
	}

	if flagged {
		s.storeSnapshot(rec)
		return Decision{
			Allowed:          false,
			Reason:           ReasonTrialAlreadyUsed,
			CreditsRemaining: rec.CreditBalance,
			MinutesRemaining: trial.MinutesRemaining(rec, now, s.cfg),
		}, nil
	}

	s.storeSnapshot(rec)
	return s.decide(rec, now), nil
}

// decide maps a trial state to an entitlement decision.
func (s *Service) decide(rec *models.EntitlementRecord, now time.Time) Decision {
	state := trial.Evaluate(rec, now, s.cfg.GenerationCost, s.cfg)
	dec := Decision{
		CreditsRemaining: rec.CreditBalance,
		MinutesRemaining: trial.MinutesRemaining(rec, now, s.cfg),
	}

	switch state {
	case trial.StateSubscribed, trial.StateActiveTrial:
		dec.Allowed = true
	case trial.StateExpiredByTime:
		dec.Reason = ReasonTrialExpiredByTime
	case trial.StateExpiredByCredits:
		dec.Reason = ReasonTrialExpiredByCredits
	default:
		dec.Reason = ReasonTrialAlreadyUsed
	}
	return dec
}

func (s *Service) decideFromSnapshot(email string, now time.Time) (Decision, bool) {
	snap, err := s.snapshots.Get(email)
	if err != nil || snap == nil {
		return Decision{}, false
	}
	rec := snap.toRecord(email)
	dec := s.decide(rec, now)
	dec.Stale = true
	return dec, true
}

func (s *Service) storeSnapshot(rec *models.EntitlementRecord) {
	if err := s.snapshots.Put(rec.Email, snapshotOf(rec), s.cfg.SnapshotTTL); err != nil {
		log.Printf("failed to cache entitlement snapshot for %s: %v", rec.Email, err)
	}
}
