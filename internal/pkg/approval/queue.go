package approval

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/deckforge/DeckForge/app/models"
	"github.com/deckforge/DeckForge/app/repository"
	"github.com/deckforge/DeckForge/internal/pkg/payments"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Admin decisions on a pending claim.
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

// ErrUnknownDecision rejects decision values other than approve/reject.
var ErrUnknownDecision = errors.New("unknown claim decision")

// ErrClaimNotFound is returned when no claim matches the given id.
var ErrClaimNotFound = errors.New("pending payment claim not found")

// SubmitInput is a user-submitted payment claim awaiting admin review.
type SubmitInput struct {
	Email                string
	ClaimedTransactionID string
	ClaimedAmount        int64
	PlanType             string
}

// DecisionResult reports the outcome of an admin decision. AlreadyDecided is
// set when the claim had reached a terminal state before this call; the
// stored status is returned and nothing is re-applied.
type DecisionResult struct {
	Status         string `json:"status"`
	AlreadyDecided bool   `json:"already_decided"`
	Credited       bool   `json:"credited"`
	NewBalance     *int64 `json:"new_balance,omitempty"`
}

// Notifier tells an admin about a freshly submitted claim. Best effort; a
// failed notification never fails the submission.
type Notifier func(claim *models.PendingPayment)

// Queue holds manual payment claims until a human approves or rejects them.
// It is the second idempotency guard, independent of the transaction ledger:
// the conditional pending->terminal transition absorbs an admin double-click
// before the reconciler is ever invoked twice.
type Queue struct {
	claims       repository.PendingPaymentRepository
	entitlements repository.EntitlementRepository
	reconciler   *payments.Reconciler
	notify       Notifier
	now          func() time.Time
}

// NewQueue creates an approval queue from its collaborators. notify may be nil.
func NewQueue(
	claims repository.PendingPaymentRepository,
	entitlements repository.EntitlementRepository,
	reconciler *payments.Reconciler,
	notify Notifier,
) *Queue {
	return &Queue{
		claims:       claims,
		entitlements: entitlements,
		reconciler:   reconciler,
		notify:       notify,
		now:          time.Now,
	}
}

// Submit stores a new claim in pending state and returns it.
func (q *Queue) Submit(ctx context.Context, in SubmitInput) (*models.PendingPayment, error) {
	_ = ctx
	claim := &models.PendingPayment{
		UUID:                 uuid.NewString(),
		Email:                models.NormalizeEmail(in.Email),
		ClaimedTransactionID: strings.TrimSpace(in.ClaimedTransactionID),
		ClaimedAmount:        in.ClaimedAmount,
		PlanType:             strings.TrimSpace(in.PlanType),
		Status:               models.ClaimStatusPending,
		SubmittedAt:          q.now(),
	}
	if err := claim.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", payments.ErrInvalidClaimFormat, err)
	}

	if err := q.claims.Create(claim); err != nil {
		return nil, err
	}

	if q.notify != nil {
		q.notify(claim)
	}
	return claim, nil
}

// Decide applies an admin decision. Approvals feed the reconciler with the
// claimed reference and amount; the ledger's unique key still protects
// against the same reference having been credited through the gateway path.
func (q *Queue) Decide(ctx context.Context, claimID, decision, decidedBy string) (DecisionResult, error) {
	var status string
	switch strings.ToLower(strings.TrimSpace(decision)) {
	case DecisionApprove:
		status = models.ClaimStatusApproved
	case DecisionReject:
		status = models.ClaimStatusRejected
	default:
		return DecisionResult{}, fmt.Errorf("%w: %q", ErrUnknownDecision, decision)
	}

	claim, err := q.claims.GetByUUID(claimID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return DecisionResult{}, ErrClaimNotFound
		}
		return DecisionResult{}, err
	}

	transitioned, err := q.claims.Decide(claimID, status, strings.TrimSpace(decidedBy), q.now())
	if err != nil {
		return DecisionResult{}, err
	}
	if !transitioned {
		// Already decided, possibly by a concurrent admin. Report the stored
		// terminal state. For approved claims the reconciler is re-driven:
		// it is idempotent, so this only heals a grant that failed after the
		// transition and can never credit twice.
		stored, err := q.claims.GetByUUID(claimID)
		if err != nil {
			return DecisionResult{}, err
		}
		res := DecisionResult{Status: stored.Status, AlreadyDecided: true}
		if stored.Status == models.ClaimStatusApproved {
			applied, err := q.reconciler.Apply(ctx, payments.ApplyInput{
				TransactionID: stored.ClaimedTransactionID,
				Email:         stored.Email,
				Amount:        stored.ClaimedAmount,
				PlanType:      stored.PlanType,
			})
			if err != nil {
				return res, err
			}
			res.Credited = applied.Credited
			if applied.Credited {
				balance := applied.NewBalance
				res.NewBalance = &balance
			} else {
				res.NewBalance = q.currentBalance(stored.Email)
			}
		}
		return res, nil
	}

	if status == models.ClaimStatusRejected {
		return DecisionResult{Status: status}, nil
	}

	applied, err := q.reconciler.Apply(ctx, payments.ApplyInput{
		TransactionID: claim.ClaimedTransactionID,
		Email:         claim.Email,
		Amount:        claim.ClaimedAmount,
		PlanType:      claim.PlanType,
	})
	if err != nil {
		// The claim is approved but the grant could not be applied; surface
		// the error so the admin retries against the (idempotent) reconciler.
		return DecisionResult{Status: status}, err
	}

	res := DecisionResult{Status: status, Credited: applied.Credited}
	if applied.Credited {
		balance := applied.NewBalance
		res.NewBalance = &balance
	} else {
		// Reference already honored through the other path.
		res.NewBalance = q.currentBalance(claim.Email)
	}
	return res, nil
}

func (q *Queue) currentBalance(email string) *int64 {
	rec, err := q.entitlements.GetByEmail(email)
	if err != nil {
		log.Printf("balance lookup for %s failed: %v", email, err)
		return nil
	}
	return &rec.CreditBalance
}
