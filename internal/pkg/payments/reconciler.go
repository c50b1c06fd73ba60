package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/deckforge/DeckForge/app/models"
	"github.com/deckforge/DeckForge/app/repository"
	"github.com/deckforge/DeckForge/internal/pkg/config"
	"github.com/deckforge/DeckForge/internal/pkg/credits"
)

// ErrInvalidClaimFormat rejects payment references that fail the sanity check
// before they reach the ledger.
var ErrInvalidClaimFormat = errors.New("invalid transaction reference format")

// ApplyInput is the provider-agnostic tuple a credit grant boils down to.
// The gateway webhook and the manual approval flow both produce this shape;
// only the validation preceding the call differs.
type ApplyInput struct {
	TransactionID string
	Email         string
	Amount        int64
	PlanType      string
}

// Result reports the outcome of applying one payment event.
type Result struct {
	Credited         bool  `json:"credited"`
	AlreadyProcessed bool  `json:"already_processed"`
	NewBalance       int64 `json:"new_balance"`
}

// Reconciler applies payment events to the credit accountant exactly once.
// The transaction ledger's unique key is inserted BEFORE any crediting
// happens: whichever delivery wins the insert performs the credit, every
// other delivery of the same reference observes the existing row and reports
// a harmless no-op. There is no check-then-act window.
type Reconciler struct {
	ledger     repository.TransactionRepository
	accountant *credits.Service
	cfg        config.Ledger
	now        func() time.Time
}

// NewReconciler creates a payment reconciler from its collaborators.
func NewReconciler(ledger repository.TransactionRepository, accountant *credits.Service, cfg config.Ledger) *Reconciler {
	return &Reconciler{
		ledger:     ledger,
		accountant: accountant,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Apply honors one payment event. Duplicate deliveries (gateway retries,
// duplicate webhooks, a resubmitted claim) are reported as success with no
// change, because gateways retry on anything that looks like a failure.
func (r *Reconciler) Apply(ctx context.Context, in ApplyInput) (Result, error) {
	txID := strings.TrimSpace(in.TransactionID)
	if err := r.validateTransactionID(txID); err != nil {
		return Result{}, err
	}
	email := models.NormalizeEmail(in.Email)
	if email == "" {
		return Result{}, fmt.Errorf("payment event without email for transaction %s", txID)
	}
	if in.Amount <= 0 {
		return Result{}, fmt.Errorf("payment event with non-positive amount %d for transaction %s", in.Amount, txID)
	}

	created, stored, err := r.ledger.CreateIfNotExists(&models.Transaction{
		TransactionID: txID,
		Email:         email,
		Amount:        in.Amount,
		PlanType:      strings.TrimSpace(in.PlanType),
		AppliedAt:     r.now(),
	})
	if err != nil {
		return Result{}, fmt.Errorf("ledger insert for transaction %s: %w", txID, err)
	}

	if !created {
		// The reference was honored before, possibly by a concurrent delivery
		// a millisecond ago or by the other crediting path entirely.
		_ = stored
		return Result{AlreadyProcessed: true}, nil
	}

	balance, err := r.accountant.Credit(ctx, email, in.Amount, in.Amount)
	if err != nil {
		return Result{}, err
	}
	return Result{Credited: true, NewBalance: balance}, nil
}

// validateTransactionID applies the advisory format check. Manual claims are
// self-reported, so this only filters out obviously fabricated references;
// the human approval step is the real gate.
func (r *Reconciler) validateTransactionID(txID string) error {
	if len(txID) < r.cfg.MinTransactionIDLen {
		return fmt.Errorf("%w: %q is shorter than %d characters", ErrInvalidClaimFormat, txID, r.cfg.MinTransactionIDLen)
	}
	for _, c := range txID {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '_' || c == '-':
		default:
			return fmt.Errorf("%w: %q contains invalid character %q", ErrInvalidClaimFormat, txID, c)
		}
	}
	return nil
}
