package repository

import (
	"time"

	"github.com/deckforge/DeckForge/app/models"
	"gorm.io/gorm"
)

// EntitlementRepository defines the database operations for entitlement records.
// Balance mutations are expressed as conditional single-statement updates so
// they stay correct under concurrent requests and across process instances.
type EntitlementRepository interface {
	Create(record *models.EntitlementRecord) error
	GetByEmail(email string) (*models.EntitlementRecord, error)
	Save(record *models.EntitlementRecord) error
	// DeductIfSufficient atomically decrements the balance if and only if it
	// covers the cost. Returns the record after the attempt and whether the
	// deduction was applied.
	DeductIfSufficient(email string, cost int64) (*models.EntitlementRecord, bool, error)
	// AddCredit atomically increments credit_balance by amount and
	// paid_amount_cumulative by paidIncrement, returning the updated record.
	AddCredit(email string, amount, paidIncrement int64) (*models.EntitlementRecord, error)
	// MarkTrialUsed sets trial_used = true. The flag is monotonic; the update
	// never clears it.
	MarkTrialUsed(email string) error
	// TrialUsedByIP reports whether any record created from the given origin IP
	// has already consumed its trial.
	TrialUsedByIP(ip string) (bool, error)
	AddGenerationCounts(counts map[string]int64) error
	Count() (int64, error)
	List(offset, limit int) ([]models.EntitlementRecord, error)
	DeleteAll() error
}

// TransactionRepository defines the append-only credit-grant ledger. The
// storage-level unique index on transaction_id is the single source of truth
// for "has this payment already been honored".
type TransactionRepository interface {
	// CreateIfNotExists inserts the transaction unless its transaction_id is
	// already present. Returns whether this call inserted the row, plus the
	// stored row either way.
	CreateIfNotExists(tx *models.Transaction) (bool, *models.Transaction, error)
	GetByTransactionID(transactionID string) (*models.Transaction, error)
	ListByEmail(email string) ([]models.Transaction, error)
	ListAll() ([]models.Transaction, error)
	CountAndSum() (int64, int64, error)
	DeleteAll() error
}

// PendingPaymentRepository defines storage for manual payment claims.
type PendingPaymentRepository interface {
	Create(claim *models.PendingPayment) error
	GetByUUID(uuid string) (*models.PendingPayment, error)
	ListByStatus(status string, offset, limit int) ([]models.PendingPayment, error)
	// Decide transitions a pending claim to a terminal status. The update is
	// conditional on status still being pending; it returns false when the
	// claim was already decided.
	Decide(uuid, status, decidedBy string, decidedAt time.Time) (bool, error)
	CountByStatus(status string) (int64, error)
	DeleteAll() error
}

// Repositories struct holds all repository instances
type Repositories struct {
	Entitlement    EntitlementRepository
	Transaction    TransactionRepository
	PendingPayment PendingPaymentRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Entitlement:    NewEntitlementRepository(db),
		Transaction:    NewTransactionRepository(db),
		PendingPayment: NewPendingPaymentRepository(db),
	}
}
