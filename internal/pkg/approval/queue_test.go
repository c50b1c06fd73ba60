package approval

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/deckforge/DeckForge/app/models"
	"github.com/deckforge/DeckForge/internal/pkg/config"
	"github.com/deckforge/DeckForge/internal/pkg/credits"
	"github.com/deckforge/DeckForge/internal/pkg/payments"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

type fakeClaims struct {
	mu   sync.Mutex
	rows map[string]*models.PendingPayment
}

func newFakeClaims() *fakeClaims {
	return &fakeClaims{rows: map[string]*models.PendingPayment{}}
}

func (f *fakeClaims) Create(claim *models.PendingPayment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *claim
	f.rows[claim.UUID] = &cp
	return nil
}

func (f *fakeClaims) GetByUUID(id string) (*models.PendingPayment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if claim, ok := f.rows[id]; ok {
		cp := *claim
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeClaims) ListByStatus(status string, offset, limit int) ([]models.PendingPayment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.PendingPayment
	for _, claim := range f.rows {
		if claim.Status == status {
			out = append(out, *claim)
		}
	}
	return out, nil
}

func (f *fakeClaims) Decide(id, status, decidedBy string, decidedAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	claim, ok := f.rows[id]
	if !ok || claim.Status != models.ClaimStatusPending {
		return false, nil
	}
	claim.Status = status
	claim.DecidedBy = decidedBy
	claim.DecidedAt = &decidedAt
	return true, nil
}

func (f *fakeClaims) CountByStatus(status string) (int64, error) { return 0, nil }
func (f *fakeClaims) DeleteAll() error                           { return nil }

type fakeLedger struct {
	mu   sync.Mutex
	rows map[string]*models.Transaction
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{rows: map[string]*models.Transaction{}}
}

func (f *fakeLedger) CreateIfNotExists(tx *models.Transaction) (bool, *models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.rows[tx.TransactionID]; ok {
		cp := *existing
		return false, &cp, nil
	}
	cp := *tx
	f.rows[tx.TransactionID] = &cp
	out := cp
	return true, &out, nil
}

func (f *fakeLedger) GetByTransactionID(id string) (*models.Transaction, error) {
	return nil, gorm.ErrRecordNotFound
}
func (f *fakeLedger) ListByEmail(string) ([]models.Transaction, error) { return nil, nil }
func (f *fakeLedger) ListAll() ([]models.Transaction, error)           { return nil, nil }
func (f *fakeLedger) CountAndSum() (int64, int64, error)               { return 0, 0, nil }
func (f *fakeLedger) DeleteAll() error                                 { return nil }

type fakeEntitlements struct {
	mu      sync.Mutex
	records map[string]*models.EntitlementRecord
}

func newFakeEntitlements() *fakeEntitlements {
	return &fakeEntitlements{records: map[string]*models.EntitlementRecord{}}
}

func (f *fakeEntitlements) Create(rec *models.EntitlementRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *rec
	f.records[rec.Email] = &cp
	return nil
}

func (f *fakeEntitlements) GetByEmail(email string) (*models.EntitlementRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[models.NormalizeEmail(email)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeEntitlements) Save(rec *models.EntitlementRecord) error { return f.Create(rec) }

func (f *fakeEntitlements) DeductIfSufficient(email string, cost int64) (*models.EntitlementRecord, bool, error) {
	return nil, false, gorm.ErrRecordNotFound
}

func (f *fakeEntitlements) AddCredit(email string, amount, paidIncrement int64) (*models.EntitlementRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[models.NormalizeEmail(email)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	rec.CreditBalance += amount
	rec.PaidAmountCumulative += paidIncrement
	cp := *rec
	return &cp, nil
}

func (f *fakeEntitlements) MarkTrialUsed(string) error                        { return nil }
func (f *fakeEntitlements) TrialUsedByIP(string) (bool, error)                { return false, nil }
func (f *fakeEntitlements) AddGenerationCounts(map[string]int64) error        { return nil }
func (f *fakeEntitlements) Count() (int64, error)                             { return 0, nil }
func (f *fakeEntitlements) List(int, int) ([]models.EntitlementRecord, error) { return nil, nil }
func (f *fakeEntitlements) DeleteAll() error                                  { return nil }

type noopSnapshots struct{}

func (noopSnapshots) Get(string) (*credits.Snapshot, error)             { return nil, nil }
func (noopSnapshots) Put(string, credits.Snapshot, time.Duration) error { return nil }
func (noopSnapshots) Invalidate(string)                                 {}

func newTestQueue() (*Queue, *fakeEntitlements, *fakeLedger) {
	cfg := config.DefaultLedger()
	entRepo := newFakeEntitlements()
	ledger := newFakeLedger()
	accountant := credits.NewService(entRepo, noopSnapshots{}, cfg)
	reconciler := payments.NewReconciler(ledger, accountant, cfg)
	return NewQueue(newFakeClaims(), entRepo, reconciler, nil), entRepo, ledger
}

func TestSubmitCreatesPendingClaim(t *testing.T) {
	q, _, _ := newTestQueue()

	claim, err := q.Submit(context.Background(), SubmitInput{
		Email:                "b@y.com",
		ClaimedTransactionID: "UPI12345678",
		ClaimedAmount:        100,
		PlanType:             "starter",
	})
	assert.NoError(t, err)
	assert.Equal(t, models.ClaimStatusPending, claim.Status)
	assert.NotEmpty(t, claim.UUID)
	assert.Equal(t, "b@y.com", claim.Email)
}

func TestSubmitRejectsMalformedClaims(t *testing.T) {
	q, _, _ := newTestQueue()

	_, err := q.Submit(context.Background(), SubmitInput{
		Email:                "not-an-email",
		ClaimedTransactionID: "UPI12345678",
		ClaimedAmount:        100,
	})
	assert.Error(t, err)

	_, err = q.Submit(context.Background(), SubmitInput{
		Email:                "b@y.com",
		ClaimedTransactionID: "short",
		ClaimedAmount:        100,
	})
	assert.Error(t, err)

	_, err = q.Submit(context.Background(), SubmitInput{
		Email:                "b@y.com",
		ClaimedTransactionID: "UPI12345678",
		ClaimedAmount:        0,
	})
	assert.Error(t, err)
}

func TestApproveCreditsExactlyOnce(t *testing.T) {
	q, entRepo, _ := newTestQueue()

	claim, err := q.Submit(context.Background(), SubmitInput{
		Email:                "b@y.com",
		ClaimedTransactionID: "UPI12345678",
		ClaimedAmount:        100,
	})
	assert.NoError(t, err)

	res, err := q.Decide(context.Background(), claim.UUID, DecisionApprove, "admin@deckforge")
	assert.NoError(t, err)
	assert.Equal(t, models.ClaimStatusApproved, res.Status)
	assert.False(t, res.AlreadyDecided)
	assert.True(t, res.Credited)
	assert.Equal(t, int64(100), *res.NewBalance)

	// Second approve: no-op reporting the stored decision and balance.
	res, err = q.Decide(context.Background(), claim.UUID, DecisionApprove, "admin@deckforge")
	assert.NoError(t, err)
	assert.True(t, res.AlreadyDecided)
	assert.Equal(t, models.ClaimStatusApproved, res.Status)
	assert.Equal(t, int64(100), *res.NewBalance)

	rec, err := entRepo.GetByEmail("b@y.com")
	assert.NoError(t, err)
	assert.Equal(t, int64(100), rec.CreditBalance)
}

func TestRejectIsTerminalAndFree(t *testing.T) {
	q, entRepo, _ := newTestQueue()

	claim, _ := q.Submit(context.Background(), SubmitInput{
		Email:                "b@y.com",
		ClaimedTransactionID: "UPI12345678",
		ClaimedAmount:        100,
	})

	res, err := q.Decide(context.Background(), claim.UUID, DecisionReject, "admin@deckforge")
	assert.NoError(t, err)
	assert.Equal(t, models.ClaimStatusRejected, res.Status)
	assert.False(t, res.Credited)

	// Approving after a reject does not resurrect the claim.
	res, err = q.Decide(context.Background(), claim.UUID, DecisionApprove, "admin@deckforge")
	assert.NoError(t, err)
	assert.True(t, res.AlreadyDecided)
	assert.Equal(t, models.ClaimStatusRejected, res.Status)

	_, err = entRepo.GetByEmail("b@y.com")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestApproveAfterGatewayAlreadyCredited(t *testing.T) {
	q, entRepo, ledger := newTestQueue()

	// The gateway webhook already honored this reference.
	_, _, err := ledger.CreateIfNotExists(&models.Transaction{
		TransactionID: "UPI12345678",
		Email:         "b@y.com",
		Amount:        100,
	})
	assert.NoError(t, err)
	entRepo.Create(&models.EntitlementRecord{Email: "b@y.com", CreditBalance: 100, PaidAmountCumulative: 100})

	claim, _ := q.Submit(context.Background(), SubmitInput{
		Email:                "b@y.com",
		ClaimedTransactionID: "UPI12345678",
		ClaimedAmount:        100,
	})
	res, err := q.Decide(context.Background(), claim.UUID, DecisionApprove, "admin@deckforge")
	assert.NoError(t, err)
	assert.Equal(t, models.ClaimStatusApproved, res.Status)
	assert.False(t, res.Credited, "ledger key already honored, must not credit again")

	rec, _ := entRepo.GetByEmail("b@y.com")
	assert.Equal(t, int64(100), rec.CreditBalance)
}

func TestDecideUnknownClaim(t *testing.T) {
	q, _, _ := newTestQueue()
	_, err := q.Decide(context.Background(), "missing-uuid", DecisionApprove, "admin")
	assert.ErrorIs(t, err, ErrClaimNotFound)
}

func TestDecideUnknownDecision(t *testing.T) {
	q, _, _ := newTestQueue()
	_, err := q.Decide(context.Background(), "whatever", "escalate", "admin")
	assert.ErrorIs(t, err, ErrUnknownDecision)
}
