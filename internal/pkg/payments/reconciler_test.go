package payments

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/deckforge/DeckForge/app/models"
	"github.com/deckforge/DeckForge/internal/pkg/config"
	"github.com/deckforge/DeckForge/internal/pkg/credits"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

// fakeLedger mimics the unique-key semantics of the transactions table:
// insert-if-absent is atomic under one lock.
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
	f.mu.Lock()
	defer f.mu.Unlock()
	if tx, ok := f.rows[id]; ok {
		cp := *tx
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeLedger) ListByEmail(email string) ([]models.Transaction, error) { return nil, nil }
func (f *fakeLedger) ListAll() ([]models.Transaction, error)                { return nil, nil }

func (f *fakeLedger) CountAndSum() (int64, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var sum int64
	for _, tx := range f.rows {
		sum += tx.Amount
	}
	return int64(len(f.rows)), sum, nil
}

func (f *fakeLedger) DeleteAll() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = map[string]*models.Transaction{}
	return nil
}

// fakeAccountRepo is the minimal entitlement store the accountant needs here.
type fakeAccountRepo struct {
	mu      sync.Mutex
	records map[string]*models.EntitlementRecord
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{records: map[string]*models.EntitlementRecord{}}
}

func (f *fakeAccountRepo) Create(rec *models.EntitlementRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *rec
	f.records[rec.Email] = &cp
	return nil
}

func (f *fakeAccountRepo) GetByEmail(email string) (*models.EntitlementRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[models.NormalizeEmail(email)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeAccountRepo) Save(rec *models.EntitlementRecord) error { return f.Create(rec) }

func (f *fakeAccountRepo) DeductIfSufficient(email string, cost int64) (*models.EntitlementRecord, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[models.NormalizeEmail(email)]
	if !ok {
		return nil, false, gorm.ErrRecordNotFound
	}
	applied := false
	if rec.CreditBalance >= cost {
		rec.CreditBalance -= cost
		applied = true
	}
	cp := *rec
	return &cp, applied, nil
}

func (f *fakeAccountRepo) AddCredit(email string, amount, paidIncrement int64) (*models.EntitlementRecord, error) {
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

func (f *fakeAccountRepo) MarkTrialUsed(email string) error                  { return nil }
func (f *fakeAccountRepo) TrialUsedByIP(ip string) (bool, error)             { return false, nil }
func (f *fakeAccountRepo) AddGenerationCounts(map[string]int64) error        { return nil }
func (f *fakeAccountRepo) Count() (int64, error)                             { return 0, nil }
func (f *fakeAccountRepo) List(int, int) ([]models.EntitlementRecord, error) { return nil, nil }
func (f *fakeAccountRepo) DeleteAll() error                                  { return nil }

// noopSnapshots satisfies the accountant without a cache.
type noopSnapshots struct{}

func (noopSnapshots) Get(string) (*credits.Snapshot, error)                 { return nil, nil }
func (noopSnapshots) Put(string, credits.Snapshot, time.Duration) error     { return nil }
func (noopSnapshots) Invalidate(string)                                     {}

func newTestReconciler() (*Reconciler, *fakeAccountRepo) {
	repo := newFakeAccountRepo()
	cfg := config.DefaultLedger()
	accountant := credits.NewService(repo, noopSnapshots{}, cfg)
	return NewReconciler(newFakeLedger(), accountant, cfg), repo
}

func TestApplyCreditsOnce(t *testing.T) {
	rec, repo := newTestReconciler()

	res, err := rec.Apply(context.Background(), ApplyInput{
		TransactionID: "pay_T1aaaaaa",
		Email:         "a@x.com",
		Amount:        500,
		PlanType:      "pro",
	})
	assert.NoError(t, err)
	assert.True(t, res.Credited)
	assert.False(t, res.AlreadyProcessed)
	assert.Equal(t, int64(500), res.NewBalance)

	stored, _ := repo.GetByEmail("a@x.com")
	assert.Equal(t, int64(500), stored.PaidAmountCumulative)
}

func TestApplyDuplicateIsHarmless(t *testing.T) {
	rec, repo := newTestReconciler()
	in := ApplyInput{TransactionID: "pay_T1aaaaaa", Email: "a@x.com", Amount: 500}

	_, err := rec.Apply(context.Background(), in)
	assert.NoError(t, err)

	// Retried delivery, even with a different amount, must not credit again.
	in.Amount = 9999
	res, err := rec.Apply(context.Background(), in)
	assert.NoError(t, err)
	assert.False(t, res.Credited)
	assert.True(t, res.AlreadyProcessed)

	stored, _ := repo.GetByEmail("a@x.com")
	assert.Equal(t, int64(500), stored.CreditBalance)
}

func TestApplyConcurrentDeliveriesCreditOnce(t *testing.T) {
	rec, repo := newTestReconciler()
	in := ApplyInput{TransactionID: "pay_race0001", Email: "a@x.com", Amount: 100}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := rec.Apply(context.Background(), in)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stored, _ := repo.GetByEmail("a@x.com")
	assert.Equal(t, int64(100), stored.CreditBalance)
}

func TestApplyRejectsMalformedReferences(t *testing.T) {
	rec, _ := newTestReconciler()

	for _, txID := range []string{"", "short", "has spaces 123", "semi;colon1"} {
		_, err := rec.Apply(context.Background(), ApplyInput{
			TransactionID: txID,
			Email:         "a@x.com",
			Amount:        100,
		})
		assert.ErrorIs(t, err, ErrInvalidClaimFormat, "reference %q", txID)
	}
}

func TestApplyRejectsMissingEmailAndBadAmount(t *testing.T) {
	rec, _ := newTestReconciler()

	_, err := rec.Apply(context.Background(), ApplyInput{TransactionID: "pay_T2bbbbbb", Amount: 100})
	assert.Error(t, err)

	_, err = rec.Apply(context.Background(), ApplyInput{TransactionID: "pay_T3cccccc", Email: "a@x.com", Amount: 0})
	assert.Error(t, err)
}
