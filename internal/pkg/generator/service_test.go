package generator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/deckforge/DeckForge/app/models"
	"github.com/deckforge/DeckForge/internal/pkg/config"
	"github.com/deckforge/DeckForge/internal/pkg/credits"
)

type fakeRepo struct {
	mu      sync.Mutex
	records map[string]*models.EntitlementRecord
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: make(map[string]*models.EntitlementRecord)}
}

func (f *fakeRepo) Create(record *models.EntitlementRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[record.Email]; ok {
		return gorm.ErrDuplicatedKey
	}
	cp := *record
	f.records[record.Email] = &cp
	return nil
}

func (f *fakeRepo) GetByEmail(email string) (*models.EntitlementRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[email]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeRepo) Save(record *models.EntitlementRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *record
	f.records[record.Email] = &cp
	return nil
}

func (f *fakeRepo) DeductIfSufficient(email string, cost int64) (*models.EntitlementRecord, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[email]
	if !ok {
		return nil, false, gorm.ErrRecordNotFound
	}
	if rec.CreditBalance < cost {
		cp := *rec
		return &cp, false, nil
	}
	rec.CreditBalance -= cost
	cp := *rec
	return &cp, true, nil
}

func (f *fakeRepo) AddCredit(email string, amount, paidIncrement int64) (*models.EntitlementRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[email]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	rec.CreditBalance += amount
	rec.PaidAmountCumulative += paidIncrement
	cp := *rec
	return &cp, nil
}

func (f *fakeRepo) MarkTrialUsed(email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.records[email]; ok {
		rec.TrialUsed = true
	}
	return nil
}

func (f *fakeRepo) TrialUsedByIP(ip string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.records {
		if rec.OriginIP == ip && rec.TrialUsed {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) AddGenerationCounts(counts map[string]int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for email, inc := range counts {
		if rec, ok := f.records[email]; ok {
			rec.GenerationCount += inc
		}
	}
	return nil
}

func (f *fakeRepo) Count() (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.records)), nil
}

func (f *fakeRepo) List(offset, limit int) ([]models.EntitlementRecord, error) {
	return nil, nil
}

func (f *fakeRepo) DeleteAll() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = make(map[string]*models.EntitlementRecord)
	return nil
}

type noopSnapshots struct{}

func (noopSnapshots) Get(email string) (*credits.Snapshot, error)                    { return nil, nil }
func (noopSnapshots) Put(email string, snap credits.Snapshot, _ time.Duration) error { return nil }
func (noopSnapshots) Invalidate(email string)                                        {}

type stubProvider struct {
	deck   *Deck
	err    error
	calls  int
	during func()
}

func (p *stubProvider) Generate(ctx context.Context, req Request) (*Deck, error) {
	p.calls++
	if p.during != nil {
		p.during()
	}
	if p.err != nil {
		return nil, p.err
	}
	return p.deck, nil
}

func sampleDeck() *Deck {
	return &Deck{
		Title: "  Quarterly Review ",
		Slides: []Slide{
			{Heading: " Numbers ", Bullets: []string{"up and to the right"}},
		},
	}
}

func newTestService(repo *fakeRepo, provider Provider) *Service {
	accountant := credits.NewService(repo, noopSnapshots{}, config.DefaultLedger())
	return NewService(accountant, provider)
}

func TestGenerateChargesAfterSuccess(t *testing.T) {
	repo := newFakeRepo()
	provider := &stubProvider{deck: sampleDeck()}
	svc := newTestService(repo, provider)

	out, err := svc.Generate(context.Background(), "maker@example.com", "10.0.0.1", Request{Prompt: "q3 numbers"})
	require.NoError(t, err)
	require.NotNil(t, out.Deck)
	assert.True(t, out.Charged)
	assert.Equal(t, int64(90), out.NewBalance)
	assert.Equal(t, "Quarterly Review", out.Deck.Title)
	assert.Equal(t, "Numbers", out.Deck.Slides[0].Heading)

	rec, err := repo.GetByEmail("maker@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(90), rec.CreditBalance)
}

func TestGenerateDeniedSkipsProvider(t *testing.T) {
	repo := newFakeRepo()
	require.NoError(t, repo.Create(&models.EntitlementRecord{
		Email:        "dry@example.com",
		RegisteredAt: time.Now(),
		TrialUsed:    true,
	}))
	provider := &stubProvider{deck: sampleDeck()}
	svc := newTestService(repo, provider)

	out, err := svc.Generate(context.Background(), "dry@example.com", "10.0.0.1", Request{Prompt: "anything"})
	require.NoError(t, err)
	assert.False(t, out.Decision.Allowed)
	assert.Nil(t, out.Deck)
	assert.False(t, out.Charged)
	assert.Equal(t, 0, provider.calls, "denied requests must never reach the provider")
}

func TestGenerateProviderFailureCostsNothing(t *testing.T) {
	repo := newFakeRepo()
	provider := &stubProvider{err: errors.New("model overloaded")}
	svc := newTestService(repo, provider)

	_, err := svc.Generate(context.Background(), "maker@example.com", "10.0.0.1", Request{Prompt: "x"})
	require.Error(t, err)

	rec, err := repo.GetByEmail("maker@example.com")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultLedger().StarterCredits, rec.CreditBalance, "a failed provider call must not spend credits")
}

func TestGenerateRaceToZeroReportsDenial(t *testing.T) {
	repo := newFakeRepo()
	cost := config.DefaultLedger().GenerationCost
	require.NoError(t, repo.Create(&models.EntitlementRecord{
		Email:         "edge@example.com",
		RegisteredAt:  time.Now(),
		CreditBalance: cost,
	}))
	provider := &stubProvider{deck: sampleDeck()}
	// A concurrent request drains the last credits while the provider call is
	// in flight. The conditional deduct refuses and this attempt reports a
	// denial instead of driving the balance negative.
	provider.during = func() {
		_, applied, err := repo.DeductIfSufficient("edge@example.com", cost)
		require.NoError(t, err)
		require.True(t, applied)
	}
	svc := newTestService(repo, provider)

	out, err := svc.Generate(context.Background(), "edge@example.com", "10.0.0.1", Request{Prompt: "x"})
	require.NoError(t, err)
	assert.False(t, out.Charged)
	assert.Nil(t, out.Deck)
	assert.Equal(t, credits.ReasonTrialExpiredByCredits, out.Decision.Reason)
	assert.Equal(t, 1, provider.calls)

	rec, err := repo.GetByEmail("edge@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(0), rec.CreditBalance)
}

func TestGenerateEmptyDeckRefunds(t *testing.T) {
	repo := newFakeRepo()
	provider := &stubProvider{deck: &Deck{Title: "hollow"}}
	svc := newTestService(repo, provider)

	_, err := svc.Generate(context.Background(), "maker@example.com", "10.0.0.1", Request{Prompt: "x"})
	require.ErrorIs(t, err, ErrEmptyDeck)

	rec, err := repo.GetByEmail("maker@example.com")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultLedger().StarterCredits, rec.CreditBalance, "charge must be compensated when the deck cannot be delivered")
}
