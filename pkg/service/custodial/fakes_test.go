package custodial

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	infracache "github.com/amirasaad/giftfund/infra/cache"
	infraeventbus "github.com/amirasaad/giftfund/infra/eventbus"
	"github.com/amirasaad/giftfund/pkg/config"
	"github.com/amirasaad/giftfund/pkg/domain"
	"github.com/amirasaad/giftfund/pkg/domain/custodial"
	"github.com/amirasaad/giftfund/pkg/provider/connect"
	repo "github.com/amirasaad/giftfund/pkg/repository/custodial"
	"github.com/stretchr/testify/mock"
)

type accountStore struct {
	mu      sync.Mutex
	records map[string]custodial.AccountRecord
	writes  int
}

func newAccountStore() *accountStore {
	return &accountStore{records: map[string]custodial.AccountRecord{}}
}

func (s *accountStore) Get(_ context.Context, userID string) (*custodial.AccountRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[userID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *accountStore) GetByExternalID(_ context.Context, accountID string) (*custodial.AccountRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.records {
		if rec.ExternalAccountID == accountID {
			return &rec, nil
		}
	}
	return nil, nil
}

func (s *accountStore) Save(_ context.Context, rec *custodial.AccountRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	s.records[rec.UserID] = *rec
	return nil
}

func (s *accountStore) Update(_ context.Context, userID string, upd custodial.AccountUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[userID]
	if !ok {
		return domain.ErrNotFound
	}
	s.writes++
	s.records[userID] = upd.Apply(rec)
	return nil
}

func (s *accountStore) put(rec custodial.AccountRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.UserID] = rec
}

func (s *accountStore) record(userID string) custodial.AccountRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[userID]
}

func (s *accountStore) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

type profileStore struct {
	mu        sync.Mutex
	profiles  map[string]custodial.ProfileRecord
	failMerge error
}

func newProfileStore() *profileStore {
	return &profileStore{profiles: map[string]custodial.ProfileRecord{}}
}

func (s *profileStore) Get(_ context.Context, userID string) (*custodial.ProfileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *profileStore) SetOrMerge(_ context.Context, userID string, upd custodial.ProfileUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failMerge != nil {
		return s.failMerge
	}
	p := s.profiles[userID]
	p.UserID = userID
	applyProfile(&p, upd)
	s.profiles[userID] = p
	return nil
}

func (s *profileStore) Update(_ context.Context, userID string, upd custodial.ProfileUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return domain.ErrNotFound
	}
	applyProfile(&p, upd)
	s.profiles[userID] = p
	return nil
}

func (s *profileStore) SetSlugIfAbsent(_ context.Context, userID, slug string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.profiles[userID]
	p.UserID = userID
	if p.ProfileSlug == "" {
		p.ProfileSlug = slug
	}
	s.profiles[userID] = p
	return p.ProfileSlug, nil
}

func (s *profileStore) profile(userID string) custodial.ProfileRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profiles[userID]
}

func applyProfile(p *custodial.ProfileRecord, upd custodial.ProfileUpdate) {
	if upd.DisplayName != nil {
		p.DisplayName = *upd.DisplayName
	}
	if upd.Email != nil {
		p.Email = *upd.Email
	}
	if upd.StripeAccountID != nil {
		p.StripeAccountID = *upd.StripeAccountID
	}
	if upd.StripeAccountStatus != nil {
		p.StripeAccountStatus = *upd.StripeAccountStatus
	}
	if upd.VirtualCardID != nil {
		p.VirtualCardID = *upd.VirtualCardID
	}
}

// mockGateway is a testify mock of connect.Gateway.
type mockGateway struct {
	mock.Mock
}

func newMockGateway(t *testing.T) *mockGateway {
	m := &mockGateway{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *mockGateway) CreateAccount(ctx context.Context, params connect.CreateAccountParams) (*custodial.PlatformAccount, error) {
	args := m.Called(ctx, params)
	if v := args.Get(0); v != nil {
		return v.(*custodial.PlatformAccount), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockGateway) RetrieveAccount(ctx context.Context, accountID string) (*custodial.PlatformAccount, error) {
	args := m.Called(ctx, accountID)
	if v := args.Get(0); v != nil {
		return v.(*custodial.PlatformAccount), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockGateway) UpdateAccountMetadata(ctx context.Context, accountID string, metadata map[string]string) error {
	return m.Called(ctx, accountID, metadata).Error(0)
}

func (m *mockGateway) AttachTestDocument(ctx context.Context, accountID string) error {
	return m.Called(ctx, accountID).Error(0)
}

func (m *mockGateway) CreateAccountToken(ctx context.Context, params connect.AccountTokenParams) (string, error) {
	args := m.Called(ctx, params)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) AttachAccountToken(ctx context.Context, accountID, token string) error {
	return m.Called(ctx, accountID, token).Error(0)
}

func (m *mockGateway) CreateExternalBankAccount(ctx context.Context, params connect.ExternalBankAccountParams) (*connect.ExternalBankAccount, error) {
	args := m.Called(ctx, params)
	if v := args.Get(0); v != nil {
		return v.(*connect.ExternalBankAccount), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockGateway) CreateOnboardingLink(ctx context.Context, params connect.OnboardingLinkParams) (*connect.OnboardingLink, error) {
	args := m.Called(ctx, params)
	if v := args.Get(0); v != nil {
		return v.(*connect.OnboardingLink), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockGateway) CreateCardholder(ctx context.Context, params connect.CardholderParams) (*connect.Cardholder, error) {
	args := m.Called(ctx, params)
	if v := args.Get(0); v != nil {
		return v.(*connect.Cardholder), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockGateway) CreateCard(ctx context.Context, params connect.CardParams) (*connect.Card, error) {
	args := m.Called(ctx, params)
	if v := args.Get(0); v != nil {
		return v.(*connect.Card), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockGateway) RetrieveIssuingBalance(ctx context.Context, accountID string) (*connect.Balance, error) {
	args := m.Called(ctx, accountID)
	if v := args.Get(0); v != nil {
		return v.(*connect.Balance), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockGateway) CreateTopUp(ctx context.Context, params connect.TopUpParams) (*connect.TopUp, error) {
	args := m.Called(ctx, params)
	if v := args.Get(0); v != nil {
		return v.(*connect.TopUp), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockGateway) CreateTestAuthorization(ctx context.Context, params connect.TestAuthorizationParams) (*connect.Authorization, error) {
	args := m.Called(ctx, params)
	if v := args.Get(0); v != nil {
		return v.(*connect.Authorization), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockGateway) CreateTestPayment(ctx context.Context, params connect.TestPaymentParams) (string, error) {
	args := m.Called(ctx, params)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) ParseWebhookEvent(payload []byte, signature string) (*connect.WebhookEvent, error) {
	args := m.Called(payload, signature)
	if v := args.Get(0); v != nil {
		return v.(*connect.WebhookEvent), args.Error(1)
	}
	return nil, args.Error(1)
}

var (
	_ connect.Gateway        = (*mockGateway)(nil)
	_ repo.AccountRepository = (*accountStore)(nil)
	_ repo.ProfileRepository = (*profileStore)(nil)
)

type fixture struct {
	svc      *Service
	gateway  *mockGateway
	accounts *accountStore
	profiles *profileStore
	bus      *infraeventbus.MemoryEventBus
	locker   *infracache.MemoryLocker
}

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testConfig(mode config.Mode) Config {
	return Config{
		Mode:                    mode,
		Country:                 custodial.CountryUS,
		Currency:                "usd",
		PublicBaseURL:           "https://gifts.example.com/",
		OnboardingReturnPath:    "/onboarding/return",
		OnboardingRefreshPath:   "onboarding//refresh",
		ProfilePath:             "/u/",
		LockTTL:                 time.Second,
		WelcomeCreditAmount:     500,
		TestAuthorizationAmount: 1000,
	}
}

func newFixture(t *testing.T, mode config.Mode) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		gateway:  newMockGateway(t),
		accounts: newAccountStore(),
		profiles: newProfileStore(),
		bus:      infraeventbus.NewWithMemory(logger),
		locker:   infracache.NewMemoryLocker(20 * time.Millisecond),
	}
	f.svc = New(Deps{
		Accounts: f.accounts,
		Profiles: f.profiles,
		Gateway:  f.gateway,
		Locker:   f.locker,
		Bus:      f.bus,
		Logger:   logger,
	}, testConfig(mode), WithClock(func() time.Time { return fixedNow }))
	return f
}

func (f *fixture) publishedTypes() []string {
	var types []string
	for _, e := range f.bus.Published() {
		types = append(types, e.Type())
	}
	return types
}

func validPersonalInfo() custodial.PersonalInfo {
	return custodial.PersonalInfo{
		FirstName:   "Ada",
		LastName:    "Lovelace",
		Email:       "ada@example.com",
		Phone:       "+15555550100",
		DateOfBirth: "12/10/1990",
		Address: custodial.Address{
			Line1:      "1 Main St",
			City:       "Springfield",
			State:      "IL",
			PostalCode: "62701-1234",
			Country:    "US",
		},
		SSNLast4: "1234",
		Bank: &custodial.BankDetails{
			RoutingNumber: "110000000",
			AccountNumber: "000123456789",
			HolderName:    "Ada Lovelace",
		},
	}
}

func pendingAccount(id string) *custodial.PlatformAccount {
	return &custodial.PlatformAccount{
		ID:           id,
		Requirements: map[string]any{"currently_due": []any{"individual.verification.document"}},
		Capabilities: map[string]any{"card_issuing": "inactive"},
		CardIssuing:  "inactive",
		Metadata:     map[string]string{"user_id": "user-1"},
	}
}

func approvedAccount(id string) *custodial.PlatformAccount {
	return &custodial.PlatformAccount{
		ID:               id,
		ChargesEnabled:   true,
		PayoutsEnabled:   true,
		DetailsSubmitted: true,
		Requirements:     map[string]any{"currently_due": []any{}},
		Capabilities:     map[string]any{"card_issuing": "active", "transfers": "active"},
		CardIssuing:      custodial.CapabilityActive,
		Metadata:         map[string]string{"user_id": "user-1"},
	}
}
