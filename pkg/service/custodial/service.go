// Package custodial orchestrates the lifecycle of a user's custodial account:
// creation on the payments platform, onboarding, status synchronisation,
// issuing balance funding and card issuance.
package custodial

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/amirasaad/giftfund/pkg/cache"
	"github.com/amirasaad/giftfund/pkg/config"
	"github.com/amirasaad/giftfund/pkg/domain/custodial"
	"github.com/amirasaad/giftfund/pkg/eventbus"
	"github.com/amirasaad/giftfund/pkg/provider/connect"
	repo "github.com/amirasaad/giftfund/pkg/repository/custodial"
	"golang.org/x/sync/singleflight"
)

const (
	// Platform test values that always pass verification.
	testPhone = "0000000000"
	testTaxID = "000000000"

	defaultLockTTL                 = 30 * time.Second
	defaultSyncTimeout             = 30 * time.Second
	defaultTestAuthorizationAmount = 1000
)

// Deps are the collaborators of the Service.
type Deps struct {
	Accounts repo.AccountRepository
	Profiles repo.ProfileRepository
	Gateway  connect.Gateway
	Locker   cache.Locker
	Bus      eventbus.Bus
	Logger   *slog.Logger
}

// Config holds the values the Service needs from the process configuration.
type Config struct {
	Mode                    config.Mode
	Country                 string
	Currency                string
	PublicBaseURL           string
	OnboardingReturnPath    string
	OnboardingRefreshPath   string
	ProfilePath             string
	LockTTL                 time.Duration
	// SyncTimeout bounds one shared status synchronisation.
	SyncTimeout             time.Duration
	WelcomeCreditAmount     int64
	TestAuthorizationAmount int64
}

// ConfigFrom extracts the Service configuration from the app config.
func ConfigFrom(cfg *config.App) Config {
	c := Config{Mode: cfg.Mode}
	if cfg.Stripe != nil {
		c.Country = cfg.Stripe.Country
		c.Currency = cfg.Stripe.Currency
		c.WelcomeCreditAmount = cfg.Stripe.WelcomeCreditAmount
		c.TestAuthorizationAmount = cfg.Stripe.TestAuthorizationAmount
		// One retrieve plus an optional metadata backfill.
		c.SyncTimeout = 2 * cfg.Stripe.CallTimeout
	}
	if cfg.Public != nil {
		c.PublicBaseURL = cfg.Public.BaseURL
		c.OnboardingReturnPath = cfg.Public.OnboardingReturnPath
		c.OnboardingRefreshPath = cfg.Public.OnboardingRefreshPath
		c.ProfilePath = cfg.Public.ProfilePath
	}
	if cfg.Lock != nil {
		c.LockTTL = cfg.Lock.TTL
	}
	return c
}

// Option customises a Service.
type Option func(*Service)

// WithClock replaces time.Now, used for date-of-birth bounds and events.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service is the custodial account orchestration service.
type Service struct {
	accounts repo.AccountRepository
	profiles repo.ProfileRepository
	gateway  connect.Gateway
	locker   cache.Locker
	bus      eventbus.Bus
	logger   *slog.Logger
	cfg      Config
	now      func() time.Time

	syncGroup singleflight.Group
	webhooks  *IdempotencyTracker
}

// New creates a Service.
func New(deps Deps, cfg Config, opts ...Option) *Service {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaultLockTTL
	}
	if cfg.SyncTimeout <= 0 {
		cfg.SyncTimeout = defaultSyncTimeout
	}
	if cfg.TestAuthorizationAmount <= 0 {
		cfg.TestAuthorizationAmount = defaultTestAuthorizationAmount
	}
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	if cfg.Country == "" {
		cfg.Country = custodial.CountryUS
	}
	cfg.Currency = strings.ToLower(cfg.Currency)
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		accounts: deps.Accounts,
		profiles: deps.Profiles,
		gateway:  deps.Gateway,
		locker:   deps.Locker,
		bus:      deps.Bus,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
		webhooks: NewIdempotencyTracker(defaultIdempotencyTTL, defaultIdempotencyMaxEntries),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mode reports the execution mode the service runs in.
func (s *Service) Mode() config.Mode {
	return s.cfg.Mode
}

// runBestEffort runs an enrichment step whose failure must never reach the
// caller. Failures are logged and dropped.
func (s *Service) runBestEffort(ctx context.Context, log *slog.Logger, step string, fn func(ctx context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("best-effort step panicked", "step", step, "panic", r)
		}
	}()
	if err := fn(ctx); err != nil {
		log.Warn("⚠️ best-effort step failed", "step", step, "error", err)
		return
	}
	log.Debug("best-effort step done", "step", step)
}

// lock serialises an operation for one user. Contention is reported as
// custodial.ErrBusy.
func (s *Service) lock(ctx context.Context, key string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	unlock, err := s.locker.Lock(ctx, key, s.cfg.LockTTL)
	if errors.Is(err, cache.ErrLockNotAcquired) {
		return nil, custodial.ErrBusy
	}
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	return unlock, nil
}

func createLockKey(userID string) string { return "lock:custodial:create:" + userID }
func cardLockKey(userID string) string   { return "lock:custodial:card:" + userID }

func (s *Service) emit(ctx context.Context, log *slog.Logger, event eventbus.Event) {
	if s.bus == nil {
		return
	}
	s.runBestEffort(ctx, log, "emit "+event.Type(), func(ctx context.Context) error {
		return s.bus.Emit(ctx, event)
	})
}

// loadAccount returns the user's record or custodial.ErrNoAccount when no
// platform account has been created yet.
func (s *Service) loadAccount(ctx context.Context, userID string) (*custodial.AccountRecord, error) {
	rec, err := s.accounts.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	if !rec.HasExternalAccount() {
		return nil, custodial.ErrNoAccount
	}
	return rec, nil
}
