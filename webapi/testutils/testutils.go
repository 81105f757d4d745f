package testutils

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/amirasaad/giftfund/infra"
	infracache "github.com/amirasaad/giftfund/infra/cache"
	infraeventbus "github.com/amirasaad/giftfund/infra/eventbus"
	"github.com/amirasaad/giftfund/infra/metrics"
	"github.com/amirasaad/giftfund/infra/provider/sandbox"
	custodialrepo "github.com/amirasaad/giftfund/infra/repository/custodial"
	"github.com/amirasaad/giftfund/pkg/app"
	"github.com/amirasaad/giftfund/pkg/config"
	"github.com/amirasaad/giftfund/webapi"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
)

const jwtSecret = "e2e-secret"

// E2ETestSuite runs the full HTTP stack against a real Postgres database
// and the sandbox gateway.
type E2ETestSuite struct {
	suite.Suite
	pgContainer *tcpostgres.PostgresContainer
	DB          *gorm.DB
	App         *fiber.App
	Cfg         *config.App
	Gateway     *sandbox.Gateway
}

// startPostgresContainer starts a Postgres container using Testcontainers
func (s *E2ETestSuite) startPostgresContainer(ctx context.Context) (*tcpostgres.PostgresContainer, error) {
	return tcpostgres.Run(
		ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(30*time.Second),
		),
	)
}

func testConfig(dsn string) *config.App {
	return &config.App{
		Env:       "test",
		Mode:      config.ModeTest,
		DB:        &config.DB{Url: dsn, RunMigrations: true},
		Auth:      &config.Auth{Jwt: &config.Jwt{Secret: jwtSecret, Expiry: time.Hour}},
		RateLimit: &config.RateLimit{MaxRequests: 10000, Window: time.Minute},
		Stripe: &config.Stripe{
			SigningSecret:           sandbox.DefaultSigningSecret,
			Country:                 "US",
			Currency:                "usd",
			WelcomeCreditAmount:     500,
			TestAuthorizationAmount: 1000,
		},
		Public: &config.Public{
			BaseURL:               "https://gifts.example.com",
			OnboardingReturnPath:  "/onboarding/return",
			OnboardingRefreshPath: "/onboarding/refresh",
			ProfilePath:           "/u",
		},
		Lock:     &config.Lock{TTL: 30 * time.Second, Wait: time.Second},
		EventBus: &config.EventBus{Driver: "memory"},
	}
}

// SetupSuite initializes the test suite with a real Postgres database
func (s *E2ETestSuite) SetupSuite() {
	ctx := context.Background()

	pg, err := s.startPostgresContainer(ctx)
	s.Require().NoError(err)
	s.pgContainer = pg

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)

	s.Cfg = testConfig(dsn)
	s.DB, err = infra.NewDBConnection(s.Cfg.DB, s.Cfg.Env)
	s.Require().NoError(err)
	s.Require().NoError(infra.RunMigrations(s.DB))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.Gateway = sandbox.New(s.Cfg.Stripe.SigningSecret, s.Cfg.Stripe.Currency)
	deps := &app.Deps{
		Accounts: custodialrepo.NewAccountRepository(s.DB),
		Profiles: custodialrepo.NewProfileRepository(s.DB),
		Gateway:  s.Gateway,
		Locker:   infracache.NewMemoryLocker(s.Cfg.Lock.Wait),
		EventBus: infraeventbus.NewWithMemory(logger),
		Metrics:  metrics.New(),
		Logger:   logger,
	}
	s.App = webapi.SetupApp(app.New(deps, s.Cfg))
}

// TearDownSuite cleans up the test suite resources
func (s *E2ETestSuite) TearDownSuite() {
	if s.pgContainer != nil {
		_ = s.pgContainer.Terminate(context.Background())
	}
}

// Token mints a bearer token for userID.
func (s *E2ETestSuite) Token(userID string) string {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(jwtSecret))
	s.Require().NoError(err)
	return token
}

// MakeRequest is a helper for making HTTP requests in tests
func (s *E2ETestSuite) MakeRequest(method, path, body, token string) *http.Response {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.App.Test(req, -1)
	s.Require().NoError(err)
	return resp
}

// PostWebhook delivers a signed payload to the webhook receiver.
func (s *E2ETestSuite) PostWebhook(payload []byte, signature string) *http.Response {
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", signature)
	resp, err := s.App.Test(req, -1)
	s.Require().NoError(err)
	return resp
}

// Data decodes the data field of a success envelope.
func (s *E2ETestSuite) Data(resp *http.Response) map[string]any {
	defer resp.Body.Close() //nolint:errcheck
	var envelope struct {
		Data map[string]any `json:"data"`
	}
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&envelope))
	return envelope.Data
}

// Problem decodes a problem details body.
func (s *E2ETestSuite) Problem(resp *http.Response) map[string]any {
	defer resp.Body.Close() //nolint:errcheck
	var out map[string]any
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&out))
	return out
}
