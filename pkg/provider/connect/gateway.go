// Package connect declares the payments platform operations the custodial
// account flow depends on.
package connect

import (
	"context"
	"errors"
	"time"

	"github.com/amirasaad/giftfund/pkg/domain/custodial"
)

// ErrInvalidSignature is returned by ParseWebhookEvent when the payload does
// not verify against the signing secret.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// Gateway wraps the connected-account, issuing and webhook surface of the
// payments platform. Implementations return custodial.ErrPlatformUnavailable
// for retryable failures and *custodial.PlatformError for rejections.
type Gateway interface {
	CreateAccount(ctx context.Context, params CreateAccountParams) (*custodial.PlatformAccount, error)
	RetrieveAccount(ctx context.Context, accountID string) (*custodial.PlatformAccount, error)
	UpdateAccountMetadata(ctx context.Context, accountID string, metadata map[string]string) error
	AttachTestDocument(ctx context.Context, accountID string) error
	CreateAccountToken(ctx context.Context, params AccountTokenParams) (string, error)
	AttachAccountToken(ctx context.Context, accountID, token string) error
	CreateExternalBankAccount(ctx context.Context, params ExternalBankAccountParams) (*ExternalBankAccount, error)
	CreateOnboardingLink(ctx context.Context, params OnboardingLinkParams) (*OnboardingLink, error)

	CreateCardholder(ctx context.Context, params CardholderParams) (*Cardholder, error)
	CreateCard(ctx context.Context, params CardParams) (*Card, error)
	RetrieveIssuingBalance(ctx context.Context, accountID string) (*Balance, error)
	CreateTopUp(ctx context.Context, params TopUpParams) (*TopUp, error)
	CreateTestAuthorization(ctx context.Context, params TestAuthorizationParams) (*Authorization, error)
	CreateTestPayment(ctx context.Context, params TestPaymentParams) (string, error)

	ParseWebhookEvent(payload []byte, signature string) (*WebhookEvent, error)
}

// CreateAccountParams describes a custom individual connected account.
type CreateAccountParams struct {
	UserID             string
	Country            string
	Email              string
	FirstName          string
	LastName           string
	Phone              string
	DOB                *custodial.DOB
	Address            custodial.Address
	SSNLast4           string
	BusinessProfileURL string
	TOSAcceptedIP      string
	TOSAcceptedAt      time.Time
}

// AccountTokenParams carries identity data tokenised before it is attached.
type AccountTokenParams struct {
	IDNumber string
}

type ExternalBankAccountParams struct {
	AccountID     string
	Country       string
	Currency      string
	RoutingNumber string
	AccountNumber string
	HolderName    string
}

type ExternalBankAccount struct {
	ID    string
	Last4 string
}

type OnboardingLinkParams struct {
	AccountID  string
	ReturnURL  string
	RefreshURL string
}

type OnboardingLink struct {
	URL       string
	ExpiresAt time.Time
}

type CardholderParams struct {
	UserID    string
	AccountID string
	Details   custodial.HolderDetails
}

type Cardholder struct {
	ID     string
	Status string
}

type CardParams struct {
	UserID       string
	AccountID    string
	CardholderID string
	Currency     string
	// Spending limit in minor units; zero leaves platform defaults.
	SpendingLimitAmount   int64
	SpendingLimitInterval string
}

type Card struct {
	ID     string
	Last4  string
	Status string
}

// Balance is the issuing sub-balance of a connected account.
type Balance struct {
	Available int64
	Currency  string
}

type TopUpParams struct {
	AccountID string
	Amount    int64
	Currency  string
}

type TopUp struct {
	ID     string
	Amount int64
	Status string
}

type TestAuthorizationParams struct {
	AccountID string
	CardID    string
	Amount    int64
	Currency  string
}

type Authorization struct {
	ID       string
	Amount   int64
	Currency string
	Status   string
	Approved bool
}

type TestPaymentParams struct {
	AccountID string
	Amount    int64
	Currency  string
}

const (
	EventAccountUpdated    = "account.updated"
	EventCapabilityUpdated = "capability.updated"
)

// WebhookEvent is a verified platform event. Account is decoded for
// account.updated; AccountID is set for every event scoped to an account.
type WebhookEvent struct {
	ID        string
	Type      string
	AccountID string
	Account   *custodial.PlatformAccount
}
