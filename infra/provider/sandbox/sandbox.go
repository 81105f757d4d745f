// Package sandbox is an in-memory payments gateway for local development
// and end-to-end tests. Accounts verify as soon as a tax id token is
// attached, issuing balances move on top-ups and authorizations, and
// webhooks are signed the same way Stripe signs them.
//
// This is NOT for production use.
package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/amirasaad/giftfund/infra/provider/stripeconnect"
	"github.com/amirasaad/giftfund/pkg/domain/custodial"
	"github.com/amirasaad/giftfund/pkg/provider/connect"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82/webhook"
)

// DefaultSigningSecret signs sandbox webhooks when none is configured.
const DefaultSigningSecret = "whsec_sandbox"

const onboardingLinkTTL = 5 * time.Minute

type account struct {
	platform  custodial.PlatformAccount
	verified  bool
	issuing   int64
	payments  int64
	documents int
}

// Gateway implements connect.Gateway in memory.
type Gateway struct {
	mu            sync.Mutex
	accounts      map[string]*account
	cards         map[string]string // card id -> account id
	signingSecret string
	currency      string
	now           func() time.Time
}

var _ connect.Gateway = (*Gateway)(nil)

// New creates an empty sandbox. An empty secret uses DefaultSigningSecret.
func New(signingSecret, currency string) *Gateway {
	if signingSecret == "" {
		signingSecret = DefaultSigningSecret
	}
	if currency == "" {
		currency = "usd"
	}
	return &Gateway{
		accounts:      make(map[string]*account),
		cards:         make(map[string]string),
		signingSecret: signingSecret,
		currency:      strings.ToLower(currency),
		now:           time.Now,
	}
}

func newID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

func missing(op, id string) error {
	return &custodial.PlatformError{
		Op:      op,
		Code:    "resource_missing",
		Message: fmt.Sprintf("no such account: '%s'", id),
	}
}

// get must be called with mu held.
func (g *Gateway) get(op, id string) (*account, error) {
	a, ok := g.accounts[id]
	if !ok {
		return nil, missing(op, id)
	}
	return a, nil
}

func clone(p custodial.PlatformAccount) *custodial.PlatformAccount {
	out := p
	out.Requirements = cloneMap(p.Requirements)
	out.Capabilities = cloneMap(p.Capabilities)
	out.Metadata = make(map[string]string, len(p.Metadata))
	for k, v := range p.Metadata {
		out.Metadata[k] = v
	}
	out.PastDue = append([]string(nil), p.PastDue...)
	return &out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (g *Gateway) CreateAccount(_ context.Context, p connect.CreateAccountParams) (*custodial.PlatformAccount, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	// Mirrors the platform idempotency key: one account per user.
	for _, a := range g.accounts {
		if a.platform.Metadata["user_id"] == p.UserID {
			return clone(a.platform), nil
		}
	}

	id := newID("acct")
	a := &account{platform: custodial.PlatformAccount{
		ID:               id,
		DetailsSubmitted: !p.TOSAcceptedAt.IsZero(),
		Requirements: map[string]any{
			"currently_due": []any{"individual.id_number"},
			"past_due":      []any{},
		},
		Capabilities: map[string]any{
			"card_issuing":  "inactive",
			"card_payments": "inactive",
			"transfers":     "inactive",
		},
		CardIssuing: "inactive",
		Metadata:    map[string]string{"user_id": p.UserID},
	}}
	g.accounts[id] = a
	return clone(a.platform), nil
}

func (g *Gateway) RetrieveAccount(_ context.Context, accountID string) (*custodial.PlatformAccount, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	a, err := g.get("retrieve_account", accountID)
	if err != nil {
		return nil, err
	}
	return clone(a.platform), nil
}

func (g *Gateway) UpdateAccountMetadata(_ context.Context, accountID string, metadata map[string]string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	a, err := g.get("update_account", accountID)
	if err != nil {
		return err
	}
	for k, v := range metadata {
		a.platform.Metadata[k] = v
	}
	return nil
}

func (g *Gateway) AttachTestDocument(_ context.Context, accountID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	a, err := g.get("attach_document", accountID)
	if err != nil {
		return err
	}
	a.documents++
	return nil
}

func (g *Gateway) CreateAccountToken(_ context.Context, p connect.AccountTokenParams) (string, error) {
	if p.IDNumber == "" {
		return "", &custodial.PlatformError{Op: "create_account_token", Code: "parameter_missing", Message: "id_number is required"}
	}
	return newID("ct"), nil
}

// AttachAccountToken verifies the account.
func (g *Gateway) AttachAccountToken(_ context.Context, accountID, token string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	a, err := g.get("attach_account_token", accountID)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(token, "ct_") {
		return &custodial.PlatformError{Op: "attach_account_token", Code: "token_invalid", Message: "invalid account token"}
	}
	g.activate(a)
	return nil
}

// Activate marks the account verified and card issuing active.
func (g *Gateway) Activate(accountID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	a, err := g.get("activate", accountID)
	if err != nil {
		return err
	}
	g.activate(a)
	return nil
}

func (g *Gateway) activate(a *account) {
	a.verified = true
	a.platform.ChargesEnabled = true
	a.platform.PayoutsEnabled = true
	a.platform.DetailsSubmitted = true
	a.platform.Requirements = map[string]any{"currently_due": []any{}, "past_due": []any{}}
	a.platform.Capabilities = map[string]any{
		"card_issuing":  "active",
		"card_payments": "active",
		"transfers":     "active",
	}
	a.platform.CardIssuing = "active"
	a.platform.PastDue = nil
	a.platform.DisabledReason = ""
}

// Reject disables the account with reason.
func (g *Gateway) Reject(accountID, reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	a, err := g.get("reject", accountID)
	if err != nil {
		return err
	}
	a.verified = false
	a.platform.ChargesEnabled = false
	a.platform.PayoutsEnabled = false
	a.platform.Requirements = map[string]any{"disabled_reason": reason}
	a.platform.DisabledReason = reason
	a.platform.Capabilities["card_issuing"] = "inactive"
	a.platform.CardIssuing = "inactive"
	return nil
}

func (g *Gateway) CreateExternalBankAccount(_ context.Context, p connect.ExternalBankAccountParams) (*connect.ExternalBankAccount, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, err := g.get("create_external_account", p.AccountID); err != nil {
		return nil, err
	}
	if len(p.AccountNumber) < 4 {
		return nil, &custodial.PlatformError{Op: "create_external_account", Code: "account_number_invalid", Message: "account number is too short"}
	}
	return &connect.ExternalBankAccount{ID: newID("ba"), Last4: p.AccountNumber[len(p.AccountNumber)-4:]}, nil
}

func (g *Gateway) CreateOnboardingLink(_ context.Context, p connect.OnboardingLinkParams) (*connect.OnboardingLink, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, err := g.get("create_account_link", p.AccountID); err != nil {
		return nil, err
	}
	return &connect.OnboardingLink{
		URL:       "https://connect.sandbox.invalid/setup/" + p.AccountID + "/" + newID("link"),
		ExpiresAt: g.now().Add(onboardingLinkTTL),
	}, nil
}

func (g *Gateway) CreateCardholder(_ context.Context, p connect.CardholderParams) (*connect.Cardholder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, err := g.get("create_cardholder", p.AccountID); err != nil {
		return nil, err
	}
	return &connect.Cardholder{ID: newID("ich"), Status: "active"}, nil
}

func (g *Gateway) CreateCard(_ context.Context, p connect.CardParams) (*connect.Card, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	a, err := g.get("create_card", p.AccountID)
	if err != nil {
		return nil, err
	}
	if !a.verified {
		return nil, &custodial.PlatformError{Op: "create_card", Code: "capability_inactive", Message: "card_issuing capability is not active"}
	}
	id := newID("ic")
	g.cards[id] = p.AccountID
	return &connect.Card{ID: id, Last4: fmt.Sprintf("%04d", len(g.cards)%10000), Status: "active"}, nil
}

func (g *Gateway) RetrieveIssuingBalance(_ context.Context, accountID string) (*connect.Balance, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	a, err := g.get("retrieve_balance", accountID)
	if err != nil {
		return nil, err
	}
	return &connect.Balance{Available: a.issuing, Currency: g.currency}, nil
}

func (g *Gateway) CreateTopUp(_ context.Context, p connect.TopUpParams) (*connect.TopUp, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	a, err := g.get("create_topup", p.AccountID)
	if err != nil {
		return nil, err
	}
	a.issuing += p.Amount
	return &connect.TopUp{ID: newID("tu"), Amount: p.Amount, Status: "succeeded"}, nil
}

func (g *Gateway) CreateTestAuthorization(_ context.Context, p connect.TestAuthorizationParams) (*connect.Authorization, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	a, err := g.get("create_test_authorization", p.AccountID)
	if err != nil {
		return nil, err
	}
	if owner, ok := g.cards[p.CardID]; !ok || owner != p.AccountID {
		return nil, &custodial.PlatformError{Op: "create_test_authorization", Code: "resource_missing", Message: "no such card: '" + p.CardID + "'"}
	}
	auth := &connect.Authorization{ID: newID("iauth"), Amount: p.Amount, Currency: p.Currency, Status: "closed"}
	if p.Amount <= a.issuing {
		a.issuing -= p.Amount
		auth.Approved = true
		auth.Status = "pending"
	}
	return auth, nil
}

func (g *Gateway) CreateTestPayment(_ context.Context, p connect.TestPaymentParams) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	a, err := g.get("create_test_payment", p.AccountID)
	if err != nil {
		return "", err
	}
	a.payments += p.Amount
	return newID("pi"), nil
}

func (g *Gateway) ParseWebhookEvent(payload []byte, signature string) (*connect.WebhookEvent, error) {
	return stripeconnect.ParseSignedEvent(payload, signature, g.signingSecret)
}

// AccountUpdatedEvent returns a signed account.updated delivery carrying the
// current state of accountID.
func (g *Gateway) AccountUpdatedEvent(accountID string) (payload []byte, signature string, err error) {
	g.mu.Lock()
	a, err := g.get("account_updated_event", accountID)
	if err != nil {
		g.mu.Unlock()
		return nil, "", err
	}
	obj := map[string]any{
		"id":                accountID,
		"object":            "account",
		"charges_enabled":   a.platform.ChargesEnabled,
		"payouts_enabled":   a.platform.PayoutsEnabled,
		"details_submitted": a.platform.DetailsSubmitted,
		"requirements":      cloneMap(a.platform.Requirements),
		"capabilities":      cloneMap(a.platform.Capabilities),
		"metadata":          a.platform.Metadata,
	}
	g.mu.Unlock()

	payload, err = json.Marshal(map[string]any{
		"id":      newID("evt"),
		"object":  "event",
		"type":    connect.EventAccountUpdated,
		"account": accountID,
		"created": g.now().Unix(),
		"data":    map[string]any{"object": obj},
	})
	if err != nil {
		return nil, "", err
	}
	return payload, g.Sign(payload), nil
}

// Sign returns a Stripe-Signature header for payload.
func (g *Gateway) Sign(payload []byte) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    g.signingSecret,
		Timestamp: g.now(),
	}).Header
}
