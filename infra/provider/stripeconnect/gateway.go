// Package stripeconnect implements the payments gateway on top of Stripe
// Connect custom accounts and Stripe Issuing.
package stripeconnect

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/amirasaad/giftfund/infra/metrics"
	"github.com/amirasaad/giftfund/pkg/config"
	"github.com/amirasaad/giftfund/pkg/domain/custodial"
	"github.com/amirasaad/giftfund/pkg/provider/connect"
	"github.com/stripe/stripe-go/v82"
)

const (
	testIdentityDocument = "file_identity_document_success"
	testPaymentMethod    = "pm_card_bypassPending"
)

// Gateway talks to Stripe for one platform account.
type Gateway struct {
	client        *stripe.Client
	signingSecret string
	currency      string
	guard         *guard
	logger        *slog.Logger
}

// New creates a Gateway using the Stripe secret key from cfg.
func New(cfg *config.Stripe, m *metrics.Metrics, logger *slog.Logger) *Gateway {
	return NewWithClient(stripe.NewClient(cfg.ApiKey), cfg, m, logger)
}

// NewWithClient is New with a preconfigured client, e.g. one pointed at a
// stub backend.
func NewWithClient(client *stripe.Client, cfg *config.Stripe, m *metrics.Metrics, logger *slog.Logger) *Gateway {
	logger = logger.With("component", "stripe-connect")
	return &Gateway{
		client:        client,
		signingSecret: cfg.SigningSecret,
		currency:      strings.ToLower(cfg.Currency),
		guard:         newGuard(cfg, m, logger),
		logger:        logger,
	}
}

// idempotencyKey makes a retried create for the same user collapse onto the
// first request on Stripe's side.
func idempotencyKey(op, userID string) string {
	return "giftfund-" + op + "-" + userID
}

func (g *Gateway) CreateAccount(
	ctx context.Context,
	p connect.CreateAccountParams,
) (*custodial.PlatformAccount, error) {
	params := &stripe.AccountCreateParams{
		Type:         stripe.String(custodial.AccountKindCustom),
		Country:      stripe.String(p.Country),
		Email:        stripe.String(p.Email),
		BusinessType: stripe.String(custodial.BusinessTypeIndividual),
		BusinessProfile: &stripe.AccountCreateBusinessProfileParams{
			URL: stripe.String(p.BusinessProfileURL),
		},
		Capabilities: &stripe.AccountCreateCapabilitiesParams{
			CardIssuing: &stripe.AccountCreateCapabilitiesCardIssuingParams{
				Requested: stripe.Bool(true),
			},
			CardPayments: &stripe.AccountCreateCapabilitiesCardPaymentsParams{
				Requested: stripe.Bool(true),
			},
			Transfers: &stripe.AccountCreateCapabilitiesTransfersParams{
				Requested: stripe.Bool(true),
			},
		},
	}
	params.AddMetadata("user_id", p.UserID)
	for key, value := range individualFields(p) {
		params.AddExtra(key, value)
	}
	if p.TOSAcceptedIP != "" && !p.TOSAcceptedAt.IsZero() {
		params.AddExtra("tos_acceptance[ip]", p.TOSAcceptedIP)
		params.AddExtra("tos_acceptance[date]", strconv.FormatInt(p.TOSAcceptedAt.Unix(), 10))
	}
	params.SetIdempotencyKey(idempotencyKey("create_account", p.UserID))

	var acct *stripe.Account
	err := g.guard.call(ctx, "create_account", func(ctx context.Context) error {
		var err error
		acct, err = g.client.V1Accounts.Create(ctx, params)
		return err
	})
	if err != nil {
		return nil, err
	}
	g.logger.Info("✅ Stripe account created", "account_id", acct.ID, "user_id", p.UserID)
	return toPlatformAccount(acct)
}

// individualFields flattens the person data into Stripe's nested form keys,
// e.g. individual[address][postal_code].
func individualFields(p connect.CreateAccountParams) map[string]string {
	fields := map[string]string{}
	set := func(value string, path ...string) {
		if value = strings.TrimSpace(value); value != "" {
			fields[formKey("individual", path...)] = value
		}
	}
	set(p.FirstName, "first_name")
	set(p.LastName, "last_name")
	set(p.Email, "email")
	set(p.Phone, "phone")
	set(p.SSNLast4, "ssn_last_4")
	set(p.Address.Line1, "address", "line1")
	set(p.Address.Line2, "address", "line2")
	set(p.Address.City, "address", "city")
	set(p.Address.State, "address", "state")
	set(p.Address.PostalCode, "address", "postal_code")
	set(p.Address.Country, "address", "country")
	if p.DOB != nil {
		set(strconv.Itoa(p.DOB.Day), "dob", "day")
		set(strconv.Itoa(p.DOB.Month), "dob", "month")
		set(strconv.Itoa(p.DOB.Year), "dob", "year")
	}
	return fields
}

// formKey builds root[a][b] from its segments.
func formKey(root string, path ...string) string {
	var b strings.Builder
	b.WriteString(root)
	for _, seg := range path {
		b.WriteString("[")
		b.WriteString(seg)
		b.WriteString("]")
	}
	return b.String()
}

func (g *Gateway) RetrieveAccount(ctx context.Context, accountID string) (*custodial.PlatformAccount, error) {
	var acct *stripe.Account
	err := g.guard.call(ctx, "retrieve_account", func(ctx context.Context) error {
		var err error
		acct, err = g.client.V1Accounts.GetByID(ctx, accountID, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return toPlatformAccount(acct)
}

func (g *Gateway) UpdateAccountMetadata(ctx context.Context, accountID string, metadata map[string]string) error {
	params := &stripe.AccountUpdateParams{}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	return g.updateAccount(ctx, "update_account_metadata", accountID, params)
}

func (g *Gateway) AttachTestDocument(ctx context.Context, accountID string) error {
	params := &stripe.AccountUpdateParams{}
	params.AddExtra("individual[verification][document][front]", testIdentityDocument)
	return g.updateAccount(ctx, "attach_test_document", accountID, params)
}

func (g *Gateway) CreateAccountToken(ctx context.Context, p connect.AccountTokenParams) (string, error) {
	params := &stripe.TokenCreateParams{}
	params.AddExtra("account[individual][id_number]", p.IDNumber)

	var tok *stripe.Token
	err := g.guard.call(ctx, "create_account_token", func(ctx context.Context) error {
		var err error
		tok, err = g.client.V1Tokens.Create(ctx, params)
		return err
	})
	if err != nil {
		return "", err
	}
	return tok.ID, nil
}

func (g *Gateway) AttachAccountToken(ctx context.Context, accountID, token string) error {
	params := &stripe.AccountUpdateParams{
		AccountToken: stripe.String(token),
	}
	return g.updateAccount(ctx, "attach_account_token", accountID, params)
}

// CreateExternalBankAccount tokenises the bank details and attaches the
// token to the connected account as its payout destination.
func (g *Gateway) CreateExternalBankAccount(
	ctx context.Context,
	p connect.ExternalBankAccountParams,
) (*connect.ExternalBankAccount, error) {
	params := &stripe.TokenCreateParams{}
	params.AddExtra("bank_account[country]", p.Country)
	params.AddExtra("bank_account[currency]", strings.ToLower(p.Currency))
	params.AddExtra("bank_account[routing_number]", p.RoutingNumber)
	params.AddExtra("bank_account[account_number]", p.AccountNumber)
	params.AddExtra("bank_account[account_holder_name]", p.HolderName)
	params.AddExtra("bank_account[account_holder_type]", custodial.BusinessTypeIndividual)

	var tok *stripe.Token
	err := g.guard.call(ctx, "create_bank_token", func(ctx context.Context) error {
		var err error
		tok, err = g.client.V1Tokens.Create(ctx, params)
		return err
	})
	if err != nil {
		return nil, err
	}

	update := &stripe.AccountUpdateParams{}
	update.AddExtra("external_account", tok.ID)
	if err := g.updateAccount(ctx, "attach_external_account", p.AccountID, update); err != nil {
		return nil, err
	}

	out := &connect.ExternalBankAccount{Last4: custodial.Last4(p.AccountNumber)}
	if tok.BankAccount != nil {
		out.ID = tok.BankAccount.ID
		out.Last4 = tok.BankAccount.Last4
	}
	return out, nil
}

func (g *Gateway) updateAccount(ctx context.Context, op, accountID string, params *stripe.AccountUpdateParams) error {
	return g.guard.call(ctx, op, func(ctx context.Context) error {
		_, err := g.client.V1Accounts.Update(ctx, accountID, params)
		return err
	})
}

func (g *Gateway) CreateOnboardingLink(
	ctx context.Context,
	p connect.OnboardingLinkParams,
) (*connect.OnboardingLink, error) {
	params := &stripe.AccountLinkCreateParams{
		Account:    stripe.String(p.AccountID),
		RefreshURL: stripe.String(p.RefreshURL),
		ReturnURL:  stripe.String(p.ReturnURL),
		Type:       stripe.String("account_onboarding"),
	}

	var link *stripe.AccountLink
	err := g.guard.call(ctx, "create_onboarding_link", func(ctx context.Context) error {
		var err error
		link, err = g.client.V1AccountLinks.Create(ctx, params)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &connect.OnboardingLink{URL: link.URL, ExpiresAt: time.Unix(link.ExpiresAt, 0).UTC()}, nil
}

func (g *Gateway) CreateCardholder(ctx context.Context, p connect.CardholderParams) (*connect.Cardholder, error) {
	params := &stripe.IssuingCardholderCreateParams{
		Name:  stripe.String(p.Details.Name),
		Type:  stripe.String(custodial.BusinessTypeIndividual),
		Email: stripe.String(p.Details.Email),
	}
	if p.Details.Phone != "" {
		params.PhoneNumber = stripe.String(p.Details.Phone)
	}
	billing := p.Details.Billing
	params.AddExtra("billing[address][line1]", billing.Line1)
	if billing.Line2 != "" {
		params.AddExtra("billing[address][line2]", billing.Line2)
	}
	params.AddExtra("billing[address][city]", billing.City)
	params.AddExtra("billing[address][state]", billing.State)
	params.AddExtra("billing[address][postal_code]", billing.PostalCode)
	params.AddExtra("billing[address][country]", billing.Country)
	params.SetStripeAccount(p.AccountID)
	params.SetIdempotencyKey(idempotencyKey("create_cardholder", p.UserID))

	var ch *stripe.IssuingCardholder
	err := g.guard.call(ctx, "create_cardholder", func(ctx context.Context) error {
		var err error
		ch, err = g.client.V1IssuingCardholders.Create(ctx, params)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &connect.Cardholder{ID: ch.ID, Status: string(ch.Status)}, nil
}

func (g *Gateway) CreateCard(ctx context.Context, p connect.CardParams) (*connect.Card, error) {
	currency := p.Currency
	if currency == "" {
		currency = g.currency
	}
	params := &stripe.IssuingCardCreateParams{
		Cardholder: stripe.String(p.CardholderID),
		Currency:   stripe.String(strings.ToLower(currency)),
		Type:       stripe.String("virtual"),
		Status:     stripe.String("active"),
	}
	if p.SpendingLimitAmount > 0 {
		interval := p.SpendingLimitInterval
		if interval == "" {
			interval = "all_time"
		}
		params.AddExtra("spending_controls[spending_limits][0][amount]", strconv.FormatInt(p.SpendingLimitAmount, 10))
		params.AddExtra("spending_controls[spending_limits][0][interval]", interval)
	}
	params.SetStripeAccount(p.AccountID)
	params.SetIdempotencyKey(idempotencyKey("create_card", p.UserID))

	var card *stripe.IssuingCard
	err := g.guard.call(ctx, "create_card", func(ctx context.Context) error {
		var err error
		card, err = g.client.V1IssuingCards.Create(ctx, params)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &connect.Card{ID: card.ID, Last4: card.Last4, Status: string(card.Status)}, nil
}

func (g *Gateway) RetrieveIssuingBalance(ctx context.Context, accountID string) (*connect.Balance, error) {
	params := &stripe.BalanceRetrieveParams{}
	params.SetStripeAccount(accountID)

	var bal *stripe.Balance
	err := g.guard.call(ctx, "retrieve_issuing_balance", func(ctx context.Context) error {
		var err error
		bal, err = g.client.V1Balance.Retrieve(ctx, params)
		return err
	})
	if err != nil {
		return nil, err
	}
	available, err := issuingAvailable(bal, g.currency)
	if err != nil {
		return nil, fmt.Errorf("retrieve_issuing_balance: %w", err)
	}
	return &connect.Balance{Available: available, Currency: g.currency}, nil
}

func (g *Gateway) CreateTopUp(ctx context.Context, p connect.TopUpParams) (*connect.TopUp, error) {
	currency := p.Currency
	if currency == "" {
		currency = g.currency
	}
	params := &stripe.TopupCreateParams{
		Amount:      stripe.Int64(p.Amount),
		Currency:    stripe.String(strings.ToLower(currency)),
		Description: stripe.String("Issuing balance top-up"),
	}
	params.AddExtra("destination_balance", "issuing")
	params.SetStripeAccount(p.AccountID)

	var topup *stripe.Topup
	err := g.guard.call(ctx, "create_topup", func(ctx context.Context) error {
		var err error
		topup, err = g.client.V1Topups.Create(ctx, params)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &connect.TopUp{ID: topup.ID, Amount: topup.Amount, Status: string(topup.Status)}, nil
}

func (g *Gateway) CreateTestAuthorization(
	ctx context.Context,
	p connect.TestAuthorizationParams,
) (*connect.Authorization, error) {
	currency := p.Currency
	if currency == "" {
		currency = g.currency
	}
	params := &stripe.TestHelpersIssuingAuthorizationCreateParams{
		Amount:   stripe.Int64(p.Amount),
		Card:     stripe.String(p.CardID),
		Currency: stripe.String(strings.ToLower(currency)),
	}
	params.SetStripeAccount(p.AccountID)

	var auth *stripe.IssuingAuthorization
	err := g.guard.call(ctx, "create_test_authorization", func(ctx context.Context) error {
		var err error
		auth, err = g.client.V1TestHelpersIssuingAuthorizations.Create(ctx, params)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &connect.Authorization{
		ID:       auth.ID,
		Amount:   auth.Amount,
		Currency: string(auth.Currency),
		Status:   string(auth.Status),
		Approved: auth.Approved,
	}, nil
}

// CreateTestPayment confirms a card payment on the platform and routes the
// funds to the connected account.
func (g *Gateway) CreateTestPayment(ctx context.Context, p connect.TestPaymentParams) (string, error) {
	currency := p.Currency
	if currency == "" {
		currency = g.currency
	}
	params := &stripe.PaymentIntentCreateParams{
		Amount:             stripe.Int64(p.Amount),
		Currency:           stripe.String(strings.ToLower(currency)),
		PaymentMethod:      stripe.String(testPaymentMethod),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Confirm:            stripe.Bool(true),
		Description:        stripe.String("Welcome credit"),
	}
	params.AddExtra("transfer_data[destination]", p.AccountID)

	var pi *stripe.PaymentIntent
	err := g.guard.call(ctx, "create_test_payment", func(ctx context.Context) error {
		var err error
		pi, err = g.client.V1PaymentIntents.Create(ctx, params)
		return err
	})
	if err != nil {
		return "", err
	}
	return pi.ID, nil
}

var _ connect.Gateway = (*Gateway)(nil)
