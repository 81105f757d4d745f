package custodial

import (
	"context"
	"fmt"
	"strings"

	"github.com/amirasaad/giftfund/pkg/domain/custodial"
	"github.com/amirasaad/giftfund/pkg/provider/connect"
	"github.com/google/uuid"
)

type IssuingBalance struct {
	AvailableAmount int64  `json:"availableAmount"`
	Currency        string `json:"currency"`
	CanCreateCard   bool   `json:"canCreateCard"`
}

type TopUpResult struct {
	TopupID string `json:"topupId"`
	Amount  int64  `json:"amount"`
	Status  string `json:"status"`
}

type CardholderResult struct {
	CardholderID string `json:"cardholderId"`
	Existing     bool   `json:"existing"`
}

type VirtualCardResult struct {
	CardID string `json:"cardId"`
	Last4  string `json:"last4"`
	Status string `json:"status"`
}

type AuthorizationResult struct {
	AuthorizationID string `json:"authorizationId"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	Status          string `json:"status"`
	Approved        bool   `json:"approved"`
}

// GetIssuingBalance returns the live issuing balance. It is read from the
// platform on every call because it gates card creation.
func (s *Service) GetIssuingBalance(ctx context.Context, userID string) (*IssuingBalance, error) {
	rec, err := s.loadAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	bal, err := s.gateway.RetrieveIssuingBalance(ctx, rec.ExternalAccountID)
	if err != nil {
		s.logger.Error("failed to retrieve issuing balance", "method", "GetIssuingBalance", "user_id", userID, "error", err)
		return nil, err
	}
	return &IssuingBalance{
		AvailableAmount: bal.Available,
		Currency:        s.currencyOr(bal.Currency),
		CanCreateCard:   bal.Available > 0,
	}, nil
}

// TopUpIssuing funds the issuing balance with amount minor units.
func (s *Service) TopUpIssuing(ctx context.Context, userID string, amount int64) (*TopUpResult, error) {
	log := s.logger.With("method", "TopUpIssuing", "user_id", userID)
	if amount <= 0 {
		return nil, &custodial.ValidationError{Code: "amount_invalid", Field: "amount", Message: "amount must be a positive integer"}
	}
	rec, err := s.loadAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	topup, err := s.gateway.CreateTopUp(ctx, connect.TopUpParams{
		AccountID: rec.ExternalAccountID,
		Amount:    amount,
		Currency:  s.cfg.Currency,
	})
	if err != nil {
		log.Error("failed to create top-up", "amount", amount, "error", err)
		return nil, err
	}
	log.Info("💰 issuing balance topped up", "topup_id", topup.ID, "amount", topup.Amount)
	return &TopUpResult{TopupID: topup.ID, Amount: topup.Amount, Status: topup.Status}, nil
}

// CreateIssuingCardholder creates the cardholder the virtual card will be
// issued to. It returns the stored cardholder when one already exists.
func (s *Service) CreateIssuingCardholder(ctx context.Context, userID string, details custodial.HolderDetails) (*CardholderResult, error) {
	log := s.logger.With("method", "CreateIssuingCardholder", "user_id", userID)

	unlock, err := s.lock(ctx, cardLockKey(userID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	rec, err := s.loadAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rec.HasCardholder() {
		return &CardholderResult{CardholderID: rec.CardholderID, Existing: true}, nil
	}

	if details.Billing.Country == "" {
		details.Billing.Country = rec.Country
	}
	holder, err := s.gateway.CreateCardholder(ctx, connect.CardholderParams{
		UserID:    userID,
		AccountID: rec.ExternalAccountID,
		Details:   details,
	})
	if err != nil {
		log.Error("failed to create cardholder", "error", err)
		return nil, err
	}
	id := holder.ID
	if err := s.accounts.Update(ctx, userID, custodial.AccountUpdate{CardholderID: &id}); err != nil {
		return nil, fmt.Errorf("save cardholder: %w", err)
	}
	log.Info("cardholder created", "cardholder_id", id)
	return &CardholderResult{CardholderID: id}, nil
}

// CreateVirtualCard issues the user's one virtual card. It is deliberately
// not idempotent: a second call fails with custodial.ErrCardExists.
// Preconditions are checked in order and the whole operation holds the
// per-user card lock.
func (s *Service) CreateVirtualCard(ctx context.Context, userID string, opts custodial.CardOptions) (*VirtualCardResult, error) {
	log := s.logger.With("method", "CreateVirtualCard", "user_id", userID)

	unlock, err := s.lock(ctx, cardLockKey(userID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	rec, err := s.loadAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rec.HasVirtualCard() {
		return nil, custodial.ErrCardExists
	}
	if !rec.HasCardholder() {
		return nil, custodial.ErrCardholderRequired
	}
	bal, err := s.gateway.RetrieveIssuingBalance(ctx, rec.ExternalAccountID)
	if err != nil {
		return nil, err
	}
	if bal.Available <= 0 {
		log.Info("refusing card creation on empty issuing balance")
		return nil, custodial.ErrInsufficientFunds
	}

	card, err := s.gateway.CreateCard(ctx, connect.CardParams{
		UserID:                userID,
		AccountID:             rec.ExternalAccountID,
		CardholderID:          rec.CardholderID,
		Currency:              s.currencyOr(opts.Currency),
		SpendingLimitAmount:   opts.SpendingLimitAmount,
		SpendingLimitInterval: opts.SpendingLimitInterval,
	})
	if err != nil {
		log.Error("❌ failed to create virtual card", "error", err)
		return nil, err
	}
	cardID := card.ID
	if err := s.accounts.Update(ctx, userID, custodial.AccountUpdate{VirtualCardID: &cardID}); err != nil {
		log.Error("card issued but not recorded", "card_id", cardID, "error", err)
		return nil, fmt.Errorf("save virtual card: %w", err)
	}
	log.Info("💳 virtual card issued", "card_id", cardID)

	s.runBestEffort(ctx, log, "mirror_profile_card", func(ctx context.Context) error {
		return s.profiles.SetOrMerge(ctx, userID, custodial.ProfileUpdate{VirtualCardID: &cardID})
	})
	s.emit(ctx, log, custodial.CardIssued{
		ID:                uuid.New(),
		UserID:            userID,
		ExternalAccountID: rec.ExternalAccountID,
		CardID:            cardID,
		Last4:             card.Last4,
		Timestamp:         s.now().UTC(),
	})
	return &VirtualCardResult{CardID: cardID, Last4: card.Last4, Status: card.Status}, nil
}

// CreateTestAuthorization simulates a card authorization. Test mode only.
func (s *Service) CreateTestAuthorization(ctx context.Context, userID string, amount int64) (*AuthorizationResult, error) {
	if !s.cfg.Mode.IsTest() {
		return nil, custodial.ErrTestModeOnly
	}
	rec, err := s.loadAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !rec.HasVirtualCard() {
		return nil, custodial.ErrNoCard
	}
	if amount <= 0 {
		amount = s.cfg.TestAuthorizationAmount
	}
	auth, err := s.gateway.CreateTestAuthorization(ctx, connect.TestAuthorizationParams{
		AccountID: rec.ExternalAccountID,
		CardID:    rec.VirtualCardID,
		Amount:    amount,
		Currency:  s.cfg.Currency,
	})
	if err != nil {
		return nil, err
	}
	return &AuthorizationResult{
		AuthorizationID: auth.ID,
		Amount:          auth.Amount,
		Currency:        auth.Currency,
		Status:          auth.Status,
		Approved:        auth.Approved,
	}, nil
}

func (s *Service) currencyOr(c string) string {
	if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
		return c
	}
	return s.cfg.Currency
}
