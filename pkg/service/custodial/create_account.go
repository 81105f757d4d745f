package custodial

import (
	"context"
	"fmt"
	"strings"

	"github.com/amirasaad/giftfund/pkg/domain/custodial"
	"github.com/amirasaad/giftfund/pkg/provider/connect"
	"github.com/google/uuid"
)

// CreateAccountResult is returned by CreateCustodialAccount.
type CreateAccountResult struct {
	ExternalAccountID string `json:"externalAccountId"`
	Success           bool   `json:"success"`
	Existing          bool   `json:"existing"`
}

// CreateCustodialAccount creates the user's custom individual account on the
// payments platform and records it locally. A user that already has an
// account gets it back with Existing set and nothing else happens.
//
// Once the platform account exists every further step is best-effort,
// except persisting the record itself.
func (s *Service) CreateCustodialAccount(ctx context.Context, userID string, info custodial.PersonalInfo) (*CreateAccountResult, error) {
	log := s.logger.With("method", "CreateCustodialAccount", "user_id", userID)

	unlock, err := s.lock(ctx, createLockKey(userID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	existing, err := s.accounts.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	if existing.HasExternalAccount() {
		log.Info("custodial account already exists", "account_id", existing.ExternalAccountID)
		return &CreateAccountResult{ExternalAccountID: existing.ExternalAccountID, Success: true, Existing: true}, nil
	}

	country := strings.ToUpper(strings.TrimSpace(info.Address.Country))
	if country == "" {
		country = s.cfg.Country
	}
	postal, err := custodial.NormalizePostalCode(country, info.Address.PostalCode)
	if err != nil {
		log.Info("rejected personal info", "error", err)
		return nil, err
	}

	slug, err := s.resolveProfileSlug(ctx, userID, info)
	if err != nil {
		return nil, err
	}

	phone := info.Phone
	if s.cfg.Mode.IsTest() {
		phone = testPhone
	}
	address := info.Address
	address.Country = country
	address.PostalCode = postal

	acct, err := s.gateway.CreateAccount(ctx, connect.CreateAccountParams{
		UserID:             userID,
		Country:            country,
		Email:              info.Email,
		FirstName:          info.FirstName,
		LastName:           info.LastName,
		Phone:              phone,
		DOB:                custodial.ParseDOB(info.DateOfBirth, s.now()),
		Address:            address,
		SSNLast4:           info.SSNLast4,
		BusinessProfileURL: custodial.JoinURL(s.cfg.PublicBaseURL, s.cfg.ProfilePath, slug),
		TOSAcceptedIP:      info.TOSAcceptedIP,
		TOSAcceptedAt:      info.TOSAcceptedAt,
	})
	if err != nil {
		log.Error("❌ failed to create platform account", "error", err)
		return nil, err
	}
	accountID := acct.ID
	log = log.With("account_id", accountID)
	log.Info("✅ platform account created")

	if info.AttachTestDocument && s.cfg.Mode.IsTest() {
		s.runBestEffort(ctx, log, "attach_test_document", func(ctx context.Context) error {
			return s.gateway.AttachTestDocument(ctx, accountID)
		})
	}
	if s.cfg.Mode.IsTest() {
		s.runBestEffort(ctx, log, "attach_test_tax_id", func(ctx context.Context) error {
			token, err := s.gateway.CreateAccountToken(ctx, connect.AccountTokenParams{IDNumber: testTaxID})
			if err != nil {
				return err
			}
			return s.gateway.AttachAccountToken(ctx, accountID, token)
		})
	}

	var bankLast4 string
	if routing, number, holder, ok := info.Bank.Usable(); ok {
		s.runBestEffort(ctx, log, "attach_bank_account", func(ctx context.Context) error {
			bank, err := s.gateway.CreateExternalBankAccount(ctx, connect.ExternalBankAccountParams{
				AccountID:     accountID,
				Country:       country,
				Currency:      s.cfg.Currency,
				RoutingNumber: routing,
				AccountNumber: number,
				HolderName:    holder,
			})
			if err != nil {
				return err
			}
			bankLast4 = bank.Last4
			if bankLast4 == "" {
				bankLast4 = custodial.Last4(number)
			}
			return nil
		})
	}

	now := s.now().UTC()
	rec := custodial.AccountRecord{
		UserID:            userID,
		ExternalAccountID: accountID,
		Country:           country,
		BusinessType:      custodial.BusinessTypeIndividual,
		AccountKind:       custodial.AccountKindCustom,
		Status:            custodial.StatusPending,
		ChargesEnabled:    acct.ChargesEnabled,
		PayoutsEnabled:    acct.PayoutsEnabled,
		DetailsSubmitted:  acct.DetailsSubmitted,
		Requirements:      acct.Requirements,
		Capabilities:      acct.Capabilities,
		CardIssuingActive: false,
		ExternalBankLast4: bankLast4,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.accounts.Save(ctx, &rec); err != nil {
		// The platform call carries an idempotency key, so a client retry
		// gets the same account back instead of a second one.
		log.Error("❌ failed to persist account record", "error", err)
		return nil, fmt.Errorf("save account: %w", err)
	}

	s.runBestEffort(ctx, log, "mirror_profile", func(ctx context.Context) error {
		status := string(custodial.StatusPending)
		return s.profiles.SetOrMerge(ctx, userID, custodial.ProfileUpdate{
			StripeAccountID:     &accountID,
			StripeAccountStatus: &status,
		})
	})

	if s.cfg.Mode.IsTest() && s.cfg.WelcomeCreditAmount > 0 {
		s.runBestEffort(ctx, log, "welcome_credit", func(ctx context.Context) error {
			_, err := s.gateway.CreateTestPayment(ctx, connect.TestPaymentParams{
				AccountID: accountID,
				Amount:    s.cfg.WelcomeCreditAmount,
				Currency:  s.cfg.Currency,
			})
			return err
		})
	}

	s.emit(ctx, log, custodial.AccountCreated{
		ID:                uuid.New(),
		UserID:            userID,
		ExternalAccountID: accountID,
		Timestamp:         now,
	})

	return &CreateAccountResult{ExternalAccountID: accountID, Success: true}, nil
}

// ResolveProfileSlug returns the user's profile slug, generating and storing
// it on first use. A stored slug always wins, even when the display name has
// changed since.
func (s *Service) ResolveProfileSlug(ctx context.Context, userID string) (string, error) {
	return s.resolveProfileSlug(ctx, userID, custodial.PersonalInfo{})
}

func (s *Service) resolveProfileSlug(ctx context.Context, userID string, info custodial.PersonalInfo) (string, error) {
	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load profile: %w", err)
	}
	if profile != nil && profile.ProfileSlug != "" {
		return profile.ProfileSlug, nil
	}

	name := strings.TrimSpace(info.FirstName + " " + info.LastName)
	if profile != nil && strings.TrimSpace(profile.DisplayName) != "" {
		name = profile.DisplayName
	}
	stored, err := s.profiles.SetSlugIfAbsent(ctx, userID, custodial.Slugify(name, userID))
	if err != nil {
		return "", fmt.Errorf("store profile slug: %w", err)
	}
	return stored, nil
}
