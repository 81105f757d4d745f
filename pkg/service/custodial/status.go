package custodial

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/amirasaad/giftfund/pkg/domain/custodial"
	"github.com/google/uuid"
)

const metadataUserID = "user_id"

// AccountStatusSnapshot is what clients poll to decide which setup step to
// show next.
type AccountStatusSnapshot struct {
	Exists            bool             `json:"exists"`
	ExternalAccountID string           `json:"externalAccountId,omitempty"`
	Status            custodial.Status `json:"status,omitempty"`
	State             custodial.State  `json:"state"`
	ChargesEnabled    bool             `json:"chargesEnabled"`
	PayoutsEnabled    bool             `json:"payoutsEnabled"`
	DetailsSubmitted  bool             `json:"detailsSubmitted"`
	Requirements      map[string]any   `json:"requirements,omitempty"`
	Capabilities      map[string]any   `json:"capabilities,omitempty"`
	CardIssuingActive bool             `json:"cardIssuingActive"`
	CardholderID      string           `json:"cardholderId,omitempty"`
	HasVirtualCard    bool             `json:"hasVirtualCard"`
}

func snapshotOf(rec *custodial.AccountRecord) *AccountStatusSnapshot {
	if !rec.HasExternalAccount() {
		return &AccountStatusSnapshot{Exists: false, State: custodial.StateNoAccount}
	}
	return &AccountStatusSnapshot{
		Exists:            true,
		ExternalAccountID: rec.ExternalAccountID,
		Status:            rec.Status,
		State:             custodial.StateOf(rec),
		ChargesEnabled:    rec.ChargesEnabled,
		PayoutsEnabled:    rec.PayoutsEnabled,
		DetailsSubmitted:  rec.DetailsSubmitted,
		Requirements:      rec.Requirements,
		Capabilities:      rec.Capabilities,
		CardIssuingActive: rec.CardIssuingActive,
		CardholderID:      rec.CardholderID,
		HasVirtualCard:    rec.HasVirtualCard(),
	}
}

// SynchronizeAccountStatus reads the account from the platform, mirrors it
// into the local record and returns the result. Users without an account get
// an absent snapshot, not an error.
//
// Concurrent calls for the same user share one platform read; nothing is
// cached between calls. The shared read is detached from the caller that
// started it, so one caller giving up does not fail the others.
func (s *Service) SynchronizeAccountStatus(ctx context.Context, userID string) (*AccountStatusSnapshot, error) {
	ch := s.syncGroup.DoChan(userID, func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.SyncTimeout)
		defer cancel()
		return s.synchronize(shared, userID)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		snap := *res.Val.(*AccountStatusSnapshot)
		return &snap, nil
	}
}

func (s *Service) synchronize(ctx context.Context, userID string) (*AccountStatusSnapshot, error) {
	log := s.logger.With("method", "SynchronizeAccountStatus", "user_id", userID)

	rec, err := s.accounts.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	if !rec.HasExternalAccount() {
		return snapshotOf(nil), nil
	}

	acct, err := s.gateway.RetrieveAccount(ctx, rec.ExternalAccountID)
	if err != nil {
		log.Error("failed to retrieve platform account", "account_id", rec.ExternalAccountID, "error", err)
		return nil, err
	}

	if acct.Metadata[metadataUserID] == "" {
		s.runBestEffort(ctx, log, "backfill_metadata", func(ctx context.Context) error {
			return s.gateway.UpdateAccountMetadata(ctx, rec.ExternalAccountID, map[string]string{metadataUserID: userID})
		})
	}

	next, err := s.applySnapshot(ctx, log, *rec, *acct)
	if err != nil {
		return nil, err
	}
	return snapshotOf(&next), nil
}

// applySnapshot runs the transition, persists the mirrored fields and
// handles the card issuing activation side effects.
func (s *Service) applySnapshot(ctx context.Context, log *slog.Logger, current custodial.AccountRecord, acct custodial.PlatformAccount) (custodial.AccountRecord, error) {
	next := custodial.Transition(current, acct)
	if err := s.accounts.Update(ctx, current.UserID, next.MirroredFields()); err != nil {
		log.Error("failed to persist account status", "error", err)
		return current, fmt.Errorf("update account: %w", err)
	}
	log.Debug("account status mirrored", "status", next.Status, "card_issuing_active", next.CardIssuingActive)

	if !current.CardIssuingActive && next.CardIssuingActive {
		log.Info("🎉 card issuing activated", "account_id", current.ExternalAccountID)
		s.runBestEffort(ctx, log, "promote_profile_status", func(ctx context.Context) error {
			status := string(custodial.StatusApproved)
			return s.profiles.SetOrMerge(ctx, current.UserID, custodial.ProfileUpdate{StripeAccountStatus: &status})
		})
		s.emit(ctx, log, custodial.CardIssuingActivated{
			ID:                uuid.New(),
			UserID:            current.UserID,
			ExternalAccountID: current.ExternalAccountID,
			Timestamp:         s.now().UTC(),
		})
	}
	return next, nil
}
