package custodial

import (
	"context"
	"fmt"

	"github.com/amirasaad/giftfund/pkg/domain/custodial"
	"github.com/amirasaad/giftfund/pkg/provider/connect"
)

// WebhookOutcome tells the receiver what happened to a delivered event.
type WebhookOutcome string

const (
	WebhookApplied   WebhookOutcome = "applied"
	WebhookUntracked WebhookOutcome = "untracked"
	WebhookIgnored   WebhookOutcome = "ignored"
	WebhookDuplicate WebhookOutcome = "duplicate"
)

// HandleAccountUpdated mirrors a pushed platform account into the local
// record. Accounts this system does not track are ignored.
func (s *Service) HandleAccountUpdated(ctx context.Context, acct custodial.PlatformAccount) (WebhookOutcome, error) {
	log := s.logger.With("method", "HandleAccountUpdated", "account_id", acct.ID)

	rec, err := s.accounts.GetByExternalID(ctx, acct.ID)
	if err != nil {
		return "", fmt.Errorf("lookup account: %w", err)
	}
	if rec == nil {
		log.Debug("account not tracked, ignoring")
		return WebhookUntracked, nil
	}
	log = log.With("user_id", rec.UserID)
	if _, err := s.applySnapshot(ctx, log, *rec, acct); err != nil {
		return "", err
	}
	return WebhookApplied, nil
}

// ResyncByExternalID refreshes a tracked account from the platform. Used for
// events that only name the account.
func (s *Service) ResyncByExternalID(ctx context.Context, accountID string) (WebhookOutcome, error) {
	rec, err := s.accounts.GetByExternalID(ctx, accountID)
	if err != nil {
		return "", fmt.Errorf("lookup account: %w", err)
	}
	if rec == nil {
		return WebhookUntracked, nil
	}
	if _, err := s.SynchronizeAccountStatus(ctx, rec.UserID); err != nil {
		return "", err
	}
	return WebhookApplied, nil
}

// HandleStripeWebhook verifies and dispatches a raw webhook delivery. Each
// event id is applied at most once; a failed delivery is retried on the
// next attempt.
func (s *Service) HandleStripeWebhook(ctx context.Context, payload []byte, signature string) (string, WebhookOutcome, error) {
	event, err := s.gateway.ParseWebhookEvent(payload, signature)
	if err != nil {
		return "", "", err
	}
	log := s.logger.With("method", "HandleStripeWebhook", "event_id", event.ID, "event_type", event.Type)

	outcome := WebhookIgnored
	skipped, err := s.webhooks.Do(event.ID, func() error {
		var err error
		switch event.Type {
		case connect.EventAccountUpdated:
			if event.Account == nil {
				return fmt.Errorf("%s without account payload", event.Type)
			}
			outcome, err = s.HandleAccountUpdated(ctx, *event.Account)
		case connect.EventCapabilityUpdated:
			if event.AccountID == "" {
				return nil
			}
			outcome, err = s.ResyncByExternalID(ctx, event.AccountID)
		default:
			outcome = WebhookIgnored
		}
		return err
	})
	if err != nil {
		log.Error("webhook processing failed", "error", err)
		return event.Type, "", err
	}
	if skipped {
		log.Debug("duplicate delivery")
		return event.Type, WebhookDuplicate, nil
	}
	log.Info("webhook processed", "outcome", outcome)
	return event.Type, outcome, nil
}
