package custodial

import (
	"context"
	"time"

	"github.com/amirasaad/giftfund/pkg/domain/custodial"
	"github.com/amirasaad/giftfund/pkg/provider/connect"
)

type OnboardingLinkResult struct {
	ExternalAccountID string    `json:"externalAccountId"`
	URL               string    `json:"url"`
	ExpiresAt         time.Time `json:"expiresAt,omitzero"`
}

// CreateOnboardingLink mints a single-use hosted onboarding link for the
// user's account.
func (s *Service) CreateOnboardingLink(ctx context.Context, userID string) (*OnboardingLinkResult, error) {
	log := s.logger.With("method", "CreateOnboardingLink", "user_id", userID)

	rec, err := s.loadAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	link, err := s.gateway.CreateOnboardingLink(ctx, connect.OnboardingLinkParams{
		AccountID:  rec.ExternalAccountID,
		ReturnURL:  custodial.JoinURL(s.cfg.PublicBaseURL, s.cfg.OnboardingReturnPath),
		RefreshURL: custodial.JoinURL(s.cfg.PublicBaseURL, s.cfg.OnboardingRefreshPath),
	})
	if err != nil {
		log.Error("failed to create onboarding link", "error", err)
		return nil, err
	}
	log.Info("onboarding link created", "account_id", rec.ExternalAccountID)
	return &OnboardingLinkResult{
		ExternalAccountID: rec.ExternalAccountID,
		URL:               link.URL,
		ExpiresAt:         link.ExpiresAt,
	}, nil
}
