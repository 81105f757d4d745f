package app

import (
	"context"

	domain "github.com/amirasaad/giftfund/pkg/domain/custodial"
	"github.com/amirasaad/giftfund/pkg/eventbus"
)

// setupEventBus registers the lifecycle consumers. Each event is logged for
// audit and counted.
func (a *App) setupEventBus() {
	bus := a.Deps.EventBus
	if bus == nil {
		return
	}
	for _, eventType := range []string{
		domain.EventAccountCreated,
		domain.EventCardIssuingActivated,
		domain.EventCardIssued,
	} {
		bus.Register(eventType, a.auditHandler())
	}
}

func (a *App) auditHandler() eventbus.HandlerFunc {
	logger := a.Deps.Logger.With("handler", "custodial_audit")
	return func(_ context.Context, e eventbus.Event) error {
		// The redis and kafka buses decode into pointers.
		switch ev := e.(type) {
		case *domain.AccountCreated:
			e = *ev
		case *domain.CardIssuingActivated:
			e = *ev
		case *domain.CardIssued:
			e = *ev
		}
		switch ev := e.(type) {
		case domain.AccountCreated:
			logger.Info("📒 custodial account created", "user_id", ev.UserID, "account_id", ev.ExternalAccountID)
		case domain.CardIssuingActivated:
			logger.Info("📒 card issuing activated", "user_id", ev.UserID, "account_id", ev.ExternalAccountID)
		case domain.CardIssued:
			logger.Info("📒 virtual card issued", "user_id", ev.UserID, "card_id", ev.CardID, "last4", ev.Last4)
		default:
			logger.Warn("unexpected event", "type", e.Type())
		}
		if a.Deps.Metrics != nil {
			a.Deps.Metrics.ObserveEvent(e.Type())
		}
		return nil
	}
}
