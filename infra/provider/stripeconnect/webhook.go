package stripeconnect

import (
	"encoding/json"
	"fmt"

	"github.com/amirasaad/giftfund/pkg/provider/connect"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// ParseWebhookEvent verifies the Stripe-Signature header and decodes the
// parts of the event the custodial flow consumes.
func (g *Gateway) ParseWebhookEvent(payload []byte, signature string) (*connect.WebhookEvent, error) {
	return ParseSignedEvent(payload, signature, g.signingSecret)
}

// ParseSignedEvent verifies payload against secret and decodes it.
func ParseSignedEvent(payload []byte, signature, secret string) (*connect.WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", connect.ErrInvalidSignature, err)
	}
	return decodeEvent(event)
}

func decodeEvent(event stripe.Event) (*connect.WebhookEvent, error) {
	out := &connect.WebhookEvent{
		ID:        event.ID,
		Type:      string(event.Type),
		AccountID: event.Account,
	}
	if event.Data == nil {
		return out, nil
	}
	switch out.Type {
	case connect.EventAccountUpdated:
		acct, err := decodeAccount(event.Data.Raw)
		if err != nil {
			return nil, err
		}
		out.Account = acct
		if out.AccountID == "" {
			out.AccountID = acct.ID
		}
	case connect.EventCapabilityUpdated:
		if out.AccountID == "" {
			var capability struct {
				Account json.RawMessage `json:"account"`
			}
			if err := json.Unmarshal(event.Data.Raw, &capability); err != nil {
				return nil, fmt.Errorf("decode capability: %w", err)
			}
			out.AccountID = expandableID(capability.Account)
		}
	}
	return out, nil
}

// expandableID reads a field that is either an id string or an expanded
// object with an id.
func expandableID(raw json.RawMessage) string {
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.ID
	}
	return ""
}
