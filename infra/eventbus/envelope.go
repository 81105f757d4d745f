package eventbus

import (
	"encoding/json"

	"github.com/amirasaad/giftfund/pkg/domain/custodial"
	"github.com/amirasaad/giftfund/pkg/eventbus"
)

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// CustodialEventTypes maps every custodial event type to a constructor used
// when decoding stream payloads.
func CustodialEventTypes() map[string]func() eventbus.Event {
	return map[string]func() eventbus.Event{
		custodial.EventAccountCreated:       func() eventbus.Event { return &custodial.AccountCreated{} },
		custodial.EventCardIssuingActivated: func() eventbus.Event { return &custodial.CardIssuingActivated{} },
		custodial.EventCardIssued:           func() eventbus.Event { return &custodial.CardIssued{} },
	}
}
