package custodial

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventAccountCreated       = "custodial.account_created"
	EventCardIssuingActivated = "custodial.card_issuing_activated"
	EventCardIssued           = "custodial.card_issued"
)

// AccountCreated is emitted once a platform account exists and is recorded.
type AccountCreated struct {
	ID                uuid.UUID `json:"id"`
	UserID            string    `json:"user_id"`
	ExternalAccountID string    `json:"external_account_id"`
	Timestamp         time.Time `json:"timestamp"`
}

func (e AccountCreated) Type() string { return EventAccountCreated }

// CardIssuingActivated is emitted when the card issuing capability turns
// active for an account that did not have it.
type CardIssuingActivated struct {
	ID                uuid.UUID `json:"id"`
	UserID            string    `json:"user_id"`
	ExternalAccountID string    `json:"external_account_id"`
	Timestamp         time.Time `json:"timestamp"`
}

func (e CardIssuingActivated) Type() string { return EventCardIssuingActivated }

type CardIssued struct {
	ID                uuid.UUID `json:"id"`
	UserID            string    `json:"user_id"`
	ExternalAccountID string    `json:"external_account_id"`
	CardID            string    `json:"card_id"`
	Last4             string    `json:"last4"`
	Timestamp         time.Time `json:"timestamp"`
}

func (e CardIssued) Type() string { return EventCardIssued }
