package custodial

import "strings"

// State is the tagged lifecycle position of a user's custodial account.
// CardIssuingActive and VirtualCardID are layered on top as flags.
type State string

const (
	StateNoAccount  State = "no_account"
	StatePending    State = "pending"
	StateApproved   State = "approved"
	StateRestricted State = "restricted"
	StateRejected   State = "rejected"
)

// CapabilityActive is the platform's status string for an enabled capability.
const CapabilityActive = "active"

// PlatformAccount is the payments platform's view of a connected account,
// either freshly retrieved or pushed through a webhook.
type PlatformAccount struct {
	ID               string
	ChargesEnabled   bool
	PayoutsEnabled   bool
	DetailsSubmitted bool
	Requirements     map[string]any
	Capabilities     map[string]any
	// CardIssuing is the card_issuing capability status, empty when the
	// capability is not present on the payload.
	CardIssuing    string
	DisabledReason string
	PastDue        []string
	Metadata       map[string]string
}

// StateOf reports the lifecycle state of rec. A nil record, or one that never
// got a platform account, is StateNoAccount.
func StateOf(rec *AccountRecord) State {
	if !rec.HasExternalAccount() {
		return StateNoAccount
	}
	switch rec.Status {
	case StatusApproved:
		return StateApproved
	case StatusRestricted:
		return StateRestricted
	case StatusRejected:
		return StateRejected
	default:
		return StatePending
	}
}

// DeriveStatus maps a platform snapshot onto the coarse local status.
func DeriveStatus(snap PlatformAccount) Status {
	reason := strings.TrimSpace(snap.DisabledReason)
	switch {
	case strings.HasPrefix(reason, "rejected."):
		return StatusRejected
	case reason != "" || len(snap.PastDue) > 0:
		return StatusRestricted
	case snap.ChargesEnabled && snap.PayoutsEnabled:
		return StatusApproved
	default:
		return StatusPending
	}
}

// Transition applies a platform snapshot to the current record and returns
// the next record. It is the only place platform payloads are interpreted;
// both status polling and webhooks go through it.
//
// Identity fields (external id, cardholder, card) are never touched.
// CardIssuingActive follows the capability when the payload carries it and
// is left alone otherwise, so a partial payload cannot reset it.
func Transition(current AccountRecord, snap PlatformAccount) AccountRecord {
	next := current
	next.ChargesEnabled = snap.ChargesEnabled
	next.PayoutsEnabled = snap.PayoutsEnabled
	next.DetailsSubmitted = snap.DetailsSubmitted
	next.Requirements = snap.Requirements
	next.Capabilities = snap.Capabilities
	if snap.CardIssuing != "" {
		next.CardIssuingActive = snap.CardIssuing == CapabilityActive
	}
	next.Status = DeriveStatus(snap)
	return next
}

// MirroredFields returns the partial update carrying only the fields
// Transition owns.
func (r AccountRecord) MirroredFields() AccountUpdate {
	status := r.Status
	charges := r.ChargesEnabled
	payouts := r.PayoutsEnabled
	submitted := r.DetailsSubmitted
	issuing := r.CardIssuingActive
	requirements := r.Requirements
	if requirements == nil {
		requirements = map[string]any{}
	}
	capabilities := r.Capabilities
	if capabilities == nil {
		capabilities = map[string]any{}
	}
	return AccountUpdate{
		Status:            &status,
		ChargesEnabled:    &charges,
		PayoutsEnabled:    &payouts,
		DetailsSubmitted:  &submitted,
		Requirements:      requirements,
		Capabilities:      capabilities,
		CardIssuingActive: &issuing,
	}
}
