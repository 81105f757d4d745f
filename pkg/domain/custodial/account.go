// Package custodial holds the custodial account model: the per-user account
// record, the profile fields the account flow touches, the status state
// machine and the input normalisation rules applied before anything is sent
// to the payments platform.
package custodial

import "time"

// Status is the coarse verification status of a custodial account.
type Status string

const (
	StatusPending    Status = "pending"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
	StatusRestricted Status = "restricted"
)

const (
	BusinessTypeIndividual = "individual"
	AccountKindCustom      = "custom"
)

// AccountRecord is the local mirror of a user's custodial account.
// There is at most one per user.
type AccountRecord struct {
	UserID            string
	ExternalAccountID string
	Country           string
	BusinessType      string
	AccountKind       string
	Status            Status
	ChargesEnabled    bool
	PayoutsEnabled    bool
	DetailsSubmitted  bool
	Requirements      map[string]any
	Capabilities      map[string]any
	CardIssuingActive bool
	CardholderID      string
	VirtualCardID     string
	ExternalBankLast4 string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// HasExternalAccount reports whether the platform account has been created.
func (r *AccountRecord) HasExternalAccount() bool {
	return r != nil && r.ExternalAccountID != ""
}

func (r *AccountRecord) HasCardholder() bool {
	return r != nil && r.CardholderID != ""
}

func (r *AccountRecord) HasVirtualCard() bool {
	return r != nil && r.VirtualCardID != ""
}

// AccountUpdate is a partial update of an AccountRecord. Nil fields are left untouched.
type AccountUpdate struct {
	Status            *Status
	ChargesEnabled    *bool
	PayoutsEnabled    *bool
	DetailsSubmitted  *bool
	Requirements      map[string]any
	Capabilities      map[string]any
	CardIssuingActive *bool
	CardholderID      *string
	VirtualCardID     *string
	ExternalBankLast4 *string
}

// IsEmpty reports whether the update carries no field.
func (u AccountUpdate) IsEmpty() bool {
	return u.Status == nil &&
		u.ChargesEnabled == nil &&
		u.PayoutsEnabled == nil &&
		u.DetailsSubmitted == nil &&
		u.Requirements == nil &&
		u.Capabilities == nil &&
		u.CardIssuingActive == nil &&
		u.CardholderID == nil &&
		u.VirtualCardID == nil &&
		u.ExternalBankLast4 == nil
}

// Apply returns a copy of r with u applied.
func (u AccountUpdate) Apply(r AccountRecord) AccountRecord {
	if u.Status != nil {
		r.Status = *u.Status
	}
	if u.ChargesEnabled != nil {
		r.ChargesEnabled = *u.ChargesEnabled
	}
	if u.PayoutsEnabled != nil {
		r.PayoutsEnabled = *u.PayoutsEnabled
	}
	if u.DetailsSubmitted != nil {
		r.DetailsSubmitted = *u.DetailsSubmitted
	}
	if u.Requirements != nil {
		r.Requirements = u.Requirements
	}
	if u.Capabilities != nil {
		r.Capabilities = u.Capabilities
	}
	if u.CardIssuingActive != nil {
		r.CardIssuingActive = *u.CardIssuingActive
	}
	if u.CardholderID != nil {
		r.CardholderID = *u.CardholderID
	}
	if u.VirtualCardID != nil {
		r.VirtualCardID = *u.VirtualCardID
	}
	if u.ExternalBankLast4 != nil {
		r.ExternalBankLast4 = *u.ExternalBankLast4
	}
	return r
}
