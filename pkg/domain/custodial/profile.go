package custodial

import "time"

// ProfileRecord is the subset of the user profile the account flow reads or
// denormalises into.
type ProfileRecord struct {
	UserID              string
	DisplayName         string
	Email               string
	ProfileSlug         string
	StripeAccountID     string
	StripeAccountStatus string
	VirtualCardID       string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// ProfileUpdate is a partial profile update. Nil fields are left untouched.
type ProfileUpdate struct {
	DisplayName         *string
	Email               *string
	StripeAccountID     *string
	StripeAccountStatus *string
	VirtualCardID       *string
}
