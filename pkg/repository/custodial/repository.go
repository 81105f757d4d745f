// Package custodial declares the persistence ports of the custodial account
// flow. Absent records are reported as (nil, nil).
package custodial

import (
	"context"

	"github.com/amirasaad/giftfund/pkg/domain/custodial"
)

// AccountRepository stores one custodial account record per user.
type AccountRepository interface {
	Get(ctx context.Context, userID string) (*custodial.AccountRecord, error)
	// GetByExternalID is the reverse lookup used by webhooks.
	GetByExternalID(ctx context.Context, externalAccountID string) (*custodial.AccountRecord, error)
	// Save creates the record or overwrites every field of the existing one.
	Save(ctx context.Context, rec *custodial.AccountRecord) error
	// Update writes only the non-nil fields of upd. It returns
	// domain.ErrNotFound when the record does not exist.
	Update(ctx context.Context, userID string, upd custodial.AccountUpdate) error
}

// ProfileRepository stores the profile attributes the account flow touches.
type ProfileRepository interface {
	Get(ctx context.Context, userID string) (*custodial.ProfileRecord, error)
	// SetOrMerge creates the profile when absent and otherwise applies upd.
	SetOrMerge(ctx context.Context, userID string, upd custodial.ProfileUpdate) error
	Update(ctx context.Context, userID string, upd custodial.ProfileUpdate) error
	// SetSlugIfAbsent stores slug unless the profile already has one, and
	// returns whichever slug is stored afterwards.
	SetSlugIfAbsent(ctx context.Context, userID, slug string) (string, error)
}
