package custodial

import (
	"time"

	"github.com/amirasaad/giftfund/pkg/domain/custodial"
)

// Account is the custodial_accounts row.
type Account struct {
	UserID            string         `gorm:"primaryKey;size:128"`
	ExternalAccountID string         `gorm:"size:64;index"`
	Country           string         `gorm:"size:2"`
	BusinessType      string         `gorm:"size:32"`
	AccountKind       string         `gorm:"size:32"`
	Status            string         `gorm:"size:16;not null;default:pending"`
	ChargesEnabled    bool           `gorm:"not null;default:false"`
	PayoutsEnabled    bool           `gorm:"not null;default:false"`
	DetailsSubmitted  bool           `gorm:"not null;default:false"`
	Requirements      map[string]any `gorm:"serializer:json"`
	Capabilities      map[string]any `gorm:"serializer:json"`
	CardIssuingActive bool           `gorm:"not null;default:false"`
	CardholderID      string         `gorm:"size:64"`
	VirtualCardID     string         `gorm:"size:64"`
	ExternalBankLast4 string         `gorm:"column:external_bank_last4;size:4"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (Account) TableName() string {
	return "custodial_accounts"
}

// Profile is the profiles row.
type Profile struct {
	UserID              string `gorm:"primaryKey;size:128"`
	DisplayName         string `gorm:"size:255"`
	Email               string `gorm:"size:255"`
	ProfileSlug         string `gorm:"size:160"`
	StripeAccountID     string `gorm:"size:64"`
	StripeAccountStatus string `gorm:"size:16"`
	VirtualCardID       string `gorm:"size:64"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (Profile) TableName() string {
	return "profiles"
}

func mapAccountToDomain(m *Account) *custodial.AccountRecord {
	return &custodial.AccountRecord{
		UserID:            m.UserID,
		ExternalAccountID: m.ExternalAccountID,
		Country:           m.Country,
		BusinessType:      m.BusinessType,
		AccountKind:       m.AccountKind,
		Status:            custodial.Status(m.Status),
		ChargesEnabled:    m.ChargesEnabled,
		PayoutsEnabled:    m.PayoutsEnabled,
		DetailsSubmitted:  m.DetailsSubmitted,
		Requirements:      m.Requirements,
		Capabilities:      m.Capabilities,
		CardIssuingActive: m.CardIssuingActive,
		CardholderID:      m.CardholderID,
		VirtualCardID:     m.VirtualCardID,
		ExternalBankLast4: m.ExternalBankLast4,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func mapAccountToModel(r *custodial.AccountRecord) *Account {
	requirements := r.Requirements
	if requirements == nil {
		requirements = map[string]any{}
	}
	capabilities := r.Capabilities
	if capabilities == nil {
		capabilities = map[string]any{}
	}
	status := r.Status
	if status == "" {
		status = custodial.StatusPending
	}
	return &Account{
		UserID:            r.UserID,
		ExternalAccountID: r.ExternalAccountID,
		Country:           r.Country,
		BusinessType:      r.BusinessType,
		AccountKind:       r.AccountKind,
		Status:            string(status),
		ChargesEnabled:    r.ChargesEnabled,
		PayoutsEnabled:    r.PayoutsEnabled,
		DetailsSubmitted:  r.DetailsSubmitted,
		Requirements:      requirements,
		Capabilities:      capabilities,
		CardIssuingActive: r.CardIssuingActive,
		CardholderID:      r.CardholderID,
		VirtualCardID:     r.VirtualCardID,
		ExternalBankLast4: r.ExternalBankLast4,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

func mapProfileToDomain(m *Profile) *custodial.ProfileRecord {
	return &custodial.ProfileRecord{
		UserID:              m.UserID,
		DisplayName:         m.DisplayName,
		Email:               m.Email,
		ProfileSlug:         m.ProfileSlug,
		StripeAccountID:     m.StripeAccountID,
		StripeAccountStatus: m.StripeAccountStatus,
		VirtualCardID:       m.VirtualCardID,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}
