package custodial

import (
	"time"

	"github.com/amirasaad/giftfund/pkg/domain/custodial"
	"github.com/shopspring/decimal"
)

// minorUnitExponent converts minor units (cents) into display amounts.
const minorUnitExponent = -2

type AddressRequest struct {
	Line1   string `json:"line1" validate:"required,max=200"`
	Line2   string `json:"line2" validate:"max=200"`
	City    string `json:"city" validate:"required,max=100"`
	State   string `json:"state" validate:"max=100"`
	ZipCode string `json:"zipCode" validate:"required,max=20"`
	Country string `json:"country" validate:"omitempty,iso3166_1_alpha2"`
}

func (a AddressRequest) toDomain() custodial.Address {
	return custodial.Address{
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.ZipCode,
		Country:    a.Country,
	}
}

type BankAccountRequest struct {
	RoutingNumber string `json:"routingNumber" validate:"required"`
	AccountNumber string `json:"accountNumber" validate:"required"`
	HolderName    string `json:"holderName" validate:"required,max=200"`
}

// CreateAccountRequest is the personal info collected by the setup form.
type CreateAccountRequest struct {
	FirstName          string              `json:"firstName" validate:"required,max=100"`
	LastName           string              `json:"lastName" validate:"required,max=100"`
	Email              string              `json:"email" validate:"required,email"`
	Phone              string              `json:"phone" validate:"max=32"`
	DateOfBirth        string              `json:"dateOfBirth" validate:"max=10"`
	Address            AddressRequest      `json:"address"`
	SSNLast4           string              `json:"ssnLast4" validate:"omitempty,len=4,numeric"`
	Bank               *BankAccountRequest `json:"bank,omitempty"`
	AttachTestDocument bool                `json:"attachTestDocument"`
	AcceptTerms        bool                `json:"acceptTerms"`
}

func (r CreateAccountRequest) toDomain(ip string, now time.Time) custodial.PersonalInfo {
	info := custodial.PersonalInfo{
		FirstName:          r.FirstName,
		LastName:           r.LastName,
		Email:              r.Email,
		Phone:              r.Phone,
		DateOfBirth:        r.DateOfBirth,
		Address:            r.Address.toDomain(),
		SSNLast4:           r.SSNLast4,
		AttachTestDocument: r.AttachTestDocument,
	}
	if r.Bank != nil {
		info.Bank = &custodial.BankDetails{
			RoutingNumber: r.Bank.RoutingNumber,
			AccountNumber: r.Bank.AccountNumber,
			HolderName:    r.Bank.HolderName,
		}
	}
	if r.AcceptTerms {
		info.TOSAcceptedIP = ip
		info.TOSAcceptedAt = now
	}
	return info
}

type TopUpRequest struct {
	// Amount in minor units.
	Amount int64 `json:"amount" validate:"required,gt=0"`
}

type CardholderRequest struct {
	Name    string         `json:"name" validate:"required,max=24"`
	Email   string         `json:"email" validate:"omitempty,email"`
	Phone   string         `json:"phone" validate:"max=32"`
	Billing AddressRequest `json:"billing"`
}

func (r CardholderRequest) toDomain() custodial.HolderDetails {
	return custodial.HolderDetails{
		Name:    r.Name,
		Email:   r.Email,
		Phone:   r.Phone,
		Billing: r.Billing.toDomain(),
	}
}

type CardRequest struct {
	Currency              string `json:"currency" validate:"omitempty,len=3,alpha"`
	SpendingLimitAmount   int64  `json:"spendingLimitAmount" validate:"gte=0"`
	SpendingLimitInterval string `json:"spendingLimitInterval" validate:"omitempty,oneof=per_authorization daily weekly monthly yearly all_time"`
}

type TestAuthorizationRequest struct {
	Amount int64 `json:"amount" validate:"gte=0"`
}

// BalanceResponse adds a display amount to the issuing balance.
type BalanceResponse struct {
	AvailableAmount  int64  `json:"availableAmount"`
	AvailableDisplay string `json:"availableDisplay"`
	Currency         string `json:"currency"`
	CanCreateCard    bool   `json:"canCreateCard"`
}

type TopUpResponse struct {
	TopupID       string `json:"topupId"`
	Amount        int64  `json:"amount"`
	AmountDisplay string `json:"amountDisplay"`
	Status        string `json:"status"`
}

func displayAmount(minor int64) string {
	return decimal.New(minor, minorUnitExponent).StringFixed(2)
}
