package custodial

import "time"

type Address struct {
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
}

type BankDetails struct {
	RoutingNumber string
	AccountNumber string
	HolderName    string
}

// PersonalInfo is the identity and banking data collected during custodial
// account setup.
type PersonalInfo struct {
	FirstName   string
	LastName    string
	Email       string
	Phone       string
	DateOfBirth string // MM/DD/YYYY as typed by the user
	Address     Address
	SSNLast4    string
	Bank        *BankDetails
	// AttachTestDocument is honoured in test mode only.
	AttachTestDocument bool
	// Terms of service acceptance, recorded on the account when present.
	TOSAcceptedIP string
	TOSAcceptedAt time.Time
}

// HolderDetails describes the person a card is issued to.
type HolderDetails struct {
	Name    string
	Email   string
	Phone   string
	Billing Address
}

type CardOptions struct {
	Currency              string
	SpendingLimitAmount   int64
	SpendingLimitInterval string
}
