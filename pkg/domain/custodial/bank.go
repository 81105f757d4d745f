package custodial

import "strings"

// Usable reports whether the bank details are complete enough to attach as
// an external account, and returns the normalised values.
func (b *BankDetails) Usable() (routing, account, holder string, ok bool) {
	if b == nil {
		return "", "", "", false
	}
	routing = digitsOnly(b.RoutingNumber)
	account = digitsOnly(b.AccountNumber)
	holder = strings.TrimSpace(b.HolderName)
	ok = len(routing) == 9 && len(account) >= 4 && holder != ""
	return routing, account, holder, ok
}

// Last4 returns the last four digits of the account number.
func Last4(account string) string {
	if len(account) <= 4 {
		return account
	}
	return account[len(account)-4:]
}
