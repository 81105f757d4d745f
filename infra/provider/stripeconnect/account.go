package stripeconnect

import (
	"encoding/json"
	"fmt"

	"github.com/amirasaad/giftfund/pkg/domain/custodial"
)

// accountWire is the subset of the platform account object the service
// mirrors. Requirements and capabilities are kept verbatim.
type accountWire struct {
	ID               string            `json:"id"`
	ChargesEnabled   bool              `json:"charges_enabled"`
	PayoutsEnabled   bool              `json:"payouts_enabled"`
	DetailsSubmitted bool              `json:"details_submitted"`
	Requirements     map[string]any    `json:"requirements"`
	Capabilities     map[string]any    `json:"capabilities"`
	Metadata         map[string]string `json:"metadata"`
}

// decodeAccount reads a JSON account object (API response or webhook
// data.object) into a PlatformAccount.
func decodeAccount(raw []byte) (*custodial.PlatformAccount, error) {
	var w accountWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("decode account: %w", err)
	}
	if w.ID == "" {
		return nil, fmt.Errorf("decode account: missing id")
	}
	acct := &custodial.PlatformAccount{
		ID:               w.ID,
		ChargesEnabled:   w.ChargesEnabled,
		PayoutsEnabled:   w.PayoutsEnabled,
		DetailsSubmitted: w.DetailsSubmitted,
		Requirements:     w.Requirements,
		Capabilities:     pruneEmpty(w.Capabilities),
		Metadata:         w.Metadata,
	}
	if status, ok := w.Capabilities["card_issuing"].(string); ok {
		acct.CardIssuing = status
	}
	if reason, ok := w.Requirements["disabled_reason"].(string); ok {
		acct.DisabledReason = reason
	}
	if pastDue, ok := w.Requirements["past_due"].([]any); ok {
		for _, item := range pastDue {
			if s, ok := item.(string); ok && s != "" {
				acct.PastDue = append(acct.PastDue, s)
			}
		}
	}
	return acct, nil
}

// pruneEmpty drops capabilities the SDK serialises as empty strings because
// the account never requested them.
func pruneEmpty(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if v == nil || v == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// toPlatformAccount converts any SDK value that marshals to an account
// object.
func toPlatformAccount(v any) (*custodial.PlatformAccount, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode account: %w", err)
	}
	return decodeAccount(raw)
}

type balanceWire struct {
	Issuing *struct {
		Available []struct {
			Amount   int64  `json:"amount"`
			Currency string `json:"currency"`
		} `json:"available"`
	} `json:"issuing"`
}

// issuingAvailable sums the issuing available balance in currency.
func issuingAvailable(v any, currency string) (int64, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("encode balance: %w", err)
	}
	var w balanceWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return 0, fmt.Errorf("decode balance: %w", err)
	}
	if w.Issuing == nil {
		return 0, nil
	}
	var total int64
	for _, a := range w.Issuing.Available {
		if currency == "" || a.Currency == currency {
			total += a.Amount
		}
	}
	return total, nil
}
