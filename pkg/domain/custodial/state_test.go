package custodial_test

import (
	"testing"

	"github.com/amirasaad/giftfund/pkg/domain/custodial"
	"github.com/stretchr/testify/assert"
)

func pendingRecord() custodial.AccountRecord {
	return custodial.AccountRecord{
		UserID:            "user-1",
		ExternalAccountID: "acct_1",
		Status:            custodial.StatusPending,
		CardholderID:      "ich_1",
	}
}

func TestDeriveStatus(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		snap custodial.PlatformAccount
		want custodial.Status
	}{
		{"nothing enabled", custodial.PlatformAccount{}, custodial.StatusPending},
		{"charges only", custodial.PlatformAccount{ChargesEnabled: true}, custodial.StatusPending},
		{"fully enabled", custodial.PlatformAccount{ChargesEnabled: true, PayoutsEnabled: true}, custodial.StatusApproved},
		{"past due", custodial.PlatformAccount{ChargesEnabled: true, PayoutsEnabled: true, PastDue: []string{"individual.ssn_last_4"}}, custodial.StatusRestricted},
		{"disabled", custodial.PlatformAccount{DisabledReason: "requirements.past_due"}, custodial.StatusRestricted},
		{"rejected", custodial.PlatformAccount{DisabledReason: "rejected.fraud"}, custodial.StatusRejected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, custodial.DeriveStatus(tc.snap))
		})
	}
}

func TestTransition(t *testing.T) {
	t.Parallel()

	t.Run("mirrors flags and activates issuing", func(t *testing.T) {
		snap := custodial.PlatformAccount{
			ID:             "acct_1",
			ChargesEnabled: true,
			PayoutsEnabled: true,
			Capabilities:   map[string]any{"card_issuing": "active"},
			CardIssuing:    "active",
		}
		next := custodial.Transition(pendingRecord(), snap)
		assert.True(t, next.CardIssuingActive)
		assert.Equal(t, custodial.StatusApproved, next.Status)
		assert.Equal(t, "acct_1", next.ExternalAccountID)
		assert.Equal(t, "ich_1", next.CardholderID)
		assert.Equal(t, custodial.StateApproved, custodial.StateOf(&next))
	})

	t.Run("absent capability keeps issuing flag", func(t *testing.T) {
		rec := pendingRecord()
		rec.CardIssuingActive = true
		next := custodial.Transition(rec, custodial.PlatformAccount{ChargesEnabled: true})
		assert.True(t, next.CardIssuingActive)
	})

	t.Run("explicit downgrade clears issuing flag", func(t *testing.T) {
		rec := pendingRecord()
		rec.CardIssuingActive = true
		next := custodial.Transition(rec, custodial.PlatformAccount{CardIssuing: "inactive"})
		assert.False(t, next.CardIssuingActive)
	})

	t.Run("same payload same result", func(t *testing.T) {
		snap := custodial.PlatformAccount{ChargesEnabled: true, CardIssuing: "pending"}
		assert.Equal(t, custodial.Transition(pendingRecord(), snap), custodial.Transition(pendingRecord(), snap))
	})
}

func TestStateOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, custodial.StateNoAccount, custodial.StateOf(nil))
	assert.Equal(t, custodial.StateNoAccount, custodial.StateOf(&custodial.AccountRecord{UserID: "u"}))
	rec := pendingRecord()
	assert.Equal(t, custodial.StatePending, custodial.StateOf(&rec))
	rec.Status = custodial.StatusRejected
	assert.Equal(t, custodial.StateRejected, custodial.StateOf(&rec))
}

func TestMirroredFields(t *testing.T) {
	t.Parallel()

	rec := pendingRecord()
	rec.ChargesEnabled = true
	upd := rec.MirroredFields()
	assert.Nil(t, upd.CardholderID)
	assert.Nil(t, upd.VirtualCardID)
	assert.NotNil(t, upd.Requirements)

	applied := upd.Apply(custodial.AccountRecord{UserID: "user-1", CardholderID: "ich_keep"})
	assert.True(t, applied.ChargesEnabled)
	assert.Equal(t, "ich_keep", applied.CardholderID)
	assert.False(t, custodial.AccountUpdate{}.Apply(rec).CardIssuingActive)
	assert.True(t, custodial.AccountUpdate{}.IsEmpty())
	assert.False(t, upd.IsEmpty())
}
