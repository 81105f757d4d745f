package custodial

import (
	"context"
	"testing"

	"github.com/amirasaad/giftfund/pkg/config"
	"github.com/amirasaad/giftfund/pkg/domain/custodial"
	"github.com/amirasaad/giftfund/pkg/provider/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// New user through to a single issued card.
func TestCustodialLifecycle(t *testing.T) {
	f := newFixture(t, config.ModeTest)
	ctx := context.Background()
	g := f.gateway

	g.On("CreateAccount", mock.Anything, mock.Anything).Return(pendingAccount("acct_new"), nil).Once()
	g.On("CreateAccountToken", mock.Anything, mock.Anything).Return("ct_1", nil).Once()
	g.On("AttachAccountToken", mock.Anything, "acct_new", "ct_1").Return(nil).Once()
	g.On("CreateExternalBankAccount", mock.Anything, mock.MatchedBy(func(p connect.ExternalBankAccountParams) bool {
		return p.RoutingNumber == "110000000" && p.AccountNumber == "000123456789"
	})).Return(&connect.ExternalBankAccount{ID: "ba_1", Last4: "6789"}, nil).Once()
	g.On("CreateTestPayment", mock.Anything, mock.Anything).Return("pi_1", nil).Once()

	created, err := f.svc.CreateCustodialAccount(ctx, "user-1", validPersonalInfo())
	require.NoError(t, err)
	assert.Equal(t, "acct_new", created.ExternalAccountID)
	assert.False(t, created.Existing)
	rec := f.accounts.record("user-1")
	assert.Equal(t, custodial.StatusPending, rec.Status)
	assert.False(t, rec.CardIssuingActive)

	g.On("RetrieveAccount", mock.Anything, "acct_new").Return(approvedAccount("acct_new"), nil).Once()
	snap, err := f.svc.SynchronizeAccountStatus(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, snap.CardIssuingActive)
	assert.True(t, f.accounts.record("user-1").CardIssuingActive)

	g.On("RetrieveIssuingBalance", mock.Anything, "acct_new").Return(&connect.Balance{Available: 0, Currency: "usd"}, nil).Once()
	bal, err := f.svc.GetIssuingBalance(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, bal.CanCreateCard)

	g.On("CreateTopUp", mock.Anything, mock.Anything).Return(&connect.TopUp{ID: "tu_1", Amount: 1000, Status: "succeeded"}, nil).Once()
	_, err = f.svc.TopUpIssuing(ctx, "user-1", 1000)
	require.NoError(t, err)

	g.On("RetrieveIssuingBalance", mock.Anything, "acct_new").Return(&connect.Balance{Available: 1000, Currency: "usd"}, nil).Times(2)
	bal, err = f.svc.GetIssuingBalance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), bal.AvailableAmount)
	assert.True(t, bal.CanCreateCard)

	g.On("CreateCardholder", mock.Anything, mock.Anything).Return(&connect.Cardholder{ID: "ich_1", Status: "active"}, nil).Once()
	holder, err := f.svc.CreateIssuingCardholder(ctx, "user-1", custodial.HolderDetails{Name: "Ada Lovelace"})
	require.NoError(t, err)
	assert.False(t, holder.Existing)
	holder, err = f.svc.CreateIssuingCardholder(ctx, "user-1", custodial.HolderDetails{Name: "Ada Lovelace"})
	require.NoError(t, err)
	assert.True(t, holder.Existing)

	g.On("CreateCard", mock.Anything, mock.Anything).Return(&connect.Card{ID: "ic_1", Last4: "4242", Status: "active"}, nil).Once()
	card, err := f.svc.CreateVirtualCard(ctx, "user-1", custodial.CardOptions{})
	require.NoError(t, err)
	assert.Equal(t, "ic_1", card.CardID)

	_, err = f.svc.CreateVirtualCard(ctx, "user-1", custodial.CardOptions{})
	assert.ErrorIs(t, err, custodial.ErrCardExists)

	assert.Equal(t, []string{
		custodial.EventAccountCreated,
		custodial.EventCardIssuingActivated,
		custodial.EventCardIssued,
	}, f.publishedTypes())
}
