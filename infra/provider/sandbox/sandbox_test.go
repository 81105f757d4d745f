package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/amirasaad/giftfund/pkg/domain/custodial"
	"github.com/amirasaad/giftfund/pkg/provider/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateway_AccountLifecycle(t *testing.T) {
	ctx := context.Background()
	g := New("", "USD")

	acct, err := g.CreateAccount(ctx, connect.CreateAccountParams{UserID: "user-1", TOSAcceptedAt: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, "inactive", acct.CardIssuing)
	assert.Equal(t, "user-1", acct.Metadata["user_id"])

	again, err := g.CreateAccount(ctx, connect.CreateAccountParams{UserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, acct.ID, again.ID, "one account per user")

	token, err := g.CreateAccountToken(ctx, connect.AccountTokenParams{IDNumber: "000000000"})
	require.NoError(t, err)
	require.NoError(t, g.AttachAccountToken(ctx, acct.ID, token))

	got, err := g.RetrieveAccount(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, "active", got.CardIssuing)
	assert.True(t, got.ChargesEnabled)

	got.Metadata["user_id"] = "tampered"
	fresh, err := g.RetrieveAccount(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", fresh.Metadata["user_id"])
}

func TestGateway_UnknownAccount(t *testing.T) {
	_, err := New("", "").RetrieveAccount(context.Background(), "acct_missing")
	var perr *custodial.PlatformError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "resource_missing", perr.Code)
}

func TestGateway_IssuingBalance(t *testing.T) {
	ctx := context.Background()
	g := New("", "usd")
	acct, err := g.CreateAccount(ctx, connect.CreateAccountParams{UserID: "user-1"})
	require.NoError(t, err)

	_, err = g.CreateCard(ctx, connect.CardParams{AccountID: acct.ID})
	require.Error(t, err, "card issuing is inactive before verification")
	require.NoError(t, g.Activate(acct.ID))

	_, err = g.CreateTopUp(ctx, connect.TopUpParams{AccountID: acct.ID, Amount: 1500})
	require.NoError(t, err)
	card, err := g.CreateCard(ctx, connect.CardParams{AccountID: acct.ID})
	require.NoError(t, err)

	auth, err := g.CreateTestAuthorization(ctx, connect.TestAuthorizationParams{AccountID: acct.ID, CardID: card.ID, Amount: 1000})
	require.NoError(t, err)
	assert.True(t, auth.Approved)

	declined, err := g.CreateTestAuthorization(ctx, connect.TestAuthorizationParams{AccountID: acct.ID, CardID: card.ID, Amount: 1000})
	require.NoError(t, err)
	assert.False(t, declined.Approved)

	bal, err := g.RetrieveIssuingBalance(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), bal.Available)
	assert.Equal(t, "usd", bal.Currency)
}

func TestGateway_SignedAccountUpdated(t *testing.T) {
	ctx := context.Background()
	g := New("whsec_local", "usd")
	acct, err := g.CreateAccount(ctx, connect.CreateAccountParams{UserID: "user-1"})
	require.NoError(t, err)
	require.NoError(t, g.Activate(acct.ID))

	payload, sig, err := g.AccountUpdatedEvent(acct.ID)
	require.NoError(t, err)

	evt, err := g.ParseWebhookEvent(payload, sig)
	require.NoError(t, err)
	assert.Equal(t, connect.EventAccountUpdated, evt.Type)
	assert.Equal(t, acct.ID, evt.AccountID)
	require.NotNil(t, evt.Account)
	assert.Equal(t, "active", evt.Account.CardIssuing)

	_, err = New("whsec_other", "usd").ParseWebhookEvent(payload, sig)
	assert.ErrorIs(t, err, connect.ErrInvalidSignature)
}
