package payment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/amirasaad/giftfund/pkg/provider/connect"
	custodialsvc "github.com/amirasaad/giftfund/pkg/service/custodial"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockProcessor struct {
	mock.Mock
}

func (m *mockProcessor) HandleStripeWebhook(ctx context.Context, payload []byte, signature string) (string, custodialsvc.WebhookOutcome, error) {
	args := m.Called(ctx, payload, signature)
	return args.String(0), args.Get(1).(custodialsvc.WebhookOutcome), args.Error(2)
}

type recordingObserver struct {
	samples []string
}

func (r *recordingObserver) ObserveWebhook(eventType, result string) {
	r.samples = append(r.samples, eventType+"/"+result)
}

func newWebhookApp(p WebhookProcessor, o WebhookObserver) *fiber.App {
	app := fiber.New()
	StripeWebhookRoutes(app, p, o, nil)
	return app
}

func post(t *testing.T, app *fiber.App, body, signature string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/stripe", strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(raw)
}

func TestStripeWebhook_MissingSignature(t *testing.T) {
	p := &mockProcessor{}
	obs := &recordingObserver{}
	status, _ := post(t, newWebhookApp(p, obs), `{"id":"evt_1"}`, "")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, []string{"unknown/rejected"}, obs.samples)
	p.AssertNotCalled(t, "HandleStripeWebhook", mock.Anything, mock.Anything, mock.Anything)
}

func TestStripeWebhook_EmptyBody(t *testing.T) {
	p := &mockProcessor{}
	status, _ := post(t, newWebhookApp(p, nil), "", "t=1,v1=abc")
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestStripeWebhook_InvalidSignature(t *testing.T) {
	p := &mockProcessor{}
	p.On("HandleStripeWebhook", mock.Anything, mock.Anything, "t=1,v1=bad").
		Return("", custodialsvc.WebhookOutcome(""), fmt.Errorf("verify: %w", connect.ErrInvalidSignature)).Once()
	obs := &recordingObserver{}

	status, _ := post(t, newWebhookApp(p, obs), `{"id":"evt_1"}`, "t=1,v1=bad")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, []string{"unknown/rejected"}, obs.samples)
	p.AssertExpectations(t)
}

func TestStripeWebhook_ProcessingFailureAsksForRetry(t *testing.T) {
	p := &mockProcessor{}
	p.On("HandleStripeWebhook", mock.Anything, mock.Anything, mock.Anything).
		Return("account.updated", custodialsvc.WebhookOutcome(""), errors.New("store down")).Once()
	obs := &recordingObserver{}

	status, _ := post(t, newWebhookApp(p, obs), `{"id":"evt_1"}`, "t=1,v1=ok")
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, []string{"account.updated/failed"}, obs.samples)
}

func TestStripeWebhook_Acknowledged(t *testing.T) {
	payload := `{"id":"evt_1","type":"account.updated"}`
	p := &mockProcessor{}
	p.On("HandleStripeWebhook", mock.Anything, []byte(payload), "t=1,v1=ok").
		Return("account.updated", custodialsvc.WebhookApplied, nil).Once()
	obs := &recordingObserver{}

	status, body := post(t, newWebhookApp(p, obs), payload, "t=1,v1=ok")
	assert.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"received":true}`, body)
	assert.Equal(t, []string{"account.updated/applied"}, obs.samples)
	p.AssertExpectations(t)
}

func TestStripeWebhook_DuplicateIsStillAcknowledged(t *testing.T) {
	p := &mockProcessor{}
	p.On("HandleStripeWebhook", mock.Anything, mock.Anything, mock.Anything).
		Return("account.updated", custodialsvc.WebhookDuplicate, nil).Once()

	status, _ := post(t, newWebhookApp(p, nil), `{"id":"evt_1"}`, "t=1,v1=ok")
	assert.Equal(t, fiber.StatusOK, status)
}

func TestStripeWebhook_PayloadTooLarge(t *testing.T) {
	p := &mockProcessor{}
	status, _ := post(t, newWebhookApp(p, nil), strings.Repeat("x", maxBodyBytes+1), "t=1,v1=ok")
	assert.Equal(t, fiber.StatusRequestEntityTooLarge, status)
}
