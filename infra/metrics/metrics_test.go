package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveGatewayCall(t *testing.T) {
	m := New()
	m.ObserveGatewayCall("create_account", OutcomeSuccess, 20*time.Millisecond)
	m.ObserveGatewayCall("create_account", OutcomeSuccess, 10*time.Millisecond)
	m.ObserveGatewayCall("create_card", OutcomeUnavailable, time.Second)

	assert.InDelta(t, 2, testutil.ToFloat64(m.gatewayCalls.WithLabelValues("create_account", OutcomeSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.gatewayCalls.WithLabelValues("create_card", OutcomeUnavailable)), 0)
	assert.Equal(t, 2, testutil.CollectAndCount(m.gatewayDuration))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveGatewayCall("x", OutcomeSuccess, time.Millisecond)
		m.ObserveWebhook("account.updated", "handled")
	})
}

func TestNewTwice(t *testing.T) {
	assert.NotPanics(t, func() {
		New()
		New()
	})
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.ObserveWebhook("account.updated", "applied")
	m.ObserveEvent("custodial.card_issued")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `giftfund_webhook_events_total{result="applied",type="account.updated"} 1`)
	assert.Contains(t, body, `giftfund_custodial_events_total{type="custodial.card_issued"} 1`)
	assert.Contains(t, body, "go_goroutines")
}
