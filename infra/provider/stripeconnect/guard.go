package stripeconnect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/amirasaad/giftfund/infra/metrics"
	"github.com/amirasaad/giftfund/pkg/config"
	"github.com/amirasaad/giftfund/pkg/domain/custodial"
	"github.com/sony/gobreaker"
	"github.com/stripe/stripe-go/v82"
)

// guard bounds every platform call with a timeout, a circuit breaker and
// metrics, and maps raw errors onto the custodial taxonomy.
type guard struct {
	breaker *gobreaker.CircuitBreaker
	timeout time.Duration
	metrics *metrics.Metrics
}

func newGuard(cfg *config.Stripe, m *metrics.Metrics, logger *slog.Logger) *guard {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "stripe",
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		// Rejections are answers, not outages.
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, custodial.ErrPlatformUnavailable)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return &guard{breaker: breaker, timeout: cfg.CallTimeout, metrics: m}
}

func (g *guard) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	start := time.Now()
	_, err := g.breaker.Execute(func() (any, error) {
		callCtx := ctx
		if g.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}
		return nil, classify(op, fn(callCtx))
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = classify(op, err)
	}
	g.metrics.ObserveGatewayCall(op, outcome(err), time.Since(start))
	return err
}

func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var serr *stripe.Error
	if errors.As(err, &serr) {
		if serr.HTTPStatusCode == http.StatusTooManyRequests || serr.HTTPStatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%s: %w: %s", op, custodial.ErrPlatformUnavailable, serr.Msg)
		}
		return &custodial.PlatformError{
			Op:      op,
			Code:    string(serr.Code),
			Message: serr.Msg,
			Err:     err,
		}
	}
	// Timeouts, open circuit, transport failures.
	return fmt.Errorf("%s: %w: %v", op, custodial.ErrPlatformUnavailable, err)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, custodial.ErrPlatformUnavailable):
		return metrics.OutcomeUnavailable
	default:
		return metrics.OutcomeRejected
	}
}
