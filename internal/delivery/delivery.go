package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/pep299/econ-news-digest/internal/metrics"
	"github.com/pep299/econ-news-digest/internal/model"
)

// ErrNothingDelivered is returned by Fanout when every transport failed.
var ErrNothingDelivered = errors.New("report was not delivered by any transport")

// Transport hands a rendered report to one destination
type Transport interface {
	Name() string
	Deliver(ctx context.Context, report model.Report) (model.Receipt, error)
}

// Notifier announces a delivered report
type Notifier interface {
	Notify(ctx context.Context, report model.Report, receipts []model.Receipt) error
}

// RetryPolicy bounds the attempts of one delivery
type RetryPolicy struct {
	// Attempts counts every call, including the first.
	Attempts int
	Backoff  time.Duration
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	return backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Backoff), uint64(attempts-1)),
		ctx,
	)
}

// retry runs op under the policy, logging each failed attempt.
func retry[T any](ctx context.Context, policy RetryPolicy, logger *zap.Logger, target string, op func() (T, error)) (T, error) {
	attempt := 0
	return backoff.RetryWithData(func() (T, error) {
		attempt++
		result, err := op()
		if err != nil {
			logger.Warn("Delivery attempt failed",
				zap.String("target", target),
				zap.Int("attempt", attempt),
				zap.Error(err))
		}
		return result, err
	}, policy.backOff(ctx))
}

// Fanout delivers a report through every configured transport
type Fanout struct {
	transports []Transport
	notifier   Notifier
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// NewFanout creates a Fanout. notifier may be nil.
func NewFanout(transports []Transport, notifier Notifier, logger *zap.Logger, m *metrics.Metrics) *Fanout {
	return &Fanout{transports: transports, notifier: notifier, logger: logger, metrics: m}
}

// Deliver runs the transports in order. A failing transport does not stop
// the others; the error is only returned when nothing was delivered.
func (f *Fanout) Deliver(ctx context.Context, report model.Report) ([]model.Receipt, error) {
	var (
		receipts []model.Receipt
		errs     []error
	)

	for _, transport := range f.transports {
		receipt, err := transport.Deliver(ctx, report)
		if err != nil {
			f.logger.Error("Delivery failed", zap.String("target", transport.Name()), zap.Error(err))
			f.metrics.Delivery(transport.Name(), false)
			errs = append(errs, fmt.Errorf("%s: %w", transport.Name(), err))
			continue
		}

		f.logger.Info("Report delivered",
			zap.String("target", receipt.Target),
			zap.String("reference", receipt.Reference))
		f.metrics.Delivery(transport.Name(), true)
		receipts = append(receipts, receipt)
	}

	if len(receipts) == 0 {
		errs = append([]error{ErrNothingDelivered}, errs...)
		return nil, errors.Join(errs...)
	}

	if f.notifier != nil {
		if err := f.notifier.Notify(ctx, report, receipts); err != nil {
			f.logger.Warn("Delivery notification failed", zap.Error(err))
		}
	}
	return receipts, nil
}
