package score

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/kredible/score-middleware/internal/metrics"
)

// Provider is a single score source. Implementations wrap network-class
// failures with ErrTransient; any other error is treated as final for that
// source.
type Provider interface {
	Source() Source
	Fetch(ctx context.Context, walletAddress string) (int, error)
	Submit(ctx context.Context, walletAddress string, score int) error
}

// Oracle resolves scores by trying providers in order. A provider's transient
// failures are retried a bounded number of times before falling through to
// the next provider; when every provider fails the caller gets ErrUnavailable.
type Oracle struct {
	providers  []Provider
	maxRetries uint64
	logger     *zap.Logger
}

// NewOracle creates an Oracle over the given providers in fallback order.
func NewOracle(providers []Provider, maxRetries int, logger *zap.Logger) (*Oracle, error) {
	if len(providers) == 0 {
		return nil, errors.New("oracle requires at least one provider")
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Oracle{
		providers:  providers,
		maxRetries: uint64(maxRetries),
		logger:     logger,
	}, nil
}

// GetScore resolves the score for a wallet address together with its source.
func (o *Oracle) GetScore(ctx context.Context, walletAddress string) (*Record, error) {
	var failures []error

	for _, p := range o.providers {
		start := time.Now()
		var value int
		err := o.withRetry(ctx, p.Source(), func() error {
			var fetchErr error
			value, fetchErr = p.Fetch(ctx, walletAddress)
			return fetchErr
		})
		metrics.ScoreLookupDuration.WithLabelValues(string(p.Source())).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.ScoreLookups.WithLabelValues(string(p.Source()), "failed").Inc()
			o.logger.Warn("score source failed, falling through",
				zap.String("source", string(p.Source())),
				zap.String("address", walletAddress),
				zap.Error(err))
			failures = append(failures, fmt.Errorf("%s: %w", p.Source(), err))
			continue
		}

		if err := Validate(value); err != nil {
			metrics.ScoreLookups.WithLabelValues(string(p.Source()), "invalid").Inc()
			failures = append(failures, fmt.Errorf("%s: %w", p.Source(), err))
			continue
		}

		metrics.ScoreLookups.WithLabelValues(string(p.Source()), "ok").Inc()
		return &Record{
			WalletAddress: walletAddress,
			Score:         value,
			Source:        p.Source(),
			RetrievedAt:   time.Now().UTC(),
		}, nil
	}

	return nil, fmt.Errorf("%w: %w", ErrUnavailable, errors.Join(failures...))
}

// SubmitScore writes a score through the first provider that accepts it and
// returns a Record tagged with the source that took the write. The score is
// validated before any provider is contacted.
func (o *Oracle) SubmitScore(ctx context.Context, walletAddress string, value int) (*Record, error) {
	if err := Validate(value); err != nil {
		return nil, err
	}

	var failures []error

	for _, p := range o.providers {
		err := o.withRetry(ctx, p.Source(), func() error {
			return p.Submit(ctx, walletAddress, value)
		})
		if err != nil {
			metrics.ScoreWrites.WithLabelValues(string(p.Source()), "failed").Inc()
			o.logger.Warn("score write failed, falling through",
				zap.String("source", string(p.Source())),
				zap.String("address", walletAddress),
				zap.Error(err))
			failures = append(failures, fmt.Errorf("%s: %w", p.Source(), err))
			continue
		}

		metrics.ScoreWrites.WithLabelValues(string(p.Source()), "ok").Inc()
		return &Record{
			WalletAddress: walletAddress,
			Score:         value,
			Source:        p.Source(),
			RetrievedAt:   time.Now().UTC(),
		}, nil
	}

	return nil, fmt.Errorf("%w: %w", ErrUnavailable, errors.Join(failures...))
}

// withRetry runs op, retrying only transient failures up to maxRetries times.
func (o *Oracle) withRetry(ctx context.Context, source Source, op func() error) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), o.maxRetries), ctx)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrTransient) {
			return backoff.Permanent(err)
		}
		o.logger.Debug("retrying transient score source failure",
			zap.String("source", string(source)),
			zap.Int("attempt", attempt),
			zap.Error(err))
		return err
	}, policy)
}
