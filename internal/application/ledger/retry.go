package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/charity/backend/internal/domain/shared"
	"github.com/charity/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// maxReconcileAttempts is the first attempt plus one retry
const maxReconcileAttempts = 2

// withRetry runs op, retrying once after delay on storage failures.
// Domain errors and context cancellation are returned as is; a failure that
// survives the retry is wrapped as a reconciliation failure.
func withRetry[T any](ctx context.Context, log *zap.Logger, name string, delay time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	attempt := 0
	result, err := backoff.Retry(ctx,
		func() (T, error) {
			attempt++
			v, err := op(ctx)
			if err != nil && !isRetryable(err) {
				return v, backoff.Permanent(err)
			}
			return v, err
		},
		backoff.WithBackOff(backoff.NewConstantBackOff(delay)),
		backoff.WithMaxTries(maxReconcileAttempts),
		backoff.WithNotify(func(err error, wait time.Duration) {
			logger.WithLogger(ctx, log).Warn("Reconciliation attempt failed, retrying",
				zap.String("operation", name),
				zap.Int("attempt", attempt),
				zap.Duration("retry_in", wait),
				zap.Error(err),
			)
		}),
	)
	if err == nil {
		return result, nil
	}
	if !isRetryable(err) {
		return result, err
	}
	return result, shared.WrapDomainError(shared.CodeReconciliationFailure, name+" failed after retry", err)
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	_, isDomain := shared.IsDomainError(err)
	return !isDomain
}
