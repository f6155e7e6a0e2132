package mailbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"google.golang.org/api/googleapi"
)

const (
	MaxRetryCount = 3
	SleepTime     = 1 * time.Second
)

func isRetryError(err error) bool {
	var googleErr *googleapi.Error
	if errors.As(err, &googleErr) {
		return googleErr.Code == http.StatusTooManyRequests
	}
	return false
}

// isClientError reports 4xx answers other than throttling. Those say nothing
// about Gmail's health and must not trip the breaker.
func isClientError(err error) bool {
	var googleErr *googleapi.Error
	if errors.As(err, &googleErr) {
		return googleErr.Code >= 400 && googleErr.Code < 500 && googleErr.Code != http.StatusTooManyRequests
	}
	return false
}

func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isClientError(err) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Gmail circuit breaker changed state",
				"breaker", name,
				"from", from.String(),
				"to", to.String())
		},
	})
}

// call runs fn behind the breaker and retries throttled calls the way the
// collectors always have: a fixed sleep, at most MaxRetryCount attempts.
func call[T any](ctx context.Context, cb *gobreaker.CircuitBreaker, op string, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	for i := 0; i < MaxRetryCount; i++ {
		res, err := cb.Execute(func() (interface{}, error) {
			return fn()
		})
		if err == nil {
			return res.(T), nil
		}
		lastErr = err
		if !isRetryError(err) || i == MaxRetryCount-1 {
			break
		}
		slog.Info(fmt.Sprintf("Got retryable error for %s. Attempt #: %d of %d.", op, i+1, MaxRetryCount))
		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(SleepTime):
		}
	}
	return zero, fmt.Errorf("%s: %w", op, lastErr)
}
