package services

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spx/internal/shared"
	"golang.org/x/time/rate"
)

const (
	MaxRetries        = 3
	MaxBackoff        = 60 * time.Second
	DefaultRetryAfter = time.Second
	maxJitter         = 3 * time.Second
)

// RateLimitBackoff is the wait before retrying a 429: (retryAfter+jitter) doubled per step, capped at [MaxBackoff].
func RateLimitBackoff(retryAfter, jitter time.Duration, step int) time.Duration {
	return capBackoff(retryAfter+jitter, step)
}

// ServerBackoff is the wait before retrying a 502, 503 or 504: 2^step seconds, capped at [MaxBackoff].
func ServerBackoff(step int) time.Duration {
	return capBackoff(time.Second, step)
}

func capBackoff(base time.Duration, step int) time.Duration {
	if base <= 0 {
		return 0
	}
	d := base
	for range step {
		d *= 2
		if d >= MaxBackoff {
			return MaxBackoff
		}
	}
	return min(d, MaxBackoff)
}

// Retrier executes single API calls with error classification and backoff.
//
// Rate limiting and transient server errors are retried on a timer. An unauthorized response triggers
// one forced token refresh and an immediate retry. Everything else stops the call.
type Retrier struct {
	refresher  TokenRefresher
	limiter    *rate.Limiter
	logger     *log.Logger
	maxRetries int
	jitter     func() time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewRetrier creates a retrier. refresher and limiter may be nil: without a refresher a 401 is final,
// without a limiter attempts are not paced.
func NewRetrier(refresher TokenRefresher, limiter *rate.Limiter, logger *log.Logger) *Retrier {
	return &Retrier{
		refresher:  refresher,
		limiter:    limiter,
		logger:     shared.Component(logger, "retry"),
		maxRetries: MaxRetries,
		jitter:     randomJitter,
		sleep:      sleepContext,
	}
}

func randomJitter() time.Duration {
	return time.Duration(rand.Int64N(int64(maxJitter/time.Second))) * time.Second
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do runs call through r, returning its value on the first success.
func Do[T any](ctx context.Context, r *Retrier, call func(context.Context) (T, error)) (T, error) {
	var out T
	err := r.Run(ctx, func(ctx context.Context) error {
		v, err := call(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// Run executes call with up to [MaxRetries] attempts.
//
// Failures are returned as [*shared.APIError]; context cancellation is returned unwrapped.
func (r *Retrier) Run(ctx context.Context, call func(context.Context) error) error {
	var last error
	step := 0

	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				return &shared.APIError{Kind: shared.KindTransport, Attempts: attempt, Message: "rate limiter", Err: err}
			}
		}

		err := call(ctx)
		if err == nil {
			return nil
		}
		last = err

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		var decodeErr *DecodeError
		if errors.As(err, &decodeErr) {
			return &shared.APIError{Kind: shared.KindDecode, Attempts: attempt, Err: err}
		}

		var httpErr *shared.HTTPError
		if !errors.As(err, &httpErr) {
			r.logger.Error("API error", "error", err)
			return &shared.APIError{Kind: shared.KindTransport, Attempts: attempt, Err: err}
		}

		r.logger.Debug("http error", "attempt", attempt, "status", httpErr.StatusCode)
		retriesLeft := attempt < r.maxRetries

		switch httpErr.Kind() {
		case shared.KindRateLimited:
			wait := RateLimitBackoff(httpErr.RetryAfter(DefaultRetryAfter), r.jitter(), step)
			step++
			if !retriesLeft {
				continue
			}
			r.logger.Warnf("Rate limited (429). Waiting %s before retry %d/%d", wait, attempt, r.maxRetries)
			if err := r.sleep(ctx, wait); err != nil {
				return err
			}

		case shared.KindUnauthorized:
			if r.refresher == nil {
				return &shared.APIError{Kind: shared.KindUnauthorized, StatusCode: httpErr.StatusCode, Attempts: attempt, Err: err}
			}
			if !retriesLeft {
				continue
			}
			r.logger.Debug("token unauthorized (401), attempting refresh")
			if refreshErr := r.refresher.Refresh(ctx); refreshErr != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				return &shared.APIError{
					Kind:       shared.KindRefreshFailed,
					StatusCode: httpErr.StatusCode,
					Attempts:   attempt,
					Message:    "token refresh failed",
					Err:        errors.Join(refreshErr, err),
				}
			}

		case shared.KindServer:
			wait := ServerBackoff(step)
			step++
			if !retriesLeft {
				continue
			}
			r.logger.Warnf("Server error (%d). Waiting %s before retry %d/%d", httpErr.StatusCode, wait, attempt, r.maxRetries)
			if err := r.sleep(ctx, wait); err != nil {
				return err
			}

		default:
			r.logger.Error("unhandled HTTP status", "status", httpErr.StatusCode)
			return &shared.APIError{Kind: shared.KindHTTP, StatusCode: httpErr.StatusCode, Attempts: attempt, Err: err}
		}
	}

	apiErr := &shared.APIError{Kind: shared.KindExhausted, Attempts: r.maxRetries, Err: last}
	var httpErr *shared.HTTPError
	if errors.As(last, &httpErr) {
		apiErr.StatusCode = httpErr.StatusCode
	}
	r.logger.Error("API call failed", "attempts", r.maxRetries, "error", last)
	return apiErr
}
