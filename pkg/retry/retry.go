package retry

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/clefbook/clefbook-api/pkg/errors"
)

// Policy describes when and how an operation is retried.
type Policy struct {
	Name         string
	MaxAttempts  int
	BaseDelay    time.Duration
	GrowthFactor float64
	// Retryable reports whether the error is transient. Errors it rejects
	// propagate immediately.
	Retryable func(error) bool
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 100 * time.Millisecond
	}
	if p.GrowthFactor < 1 {
		p.GrowthFactor = 2
	}
	if p.Retryable == nil {
		p.Retryable = IsTransient
	}
	return p
}

// delay computes the wait before the given attempt (1-based).
func (p Policy) delay(attempt int) time.Duration {
	d := float64(p.BaseDelay)
	for i := 1; i < attempt; i++ {
		d *= p.GrowthFactor
	}
	return time.Duration(d)
}

// Do runs op under the policy, sleeping base × growth^(attempt-1) between
// attempts. Terminal errors and context cancellation propagate immediately;
// after exhaustion the last error is returned.
func Do(ctx context.Context, policy Policy, logger *zap.Logger, op func(context.Context) error) error {
	policy = policy.normalized()
	if logger == nil {
		logger = zap.NewNop()
	}

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !policy.Retryable(lastErr) {
			return lastErr
		}
		if attempt == policy.MaxAttempts {
			break
		}

		wait := policy.delay(attempt)
		logger.Sugar().Warnw("retrying after transient failure",
			"policy", policy.Name, "attempt", attempt, "wait", wait, "error", lastErr)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	logger.Sugar().Errorw("retry attempts exhausted",
		"policy", policy.Name, "attempts", policy.MaxAttempts, "error", lastErr)
	return lastErr
}

// DoValue is Do for operations returning a value.
func DoValue[T any](ctx context.Context, policy Policy, logger *zap.Logger, op func(context.Context) (T, error)) (T, error) {
	var result T
	err := Do(ctx, policy, logger, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	})
	return result, err
}

// IsTransient classifies infrastructure failures worth retrying: connection
// pool timeouts, resets, DNS blips, and anything the error package already
// tagged transient. Domain errors are terminal.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if appErrors.IsTransient(err) {
		return true
	}

	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		// Typed domain errors other than the transient sentinel are terminal.
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EPIPE) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, fragment := range []string{
		"connection reset",
		"connection refused",
		"broken pipe",
		"timeout",
		"timed out",
		"too many connections",
		"temporarily unavailable",
		"rate limit",
		"too many requests",
	} {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

// DatabasePolicy retries database calls: short waits, broad transient
// matching, small ceiling so a request never stalls long.
func DatabasePolicy() Policy {
	return Policy{
		Name:         "database",
		MaxAttempts:  3,
		BaseDelay:    100 * time.Millisecond,
		GrowthFactor: 2,
		Retryable:    IsTransient,
	}
}

// EmailPolicy retries outbound email with longer waits to ride out provider
// rate limiting.
func EmailPolicy() Policy {
	return Policy{
		Name:         "email",
		MaxAttempts:  4,
		BaseDelay:    2 * time.Second,
		GrowthFactor: 3,
		Retryable:    IsTransient,
	}
}
