package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/clefbook/clefbook-api/pkg/errors"
)

func fastPolicy() Policy {
	return Policy{
		Name:         "test",
		MaxAttempts:  3,
		BaseDelay:    time.Millisecond,
		GrowthFactor: 2,
		Retryable:    IsTransient,
	}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastPolicy(), zap.NewNop(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("connection reset by peer")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDoStopsOnTerminalError(t *testing.T) {
	terminal := appErrors.Clone(appErrors.ErrValidation, "bad payload")
	attempts := 0
	err := Do(context.Background(), fastPolicy(), zap.NewNop(), func(ctx context.Context) error {
		attempts++
		return terminal
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, terminal, err)
}

func TestDoExhaustsAttempts(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastPolicy(), zap.NewNop(), func(ctx context.Context) error {
		attempts++
		return fmt.Errorf("dial tcp: i/o timeout (attempt %d)", attempts)
	})
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Contains(t, err.Error(), "attempt 3")
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := fastPolicy()
	policy.BaseDelay = time.Minute

	done := make(chan error, 1)
	go func() {
		done <- Do(ctx, policy, zap.NewNop(), func(ctx context.Context) error {
			return errors.New("timeout")
		})
	}()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("retry did not observe cancellation")
	}
}

func TestDoValue(t *testing.T) {
	calls := 0
	value, err := DoValue(context.Background(), fastPolicy(), zap.NewNop(), func(ctx context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("too many connections")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, value)
}

func TestDelayGrowth(t *testing.T) {
	p := Policy{BaseDelay: 100 * time.Millisecond, GrowthFactor: 2, MaxAttempts: 4}.normalized()
	assert.Equal(t, 100*time.Millisecond, p.delay(1))
	assert.Equal(t, 200*time.Millisecond, p.delay(2))
	assert.Equal(t, 400*time.Millisecond, p.delay(3))
}

func TestIsTransientClassification(t *testing.T) {
	assert.True(t, IsTransient(errors.New("pq: too many connections")))
	assert.True(t, IsTransient(errors.New("rate limit exceeded")))
	assert.True(t, IsTransient(appErrors.Clone(appErrors.ErrTransient, "redis down")))

	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(appErrors.ErrNotFound))
	assert.False(t, IsTransient(appErrors.Clone(appErrors.ErrValidation, "missing field")))
	assert.False(t, IsTransient(errors.New("duplicate key value violates unique constraint")))
}
