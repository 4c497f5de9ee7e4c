package circuitbreaker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parcel-sorter/internal/common/errors"
)

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	breaker := NewGoBreaker("test", Config{
		MaxFailures:           3,
		Timeout:               time.Minute,
		MaxConcurrentRequests: 1,
	}, nil)

	ctx := context.Background()
	boom := fmt.Errorf("upstream down")

	for i := 0; i < 3; i++ {
		err := breaker.Execute(ctx, func() error { return boom })
		require.EqualError(t, err, "upstream down")
	}

	assert.Equal(t, StateOpen, breaker.State())
	assert.True(t, breaker.IsOpen())

	// Open circuit rejects without invoking the function
	called := false
	err := breaker.Execute(ctx, func() error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called)
	assert.ErrorContains(t, err, "circuit breaker 'test' is open")
}

func TestBreakerStaysClosedOnSuccess(t *testing.T) {
	breaker := NewGoBreaker("test", DefaultConfig(), nil)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, breaker.Execute(ctx, func() error { return nil }))
	}
	assert.Equal(t, StateClosed, breaker.State())

	stats := breaker.Stats()
	assert.Equal(t, "test", stats.Name)
	assert.Equal(t, "closed", stats.State)
	assert.Equal(t, 10, stats.Successes)
}

func TestBreakerRecoversThroughHalfOpen(t *testing.T) {
	breaker := NewGoBreaker("test", Config{
		MaxFailures:           1,
		Timeout:               20 * time.Millisecond,
		MaxConcurrentRequests: 1,
	}, nil)
	ctx := context.Background()

	require.Error(t, breaker.Execute(ctx, func() error { return fmt.Errorf("boom") }))
	require.Equal(t, StateOpen, breaker.State())

	time.Sleep(30 * time.Millisecond)

	require.NoError(t, breaker.Execute(ctx, func() error { return nil }))
	assert.Equal(t, StateClosed, breaker.State())
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	breaker := NewGoBreaker("test", Config{
		MaxFailures:           2,
		Timeout:               time.Minute,
		MaxConcurrentRequests: 1,
	}, nil)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		err := breaker.Execute(ctx, func() error {
			return errors.NotFoundError("barcode")
		})
		require.Error(t, err)
	}
	assert.Equal(t, StateClosed, breaker.State())
}

func TestInvalidConfigFallsBackToDefaults(t *testing.T) {
	breaker := NewGoBreaker("test", Config{MaxFailures: -1}, nil)
	require.NotNil(t, breaker)
	assert.Equal(t, StateClosed, breaker.State())
}
