package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBackend = errors.New("backend down")

func newTestBreaker(clock *time.Time) *CircuitBreaker {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 2,
		RecoveryTimeout:  10 * time.Second,
		SuccessThreshold: 1,
	})
	cb.now = func() time.Time { return *clock }
	return cb
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := newTestBreaker(&clock)

	fail := func() error { return errBackend }

	assert.ErrorIs(t, cb.Call(fail), errBackend)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Call(fail), errBackend)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Call(func() error { called = true; return nil })
	assert.Equal(t, ErrOpen, err)
	assert.False(t, called)
}

func TestCircuitBreakerRecovers(t *testing.T) {
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := newTestBreaker(&clock)

	for i := 0; i < 2; i++ {
		_ = cb.Call(func() error { return errBackend })
	}
	require.Equal(t, StateOpen, cb.State())

	clock = clock.Add(11 * time.Second)
	require.NoError(t, cb.Call(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.Failures())
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := newTestBreaker(&clock)

	for i := 0; i < 2; i++ {
		_ = cb.Call(func() error { return errBackend })
	}
	clock = clock.Add(11 * time.Second)

	assert.ErrorIs(t, cb.Call(func() error { return errBackend }), errBackend)
	assert.Equal(t, StateOpen, cb.State())
	assert.Equal(t, ErrOpen, cb.Call(func() error { return nil }))
}

func TestCircuitBreakerSuccessResetsFailures(t *testing.T) {
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := newTestBreaker(&clock)

	_ = cb.Call(func() error { return errBackend })
	require.NoError(t, cb.Call(func() error { return nil }))
	_ = cb.Call(func() error { return errBackend })

	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, map[string]interface{}{"state": "closed", "failures": 1}, cb.GetStats())

	cb.Reset()
	assert.Equal(t, 0, cb.Failures())
}
