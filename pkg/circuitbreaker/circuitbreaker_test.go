package circuitbreaker

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	var mu sync.Mutex
	var transitions []string
	cb := New(Settings{
		Name:        "cache",
		MaxFailures: 2,
		OpenTimeout: time.Minute,
		OnStateChange: func(_ string, from, to State) {
			mu.Lock()
			defer mu.Unlock()
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	assert.ErrorIs(t, cb.Execute(func() error { return errBoom }), errBoom)
	assert.Equal(t, StateClosed, cb.State())

	assert.ErrorIs(t, cb.Execute(func() error { return errBoom }), errBoom)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitBreakerOpen)
	assert.True(t, IsRejected(err))
	assert.False(t, called)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"closed->open"}, transitions)
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := New(Settings{Name: "cache", MaxFailures: 2})

	_ = cb.Execute(func() error { return errBoom })
	assert.NoError(t, cb.Execute(func() error { return nil }))
	_ = cb.Execute(func() error { return errBoom })

	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, "cache", cb.Name())
}

func TestCircuitBreaker_HalfOpenTrialCall(t *testing.T) {
	cb := New(Settings{Name: "cache", MaxFailures: 1, OpenTimeout: 20 * time.Millisecond})

	_ = cb.Execute(func() error { return errBoom })
	assert.Equal(t, StateOpen, cb.State())

	require.Eventually(t, func() bool { return cb.State() == StateHalfOpen }, time.Second, 5*time.Millisecond)

	// failed trial call reopens
	_ = cb.Execute(func() error { return errBoom })
	assert.Equal(t, StateOpen, cb.State())

	require.Eventually(t, func() bool { return cb.State() == StateHalfOpen }, time.Second, 5*time.Millisecond)
	assert.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestIsRejected(t *testing.T) {
	assert.False(t, IsRejected(errBoom))
	assert.False(t, IsRejected(nil))
}
