package circuitbreaker

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

type State = gobreaker.State

const (
	StateClosed   = gobreaker.StateClosed
	StateHalfOpen = gobreaker.StateHalfOpen
	StateOpen     = gobreaker.StateOpen
)

var ErrCircuitBreakerOpen = gobreaker.ErrOpenState

type Settings struct {
	Name string
	// MaxFailures is the number of consecutive failures that opens the breaker.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before letting a single
	// trial request through.
	OpenTimeout   time.Duration
	OnStateChange func(name string, from State, to State)
}

// CircuitBreaker short-circuits calls to a dependency that keeps failing.
type CircuitBreaker struct {
	breaker *gobreaker.CircuitBreaker
}

func New(st Settings) *CircuitBreaker {
	maxFailures := st.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	openTimeout := st.OpenTimeout
	if openTimeout <= 0 {
		openTimeout = 30 * time.Second
	}

	return &CircuitBreaker{
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        st.Name,
			MaxRequests: 1,
			Timeout:     openTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= maxFailures
			},
			OnStateChange: st.OnStateChange,
		}),
	}
}

func (cb *CircuitBreaker) Execute(req func() error) error {
	_, err := cb.breaker.Execute(func() (interface{}, error) {
		return nil, req()
	})
	return err
}

// IsRejected reports whether err came from the breaker refusing a call rather
// than from the call itself.
func IsRejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func (cb *CircuitBreaker) Name() string {
	return cb.breaker.Name()
}

func (cb *CircuitBreaker) State() State {
	return cb.breaker.State()
}
