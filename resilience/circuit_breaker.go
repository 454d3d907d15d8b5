package resilience

import (
	"errors"
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed allows requests to pass through.
	StateClosed State = iota
	// StateOpen blocks all requests until the reset timeout elapses.
	StateOpen
	// StateHalfOpen allows a single probe request to test recovery.
	StateHalfOpen
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when the breaker rejects a call without invoking
// the protected operation: the circuit is open, or a half-open probe is
// already in flight.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerConfig configures a circuit breaker.
type CircuitBreakerConfig struct {
	// Name identifies this circuit breaker for metrics/logging.
	Name string
	// FailureThreshold is the number of consecutive failures before opening
	// the circuit. The failure count saturates at this value.
	FailureThreshold int
	// ResetTimeout is how long an open circuit waits before admitting a probe.
	ResetTimeout time.Duration
	// OnStateChange is called when state changes.
	OnStateChange func(name string, from, to State)
	// Clock supplies time; defaults to the real clock.
	Clock clock.Clock
}

// DefaultCircuitBreakerConfig returns sensible defaults.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		ResetTimeout:     15 * time.Second,
	}
}

// CircuitBreaker guards a fallible operation and stops invoking it once it is
// judged unhealthy, retrying only via single, serialized probes.
//
// States:
//   - Closed: normal operation, requests pass through
//   - Open: requests fail immediately with ErrCircuitOpen
//   - Half-Open: exactly one probe is allowed through; concurrent calls are
//     rejected until the probe settles
type CircuitBreaker struct {
	config CircuitBreakerConfig
	clock  clock.Clock

	mu            sync.Mutex
	state         State
	failures      int
	nextAttemptAt time.Time
	probeInFlight bool
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 15 * time.Second
	}
	if config.Clock == nil {
		config.Clock = clock.RealClock{}
	}

	return &CircuitBreaker{
		config: config,
		clock:  config.Clock,
		state:  StateClosed,
	}
}

// Execute runs the given function through the circuit breaker. The function's
// error is returned verbatim; ErrCircuitOpen is returned only when the breaker
// rejected the call without invoking fn.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	admitted, probe := cb.allowRequest()
	if !admitted {
		return ErrCircuitOpen
	}

	err := fn()
	cb.recordResult(err, probe)
	return err
}

// ExecuteWithResult runs a function that returns a value through the circuit
// breaker. On rejection or failure the zero value is returned.
func ExecuteWithResult[T any](cb *CircuitBreaker, fn func() (T, error)) (T, error) {
	var result T
	err := cb.Execute(func() error {
		var fnErr error
		result, fnErr = fn()
		return fnErr
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// State returns the current circuit breaker state. Pure read: an open circuit
// past its reset timeout still reads as open until a call arrives.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Failures returns the current failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Reset forces the breaker back to closed with a zeroed failure count.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.toState(StateClosed)
	cb.failures = 0
}

// allowRequest decides admission and claims the half-open probe slot in one
// critical section, so two calls can never both act as the probe. The second
// return value reports whether this call is the probe.
func (cb *CircuitBreaker) allowRequest() (bool, bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true, false
	case StateOpen:
		if cb.clock.Now().Before(cb.nextAttemptAt) {
			return false, false
		}
		cb.toState(StateHalfOpen)
		cb.probeInFlight = true
		return true, true
	case StateHalfOpen:
		if cb.probeInFlight {
			return false, false
		}
		cb.probeInFlight = true
		return true, true
	default:
		return false, false
	}
}

// recordResult records the settled result of an admitted call.
func (cb *CircuitBreaker) recordResult(err error, probe bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if probe {
		// Cleared unconditionally, on both the success and failure paths.
		cb.probeInFlight = false
		if err != nil {
			cb.saturateFailures()
			cb.trip()
		} else {
			cb.toState(StateClosed)
		}
		return
	}

	if err != nil {
		cb.saturateFailures()
		if cb.state == StateClosed && cb.failures >= cb.config.FailureThreshold {
			cb.trip()
		}
		return
	}

	// Only a closed-state success resets the count; a stale success from a
	// call admitted before the circuit opened must not close it.
	if cb.state == StateClosed {
		cb.failures = 0
	}
}

// saturateFailures increments the failure count up to the threshold.
func (cb *CircuitBreaker) saturateFailures() {
	if cb.failures < cb.config.FailureThreshold {
		cb.failures++
	}
}

// trip opens the circuit and schedules the next probe attempt.
func (cb *CircuitBreaker) trip() {
	cb.nextAttemptAt = cb.clock.Now().Add(cb.config.ResetTimeout)
	cb.toState(StateOpen)
}

// toState transitions to a new state. Callers hold the mutex.
func (cb *CircuitBreaker) toState(to State) {
	if cb.state == to {
		return
	}

	from := cb.state
	cb.state = to
	cb.probeInFlight = false
	if to == StateClosed {
		cb.failures = 0
	}

	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.config.Name, from, to)
	}
}
