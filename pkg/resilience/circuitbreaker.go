package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"pinkchat/backend/pkg/logger"
)

// ErrCircuitOpen is returned without calling the guarded function while the
// breaker is open.
var ErrCircuitOpen = errors.New("circuit open")

// State represents the current state of a circuit breaker
type State string

const (
	// StateClosed lets every call through
	StateClosed State = "closed"
	// StateOpen short-circuits every call until the cooldown elapses
	StateOpen State = "open"
	// StateHalfOpen lets one trial call at a time through after the cooldown
	StateHalfOpen State = "half-open"
)

// Config holds configuration for a circuit breaker
type Config struct {
	Name             string
	FailureThreshold uint
	SuccessThreshold uint
	Cooldown         time.Duration
}

// DefaultConfig returns a default circuit breaker configuration
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 1,
		Cooldown:         30 * time.Second,
	}
}

// CircuitBreaker stops calling a failing dependency for a cooldown period.
// It never retries: a rejected or failed call is returned to the caller as is.
type CircuitBreaker struct {
	cfg   Config
	log   *logger.Logger
	now   func() time.Time
	mutex sync.Mutex

	state        State
	failureCount uint
	successCount uint
	openedAt     time.Time
	trialRunning bool
	onChange     func(from, to State)
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(cfg Config, log *logger.Logger) *CircuitBreaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 1
	}
	if cfg.SuccessThreshold == 0 {
		cfg.SuccessThreshold = 1
	}
	return &CircuitBreaker{
		cfg:   cfg,
		log:   log,
		now:   time.Now,
		state: StateClosed,
	}
}

// OnStateChange registers a callback invoked on every transition
func (cb *CircuitBreaker) OnStateChange(fn func(from, to State)) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	cb.onChange = fn
}

// Execute runs fn through the circuit breaker. Context cancellation by the
// caller is not counted as a dependency failure.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	ok, trial := cb.allow()
	if !ok {
		return ErrCircuitOpen
	}

	err := fn(ctx)
	cb.record(err, trial)
	return err
}

// State returns the current state of the circuit breaker
func (cb *CircuitBreaker) State() State {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.state
}

// allow reports whether a call may proceed and whether it is the half-open trial
func (cb *CircuitBreaker) allow() (ok, trial bool) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.cfg.Cooldown {
			return false, false
		}
		cb.transition(StateHalfOpen)
	case StateClosed:
		return true, false
	}

	if cb.trialRunning {
		return false, false
	}
	cb.trialRunning = true
	return true, true
}

func (cb *CircuitBreaker) record(err error, trial bool) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if trial {
		cb.trialRunning = false
	}
	// while half-open only the trial's outcome counts; stragglers admitted
	// before the breaker opened are ignored
	if cb.state == StateHalfOpen && !trial {
		return
	}

	switch {
	case err == nil:
		cb.recordSuccess()
	case errors.Is(err, context.Canceled):
	default:
		cb.recordFailure()
	}
}

// recordSuccess and recordFailure must be called with the mutex held
func (cb *CircuitBreaker) recordSuccess() {
	switch cb.state {
	case StateClosed:
		cb.failureCount = 0
	case StateHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.cfg.SuccessThreshold {
			cb.transition(StateClosed)
		}
	}
}

func (cb *CircuitBreaker) recordFailure() {
	switch cb.state {
	case StateClosed:
		cb.failureCount++
		if cb.failureCount >= cb.cfg.FailureThreshold {
			cb.transition(StateOpen)
		}
	case StateHalfOpen:
		cb.transition(StateOpen)
	}
}

// transition must be called with the mutex held
func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	cb.state = to
	cb.failureCount = 0
	cb.successCount = 0
	cb.trialRunning = false
	if to == StateOpen {
		cb.openedAt = cb.now()
	}

	cb.log.Info("circuit breaker state changed",
		"name", cb.cfg.Name,
		"from", string(from),
		"to", string(to),
	)
	if cb.onChange != nil {
		cb.onChange(from, to)
	}
}
