package utils

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrCircuitOpen     = errors.New("circuit breaker: open")
	ErrTooManyRequests = errors.New("circuit breaker: too many requests while half open")
)

type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half_open"
	default:
		return "open"
	}
}

type BreakerSettings struct {
	// MinRequests is the number of calls in a window before the failure
	// ratio is evaluated.
	MinRequests uint32
	// HalfOpenRequests is the number of probe calls allowed while half open.
	HalfOpenRequests uint32
	FailureRatio     float64
	// Interval resets the counts of a closed breaker.
	Interval time.Duration
	// Timeout is how long the breaker stays open.
	Timeout time.Duration
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MinRequests:      20,
		HalfOpenRequests: 1,
		FailureRatio:     0.6,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
	}
}

type counts struct {
	requests  uint32
	successes uint32
	failures  uint32
}

// CircuitBreaker stops calling a failing dependency for Timeout once the
// failure ratio of a window crosses FailureRatio.
type CircuitBreaker struct {
	name     string
	settings BreakerSettings
	now      func() time.Time

	mu         sync.Mutex
	state      State
	generation uint64
	counts     counts
	expiry     time.Time
}

func NewCircuitBreaker(name string, settings BreakerSettings) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:     name,
		settings: settings,
		now:      time.Now,
	}
	cb.toNewGeneration(cb.now())
	return cb
}

func (cb *CircuitBreaker) Name() string {
	return cb.name
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	state, _ := cb.currentState(cb.now())
	return state
}

// Do runs fn unless the breaker is open. A panic in fn counts as a failure
// and is re-raised.
func (cb *CircuitBreaker) Do(fn func() error) error {
	generation, err := cb.beforeRequest()
	if err != nil {
		return err
	}

	defer func() {
		if e := recover(); e != nil {
			cb.afterRequest(generation, false)
			panic(e)
		}
	}()

	err = fn()
	cb.afterRequest(generation, err == nil)
	return err
}

func (cb *CircuitBreaker) beforeRequest() (uint64, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	state, generation := cb.currentState(cb.now())
	switch {
	case state == StateOpen:
		return generation, ErrCircuitOpen
	case state == StateHalfOpen && cb.counts.requests >= cb.settings.HalfOpenRequests:
		return generation, ErrTooManyRequests
	}

	cb.counts.requests++
	return generation, nil
}

func (cb *CircuitBreaker) afterRequest(before uint64, success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.now()
	state, generation := cb.currentState(now)
	if generation != before {
		return
	}

	if success {
		cb.counts.successes++
		if state == StateHalfOpen {
			cb.setState(StateClosed, now)
		}
		return
	}

	cb.counts.failures++
	switch {
	case state == StateHalfOpen:
		cb.setState(StateOpen, now)
	case cb.readyToTrip():
		cb.setState(StateOpen, now)
	}
}

func (cb *CircuitBreaker) readyToTrip() bool {
	return cb.counts.requests >= cb.settings.MinRequests &&
		float64(cb.counts.failures)/float64(cb.counts.requests) >= cb.settings.FailureRatio
}

func (cb *CircuitBreaker) currentState(now time.Time) (State, uint64) {
	switch cb.state {
	case StateClosed:
		if !cb.expiry.IsZero() && cb.expiry.Before(now) {
			cb.toNewGeneration(now)
		}
	case StateOpen:
		if cb.expiry.Before(now) {
			cb.setState(StateHalfOpen, now)
		}
	}
	return cb.state, cb.generation
}

func (cb *CircuitBreaker) setState(state State, now time.Time) {
	cb.state = state
	cb.toNewGeneration(now)
}

func (cb *CircuitBreaker) toNewGeneration(now time.Time) {
	cb.generation++
	cb.counts = counts{}

	switch cb.state {
	case StateClosed:
		cb.expiry = time.Time{}
		if cb.settings.Interval > 0 {
			cb.expiry = now.Add(cb.settings.Interval)
		}
	case StateOpen:
		cb.expiry = now.Add(cb.settings.Timeout)
	default:
		cb.expiry = time.Time{}
	}
}
