// Package resilience guards calls to the search service's optional
// backends (Redis, SQL corpus sources, Kafka) with a circuit breaker,
// exponential-backoff retry and a timeout wrapper.
package resilience

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

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

// CircuitBreakerConfig controls when the breaker trips and how it
// recovers. Zero values take the defaults noted per field.
type CircuitBreakerConfig struct {
	// FailureThreshold is the run of consecutive failures that opens the
	// circuit. Default 5.
	FailureThreshold int
	// ResetTimeout is how long the circuit stays open before probing.
	// Default 30s.
	ResetTimeout time.Duration
	// HalfOpenProbes is both the number of concurrent probes allowed while
	// half-open and the successes needed to close again. Default 1.
	HalfOpenProbes int
	// IsSuccessful classifies a non-nil error as a success for breaker
	// accounting, e.g. a cache miss. The error is still returned.
	IsSuccessful func(error) bool
	// OnStateChange is called with the breaker's lock held on every
	// transition. It must not call back into the breaker.
	OnStateChange func(name string, from, to State)
}

// Counts are cumulative since creation or the last Reset.
type Counts struct {
	Requests            int64 `json:"requests"`
	Successes           int64 `json:"successes"`
	Failures            int64 `json:"failures"`
	Rejected            int64 `json:"rejected"`
	ConsecutiveFailures int   `json:"consecutive_failures"`
}

type CircuitBreaker struct {
	name   string
	cfg    CircuitBreakerConfig
	now    func() time.Time
	logger *slog.Logger

	mu             sync.Mutex
	state          State
	openedAt       time.Time
	probesInFlight int
	probeSuccesses int
	counts         Counts
}

func NewCircuitBreaker(name string, cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenProbes <= 0 {
		cfg.HalfOpenProbes = 1
	}
	if cfg.IsSuccessful == nil {
		cfg.IsSuccessful = func(err error) bool { return err == nil }
	}
	return &CircuitBreaker{
		name:   name,
		cfg:    cfg,
		now:    time.Now,
		logger: slog.Default().With("component", "circuit-breaker", "name", name),
	}
}

// Execute runs fn when the circuit admits it and records the outcome.
// Rejected calls return an error wrapping ErrCircuitOpen without running
// fn.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	probe, err := cb.admit()
	if err != nil {
		return err
	}
	err = fn()
	cb.record(probe, cb.cfg.IsSuccessful(err))
	return err
}

func (cb *CircuitBreaker) Current() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.counts
}

// Reset closes the circuit and clears the counts.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transition(StateClosed)
	cb.counts = Counts{}
	cb.logger.Info("circuit manually reset")
}

// admit reports whether a call may proceed and whether it is a half-open
// probe.
func (cb *CircuitBreaker) admit() (probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		wait := cb.cfg.ResetTimeout - cb.now().Sub(cb.openedAt)
		if wait > 0 {
			cb.counts.Rejected++
			return false, fmt.Errorf("%w: %s (retry after %v)", ErrCircuitOpen, cb.name, wait.Round(time.Millisecond))
		}
		cb.transition(StateHalfOpen)
		cb.logger.Info("circuit half-open, probing", "after", cb.cfg.ResetTimeout)
	}
	if cb.state == StateHalfOpen {
		if cb.probesInFlight >= cb.cfg.HalfOpenProbes {
			cb.counts.Rejected++
			return false, fmt.Errorf("%w: %s (probe limit reached)", ErrCircuitOpen, cb.name)
		}
		cb.probesInFlight++
		probe = true
	}
	cb.counts.Requests++
	return probe, nil
}

func (cb *CircuitBreaker) record(probe, ok bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if probe {
		cb.probesInFlight--
	}
	if ok {
		cb.counts.Successes++
		cb.counts.ConsecutiveFailures = 0
		if probe && cb.state == StateHalfOpen {
			cb.probeSuccesses++
			if cb.probeSuccesses >= cb.cfg.HalfOpenProbes {
				cb.transition(StateClosed)
				cb.logger.Info("circuit closed, backend recovered")
			}
		}
		return
	}

	cb.counts.Failures++
	cb.counts.ConsecutiveFailures++
	switch {
	case cb.state == StateHalfOpen:
		cb.transition(StateOpen)
		cb.logger.Warn("circuit re-opened, probe failed")
	case cb.state == StateClosed && cb.counts.ConsecutiveFailures >= cb.cfg.FailureThreshold:
		cb.transition(StateOpen)
		cb.logger.Warn("circuit opened",
			"consecutive_failures", cb.counts.ConsecutiveFailures,
			"threshold", cb.cfg.FailureThreshold,
		)
	}
}

func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	cb.state = to
	cb.probesInFlight = 0
	cb.probeSuccesses = 0
	if to == StateOpen {
		cb.openedAt = cb.now()
	}
	if from != to && cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.name, from, to)
	}
}
