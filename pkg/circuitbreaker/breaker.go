package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests in half-open state")
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
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

type Config struct {
	// MaxRequests is the number of trial calls allowed while half-open.
	MaxRequests      uint32
	Timeout          time.Duration
	FailureThreshold uint32
	SuccessThreshold uint32
	// IsFailure decides whether an error counts against the breaker.
	// Context cancellation by the caller never does.
	IsFailure     func(err error) bool
	OnStateChange func(name string, from State, to State)
	Logger        *zap.Logger
}

type Counts struct {
	Requests             uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

type CircuitBreaker struct {
	name string
	cfg  Config
	now  func() time.Time

	mu       sync.Mutex
	state    State
	counts   Counts
	openedAt time.Time
}

func NewCircuitBreaker(name string, cfg Config) *CircuitBreaker {
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold == 0 {
		cfg.SuccessThreshold = 1
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = func(err error) bool {
			return err != nil && !errors.Is(err, context.Canceled)
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &CircuitBreaker{name: name, cfg: cfg, now: time.Now}
}

func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}

	err := fn(ctx)
	cb.afterRequest(!cb.cfg.IsFailure(err))
	return err
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentState()
}

func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.counts
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.currentState() {
	case StateOpen:
		return ErrCircuitOpen
	case StateHalfOpen:
		if cb.counts.Requests >= cb.cfg.MaxRequests {
			return ErrTooManyRequests
		}
	}

	cb.counts.Requests++
	return nil
}

func (cb *CircuitBreaker) afterRequest(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	state := cb.currentState()
	if success {
		cb.counts.ConsecutiveSuccesses++
		cb.counts.ConsecutiveFailures = 0
		if state == StateHalfOpen && cb.counts.ConsecutiveSuccesses >= cb.cfg.SuccessThreshold {
			cb.setState(StateClosed)
		}
		return
	}

	cb.counts.ConsecutiveFailures++
	cb.counts.ConsecutiveSuccesses = 0
	if state == StateHalfOpen || cb.counts.ConsecutiveFailures >= cb.cfg.FailureThreshold {
		cb.setState(StateOpen)
	}
}

// currentState must be called with mu held.
func (cb *CircuitBreaker) currentState() State {
	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.cfg.Timeout {
		cb.setState(StateHalfOpen)
	}
	return cb.state
}

func (cb *CircuitBreaker) setState(state State) {
	if cb.state == state {
		return
	}

	prev := cb.state
	cb.state = state
	cb.counts = Counts{}
	if state == StateOpen {
		cb.openedAt = cb.now()
	}

	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.name, prev, state)
	}

	cb.cfg.Logger.Info("Circuit breaker state changed",
		zap.String("name", cb.name),
		zap.String("from", prev.String()),
		zap.String("to", state.String()),
	)
}
