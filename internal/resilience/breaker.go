package resilience

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"device-loan-backend/internal/logger"
)

type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

func fromGobreaker(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// BreakerSettings configures one breaker.
type BreakerSettings struct {
	// FailureThreshold consecutive failures open the breaker.
	FailureThreshold int
	// ResetTimeout is how long the breaker stays open before a trial call.
	ResetTimeout time.Duration
	// MonitoringPeriod clears the closed-state counters periodically.
	MonitoringPeriod time.Duration
}

// StateListener is told about every transition. It runs while the breaker
// holds its lock and must not call back into the breaker.
type StateListener func(name string, from, to State)

// BreakerSnapshot is a point-in-time view of a breaker for health reporting.
type BreakerSnapshot struct {
	Name                string    `json:"name"`
	State               State     `json:"state"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	TotalFailures       int       `json:"total_failures"`
	Requests            int       `json:"requests"`
	LastTransition      time.Time `json:"last_transition"`
}

// CircuitBreaker fails fast once a dependency keeps failing and probes it
// again after a cool-down.
type CircuitBreaker struct {
	name     string
	settings BreakerSettings
	cb       *gobreaker.CircuitBreaker

	mu             sync.Mutex
	consecutive    int
	failures       int
	requests       int
	lastTransition time.Time
	windowStart    time.Time
	listeners      []StateListener
}

func NewCircuitBreaker(name string, settings BreakerSettings, listeners ...StateListener) *CircuitBreaker {
	if settings.FailureThreshold < 1 {
		settings.FailureThreshold = 1
	}

	now := time.Now().UTC()
	b := &CircuitBreaker{
		name:           name,
		settings:       settings,
		lastTransition: now,
		windowStart:    now,
		listeners:      append([]StateListener(nil), listeners...),
	}

	threshold := uint32(settings.FailureThreshold)
	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    settings.MonitoringPeriod,
		Timeout:     settings.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: b.onStateChange,
	})
	return b
}

func (b *CircuitBreaker) onStateChange(name string, from, to gobreaker.State) {
	f, t := fromGobreaker(from), fromGobreaker(to)

	b.mu.Lock()
	b.lastTransition = time.Now().UTC()
	b.windowStart = b.lastTransition
	b.consecutive = 0
	b.failures = 0
	b.requests = 0
	listeners := b.listeners
	b.mu.Unlock()

	if t == StateOpen {
		logger.Warn("Circuit breaker opened", "breaker", name, "from", f)
	} else {
		logger.Info("Circuit breaker state changed", "breaker", name, "from", f, "to", t)
	}
	for _, l := range listeners {
		l(name, f, t)
	}
}

func (b *CircuitBreaker) Name() string {
	return b.name
}

func (b *CircuitBreaker) State() State {
	return fromGobreaker(b.cb.State())
}

// Execute runs op unless the breaker is open. A rejected call returns a
// *CircuitOpenError and op is not invoked.
func (b *CircuitBreaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		err := op(ctx)
		b.record(err)
		return nil, err
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		logger.DebugContext(ctx, "Circuit breaker rejected call", "breaker", b.name)
		return &CircuitOpenError{Name: b.name, State: b.State()}
	}

	return err
}

func (b *CircuitBreaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now().UTC()
	if p := b.settings.MonitoringPeriod; p > 0 && now.Sub(b.windowStart) >= p {
		b.consecutive, b.failures, b.requests = 0, 0, 0
		b.windowStart = now
	}

	b.requests++
	if err != nil {
		b.consecutive++
		b.failures++
		return
	}
	b.consecutive = 0
}

// Subscribe adds a transition listener.
func (b *CircuitBreaker) Subscribe(l StateListener) {
	b.mu.Lock()
	b.listeners = append(b.listeners, l)
	b.mu.Unlock()
}

// Snapshot reports the state and the counts gathered in the current
// monitoring window.
func (b *CircuitBreaker) Snapshot() BreakerSnapshot {
	state := b.State()

	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerSnapshot{
		Name:                b.name,
		State:               state,
		ConsecutiveFailures: b.consecutive,
		TotalFailures:       b.failures,
		Requests:            b.requests,
		LastTransition:      b.lastTransition,
	}
}

// Registry owns one breaker per dependency name for the life of the process.
type Registry struct {
	defaults  BreakerSettings
	listeners []StateListener

	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
}

func NewRegistry(defaults BreakerSettings, listeners ...StateListener) *Registry {
	return &Registry{
		defaults:  defaults,
		listeners: listeners,
		breakers:  make(map[string]*CircuitBreaker),
	}
}

// Get returns the breaker for name, creating it with the registry defaults on
// first use.
func (r *Registry) Get(name string) *CircuitBreaker {
	r.mu.RLock()
	b, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[name]; ok {
		return b
	}
	b = NewCircuitBreaker(name, r.defaults, r.listeners...)
	r.breakers[name] = b
	return b
}

// Register installs a breaker with its own settings, replacing any previous one.
func (r *Registry) Register(name string, settings BreakerSettings) *CircuitBreaker {
	b := NewCircuitBreaker(name, settings, r.listeners...)

	r.mu.Lock()
	r.breakers[name] = b
	r.mu.Unlock()
	return b
}

// Subscribe adds a listener to every current and future breaker.
func (r *Registry) Subscribe(l StateListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
	for _, b := range r.breakers {
		b.Subscribe(l)
	}
}

// Snapshots returns every breaker ordered by name.
func (r *Registry) Snapshots() []BreakerSnapshot {
	r.mu.RLock()
	out := make([]BreakerSnapshot, 0, len(r.breakers))
	for _, b := range r.breakers {
		out = append(out, b.Snapshot())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
