// -------------------------------------------------------------------------------
// CircuitBreakerStore - Self-Healing Blob Store Degradation Wrapper
//
// Project: Streamlo
//
// Wraps a Store with a three-state circuit breaker that detects blob-store
// outages and returns ErrUnavailable while the circuit is open. Callers fail
// fast instead of stacking timed-out uploads and streams. When the store
// recovers, the circuit auto-closes.
//
// States: closed (healthy) → open (store down) → half-open (probing) → closed.
// -------------------------------------------------------------------------------

package blob

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/dunguyenn/StreamloWebservice/internal/config"
	"github.com/dunguyenn/StreamloWebservice/internal/telemetry"
)

// ErrUnavailable reports that the blob store is unreachable and the circuit
// breaker is rejecting calls without attempting them.
var ErrUnavailable = errors.New("blob store unavailable")

// -------------------------------------------------------------------------
// STATE
// -------------------------------------------------------------------------

type circuitState int

const (
	stateClosed   circuitState = iota // healthy, all calls pass through
	stateOpen                         // store down, return ErrUnavailable
	stateHalfOpen                     // probing, one call allowed through
)

func (s circuitState) String() string {
	switch s {
	case stateClosed:
		return "closed"
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// -------------------------------------------------------------------------
// CIRCUIT BREAKER STORE
// -------------------------------------------------------------------------

// CircuitBreakerStore implements Store by wrapping a real store with circuit
// breaker logic. While the blob store is unreachable it returns ErrUnavailable
// instead of passing calls through.
type CircuitBreakerStore struct {
	real          Store
	mu            sync.Mutex
	state         circuitState
	failures      int
	lastFailure   time.Time
	failThreshold int
	openTimeout   time.Duration
}

// Compile-time check.
var _ Store = (*CircuitBreakerStore)(nil)

// NewCircuitBreakerStore wraps a real Store with circuit breaker logic.
func NewCircuitBreakerStore(real Store, cfg config.CircuitBreakerConfig) *CircuitBreakerStore {
	return &CircuitBreakerStore{
		real:          real,
		state:         stateClosed,
		failThreshold: cfg.FailureThreshold,
		openTimeout:   cfg.OpenTimeout,
	}
}

// IsHealthy returns true when the circuit is closed.
func (cb *CircuitBreakerStore) IsHealthy() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state == stateClosed
}

// -------------------------------------------------------------------------
// STATE MACHINE
// -------------------------------------------------------------------------

// preCheck returns ErrUnavailable while the circuit is open. Transitions
// open → half-open when the timeout has elapsed, allowing one probe request.
func (cb *CircuitBreakerStore) preCheck() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case stateClosed:
		return nil
	case stateOpen:
		if time.Since(cb.lastFailure) >= cb.openTimeout {
			cb.transition(stateHalfOpen)
			return nil // allow this request as the probe
		}
		return ErrUnavailable
	case stateHalfOpen:
		// Only one probe at a time. Concurrent requests during the probe
		// are rejected.
		return ErrUnavailable
	}
	return nil
}

// postCheck records the result of a real store call and transitions state.
// When a store error opens (or reopens) the circuit, the original error is
// replaced with ErrUnavailable so callers always see the canonical sentinel
// for "blob store down".
func (cb *CircuitBreakerStore) postCheck(err error) error {
	if !isStoreError(err) {
		cb.onSuccess()
		return err
	}
	cb.onFailure()
	if !cb.IsHealthy() {
		return ErrUnavailable
	}
	return err
}

// onSuccess resets failures and transitions half-open → closed.
func (cb *CircuitBreakerStore) onSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == stateHalfOpen {
		cb.transition(stateClosed)
	}
	cb.failures = 0
}

// onFailure increments the failure counter and transitions to open if the
// threshold is reached.
func (cb *CircuitBreakerStore) onFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = time.Now()

	switch cb.state {
	case stateHalfOpen:
		cb.transition(stateOpen)
	case stateClosed:
		if cb.failures >= cb.failThreshold {
			cb.transition(stateOpen)
		}
	}
}

// transition changes the circuit state and emits metrics + logs.
// Caller must hold cb.mu.
func (cb *CircuitBreakerStore) transition(to circuitState) {
	from := cb.state
	cb.state = to
	telemetry.BlobCircuitState.Set(float64(to))
	telemetry.BlobCircuitTransitionsTotal.WithLabelValues(from.String(), to.String()).Inc()

	switch to {
	case stateClosed:
		slog.Info("Circuit breaker: blob store recovered, circuit closed")
	case stateOpen:
		slog.Warn("Circuit breaker: blob store unreachable, circuit opened",
			"failures", cb.failures)
	case stateHalfOpen:
		slog.Warn("Circuit breaker: probing blob store")
	}
}

// isStoreError returns true for genuine blob-store failures. A missing blob
// is an application-level miss and does not trip the circuit breaker.
func isStoreError(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrNotFound)
}

// -------------------------------------------------------------------------
// FORWARDING METHODS
// -------------------------------------------------------------------------

// Each method follows the pattern: preCheck → real.Method → postCheck.

func (cb *CircuitBreakerStore) Put(ctx context.Context, bucket, id string, body io.Reader, size int64, contentType string) error {
	if err := cb.preCheck(); err != nil {
		return err
	}
	err := cb.real.Put(ctx, bucket, id, body, size, contentType)
	return cb.postCheck(err)
}

func (cb *CircuitBreakerStore) Open(ctx context.Context, bucket, id string) (*Object, error) {
	if err := cb.preCheck(); err != nil {
		return nil, err
	}
	obj, err := cb.real.Open(ctx, bucket, id)
	err = cb.postCheck(err)
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func (cb *CircuitBreakerStore) Delete(ctx context.Context, bucket, id string) error {
	if err := cb.preCheck(); err != nil {
		return err
	}
	err := cb.real.Delete(ctx, bucket, id)
	return cb.postCheck(err)
}
