// -------------------------------------------------------------------------------
// Blob Store - Circuit Breaker Tests
//
// Project: Streamlo
// -------------------------------------------------------------------------------

package blob

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dunguyenn/StreamloWebservice/internal/config"
)

func newTestCB(mock *mockStore, threshold int, timeout time.Duration) *CircuitBreakerStore {
	return NewCircuitBreakerStore(mock, config.CircuitBreakerConfig{
		FailureThreshold: threshold,
		OpenTimeout:      timeout,
	})
}

func (m *mockStore) setOpenErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openErr = err
}

func (m *mockStore) openCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.opens)
}

func TestCircuitBreaker_ClosedPassesThrough(t *testing.T) {
	mock := newMockStore()
	mock.blobs["audio/t1"] = storedBlob{data: []byte("mp3"), contentType: "audio/mpeg"}
	cb := newTestCB(mock, 3, time.Minute)

	obj, err := cb.Open(context.Background(), "audio", "t1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	obj.Body.Close()
	if obj.Size != 3 {
		t.Fatalf("unexpected size: %d", obj.Size)
	}
	if mock.openCount() != 1 {
		t.Fatalf("expected 1 call, got %d", mock.openCount())
	}
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	storeErr := errors.New("connection refused")
	mock := newMockStore()
	mock.setOpenErr(storeErr)
	cb := newTestCB(mock, 3, time.Minute)

	ctx := context.Background()

	// First 2 calls pass through and return the raw store error
	for i := 0; i < 2; i++ {
		_, err := cb.Open(ctx, "audio", "t1")
		if !errors.Is(err, storeErr) {
			t.Fatalf("call %d: expected store error, got %v", i, err)
		}
	}

	// 3rd call trips the threshold, circuit opens, returns ErrUnavailable
	_, err := cb.Open(ctx, "audio", "t1")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("call 2: expected ErrUnavailable, got %v", err)
	}
	if mock.openCount() != 3 {
		t.Fatalf("expected 3 calls, got %d", mock.openCount())
	}

	// 4th call returns ErrUnavailable without hitting the real store
	_, err = cb.Open(ctx, "audio", "t1")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if mock.openCount() != 3 {
		t.Fatalf("expected mock not called again, got %d", mock.openCount())
	}
}

func TestCircuitBreaker_HalfOpenAfterTimeout(t *testing.T) {
	mock := newMockStore()
	mock.setOpenErr(errors.New("connection refused"))
	cb := newTestCB(mock, 1, 10*time.Millisecond)

	ctx := context.Background()

	// Trip the circuit
	_, _ = cb.Open(ctx, "audio", "t1")

	// Should be open
	_, err := cb.Open(ctx, "audio", "t1")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}

	// Wait for timeout
	time.Sleep(15 * time.Millisecond)

	// Next call should probe (pass through to the real store)
	mock.setOpenErr(nil)
	mock.mu.Lock()
	mock.blobs["audio/t1"] = storedBlob{data: []byte("mp3"), contentType: "audio/mpeg"}
	mock.mu.Unlock()

	obj, err := cb.Open(ctx, "audio", "t1")
	if err != nil {
		t.Fatalf("probe should succeed: %v", err)
	}
	obj.Body.Close()

	// Circuit should be closed again
	if !cb.IsHealthy() {
		t.Fatal("expected circuit to be closed after successful probe")
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	mock := newMockStore()
	mock.setOpenErr(errors.New("connection refused"))
	cb := newTestCB(mock, 1, 10*time.Millisecond)

	ctx := context.Background()

	// Trip the circuit
	_, _ = cb.Open(ctx, "audio", "t1")

	// Wait for timeout
	time.Sleep(15 * time.Millisecond)

	// Probe fails, circuit reopens, returns ErrUnavailable
	_, err := cb.Open(ctx, "audio", "t1")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable on failed probe, got %v", err)
	}

	// Circuit should be open again
	_, err = cb.Open(ctx, "audio", "t1")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable after failed probe, got %v", err)
	}
}

func TestCircuitBreaker_MissingBlobDoesNotTrip(t *testing.T) {
	mock := newMockStore()
	cb := newTestCB(mock, 1, time.Minute)

	ctx := context.Background()

	// Misses are application-level and must not trip the circuit
	for i := 0; i < 5; i++ {
		_, err := cb.Open(ctx, "audio", "missing")
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	}

	if !cb.IsHealthy() {
		t.Fatal("circuit should remain closed for missing blobs")
	}
	if mock.openCount() != 5 {
		t.Fatalf("all 5 calls should have passed through, got %d", mock.openCount())
	}
}

func TestCircuitBreaker_IsHealthy(t *testing.T) {
	mock := newMockStore()
	mock.setOpenErr(errors.New("down"))
	cb := newTestCB(mock, 1, time.Minute)

	if !cb.IsHealthy() {
		t.Fatal("should start healthy")
	}

	_, _ = cb.Open(context.Background(), "audio", "t1")

	if cb.IsHealthy() {
		t.Fatal("should be unhealthy after tripping")
	}
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	mock := newMockStore()
	mock.blobs["audio/t1"] = storedBlob{data: []byte("mp3"), contentType: "audio/mpeg"}
	cb := newTestCB(mock, 3, time.Minute)

	ctx := context.Background()
	storeErr := errors.New("temporary")

	// 2 failures (below threshold)
	mock.setOpenErr(storeErr)
	_, _ = cb.Open(ctx, "audio", "t1")
	_, _ = cb.Open(ctx, "audio", "t1")

	// 1 success resets the counter
	mock.setOpenErr(nil)
	obj, err := cb.Open(ctx, "audio", "t1")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	obj.Body.Close()

	// 2 more failures should not trip (counter was reset)
	mock.setOpenErr(storeErr)
	_, _ = cb.Open(ctx, "audio", "t1")
	_, _ = cb.Open(ctx, "audio", "t1")

	if !cb.IsHealthy() {
		t.Fatal("circuit should still be closed after reset + 2 failures")
	}
}
