package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errUpstream = errors.New("upstream failed")

func newTestBreaker(timeout time.Duration) *CircuitBreaker {
	return New(Config{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          timeout,
		Component:        "weather_api",
	})
}

func failCall(cb *CircuitBreaker) error {
	return cb.Call(context.Background(), func() error { return errUpstream })
}

func okCall(cb *CircuitBreaker) error {
	return cb.Call(context.Background(), func() error { return nil })
}

// TestCall_StaysClosedOnSuccess verifies successful calls never trip the breaker.
func TestCall_StaysClosedOnSuccess(t *testing.T) {
	cb := newTestBreaker(time.Minute)

	for i := 0; i < 10; i++ {
		if err := okCall(cb); err != nil {
			t.Fatalf("Call() error = %v on success %d", err, i)
		}
	}
	if got := cb.State(); got != StateClosed {
		t.Errorf("State() = %v, want closed", got)
	}
}

// TestCall_OpensAfterFailureThreshold verifies the breaker opens after
// consecutive failures reach the threshold and rejects further calls.
func TestCall_OpensAfterFailureThreshold(t *testing.T) {
	// Arrange
	cb := newTestBreaker(time.Minute)

	// Act: three consecutive failures trips a threshold-3 breaker.
	for i := 0; i < 3; i++ {
		if err := failCall(cb); !errors.Is(err, errUpstream) {
			t.Fatalf("Call() error = %v, want upstream error on failure %d", err, i)
		}
	}

	// Assert
	if got := cb.State(); got != StateOpen {
		t.Fatalf("State() = %v, want open after threshold failures", got)
	}
	if err := okCall(cb); !errors.Is(err, ErrOpen) {
		t.Errorf("Call() error = %v, want ErrOpen while open", err)
	}
}

// TestCall_SuccessResetsFailureCount verifies an intervening success clears
// the consecutive-failure count.
func TestCall_SuccessResetsFailureCount(t *testing.T) {
	cb := newTestBreaker(time.Minute)

	_ = failCall(cb)
	_ = failCall(cb)
	_ = okCall(cb)
	_ = failCall(cb)
	_ = failCall(cb)

	if got := cb.State(); got != StateClosed {
		t.Errorf("State() = %v, want closed when failures never reach threshold consecutively", got)
	}
}

// TestCall_HalfOpenClosesAfterSuccesses verifies the recovery path: open,
// wait out the timeout, then enough probe successes close the breaker.
func TestCall_HalfOpenClosesAfterSuccesses(t *testing.T) {
	// Arrange
	cb := newTestBreaker(20 * time.Millisecond)
	for i := 0; i < 3; i++ {
		_ = failCall(cb)
	}
	if got := cb.State(); got != StateOpen {
		t.Fatalf("State() = %v, want open", got)
	}

	// Act
	time.Sleep(30 * time.Millisecond)
	if err := okCall(cb); err != nil {
		t.Fatalf("Call() probe error = %v", err)
	}
	if got := cb.State(); got != StateHalfOpen {
		t.Fatalf("State() = %v, want half_open after first probe success", got)
	}
	if err := okCall(cb); err != nil {
		t.Fatalf("Call() second probe error = %v", err)
	}

	// Assert
	if got := cb.State(); got != StateClosed {
		t.Errorf("State() = %v, want closed after success threshold probes", got)
	}
}

// TestCall_HalfOpenReopensOnFailure verifies a failed probe sends the breaker
// straight back to open.
func TestCall_HalfOpenReopensOnFailure(t *testing.T) {
	cb := newTestBreaker(20 * time.Millisecond)
	for i := 0; i < 3; i++ {
		_ = failCall(cb)
	}
	time.Sleep(30 * time.Millisecond)

	if err := failCall(cb); !errors.Is(err, errUpstream) {
		t.Fatalf("Call() probe error = %v, want upstream error", err)
	}
	if got := cb.State(); got != StateOpen {
		t.Errorf("State() = %v, want open after failed probe", got)
	}
}

// TestNew_AppliesDefaults verifies zero-value config gets sane thresholds.
func TestNew_AppliesDefaults(t *testing.T) {
	cb := New(Config{})
	if cb.failureThreshold != 5 || cb.successThreshold != 2 || cb.timeout != 30*time.Second {
		t.Errorf("defaults = (%d, %d, %v), want (5, 2, 30s)",
			cb.failureThreshold, cb.successThreshold, cb.timeout)
	}
}

// TestOnStateChange verifies transition callbacks fire with correct states.
func TestOnStateChange(t *testing.T) {
	// Arrange
	type transition struct{ from, to State }
	var transitions []transition
	cb := New(Config{
		FailureThreshold: 2,
		SuccessThreshold: 1,
		Timeout:          20 * time.Millisecond,
		OnStateChange: func(from, to State) {
			transitions = append(transitions, transition{from, to})
		},
	})

	// Act: closed -> open -> half_open -> closed
	_ = failCall(cb)
	_ = failCall(cb)
	time.Sleep(30 * time.Millisecond)
	_ = okCall(cb)

	// Assert
	want := []transition{
		{StateClosed, StateOpen},
		{StateOpen, StateHalfOpen},
		{StateHalfOpen, StateClosed},
	}
	if len(transitions) != len(want) {
		t.Fatalf("got %d transitions %v, want %d", len(transitions), transitions, len(want))
	}
	for i, tr := range want {
		if transitions[i] != tr {
			t.Errorf("transition %d = %v->%v, want %v->%v",
				i, transitions[i].from, transitions[i].to, tr.from, tr.to)
		}
	}
}
