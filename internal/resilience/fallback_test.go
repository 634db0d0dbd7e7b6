package resilience

import (
	"errors"
	"testing"
	"time"
)

// fakeStore stands in for a history-store backend in fallback tests.
type fakeStore struct {
	name string
	err  error

	calls int
}

func (f *fakeStore) lookup() (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.name, nil
}

func TestFallbackGroup_PrimarySucceeds(t *testing.T) {
	primary := &fakeStore{name: "postgres"}
	fallback := &fakeStore{name: "memory"}

	fg := NewFallbackGroup(primary, "postgres", FallbackConfig{})
	fg.AddFallback("memory", fallback)

	got, err := ExecuteWithResult(fg, func(s *fakeStore) (string, error) {
		return s.lookup()
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "postgres" {
		t.Errorf("result = %q, want %q", got, "postgres")
	}
	if fallback.calls != 0 {
		t.Errorf("fallback was called %d times, want 0", fallback.calls)
	}
}

func TestFallbackGroup_DegradesToFallback(t *testing.T) {
	primary := &fakeStore{name: "postgres", err: errBackend}
	fallback := &fakeStore{name: "memory"}

	fg := NewFallbackGroup(primary, "postgres", FallbackConfig{})
	fg.AddFallback("memory", fallback)

	got, err := ExecuteWithResult(fg, func(s *fakeStore) (string, error) {
		return s.lookup()
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "memory" {
		t.Errorf("result = %q, want %q", got, "memory")
	}
}

func TestFallbackGroup_AllFail(t *testing.T) {
	primary := &fakeStore{name: "postgres", err: errBackend}
	fallback := &fakeStore{name: "memory", err: errBackend}

	fg := NewFallbackGroup(primary, "postgres", FallbackConfig{})
	fg.AddFallback("memory", fallback)

	err := fg.Execute(func(s *fakeStore) error {
		_, err := s.lookup()
		return err
	})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestFallbackGroup_SkipsOpenBreaker(t *testing.T) {
	primary := &fakeStore{name: "postgres", err: errBackend}
	fallback := &fakeStore{name: "memory"}

	fg := NewFallbackGroup(primary, "postgres", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour},
	})
	fg.AddFallback("memory", fallback)

	// First call trips the primary's breaker.
	_ = fg.Execute(func(s *fakeStore) error {
		_, err := s.lookup()
		return err
	})
	primaryCalls := primary.calls

	// Subsequent calls must go straight to the fallback.
	_ = fg.Execute(func(s *fakeStore) error {
		_, err := s.lookup()
		return err
	})
	if primary.calls != primaryCalls {
		t.Errorf("primary called %d more times after breaker opened", primary.calls-primaryCalls)
	}
	if fallback.calls != 2 {
		t.Errorf("fallback calls = %d, want 2", fallback.calls)
	}
}
