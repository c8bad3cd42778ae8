package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestInProcessLimiter(t *testing.T) {
	l := NewInProcessLimiter(2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.Allow(ctx, "m1"); err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}
	if err := l.Allow(ctx, "m1"); !errors.Is(err, ErrTooManyRequests) {
		t.Errorf("third attempt: err = %v, want ErrTooManyRequests", err)
	}

	// Other keys have their own budget.
	if err := l.Allow(ctx, "m2"); err != nil {
		t.Errorf("other key: %v", err)
	}
}

func TestInProcessLimiter_WindowResets(t *testing.T) {
	l := NewInProcessLimiter(1, time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	if err := l.Allow(ctx, "m1"); err != nil {
		t.Fatalf("first: %v", err)
	}
	if err := l.Allow(ctx, "m1"); err == nil {
		t.Fatal("second within window: err = nil, want limit")
	}

	now = now.Add(time.Minute)
	if err := l.Allow(ctx, "m1"); err != nil {
		t.Errorf("after window: %v", err)
	}
}

func TestInProcessLimiter_Disabled(t *testing.T) {
	l := NewInProcessLimiter(0, time.Minute)
	for i := 0; i < 100; i++ {
		if err := l.Allow(context.Background(), "m1"); err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}
}

func TestInProcessLimiter_Sweep(t *testing.T) {
	l := NewInProcessLimiter(1, time.Second)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2000; i++ {
		l.Allow(ctx, time.Duration(i).String())
	}
	now = now.Add(2 * time.Second)
	l.Allow(ctx, "fresh")

	l.mu.Lock()
	n := len(l.counters)
	l.mu.Unlock()
	if n != 1 {
		t.Errorf("counters after sweep = %d, want 1", n)
	}
}

func TestNoLimit(t *testing.T) {
	var l RateLimiter = NoLimit{}
	if err := l.Allow(context.Background(), "m1"); err != nil {
		t.Errorf("NoLimit.Allow = %v, want nil", err)
	}
}
