package txretry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestDoRetriesConflicts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{MaxAttempts: 3, Backoff: time.Millisecond}, "test", func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("serialize: %w", ErrConflict)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoGivesUp(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{MaxAttempts: 2, Backoff: time.Millisecond}, "test", func() error {
		calls++
		return ErrConflict
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestDoDoesNotRetryOtherErrors(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Do(context.Background(), DefaultPolicy(), "test", func() error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) || calls != 1 {
		t.Fatalf("expected single call returning boom, got %d calls, err=%v", calls, err)
	}
}

func TestDoHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, Policy{MaxAttempts: 5, Backoff: time.Second}, "test", func() error {
		return ErrConflict
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDoKeepsConflictOnExhaustion(t *testing.T) {
	err := Do(context.Background(), Policy{MaxAttempts: 3}, "charge", func() error {
		return fmt.Errorf("serialize: %w", ErrConflict)
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if want := "transient transaction conflict: charge gave up after 3 attempts"; err.Error() != want {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestDoStopsWhenContextCancelledBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, Policy{MaxAttempts: 5, Backoff: time.Second}, "test", func() error {
		calls++
		cancel()
		return ErrConflict
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestDoSingleAttemptPolicy(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{}, "test", func() error {
		calls++
		return ErrConflict
	})
	if !errors.Is(err, ErrConflict) || calls != 1 {
		t.Fatalf("expected one call and ErrConflict, got %d calls, err=%v", calls, err)
	}
}
