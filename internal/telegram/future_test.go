package telegram

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFuture_ResolveOnce(t *testing.T) {
	f := NewFuture()
	calls := 0
	f.Then(func(res Result) {
		calls++
		if res.Value != 1 {
			t.Errorf("Value = %v, want 1", res.Value)
		}
	})

	f.Resolve(Result{Value: 1})
	f.Resolve(Result{Value: 2})

	if calls != 1 {
		t.Errorf("callback ran %d times, want 1", calls)
	}
	res, err := f.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait() error: %v", err)
	}
	if res.Value != 1 {
		t.Errorf("Wait() Value = %v, want 1", res.Value)
	}
}

func TestFuture_ThenAfterResolve(t *testing.T) {
	f := Resolved(Result{Err: errors.New("boom")})

	got := make(chan Result, 1)
	f.Then(func(res Result) { got <- res })

	select {
	case res := <-got:
		if res.Err == nil || res.Err.Error() != "boom" {
			t.Errorf("Err = %v, want boom", res.Err)
		}
	case <-time.After(time.Second):
		t.Fatal("callback registered after resolution never ran")
	}
}

func TestFuture_WaitContext(t *testing.T) {
	f := NewFuture()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := f.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want deadline exceeded", err)
	}

	// A late resolution must not block.
	f.Resolve(Result{Value: "late"})
	select {
	case <-f.Done():
	default:
		t.Error("Done() not closed after Resolve")
	}
}
