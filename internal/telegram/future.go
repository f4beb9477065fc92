package telegram

import (
	"context"
	"sync"
)

// Result is the outcome of a Request.
type Result struct {
	Value any
	Err   error
}

// Future is resolved exactly once. Callbacks registered with Then run on
// the resolving goroutine, or on a new goroutine when registered after
// resolution.
type Future struct {
	once sync.Once
	done chan struct{}

	mu        sync.Mutex
	res       Result
	resolved  bool
	callbacks []func(Result)
}

func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolved returns a Future that already holds res.
func Resolved(res Result) *Future {
	f := NewFuture()
	f.Resolve(res)
	return f
}

// Resolve stores res and runs pending callbacks. Later calls are ignored.
func (f *Future) Resolve(res Result) {
	f.once.Do(func() {
		f.mu.Lock()
		f.res = res
		f.resolved = true
		cbs := f.callbacks
		f.callbacks = nil
		f.mu.Unlock()

		close(f.done)
		for _, cb := range cbs {
			cb(res)
		}
	})
}

// Then registers cb for the result.
func (f *Future) Then(cb func(Result)) {
	f.mu.Lock()
	if !f.resolved {
		f.callbacks = append(f.callbacks, cb)
		f.mu.Unlock()
		return
	}
	res := f.res
	f.mu.Unlock()
	go cb(res)
}

// Done is closed once the future is resolved.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the future resolves or ctx is done.
func (f *Future) Wait(ctx context.Context) (Result, error) {
	select {
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}
