// Package telegramtest provides an in-memory telegram.Adapter for tests.
package telegramtest

import (
	"context"
	"sync"
	"time"

	"github.com/danhigham/tgterm/internal/domain"
	"github.com/danhigham/tgterm/internal/telegram"
)

// Call is a request observed by the fake together with its future.
type Call struct {
	Request telegram.Request
	Future  *telegram.Future
}

// Adapter records requests and lets the test push updates. Requests are
// answered by Responder when set; otherwise their futures stay pending
// until the test resolves them.
type Adapter struct {
	// Responder, when non-nil, produces the result for each request.
	Responder func(req telegram.Request) telegram.Result

	calls   chan Call
	started chan struct{}
	once    sync.Once

	mu       sync.Mutex
	handlers []telegram.UpdateHandler
	sent     []telegram.Request
}

func New() *Adapter {
	return &Adapter{
		calls:   make(chan Call, 64),
		started: make(chan struct{}),
	}
}

// Run blocks until ctx is done and then pushes Closing and Closed.
func (a *Adapter) Run(ctx context.Context) error {
	a.once.Do(func() { close(a.started) })
	<-ctx.Done()
	a.PushState(domain.AuthClosing)
	a.PushState(domain.AuthClosed)
	return nil
}

func (a *Adapter) Send(ctx context.Context, req telegram.Request) *telegram.Future {
	fut := telegram.NewFuture()

	a.mu.Lock()
	a.sent = append(a.sent, req)
	respond := a.Responder
	a.mu.Unlock()

	a.calls <- Call{Request: req, Future: fut}
	if respond != nil {
		fut.Resolve(respond(req))
	}
	return fut
}

func (a *Adapter) Subscribe(h telegram.UpdateHandler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handlers = append(a.handlers, h)
}

// Push delivers u to every subscriber on the calling goroutine.
func (a *Adapter) Push(u telegram.Update) {
	a.mu.Lock()
	handlers := append([]telegram.UpdateHandler(nil), a.handlers...)
	a.mu.Unlock()
	for _, h := range handlers {
		h.HandleUpdate(u)
	}
}

func (a *Adapter) PushState(s domain.AuthorizationState) {
	a.Push(telegram.UpdateAuthorizationState{State: s})
}

// Started is closed once Run has been called.
func (a *Adapter) Started() <-chan struct{} {
	return a.started
}

// Sent returns every request seen so far.
func (a *Adapter) Sent() []telegram.Request {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]telegram.Request(nil), a.sent...)
}

// Next returns the next request, or false after timeout.
func (a *Adapter) Next(timeout time.Duration) (Call, bool) {
	select {
	case c := <-a.calls:
		return c, true
	case <-time.After(timeout):
		return Call{}, false
	}
}
