// Package login drives the authorization dialogue. Adapter pushes arrive
// through HandleState; the prompts they require are run by Wait on the
// interactive goroutine.
package login

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/danhigham/tgterm/internal/domain"
	"github.com/danhigham/tgterm/internal/telegram"
)

var (
	// ErrClosed is returned when the client closed before becoming ready.
	ErrClosed = errors.New("client closed before login completed")
	// ErrAuthFailed wraps the protocol or input error that ended the login.
	ErrAuthFailed  = errors.New("authentication failed")
	ErrAuthTimeout = errors.New("authentication timed out")
)

// Terminal is the part of the console the dialogue needs.
type Terminal interface {
	ReadLine(prompt string) (string, error)
	ReadSecret(prompt string) (string, error)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

// Machine reacts to authorization states pushed by the adapter.
type Machine struct {
	adapter telegram.Adapter
	term    Terminal
	params  telegram.SetParameters
	timeout time.Duration
	logger  *zap.Logger

	mu      sync.Mutex
	state   domain.AuthorizationState
	pending *prompt
	wake    chan struct{}

	doneOnce sync.Once
	done     chan struct{}
	err      error

	closeOnce sync.Once
	closed    chan struct{}
}

type prompt struct {
	state domain.AuthorizationState
	hint  string
}

// New returns a machine that answers AwaitingParameters with params.
// A positive timeout bounds Wait.
func New(adapter telegram.Adapter, term Terminal, params telegram.SetParameters, timeout time.Duration, logger *zap.Logger) *Machine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{
		adapter: adapter,
		term:    term,
		params:  params,
		timeout: timeout,
		logger:  logger,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		closed:  make(chan struct{}),
	}
}

// State returns the last state pushed by the adapter.
func (m *Machine) State() domain.AuthorizationState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Closed is closed once the adapter reports AuthClosed.
func (m *Machine) Closed() <-chan struct{} {
	return m.closed
}

// HandleState applies an authorization push. It never blocks.
func (m *Machine) HandleState(u telegram.UpdateAuthorizationState) {
	m.mu.Lock()
	m.state = u.State
	m.mu.Unlock()

	m.logger.Debug("authorization state", zap.Stringer("state", u.State))

	switch u.State {
	case domain.AuthAwaitingParameters:
		m.adapter.Send(context.Background(), m.params).Then(m.check("set parameters"))
	case domain.AuthAwaitingPhoneNumber, domain.AuthAwaitingCode, domain.AuthAwaitingPassword:
		m.mu.Lock()
		m.pending = &prompt{state: u.State, hint: u.Hint}
		m.mu.Unlock()
		select {
		case m.wake <- struct{}{}:
		default:
		}
	case domain.AuthReady:
		m.resolve(nil)
	case domain.AuthLoggingOut:
		m.term.Info("Logging out...")
	case domain.AuthClosing:
		m.term.Info("Closing connection...")
	case domain.AuthClosed:
		m.resolve(ErrClosed)
		m.closeOnce.Do(func() { close(m.closed) })
	}
}

// HandleError fails a pending login. It is a no-op once resolved.
func (m *Machine) HandleError(err error) {
	m.fail(err)
}

// Wait runs prompts as they are requested and returns when the adapter
// reports Ready (nil) or the login fails.
func (m *Machine) Wait(ctx context.Context) error {
	var expired <-chan time.Time
	if m.timeout > 0 {
		timer := time.NewTimer(m.timeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		// A resolution wins over a prompt that raced with it.
		select {
		case <-m.done:
			return m.err
		default:
		}

		select {
		case <-m.done:
			return m.err
		case <-m.wake:
			m.runPrompt(ctx)
		case <-expired:
			return ErrAuthTimeout
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Err returns the outcome once the machine has resolved.
func (m *Machine) Err() error {
	if m.resolved() {
		return m.err
	}
	return nil
}

func (m *Machine) runPrompt(ctx context.Context) {
	m.mu.Lock()
	p := m.pending
	m.pending = nil
	m.mu.Unlock()
	if p == nil {
		return
	}

	var (
		label string
		read  = m.term.ReadLine
		req   func(string) telegram.Request
	)
	switch p.state {
	case domain.AuthAwaitingPhoneNumber:
		label = "Phone number (international format): "
		req = func(v string) telegram.Request { return telegram.SetPhoneNumber{Phone: v} }
	case domain.AuthAwaitingCode:
		if p.hint != "" {
			m.term.Info("%s", p.hint)
		}
		label = "Verification code: "
		req = func(v string) telegram.Request { return telegram.CheckCode{Code: v} }
	case domain.AuthAwaitingPassword:
		label = "Two-step verification password: "
		read = m.term.ReadSecret
		req = func(v string) telegram.Request { return telegram.CheckPassword{Password: v} }
	default:
		return
	}

	for {
		value, err := read(label)
		// The login may have ended while the prompt was on screen.
		if m.resolved() {
			return
		}
		if err != nil {
			m.fail(fmt.Errorf("read input: %w", err))
			return
		}
		value = strings.TrimSpace(value)
		if value != "" {
			r := req(value)
			m.adapter.Send(ctx, r).Then(m.check(r.Name()))
			return
		}
		m.term.Error("a value is required")
	}
}

// check returns a callback that fails the login if the request failed.
func (m *Machine) check(what string) func(telegram.Result) {
	return func(res telegram.Result) {
		if res.Err == nil {
			return
		}
		m.logger.Warn("authorization request failed", zap.String("request", what), zap.Error(res.Err))
		m.term.Error("%s: %v", what, res.Err)
		m.fail(res.Err)
	}
}

func (m *Machine) resolved() bool {
	select {
	case <-m.done:
		return true
	default:
		return false
	}
}

func (m *Machine) fail(err error) {
	m.resolve(fmt.Errorf("%w: %w", ErrAuthFailed, err))
}

func (m *Machine) resolve(err error) {
	m.doneOnce.Do(func() {
		m.err = err
		close(m.done)
	})
}
