package telegram

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"

	"github.com/danhigham/tgterm/internal/domain"
)

// ErrUnexpectedRequest is returned for an auth request that does not
// match the stage the client is waiting for.
var ErrUnexpectedRequest = errors.New("request does not match the current authorization state")

type submission struct {
	value string
	fut   *Future
}

// pushAuth implements gotd's auth.UserAuthenticator. Each stage is
// announced as an UpdateAuthorizationState and answered by the matching
// request; that request's future resolves once gotd has accepted the
// value, i.e. when the next stage starts or the flow ends.
type pushAuth struct {
	emit func(Update)

	phoneCh    chan submission
	codeCh     chan submission
	passwordCh chan submission

	mu       sync.Mutex
	awaiting domain.AuthorizationState
	waiting  bool
	pending  *Future
}

func newPushAuth(emit func(Update)) *pushAuth {
	return &pushAuth{
		emit:       emit,
		phoneCh:    make(chan submission, 1),
		codeCh:     make(chan submission, 1),
		passwordCh: make(chan submission, 1),
	}
}

func (a *pushAuth) submit(stage domain.AuthorizationState, value string) *Future {
	fut := NewFuture()

	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.waiting || a.awaiting != stage {
		fut.Resolve(Result{Err: ErrUnexpectedRequest})
		return fut
	}

	var ch chan submission
	switch stage {
	case domain.AuthAwaitingPhoneNumber:
		ch = a.phoneCh
	case domain.AuthAwaitingCode:
		ch = a.codeCh
	default:
		ch = a.passwordCh
	}
	select {
	case ch <- submission{value: value, fut: fut}:
		a.waiting = false
	default:
		fut.Resolve(Result{Err: ErrUnexpectedRequest})
	}
	return fut
}

// settle resolves the outstanding submission, if any, with err.
// It reports whether a submission was waiting for the outcome.
func (a *pushAuth) settle(err error) bool {
	a.mu.Lock()
	fut := a.pending
	a.pending = nil
	a.mu.Unlock()

	if fut == nil {
		return false
	}
	fut.Resolve(Result{Err: err})
	return true
}

func (a *pushAuth) await(ctx context.Context, stage domain.AuthorizationState, hint string, ch chan submission) (string, error) {
	a.settle(nil)

	a.mu.Lock()
	a.awaiting = stage
	a.waiting = true
	a.mu.Unlock()

	a.emit(UpdateAuthorizationState{State: stage, Hint: hint})

	select {
	case s := <-ch:
		a.mu.Lock()
		a.pending = s.fut
		a.mu.Unlock()
		return s.value, nil
	case <-ctx.Done():
		a.mu.Lock()
		a.waiting = false
		a.mu.Unlock()
		return "", ctx.Err()
	}
}

func (a *pushAuth) Phone(ctx context.Context) (string, error) {
	return a.await(ctx, domain.AuthAwaitingPhoneNumber, "", a.phoneCh)
}

func (a *pushAuth) Code(ctx context.Context, sentCode *tg.AuthSentCode) (string, error) {
	return a.await(ctx, domain.AuthAwaitingCode, codeHint(sentCode), a.codeCh)
}

func (a *pushAuth) Password(ctx context.Context) (string, error) {
	return a.await(ctx, domain.AuthAwaitingPassword, "", a.passwordCh)
}

func (a *pushAuth) AcceptTermsOfService(ctx context.Context, tos tg.HelpTermsOfService) error {
	return &auth.SignUpRequired{TermsOfService: tos}
}

func (a *pushAuth) SignUp(ctx context.Context) (auth.UserInfo, error) {
	return auth.UserInfo{}, errors.New("sign up not supported")
}

func codeHint(sentCode *tg.AuthSentCode) string {
	if sentCode == nil {
		return ""
	}
	switch t := sentCode.Type.(type) {
	case *tg.AuthSentCodeTypeApp:
		return fmt.Sprintf("code sent to your Telegram app (%d digits)", t.Length)
	case *tg.AuthSentCodeTypeSMS:
		return fmt.Sprintf("code sent by SMS (%d digits)", t.Length)
	case *tg.AuthSentCodeTypeCall:
		return fmt.Sprintf("code dictated by phone call (%d digits)", t.Length)
	case *tg.AuthSentCodeTypeFlashCall:
		return "code is the number of the incoming call"
	default:
		return ""
	}
}
