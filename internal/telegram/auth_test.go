package telegram

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gotd/td/tg"

	"github.com/danhigham/tgterm/internal/domain"
)

func waitState(t *testing.T, updates <-chan Update, want domain.AuthorizationState) UpdateAuthorizationState {
	t.Helper()
	select {
	case u := <-updates:
		st, ok := u.(UpdateAuthorizationState)
		if !ok || st.State != want {
			t.Fatalf("update = %#v, want state %v", u, want)
		}
		return st
	case <-time.After(time.Second):
		t.Fatalf("no %v update", want)
	}
	return UpdateAuthorizationState{}
}

func TestPushAuth_Stages(t *testing.T) {
	updates := make(chan Update, 4)
	a := newPushAuth(func(u Update) { updates <- u })
	ctx := context.Background()

	// Nothing is awaited yet.
	res, _ := a.submit(domain.AuthAwaitingPhoneNumber, "+100").Wait(ctx)
	if !errors.Is(res.Err, ErrUnexpectedRequest) {
		t.Fatalf("early submit error = %v, want ErrUnexpectedRequest", res.Err)
	}

	phone := make(chan string, 1)
	go func() {
		v, _ := a.Phone(ctx)
		phone <- v
	}()
	waitState(t, updates, domain.AuthAwaitingPhoneNumber)

	// A code submitted while the phone number is awaited is rejected.
	res, _ = a.submit(domain.AuthAwaitingCode, "12345").Wait(ctx)
	if !errors.Is(res.Err, ErrUnexpectedRequest) {
		t.Fatalf("mismatched submit error = %v, want ErrUnexpectedRequest", res.Err)
	}

	phoneFut := a.submit(domain.AuthAwaitingPhoneNumber, "+15550001")
	if got := <-phone; got != "+15550001" {
		t.Fatalf("Phone() = %q", got)
	}
	select {
	case <-phoneFut.Done():
		t.Fatal("phone request resolved before gotd accepted it")
	default:
	}

	code := make(chan string, 1)
	go func() {
		v, _ := a.Code(ctx, &tg.AuthSentCode{Type: &tg.AuthSentCodeTypeApp{Length: 5}})
		code <- v
	}()
	st := waitState(t, updates, domain.AuthAwaitingCode)
	if st.Hint == "" {
		t.Error("expected a hint for the code prompt")
	}

	res, err := phoneFut.Wait(ctx)
	if err != nil || res.Err != nil {
		t.Fatalf("phone request = %v/%v, want success", res.Err, err)
	}

	codeFut := a.submit(domain.AuthAwaitingCode, "00000")
	<-code

	invalid := errors.New("PHONE_CODE_INVALID")
	if !a.settle(invalid) {
		t.Fatal("settle() reported no pending request")
	}
	res, _ = codeFut.Wait(ctx)
	if !errors.Is(res.Err, invalid) {
		t.Errorf("code request error = %v, want %v", res.Err, invalid)
	}
	if a.settle(nil) {
		t.Error("second settle() found a pending request")
	}
}

func TestPushAuth_ContextCancel(t *testing.T) {
	a := newPushAuth(func(Update) {})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := a.Password(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Password() error = %v, want context.Canceled", err)
	}
	res, _ := a.submit(domain.AuthAwaitingPassword, "secret").Wait(context.Background())
	if !errors.Is(res.Err, ErrUnexpectedRequest) {
		t.Errorf("submit after cancel = %v, want ErrUnexpectedRequest", res.Err)
	}
}
