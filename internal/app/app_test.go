package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/x/ansi"
	"go.uber.org/zap/zaptest"

	"github.com/danhigham/tgterm/internal/accounts"
	"github.com/danhigham/tgterm/internal/config"
	"github.com/danhigham/tgterm/internal/domain"
	"github.com/danhigham/tgterm/internal/login"
	"github.com/danhigham/tgterm/internal/telegram"
	"github.com/danhigham/tgterm/internal/telegram/telegramtest"
	"github.com/danhigham/tgterm/internal/ui"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return ansi.Strip(b.buf.String())
}

type harness struct {
	app      *App
	accounts *accounts.Store
	out      *syncBuffer
	adapters chan *telegramtest.Adapter
}

func newHarness(t *testing.T, in io.Reader) *harness {
	t.Helper()
	logger := zaptest.NewLogger(t)
	store, err := accounts.NewStore(filepath.Join(t.TempDir(), "accounts"), logger)
	if err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{
		Telegram:      config.TelegramConfig{APIID: 1, APIHash: "hash", DeviceModel: "Test"},
		HistoryLimit:  10,
		ChatListLimit: 20,
	}
	h := &harness{
		accounts: store,
		out:      &syncBuffer{},
		adapters: make(chan *telegramtest.Adapter, 4),
	}
	console := ui.NewConsole(in, h.out, logger)
	factory := func() telegram.Adapter {
		fake := telegramtest.New()
		h.adapters <- fake
		return fake
	}
	h.app = New(cfg, store, console, factory, "test", logger)
	return h
}

func (h *harness) start() <-chan error {
	errc := make(chan error, 1)
	go func() { errc <- h.app.Run(context.Background()) }()
	return errc
}

func (h *harness) nextAdapter(t *testing.T) *telegramtest.Adapter {
	t.Helper()
	select {
	case fake := <-h.adapters:
		select {
		case <-fake.Started():
		case <-time.After(time.Second):
			t.Fatal("adapter never started")
		}
		return fake
	case <-time.After(time.Second):
		t.Fatal("no adapter created")
	}
	return nil
}

// expect waits for the next request and checks its type.
func expect[T telegram.Request](t *testing.T, fake *telegramtest.Adapter) (T, *telegram.Future) {
	t.Helper()
	call, ok := fake.Next(time.Second)
	if !ok {
		var zero T
		t.Fatalf("no %T request", zero)
	}
	req, ok := call.Request.(T)
	if !ok {
		t.Fatalf("request = %#v, want %T", call.Request, req)
	}
	return req, call.Future
}

// signIn walks fake through an already authorized start and answers GetMe
// and the initial chat load.
func signIn(t *testing.T, fake *telegramtest.Adapter, me domain.Account, chats ...domain.Chat) telegram.SetParameters {
	t.Helper()
	fake.PushState(domain.AuthAwaitingParameters)
	params, fut := expect[telegram.SetParameters](t, fake)
	fut.Resolve(telegram.Result{})

	fake.PushState(domain.AuthReady)
	_, fut = expect[telegram.GetMe](t, fake)
	fut.Resolve(telegram.Result{Value: me})

	_, fut = expect[telegram.LoadChats](t, fake)
	ids := make([]int64, 0, len(chats))
	for _, c := range chats {
		fake.Push(telegram.UpdateNewChat{Chat: c})
		ids = append(ids, c.ID)
	}
	fut.Resolve(telegram.Result{Value: ids})
	return params
}

func waitErr(t *testing.T, errc <-chan error) error {
	t.Helper()
	select {
	case err := <-errc:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	return nil
}

func TestApp_NewLogin(t *testing.T) {
	h := newHarness(t, strings.NewReader("+15550001\n12345\n/quit\n"))
	errc := h.start()
	fake := h.nextAdapter(t)

	fake.PushState(domain.AuthAwaitingParameters)
	params, fut := expect[telegram.SetParameters](t, fake)
	if params.DeviceModel != "Test" || params.SessionDir == "" {
		t.Errorf("parameters = %+v", params)
	}
	fut.Resolve(telegram.Result{})

	fake.PushState(domain.AuthAwaitingPhoneNumber)
	phone, fut := expect[telegram.SetPhoneNumber](t, fake)
	if phone.Phone != "+15550001" {
		t.Errorf("phone = %q", phone.Phone)
	}
	fut.Resolve(telegram.Result{})

	fake.PushState(domain.AuthAwaitingCode)
	code, fut := expect[telegram.CheckCode](t, fake)
	if code.Code != "12345" {
		t.Errorf("code = %q", code.Code)
	}
	fut.Resolve(telegram.Result{})

	fake.PushState(domain.AuthReady)
	_, fut = expect[telegram.GetMe](t, fake)
	fut.Resolve(telegram.Result{Value: domain.Account{ID: 42, Phone: "+15550001", DisplayName: "Gopher"}})

	_, fut = expect[telegram.LoadChats](t, fake)
	fake.Push(telegram.UpdateNewChat{Chat: domain.Chat{ID: 5, Title: "Friends", Kind: domain.ChatGroup}})
	fut.Resolve(telegram.Result{Value: []int64{5}})

	if err := waitErr(t, errc); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if _, ok := fake.Next(time.Second); !ok {
		t.Error("no Close request on teardown")
	}

	acc, ok, err := h.accounts.Active()
	if err != nil || !ok {
		t.Fatalf("Active() = %v, %v", ok, err)
	}
	if acc.ID != 42 || !acc.Active {
		t.Errorf("saved account = %+v", acc)
	}
	if h.accounts.SessionDir(acc.SessionKey) != params.SessionDir {
		t.Errorf("session dir = %q, want %q", params.SessionDir, h.accounts.SessionDir(acc.SessionKey))
	}

	out := h.out.String()
	for _, want := range []string{"Logged in as Gopher", "COMMAND", "Friends"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestApp_LoginFailure(t *testing.T) {
	h := newHarness(t, strings.NewReader("00000\n"))
	errc := h.start()
	fake := h.nextAdapter(t)

	fake.PushState(domain.AuthAwaitingCode)
	_, fut := expect[telegram.CheckCode](t, fake)
	fut.Resolve(telegram.Result{Err: errors.New("PHONE_CODE_INVALID")})

	err := waitErr(t, errc)
	if !errors.Is(err, login.ErrAuthFailed) {
		t.Fatalf("Run() = %v, want ErrAuthFailed", err)
	}
	all, _ := h.accounts.List()
	if len(all) != 0 {
		t.Errorf("failed login saved accounts: %+v", all)
	}
}

func TestApp_EndOfInputQuits(t *testing.T) {
	h := newHarness(t, strings.NewReader(""))
	errc := h.start()
	fake := h.nextAdapter(t)

	signIn(t, fake, domain.Account{ID: 1, DisplayName: "One"})
	if err := waitErr(t, errc); err != nil {
		t.Fatalf("Run() = %v, want nil on end of input", err)
	}
}

func TestApp_ClosedPushEndsLoop(t *testing.T) {
	r, w := io.Pipe()
	h := newHarness(t, r)
	errc := h.start()
	fake := h.nextAdapter(t)

	signIn(t, fake, domain.Account{ID: 1}, domain.Chat{ID: 7, Title: "Seven"})
	fake.PushState(domain.AuthClosing)
	fake.PushState(domain.AuthClosed)

	// A pending read completes, then the loop stops without dispatching.
	go w.Write([]byte("/open 1\n"))
	defer r.Close()
	if err := waitErr(t, errc); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	for _, req := range fake.Sent() {
		if _, ok := req.(telegram.GetHistory); ok {
			t.Error("line read after close was dispatched")
		}
	}
	if !strings.Contains(h.out.String(), "Connection closed") {
		t.Errorf("close not reported:\n%s", h.out.String())
	}
}

func TestApp_LiveMessages(t *testing.T) {
	r, w := io.Pipe()
	h := newHarness(t, r)
	errc := h.start()
	fake := h.nextAdapter(t)

	signIn(t, fake, domain.Account{ID: 1},
		domain.Chat{ID: 7, Title: "Seven"},
		domain.Chat{ID: 8, Title: "Eight"},
	)

	if _, err := w.Write([]byte("/open 1\n")); err != nil {
		t.Fatal(err)
	}
	_, fut := expect[telegram.GetHistory](t, fake)
	fut.Resolve(telegram.Result{})

	fake.Push(telegram.UpdateNewMessage{Message: domain.Message{ChatID: 7, SenderLabel: "Ann", Content: "live hello", Timestamp: time.Now()}})
	fake.Push(telegram.UpdateNewMessage{Message: domain.Message{ChatID: 8, SenderLabel: "Ben", Content: "elsewhere", Timestamp: time.Now()}})
	fake.Push(telegram.UpdateChatTitle{ChatID: 8, Title: "Eight!"})

	w.Close()
	if err := waitErr(t, errc); err != nil {
		t.Fatalf("Run() = %v", err)
	}

	out := h.out.String()
	if !strings.Contains(out, "Ann: live hello") {
		t.Errorf("message for open chat not printed:\n%s", out)
	}
	if strings.Contains(out, "elsewhere") {
		t.Errorf("message for another chat printed in full:\n%s", out)
	}
	if !strings.Contains(out, "New message in Eight from Ben") {
		t.Errorf("notification missing:\n%s", out)
	}
}

func TestApp_LogoutSwitchesAccount(t *testing.T) {
	h := newHarness(t, strings.NewReader("/logout\ny\n/quit\n"))
	for _, acc := range []domain.Account{{ID: 1, DisplayName: "One", Active: true}, {ID: 2, DisplayName: "Two"}} {
		key, _, err := h.accounts.NewSessionDir()
		if err != nil {
			t.Fatal(err)
		}
		acc.SessionKey = key
		if err := h.accounts.Save(acc); err != nil {
			t.Fatal(err)
		}
	}
	one, _ := h.accounts.Get(1)

	errc := h.start()

	first := h.nextAdapter(t)
	params := signIn(t, first, domain.Account{ID: 1, DisplayName: "One"})
	if params.SessionDir != h.accounts.SessionDir(one.SessionKey) {
		t.Errorf("first session dir = %q", params.SessionDir)
	}
	_, fut := expect[telegram.LogOut](t, first)
	fut.Resolve(telegram.Result{})

	second := h.nextAdapter(t)
	signIn(t, second, domain.Account{ID: 2, DisplayName: "Two"})

	if err := waitErr(t, errc); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if _, err := h.accounts.Get(1); !errors.Is(err, accounts.ErrNotFound) {
		t.Errorf("account 1 still saved: %v", err)
	}
	active, ok, _ := h.accounts.Active()
	if !ok || active.ID != 2 {
		t.Errorf("active account = %+v, want 2", active)
	}
	if !strings.Contains(h.out.String(), "Switching to Two") {
		t.Errorf("switch not reported:\n%s", h.out.String())
	}
}

func TestApp_LogoutLastAccountExits(t *testing.T) {
	h := newHarness(t, strings.NewReader("/logout\ny\n"))
	errc := h.start()
	fake := h.nextAdapter(t)

	signIn(t, fake, domain.Account{ID: 9, DisplayName: "Nine"})
	_, fut := expect[telegram.LogOut](t, fake)
	fut.Resolve(telegram.Result{})

	if err := waitErr(t, errc); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if all, _ := h.accounts.List(); len(all) != 0 {
		t.Errorf("accounts left: %+v", all)
	}
	if !strings.Contains(h.out.String(), "No saved accounts left") {
		t.Errorf("exit reason missing:\n%s", h.out.String())
	}
}
