// Package app runs interactive sessions: login, then the command loop,
// for one account after another.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/danhigham/tgterm/internal/accounts"
	"github.com/danhigham/tgterm/internal/command"
	"github.com/danhigham/tgterm/internal/config"
	"github.com/danhigham/tgterm/internal/domain"
	"github.com/danhigham/tgterm/internal/login"
	"github.com/danhigham/tgterm/internal/state"
	"github.com/danhigham/tgterm/internal/telegram"
	"github.com/danhigham/tgterm/internal/ui"
)

// AdapterFactory creates a fresh protocol client for one session.
type AdapterFactory func() telegram.Adapter

// App owns the long lived parts of the program.
type App struct {
	cfg        *config.Config
	accounts   *accounts.Store
	console    *ui.Console
	newAdapter AdapterFactory
	version    string
	logger     *zap.Logger
}

func New(cfg *config.Config, accts *accounts.Store, console *ui.Console, factory AdapterFactory, version string, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{
		cfg:        cfg,
		accounts:   accts,
		console:    console,
		newAdapter: factory,
		version:    version,
		logger:     logger,
	}
}

// Run logs in with the active account (or a new one) and serves commands
// until the user quits. After a logout it continues with the next saved
// account, returning nil when none remain.
func (a *App) Run(ctx context.Context) error {
	a.console.Print(ui.Banner(a.version))

	if err := a.accounts.Prune(); err != nil {
		a.logger.Warn("prune sessions", zap.Error(err))
	}

	acc, ok, err := a.accounts.Active()
	if err != nil {
		return fmt.Errorf("load accounts: %w", err)
	}
	var next *domain.Account
	if ok {
		next = &acc
	}

	for {
		action, current, err := a.runSession(ctx, next)
		if err != nil {
			return err
		}
		if action != command.Logout {
			return nil
		}

		if err := a.accounts.Delete(current.ID); err != nil {
			return fmt.Errorf("remove account: %w", err)
		}
		a.console.Success("Logged out of %s.", current.Label())

		remaining, err := a.accounts.List()
		if err != nil {
			return fmt.Errorf("load accounts: %w", err)
		}
		if len(remaining) == 0 {
			a.console.Info("No saved accounts left.")
			return nil
		}
		next = &remaining[0]
		a.console.Info("Switching to %s...", next.Label())
	}
}

// session is the state of one adapter lifetime.
type session struct {
	adapter    telegram.Adapter
	store      *state.Store
	machine    *login.Machine
	dispatcher *command.Dispatcher
	console    *ui.Console
	messages   *ui.MessageView
	logger     *zap.Logger

	account atomic.Pointer[domain.Account]
}

func (a *App) runSession(ctx context.Context, acc *domain.Account) (command.Action, domain.Account, error) {
	var key, dir string
	if acc != nil {
		key = acc.SessionKey
		dir = a.accounts.SessionDir(key)
		a.console.Info("Connecting as %s...", acc.Label())
	} else {
		var err error
		key, dir, err = a.accounts.NewSessionDir()
		if err != nil {
			return command.Quit, domain.Account{}, err
		}
		a.console.Info("No saved account, starting a new login.")
	}

	s := a.newSession(dir)
	adapter := s.adapter

	runCtx, cancel := context.WithCancel(ctx)
	runDone := make(chan error, 1)
	go func() { runDone <- adapter.Run(runCtx) }()
	defer func() {
		adapter.Send(context.Background(), telegram.Close{})
		cancel()
		if err := <-runDone; err != nil {
			a.logger.Warn("client stopped with error", zap.Error(err))
		}
	}()

	if err := s.machine.Wait(ctx); err != nil {
		return command.Quit, domain.Account{}, fmt.Errorf("login: %w", err)
	}

	me, err := a.activate(ctx, adapter, key)
	if err != nil {
		return command.Quit, domain.Account{}, err
	}
	s.account.Store(&me)
	a.console.Success("Logged in as %s.", me.Label())
	a.console.Print(s.dispatcher.Help())

	s.dispatch(ctx, "/chats")

	action, err := s.loop(ctx)
	if err != nil {
		return command.Quit, me, err
	}
	if action == command.Logout {
		res, err := adapter.Send(ctx, telegram.LogOut{}).Wait(ctx)
		if err != nil {
			return command.Quit, me, err
		}
		if res.Err != nil {
			a.console.Warn("Server logout failed, removing the local session anyway: %v", res.Err)
		}
	}
	return action, me, nil
}

func (a *App) newSession(dir string) *session {
	cfg := a.cfg
	logger := a.logger
	adapter := a.newAdapter()
	store := state.New(logger.Named("state"))
	messages := ui.NewMessageView(0, a.console.Styled(), logger.Named("render"))

	sysVersion := cfg.Telegram.SystemVersion
	if sysVersion == "" {
		sysVersion = runtime.GOOS + "/" + runtime.GOARCH
	}
	params := telegram.SetParameters{
		DeviceModel:   cfg.Telegram.DeviceModel,
		SystemVersion: sysVersion,
		AppVersion:    cfg.Telegram.AppVersion,
		LangCode:      cfg.Telegram.LangCode,
		SessionDir:    dir,
	}

	s := &session{
		adapter:  adapter,
		store:    store,
		machine:  login.New(adapter, a.console, params, cfg.AuthTimeout, logger.Named("login")),
		console:  a.console,
		messages: messages,
		logger:   logger,
	}
	s.dispatcher = command.New(adapter, store, a.console, messages, s.currentAccount,
		command.Options{HistoryLimit: cfg.HistoryLimit, ChatListLimit: cfg.ChatListLimit},
		logger.Named("command"))

	adapter.Subscribe(telegram.UpdateHandlerFunc(s.route))
	return s
}

// activate fetches the logged-in account and records it as active.
func (a *App) activate(ctx context.Context, adapter telegram.Adapter, key string) (domain.Account, error) {
	res, err := adapter.Send(ctx, telegram.GetMe{}).Wait(ctx)
	if err != nil {
		return domain.Account{}, err
	}
	if res.Err != nil {
		return domain.Account{}, fmt.Errorf("get account: %w", res.Err)
	}
	me, ok := res.Value.(domain.Account)
	if !ok {
		return domain.Account{}, fmt.Errorf("get account: unexpected result %T", res.Value)
	}

	me.SessionKey = key
	me.Active = true
	if err := a.accounts.Save(me); err != nil {
		return domain.Account{}, fmt.Errorf("save account: %w", err)
	}
	if err := a.accounts.SetActive(me.ID); err != nil {
		return domain.Account{}, fmt.Errorf("activate account: %w", err)
	}
	a.logger.Info("logged in", zap.Int64("account_id", me.ID))
	return me, nil
}

func (s *session) currentAccount() (domain.Account, bool) {
	acc := s.account.Load()
	if acc == nil {
		return domain.Account{}, false
	}
	return *acc, true
}

// loop reads and dispatches lines until quit, logout, end of input or
// the client closing.
func (s *session) loop(ctx context.Context) (command.Action, error) {
	for !s.closed() {
		_, title := s.store.CurrentChat()
		line, err := s.console.ReadLine(ui.Prompt(title))
		if errors.Is(err, io.EOF) {
			return command.Quit, nil
		}
		if err != nil {
			return command.Quit, fmt.Errorf("read input: %w", err)
		}
		if s.closed() || ctx.Err() != nil {
			break
		}

		switch action := s.dispatch(ctx, line); action {
		case command.Quit, command.Logout:
			return action, nil
		}
	}
	s.console.Warn("Connection closed.")
	return command.Quit, nil
}

// closed reports whether the client has shut down.
func (s *session) closed() bool {
	select {
	case <-s.machine.Closed():
		return true
	default:
		return false
	}
}

// dispatch runs one line, turning a panic into an error message.
func (s *session) dispatch(ctx context.Context, line string) (action command.Action) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("command panicked", zap.String("line", line), zap.Any("panic", r), zap.Stack("stack"))
			s.console.Error("internal error while handling %q", line)
			action = command.Continue
		}
	}()
	action, err := s.dispatcher.Dispatch(ctx, line)
	if err != nil {
		s.logger.Debug("command failed", zap.String("line", line), zap.Error(err))
	}
	return action
}

// route applies adapter pushes. It runs on the adapter's goroutines.
func (s *session) route(u telegram.Update) {
	switch u := u.(type) {
	case telegram.UpdateAuthorizationState:
		s.machine.HandleState(u)
	case telegram.UpdateNewChat:
		s.store.UpsertChat(u.Chat)
	case telegram.UpdateChatTitle:
		s.store.UpdateTitle(u.ChatID, u.Title)
	case telegram.UpdateChatUnread:
		s.store.UpdateUnread(u.ChatID, u.UnreadCount)
	case telegram.UpdateNewMessage:
		s.onMessage(u.Message)
	case telegram.UpdateError:
		s.logger.Error("client error", zap.Error(u.Err))
		s.console.Error("%v", u.Err)
		s.machine.HandleError(u.Err)
	}
}

func (s *session) onMessage(msg domain.Message) {
	if id, _ := s.store.CurrentChat(); id == msg.ChatID {
		s.console.Print(s.messages.Line(msg))
		return
	}
	if msg.Outgoing {
		return
	}
	s.store.IncrementUnread(msg.ChatID)
	if chat, ok := s.store.Chat(msg.ChatID); ok {
		s.console.Info("New message in %s from %s", chat.Title, msg.SenderLabel)
	}
}
