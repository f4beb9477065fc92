// Package command parses interactive input and runs the matching command.
package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/danhigham/tgterm/internal/domain"
	"github.com/danhigham/tgterm/internal/state"
	"github.com/danhigham/tgterm/internal/telegram"
	"github.com/danhigham/tgterm/internal/ui"
)

// Action tells the session loop what to do after a line was handled.
type Action int

const (
	Continue Action = iota
	Quit
	Logout
)

func (a Action) String() string {
	switch a {
	case Continue:
		return "continue"
	case Quit:
		return "quit"
	case Logout:
		return "logout"
	default:
		return "unknown"
	}
}

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrNoChatOpen     = errors.New("no chat open")
	ErrUsage          = errors.New("usage")
	ErrNoAccount      = errors.New("no account loaded")
)

// Options holds the limits applied by commands.
type Options struct {
	HistoryLimit  int
	ChatListLimit int
}

// Dispatcher routes lines to command handlers. Handlers that talk to the
// adapter return once the request is sent; results are printed by future
// callbacks.
type Dispatcher struct {
	adapter  telegram.Adapter
	store    *state.Store
	console  *ui.Console
	messages *ui.MessageView
	opts     Options
	logger   *zap.Logger
	account  func() (domain.Account, bool)

	table map[string]*command
	order []*command
}

type handlerFunc func(ctx context.Context, arg string) (Action, error)

type command struct {
	name    string
	aliases []string
	args    string
	help    string
	run     handlerFunc
}

// New builds a dispatcher. account reports the logged-in account.
func New(adapter telegram.Adapter, store *state.Store, console *ui.Console, messages *ui.MessageView,
	account func() (domain.Account, bool), opts Options, logger *zap.Logger,
) *Dispatcher {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 10
	}
	if opts.ChatListLimit <= 0 {
		opts.ChatListLimit = 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &Dispatcher{
		adapter:  adapter,
		store:    store,
		console:  console,
		messages: messages,
		opts:     opts,
		logger:   logger,
		account:  account,
		table:    make(map[string]*command),
	}

	d.register(&command{name: "/help", aliases: []string{"/h"}, help: "show this table", run: d.help})
	d.register(&command{name: "/chats", aliases: []string{"/c"}, help: "load and list chats", run: d.chats})
	d.register(&command{name: "/open", aliases: []string{"/o"}, args: "<number>", help: "open a chat from the last list", run: d.open})
	d.register(&command{name: "/close", help: "close the open chat", run: d.close})
	d.register(&command{name: "/history", aliases: []string{"/messages", "/m"}, args: "[count]", help: "show recent messages of the open chat", run: d.history})
	d.register(&command{name: "/account", aliases: []string{"/acc"}, help: "show the logged-in account", run: d.showAccount})
	d.register(&command{name: "/logout", help: "log out and switch to another saved account", run: d.logout})
	d.register(&command{name: "/quit", aliases: []string{"/q", "/exit"}, help: "leave tgterm", run: d.quit})
	return d
}

func (d *Dispatcher) register(c *command) {
	d.order = append(d.order, c)
	d.table[c.name] = c
	for _, a := range c.aliases {
		d.table[a] = c
	}
}

// Help renders the command table.
func (d *Dispatcher) Help() string {
	rows := make([]ui.CommandHelp, 0, len(d.order))
	for _, c := range d.order {
		rows = append(rows, ui.CommandHelp{Name: c.name, Aliases: c.aliases, Args: c.args, Description: c.help})
	}
	return ui.HelpTable(rows)
}

// Dispatch handles one input line. Any error is also printed, so callers
// only need it to decide about logging.
func (d *Dispatcher) Dispatch(ctx context.Context, line string) (Action, error) {
	action, err := d.dispatch(ctx, line)
	if err != nil {
		d.report(err)
	}
	return action, err
}

func (d *Dispatcher) dispatch(ctx context.Context, line string) (Action, error) {
	if strings.TrimSpace(line) == "" {
		return Continue, nil
	}

	if !strings.HasPrefix(strings.TrimSpace(line), "/") {
		return Continue, d.sendText(ctx, line)
	}

	name, arg := split(line)
	c, ok := d.table[name]
	if !ok {
		return Continue, fmt.Errorf("%w %q", ErrUnknownCommand, name)
	}
	d.logger.Debug("command", zap.String("name", c.name), zap.String("arg", arg))
	return c.run(ctx, arg)
}

// split separates the lower-cased command token from the rest of the line.
func split(line string) (name, arg string) {
	line = strings.TrimSpace(line)
	idx := strings.IndexFunc(line, isSpace)
	if idx < 0 {
		return strings.ToLower(line), ""
	}
	return strings.ToLower(line[:idx]), strings.TrimSpace(line[idx:])
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t'
}

func (d *Dispatcher) report(err error) {
	switch {
	case errors.Is(err, ErrUnknownCommand):
		d.console.Error("%v. Type /help for the list of commands.", err)
	case errors.Is(err, ErrUsage):
		d.console.Warn("%v", err)
	default:
		d.console.Error("%v", err)
	}
}
