package command

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/danhigham/tgterm/internal/domain"
	"github.com/danhigham/tgterm/internal/telegram"
	"github.com/danhigham/tgterm/internal/ui"
)

func (d *Dispatcher) help(ctx context.Context, arg string) (Action, error) {
	d.console.Print(d.Help())
	return Continue, nil
}

func (d *Dispatcher) chats(ctx context.Context, arg string) (Action, error) {
	limit := d.opts.ChatListLimit
	d.console.Info("Loading chats...")
	d.adapter.Send(ctx, telegram.LoadChats{Limit: limit}).Then(func(res telegram.Result) {
		if res.Err != nil {
			d.console.Error("load chats: %v", res.Err)
			return
		}
		d.console.Print(ui.ChatList(d.store.List(limit)))
	})
	return Continue, nil
}

func (d *Dispatcher) open(ctx context.Context, arg string) (Action, error) {
	if arg == "" {
		return Continue, fmt.Errorf("%w: /open <number>", ErrUsage)
	}
	n, err := strconv.Atoi(arg)
	if err != nil {
		return Continue, fmt.Errorf("%w: /open <number>, got %q", ErrUsage, arg)
	}
	chat, err := d.store.ResolveOrdinal(n)
	if err != nil {
		return Continue, fmt.Errorf("chat %d: %w (run /chats first)", n, err)
	}

	d.store.OpenChat(chat)
	d.console.Success("Opened %s. Type to send, /close to leave.", chat.Title)
	d.fetchHistory(ctx, chat.ID, chat.Title, d.opts.HistoryLimit)
	return Continue, nil
}

func (d *Dispatcher) close(ctx context.Context, arg string) (Action, error) {
	chat, ok := d.store.CloseChat()
	if !ok {
		return Continue, ErrNoChatOpen
	}
	d.console.Info("Closed %s.", chat.Title)
	return Continue, nil
}

func (d *Dispatcher) history(ctx context.Context, arg string) (Action, error) {
	limit := d.opts.HistoryLimit
	if arg != "" {
		n, err := strconv.Atoi(arg)
		if err != nil || n <= 0 {
			return Continue, fmt.Errorf("%w: /history [count], count must be a positive number", ErrUsage)
		}
		limit = n
	}

	id, title := d.store.CurrentChat()
	if id == 0 {
		return Continue, ErrNoChatOpen
	}
	d.fetchHistory(ctx, id, title, limit)
	return Continue, nil
}

func (d *Dispatcher) fetchHistory(ctx context.Context, chatID int64, title string, limit int) {
	d.adapter.Send(ctx, telegram.GetHistory{ChatID: chatID, Limit: limit}).Then(func(res telegram.Result) {
		if res.Err != nil {
			d.console.Error("load history of %s: %v", title, res.Err)
			return
		}
		msgs, _ := res.Value.([]domain.Message)
		d.console.Print(d.messages.History(title, msgs))
	})
}

func (d *Dispatcher) showAccount(ctx context.Context, arg string) (Action, error) {
	acc, ok := d.account()
	if !ok {
		return Continue, ErrNoAccount
	}
	_, title := d.store.CurrentChat()
	d.console.Print(ui.AccountSummary(acc, title))
	return Continue, nil
}

func (d *Dispatcher) logout(ctx context.Context, arg string) (Action, error) {
	acc, ok := d.account()
	if !ok {
		return Continue, ErrNoAccount
	}
	yes, err := d.console.Confirm(fmt.Sprintf("Log out of %s?", acc.Label()))
	if err != nil {
		return Continue, fmt.Errorf("read confirmation: %w", err)
	}
	if !yes {
		d.console.Info("Logout cancelled.")
		return Continue, nil
	}
	return Logout, nil
}

func (d *Dispatcher) quit(ctx context.Context, arg string) (Action, error) {
	return Quit, nil
}

func (d *Dispatcher) sendText(ctx context.Context, text string) error {
	id, title := d.store.CurrentChat()
	if id == 0 {
		return fmt.Errorf("%w: use /open <number> first", ErrNoChatOpen)
	}

	sent := domain.Message{ChatID: id, SenderLabel: "You", Content: text, Outgoing: true, Timestamp: time.Now()}
	d.adapter.Send(ctx, telegram.SendMessage{ChatID: id, Text: text}).Then(func(res telegram.Result) {
		if res.Err != nil {
			d.logger.Warn("send failed", zap.Int64("chat_id", id), zap.Error(res.Err))
			d.console.Error("send to %s: %v", title, res.Err)
			return
		}
		d.console.Print(d.messages.Line(sent))
	})
	return nil
}
