package telegram

import (
	"context"

	"github.com/danhigham/tgterm/internal/domain"
)

// Adapter is the asynchronous protocol client. Requests complete through
// the returned Future; everything else arrives as pushed updates.
type Adapter interface {
	// Run drives the client until ctx is cancelled or a Close request
	// is processed.
	Run(ctx context.Context) error
	// Send issues req and returns immediately.
	Send(ctx context.Context, req Request) *Future
	// Subscribe registers h for every pushed update. Handlers are called
	// from the adapter's delivery goroutine and must not block on input.
	Subscribe(h UpdateHandler)
}

// UpdateHandler receives pushed updates.
type UpdateHandler interface {
	HandleUpdate(u Update)
}

// UpdateHandlerFunc adapts a function to UpdateHandler.
type UpdateHandlerFunc func(u Update)

func (f UpdateHandlerFunc) HandleUpdate(u Update) { f(u) }

// Update is one of the Update* types below.
type Update interface {
	update()
}

type UpdateAuthorizationState struct {
	State domain.AuthorizationState
	// Hint carries extra context for the prompt, e.g. how the code was sent.
	Hint string
}

type UpdateNewChat struct {
	Chat domain.Chat
}

type UpdateChatTitle struct {
	ChatID int64
	Title  string
}

type UpdateChatUnread struct {
	ChatID      int64
	UnreadCount int
}

type UpdateNewMessage struct {
	Message domain.Message
}

// UpdateError reports a failure not tied to a particular request.
type UpdateError struct {
	Err error
}

func (UpdateAuthorizationState) update() {}
func (UpdateNewChat) update()            {}
func (UpdateChatTitle) update()          {}
func (UpdateChatUnread) update()         {}
func (UpdateNewMessage) update()         {}
func (UpdateError) update()              {}
