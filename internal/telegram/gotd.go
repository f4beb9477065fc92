package telegram

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/message"
	"github.com/gotd/td/telegram/query/dialogs"
	"github.com/gotd/td/telegram/updates"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"

	"github.com/danhigham/tgterm/internal/domain"
)

const nameCacheSize = 1024

var (
	// ErrNotReady is returned for requests that need an authorized client.
	ErrNotReady          = errors.New("client is not authorized yet")
	// ErrUnknownPeer is returned when a chat has not been seen in a dialog
	// list or update yet.
	ErrUnknownPeer       = errors.New("unknown chat")
	ErrAlreadyConfigured = errors.New("client parameters already set")

	ErrPhoneInvalid    = errors.New("phone number is invalid")
	ErrCodeInvalid     = errors.New("verification code is invalid")
	ErrCodeExpired     = errors.New("verification code has expired")
	ErrPasswordInvalid = errors.New("password is invalid")
)

// GotdAdapter implements Adapter on top of gotd/td.
type GotdAdapter struct {
	apiID   int
	apiHash string
	logger  *zap.Logger
	limiter *rate.Limiter

	handlersMu sync.RWMutex
	handlers   []UpdateHandler

	params chan SetParameters
	auth   *pushAuth
	names  *lru.Cache[int64, string]

	mu     sync.Mutex
	api    *tg.Client
	sender *message.Sender
	self   *tg.User
	peers  map[int64]tg.InputPeerClass
	stop   context.CancelFunc
}

// NewGotdAdapter creates an adapter. sendRate limits outgoing messages
// per second.
func NewGotdAdapter(apiID int, apiHash string, sendRate float64, logger *zap.Logger) *GotdAdapter {
	// lru.New only fails for a non-positive size.
	names, _ := lru.New[int64, string](nameCacheSize)
	a := &GotdAdapter{
		apiID:   apiID,
		apiHash: apiHash,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(sendRate), 1),
		params:  make(chan SetParameters, 1),
		names:   names,
		peers:   make(map[int64]tg.InputPeerClass),
	}
	a.auth = newPushAuth(a.emit)
	return a
}

func (a *GotdAdapter) Subscribe(h UpdateHandler) {
	a.handlersMu.Lock()
	defer a.handlersMu.Unlock()
	a.handlers = append(a.handlers, h)
}

func (a *GotdAdapter) emit(u Update) {
	a.handlersMu.RLock()
	handlers := a.handlers
	a.handlersMu.RUnlock()
	for _, h := range handlers {
		h.HandleUpdate(u)
	}
}

// Run announces AwaitingParameters, waits for SetParameters and then
// drives the gotd client until ctx is cancelled or the client is closed.
func (a *GotdAdapter) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.mu.Lock()
	a.stop = cancel
	a.mu.Unlock()

	defer func() {
		a.emit(UpdateAuthorizationState{State: domain.AuthClosing})
		a.emit(UpdateAuthorizationState{State: domain.AuthClosed})
	}()

	a.emit(UpdateAuthorizationState{State: domain.AuthAwaitingParameters})

	var params SetParameters
	select {
	case params = <-a.params:
	case <-ctx.Done():
		return nil
	}

	err := a.run(ctx, params)
	if err == nil || errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return nil
	}
	return err
}

func (a *GotdAdapter) run(ctx context.Context, params SetParameters) error {
	dispatcher := tg.NewUpdateDispatcher()
	a.registerHandlers(dispatcher)

	gaps := updates.New(updates.Config{
		Handler: dispatcher,
		Logger:  a.logger.Named("gaps"),
	})

	client := telegram.NewClient(a.apiID, a.apiHash, telegram.Options{
		Logger:         a.logger.Named("gotd"),
		UpdateHandler:  gaps,
		SessionStorage: &session.FileStorage{Path: filepath.Join(params.SessionDir, "session.json")},
		Device: telegram.DeviceConfig{
			DeviceModel:    params.DeviceModel,
			SystemVersion:  params.SystemVersion,
			AppVersion:     params.AppVersion,
			SystemLangCode: params.LangCode,
			LangCode:       params.LangCode,
		},
	})

	reported := false
	err := client.Run(ctx, func(ctx context.Context) error {
		flow := auth.NewFlow(a.auth, auth.SendCodeOptions{})
		if err := client.Auth().IfNecessary(ctx, flow); err != nil {
			err = authError(err)
			reported = a.auth.settle(err)
			return fmt.Errorf("auth: %w", err)
		}
		a.auth.settle(nil)

		self, err := client.Self(ctx)
		if err != nil {
			return fmt.Errorf("get self: %w", err)
		}

		api := client.API()
		a.mu.Lock()
		a.api = api
		a.sender = message.NewSender(api)
		a.self = self
		a.mu.Unlock()

		a.emit(UpdateAuthorizationState{State: domain.AuthReady})

		return gaps.Run(ctx, api, self.ID, updates.AuthOptions{})
	})
	if err != nil && !reported && ctx.Err() == nil {
		a.emit(UpdateError{Err: err})
	}
	return err
}

// Send issues req. Auth requests complete when gotd accepts the value;
// everything else is handled on its own goroutine.
func (a *GotdAdapter) Send(ctx context.Context, req Request) *Future {
	switch r := req.(type) {
	case SetParameters:
		select {
		case a.params <- r:
			return Resolved(Result{})
		default:
			return Resolved(Result{Err: ErrAlreadyConfigured})
		}
	case SetPhoneNumber:
		return a.auth.submit(domain.AuthAwaitingPhoneNumber, r.Phone)
	case CheckCode:
		return a.auth.submit(domain.AuthAwaitingCode, r.Code)
	case CheckPassword:
		return a.auth.submit(domain.AuthAwaitingPassword, r.Password)
	}

	fut := NewFuture()
	go func() {
		v, err := a.handle(ctx, req)
		if err != nil {
			a.logger.Warn("request failed", zap.String("request", req.Name()), zap.Error(err))
		}
		fut.Resolve(Result{Value: v, Err: err})
	}()
	return fut
}

func (a *GotdAdapter) handle(ctx context.Context, req Request) (any, error) {
	if _, ok := req.(Close); ok {
		a.shutdown()
		return nil, nil
	}

	a.mu.Lock()
	api, sender, self := a.api, a.sender, a.self
	a.mu.Unlock()
	if api == nil {
		return nil, ErrNotReady
	}

	switch r := req.(type) {
	case LoadChats:
		return a.loadChats(ctx, api, r.Limit)
	case GetHistory:
		return a.getHistory(ctx, api, r.ChatID, r.Limit)
	case SendMessage:
		peer := a.findPeer(r.ChatID)
		if peer == nil {
			return nil, fmt.Errorf("%w: %d", ErrUnknownPeer, r.ChatID)
		}
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		_, err := sender.To(peer).Text(ctx, r.Text)
		return nil, err
	case GetMe:
		return domain.Account{
			ID:          self.ID,
			Phone:       self.Phone,
			Username:    self.Username,
			DisplayName: formatUserName(self),
		}, nil
	case LogOut:
		a.emit(UpdateAuthorizationState{State: domain.AuthLoggingOut})
		_, err := api.AuthLogOut(ctx)
		a.shutdown()
		if err != nil {
			return nil, fmt.Errorf("log out: %w", err)
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported request %q", req.Name())
	}
}

func (a *GotdAdapter) shutdown() {
	a.mu.Lock()
	stop := a.stop
	a.mu.Unlock()
	if stop != nil {
		stop()
	}
}

func (a *GotdAdapter) registerHandlers(d tg.UpdateDispatcher) {
	d.OnNewMessage(func(ctx context.Context, e tg.Entities, update *tg.UpdateNewMessage) error {
		a.onMessage(e, update.Message)
		return nil
	})
	d.OnNewChannelMessage(func(ctx context.Context, e tg.Entities, update *tg.UpdateNewChannelMessage) error {
		a.onMessage(e, update.Message)
		return nil
	})
	d.OnReadHistoryInbox(func(ctx context.Context, e tg.Entities, update *tg.UpdateReadHistoryInbox) error {
		a.emit(UpdateChatUnread{ChatID: peerID(update.Peer), UnreadCount: update.StillUnreadCount})
		return nil
	})
	d.OnReadChannelInbox(func(ctx context.Context, e tg.Entities, update *tg.UpdateReadChannelInbox) error {
		a.emit(UpdateChatUnread{ChatID: update.ChannelID, UnreadCount: update.StillUnreadCount})
		return nil
	})
}

func (a *GotdAdapter) onMessage(e tg.Entities, m tg.MessageClass) {
	switch msg := m.(type) {
	case *tg.Message:
		a.discoverChat(e, msg.PeerID)
		a.emit(UpdateNewMessage{Message: a.convertMessage(msg, e.Users)})
	case *tg.MessageService:
		a.discoverChat(e, msg.PeerID)
		if act, ok := msg.Action.(*tg.MessageActionChatEditTitle); ok {
			a.emit(UpdateChatTitle{ChatID: peerID(msg.PeerID), Title: act.Title})
		}
	}
}

// discoverChat announces a chat first seen through an update.
func (a *GotdAdapter) discoverChat(e tg.Entities, peer tg.PeerClass) {
	id := peerID(peer)
	if id == 0 || a.findPeer(id) != nil {
		return
	}

	var (
		input tg.InputPeerClass
		chat  = domain.Chat{ID: id}
	)
	switch p := peer.(type) {
	case *tg.PeerUser:
		u, ok := e.Users[p.UserID]
		if !ok {
			return
		}
		input = &tg.InputPeerUser{UserID: u.ID, AccessHash: u.AccessHash}
		chat.Title = formatUserName(u)
		chat.Kind = domain.ChatPrivate
	case *tg.PeerChat:
		c, ok := e.Chats[p.ChatID]
		if !ok {
			return
		}
		input = &tg.InputPeerChat{ChatID: c.ID}
		chat.Title = c.Title
		chat.Kind = domain.ChatGroup
	case *tg.PeerChannel:
		c, ok := e.Channels[p.ChannelID]
		if !ok {
			return
		}
		input = &tg.InputPeerChannel{ChannelID: c.ID, AccessHash: c.AccessHash}
		chat.Title = c.Title
		chat.Kind = channelKind(c)
	default:
		return
	}

	a.cachePeer(id, input)
	a.emit(UpdateNewChat{Chat: chat})
}

func (a *GotdAdapter) loadChats(ctx context.Context, api *tg.Client, limit int) ([]int64, error) {
	if limit <= 0 {
		limit = 20
	}
	iter := dialogs.NewQueryBuilder(api).GetDialogs().BatchSize(limit).Iter()

	var ids []int64
	for len(ids) < limit && iter.Next(ctx) {
		elem := iter.Value()

		id := inputPeerID(elem.Peer)
		if id == 0 {
			continue
		}
		a.cachePeer(id, elem.Peer)

		chat := a.chatFromDialog(elem)
		chat.ID = id
		a.emit(UpdateNewChat{Chat: chat})
		ids = append(ids, id)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("iterate dialogs: %w", err)
	}
	return ids, nil
}

func (a *GotdAdapter) chatFromDialog(elem dialogs.Elem) domain.Chat {
	chat := domain.Chat{Title: "Unknown"}
	if dlg, ok := elem.Dialog.(*tg.Dialog); ok {
		chat.UnreadCount = dlg.UnreadCount
	}

	switch p := elem.Dialog.GetPeer().(type) {
	case *tg.PeerUser:
		chat.Kind = domain.ChatPrivate
		if u, ok := elem.Entities.User(p.UserID); ok {
			chat.Title = formatUserName(u)
			a.names.Add(p.UserID, chat.Title)
		}
	case *tg.PeerChat:
		chat.Kind = domain.ChatGroup
		if c, ok := elem.Entities.Chat(p.ChatID); ok {
			chat.Title = c.Title
		}
	case *tg.PeerChannel:
		chat.Kind = domain.ChatChannel
		if c, ok := elem.Entities.Channel(p.ChannelID); ok {
			chat.Title = c.Title
			chat.Kind = channelKind(c)
		}
	}
	return chat
}

func (a *GotdAdapter) getHistory(ctx context.Context, api *tg.Client, chatID int64, limit int) ([]domain.Message, error) {
	peer := a.findPeer(chatID)
	if peer == nil {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPeer, chatID)
	}

	result, err := api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
		Peer:  peer,
		Limit: limit,
	})
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}

	var (
		messages []tg.MessageClass
		users    []tg.UserClass
	)
	switch r := result.(type) {
	case *tg.MessagesMessages:
		messages, users = r.Messages, r.Users
	case *tg.MessagesMessagesSlice:
		messages, users = r.Messages, r.Users
	case *tg.MessagesChannelMessages:
		messages, users = r.Messages, r.Users
	default:
		return nil, fmt.Errorf("unexpected messages type: %T", result)
	}

	userMap := usersToMap(users)
	out := make([]domain.Message, 0, len(messages))
	for _, m := range messages {
		msg, ok := m.(*tg.Message)
		if !ok {
			continue
		}
		out = append(out, a.convertMessage(msg, userMap))
	}
	return out, nil
}

func (a *GotdAdapter) findPeer(chatID int64) tg.InputPeerClass {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.peers[chatID]
}

func (a *GotdAdapter) cachePeer(chatID int64, peer tg.InputPeerClass) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.peers[chatID] = peer
}

func (a *GotdAdapter) convertMessage(msg *tg.Message, users map[int64]*tg.User) domain.Message {
	content, markdown := contentSummary(msg)
	out := domain.Message{
		ID:        msg.ID,
		ChatID:    peerID(msg.PeerID),
		Content:   content,
		Markdown:  markdown,
		Timestamp: time.Unix(int64(msg.Date), 0),
		Outgoing:  msg.Out,
	}

	if msg.Out {
		out.SenderLabel = "You"
		return out
	}

	// In private chats FromID is empty and the peer is the sender.
	from := msg.FromID
	if from == nil {
		from = msg.PeerID
	}
	if p, ok := from.(*tg.PeerUser); ok {
		if u, ok := users[p.UserID]; ok {
			name := formatUserName(u)
			a.names.Add(p.UserID, name)
			out.SenderLabel = name
		} else if name, ok := a.names.Get(p.UserID); ok {
			out.SenderLabel = name
		}
	}
	if out.SenderLabel == "" {
		out.SenderLabel = "Unknown"
	}
	return out
}

// authError maps well known RPC failures of the login flow to sentinels.
func authError(err error) error {
	switch {
	case tgerr.Is(err, "PHONE_NUMBER_INVALID", "PHONE_NUMBER_BANNED"):
		return fmt.Errorf("%w: %w", ErrPhoneInvalid, err)
	case tgerr.Is(err, "PHONE_CODE_INVALID", "PHONE_CODE_EMPTY"):
		return fmt.Errorf("%w: %w", ErrCodeInvalid, err)
	case tgerr.Is(err, "PHONE_CODE_EXPIRED"):
		return fmt.Errorf("%w: %w", ErrCodeExpired, err)
	case errors.Is(err, auth.ErrPasswordInvalid), tgerr.Is(err, "PASSWORD_HASH_INVALID"):
		return fmt.Errorf("%w: %w", ErrPasswordInvalid, err)
	}
	if d, ok := tgerr.AsFloodWait(err); ok {
		return fmt.Errorf("too many attempts, retry in %s: %w", d, err)
	}
	return err
}

func channelKind(c *tg.Channel) domain.ChatKind {
	if c.Broadcast {
		return domain.ChatChannel
	}
	return domain.ChatGroup
}

func peerID(peer tg.PeerClass) int64 {
	switch p := peer.(type) {
	case *tg.PeerUser:
		return p.UserID
	case *tg.PeerChat:
		return p.ChatID
	case *tg.PeerChannel:
		return p.ChannelID
	default:
		return 0
	}
}

func inputPeerID(peer tg.InputPeerClass) int64 {
	switch p := peer.(type) {
	case *tg.InputPeerUser:
		return p.UserID
	case *tg.InputPeerChat:
		return p.ChatID
	case *tg.InputPeerChannel:
		return p.ChannelID
	default:
		return 0
	}
}

func formatUserName(u *tg.User) string {
	if u.FirstName != "" && u.LastName != "" {
		return u.FirstName + " " + u.LastName
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	if u.Username != "" {
		return u.Username
	}
	return "Unknown"
}

func usersToMap(users []tg.UserClass) map[int64]*tg.User {
	m := make(map[int64]*tg.User, len(users))
	for _, u := range users {
		if user, ok := u.(*tg.User); ok {
			m[user.ID] = user
		}
	}
	return m
}
