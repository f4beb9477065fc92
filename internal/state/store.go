package state

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/danhigham/tgterm/internal/domain"
)

// ErrNotFound is returned when an ordinal does not map to a listed chat.
var ErrNotFound = errors.New("chat not found")

// Store holds the chats known to the session, the ordinal index of the
// last listing and the currently open chat. It is shared between the
// interactive goroutine and the adapter's update handlers.
type Store struct {
	logger *zap.Logger

	mu       sync.RWMutex
	order    []int64
	chats    map[int64]*domain.Chat
	ordinals []int64

	currentID    int64
	currentTitle string
}

func New(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		logger: logger,
		chats:  make(map[int64]*domain.Chat),
	}
}

// UpsertChat inserts chat or replaces the entry with the same ID in place.
func (s *Store) UpsertChat(chat domain.Chat) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.chats[chat.ID]; ok {
		*existing = chat
		return
	}
	c := chat
	s.chats[chat.ID] = &c
	s.order = append(s.order, chat.ID)
}

// UpdateTitle renames a known chat. Unknown IDs are ignored.
func (s *Store) UpdateTitle(id int64, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chats[id]
	if !ok {
		s.logger.Debug("title update for unknown chat", zap.Int64("chat_id", id))
		return
	}
	c.Title = title
	if s.currentID == id {
		s.currentTitle = title
	}
}

// UpdateUnread sets the unread counter of a known chat.
func (s *Store) UpdateUnread(id int64, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chats[id]
	if !ok {
		s.logger.Debug("unread update for unknown chat", zap.Int64("chat_id", id))
		return
	}
	c.UnreadCount = max(n, 0)
}

// IncrementUnread bumps the unread counter of a known chat.
func (s *Store) IncrementUnread(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chats[id]
	if !ok {
		s.logger.Debug("unread increment for unknown chat", zap.Int64("chat_id", id))
		return
	}
	c.UnreadCount++
}

// List returns up to limit chats in insertion order (all when limit <= 0)
// and replaces the ordinal index with the returned order.
func (s *Store) List(limit int) []domain.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.order)
	if limit > 0 && limit < n {
		n = limit
	}

	out := make([]domain.Chat, 0, n)
	ordinals := make([]int64, 0, n)
	for _, id := range s.order[:n] {
		out = append(out, *s.chats[id])
		ordinals = append(ordinals, id)
	}
	s.ordinals = ordinals
	return out
}

// ResolveOrdinal maps a 1-based position from the last List call to its chat.
func (s *Store) ResolveOrdinal(n int) (domain.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n < 1 || n > len(s.ordinals) {
		return domain.Chat{}, ErrNotFound
	}
	c, ok := s.chats[s.ordinals[n-1]]
	if !ok {
		return domain.Chat{}, ErrNotFound
	}
	return *c, nil
}

func (s *Store) Chat(id int64) (domain.Chat, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.chats[id]
	if !ok {
		return domain.Chat{}, false
	}
	return *c, true
}

// Len reports the number of known chats.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// OpenChat makes chat the target of free text and clears its unread count.
func (s *Store) OpenChat(chat domain.Chat) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.currentID = chat.ID
	s.currentTitle = chat.Title
	if c, ok := s.chats[chat.ID]; ok {
		c.UnreadCount = 0
	}
}

// CloseChat clears the open chat and returns what was open, if anything.
func (s *Store) CloseChat() (domain.Chat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentID == 0 {
		return domain.Chat{}, false
	}
	closed := domain.Chat{ID: s.currentID, Title: s.currentTitle}
	if c, ok := s.chats[s.currentID]; ok {
		closed = *c
	}
	s.currentID = 0
	s.currentTitle = ""
	return closed, true
}

// CurrentChat returns the open chat; id is 0 when none is open.
func (s *Store) CurrentChat() (id int64, title string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentID, s.currentTitle
}
