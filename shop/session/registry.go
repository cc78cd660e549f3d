package session

import (
	"sync"

	"github.com/m3rciful/storebot/shop/cart"
	"github.com/m3rciful/storebot/shop/order"
	"github.com/m3rciful/storebot/shop/view"
)

// Session is the state of one chat. Its mutex serializes every operation
// on the chat, including the transport calls a render makes.
type Session struct {
	mu     sync.Mutex
	chatID int64
	cart   *cart.Cart
	draft  *order.Collector
	views  *view.Registry
}

func newSession(chatID int64) *Session {
	return &Session{
		chatID: chatID,
		cart:   cart.New(),
		views:  view.NewRegistry(),
	}
}

// ChatID returns the owning chat.
func (s *Session) ChatID() int64 { return s.chatID }

// Registry maps chat ids to sessions, creating each one exactly once.
type Registry struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[int64]*Session)}
}

// Get returns the session for chatID, creating it on first contact.
func (r *Registry) Get(chatID int64) *Session {
	r.mu.RLock()
	s, ok := r.sessions[chatID]
	r.mu.RUnlock()
	if ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[chatID]; ok {
		return s
	}
	s = newSession(chatID)
	r.sessions[chatID] = s
	return s
}

// Lookup returns an existing session without creating one.
func (r *Registry) Lookup(chatID int64) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[chatID]
	return s, ok
}

// Len returns the number of known chats.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
