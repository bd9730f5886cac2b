package repository

import (
	"context"
	"sync"
	"time"

	"github.com/futig/medical-chatbot/internal/entity"
	"github.com/patrickmn/go-cache"
)

// HistoryRepository keeps the conversation history of every session.
type HistoryRepository interface {
	Get(ctx context.Context, sessionID string) entity.History
	Append(ctx context.Context, sessionID string, turn entity.Turn)
	Clear(ctx context.Context, sessionID string)
	// Lock serializes work on one session; other sessions are not blocked.
	Lock(sessionID string) (unlock func())
}

var _ HistoryRepository = &HistoryCache{}

// sessionHistory is the state of a single session. lock is held for a whole
// question; mu guards turns only.
type sessionHistory struct {
	lock  sync.Mutex
	mu    sync.Mutex
	turns entity.History
}

// HistoryCache stores histories in memory. A session that stays idle for
// ttl is evicted.
type HistoryCache struct {
	cache    *cache.Cache
	maxTurns int
}

// NewHistoryCache creates the store. maxTurns caps the kept turns per
// session, oldest first out; 0 keeps everything.
func NewHistoryCache(ttl, cleanupInterval time.Duration, maxTurns int) *HistoryCache {
	return &HistoryCache{
		cache:    cache.New(ttl, cleanupInterval),
		maxTurns: maxTurns,
	}
}

// Get returns a copy of the session's turns, oldest first.
func (h *HistoryCache) Get(_ context.Context, sessionID string) entity.History {
	s, ok := h.lookup(sessionID)
	if !ok {
		return entity.History{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	history := make(entity.History, len(s.turns))
	copy(history, s.turns)
	return history
}

func (h *HistoryCache) Append(_ context.Context, sessionID string, turn entity.Turn) {
	s := h.session(sessionID)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.turns = append(s.turns, turn)
	if h.maxTurns > 0 && len(s.turns) > h.maxTurns {
		s.turns = append(entity.History(nil), s.turns[len(s.turns)-h.maxTurns:]...)
	}
}

func (h *HistoryCache) Clear(_ context.Context, sessionID string) {
	s, ok := h.lookup(sessionID)
	if !ok {
		return
	}

	s.mu.Lock()
	s.turns = nil
	s.mu.Unlock()
}

func (h *HistoryCache) Lock(sessionID string) func() {
	s := h.session(sessionID)
	s.lock.Lock()
	return s.lock.Unlock
}

// lookup finds a session and refreshes its expiration.
func (h *HistoryCache) lookup(sessionID string) (*sessionHistory, bool) {
	v, ok := h.cache.Get(sessionID)
	if !ok {
		return nil, false
	}
	s := v.(*sessionHistory)
	h.cache.SetDefault(sessionID, s)
	return s, true
}

// session returns the session, creating it on first use.
func (h *HistoryCache) session(sessionID string) *sessionHistory {
	for {
		if s, ok := h.lookup(sessionID); ok {
			return s
		}
		s := &sessionHistory{}
		// Add fails when another request created the session first.
		if err := h.cache.Add(sessionID, s, cache.DefaultExpiration); err == nil {
			return s
		}
	}
}
