// Package sessions tracks live conversations. A Session keeps one history
// per roster model; the Store bounds how many sessions exist at once and
// expires the ones nobody touches.
package sessions

import (
	"container/list"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ansari-project/qiyas/internal/models"
	"github.com/ansari-project/qiyas/internal/observability"
)

var (
	// ErrNotFound means the session id is unknown or has expired.
	ErrNotFound = errors.New("session not found")

	// ErrBusy means the session already has a generation streaming.
	ErrBusy = errors.New("session busy")

	// ErrNoPrompt means no query has been staged since the last stream.
	ErrNoPrompt = errors.New("no prompt staged")

	// ErrOverloaded means the store is at capacity with every session busy.
	ErrOverloaded = errors.New("session store full")
)

// StoreConfig bounds the store. Zero fields fall back to production
// defaults.
type StoreConfig struct {
	// MaxSessions caps how many sessions exist at once. Defaults to 50.
	MaxSessions int

	// TTL is how long an idle session survives. Defaults to 15 minutes.
	TTL time.Duration

	// MaxHistoryTurns is the number of complete exchanges kept per model
	// history. Defaults to 5.
	MaxHistoryTurns int

	// MaxHistoryTokens is the estimated token budget per model history.
	// Defaults to 8000.
	MaxHistoryTokens int

	// Metrics may be nil; the store then records nothing.
	Metrics *observability.Metrics
}

// Store is the bounded session registry. The registry lock orders map and
// recency bookkeeping only; while holding it the store never calls into a
// session beyond its lock-free Busy check.
type Store struct {
	mu   sync.Mutex
	byID map[string]*entry
	lru  *list.List // front = most recently touched

	cfg     StoreConfig
	nowFunc func() time.Time
}

type entry struct {
	session    *Session
	elem       *list.Element
	lastActive time.Time
}

// NewStore creates an empty store.
func NewStore(cfg StoreConfig) *Store {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 50
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 15 * time.Minute
	}
	if cfg.MaxHistoryTurns <= 0 {
		cfg.MaxHistoryTurns = 5
	}
	if cfg.MaxHistoryTokens <= 0 {
		cfg.MaxHistoryTokens = 8000
	}
	return &Store{
		byID:    make(map[string]*entry),
		lru:     list.New(),
		cfg:     cfg,
		nowFunc: time.Now,
	}
}

// SetNowFunc overrides the store clock. Tests only.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn == nil {
		fn = time.Now
	}
	s.nowFunc = fn
}

// Create allocates a session with a fresh id and a history per roster
// model. At capacity it evicts the least recently touched idle session;
// when every session is streaming it fails with ErrOverloaded.
func (s *Store) Create() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc()
	s.dropExpiredLocked(now)

	for len(s.byID) >= s.cfg.MaxSessions {
		if !s.evictIdleLocked() {
			return nil, ErrOverloaded
		}
	}

	sess := newSession(uuid.NewString(), now, models.IDs(), s.cfg.MaxHistoryTurns, s.cfg.MaxHistoryTokens)
	e := &entry{session: sess, lastActive: now}
	e.elem = s.lru.PushFront(e)
	s.byID[sess.ID] = e
	s.cfg.Metrics.SetActiveSessions(len(s.byID))
	return sess, nil
}

// Get returns a live session and refreshes its recency. Expired sessions
// are dropped on access.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	now := s.nowFunc()
	if s.expiredLocked(e, now) {
		s.removeLocked(e, "expired")
		return nil, ErrNotFound
	}
	s.touchLocked(e, now)
	return e.session, nil
}

// Touch refreshes a session's recency without returning it. Unknown ids
// are ignored.
func (s *Store) Touch(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.byID[id]; ok {
		s.touchLocked(e, s.nowFunc())
	}
}

// ReapExpired drops every expired idle session and reports how many went.
// Sessions with a generation streaming are left alone.
func (s *Store) ReapExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropExpiredLocked(s.nowFunc())
}

// Count returns the number of live sessions.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

// BusyCount returns the number of sessions with a generation streaming.
func (s *Store) BusyCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.byID {
		if e.session.Busy() {
			n++
		}
	}
	return n
}

// CancelGenerations cancels every active generation and reports how many
// were signalled. Session locks are taken only after the registry lock is
// released.
func (s *Store) CancelGenerations() int {
	s.mu.Lock()
	var busy []*Session
	for _, e := range s.byID {
		if e.session.Busy() {
			busy = append(busy, e.session)
		}
	}
	s.mu.Unlock()

	n := 0
	for _, sess := range busy {
		if gen, ok := sess.Generation(); ok {
			gen.Cancel()
			n++
		}
	}
	return n
}

func (s *Store) expiredLocked(e *entry, now time.Time) bool {
	if e.session.Busy() {
		return false
	}
	return now.Sub(e.lastActive) >= s.cfg.TTL
}

func (s *Store) touchLocked(e *entry, now time.Time) {
	e.lastActive = now
	s.lru.MoveToFront(e.elem)
}

func (s *Store) removeLocked(e *entry, reason string) {
	delete(s.byID, e.session.ID)
	s.lru.Remove(e.elem)
	s.cfg.Metrics.SessionEvicted(reason)
	s.cfg.Metrics.SetActiveSessions(len(s.byID))
}

// dropExpiredLocked walks the recency list from the cold end and removes
// expired idle sessions.
func (s *Store) dropExpiredLocked(now time.Time) int {
	var dropped int
	for el := s.lru.Back(); el != nil; {
		prev := el.Prev()
		e := el.Value.(*entry)
		if s.expiredLocked(e, now) {
			s.removeLocked(e, "expired")
			dropped++
		}
		el = prev
	}
	return dropped
}

// evictIdleLocked removes the least recently touched idle session. False
// when every session has a generation streaming.
func (s *Store) evictIdleLocked() bool {
	for el := s.lru.Back(); el != nil; el = el.Prev() {
		e := el.Value.(*entry)
		if e.session.Busy() {
			continue
		}
		s.removeLocked(e, "capacity")
		return true
	}
	return false
}
