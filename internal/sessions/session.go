package sessions

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ansari-project/qiyas/internal/agent"
)

// Generation is the handle a session keeps on its in-flight run. The
// concrete type lives in the orchestrator; the session only ever cancels it.
type Generation interface {
	Cancel()
}

// Session holds one independent conversation history per roster model.
// Histories advance together: a staged prompt lands in every history, and
// each model's answer is committed back to its own.
type Session struct {
	ID        string
	CreatedAt time.Time

	maxExchanges int
	maxTokens    int

	mu        sync.Mutex
	histories map[string][]agent.Turn
	pending   bool
	gen       Generation

	// busy mirrors gen != nil so the store can make eviction and expiry
	// decisions without touching the session lock.
	busy atomic.Bool
}

func newSession(id string, now time.Time, modelIDs []string, maxExchanges, maxTokens int) *Session {
	histories := make(map[string][]agent.Turn, len(modelIDs))
	for _, m := range modelIDs {
		histories[m] = nil
	}
	return &Session{
		ID:           id,
		CreatedAt:    now,
		maxExchanges: maxExchanges,
		maxTokens:    maxTokens,
		histories:    histories,
	}
}

// StagePrompt appends the user message to every model history and marks the
// session ready for the next stream. Each history is truncated to its
// exchange and token budget after the append. Fails with ErrBusy while a
// generation is streaming.
func (s *Session) StagePrompt(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != nil {
		return ErrBusy
	}
	for modelID := range s.histories {
		h := append(s.histories[modelID], agent.NewUserTurn(text))
		s.histories[modelID] = agent.TruncateHistory(h, s.maxExchanges, s.maxTokens)
	}
	s.pending = true
	return nil
}

// History returns a deep copy of one model's history. Unknown models get nil.
func (s *Session) History(modelID string) []agent.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return agent.CloneTurns(s.histories[modelID])
}

// CommitAssistant appends a model's answer to its history. Partial turns
// from failed or cancelled runs commit the same way so the transcript keeps
// alternating.
func (s *Session) CommitAssistant(modelID string, turn agent.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.histories[modelID]; !ok {
		return
	}
	s.histories[modelID] = append(s.histories[modelID], turn)
}

// SetGeneration claims the session for a stream, consuming the staged
// prompt. ErrBusy when a generation is already active, ErrNoPrompt when
// nothing has been staged since the last run.
func (s *Session) SetGeneration(g Generation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != nil {
		return ErrBusy
	}
	if !s.pending {
		return ErrNoPrompt
	}
	s.gen = g
	s.pending = false
	s.busy.Store(true)
	return nil
}

// ClearGeneration releases the session once its run has fully committed.
// Safe to call more than once.
func (s *Session) ClearGeneration() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen = nil
	s.busy.Store(false)
}

// Generation returns the active generation handle, if any.
func (s *Session) Generation() (Generation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == nil {
		return nil, false
	}
	return s.gen, true
}

// Busy reports whether a generation is active. It never takes the session
// lock, so the store may call it while holding its own.
func (s *Session) Busy() bool {
	return s.busy.Load()
}
