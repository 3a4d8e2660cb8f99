// Package session holds the per-conversation state and the request handler
// that drives one chat turn through filtering, retrieval, prompt assembly
// and generation.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/campusrag/advisor/internal/filter"
	"github.com/campusrag/advisor/internal/llm"
)

// State is the session's position in its turn cycle.
type State string

const (
	StateEmpty         State = "empty"
	StateAwaitingInput State = "awaiting_input"
	StateProcessing    State = "processing"
	StateDisplaying    State = "displaying"
)

// Session is an explicit, session-scoped conversation context: an append-only
// message log plus the predicate set the previous turn ran under. Sessions
// are not persisted across process restarts.
type Session struct {
	ID        string
	CreatedAt time.Time

	state      State
	messages   []llm.Message
	filters    filter.Predicates
	hasFilters bool
}

// New creates an empty session.
func New() *Session {
	return &Session{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
		state:     StateEmpty,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// Messages returns a copy of the message log.
func (s *Session) Messages() []llm.Message {
	out := make([]llm.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of messages in the log.
func (s *Session) Len() int { return len(s.messages) }

// Filters returns the predicate set of the last turn.
func (s *Session) Filters() filter.Predicates { return s.filters }

// Rendered marks the end of the display phase, returning the session to
// awaiting input.
func (s *Session) Rendered() {
	if s.state == StateDisplaying {
		s.state = StateAwaitingInput
	}
}

// beginTurn applies filter-change detection and records the incoming user
// message. If the predicate set differs from the previous turn's, the
// history is cleared first so the model cannot anchor on results computed
// under stale filters. Reports whether the history was cleared.
func (s *Session) beginTurn(text string, preds filter.Predicates) bool {
	cleared := false
	if s.hasFilters && !s.filters.Equal(preds) && len(s.messages) > 0 {
		s.messages = nil
		cleared = true
	}
	s.filters = preds
	s.hasFilters = true

	s.messages = append(s.messages, llm.Message{Role: llm.RoleUser, Content: text})
	s.state = StateProcessing
	return cleared
}

// finishTurn appends the assistant reply and moves to displaying.
func (s *Session) finishTurn(response string) {
	s.messages = append(s.messages, llm.Message{Role: llm.RoleAssistant, Content: response})
	s.state = StateDisplaying
}

// failTurn discards any partial assistant state. The user's message stays in
// the log; the session is never left in processing.
func (s *Session) failTurn() {
	s.state = StateDisplaying
}
