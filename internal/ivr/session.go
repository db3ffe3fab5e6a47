package ivr

import "time"

// StateRecorder receives the current state each time a state is entered.
// Session implements it; store adapters persist whatever it recorded.
type StateRecorder interface {
	SetCurrentState(id StateID)
}

// Session is the per-call record carried across webhook turns.
type Session struct {
	// CallID is the provider call identifier (or correlation cookie value)
	// the session is keyed by.
	CallID string `json:"call_id"`

	// CurrentState is the last state entered. Empty until the call has
	// taken its first turn.
	CurrentState StateID `json:"current_state,omitempty"`

	// UpdatedAt is stamped by the HTTP layer before the session is stored.
	UpdatedAt time.Time `json:"updated_at"`
}

// SetCurrentState implements StateRecorder.
func (s *Session) SetCurrentState(id StateID) {
	s.CurrentState = id
}

// Started reports whether the call has entered the flow.
func (s Session) Started() bool {
	return s.CurrentState != ""
}
