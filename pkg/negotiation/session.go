// Package negotiation runs the multi-participant layout conversation that turns a
// scene prompt into a persisted layout file.
//
// All conversational state lives in a Session. A Coordinator drives one Session
// at a time; separate sessions share nothing and may run side by side.
package negotiation

import (
	"fmt"

	"github.com/google/uuid"

	"layoutpaint/pkg/layout"
	"layoutpaint/pkg/runerrors"
	"layoutpaint/pkg/tools"
)

// Transition records one state change.
type Transition struct {
	From    State
	To      State
	Reason  string
	Message int // transcript length when the transition happened
}

// Session is the state of one negotiation.
//
//nolint:govet // Field order optimized for readability over memory alignment
type Session struct {
	ID           string
	Prompt       string
	CanvasWidth  int
	CanvasHeight int

	State      State
	Transcript []Message
	History    []Transition

	// RelayStreak counts relay auto-replies since the last state change.
	RelayStreak int

	// LastReason is the most recent rejection, validation failure or nudge reason.
	LastReason string

	Proposal *tools.LayoutArgs
	Approved *tools.LayoutArgs
	Saved    *layout.Layout
}

// NewSession creates a session in PROPOSING with an empty transcript.
func NewSession(prompt string, canvasWidth, canvasHeight int) *Session {
	return &Session{
		ID:           uuid.New().String(),
		Prompt:       prompt,
		CanvasWidth:  canvasWidth,
		CanvasHeight: canvasHeight,
		State:        StateProposing,
	}
}

// Append adds a message to the transcript.
func (s *Session) Append(m Message) {
	s.Transcript = append(s.Transcript, m)
}

// Len returns the number of transcript messages, seed included.
func (s *Session) Len() int {
	return len(s.Transcript)
}

// Last returns the latest message.
func (s *Session) Last() (Message, bool) {
	if len(s.Transcript) == 0 {
		return Message{}, false
	}
	return s.Transcript[len(s.Transcript)-1], true
}

// TransitionTo moves the session to a new state and resets the relay streak.
func (s *Session) TransitionTo(to State, reason string) error {
	if !IsValidTransition(s.State, to) {
		return runerrors.Negotiation("negotiation.transition",
			"invalid transition %s -> %s (allowed: %v)", s.State, to, ValidNextStates(s.State))
	}
	s.History = append(s.History, Transition{
		From:    s.State,
		To:      to,
		Reason:  reason,
		Message: len(s.Transcript),
	})
	s.State = to
	s.RelayStreak = 0
	if reason != "" {
		s.LastReason = reason
	}
	return nil
}

// CanvasSize renders the canvas as "{width}x{height}".
func (s *Session) CanvasSize() string {
	return fmt.Sprintf("%dx%d", s.CanvasWidth, s.CanvasHeight)
}
