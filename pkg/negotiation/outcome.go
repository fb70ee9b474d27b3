package negotiation

import (
	"errors"
	"fmt"
)

// ErrNotConverged is wrapped by every outcome that ended without a saved layout.
var ErrNotConverged = errors.New("negotiation did not converge")

// OutcomeKind categorizes how a negotiation ended.
type OutcomeKind int

const (
	// OutcomeConverged indicates the layout was saved and acknowledged.
	// Value holds the saved layout.
	OutcomeConverged OutcomeKind = iota

	// OutcomeRoundLimit indicates the message cap was reached first.
	OutcomeRoundLimit

	// OutcomeRelayLimit indicates the relay exceeded its consecutive auto-reply cap.
	OutcomeRelayLimit

	// OutcomeLLMError indicates a participant's model call failed.
	// Err wraps the classified client error.
	OutcomeLLMError

	// OutcomeCanceled indicates the context was canceled or timed out.
	OutcomeCanceled

	// OutcomeAborted indicates a protocol violation, such as the terminal token
	// arriving before any layout was saved.
	OutcomeAborted
)

// String returns human-readable name for OutcomeKind.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeConverged:
		return "Converged"
	case OutcomeRoundLimit:
		return "RoundLimit"
	case OutcomeRelayLimit:
		return "RelayLimit"
	case OutcomeLLMError:
		return "LLMError"
	case OutcomeCanceled:
		return "Canceled"
	case OutcomeAborted:
		return "Aborted"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", k)
	}
}

// Outcome is the tagged result of a negotiation.
//
//nolint:govet // Field order optimized for readability over memory alignment
type Outcome[T any] struct {
	// Kind categorizes what happened.
	Kind OutcomeKind

	// Value is only meaningful when Kind == OutcomeConverged.
	Value T

	// Err is nil only when Kind == OutcomeConverged.
	Err error

	// Round is the transcript length when the negotiation stopped, seed included.
	Round int

	// Reason is the last rejection, validation failure or nudge reason.
	Reason string

	SessionID string
}

// Result returns the value on convergence and the error otherwise.
func (o Outcome[T]) Result() (T, error) {
	if o.Kind == OutcomeConverged && o.Err == nil {
		return o.Value, nil
	}
	var zero T
	if o.Err == nil {
		return zero, fmt.Errorf("%w: outcome %s", ErrNotConverged, o.Kind)
	}
	return zero, o.Err
}
