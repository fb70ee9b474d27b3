package negotiation

// State is a layout negotiation state.
type State string

// Negotiation states.
const (
	// StateProposing - the proposer owes a layout proposal.
	StateProposing State = "PROPOSING"
	// StateVerifying - the verifier owes a verdict on the latest proposal.
	StateVerifying State = "VERIFYING"
	// StatePersisting - the persister owes a mask_generator call for the approved layout.
	StatePersisting State = "PERSISTING"
	// StateTerminated - the layout file was written and acknowledged.
	StateTerminated State = "TERMINATED"
)

// String returns the state name.
func (s State) String() string {
	return string(s)
}

// validTransitions defines the negotiation state machine.
//
//nolint:gochecknoglobals // Intentional package-level constant for state machine definition
var validTransitions = map[State][]State{
	StateProposing: {
		StateVerifying, // any proposal message
	},
	StateVerifying: {
		StateProposing,  // rejected with a reason
		StatePersisting, // approved
	},
	StatePersisting: {
		StateTerminated, // mask_generator succeeded
		StateProposing,  // tool validation failed or the persister declined
	},
	StateTerminated: {
		// Terminal state - no outgoing transitions
	},
}

// IsValidTransition checks if a state transition is allowed.
func IsValidTransition(from, to State) bool {
	allowedStates, exists := validTransitions[from]
	if !exists {
		return false
	}

	for _, allowed := range allowedStates {
		if allowed == to {
			return true
		}
	}

	return false
}

// AllStates returns every negotiation state.
func AllStates() []State {
	return []State{
		StateProposing,
		StateVerifying,
		StatePersisting,
		StateTerminated,
	}
}

// ValidNextStates returns the valid next states for a given state.
func ValidNextStates(from State) []State {
	return validTransitions[from]
}
