package negotiation

import (
	"context"
	"fmt"
)

// Participant names as they appear in the transcript.
const (
	NameProposer  = "position_bot"
	NameVerifier  = "position_verifier_bot"
	NamePersister = "mask_generation_bot"
	NameRelay     = "user_proxy"
)

// Role is a participant's function in the protocol.
type Role int

const (
	// RoleProposer proposes object names and positions.
	RoleProposer Role = iota
	// RoleVerifier approves or rejects proposals.
	RoleVerifier
	// RolePersister saves the approved layout through the mask_generator tool.
	RolePersister
	// RoleRelay executes tool calls and nudges participants that skipped their tool.
	RoleRelay
)

// String returns human-readable name for Role.
func (r Role) String() string {
	switch r {
	case RoleProposer:
		return "proposer"
	case RoleVerifier:
		return "verifier"
	case RolePersister:
		return "persister"
	case RoleRelay:
		return "relay"
	default:
		return fmt.Sprintf("Role(%d)", r)
	}
}

// Participant takes turns in a negotiation.
type Participant interface {
	Name() string
	Role() Role
	// Respond produces the participant's next message. The session must not be mutated.
	Respond(ctx context.Context, s *Session) (Message, error)
}
