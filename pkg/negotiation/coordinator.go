package negotiation

import (
	"context"
	"errors"
	"fmt"
	"os"

	"layoutpaint/pkg/agent/llm"
	"layoutpaint/pkg/agent/middleware/metrics"
	"layoutpaint/pkg/config"
	"layoutpaint/pkg/layout"
	"layoutpaint/pkg/logx"
	"layoutpaint/pkg/runerrors"
	"layoutpaint/pkg/tools"
)

// Options bounds and parameterizes a negotiation.
type Options struct {
	Recorder        metrics.Recorder
	OnMessage       func(s *Session, m Message) // transcript hook, may be nil
	LayoutPath      string
	MaxMessages     int // total transcript cap, seed included
	MaxRelayReplies int // consecutive relay auto-replies
	CanvasWidth     int
	CanvasHeight    int
	Seed            int
	MaxTokens       int
	Temperature     float64
}

// OptionsFromConfig maps the run configuration onto negotiation options.
func OptionsFromConfig(cfg *config.Config, recorder metrics.Recorder) Options {
	return Options{
		Recorder:        recorder,
		LayoutPath:      cfg.LayoutPath,
		MaxMessages:     cfg.Negotiation.MaxRounds,
		MaxRelayReplies: cfg.Negotiation.MaxRelayReplies,
		CanvasWidth:     cfg.ImageWidth,
		CanvasHeight:    cfg.ImageHeight,
		Seed:            cfg.Negotiation.Seed,
		MaxTokens:       cfg.Negotiation.MaxTokens,
		Temperature:     cfg.Negotiation.Temperature,
	}
}

// Participants are the four protocol roles.
type Participants struct {
	Proposer  Participant
	Verifier  Participant
	Persister Participant
	Relay     Participant
}

// Coordinator selects speakers, records the transcript and enforces the caps.
type Coordinator struct {
	recorder metrics.Recorder
	logger   *logx.Logger
	roles    map[string]Role
	parts    Participants
	opts     Options
}

// NewCoordinator creates a coordinator over explicit participants.
func NewCoordinator(opts Options, parts Participants) *Coordinator {
	if opts.MaxMessages <= 0 {
		opts.MaxMessages = 20
	}
	if opts.MaxRelayReplies <= 0 {
		opts.MaxRelayReplies = 5
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = metrics.Nop()
	}
	roles := make(map[string]Role, 4)
	for _, p := range []Participant{parts.Proposer, parts.Verifier, parts.Persister, parts.Relay} {
		roles[p.Name()] = p.Role()
	}
	return &Coordinator{
		recorder: recorder,
		logger:   logx.NewLogger("negotiation"),
		roles:    roles,
		parts:    parts,
		opts:     opts,
	}
}

// New creates a coordinator with the standard LLM participants and a relay that
// executes mask_generator against opts.LayoutPath.
func New(opts Options, proposer, verifier, persister llm.LLMClient) *Coordinator {
	size := fmt.Sprintf("%dx%d", opts.CanvasWidth, opts.CanvasHeight)
	seed := opts.Seed
	temperature := float32(opts.Temperature)

	provider := tools.NewProvider(tools.ToolContext{
		LayoutPath:   opts.LayoutPath,
		CanvasWidth:  opts.CanvasWidth,
		CanvasHeight: opts.CanvasHeight,
	}, []string{tools.ToolMaskGenerator})

	propose := tools.NewProposeLayoutTool()
	review := tools.NewReviewLayoutTool()

	parts := Participants{
		Proposer: NewAgent(AgentConfig{
			Name:         NameProposer,
			Role:         RoleProposer,
			SystemPrompt: proposerPrompt(size),
			ReplyTool:    tools.ToolProposeLayout,
			Offered:      []tools.ToolDefinition{propose.Definition()},
			Local:        []tools.Tool{propose},
			Temperature:  temperature,
			Seed:         &seed,
			MaxTokens:    opts.MaxTokens,
		}, proposer),
		Verifier: NewAgent(AgentConfig{
			Name:         NameVerifier,
			Role:         RoleVerifier,
			SystemPrompt: verifierPrompt(size),
			ReplyTool:    tools.ToolReviewLayout,
			Offered:      []tools.ToolDefinition{review.Definition()},
			Local:        []tools.Tool{review},
			Temperature:  temperature,
			Seed:         &seed,
			MaxTokens:    opts.MaxTokens,
		}, verifier),
		Persister: NewAgent(AgentConfig{
			Name:         NamePersister,
			Role:         RolePersister,
			SystemPrompt: persisterPrompt(size),
			ReplyTool:    tools.ToolMaskGenerator,
			Offered:      provider.Definitions(),
			ToolChoice:   llm.ToolChoiceAuto, // the persister may decline in text
			Temperature:  temperature,
			Seed:         &seed,
			MaxTokens:    opts.MaxTokens,
		}, persister),
		Relay: NewRelay(provider, map[string]string{
			NameProposer:  tools.ToolProposeLayout,
			NameVerifier:  tools.ToolReviewLayout,
			NamePersister: tools.ToolMaskGenerator,
		}).Guard(tools.ToolMaskGenerator, requireApproved),
	}
	return NewCoordinator(opts, parts)
}

// Negotiate runs a fresh session for prompt. Any layout file left by an earlier
// run is removed first so a file only exists after a successful save.
func (c *Coordinator) Negotiate(ctx context.Context, prompt string) Outcome[*layout.Layout] {
	s := NewSession(prompt, c.opts.CanvasWidth, c.opts.CanvasHeight)
	if c.opts.LayoutPath != "" {
		if err := os.Remove(c.opts.LayoutPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return c.finish(s, OutcomeAborted, runerrors.IO("negotiation.start", err, "remove stale layout %s", c.opts.LayoutPath))
		}
	}
	return c.Run(ctx, s)
}

// Run drives s until it terminates or a cap is hit.
func (c *Coordinator) Run(ctx context.Context, s *Session) Outcome[*layout.Layout] {
	const op = "negotiation.run"
	c.logger.Info("Starting negotiation %s for %q on a %s canvas", s.ID, s.Prompt, s.CanvasSize())

	if s.Len() == 0 {
		c.record(s, Message{Sender: NameRelay, Kind: KindPrompt, Content: s.Prompt})
	}

	for {
		if err := ctx.Err(); err != nil {
			return c.finish(s, OutcomeCanceled, runerrors.Wrap(runerrors.KindNegotiation, op, err, "negotiation canceled"))
		}
		if s.Len() >= c.opts.MaxMessages {
			return c.finish(s, OutcomeRoundLimit, runerrors.Wrap(runerrors.KindNegotiation, op, ErrNotConverged,
				"no saved layout after %d messages (last reason: %s)", s.Len(), reasonOrNone(s.LastReason)))
		}

		speaker := c.nextSpeaker(s)
		if speaker.Role() == RoleRelay {
			if s.RelayStreak >= c.opts.MaxRelayReplies {
				return c.finish(s, OutcomeRelayLimit, runerrors.Wrap(runerrors.KindNegotiation, op, ErrNotConverged,
					"%d consecutive relay replies without progress (last reason: %s)", s.RelayStreak, reasonOrNone(s.LastReason)))
			}
			s.RelayStreak++
		}

		logx.DebugState(ctx, "negotiation", "speaker", s.State.String(), speaker.Name())
		msg, err := speaker.Respond(ctx, s)
		if err != nil {
			if ctx.Err() != nil {
				return c.finish(s, OutcomeCanceled, runerrors.Wrap(runerrors.KindNegotiation, op, err, "negotiation canceled"))
			}
			return c.finish(s, OutcomeLLMError, runerrors.Wrap(runerrors.KindRemoteService, op, err, "%s did not answer", speaker.Name()))
		}
		c.record(s, msg)
		c.logger.Info("[%d] %s (%s): %s", s.Len(), msg.Sender, msg.Kind, truncate(msg.Text(), 200))

		if err := c.advance(s, speaker, msg); err != nil {
			return c.finish(s, OutcomeAborted, err)
		}

		if msg.Terminates() {
			if s.State == StateTerminated {
				return c.finish(s, OutcomeConverged, nil)
			}
			return c.finish(s, OutcomeAborted, runerrors.Wrap(runerrors.KindNegotiation, op, ErrNotConverged,
				"%s ended the conversation before a layout was saved", msg.Sender))
		}
	}
}

func (c *Coordinator) record(s *Session, m Message) {
	s.Append(m)
	if c.opts.OnMessage != nil {
		c.opts.OnMessage(s, m)
	}
}

// nextSpeaker answers a turn that needs the relay, otherwise picks the
// participant that owns the current state.
func (c *Coordinator) nextSpeaker(s *Session) Participant {
	if last, ok := s.Last(); ok && last.Kind == KindReply && c.needsRelay(last) {
		return c.parts.Relay
	}
	switch s.State {
	case StateVerifying:
		return c.parts.Verifier
	case StatePersisting:
		return c.parts.Persister
	default:
		return c.parts.Proposer
	}
}

// needsRelay reports whether a participant turn left a tool call to execute or
// skipped its reply tool. A persister answering in plain text is declining.
func (c *Coordinator) needsRelay(m Message) bool {
	if m.Effect != nil {
		return false
	}
	if len(m.ToolCalls) > 0 {
		return true
	}
	return c.roles[m.Sender] != RolePersister
}

// advance applies the protocol transition implied by msg.
func (c *Coordinator) advance(s *Session, speaker Participant, msg Message) error {
	switch speaker.Role() {
	case RoleProposer:
		if proposal, ok := effectData[tools.LayoutArgs](msg, tools.SignalLayoutProposed, "layout"); ok {
			s.Proposal = &proposal
			return s.TransitionTo(StateVerifying, "")
		}

	case RoleVerifier:
		decision, ok := effectData[tools.ReviewDecision](msg, tools.SignalLayoutReviewed, "decision")
		if !ok {
			return nil
		}
		if !decision.Approved {
			return s.TransitionTo(StateProposing, decision.Reason)
		}
		approved := decision.Layout
		if approved == nil {
			approved = s.Proposal
		}
		s.Approved = approved
		return s.TransitionTo(StatePersisting, "")

	case RolePersister:
		if len(msg.ToolCalls) == 0 {
			reason := msg.Content
			if reason == "" {
				reason = "persister declined without a reason"
			}
			return s.TransitionTo(StateProposing, reason)
		}

	case RoleRelay:
		switch msg.Kind {
		case KindToolResult:
			if saved, ok := effectData[*layout.Layout](msg, tools.SignalLayoutSaved, "layout"); ok {
				s.Saved = saved
				if msg.Terminates() {
					return s.TransitionTo(StateTerminated, "")
				}
				return nil
			}
			if msg.Failure != "" {
				return s.TransitionTo(StateProposing, msg.Failure)
			}
		case KindNudge:
			if msg.Failure != "" {
				s.LastReason = msg.Failure
			} else {
				s.LastReason = msg.Content
			}
		}
	}
	return nil
}

func (c *Coordinator) finish(s *Session, kind OutcomeKind, err error) Outcome[*layout.Layout] {
	out := Outcome[*layout.Layout]{
		Kind:      kind,
		Err:       err,
		Round:     s.Len(),
		Reason:    s.LastReason,
		SessionID: s.ID,
	}
	if kind == OutcomeConverged {
		out.Value = s.Saved
		c.logger.Info("✅ Negotiation %s converged after %d messages: %d objects", s.ID, s.Len(), s.Saved.NumObjects)
	} else {
		c.logger.Error("Negotiation %s stopped (%s) after %d messages: %v", s.ID, kind, s.Len(), err)
	}
	c.recorder.ObserveNegotiation(kind.String(), s.Len())
	return out
}

func effectData[T any](msg Message, signal, key string) (T, bool) {
	var zero T
	if msg.Effect == nil || msg.Effect.Signal != signal {
		return zero, false
	}
	v, ok := msg.Effect.Data[key].(T)
	return v, ok
}

func reasonOrNone(reason string) string {
	if reason == "" {
		return "none"
	}
	return reason
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
