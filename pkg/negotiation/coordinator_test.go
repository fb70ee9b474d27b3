package negotiation

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"layoutpaint/pkg/agent/llm"
	"layoutpaint/pkg/agent/llmerrors"
	"layoutpaint/pkg/agent/middleware/metrics"
	"layoutpaint/pkg/layout"
	"layoutpaint/pkg/runerrors"
	"layoutpaint/pkg/tools"
)

type negotiationRecord struct {
	outcome  string
	messages int
}

type captureRecorder struct {
	metrics.NoopRecorder
	negotiations []negotiationRecord
}

func (r *captureRecorder) ObserveNegotiation(outcome string, messages int) {
	r.negotiations = append(r.negotiations, negotiationRecord{outcome: outcome, messages: messages})
}

//nolint:gochecknoglobals // Shared test fixtures
var (
	threeBalls     = []string{"red ball", "green ball", "blue ball"}
	threePositions = [][]int{{96, 256, 128, 128}, {256, 256, 128, 128}, {416, 256, 128, 128}}
)

func toolResponse(name string, args map[string]any) llm.CompletionResponse {
	return llm.CompletionResponse{
		ToolCalls:  []llm.ToolCall{{ID: "call_" + name, Name: name, Parameters: args}},
		StopReason: "tool_use",
	}
}

func proposal(names []string, positions [][]int) llm.CompletionResponse {
	return toolResponse(tools.ToolProposeLayout,
		tools.LayoutArgs{ObjectNames: names, NumObjects: len(names), PositionList: positions}.ToArgs())
}

func approval(a tools.LayoutArgs) llm.CompletionResponse {
	args := a.ToArgs()
	args["approved"] = true
	return toolResponse(tools.ToolReviewLayout, args)
}

func rejection(reason string) llm.CompletionResponse {
	return toolResponse(tools.ToolReviewLayout, map[string]any{"approved": false, "reason": reason})
}

func save(a tools.LayoutArgs) llm.CompletionResponse {
	return toolResponse(tools.ToolMaskGenerator, a.ToArgs())
}

func testOptions(t *testing.T, recorder metrics.Recorder) Options {
	t.Helper()
	return Options{
		Recorder:        recorder,
		LayoutPath:      filepath.Join(t.TempDir(), "assets", "masks", "masks_data.json"),
		MaxMessages:     20,
		MaxRelayReplies: 5,
		CanvasWidth:     512,
		CanvasHeight:    512,
		Seed:            1,
		MaxTokens:       1024,
	}
}

func TestNegotiateConverges(t *testing.T) {
	recorder := &captureRecorder{}
	opts := testOptions(t, recorder)
	good := tools.LayoutArgs{ObjectNames: threeBalls, NumObjects: 3, PositionList: threePositions}

	proposer := llm.NewMockLLMClient([]llm.CompletionResponse{proposal(threeBalls, threePositions)}, nil)
	verifier := llm.NewMockLLMClient([]llm.CompletionResponse{approval(good)}, nil)
	persister := llm.NewMockLLMClient([]llm.CompletionResponse{save(good)}, nil)

	out := New(opts, proposer, verifier, persister).Negotiate(context.Background(), "Draw three balls")

	require.Equal(t, OutcomeConverged, out.Kind, "err: %v", out.Err)
	assert.Equal(t, 5, out.Round)
	assert.NotEmpty(t, out.SessionID)

	l, err := out.Result()
	require.NoError(t, err)
	assert.Equal(t, 3, l.NumObjects)
	assert.Equal(t, threeBalls, l.ObjectNames)

	loaded, err := layout.Load(opts.LayoutPath)
	require.NoError(t, err)
	assert.Equal(t, l, loaded)

	require.Len(t, recorder.negotiations, 1)
	assert.Equal(t, negotiationRecord{outcome: "Converged", messages: 5}, recorder.negotiations[0])

	// Deterministic settings reach every model call.
	for _, client := range []*llm.MockLLMClient{proposer, verifier, persister} {
		reqs := client.Requests()
		require.Len(t, reqs, 1)
		require.NotNil(t, reqs[0].Seed)
		assert.Equal(t, 1, *reqs[0].Seed)
		assert.InDelta(t, 0, reqs[0].Temperature, 1e-9)
		assert.Equal(t, 1024, reqs[0].MaxTokens)
	}
	assert.Equal(t, llm.ToolChoiceAny, proposer.Requests()[0].ToolChoice)
	assert.Equal(t, llm.ToolChoiceAuto, persister.Requests()[0].ToolChoice)
	assert.Contains(t, proposer.Requests()[0].Messages[0].Content, "512x512")
}

func TestNegotiateRejectionReseedsProposal(t *testing.T) {
	opts := testOptions(t, nil)
	overlapping := [][]int{{200, 200, 200, 200}, {300, 300, 200, 200}}
	fixed := [][]int{{128, 256, 200, 200}, {384, 256, 200, 200}}
	names := []string{"cat", "dog"}
	good := tools.LayoutArgs{ObjectNames: names, NumObjects: 2, PositionList: fixed}

	proposer := llm.NewMockLLMClient([]llm.CompletionResponse{proposal(names, overlapping), proposal(names, fixed)}, nil)
	verifier := llm.NewMockLLMClient([]llm.CompletionResponse{rejection("cat and dog overlap"), approval(good)}, nil)
	persister := llm.NewMockLLMClient([]llm.CompletionResponse{save(good)}, nil)

	c := New(opts, proposer, verifier, persister)
	s := NewSession("a cat next to a dog", 512, 512)
	out := c.Run(context.Background(), s)

	require.Equal(t, OutcomeConverged, out.Kind, "err: %v", out.Err)
	assert.Equal(t, 7, out.Round)
	assert.Equal(t, "cat and dog overlap", out.Reason)

	second := proposer.Requests()[1].Messages
	last := second[len(second)-1]
	assert.Equal(t, llm.RoleUser, last.Role)
	assert.Equal(t, NameVerifier+": REJECTED: cat and dog overlap", last.Content)
	assert.Equal(t, llm.RoleAssistant, second[len(second)-2].Role, "own proposal is an assistant turn")

	var path []State
	for _, tr := range s.History {
		path = append(path, tr.To)
	}
	assert.Equal(t, []State{StateVerifying, StateProposing, StateVerifying, StatePersisting, StateTerminated}, path)
}

func TestNegotiatePersisterValidationFailure(t *testing.T) {
	opts := testOptions(t, nil)
	names := []string{"a", "b", "c"}
	short := tools.LayoutArgs{ObjectNames: names, NumObjects: 3, PositionList: [][]int{{64, 64, 64, 64}, {256, 64, 64, 64}}}
	full := tools.LayoutArgs{ObjectNames: names, NumObjects: 3, PositionList: [][]int{{64, 64, 64, 64}, {256, 64, 64, 64}, {448, 64, 64, 64}}}

	proposer := llm.NewMockLLMClient([]llm.CompletionResponse{proposal(names, short.PositionList), proposal(names, full.PositionList)}, nil)
	verifier := llm.NewMockLLMClient([]llm.CompletionResponse{approval(short), approval(full)}, nil)
	persister := llm.NewMockLLMClient([]llm.CompletionResponse{save(short), save(full)}, nil)

	c := New(opts, proposer, verifier, persister)
	s := NewSession("three letters", 512, 512)
	out := c.Run(context.Background(), s)

	require.Equal(t, OutcomeConverged, out.Kind, "err: %v", out.Err)
	assert.Equal(t, 9, out.Round)

	failed := s.Transcript[4]
	assert.Equal(t, NameRelay, failed.Sender)
	assert.Equal(t, KindToolResult, failed.Kind)
	assert.Contains(t, failed.Failure, "position_list has 2 items but num_objects is 3")
	assert.Equal(t, StateProposing, s.History[2].To)
	assert.Equal(t, 2, proposer.Calls())
}

func TestNegotiateRoundLimitWritesNoLayout(t *testing.T) {
	recorder := &captureRecorder{}
	opts := testOptions(t, recorder)
	names := []string{"ball"}

	var proposals, rejections []llm.CompletionResponse
	for i := 0; i < 12; i++ {
		proposals = append(proposals, proposal(names, [][]int{{256, 256, 64, 64}}))
		rejections = append(rejections, rejection("the ball should be larger"))
	}
	proposer := llm.NewMockLLMClient(proposals, nil)
	verifier := llm.NewMockLLMClient(rejections, nil)
	persister := llm.NewMockLLMClient(nil, nil)

	out := New(opts, proposer, verifier, persister).Negotiate(context.Background(), "Draw a ball")

	assert.Equal(t, OutcomeRoundLimit, out.Kind)
	assert.Equal(t, 20, out.Round)
	assert.Equal(t, 10, proposer.Calls())
	assert.Equal(t, 9, verifier.Calls())
	assert.Equal(t, 0, persister.Calls())

	l, err := out.Result()
	assert.Nil(t, l)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotConverged)
	assert.True(t, runerrors.Is(err, runerrors.KindNegotiation))
	assert.Contains(t, err.Error(), "the ball should be larger")
	assert.NoFileExists(t, opts.LayoutPath)

	require.Len(t, recorder.negotiations, 1)
	assert.Equal(t, "RoundLimit", recorder.negotiations[0].outcome)
}

func TestNegotiateRelayLimit(t *testing.T) {
	opts := testOptions(t, nil)
	var chatter []llm.CompletionResponse
	for i := 0; i < 10; i++ {
		chatter = append(chatter, llm.CompletionResponse{Content: "Let me think about the layout."})
	}
	proposer := llm.NewMockLLMClient(chatter, nil)

	out := New(opts, proposer, llm.NewMockLLMClient(nil, nil), llm.NewMockLLMClient(nil, nil)).
		Negotiate(context.Background(), "Draw a ball")

	assert.Equal(t, OutcomeRelayLimit, out.Kind)
	assert.Equal(t, 12, out.Round)
	assert.Equal(t, 6, proposer.Calls())
	assert.ErrorIs(t, out.Err, ErrNotConverged)
	assert.NoFileExists(t, opts.LayoutPath)
}

func TestNegotiateInvalidProposalIsNudged(t *testing.T) {
	opts := testOptions(t, nil)
	bad := toolResponse(tools.ToolProposeLayout, map[string]any{
		"object_name":   []any{"ball"},
		"num_objects":   1.0,
		"position_list": []any{[]any{10.5, 10.0, 4.0, 4.0}},
	})
	good := tools.LayoutArgs{ObjectNames: []string{"ball"}, NumObjects: 1, PositionList: [][]int{{256, 256, 64, 64}}}

	proposer := llm.NewMockLLMClient([]llm.CompletionResponse{bad, proposal(good.ObjectNames, good.PositionList)}, nil)
	verifier := llm.NewMockLLMClient([]llm.CompletionResponse{approval(good)}, nil)
	persister := llm.NewMockLLMClient([]llm.CompletionResponse{save(good)}, nil)

	c := New(opts, proposer, verifier, persister)
	s := NewSession("Draw a ball", 512, 512)
	out := c.Run(context.Background(), s)

	require.Equal(t, OutcomeConverged, out.Kind, "err: %v", out.Err)
	nudge := s.Transcript[2]
	assert.Equal(t, KindNudge, nudge.Kind)
	assert.Contains(t, nudge.Content, "propose_layout call was rejected")
	assert.Contains(t, nudge.Failure, "not an integer")
}

func TestNegotiatePersisterDeclines(t *testing.T) {
	opts := testOptions(t, nil)
	good := tools.LayoutArgs{ObjectNames: []string{"ball"}, NumObjects: 1, PositionList: [][]int{{256, 256, 64, 64}}}

	proposer := llm.NewMockLLMClient([]llm.CompletionResponse{
		proposal(good.ObjectNames, good.PositionList), proposal(good.ObjectNames, good.PositionList),
	}, nil)
	verifier := llm.NewMockLLMClient([]llm.CompletionResponse{approval(good), approval(good)}, nil)
	persister := llm.NewMockLLMClient([]llm.CompletionResponse{
		{Content: "The ball floats in the sky; move it onto the ground."},
		save(good),
	}, nil)

	c := New(opts, proposer, verifier, persister)
	s := NewSession("a ball on the ground", 512, 512)
	out := c.Run(context.Background(), s)

	require.Equal(t, OutcomeConverged, out.Kind, "err: %v", out.Err)
	assert.Equal(t, 8, out.Round)
	assert.Equal(t, StateProposing, s.History[2].To)
	assert.Equal(t, "The ball floats in the sky; move it onto the ground.", s.History[2].Reason)
}

func TestNegotiatePersisterMustSaveApprovedLayout(t *testing.T) {
	opts := testOptions(t, nil)
	good := tools.LayoutArgs{ObjectNames: threeBalls, NumObjects: 3, PositionList: threePositions}
	other := tools.LayoutArgs{ObjectNames: []string{"cat"}, NumObjects: 1, PositionList: [][]int{{256, 256, 10, 10}}}

	proposer := llm.NewMockLLMClient([]llm.CompletionResponse{proposal(threeBalls, threePositions)}, nil)
	verifier := llm.NewMockLLMClient([]llm.CompletionResponse{approval(good)}, nil)
	persister := llm.NewMockLLMClient([]llm.CompletionResponse{save(other), save(good)}, nil)

	c := New(opts, proposer, verifier, persister)
	s := NewSession("Draw three balls", 512, 512)
	out := c.Run(context.Background(), s)

	require.Equal(t, OutcomeConverged, out.Kind, "err: %v", out.Err)
	assert.Equal(t, 7, out.Round)

	refused := s.Transcript[4]
	assert.Equal(t, NameRelay, refused.Sender)
	assert.Equal(t, KindNudge, refused.Kind)
	assert.Contains(t, refused.Failure, "differs from the approved one")
	assert.Equal(t, StatePersisting, s.History[len(s.History)-2].To)

	l, err := out.Result()
	require.NoError(t, err)
	assert.Equal(t, threeBalls, l.ObjectNames)

	loaded, err := layout.Load(opts.LayoutPath)
	require.NoError(t, err)
	assert.Equal(t, threeBalls, loaded.ObjectNames)
}

func TestNegotiateDivergingPersisterNeverSaves(t *testing.T) {
	opts := testOptions(t, nil)
	good := tools.LayoutArgs{ObjectNames: threeBalls, NumObjects: 3, PositionList: threePositions}
	other := tools.LayoutArgs{ObjectNames: []string{"cat"}, NumObjects: 1, PositionList: [][]int{{256, 256, 10, 10}}}

	var diverging []llm.CompletionResponse
	for i := 0; i < 10; i++ {
		diverging = append(diverging, save(other))
	}
	proposer := llm.NewMockLLMClient([]llm.CompletionResponse{proposal(threeBalls, threePositions)}, nil)
	verifier := llm.NewMockLLMClient([]llm.CompletionResponse{approval(good)}, nil)
	persister := llm.NewMockLLMClient(diverging, nil)

	out := New(opts, proposer, verifier, persister).Negotiate(context.Background(), "Draw three balls")

	assert.Equal(t, OutcomeRelayLimit, out.Kind)
	assert.ErrorIs(t, out.Err, ErrNotConverged)
	assert.Equal(t, 6, persister.Calls())
	assert.NoFileExists(t, opts.LayoutPath)
}

func TestNegotiateEmptyLayoutIsSentBack(t *testing.T) {
	opts := testOptions(t, nil)
	empty := tools.LayoutArgs{ObjectNames: []string{}, NumObjects: 0, PositionList: [][]int{}}
	good := tools.LayoutArgs{ObjectNames: []string{"ball"}, NumObjects: 1, PositionList: [][]int{{256, 256, 64, 64}}}

	proposer := llm.NewMockLLMClient([]llm.CompletionResponse{
		proposal(empty.ObjectNames, empty.PositionList), proposal(good.ObjectNames, good.PositionList),
	}, nil)
	verifier := llm.NewMockLLMClient([]llm.CompletionResponse{approval(empty), approval(good)}, nil)
	persister := llm.NewMockLLMClient([]llm.CompletionResponse{save(empty), save(good)}, nil)

	c := New(opts, proposer, verifier, persister)
	s := NewSession("Draw a ball", 512, 512)
	out := c.Run(context.Background(), s)

	require.Equal(t, OutcomeConverged, out.Kind, "err: %v", out.Err)
	assert.Equal(t, 9, out.Round)
	failed := s.Transcript[4]
	assert.Equal(t, KindToolResult, failed.Kind)
	assert.Contains(t, failed.Failure, "at least one object")
	assert.Equal(t, StateProposing, s.History[2].To)

	l, err := out.Result()
	require.NoError(t, err)
	assert.Equal(t, 1, l.NumObjects)
}

func TestNegotiateLLMError(t *testing.T) {
	opts := testOptions(t, nil)
	proposer := llm.NewMockLLMClient(nil, []error{llmerrors.NewError(llmerrors.ErrorTypeAuth, "bad key")})

	out := New(opts, proposer, llm.NewMockLLMClient(nil, nil), llm.NewMockLLMClient(nil, nil)).
		Negotiate(context.Background(), "Draw a ball")

	assert.Equal(t, OutcomeLLMError, out.Kind)
	assert.True(t, runerrors.Is(out.Err, runerrors.KindRemoteService))
	assert.True(t, llmerrors.Is(out.Err, llmerrors.ErrorTypeAuth))
	assert.Equal(t, 1, out.Round)
}

func TestNegotiateCanceled(t *testing.T) {
	opts := testOptions(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	proposer := llm.NewMockLLMClient(nil, nil)
	out := New(opts, proposer, llm.NewMockLLMClient(nil, nil), llm.NewMockLLMClient(nil, nil)).Negotiate(ctx, "Draw a ball")

	assert.Equal(t, OutcomeCanceled, out.Kind)
	assert.True(t, errors.Is(out.Err, context.Canceled))
	assert.Equal(t, 0, proposer.Calls())
}

func TestNegotiatePrematureTerminateFailsClosed(t *testing.T) {
	opts := testOptions(t, nil)
	proposer := llm.NewMockLLMClient([]llm.CompletionResponse{{Content: "Nothing to draw. TERMINATE"}}, nil)

	out := New(opts, proposer, llm.NewMockLLMClient(nil, nil), llm.NewMockLLMClient(nil, nil)).
		Negotiate(context.Background(), "Draw nothing")

	assert.Equal(t, OutcomeAborted, out.Kind)
	assert.ErrorIs(t, out.Err, ErrNotConverged)
	assert.NoFileExists(t, opts.LayoutPath)
}

func TestNegotiateRemovesStaleLayout(t *testing.T) {
	opts := testOptions(t, nil)
	stale, err := layout.New([]string{"old"}, 1, [][]int{{10, 10, 4, 4}})
	require.NoError(t, err)
	require.NoError(t, layout.Save(opts.LayoutPath, stale))

	proposer := llm.NewMockLLMClient(nil, []error{llmerrors.NewError(llmerrors.ErrorTypeTransient, "down")})
	out := New(opts, proposer, llm.NewMockLLMClient(nil, nil), llm.NewMockLLMClient(nil, nil)).
		Negotiate(context.Background(), "Draw a ball")

	assert.Equal(t, OutcomeLLMError, out.Kind)
	assert.NoFileExists(t, opts.LayoutPath)
}

func TestRelayRejectsForeignToolCalls(t *testing.T) {
	opts := testOptions(t, nil)
	c := New(opts, llm.NewMockLLMClient(nil, nil), llm.NewMockLLMClient(nil, nil), llm.NewMockLLMClient(nil, nil))

	s := NewSession("Draw a ball", 512, 512)
	s.Append(Message{Sender: NameRelay, Kind: KindPrompt, Content: s.Prompt})
	args := tools.LayoutArgs{ObjectNames: []string{"ball"}, NumObjects: 1, PositionList: [][]int{{256, 256, 64, 64}}}.ToArgs()
	s.Append(Message{
		Sender:    NameProposer,
		Kind:      KindReply,
		ToolCalls: []llm.ToolCall{{Name: tools.ToolMaskGenerator, Parameters: args}},
	})

	speaker := c.nextSpeaker(s)
	require.Equal(t, RoleRelay, speaker.Role())

	msg, err := speaker.Respond(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, KindNudge, msg.Kind)
	assert.Contains(t, msg.Content, "mask_generator is not available to you")
	assert.NoFileExists(t, opts.LayoutPath)
}

func TestSessionsAreIndependent(t *testing.T) {
	a := NewSession("one", 512, 512)
	b := NewSession("two", 256, 256)
	assert.NotEqual(t, a.ID, b.ID)

	require.NoError(t, a.TransitionTo(StateVerifying, ""))
	assert.Equal(t, StateVerifying, a.State)
	assert.Equal(t, StateProposing, b.State)
	assert.Empty(t, b.History)
	assert.Equal(t, "256x256", b.CanvasSize())
}

func TestMessageTerminates(t *testing.T) {
	tests := []struct {
		content string
		want    bool
	}{
		{"Great! All data is saved to masks_data.json. TERMINATE", true},
		{"done TERMINATE \n", true},
		{"TERMINATE", true},
		{"done terminate", false},
		{"TERMINATE.", false},
		{"TERMINATE now", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Message{Content: tt.content}.Terminates(), "%q", tt.content)
	}
}

func TestMessageTextRendersToolCalls(t *testing.T) {
	m := Message{ToolCalls: []llm.ToolCall{{Name: "mask_generator", Parameters: map[string]any{"num_objects": 1}}}}
	assert.Equal(t, `Called mask_generator with {"num_objects":1}`, m.Text())
	assert.True(t, strings.HasPrefix(Message{Content: "hi", ToolCalls: m.ToolCalls}.Text(), "hi"))
}

func TestOnMessageSeesEveryMessage(t *testing.T) {
	opts := testOptions(t, nil)
	var senders []string
	opts.OnMessage = func(s *Session, m Message) {
		assert.Equal(t, len(senders)+1, s.Len())
		senders = append(senders, m.Sender)
	}
	good := tools.LayoutArgs{ObjectNames: threeBalls, NumObjects: 3, PositionList: threePositions}

	out := New(opts,
		llm.NewMockLLMClient([]llm.CompletionResponse{proposal(threeBalls, threePositions)}, nil),
		llm.NewMockLLMClient([]llm.CompletionResponse{approval(good)}, nil),
		llm.NewMockLLMClient([]llm.CompletionResponse{save(good)}, nil),
	).Negotiate(context.Background(), "Draw three balls")

	require.Equal(t, OutcomeConverged, out.Kind, "err: %v", out.Err)
	assert.Equal(t, []string{NameRelay, NameProposer, NameVerifier, NamePersister, NameRelay}, senders)
}
