package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"layoutpaint/pkg/agent/llm"
	"layoutpaint/pkg/agent/llmerrors"
	"layoutpaint/pkg/agent/middleware/resilience/retry"
	"layoutpaint/pkg/cache"
	"layoutpaint/pkg/config"
	"layoutpaint/pkg/runerrors"
)

type countingRecorder struct {
	requests int
}

func (c *countingRecorder) ObserveRequest(_, _ string, _, _ int, _ bool, _ string, _ time.Duration) {
	c.requests++
}
func (c *countingRecorder) ObserveImageEdit(_ string, _ bool, _ time.Duration) {}
func (c *countingRecorder) ObserveNegotiation(_ string, _ int)                 {}

func TestNewRawClientPerProvider(t *testing.T) {
	t.Setenv(config.EnvOpenAIAPIKey, "sk-test")
	t.Setenv(config.EnvAnthropicAPIKey, "sk-ant-test")
	t.Setenv(config.EnvGoogleAPIKey, "g-test")
	cfg := config.Default()

	tests := map[string]string{
		"gpt-4o":            "gpt-4o",
		"claude-sonnet-4-5": "claude-sonnet-4-5",
		"gemini-2.5-flash":  "gemini-2.5-flash",
		"ollama:phi4":       "phi4",
	}
	for model, wantName := range tests {
		client, err := NewRawClient(cfg, model)
		require.NoError(t, err, model)
		assert.Equal(t, wantName, client.GetModelName(), model)
	}
}

func TestNewRawClientMissingKey(t *testing.T) {
	t.Setenv(config.EnvAnthropicAPIKey, "")
	_, err := NewRawClient(config.Default(), "claude-sonnet-4-5")
	require.Error(t, err)
	assert.True(t, runerrors.Is(err, runerrors.KindConfiguration))
}

func TestWrapRetriesAndRecords(t *testing.T) {
	cfg := config.Default()
	rec := &countingRecorder{}
	mock := llm.NewMockLLMClient(
		[]llm.CompletionResponse{{Content: "ok"}},
		[]error{llmerrors.NewError(llmerrors.ErrorTypeTransient, "blip"), nil},
	)
	fast := retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1}

	client := Wrap(mock, cfg, Deps{Recorder: rec, Participant: "position_bot", Retry: &fast})
	resp, err := client.Complete(context.Background(), llm.NewCompletionRequest([]llm.CompletionMessage{llm.NewUserMessage("x")}))
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 2, mock.Calls())
	assert.Equal(t, 1, rec.requests, "metrics sit outside retry and see one logical request")
}

func TestWrapUsesCacheForSeededRequests(t *testing.T) {
	store, err := cache.NewFileCache(t.TempDir())
	require.NoError(t, err)
	mock := llm.NewMockLLMClient([]llm.CompletionResponse{{Content: "first"}}, nil)
	client := Wrap(mock, config.Default(), Deps{Cache: store})

	seed := 1
	req := llm.NewCompletionRequest([]llm.CompletionMessage{llm.NewUserMessage("x")})
	req.Seed = &seed
	for i := 0; i < 3; i++ {
		resp, err := client.Complete(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "first", resp.Content)
	}
	assert.Equal(t, 1, mock.Calls())
}
