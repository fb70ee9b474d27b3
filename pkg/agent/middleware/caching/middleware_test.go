package caching

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"layoutpaint/pkg/agent/llm"
	"layoutpaint/pkg/cache"
)

func seeded(content string, seed int) llm.CompletionRequest {
	req := llm.NewCompletionRequest([]llm.CompletionMessage{llm.NewUserMessage(content)})
	req.Seed = &seed
	return req
}

func TestSeededRequestsAreReplayed(t *testing.T) {
	store, err := cache.NewFileCache(t.TempDir())
	require.NoError(t, err)

	mock := llm.NewMockLLMClient([]llm.CompletionResponse{
		{ToolCalls: []llm.ToolCall{{ID: "1", Name: "propose_layout", Parameters: map[string]any{"num_objects": 2.0}}}},
		{Content: "second"},
	}, nil)
	client := llm.Chain(mock, Middleware(store, 0, nil))

	first, err := client.Complete(context.Background(), seeded("two balls", 1))
	require.NoError(t, err)
	again, err := client.Complete(context.Background(), seeded("two balls", 1))
	require.NoError(t, err)

	assert.Equal(t, 1, mock.Calls())
	assert.Equal(t, first, again)

	other, err := client.Complete(context.Background(), seeded("two balls", 2))
	require.NoError(t, err)
	assert.Equal(t, "second", other.Content)
	assert.Equal(t, 2, mock.Calls())
}

func TestUnseededRequestsBypassCache(t *testing.T) {
	store, err := cache.NewFileCache(t.TempDir())
	require.NoError(t, err)

	mock := llm.NewMockLLMClient([]llm.CompletionResponse{{Content: "a"}, {Content: "b"}}, nil)
	client := llm.Chain(mock, Middleware(store, 0, nil))

	req := llm.NewCompletionRequest([]llm.CompletionMessage{llm.NewUserMessage("hi")})
	_, err = client.Complete(context.Background(), req)
	require.NoError(t, err)
	resp, err := client.Complete(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "b", resp.Content)
	assert.Equal(t, 2, mock.Calls())
}

func TestErrorsAreNotCached(t *testing.T) {
	store, err := cache.NewFileCache(t.TempDir())
	require.NoError(t, err)

	mock := llm.NewMockLLMClient([]llm.CompletionResponse{{Content: "ok"}}, []error{assert.AnError})
	client := llm.Chain(mock, Middleware(store, 0, nil))

	_, err = client.Complete(context.Background(), seeded("x", 1))
	require.Error(t, err)
	resp, err := client.Complete(context.Background(), seeded("x", 1))
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
}

func TestRequestKeyVariesWithModel(t *testing.T) {
	k1, err := RequestKey("gpt-4o", seeded("x", 1))
	require.NoError(t, err)
	k2, err := RequestKey("claude-sonnet-4-5", seeded("x", 1))
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)
}
