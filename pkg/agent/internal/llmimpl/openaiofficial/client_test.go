package openaiofficial

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"layoutpaint/pkg/agent/llm"
	"layoutpaint/pkg/agent/llmerrors"
	"layoutpaint/pkg/tools"
)

func proposeTool() tools.ToolDefinition {
	return tools.NewProposeLayoutTool().Definition()
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (llm.LLMClient, *[]map[string]any) {
	t.Helper()
	var bodies []map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var body map[string]any
		require.NoError(t, json.Unmarshal(raw, &body))
		bodies = append(bodies, body)
		handler(w, r)
	}))
	t.Cleanup(server.Close)
	return NewOfficialClientWithModel("test-key", "gpt-4o", option.WithBaseURL(server.URL+"/")), &bodies
}

func TestConvertPropertyToSchemaNested(t *testing.T) {
	def := proposeTool()
	prop := def.InputSchema.Properties["position_list"]
	schema := convertPropertyToSchema(&prop)

	assert.Equal(t, "array", schema["type"])
	items := schema["items"].(map[string]any)
	assert.Equal(t, "array", items["type"])
	assert.Equal(t, 4, items["minItems"])
	assert.Equal(t, 4, items["maxItems"])
	assert.Equal(t, "integer", items["items"].(map[string]any)["type"])
}

func TestConvertMessages(t *testing.T) {
	_, err := convertMessages(nil)
	assert.Error(t, err)

	msgs, err := convertMessages([]llm.CompletionMessage{
		llm.NewSystemMessage("sys"),
		llm.NewUserMessage("hi"),
		llm.NewAssistantMessage("hello"),
	})
	require.NoError(t, err)
	assert.Len(t, msgs, 3)

	_, err = convertMessages([]llm.CompletionMessage{{Role: "tool", Content: "x"}})
	assert.Error(t, err)
}

func TestCompleteSendsDeterministicParamsAndParsesToolCalls(t *testing.T) {
	client, bodies := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "gpt-4o",
			"choices": [{
				"index": 0,
				"finish_reason": "tool_calls",
				"message": {
					"role": "assistant",
					"content": null,
					"tool_calls": [{
						"id": "call_1",
						"type": "function",
						"function": {"name": "propose_layout", "arguments": "{\"object_name\":[\"cat\"],\"num_objects\":1,\"position_list\":[[10,10,4,4]]}"}
					}]
				}
			}]
		}`)
	})

	seed := 1
	req := llm.NewCompletionRequest([]llm.CompletionMessage{llm.NewSystemMessage("place objects"), llm.NewUserMessage("a cat")})
	req.Seed = &seed
	req.Tools = []tools.ToolDefinition{proposeTool()}
	req.ToolChoice = llm.ToolChoiceAny

	resp, err := client.Complete(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "propose_layout", resp.ToolCalls[0].Name)
	assert.Equal(t, "call_1", resp.ToolCalls[0].ID)
	assert.Equal(t, []any{"cat"}, resp.ToolCalls[0].Parameters["object_name"])
	assert.Equal(t, "tool_calls", resp.StopReason)

	require.Len(t, *bodies, 1)
	body := (*bodies)[0]
	assert.Equal(t, "gpt-4o", body["model"])
	assert.InDelta(t, 1, body["seed"], 0)
	assert.InDelta(t, 0, body["temperature"], 0)
	assert.Equal(t, "required", body["tool_choice"])
	assert.Len(t, body["tools"], 1)
}

func TestCompleteClassifiesHTTPErrors(t *testing.T) {
	tests := []struct {
		status int
		want   llmerrors.ErrorType
	}{
		{http.StatusTooManyRequests, llmerrors.ErrorTypeRateLimit},
		{http.StatusUnauthorized, llmerrors.ErrorTypeAuth},
		{http.StatusBadRequest, llmerrors.ErrorTypeBadPrompt},
		{http.StatusBadGateway, llmerrors.ErrorTypeTransient},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, `{"error": {"message": "nope", "type": "test"}}`)
			})
			_, err := client.Complete(context.Background(), llm.NewCompletionRequest([]llm.CompletionMessage{llm.NewUserMessage("x")}))
			require.Error(t, err)
			assert.Equal(t, tt.want, llmerrors.TypeOf(err))
		})
	}
}

func TestCompleteEmptyChoices(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id": "x", "object": "chat.completion", "created": 1, "model": "gpt-4o", "choices": []}`)
	})
	_, err := client.Complete(context.Background(), llm.NewCompletionRequest([]llm.CompletionMessage{llm.NewUserMessage("x")}))
	assert.True(t, llmerrors.Is(err, llmerrors.ErrorTypeEmptyResponse))
}

func TestGetModelName(t *testing.T) {
	assert.Equal(t, "gpt-4o-mini", NewOfficialClientWithModel("k", "gpt-4o-mini").GetModelName())
}
