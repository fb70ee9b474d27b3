// Package logging provides logging middleware for LLM clients.
package logging

import (
	"context"
	"strings"

	"layoutpaint/pkg/agent/llm"
	"layoutpaint/pkg/agent/llmerrors"
	"layoutpaint/pkg/logx"
	"layoutpaint/pkg/tools"
)

const maxLoggedMessage = 4000

// EmptyResponseLoggingMiddleware dumps the request that produced an empty
// response, then passes the error through unchanged.
func EmptyResponseLoggingMiddleware(logger *logx.Logger) llm.Middleware {
	if logger == nil {
		logger = logx.NewLogger("llm-middleware")
	}
	return func(next llm.LLMClient) llm.LLMClient {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				resp, err := next.Complete(ctx, req)
				if err != nil && llmerrors.Is(err, llmerrors.ErrorTypeEmptyResponse) {
					logEmptyResponse(logger, next.GetModelName(), req)
				}
				//nolint:wrapcheck // Middleware intentionally passes through errors unchanged
				return resp, err
			},
			next.GetModelName,
		)
	}
}

//nolint:gocritic // request is logged, not mutated
func logEmptyResponse(logger *logx.Logger, model string, req llm.CompletionRequest) {
	logger.Error("🚨 EMPTY RESPONSE FROM %s", model)
	for i := range req.Messages {
		content := req.Messages[i].Content
		if len(content) > maxLoggedMessage {
			content = content[:maxLoggedMessage] + " [truncated]"
		}
		logger.Error("Message [%d] Role: %s, Content: %s", i, req.Messages[i].Role, content)
	}
	logger.Error("  - Temperature: %v, Max Tokens: %d, Tool choice: %q",
		req.Temperature, req.MaxTokens, req.ToolChoice)
	if len(req.Tools) > 0 {
		logger.Error("  - Available Tools: %s", strings.Join(getToolNames(req.Tools), ", "))
	}
}

func getToolNames(toolDefs []tools.ToolDefinition) []string {
	names := make([]string, len(toolDefs))
	for i := range toolDefs {
		names[i] = toolDefs[i].Name
	}
	return names
}
