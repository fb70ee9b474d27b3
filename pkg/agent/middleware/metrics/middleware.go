package metrics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"layoutpaint/pkg/agent/llm"
	"layoutpaint/pkg/agent/llmerrors"
	"layoutpaint/pkg/logx"
	"layoutpaint/pkg/utils"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// UsageExtractor is a function that extracts token usage from a request and response.
type UsageExtractor func(req llm.CompletionRequest, resp llm.CompletionResponse) (promptTokens, completionTokens int)

// DefaultUsageExtractor estimates usage with tiktoken. Tool-call arguments count
// toward completion tokens.
func DefaultUsageExtractor(req llm.CompletionRequest, resp llm.CompletionResponse) (promptTokens, completionTokens int) {
	var prompt strings.Builder
	for i := range req.Messages {
		prompt.WriteString(req.Messages[i].Content)
		prompt.WriteString("\n")
	}
	promptTokens = utils.CountTokensSimple(prompt.String())

	completion := resp.Content
	for i := range resp.ToolCalls {
		completion += "\n" + resp.ToolCalls[i].Name
		for k, v := range resp.ToolCalls[i].Parameters {
			completion += fmt.Sprintf(" %s=%v", k, v)
		}
	}
	completionTokens = utils.CountTokensSimple(completion)

	return promptTokens, completionTokens
}

// Middleware returns a middleware function that records metrics for LLM operations
// made on behalf of one participant.
func Middleware(recorder Recorder, usageExtractor UsageExtractor, participant string, logger *logx.Logger) llm.Middleware {
	if usageExtractor == nil {
		usageExtractor = DefaultUsageExtractor
	}

	return func(next llm.LLMClient) llm.LLMClient {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				start := time.Now()
				model := next.GetModelName()

				resp, err := next.Complete(ctx, req)
				duration := time.Since(start)

				var promptTokens, completionTokens int
				if err == nil {
					promptTokens, completionTokens = usageExtractor(req, resp)
				}
				errorType := getErrorType(err)

				recorder.ObserveRequest(model, participant, promptTokens, completionTokens, err == nil, errorType, duration)

				if logger != nil {
					logger.Info("🎯 LLM Request: model=%s participant=%s tokens=%d+%d=%d status=%s duration=%dms",
						model, participant, promptTokens, completionTokens, promptTokens+completionTokens,
						status(err == nil), duration.Milliseconds())
				}

				return resp, err //nolint:wrapcheck // Middleware should pass through errors unchanged
			},
			next.GetModelName,
		)
	}
}

// getErrorType classifies errors for metrics labeling.
func getErrorType(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	var llmErr *llmerrors.Error
	if errors.As(err, &llmErr) {
		return llmErr.Type.String()
	}
	return "unknown"
}
