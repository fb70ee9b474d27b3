package retry

import (
	"context"
	"errors"

	"layoutpaint/pkg/agent/llm"
	"layoutpaint/pkg/agent/llmerrors"
)

// Middleware returns a middleware function that wraps an LLM client with retry logic.
// Exhausted retries surface as a ServiceUnavailable LLM error.
func Middleware(policy *Policy) llm.Middleware {
	return func(next llm.LLMClient) llm.LLMClient {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				resp, err := Do(ctx, policy, func(ctx context.Context) (llm.CompletionResponse, error) {
					return next.Complete(ctx, req)
				})
				var exhausted *ExhaustedError
				if errors.As(err, &exhausted) {
					return llm.CompletionResponse{}, llmerrors.NewServiceUnavailableError(exhausted.Err, exhausted.Attempts)
				}
				return resp, err
			},
			next.GetModelName,
		)
	}
}
