// Package timeout bounds each completion call.
package timeout

import (
	"context"
	"time"

	"layoutpaint/pkg/agent/llm"
)

// Middleware gives every Complete call its own deadline of d. A non-positive d
// leaves calls unbounded.
func Middleware(d time.Duration) llm.Middleware {
	return func(next llm.LLMClient) llm.LLMClient {
		if d <= 0 {
			return next
		}
		complete := func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next.Complete(ctx, req)
		}
		return llm.WrapClient(complete, next.GetModelName)
	}
}
