package imagesvc

import (
	"context"
	"time"

	"layoutpaint/pkg/agent/middleware/resilience/retry"
	"layoutpaint/pkg/logx"
)

type retryingEditor struct {
	next    Editor
	policy  *retry.Policy
	logger  *logx.Logger
	timeout time.Duration
}

// WithRetry wraps an editor with the retry policy and a per-attempt timeout.
// The policy is copied; a nil policy gets the image-service defaults.
func WithRetry(next Editor, policy *retry.Policy, timeout time.Duration) Editor {
	logger := logx.NewLogger("imagesvc")
	return &retryingEditor{
		next:    next,
		policy:  loggingPolicy(policy, logger, "Image edit"),
		logger:  logger,
		timeout: timeout,
	}
}

func (r *retryingEditor) Edit(ctx context.Context, req EditRequest) (EditResponse, error) {
	return retry.Do(ctx, r.policy, func(ctx context.Context) (EditResponse, error) {
		attemptCtx, cancel := withTimeout(ctx, r.timeout)
		defer cancel()
		return r.next.Edit(attemptCtx, req)
	})
}
