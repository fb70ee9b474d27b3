// Package caching provides a completion cache middleware for LLM clients.
package caching

import (
	"context"
	"encoding/json"
	"time"

	"layoutpaint/pkg/agent/llm"
	"layoutpaint/pkg/cache"
	"layoutpaint/pkg/logx"
)

const keyPrefix = "completion"

// Middleware replays cached responses for seeded requests. Requests without
// a seed are never cached. Cache failures are logged and bypassed.
func Middleware(store cache.Cache, ttl time.Duration, logger *logx.Logger) llm.Middleware {
	if logger == nil {
		logger = logx.NewLogger("llm-cache")
	}
	return func(next llm.LLMClient) llm.LLMClient {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				if req.Seed == nil {
					return next.Complete(ctx, req)
				}

				key, err := RequestKey(next.GetModelName(), req)
				if err != nil {
					logger.Warn("cache key failed, bypassing cache: %v", err)
					return next.Complete(ctx, req)
				}

				if data, hit, getErr := store.Get(ctx, key); getErr != nil {
					logger.Warn("cache read failed: %v", getErr)
				} else if hit {
					var cached llm.CompletionResponse
					if jsonErr := json.Unmarshal(data, &cached); jsonErr == nil {
						logger.Debug("cache hit for %s", key)
						return cached, nil
					}
					_ = store.Delete(ctx, key)
				}

				resp, err := next.Complete(ctx, req)
				if err != nil {
					return resp, err //nolint:wrapcheck // Middleware should pass through errors unchanged
				}

				if data, jsonErr := json.Marshal(resp); jsonErr == nil {
					if setErr := store.Set(ctx, key, data, ttl); setErr != nil {
						logger.Warn("cache write failed: %v", setErr)
					}
				}
				return resp, nil
			},
			next.GetModelName,
		)
	}
}

// RequestKey derives the cache key from the model name and every request field
// that influences the completion.
//
//nolint:gocritic // request is hashed by value
func RequestKey(model string, req llm.CompletionRequest) (string, error) {
	return cache.Key(keyPrefix, model, req.Seed, req.Temperature, req.MaxTokens, req.ToolChoice, req.Messages, req.Tools) //nolint:wrapcheck // already descriptive
}
