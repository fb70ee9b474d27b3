// Package agent builds provider-backed LLM clients wrapped in the standard middleware chain.
package agent

import (
	"time"

	"layoutpaint/pkg/agent/internal/llmimpl/anthropic"
	"layoutpaint/pkg/agent/internal/llmimpl/google"
	"layoutpaint/pkg/agent/internal/llmimpl/ollama"
	"layoutpaint/pkg/agent/internal/llmimpl/openaiofficial"
	"layoutpaint/pkg/agent/llm"
	"layoutpaint/pkg/agent/middleware/caching"
	"layoutpaint/pkg/agent/middleware/logging"
	"layoutpaint/pkg/agent/middleware/metrics"
	"layoutpaint/pkg/agent/middleware/resilience/retry"
	"layoutpaint/pkg/agent/middleware/resilience/timeout"
	"layoutpaint/pkg/cache"
	"layoutpaint/pkg/config"
	"layoutpaint/pkg/logx"
	"layoutpaint/pkg/runerrors"
)

// Deps are the shared collaborators threaded into every client.
type Deps struct {
	Recorder    metrics.Recorder // nil disables metrics
	Cache       cache.Cache      // nil disables the completion cache
	Logger      *logx.Logger
	Participant string // metrics label
	Retry       *retry.Config
}

// NewRawClient creates the provider client for model without middleware.
func NewRawClient(cfg *config.Config, model string) (llm.LLMClient, error) {
	const op = "agent.client"

	provider, err := config.GetModelProvider(model)
	if err != nil {
		return nil, runerrors.Wrap(runerrors.KindConfiguration, op, err, "failed to determine provider for model %s", model)
	}

	apiKey, err := config.GetAPIKey(provider)
	if err != nil {
		return nil, runerrors.Wrap(runerrors.KindConfiguration, op, err, "failed to get API key for provider %s", provider)
	}

	switch provider {
	case config.ProviderOpenAI:
		return openaiofficial.NewOfficialClientWithModel(apiKey, model), nil
	case config.ProviderAnthropic:
		return anthropic.NewClaudeClientWithModel(apiKey, model), nil
	case config.ProviderGoogle:
		return google.NewGeminiClientWithModel(apiKey, model), nil
	case config.ProviderOllama:
		host := apiKey
		if cfg.OllamaHost != "" {
			host = cfg.OllamaHost
		}
		return ollama.NewOllamaClientWithModel(host, config.ProviderModelName(model)), nil
	default:
		return nil, runerrors.New(runerrors.KindConfiguration, op, "unsupported provider: %s", provider)
	}
}

// NewClient creates a client for model with the full middleware chain:
// Metrics -> EmptyResponseLogging -> Cache -> Retry -> Timeout -> RawClient.
func NewClient(cfg *config.Config, model string, deps Deps) (llm.LLMClient, error) {
	raw, err := NewRawClient(cfg, model)
	if err != nil {
		return nil, err
	}
	return Wrap(raw, cfg, deps), nil
}

// Wrap applies the standard middleware chain to an existing client.
func Wrap(raw llm.LLMClient, cfg *config.Config, deps Deps) llm.LLMClient {
	logger := deps.Logger
	if logger == nil {
		logger = logx.NewLogger("llm")
	}

	retryConfig := retry.DefaultConfig
	if deps.Retry != nil {
		retryConfig = *deps.Retry
	}
	policy := retry.NewPolicy(retryConfig, nil)
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		logger.Warn("LLM call failed (attempt %d), retrying in %v: %v", attempt, delay, err)
	}

	var middlewares []llm.Middleware
	if deps.Recorder != nil {
		middlewares = append(middlewares, metrics.Middleware(deps.Recorder, nil, deps.Participant, logger))
	}
	middlewares = append(middlewares, logging.EmptyResponseLoggingMiddleware(logger))
	if deps.Cache != nil {
		ttl := time.Duration(cfg.LLMCache.TTLHours) * time.Hour
		middlewares = append(middlewares, caching.Middleware(deps.Cache, ttl, logger))
	}
	middlewares = append(middlewares, retry.Middleware(policy))
	if cfg.Negotiation.LLMTimeoutSec > 0 {
		middlewares = append(middlewares, timeout.Middleware(time.Duration(cfg.Negotiation.LLMTimeoutSec)*time.Second))
	}

	return llm.Chain(raw, middlewares...)
}
