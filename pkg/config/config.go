// Package config loads run configuration and resolves model providers and credentials.
package config

import (
	"fmt"
	"strings"

	"layoutpaint/pkg/logx"
)

// Provider constants.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGoogle    = "google"
	ProviderOllama    = "ollama"
)

// Credential environment variables.
const (
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
	EnvGoogleAPIKey    = "GOOGLE_GENAI_API_KEY"
	EnvOllamaHost      = "OLLAMA_HOST"
)

// LLM cache backends.
const (
	CacheBackendNone  = "none"
	CacheBackendFile  = "file"
	CacheBackendRedis = "redis"
)

//nolint:gochecknoglobals // package logger
var logger = logx.NewLogger("config")

// ModelInfo contains static information about a known chat model.
type ModelInfo struct {
	Provider         string // API provider (anthropic, openai, google, ollama)
	MaxContextTokens int
	MaxOutputTokens  int
}

// KnownModels registry contains provider information for common models.
// Unknown models are inferred via ProviderPatterns.
//
//nolint:gochecknoglobals // Intentional global for static model registry
var KnownModels = map[string]ModelInfo{
	"gpt-4o":            {Provider: ProviderOpenAI, MaxContextTokens: 128000, MaxOutputTokens: 4096},
	"gpt-4o-mini":       {Provider: ProviderOpenAI, MaxContextTokens: 128000, MaxOutputTokens: 16384},
	"gpt-4.1":           {Provider: ProviderOpenAI, MaxContextTokens: 1047576, MaxOutputTokens: 32768},
	"claude-sonnet-4-5": {Provider: ProviderAnthropic, MaxContextTokens: 200000, MaxOutputTokens: 8192},
	"claude-opus-4-1":   {Provider: ProviderAnthropic, MaxContextTokens: 200000, MaxOutputTokens: 16384},
	"gemini-2.0-flash":  {Provider: ProviderGoogle, MaxContextTokens: 1048576, MaxOutputTokens: 8192},
	"gemini-2.5-flash":  {Provider: ProviderGoogle, MaxContextTokens: 1048576, MaxOutputTokens: 65536},
}

// ImageModels lists image-edit models accepted for inpaint_model.
//
//nolint:gochecknoglobals // static registry
var ImageModels = map[string]bool{
	"dall-e-2":    true,
	"gpt-image-1": true,
}

// ProviderPattern represents a pattern for inferring provider from model name.
type ProviderPattern struct {
	Prefix   string
	Provider string
}

// ProviderPatterns defines rules for inferring providers from unknown model names.
//
//nolint:gochecknoglobals // Intentional global for static pattern registry
var ProviderPatterns = []ProviderPattern{
	{"claude", ProviderAnthropic},
	{"gpt", ProviderOpenAI},
	{"o1", ProviderOpenAI},
	{"o3", ProviderOpenAI},
	{"o4", ProviderOpenAI},
	{"gemini", ProviderGoogle},
	{"llama", ProviderOllama},
	{"qwen", ProviderOllama},
	{"mistral", ProviderOllama},
	{"phi", ProviderOllama},
	{"ollama:", ProviderOllama}, // Explicit prefix like "ollama:phi4"
}

// GetModelProvider returns the API provider for a given model.
// First checks KnownModels, then tries pattern matching.
func GetModelProvider(modelName string) (string, error) {
	if info, exists := KnownModels[modelName]; exists {
		return info.Provider, nil
	}
	for i := range ProviderPatterns {
		if strings.HasPrefix(modelName, ProviderPatterns[i].Prefix) {
			return ProviderPatterns[i].Provider, nil
		}
	}
	return "", fmt.Errorf("unknown model %q: cannot infer provider", modelName)
}

// ProviderModelName strips an explicit "ollama:" routing prefix.
func ProviderModelName(modelName string) string {
	return strings.TrimPrefix(modelName, "ollama:")
}

// NegotiationConfig bounds the layout conversation.
type NegotiationConfig struct {
	MaxRounds       int     `json:"max_rounds" yaml:"max_rounds" toml:"max_rounds"`                      // Total message cap, seed included
	MaxRelayReplies int     `json:"max_relay_replies" yaml:"max_relay_replies" toml:"max_relay_replies"` // Consecutive relay auto-replies
	LLMTimeoutSec   int     `json:"llm_timeout_sec" yaml:"llm_timeout_sec" toml:"llm_timeout_sec"`
	Temperature     float64 `json:"temperature" yaml:"temperature" toml:"temperature"`
	Seed            int     `json:"seed" yaml:"seed" toml:"seed"`
	MaxTokens       int     `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens"`
}

// ImageServiceConfig controls image-edit calls and result fetches.
type ImageServiceConfig struct {
	BaseURL          string `json:"base_url" yaml:"base_url" toml:"base_url"` // Empty uses the provider default
	TimeoutSec       int    `json:"timeout_sec" yaml:"timeout_sec" toml:"timeout_sec"`
	MaxAttempts      int    `json:"max_attempts" yaml:"max_attempts" toml:"max_attempts"`
	InitialBackoffMS int    `json:"initial_backoff_ms" yaml:"initial_backoff_ms" toml:"initial_backoff_ms"`
}

// LLMCacheConfig selects the optional completion cache.
type LLMCacheConfig struct {
	Backend   string `json:"backend" yaml:"backend" toml:"backend"` // none, file or redis
	Dir       string `json:"dir" yaml:"dir" toml:"dir"`
	RedisAddr string `json:"redis_addr" yaml:"redis_addr" toml:"redis_addr"`
	TTLHours  int    `json:"ttl_hours" yaml:"ttl_hours" toml:"ttl_hours"`
}

// Config is the full run configuration.
type Config struct {
	InpaintModel string `json:"inpaint_model" yaml:"inpaint_model" toml:"inpaint_model"`
	MaskGenModel string `json:"mask_gen_model" yaml:"mask_gen_model" toml:"mask_gen_model"`
	BgrPath      string `json:"bgr_path" yaml:"bgr_path" toml:"bgr_path"`
	BgrColor     string `json:"bgr_color" yaml:"bgr_color" toml:"bgr_color"`
	InpaintPath  string `json:"inpaint_path" yaml:"inpaint_path" toml:"inpaint_path"`
	LayoutPath   string `json:"layout_path" yaml:"layout_path" toml:"layout_path"`
	MaskPath     string `json:"mask_path" yaml:"mask_path" toml:"mask_path"`
	MetricsPath  string `json:"metrics_path" yaml:"metrics_path" toml:"metrics_path"`    // Prometheus textfile, empty disables
	EventLogDir  string `json:"event_log_dir" yaml:"event_log_dir" toml:"event_log_dir"` // Transcript JSONL directory, empty disables
	OllamaHost   string `json:"ollama_host" yaml:"ollama_host" toml:"ollama_host"`

	Negotiation  NegotiationConfig  `json:"negotiation" yaml:"negotiation" toml:"negotiation"`
	ImageService ImageServiceConfig `json:"image_service" yaml:"image_service" toml:"image_service"`
	LLMCache     LLMCacheConfig     `json:"llm_cache" yaml:"llm_cache" toml:"llm_cache"`

	ImageHeight int `json:"image_height" yaml:"image_height" toml:"image_height"`
	ImageWidth  int `json:"image_width" yaml:"image_width" toml:"image_width"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults sets default values for missing configuration.
func applyDefaults(config *Config) {
	if config.ImageHeight == 0 {
		config.ImageHeight = 1024
	}
	if config.ImageWidth == 0 {
		config.ImageWidth = 1024
	}
	if config.InpaintModel == "" {
		config.InpaintModel = "dall-e-2"
	}
	if config.MaskGenModel == "" {
		config.MaskGenModel = "gpt-4o"
	}
	if config.BgrPath == "" {
		config.BgrPath = "assets/background.png"
	}
	if config.BgrColor == "" {
		config.BgrColor = "#FFFFFF"
	}
	if config.InpaintPath == "" {
		config.InpaintPath = "assets/inpaint"
	}
	if config.LayoutPath == "" {
		config.LayoutPath = "assets/masks/masks_data.json"
	}
	if config.MaskPath == "" {
		config.MaskPath = "assets/masks/edit_mask.png"
	}

	n := &config.Negotiation
	if n.MaxRounds == 0 {
		n.MaxRounds = 20
	}
	if n.MaxRelayReplies == 0 {
		n.MaxRelayReplies = 5
	}
	if n.LLMTimeoutSec == 0 {
		n.LLMTimeoutSec = 120
	}
	if n.Seed == 0 {
		n.Seed = 1
	}
	if n.MaxTokens == 0 {
		n.MaxTokens = 2048
	}

	s := &config.ImageService
	if s.TimeoutSec == 0 {
		s.TimeoutSec = 120
	}
	if s.MaxAttempts == 0 {
		s.MaxAttempts = 3
	}
	if s.InitialBackoffMS == 0 {
		s.InitialBackoffMS = 1000
	}

	c := &config.LLMCache
	if c.Backend == "" {
		c.Backend = CacheBackendNone
	}
	if c.Dir == "" {
		c.Dir = ".cache/llm"
	}
	if c.RedisAddr == "" {
		c.RedisAddr = "localhost:6379"
	}
}

func validateConfig(config *Config) error {
	if config.ImageWidth <= 0 || config.ImageHeight <= 0 {
		return fmt.Errorf("image size %dx%d must be positive", config.ImageWidth, config.ImageHeight)
	}
	if !ImageModels[config.InpaintModel] {
		return fmt.Errorf("inpaint_model %q is not a supported image-edit model", config.InpaintModel)
	}
	if _, err := GetModelProvider(config.MaskGenModel); err != nil {
		return fmt.Errorf("mask_gen_model: %w", err)
	}
	if _, err := ParseColor(config.BgrColor); err != nil {
		return fmt.Errorf("bgr_color: %w", err)
	}
	// Seed, proposal, approval, persist call and tool result is the shortest path to termination.
	if config.Negotiation.MaxRounds < 5 {
		return fmt.Errorf("negotiation.max_rounds %d is too small to converge", config.Negotiation.MaxRounds)
	}
	if config.Negotiation.MaxRelayReplies < 1 {
		return fmt.Errorf("negotiation.max_relay_replies must be at least 1")
	}
	if config.Negotiation.Temperature < 0 || config.Negotiation.Temperature > 2 {
		return fmt.Errorf("negotiation.temperature %.2f out of range [0, 2]", config.Negotiation.Temperature)
	}
	if config.ImageService.MaxAttempts < 1 {
		return fmt.Errorf("image_service.max_attempts must be at least 1")
	}
	switch config.LLMCache.Backend {
	case CacheBackendNone, CacheBackendFile, CacheBackendRedis:
	default:
		return fmt.Errorf("llm_cache.backend %q must be one of none, file, redis", config.LLMCache.Backend)
	}
	return nil
}
