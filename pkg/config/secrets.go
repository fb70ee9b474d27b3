package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"

	"layoutpaint/pkg/runerrors"
)

// DefaultDotEnvPath is the local credentials file read by LoadDotEnv.
const DefaultDotEnvPath = ".env"

// LoadDotEnv loads KEY=value pairs from path into the process environment.
// Variables already set in the environment win. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = DefaultDotEnvPath
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return runerrors.Wrap(runerrors.KindConfiguration, "config.dotenv", err, "failed to load %s", path)
	}
	logger.Info("Loaded environment from %s", path)
	return nil
}

// GetSecret returns a secret value by name from the environment.
func GetSecret(name string) (string, error) {
	if value := os.Getenv(name); value != "" {
		return value, nil
	}
	return "", fmt.Errorf("secret %s not found in environment", name)
}

// GetAPIKey returns the API key for a given provider.
// For Ollama, returns the host URL instead of an API key.
func GetAPIKey(provider string) (string, error) {
	var envVar string
	switch provider {
	case ProviderAnthropic:
		envVar = EnvAnthropicAPIKey
	case ProviderOpenAI:
		envVar = EnvOpenAIAPIKey
	case ProviderGoogle:
		envVar = EnvGoogleAPIKey
	case ProviderOllama:
		host := os.Getenv(EnvOllamaHost)
		if host == "" {
			host = "http://localhost:11434"
		}
		return host, nil
	default:
		return "", fmt.Errorf("unknown provider: %s", provider)
	}

	key, err := GetSecret(envVar)
	if err != nil {
		return "", fmt.Errorf("API key not found: %w", err)
	}
	return key, nil
}

// RequireCredentials checks, before any network call, that the image-edit key
// and the key for the negotiation model's provider are present.
func RequireCredentials(cfg *Config) error {
	const op = "config.credentials"
	if _, err := GetAPIKey(ProviderOpenAI); err != nil {
		return runerrors.Wrap(runerrors.KindConfiguration, op, err, "image edits need %s", EnvOpenAIAPIKey)
	}
	provider, err := GetModelProvider(cfg.MaskGenModel)
	if err != nil {
		return runerrors.Wrap(runerrors.KindConfiguration, op, err, "mask_gen_model")
	}
	if _, err := GetAPIKey(provider); err != nil {
		return runerrors.Wrap(runerrors.KindConfiguration, op, err, "mask_gen_model %s uses %s", cfg.MaskGenModel, provider)
	}
	return nil
}
