package config

import (
	"encoding/json"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"layoutpaint/pkg/runerrors"
)

const (
	// EnvConfigPath names an explicit configuration file.
	EnvConfigPath = "LAYOUTPAINT_CONFIG"
	// EnvPrefix prefixes per-field environment overrides, e.g. LAYOUTPAINT_IMAGE_WIDTH
	// or LAYOUTPAINT_NEGOTIATION_MAX_ROUNDS.
	EnvPrefix = "LAYOUTPAINT_"
)

// SearchPaths are tried in order when EnvConfigPath is unset.
//
//nolint:gochecknoglobals // static search order
var SearchPaths = []string{
	"configs/settings.json",
	"configs/settings.yaml",
	"configs/settings.yml",
	"configs/settings.toml",
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// Find returns the configuration file to load, or "" when none exists.
func Find() string {
	if path := os.Getenv(EnvConfigPath); path != "" {
		return path
	}
	for _, path := range SearchPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// LoadDefault loads the file returned by Find, or pure defaults when none exists.
func LoadDefault() (*Config, error) {
	path := Find()
	if path == "" {
		logger.Info("No configuration file found, using defaults")
		return LoadConfig("")
	}
	return LoadConfig(path)
}

// LoadConfig loads and validates configuration from a JSON, YAML or TOML file
// with ${VAR} substitution. An empty path yields defaults plus env overrides.
func LoadConfig(configPath string) (*Config, error) {
	const op = "config.load"
	var cfg Config

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, runerrors.Wrap(runerrors.KindConfiguration, op, err, "failed to read config file")
		}

		// Replace environment variable placeholders.
		dataStr := envVarRegex.ReplaceAllStringFunc(string(data), func(match string) string {
			envVar := match[2 : len(match)-1]
			if value := os.Getenv(envVar); value != "" {
				return value
			}
			return match
		})

		if err := decode(configPath, dataStr, &cfg); err != nil {
			return nil, runerrors.Wrap(runerrors.KindConfiguration, op, err, "failed to parse %s", configPath)
		}
		logger.Info("Loaded configuration from %s", configPath)
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, runerrors.Wrap(runerrors.KindConfiguration, op, err, "config validation failed")
	}
	return &cfg, nil
}

func decode(path, data string, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal([]byte(data), cfg)
	case ".toml":
		_, err := toml.Decode(data, cfg)
		return err
	case ".json", "":
		return json.Unmarshal([]byte(data), cfg)
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
}

func applyEnvOverrides(config *Config) {
	v := reflect.ValueOf(config).Elem()
	applyEnvOverridesRecursive(v, v.Type(), EnvPrefix)
}

func applyEnvOverridesRecursive(v reflect.Value, t reflect.Type, prefix string) {
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		jsonTag := fieldType.Tag.Get("json")
		if jsonTag == "" || jsonTag == "-" {
			continue
		}

		fieldName := strings.Split(jsonTag, ",")[0]
		envKey := strings.ToUpper(prefix + fieldName)

		if field.Kind() == reflect.Struct {
			applyEnvOverridesRecursive(field, field.Type(), envKey+"_")
			continue
		}
		if envValue := os.Getenv(envKey); envValue != "" {
			setFieldFromEnv(field, envKey, envValue)
		}
	}
}

func setFieldFromEnv(field reflect.Value, envKey, envValue string) {
	if !field.CanSet() {
		return
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(envValue)
	case reflect.Int:
		if val, err := strconv.Atoi(envValue); err == nil {
			field.SetInt(int64(val))
		} else {
			logger.Warn("Ignoring %s=%q: not an integer", envKey, envValue)
		}
	case reflect.Float64:
		if val, err := strconv.ParseFloat(envValue, 64); err == nil {
			field.SetFloat(val)
		} else {
			logger.Warn("Ignoring %s=%q: not a number", envKey, envValue)
		}
	}
}

// ParseColor parses #RGB or #RRGGBB.
func ParseColor(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.NRGBA{}, fmt.Errorf("color %q must be #RGB or #RRGGBB", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("color %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
