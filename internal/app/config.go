package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/northlake-dev/msgbridge/internal/endpointkind"
	"github.com/northlake-dev/msgbridge/internal/modelselect"
	"github.com/northlake-dev/msgbridge/internal/providerid"
	"github.com/northlake-dev/msgbridge/internal/tokenstore"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// TokenStorageType represents the different storage types supported for
// the Anthropic OAuth fallback secret source's persisted refresh token.
type TokenStorageType string

const (
	TokenStorageTypeFile    TokenStorageType = "file"
	TokenStorageTypeEnv     TokenStorageType = "env"
	TokenStorageTypeKeyring TokenStorageType = "keyring"
)

// Default configuration values for the ambient (koanf-loaded) surface.
const (
	DefaultConfigLogFormat       = LogFormatText
	DefaultConfigServerHost      = "127.0.0.1"
	DefaultConfigServerPort      = 4000
	DefaultConfigShutdownTimeout = 5 * time.Second
	DefaultConfigAuthStorage     = TokenStorageTypeFile
)

// ServerConfig holds the downstream HTTP listener configuration.
type ServerConfig struct {
	Host string `json:"host" validate:"hostname_rfc1123|ip"`
	Port uint16 `json:"port"`
}

// ShutdownConfig holds graceful-shutdown behavior configuration.
type ShutdownConfig struct {
	Timeout time.Duration `json:"timeout"`
}

// AuthConfig describes how to persist the optional Anthropic OAuth
// fallback secret source (SPEC_FULL.md §B); it is independent of the
// *_API_KEY env-var surface, which always takes priority (§4.1).
type AuthConfig struct {
	Enabled     bool             `json:"enabled"`
	Storage     TokenStorageType `json:"storage" validate:"omitempty,oneof=file env keyring"`
	File        string           `json:"file,omitempty"`
	EnvKey      string           `json:"env_key,omitempty"`
	KeyringUser string           `json:"keyring_user,omitempty"`
}

// NewTokenStore creates a TokenStore from the authentication configuration.
func (a *AuthConfig) NewTokenStore() (tokenstore.TokenStore, error) {
	switch a.Storage {
	case TokenStorageTypeFile:
		return tokenstore.NewFileStore(a.File)
	case TokenStorageTypeEnv:
		return tokenstore.NewEnvStore(a.EnvKey)
	case TokenStorageTypeKeyring:
		return tokenstore.NewKeyringStore("msgbridge-oauth-token", a.KeyringUser)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", a.Storage)
	}
}

// Config holds the ambient process configuration (§A): everything loaded
// through koanf's file → MSGBRIDGE_ env → CLI flags → defaults layering.
// The domain-facing surface named verbatim in spec.md §6 (PORT,
// ANTHROPIC_PROXY_BASE_URL, CUSTOM_API_KEY, ...) is read separately by
// LoadRuntime, since those exact variable names are part of the wire
// contract and must not be MSGBRIDGE_-prefixed or nested.
type Config struct {
	LogLevel  slog.Level     `json:"log_level"`
	LogFormat LogFormat      `json:"log_format" validate:"oneof=text json"`
	Server    ServerConfig   `json:"server"`
	Shutdown  ShutdownConfig `json:"shutdown"`
	Auth      AuthConfig     `json:"auth"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultConfigServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultConfigServerPort
	}
	if c.Shutdown.Timeout == 0 {
		c.Shutdown.Timeout = DefaultConfigShutdownTimeout
	}
	if c.Auth.Enabled && c.Auth.Storage == "" {
		c.Auth.Storage = DefaultConfigAuthStorage
	}

	switch c.Auth.Storage {
	case TokenStorageTypeFile:
		if c.Auth.File == "" {
			configDir, err := os.UserConfigDir()
			if err != nil {
				return fmt.Errorf("auth.file required (auto-detect failed: %w)", err)
			}
			c.Auth.File = filepath.Join(configDir, "msgbridge", "oauth-token")
		}
	case TokenStorageTypeKeyring:
		if c.Auth.KeyringUser == "" {
			currentUser, err := user.Current()
			if err != nil {
				return fmt.Errorf("auth.keyring_user required (auto-detect failed: %w)", err)
			}
			c.Auth.KeyringUser = currentUser.Username
		}
	}

	return nil
}

// Validate validates the ambient configuration using struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Auth.Enabled {
		switch c.Auth.Storage {
		case TokenStorageTypeFile:
			if c.Auth.File == "" {
				return errors.New("file path required for file storage")
			}
		case TokenStorageTypeEnv:
			if c.Auth.EnvKey == "" {
				return errors.New("env_key required for env storage")
			}
		case TokenStorageTypeKeyring:
			if c.Auth.KeyringUser == "" {
				return errors.New("keyring_user required for keyring storage")
			}
		}
	}
	return nil
}

// Runtime holds the domain configuration sourced directly from the exact
// environment variable names spec.md §6 enumerates. It is kept separate
// from the ambient, koanf-layered Config because these names are a wire
// contract, not an operator convenience surface.
type Runtime struct {
	Provider          providerid.ID
	BaseURL           string
	AnthropicVersion  string
	ModelDefaults     modelselect.Defaults
	ForceToolError    bool
	Debug             bool
	EndpointOverrides map[string]endpointkind.Kind
}

// LoadRuntime reads the spec.md §6 environment surface via lookup (an
// os.LookupEnv-shaped function, substitutable in tests).
func LoadRuntime(lookup func(string) (string, bool)) (Runtime, error) {
	rt := Runtime{
		Provider:         providerid.Custom,
		BaseURL:          "https://api.anthropic.com/v1",
		AnthropicVersion: "",
	}

	if v, ok := lookup("FORCE_PROVIDER"); ok && v != "" {
		rt.Provider = providerid.ID(v)
	}
	if v, ok := lookup("ANTHROPIC_PROXY_BASE_URL"); ok && v != "" {
		rt.BaseURL = v
	} else if defaults, known := providerid.Lookup(rt.Provider); known {
		rt.BaseURL = defaults.BaseURL
	}
	if v, ok := lookup("ANTHROPIC_VERSION"); ok && v != "" {
		rt.AnthropicVersion = v
	}
	if v, ok := lookup("REASONING_MODEL"); ok {
		rt.ModelDefaults.Reasoning = v
	}
	if v, ok := lookup("COMPLETION_MODEL"); ok {
		rt.ModelDefaults.Completion = v
	}
	if v, ok := lookup("VALUE_MODEL"); ok {
		rt.ModelDefaults.Value = v
	}
	if v, ok := lookup("FORCE_TOOL_ERROR"); ok {
		rt.ForceToolError = v == "1"
	}
	if v, ok := lookup("DEBUG"); ok {
		rt.Debug = v == "1" || v == "true"
	}

	if v, ok := lookup("CUSTOM_ENDPOINT_OVERRIDES"); ok && v != "" {
		var raw map[string]string
		if err := json.Unmarshal([]byte(v), &raw); err != nil {
			return Runtime{}, fmt.Errorf("app: parse CUSTOM_ENDPOINT_OVERRIDES: %w", err)
		}
		rt.EndpointOverrides = make(map[string]endpointkind.Kind, len(raw))
		for baseURL, kind := range raw {
			switch kind {
			case "anthropic":
				rt.EndpointOverrides[baseURL] = endpointkind.AnthropicNative
			case "openai":
				rt.EndpointOverrides[baseURL] = endpointkind.OpenAICompatible
			default:
				return Runtime{}, fmt.Errorf("app: CUSTOM_ENDPOINT_OVERRIDES: unknown kind %q for %q", kind, baseURL)
			}
		}
	}

	return rt, nil
}

// Port resolves the downstream listen port, preferring spec.md's raw PORT
// variable over the ambient Server.Port when both are present.
func Port(lookup func(string) (string, bool), fallback uint16) (uint16, error) {
	v, ok := lookup("PORT")
	if !ok || v == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseUint(v, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("app: invalid PORT %q: %w", v, err)
	}
	return uint16(parsed), nil
}
