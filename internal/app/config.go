package app

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/florianilch/claudebridge/internal/tokensource"
)

// TokenStorageType selects where the upstream API key is stored.
type TokenStorageType string

const (
	TokenStorageTypeEnv     TokenStorageType = "env"
	TokenStorageTypeFile    TokenStorageType = "file"
	TokenStorageTypeKeyring TokenStorageType = "keyring"
)

// envPrefix marks environment variables that address config keys directly, with "__"
// separating levels: CLAUDEBRIDGE_AUTH__STORAGE sets auth.storage.
const envPrefix = "CLAUDEBRIDGE_"

// customHeaderPrefix marks environment variables forwarded as upstream headers:
// CUSTOM_HEADER_X_TEAM_ID=abc sends X-Team-Id: abc.
const customHeaderPrefix = "CUSTOM_HEADER_"

// legacyEnv maps the well-known environment variable names onto config keys.
var legacyEnv = map[string]string{
	"ANTHROPIC_API_KEY": "server.client_api_key",
	"HOST":              "server.host",
	"PORT":              "server.port",
	"OPENAI_BASE_URL":   "upstream.base_url",
	"AZURE_API_VERSION": "upstream.azure_api_version",
	"REQUEST_TIMEOUT":   "upstream.request_timeout",
	"MAX_RETRIES":       "upstream.max_retries",
	"BIG_MODEL":         "models.big",
	"MIDDLE_MODEL":      "models.middle",
	"SMALL_MODEL":       "models.small",
	"MAX_TOKENS_LIMIT":  "tokens.max",
	"MIN_TOKENS_LIMIT":  "tokens.min",
	"LOG_LEVEL":         "log.level",
}

// Config is the complete application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Upstream UpstreamConfig `koanf:"upstream"`
	Models   ModelsConfig   `koanf:"models"`
	Tokens   TokensConfig   `koanf:"tokens"`
	Auth     AuthConfig     `koanf:"auth"`
	Log      LogConfig      `koanf:"log"`

	// raw holds the merged key/value tree for display.
	raw map[string]any
}

// ServerConfig configures the front-facing HTTP server.
type ServerConfig struct {
	Host string `koanf:"host" validate:"required"`
	Port int    `koanf:"port" validate:"min=1,max=65535"`

	// ClientAPIKey, when set, must be presented by clients as x-api-key or bearer token.
	ClientAPIKey    string        `koanf:"client_api_key"`
	MaxRequestBytes int64         `koanf:"max_request_bytes" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// UpstreamConfig configures the Chat Completions backend.
type UpstreamConfig struct {
	BaseURL         string            `koanf:"base_url" validate:"required,url"`
	AzureAPIVersion string            `koanf:"azure_api_version"`
	RequestTimeout  time.Duration     `koanf:"request_timeout" validate:"gte=0"`
	MaxRetries      int               `koanf:"max_retries" validate:"gte=0,lte=10"`
	Headers         map[string]string `koanf:"headers"`
	Breaker         BreakerConfig     `koanf:"breaker"`
}

// BreakerConfig configures the upstream circuit breaker. A zero threshold disables it.
type BreakerConfig struct {
	FailureThreshold uint32        `koanf:"failure_threshold"`
	Timeout          time.Duration `koanf:"timeout" validate:"gte=0"`
}

// ModelsConfig names the backend models for each tier. Middle falls back to Big.
type ModelsConfig struct {
	Big    string `koanf:"big" validate:"required"`
	Middle string `koanf:"middle"`
	Small  string `koanf:"small" validate:"required"`
}

// TokensConfig bounds max_tokens sent upstream. Zero disables a bound.
type TokensConfig struct {
	Min int `koanf:"min" validate:"gte=0"`
	Max int `koanf:"max" validate:"gte=0"`
}

// AuthConfig selects the upstream API key store.
type AuthConfig struct {
	Storage TokenStorageType `koanf:"storage" validate:"oneof=env file keyring"`
	EnvKey  string           `koanf:"env_key" validate:"required_if=Storage env"`
	File    string           `koanf:"file"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
	File   string `koanf:"file"`
	OTLP   string `koanf:"otlp" validate:"omitempty,oneof=http grpc stdout"`
}

// defaults are the base layer of every configuration.
func defaults() map[string]any {
	return map[string]any{
		"server.host":              "0.0.0.0",
		"server.port":              8082,
		"server.max_request_bytes": 32 << 20,
		"server.shutdown_timeout":  "5s",

		"upstream.base_url":                  "https://api.openai.com/v1",
		"upstream.request_timeout":           "90s",
		"upstream.max_retries":               2,
		"upstream.breaker.failure_threshold": 5,
		"upstream.breaker.timeout":           "30s",

		"models.big":   "gpt-4o",
		"models.small": "gpt-4o-mini",

		"tokens.min": 100,
		"tokens.max": 4096,

		"auth.storage": string(TokenStorageTypeEnv),
		"auth.env_key": "OPENAI_API_KEY",

		"log.level":  "info",
		"log.format": "text",
	}
}

// LoadConfig merges defaults, the optional TOML file at path, the environment and flags, in
// that order of precedence, and validates the result. flags maps config keys to values of
// flags the user set explicitly.
func LoadConfig(path string, flags map[string]any, environ func() []string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if environ == nil {
		environ = os.Environ
	}
	if err := k.Load(env.Provider(".", env.Opt{
		EnvironFunc:   environ,
		TransformFunc: transformEnv,
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if len(flags) > 0 {
		if err := k.Load(confmap.Provider(flags, "."), nil); err != nil {
			return nil, fmt.Errorf("load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.raw = k.Raw()

	if cfg.Auth.Storage == TokenStorageTypeFile && cfg.Auth.File == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("resolve default key file: %w", err)
		}
		cfg.Auth.File = filepath.Join(dir, "claudebridge", "api_key")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// transformEnv maps an environment variable onto a config key. Unrelated variables are
// dropped by returning an empty key.
func transformEnv(name, value string) (string, any) {
	if key, ok := legacyEnv[name]; ok {
		switch name {
		case "REQUEST_TIMEOUT":
			// Bare numbers are seconds.
			if _, err := strconv.Atoi(value); err == nil {
				value += "s"
			}
		case "LOG_LEVEL":
			value = strings.ToLower(value)
			if value == "warning" {
				value = "warn"
			}
		}
		return key, value
	}

	if header, ok := strings.CutPrefix(name, customHeaderPrefix); ok && header != "" {
		header = http.CanonicalHeaderKey(strings.ReplaceAll(header, "_", "-"))
		return "upstream.headers." + header, value
	}

	if rest, ok := strings.CutPrefix(name, envPrefix); ok && rest != "" {
		return strings.ToLower(strings.ReplaceAll(rest, "__", ".")), value
	}

	return "", nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			msgs := make([]string, 0, len(validationErrs))
			for _, fe := range validationErrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	if c.Tokens.Min > 0 && c.Tokens.Max > 0 && c.Tokens.Min > c.Tokens.Max {
		return fmt.Errorf("invalid config: tokens.min (%d) exceeds tokens.max (%d)", c.Tokens.Min, c.Tokens.Max)
	}
	return nil
}

// NewTokenStore returns the configured API key store.
func (c AuthConfig) NewTokenStore() (tokensource.Store, error) {
	switch c.Storage {
	case TokenStorageTypeEnv:
		return tokensource.NewEnvStore(c.EnvKey), nil
	case TokenStorageTypeFile:
		if c.File == "" {
			return nil, errors.New("auth.file must be set for file storage")
		}
		return tokensource.NewFileStore(c.File), nil
	case TokenStorageTypeKeyring:
		return tokensource.NewKeyringStore(), nil
	default:
		return nil, fmt.Errorf("unknown token storage %q", c.Storage)
	}
}

// redactedKeys are masked when the configuration is displayed.
var redactedKeys = []string{"server.client_api_key"}

// TOML renders the effective configuration with secrets masked.
func (c *Config) TOML() ([]byte, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(c.raw, "."), nil); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	for _, key := range redactedKeys {
		if k.String(key) != "" {
			if err := k.Set(key, "********"); err != nil {
				return nil, fmt.Errorf("redact %s: %w", key, err)
			}
		}
	}
	return k.Marshal(toml.Parser())
}
