// Package config provides configuration management for the ledgerchat relay.
// Configuration is assembled once at process start, validated, and treated as
// immutable afterwards; handlers receive it explicitly and never read the
// environment themselves.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Environment variables honored by FromEnv and the default YAML template.
const (
	EnvAPIKey         = "LEDGERCHAT_API_KEY"
	EnvAllowedOrigins = "LEDGERCHAT_ALLOWED_ORIGINS"
)

// DefaultAllowedOrigins is the allow-list used when no origins are
// configured. It covers the local development frontends.
var DefaultAllowedOrigins = []string{
	"http://localhost:5173",
	"http://localhost:3000",
}

// Config is the complete relay configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Upstream UpstreamConfig `yaml:"upstream"`
	CORS     CORSConfig     `yaml:"cors"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Port specifies the HTTP server port (default: 8080)
	Port int `yaml:"port" validate:"gte=0,lte=65535"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body (default: 30s)
	ReadTimeout time.Duration `yaml:"read_timeout" validate:"gte=0"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. It has to cover the upstream call (default: 2m30s)
	WriteTimeout time.Duration `yaml:"write_timeout" validate:"gte=0"`

	// MaxHeaderBytes controls the maximum number of bytes the server will
	// read parsing request headers (default: 1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes" validate:"gte=0"`

	// ShutdownTimeout specifies how long to wait for in-flight requests
	// during graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`
}

// UpstreamConfig describes the chat-completion API the relay forwards to.
type UpstreamConfig struct {
	// APIKey authenticates against the upstream API. When empty the relay
	// starts degraded: the chat endpoint answers 503 until a key is set.
	// Use ${LEDGERCHAT_API_KEY} in YAML to source it from the environment.
	APIKey string `yaml:"api_key"`

	// BaseURL is the root of the OpenAI-compatible API
	// (default: "https://api.openai.com/v1")
	BaseURL string `yaml:"base_url" validate:"required,url"`

	// Model is the model identifier sent with every request
	Model string `yaml:"model" validate:"required"`

	// MaxTokens caps the completion length (default: 1024)
	MaxTokens int `yaml:"max_tokens" validate:"gt=0"`

	// Temperature is the sampling temperature sent with every request
	// (default: 0.3)
	Temperature float64 `yaml:"temperature" validate:"gte=0,lte=2"`

	// Timeout bounds a single upstream call (default: 2m)
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

// CORSConfig holds the origin allow-list.
type CORSConfig struct {
	// AllowedOrigins lists origins that receive the
	// Access-Control-Allow-Origin echo. Defaults to the local dev origins.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LoggingConfig holds logging preferences.
type LoggingConfig struct {
	// Level sets logging verbosity: debug, info, warn, error
	Level string `yaml:"level" validate:"oneof=debug info warn error"`

	// Format specifies log output format: json or text
	Format string `yaml:"format" validate:"oneof=json text"`
}

var validate = validator.New()

// DefaultConfig returns the configuration used as the base layer for YAML
// and environment loading.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    150 * time.Second,
			MaxHeaderBytes:  1 << 20,
			ShutdownTimeout: 30 * time.Second,
		},
		Upstream: UpstreamConfig{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			MaxTokens:   1024,
			Temperature: 0.3,
			Timeout:     2 * time.Minute,
		},
		CORS: CORSConfig{
			AllowedOrigins: append([]string(nil), DefaultAllowedOrigins...),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// FromEnv builds a configuration entirely from the environment, for
// deployments that run without a YAML file. Only the credential and the
// origin allow-list are environment-tunable; everything else keeps its
// default.
func FromEnv() *Config {
	cfg := DefaultConfig()
	cfg.Upstream.APIKey = os.Getenv(EnvAPIKey)
	if v := os.Getenv(EnvAllowedOrigins); v != "" {
		cfg.CORS.AllowedOrigins = ParseOrigins(v)
	}
	return cfg
}

// ParseOrigins splits a comma-separated origin list, trimming whitespace and
// dropping empty entries. An input with no usable entries yields the default
// allow-list.
func ParseOrigins(s string) []string {
	var origins []string
	for _, o := range strings.Split(s, ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return append([]string(nil), DefaultAllowedOrigins...)
	}
	return origins
}

// LoadFile loads configuration from a YAML file.
func LoadFile(filename string) (*Config, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// expandEnvVars resolves ${VAR} and ${VAR:-default} references in the raw
// YAML before decoding, so secrets stay out of the file itself.
func expandEnvVars(s string) string {
	return os.Expand(s, func(key string) string {
		if i := strings.Index(key, ":-"); i >= 0 {
			if val := os.Getenv(key[:i]); val != "" {
				return val
			}
			return key[i+2:]
		}
		return os.Getenv(key)
	})
}

// Load loads configuration from an io.Reader, layering the YAML on top of
// DefaultConfig and validating the result.
func Load(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	config := DefaultConfig()

	dec := yaml.NewDecoder(strings.NewReader(expandEnvVars(string(data))))
	if err := dec.Decode(config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// A single YAML allow-list entry may itself carry a comma-separated
	// value when it was expanded from the environment.
	config.CORS.AllowedOrigins = normalizeOrigins(config.CORS.AllowedOrigins)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return config, nil
}

func normalizeOrigins(entries []string) []string {
	var origins []string
	for _, e := range entries {
		for _, o := range strings.Split(e, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				origins = append(origins, o)
			}
		}
	}
	if len(origins) == 0 {
		return append([]string(nil), DefaultAllowedOrigins...)
	}
	return origins
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			v := verrs[0]
			return fmt.Errorf("invalid %s: failed %q constraint", v.Namespace(), v.Tag())
		}
		return err
	}
	return nil
}
