// Package config loads kgquery settings from an optional YAML file, a .env
// file and the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"kgquery/internal/graph"
)

// Config is the full application configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	LLM     LLMConfig     `yaml:"llm"`
	Graph   GraphConfig   `yaml:"graph"`
	Logging LoggingConfig `yaml:"log"`
	Viz     VizConfig     `yaml:"viz"`
}

// ServerConfig configures the HTTP surface
type ServerConfig struct {
	Addr  string `yaml:"addr"`
	Token string `yaml:"token"` // optional bearer token for the JSON API
	// AllowedOrigins may call the JSON API cross-origin; empty means same-origin only
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LLMConfig selects the completion provider
type LLMConfig struct {
	Provider  string `yaml:"provider"`    // openai, openrouter
	Model     string `yaml:"model"`       // empty uses the provider default
	APIKeyEnv string `yaml:"api_key_env"` // empty uses the provider's usual variable
	BaseURL   string `yaml:"base_url"`
	Timeout   string `yaml:"timeout"`
}

// GraphConfig sizes the graph each new session starts with
type GraphConfig struct {
	People    int   `yaml:"people"`
	Companies int   `yaml:"companies"`
	Seed      int64 `yaml:"seed"`
}

// LoggingConfig configures zap
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// VizConfig sizes the network viewer
type VizConfig struct {
	Height string `yaml:"height"`
	Width  string `yaml:"width"`
}

// ValidationError reports an invalid setting
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Msg)
}

// LLM providers
const (
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
)

// ValidProviders lists the supported LLM providers
var ValidProviders = []string{ProviderOpenAI, ProviderOpenRouter}

var defaultKeyEnv = map[string]string{
	ProviderOpenAI:     "OPENAI_API_KEY",
	ProviderOpenRouter: "OPENROUTER_API_KEY",
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: "127.0.0.1:8765",
		},
		LLM: LLMConfig{
			Provider: ProviderOpenAI,
			Timeout:  "60s",
		},
		Graph: GraphConfig{
			People:    graph.DefaultPeople,
			Companies: graph.DefaultCompanies,
			Seed:      graph.DefaultSeed,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Viz: VizConfig{
			Height: "700px",
			Width:  "100%",
		},
	}
}

// Load reads .env (if present), then the YAML file at path (if non-empty and
// present), then applies environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	// a missing .env is normal
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = defaultKeyEnv[cfg.LLM.Provider]
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("KGQUERY_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if token := os.Getenv("KGQUERY_TOKEN"); token != "" {
		c.Server.Token = token
	}
	if origins := os.Getenv("KGQUERY_ALLOWED_ORIGINS"); origins != "" {
		c.Server.AllowedOrigins = strings.Split(origins, ",")
	}
	if level := os.Getenv("KGQUERY_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if provider := os.Getenv("KGQUERY_LLM_PROVIDER"); provider != "" && provider != c.LLM.Provider {
		c.LLM.Provider = provider
		c.LLM.APIKeyEnv = defaultKeyEnv[provider]
		c.LLM.Model = ""
	}
}

// Validate checks bounds and enumerations
func (c *Config) Validate() error {
	if !slices.Contains(ValidProviders, c.LLM.Provider) {
		return &ValidationError{Field: "llm.provider", Msg: fmt.Sprintf("must be one of %s, got %q", strings.Join(ValidProviders, ", "), c.LLM.Provider)}
	}
	if _, err := time.ParseDuration(c.LLM.Timeout); c.LLM.Timeout != "" && err != nil {
		return &ValidationError{Field: "llm.timeout", Msg: err.Error()}
	}
	opts := graph.BuildOptions{People: c.Graph.People, Companies: c.Graph.Companies}
	if err := opts.Validate(); err != nil {
		return &ValidationError{Field: "graph", Msg: err.Error()}
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return &ValidationError{Field: "log.level", Msg: fmt.Sprintf("unknown level %q", c.Logging.Level)}
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return &ValidationError{Field: "log.format", Msg: fmt.Sprintf("unknown format %q", c.Logging.Format)}
	}
	if c.Server.Addr == "" {
		return &ValidationError{Field: "server.addr", Msg: "must not be empty"}
	}
	return nil
}

// APIKey returns the credential named by llm.api_key_env, or "" if unset
func (c *Config) APIKey() string {
	return os.Getenv(c.LLM.APIKeyEnv)
}

// LLMTimeout returns the LLM request timeout
func (c *Config) LLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// BuildOptions returns the graph options for a new session
func (c *Config) BuildOptions() graph.BuildOptions {
	return graph.BuildOptions{People: c.Graph.People, Companies: c.Graph.Companies, Seed: c.Graph.Seed}
}
