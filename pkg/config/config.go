// Package config loads proxy configuration from a YAML file, a .env file and
// the process environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/germanamz/claudeproxy/pkg/logging"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level proxy configuration.
type Config struct {
	Anthropic AnthropicConfig `yaml:"anthropic"`
	Server    ServerInfo      `yaml:"server"`
	REST      ListenConfig    `yaml:"rest"`
	Complete  ListenConfig    `yaml:"complete"`
	SSE       ListenConfig    `yaml:"sse"`
	CORS      CORSConfig      `yaml:"cors"`
	Log       logging.Config  `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// AnthropicConfig describes the remote completion endpoint.
type AnthropicConfig struct {
	APIKey  string `yaml:"api_key"` //nolint:gosec // configuration field, not a hardcoded secret
	BaseURL string `yaml:"base_url"`
	Version string `yaml:"version"`
}

// ServerInfo is what the front ends report about themselves.
type ServerInfo struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Description string `yaml:"description"`
}

// ListenConfig holds a listen address.
type ListenConfig struct {
	Addr string `yaml:"addr"`
}

// CORSConfig lists the origins allowed to call the HTTP front ends.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Anthropic: AnthropicConfig{
			BaseURL: "https://api.anthropic.com",
			Version: "2023-06-01",
		},
		Server: ServerInfo{
			Name:        "claude-mcp-server",
			Version:     "1.0.0",
			Description: "MCP server that forwards prompts to Claude",
		},
		REST:     ListenConfig{Addr: ":8080"},
		Complete: ListenConfig{Addr: ":8081"},
		SSE:      ListenConfig{Addr: ":8082"},
		CORS:     CORSConfig{AllowedOrigins: []string{"*"}},
		Log:      logging.Config{Level: "info", Format: "json", Output: "stderr"},
		Metrics:  MetricsConfig{Enabled: true},
	}
}

// LoadDotEnv loads environment variables from a .env file. A missing file is
// not an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}

// Load builds the configuration: defaults, then the YAML file at path (when
// path is non-empty), then environment overrides.
//
// Environment variables referenced as ${VAR} or $VAR in the YAML are expanded
// before parsing. This allows the API key to be kept in the environment
// (e.g. loaded from a .env file) rather than committed in the config.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // path is caller-provided configuration, not user input
		if err != nil {
			return Config{}, fmt.Errorf("config: load: %w", err)
		}

		expanded := os.ExpandEnv(string(data))

		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse: %w", err)
		}
	}

	cfg.ApplyEnv(os.LookupEnv)

	return cfg, nil
}

// ApplyEnv overrides fields from environment variables:
// ANTHROPIC_API_KEY, ANTHROPIC_BASE_URL, ANTHROPIC_VERSION and PORT (REST
// listen port). lookup is os.LookupEnv outside tests.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("ANTHROPIC_API_KEY"); ok && v != "" {
		c.Anthropic.APIKey = v
	}
	if v, ok := lookup("ANTHROPIC_BASE_URL"); ok && v != "" {
		c.Anthropic.BaseURL = v
	}
	if v, ok := lookup("ANTHROPIC_VERSION"); ok && v != "" {
		c.Anthropic.Version = v
	}
	if v, ok := lookup("PORT"); ok && v != "" {
		c.REST.Addr = ":" + v
	}
}

// Validate checks that the configuration is internally consistent. A missing
// API key is deliberately accepted: the adapter reports it per call. Listen
// addresses are checked separately by ValidateListeners because most
// commands start only one front end, or none.
func (c Config) Validate() error {
	if c.Anthropic.BaseURL == "" {
		return fmt.Errorf("config: anthropic.base_url is required")
	}
	u, err := url.Parse(c.Anthropic.BaseURL)
	if err != nil {
		return fmt.Errorf("config: anthropic.base_url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: anthropic.base_url %q must be an absolute http(s) URL", c.Anthropic.BaseURL)
	}
	if c.Server.Name == "" {
		return fmt.Errorf("config: server.name is required")
	}

	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	return nil
}

// Front-end names accepted by ValidateListeners.
const (
	ListenerREST     = "rest"
	ListenerComplete = "complete"
	ListenerSSE      = "sse"
)

// ValidateListeners checks the listen addresses of the named front ends:
// each must be set and no two may share an address. Front ends not named
// are ignored, so PORT may reuse the address of one that is not started.
func (c Config) ValidateListeners(names ...string) error {
	seen := make(map[string]string, len(names))
	for _, name := range names {
		var addr string
		switch name {
		case ListenerREST:
			addr = c.REST.Addr
		case ListenerComplete:
			addr = c.Complete.Addr
		case ListenerSSE:
			addr = c.SSE.Addr
		default:
			return fmt.Errorf("config: unknown listener %q", name)
		}

		if addr == "" {
			return fmt.Errorf("config: %s.addr is required", name)
		}
		if other, dup := seen[addr]; dup {
			return fmt.Errorf("config: %s.addr %q already used by %s", name, addr, other)
		}
		seen[addr] = name
	}

	return nil
}
