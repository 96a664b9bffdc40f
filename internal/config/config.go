package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dyluth/lanes/pkg/board"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where commands look for the configuration file.
const DefaultPath = "lanes.yml"

// LanesConfig represents the top-level lanes.yml configuration
type LanesConfig struct {
	Version string               `yaml:"version"`
	Redis   RedisConfig          `yaml:"redis"`
	Scope   board.Scope          `yaml:"scope,omitempty"`
	Client  ClientConfig         `yaml:"client"`
	Retry   RetryConfig          `yaml:"retry"`
	Ideas   IdeasConfig          `yaml:"ideas"`
	Roster  []board.Collaborator `yaml:"roster,omitempty"`
	Server  ServerConfig         `yaml:"server"`
	Log     LogConfig            `yaml:"log"`
}

// RedisConfig points at the board store
type RedisConfig struct {
	URL string `yaml:"url"`
}

// ClientConfig controls one board client
type ClientConfig struct {
	Name            string        `yaml:"name,omitempty"`             // Stamped on published events; default: hostname plus a per-process suffix
	MutationTimeout time.Duration `yaml:"mutation_timeout,omitempty"` // Default: 5s
	MaxInFlight     int           `yaml:"max_in_flight,omitempty"`    // Default: 8
}

// RetryConfig bounds retries of transient store failures
type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts,omitempty"`     // Default: 3
	InitialInterval time.Duration `yaml:"initial_interval,omitempty"` // Default: 100ms
	MaxInterval     time.Duration `yaml:"max_interval,omitempty"`     // Default: 1s
}

// IdeasConfig selects the idea generation provider
type IdeasConfig struct {
	Provider  string `yaml:"provider,omitempty"`    // "genai" or empty (disabled)
	Model     string `yaml:"model,omitempty"`       // Provider model name
	APIKeyEnv string `yaml:"api_key_env,omitempty"` // Env var holding the API key; default: GEMINI_API_KEY
}

// ServerConfig configures lanesd's HTTP API
type ServerConfig struct {
	Addr string `yaml:"addr,omitempty"` // Default: :8080
}

// LogConfig configures structured logging
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug, info, warn, error; default: info
	Format string `yaml:"format,omitempty"` // json or text; default: json
}

// Default returns a configuration with every default applied.
func Default() *LanesConfig {
	c := &LanesConfig{Version: "1.0"}
	_ = c.Validate()
	return c
}

// Validate performs strict validation on the configuration and applies defaults
func (c *LanesConfig) Validate() error {
	// Required: version
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if c.Redis.URL == "" {
		c.Redis.URL = "redis://localhost:6379"
	}
	if !strings.HasPrefix(c.Redis.URL, "redis://") && !strings.HasPrefix(c.Redis.URL, "rediss://") {
		return fmt.Errorf("redis.url must start with redis:// or rediss://, got %q", c.Redis.URL)
	}

	if c.Scope == "" {
		c.Scope = board.GlobalScope
	}
	if err := c.Scope.Validate(); err != nil {
		return err
	}

	if c.Client.Name == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "lanes"
		}
		// unique per process; controllers ignore events from their own origin
		c.Client.Name = host + "-" + uuid.New().String()[:8]
	}
	if c.Client.MutationTimeout == 0 {
		c.Client.MutationTimeout = 5 * time.Second
	}
	if c.Client.MutationTimeout < 0 {
		return fmt.Errorf("client.mutation_timeout must be positive, got %s", c.Client.MutationTimeout)
	}
	if c.Client.MaxInFlight == 0 {
		c.Client.MaxInFlight = 8
	}
	if c.Client.MaxInFlight < 1 {
		return fmt.Errorf("client.max_in_flight must be >= 1, got %d", c.Client.MaxInFlight)
	}

	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be >= 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.InitialInterval == 0 {
		c.Retry.InitialInterval = 100 * time.Millisecond
	}
	if c.Retry.MaxInterval == 0 {
		c.Retry.MaxInterval = time.Second
	}
	if c.Retry.InitialInterval < 0 || c.Retry.MaxInterval < c.Retry.InitialInterval {
		return fmt.Errorf("retry intervals must satisfy 0 <= initial_interval <= max_interval")
	}

	switch c.Ideas.Provider {
	case "":
	case "genai":
		if c.Ideas.APIKeyEnv == "" {
			c.Ideas.APIKeyEnv = "GEMINI_API_KEY"
		}
	default:
		return fmt.Errorf("invalid ideas.provider: %s (must be 'genai' or omitted)", c.Ideas.Provider)
	}

	seen := make(map[string]bool, len(c.Roster))
	for i, collab := range c.Roster {
		name := strings.TrimSpace(collab.Name)
		if name == "" {
			return fmt.Errorf("roster[%d]: name is required", i)
		}
		if seen[name] {
			return fmt.Errorf("roster: duplicate collaborator '%s'", name)
		}
		seen[name] = true
		c.Roster[i].Name = name
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("invalid log.format: %s (must be 'json' or 'text')", c.Log.Format)
	}

	return nil
}

// ApplyEnv overrides file settings from LANES_REDIS_URL, LANES_SCOPE and LANES_CLIENT_NAME.
func (c *LanesConfig) ApplyEnv() {
	if v := os.Getenv("LANES_REDIS_URL"); v != "" {
		c.Redis.URL = v
	}
	if v := os.Getenv("LANES_SCOPE"); v != "" {
		c.Scope = board.Scope(v)
	}
	if v := os.Getenv("LANES_CLIENT_NAME"); v != "" {
		c.Client.Name = v
	}
}

// Load reads lanes.yml from the specified path, applies environment overrides and validates it
func Load(path string) (*LanesConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config LanesConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	config.ApplyEnv()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// LoadOrDefault loads path if it exists and falls back to defaults otherwise.
// Environment overrides apply in both cases.
func LoadOrDefault(path string) (*LanesConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		config := &LanesConfig{Version: "1.0"}
		config.ApplyEnv()
		if err := config.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return config, nil
	}
	return Load(path)
}

// Template returns a commented lanes.yml for `lanes init`.
func Template() string {
	return `version: "1.0"

redis:
  url: redis://localhost:6379

# "global" or a community identifier
scope: global

client:
  # name: my-laptop
  mutation_timeout: 5s
  max_in_flight: 8

retry:
  max_attempts: 3
  initial_interval: 100ms
  max_interval: 1s

# ideas:
#   provider: genai
#   model: gemini-2.0-flash
#   api_key_env: GEMINI_API_KEY

roster: []

server:
  addr: ":8080"

log:
  level: info
  format: json
`
}
