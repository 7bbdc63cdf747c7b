// Package config loads and persists parley configuration.
//
// The config file lives at ~/.parley/config.json5 by default. JSON5 is
// accepted on read (comments, trailing commas); Save writes plain JSON,
// which is a JSON5 subset.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/titanous/json5"
)

// Defaults mirrored in Default().
const (
	DefaultModel         = "llama-3.1-8b-instant"
	DefaultTemperature   = 0.2
	DefaultSystemPrompt  = "You are a helpful assistant."
	DefaultMaxIterations = 5
	DefaultPort          = 18790
	DefaultMaxSessions   = 128
)

// Config is the root configuration document.
type Config struct {
	Provider  ProviderConfig  `json:"provider"`
	Chat      ChatConfig      `json:"chat"`
	Tools     ToolsConfig     `json:"tools"`
	Server    ServerConfig    `json:"server"`
	Sessions  SessionsConfig  `json:"sessions"`
	Docs      DocsConfig      `json:"docs"`
	MCP       MCPConfig       `json:"mcp"`
	Telemetry TelemetryConfig `json:"telemetry"`
	Logging   LoggingConfig   `json:"logging"`

	// True when the API key came from the environment or OS keyring
	// rather than the file. Save blanks the key in that case so the
	// secret never lands on disk.
	apiKeyExternal bool
}

// ProviderConfig selects and tunes the model backend.
type ProviderConfig struct {
	Name        string  `json:"name"` // "groq" or "openai"
	APIKey      string  `json:"apiKey,omitempty"`
	BaseURL     string  `json:"baseUrl,omitempty"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxRetries  int     `json:"maxRetries"`
	TimeoutSec  int     `json:"timeoutSeconds"`
}

// ChatConfig tunes the tool-calling loop.
type ChatConfig struct {
	SystemPrompt  string `json:"systemPrompt"`
	MaxIterations int    `json:"maxIterations"`
	// InjectionAction sets what the gateway does when a message matches
	// a prompt injection pattern: "log", "warn", "block", or "off".
	// Empty means "warn".
	InjectionAction string `json:"injectionAction,omitempty"`
}

// ToolsConfig tunes tool execution.
type ToolsConfig struct {
	// MaxCallsPerHour caps tool calls per session. 0 disables the cap.
	MaxCallsPerHour int `json:"maxCallsPerHour"`
	// Scrub controls credential scrubbing of tool output. Nil means on.
	Scrub *bool `json:"scrub,omitempty"`
	// MaxResultChars caps tool output fed to the model. 0 keeps the
	// built-in default.
	MaxResultChars int `json:"maxResultChars,omitempty"`
}

// ServerConfig tunes the gateway.
type ServerConfig struct {
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Token     string `json:"token,omitempty"` // bearer token; empty disables auth
	MaxConns  int    `json:"maxConns"`
	RateRPM   int    `json:"rateRpm"`
	RateBurst int    `json:"rateBurst"`
}

// SessionsConfig bounds the in-memory session cache.
type SessionsConfig struct {
	MaxSessions int `json:"maxSessions"`
}

// DocsConfig points at the document collections manifest.
type DocsConfig struct {
	Manifest string `json:"manifest,omitempty"`
}

// MCPConfig lists external MCP tool servers to bridge in.
type MCPConfig struct {
	Servers []MCPServerConfig `json:"servers,omitempty"`
}

// MCPServerConfig describes one stdio MCP server.
type MCPServerConfig struct {
	Name       string   `json:"name"`
	Command    string   `json:"command"`
	Args       []string `json:"args,omitempty"`
	Env        []string `json:"env,omitempty"`
	TimeoutSec int      `json:"timeoutSeconds,omitempty"`
}

// TelemetryConfig controls OTLP span export.
type TelemetryConfig struct {
	Enabled     bool              `json:"enabled"`
	Endpoint    string            `json:"endpoint,omitempty"`
	Protocol    string            `json:"protocol,omitempty"` // "grpc" or "http"
	Insecure    bool              `json:"insecure,omitempty"`
	ServiceName string            `json:"serviceName,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level   string `json:"level"`
	File    string `json:"file,omitempty"`
	Console bool   `json:"console"`
}

// Default returns a config with all defaults applied.
func Default() *Config {
	return &Config{
		Provider: ProviderConfig{
			Name:        "groq",
			Model:       DefaultModel,
			Temperature: DefaultTemperature,
			MaxRetries:  2,
			TimeoutSec:  60,
		},
		Chat: ChatConfig{
			SystemPrompt:  DefaultSystemPrompt,
			MaxIterations: DefaultMaxIterations,
		},
		Server: ServerConfig{
			Host:      "127.0.0.1",
			Port:      DefaultPort,
			MaxConns:  256,
			RateRPM:   60,
			RateBurst: 10,
		},
		Sessions: SessionsConfig{
			MaxSessions: DefaultMaxSessions,
		},
		Logging: LoggingConfig{
			Level:   "info",
			File:    DefaultLogPath(),
			Console: true,
		},
	}
}

// Load reads the config file at path, then applies environment
// overrides and the keyring fallback. A missing file is not an error;
// defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := json5.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	cfg.applyEnv()

	if cfg.Provider.APIKey == "" {
		if key, err := SecretFromKeyring(cfg.Provider.Name); err == nil && key != "" {
			cfg.Provider.APIKey = key
			cfg.apiKeyExternal = true
		}
	}

	cfg.fillDefaults()
	return cfg, nil
}

// applyEnv overlays environment variables onto the config. Environment
// always wins over the file.
func (c *Config) applyEnv() {
	if key := os.Getenv(providerKeyEnv(c.Provider.Name)); key != "" {
		c.Provider.APIKey = key
		c.apiKeyExternal = true
	}
	if model := os.Getenv("GROQ_MODEL"); model != "" {
		c.Provider.Model = model
	}
	if raw := os.Getenv("GROQ_TEMPERATURE"); raw != "" {
		if t, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			c.Provider.Temperature = t
		}
	}
	if token := os.Getenv("PARLEY_TOKEN"); token != "" {
		c.Server.Token = token
	}
	if level := os.Getenv("PARLEY_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// providerKeyEnv names the API key environment variable for a provider.
func providerKeyEnv(provider string) string {
	if provider == "openai" {
		return "OPENAI_API_KEY"
	}
	return "GROQ_API_KEY"
}

// fillDefaults backfills zero values left by a sparse config file.
func (c *Config) fillDefaults() {
	if c.Provider.Name == "" {
		c.Provider.Name = "groq"
	}
	if c.Provider.Model == "" {
		c.Provider.Model = DefaultModel
	}
	if c.Provider.TimeoutSec <= 0 {
		c.Provider.TimeoutSec = 60
	}
	if c.Chat.SystemPrompt == "" {
		c.Chat.SystemPrompt = DefaultSystemPrompt
	}
	if c.Chat.MaxIterations <= 0 {
		c.Chat.MaxIterations = DefaultMaxIterations
	}
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port <= 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.MaxConns <= 0 {
		c.Server.MaxConns = 256
	}
	if c.Sessions.MaxSessions <= 0 {
		c.Sessions.MaxSessions = DefaultMaxSessions
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate reports structural problems that Load tolerates.
func (c *Config) Validate() error {
	switch c.Provider.Name {
	case "groq", "openai":
	default:
		return fmt.Errorf("unknown provider %q: expected groq or openai", c.Provider.Name)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Chat.MaxIterations < 1 {
		return fmt.Errorf("chat.maxIterations must be >= 1")
	}
	switch c.Chat.InjectionAction {
	case "", "log", "warn", "block", "off":
	default:
		return fmt.Errorf("chat.injectionAction %q: expected log, warn, block, or off", c.Chat.InjectionAction)
	}
	switch c.Telemetry.Protocol {
	case "", "grpc", "http":
	default:
		return fmt.Errorf("telemetry.protocol %q: expected grpc or http", c.Telemetry.Protocol)
	}
	for i, s := range c.MCP.Servers {
		if s.Name == "" {
			return fmt.Errorf("mcp.servers[%d]: name is required", i)
		}
		if s.Command == "" {
			return fmt.Errorf("mcp.servers[%d] (%s): command is required", i, s.Name)
		}
	}
	return nil
}

// Save writes the config to path atomically with 0600 permissions.
// Keys sourced from the environment or keyring are not written.
func Save(path string, cfg *Config) error {
	out := *cfg
	if cfg.apiKeyExternal {
		out.Provider.APIKey = ""
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	data = append(data, '\n')

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		// Rename can fail across filesystems; fall back to direct write.
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
	}
	return nil
}

// HomeDir returns the parley state directory, honoring PARLEY_HOME.
func HomeDir() string {
	if dir := os.Getenv("PARLEY_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".parley"
	}
	return filepath.Join(home, ".parley")
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() string {
	return filepath.Join(HomeDir(), "config.json5")
}

// DefaultLogPath returns the default rotating log file location.
func DefaultLogPath() string {
	return filepath.Join(HomeDir(), "logs", "parley.log")
}
