// Package config provides configuration management for agentd.
// It supports loading configuration from environment variables, config files, and defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration sections for agentd.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	NATS    NATSConfig    `mapstructure:"nats"`
	Docker  DockerConfig  `mapstructure:"docker"`
	Sandbox SandboxConfig `mapstructure:"sandbox"`
	Agent   AgentConfig   `mapstructure:"agent"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"readTimeout"`  // in seconds
	WriteTimeout int    `mapstructure:"writeTimeout"` // in seconds
}

// NATSConfig holds NATS messaging configuration.
type NATSConfig struct {
	URL           string `mapstructure:"url"`
	ClientID      string `mapstructure:"clientId"`
	MaxReconnects int    `mapstructure:"maxReconnects"`
}

// DockerConfig holds Docker client configuration.
type DockerConfig struct {
	// Enabled controls whether the Docker runtime is available for sandboxed
	// sessions. When false, sessions requesting a sandbox fall back to host
	// execution.
	Enabled    bool   `mapstructure:"enabled"`
	Host       string `mapstructure:"host"`
	APIVersion string `mapstructure:"apiVersion"`
	TLSVerify  bool   `mapstructure:"tlsVerify"`
}

// SandboxConfig holds per-container sandbox settings.
type SandboxConfig struct {
	Image       string `mapstructure:"image"`
	MemoryMB    int64  `mapstructure:"memoryMb"`
	CPUs        int64  `mapstructure:"cpus"`
	StopTimeout int    `mapstructure:"stopTimeout"` // in seconds
}

// AgentConfig holds agent loop configuration.
type AgentConfig struct {
	// DefaultModel is the model alias used when a session does not name one.
	DefaultModel string `mapstructure:"defaultModel"`

	// CommandTimeout is the shell command deadline in seconds.
	CommandTimeout int `mapstructure:"commandTimeout"`

	// MaxIterations bounds the number of model turns per message.
	MaxIterations int `mapstructure:"maxIterations"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"outputPath"`
}

// ReadTimeoutDuration returns the read timeout as a time.Duration.
func (s *ServerConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns the write timeout as a time.Duration.
func (s *ServerConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// CommandTimeoutDuration returns the command deadline as a time.Duration.
func (a *AgentConfig) CommandTimeoutDuration() time.Duration {
	return time.Duration(a.CommandTimeout) * time.Second
}

// StopTimeoutDuration returns the container stop grace period as a time.Duration.
func (s *SandboxConfig) StopTimeoutDuration() time.Duration {
	return time.Duration(s.StopTimeout) * time.Second
}

// detectDefaultLogFormat returns the appropriate log format based on environment.
// Returns "json" if running in Kubernetes or other production environments.
// Returns "text" for terminal/development use (human-readable console format).
func detectDefaultLogFormat() string {
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return "json"
	}

	if env := os.Getenv("AGENTD_ENV"); env == "production" || env == "prod" {
		return "json"
	}

	return "text"
}

// setDefaults configures default values for all configuration options.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)

	// NATS defaults - empty URL means use in-memory event bus
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.clientId", "agentd")
	v.SetDefault("nats.maxReconnects", 10)

	// Docker defaults
	v.SetDefault("docker.enabled", true)
	v.SetDefault("docker.host", "unix:///var/run/docker.sock")
	v.SetDefault("docker.apiVersion", "1.41")
	v.SetDefault("docker.tlsVerify", false)

	// Sandbox defaults
	v.SetDefault("sandbox.image", "python:3.12-slim")
	v.SetDefault("sandbox.memoryMb", 512)
	v.SetDefault("sandbox.cpus", 1)
	v.SetDefault("sandbox.stopTimeout", 5)

	// Agent defaults
	v.SetDefault("agent.defaultModel", "llama")
	v.SetDefault("agent.commandTimeout", 60)
	v.SetDefault("agent.maxIterations", 50)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", detectDefaultLogFormat())
	v.SetDefault("logging.outputPath", "stdout")
}

// Load reads configuration from environment variables, config file, and defaults.
// Environment variables use the prefix AGENTD_ with snake_case naming.
// Config file should be named config.yaml and placed in the current directory or /etc/agentd/.
func Load() (*Config, error) {
	return LoadWithPath("")
}

// LoadWithPath reads configuration from the specified path or default locations.
func LoadWithPath(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults first
	setDefaults(v)

	// Configure environment variables
	v.SetEnvPrefix("AGENTD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicit bindings for snake_case env vars (camelCase config keys)
	// AutomaticEnv does not handle camelCase to SNAKE_CASE conversion,
	// so we explicitly bind keys where env var naming differs from config key naming.
	_ = v.BindEnv("agent.defaultModel", "AGENTD_AGENT_DEFAULT_MODEL")
	_ = v.BindEnv("agent.commandTimeout", "AGENTD_AGENT_COMMAND_TIMEOUT")
	_ = v.BindEnv("sandbox.memoryMb", "AGENTD_SANDBOX_MEMORY_MB")
	_ = v.BindEnv("sandbox.stopTimeout", "AGENTD_SANDBOX_STOP_TIMEOUT")

	// Configure config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/agentd/")

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// validate checks that all required configuration fields are set.
// In development mode (default), most fields are optional.
func validate(cfg *Config) error {
	var errs []string

	// Server validation - always required
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}

	// NATS validation - optional (uses in-memory event bus if not set)
	// Docker validation - optional (sandboxed sessions degrade to host execution)

	if cfg.Sandbox.Image == "" {
		errs = append(errs, "sandbox.image is required")
	}
	if cfg.Sandbox.MemoryMB <= 0 {
		errs = append(errs, "sandbox.memoryMb must be positive")
	}
	if cfg.Sandbox.CPUs <= 0 {
		errs = append(errs, "sandbox.cpus must be positive")
	}

	if cfg.Agent.CommandTimeout <= 0 {
		errs = append(errs, "agent.commandTimeout must be positive")
	}
	if cfg.Agent.MaxIterations <= 0 {
		errs = append(errs, "agent.maxIterations must be positive")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(cfg.Logging.Format)] {
		errs = append(errs, "logging.format must be one of: json, text")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}

	return nil
}
