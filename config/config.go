package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides for keys without a legacy name
const EnvPrefix = "EXECD"

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Workspace WorkspaceConfig `mapstructure:"workspace"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Sandbox   SandboxConfig   `mapstructure:"sandbox"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig holds HTTP listener configuration
type ServerConfig struct {
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port"`
	EnableMCP          bool   `mapstructure:"enable_mcp"`
	ShutdownTimeoutSec int    `mapstructure:"shutdown_timeout_sec"`
}

// WorkspaceConfig describes the directory all executions run in
type WorkspaceConfig struct {
	Dir       string `mapstructure:"dir"`
	SessionID string `mapstructure:"session_id"`
}

// AuthConfig holds the shared secret; an empty token disables authentication
type AuthConfig struct {
	SecretToken string `mapstructure:"secret_token"`
}

// SandboxConfig holds execution engine configuration
type SandboxConfig struct {
	Shell                 string `mapstructure:"shell"`
	CommandTimeoutSec     int    `mapstructure:"command_timeout_sec"`
	MaxConcurrentCommands int    `mapstructure:"max_concurrent_commands"`
	PythonBin             string `mapstructure:"python_bin"`
	PythonBackend         string `mapstructure:"python_backend"`
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// legacyEnv maps keys to the plain environment variables the daemon has
// always honored inside its container.
var legacyEnv = map[string]string{
	"workspace.dir":        "WORKSPACE_DIR",
	"workspace.session_id": "SESSION_ID",
	"auth.secret_token":    "SECRET_TOKEN",
	"server.host":          "HOST",
	"server.port":          "PORT",
}

// New loads and validates the application configuration from the default
// search paths and the environment.
func New() (*Config, error) {
	return Load("")
}

// Load reads configuration from file (or the default search paths when file
// is empty), applies environment overrides and validates the result.
func Load(file string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, env, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_"))); err != nil {
			return nil, fmt.Errorf("error binding %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.normalize(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.enable_mcp", true)
	v.SetDefault("server.shutdown_timeout_sec", 10)

	v.SetDefault("workspace.dir", "/workspace")
	v.SetDefault("workspace.session_id", "default")

	v.SetDefault("auth.secret_token", "")

	v.SetDefault("sandbox.shell", "/bin/sh")
	v.SetDefault("sandbox.command_timeout_sec", 30)
	v.SetDefault("sandbox.max_concurrent_commands", 16)
	v.SetDefault("sandbox.python_bin", "python3")
	v.SetDefault("sandbox.python_backend", "auto")

	v.SetDefault("logging.mode", "production")
	v.SetDefault("logging.level", "info")
}

// normalize resolves the workspace directory to an absolute path
func (c *Config) normalize() error {
	if c.Workspace.Dir == "" {
		return fmt.Errorf("workspace.dir must not be empty")
	}
	dir, err := filepath.Abs(c.Workspace.Dir)
	if err != nil {
		return fmt.Errorf("failed to resolve workspace.dir: %w", err)
	}
	c.Workspace.Dir = dir
	return nil
}

// validate ensures the configuration is valid
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d", c.Server.Port)
	}

	if c.Server.ShutdownTimeoutSec <= 0 {
		return fmt.Errorf("server.shutdown_timeout_sec must be positive, got: %d", c.Server.ShutdownTimeoutSec)
	}

	if !filepath.IsAbs(c.Workspace.Dir) {
		return fmt.Errorf("workspace.dir must be absolute, got: %s", c.Workspace.Dir)
	}

	if c.Sandbox.Shell == "" {
		return fmt.Errorf("sandbox.shell must not be empty")
	}

	if c.Sandbox.PythonBin == "" {
		return fmt.Errorf("sandbox.python_bin must not be empty")
	}

	switch c.Sandbox.PythonBackend {
	case "auto", "ipython", "python":
	default:
		return fmt.Errorf("invalid sandbox.python_backend: %s, must be 'auto', 'ipython' or 'python'", c.Sandbox.PythonBackend)
	}

	if c.Sandbox.CommandTimeoutSec <= 0 {
		return fmt.Errorf("sandbox.command_timeout_sec must be positive, got: %d", c.Sandbox.CommandTimeoutSec)
	}

	if c.Sandbox.MaxConcurrentCommands <= 0 {
		return fmt.Errorf("sandbox.max_concurrent_commands must be positive, got: %d", c.Sandbox.MaxConcurrentCommands)
	}

	if c.Logging.Mode != "production" && c.Logging.Mode != "development" {
		return fmt.Errorf("invalid logging.mode: %s, must be 'production' or 'development'", c.Logging.Mode)
	}

	return nil
}

// Addr returns the listen address of the HTTP server
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// AuthEnabled reports whether a shared secret is configured
func (c *Config) AuthEnabled() bool {
	return c.Auth.SecretToken != ""
}

// GetCommandTimeout returns the shell command deadline as a duration
func (c *Config) GetCommandTimeout() time.Duration {
	return time.Duration(c.Sandbox.CommandTimeoutSec) * time.Second
}

// GetShutdownTimeout returns the graceful shutdown budget as a duration
func (c *Config) GetShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSec) * time.Second
}
