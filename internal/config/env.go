// Package config loads service settings from the environment and lets
// command-line flags override them.
package config

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Server holds settings shared by the tool services.
type Server struct {
	Host            string        `env:"MCP_HOST"             envDefault:"127.0.0.1"`
	LogLevel        string        `env:"LOG_LEVEL"            envDefault:"info"`
	ShutdownTimeout time.Duration `env:"MCP_SHUTDOWN_TIMEOUT" envDefault:"5s"`
}

// Client holds settings for the tool client.
type Client struct {
	Name           string        `env:"MCP_CLIENT_NAME"     envDefault:"toolclient"`
	ConfigPath     string        `env:"MCP_CONFIG_PATH"`
	LogLevel       string        `env:"LOG_LEVEL"           envDefault:"info"`
	ConnectTimeout time.Duration `env:"MCP_CONNECT_TIMEOUT" envDefault:"10s"`
	CallTimeout    time.Duration `env:"MCP_CALL_TIMEOUT"    envDefault:"30s"`
	PingInterval   time.Duration `env:"MCP_PING_INTERVAL"   envDefault:"30s"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// ParseEnvFrom loads configuration from the given variables instead of the
// process environment.
func ParseEnvFrom(target any, environ map[string]string) error {
	if err := env.ParseWithOptions(target, env.Options{Environment: environ}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// ParseServer loads Server from the environment and then applies flags from
// args. verbose reports whether -verbose was given.
func ParseServer(fs *flag.FlagSet, args []string) (cfg Server, verbose bool, err error) {
	if fs == nil {
		return Server{}, false, errors.New("flag parser is required")
	}
	if err := ParseEnv(&cfg); err != nil {
		return Server{}, false, err
	}
	fs.StringVar(&cfg.Host, "host", cfg.Host, "interface to bind the HTTP transports to")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn or error")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "graceful shutdown timeout")
	fs.BoolVar(&verbose, "verbose", false, "shorthand for -log-level debug")
	if args == nil {
		args = []string{}
	}
	if err := fs.Parse(args); err != nil {
		return Server{}, false, err
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, verbose, nil
}
