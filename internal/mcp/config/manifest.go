// Package config loads the manifest describing which MCP servers a client
// connects to.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Transport types accepted in a manifest.
const (
	TransportStdio     = "stdio"
	TransportSSE       = "sse"
	TransportHTTP      = "http"
	TransportWebSocket = "websocket"
)

// appDir names the workspace and user manifest directories.
const appDir = "mcp-examples"

// Manifest is the top-level structure of an MCP manifest file.
type Manifest struct {
	Servers map[string]ServerConfig `json:"mcpServers"`
}

// Retry defaults used when a restart or reconnect block leaves them unset.
const (
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = time.Second
)

// ServerConfig describes how to reach a single MCP server. Transport may be
// omitted and is then inferred from Command or URL; Type is accepted as an
// alias for Transport.
type ServerConfig struct {
	Transport string            `json:"transport,omitempty"`
	Type      string            `json:"type,omitempty"`
	URL       string            `json:"url,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	Command   string            `json:"command,omitempty"`
	Args      []string          `json:"args,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
	Enabled   *bool             `json:"enabled,omitempty"`

	// AutomaticSSEFallback retries a failed streamable HTTP connect over
	// SSE. It defaults to true.
	AutomaticSSEFallback *bool `json:"automaticSSEFallback,omitempty"`
	// Restart respawns a stdio server whose process exits.
	Restart *RetryConfig `json:"restart,omitempty"`
	// Reconnect re-establishes a lost sse, http or websocket session.
	Reconnect *RetryConfig `json:"reconnect,omitempty"`
}

// RetryConfig is the shape of both the restart and the reconnect blocks.
type RetryConfig struct {
	Enabled     bool `json:"enabled,omitempty"`
	MaxAttempts int  `json:"maxAttempts,omitempty"`
	DelayMs     int  `json:"delayMs,omitempty"`
}

// Attempts returns MaxAttempts or the default when unset.
func (r RetryConfig) Attempts() int {
	if r.MaxAttempts > 0 {
		return r.MaxAttempts
	}
	return DefaultRetryAttempts
}

// Delay returns DelayMs as a duration, or the default when unset.
func (r RetryConfig) Delay() time.Duration {
	if r.DelayMs > 0 {
		return time.Duration(r.DelayMs) * time.Millisecond
	}
	return DefaultRetryDelay
}

func (r *RetryConfig) validate(block string) error {
	if r == nil {
		return nil
	}
	if r.MaxAttempts < 0 {
		return fmt.Errorf("%s.maxAttempts must not be negative", block)
	}
	if r.DelayMs < 0 {
		return fmt.Errorf("%s.delayMs must not be negative", block)
	}
	return nil
}

// Result holds the merged configuration after loading all manifest sources.
type Result struct {
	Servers map[string]ServerConfig
	Order   []string
	Sources []string
}

// EnabledValue reports whether the server should be used.
func (s ServerConfig) EnabledValue() bool {
	if s.Enabled == nil {
		return true
	}
	return *s.Enabled
}

// SSEFallbackValue reports whether a failed streamable HTTP connect should
// be retried over SSE.
func (s ServerConfig) SSEFallbackValue() bool {
	if s.AutomaticSSEFallback == nil {
		return true
	}
	return *s.AutomaticSSEFallback
}

// RetryPolicy returns the restart block for stdio servers and the reconnect
// block for the URL transports. ok is false when the block is absent or
// not enabled.
func (s ServerConfig) RetryPolicy() (policy RetryConfig, ok bool) {
	block := s.Reconnect
	if s.TransportType() == TransportStdio {
		block = s.Restart
	}
	if block == nil || !block.Enabled {
		return RetryConfig{}, false
	}
	return *block, true
}

// TransportType returns the explicit transport or the one implied by the
// other fields: a command means stdio, a ws:// URL means websocket and any
// other URL means SSE.
func (s ServerConfig) TransportType() string {
	if t := strings.ToLower(strings.TrimSpace(s.Transport)); t != "" {
		return t
	}
	if t := strings.ToLower(strings.TrimSpace(s.Type)); t != "" {
		return t
	}
	if s.Command != "" {
		return TransportStdio
	}
	if s.URL != "" {
		if u, err := url.Parse(s.URL); err == nil && (u.Scheme == "ws" || u.Scheme == "wss") {
			return TransportWebSocket
		}
		return TransportSSE
	}
	return ""
}

// Validate checks that the fields required by the transport are present.
func (s ServerConfig) Validate() error {
	switch t := s.TransportType(); t {
	case TransportStdio:
		if s.Command == "" {
			return errors.New("stdio transport requires a command")
		}
		if len(s.Headers) > 0 {
			return errors.New("headers are not supported by the stdio transport")
		}
		if s.Reconnect != nil {
			return errors.New("reconnect applies to url transports; use restart for stdio")
		}
		return s.Restart.validate("restart")
	case TransportSSE, TransportHTTP, TransportWebSocket:
		if s.URL == "" {
			return fmt.Errorf("%s transport requires a url", t)
		}
		u, err := url.Parse(s.URL)
		if err != nil {
			return fmt.Errorf("invalid url: %w", err)
		}
		if u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid url %q: scheme and host are required", s.URL)
		}
		if s.Restart != nil {
			return fmt.Errorf("restart applies to stdio servers; use reconnect for %s", t)
		}
		return s.Reconnect.validate("reconnect")
	case "":
		return errors.New("missing transport configuration: set command or url")
	default:
		return fmt.Errorf("unsupported transport %q", t)
	}
	return nil
}

// Load reads a single manifest file and validates every enabled server in it.
func Load(path string) (Result, error) {
	result := Result{Servers: make(map[string]ServerConfig)}
	path, err := expandPath(path)
	if err != nil {
		return result, err
	}
	manifest, err := readManifest(path)
	if err != nil {
		return result, err
	}
	mergeServers(result.Servers, manifest.Servers)
	result.Sources = append(result.Sources, path)
	return result, finalize(&result)
}

// LoadResult loads the client configuration. MCP_CONFIG_PATH, when set,
// names the only manifest read; otherwise the workspace manifest is read
// first and the user manifest overrides entries with the same name.
func LoadResult() (Result, error) {
	if overridePath := os.Getenv("MCP_CONFIG_PATH"); overridePath != "" {
		return Load(overridePath)
	}

	result := Result{Servers: make(map[string]ServerConfig)}
	for _, locate := range []func() (string, error){workspaceManifestPath, userManifestPath} {
		path, err := locate()
		if err != nil {
			return result, err
		}
		manifest, err := readManifest(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return result, err
		}
		mergeServers(result.Servers, manifest.Servers)
		result.Sources = append(result.Sources, path)
	}
	return result, finalize(&result)
}

func finalize(result *Result) error {
	names := make([]string, 0, len(result.Servers))
	for name := range result.Servers {
		names = append(names, name)
	}
	sort.Strings(names)
	result.Order = names

	var errs []error
	for _, name := range names {
		server := result.Servers[name]
		if !server.EnabledValue() {
			continue
		}
		if err := server.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("server %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func mergeServers(dst map[string]ServerConfig, src map[string]ServerConfig) {
	for name, cfg := range src {
		dst[name] = normalizeConfig(cfg)
	}
}

func normalizeConfig(cfg ServerConfig) ServerConfig {
	if cfg.Args != nil {
		out := make([]string, len(cfg.Args))
		for i, arg := range cfg.Args {
			out[i] = expandOrKeep(arg)
		}
		cfg.Args = out
	}
	cfg.Command = expandOrKeep(cfg.Command)
	if len(cfg.Env) > 0 {
		env := make(map[string]string, len(cfg.Env))
		for k, v := range cfg.Env {
			env[k] = expandOrKeep(v)
		}
		cfg.Env = env
	}
	return cfg
}

func expandOrKeep(value string) string {
	if expanded, err := expandPath(value); err == nil {
		return expanded
	}
	return value
}

func readManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, err
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return Manifest{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if manifest.Servers == nil {
		manifest.Servers = make(map[string]ServerConfig)
	}
	return manifest, nil
}

func workspaceManifestPath() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, "."+appDir, "mcp.json"), nil
}

func userManifestPath() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, appDir, "mcp.json"), nil
}

// expandPath expands a leading "~" or "~/". Other forms, such as "~user",
// are returned unchanged.
func expandPath(value string) (string, error) {
	if value != "~" && !strings.HasPrefix(value, "~/") {
		return value, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return value, err
	}
	if value == "~" {
		return home, nil
	}
	return filepath.Join(home, value[2:]), nil
}
