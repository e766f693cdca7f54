package config

import (
	"flag"
	"testing"
	"time"
)

func TestParseServerDefaults(t *testing.T) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	cfg, verbose, err := ParseServer(fs, nil)
	if err != nil {
		t.Fatalf("parse server: %v", err)
	}
	if verbose {
		t.Fatal("expected verbose to default to false")
	}
	if cfg.Host != "127.0.0.1" {
		t.Fatalf("expected default host, got %q", cfg.Host)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("expected default log level, got %q", cfg.LogLevel)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Fatalf("expected default shutdown timeout, got %s", cfg.ShutdownTimeout)
	}
}

func TestParseServerEnvThenFlags(t *testing.T) {
	t.Setenv("MCP_HOST", "0.0.0.0")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("MCP_SHUTDOWN_TIMEOUT", "2s")

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	cfg, _, err := ParseServer(fs, []string{"-host", "localhost"})
	if err != nil {
		t.Fatalf("parse server: %v", err)
	}
	if cfg.Host != "localhost" {
		t.Fatalf("expected flag host, got %q", cfg.Host)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("expected env log level, got %q", cfg.LogLevel)
	}
	if cfg.ShutdownTimeout != 2*time.Second {
		t.Fatalf("expected env shutdown timeout, got %s", cfg.ShutdownTimeout)
	}
}

func TestParseServerVerboseForcesDebug(t *testing.T) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	cfg, verbose, err := ParseServer(fs, []string{"--verbose"})
	if err != nil {
		t.Fatalf("parse server: %v", err)
	}
	if !verbose || cfg.LogLevel != "debug" {
		t.Fatalf("expected debug logging, got verbose=%v level=%q", verbose, cfg.LogLevel)
	}
}

func TestParseServerRejectsUnknownFlag(t *testing.T) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(nopWriter{})
	if _, _, err := ParseServer(fs, []string{"-nope"}); err == nil {
		t.Fatal("expected unknown flag error")
	}
}

func TestParseServerRejectsNilParser(t *testing.T) {
	if _, _, err := ParseServer(nil, nil); err == nil {
		t.Fatal("expected nil parser error")
	}
}

func TestParseEnvFromClient(t *testing.T) {
	var cfg Client
	err := ParseEnvFrom(&cfg, map[string]string{
		"MCP_CLIENT_NAME":   "tester",
		"MCP_CONFIG_PATH":   "/tmp/mcp.json",
		"MCP_CALL_TIMEOUT":  "1s",
		"MCP_PING_INTERVAL": "0s",
	})
	if err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Name != "tester" || cfg.ConfigPath != "/tmp/mcp.json" {
		t.Fatalf("unexpected client config: %+v", cfg)
	}
	if cfg.CallTimeout != time.Second || cfg.PingInterval != 0 {
		t.Fatalf("unexpected durations: %+v", cfg)
	}
	if cfg.ConnectTimeout != 10*time.Second {
		t.Fatalf("expected default connect timeout, got %s", cfg.ConnectTimeout)
	}
}

func TestParseEnvFromRejectsBadDuration(t *testing.T) {
	var cfg Server
	if err := ParseEnvFrom(&cfg, map[string]string{"MCP_SHUTDOWN_TIMEOUT": "soon"}); err == nil {
		t.Fatal("expected duration parse error")
	}
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
