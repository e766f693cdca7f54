package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/mcp-examples/internal/bootstrap"
	"github.com/mcp-examples/internal/config"
	"github.com/mcp-examples/internal/logging"
	"github.com/mcp-examples/internal/toolhost"
	"github.com/mcp-examples/internal/tools"
	"github.com/mcp-examples/internal/version"
)

// The math server always speaks MCP on stdin/stdout; logs go to stderr.
func main() {
	fs := flag.NewFlagSet("math-server", flag.ContinueOnError)
	cfg, _, err := config.ParseServer(fs, os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	logging.Init(cfg.LogLevel)
	defer logging.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	host := toolhost.New("math", version.Version, toolhost.Options{ShutdownTimeout: cfg.ShutdownTimeout})
	tools.RegisterMath(host)

	if err := host.Run(ctx, bootstrap.Stdio()); err != nil {
		stop()
		logging.FatalExitf(1, "math server failed", "err", err)
	}
}
