package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
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

const usage = `usage: weather-server [--sse-port N] [-host ADDR] [-log-level LEVEL] [-verbose]

Serves the get_weather tool over SSE (/sse), streamable HTTP (/mcp) and
WebSocket (/mcp/ws). The port defaults to 8000.
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	boot, err := bootstrap.Resolve(args)
	if err != nil {
		var portErr *bootstrap.InvalidPortError
		if errors.As(err, &portErr) {
			fmt.Fprintf(os.Stderr, "weather-server: %v\n\n%s", err, usage)
			return 2
		}
		fmt.Fprintf(os.Stderr, "weather-server: %v\n", err)
		return 1
	}

	fs := flag.NewFlagSet("weather-server", flag.ContinueOnError)
	fs.Usage = func() { fmt.Fprint(fs.Output(), usage) }
	cfg, _, err := config.ParseServer(fs, boot.Passthrough)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	logging.Init(cfg.LogLevel)
	defer logging.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	host := toolhost.New("weather", version.Version, toolhost.Options{
		Host:            cfg.Host,
		ShutdownTimeout: cfg.ShutdownTimeout,
	})
	tools.RegisterWeather(host)

	logging.Infow("starting weather server", "transport", boot.Transport.String(), "port", boot.Port, "args", boot.Args())
	if err := host.Run(ctx, boot); err != nil {
		logging.Errorw("weather server failed", "err", err)
		return 1
	}
	logging.Infow("weather server stopped")
	return 0
}
