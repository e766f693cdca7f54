package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mcp-examples/internal/config"
	"github.com/mcp-examples/internal/logging"
	"github.com/mcp-examples/internal/mcp"
	mcpconfig "github.com/mcp-examples/internal/mcp/config"
	"github.com/mcp-examples/internal/version"
)

// toolclient connects to every enabled server in the MCP manifest, lists
// their tools and optionally calls one of them.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout io.Writer) int {
	var cfg config.Client
	if err := config.ParseEnv(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "toolclient: %v\n", err)
		return 2
	}
	fs := flag.NewFlagSet("toolclient", flag.ContinueOnError)
	fs.StringVar(&cfg.ConfigPath, "config", cfg.ConfigPath, "manifest path (defaults to workspace and user manifests)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn or error")
	call := fs.String("call", "", "tool to call, as server/tool")
	rawArgs := fs.String("args", "{}", "JSON object of tool arguments")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	var target, tool string
	var toolArgs map[string]any
	if *call != "" {
		var ok bool
		target, tool, ok = strings.Cut(*call, "/")
		if !ok || target == "" || tool == "" {
			fmt.Fprintf(os.Stderr, "toolclient: -call must be server/tool, got %q\n", *call)
			return 2
		}
		if err := json.Unmarshal([]byte(*rawArgs), &toolArgs); err != nil {
			fmt.Fprintf(os.Stderr, "toolclient: -args: %v\n", err)
			return 2
		}
	}

	logging.Init(cfg.LogLevel)
	defer logging.Sync()

	manifest, err := loadManifest(cfg.ConfigPath)
	if err != nil {
		logging.Errorw("failed to load mcp manifest", "err", err)
		return 1
	}
	logging.Infow("loaded mcp configuration", "sources", manifest.Sources, "servers", len(manifest.Order))

	clients := make(map[string]*mcp.ClientWrapper)
	defer func() {
		for name, client := range clients {
			if err := client.Close(); err != nil {
				logging.Warnw("mcp client close failed", "server.name", name, "err", err)
			}
		}
	}()

	for _, serverName := range manifest.Order {
		server := manifest.Servers[serverName]
		if !server.EnabledValue() {
			logging.Debugw("skipping disabled mcp server", "server.name", serverName)
			continue
		}
		if target != "" && serverName != target {
			continue
		}
		client := mcp.NewClientWrapper(cfg.Name, version.Version)
		client.SetPingInterval(cfg.PingInterval)
		connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
		err := client.Connect(connectCtx, serverName, server)
		cancel()
		if err != nil {
			logging.Warnw("mcp connect failed", append(logging.ServerFields(serverName, server.TransportType()), "err", err)...)
			continue
		}
		clients[serverName] = client

		tools, err := client.ListTools(ctx)
		if err != nil {
			logging.Warnw("mcp list tools failed", "server.name", serverName, "err", err)
			continue
		}
		for _, t := range tools {
			fmt.Fprintf(stdout, "%s/%s\t%s\n", serverName, t.Name, t.Description)
		}
	}

	if target == "" {
		return 0
	}
	client, ok := clients[target]
	if !ok {
		logging.Errorw("mcp server not connected", "server.name", target)
		return 1
	}
	callCtx, cancel := context.WithTimeout(ctx, cfg.CallTimeout)
	defer cancel()
	res, err := client.CallTool(callCtx, tool, toolArgs)
	if err != nil {
		logging.Errorw("mcp tool call failed", append(logging.ToolFields(target, tool), "err", err)...)
		return 1
	}
	fmt.Fprintln(stdout, mcp.TextContent(res))
	if res.IsError {
		return 1
	}
	return 0
}

func loadManifest(path string) (mcpconfig.Result, error) {
	if path != "" {
		return mcpconfig.Load(path)
	}
	return mcpconfig.LoadResult()
}
