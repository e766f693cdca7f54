// Package toolhost registers tools on an MCP server and runs it over the
// transport chosen at startup.
package toolhost

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mcp-examples/internal/bootstrap"
	"github.com/mcp-examples/internal/logging"
	"github.com/mcp-examples/internal/transport"
)

const (
	defaultHost            = "127.0.0.1"
	defaultShutdownTimeout = 5 * time.Second
	readHeaderTimeout      = 10 * time.Second
)

// HTTP routes served for the event-stream transport.
const (
	PathSSE        = "/sse"
	PathStreamable = "/mcp"
	PathWebSocket  = "/mcp/ws"
	PathHealth     = "/health"
)

// Options configures a Host.
type Options struct {
	// Host is the interface the HTTP transports bind to.
	Host            string
	ShutdownTimeout time.Duration
}

// Host owns an MCP server and serves it over stdio or HTTP.
type Host struct {
	name   string
	server *sdk.Server
	opts   Options
}

// New creates a Host for a server with the given implementation name and
// version.
func New(name, version string, opts Options) *Host {
	if opts.Host == "" {
		opts.Host = defaultHost
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = defaultShutdownTimeout
	}
	server := sdk.NewServer(&sdk.Implementation{Name: name, Version: version}, nil)
	return &Host{name: name, server: server, opts: opts}
}

// Server exposes the underlying MCP server.
func (h *Host) Server() *sdk.Server { return h.server }

// AddTool registers a tool. The input and output schemas are inferred from In
// and Out; field descriptions come from `jsonschema` struct tags.
func AddTool[In, Out any](h *Host, name, description string, handler sdk.ToolHandlerFor[In, Out]) {
	sdk.AddTool(h.server, &sdk.Tool{Name: name, Description: description}, handler)
	logging.Debugw("registered tool", logging.ToolFields(h.name, name)...)
}

// Run serves the host over the configured transport until ctx is cancelled
// or the transport fails. Cancellation is a clean shutdown and returns nil.
func (h *Host) Run(ctx context.Context, cfg bootstrap.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	switch cfg.Transport {
	case bootstrap.TransportStdio:
		return h.serveStdio(ctx)
	case bootstrap.TransportEventStream:
		addr := net.JoinHostPort(h.opts.Host, strconv.Itoa(cfg.Port))
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", addr, err)
		}
		return h.Serve(ctx, ln)
	default:
		return fmt.Errorf("unsupported transport %s", cfg.Transport)
	}
}

func (h *Host) serveStdio(ctx context.Context) error {
	logging.Infow("serving tools", logging.ServerFields(h.name, bootstrap.TransportStdio.String())...)
	err := h.server.Run(ctx, &sdk.StdioTransport{})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("serve stdio: %w", err)
	}
	return nil
}

// Serve accepts HTTP connections on ln until ctx is cancelled. Live sessions
// are closed on cancellation and the server gets Options.ShutdownTimeout to
// drain. ln is closed when Serve returns.
func (h *Host) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           h.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		// Request contexts derive from ctx so long-lived streams end on shutdown.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	logging.Infow("serving tools",
		append(logging.ServerFields(h.name, bootstrap.TransportEventStream.String()), "addr", ln.Addr().String())...)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		logging.Infow("shutting down tool host", "server.name", h.name)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.opts.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// Handler returns the HTTP routes for the event-stream transports.
func (h *Host) Handler() http.Handler {
	getServer := func(*http.Request) *sdk.Server { return h.server }

	mux := http.NewServeMux()
	mux.Handle(PathSSE, sdk.NewSSEHandler(getServer, nil))
	mux.Handle(PathStreamable, sdk.NewStreamableHTTPHandler(getServer, nil))
	mux.HandleFunc(PathWebSocket, h.handleWebSocket)
	mux.HandleFunc(PathHealth, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleWebSocket runs one MCP session per socket and blocks until it ends.
func (h *Host) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warnw("websocket upgrade failed", "server.name", h.name, "err", err)
		return
	}
	t := transport.NewWebSocketTransport(conn)
	ctx := logging.WithFields(r.Context(), "server.name", h.name, "remote", r.RemoteAddr)

	session, err := h.server.Connect(ctx, t, nil)
	if err != nil {
		logging.WarnwCtx(ctx, "mcp server connect error", "err", err)
		_ = conn.Close()
		return
	}
	ctx = logging.WithFields(ctx, "session.id", session.ID())
	logging.InfowCtx(ctx, "websocket session opened")

	stop := context.AfterFunc(ctx, func() { _ = session.Close() })
	defer stop()

	if err := session.Wait(); err != nil && ctx.Err() == nil {
		logging.WarnwCtx(ctx, "websocket session ended with error", "err", err)
		return
	}
	logging.InfowCtx(ctx, "websocket session ended")
}
