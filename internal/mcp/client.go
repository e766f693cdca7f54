// Package mcp connects to MCP servers over the transports a manifest can
// describe and manages the client session lifecycle.
package mcp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mcp-examples/internal/logging"
	"github.com/mcp-examples/internal/mcp/config"
	"github.com/mcp-examples/internal/transport"
)

// DefaultPingInterval is the keepalive interval used by NewClientWrapper.
const DefaultPingInterval = 30 * time.Second

// redialTimeout bounds a single restart or reconnect attempt.
const redialTimeout = 30 * time.Second

var errNotConnected = errors.New("mcp client is not connected")

// ClientWrapper owns one client session and whatever it needs to keep alive:
// a keepalive loop, an optional reconnect loop and, for stdio servers, the
// child process.
type ClientWrapper struct {
	client          *sdk.Client
	pingInterval    time.Duration
	session         *sdk.ClientSession
	keepaliveCancel context.CancelFunc
	watchCancel     context.CancelFunc
	closers         []func() error
	mu              sync.Mutex
}

// NewClientWrapper creates a new wrapper with the given name/version.
func NewClientWrapper(name, version string) *ClientWrapper {
	impl := &sdk.Implementation{Name: name, Version: version}
	return &ClientWrapper{client: sdk.NewClient(impl, nil), pingInterval: DefaultPingInterval}
}

// SetPingInterval changes the keepalive interval for future connections.
// Zero or negative disables keepalive pings.
func (w *ClientWrapper) SetPingInterval(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pingInterval = d
}

// Connect dispatches on the server's transport type. When the manifest
// enables restart (stdio) or reconnect (url transports), a lost session is
// re-established in the background until the policy runs out of attempts.
func (w *ClientWrapper) Connect(ctx context.Context, serverName string, cfg config.ServerConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("server %q: %w", serverName, err)
	}
	dial, err := w.dialer(serverName, cfg)
	if err != nil {
		return err
	}
	w.stopWatch()
	if err := dial(ctx); err != nil {
		return err
	}
	if policy, ok := cfg.RetryPolicy(); ok {
		w.watch(serverName, dial, policy)
	}
	return nil
}

func (w *ClientWrapper) dialer(serverName string, cfg config.ServerConfig) (func(context.Context) error, error) {
	switch cfg.TransportType() {
	case config.TransportStdio:
		return func(ctx context.Context) error {
			return w.connectCommand(ctx, serverName, cfg.Command, cfg.Args, cfg.Env)
		}, nil
	case config.TransportSSE:
		return func(ctx context.Context) error {
			return w.connectSSE(ctx, cfg.URL, cfg.Headers)
		}, nil
	case config.TransportHTTP:
		return func(ctx context.Context) error {
			return w.connectHTTP(ctx, serverName, cfg)
		}, nil
	case config.TransportWebSocket:
		return func(ctx context.Context) error {
			return w.connectWebSocket(ctx, cfg.URL, cfg.Headers)
		}, nil
	default:
		return nil, fmt.Errorf("server %q: unsupported transport %q", serverName, cfg.TransportType())
	}
}

// ConnectSSE connects to a server's SSE endpoint.
func (w *ClientWrapper) ConnectSSE(ctx context.Context, endpoint string) error {
	w.stopWatch()
	return w.connectSSE(ctx, endpoint, nil)
}

func (w *ClientWrapper) connectSSE(ctx context.Context, endpoint string, headers map[string]string) error {
	t := &sdk.SSEClientTransport{Endpoint: endpoint, HTTPClient: newHeaderClient(headers)}
	if err := w.connect(ctx, t, nil); err != nil {
		return fmt.Errorf("connect sse %s: %w", endpoint, err)
	}
	logging.Infow("mcp client connected", "transport", config.TransportSSE, "url", endpoint)
	return nil
}

// ConnectStreamableHTTP connects to a server's streamable HTTP endpoint.
func (w *ClientWrapper) ConnectStreamableHTTP(ctx context.Context, endpoint string) error {
	w.stopWatch()
	return w.connectStreamableHTTP(ctx, endpoint, nil)
}

func (w *ClientWrapper) connectStreamableHTTP(ctx context.Context, endpoint string, headers map[string]string) error {
	t := &sdk.StreamableClientTransport{Endpoint: endpoint, HTTPClient: newHeaderClient(headers)}
	if err := w.connect(ctx, t, nil); err != nil {
		return fmt.Errorf("connect http %s: %w", endpoint, err)
	}
	logging.Infow("mcp client connected", "transport", config.TransportHTTP, "url", endpoint)
	return nil
}

// connectHTTP tries streamable HTTP and, unless the manifest turns the
// fallback off, SSE at the same URL and then at the URL with a trailing
// "mcp" segment replaced by "sse".
func (w *ClientWrapper) connectHTTP(ctx context.Context, serverName string, cfg config.ServerConfig) error {
	err := w.connectStreamableHTTP(ctx, cfg.URL, cfg.Headers)
	if err == nil || !cfg.SSEFallbackValue() || ctx.Err() != nil {
		return err
	}
	logging.Infow("streamable http connect failed, falling back to sse",
		append(logging.ServerFields(serverName, config.TransportHTTP), "err", err)...)
	for _, endpoint := range sseFallbackURLs(cfg.URL) {
		sseErr := w.connectSSE(ctx, endpoint, cfg.Headers)
		if sseErr == nil {
			return nil
		}
		err = errors.Join(err, sseErr)
	}
	return err
}

func sseFallbackURLs(endpoint string) []string {
	urls := []string{endpoint}
	u, err := url.Parse(endpoint)
	if err != nil {
		return urls
	}
	if dir, last := path.Split(u.Path); last == "mcp" {
		u.Path = dir + "sse"
		urls = append(urls, u.String())
	}
	return urls
}

// ConnectWebSocket connects to the MCP server websocket endpoint and creates a session.
func (w *ClientWrapper) ConnectWebSocket(ctx context.Context, rawurl string) error {
	w.stopWatch()
	return w.connectWebSocket(ctx, rawurl, nil)
}

func (w *ClientWrapper) connectWebSocket(ctx context.Context, rawurl string, headers map[string]string) error {
	u, err := url.Parse(rawurl)
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), headerValues(headers))
	if err != nil {
		return fmt.Errorf("dial websocket %s: %w", u, err)
	}
	if err := w.connect(ctx, transport.NewWebSocketTransport(conn), nil); err != nil {
		_ = conn.Close()
		return fmt.Errorf("connect websocket %s: %w", u, err)
	}
	logging.Infow("mcp client connected", "transport", config.TransportWebSocket, "url", rawurl)
	return nil
}

// ConnectCommand spawns a local MCP server process and connects via stdio.
func (w *ClientWrapper) ConnectCommand(ctx context.Context, serverName, command string, args []string, env map[string]string) error {
	w.stopWatch()
	return w.connectCommand(ctx, serverName, command, args, env)
}

func (w *ClientWrapper) connectCommand(ctx context.Context, serverName, command string, args []string, env map[string]string) error {
	if command == "" {
		return errors.New("command is required")
	}
	cmd := exec.Command(command, args...)
	if len(env) > 0 {
		merged := os.Environ()
		for k, v := range env {
			merged = append(merged, k+"="+v)
		}
		cmd.Env = merged
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		_ = stdout.Close()
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		_ = stdout.Close()
		_ = stdin.Close()
		return err
	}

	if err := cmd.Start(); err != nil {
		_ = stdout.Close()
		_ = stdin.Close()
		_ = stderr.Close()
		return fmt.Errorf("start %s: %w", command, err)
	}

	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			logging.Debugw("mcp server stderr", "server.name", serverName, "line", scanner.Text())
		}
	}()

	waitCh := make(chan error, 1)
	go func() {
		waitCh <- cmd.Wait()
	}()

	stopProcess := func() error {
		_ = stdin.Close()
		var err error
		select {
		case err = <-waitCh:
		case <-time.After(2 * time.Second):
			_ = cmd.Process.Kill()
			err = <-waitCh
		}
		if err != nil {
			logging.Debugw("mcp command server exited", "server.name", serverName, "err", err)
		}
		return nil
	}

	if err := w.connect(ctx, transport.NewStreamTransport(stdout, stdin), stopProcess); err != nil {
		_ = stdin.Close()
		_ = cmd.Process.Kill()
		<-waitCh
		return fmt.Errorf("connect command %s: %w", serverName, err)
	}

	logging.Infow("mcp command server started", "server.name", serverName, "command", command, "args", strings.Join(args, " "))
	return nil
}

// connect runs the MCP handshake over t and makes the result the current
// session, closing any session it replaces. closer, if set, releases
// resources owned by the new session and runs when that session goes away.
//
// ctx bounds the handshake only. Transports such as SSE tie their event
// stream to the context given to Connect, so the session runs on a context
// detached from ctx that is cancelled when the session is released.
func (w *ClientWrapper) connect(ctx context.Context, t sdk.Transport, closer func() error) error {
	streamCtx, cancelStream := context.WithCancel(context.WithoutCancel(ctx))
	stopHandshake := context.AfterFunc(ctx, cancelStream)
	sess, err := w.client.Connect(streamCtx, t, nil)
	if err == nil && !stopHandshake() {
		_ = sess.Close()
		err = context.Cause(ctx)
	}
	if err != nil {
		stopHandshake()
		cancelStream()
		return err
	}
	release := func() error {
		cancelStream()
		if closer != nil {
			return closer()
		}
		return nil
	}

	w.mu.Lock()
	if err := ctx.Err(); err != nil {
		w.mu.Unlock()
		_ = sess.Close()
		_ = release()
		return err
	}
	prev, prevClosers := w.session, w.closers
	if w.keepaliveCancel != nil {
		w.keepaliveCancel()
		w.keepaliveCancel = nil
	}
	w.session = sess
	w.closers = []func() error{release}
	if w.pingInterval > 0 {
		kaCtx, cancel := context.WithCancel(context.Background())
		w.keepaliveCancel = cancel
		go keepalive(kaCtx, sess, w.pingInterval)
	}
	w.mu.Unlock()

	if prev != nil {
		if err := closeSession(prev, prevClosers); err != nil {
			logging.Debugw("closing replaced mcp session", "err", err)
		}
	}
	return nil
}

func closeSession(sess *sdk.ClientSession, closers []func() error) error {
	var errs []error
	if sess != nil {
		if err := sess.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func keepalive(ctx context.Context, sess *sdk.ClientSession, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, interval)
			err := sess.Ping(pingCtx, nil)
			cancel()
			if err != nil && ctx.Err() == nil {
				logging.Warnw("mcp keepalive ping failed", "err", err)
			}
		}
	}
}

// watch starts the loop that re-dials once the current session ends.
func (w *ClientWrapper) watch(serverName string, dial func(context.Context) error, policy config.RetryConfig) {
	ctx, cancel := context.WithCancel(context.Background())
	w.mu.Lock()
	if w.watchCancel != nil {
		w.watchCancel()
	}
	w.watchCancel = cancel
	w.mu.Unlock()
	go w.supervise(ctx, serverName, dial, policy)
}

func (w *ClientWrapper) stopWatch() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watchCancel != nil {
		w.watchCancel()
		w.watchCancel = nil
	}
}

func (w *ClientWrapper) supervise(ctx context.Context, serverName string, dial func(context.Context) error, policy config.RetryConfig) {
	for {
		sess, err := w.currentSession()
		if err != nil {
			return
		}
		_ = sess.Wait()
		if ctx.Err() != nil {
			return
		}
		logging.Infow("mcp session ended, reconnecting", "server.name", serverName,
			"max_attempts", policy.Attempts(), "delay", policy.Delay())
		w.release(sess)
		if err := redial(ctx, serverName, dial, policy); err != nil {
			if ctx.Err() == nil {
				logging.Errorw("mcp reconnect failed", "server.name", serverName, "attempts", policy.Attempts(), "err", err)
			}
			return
		}
	}
}

// release drops sess if it is still current and frees what it owned.
func (w *ClientWrapper) release(sess *sdk.ClientSession) {
	w.mu.Lock()
	if w.session != sess {
		w.mu.Unlock()
		return
	}
	closers := w.closers
	w.session, w.closers = nil, nil
	if w.keepaliveCancel != nil {
		w.keepaliveCancel()
		w.keepaliveCancel = nil
	}
	w.mu.Unlock()
	if err := closeSession(sess, closers); err != nil {
		logging.Debugw("releasing ended mcp session", "err", err)
	}
}

func redial(ctx context.Context, serverName string, dial func(context.Context) error, policy config.RetryConfig) error {
	var errs []error
	for attempt := 1; attempt <= policy.Attempts(); attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(policy.Delay()):
		}
		attemptCtx, cancel := context.WithTimeout(ctx, redialTimeout)
		err := dial(attemptCtx)
		cancel()
		if err == nil {
			logging.Infow("mcp session re-established", "server.name", serverName, "attempt", attempt)
			return nil
		}
		logging.Debugw("mcp reconnect attempt failed", "server.name", serverName, "attempt", attempt, "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (w *ClientWrapper) currentSession() (*sdk.ClientSession, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.session == nil {
		return nil, errNotConnected
	}
	return w.session, nil
}

// ListTools returns every tool the server advertises, following pagination.
func (w *ClientWrapper) ListTools(ctx context.Context) ([]*sdk.Tool, error) {
	sess, err := w.currentSession()
	if err != nil {
		return nil, err
	}
	var tools []*sdk.Tool
	params := &sdk.ListToolsParams{}
	for {
		res, err := sess.ListTools(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("list tools: %w", err)
		}
		tools = append(tools, res.Tools...)
		if res.NextCursor == "" {
			return tools, nil
		}
		params.Cursor = res.NextCursor
	}
}

// CallTool invokes a tool. A result flagged IsError is returned as is; the
// error return is reserved for protocol and transport failures.
func (w *ClientWrapper) CallTool(ctx context.Context, name string, args map[string]any) (*sdk.CallToolResult, error) {
	sess, err := w.currentSession()
	if err != nil {
		return nil, err
	}
	res, err := sess.CallTool(ctx, &sdk.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return nil, fmt.Errorf("call tool %s: %w", name, err)
	}
	return res, nil
}

// Close stops any reconnect loop, ends the session and releases the server
// process, if any.
func (w *ClientWrapper) Close() error {
	w.mu.Lock()
	if w.watchCancel != nil {
		w.watchCancel()
		w.watchCancel = nil
	}
	if w.keepaliveCancel != nil {
		w.keepaliveCancel()
		w.keepaliveCancel = nil
	}
	sess, closers := w.session, w.closers
	w.session, w.closers = nil, nil
	w.mu.Unlock()
	return closeSession(sess, closers)
}

// TextContent joins the text items of a tool result.
func TextContent(res *sdk.CallToolResult) string {
	if res == nil {
		return ""
	}
	var parts []string
	for _, c := range res.Content {
		if tc, ok := c.(*sdk.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}
