package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"
)

type echoArgs struct {
	Message string `json:"message"`
}

type echoResult struct {
	Message string `json:"message"`
}

func newEchoServer() *sdk.Server {
	server := sdk.NewServer(&sdk.Implementation{Name: "echo", Version: "test"}, nil)
	sdk.AddTool(server, &sdk.Tool{Name: "echo", Description: "echo back messages"}, func(ctx context.Context, req *sdk.CallToolRequest, args echoArgs) (*sdk.CallToolResult, echoResult, error) {
		return &sdk.CallToolResult{
			Content: []sdk.Content{&sdk.TextContent{Text: args.Message}},
		}, echoResult{Message: args.Message}, nil
	})
	return server
}

func callEcho(t *testing.T, session *sdk.ClientSession, message string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := session.CallTool(ctx, &sdk.CallToolParams{
		Name:      "echo",
		Arguments: map[string]any{"message": message},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(*sdk.TextContent)
	require.True(t, ok, "unexpected content type %T", res.Content[0])
	require.Equal(t, message, text.Text)
}

func TestStreamTransportRoundTrip(t *testing.T) {
	clientToServerR, clientToServerW := io.Pipe()
	serverToClientR, serverToClientW := io.Pipe()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	serverSession, err := newEchoServer().Connect(ctx, NewStreamTransport(clientToServerR, serverToClientW), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = serverSession.Close() })

	client := sdk.NewClient(&sdk.Implementation{Name: "stream-client", Version: "test"}, nil)
	session, err := client.Connect(ctx, NewStreamTransport(serverToClientR, clientToServerW), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })

	callEcho(t, session, "over pipes")
	callEcho(t, session, "again")
}

func TestStreamConnectionReadHonoursContext(t *testing.T) {
	r, w := io.Pipe()
	conn, err := NewStreamTransport(r, w).Connect(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = conn.Read(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestStreamConnectionReportsEOF(t *testing.T) {
	conn, err := NewStreamTransport(io.NopCloser(strings.NewReader("")), nopWriteCloser{}).Connect(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Read(context.Background())
	require.ErrorIs(t, err, io.EOF)
}

func TestStreamConnectionRejectsGarbage(t *testing.T) {
	conn, err := NewStreamTransport(io.NopCloser(strings.NewReader("not json\n")), nopWriteCloser{}).Connect(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Read(context.Background())
	require.Error(t, err)
	require.NotErrorIs(t, err, io.EOF)
}

func TestWebSocketTransportRoundTrip(t *testing.T) {
	server := newEchoServer()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade failed: %v", err)
			return
		}
		session, err := server.Connect(r.Context(), NewWebSocketTransport(conn), nil)
		if err != nil {
			t.Logf("server connect failed: %v", err)
			_ = conn.Close()
			return
		}
		_ = session.Wait()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	require.NoError(t, err)

	client := sdk.NewClient(&sdk.Implementation{Name: "ws-client", Version: "test"}, nil)
	session, err := client.Connect(ctx, NewWebSocketTransport(conn), nil)
	require.NoError(t, err)
	defer session.Close()

	callEcho(t, session, "over websocket")
}

func TestWebSocketSessionIDsAreUnique(t *testing.T) {
	a, err := (&wsTransport{id: "a"}).Connect(context.Background())
	require.NoError(t, err)
	require.Equal(t, "a", a.SessionID())

	first := NewWebSocketTransport(nil).(*wsTransport)
	second := NewWebSocketTransport(nil).(*wsTransport)
	require.NotEmpty(t, first.id)
	require.NotEqual(t, first.id, second.id)
}

type nopWriteCloser struct{}

func (nopWriteCloser) Write(p []byte) (int, error) { return len(p), nil }
func (nopWriteCloser) Close() error                { return nil }
