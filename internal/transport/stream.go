package transport

import (
	"bufio"
	"context"
	"errors"
	"io"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// maxLineSize bounds a single newline-delimited message.
const maxLineSize = 4 << 20

type streamTransport struct {
	conn *streamConnection
}

// NewStreamTransport speaks newline-delimited JSON-RPC over r and w, which is
// how MCP servers talk over their stdin and stdout. The read loop starts
// immediately; Close closes both ends.
func NewStreamTransport(r io.ReadCloser, w io.WriteCloser) sdk.Transport {
	return &streamTransport{conn: newStreamConnection(r, w)}
}

func (t *streamTransport) Connect(context.Context) (sdk.Connection, error) {
	return t.conn, nil
}

type streamConnection struct {
	reader    io.ReadCloser
	writer    io.WriteCloser
	incoming  chan readResult
	done      chan struct{}
	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

type readResult struct {
	msg jsonrpc.Message
	err error
}

func newStreamConnection(r io.ReadCloser, w io.WriteCloser) *streamConnection {
	c := &streamConnection{
		reader:   r,
		writer:   w,
		incoming: make(chan readResult, 1),
		done:     make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *streamConnection) readLoop() {
	defer close(c.incoming)
	scanner := bufio.NewScanner(c.reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		msg, err := jsonrpc.DecodeMessage(line)
		if !c.deliver(readResult{msg: msg, err: err}) || err != nil {
			return
		}
	}
	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	c.deliver(readResult{err: err})
}

func (c *streamConnection) deliver(res readResult) bool {
	select {
	case c.incoming <- res:
		return true
	case <-c.done:
		return false
	}
}

func (c *streamConnection) Read(ctx context.Context) (jsonrpc.Message, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res, ok := <-c.incoming:
		if !ok {
			return nil, io.EOF
		}
		if res.err != nil {
			return nil, res.err
		}
		return res.msg, nil
	}
}

func (c *streamConnection) Write(ctx context.Context, msg jsonrpc.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := jsonrpc.EncodeMessage(msg)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err = c.writer.Write(data)
	return err
}

func (c *streamConnection) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.closeErr = errors.Join(c.writer.Close(), c.reader.Close())
	})
	return c.closeErr
}

func (c *streamConnection) SessionID() string { return "" }
