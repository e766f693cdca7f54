// Package bootstrap decides which transport a tool service runs under, and on
// which port, from the raw process arguments.
package bootstrap

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// PortFlag selects the event-stream port.
	PortFlag = "--sse-port"
	// DefaultPort is used when PortFlag is absent or has no value.
	DefaultPort = 8000

	minPort = 1
	maxPort = 65535
)

// Transport identifies how protocol messages reach the service.
type Transport int

const (
	TransportStdio Transport = iota
	TransportEventStream
)

func (t Transport) String() string {
	switch t {
	case TransportStdio:
		return "stdio"
	case TransportEventStream:
		return "sse"
	default:
		return "unknown(" + strconv.Itoa(int(t)) + ")"
	}
}

// Config is the resolved startup configuration of a service.
type Config struct {
	Transport Transport
	// Port is set only for TransportEventStream.
	Port int
	// Passthrough holds every argument the resolver did not consume, in order.
	Passthrough []string
}

// InvalidPortError reports a port token that is not a base-10 integer in
// [1, 65535].
type InvalidPortError struct {
	Value string
	Err   error
}

func (e *InvalidPortError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s value %q: %v", PortFlag, e.Value, e.Err)
	}
	return fmt.Sprintf("invalid %s value %q", PortFlag, e.Value)
}

func (e *InvalidPortError) Unwrap() error { return e.Err }

var errPortRange = errors.New("port must be between 1 and 65535")

// Stdio returns the configuration for a service served over stdin/stdout.
func Stdio() Config {
	return Config{Transport: TransportStdio}
}

// Resolve translates process arguments (without the program name) into a
// Config. The event-stream transport is always selected; the port comes from
// the first PortFlag occurrence and falls back to DefaultPort.
func Resolve(args []string) (Config, error) {
	cfg := Config{Transport: TransportEventStream, Port: DefaultPort}
	passthrough := make([]string, 0, len(args))
	found := false
	for i := 0; i < len(args); i++ {
		tok := args[i]
		if found {
			passthrough = append(passthrough, tok)
			continue
		}
		switch {
		case tok == PortFlag:
			found = true
			if i+1 < len(args) {
				i++
				port, err := parsePort(args[i])
				if err != nil {
					return Config{}, err
				}
				cfg.Port = port
			}
		case strings.HasPrefix(tok, PortFlag+"="):
			found = true
			if value := strings.TrimPrefix(tok, PortFlag+"="); value != "" {
				port, err := parsePort(value)
				if err != nil {
					return Config{}, err
				}
				cfg.Port = port
			}
		default:
			passthrough = append(passthrough, tok)
		}
	}
	cfg.Passthrough = passthrough
	return cfg, nil
}

func parsePort(value string) (int, error) {
	n, err := strconv.ParseUint(value, 10, 16)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return 0, &InvalidPortError{Value: value, Err: errPortRange}
		}
		return 0, &InvalidPortError{Value: value, Err: strconv.ErrSyntax}
	}
	if n < minPort || n > maxPort {
		return 0, &InvalidPortError{Value: value, Err: errPortRange}
	}
	return int(n), nil
}

// Validate checks the transport/port invariant.
func (c Config) Validate() error {
	switch c.Transport {
	case TransportStdio:
		return nil
	case TransportEventStream:
		if c.Port < minPort || c.Port > maxPort {
			return &InvalidPortError{Value: strconv.Itoa(c.Port), Err: errPortRange}
		}
		return nil
	default:
		return fmt.Errorf("unsupported transport %s", c.Transport)
	}
}

// Args returns the effective argument list a downstream parser would observe:
// the passthrough arguments followed by the synthesized port flag. The result
// is always a fresh slice.
func (c Config) Args() []string {
	out := make([]string, 0, len(c.Passthrough)+2)
	out = append(out, c.Passthrough...)
	if c.Transport == TransportEventStream {
		out = append(out, PortFlag, strconv.Itoa(c.Port))
	}
	return out
}
