package bootstrap

import (
	"errors"
	"reflect"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveEmptyArgsUsesDefault(t *testing.T) {
	for _, args := range [][]string{nil, {}} {
		cfg, err := Resolve(args)
		require.NoError(t, err)
		require.Equal(t, TransportEventStream, cfg.Transport)
		require.Equal(t, DefaultPort, cfg.Port)
		require.Empty(t, cfg.Passthrough)
		require.Equal(t, []string{"--sse-port", "8000"}, cfg.Args())
	}
}

func TestResolveExplicitPort(t *testing.T) {
	cases := [][]string{
		{"--sse-port", "9090"},
		{"--sse-port", "9090", "--verbose"},
		{"--host", "0.0.0.0", "--sse-port", "9090"},
		{"--sse-port=9090"},
	}
	for _, args := range cases {
		cfg, err := Resolve(args)
		require.NoError(t, err, "args %v", args)
		require.Equal(t, TransportEventStream, cfg.Transport)
		require.Equal(t, 9090, cfg.Port, "args %v", args)
	}
}

func TestResolveFlagWithoutValueFallsBack(t *testing.T) {
	for _, args := range [][]string{{"--sse-port"}, {"--verbose", "--sse-port"}, {"--sse-port="}} {
		cfg, err := Resolve(args)
		require.NoError(t, err)
		require.Equal(t, DefaultPort, cfg.Port, "args %v", args)
	}
}

func TestResolveRejectsNonNumericPort(t *testing.T) {
	for _, value := range []string{"abc", "80a", "-1", "+80", "", " 80", "8.0"} {
		_, err := Resolve([]string{"--sse-port", value})
		var portErr *InvalidPortError
		if !errors.As(err, &portErr) {
			t.Fatalf("value %q: expected InvalidPortError, got %v", value, err)
		}
		if portErr.Value != value {
			t.Fatalf("expected offending value %q, got %q", value, portErr.Value)
		}
	}
}

func TestResolveRejectsOutOfRangePort(t *testing.T) {
	for _, value := range []string{"0", "65536", "99999", "123456789012345678901234567890"} {
		_, err := Resolve([]string{"--sse-port", value})
		var portErr *InvalidPortError
		require.ErrorAs(t, err, &portErr, "value %q", value)
		require.ErrorIs(t, err, errPortRange)
	}
}

func TestResolveAcceptsPortBounds(t *testing.T) {
	for _, port := range []int{1, 65535} {
		cfg, err := Resolve([]string{"--sse-port", strconv.Itoa(port)})
		require.NoError(t, err)
		require.Equal(t, port, cfg.Port)
	}
}

func TestResolveUnrelatedArgsArePreserved(t *testing.T) {
	args := []string{"--verbose", "-host", "0.0.0.0"}
	cfg, err := Resolve(args)
	require.NoError(t, err)
	require.Equal(t, Config{Transport: TransportEventStream, Port: DefaultPort, Passthrough: args}, cfg)
	require.Equal(t, []string{"--verbose", "-host", "0.0.0.0", "--sse-port", "8000"}, cfg.Args())
}

func TestResolveStripsOnlyFirstFlag(t *testing.T) {
	cfg, err := Resolve([]string{"a", "--sse-port", "9000", "b", "--sse-port", "9001"})
	require.NoError(t, err)
	require.Equal(t, 9000, cfg.Port)
	require.Equal(t, []string{"a", "b", "--sse-port", "9001"}, cfg.Passthrough)
}

func TestResolveDoesNotMutateInput(t *testing.T) {
	args := []string{"--verbose"}
	snapshot := append([]string(nil), args...)
	cfg, err := Resolve(args)
	require.NoError(t, err)
	_ = cfg.Args()
	require.Equal(t, snapshot, args)

	cfg.Passthrough[0] = "changed"
	require.Equal(t, "--verbose", args[0])
}

func TestResolveIsIdempotent(t *testing.T) {
	args := []string{"--verbose", "--sse-port", "9090", "extra"}
	first, err := Resolve(args)
	require.NoError(t, err)
	second, err := Resolve(args)
	require.NoError(t, err)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical configs, got %+v and %+v", first, second)
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, Stdio().Validate())
	require.NoError(t, Config{Transport: TransportEventStream, Port: 8000}.Validate())

	var portErr *InvalidPortError
	require.ErrorAs(t, Config{Transport: TransportEventStream}.Validate(), &portErr)
	require.Error(t, Config{Transport: Transport(7)}.Validate())
}

func TestStdioArgsHaveNoPortFlag(t *testing.T) {
	cfg := Stdio()
	cfg.Passthrough = []string{"-verbose"}
	require.Equal(t, []string{"-verbose"}, cfg.Args())
	require.Equal(t, "stdio", cfg.Transport.String())
	require.Equal(t, "sse", TransportEventStream.String())
}
