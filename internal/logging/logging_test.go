package logging

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	SetLogger(zap.New(core).Sugar())
	t.Cleanup(func() { SetLogger(nil) })
	return logs
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"":        zap.InfoLevel,
		"DEBUG":   zap.DebugLevel,
		"warn":    zap.WarnLevel,
		"warning": zap.WarnLevel,
		" error ": zap.ErrorLevel,
		"bogus":   zap.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSetLoggerRoutesPackageHelpers(t *testing.T) {
	logs := observe(t)

	Infow("hello", "k", "v")
	Warnw("careful")
	Debugw("details")

	if logs.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", logs.Len())
	}
	first := logs.All()[0]
	if first.Message != "hello" || first.ContextMap()["k"] != "v" {
		t.Fatalf("unexpected entry: %+v", first)
	}
}

func TestInfowCtxMergesFields(t *testing.T) {
	logs := observe(t)

	ctx := WithFields(context.Background(), ServerFields("weather", "sse")...)
	ctx = WithFields(ctx, "session.id", "abc")
	InfowCtx(ctx, "session opened", "remote", "127.0.0.1")

	entries := logs.FilterMessage("session opened").All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	for key, want := range map[string]string{
		"server.name":      "weather",
		"server.transport": "sse",
		"session.id":       "abc",
		"remote":           "127.0.0.1",
	} {
		if fields[key] != want {
			t.Fatalf("field %s = %v, want %s", key, fields[key], want)
		}
	}
}

func TestWithFieldsNoopOnEmpty(t *testing.T) {
	ctx := context.Background()
	if WithFields(ctx) != ctx {
		t.Fatal("expected the same context when no fields are given")
	}
	if FromContext(ctx) != nil {
		t.Fatal("expected no fields on a bare context")
	}
}

func TestSetLoggerNilWithoutInitIsSafe(t *testing.T) {
	SetLogger(noopLogger{})
	t.Cleanup(func() { SetLogger(nil) })
	Errorw("ignored")
	if err := Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}
}
