package observability

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestFields(t *testing.T) {
	err := errors.New("boom")
	cases := []struct {
		field Field
		key   string
		value interface{}
	}{
		{String("a", "b"), "a", "b"},
		{Int("n", 3), "n", 3},
		{Int64("n64", int64(9)), "n64", int64(9)},
		{Float64("f", 1.5), "f", 1.5},
		{Error("err", err), "err", err},
	}
	for _, c := range cases {
		if c.field.Key() != c.key {
			t.Fatalf("unexpected key: %s", c.field.Key())
		}
		if c.field.Value() != c.value {
			t.Fatalf("unexpected value for %s: %v", c.key, c.field.Value())
		}
	}
}

func TestNopLogger(t *testing.T) {
	var l Logger = NopLogger{}
	l = l.With(String("k", "v"))
	l.Debug("d")
	l.Info("i")
	l.Warn("w")
	l.Error("e", Error("err", errors.New("x")))
}

func TestZapLoggerForwardsFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := WrapZap(zap.New(core))

	l.With(String("doc", "scan.pdf")).Info("page done", Int("page", 4))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Message != "page done" {
		t.Fatalf("unexpected message: %s", entries[0].Message)
	}
	ctx := entries[0].ContextMap()
	if ctx["doc"] != "scan.pdf" {
		t.Fatalf("missing doc field: %v", ctx)
	}
	if ctx["page"] != int64(4) {
		t.Fatalf("missing page field: %v", ctx)
	}
}
