package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestContextHandlerAddsUpdateMeta(t *testing.T) {
	buf := &bytes.Buffer{}
	log := slog.New(newContextHandler(slog.NewJSONHandler(buf, nil))).With("component", "app")

	ctx := WithRID(context.Background(), "42:9:7")
	ctx = WithUpdateMeta(ctx, 42, 7, 9)
	ctx = WithHandler(ctx, "callback.cart")
	LogEvent(ctx, log, slog.LevelInfo, "test.event", slog.String("status", "ok"))

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v (%s)", err, buf.String())
	}
	want := map[string]any{
		"component": "app",
		"event":     "test.event",
		"status":    "ok",
		"rid":       CompactRID("42:9:7"),
		"update_id": float64(42),
		"chat_id":   float64(9),
		"user_id":   float64(7),
		"handler":   "callback.cart",
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("%s = %v, want %v (%s)", k, got[k], v, buf.String())
		}
	}
}

func TestContextHandlerKeepsExplicitAttrs(t *testing.T) {
	buf := &bytes.Buffer{}
	log := slog.New(newContextHandler(slog.NewTextHandler(buf, nil)))

	ctx := WithChatID(context.Background(), 100)
	LogEvent(ctx, log, slog.LevelInfo, "admin.notify", slog.Int64("chat_id", 555))

	line := strings.TrimSpace(buf.String())
	if !strings.Contains(line, "chat_id=555") {
		t.Fatalf("expected explicit chat_id, got %s", line)
	}
	if strings.Contains(line, "chat_id=100") {
		t.Fatalf("context chat_id must not override explicit attr, got %s", line)
	}
}

func TestCompactRID(t *testing.T) {
	if got := CompactRID("36:72:1"); got != "10.20.1" {
		t.Fatalf("CompactRID = %s", got)
	}
	if got := CompactRID("not-a-rid"); got != "not-a-rid" {
		t.Fatalf("CompactRID passthrough = %s", got)
	}
}

func TestSanitizeLimit(t *testing.T) {
	if got := SanitizeLimit("ab\x00cdé", 4); got != "abcd" {
		t.Fatalf("SanitizeLimit = %q", got)
	}
}
