package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func render(t *testing.T, format logFormat, ctx context.Context, component, event string, attrs ...slog.Attr) string {
	t.Helper()
	var buf bytes.Buffer
	w := newAsyncWriter([]io.Writer{&buf}, 1024)
	h := newStructuredHandler(handlerConfig{level: slog.LevelDebug, writer: w, format: format})
	LogEvent(ctx, slog.New(h).With("component", component), slog.LevelInfo, event, attrs...)
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return strings.TrimSpace(buf.String())
}

func TestKVLineFollowsKeyOrder(t *testing.T) {
	ctx := WithUpdateMeta(WithRID(context.Background(), "rid-123"), 42, 7, 9)
	line := render(t, formatKV, ctx, "app", "test.event",
		slog.String("status", "OK"),
		slog.String("zeta", "last"),
		slog.String("cause", "unit"),
	)
	tokens := strings.Split(line, " ")
	want := []string{"ts=", "level=INFO", "component=app", "event=test.event", "status=ok", "rid=rid-123", "update_id=42", "user_id=7", "chat_id=9", "cause=unit", "zeta=last"}
	if len(tokens) != len(want) {
		t.Fatalf("tokens = %q", tokens)
	}
	for i, prefix := range want {
		if !strings.HasPrefix(tokens[i], prefix) {
			t.Errorf("token %d = %s, want prefix %s", i, tokens[i], prefix)
		}
	}
}

func TestJSONLineCarriesCompactAndFullRID(t *testing.T) {
	ctx := WithRID(context.Background(), BuildRID(12, 34, 56))
	line := render(t, formatJSON, ctx, "service.market", "deal.confirmed",
		slog.Int64("deal_id", 5),
		slog.Duration("duration", 1500*time.Microsecond),
	)
	var got map[string]any
	if err := json.Unmarshal([]byte(line), &got); err != nil {
		t.Fatalf("invalid JSON %s: %v", line, err)
	}
	if got["rid"] != CompactRID("12:34:56") || got["rid_full"] != "12:34:56" {
		t.Fatalf("rid fields = %v / %v", got["rid"], got["rid_full"])
	}
	if got["duration_ms"] != float64(2) {
		t.Fatalf("duration_ms = %v", got["duration_ms"])
	}
	if _, ok := got["ts_unix_nano"]; !ok {
		t.Fatal("ts_unix_nano missing")
	}
	if !strings.HasPrefix(line, `{"ts":`) {
		t.Fatalf("ts must lead: %s", line)
	}
}

func TestKVLineOmitsFullRID(t *testing.T) {
	line := render(t, formatKV, WithRID(context.Background(), "1:2:3"), "app", "rid.test")
	if !strings.Contains(line, "rid=1.2.3") || strings.Contains(line, "rid_full") {
		t.Fatalf("line = %s", line)
	}
}

func TestEnumFieldsAndEmptyValues(t *testing.T) {
	line := render(t, formatKV, context.Background(), "", "",
		slog.String("cache", "bogus"),
		slog.String("outcome", "Cancelled"),
		slog.String("status", "weird"),
		slog.String("empty", "  "),
		slog.Group("ai", slog.String("model", "flash")),
	)
	for _, want := range []string{"component=app", "event=unknown", "outcome=cancelled", "status=weird", "ai.model=flash"} {
		if !strings.Contains(line, want) {
			t.Errorf("missing %s in %s", want, line)
		}
	}
	for _, absent := range []string{"cache=", "empty="} {
		if strings.Contains(line, absent) {
			t.Errorf("unexpected %s in %s", absent, line)
		}
	}
}

func TestKVQuotesValuesWithSpaces(t *testing.T) {
	line := render(t, formatKV, context.Background(), "app", "q", slog.String("err", `bad "input" here`))
	if !strings.Contains(line, `err="bad \"input\" here"`) {
		t.Fatalf("line = %s", line)
	}
}
