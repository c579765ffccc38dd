package logger

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	coreconfig "github.com/m3rciful/newsmarket/core/config"
)

func TestDurationKey(t *testing.T) {
	cases := map[string]string{
		"duration":         "duration_ms",
		"startup_duration": "startup_duration_ms",
		"elapsed":          "elapsed_ms",
		"backoff_ms":       "backoff_ms",
	}
	for in, want := range cases {
		if got := durationKey(in); got != want {
			t.Errorf("durationKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRatioSamplerAllowsNumeratorPerWindow(t *testing.T) {
	s := newRatioSampler(2, 5)
	allowed := 0
	for i := 0; i < 10; i++ {
		if s.Allow() {
			allowed++
		}
	}
	if allowed != 4 {
		t.Fatalf("allowed = %d, want 4", allowed)
	}

	s.Set(0, 0)
	for i := 0; i < 3; i++ {
		if !s.Allow() {
			t.Fatal("disabled sampler must allow everything")
		}
	}
}

func TestParseRatioSpec(t *testing.T) {
	cases := []struct {
		in       string
		num, den int
	}{
		{"1/10", 1, 10},
		{"25", 1, 25},
		{"0", 0, 0},
		{"junk", 0, 0},
	}
	for _, tc := range cases {
		num, den := parseRatioSpec(tc.in)
		if num != tc.num || den != tc.den {
			t.Errorf("parseRatioSpec(%q) = %d/%d, want %d/%d", tc.in, num, den, tc.num, tc.den)
		}
	}
}

func TestSummarizeStrings(t *testing.T) {
	got, truncated := SummarizeStrings([]string{"a", "b", "c"}, 2)
	if got != "a, b" || !truncated {
		t.Fatalf("got %q truncated=%v", got, truncated)
	}
	got, truncated = SummarizeStrings([]string{"a"}, 2)
	if got != "a" || truncated {
		t.Fatalf("got %q truncated=%v", got, truncated)
	}
}

func TestRoundMS(t *testing.T) {
	if RoundMS(-time.Second) != 0 {
		t.Fatal("negative durations must clamp to zero")
	}
	if got := RoundMS(1499 * time.Microsecond); got != time.Millisecond {
		t.Fatalf("RoundMS = %v", got)
	}
}

func TestCompactRIDLeavesForeignFormats(t *testing.T) {
	if got := CompactRID("abc"); got != "abc" {
		t.Fatalf("CompactRID = %q", got)
	}
	if got := CompactRID(BuildRID(35, 36, 1)); got != "z.10.1" {
		t.Fatalf("CompactRID = %q", got)
	}
}

func TestRotatingFileDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")
	sink := newRotatingFile(path, coreconfig.LoggingConfig{})
	defer sink.Close()
	if sink.MaxSize != 50 || sink.MaxBackups != 5 || sink.MaxAge != 14 {
		t.Fatalf("unexpected defaults: %+v", sink)
	}
	if _, err := sink.Write([]byte("line\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestSanitizeLimit(t *testing.T) {
	if got := SanitizeLimit("a\x00b\u200bc\td", 10); got != "abc\td" {
		t.Fatalf("SanitizeLimit = %q", got)
	}
	if got := SanitizeLimit("привіт", 3); got != "при" {
		t.Fatalf("SanitizeLimit = %q", got)
	}
}

func TestAsyncWriterFansOutAndRejectsAfterClose(t *testing.T) {
	var a, b bytes.Buffer
	w := newAsyncWriter([]io.Writer{&a, nil, &b}, 0)
	if err := w.Write([]byte("one\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if a.String() != "one\n" || b.String() != "one\n" {
		t.Fatalf("sinks = %q %q", a.String(), b.String())
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := w.Write([]byte("two\n")); !errors.Is(err, errWriterClosed) {
		t.Fatalf("write after close = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestContextFieldsDoNotOverrideRecord(t *testing.T) {
	ctx := WithUpdateMeta(WithRID(context.Background(), "r1"), 7, 42, 0)
	ctx = WithHandler(ctx, "market")
	fields := map[string]any{"user_id": int64(1)}
	addContextFields(ctx, fields)
	want := map[string]any{"rid": "r1", "user_id": int64(1), "update_id": 7, "handler": "market"}
	if len(fields) != len(want) {
		t.Fatalf("fields = %v", fields)
	}
	for k, v := range want {
		if fields[k] != v {
			t.Errorf("%s = %v, want %v", k, fields[k], v)
		}
	}
}
