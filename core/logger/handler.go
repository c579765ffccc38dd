package logger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"

	timeFormatMillis = "2006-01-02T15:04:05.000Z07:00"
)

var errNoWriter = errors.New("logger: writer not initialized")

type handlerConfig struct {
	level    slog.Leveler
	writer   *asyncWriter
	format   logFormat
	keyOrder []string
}

// structuredHandler renders records as flat key/value lines. Groups become
// dotted key prefixes and request identifiers are pulled from the context.
type structuredHandler struct {
	cfg    handlerConfig
	attrs  []slog.Attr
	prefix string
}

func newStructuredHandler(cfg handlerConfig) *structuredHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if cfg.keyOrder == nil {
		cfg.keyOrder = append([]string(nil), defaultKeyOrder...)
	}
	return &structuredHandler{cfg: cfg}
}

func (h *structuredHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.level.Level()
}

func (h *structuredHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg.writer == nil {
		return errNoWriter
	}
	jsonOut := h.cfg.format == formatJSON

	fields := make(map[string]any, 16)
	ts := r.Time.UTC()
	fields["ts"] = ts.Truncate(time.Millisecond).Format(timeFormatMillis)
	fields["level"] = normalizeLevel(r.Level.String())
	if jsonOut {
		fields["ts_unix_nano"] = ts.UnixNano()
	}
	for _, a := range h.attrs {
		h.collect(fields, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.collect(fields, a)
		return true
	})
	addContextFields(ctx, fields)

	if rid := textField(fields, "rid"); rid != "" {
		if short := CompactRID(rid); short != rid {
			fields["rid"] = short
			if _, set := fields["rid_full"]; jsonOut && !set {
				fields["rid_full"] = rid
			}
		}
	}
	if textField(fields, "event") == "" {
		fields["event"] = cmpOr(r.Message, "unknown")
	}
	if textField(fields, "component") == "" {
		fields["component"] = "app"
	}
	normalizeFields(fields)

	var line []byte
	if jsonOut {
		var err error
		if line, err = encodeJSON(fields, h.cfg.keyOrder); err != nil {
			return err
		}
	} else {
		line = encodeKV(fields, h.cfg.keyOrder)
	}
	return h.cfg.writer.Write(append(line, '\n'))
}

func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	clone.attrs = append(append(clone.attrs, h.attrs...), attrs...)
	return &clone
}

func (h *structuredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = joinKey(h.prefix, name)
	return &clone
}

// collect flattens a into fields under the handler's group prefix.
func (h *structuredHandler) collect(fields map[string]any, a slog.Attr) {
	walkAttr(h.prefix, a, func(key string, v slog.Value) {
		if key == "" {
			return
		}
		if k, val, ok := fieldValue(key, v); ok {
			fields[k] = val
		}
	})
}

func walkAttr(prefix string, a slog.Attr, fn func(string, slog.Value)) {
	key := joinKey(prefix, a.Key)
	v := a.Value.Resolve()
	if v.Kind() != slog.KindGroup {
		fn(key, v)
		return
	}
	for _, child := range v.Group() {
		walkAttr(key, child, fn)
	}
}

func joinKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	}
	return prefix + "." + key
}

// fieldValue converts v to a JSON-friendly value. Durations are reported in
// milliseconds under a *_ms key.
func fieldValue(key string, v slog.Value) (string, any, bool) {
	switch v.Kind() {
	case slog.KindString:
		return key, strings.TrimSpace(v.String()), true
	case slog.KindBool:
		return key, v.Bool(), true
	case slog.KindInt64:
		return key, v.Int64(), true
	case slog.KindUint64:
		if u := v.Uint64(); u <= math.MaxInt64 {
			return key, int64(u), true
		}
		return key, v.Uint64(), true
	case slog.KindFloat64:
		return key, v.Float64(), true
	case slog.KindDuration:
		return durationKey(key), RoundMS(v.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, v.Time().UTC().Format(time.RFC3339Nano), true
	}
	switch x := v.Any().(type) {
	case nil:
		return key, nil, false
	case error:
		return key, x.Error(), true
	case string:
		return key, strings.TrimSpace(x), true
	case time.Duration:
		return durationKey(key), RoundMS(x).Milliseconds(), true
	case fmt.Stringer:
		return key, x.String(), true
	default:
		return key, fmt.Sprint(x), true
	}
}

// durationKey maps duration attributes onto *_ms keys so every sink reports milliseconds.
func durationKey(key string) string {
	if strings.HasSuffix(key, "_ms") {
		return key
	}
	return key + "_ms"
}

// normalizeFields canonicalises enum fields and drops empty values.
func normalizeFields(fields map[string]any) {
	for name, enum := range enumFields {
		raw := textField(fields, name)
		if raw == "" {
			continue
		}
		if v, keep := enum.normalize(raw); keep {
			fields[name] = v
		} else {
			delete(fields, name)
		}
	}
	for k, v := range fields {
		if v == nil || v == "" {
			delete(fields, k)
		}
	}
}

func textField(fields map[string]any, key string) string {
	switch v := fields[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func cmpOr(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
