package logger

import "strings"

// Level names as they appear in the "level" field.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
	LevelFatal = "FATAL"
)

var levelNames = map[string]string{
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
	"fatal":   LevelFatal,
}

func normalizeLevel(level string) string {
	if level == "" {
		return LevelInfo
	}
	if name, ok := levelNames[strings.ToLower(level)]; ok {
		return name
	}
	return strings.ToUpper(level)
}

// enumField restricts a field to a closed vocabulary. Unknown values are
// dropped unless keepUnknown is set.
type enumField struct {
	values      []string
	keepUnknown bool
}

var enumFields = map[string]enumField{
	"status":  {values: []string{"ok", "fail", "skip", "retry", "rate_limited", "cancelled"}, keepUnknown: true},
	"cache":   {values: []string{"hit", "miss", "refresh"}},
	"outcome": {values: []string{"ok", "fail", "cancelled", "rate_limited"}},
}

// normalize returns the canonical value and whether the field should be kept.
func (e enumField) normalize(raw string) (string, bool) {
	v := strings.ToLower(strings.TrimSpace(raw))
	for _, allowed := range e.values {
		if v == allowed {
			return v, true
		}
	}
	return raw, e.keepUnknown
}

// defaultKeyOrder puts the fields people grep for first. Keys not listed
// follow in lexical order.
var defaultKeyOrder = []string{
	"ts", "level", "component", "event", "status",
	"rid", "rid_full", "ts_unix_nano",
	"update_id", "user_id", "chat_id", "chat_type", "handler", "state",
	"operation", "op", "cb_key", "outcome", "duration_ms",
	"messages", "kb", "count", "page", "pages", "cache", "payload", "lang", "username",
	"mode", "listen", "public_url", "http_code", "db", "host", "port",
	"news_id", "listing_id", "offer_id", "deal_id", "prompt", "model",
	"err", "err_code", "cause", "retryable", "attempts", "backoff_ms", "rate_limited",
}
