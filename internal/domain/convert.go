package domain

import (
	"encoding/json"
	"math"
	"strings"
	"time"
)

// timestampLayout is fixed-width so stored timestamps sort lexically.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

var parseLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	time.DateOnly,
	time.RFC1123Z,
	time.RFC1123,
}

// FormatTimestamp renders t the way timestamps are stored in documents.
// The zero time renders as the empty string.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timestampLayout)
}

// NormalizeTime converts the wire representations document stores use for
// timestamps into a time.Time: time.Time values, RFC 3339 and date-only
// strings, epoch milliseconds and {seconds, nanoseconds} objects. It returns
// false when v holds no recognisable timestamp.
func NormalizeTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), !t.IsZero()
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return t.UTC(), !t.IsZero()
	case string:
		return parseTimestamp(t)
	case float64:
		return fromMillis(t)
	case int64:
		return time.UnixMilli(t).UTC(), true
	case int:
		return time.UnixMilli(int64(t)).UTC(), true
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return time.Time{}, false
		}
		return fromMillis(f)
	case map[string]any:
		return fromSecondsObject(t)
	}
	return time.Time{}, false
}

func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range parseLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func fromMillis(ms float64) (time.Time, bool) {
	if math.IsNaN(ms) || math.IsInf(ms, 0) {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(ms)).UTC(), true
}

// fromSecondsObject handles exported store timestamps such as
// {"seconds": 1700000000, "nanoseconds": 0} or {"_seconds": …, "_nanoseconds": …}.
func fromSecondsObject(m map[string]any) (time.Time, bool) {
	secs, ok := number(m, "seconds", "_seconds")
	if !ok {
		return time.Time{}, false
	}
	nanos, _ := number(m, "nanoseconds", "_nanoseconds")
	return time.Unix(int64(secs), int64(nanos)).UTC(), true
}

func number(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		switch n := m[k].(type) {
		case float64:
			return n, true
		case int64:
			return float64(n), true
		case int:
			return float64(n), true
		case json.Number:
			f, err := n.Float64()
			return f, err == nil
		}
	}
	return 0, false
}
