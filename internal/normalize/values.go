package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// record is a canonical-keyed view over an adapted row
type record map[string]any

func (r record) str(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// id renders server and client generated ids the same way
func (r record) id() string {
	return r.str("id")
}

func (r record) float(key string) float64 {
	switch v := r[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}

func (r record) integer(key string) int {
	return int(math.Round(r.float(key)))
}

func (r record) boolean(key string) bool {
	switch v := r[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	case float64:
		return v != 0
	}
	return false
}

// object returns a JSON object column, decoding text columns, never nil
func (r record) object(key string) map[string]any {
	switch v := r[key].(type) {
	case map[string]any:
		return v
	case string:
		var m map[string]any
		if json.Unmarshal([]byte(v), &m) == nil && m != nil {
			return m
		}
	}
	return map[string]any{}
}

func (r record) list(key string) []any {
	switch v := r[key].(type) {
	case []any:
		return v
	case string:
		var l []any
		if json.Unmarshal([]byte(v), &l) == nil && l != nil {
			return l
		}
	}
	return []any{}
}

func (r record) time(key string) time.Time {
	return parseTime(r[key])
}

var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999-07",
	"2006-01-02 15:04:05.999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTime accepts ISO strings, database text timestamps, plain dates and
// epoch numbers. Epoch values above 1e11 are milliseconds.
func parseTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}
		}
		for _, layout := range layouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.UTC()
			}
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return epoch(f)
		}
	case float64:
		return epoch(t)
	case int64:
		return epoch(float64(t))
	case int:
		return epoch(float64(t))
	}
	return time.Time{}
}

func epoch(f float64) time.Time {
	if f <= 0 {
		return time.Time{}
	}
	if f > 1e11 {
		return time.UnixMilli(int64(f)).UTC()
	}
	return time.Unix(int64(f), 0).UTC()
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
