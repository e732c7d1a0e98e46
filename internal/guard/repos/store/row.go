package store

import (
	"fmt"
	"strconv"
	"time"
)

// TimeLayout is the fixed-width UTC layout used for stored timestamps, so that
// lexical ORDER BY matches chronological order.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// legacyTimeLayout is what CURRENT_TIMESTAMP column defaults produce.
const legacyTimeLayout = "2006-01-02 15:04:05"

// FormatTime renders t for storage.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime reads a stored timestamp in any layout the schema may contain.
func ParseTime(s string) (time.Time, error) {
	for _, layout := range []string{TimeLayout, time.RFC3339Nano, legacyTimeLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// Row maps column names to values. Values are int64, float64, string, []byte or nil.
type Row map[string]any

// Int64 returns an integer column. ok is false for NULL or non-integer values.
func (r Row) Int64(col string) (int64, bool) {
	switch v := r[col].(type) {
	case int64:
		return v, true
	case float64:
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// NullInt64 returns nil for NULL, otherwise a pointer to the integer value.
func (r Row) NullInt64(col string) *int64 {
	v, ok := r.Int64(col)
	if !ok {
		return nil
	}
	return &v
}

// String returns a text column, or "" for NULL.
func (r Row) String(col string) string {
	switch v := r[col].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}

// NullString returns nil for NULL, otherwise a pointer to the text value.
func (r Row) NullString(col string) *string {
	if r[col] == nil {
		return nil
	}
	s := r.String(col)
	return &s
}

// Bool interprets SQLite's integer booleans.
func (r Row) Bool(col string) bool {
	switch v := r[col].(type) {
	case int64:
		return v != 0
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	default:
		return false
	}
}

// Time parses a timestamp column. ok is false for NULL or unparseable values.
func (r Row) Time(col string) (time.Time, bool) {
	s, isText := r[col].(string)
	if !isText || s == "" {
		return time.Time{}, false
	}
	t, err := ParseTime(s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
