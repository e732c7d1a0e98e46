package store

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"
)

var tablePatterns = map[string]*regexp.Regexp{
	"SELECT": regexp.MustCompile(`(?is)\bFROM\s+([A-Za-z_][A-Za-z0-9_]*)`),
	"DELETE": regexp.MustCompile(`(?is)\bFROM\s+([A-Za-z_][A-Za-z0-9_]*)`),
	"INSERT": regexp.MustCompile(`(?is)\bINTO\s+([A-Za-z_][A-Za-z0-9_]*)`),
	"UPDATE": regexp.MustCompile(`(?is)^\s*UPDATE\s+(?:OR\s+[A-Za-z]+\s+)?([A-Za-z_][A-Za-z0-9_]*)`),
}

// operationKind is the statement's leading keyword, upper-cased.
func operationKind(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return "UNKNOWN"
	}
	return strings.ToUpper(fields[0])
}

// tableName extracts the target table for the four DML verbs, or "unknown".
func tableName(query, op string) string {
	re, ok := tablePatterns[op]
	if !ok {
		return "unknown"
	}
	m := re.FindStringSubmatch(query)
	if m == nil {
		return "unknown"
	}
	return m[1]
}

// guildIDFromArgs treats a positive integer first parameter as the guild id.
func guildIDFromArgs(args []any) *int64 {
	if len(args) == 0 {
		return nil
	}
	var id int64
	switch v := args[0].(type) {
	case int64:
		id = v
	case int:
		id = int64(v)
	case *int64:
		if v == nil {
			return nil
		}
		id = *v
	default:
		return nil
	}
	if id <= 0 {
		return nil
	}
	return &id
}

// normalizeArgs converts args to the types SQLite binds directly:
// int64, float64, string, []byte, bool or nil. Pointers bind NULL when nil.
func normalizeArgs(args []any) ([]any, error) {
	out := make([]any, len(args))
	for i, a := range args {
		v, err := normalizeArg(a)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		out[i] = v
	}
	return out, nil
}

func normalizeArg(a any) (any, error) {
	switch v := a.(type) {
	case nil:
		return nil, nil
	case int64, float64, string, []byte, bool:
		return v, nil
	case time.Time:
		return FormatTime(v), nil
	case *time.Time:
		if v == nil {
			return nil, nil
		}
		return FormatTime(*v), nil
	}

	rv := reflect.ValueOf(a)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, nil
		}
		return normalizeArg(rv.Elem().Interface())
	}
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return int64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.String:
		return rv.String(), nil
	case reflect.Bool:
		return rv.Bool(), nil
	}
	return nil, fmt.Errorf("unsupported type %T", a)
}
