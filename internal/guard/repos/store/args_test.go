package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableName(t *testing.T) {
	tests := []struct {
		query string
		op    string
		table string
	}{
		{"SELECT * FROM guild_configs WHERE guild_id = ?", "SELECT", "guild_configs"},
		{"select id\n  from guild_blacklists", "SELECT", "guild_blacklists"},
		{"INSERT INTO guild_blacklists (a) VALUES (?)", "INSERT", "guild_blacklists"},
		{"INSERT OR IGNORE INTO guild_configs (a) VALUES (?)", "INSERT", "guild_configs"},
		{"UPDATE guild_configs SET a = ?", "UPDATE", "guild_configs"},
		{"DELETE FROM guild_blacklists WHERE guild_id = ?", "DELETE", "guild_blacklists"},
		{"PRAGMA foreign_keys", "PRAGMA", "unknown"},
		{"SELECT 1", "SELECT", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			op := operationKind(tt.query)
			assert.Equal(t, tt.op, op)
			assert.Equal(t, tt.table, tableName(tt.query, op))
		})
	}
	assert.Equal(t, "UNKNOWN", operationKind("   "))
}

func TestGuildIDFromArgs(t *testing.T) {
	v := int64(12)
	var nilPtr *int64
	tests := []struct {
		name string
		args []any
		want *int64
	}{
		{"none", nil, nil},
		{"int64", []any{int64(12)}, &v},
		{"int", []any{12}, &v},
		{"pointer", []any{&v}, &v},
		{"nil pointer", []any{nilPtr}, nil},
		{"zero", []any{int64(0)}, nil},
		{"negative", []any{-3}, nil},
		{"string", []any{"12"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := guildIDFromArgs(tt.args)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func TestNormalizeArgs(t *testing.T) {
	type named string
	ts := time.Date(2024, 1, 2, 3, 4, 5, 6, time.UTC)
	n := int64(9)
	var nilPtr *int64
	var nilTime *time.Time

	got, err := normalizeArgs([]any{1, int32(2), uint8(3), 1.5, "s", named("x"), true, nil, &n, nilPtr, ts, nilTime, []byte("b")})
	require.NoError(t, err)
	assert.Equal(t, []any{
		int64(1), int64(2), int64(3), 1.5, "s", "x", true, nil, int64(9), nil,
		"2024-01-02T03:04:05.000000006Z", nil, []byte("b"),
	}, got)

	_, err = normalizeArgs([]any{map[string]int{}})
	assert.Error(t, err)
}

func TestParseTime(t *testing.T) {
	want := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	for _, s := range []string{FormatTime(want), "2024-05-06T07:08:09Z", "2024-05-06 07:08:09"} {
		got, err := ParseTime(s)
		require.NoError(t, err, s)
		assert.True(t, want.Equal(got), s)
	}
	_, err := ParseTime("yesterday")
	assert.Error(t, err)
}

func TestRowAccessors(t *testing.T) {
	r := Row{
		"i":    int64(5),
		"s":    "text",
		"n":    nil,
		"b":    int64(1),
		"f":    int64(0),
		"t":    "2024-05-06 07:08:09",
		"snum": "77",
	}
	v, ok := r.Int64("i")
	assert.True(t, ok)
	assert.Equal(t, int64(5), v)
	assert.Nil(t, r.NullInt64("n"))
	assert.Equal(t, int64(77), *r.NullInt64("snum"))
	assert.Equal(t, "text", r.String("s"))
	assert.Equal(t, "", r.String("n"))
	assert.Nil(t, r.NullString("missing"))
	assert.True(t, r.Bool("b"))
	assert.False(t, r.Bool("f"))
	_, ok = r.Time("t")
	assert.True(t, ok)
	_, ok = r.Time("n")
	assert.False(t, ok)
}
