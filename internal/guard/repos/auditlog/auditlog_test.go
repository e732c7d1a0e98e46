package auditlog

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/haukened/reactguard/internal/guard/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempLog(t *testing.T) (*Log, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "audit.db")
	l, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l, path
}

func record(guild int64, action domain.AuditAction, field string) domain.AuditRecord {
	return domain.AuditRecord{
		ID:        field,
		GuildID:   guild,
		Action:    action,
		Field:     field,
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestLog_HistoryNewestFirstPerGuild(t *testing.T) {
	l, _ := tempLog(t)

	require.NoError(t, l.Append(record(1, domain.AuditCreate, "a")))
	require.NoError(t, l.Append(record(2, domain.AuditCreate, "x")))
	require.NoError(t, l.Append(record(1, domain.AuditUpdate, "b")))
	require.NoError(t, l.Append(record(1, domain.AuditDelete, "c")))

	hist, err := l.History(1, 0)
	require.NoError(t, err)
	require.Len(t, hist, 3)
	assert.Equal(t, "c", hist[0].Field)
	assert.Equal(t, "b", hist[1].Field)
	assert.Equal(t, "a", hist[2].Field)

	limited, err := l.History(1, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	none, err := l.History(99, 10)
	require.NoError(t, err)
	assert.Empty(t, none)

	assert.Equal(t, 4, l.Count())
	recent, err := l.Recent(1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "c", recent[0].Field)
}

func TestLog_PreservesLargeIDs(t *testing.T) {
	l, _ := tempLog(t)
	rec := record(1, domain.AuditUpdate, "log_channel_id")
	rec.NewValue = int64(123456789012345678)
	rec.UserID = 987654321098765432
	require.NoError(t, l.Append(rec))

	hist, err := l.History(1, 1)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, int64(987654321098765432), hist[0].UserID)
	assert.Equal(t, json.Number("123456789012345678"), hist[0].NewValue)
}

func TestLog_ReopenKeepsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	l, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, l.Append(record(5, domain.AuditAdd, "emoji")))
	require.NoError(t, l.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	require.NoError(t, reopened.Append(record(5, domain.AuditRemove, "emoji2")))

	hist, err := reopened.History(5, 0)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, domain.AuditRemove, hist[0].Action)
}
