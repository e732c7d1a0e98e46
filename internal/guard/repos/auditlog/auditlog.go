package auditlog

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"
	bbolt "go.etcd.io/bbolt"

	"github.com/haukened/reactguard/internal/guard/domain"
)

var (
	bucketRecords = []byte("records")
	bucketGuilds  = []byte("guilds")
)

// codec keeps numbers as json.Number so snowflake ids survive decoding.
var codec = sonic.Config{UseNumber: true}.Froze()

// Log is an append-only audit trail backed by bbolt. Records are keyed by a
// monotonically increasing sequence and indexed per guild.
type Log struct {
	db *bbolt.DB
}

// Open opens (or creates) the bolt file at path and ensures buckets exist.
func Open(path string) (*Log, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create audit directory: %w", err)
		}
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketRecords); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketGuilds)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Log{db: db}, nil
}

func (l *Log) Close() error { return l.db.Close() }

// Append stores rec and indexes it under its guild.
func (l *Log) Append(rec domain.AuditRecord) error {
	val, err := codec.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode audit record: %w", err)
	}
	return l.db.Update(func(tx *bbolt.Tx) error {
		records := tx.Bucket(bucketRecords)
		seq, err := records.NextSequence()
		if err != nil {
			return err
		}
		key := u64(seq)
		if err := records.Put(key, val); err != nil {
			return err
		}
		guild, err := tx.Bucket(bucketGuilds).CreateBucketIfNotExists(u64(uint64(rec.GuildID)))
		if err != nil {
			return err
		}
		return guild.Put(key, []byte{})
	})
}

// History returns up to limit records for guildID, newest first.
// A limit <= 0 returns every record.
func (l *Log) History(guildID int64, limit int) ([]domain.AuditRecord, error) {
	var out []domain.AuditRecord
	err := l.db.View(func(tx *bbolt.Tx) error {
		guild := tx.Bucket(bucketGuilds).Bucket(u64(uint64(guildID)))
		if guild == nil {
			return nil
		}
		records := tx.Bucket(bucketRecords)
		c := guild.Cursor()
		for k, _ := c.Last(); k != nil; k, _ = c.Prev() {
			if limit > 0 && len(out) >= limit {
				break
			}
			rec, err := decode(records.Get(k))
			if err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

// Recent returns up to limit records across all guilds, newest first.
func (l *Log) Recent(limit int) ([]domain.AuditRecord, error) {
	var out []domain.AuditRecord
	err := l.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketRecords).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(out) >= limit {
				break
			}
			rec, err := decode(v)
			if err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

// Count returns the total number of stored records.
func (l *Log) Count() int {
	var n int
	_ = l.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketRecords).Stats().KeyN
		return nil
	})
	return n
}

func decode(v []byte) (domain.AuditRecord, error) {
	var rec domain.AuditRecord
	if v == nil {
		return rec, errors.New("dangling audit index entry")
	}
	if err := codec.Unmarshal(v, &rec); err != nil {
		return rec, fmt.Errorf("decode audit record: %w", err)
	}
	return rec, nil
}

func u64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}
