package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/haukened/reactguard/internal/guard/common/clock"
	"github.com/haukened/reactguard/internal/guard/common/log"
	"github.com/haukened/reactguard/internal/guard/domain"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

const (
	defaultPoolSize     = 4
	defaultMaxAttempts  = 3
	defaultRetryInitial = time.Second
	defaultBusyTimeout  = 5 * time.Second
)

// Observer receives one metric per executed statement.
type Observer interface {
	Observe(m domain.OperationMetric)
}

// Options configures a Store.
type Options struct {
	// Path is the database file. Parent directories are created.
	Path string
	// PoolSize is the number of pooled connections.
	PoolSize int
	// MaxAttempts bounds tries of a statement that hits a locked database.
	MaxAttempts int
	// RetryInitial is the first back-off interval; each retry doubles it.
	RetryInitial time.Duration
	// BusyTimeout is how long SQLite itself waits on a lock before reporting busy.
	BusyTimeout time.Duration
	Observer    Observer
	Clock       clock.Clock
	Logger      log.Logger
}

// Store is a pooled SQLite adapter exposing parameterized execute and fetch
// operations with lock retry, error translation and per-statement metrics.
type Store struct {
	pool         *sqlitex.Pool
	maxAttempts  int
	retryInitial time.Duration
	observer     Observer
	clock        clock.Clock
	logger       log.Logger

	schemaMu    sync.Mutex
	schemaReady bool
}

// Open creates the connection pool. The schema is created lazily on first use.
func Open(opts Options) (*Store, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if dir := filepath.Dir(opts.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	if opts.PoolSize <= 0 {
		opts.PoolSize = defaultPoolSize
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.RetryInitial <= 0 {
		opts.RetryInitial = defaultRetryInitial
	}
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = defaultBusyTimeout
	}
	if opts.Clock == nil {
		opts.Clock = &clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}

	busyMillis := opts.BusyTimeout.Milliseconds()
	pool, err := sqlitex.NewPool(opts.Path, sqlitex.PoolOptions{
		PoolSize: opts.PoolSize,
		PrepareConn: func(conn *sqlite.Conn) error {
			if err := sqlitex.ExecuteTransient(conn, "PRAGMA foreign_keys = ON;", nil); err != nil {
				return err
			}
			return sqlitex.ExecuteTransient(conn, fmt.Sprintf("PRAGMA busy_timeout = %d;", busyMillis), nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", opts.Path, err)
	}

	return &Store{
		pool:         pool,
		maxAttempts:  opts.MaxAttempts,
		retryInitial: opts.RetryInitial,
		observer:     opts.Observer,
		clock:        opts.Clock,
		logger:       opts.Logger,
	}, nil
}

// Close releases every pooled connection.
func (s *Store) Close() error {
	return s.pool.Close()
}

// EnsureSchema creates the tables and index if they do not exist.
// It is safe to call repeatedly; a failed attempt is retried on the next call.
func (s *Store) EnsureSchema(ctx context.Context) error {
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()
	if s.schemaReady {
		return nil
	}
	err := s.withRetry(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.ExecuteScript(conn, schema, nil)
	})
	if err != nil {
		return translate(err)
	}
	s.schemaReady = true
	s.logger.Debug(nil, "schema ready")
	return nil
}

// Execute runs a write statement and returns the last inserted row id.
func (s *Store) Execute(ctx context.Context, query string, args ...any) (int64, error) {
	var lastID, changes int64
	err := s.run(ctx, query, args, func(conn *sqlite.Conn, bound []any) error {
		if err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{Args: bound}); err != nil {
			return err
		}
		lastID = conn.LastInsertRowID()
		changes = int64(conn.Changes())
		return nil
	}, func() int64 { return changes })
	if err != nil {
		return 0, err
	}
	return lastID, nil
}

// FetchOne returns the first row of the result, or found=false when there is none.
func (s *Store) FetchOne(ctx context.Context, query string, args ...any) (row Row, found bool, err error) {
	err = s.run(ctx, query, args, func(conn *sqlite.Conn, bound []any) error {
		row, found = nil, false
		return sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
			Args: bound,
			ResultFunc: func(stmt *sqlite.Stmt) error {
				if !found {
					row, found = scanRow(stmt), true
				}
				return nil
			},
		})
	}, func() int64 {
		if found {
			return 1
		}
		return 0
	})
	if err != nil {
		return nil, false, err
	}
	return row, found, nil
}

// FetchAll returns every row of the result in statement order.
func (s *Store) FetchAll(ctx context.Context, query string, args ...any) ([]Row, error) {
	var rows []Row
	err := s.run(ctx, query, args, func(conn *sqlite.Conn, bound []any) error {
		rows = rows[:0]
		return sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
			Args: bound,
			ResultFunc: func(stmt *sqlite.Stmt) error {
				rows = append(rows, scanRow(stmt))
				return nil
			},
		})
	}, func() int64 { return int64(len(rows)) })
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// run ensures the schema, normalizes args, executes fn with lock retry,
// reports the metric and translates the final error.
func (s *Store) run(ctx context.Context, query string, args []any, fn func(*sqlite.Conn, []any) error, rows func() int64) error {
	start := s.clock.Now()
	bound, err := normalizeArgs(args)
	if err == nil {
		err = s.EnsureSchema(ctx)
	}
	if err == nil {
		err = s.withRetry(ctx, func(conn *sqlite.Conn) error {
			return fn(conn, bound)
		})
	}
	if err != nil {
		err = translate(err)
		s.logger.Error(map[string]any{
			"query": compactQuery(query),
			"error": err,
		}, "database operation failed")
	}
	s.observe(query, args, start, rows(), err)
	return err
}

// withRetry takes a pooled connection and runs fn, retrying with
// exponential back-off only while the database reports a lock.
func (s *Store) withRetry(ctx context.Context, fn func(*sqlite.Conn) error) error {
	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(s.retryInitial),
		backoff.WithMultiplier(2),
		backoff.WithRandomizationFactor(0),
		backoff.WithMaxInterval(time.Minute),
		backoff.WithMaxElapsedTime(0),
	), uint64(s.maxAttempts-1))

	attempt := 0
	var lastLock error
	err := backoff.RetryNotify(func() error {
		attempt++
		conn, err := s.pool.Take(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		defer s.pool.Put(conn)

		err = fn(conn)
		if err == nil {
			return nil
		}
		if isLocked(err) {
			lastLock = err
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
		s.logger.Warn(map[string]any{
			"attempt": attempt,
			"max":     s.maxAttempts,
			"wait":    next.String(),
		}, "database locked, retrying")
	})
	if err != nil && lastLock != nil && isLocked(err) {
		return fmt.Errorf("failed after %d attempts: %w", attempt, err)
	}
	return err
}

func (s *Store) observe(query string, args []any, start time.Time, rows int64, err error) {
	if s.observer == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(map[string]any{"panic": fmt.Sprint(r)}, "operation observer panicked")
		}
	}()

	op := operationKind(query)
	m := domain.OperationMetric{
		Operation: op,
		Table:     tableName(query, op),
		GuildID:   guildIDFromArgs(args),
		Duration:  s.clock.Now().Sub(start),
		Rows:      rows,
		Success:   err == nil,
		Timestamp: start,
	}
	if err != nil {
		m.Error = err.Error()
	}
	s.observer.Observe(m)
}

// isLocked reports whether err is SQLite lock contention.
func isLocked(err error) bool {
	switch sqlite.ErrCode(err).ToPrimary() {
	case sqlite.ResultBusy, sqlite.ResultLocked:
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "database is locked")
}

// translate maps engine errors onto the domain store error kinds.
// Errors already carrying a domain kind pass through.
func translate(err error) error {
	if err == nil || domain.IsStoreError(err) {
		return err
	}
	code := sqlite.ErrCode(err)
	switch code {
	case sqlite.ResultConstraintUnique, sqlite.ResultConstraintPrimaryKey, sqlite.ResultConstraintForeignKey:
		return fmt.Errorf("%w: %w", domain.ErrIntegrityViolation, err)
	}
	return fmt.Errorf("%w: %w", domain.ErrOperationFailure, err)
}

func scanRow(stmt *sqlite.Stmt) Row {
	n := stmt.ColumnCount()
	row := make(Row, n)
	for i := 0; i < n; i++ {
		name := stmt.ColumnName(i)
		switch stmt.ColumnType(i) {
		case sqlite.TypeInteger:
			row[name] = stmt.ColumnInt64(i)
		case sqlite.TypeFloat:
			row[name] = stmt.ColumnFloat(i)
		case sqlite.TypeText:
			row[name] = stmt.ColumnText(i)
		case sqlite.TypeBlob:
			buf := make([]byte, stmt.ColumnLen(i))
			stmt.ColumnBytes(i, buf)
			row[name] = buf
		default:
			row[name] = nil
		}
	}
	return row
}

func compactQuery(query string) string {
	return strings.Join(strings.Fields(query), " ")
}
