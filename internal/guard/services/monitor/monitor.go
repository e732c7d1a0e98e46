package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haukened/reactguard/internal/guard/common/clock"
	"github.com/haukened/reactguard/internal/guard/common/log"
	"github.com/haukened/reactguard/internal/guard/domain"
)

// DefaultSlowThreshold is the duration above which a store call is logged as slow.
const DefaultSlowThreshold = time.Second

// OpStats aggregates the durations of one operation key.
type OpStats struct {
	Count int
	Total time.Duration
	Min   time.Duration
	Max   time.Duration
}

// Avg returns the mean duration, or zero when nothing was recorded.
func (s OpStats) Avg() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

// Summary is a point-in-time view of collected metrics.
type Summary struct {
	Stats         map[string]OpStats
	Operations    int
	Failures      int
	SlowOps       int
	SlowThreshold time.Duration
	AuditRecords  int
}

// Options configures a Monitor.
type Options struct {
	SlowThreshold time.Duration
	// Sink receives audit records. Nil keeps audit records in logs only.
	Sink   AuditSink
	Clock  clock.Clock
	Logger log.Logger
}

// Monitor records store call metrics and configuration audit records.
// It is a side channel: no method returns an error that callers must act on
// for correctness, and failures inside it are logged and swallowed.
type Monitor struct {
	mu       sync.Mutex
	stats    map[string]*OpStats
	failures int
	slowOps  int
	audits   int

	slow     time.Duration
	sink     AuditSink
	clock    clock.Clock
	opLog    log.Logger
	perfLog  log.Logger
	auditLog log.Logger
}

// New constructs a Monitor.
func New(opts Options) *Monitor {
	if opts.SlowThreshold <= 0 {
		opts.SlowThreshold = DefaultSlowThreshold
	}
	if opts.Clock == nil {
		opts.Clock = &clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	return &Monitor{
		stats:    make(map[string]*OpStats),
		slow:     opts.SlowThreshold,
		sink:     opts.Sink,
		clock:    opts.Clock,
		opLog:    opts.Logger.Named("monitor.operations"),
		perfLog:  opts.Logger.Named("monitor.performance"),
		auditLog: opts.Logger.Named("monitor.audit"),
	}
}

// Observe records one store call. It satisfies the store's observer hook.
func (m *Monitor) Observe(metric domain.OperationMetric) {
	key := metric.Key()

	m.mu.Lock()
	st, ok := m.stats[key]
	if !ok {
		st = &OpStats{Min: metric.Duration, Max: metric.Duration}
		m.stats[key] = st
	}
	st.Count++
	st.Total += metric.Duration
	if metric.Duration < st.Min {
		st.Min = metric.Duration
	}
	if metric.Duration > st.Max {
		st.Max = metric.Duration
	}
	if !metric.Success {
		m.failures++
	}
	isSlow := metric.Duration > m.slow
	if isSlow {
		m.slowOps++
	}
	m.mu.Unlock()

	fields := map[string]any{
		"operation":   metric.Operation,
		"table":       metric.Table,
		"duration_ms": float64(metric.Duration.Microseconds()) / 1000,
		"rows":        metric.Rows,
		"success":     metric.Success,
	}
	if metric.GuildID != nil {
		fields["guild_id"] = *metric.GuildID
	}
	if metric.Success {
		m.opLog.Debug(fields, "database operation completed")
	} else {
		fields["error"] = metric.Error
		m.opLog.Error(fields, "database operation failed")
	}
	if isSlow {
		m.perfLog.Warn(map[string]any{
			"operation":    key,
			"duration_ms":  metric.Duration.Milliseconds(),
			"threshold_ms": m.slow.Milliseconds(),
		}, "slow database operation")
	}
}

// Stats returns a copy of the per-key statistics.
func (m *Monitor) Stats() map[string]OpStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]OpStats, len(m.stats))
	for k, v := range m.stats {
		out[k] = *v
	}
	return out
}

// Reset clears all collected performance statistics.
func (m *Monitor) Reset() {
	m.mu.Lock()
	m.stats = make(map[string]*OpStats)
	m.failures = 0
	m.slowOps = 0
	m.mu.Unlock()
	m.perfLog.Info(nil, "performance statistics reset")
}

// Summary returns aggregate counters alongside a copy of the statistics.
func (m *Monitor) Summary() Summary {
	stats := m.Stats()
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Summary{
		Stats:         stats,
		Failures:      m.failures,
		SlowOps:       m.slowOps,
		SlowThreshold: m.slow,
		AuditRecords:  m.audits,
	}
	for _, st := range stats {
		s.Operations += st.Count
	}
	return s
}

// Audit stamps rec with an id, a timestamp and the actor carried by ctx,
// logs it and forwards it to the sink.
func (m *Monitor) Audit(ctx context.Context, rec domain.AuditRecord) {
	defer func() {
		if r := recover(); r != nil {
			m.auditLog.Error(map[string]any{"panic": fmt.Sprint(r)}, "audit recording panicked")
		}
	}()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = m.clock.Now()
	}
	if actor, ok := domain.ActorFrom(ctx); ok {
		if rec.UserID == 0 {
			rec.UserID = actor.UserID
		}
		if rec.Command == "" {
			rec.Command = actor.Command
		}
	}

	m.mu.Lock()
	m.audits++
	m.mu.Unlock()

	fields := map[string]any{
		"audit_id":    rec.ID,
		"guild_id":    rec.GuildID,
		"change_type": string(rec.Action),
	}
	if rec.Field != "" {
		fields["field_name"] = rec.Field
	}
	if rec.OldValue != nil {
		fields["old_value"] = rec.OldValue
	}
	if rec.NewValue != nil {
		fields["new_value"] = rec.NewValue
	}
	if rec.UserID != 0 {
		fields["user_id"] = rec.UserID
	}
	if rec.Command != "" {
		fields["command_name"] = rec.Command
	}
	m.auditLog.Info(fields, "configuration change")

	if m.sink == nil {
		return
	}
	if err := m.sink.Append(rec); err != nil {
		m.auditLog.Error(map[string]any{"audit_id": rec.ID, "error": err}, "failed to persist audit record")
	}
}

// History returns up to limit audit records for guildID, newest first.
func (m *Monitor) History(guildID int64, limit int) ([]domain.AuditRecord, error) {
	if m.sink == nil {
		return nil, nil
	}
	return m.sink.History(guildID, limit)
}
