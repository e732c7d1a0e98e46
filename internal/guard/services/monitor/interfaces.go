package monitor

import "github.com/haukened/reactguard/internal/guard/domain"

// AuditSink persists audit records and answers per-guild history queries.
type AuditSink interface {
	Append(rec domain.AuditRecord) error
	History(guildID int64, limit int) ([]domain.AuditRecord, error)
}
