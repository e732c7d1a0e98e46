package guildconfig

import (
	"context"

	"github.com/haukened/reactguard/internal/guard/domain"
	"github.com/haukened/reactguard/internal/guard/repos/store"
)

// Store is the subset of the persistent store adapter the manager needs.
type Store interface {
	Execute(ctx context.Context, query string, args ...any) (int64, error)
	FetchOne(ctx context.Context, query string, args ...any) (store.Row, bool, error)
}

// Auditor receives a record for every configuration mutation.
type Auditor interface {
	Audit(ctx context.Context, rec domain.AuditRecord)
}
