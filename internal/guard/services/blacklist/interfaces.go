package blacklist

import (
	"context"

	"github.com/haukened/reactguard/internal/guard/domain"
	"github.com/haukened/reactguard/internal/guard/repos/store"
)

// Store is the subset of the persistent store adapter the manager needs.
type Store interface {
	Execute(ctx context.Context, query string, args ...any) (int64, error)
	FetchOne(ctx context.Context, query string, args ...any) (store.Row, bool, error)
	FetchAll(ctx context.Context, query string, args ...any) ([]store.Row, error)
}

// ConfigEnsurer materializes a guild's config row, which blacklist rows reference.
// It returns an error while the row cannot be written.
type ConfigEnsurer interface {
	Ensure(ctx context.Context, guildID int64) (domain.GuildConfig, error)
}

// Auditor receives a record for every blacklist mutation.
type Auditor interface {
	Audit(ctx context.Context, rec domain.AuditRecord)
}
