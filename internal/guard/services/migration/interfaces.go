package migration

import (
	"context"

	"github.com/haukened/reactguard/internal/guard/domain"
)

// SchemaEnsurer creates the store schema when missing.
type SchemaEnsurer interface {
	EnsureSchema(ctx context.Context) error
}

// ConfigManager is the guild configuration surface the migration drives.
type ConfigManager interface {
	CreateDefault(ctx context.Context, guildID int64) domain.GuildConfig
	Delete(ctx context.Context, guildID int64) error
}

// BlacklistManager is the blacklist surface the migration drives.
type BlacklistManager interface {
	MigrateFromLegacy(ctx context.Context, guildID int64, unicode []string, customIDs []int64, names map[int64]string) error
	// Stored reads persisted entries only; cache-only entries must not satisfy validation.
	Stored(ctx context.Context, guildID int64) ([]domain.BlacklistEntry, error)
	Clear(ctx context.Context, guildID int64) error
}
