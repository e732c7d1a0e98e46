package compat

import (
	"context"

	"github.com/haukened/reactguard/internal/guard/domain"
)

// Blacklist is the per-guild blacklist manager the legacy views delegate to.
type Blacklist interface {
	Add(ctx context.Context, guildID int64, e domain.Emoji) (bool, error)
	Remove(ctx context.Context, guildID int64, e domain.Emoji) (bool, error)
	RemoveByID(ctx context.Context, guildID int64, id int64) (bool, error)
	IsBlacklisted(ctx context.Context, guildID int64, e domain.Emoji) bool
	GetAll(ctx context.Context, guildID int64) []domain.BlacklistEntry
	DisplayStrings(ctx context.Context, guildID int64) []string
	Clear(ctx context.Context, guildID int64) error
	MigrateFromLegacy(ctx context.Context, guildID int64, unicode []string, customIDs []int64, names map[int64]string) error
}
