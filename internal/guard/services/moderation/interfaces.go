package moderation

import (
	"context"
	"time"

	"github.com/haukened/reactguard/internal/guard/domain"
	"github.com/haukened/reactguard/internal/guard/repos/cooldown"
)

// Member is what moderation needs to know about the reacting user.
type Member struct {
	UserID         int64
	Name           string
	Bot            bool
	ManageMessages bool
}

// Platform performs the outbound chat actions.
type Platform interface {
	SelfID() int64
	GuildName(ctx context.Context, guildID int64) string
	Member(ctx context.Context, guildID, userID int64) (Member, error)
	// CanModerate reports whether the bot may remove reactions in channelID and time out members.
	CanModerate(ctx context.Context, guildID, channelID int64) (bool, error)
	RemoveReaction(ctx context.Context, ev ReactionEvent) error
	Timeout(ctx context.Context, guildID, userID int64, until time.Time, reason string) error
	SendChannelMessage(ctx context.Context, channelID int64, content string) error
	SendDM(ctx context.Context, userID int64, content string) error
}

// ConfigSource supplies per-guild moderation settings.
type ConfigSource interface {
	Get(ctx context.Context, guildID int64) domain.GuildConfig
	Evict(guildID int64)
}

// BlacklistSource answers membership queries.
type BlacklistSource interface {
	IsBlacklisted(ctx context.Context, guildID int64, e domain.Emoji) bool
	Evict(guildID int64)
}

// Cooldown suppresses repeated timeouts for the same member.
type Cooldown interface {
	Allow(k cooldown.Key) bool
	Forget(guildID int64)
}
