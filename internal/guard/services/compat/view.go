package compat

import (
	"context"
	"sort"
	"strconv"

	"github.com/haukened/reactguard/internal/guard/common/log"
	"github.com/haukened/reactguard/internal/guard/domain"
)

// EmojiBlacklist exposes one guild's blacklist through the older
// single-tenant API: booleans instead of errors, and a legacy document view.
type EmojiBlacklist struct {
	guildID   int64
	blacklist Blacklist
	logger    log.Logger
}

// NewEmojiBlacklist returns a view of guildID's blacklist.
func NewEmojiBlacklist(bl Blacklist, guildID int64, logger log.Logger) *EmojiBlacklist {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &EmojiBlacklist{guildID: guildID, blacklist: bl, logger: logger}
}

// GuildID returns the guild this view manages.
func (v *EmojiBlacklist) GuildID() int64 { return v.guildID }

// Add reports whether e was newly blacklisted. Errors are logged and reported as false.
func (v *EmojiBlacklist) Add(ctx context.Context, e domain.Emoji) bool {
	added, err := v.blacklist.Add(ctx, v.guildID, e)
	if err != nil {
		v.logger.Error(map[string]any{"guild_id": v.guildID, "error": err}, "failed to add emoji to blacklist")
		return false
	}
	return added
}

// Remove reports whether e was removed. Errors are logged and reported as false.
func (v *EmojiBlacklist) Remove(ctx context.Context, e domain.Emoji) bool {
	removed, err := v.blacklist.Remove(ctx, v.guildID, e)
	if err != nil {
		v.logger.Error(map[string]any{"guild_id": v.guildID, "error": err}, "failed to remove emoji from blacklist")
		return false
	}
	return removed
}

// RemoveID removes a custom emoji by its platform identity.
func (v *EmojiBlacklist) RemoveID(ctx context.Context, id int64) bool {
	removed, err := v.blacklist.RemoveByID(ctx, v.guildID, id)
	if err != nil {
		v.logger.Error(map[string]any{"guild_id": v.guildID, "error": err}, "failed to remove emoji from blacklist")
		return false
	}
	return removed
}

// IsBlacklisted reports whether e is blacklisted in this guild.
func (v *EmojiBlacklist) IsBlacklisted(ctx context.Context, e domain.Emoji) bool {
	return v.blacklist.IsBlacklisted(ctx, v.guildID, e)
}

// EmojiDisplay renders e as the platform shows it.
func (v *EmojiBlacklist) EmojiDisplay(e domain.Emoji) string {
	return e.Display()
}

// AllDisplay renders every blacklisted emoji.
func (v *EmojiBlacklist) AllDisplay(ctx context.Context) []string {
	return v.blacklist.DisplayStrings(ctx, v.guildID)
}

// ClearAll empties the guild's blacklist. Failures are logged.
func (v *EmojiBlacklist) ClearAll(ctx context.Context) {
	if err := v.blacklist.Clear(ctx, v.guildID); err != nil {
		v.logger.Error(map[string]any{"guild_id": v.guildID, "error": err}, "failed to clear blacklist")
	}
}

// ToLegacy snapshots the guild's blacklist in the legacy document shape.
// Values are sorted so the document is stable across calls.
func (v *EmojiBlacklist) ToLegacy(ctx context.Context) domain.LegacyBlacklist {
	doc := domain.LegacyBlacklist{
		UnicodeEmojis:    []string{},
		CustomEmojiIDs:   []int64{},
		CustomEmojiNames: map[string]string{},
	}
	for _, e := range v.blacklist.GetAll(ctx, v.guildID) {
		if e.Type == domain.EmojiUnicode {
			doc.UnicodeEmojis = append(doc.UnicodeEmojis, e.Value)
			continue
		}
		id, err := strconv.ParseInt(e.Value, 10, 64)
		if err != nil {
			v.logger.Warn(map[string]any{"guild_id": v.guildID, "emoji_value": e.Value}, "skipping malformed custom emoji id")
			continue
		}
		doc.CustomEmojiIDs = append(doc.CustomEmojiIDs, id)
		if e.Name != nil && *e.Name != "" {
			doc.CustomEmojiNames[e.Value] = *e.Name
		}
	}
	sort.Strings(doc.UnicodeEmojis)
	sort.Slice(doc.CustomEmojiIDs, func(i, j int) bool { return doc.CustomEmojiIDs[i] < doc.CustomEmojiIDs[j] })
	return doc
}

// FromLegacy replaces the guild's blacklist with the contents of doc.
func (v *EmojiBlacklist) FromLegacy(ctx context.Context, doc domain.LegacyBlacklist) error {
	return v.blacklist.MigrateFromLegacy(ctx, v.guildID, doc.UnicodeEmojis, doc.CustomEmojiIDs, doc.NamesByID())
}
