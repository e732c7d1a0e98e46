package discord

import (
	"fmt"
	"strconv"

	"github.com/bwmarrin/discordgo"

	"github.com/haukened/reactguard/internal/guard/domain"
	"github.com/haukened/reactguard/internal/guard/services/moderation"
)

// ToEmoji converts a gateway emoji into the domain variant. An emoji without
// an identity is a unicode emoji carried as a partial object.
func ToEmoji(e discordgo.Emoji) (domain.Emoji, error) {
	if e.ID == "" {
		return domain.PartialUnicode(e.Name), nil
	}
	id, err := parseID(e.ID)
	if err != nil {
		return domain.Emoji{}, fmt.Errorf("%w: %w", domain.ErrParse, err)
	}
	if e.Animated {
		return domain.AnimatedCustomEmoji(id, e.Name), nil
	}
	return domain.CustomEmoji(id, e.Name), nil
}

// apiName renders e as the reaction endpoints expect it.
func apiName(e domain.Emoji) string {
	if e.Shape() == domain.ShapeCustom {
		ge := &discordgo.Emoji{ID: formatID(e.ID()), Name: e.Name()}
		return ge.APIName()
	}
	return e.Name()
}

func toReactionEvent(r *discordgo.MessageReaction) (moderation.ReactionEvent, error) {
	var ev moderation.ReactionEvent
	var err error
	if r.GuildID != "" {
		if ev.GuildID, err = parseID(r.GuildID); err != nil {
			return ev, fmt.Errorf("guild id: %w", err)
		}
	}
	if ev.ChannelID, err = parseID(r.ChannelID); err != nil {
		return ev, fmt.Errorf("channel id: %w", err)
	}
	if ev.MessageID, err = parseID(r.MessageID); err != nil {
		return ev, fmt.Errorf("message id: %w", err)
	}
	if ev.UserID, err = parseID(r.UserID); err != nil {
		return ev, fmt.Errorf("user id: %w", err)
	}
	if ev.Emoji, err = ToEmoji(r.Emoji); err != nil {
		return ev, err
	}
	return ev, nil
}

// guildPermissions folds the member's role permissions the way the client does.
func guildPermissions(g *discordgo.Guild, m *discordgo.Member) int64 {
	if m.User != nil && g.OwnerID == m.User.ID {
		return discordgo.PermissionAll
	}
	held := make(map[string]struct{}, len(m.Roles)+1)
	held[g.ID] = struct{}{} // @everyone shares the guild id
	for _, r := range m.Roles {
		held[r] = struct{}{}
	}
	var perms int64
	for _, role := range g.Roles {
		if _, ok := held[role.ID]; ok {
			perms |= role.Permissions
		}
	}
	if perms&discordgo.PermissionAdministrator != 0 {
		return discordgo.PermissionAll
	}
	return perms
}

func parseID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
