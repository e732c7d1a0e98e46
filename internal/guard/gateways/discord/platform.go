package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/haukened/reactguard/internal/guard/services/moderation"
)

var _ moderation.Platform = (*Gateway)(nil)

// SelfID returns the bot's own user id, zero before the first Ready.
func (g *Gateway) SelfID() int64 { return g.selfID.Load() }

// GuildName returns the cached guild name, or the id when the guild is not cached.
func (g *Gateway) GuildName(_ context.Context, guildID int64) string {
	if guild, err := g.session.State.Guild(formatID(guildID)); err == nil && guild.Name != "" {
		return guild.Name
	}
	return formatID(guildID)
}

// Member resolves the reacting user, preferring the state cache.
func (g *Gateway) Member(ctx context.Context, guildID, userID int64) (moderation.Member, error) {
	gid, uid := formatID(guildID), formatID(userID)
	m, err := g.session.State.Member(gid, uid)
	if err != nil {
		m, err = g.session.GuildMember(gid, uid, discordgo.WithContext(ctx))
		if err != nil {
			return moderation.Member{}, err
		}
	}
	out := moderation.Member{UserID: userID}
	if m.User != nil {
		out.Name = m.User.Username
		out.Bot = m.User.Bot
	}
	if guild, err := g.session.State.Guild(gid); err == nil {
		out.ManageMessages = guildPermissions(guild, m)&discordgo.PermissionManageMessages != 0
	}
	return out, nil
}

// CanModerate checks the bot's own permissions in the channel.
func (g *Gateway) CanModerate(ctx context.Context, _ int64, channelID int64) (bool, error) {
	self := formatID(g.SelfID())
	perms, err := g.session.State.UserChannelPermissions(self, formatID(channelID))
	if err != nil {
		perms, err = g.session.UserChannelPermissions(self, formatID(channelID), discordgo.WithContext(ctx))
		if err != nil {
			return false, err
		}
	}
	const need = discordgo.PermissionManageMessages | discordgo.PermissionModerateMembers
	return perms&need == need, nil
}

// RemoveReaction removes the reaction ev describes.
func (g *Gateway) RemoveReaction(ctx context.Context, ev moderation.ReactionEvent) error {
	return g.session.MessageReactionRemove(
		formatID(ev.ChannelID), formatID(ev.MessageID), apiName(ev.Emoji), formatID(ev.UserID),
		discordgo.WithContext(ctx),
	)
}

// Timeout restricts the member until the given time.
func (g *Gateway) Timeout(ctx context.Context, guildID, userID int64, until time.Time, reason string) error {
	return g.session.GuildMemberTimeout(formatID(guildID), formatID(userID), &until,
		discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
}

// SendChannelMessage posts content to a channel.
func (g *Gateway) SendChannelMessage(ctx context.Context, channelID int64, content string) error {
	_, err := g.session.ChannelMessageSend(formatID(channelID), content, discordgo.WithContext(ctx))
	return err
}

// SendDM opens a direct channel with the user and posts content.
func (g *Gateway) SendDM(ctx context.Context, userID int64, content string) error {
	ch, err := g.session.UserChannelCreate(formatID(userID), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("open DM channel: %w", err)
	}
	_, err = g.session.ChannelMessageSend(ch.ID, content, discordgo.WithContext(ctx))
	return err
}
