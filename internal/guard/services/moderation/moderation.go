package moderation

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/haukened/reactguard/internal/guard/common/clock"
	"github.com/haukened/reactguard/internal/guard/common/log"
	"github.com/haukened/reactguard/internal/guard/domain"
	"github.com/haukened/reactguard/internal/guard/repos/cooldown"
)

// ReactionEvent is a reaction added to a message. GuildID is zero for direct messages.
type ReactionEvent struct {
	GuildID   int64
	ChannelID int64
	MessageID int64
	UserID    int64
	Emoji     domain.Emoji
}

// Outcome says how far HandleReaction got.
type Outcome int

const (
	OutcomeIgnored Outcome = iota
	OutcomeAllowed
	OutcomeExempt
	OutcomeNoPermission
	OutcomeRemoved
	OutcomeTimedOut
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeAllowed:
		return "allowed"
	case OutcomeExempt:
		return "exempt"
	case OutcomeNoPermission:
		return "no_permission"
	case OutcomeRemoved:
		return "removed"
	case OutcomeTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Options configures a Moderator.
type Options struct {
	Platform  Platform
	Configs   ConfigSource
	Blacklist BlacklistSource
	Cooldown  Cooldown
	// DefaultLogChannel receives moderation notices for guilds without their own log channel. Zero disables it.
	DefaultLogChannel int64
	Clock             clock.Clock
	Logger            log.Logger
}

// Moderator enforces guild blacklists on incoming reactions.
type Moderator struct {
	platform          Platform
	configs           ConfigSource
	blacklist         BlacklistSource
	cooldown          Cooldown
	defaultLogChannel int64
	clock             clock.Clock
	logger            log.Logger
}

// New constructs a Moderator.
func New(opts Options) *Moderator {
	if opts.Clock == nil {
		opts.Clock = &clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	return &Moderator{
		platform:          opts.Platform,
		configs:           opts.Configs,
		blacklist:         opts.Blacklist,
		cooldown:          opts.Cooldown,
		defaultLogChannel: opts.DefaultLogChannel,
		clock:             opts.Clock,
		logger:            opts.Logger.Named("moderation"),
	}
}

// HandleReaction removes a blacklisted reaction and times out its author.
// Notification failures are logged and never change the outcome.
func (m *Moderator) HandleReaction(ctx context.Context, ev ReactionEvent) (Outcome, error) {
	if ev.UserID == m.platform.SelfID() || ev.GuildID == 0 {
		return OutcomeIgnored, nil
	}

	cfg := m.configs.Get(ctx, ev.GuildID)
	if !m.blacklist.IsBlacklisted(ctx, ev.GuildID, ev.Emoji) {
		return OutcomeAllowed, nil
	}

	fields := map[string]any{"guild_id": ev.GuildID, "user_id": ev.UserID, "emoji": ev.Emoji.Display()}
	member, err := m.platform.Member(ctx, ev.GuildID, ev.UserID)
	if err != nil {
		return OutcomeIgnored, fmt.Errorf("fetch member %d: %w", ev.UserID, err)
	}
	if member.Bot || member.ManageMessages {
		m.logger.Debug(fields, "reacting member is exempt")
		return OutcomeExempt, nil
	}

	ok, err := m.platform.CanModerate(ctx, ev.GuildID, ev.ChannelID)
	if err != nil {
		return OutcomeNoPermission, fmt.Errorf("check permissions in channel %d: %w", ev.ChannelID, err)
	}
	if !ok {
		m.logger.Warn(fields, "missing permission to moderate")
		return OutcomeNoPermission, nil
	}

	display := ev.Emoji.Display()
	if err := m.platform.RemoveReaction(ctx, ev); err != nil {
		return OutcomeIgnored, fmt.Errorf("remove reaction: %w", err)
	}
	m.logger.Info(fields, "removed blacklisted reaction")

	if m.cooldown != nil && !m.cooldown.Allow(cooldown.Key{GuildID: ev.GuildID, UserID: ev.UserID}) {
		m.logger.Info(fields, "skipping timeout, cooldown active")
		return OutcomeRemoved, nil
	}

	until := m.clock.Now().Add(time.Duration(cfg.TimeoutDuration) * time.Second)
	if err := m.platform.Timeout(ctx, ev.GuildID, ev.UserID, until, "Used blacklisted reaction: "+display); err != nil {
		return OutcomeRemoved, fmt.Errorf("timeout member %d: %w", ev.UserID, err)
	}
	fields["duration"] = cfg.TimeoutDuration
	m.logger.Info(fields, "timed out member")

	m.notify(ctx, ev, cfg, member, display)
	return OutcomeTimedOut, nil
}

// notify posts to the log channel and optionally DMs the member, in parallel.
func (m *Moderator) notify(ctx context.Context, ev ReactionEvent, cfg domain.GuildConfig, member Member, display string) {
	p := pool.New().WithErrors().WithContext(ctx)
	if ch := m.logChannel(cfg); ch != 0 {
		p.Go(func(ctx context.Context) error {
			msg := fmt.Sprintf("⚠️ **Timeout Applied**\n**User:** <@%d> (%s)\n**Reaction:** %s\n**Channel:** <#%d>\n**Duration:** %d seconds",
				ev.UserID, member.Name, display, ev.ChannelID, cfg.TimeoutDuration)
			if err := m.platform.SendChannelMessage(ctx, ch, msg); err != nil {
				return fmt.Errorf("log channel %d: %w", ch, err)
			}
			return nil
		})
	}
	if cfg.DMOnTimeout {
		p.Go(func(ctx context.Context) error {
			msg := fmt.Sprintf("You have been timed out in **%s** for %d seconds for using the blacklisted reaction: %s",
				m.platform.GuildName(ctx, ev.GuildID), cfg.TimeoutDuration, display)
			if err := m.platform.SendDM(ctx, ev.UserID, msg); err != nil {
				return fmt.Errorf("dm user %d: %w", ev.UserID, err)
			}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		m.logger.Warn(map[string]any{"guild_id": ev.GuildID, "error": err}, "failed to deliver moderation notice")
	}
}

func (m *Moderator) logChannel(cfg domain.GuildConfig) int64 {
	if cfg.HasLogChannel() {
		return *cfg.LogChannelID
	}
	return m.defaultLogChannel
}

// GuildJoined materializes the guild's configuration.
func (m *Moderator) GuildJoined(ctx context.Context, guildID int64) domain.GuildConfig {
	cfg := m.configs.Get(ctx, guildID)
	m.logger.Info(map[string]any{"guild_id": guildID}, "guild joined")
	return cfg
}

// GuildLeft drops every cached value held for the guild. Stored data is kept.
func (m *Moderator) GuildLeft(guildID int64) {
	m.configs.Evict(guildID)
	m.blacklist.Evict(guildID)
	if m.cooldown != nil {
		m.cooldown.Forget(guildID)
	}
	m.logger.Info(map[string]any{"guild_id": guildID}, "guild left")
}
