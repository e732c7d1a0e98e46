package discord

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/haukened/reactguard/internal/guard/common/log"
	"github.com/haukened/reactguard/internal/guard/domain"
	"github.com/haukened/reactguard/internal/guard/services/moderation"
)

// DefaultEventTimeout bounds the handling of one gateway event.
const DefaultEventTimeout = 30 * time.Second

const intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessageReactions

// Handler consumes translated gateway events.
type Handler interface {
	HandleReaction(ctx context.Context, ev moderation.ReactionEvent) (moderation.Outcome, error)
	GuildJoined(ctx context.Context, guildID int64) domain.GuildConfig
	GuildLeft(guildID int64)
}

// Options configures a Gateway.
type Options struct {
	Token        string
	EventTimeout time.Duration
	Logger       log.Logger
}

// Gateway owns the discordgo session. It translates inbound events for a
// Handler and implements moderation.Platform for the outbound calls.
type Gateway struct {
	session *discordgo.Session
	handler Handler
	timeout time.Duration
	selfID  atomic.Int64
	logger  log.Logger

	base   context.Context
	cancel context.CancelFunc
}

// New creates a session for token. It does not connect.
func New(opts Options) (*Gateway, error) {
	if opts.Token == "" {
		return nil, errors.New("discord token is required")
	}
	if opts.EventTimeout <= 0 {
		opts.EventTimeout = DefaultEventTimeout
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	s, err := discordgo.New("Bot " + opts.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	s.Identify.Intents = intents
	base, cancel := context.WithCancel(context.Background())
	return &Gateway{
		session: s,
		timeout: opts.EventTimeout,
		logger:  opts.Logger.Named("discord"),
		base:    base,
		cancel:  cancel,
	}, nil
}

// Bind registers h for reaction and guild lifecycle events.
func (g *Gateway) Bind(h Handler) {
	g.handler = h
	g.session.AddHandler(g.onReady)
	g.session.AddHandler(g.onReactionAdd)
	g.session.AddHandler(g.onGuildCreate)
	g.session.AddHandler(g.onGuildDelete)
}

// Open connects to the gateway.
func (g *Gateway) Open() error {
	if err := g.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}
	if u := g.session.State.User; u != nil {
		g.setSelf(u.ID)
	}
	g.logger.Info(map[string]any{"self_id": g.SelfID()}, "connected to Discord")
	return nil
}

// Close cancels in-flight event handling and disconnects.
func (g *Gateway) Close() error {
	g.cancel()
	return g.session.Close()
}

func (g *Gateway) setSelf(id string) {
	if v, err := parseID(id); err == nil {
		g.selfID.Store(v)
	}
}

func (g *Gateway) eventContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(g.base, g.timeout)
}

func (g *Gateway) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	if r.User != nil {
		g.setSelf(r.User.ID)
	}
	g.logger.Info(map[string]any{"guilds": len(r.Guilds)}, "gateway ready")
}

func (g *Gateway) onReactionAdd(_ *discordgo.Session, r *discordgo.MessageReactionAdd) {
	if r.MessageReaction == nil {
		return
	}
	ev, err := toReactionEvent(r.MessageReaction)
	if err != nil {
		g.logger.Warn(map[string]any{"error": err}, "dropping malformed reaction event")
		return
	}
	ctx, cancel := g.eventContext()
	defer cancel()
	out, err := g.handler.HandleReaction(ctx, ev)
	fields := map[string]any{"guild_id": ev.GuildID, "user_id": ev.UserID, "outcome": out.String()}
	if err != nil {
		fields["error"] = err
		g.logger.Error(fields, "failed to handle reaction")
		return
	}
	g.logger.Debug(fields, "handled reaction")
}

func (g *Gateway) onGuildCreate(_ *discordgo.Session, e *discordgo.GuildCreate) {
	if e.Guild == nil {
		return
	}
	id, err := parseID(e.ID)
	if err != nil {
		return
	}
	ctx, cancel := g.eventContext()
	defer cancel()
	g.handler.GuildJoined(ctx, id)
}

func (g *Gateway) onGuildDelete(_ *discordgo.Session, e *discordgo.GuildDelete) {
	if e.Guild == nil {
		return
	}
	// Unavailable guilds are outages, not removals.
	if e.Unavailable {
		return
	}
	if id, err := parseID(e.ID); err == nil {
		g.handler.GuildLeft(id)
	}
}
