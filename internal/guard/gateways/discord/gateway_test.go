package discord

import (
	"context"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/haukened/reactguard/internal/guard/common/log"
	"github.com/haukened/reactguard/internal/guard/domain"
	"github.com/haukened/reactguard/internal/guard/services/moderation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	reactions []moderation.ReactionEvent
	joined    []int64
	left      []int64
}

func (h *recordingHandler) HandleReaction(ctx context.Context, ev moderation.ReactionEvent) (moderation.Outcome, error) {
	if _, ok := ctx.Deadline(); !ok {
		panic("event context has no deadline")
	}
	h.reactions = append(h.reactions, ev)
	return moderation.OutcomeAllowed, nil
}

func (h *recordingHandler) GuildJoined(_ context.Context, guildID int64) domain.GuildConfig {
	h.joined = append(h.joined, guildID)
	return domain.NewDefaultGuildConfig(guildID)
}

func (h *recordingHandler) GuildLeft(guildID int64) { h.left = append(h.left, guildID) }

func newTestGateway(t *testing.T) (*Gateway, *recordingHandler) {
	t.Helper()
	g, err := New(Options{Token: "test-token", Logger: log.NewTestLogger(t)})
	require.NoError(t, err)
	h := &recordingHandler{}
	g.Bind(h)
	t.Cleanup(g.cancel)
	return g, h
}

func TestNew_RequiresToken(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestToEmoji(t *testing.T) {
	tests := []struct {
		name    string
		in      discordgo.Emoji
		want    domain.Emoji
		wantErr bool
	}{
		{"unicode", discordgo.Emoji{Name: "😀"}, domain.PartialUnicode("😀"), false},
		{"custom", discordgo.Emoji{ID: "555", Name: "x"}, domain.CustomEmoji(555, "x"), false},
		{"animated", discordgo.Emoji{ID: "556", Name: "y", Animated: true}, domain.AnimatedCustomEmoji(556, "y"), false},
		{"bad id", discordgo.Emoji{ID: "abc", Name: "x"}, domain.Emoji{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToEmoji(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrParse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAPIName(t *testing.T) {
	assert.Equal(t, "x:555", apiName(domain.CustomEmoji(555, "x")))
	assert.Equal(t, "😀", apiName(domain.PlainUnicode("😀")))
	assert.Equal(t, "👍", apiName(domain.PartialUnicode("👍")))
}

func TestGuildPermissions(t *testing.T) {
	guild := &discordgo.Guild{
		ID:      "1",
		OwnerID: "99",
		Roles: []*discordgo.Role{
			{ID: "1", Permissions: discordgo.PermissionSendMessages},
			{ID: "10", Permissions: discordgo.PermissionManageMessages},
			{ID: "11", Permissions: discordgo.PermissionAdministrator},
		},
	}
	tests := []struct {
		name   string
		member *discordgo.Member
		manage bool
	}{
		{"everyone only", &discordgo.Member{User: &discordgo.User{ID: "5"}}, false},
		{"moderator role", &discordgo.Member{User: &discordgo.User{ID: "5"}, Roles: []string{"10"}}, true},
		{"administrator", &discordgo.Member{User: &discordgo.User{ID: "5"}, Roles: []string{"11"}}, true},
		{"owner", &discordgo.Member{User: &discordgo.User{ID: "99"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			perms := guildPermissions(guild, tt.member)
			assert.Equal(t, tt.manage, perms&discordgo.PermissionManageMessages != 0)
			assert.NotZero(t, perms&discordgo.PermissionSendMessages)
		})
	}
}

func TestOnReactionAdd(t *testing.T) {
	g, h := newTestGateway(t)

	g.onReactionAdd(nil, &discordgo.MessageReactionAdd{MessageReaction: &discordgo.MessageReaction{
		UserID: "42", MessageID: "9", ChannelID: "7", GuildID: "100",
		Emoji: discordgo.Emoji{ID: "555", Name: "x"},
	}})
	g.onReactionAdd(nil, &discordgo.MessageReactionAdd{MessageReaction: &discordgo.MessageReaction{
		UserID: "nope", MessageID: "9", ChannelID: "7",
	}})
	g.onReactionAdd(nil, &discordgo.MessageReactionAdd{})

	require.Len(t, h.reactions, 1)
	assert.Equal(t, moderation.ReactionEvent{
		GuildID: 100, ChannelID: 7, MessageID: 9, UserID: 42, Emoji: domain.CustomEmoji(555, "x"),
	}, h.reactions[0])
}

func TestDirectMessageReactionHasNoGuild(t *testing.T) {
	ev, err := toReactionEvent(&discordgo.MessageReaction{UserID: "1", MessageID: "2", ChannelID: "3", Emoji: discordgo.Emoji{Name: "😀"}})
	require.NoError(t, err)
	assert.Zero(t, ev.GuildID)
}

func TestGuildLifecycleEvents(t *testing.T) {
	g, h := newTestGateway(t)

	g.onGuildCreate(nil, &discordgo.GuildCreate{Guild: &discordgo.Guild{ID: "100"}})
	g.onGuildDelete(nil, &discordgo.GuildDelete{Guild: &discordgo.Guild{ID: "200", Unavailable: true}})
	g.onGuildDelete(nil, &discordgo.GuildDelete{Guild: &discordgo.Guild{ID: "300"}})
	g.onGuildCreate(nil, &discordgo.GuildCreate{})

	assert.Equal(t, []int64{100}, h.joined)
	assert.Equal(t, []int64{300}, h.left)
}

func TestOnReadySetsSelf(t *testing.T) {
	g, _ := newTestGateway(t)
	assert.Zero(t, g.SelfID())
	g.onReady(nil, &discordgo.Ready{User: &discordgo.User{ID: "12345"}})
	assert.Equal(t, int64(12345), g.SelfID())
}
