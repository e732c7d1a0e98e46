package moderation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/haukened/reactguard/internal/guard/common/clock"
	"github.com/haukened/reactguard/internal/guard/common/log"
	"github.com/haukened/reactguard/internal/guard/domain"
	"github.com/haukened/reactguard/internal/guard/repos/cooldown"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	selfID  = 1
	guildID = 100
	userID  = 42
	chanID  = 7
)

type timeoutCall struct {
	guildID, userID int64
	until           time.Time
	reason          string
}

type fakePlatform struct {
	mu          sync.Mutex
	member      Member
	memberErr   error
	canModerate bool
	removeErr   error
	timeoutErr  error
	sendErr     error
	removed     []ReactionEvent
	timeouts    []timeoutCall
	channelMsgs map[int64][]string
	dms         map[int64][]string
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		member:      Member{UserID: userID, Name: "spammer"},
		canModerate: true,
		channelMsgs: map[int64][]string{},
		dms:         map[int64][]string{},
	}
}

func (f *fakePlatform) SelfID() int64                           { return selfID }
func (f *fakePlatform) GuildName(context.Context, int64) string { return "Test Guild" }
func (f *fakePlatform) Member(context.Context, int64, int64) (Member, error) {
	return f.member, f.memberErr
}

func (f *fakePlatform) CanModerate(context.Context, int64, int64) (bool, error) {
	return f.canModerate, nil
}

func (f *fakePlatform) RemoveReaction(_ context.Context, ev ReactionEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.removeErr != nil {
		return f.removeErr
	}
	f.removed = append(f.removed, ev)
	return nil
}

func (f *fakePlatform) Timeout(_ context.Context, g, u int64, until time.Time, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.timeoutErr != nil {
		return f.timeoutErr
	}
	f.timeouts = append(f.timeouts, timeoutCall{g, u, until, reason})
	return nil
}

func (f *fakePlatform) SendChannelMessage(_ context.Context, ch int64, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channelMsgs[ch] = append(f.channelMsgs[ch], content)
	return f.sendErr
}

func (f *fakePlatform) SendDM(_ context.Context, u int64, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dms[u] = append(f.dms[u], content)
	return f.sendErr
}

type fakeConfigs struct {
	cfg     domain.GuildConfig
	evicted []int64
}

func (f *fakeConfigs) Get(_ context.Context, g int64) domain.GuildConfig {
	cfg := f.cfg.Clone()
	cfg.GuildID = g
	return cfg
}

func (f *fakeConfigs) Evict(g int64) { f.evicted = append(f.evicted, g) }

type fakeBlacklist struct {
	banned  map[string]bool
	evicted []int64
}

func (f *fakeBlacklist) IsBlacklisted(_ context.Context, _ int64, e domain.Emoji) bool {
	return f.banned[e.Display()]
}

func (f *fakeBlacklist) Evict(g int64) { f.evicted = append(f.evicted, g) }

type fixture struct {
	mod       *Moderator
	platform  *fakePlatform
	configs   *fakeConfigs
	blacklist *fakeBlacklist
	cooldown  *cooldown.Tracker
	clock     *clock.MockClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := clock.NewMockClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	cd, err := cooldown.New(16, time.Minute, clk)
	require.NoError(t, err)
	f := &fixture{
		platform:  newFakePlatform(),
		configs:   &fakeConfigs{cfg: domain.NewDefaultGuildConfig(0)},
		blacklist: &fakeBlacklist{banned: map[string]bool{"😀": true, "<:x:555>": true}},
		cooldown:  cd,
		clock:     clk,
	}
	f.mod = New(Options{
		Platform:  f.platform,
		Configs:   f.configs,
		Blacklist: f.blacklist,
		Cooldown:  cd,
		Clock:     clk,
		Logger:    log.NewTestLogger(t),
	})
	return f
}

func reaction(e domain.Emoji) ReactionEvent {
	return ReactionEvent{GuildID: guildID, ChannelID: chanID, MessageID: 9, UserID: userID, Emoji: e}
}

func TestHandleReaction_TimesOutBlacklisted(t *testing.T) {
	f := newFixture(t)
	logCh := int64(555000)
	f.configs.cfg.LogChannelID = &logCh
	f.configs.cfg.DMOnTimeout = true
	f.configs.cfg.TimeoutDuration = 60

	out, err := f.mod.HandleReaction(context.Background(), reaction(domain.CustomEmoji(555, "x")))
	require.NoError(t, err)
	assert.Equal(t, OutcomeTimedOut, out)

	require.Len(t, f.platform.removed, 1)
	require.Len(t, f.platform.timeouts, 1)
	call := f.platform.timeouts[0]
	assert.Equal(t, int64(guildID), call.guildID)
	assert.Equal(t, int64(userID), call.userID)
	assert.Equal(t, f.clock.Now().Add(time.Minute), call.until)
	assert.Equal(t, "Used blacklisted reaction: <:x:555>", call.reason)

	require.Len(t, f.platform.channelMsgs[logCh], 1)
	assert.Contains(t, f.platform.channelMsgs[logCh][0], "**Duration:** 60 seconds")
	assert.Contains(t, f.platform.channelMsgs[logCh][0], "<@42> (spammer)")
	require.Len(t, f.platform.dms[userID], 1)
	assert.Contains(t, f.platform.dms[userID][0], "**Test Guild** for 60 seconds")
}

func TestHandleReaction_Ignored(t *testing.T) {
	tests := []struct {
		name string
		ev   ReactionEvent
		want Outcome
	}{
		{"own reaction", ReactionEvent{GuildID: guildID, UserID: selfID, Emoji: domain.PlainUnicode("😀")}, OutcomeIgnored},
		{"direct message", ReactionEvent{UserID: userID, Emoji: domain.PlainUnicode("😀")}, OutcomeIgnored},
		{"not blacklisted", reaction(domain.PlainUnicode("👍")), OutcomeAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			out, err := f.mod.HandleReaction(context.Background(), tt.ev)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
			assert.Empty(t, f.platform.removed)
			assert.Empty(t, f.platform.timeouts)
		})
	}
}

func TestHandleReaction_ExemptMembers(t *testing.T) {
	for _, m := range []Member{{Bot: true}, {ManageMessages: true}} {
		f := newFixture(t)
		f.platform.member = m
		out, err := f.mod.HandleReaction(context.Background(), reaction(domain.PlainUnicode("😀")))
		require.NoError(t, err)
		assert.Equal(t, OutcomeExempt, out)
		assert.Empty(t, f.platform.removed)
	}
}

func TestHandleReaction_MissingPermission(t *testing.T) {
	f := newFixture(t)
	f.platform.canModerate = false
	out, err := f.mod.HandleReaction(context.Background(), reaction(domain.PlainUnicode("😀")))
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoPermission, out)
	assert.Empty(t, f.platform.removed)
}

func TestHandleReaction_CooldownSuppressesRepeatTimeouts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := reaction(domain.PlainUnicode("😀"))

	out, err := f.mod.HandleReaction(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeTimedOut, out)

	f.clock.Advance(30 * time.Second)
	out, err = f.mod.HandleReaction(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRemoved, out)

	f.clock.Advance(31 * time.Second)
	out, err = f.mod.HandleReaction(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeTimedOut, out)

	assert.Len(t, f.platform.removed, 3)
	assert.Len(t, f.platform.timeouts, 2)
}

func TestHandleReaction_PlatformErrors(t *testing.T) {
	boom := errors.New("boom")

	f := newFixture(t)
	f.platform.memberErr = boom
	_, err := f.mod.HandleReaction(context.Background(), reaction(domain.PlainUnicode("😀")))
	assert.ErrorIs(t, err, boom)

	f = newFixture(t)
	f.platform.removeErr = boom
	_, err = f.mod.HandleReaction(context.Background(), reaction(domain.PlainUnicode("😀")))
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, f.platform.timeouts)

	f = newFixture(t)
	f.platform.timeoutErr = boom
	out, err := f.mod.HandleReaction(context.Background(), reaction(domain.PlainUnicode("😀")))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, OutcomeRemoved, out)
}

func TestHandleReaction_NotificationFailureKeepsOutcome(t *testing.T) {
	f := newFixture(t)
	f.platform.sendErr = errors.New("forbidden")
	f.configs.cfg.DMOnTimeout = true
	f.mod.defaultLogChannel = 999

	out, err := f.mod.HandleReaction(context.Background(), reaction(domain.PlainUnicode("😀")))
	require.NoError(t, err)
	assert.Equal(t, OutcomeTimedOut, out)
	assert.Len(t, f.platform.channelMsgs[999], 1)
	assert.Len(t, f.platform.dms[userID], 1)
}

func TestHandleReaction_NoLogChannelNoDM(t *testing.T) {
	f := newFixture(t)
	out, err := f.mod.HandleReaction(context.Background(), reaction(domain.PlainUnicode("😀")))
	require.NoError(t, err)
	assert.Equal(t, OutcomeTimedOut, out)
	assert.Empty(t, f.platform.channelMsgs)
	assert.Empty(t, f.platform.dms)
}

func TestGuildLifecycle(t *testing.T) {
	f := newFixture(t)
	cfg := f.mod.GuildJoined(context.Background(), 300)
	assert.Equal(t, int64(300), cfg.GuildID)
	assert.Equal(t, domain.DefaultTimeoutDuration, cfg.TimeoutDuration)

	require.True(t, f.cooldown.Allow(cooldown.Key{GuildID: 300, UserID: 1}))
	f.mod.GuildLeft(300)
	assert.Equal(t, []int64{300}, f.configs.evicted)
	assert.Equal(t, []int64{300}, f.blacklist.evicted)
	assert.Zero(t, f.cooldown.Len())
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "timed_out", OutcomeTimedOut.String())
	assert.Equal(t, "unknown", Outcome(99).String())
}
