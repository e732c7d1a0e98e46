package cooldown

import (
	"testing"
	"time"

	"github.com/haukened/reactguard/internal/guard/common/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_Window(t *testing.T) {
	clk := clock.NewMockClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	tr, err := New(10, time.Minute, clk)
	require.NoError(t, err)

	k := Key{GuildID: 1, UserID: 2}
	assert.True(t, tr.Allow(k))
	assert.False(t, tr.Allow(k))
	assert.True(t, tr.Allow(Key{GuildID: 2, UserID: 2}), "other guild is independent")

	clk.Advance(59 * time.Second)
	assert.False(t, tr.Allow(k))
	clk.Advance(time.Second)
	assert.True(t, tr.Allow(k))

	hits, misses, _ := tr.Stats()
	assert.Equal(t, uint64(2), hits)
	assert.Equal(t, uint64(3), misses)
}

func TestTracker_DisabledWindow(t *testing.T) {
	tr, err := New(10, 0, nil)
	require.NoError(t, err)
	k := Key{GuildID: 1, UserID: 1}
	assert.True(t, tr.Allow(k))
	assert.True(t, tr.Allow(k))
	assert.Zero(t, tr.Len())
}

func TestTracker_EvictsOldest(t *testing.T) {
	clk := clock.NewMockClock(time.Now())
	tr, err := New(2, time.Minute, clk)
	require.NoError(t, err)

	tr.Allow(Key{1, 1})
	tr.Allow(Key{1, 2})
	tr.Allow(Key{1, 3})
	assert.Equal(t, 2, tr.Len())
	_, _, evictions := tr.Stats()
	assert.Equal(t, uint64(1), evictions)
	assert.True(t, tr.Allow(Key{1, 1}), "evicted member is allowed again")
}

func TestTracker_Forget(t *testing.T) {
	clk := clock.NewMockClock(time.Now())
	tr, err := New(10, time.Minute, clk)
	require.NoError(t, err)

	tr.Allow(Key{1, 1})
	tr.Allow(Key{2, 1})
	tr.Forget(1)
	assert.Equal(t, 1, tr.Len())
	assert.True(t, tr.Allow(Key{1, 1}))
	assert.False(t, tr.Allow(Key{2, 1}))
}

func TestNew_InvalidSize(t *testing.T) {
	_, err := New(0, time.Minute, nil)
	assert.Error(t, err)
}
