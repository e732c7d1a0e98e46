package domain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }
func boolPtr(v bool) *bool    { return &v }

func TestNewDefaultGuildConfig(t *testing.T) {
	c := NewDefaultGuildConfig(7)
	assert.Equal(t, int64(7), c.GuildID)
	assert.Equal(t, 300, c.TimeoutDuration)
	assert.False(t, c.DMOnTimeout)
	assert.Nil(t, c.LogChannelID)
	assert.False(t, c.HasLogChannel())
	assert.True(t, c.CreatedAt.IsZero())
}

func TestGuildConfigPatch_Validate(t *testing.T) {
	tests := []struct {
		name       string
		patch      GuildConfigPatch
		wantFields []string
	}{
		{name: "empty", patch: GuildConfigPatch{}},
		{name: "valid all", patch: GuildConfigPatch{LogChannelID: int64Ptr(5), TimeoutDuration: intPtr(600), DMOnTimeout: boolPtr(true)}},
		{name: "zero timeout", patch: GuildConfigPatch{TimeoutDuration: intPtr(0)}},
		{name: "max timeout", patch: GuildConfigPatch{TimeoutDuration: intPtr(MaxTimeoutDuration)}},
		{name: "clear channel", patch: GuildConfigPatch{ClearLogChannel: true}},
		{name: "negative timeout", patch: GuildConfigPatch{TimeoutDuration: intPtr(-1), DMOnTimeout: boolPtr(true)}, wantFields: []string{"timeout_duration"}},
		{name: "timeout too large", patch: GuildConfigPatch{TimeoutDuration: intPtr(MaxTimeoutDuration + 1)}, wantFields: []string{"timeout_duration"}},
		{name: "zero channel", patch: GuildConfigPatch{LogChannelID: int64Ptr(0)}, wantFields: []string{"log_channel_id"}},
		{name: "set and clear", patch: GuildConfigPatch{LogChannelID: int64Ptr(3), ClearLogChannel: true}, wantFields: []string{"log_channel_id"}},
		{name: "all bad", patch: GuildConfigPatch{LogChannelID: int64Ptr(-3), TimeoutDuration: intPtr(-5)}, wantFields: []string{"log_channel_id", "timeout_duration"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.patch.Validate()
			if len(tt.wantFields) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))

			var got []string
			for _, e := range err.(interface{ Unwrap() []error }).Unwrap() {
				var ve *ValidationError
				require.True(t, errors.As(e, &ve))
				assert.NotEmpty(t, ve.Constraint)
				got = append(got, ve.Field)
			}
			assert.ElementsMatch(t, tt.wantFields, got)
		})
	}
}

func TestGuildConfigPatch_Apply(t *testing.T) {
	base := NewDefaultGuildConfig(1)
	base.LogChannelID = int64Ptr(10)

	out := GuildConfigPatch{TimeoutDuration: intPtr(60), DMOnTimeout: boolPtr(true)}.Apply(base)
	assert.Equal(t, 60, out.TimeoutDuration)
	assert.True(t, out.DMOnTimeout)
	require.NotNil(t, out.LogChannelID)
	assert.Equal(t, int64(10), *out.LogChannelID)

	// the copy must not alias the input pointer
	*out.LogChannelID = 99
	assert.Equal(t, int64(10), *base.LogChannelID)

	cleared := GuildConfigPatch{ClearLogChannel: true}.Apply(base)
	assert.Nil(t, cleared.LogChannelID)
	assert.True(t, GuildConfigPatch{}.IsEmpty())
	assert.False(t, GuildConfigPatch{ClearLogChannel: true}.IsEmpty())
}

func TestActorContext(t *testing.T) {
	_, ok := ActorFrom(context.Background())
	assert.False(t, ok)

	ctx := WithActor(context.Background(), Actor{UserID: 3, Command: "blacklist add"})
	a, ok := ActorFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, int64(3), a.UserID)
	assert.Equal(t, "blacklist add", a.Command)
}

func TestOperationMetric_Key(t *testing.T) {
	m := OperationMetric{Operation: "SELECT", Table: "guild_configs", Success: true}
	assert.Equal(t, "SELECT_guild_configs", m.Key())
	m.Success = false
	assert.Equal(t, "SELECT_guild_configs_FAILED", m.Key())
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{Field: "timeout_duration", Constraint: "must be positive"}
	assert.Equal(t, "timeout_duration must be positive", err.Error())
	assert.ErrorIs(t, err, ErrValidation)
	assert.False(t, IsStoreError(err))
	assert.True(t, IsStoreError(ErrOperationFailure))
}
