package config

import (
	"errors"
	"testing"
	"time"

	"github.com/knadh/koanf/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.Env)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "data/reactguard.db", cfg.DBPath)
	assert.Equal(t, 4, cfg.DBPoolSize)
	assert.Equal(t, 300, cfg.DefaultTimeout)
	assert.False(t, cfg.DefaultDM)
	assert.Zero(t, cfg.DefaultLogChannel)
	assert.Equal(t, time.Second, cfg.SlowQuery)
	assert.Equal(t, time.Second, cfg.RetryInitial)
	assert.Equal(t, time.Minute, cfg.TimeoutCooldown)
	assert.Equal(t, "migration_backups", cfg.BackupDir)
}

func TestLoad_ValidOverrides(t *testing.T) {
	t.Setenv("GUARD_ENV", "dev")
	t.Setenv("GUARD_LOG_LEVEL", "debug")
	t.Setenv("GUARD_DB_PATH", "/tmp/guard.db")
	t.Setenv("GUARD_DB_POOL_SIZE", "8")
	t.Setenv("GUARD_DEFAULT_TIMEOUT", "600")
	t.Setenv("GUARD_DEFAULT_DM", "true")
	t.Setenv("GUARD_DEFAULT_LOG_CHANNEL", "123456789012345678")
	t.Setenv("GUARD_SLOW_QUERY", "250ms")
	t.Setenv("GUARD_RETRY_INITIAL", "10ms")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/tmp/guard.db", cfg.DBPath)
	assert.Equal(t, 8, cfg.DBPoolSize)
	assert.Equal(t, 600, cfg.DefaultTimeout)
	assert.True(t, cfg.DefaultDM)
	assert.Equal(t, int64(123456789012345678), cfg.DefaultLogChannel)
	assert.Equal(t, 250*time.Millisecond, cfg.SlowQuery)
	assert.Equal(t, 10*time.Millisecond, cfg.RetryInitial)
}

func TestLoad_LegacyVariables(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "tok")
	t.Setenv("TIMEOUT_DURATION_SECONDS", "120")
	t.Setenv("BLACKLIST_FILE", "/srv/old.json")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "tok", cfg.DiscordToken)
	assert.Equal(t, 120, cfg.DefaultTimeout)
	assert.Equal(t, "/srv/old.json", cfg.BlacklistFile)
}

func TestLoad_PrefixedWinsOverLegacy(t *testing.T) {
	t.Setenv("TIMEOUT_DURATION_SECONDS", "120")
	t.Setenv("GUARD_DEFAULT_TIMEOUT", "90")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 90, cfg.DefaultTimeout)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"bad env", "GUARD_ENV", "staging"},
		{"bad level", "GUARD_LOG_LEVEL", "verbose"},
		{"timeout above max", "GUARD_DEFAULT_TIMEOUT", "2419201"},
		{"negative timeout", "GUARD_DEFAULT_TIMEOUT", "-1"},
		{"zero pool", "GUARD_DB_POOL_SIZE", "0"},
		{"negative channel", "GUARD_DEFAULT_LOG_CHANNEL", "-5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_LoaderErrors(t *testing.T) {
	boom := errors.New("boom")
	failing := func(*koanf.Koanf) error { return boom }

	tests := []struct {
		name   string
		target *func(*koanf.Koanf) error
	}{
		{"defaults", &defaultLoader},
		{"legacy", &legacyEnvLoader},
		{"env", &envLoader},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orig := *tt.target
			*tt.target = failing
			defer func() { *tt.target = orig }()

			_, err := Load()
			assert.ErrorIs(t, err, boom)
		})
	}
}
