package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "GUARD_"

// AppConfig holds configuration values parsed from environment variables.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	// LogLevel controls log verbosity: "debug", "info", "warn", or "error".
	LogLevel string `koanf:"log_level" validate:"required,oneof=debug info warn error"`

	// DiscordToken authenticates the bot session. Only the daemon requires it.
	DiscordToken string `koanf:"discord_token"`

	// DBPath is the SQLite database file holding guild configs and blacklists.
	DBPath string `koanf:"db_path" validate:"required"`

	// DBPoolSize is the number of pooled SQLite connections.
	DBPoolSize int `koanf:"db_pool_size" validate:"required,gte=1,lte=64"`

	// AuditDB is the bolt file the audit trail is appended to.
	AuditDB string `koanf:"audit_db" validate:"required"`

	// DefaultTimeout is the restriction duration in seconds for guilds without a stored config.
	DefaultTimeout int `koanf:"default_timeout" validate:"gte=0,lte=2419200"`

	// DefaultDM controls whether restricted users are messaged by default.
	DefaultDM bool `koanf:"default_dm"`

	// DefaultLogChannel is the fallback audit channel id. Zero means none.
	DefaultLogChannel int64 `koanf:"default_log_channel" validate:"gte=0"`

	// SlowQuery is the duration above which a store operation is logged as slow.
	SlowQuery time.Duration `koanf:"slow_query" validate:"gt=0"`

	// RetryInitial is the first back-off interval when the database is locked.
	RetryInitial time.Duration `koanf:"retry_initial" validate:"gt=0"`

	// TimeoutCooldown suppresses repeat timeouts of the same member.
	TimeoutCooldown time.Duration `koanf:"timeout_cooldown" validate:"gte=0"`

	// CompatCacheSize bounds the number of per-guild legacy views kept alive.
	CompatCacheSize int `koanf:"compat_cache_size" validate:"required,gte=1"`

	// BlacklistFile is the legacy JSON blacklist consumed by migration.
	BlacklistFile string `koanf:"blacklist_file" validate:"required"`

	// BackupDir receives pre-migration backups of the legacy file.
	BackupDir string `koanf:"backup_dir" validate:"required"`
}

// DEFAULT_APP_CONFIG defines the defaults applied before environment overrides.
var DEFAULT_APP_CONFIG = AppConfig{
	Env:             "prod",
	LogLevel:        "info",
	DBPath:          "data/reactguard.db",
	DBPoolSize:      4,
	AuditDB:         "data/audit.db",
	DefaultTimeout:  300,
	DefaultDM:       false,
	SlowQuery:       time.Second,
	RetryInitial:    time.Second,
	TimeoutCooldown: time.Minute,
	CompatCacheSize: 256,
	BlacklistFile:   "blacklist.json",
	BackupDir:       "migration_backups",
}

// legacyKeys maps the variable names older deployments used onto config keys.
// They are applied before GUARD_ variables, which win.
var legacyKeys = map[string]string{
	"DISCORD_BOT_TOKEN":        "discord_token",
	"LOG_CHANNEL_ID":           "default_log_channel",
	"TIMEOUT_DURATION_SECONDS": "default_timeout",
	"DM_ON_TIMEOUT":            "default_dm",
	"BLACKLIST_FILE":           "blacklist_file",
}

// defaultLoader loads DEFAULT_APP_CONFIG through the structs provider.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// legacyEnvLoader loads the unprefixed variables listed in legacyKeys.
var legacyEnvLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		TransformFunc: func(key, value string) (string, any) {
			mapped, ok := legacyKeys[key]
			if !ok {
				return "", nil
			}
			return mapped, strings.TrimSpace(value)
		},
	}), nil)
}

// envLoader loads environment variables with the prefix "GUARD_",
// lowercasing keys and stripping the prefix. It can be replaced in tests.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
			return key, strings.TrimSpace(value)
		},
	}), nil)
}

// Load parses environment variables and returns an AppConfig instance.
// It applies default values and runs validation automatically.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	if err := legacyEnvLoader(k); err != nil {
		return nil, fmt.Errorf("error loading legacy env: %w", err)
	}

	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}
