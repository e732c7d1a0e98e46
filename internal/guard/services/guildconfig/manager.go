package guildconfig

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/haukened/reactguard/internal/guard/common/clock"
	"github.com/haukened/reactguard/internal/guard/common/log"
	"github.com/haukened/reactguard/internal/guard/domain"
	"github.com/haukened/reactguard/internal/guard/repos/store"
)

const selectConfig = `
	SELECT guild_id, log_channel_id, timeout_duration, dm_on_timeout, created_at, updated_at
	FROM guild_configs
	WHERE guild_id = ?`

const insertConfig = `
	INSERT INTO guild_configs (guild_id, log_channel_id, timeout_duration, dm_on_timeout, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)`

// Defaults are the values a newly materialized guild config starts with.
type Defaults struct {
	TimeoutDuration int
	DMOnTimeout     bool
}

// Options configures a Manager.
type Options struct {
	Store   Store
	Auditor Auditor
	// Defaults overrides the documented defaults (300 seconds, no DM) when set.
	Defaults *Defaults
	Clock    clock.Clock
	Logger   log.Logger
}

// Manager owns per-guild moderation settings, backed by the store and
// fronted by an in-memory cache. Reads never fail: when the store is
// unavailable the cache or an in-memory default is served instead.
type Manager struct {
	store    Store
	auditor  Auditor
	defaults Defaults
	clock    clock.Clock
	logger   log.Logger

	mu    sync.RWMutex
	cache map[int64]domain.GuildConfig
}

// New constructs a Manager.
func New(opts Options) *Manager {
	d := Defaults{TimeoutDuration: domain.DefaultTimeoutDuration}
	if opts.Defaults != nil {
		d = *opts.Defaults
	}
	if opts.Clock == nil {
		opts.Clock = &clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	return &Manager{
		store:    opts.Store,
		auditor:  opts.Auditor,
		defaults: d,
		clock:    opts.Clock,
		logger:   opts.Logger.Named("guildconfig"),
		cache:    make(map[int64]domain.GuildConfig),
	}
}

// Get returns the guild's config, creating and persisting defaults on first access.
func (m *Manager) Get(ctx context.Context, guildID int64) domain.GuildConfig {
	if cfg, ok := m.GetCached(guildID); ok {
		return cfg
	}

	row, found, err := m.store.FetchOne(ctx, selectConfig, guildID)
	if err != nil {
		m.logger.Error(map[string]any{"guild_id": guildID, "error": err}, "failed to load guild config")
		if cfg, ok := m.GetCached(guildID); ok {
			return cfg
		}
		return m.cacheFallback(guildID)
	}
	if !found {
		return m.CreateDefault(ctx, guildID)
	}

	cfg := fromRow(row)
	m.put(cfg)
	return cfg.Clone()
}

// CreateDefault persists a default config for guildID and caches it.
// On store failure the in-memory default is cached and returned instead.
func (m *Manager) CreateDefault(ctx context.Context, guildID int64) domain.GuildConfig {
	cfg, _ := m.create(ctx, m.newDefault(guildID))
	return cfg
}

// Ensure returns the guild's config and guarantees its row exists. A config
// synthesized during a store outage is written now, keeping any settings
// applied to it in the meantime. The error is non-nil while the row is missing.
func (m *Manager) Ensure(ctx context.Context, guildID int64) (domain.GuildConfig, error) {
	cfg, ok := m.GetCached(guildID)
	if !ok {
		cfg = m.Get(ctx, guildID)
	} else if !cfg.Persisted() {
		return m.persistPending(ctx, cfg)
	}
	if !cfg.Persisted() {
		return cfg, notPersisted(guildID)
	}
	return cfg, nil
}

// persistPending writes a cached, never-persisted config. A row written by
// another process in the meantime wins over the cached copy.
func (m *Manager) persistPending(ctx context.Context, cfg domain.GuildConfig) (domain.GuildConfig, error) {
	row, found, err := m.store.FetchOne(ctx, selectConfig, cfg.GuildID)
	if err != nil {
		return cfg, err
	}
	if found {
		existing := fromRow(row)
		m.put(existing)
		return existing.Clone(), nil
	}
	return m.create(ctx, cfg)
}

// create inserts cfg with fresh timestamps and caches the stored value. On
// failure the cached entry (or an in-memory default) is returned with the error.
func (m *Manager) create(ctx context.Context, cfg domain.GuildConfig) (domain.GuildConfig, error) {
	guildID := cfg.GuildID
	now := m.clock.Now()
	cfg.CreatedAt, cfg.UpdatedAt = now, now

	_, err := m.store.Execute(ctx, insertConfig,
		guildID, cfg.LogChannelID, cfg.TimeoutDuration, cfg.DMOnTimeout, now, now)
	if err != nil {
		if errors.Is(err, domain.ErrIntegrityViolation) {
			// Another caller created the row first.
			if row, found, ferr := m.store.FetchOne(ctx, selectConfig, guildID); ferr == nil && found {
				existing := fromRow(row)
				m.put(existing)
				return existing.Clone(), nil
			}
		}
		m.logger.Error(map[string]any{"guild_id": guildID, "error": err}, "failed to create default guild config")
		return m.cacheFallback(guildID), err
	}

	m.put(cfg)
	m.logger.Info(map[string]any{"guild_id": guildID}, "created default guild config")
	m.audit(ctx, domain.AuditRecord{GuildID: guildID, Action: domain.AuditCreate, NewValue: auditValue(cfg)})
	return cfg.Clone(), nil
}

// Update validates patch, then writes the supplied fields. The cached copy is
// updated whether or not the write succeeds; a store failure is still returned.
func (m *Manager) Update(ctx context.Context, guildID int64, patch domain.GuildConfigPatch) (domain.GuildConfig, error) {
	if err := patch.Validate(); err != nil {
		return domain.GuildConfig{}, err
	}

	current, err := m.Ensure(ctx, guildID)
	if patch.IsEmpty() {
		m.logger.Warn(map[string]any{"guild_id": guildID}, "no fields to update")
		return current, nil
	}

	now := m.clock.Now()
	if err == nil {
		sets, args := updateClauses(patch)
		sets = append(sets, "updated_at = ?")
		args = append(args, now, guildID)
		query := fmt.Sprintf("UPDATE guild_configs SET %s WHERE guild_id = ? RETURNING guild_id", strings.Join(sets, ", "))

		var found bool
		_, found, err = m.store.FetchOne(ctx, query, args...)
		if err == nil && !found {
			err = notPersisted(guildID)
		}
	}
	updated := m.applyToCache(guildID, func(c domain.GuildConfig) domain.GuildConfig {
		c = patch.Apply(c)
		c.UpdatedAt = now
		return c
	})
	if err != nil {
		m.logger.Error(map[string]any{"guild_id": guildID, "error": err}, "failed to update guild config")
		return domain.GuildConfig{}, err
	}

	if updated == nil {
		next := patch.Apply(current)
		next.UpdatedAt = now
		updated = &next
	}
	m.logger.Info(map[string]any{"guild_id": guildID, "fields": strings.Join(patchFields(patch), ",")}, "updated guild config")
	for _, rec := range diffRecords(guildID, current, *updated, patch) {
		m.audit(ctx, rec)
	}
	return updated.Clone(), nil
}

// Delete removes the guild's row and evicts the cache entry. The cache is
// evicted even when the store fails; the store error is returned.
func (m *Manager) Delete(ctx context.Context, guildID int64) error {
	_, err := m.store.Execute(ctx, "DELETE FROM guild_configs WHERE guild_id = ?", guildID)
	old, hadCache := m.GetCached(guildID)
	m.Evict(guildID)
	if err != nil {
		m.logger.Error(map[string]any{"guild_id": guildID, "error": err}, "failed to delete guild config")
		return err
	}
	rec := domain.AuditRecord{GuildID: guildID, Action: domain.AuditDelete}
	if hadCache {
		rec.OldValue = auditValue(old)
	}
	m.audit(ctx, rec)
	m.logger.Info(map[string]any{"guild_id": guildID}, "deleted guild config")
	return nil
}

// GetCached returns the cached config without touching the store.
func (m *Manager) GetCached(guildID int64) (domain.GuildConfig, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.cache[guildID]
	if !ok {
		return domain.GuildConfig{}, false
	}
	return cfg.Clone(), true
}

// Evict drops a single guild from the cache.
func (m *Manager) Evict(guildID int64) {
	m.mu.Lock()
	delete(m.cache, guildID)
	m.mu.Unlock()
}

// ClearCache drops every cached config.
func (m *Manager) ClearCache() {
	m.mu.Lock()
	m.cache = make(map[int64]domain.GuildConfig)
	m.mu.Unlock()
	m.logger.Info(nil, "configuration cache cleared")
}

// applyToCache is the single mutation path for cached entries. It returns the
// new cached value, or nil when the guild is not cached.
func (m *Manager) applyToCache(guildID int64, fn func(domain.GuildConfig) domain.GuildConfig) *domain.GuildConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.cache[guildID]
	if !ok {
		return nil
	}
	cfg = fn(cfg)
	m.cache[guildID] = cfg
	out := cfg.Clone()
	return &out
}

func (m *Manager) put(cfg domain.GuildConfig) {
	m.mu.Lock()
	m.cache[cfg.GuildID] = cfg.Clone()
	m.mu.Unlock()
}

// cacheFallback caches and returns an unpersisted default, keeping an entry
// that another caller may have cached in the meantime.
func (m *Manager) cacheFallback(guildID int64) domain.GuildConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cfg, ok := m.cache[guildID]; ok {
		return cfg.Clone()
	}
	cfg := m.newDefault(guildID)
	m.cache[guildID] = cfg
	return cfg.Clone()
}

func (m *Manager) newDefault(guildID int64) domain.GuildConfig {
	cfg := domain.NewDefaultGuildConfig(guildID)
	cfg.TimeoutDuration = m.defaults.TimeoutDuration
	cfg.DMOnTimeout = m.defaults.DMOnTimeout
	return cfg
}

func notPersisted(guildID int64) error {
	return fmt.Errorf("%w: no stored config for guild %d", domain.ErrOperationFailure, guildID)
}

func (m *Manager) audit(ctx context.Context, rec domain.AuditRecord) {
	if m.auditor != nil {
		m.auditor.Audit(ctx, rec)
	}
}

func fromRow(row store.Row) domain.GuildConfig {
	id, _ := row.Int64("guild_id")
	cfg := domain.GuildConfig{
		GuildID:         id,
		LogChannelID:    row.NullInt64("log_channel_id"),
		TimeoutDuration: domain.DefaultTimeoutDuration,
		DMOnTimeout:     row.Bool("dm_on_timeout"),
	}
	if d, ok := row.Int64("timeout_duration"); ok {
		cfg.TimeoutDuration = int(d)
	}
	cfg.CreatedAt, _ = row.Time("created_at")
	cfg.UpdatedAt, _ = row.Time("updated_at")
	return cfg
}

// updateClauses returns one SET clause and argument per supplied field.
func updateClauses(p domain.GuildConfigPatch) ([]string, []any) {
	var sets []string
	var args []any
	switch {
	case p.LogChannelID != nil:
		sets, args = append(sets, "log_channel_id = ?"), append(args, *p.LogChannelID)
	case p.ClearLogChannel:
		sets, args = append(sets, "log_channel_id = ?"), append(args, nil)
	}
	if p.TimeoutDuration != nil {
		sets, args = append(sets, "timeout_duration = ?"), append(args, *p.TimeoutDuration)
	}
	if p.DMOnTimeout != nil {
		sets, args = append(sets, "dm_on_timeout = ?"), append(args, *p.DMOnTimeout)
	}
	return sets, args
}

func patchFields(p domain.GuildConfigPatch) []string {
	var out []string
	if p.LogChannelID != nil || p.ClearLogChannel {
		out = append(out, "log_channel_id")
	}
	if p.TimeoutDuration != nil {
		out = append(out, "timeout_duration")
	}
	if p.DMOnTimeout != nil {
		out = append(out, "dm_on_timeout")
	}
	return out
}

// diffRecords emits one UPDATE record per supplied field.
func diffRecords(guildID int64, before, after domain.GuildConfig, p domain.GuildConfigPatch) []domain.AuditRecord {
	var out []domain.AuditRecord
	for _, field := range patchFields(p) {
		rec := domain.AuditRecord{GuildID: guildID, Action: domain.AuditUpdate, Field: field}
		switch field {
		case "log_channel_id":
			rec.OldValue, rec.NewValue = channelValue(before.LogChannelID), channelValue(after.LogChannelID)
		case "timeout_duration":
			rec.OldValue, rec.NewValue = before.TimeoutDuration, after.TimeoutDuration
		case "dm_on_timeout":
			rec.OldValue, rec.NewValue = before.DMOnTimeout, after.DMOnTimeout
		}
		out = append(out, rec)
	}
	return out
}

func channelValue(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

func auditValue(c domain.GuildConfig) map[string]any {
	return map[string]any{
		"log_channel_id":   channelValue(c.LogChannelID),
		"timeout_duration": c.TimeoutDuration,
		"dm_on_timeout":    c.DMOnTimeout,
	}
}
