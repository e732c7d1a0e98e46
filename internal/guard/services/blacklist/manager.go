package blacklist

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/haukened/reactguard/internal/guard/common/clock"
	"github.com/haukened/reactguard/internal/guard/common/log"
	"github.com/haukened/reactguard/internal/guard/domain"
)

const (
	insertEntry = `
		INSERT INTO guild_blacklists (guild_id, emoji_type, emoji_value, emoji_name, created_at)
		VALUES (?, ?, ?, ?, ?)`
	deleteEntry = `
		DELETE FROM guild_blacklists
		WHERE guild_id = ? AND emoji_type = ? AND emoji_value = ?`
	selectEntry = `
		SELECT emoji_name FROM guild_blacklists
		WHERE guild_id = ? AND emoji_type = ? AND emoji_value = ?`
	selectAll = `
		SELECT emoji_type, emoji_value, emoji_name, created_at
		FROM guild_blacklists
		WHERE guild_id = ?
		ORDER BY created_at DESC, id DESC`
	deleteGuild = `DELETE FROM guild_blacklists WHERE guild_id = ?`
)

// emojiSets is the cached shadow of one guild's blacklist.
type emojiSets struct {
	unicode map[string]struct{}
	custom  map[string]struct{}
}

func newEmojiSets() *emojiSets {
	return &emojiSets{unicode: make(map[string]struct{}), custom: make(map[string]struct{})}
}

func (s *emojiSets) set(t domain.EmojiType) map[string]struct{} {
	if t == domain.EmojiCustom {
		return s.custom
	}
	return s.unicode
}

// Options configures a Manager.
type Options struct {
	Store Store
	// Configs ensures the parent config row exists before an insert.
	Configs ConfigEnsurer
	Auditor Auditor
	Clock   clock.Clock
	Logger  log.Logger
}

// Manager owns per-guild emoji blacklists, backed by the store and fronted
// by an in-memory cache. Membership queries fail open to false, and add and
// remove fall back to the cache when the store is unavailable.
type Manager struct {
	store   Store
	configs ConfigEnsurer
	auditor Auditor
	clock   clock.Clock
	logger  log.Logger

	mu    sync.RWMutex
	cache map[int64]*emojiSets
}

// New constructs a Manager.
func New(opts Options) *Manager {
	if opts.Clock == nil {
		opts.Clock = &clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	return &Manager{
		store:   opts.Store,
		configs: opts.Configs,
		auditor: opts.Auditor,
		clock:   opts.Clock,
		logger:  opts.Logger.Named("blacklist"),
		cache:   make(map[int64]*emojiSets),
	}
}

// Add blacklists e for guildID. It returns false when e is already
// blacklisted. A store failure is logged and the entry is kept in the cache
// only, still reporting true.
func (m *Manager) Add(ctx context.Context, guildID int64, e domain.Emoji) (bool, error) {
	p, err := domain.Parse(e)
	if err != nil {
		return false, err
	}
	if m.IsBlacklisted(ctx, guildID, e) {
		return false, nil
	}

	if m.configs != nil {
		_, err = m.configs.Ensure(ctx, guildID)
	}
	if err == nil {
		_, err = m.store.Execute(ctx, insertEntry, guildID, string(p.Type), p.Value, p.Name, m.clock.Now())
	}
	m.applyToCache(guildID, p.Type, p.Value, true)
	if err != nil {
		m.logger.Warn(map[string]any{
			"guild_id":    guildID,
			"emoji_type":  string(p.Type),
			"emoji_value": p.Value,
			"error":       err,
		}, "added emoji to cache only due to database error")
		return true, nil
	}

	m.auditEmoji(ctx, guildID, domain.AuditAdd, p)
	m.logger.Info(map[string]any{
		"guild_id":    guildID,
		"emoji_type":  string(p.Type),
		"emoji_value": p.Value,
	}, "added emoji to blacklist")
	return true, nil
}

// Remove drops e from guildID's blacklist. It returns false when e is not
// blacklisted. A store failure is logged and the cache is still updated.
func (m *Manager) Remove(ctx context.Context, guildID int64, e domain.Emoji) (bool, error) {
	p, err := domain.Parse(e)
	if err != nil {
		return false, err
	}
	if !m.IsBlacklisted(ctx, guildID, e) {
		return false, nil
	}
	return m.remove(ctx, guildID, p), nil
}

// RemoveByID drops the custom emoji with platform identity id regardless of
// its recorded name. Existence is checked against the store.
func (m *Manager) RemoveByID(ctx context.Context, guildID int64, id int64) (bool, error) {
	p := domain.ParsedEmoji{Type: domain.EmojiCustom, Value: strconv.FormatInt(id, 10)}
	row, found, err := m.store.FetchOne(ctx, selectEntry, guildID, string(p.Type), p.Value)
	if err != nil {
		m.applyToCache(guildID, p.Type, p.Value, false)
		m.logger.Warn(map[string]any{"guild_id": guildID, "emoji_value": p.Value, "error": err},
			"removed emoji from cache only due to database error")
		return true, nil
	}
	if !found {
		return false, nil
	}
	p.Name = row.NullString("emoji_name")
	return m.remove(ctx, guildID, p), nil
}

func (m *Manager) remove(ctx context.Context, guildID int64, p domain.ParsedEmoji) bool {
	_, err := m.store.Execute(ctx, deleteEntry, guildID, string(p.Type), p.Value)
	m.applyToCache(guildID, p.Type, p.Value, false)
	if err != nil {
		m.logger.Warn(map[string]any{
			"guild_id":    guildID,
			"emoji_type":  string(p.Type),
			"emoji_value": p.Value,
			"error":       err,
		}, "removed emoji from cache only due to database error")
		return true
	}

	m.auditEmoji(ctx, guildID, domain.AuditRemove, p)
	m.logger.Info(map[string]any{
		"guild_id":    guildID,
		"emoji_type":  string(p.Type),
		"emoji_value": p.Value,
	}, "removed emoji from blacklist")
	return true
}

// IsBlacklisted reports whether e is blacklisted for guildID. It never fails:
// an unparseable emoji or an unavailable store yields false.
func (m *Manager) IsBlacklisted(ctx context.Context, guildID int64, e domain.Emoji) bool {
	sets := m.ensureLoaded(ctx, guildID)
	p, err := domain.Parse(e)
	if err != nil {
		m.logger.Error(map[string]any{"guild_id": guildID, "error": err}, "failed to check blacklisted emoji")
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := sets.set(p.Type)[p.Value]
	return ok
}

// Stored lists guildID's persisted entries, newest first, bypassing the cache.
func (m *Manager) Stored(ctx context.Context, guildID int64) ([]domain.BlacklistEntry, error) {
	return m.fetchAll(ctx, guildID)
}

// GetAll lists guildID's entries, newest first. When the store fails the
// list is rebuilt from the cache without names or timestamps.
func (m *Manager) GetAll(ctx context.Context, guildID int64) []domain.BlacklistEntry {
	entries, err := m.fetchAll(ctx, guildID)
	if err == nil {
		return entries
	}

	m.logger.Error(map[string]any{"guild_id": guildID, "error": err}, "failed to load blacklist")
	m.mu.RLock()
	defer m.mu.RUnlock()
	sets, ok := m.cache[guildID]
	if !ok {
		m.logger.Warn(map[string]any{"guild_id": guildID}, "no cached blacklist available")
		return []domain.BlacklistEntry{}
	}
	m.logger.Warn(map[string]any{"guild_id": guildID}, "using cached blacklist due to database error")
	out := make([]domain.BlacklistEntry, 0, len(sets.unicode)+len(sets.custom))
	for v := range sets.unicode {
		out = append(out, domain.BlacklistEntry{GuildID: guildID, Type: domain.EmojiUnicode, Value: v})
	}
	for v := range sets.custom {
		name := domain.UnknownEmojiName
		out = append(out, domain.BlacklistEntry{GuildID: guildID, Type: domain.EmojiCustom, Value: v, Name: &name})
	}
	return out
}

// Clear deletes every entry for guildID and drops the guild's cache entry.
// The cache entry is dropped even when the store fails; the error is returned.
func (m *Manager) Clear(ctx context.Context, guildID int64) error {
	_, err := m.store.Execute(ctx, deleteGuild, guildID)
	m.Evict(guildID)
	if err != nil {
		m.logger.Error(map[string]any{"guild_id": guildID, "error": err}, "failed to clear blacklist")
		return fmt.Errorf("clear blacklist for guild %d: %w", guildID, err)
	}
	m.logger.Info(map[string]any{"guild_id": guildID}, "cleared blacklist")
	return nil
}

// DisplayStrings renders every entry of guildID as the platform shows it.
func (m *Manager) DisplayStrings(ctx context.Context, guildID int64) []string {
	entries := m.GetAll(ctx, guildID)
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Display()
	}
	return out
}

// MigrateFromLegacy replaces guildID's blacklist with the given emoji,
// adding each one through Add so deduplication, caching and auditing apply.
func (m *Manager) MigrateFromLegacy(ctx context.Context, guildID int64, unicode []string, customIDs []int64, names map[int64]string) error {
	if err := m.Clear(ctx, guildID); err != nil {
		return err
	}
	for _, u := range unicode {
		if _, err := m.Add(ctx, guildID, domain.PlainUnicode(u)); err != nil {
			return fmt.Errorf("migrate unicode emoji %q: %w", u, err)
		}
	}
	for _, id := range customIDs {
		name, ok := names[id]
		if !ok || name == "" {
			name = domain.UnknownEmojiName
		}
		if _, err := m.Add(ctx, guildID, domain.CustomEmoji(id, name)); err != nil {
			return fmt.Errorf("migrate custom emoji %d: %w", id, err)
		}
	}
	m.logger.Info(map[string]any{
		"guild_id": guildID,
		"unicode":  len(unicode),
		"custom":   len(customIDs),
	}, "migrated legacy blacklist")
	return nil
}

// Evict drops guildID's cache entry so the next read reloads it.
func (m *Manager) Evict(guildID int64) {
	m.mu.Lock()
	delete(m.cache, guildID)
	m.mu.Unlock()
}

// ensureLoaded returns the guild's cached sets, loading them on a miss.
// A store failure caches two empty sets.
func (m *Manager) ensureLoaded(ctx context.Context, guildID int64) *emojiSets {
	m.mu.RLock()
	sets, ok := m.cache[guildID]
	m.mu.RUnlock()
	if ok {
		return sets
	}

	loaded := newEmojiSets()
	entries, err := m.fetchAll(ctx, guildID)
	if err != nil {
		m.logger.Error(map[string]any{"guild_id": guildID, "error": err}, "failed to load blacklist cache")
	}
	for _, e := range entries {
		loaded.set(e.Type)[e.Value] = struct{}{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.cache[guildID]; ok {
		return existing
	}
	m.cache[guildID] = loaded
	return loaded
}

// applyToCache is the single mutation path for cached sets. Adding creates
// the guild entry when missing; removing tolerates absence.
func (m *Manager) applyToCache(guildID int64, t domain.EmojiType, value string, add bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sets, ok := m.cache[guildID]
	if !ok {
		if !add {
			return
		}
		sets = newEmojiSets()
		m.cache[guildID] = sets
	}
	if add {
		sets.set(t)[value] = struct{}{}
	} else {
		delete(sets.set(t), value)
	}
}

func (m *Manager) fetchAll(ctx context.Context, guildID int64) ([]domain.BlacklistEntry, error) {
	rows, err := m.store.FetchAll(ctx, selectAll, guildID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.BlacklistEntry, 0, len(rows))
	for _, row := range rows {
		t, err := domain.ParseEmojiType(row.String("emoji_type"))
		if err != nil {
			m.logger.Warn(map[string]any{"guild_id": guildID, "error": err}, "skipping malformed blacklist row")
			continue
		}
		entry := domain.BlacklistEntry{
			GuildID: guildID,
			Type:    t,
			Value:   row.String("emoji_value"),
			Name:    row.NullString("emoji_name"),
		}
		if ts, ok := row.Time("created_at"); ok {
			entry.CreatedAt = &ts
		}
		out = append(out, entry)
	}
	return out, nil
}

func (m *Manager) auditEmoji(ctx context.Context, guildID int64, action domain.AuditAction, p domain.ParsedEmoji) {
	if m.auditor == nil {
		return
	}
	info := domain.EmojiAuditInfo{
		Type:    p.Type,
		Value:   p.Value,
		Name:    p.Name,
		Display: domain.DisplayString(p.Type, p.Value, p.Name),
	}
	rec := domain.AuditRecord{GuildID: guildID, Action: action, Field: "emoji"}
	if action == domain.AuditRemove {
		rec.OldValue = info
	} else {
		rec.NewValue = info
	}
	m.auditor.Audit(ctx, rec)
}
