package migration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/haukened/reactguard/internal/guard/common/clock"
	"github.com/haukened/reactguard/internal/guard/common/log"
	"github.com/haukened/reactguard/internal/guard/domain"
)

const (
	backupPrefix     = "blacklist_backup_"
	backupSuffix     = ".json"
	backupTimeLayout = "20060102_150405"

	defaultConcurrency = 4
)

// ErrSourceMissing is returned when the legacy file does not exist.
var ErrSourceMissing = errors.New("legacy blacklist file not found")

// Options configures a Manager.
type Options struct {
	SourcePath string
	BackupDir  string
	Schema     SchemaEnsurer
	Configs    ConfigManager
	Blacklists BlacklistManager
	// Concurrency bounds parallel guild configuration. Defaults to 4.
	Concurrency int
	Clock       clock.Clock
	Logger      log.Logger
}

// Manager converts the single-tenant legacy JSON blacklist into per-guild storage.
type Manager struct {
	source      string
	backupDir   string
	schema      SchemaEnsurer
	configs     ConfigManager
	blacklists  BlacklistManager
	concurrency int
	clock       clock.Clock
	logger      log.Logger
}

// New constructs a Manager.
func New(opts Options) *Manager {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.Clock == nil {
		opts.Clock = &clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	return &Manager{
		source:      opts.SourcePath,
		backupDir:   opts.BackupDir,
		schema:      opts.Schema,
		configs:     opts.Configs,
		blacklists:  opts.Blacklists,
		concurrency: opts.Concurrency,
		clock:       opts.Clock,
		logger:      opts.Logger.Named("migration"),
	}
}

// GuildOutcome reports what happened to one target guild.
type GuildOutcome struct {
	GuildID    int64
	Configured bool
	Migrated   bool
	Error      string
}

// Stats counts migrated items.
type Stats struct {
	UnicodeMigrated  int
	CustomMigrated   int
	GuildsConfigured int
	TotalEntries     int
}

// Result is the structured outcome of Migrate.
type Result struct {
	Success    bool
	BackupPath string
	Guilds     []GuildOutcome
	Stats      Stats
	Errors     []string
	Warnings   []string
	Timestamp  time.Time
}

func (r *Result) fail(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Migrate backs up the legacy file, validates it, configures every target
// guild and, when primary is among them, moves the blacklist into primary.
// The stored result is re-read and compared with the source before success is reported.
func (m *Manager) Migrate(ctx context.Context, guildIDs []int64, primary int64) *Result {
	res := &Result{Timestamp: m.clock.Now()}
	m.logger.Info(map[string]any{"source": m.source, "guilds": len(guildIDs)}, "starting migration")

	backup, err := m.Backup()
	if err != nil {
		res.fail("backup failed: %v", err)
		m.logger.Error(map[string]any{"error": err}, "migration aborted")
		return res
	}
	res.BackupPath = backup

	data, err := os.ReadFile(m.source)
	if err != nil {
		res.fail("failed to read %s: %v", m.source, err)
		return res
	}
	doc, report, err := ParseLegacy(data)
	if err != nil {
		res.fail("%v", err)
		return res
	}
	res.Warnings = append(res.Warnings, report.Warnings...)
	if !report.Valid() {
		res.Errors = append(res.Errors, report.Errors...)
		m.logger.Error(map[string]any{"errors": strings.Join(report.Errors, "; ")}, "legacy file failed validation")
		return res
	}

	if err := m.schema.EnsureSchema(ctx); err != nil {
		res.fail("failed to initialize schema: %v", err)
		return res
	}

	res.Guilds = m.configureGuilds(ctx, guildIDs)
	for _, g := range res.Guilds {
		if g.Configured {
			res.Stats.GuildsConfigured++
		} else {
			res.fail("failed to create config for guild %d: %s", g.GuildID, g.Error)
		}
	}

	primaryIdx := indexOf(guildIDs, primary)
	if primary != 0 && primaryIdx >= 0 {
		err := m.blacklists.MigrateFromLegacy(ctx, primary, doc.UnicodeEmojis, doc.CustomEmojiIDs, doc.NamesByID())
		if err != nil {
			res.fail("failed to migrate blacklist data to guild %d: %v", primary, err)
			res.Guilds[primaryIdx].Error = err.Error()
		} else {
			res.Guilds[primaryIdx].Migrated = true
			res.Stats.UnicodeMigrated = len(distinct(doc.UnicodeEmojis))
			res.Stats.CustomMigrated = len(distinctIDs(doc.CustomEmojiIDs))
			res.Stats.TotalEntries = res.Stats.UnicodeMigrated + res.Stats.CustomMigrated
			m.logger.Info(map[string]any{"guild_id": primary, "entries": res.Stats.TotalEntries}, "migrated blacklist data")
		}
	}

	if primary != 0 && primaryIdx >= 0 {
		if problems := m.Validate(ctx, primary, doc); len(problems) > 0 {
			res.Errors = append(res.Errors, problems...)
			res.fail("migration validation failed")
			return res
		}
	}

	res.Success = len(res.Errors) == 0
	if res.Success {
		m.logger.Info(map[string]any{"backup": backup}, "migration completed successfully")
	}
	return res
}

// configureGuilds creates a default config for every guild in parallel,
// recording each outcome without stopping at the first failure.
func (m *Manager) configureGuilds(ctx context.Context, guildIDs []int64) []GuildOutcome {
	outcomes := make([]GuildOutcome, len(guildIDs))
	var mu sync.Mutex
	p := pool.New().WithContext(ctx).WithMaxGoroutines(m.concurrency)
	for i, id := range guildIDs {
		p.Go(func(ctx context.Context) error {
			out := GuildOutcome{GuildID: id}
			cfg := m.configs.CreateDefault(ctx, id)
			if !cfg.Persisted() {
				out.Error = "configuration was not persisted"
			} else {
				out.Configured = true
			}
			mu.Lock()
			outcomes[i] = out
			mu.Unlock()
			if !out.Configured {
				return fmt.Errorf("guild %d: %s", id, out.Error)
			}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		m.logger.Warn(map[string]any{"error": err}, "some guild configurations failed")
	}
	return outcomes
}

// Validate re-reads guildID's stored blacklist and compares it with doc in
// both directions. It returns one message per discrepancy; an unreadable
// store is itself a discrepancy.
func (m *Manager) Validate(ctx context.Context, guildID int64, doc domain.LegacyBlacklist) []string {
	entries, err := m.blacklists.Stored(ctx, guildID)
	if err != nil {
		msg := fmt.Sprintf("failed to read stored blacklist: %v", err)
		m.logger.Error(map[string]any{"guild_id": guildID}, msg)
		return []string{msg}
	}
	gotUnicode := map[string]struct{}{}
	gotCustom := map[string]struct{}{}
	var unicodeRows, customRows int
	for _, e := range entries {
		if e.Type == domain.EmojiCustom {
			gotCustom[e.Value] = struct{}{}
			customRows++
		} else {
			gotUnicode[e.Value] = struct{}{}
			unicodeRows++
		}
	}

	wantUnicode := distinct(doc.UnicodeEmojis)
	wantCustom := map[string]struct{}{}
	for id := range distinctIDs(doc.CustomEmojiIDs) {
		wantCustom[strconv.FormatInt(id, 10)] = struct{}{}
	}

	var problems []string
	if unicodeRows != len(wantUnicode) {
		problems = append(problems, fmt.Sprintf("unicode emoji count mismatch: expected %d, got %d", len(wantUnicode), unicodeRows))
	}
	if customRows != len(wantCustom) {
		problems = append(problems, fmt.Sprintf("custom emoji count mismatch: expected %d, got %d", len(wantCustom), customRows))
	}
	if missing, extra := setDiff(wantUnicode, gotUnicode); len(missing)+len(extra) > 0 {
		problems = append(problems, fmt.Sprintf("unicode emoji mismatch: missing %v, unexpected %v", missing, extra))
	}
	if missing, extra := setDiff(wantCustom, gotCustom); len(missing)+len(extra) > 0 {
		problems = append(problems, fmt.Sprintf("custom emoji mismatch: missing %v, unexpected %v", missing, extra))
	}
	for _, p := range problems {
		m.logger.Error(map[string]any{"guild_id": guildID}, p)
	}
	return problems
}

// RollbackResult reports the restore and cleanup steps independently.
type RollbackResult struct {
	Success         bool
	BackupRestored  bool
	DatabaseCleaned bool
	Errors          []string
	Timestamp       time.Time
}

// Rollback restores the legacy file from backupPath and removes the stored
// blacklist and config of every guild in guildIDs.
func (m *Manager) Rollback(ctx context.Context, backupPath string, guildIDs []int64) *RollbackResult {
	res := &RollbackResult{Timestamp: m.clock.Now()}
	m.logger.Info(map[string]any{"backup": backupPath}, "starting rollback")

	if err := copyFile(backupPath, m.source); err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("failed to restore backup: %v", err))
	} else {
		res.BackupRestored = true
		m.logger.Info(map[string]any{"source": m.source}, "restored backup")
	}

	var cleanupErrs []error
	for _, id := range guildIDs {
		if err := m.blacklists.Clear(ctx, id); err != nil {
			cleanupErrs = append(cleanupErrs, fmt.Errorf("guild %d blacklist: %w", id, err))
			continue
		}
		if err := m.configs.Delete(ctx, id); err != nil {
			cleanupErrs = append(cleanupErrs, fmt.Errorf("guild %d config: %w", id, err))
		}
	}
	if err := errors.Join(cleanupErrs...); err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("database cleanup failed: %v", err))
		m.logger.Error(map[string]any{"error": err}, "database cleanup failed")
	} else {
		res.DatabaseCleaned = true
	}

	res.Success = res.BackupRestored && res.DatabaseCleaned
	return res
}

// Status describes the legacy file and available backups.
type Status struct {
	SourcePath      string
	SourceExists    bool
	BackupDir       string
	BackupDirExists bool
	Backups         []BackupInfo
}

// BackupInfo describes one backup file.
type BackupInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Status lists the legacy file state and backups, newest first.
func (m *Manager) Status() (Status, error) {
	st := Status{SourcePath: m.source, BackupDir: m.backupDir}
	if _, err := os.Stat(m.source); err == nil {
		st.SourceExists = true
	}
	if fi, err := os.Stat(m.backupDir); err == nil && fi.IsDir() {
		st.BackupDirExists = true
	} else {
		return st, nil
	}

	matches, err := filepath.Glob(filepath.Join(m.backupDir, backupPrefix+"*"+backupSuffix))
	if err != nil {
		return st, err
	}
	for _, path := range matches {
		fi, err := os.Stat(path)
		if err != nil {
			continue
		}
		st.Backups = append(st.Backups, BackupInfo{Path: path, Size: fi.Size(), ModTime: fi.ModTime()})
	}
	// The timestamped names sort chronologically.
	sort.Slice(st.Backups, func(i, j int) bool {
		return filepath.Base(st.Backups[i].Path) > filepath.Base(st.Backups[j].Path)
	})
	return st, nil
}

// Backup copies the legacy file to a timestamped file in the backup directory.
func (m *Manager) Backup() (string, error) {
	if _, err := os.Stat(m.source); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrSourceMissing, m.source)
		}
		return "", err
	}
	if err := os.MkdirAll(m.backupDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	stamp := m.clock.Now().Format(backupTimeLayout)
	path := filepath.Join(m.backupDir, backupPrefix+stamp+backupSuffix)
	for n := 1; fileExists(path); n++ {
		path = filepath.Join(m.backupDir, fmt.Sprintf("%s%s_%d%s", backupPrefix, stamp, n, backupSuffix))
	}
	if err := copyFile(m.source, path); err != nil {
		return "", fmt.Errorf("failed to create backup: %w", err)
	}
	m.logger.Info(map[string]any{"backup": path}, "created backup")
	return path, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	fi, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, fi.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dst, fi.ModTime(), fi.ModTime())
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func indexOf(ids []int64, id int64) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

func distinct(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}
	return out
}

func distinctIDs(ids []int64) map[int64]struct{} {
	out := make(map[int64]struct{}, len(ids))
	for _, v := range ids {
		out[v] = struct{}{}
	}
	return out
}

// setDiff returns sorted members of want missing from got, and of got missing from want.
func setDiff(want, got map[string]struct{}) (missing, extra []string) {
	for v := range want {
		if _, ok := got[v]; !ok {
			missing = append(missing, v)
		}
	}
	for v := range got {
		if _, ok := want[v]; !ok {
			extra = append(extra, v)
		}
	}
	sort.Strings(missing)
	sort.Strings(extra)
	return missing, extra
}
