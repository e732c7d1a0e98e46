package compat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sourcegraph/conc/pool"

	"github.com/haukened/reactguard/internal/guard/common/log"
	"github.com/haukened/reactguard/internal/guard/domain"
)

const (
	DefaultRegistrySize = 256
	DefaultViewTTL      = 30 * time.Minute
)

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	Blacklist Blacklist
	// Size bounds the number of cached views. Defaults to DefaultRegistrySize.
	Size int
	// TTL expires idle views. Defaults to DefaultViewTTL.
	TTL time.Duration
	// Concurrency bounds MigrateGlobal. Defaults to 4.
	Concurrency int
	Logger      log.Logger
}

// Registry hands out per-guild legacy views.
type Registry struct {
	blacklist   Blacklist
	views       *expirable.LRU[int64, *EmojiBlacklist]
	concurrency int
	logger      log.Logger
}

// NewRegistry constructs a Registry.
func NewRegistry(opts RegistryOptions) *Registry {
	if opts.Size <= 0 {
		opts.Size = DefaultRegistrySize
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultViewTTL
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	return &Registry{
		blacklist:   opts.Blacklist,
		views:       expirable.NewLRU[int64, *EmojiBlacklist](opts.Size, nil, opts.TTL),
		concurrency: opts.Concurrency,
		logger:      opts.Logger.Named("compat"),
	}
}

// Guild returns the view for guildID, creating it on first use.
func (r *Registry) Guild(guildID int64) *EmojiBlacklist {
	if v, ok := r.views.Get(guildID); ok {
		return v
	}
	v := NewEmojiBlacklist(r.blacklist, guildID, r.logger)
	r.views.Add(guildID, v)
	return v
}

// Len returns the number of cached views.
func (r *Registry) Len() int { return r.views.Len() }

// MigrateGlobal copies doc into every guild in guildIDs. Each guild is
// migrated independently; the returned error joins every per-guild failure.
func (r *Registry) MigrateGlobal(ctx context.Context, guildIDs []int64, doc domain.LegacyBlacklist) error {
	p := pool.New().WithErrors().WithMaxGoroutines(r.concurrency)
	for _, id := range guildIDs {
		p.Go(func() error {
			if err := r.Guild(id).FromLegacy(ctx, doc); err != nil {
				r.logger.Error(map[string]any{"guild_id": id, "error": err}, "failed to migrate blacklist to guild")
				return fmt.Errorf("guild %d: %w", id, err)
			}
			r.logger.Info(map[string]any{"guild_id": id}, "migrated global blacklist to guild")
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return errors.Join(errors.New("global blacklist migration incomplete"), err)
	}
	return nil
}
