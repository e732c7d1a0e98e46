// Package app assembles the persistence core shared by the daemon and the
// migration tool.
package app

import (
	"errors"
	"fmt"

	"github.com/haukened/reactguard/internal/guard/common/clock"
	"github.com/haukened/reactguard/internal/guard/common/log"
	"github.com/haukened/reactguard/internal/guard/config"
	"github.com/haukened/reactguard/internal/guard/repos/auditlog"
	"github.com/haukened/reactguard/internal/guard/repos/store"
	"github.com/haukened/reactguard/internal/guard/services/blacklist"
	"github.com/haukened/reactguard/internal/guard/services/compat"
	"github.com/haukened/reactguard/internal/guard/services/guildconfig"
	"github.com/haukened/reactguard/internal/guard/services/migration"
	"github.com/haukened/reactguard/internal/guard/services/monitor"
)

// Core holds the store, its monitoring and the managers built on top of it.
type Core struct {
	Store      *store.Store
	Audit      *auditlog.Log
	Monitor    *monitor.Monitor
	Configs    *guildconfig.Manager
	Blacklists *blacklist.Manager
	Compat     *compat.Registry
	Migration  *migration.Manager
}

// Build opens the audit log and the store and wires the managers.
func Build(cfg *config.AppConfig, clk clock.Clock, logger log.Logger) (*Core, error) {
	audit, err := auditlog.Open(cfg.AuditDB)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}

	mon := monitor.New(monitor.Options{
		SlowThreshold: cfg.SlowQuery,
		Sink:          audit,
		Clock:         clk,
		Logger:        logger,
	})

	st, err := store.Open(store.Options{
		Path:         cfg.DBPath,
		PoolSize:     cfg.DBPoolSize,
		RetryInitial: cfg.RetryInitial,
		Observer:     mon,
		Clock:        clk,
		Logger:       logger,
	})
	if err != nil {
		_ = audit.Close()
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	configs := guildconfig.New(guildconfig.Options{
		Store:   st,
		Auditor: mon,
		Defaults: &guildconfig.Defaults{
			TimeoutDuration: cfg.DefaultTimeout,
			DMOnTimeout:     cfg.DefaultDM,
		},
		Clock:  clk,
		Logger: logger,
	})
	blacklists := blacklist.New(blacklist.Options{
		Store:   st,
		Configs: configs,
		Auditor: mon,
		Clock:   clk,
		Logger:  logger,
	})

	log.Info(map[string]any{
		"db_path":  cfg.DBPath,
		"audit_db": cfg.AuditDB,
		"pool":     cfg.DBPoolSize,
	}, "Persistence core initialized")

	return &Core{
		Store:      st,
		Audit:      audit,
		Monitor:    mon,
		Configs:    configs,
		Blacklists: blacklists,
		Compat: compat.NewRegistry(compat.RegistryOptions{
			Blacklist: blacklists,
			Size:      cfg.CompatCacheSize,
			Logger:    logger,
		}),
		Migration: migration.New(migration.Options{
			SourcePath: cfg.BlacklistFile,
			BackupDir:  cfg.BackupDir,
			Schema:     st,
			Configs:    configs,
			Blacklists: blacklists,
			Clock:      clk,
			Logger:     logger,
		}),
	}, nil
}

// Close releases the store and the audit log.
func (c *Core) Close() error {
	return errors.Join(c.Store.Close(), c.Audit.Close())
}

// LogSummary writes the collected store metrics at info level.
func (c *Core) LogSummary() {
	s := c.Monitor.Summary()
	log.Info(map[string]any{
		"operations":    s.Operations,
		"failures":      s.Failures,
		"slow_ops":      s.SlowOps,
		"audit_records": s.AuditRecords,
	}, "Store metrics summary")
	for key, st := range s.Stats {
		log.Debug(map[string]any{
			"operation": key,
			"count":     st.Count,
			"avg":       st.Avg(),
			"min":       st.Min,
			"max":       st.Max,
		}, "Operation statistics")
	}
}
