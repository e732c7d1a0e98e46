package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/haukened/reactguard/internal/guard/app"
	"github.com/haukened/reactguard/internal/guard/common/clock"
	"github.com/haukened/reactguard/internal/guard/common/log"
	"github.com/haukened/reactguard/internal/guard/config"
	"github.com/haukened/reactguard/internal/guard/services/migration"
)

const appName = "reactguard-migrate"

func main() {
	if err := run(context.Background(), os.Args, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	cmd := &cli.Command{
		Name:   appName,
		Usage:  "Convert the legacy JSON blacklist into per-guild storage",
		Writer: out,
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "Back up the legacy file and migrate it into the given guilds",
				Flags: []cli.Flag{
					guildsFlag(),
					&cli.IntFlag{
						Name:    "primary",
						Aliases: []string{"p"},
						Usage:   "Guild that receives the blacklist entries (0 only creates configs)",
					},
				},
				Action: withCore(func(ctx context.Context, c *cli.Command, core *app.Core, _ *config.AppConfig) error {
					res := core.Migration.Migrate(ctx, c.IntSlice("guild"), c.Int("primary"))
					printMigration(c.Root().Writer, res)
					if !res.Success {
						return fmt.Errorf("migration failed")
					}
					return nil
				}),
			},
			{
				Name:  "rollback",
				Usage: "Restore the legacy file from a backup and remove migrated guild data",
				Flags: []cli.Flag{
					guildsFlag(),
					&cli.StringFlag{
						Name:     "backup",
						Aliases:  []string{"b"},
						Usage:    "Backup file to restore",
						Required: true,
					},
				},
				Action: withCore(func(ctx context.Context, c *cli.Command, core *app.Core, _ *config.AppConfig) error {
					res := core.Migration.Rollback(ctx, c.String("backup"), c.IntSlice("guild"))
					w := c.Root().Writer
					fmt.Fprintf(w, "backup restored: %t\ndatabase cleaned: %t\n", res.BackupRestored, res.DatabaseCleaned)
					for _, e := range res.Errors {
						fmt.Fprintf(w, "error: %s\n", e)
					}
					if !res.Success {
						return fmt.Errorf("rollback failed")
					}
					return nil
				}),
			},
			{
				Name:  "status",
				Usage: "Show the legacy file and available backups",
				Action: withCore(func(_ context.Context, c *cli.Command, core *app.Core, _ *config.AppConfig) error {
					st, err := core.Migration.Status()
					if err != nil {
						return err
					}
					printStatus(c.Root().Writer, st)
					return nil
				}),
			},
			{
				Name:  "export",
				Usage: "Write one guild's blacklist in the legacy JSON format",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "guild", Aliases: []string{"g"}, Usage: "Guild to export", Required: true},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output file (default stdout)"},
				},
				Action: withCore(func(ctx context.Context, c *cli.Command, core *app.Core, _ *config.AppConfig) error {
					doc := core.Compat.Guild(c.Int("guild")).ToLegacy(ctx)
					data, err := migration.EncodeLegacy(doc)
					if err != nil {
						return fmt.Errorf("failed to encode blacklist: %w", err)
					}
					if path := c.String("output"); path != "" {
						return os.WriteFile(path, append(data, '\n'), 0o644)
					}
					_, err = fmt.Fprintln(c.Root().Writer, string(data))
					return err
				}),
			},
			{
				Name:  "broadcast",
				Usage: "Replace the blacklist of every given guild with the legacy file contents",
				Flags: []cli.Flag{
					guildsFlag(),
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Legacy file (default from configuration)"},
				},
				Action: withCore(func(ctx context.Context, c *cli.Command, core *app.Core, cfg *config.AppConfig) error {
					path := c.String("file")
					if path == "" {
						path = cfg.BlacklistFile
					}
					data, err := os.ReadFile(path)
					if err != nil {
						return err
					}
					doc, report, err := migration.ParseLegacy(data)
					if err != nil {
						return err
					}
					if !report.Valid() {
						return fmt.Errorf("invalid legacy file: %s", strings.Join(report.Errors, "; "))
					}
					guilds := c.IntSlice("guild")
					if err := core.Compat.MigrateGlobal(ctx, guilds, doc); err != nil {
						return err
					}
					fmt.Fprintf(c.Root().Writer, "copied %d unicode and %d custom emoji into %d guilds\n",
						len(doc.UnicodeEmojis), len(doc.CustomEmojiIDs), len(guilds))
					return nil
				}),
			},
		},
	}
	return cmd.Run(ctx, args)
}

// withCore loads configuration and builds the persistence core around action.
func withCore(action func(context.Context, *cli.Command, *app.Core, *config.AppConfig) error) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		if err := log.Configure(cfg.Env, cfg.LogLevel); err != nil {
			return fmt.Errorf("logging configuration error: %w", err)
		}
		core, err := app.Build(cfg, &clock.RealClock{}, log.GetLogger())
		if err != nil {
			return err
		}
		defer func() {
			if err := core.Close(); err != nil {
				log.Warn(map[string]any{"error": err}, "Error closing storage")
			}
		}()
		return action(ctx, c, core, cfg)
	}
}

func guildsFlag() cli.Flag {
	return &cli.IntSliceFlag{
		Name:     "guild",
		Aliases:  []string{"g"},
		Usage:    "Target guild id (repeatable)",
		Required: true,
	}
}

func printMigration(w io.Writer, res *migration.Result) {
	fmt.Fprintf(w, "success: %t\n", res.Success)
	if res.BackupPath != "" {
		fmt.Fprintf(w, "backup: %s\n", res.BackupPath)
	}
	fmt.Fprintf(w, "guilds configured: %d\nunicode migrated: %d\ncustom migrated: %d\n",
		res.Stats.GuildsConfigured, res.Stats.UnicodeMigrated, res.Stats.CustomMigrated)
	for _, g := range res.Guilds {
		status := "ok"
		if g.Error != "" {
			status = g.Error
		}
		fmt.Fprintf(w, "guild %d: configured=%t migrated=%t %s\n", g.GuildID, g.Configured, g.Migrated, status)
	}
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
	for _, e := range res.Errors {
		fmt.Fprintf(w, "error: %s\n", e)
	}
}

func printStatus(w io.Writer, st migration.Status) {
	fmt.Fprintf(w, "legacy file: %s (exists: %t)\n", st.SourcePath, st.SourceExists)
	fmt.Fprintf(w, "backup dir: %s (exists: %t)\n", st.BackupDir, st.BackupDirExists)
	for _, b := range st.Backups {
		fmt.Fprintf(w, "  %s  %d bytes  %s\n", b.Path, b.Size, b.ModTime.Format("2006-01-02 15:04:05"))
	}
}
