package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/haukened/reactguard/internal/guard/app"
	"github.com/haukened/reactguard/internal/guard/common/clock"
	"github.com/haukened/reactguard/internal/guard/common/log"
	"github.com/haukened/reactguard/internal/guard/config"
	"github.com/haukened/reactguard/internal/guard/gateways/discord"
	"github.com/haukened/reactguard/internal/guard/repos/cooldown"
	"github.com/haukened/reactguard/internal/guard/services/moderation"
)

const (
	// Version information
	version = "0.1.0-dev"
	appName = "reactguardd"

	cooldownEntries        = 10000
	defaultShutdownTimeout = 10 * time.Second
)

// Application holds all the components of the bot
type Application struct {
	config    *config.AppConfig
	core      *app.Core
	gateway   *discord.Gateway
	moderator *moderation.Moderator
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	err = log.Configure(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logging configuration error: %v\n", err)
		os.Exit(1)
	}

	log.Info(map[string]any{
		"app":             appName,
		"version":         version,
		"env":             cfg.Env,
		"log_level":       cfg.LogLevel,
		"db_path":         cfg.DBPath,
		"default_timeout": cfg.DefaultTimeout,
		"default_dm":      cfg.DefaultDM,
	}, "Starting reactguard")

	application, err := buildApplication(cfg)
	if err != nil {
		log.Fatal(map[string]any{"error": err}, "Failed to build application")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Info(map[string]any{"signal": sig.String()}, "Shutdown signal received")
		cancel()
	}()

	if err := application.Run(ctx); err != nil {
		log.Fatal(map[string]any{"error": err}, "Bot failed")
	}

	log.Info(nil, "reactguard stopped gracefully")
}

// buildApplication constructs all components and wires them together
func buildApplication(cfg *config.AppConfig) (*Application, error) {
	if cfg.DiscordToken == "" {
		return nil, fmt.Errorf("discord token is required (set GUARD_DISCORD_TOKEN or DISCORD_BOT_TOKEN)")
	}

	clk := &clock.RealClock{}
	logger := log.GetLogger()

	core, err := app.Build(cfg, clk, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build persistence core: %w", err)
	}

	cd, err := cooldown.New(cooldownEntries, cfg.TimeoutCooldown, clk)
	if err != nil {
		_ = core.Close()
		return nil, fmt.Errorf("failed to create timeout cooldown: %w", err)
	}

	gw, err := discord.New(discord.Options{Token: cfg.DiscordToken, Logger: logger})
	if err != nil {
		_ = core.Close()
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}

	mod := moderation.New(moderation.Options{
		Platform:          gw,
		Configs:           core.Configs,
		Blacklist:         core.Blacklists,
		Cooldown:          cd,
		DefaultLogChannel: cfg.DefaultLogChannel,
		Clock:             clk,
		Logger:            logger,
	})
	gw.Bind(mod)

	log.Info(map[string]any{
		"cooldown":       cfg.TimeoutCooldown,
		"cooldown_slots": cooldownEntries,
	}, "Moderation service configured")

	return &Application{
		config:    cfg,
		core:      core,
		gateway:   gw,
		moderator: mod,
	}, nil
}

// Run connects to the gateway and blocks until ctx is cancelled
func (a *Application) Run(ctx context.Context) error {
	if err := a.core.Store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := a.gateway.Open(); err != nil {
		return err
	}
	log.Info(nil, "reactguard started")

	<-ctx.Done()
	log.Info(nil, "Shutdown initiated")

	return a.shutdown()
}

// shutdown disconnects and releases storage within defaultShutdownTimeout.
func (a *Application) shutdown() error {
	done := make(chan error, 1)
	go func() {
		if err := a.gateway.Close(); err != nil {
			log.Warn(map[string]any{"error": err}, "Error during gateway shutdown")
		}
		a.core.LogSummary()
		done <- a.core.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		log.Info(nil, "Graceful shutdown completed")
		return nil
	case <-time.After(defaultShutdownTimeout):
		log.Warn(map[string]any{"timeout": defaultShutdownTimeout}, "Shutdown timeout exceeded")
		return fmt.Errorf("shutdown timeout")
	}
}
