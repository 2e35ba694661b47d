package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/forcetech/cookvision/internal/app"
	"github.com/forcetech/cookvision/internal/bot"
	"github.com/forcetech/cookvision/internal/config"
	"github.com/forcetech/cookvision/internal/maintenance"
	"github.com/forcetech/cookvision/internal/telemetry"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	configDir, err := config.Dir()
	if err != nil {
		config.FatalWithWait("%v", err)
	}

	// Try to load existing config.env
	config.LoadEnvFile(configDir)

	cfg, err := config.Load("", configDir)
	if err != nil {
		config.FatalWithWait("invalid configuration: %v", err)
	}

	if missing := cfg.Missing(config.ModeBot); len(missing) > 0 {
		if config.IsInteractiveTerminal() {
			// Interactive terminal - run setup wizard
			if !config.RunSetupWizard(configDir, config.ModeBot) {
				config.WaitOnWindows()
				os.Exit(1)
			}
			if cfg, err = config.Load("", configDir); err != nil {
				config.FatalWithWait("invalid configuration: %v", err)
			}
		} else {
			// Non-interactive (systemd, k8s, etc.) - fail with clear error
			config.FatalWithWait("missing required config: %s", strings.Join(missing, ", "))
		}
	}

	ring := telemetry.NewRing(cfg.Telemetry.RingSize)
	logCloser, err := telemetry.ConfigureLogger(telemetry.LogOptions{
		Level: cfg.Logging.Level,
		File:  cfg.Logging.File,
		Hooks: []zerolog.Hook{ring.Hook()},
	})
	if err != nil {
		config.FatalWithWait("failed to configure logging: %v", err)
	}
	defer logCloser.Close()
	log.Info().Str("logFile", cfg.Logging.File).Str("version", bot.Version).Msg("starting cookvision bot")

	// Create context that cancels on SIGINT or SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// The ring keeps error text and attrs from sinks; it drops the log line
	// that echoes each entry.
	sinks := telemetry.Multi{ring}
	if !cfg.Telemetry.Disabled {
		provider := startTelemetry(ctx, cfg, configDir)
		if provider != nil {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := provider.Shutdown(shutdownCtx); err != nil {
					log.Warn().Err(err).Msg("failed to flush telemetry")
				}
			}()
			sinks = append(sinks, provider.Sink())
		}
	}

	services, err := app.Open(ctx, cfg, app.Options{
		Sink:      sinks,
		AppUserID: func(profile string) string { return "tg:" + profile },
	})
	if err != nil {
		config.FatalWithWait("%v", err)
	}
	defer services.Close()

	scanner, err := services.Scanner()
	if err != nil {
		config.FatalWithWait("%v", err)
	}

	tg, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		config.FatalWithWait("failed to initialize telegram bot: %v", err)
	}
	tg.Debug = false
	log.Info().Str("username", tg.Self.UserName).Str("admin", adminLabel(cfg.Bot.AdminID)).Msg("authorized on account")

	// Register bot commands for Telegram's command menu
	bot.RegisterCommands(tg)

	b := bot.NewBot(tg, bot.Deps{
		Scanner:         scanner,
		Library:         services.Lists,
		Entitlements:    services.Gate,
		Suggester:       services.Suggester,
		Logs:            ring,
		DefaultLanguage: cfg.DefaultLanguage,
		AdminID:         cfg.Bot.AdminID,
	})

	g, ctx := errgroup.WithContext(ctx)

	// Run bot update loop; housekeeping stops with it
	g.Go(func() error {
		defer cancel()
		return b.Run(ctx, tg)
	})

	if cfg.Vision.Cache {
		housekeeping := maintenance.NewService(services.Store)
		g.Go(func() error {
			housekeeping.Run(ctx)
			return nil
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("shutdown with error")
	} else {
		log.Info().Msg("shutdown complete")
	}
}

// startTelemetry creates the trace provider. Failures only disable traces.
func startTelemetry(ctx context.Context, cfg *config.Config, configDir string) *telemetry.Provider {
	installID, err := telemetry.InstallID(configDir)
	if err != nil {
		log.Warn().Err(err).Msg("failed to read install id")
	}
	device := telemetry.LookupDevice(ctx, cfg.Telemetry.DeviceLookupURL, installID)

	provider, err := telemetry.NewProvider(ctx, telemetry.ProviderConfig{
		ServiceName:    config.AppName,
		ServiceVersion: bot.Version,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		TraceFile:      cfg.Telemetry.TraceFile,
		Device:         device,
	})
	if err != nil {
		log.Warn().Err(err).Msg("telemetry disabled")
		return nil
	}
	if provider != nil {
		log.Info().Str("installId", installID).Str("country", device.Country).Msg("telemetry enabled")
	}
	return provider
}

// adminLabel is used in startup logs only.
func adminLabel(id int64) string {
	if id == 0 {
		return "none"
	}
	return strconv.FormatInt(id, 10)
}
