// Package app wires configuration into runnable commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"fx-rate-alerts/internal/alerting"
	"fx-rate-alerts/internal/config"
	"fx-rate-alerts/internal/fetcher"
	"fx-rate-alerts/internal/scheduler"
	"fx-rate-alerts/internal/service"
	"fx-rate-alerts/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newFetcher() fetcher.RateFetcher {
	return fetcher.NewEximbank(fetcher.Options{
		BaseURL:      a.Config.Fetch.BaseURL,
		AuthKey:      a.Config.Fetch.AuthKey,
		Timeout:      a.Config.Fetch.Timeout,
		Retries:      a.Config.Fetch.Retries,
		RetryBackoff: a.Config.Fetch.RetryBackoff,
		LookbackDays: a.Config.Fetch.LookbackDays,
		UserAgent:    a.Config.Fetch.UserAgent,
	}, a.Logger)
}

// newNotifier assembles the channel fan-out. Channels without credentials
// are disabled with a warning instead of failing the whole command, so an
// unconfigured bot can still sample and persist.
func (a *App) newNotifier() alerting.Notifier {
	cfg := a.Config.Alerting
	if !cfg.Enabled {
		return nil
	}

	var channels alerting.Multi
	for _, ch := range cfg.Channels {
		switch ch {
		case config.ChannelDiscord:
			if cfg.Discord.WebhookURL == "" {
				a.Logger.Warn().Msg("alerting.discord.webhook_url not configured; discord channel disabled")
				continue
			}
			channels = append(channels, alerting.NewDiscordNotifier(cfg.Discord.WebhookURL, cfg.Timeout, a.Logger))
		case config.ChannelTelegram:
			if cfg.Telegram.BotToken == "" || cfg.Telegram.ChatID == "" {
				a.Logger.Warn().Msg("alerting.telegram credentials not configured; telegram channel disabled")
				continue
			}
			channels = append(channels, alerting.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.APIBase, cfg.Timeout, a.Logger))
		}
	}
	if len(channels) == 0 {
		a.Logger.Warn().Msg("no alert channels usable; notifications disabled")
		return nil
	}
	return channels
}

func (a *App) openStore(ctx context.Context) (storage.Store, error) {
	store, err := storage.Open(ctx, a.Config.Storage)
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", a.Config.Storage.Backend, err)
	}
	return store, nil
}

// Run executes exactly one polling cycle and exits. This is the entrypoint
// cron or a systemd timer invokes; cadence and overlap control live with
// the external scheduler.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	svc := service.New(a.Config, nil, a.newFetcher(), store, a.newNotifier(), a.Logger)

	bucket := time.Now().UTC().Truncate(a.Config.Scheduler.Interval)
	a.Logger.Info().Time("bucket", bucket).Msg("running one polling cycle")
	return svc.ProcessCycle(ctx, bucket)
}

// Watch runs the built-in aligned loop for deployments without cron.
func (a *App) Watch(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		RunOnStart:   a.Config.Scheduler.RunOnStart,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	svc := service.New(a.Config, sched, a.newFetcher(), store, a.newNotifier(), a.Logger)

	a.Logger.Info().Dur("interval", a.Config.Scheduler.Interval).Msg("starting watch loop")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("watch loop terminated with error")
		return err
	}

	a.Logger.Info().Msg("watch loop stopped")
	return nil
}

// ExportOptions hold parameters for exporting one symbol's history.
type ExportOptions struct {
	Symbol    string
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Alerts bool
	Limit  int
}

// BootstrapOptions configure the history bootstrap job.
type BootstrapOptions struct {
	Days   int
	Force  bool
	DryRun bool
}

// SimulateOptions inject an artificial quote into one alert cycle.
type SimulateOptions struct {
	Symbol string
	Price  float64
}
