package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"dealwatcher/internal/config"
	"dealwatcher/internal/fetcher"
	"dealwatcher/internal/ledger"
	"dealwatcher/internal/notify"
	"dealwatcher/internal/scheduler"
	"dealwatcher/internal/service"
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

func (a *App) newFetcher() fetcher.ProductFetcher {
	retry := fetcher.RetryPolicy{
		MaxAttempts: a.Config.Source.Retry.MaxAttempts,
		BaseDelay:   a.Config.Source.Retry.BaseDelay,
	}

	if a.Config.Source.Mode == config.ModeAPI {
		return fetcher.NewAPI(fetcher.APIOptions{
			BaseURL: a.Config.Source.API.BaseURL,
			APIKey:  a.Config.Source.API.Key,
			Timeout: a.Config.Source.RequestTimeout,
			Retry:   retry,
		}, a.Logger)
	}

	return fetcher.NewScrape(fetcher.ScrapeOptions{
		BaseURL:    a.Config.Source.Scrape.BaseURL,
		Timeout:    a.Config.Source.RequestTimeout,
		UserAgents: a.Config.Source.Scrape.UserAgents,
		Retry:      retry,
		Delay: fetcher.JitterDelay{
			Min: a.Config.Source.Scrape.MinDelay,
			Max: a.Config.Source.Scrape.MaxDelay,
		},
	}, a.Logger)
}

func (a *App) newNotifier() notify.Notifier {
	fan := notify.NewFanout(a.Logger)
	fan.Add("console", notify.NewConsole(nil))

	if a.Config.Notify.Email.Enabled {
		email := a.Config.Notify.Email
		fan.Add("email", notify.NewEmail(notify.EmailOptions{
			Host:     email.SMTPHost,
			Port:     email.SMTPPort,
			From:     email.From,
			To:       email.To,
			Password: email.Password,
		}, a.Logger))
	}
	return fan
}

func (a *App) openLedgerStore(ctx context.Context) (ledger.Store, func(), error) {
	if a.Config.Ledger.DSN != "" {
		store, err := ledger.NewPostgresStore(ctx, ledger.PostgresConfig{
			DSN:             a.Config.Ledger.DSN,
			MaxOpenConns:    a.Config.Ledger.MaxOpenConns,
			ConnMaxLifetime: a.Config.Ledger.ConnMaxLifetime,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}
	return ledger.NewFileStore(a.Config.Ledger.Path), nil, nil
}

// RunOptions configure the watch loop.
type RunOptions struct {
	Once bool
}

// Run executes the deal watcher: one cycle in once mode, otherwise the
// repeating schedule until the operator stops it.
func (a *App) Run(ctx context.Context, opts RunOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openLedgerStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	ldg := ledger.Load(ctx, store, a.Logger)
	source := a.newFetcher()
	notifier := a.newNotifier()

	if opts.Once {
		svc := service.New(a.Config, nil, source, ldg, notifier, a.Logger)
		a.Logger.Info().Str("mode", a.Config.Source.Mode).Msg("running single check cycle")
		return svc.RunOnce(ctx)
	}

	sched := scheduler.New(scheduler.Options{
		Interval:       a.Config.Scheduler.Interval,
		RunImmediately: a.Config.Scheduler.RunImmediately,
		StartupDelay:   a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	svc := service.New(a.Config, sched, source, ldg, notifier, a.Logger)

	a.Logger.Info().
		Str("mode", a.Config.Source.Mode).
		Dur("interval", a.Config.Scheduler.Interval).
		Bool("email", a.Config.Notify.Email.Enabled).
		Msg("starting deal watcher")

	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("watcher terminated with error")
		return err
	}

	a.Logger.Info().Msg("deal watcher stopped")
	return nil
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// ExportOptions hold parameters for exporting ledger history.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}
