package app

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"dealwatcher/internal/alerting"
	"dealwatcher/internal/config"
	"dealwatcher/internal/digest"
	"dealwatcher/internal/scheduler"
	"dealwatcher/internal/service"
	"dealwatcher/internal/snapshot"
	"dealwatcher/internal/storage"
)

// ErrNoHistory indicates that no observations matched an analysis request.
var ErrNoHistory = errors.New("no observations found")

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	// Out receives command reports.
	Out io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger(), Out: os.Stdout}
}

func (a *App) newSource(path string) snapshot.Source {
	if path == "" {
		path = a.Config.Snapshot.Path
	}
	return snapshot.NewFileSource(snapshot.FileOptions{
		Path:           path,
		GenderKeywords: a.Config.Snapshot.GenderKeywords,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if !a.Config.Alerting.Enabled {
		return nil
	}
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, cfg.Timeout, a.Logger)
	}
	a.Logger.Warn().Msg("telegram disabled; digests will only be logged")
	return alerting.NewLogNotifier(a.Logger)
}

func (a *App) loadBlocklist() (digest.Blocklist, error) {
	bl, err := digest.LoadBlocklist(a.Config.Digest.BlocklistPath)
	if err != nil {
		return digest.Blocklist{}, err
	}
	a.Logger.Debug().Int("rules", len(bl.Rules)).Str("path", a.Config.Digest.BlocklistPath).Msg("blocklist loaded")
	return bl, nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Run executes the long-running ingest service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	blocklist, err := a.loadBlocklist()
	if err != nil {
		return err
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
		RunOnStart:   a.Config.Scheduler.RunOnStart,
		TickTimeout:  a.Config.Scheduler.TickTimeout,
	}, a.Logger)

	var obsStore storage.ObservationStore
	var digestStore storage.DigestStore
	if store != nil {
		obsStore = store
		digestStore = store
	}

	svc := service.New(a.Config, sched, a.newSource(""), obsStore, digestStore, blocklist, a.newNotifier(), a.Logger)

	a.Logger.Info().Str("snapshot", a.Config.Snapshot.Path).Dur("interval", a.Config.Scheduler.Interval).Msg("starting ingest service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("ingest service stopped")
	return nil
}

// Migrate applies pending schema migrations.
func (a *App) Migrate(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database.dsn not configured; cannot migrate")
	}
	defer closeStore()

	applied, err := store.Migrate(ctx, a.Config.Database.MigrationsPath)
	if err != nil {
		return err
	}
	a.Logger.Info().Strs("applied", applied).Msg("migrations complete")
	return nil
}

// HistoryOptions select the observations an analysis command works on.
type HistoryOptions struct {
	ProductID string
	Sizes     []string
	Gender    string
	Tiers     []string
	// Days limits history to the trailing window; zero means all.
	Days int
	// Snapshots is a glob of CSV snapshots read instead of the database.
	Snapshots string
}

func (h HistoryOptions) filter(country string, now time.Time) storage.ObservationFilter {
	f := storage.ObservationFilter{
		ProductID: h.ProductID,
		Country:   country,
		Sizes:     h.Sizes,
		Gender:    h.Gender,
		Tiers:     h.Tiers,
	}
	if h.Days > 0 {
		f.Since = now.AddDate(0, 0, -h.Days)
	}
	return f
}

// ExportOptions hold parameters for exporting a product history.
type ExportOptions struct {
	History   HistoryOptions
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// IngestOptions configure a one-off snapshot ingest.
type IngestOptions struct {
	Paths  []string
	DryRun bool
	Notify bool
}

// AnalyzeOptions configure the analyze command.
type AnalyzeOptions struct {
	History HistoryOptions
	// Target enables the price-drop probability section.
	Target      *float64
	HorizonDays int
	Degree      int
}
