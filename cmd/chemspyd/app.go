package main

import (
	"context"
	"fmt"

	_ "github.com/nerrad567/chemspyd-core/migrations"

	"github.com/nerrad567/chemspyd-core/internal/channel"
	"github.com/nerrad567/chemspyd-core/internal/controller"
	"github.com/nerrad567/chemspyd-core/internal/events"
	"github.com/nerrad567/chemspyd-core/internal/infrastructure/config"
	"github.com/nerrad567/chemspyd-core/internal/infrastructure/database"
	"github.com/nerrad567/chemspyd-core/internal/infrastructure/logging"
	"github.com/nerrad567/chemspyd-core/internal/journal"
	"github.com/nerrad567/chemspyd-core/internal/zone"
)

// app is the wired core: registry, channel, controller and the optional
// command journal.
type app struct {
	cfg      *config.Config
	log      *logging.Logger
	registry *zone.Registry
	channel  *channel.Channel
	ctl      *controller.Controller

	db      *database.DB
	journal *journal.SQLiteRepository

	quantities events.QuantityFanout
	closers    []func()
}

// openApp loads the configuration and builds the core. With withJournal
// the SQLite journal is opened (when enabled), migrated, attached as a
// channel observer and used to restore tracked quantities.
func (o *options) openApp(ctx context.Context, withJournal bool) (*app, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: logging.New(cfg.Logging, version)}
	a.closers = append(a.closers, func() { _ = a.log.Close() })

	if err := a.build(); err != nil {
		a.close()
		return nil, err
	}
	if withJournal && cfg.Database.Enabled {
		if err := a.openJournal(ctx); err != nil {
			a.close()
			return nil, err
		}
	}
	return a, nil
}

func (a *app) build() error {
	elements, err := zone.LoadElementsFile(a.cfg.Zones.ElementsFile)
	if err != nil {
		return fmt.Errorf("loading elements: %w", err)
	}
	a.registry, err = zone.NewRegistry(zone.RegistryConfig{
		Elements:        elements,
		TrackQuantities: a.cfg.Zones.TrackQuantities,
		Logger:          a.log.With("component", "zone"),
	})
	if err != nil {
		return fmt.Errorf("building zone registry: %w", err)
	}

	var liquids *controller.SystemLiquids
	if a.cfg.SystemLiquidsFile != "" {
		if liquids, err = controller.LoadSystemLiquids(a.cfg.SystemLiquidsFile); err != nil {
			return fmt.Errorf("loading system liquids: %w", err)
		}
	}

	a.channel, err = channel.New(channel.Config{
		Dir:          a.cfg.Channel.Dir,
		PollInterval: a.cfg.Channel.PollInterval,
		Timeout:      a.cfg.Channel.Timeout,
		Simulation:   a.cfg.Channel.Simulation,
	})
	if err != nil {
		return fmt.Errorf("opening command channel: %w", err)
	}
	a.channel.SetLogger(a.log.With("component", "channel"))

	keys := make([]controller.StatusKey, 0, len(a.cfg.Status.Keys))
	for _, k := range a.cfg.Status.Keys {
		keys = append(keys, controller.StatusKey{Name: k.Name, SourceUnit: k.SourceUnit, TargetUnit: k.TargetUnit})
	}
	a.ctl, err = controller.New(controller.Config{
		Registry:   a.registry,
		Executor:   a.channel,
		Liquids:    liquids,
		StatusKeys: keys,
	})
	if err != nil {
		return fmt.Errorf("building controller: %w", err)
	}
	a.ctl.SetLogger(a.log.With("component", "controller"))
	return nil
}

func (a *app) openJournal(ctx context.Context) error {
	db, err := database.Open(ctx, database.Config{
		Path:        a.cfg.Database.Path,
		WALMode:     a.cfg.Database.WALMode,
		BusyTimeout: a.cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	a.db = db
	a.closers = append(a.closers, func() {
		if err := db.Close(); err != nil {
			a.log.Error("error closing database", "error", err)
		}
	})

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	a.journal = journal.NewSQLiteRepository(db.DB)
	a.journal.SetLogger(a.log.With("component", "journal"))
	a.channel.AddObserver(a.journal)

	snaps, err := a.journal.LatestQuantities(ctx)
	if err != nil {
		return fmt.Errorf("reading quantity ledger: %w", err)
	}
	if err := a.registry.Restore(snaps); err != nil {
		return fmt.Errorf("restoring quantities: %w", err)
	}
	if len(snaps) > 0 {
		a.log.Info("tracked quantities restored", "wells", len(snaps))
	}
	a.addQuantityRecorder(a.journal)
	return nil
}

// addQuantityRecorder adds r to the recorders the controller writes to.
func (a *app) addQuantityRecorder(r events.QuantityRecorder) {
	a.quantities = append(a.quantities, r)
	a.ctl.SetQuantityRecorder(a.quantities)
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
