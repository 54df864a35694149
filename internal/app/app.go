// Package app wires the configured store, catalogue and engine together
// for the server and the CLI.
package app

import (
	"fmt"
	"log/slog"

	"github.com/dgallion1/offersplice/internal/cms"
	"github.com/dgallion1/offersplice/internal/config"
	"github.com/dgallion1/offersplice/internal/engine"
	"github.com/dgallion1/offersplice/internal/localstore"
	"github.com/dgallion1/offersplice/internal/locate"
	"github.com/dgallion1/offersplice/internal/offer"
	"github.com/dgallion1/offersplice/internal/pipeline"
	"github.com/dgallion1/offersplice/internal/store"
)

// App holds the long-lived collaborators.
type App struct {
	Store  store.Store
	Stats  *store.Stats
	Local  *localstore.Store // nil unless STORE_DRIVER=sqlite
	Engine *engine.Engine
	Worker *pipeline.Worker

	closers []func() error
}

// Open loads the catalogue and connects the configured store.
func Open(cfg config.Config, log *slog.Logger) (*App, error) {
	cat, err := offer.LoadCatalogue(cfg.CataloguePath)
	if err != nil {
		return nil, err
	}
	log.Info("catalogue loaded", "path", cfg.CataloguePath, "offers", cat.Registry.Len())

	a := &App{Stats: store.NewStats(cfg.StatsWindow)}

	var backend store.Store
	switch cfg.StoreDriver {
	case config.DriverCMS:
		c := cms.NewClient(cfg.CMSURL, cfg.CMSToken, cfg.CMSDataset)
		a.closers = append(a.closers, func() error { c.Close(); return nil })
		backend = c
	case config.DriverSQLite:
		ls, err := localstore.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, ls.Close)
		a.Local = ls
		backend = ls
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
	a.Store = store.Measured{Store: backend, Stats: a.Stats}

	opts := engine.Options{LimitedMax: cfg.LimitedMax, MaxInsert: cfg.MaxInsert}
	if cfg.SummaryHeading != "" {
		m := locate.DefaultMarkers()
		m.Summary = cfg.SummaryHeading
		opts.Markers = &m
	}
	a.Engine = engine.New(cat, opts)
	a.Worker = pipeline.NewWorker(a.Store, a.Engine, log, cfg.BatchDelay)
	return a, nil
}

// Close releases the store connections.
func (a *App) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
