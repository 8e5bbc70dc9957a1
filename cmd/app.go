package cmd

import (
	"context"
	"database/sql"
	"os"

	"github.com/conneroisu/tmplview/internal/config"
	"github.com/conneroisu/tmplview/internal/engine"
	"github.com/conneroisu/tmplview/internal/locator"
	"github.com/conneroisu/tmplview/internal/logging"
	"github.com/conneroisu/tmplview/internal/store"
)

// app is the engine and its collaborators, built from configuration.
type app struct {
	cfg    *config.Config
	logger logging.Logger
	engine *engine.Engine
	views  *locator.FSLocator
	db     *sql.DB
}

func newLogger(cfg *config.Config) logging.Logger {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logging.LevelInfo
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
}

func engineOptions(cfg *config.Config, logger logging.Logger) engine.Options {
	return engine.Options{
		Cache:      cfg.Views.Cache,
		Production: cfg.Production() || !cfg.Development.Diagnostics,
		Extension:  cfg.Views.Extension,
		PersistDir: cfg.Views.PersistDir,
		Pretty:     cfg.Output.Pretty,
		Minify:     cfg.Output.Minify,
		MaxDepth:   cfg.Views.MaxDepth,
		Locale:     cfg.Views.Locale,
		Currency:   cfg.Views.Currency,
		Logger:     logger,
	}
}

// newApp loads configuration and wires the engine. Views in the SQL store,
// when one is configured, take precedence over files.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg)

	a := &app{
		cfg:    cfg,
		logger: logger,
		views:  locator.NewDirLocator(cfg.Views.Root, cfg.Views.Extension),
	}

	var locators []locator.ViewLocator
	if cfg.Store.DSN != "" {
		db, err := store.Open(ctx, cfg.Store.DSN)
		if err != nil {
			return nil, err
		}
		sqlViews := locator.NewSQLLocator(db)
		if err := sqlViews.SetupSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
		a.db = db
		locators = append(locators, sqlViews)
	}
	locators = append(locators, a.views)

	a.engine = engine.New(engineOptions(cfg, logger), locators...)
	return a, nil
}

func (a *app) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}
