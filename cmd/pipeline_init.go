package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/red-atencion/outreach-cli/internal/db"
	"github.com/red-atencion/outreach-cli/internal/identity"
	"github.com/red-atencion/outreach-cli/internal/intake"
	"github.com/red-atencion/outreach-cli/internal/model"
	"github.com/red-atencion/outreach-cli/internal/outcome"
	"github.com/red-atencion/outreach-cli/internal/pipeline"
	"github.com/red-atencion/outreach-cli/internal/store"
	"github.com/red-atencion/outreach-cli/internal/warehouse"
	"github.com/red-atencion/outreach-cli/internal/zone"
)

// pipelineEnv holds the store, sinks and the pipeline needed by the run and
// serve commands.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
	Geometry *zone.FileProvider
	// Zones is set only when the warehouse is Postgres.
	Zones   *warehouse.PostgresSink
	closers []func()
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	for i := len(pe.closers) - 1; i >= 0; i-- {
		pe.closers[i]()
	}
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initStore opens the configured historical store and applies its schema.
func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.Pool)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initWarehouse builds the configured sink. A Postgres warehouse without its
// own URL shares the store's pool.
func initWarehouse(ctx context.Context, st store.Store) (pipeline.Warehouse, *warehouse.PostgresSink, func(), error) {
	noop := func() {}
	switch cfg.Warehouse.Driver {
	case "", "none":
		return warehouse.Nop{}, nil, noop, nil
	case "csv":
		return warehouse.NewCSVSink(cfg.Warehouse.CSVPath), nil, noop, nil
	case "postgres":
	default:
		return nil, nil, noop, eris.Errorf("unsupported warehouse driver: %s", cfg.Warehouse.Driver)
	}

	var (
		pool    db.Pool
		closeFn = noop
	)
	if cfg.Warehouse.DatabaseURL != "" {
		p, err := db.Connect(ctx, cfg.Warehouse.DatabaseURL, cfg.Store.Pool)
		if err != nil {
			return nil, nil, noop, eris.Wrap(err, "connect warehouse")
		}
		pool, closeFn = p, p.Close
	} else if ps, ok := st.(*store.PostgresStore); ok {
		pool = ps.Pool()
		zap.L().Info("warehouse using shared store pool")
	} else {
		return nil, nil, noop, eris.New("warehouse.database_url is required when the store is not postgres")
	}

	sink := warehouse.NewPostgresSink(pool, cfg.Warehouse.Table)
	if err := sink.Migrate(ctx); err != nil {
		closeFn()
		return nil, nil, noop, err
	}
	return sink, sink, closeFn, nil
}

// initClassifiers builds the identity resolver and outcome categorizer from
// config, falling back to the built-in vocabularies.
func initClassifiers() (*identity.Resolver, *outcome.Categorizer, error) {
	refusal := cfg.Identity.RefusalPatterns
	if len(refusal) == 0 {
		refusal = identity.DefaultRefusalPatterns
	}
	foreign := cfg.Identity.ForeignPatterns
	if len(foreign) == 0 {
		foreign = identity.DefaultForeignPatterns
	}
	ids, err := identity.New(refusal, foreign)
	if err != nil {
		return nil, nil, err
	}

	cat, err := outcome.New(outcome.DefaultTaxonomy(), cfg.OutcomeOptions())
	if err != nil {
		return nil, nil, err
	}
	return ids, cat, nil
}

// initPipeline sets up the store, warehouse, classifiers and the Pipeline.
// Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ids, cat, err := initClassifiers()
	if err != nil {
		return nil, err
	}
	evo, err := cfg.EvolutionOptions()
	if err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	env := &pipelineEnv{Store: st}

	wh, zones, closeFn, err := initWarehouse(ctx, st)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.closers = append(env.closers, closeFn)
	env.Zones = zones

	env.Geometry = zone.NewFileProvider(cfg.Zones.Sets)
	env.Pipeline = pipeline.New(env.Geometry, st, wh, ids, cat, pipeline.Options{
		ExcludedAgencies: cfg.Intake.ExcludedAgencies,
		PendingStatus:    cfg.Intake.PendingStatus,
		Evolution:        evo,
	})

	zap.L().Info("pipeline initialized",
		zap.String("store", cfg.Store.Driver),
		zap.String("warehouse", cfg.Warehouse.Driver),
		zap.Int("zone_sets", len(cfg.Zones.Sets)),
	)
	return env, nil
}

// readInput parses a case file, choosing the reader by extension.
func readInput(path string) ([]model.CaseRecord, error) {
	opts, err := cfg.IntakeOptions()
	if err != nil {
		return nil, err
	}

	if strings.EqualFold(filepath.Ext(path), ".csv") {
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "open %s", path)
		}
		defer f.Close() //nolint:errcheck
		return intake.ReadCSV(f, opts)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", path)
	}
	return intake.ReadSpreadsheet(data, opts)
}
