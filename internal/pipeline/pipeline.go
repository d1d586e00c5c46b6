// Package pipeline runs one classification pass over the historical batch:
// merge new rows, resolve zones and identities, categorize outcomes, label
// population evolution, then persist and publish.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/red-atencion/outreach-cli/internal/evolution"
	"github.com/red-atencion/outreach-cli/internal/identity"
	"github.com/red-atencion/outreach-cli/internal/model"
	"github.com/red-atencion/outreach-cli/internal/outcome"
	"github.com/red-atencion/outreach-cli/internal/zone"
)

// HistoryStore loads and overwrites the accumulated batch.
type HistoryStore interface {
	Load(ctx context.Context) ([]model.CaseRecord, error)
	Save(ctx context.Context, batch []model.CaseRecord) error
	RecordRun(ctx context.Context, run *model.Run) error
}

// GeometryProvider supplies the zone sets in precedence order.
type GeometryProvider interface {
	LoadZoneSets(ctx context.Context) ([]*zone.Set, error)
}

// Warehouse publishes the enriched batch as a reporting table.
type Warehouse interface {
	ReplaceTable(ctx context.Context, batch []model.CaseRecord) error
}

// Options holds the run-level settings that are not owned by a component.
type Options struct {
	ExcludedAgencies []string
	PendingStatus    string
	Evolution        evolution.Options
}

// Pipeline wires the classifiers to their stores.
type Pipeline struct {
	geometry    GeometryProvider
	history     HistoryStore
	warehouse   Warehouse
	identity    *identity.Resolver
	categorizer *outcome.Categorizer
	opts        Options
	now         func() time.Time
}

// New creates a Pipeline with all dependencies.
func New(
	geometry GeometryProvider,
	history HistoryStore,
	warehouse Warehouse,
	identities *identity.Resolver,
	categorizer *outcome.Categorizer,
	opts Options,
) *Pipeline {
	return &Pipeline{
		geometry:    geometry,
		history:     history,
		warehouse:   warehouse,
		identity:    identities,
		categorizer: categorizer,
		opts:        opts,
		now:         time.Now,
	}
}

// Result is the outcome of one run.
type Result struct {
	Run       model.Run
	Batch     []model.CaseRecord
	Evolution evolution.Result
}

// Run merges incoming rows into the stored batch, re-derives every record and
// persists the result. Nothing is written unless every stage succeeds. The
// run log gets an entry either way.
func (p *Pipeline) Run(ctx context.Context, source string, incoming []model.CaseRecord) (*Result, error) {
	run := model.Run{
		ID:        uuid.New().String(),
		Source:    source,
		Status:    model.RunStatusFailed,
		Ingested:  len(incoming),
		StartedAt: p.now().UTC(),
	}
	log := zap.L().With(zap.String("component", "pipeline"), zap.String("run_id", run.ID))
	log.Info("pipeline: starting run", zap.String("source", source), zap.Int("ingested", len(incoming)))

	res, err := p.run(ctx, &run, incoming, log)
	run.FinishedAt = p.now().UTC()
	if err != nil {
		if recErr := p.history.RecordRun(ctx, &run); recErr != nil {
			log.Warn("pipeline: failed to record run", zap.Error(recErr))
		}
		return nil, err
	}

	run.Status = model.RunStatusComplete
	if err := p.history.RecordRun(ctx, &run); err != nil {
		return nil, eris.Wrap(err, "pipeline: record run")
	}
	res.Run = run
	log.Info("pipeline: run complete",
		zap.Int("appended", run.Appended),
		zap.Int("total", run.Total),
		zap.Int("unmatched", run.Unmatched),
		zap.Int("no_zone", run.NoZone),
	)
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, run *model.Run, incoming []model.CaseRecord, log *zap.Logger) (*Result, error) {
	var resolver *zone.Resolver
	err := stage(log, "geometry", func() error {
		sets, err := p.geometry.LoadZoneSets(ctx)
		if err != nil {
			return eris.Wrap(err, "pipeline: load zone sets")
		}
		resolver, err = zone.NewResolver(sets)
		return eris.Wrap(err, "pipeline: build zone resolver")
	})
	if err != nil {
		return nil, err
	}

	var batch []model.CaseRecord
	err = stage(log, "merge", func() error {
		historical, err := p.history.Load(ctx)
		if err != nil {
			return eris.Wrap(err, "pipeline: load history")
		}
		// Excluded agencies never reach the store, so they cannot move the
		// watermark or be re-appended by a later run.
		historical, droppedHist := ExcludeAgencies(historical, p.opts.ExcludedAgencies)
		fresh, droppedNew := ExcludeAgencies(incoming, p.opts.ExcludedAgencies)
		if dropped := droppedHist + droppedNew; dropped > 0 {
			log.Info("pipeline: excluded agency rows dropped", zap.Int("dropped", dropped))
		}

		merged := Merge(historical, fresh)
		run.Watermark = merged.Watermark
		run.Appended = merged.Appended
		if merged.Appended == 0 {
			log.Info("pipeline: no rows newer than the watermark", zap.Timep("watermark", merged.Watermark))
		}
		batch = merged.Batch
		return nil
	})
	if err != nil {
		return nil, err
	}

	var counts enrichCounts
	_ = stage(log, "classify", func() error {
		counts = p.enrich(batch, resolver)
		return nil
	})
	run.Total = len(batch)
	run.Unmatched = counts.unmatched
	run.NoZone = counts.noZone

	var evo evolution.Result
	_ = stage(log, "evolution", func() error {
		evo = evolution.Classify(batch, p.opts.Evolution)
		return nil
	})

	err = stage(log, "persist", func() error {
		if err := p.history.Save(ctx, batch); err != nil {
			return eris.Wrap(err, "pipeline: save history")
		}
		return eris.Wrap(p.warehouse.ReplaceTable(ctx, batch), "pipeline: publish warehouse table")
	})
	if err != nil {
		return nil, err
	}
	return &Result{Batch: batch, Evolution: evo}, nil
}

// stage runs fn and logs its duration.
func stage(log *zap.Logger, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	fields := []zap.Field{zap.String("stage", name), zap.Int64("duration_ms", time.Since(start).Milliseconds())}
	if err != nil {
		log.Error("pipeline: stage failed", append(fields, zap.Error(err))...)
		return err
	}
	log.Info("pipeline: stage complete", fields...)
	return nil
}
