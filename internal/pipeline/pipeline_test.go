package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/red-atencion/outreach-cli/internal/evolution"
	"github.com/red-atencion/outreach-cli/internal/identity"
	"github.com/red-atencion/outreach-cli/internal/model"
	"github.com/red-atencion/outreach-cli/internal/outcome"
	"github.com/red-atencion/outreach-cli/internal/warehouse"
	"github.com/red-atencion/outreach-cli/internal/zone"
)

var (
	inCommune1 = &model.Point{Lat: -34.55, Lon: -58.45}
	inCommune2 = &model.Point{Lat: -34.55, Lon: -58.35}
	inPlaza    = &model.Point{Lat: -34.605, Lon: -58.405}
	outside    = &model.Point{Lat: -30, Lon: -60}
)

// 2025-09-07 is a Sunday.
func day(week, weekday, hour int) time.Time {
	return time.Date(2025, 9, 7, hour, 0, 0, 0, time.UTC).AddDate(0, 0, 7*(week-1)+weekday)
}

func newTestPipeline(t *testing.T, geo GeometryProvider, hist HistoryStore, wh Warehouse) *Pipeline {
	t.Helper()
	cat, err := outcome.New(outcome.DefaultTaxonomy(), outcome.Options{})
	require.NoError(t, err)
	p := New(geo, hist, wh, identity.NewDefault(), cat, Options{
		ExcludedAgencies: []string{"SALUD MENTAL", "AREA OPERATIVA"},
		PendingStatus:    "PENDIENTE",
		Evolution:        evolution.DefaultOptions(),
	})
	p.now = func() time.Time { return day(5, 0, 0) }
	return p
}

func incoming() []model.CaseRecord {
	return []model.CaseRecord{
		{IdentityRaw: "30.123.456", Start: day(1, 1, 9), Location: inCommune2,
			Result: "01-Traslado efectivo a CIS", Agency: "DIPA I", FirstName: "José-María", CardType: "AUTOMATICA"},
		{IdentityRaw: "30123456", Start: day(2, 1, 9), Location: inCommune2,
			Result: "Se realiza entrevista", SupervisorClose: "N/A", Agency: "DIPA I"},
		{IdentityRaw: "30123456", Start: day(3, 1, 9), Location: inPlaza,
			Result: "xyz", Status: "PENDIENTE", Agency: "DIPA I", CardType: "AUTOMATICA"},
		{IdentityRaw: "no brinda", Start: day(3, 2, 9), Location: outside,
			Result: "15-Sin cubrir", Agency: "DIPA II"},
		{IdentityRaw: "20111222", Start: day(3, 3, 9), Location: inCommune1,
			Result: "se realiza entrevista", Agency: "Salud Mental"},
	}
}

func TestRun_EndToEnd(t *testing.T) {
	hist := &memHistory{}
	csvPath := filepath.Join(t.TempDir(), "historico_limpio.csv")
	p := newTestPipeline(t, testGeometry(), hist, warehouse.NewCSVSink(csvPath))

	res, err := p.Run(context.Background(), "export.xlsx", incoming())
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusComplete, res.Run.Status)
	assert.Equal(t, 5, res.Run.Ingested)
	assert.Equal(t, 4, res.Run.Appended)
	assert.Equal(t, 4, res.Run.Total, "excluded agency dropped")
	assert.Equal(t, 1, res.Run.Unmatched)
	assert.Equal(t, 1, res.Run.NoZone)
	assert.Nil(t, res.Run.Watermark)
	require.Len(t, hist.runs, 1)
	require.Len(t, hist.batch, 4)

	b := res.Batch
	assert.Equal(t, "2", b[0].ZoneLabel())
	assert.Equal(t, "JOSE MARIA", b[0].FirstName)
	assert.Equal(t, outcome.CategoryTransferCIS, b[0].Category)
	assert.True(t, b[0].Contacted)
	assert.True(t, b[0].FollowUp)
	assert.Equal(t, model.EvolutionNew, b[0].Evolution)
	assert.Equal(t, int64(30123456), b[0].Identity.Number)

	assert.Equal(t, "Se realiza entrevista", b[1].OutcomeText, "placeholder supervisor close ignored")
	assert.Equal(t, "se realiza entrevista", b[1].Category)
	assert.Equal(t, model.EvolutionRecurring, b[1].Evolution)

	assert.Equal(t, "Plaza Once", b[2].ZoneLabel())
	assert.Equal(t, outcome.Unmatched, b[2].Category)
	assert.Equal(t, model.ContactUncovered, b[2].ContactLevel)
	assert.Equal(t, model.EvolutionMigratory, b[2].Evolution)

	assert.Nil(t, b[3].Zone)
	assert.Equal(t, model.IdentityUnresolved, b[3].Identity.Category)
	assert.Equal(t, model.EvolutionUnclassifiable, b[3].Evolution)

	_, err = os.Stat(csvPath)
	assert.NoError(t, err)
}

func TestRun_Idempotent(t *testing.T) {
	hist := &memHistory{}
	csvPath := filepath.Join(t.TempDir(), "out.csv")
	p := newTestPipeline(t, testGeometry(), hist, warehouse.NewCSVSink(csvPath))
	ctx := context.Background()

	_, err := p.Run(ctx, "a.xlsx", incoming())
	require.NoError(t, err)
	first, err := os.ReadFile(csvPath)
	require.NoError(t, err)

	res, err := p.Run(ctx, "a.xlsx", incoming())
	require.NoError(t, err)
	second, err := os.ReadFile(csvPath)
	require.NoError(t, err)

	assert.Zero(t, res.Run.Appended)
	require.NotNil(t, res.Run.Watermark)
	assert.Equal(t, day(3, 2, 9), *res.Run.Watermark)
	assert.Equal(t, first, second)
}

func TestRun_AppendsOnlyNewerRows(t *testing.T) {
	hist := &memHistory{}
	p := newTestPipeline(t, testGeometry(), hist, warehouse.Nop{})
	ctx := context.Background()

	_, err := p.Run(ctx, "a.xlsx", incoming()[:2])
	require.NoError(t, err)

	later := model.CaseRecord{IdentityRaw: "30123456", Start: day(4, 1, 9), Location: inCommune1, Result: "se realiza entrevista"}
	same := incoming()[1]
	same.Result = "changed"
	res, err := p.Run(ctx, "b.xlsx", []model.CaseRecord{same, later})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Run.Appended)
	require.Len(t, res.Batch, 3)
	assert.Equal(t, "Se realiza entrevista", res.Batch[1].Result, "stored rows are not overwritten")
	assert.Equal(t, model.EvolutionMigratory, res.Batch[2].Evolution)
}

func TestRun_GeometryFailureWritesNothing(t *testing.T) {
	hist := &mockHistory{}
	wh := &mockWarehouse{}
	hist.On("RecordRun", mock.Anything, mock.MatchedBy(func(r *model.Run) bool {
		return r.Status == model.RunStatusFailed
	})).Return(nil)

	geo := staticGeometry{err: zone.ErrZoneSetUnavailable}
	p := newTestPipeline(t, geo, hist, wh)

	_, err := p.Run(context.Background(), "a.xlsx", incoming())
	require.Error(t, err)
	assert.ErrorIs(t, err, zone.ErrZoneSetUnavailable)
	hist.AssertNotCalled(t, "Load", mock.Anything)
	hist.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	wh.AssertNotCalled(t, "ReplaceTable", mock.Anything, mock.Anything)
	hist.AssertExpectations(t)
}

func TestRun_InvalidPrecedence(t *testing.T) {
	geo := testGeometry()
	geo.sets[0], geo.sets[1] = geo.sets[1], geo.sets[0]
	hist := &mockHistory{}
	hist.On("RecordRun", mock.Anything, mock.Anything).Return(nil)

	p := newTestPipeline(t, geo, hist, &mockWarehouse{})
	_, err := p.Run(context.Background(), "a.xlsx", incoming())
	assert.ErrorContains(t, err, "zone resolver")
}

func TestRun_SaveFailureSkipsWarehouse(t *testing.T) {
	hist := &mockHistory{}
	wh := &mockWarehouse{}
	hist.On("Load", mock.Anything).Return([]model.CaseRecord{}, nil)
	hist.On("Save", mock.Anything, mock.Anything).Return(errors.New("disk full"))
	hist.On("RecordRun", mock.Anything, mock.Anything).Return(nil)

	p := newTestPipeline(t, testGeometry(), hist, wh)
	_, err := p.Run(context.Background(), "a.xlsx", incoming())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save history")
	wh.AssertNotCalled(t, "ReplaceTable", mock.Anything, mock.Anything)
}

func TestRun_LoadFailure(t *testing.T) {
	hist := &mockHistory{}
	hist.On("Load", mock.Anything).Return(nil, errors.New("locked"))
	hist.On("RecordRun", mock.Anything, mock.Anything).Return(nil)

	p := newTestPipeline(t, testGeometry(), hist, &mockWarehouse{})
	_, err := p.Run(context.Background(), "a.xlsx", incoming())
	assert.ErrorContains(t, err, "load history")
}

func TestRun_RecordRunFailure(t *testing.T) {
	hist := &mockHistory{}
	wh := &mockWarehouse{}
	hist.On("Load", mock.Anything).Return([]model.CaseRecord{}, nil)
	hist.On("Save", mock.Anything, mock.Anything).Return(nil)
	hist.On("RecordRun", mock.Anything, mock.Anything).Return(errors.New("readonly"))
	wh.On("ReplaceTable", mock.Anything, mock.Anything).Return(nil)

	p := newTestPipeline(t, testGeometry(), hist, wh)
	_, err := p.Run(context.Background(), "a.xlsx", incoming())
	assert.ErrorContains(t, err, "record run")
	wh.AssertExpectations(t)
}
