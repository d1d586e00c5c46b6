package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/twpayne/go-geom"

	"github.com/red-atencion/outreach-cli/internal/model"
	"github.com/red-atencion/outreach-cli/internal/zone"
)

// --- HistoryStore Mock ---

type mockHistory struct {
	mock.Mock
}

func (m *mockHistory) Load(ctx context.Context) ([]model.CaseRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.CaseRecord), args.Error(1)
}

func (m *mockHistory) Save(ctx context.Context, batch []model.CaseRecord) error {
	args := m.Called(ctx, batch)
	return args.Error(0)
}

func (m *mockHistory) RecordRun(ctx context.Context, run *model.Run) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

// --- Warehouse Mock ---

type mockWarehouse struct {
	mock.Mock
}

func (m *mockWarehouse) ReplaceTable(ctx context.Context, batch []model.CaseRecord) error {
	args := m.Called(ctx, batch)
	return args.Error(0)
}

// --- In-memory store ---

// memHistory keeps copies so later mutation by the pipeline cannot leak in.
type memHistory struct {
	batch []model.CaseRecord
	runs  []model.Run
}

func (m *memHistory) Load(context.Context) ([]model.CaseRecord, error) {
	return append([]model.CaseRecord(nil), m.batch...), nil
}

func (m *memHistory) Save(_ context.Context, batch []model.CaseRecord) error {
	m.batch = append([]model.CaseRecord(nil), batch...)
	return nil
}

func (m *memHistory) RecordRun(_ context.Context, run *model.Run) error {
	m.runs = append(m.runs, *run)
	return nil
}

// --- Geometry ---

type staticGeometry struct {
	sets []*zone.Set
	err  error
}

func (g staticGeometry) LoadZoneSets(context.Context) ([]*zone.Set, error) {
	return g.sets, g.err
}

func square(minX, minY, maxX, maxY float64) *geom.MultiPolygon {
	flat := []float64{minX, minY, minX, maxY, maxX, maxY, maxX, minY, minX, minY}
	mp := geom.NewMultiPolygon(geom.XY)
	if err := mp.Push(geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)})); err != nil {
		panic(err)
	}
	return mp
}

// testGeometry: communes "1" (lon -58.5..-58.4) and "2" (lon -58.4..-58.3),
// plus a special plaza inside commune 1.
func testGeometry() staticGeometry {
	return staticGeometry{sets: []*zone.Set{
		{Name: "plazas", Kind: zone.KindSpecial, Features: []zone.Feature{
			zone.NewFeature("Plaza Once", square(-58.41, -34.61, -58.40, -34.60)),
		}},
		{Name: "comunas", Kind: zone.KindBase, Features: []zone.Feature{
			zone.NewFeature("1", square(-58.5, -34.7, -58.4, -34.5)),
			zone.NewFeature("2", square(-58.4, -34.7, -58.3, -34.5)),
		}},
	}}
}
