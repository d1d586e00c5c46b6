package warehouse

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/red-atencion/outreach-cli/internal/zone"
)

func zoneSets() []*zone.Set {
	sq := geom.NewMultiPolygon(geom.XY).MustSetCoords([][][]geom.Coord{{{
		{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0},
	}}})
	return []*zone.Set{
		{Name: "villas", Kind: zone.KindSpecial, Features: []zone.Feature{zone.NewFeature("villa 31", sq)}},
		{Name: "comunas", Kind: zone.KindBase, Features: []zone.Feature{
			zone.NewFeature("1", sq),
			zone.NewFeature("2", sq),
		}},
	}
}

func TestZoneRows(t *testing.T) {
	rows, err := ZoneRows(zoneSets())
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []any{"villas", "special", 0, "villa 31"}, rows[0][:4])
	assert.Equal(t, "comunas", rows[2][0])
	assert.Equal(t, 1, rows[2][2])
	g, ok := rows[2][4].([]byte)
	require.True(t, ok)
	assert.NotEmpty(t, g)
	for _, r := range rows {
		assert.Len(t, r, len(zoneColumns))
	}
}

func TestPostgresSink_ReplaceZones(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "zonas"`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectBegin()
	mock.ExpectExec(`TRUNCATE "zonas"`).WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"zonas"}, zoneColumns).WillReturnResult(3)
	mock.ExpectCommit()

	sink := NewPostgresSink(mock, "historico_limpio")
	require.NoError(t, sink.ReplaceZones(context.Background(), "zonas", zoneSets()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSink_ReplaceZonesMigrateError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "zonas"`).WillReturnError(fmt.Errorf("permission denied"))

	sink := NewPostgresSink(mock, "historico_limpio")
	assert.ErrorContains(t, sink.ReplaceZones(context.Background(), "zonas", zoneSets()), "migrate zonas")
	assert.NoError(t, mock.ExpectationsWereMet())
}
