package warehouse

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/red-atencion/outreach-cli/internal/db"
	"github.com/red-atencion/outreach-cli/internal/zone"
)

var zoneColumns = []string{"conjunto", "tipo", "precedencia", "etiqueta", "geom"}

// ZoneRows flattens zone sets into COPY rows. Geometry is EWKB so a PostGIS
// column can cast it directly; a plain BYTEA column stores it unchanged.
func ZoneRows(sets []*zone.Set) ([][]any, error) {
	var rows [][]any
	for i, s := range sets {
		for _, f := range s.Features {
			g, err := zone.EncodeEWKB(f)
			if err != nil {
				return nil, err
			}
			rows = append(rows, []any{s.Name, string(s.Kind), i, f.Label, g})
		}
	}
	return rows, nil
}

// ReplaceZones publishes the loaded zone geometry next to the case table so
// dashboards can draw the same polygons the resolver used.
func (s *PostgresSink) ReplaceZones(ctx context.Context, table string, sets []*zone.Set) error {
	if _, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+db.SanitizeTable(table)+` (
	conjunto    TEXT NOT NULL,
	tipo        TEXT NOT NULL,
	precedencia INTEGER NOT NULL,
	etiqueta    TEXT NOT NULL,
	geom        BYTEA
)`); err != nil {
		return eris.Wrapf(err, "warehouse: migrate %s", table)
	}

	rows, err := ZoneRows(sets)
	if err != nil {
		return eris.Wrap(err, "warehouse: encode zones")
	}
	n, err := db.ReplaceRows(ctx, s.pool, table, zoneColumns, rows)
	if err != nil {
		return eris.Wrapf(err, "warehouse: replace %s", table)
	}
	zap.L().Info("zone table replaced",
		zap.String("component", "warehouse.postgres"),
		zap.String("table", table),
		zap.Int64("rows", n),
	)
	return nil
}
