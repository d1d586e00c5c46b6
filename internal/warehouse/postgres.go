package warehouse

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/red-atencion/outreach-cli/internal/db"
	"github.com/red-atencion/outreach-cli/internal/model"
)

// PostgresSink replaces a reporting table with TRUNCATE and COPY.
type PostgresSink struct {
	pool  db.Pool
	table string
}

// NewPostgresSink returns a sink writing to table, which may be schema-qualified.
func NewPostgresSink(pool db.Pool, table string) *PostgresSink {
	return &PostgresSink{pool: pool, table: table}
}

// Migrate creates the reporting table if it does not exist.
func (s *PostgresSink) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+db.SanitizeTable(s.table)+` (
	id                 TEXT,
	fecha_inicio       TIMESTAMPTZ NOT NULL,
	fecha_fin          TIMESTAMPTZ,
	persona_dni        TEXT,
	dni_categorizado   TEXT,
	dni_motivo         TEXT,
	persona_nombre     TEXT,
	persona_apellido   TEXT,
	latitud            DOUBLE PRECISION,
	longitud           DOUBLE PRECISION,
	comuna_calculada   TEXT,
	agencia            TEXT,
	tipo_carta         TEXT,
	estado             TEXT,
	resultado          TEXT,
	cierre_supervisor  TEXT,
	cierre_texto       TEXT,
	cierre_normalizado TEXT,
	categoria_final    TEXT,
	contacto           BOOLEAN,
	brinda_datos       BOOLEAN,
	nivel_contacto     TEXT,
	semana             DATE,
	tipo_evolucion     TEXT
)`)
	return eris.Wrapf(err, "warehouse: migrate %s", s.table)
}

// ReplaceTable implements the pipeline warehouse contract.
func (s *PostgresSink) ReplaceTable(ctx context.Context, batch []model.CaseRecord) error {
	rows := make([][]any, len(batch))
	for i := range batch {
		rows[i] = values(&batch[i])
	}
	n, err := db.ReplaceRows(ctx, s.pool, s.table, Columns, rows)
	if err != nil {
		return eris.Wrapf(err, "warehouse: replace %s", s.table)
	}
	zap.L().With(zap.String("component", "warehouse")).Info("reporting table replaced",
		zap.String("table", s.table),
		zap.Int64("rows", n),
	)
	return nil
}
