package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/red-atencion/outreach-cli/internal/db"
	"github.com/red-atencion/outreach-cli/internal/model"
)

// PostgresStore implements Store on a pgx pool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres connects to connString and returns a PostgresStore.
func NewPostgres(ctx context.Context, connString string, poolCfg *db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Close does not close it.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying pool so other Postgres writers can share it.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS case_records (
	seq                BIGINT PRIMARY KEY,
	case_id            TEXT NOT NULL DEFAULT '',
	identity_raw       TEXT NOT NULL DEFAULT '',
	start_at           TEXT NOT NULL,
	end_at             TEXT,
	lat                DOUBLE PRECISION,
	lon                DOUBLE PRECISION,
	result             TEXT NOT NULL DEFAULT '',
	supervisor_close   TEXT NOT NULL DEFAULT '',
	status             TEXT NOT NULL DEFAULT '',
	card_type          TEXT NOT NULL DEFAULT '',
	agency             TEXT NOT NULL DEFAULT '',
	first_name         TEXT NOT NULL DEFAULT '',
	last_name          TEXT NOT NULL DEFAULT '',
	identity_category  TEXT NOT NULL DEFAULT '',
	identity_number    BIGINT,
	identity_reason    TEXT NOT NULL DEFAULT '',
	zone               TEXT,
	outcome_text       TEXT NOT NULL DEFAULT '',
	outcome_normalized TEXT NOT NULL DEFAULT '',
	category           TEXT NOT NULL DEFAULT '',
	contacted          BOOLEAN NOT NULL DEFAULT false,
	follow_up          BOOLEAN NOT NULL DEFAULT false,
	contact_level      TEXT NOT NULL DEFAULT '',
	week               TEXT NOT NULL DEFAULT '',
	evolution          TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	source      TEXT NOT NULL,
	status      TEXT NOT NULL,
	watermark   TEXT,
	ingested    INTEGER NOT NULL DEFAULT 0,
	appended    INTEGER NOT NULL DEFAULT 0,
	total       INTEGER NOT NULL DEFAULT 0,
	unmatched   INTEGER NOT NULL DEFAULT 0,
	no_zone     INTEGER NOT NULL DEFAULT 0,
	started_at  TEXT NOT NULL,
	finished_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context) ([]model.CaseRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+strings.Join(recordColumns, ", ")+` FROM case_records ORDER BY seq`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load batch")
	}
	defer rows.Close()

	var out []model.CaseRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: load batch")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: load batch iterate")
}

// Save replaces case_records with batch via TRUNCATE and COPY in one transaction.
func (s *PostgresStore) Save(ctx context.Context, batch []model.CaseRecord) error {
	rows := make([][]any, len(batch))
	for i := range batch {
		rows[i] = recordRow(i, &batch[i])
	}
	if _, err := db.ReplaceRows(ctx, s.pool, "case_records", recordColumns, rows); err != nil {
		return eris.Wrap(err, "postgres: save batch")
	}
	return nil
}

func (s *PostgresStore) RecordRun(ctx context.Context, run *model.Run) error {
	set := make([]string, 0, len(runColumns)-1)
	for _, c := range runColumns[1:] {
		set = append(set, c+" = EXCLUDED."+c)
	}
	params := make([]string, len(runColumns))
	for i := range params {
		params[i] = fmt.Sprintf("$%d", i+1)
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (`+strings.Join(runColumns, ", ")+`) VALUES (`+strings.Join(params, ", ")+`)
		ON CONFLICT (id) DO UPDATE SET `+strings.Join(set, ", "),
		runRow(run)...,
	)
	return eris.Wrapf(err, "postgres: record run %s", run.ID)
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + strings.Join(runColumns, ", ") + ` FROM runs WHERE 1=1`
	var args []any
	argN := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argN)
		args = append(args, string(filter.Status))
		argN++
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultRunLimit
	}
	query += fmt.Sprintf(` LIMIT $%d`, argN)
	args = append(args, limit)
	argN++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argN)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}
