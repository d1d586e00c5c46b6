package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/red-atencion/outreach-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS case_records (
	seq                INTEGER PRIMARY KEY,
	case_id            TEXT NOT NULL DEFAULT '',
	identity_raw       TEXT NOT NULL DEFAULT '',
	start_at           TEXT NOT NULL,
	end_at             TEXT,
	lat                REAL,
	lon                REAL,
	result             TEXT NOT NULL DEFAULT '',
	supervisor_close   TEXT NOT NULL DEFAULT '',
	status             TEXT NOT NULL DEFAULT '',
	card_type          TEXT NOT NULL DEFAULT '',
	agency             TEXT NOT NULL DEFAULT '',
	first_name         TEXT NOT NULL DEFAULT '',
	last_name          TEXT NOT NULL DEFAULT '',
	identity_category  TEXT NOT NULL DEFAULT '',
	identity_number    INTEGER,
	identity_reason    TEXT NOT NULL DEFAULT '',
	zone               TEXT,
	outcome_text       TEXT NOT NULL DEFAULT '',
	outcome_normalized TEXT NOT NULL DEFAULT '',
	category           TEXT NOT NULL DEFAULT '',
	contacted          INTEGER NOT NULL DEFAULT 0,
	follow_up          INTEGER NOT NULL DEFAULT 0,
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

CREATE INDEX IF NOT EXISTS idx_case_records_start ON case_records(start_at);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func (s *SQLiteStore) Load(ctx context.Context) ([]model.CaseRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+strings.Join(recordColumns, ", ")+` FROM case_records ORDER BY seq`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load batch")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.CaseRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: load batch")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: load batch iterate")
}

func (s *SQLiteStore) Save(ctx context.Context, batch []model.CaseRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM case_records`); err != nil {
		return eris.Wrap(err, "sqlite: clear batch")
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO case_records (`+strings.Join(recordColumns, ", ")+`) VALUES (`+placeholders(len(recordColumns))+`)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close() //nolint:errcheck

	for i := range batch {
		if _, err := stmt.ExecContext(ctx, recordRow(i, &batch[i])...); err != nil {
			return eris.Wrapf(err, "sqlite: insert record %d", i)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit save")
}

func (s *SQLiteStore) RecordRun(ctx context.Context, run *model.Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs (`+strings.Join(runColumns, ", ")+`) VALUES (`+placeholders(len(runColumns))+`)`,
		runRow(run)...,
	)
	return eris.Wrapf(err, "sqlite: record run %s", run.ID)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + strings.Join(runColumns, ", ") + ` FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultRunLimit
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}
