package store

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/red-atencion/outreach-cli/internal/model"
)

// recordColumns is the column order shared by inserts, COPY and selects.
var recordColumns = []string{
	"seq", "case_id", "identity_raw", "start_at", "end_at", "lat", "lon",
	"result", "supervisor_close", "status", "card_type", "agency", "first_name", "last_name",
	"identity_category", "identity_number", "identity_reason", "zone",
	"outcome_text", "outcome_normalized", "category", "contacted", "follow_up",
	"contact_level", "week", "evolution",
}

const timeLayout = time.RFC3339Nano

// Timestamps are stored as RFC 3339 text so the original offset survives a
// round trip in both backends.
func formatTime(t time.Time) string {
	return t.Format(timeLayout)
}

func formatOptTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func recordRow(seq int, r *model.CaseRecord) []any {
	var lat, lon *float64
	if r.Location != nil {
		lat, lon = &r.Location.Lat, &r.Location.Lon
	}
	var number *int64
	if r.Identity.Category == model.IdentityNumeric {
		number = &r.Identity.Number
	}
	return []any{
		seq, r.CaseID, r.IdentityRaw, formatTime(r.Start), formatOptTime(r.End), lat, lon,
		r.Result, r.SupervisorClose, r.Status, r.CardType, r.Agency, r.FirstName, r.LastName,
		string(r.Identity.Category), number, r.Identity.Reason, r.Zone,
		r.OutcomeText, r.OutcomeNormalized, r.Category, r.Contacted, r.FollowUp,
		string(r.ContactLevel), formatTime(r.Week), string(r.Evolution),
	}
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRecord(row scannable) (model.CaseRecord, error) {
	var (
		r                            model.CaseRecord
		seq                          int64
		start, week                  string
		end                          *string
		lat, lon                     *float64
		category, contact, evolution string
		number                       *int64
	)
	err := row.Scan(
		&seq, &r.CaseID, &r.IdentityRaw, &start, &end, &lat, &lon,
		&r.Result, &r.SupervisorClose, &r.Status, &r.CardType, &r.Agency, &r.FirstName, &r.LastName,
		&category, &number, &r.Identity.Reason, &r.Zone,
		&r.OutcomeText, &r.OutcomeNormalized, &r.Category, &r.Contacted, &r.FollowUp,
		&contact, &week, &evolution,
	)
	if err != nil {
		return r, eris.Wrap(err, "scan case record")
	}

	if r.Start, err = time.Parse(timeLayout, start); err != nil {
		return r, eris.Wrapf(err, "parse start of record %d", seq)
	}
	if end != nil {
		t, err := time.Parse(timeLayout, *end)
		if err != nil {
			return r, eris.Wrapf(err, "parse end of record %d", seq)
		}
		r.End = &t
	}
	if week != "" {
		if r.Week, err = time.Parse(timeLayout, week); err != nil {
			return r, eris.Wrapf(err, "parse week of record %d", seq)
		}
	}
	if lat != nil && lon != nil {
		r.Location = &model.Point{Lat: *lat, Lon: *lon}
	}
	r.Identity.Category = model.IdentityCategory(category)
	if number != nil {
		r.Identity.Number = *number
	}
	r.ContactLevel = model.ContactLevel(contact)
	r.Evolution = model.Evolution(evolution)
	return r, nil
}

var runColumns = []string{
	"id", "source", "status", "watermark", "ingested", "appended", "total",
	"unmatched", "no_zone", "started_at", "finished_at",
}

func runRow(run *model.Run) []any {
	return []any{
		run.ID, run.Source, string(run.Status), formatOptTime(run.Watermark),
		run.Ingested, run.Appended, run.Total, run.Unmatched, run.NoZone,
		formatTime(run.StartedAt), formatTime(run.FinishedAt),
	}
}

func scanRun(row scannable) (model.Run, error) {
	var (
		run               model.Run
		status            string
		watermark         *string
		started, finished string
	)
	err := row.Scan(
		&run.ID, &run.Source, &status, &watermark,
		&run.Ingested, &run.Appended, &run.Total, &run.Unmatched, &run.NoZone,
		&started, &finished,
	)
	if err != nil {
		return run, eris.Wrap(err, "scan run")
	}
	run.Status = model.RunStatus(status)
	if watermark != nil {
		t, err := time.Parse(timeLayout, *watermark)
		if err != nil {
			return run, eris.Wrapf(err, "parse watermark of run %s", run.ID)
		}
		run.Watermark = &t
	}
	if run.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return run, eris.Wrapf(err, "parse start of run %s", run.ID)
	}
	if run.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
		return run, eris.Wrapf(err, "parse finish of run %s", run.ID)
	}
	return run, nil
}
