// Package warehouse publishes the enriched batch as a flat reporting table.
package warehouse

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/red-atencion/outreach-cli/internal/model"
)

// Row is the flat reporting shape of a case record. Column names follow the
// reporting table the dashboards read.
type Row struct {
	CaseID            string   `csv:"id"`
	Start             string   `csv:"fecha_inicio"`
	End               string   `csv:"fecha_fin"`
	IdentityRaw       string   `csv:"persona_dni"`
	Identity          string   `csv:"dni_categorizado"`
	IdentityReason    string   `csv:"dni_motivo"`
	FirstName         string   `csv:"persona_nombre"`
	LastName          string   `csv:"persona_apellido"`
	Lat               *float64 `csv:"latitud"`
	Lon               *float64 `csv:"longitud"`
	Zone              string   `csv:"comuna_calculada"`
	Agency            string   `csv:"agencia"`
	CardType          string   `csv:"tipo_carta"`
	Status            string   `csv:"estado"`
	Result            string   `csv:"resultado"`
	SupervisorClose   string   `csv:"cierre_supervisor"`
	OutcomeText       string   `csv:"cierre_texto"`
	OutcomeNormalized string   `csv:"cierre_normalizado"`
	Category          string   `csv:"categoria_final"`
	Contacted         bool     `csv:"contacto"`
	FollowUp          bool     `csv:"brinda_datos"`
	ContactLevel      string   `csv:"nivel_contacto"`
	Week              string   `csv:"semana"`
	Evolution         string   `csv:"tipo_evolucion"`
}

// Columns lists the table columns in Row field order.
var Columns = []string{
	"id", "fecha_inicio", "fecha_fin", "persona_dni", "dni_categorizado", "dni_motivo",
	"persona_nombre", "persona_apellido", "latitud", "longitud", "comuna_calculada",
	"agencia", "tipo_carta", "estado", "resultado", "cierre_supervisor", "cierre_texto",
	"cierre_normalizado", "categoria_final", "contacto", "brinda_datos", "nivel_contacto",
	"semana", "tipo_evolucion",
}

const (
	timeLayout = "2006-01-02 15:04:05"
	dateLayout = "2006-01-02"
)

// ToRow flattens a case record.
func ToRow(r *model.CaseRecord) Row {
	row := Row{
		CaseID:            r.CaseID,
		Start:             r.Start.Format(timeLayout),
		IdentityRaw:       r.IdentityRaw,
		Identity:          r.Identity.Label(),
		IdentityReason:    r.Identity.Reason,
		FirstName:         r.FirstName,
		LastName:          r.LastName,
		Zone:              r.ZoneLabel(),
		Agency:            r.Agency,
		CardType:          r.CardType,
		Status:            r.Status,
		Result:            r.Result,
		SupervisorClose:   r.SupervisorClose,
		OutcomeText:       r.OutcomeText,
		OutcomeNormalized: r.OutcomeNormalized,
		Category:          r.Category,
		Contacted:         r.Contacted,
		FollowUp:          r.FollowUp,
		ContactLevel:      string(r.ContactLevel),
		Evolution:         string(r.Evolution),
	}
	if r.End != nil {
		row.End = r.End.Format(timeLayout)
	}
	if r.Location != nil {
		row.Lat, row.Lon = &r.Location.Lat, &r.Location.Lon
	}
	if !r.Week.IsZero() {
		row.Week = r.Week.Format(dateLayout)
	}
	return row
}

// values returns the row as COPY arguments in Columns order. Timestamps stay
// typed so Postgres stores them as timestamps.
func values(r *model.CaseRecord) []any {
	row := ToRow(r)
	var week *time.Time
	if !r.Week.IsZero() {
		week = &r.Week
	}
	return []any{
		row.CaseID, r.Start, r.End, row.IdentityRaw, row.Identity, row.IdentityReason,
		row.FirstName, row.LastName, row.Lat, row.Lon, nullable(row.Zone),
		row.Agency, row.CardType, row.Status, row.Result, row.SupervisorClose, row.OutcomeText,
		row.OutcomeNormalized, row.Category, row.Contacted, row.FollowUp, row.ContactLevel,
		week, row.Evolution,
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Nop discards the batch.
type Nop struct{}

// ReplaceTable implements the pipeline warehouse contract.
func (Nop) ReplaceTable(_ context.Context, batch []model.CaseRecord) error {
	zap.L().With(zap.String("component", "warehouse")).Debug("warehouse disabled, batch not published",
		zap.Int("rows", len(batch)),
	)
	return nil
}
