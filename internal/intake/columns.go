// Package intake reads raw case exports (xlsx or CSV) into case records.
package intake

import (
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/red-atencion/outreach-cli/internal/model"
	"github.com/red-atencion/outreach-cli/internal/textnorm"
)

// ErrMissingColumn is returned when the header lacks a mandatory column.
var ErrMissingColumn = eris.New("intake: missing mandatory column")

type field int

const (
	fieldCaseID field = iota
	fieldIdentity
	fieldStart
	fieldEnd
	fieldLat
	fieldLon
	fieldResult
	fieldSupervisorClose
	fieldStatus
	fieldCardType
	fieldAgency
	fieldFirstName
	fieldLastName
	fieldCount
)

type column struct {
	field     field
	names     []string
	mandatory bool
}

// Header names are compared after textnorm.Fold.
var columns = []column{
	{fieldCaseID, []string{"id", "nro caso", "numero de caso", "caso"}, false},
	{fieldIdentity, []string{"persona dni", "dni"}, true},
	{fieldStart, []string{"fecha inicio"}, true},
	{fieldEnd, []string{"fecha fin"}, false},
	{fieldLat, []string{"latitud"}, true},
	{fieldLon, []string{"longitud"}, true},
	{fieldResult, []string{"resultado"}, true},
	{fieldSupervisorClose, []string{"cierre supervisor"}, false},
	{fieldStatus, []string{"estado"}, false},
	{fieldCardType, []string{"tipo carta"}, false},
	{fieldAgency, []string{"agencia"}, false},
	{fieldFirstName, []string{"persona nombre"}, false},
	{fieldLastName, []string{"persona apellido"}, false},
}

// Options configures both readers.
type Options struct {
	// SkipRows is the number of rows above the header.
	SkipRows   int
	SheetIndex int
	SheetName  string
	// Delimiter applies to CSV only; default ','.
	Delimiter rune
	// Location interprets timestamps without a zone; default UTC.
	Location *time.Location
}

// headerMap maps each field to its column index, -1 when absent.
type headerMap [fieldCount]int

func mapHeader(header []string) (headerMap, error) {
	var hm headerMap
	for i := range hm {
		hm[i] = -1
	}
	folded := make(map[string]int, len(header))
	for i, h := range header {
		key := textnorm.Fold(h)
		if _, dup := folded[key]; !dup {
			folded[key] = i
		}
	}

	var missing []string
	for _, c := range columns {
		for _, name := range c.names {
			if idx, ok := folded[name]; ok {
				hm[c.field] = idx
				break
			}
		}
		if hm[c.field] < 0 && c.mandatory {
			missing = append(missing, c.names[0])
		}
	}
	if len(missing) > 0 {
		return hm, eris.Wrapf(ErrMissingColumn, "intake: %s", strings.Join(missing, ", "))
	}
	return hm, nil
}

func (hm headerMap) get(row []string, f field) string {
	idx := hm[f]
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// parser turns raw rows into records and counts what it skips.
type parser struct {
	hm       headerMap
	loc      *time.Location
	date1904 bool
	skipped  int
}

func newParser(header []string, opts Options) (*parser, error) {
	hm, err := mapHeader(header)
	if err != nil {
		return nil, err
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	return &parser{hm: hm, loc: loc}, nil
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func (p *parser) parse(row []string) (model.CaseRecord, bool) {
	start, ok := p.parseTime(p.hm.get(row, fieldStart))
	if !ok {
		p.skipped++
		return model.CaseRecord{}, false
	}
	rec := model.CaseRecord{
		CaseID:          p.hm.get(row, fieldCaseID),
		IdentityRaw:     p.hm.get(row, fieldIdentity),
		Start:           start,
		Result:          p.hm.get(row, fieldResult),
		SupervisorClose: p.hm.get(row, fieldSupervisorClose),
		Status:          p.hm.get(row, fieldStatus),
		CardType:        p.hm.get(row, fieldCardType),
		Agency:          p.hm.get(row, fieldAgency),
		FirstName:       p.hm.get(row, fieldFirstName),
		LastName:        p.hm.get(row, fieldLastName),
	}
	if end, ok := p.parseTime(p.hm.get(row, fieldEnd)); ok {
		rec.End = &end
	}
	lat, latOK := ParseCoordinate(p.hm.get(row, fieldLat))
	lon, lonOK := ParseCoordinate(p.hm.get(row, fieldLon))
	if latOK && lonOK {
		rec.Location = &model.Point{Lat: lat, Lon: lon}
	}
	return rec, true
}

func (p *parser) logSkipped(source string) {
	if p.skipped == 0 {
		return
	}
	zap.L().With(zap.String("component", "intake")).Warn("rows without a valid start timestamp skipped",
		zap.String("source", source),
		zap.Int("skipped", p.skipped),
	)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2/1/2006",
}

func (p *parser) parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, p.loc); err == nil {
			return t, true
		}
	}
	// Spreadsheet serial dates arrive as plain numbers.
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		t := xlsx.TimeFromExcelTime(f, p.date1904)
		y, m, d := t.Date()
		return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), 0, p.loc), true
	}
	return time.Time{}, false
}

// ParseCoordinate parses a decimal degree that may use a comma separator.
func ParseCoordinate(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
