package intake

import (
	"encoding/csv"
	"io"

	"github.com/rotisserie/eris"

	"github.com/red-atencion/outreach-cli/internal/model"
)

// ReadCSV parses a CSV export with the same header rules as ReadSpreadsheet.
func ReadCSV(r io.Reader, opts Options) ([]model.CaseRecord, error) {
	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1 // allow variable fields

	var p *parser
	var out []model.CaseRecord
	for line := 0; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "intake: read csv row")
		}
		if line < opts.SkipRows {
			continue
		}
		if p == nil {
			if p, err = newParser(record, opts); err != nil {
				return nil, err
			}
			continue
		}
		if blankRow(record) {
			continue
		}
		if rec, ok := p.parse(record); ok {
			out = append(out, rec)
		}
	}
	if p == nil {
		return nil, eris.Wrap(ErrMissingColumn, "intake: csv has no header row")
	}
	p.logSkipped("csv")
	return out, nil
}
