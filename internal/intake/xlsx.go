package intake

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/red-atencion/outreach-cli/internal/model"
)

// ReadSpreadsheet parses an xlsx export held in memory.
func ReadSpreadsheet(data []byte, opts Options) ([]model.CaseRecord, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "intake: open xlsx")
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}
	if len(sheet.Rows) <= opts.SkipRows {
		return nil, eris.Wrapf(ErrMissingColumn, "intake: sheet %q has no header row", sheet.Name)
	}

	p, err := newParser(rowToStrings(sheet.Rows[opts.SkipRows]), opts)
	if err != nil {
		return nil, err
	}
	p.date1904 = f.Date1904

	var out []model.CaseRecord
	for _, row := range sheet.Rows[opts.SkipRows+1:] {
		cells := rowToStrings(row)
		if blankRow(cells) {
			continue
		}
		if rec, ok := p.parse(cells); ok {
			out = append(out, rec)
		}
	}
	p.logSkipped("xlsx")
	return out, nil
}

func getSheet(f *xlsx.File, opts Options) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("intake: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("intake: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}

	return f.Sheets[opts.SheetIndex], nil
}

// rowToStrings keeps numeric cells raw so serial dates and coordinates are
// not mangled by display formats.
func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		if cell.Type() == xlsx.CellTypeNumeric {
			cells[j] = cell.Value
			continue
		}
		cells[j] = cell.String()
	}
	return cells
}
