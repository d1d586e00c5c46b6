package warehouse

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/red-atencion/outreach-cli/internal/model"
)

// WriteCSV encodes the batch with a header row in Columns order.
func WriteCSV(w io.Writer, batch []model.CaseRecord) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	if err := enc.EncodeHeader(Row{}); err != nil {
		return eris.Wrap(err, "warehouse: encode csv header")
	}
	for i := range batch {
		if err := enc.Encode(ToRow(&batch[i])); err != nil {
			return eris.Wrapf(err, "warehouse: encode csv row %d", i)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "warehouse: flush csv")
}

// CSVSink replaces a CSV file. The file is written to a temp sibling and
// renamed so readers never see a partial table.
type CSVSink struct {
	path string
}

// NewCSVSink returns a sink writing to path.
func NewCSVSink(path string) *CSVSink {
	return &CSVSink{path: path}
}

// ReplaceTable implements the pipeline warehouse contract.
func (s *CSVSink) ReplaceTable(_ context.Context, batch []model.CaseRecord) error {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, batch); err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return eris.Wrapf(err, "warehouse: create temp file in %s", dir)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrapf(err, "warehouse: write %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrapf(err, "warehouse: close %s", tmpName)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return eris.Wrapf(err, "warehouse: replace %s", s.path)
	}

	zap.L().With(zap.String("component", "warehouse")).Info("csv table replaced",
		zap.String("path", s.path),
		zap.Int("rows", len(batch)),
	)
	return nil
}
