package xlbind

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Result is the outcome of an import. Records are keyed by the sheet's
// records field; the report lists every violation found, whether or not the
// records were built.
type Result struct {
	Records  map[string][]any
	Report   *Report
	Warnings []CoercionWarning
	Skipped  []*Error // rows whose record could not be constructed
}

// Sheet returns the records imported for a sheet's records field.
func (r *Result) Sheet(field string) []any {
	return r.Records[field]
}

// RecordsOf returns the records of a sheet typed as *R. Records of another
// type are left out.
func RecordsOf[R any](res *Result, field string) []*R {
	recs := res.Records[field]
	out := make([]*R, 0, len(recs))
	for _, rec := range recs {
		if r, ok := rec.(*R); ok {
			out = append(out, r)
		}
	}
	return out
}

// Import reads a workbook from r and maps every importable sheet. Violations
// never stop record construction; they are reported in Result.Report. With
// WithStrict(true), any violation turns into a *ValidationError instead.
func (m *Mapper) Import(r io.Reader, schema *WorkbookSchema) (*Result, error) {
	if err := checkSchema(schema); err != nil {
		return nil, err
	}
	tx, err := m.open(r)
	if err != nil {
		return nil, err
	}
	defer tx.Close()
	return m.ImportWorkbook(tx, schema)
}

// ImportFile is Import for a file on disk.
func (m *Mapper) ImportFile(path string, schema *WorkbookSchema) (*Result, error) {
	if err := checkSchema(schema); err != nil {
		return nil, err
	}
	tx, err := m.openFile(path)
	if err != nil {
		return nil, err
	}
	defer tx.Close()
	return m.ImportWorkbook(tx, schema)
}

// ImportBase64 is Import for base64-encoded workbook bytes.
func (m *Mapper) ImportBase64(data string, schema *WorkbookSchema) (*Result, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(data))
	if err != nil {
		return nil, sourceError("invalid base64 input").wrap(err)
	}
	return m.Import(bytes.NewReader(raw), schema)
}

// ImportWorkbook maps an already opened workbook. The caller closes tx.
func (m *Mapper) ImportWorkbook(tx Transformer, schema *WorkbookSchema) (*Result, error) {
	if err := checkSchema(schema); err != nil {
		return nil, err
	}
	log := m.runLogger("import")
	log.WithField("workbook", schema.Name).Debug("schema resolved")

	res := &Result{Records: make(map[string][]any), Report: newReport()}
	for _, sheet := range schema.Sheets {
		if !sheet.ImportEnabled {
			continue
		}
		ctx, err := m.sheetContext(tx, sheet, log)
		if err != nil {
			log.WithError(err).Error("import failed")
			return nil, err
		}
		if ctx == nil {
			continue
		}
		var repeats map[int]bool
		if sheet.ValidateEnabled {
			sr := m.validateSheet(ctx, log)
			res.Report.add(sr)
			repeats = repeatedRows(sr)
		}
		res.Records[sheet.Field] = m.buildRecords(ctx, repeats, res, log)
	}

	if m.opts.strict && res.Report.HasViolations() {
		log.WithField("violations", res.Report.Count()).Info("strict import rejected")
		return nil, res.Report.Err()
	}
	log.WithField("violations", res.Report.Count()).Debug("import done")
	return res, nil
}

// sheetContext loads a sheet. It returns nil without error for sheets that
// are absent or hidden and not required.
func (m *Mapper) sheetContext(tx Transformer, sheet *SheetSchema, log logrus.FieldLogger) (*SheetContext, error) {
	log = log.WithField("sheet", sheet.Name)
	if !tx.HasSheet(sheet.Name) {
		if sheet.Required {
			return nil, newError(ErrSheetMissing, CodeSheetMissing, m.messages.Get("sheet.not.found.error", sheet.Name)).withSheet(sheet.Name)
		}
		log.Debug("sheet not in workbook, skipped")
		return nil, nil
	}
	hidden, err := tx.IsHidden(sheet.Name)
	if err != nil {
		return nil, sourceError("read sheet visibility").withSheet(sheet.Name).wrap(err)
	}
	if hidden {
		log.Debug("hidden sheet skipped")
		return nil, nil
	}
	rows, err := tx.GetRows(sheet.Name)
	if err != nil {
		return nil, sourceError("read sheet").withSheet(sheet.Name).wrap(err)
	}
	ctx := newSheetContext(sheet, m.messages, rows)
	if d, ok := tx.(interface{ Date1904() bool }); ok {
		ctx.date1904 = d.Date1904()
	}
	return ctx, nil
}

// repeatedRows returns the rows the full-row duplicate check flagged. They
// would only rebuild a record already built from their first occurrence.
func repeatedRows(sr *SheetReport) map[int]bool {
	var rows map[int]bool
	for _, v := range sr.Violations {
		if v.Code != duplicateRowCode {
			continue
		}
		if rows == nil {
			rows = make(map[int]bool)
		}
		rows[v.Location.Row] = true
	}
	return rows
}

func (m *Mapper) buildRecords(ctx *SheetContext, repeats map[int]bool, res *Result, log logrus.FieldLogger) []any {
	log = log.WithField("sheet", ctx.Name())
	log.Debug("coercing rows")
	coercer := m.coercer.forWorkbook(ctx.date1904)
	records := make([]any, 0, ctx.RowCount())
	for i := 0; i < ctx.RowCount(); i++ {
		if repeats[i] || ctx.IsEmptyRow(i) {
			continue
		}
		rec, err := m.buildRecord(ctx, i, coercer, res, log)
		if err != nil {
			log.WithError(err).WithField("row", sheetRowNumber(i)).Warn("row skipped")
			res.Skipped = append(res.Skipped, err)
			continue
		}
		records = append(records, rec)
	}
	return records
}

func (m *Mapper) buildRecord(ctx *SheetContext, row int, coercer *Coercer, res *Result, log logrus.FieldLogger) (rec any, rerr *Error) {
	sheet := ctx.Schema
	current := (*ColumnSchema)(nil)
	defer func() {
		if p := recover(); p != nil {
			rec = nil
			rerr = newError(ErrRowConstruction, CodeRowConstruction, fmt.Sprint(p)).withSheet(sheet.Name).withRow(row)
			if current != nil {
				rerr.withField(ctx.Position(current), current.FieldName)
			}
		}
	}()

	rec = sheet.Record.New()
	for _, col := range sheet.Columns {
		current = col
		cell := ctx.Cell(row, col)
		v, err := coercer.coerceColumn(cell, col)
		if err != nil {
			w := CoercionWarning{
				Location: Location{Sheet: sheet.Name, Row: row, Col: cell.Ref.Col, Header: col.HeaderTitle},
				Value:    cell.Text(),
				Target:   col.Kind,
				Reason:   err.Error(),
			}
			res.Warnings = append(res.Warnings, w)
			log.WithFields(logrus.Fields{
				"row":    sheetRowNumber(row),
				"column": col.HeaderTitle,
				"value":  w.Value,
			}).WithError(err).Warn("cell left empty")
		}
		if err := col.Field.Set(rec, v); err != nil {
			return nil, newError(ErrRowConstruction, CodeRowConstruction, "assign field").
				withSheet(sheet.Name).withRow(row).withField(cell.Ref.Col, col.FieldName).wrap(err)
		}
	}
	return rec, nil
}

// open decodes r according to the configured format.
func (m *Mapper) open(r io.Reader) (Transformer, error) {
	if m.opts.format == FormatLegacy {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, sourceError("read input").wrap(err)
		}
		tx, err := ConvertLegacy(bytes.NewReader(data), m.opts.legacyCharset)
		if err != nil {
			return nil, sourceError("convert legacy workbook").wrap(err)
		}
		return tx, nil
	}
	tx, err := OpenReader(r)
	if err != nil {
		return nil, sourceError("open workbook").wrap(err)
	}
	return tx, nil
}

func (m *Mapper) openFile(path string) (Transformer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, sourceError("open %s", path).wrap(err)
	}
	defer f.Close()
	return m.open(f)
}
