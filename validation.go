package xlbind

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Validate runs the validation pipeline over every importable sheet without
// building records. Missing and hidden sheets are skipped.
func (m *Mapper) Validate(r io.Reader, schema *WorkbookSchema) (*Report, error) {
	if err := checkSchema(schema); err != nil {
		return nil, err
	}
	tx, err := m.open(r)
	if err != nil {
		return nil, err
	}
	defer tx.Close()
	return m.ValidateWorkbook(tx, schema)
}

// ValidateFile is Validate for a file on disk.
func (m *Mapper) ValidateFile(path string, schema *WorkbookSchema) (*Report, error) {
	if err := checkSchema(schema); err != nil {
		return nil, err
	}
	tx, err := m.openFile(path)
	if err != nil {
		return nil, err
	}
	defer tx.Close()
	return m.ValidateWorkbook(tx, schema)
}

// ValidateWorkbook validates an already opened workbook. The caller closes tx.
func (m *Mapper) ValidateWorkbook(tx Transformer, schema *WorkbookSchema) (*Report, error) {
	if err := checkSchema(schema); err != nil {
		return nil, err
	}
	log := m.runLogger("validate")
	report := newReport()
	for _, sheet := range schema.Sheets {
		if !sheet.ImportEnabled || !sheet.ValidateEnabled {
			continue
		}
		ctx, err := m.sheetContext(tx, sheet, log)
		if err != nil {
			return nil, err
		}
		if ctx == nil {
			continue
		}
		report.add(m.validateSheet(ctx, log))
	}
	return report, nil
}

// validateSheet runs the column, row and cell tiers in that order and
// collects every violation. No tier short-circuits another.
func (m *Mapper) validateSheet(ctx *SheetContext, log logrus.FieldLogger) *SheetReport {
	sheet := ctx.Schema
	sr := &SheetReport{Sheet: sheet.Name}
	log = log.WithField("sheet", sheet.Name)

	log.Debug("validating columns")
	for _, cv := range sheet.ColumnValidators {
		for _, f := range cv.Validator.ValidateColumns(ctx) {
			sr.Violations = append(sr.Violations, Violation{
				Location: Location{Sheet: sheet.Name, Row: -1, Col: f.Col, Header: f.Header},
				Message:  m.messages.Get("error.column.violation", f.Message),
				Code:     cv.Name,
			})
		}
	}

	log.Debug("validating rows")
	for _, rv := range sheet.RowValidators {
		for _, f := range rv.Validator.ValidateRows(ctx) {
			msg := m.messages.Get("error.sheet.violation", sheet.Name, f.Message)
			if f.Row >= 0 {
				msg = m.messages.Get("error.row.violation", sheetRowNumber(f.Row), f.Message)
			}
			sr.Violations = append(sr.Violations, Violation{
				Location: Location{Sheet: sheet.Name, Row: f.Row, Col: f.Col, Header: f.Header},
				Message:  msg,
				Code:     rv.Name,
			})
		}
	}

	log.Debug("validating cells")
	coercer := m.coercer.forWorkbook(ctx.date1904)
	for i := 0; i < ctx.RowCount(); i++ {
		if ctx.IsEmptyRow(i) {
			continue
		}
		for _, col := range sheet.Columns {
			cell := ctx.Cell(i, col)
			cc := &CellContext{
				Sheet:    sheet.Name,
				Row:      i,
				Column:   col,
				Cell:     cell,
				Value:    cell.Text(),
				Messages: m.messages,
				coercer:  coercer,
			}
			for _, v := range col.Validators {
				msg := v.Validator.Validate(cc)
				if msg == "" {
					continue
				}
				sr.Violations = append(sr.Violations, Violation{
					Location: Location{Sheet: sheet.Name, Row: i, Col: cell.Ref.Col, Header: col.HeaderTitle},
					Message:  m.messages.Get("error.row.column.violation", sheetRowNumber(i), col.HeaderTitle, msg),
					Code:     v.Name,
				})
			}
		}
	}
	log.WithField("violations", len(sr.Violations)).Debug("sheet validated")
	return sr
}
