package xlbind

import (
	"strings"
)

// CellValidator checks one cell. It returns an empty string when the cell is
// valid, otherwise a human-readable message.
type CellValidator interface {
	Validate(ctx *CellContext) string
}

// CellValidatorFunc adapts a function to CellValidator.
type CellValidatorFunc func(ctx *CellContext) string

func (f CellValidatorFunc) Validate(ctx *CellContext) string { return f(ctx) }

// ColumnValidator checks the header row of a sheet.
type ColumnValidator interface {
	ValidateColumns(ctx *SheetContext) []Finding
}

// ColumnValidatorFunc adapts a function to ColumnValidator.
type ColumnValidatorFunc func(ctx *SheetContext) []Finding

func (f ColumnValidatorFunc) ValidateColumns(ctx *SheetContext) []Finding { return f(ctx) }

// RowValidator checks the data rows of a sheet as a whole.
type RowValidator interface {
	ValidateRows(ctx *SheetContext) []Finding
}

// RowValidatorFunc adapts a function to RowValidator.
type RowValidatorFunc func(ctx *SheetContext) []Finding

func (f RowValidatorFunc) ValidateRows(ctx *SheetContext) []Finding { return f(ctx) }

// SchemaChecker is implemented by validators that depend on the sheet schema,
// such as key columns. It runs once when the schema is resolved.
type SchemaChecker interface {
	CheckSchema(sheet *SheetSchema) error
}

// Named pairs a validator with the name it was registered under. The name
// becomes the code of the violations it reports.
type Named[V any] struct {
	Name      string
	Validator V
}

// Finding is one failure reported by a column or row validator. Row is the
// 0-based data row index or -1 for the header; Col is the physical column
// or -1.
type Finding struct {
	Row     int
	Col     int
	Header  string
	Message string
}

// CellContext is the value a cell validator sees. It lives for one
// validator chain only.
type CellContext struct {
	Sheet    string
	Row      int // 0-based data row index
	Column   *ColumnSchema
	Cell     Cell
	Value    string // trimmed display value
	Messages *Messages

	coercer *Coercer
	coerced bool
	value   any
}

// Coerced returns the cell converted to the column's field kind, or nil.
func (c *CellContext) Coerced() any {
	if !c.coerced {
		c.coerced = true
		if c.coercer != nil {
			c.value, _ = c.coercer.coerceColumn(c.Cell, c.Column)
		}
	}
	return c.value
}

// SheetContext gives column and row validators access to one sheet's cells.
// The header row and the physical column positions are computed once.
type SheetContext struct {
	Schema   *SheetSchema
	Messages *Messages

	rows      [][]Cell
	header    []string
	positions map[*ColumnSchema]int
	date1904  bool
}

func newSheetContext(schema *SheetSchema, msgs *Messages, rows [][]Cell) *SheetContext {
	return &SheetContext{Schema: schema, Messages: msgs, rows: rows}
}

// Name returns the sheet name.
func (s *SheetContext) Name() string { return s.Schema.Name }

// Header returns the trimmed header titles as they appear in the sheet.
func (s *SheetContext) Header() []string {
	if s.header != nil {
		return s.header
	}
	s.header = []string{}
	if len(s.rows) > 0 {
		for _, c := range s.rows[0] {
			s.header = append(s.header, c.Text())
		}
	}
	for len(s.header) > 0 && s.header[len(s.header)-1] == "" {
		s.header = s.header[:len(s.header)-1]
	}
	return s.header
}

// PresentHeaders returns the non-empty header titles.
func (s *SheetContext) PresentHeaders() []string {
	var out []string
	for _, h := range s.Header() {
		if h != "" {
			out = append(out, h)
		}
	}
	return out
}

// Position returns the physical column holding col: the column whose header
// matches its title, else its position in the schema.
func (s *SheetContext) Position(col *ColumnSchema) int {
	if s.positions == nil {
		s.positions = make(map[*ColumnSchema]int, len(s.Schema.Columns))
		header := s.Header()
		for _, c := range s.Schema.Columns {
			pos := c.Index
			for i, h := range header {
				if h == c.HeaderTitle {
					pos = i
					break
				}
			}
			s.positions[c] = pos
		}
	}
	if pos, ok := s.positions[col]; ok {
		return pos
	}
	return col.Index
}

// RowCount returns the number of data rows.
func (s *SheetContext) RowCount() int {
	if len(s.rows) == 0 {
		return 0
	}
	return len(s.rows) - 1
}

// Row returns data row i.
func (s *SheetContext) Row(i int) []Cell {
	return s.rows[i+1]
}

// Cell returns the cell of data row i for col.
func (s *SheetContext) Cell(i int, col *ColumnSchema) Cell {
	pos := s.Position(col)
	c := cellAt(s.Row(i), pos)
	c.Ref = NewCellRef(s.Schema.Name, i+1, pos)
	return c
}

// Text returns the trimmed display value of data row i for col.
func (s *SheetContext) Text(i int, col *ColumnSchema) string {
	return s.Cell(i, col).Text()
}

// IsEmptyRow reports whether every declared column of data row i is blank.
func (s *SheetContext) IsEmptyRow(i int) bool {
	for _, col := range s.Schema.Columns {
		if !s.Cell(i, col).IsBlank() {
			return false
		}
	}
	return true
}

// sheetRowNumber converts a 0-based data row index to the 1-based row number
// shown by spreadsheet applications.
func sheetRowNumber(dataRow int) int {
	return dataRow + 2
}

// Built-in validators.

const (
	headerMismatchCode = "header.mismatch"
	duplicateRowCode   = "duplicate.row"
)

type requiredValidator struct{}

func (requiredValidator) Validate(ctx *CellContext) string {
	if ctx.Column.Required && ctx.Value == "" {
		return ctx.Messages.Get("required.validation.error")
	}
	return ""
}

// patternValidator matches the trimmed text case-insensitively and accepts
// partial matches. Blank cells are matched as "", so a pattern that rejects
// the empty string also rejects blanks.
type patternValidator struct{}

func (patternValidator) Validate(ctx *CellContext) string {
	p := ctx.Column.Pattern
	if p == nil {
		return ""
	}
	if !p.MatchString(ctx.Value) {
		return ctx.Messages.Get("pattern.validation.error", ctx.Value, ctx.Column.PatternText)
	}
	return ""
}

// headerMismatch reports every expected header title absent from the sheet.
type headerMismatch struct{}

func (headerMismatch) ValidateColumns(ctx *SheetContext) []Finding {
	actual := ctx.PresentHeaders()
	present := make(map[string]bool, len(actual))
	for _, h := range actual {
		present[h] = true
	}
	var findings []Finding
	for _, col := range ctx.Schema.Columns {
		if present[col.HeaderTitle] {
			continue
		}
		findings = append(findings, Finding{
			Row:     -1,
			Col:     -1,
			Header:  col.HeaderTitle,
			Message: ctx.Messages.Get("header.mismatch.error", col.HeaderTitle, actual),
		})
	}
	return findings
}

const rowKeySeparator = "###;###"

// duplicateRow flags every repeat of a row's full declared content. The
// first occurrence is not flagged.
type duplicateRow struct{}

func (duplicateRow) ValidateRows(ctx *SheetContext) []Finding {
	seen := make(map[string]int, ctx.RowCount())
	parts := make([]string, len(ctx.Schema.Columns))
	var findings []Finding
	for i := 0; i < ctx.RowCount(); i++ {
		if ctx.IsEmptyRow(i) {
			continue
		}
		for j, col := range ctx.Schema.Columns {
			parts[j] = ctx.Text(i, col)
		}
		key := strings.Join(parts, rowKeySeparator)
		if first, ok := seen[key]; ok {
			findings = append(findings, Finding{
				Row:     i,
				Col:     -1,
				Message: ctx.Messages.Get("duplicate.row.error", sheetRowNumber(first)),
			})
			continue
		}
		seen[key] = i
	}
	return findings
}
