package xlbind

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ExcelizeTransformer implements Transformer using excelize.
type ExcelizeTransformer struct {
	file       *excelize.File
	date1904   bool
	fresh      bool         // created empty; first AddSheet renames the default sheet
	dateStyles map[int]bool // styleID → carries a date/time number format
	numFmts    map[string]int
	bold       int
}

// NewExcelizeTransformer creates a Transformer over an open excelize file.
func NewExcelizeTransformer(f *excelize.File) (*ExcelizeTransformer, error) {
	tx := &ExcelizeTransformer{
		file:       f,
		dateStyles: make(map[int]bool),
		numFmts:    make(map[string]int),
		bold:       -1,
	}
	props, err := f.GetWorkbookProps()
	if err != nil {
		return nil, fmt.Errorf("read workbook properties: %w", err)
	}
	if props.Date1904 != nil {
		tx.date1904 = *props.Date1904
	}
	return tx, nil
}

// NewWorkbookTransformer creates a Transformer over a new, empty workbook.
func NewWorkbookTransformer() *ExcelizeTransformer {
	tx, _ := NewExcelizeTransformer(excelize.NewFile())
	tx.fresh = true
	return tx
}

// OpenReader reads an xlsx workbook from r.
func OpenReader(r io.Reader) (*ExcelizeTransformer, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	tx, err := NewExcelizeTransformer(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return tx, nil
}

// OpenFile opens an xlsx workbook from disk.
func OpenFile(path string) (*ExcelizeTransformer, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %q: %w", path, err)
	}
	tx, err := NewExcelizeTransformer(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return tx, nil
}

// Date1904 reports whether serial dates count from 1904.
func (tx *ExcelizeTransformer) Date1904() bool { return tx.date1904 }

func (tx *ExcelizeTransformer) GetSheetNames() []string {
	return tx.file.GetSheetList()
}

func (tx *ExcelizeTransformer) HasSheet(name string) bool {
	idx, err := tx.file.GetSheetIndex(name)
	return err == nil && idx >= 0
}

// IsHidden reports hidden and very hidden sheets alike.
func (tx *ExcelizeTransformer) IsHidden(name string) (bool, error) {
	visible, err := tx.file.GetSheetVisible(name)
	if err != nil {
		return false, err
	}
	return !visible, nil
}

// GetRows reads the whole sheet. Rows are trimmed of trailing empty cells.
func (tx *ExcelizeTransformer) GetRows(sheet string) ([][]Cell, error) {
	grid, err := tx.file.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read rows of %q: %w", sheet, err)
	}
	rows := make([][]Cell, len(grid))
	for r, values := range grid {
		cells := make([]Cell, len(values))
		for c, display := range values {
			cell, err := tx.readCell(sheet, r, c, display)
			if err != nil {
				return nil, err
			}
			cells[c] = cell
		}
		rows[r] = cells
	}
	return rows, nil
}

func (tx *ExcelizeTransformer) readCell(sheet string, row, col int, display string) (Cell, error) {
	ref := NewCellRef(sheet, row, col)
	cell := Cell{Ref: ref, Display: display}
	name := ref.CellName()

	typ, err := tx.file.GetCellType(sheet, name)
	if err != nil {
		return cell, fmt.Errorf("read cell type %s: %w", ref, err)
	}
	raw, err := tx.file.GetCellValue(sheet, name, excelize.Options{RawCellValue: true})
	if err != nil {
		return cell, fmt.Errorf("read cell %s: %w", ref, err)
	}
	formula, err := tx.file.GetCellFormula(sheet, name)
	if err != nil {
		return cell, fmt.Errorf("read formula %s: %w", ref, err)
	}
	cell.Raw = raw

	kind := classifyCell(typ, raw)
	switch kind {
	case CellNumber:
		cell.Number, _ = strconv.ParseFloat(raw, 64)
		cell.IsDate = tx.isDateStyled(sheet, name)
	case CellBoolean:
		cell.Bool = raw == "1" || strings.EqualFold(raw, "true")
	}
	if formula != "" {
		cell.Kind = CellFormula
		cell.Formula = formula
		cell.Result = kind
	} else {
		cell.Kind = kind
	}
	return cell, nil
}

func classifyCell(typ excelize.CellType, raw string) CellKind {
	switch typ {
	case excelize.CellTypeBool:
		return CellBoolean
	case excelize.CellTypeError:
		return CellError
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeFormula, excelize.CellTypeDate:
		if raw == "" {
			return CellBlank
		}
		return CellString
	default:
		if raw == "" {
			return CellBlank
		}
		if _, err := strconv.ParseFloat(raw, 64); err == nil {
			return CellNumber
		}
		return CellString
	}
}

func (tx *ExcelizeTransformer) isDateStyled(sheet, cell string) bool {
	id, err := tx.file.GetCellStyle(sheet, cell)
	if err != nil || id == 0 {
		return false
	}
	if isDate, ok := tx.dateStyles[id]; ok {
		return isDate
	}
	isDate := false
	if style, err := tx.file.GetStyle(id); err == nil {
		if style.CustomNumFmt != nil {
			isDate = isDateFormatCode(*style.CustomNumFmt)
		} else {
			isDate = isDateNumFmtID(style.NumFmt)
		}
	}
	tx.dateStyles[id] = isDate
	return isDate
}

func (tx *ExcelizeTransformer) AddSheet(name string) error {
	if tx.fresh {
		tx.fresh = false
		first := tx.file.GetSheetName(0)
		if err := tx.file.SetSheetName(first, name); err != nil {
			return fmt.Errorf("rename sheet %q: %w", first, err)
		}
		return nil
	}
	if _, err := tx.file.NewSheet(name); err != nil {
		return fmt.Errorf("add sheet %q: %w", name, err)
	}
	return nil
}

func (tx *ExcelizeTransformer) SetCellValue(ref CellRef, value any) error {
	return tx.file.SetCellValue(ref.Sheet, ref.CellName(), value)
}

// SetHeaderStyle makes the cells of one row bold.
func (tx *ExcelizeTransformer) SetHeaderStyle(sheet string, row, firstCol, lastCol int) error {
	if tx.bold < 0 {
		id, err := tx.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return fmt.Errorf("create header style: %w", err)
		}
		tx.bold = id
	}
	tl := NewCellRef(sheet, row, firstCol).CellName()
	br := NewCellRef(sheet, row, lastCol).CellName()
	return tx.file.SetCellStyle(sheet, tl, br, tx.bold)
}

// SetDateFormat applies a date number format derived from a dd.MM.yyyy style pattern.
func (tx *ExcelizeTransformer) SetDateFormat(ref CellRef, pattern string) error {
	code := ExcelNumFmt(pattern)
	id, ok := tx.numFmts[code]
	if !ok {
		var err error
		id, err = tx.file.NewStyle(&excelize.Style{CustomNumFmt: &code})
		if err != nil {
			return fmt.Errorf("create date style %q: %w", code, err)
		}
		tx.numFmts[code] = id
	}
	name := ref.CellName()
	return tx.file.SetCellStyle(ref.Sheet, name, name, id)
}

func (tx *ExcelizeTransformer) SetColumnWidth(sheet string, col int, width float64) error {
	name := ColToName(col)
	return tx.file.SetColWidth(sheet, name, name, width)
}

// SetHyperlink writes the link's display text and attaches the link.
func (tx *ExcelizeTransformer) SetHyperlink(ref CellRef, link Link) error {
	name := ref.CellName()
	display := link.String()
	if err := tx.file.SetCellValue(ref.Sheet, name, display); err != nil {
		return err
	}
	return tx.file.SetCellHyperLink(ref.Sheet, name, link.URL, linkType(link.URL),
		excelize.HyperlinkOpts{Display: &display})
}

func (tx *ExcelizeTransformer) Write(w io.Writer) error {
	return tx.file.Write(w)
}

func (tx *ExcelizeTransformer) Close() error {
	return tx.file.Close()
}

// File returns the underlying excelize file.
func (tx *ExcelizeTransformer) File() *excelize.File {
	return tx.file
}
