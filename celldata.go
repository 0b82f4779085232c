package xlbind

import (
	"fmt"
	"strconv"
	"strings"
)

// CellKind is the native kind of a cell as stored in the workbook.
type CellKind int

const (
	CellBlank CellKind = iota
	CellString
	CellNumber
	CellBoolean
	CellFormula
	CellError
)

// String returns a human-readable name for the CellKind.
func (k CellKind) String() string {
	switch k {
	case CellBlank:
		return "Blank"
	case CellString:
		return "String"
	case CellNumber:
		return "Number"
	case CellBoolean:
		return "Boolean"
	case CellFormula:
		return "Formula"
	case CellError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Cell holds one cell read from a sheet.
type Cell struct {
	Ref     CellRef
	Kind    CellKind
	Result  CellKind // kind of the cached result when Kind is CellFormula
	Raw     string   // unformatted stored value
	Display string   // value as the spreadsheet displays it
	Number  float64  // numeric value for numbers and numeric formula results
	Bool    bool
	IsDate  bool // numeric cell carrying a date/time number format
	Formula string
}

// ValueKind returns the kind of the value the cell holds, looking through
// formulas to their cached result.
func (c Cell) ValueKind() CellKind {
	if c.Kind == CellFormula {
		return c.Result
	}
	return c.Kind
}

// IsBlank reports whether the cell is empty or holds only whitespace text.
// Numbers and booleans are never blank.
func (c Cell) IsBlank() bool {
	switch c.ValueKind() {
	case CellBlank:
		return true
	case CellString:
		return strings.TrimSpace(c.Display) == ""
	}
	return false
}

// Text returns the trimmed display value.
func (c Cell) Text() string {
	return strings.TrimSpace(c.Display)
}

// cellAt returns the cell at col, or a blank cell when the row is shorter.
func cellAt(row []Cell, col int) Cell {
	if col < len(row) {
		return row[col]
	}
	return Cell{Ref: CellRef{Col: col}, Kind: CellBlank}
}

// ValueCell builds a cell holding a plain value, as decoded from JSON or
// YAML: strings, numbers and booleans. nil gives a blank cell.
func ValueCell(v any) Cell {
	switch x := v.(type) {
	case nil:
		return Cell{Kind: CellBlank}
	case string:
		if x == "" {
			return Cell{Kind: CellBlank}
		}
		return Cell{Kind: CellString, Raw: x, Display: x}
	case bool:
		s := strconv.FormatBool(x)
		return Cell{Kind: CellBoolean, Raw: s, Display: strings.ToUpper(s), Bool: x}
	case float64:
		s := strconv.FormatFloat(x, 'f', -1, 64)
		return Cell{Kind: CellNumber, Raw: s, Display: s, Number: x}
	case int:
		return ValueCell(float64(x))
	case int64:
		return ValueCell(float64(x))
	}
	s := fmt.Sprint(v)
	return Cell{Kind: CellString, Raw: s, Display: s}
}
